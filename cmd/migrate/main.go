// Migrate: bikin skema + seed user admin (pengganti sync ORM lama).
package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/hamedAligholizade/sefareshgiri-bot/internal/config"
	"github.com/hamedAligholizade/sefareshgiri-bot/internal/postgres"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if err := postgres.SeedAdmin(ctx, db, cfg.AdminUserID); err != nil {
		log.Fatalf("seed admin: %v", err)
	}
	log.Println("database synchronized")
}
