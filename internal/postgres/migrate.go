package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DDL idempotent: aman dijalankan berulang kali.
var ddl = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id          BIGSERIAL PRIMARY KEY,
		telegram_id BIGINT NOT NULL UNIQUE,
		first_name  TEXT,
		last_name   TEXT,
		username    TEXT,
		is_admin    BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		description     TEXT NOT NULL,
		price_toman     BIGINT NOT NULL,
		image_path      TEXT NOT NULL,
		available_units INT NOT NULL CHECK (available_units >= 0),
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id             TEXT PRIMARY KEY,
		external_id    TEXT,
		user_id        BIGINT REFERENCES users(id),
		status         TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		total_toman    BIGINT NOT NULL,
		authority      TEXT,
		ref_id         TEXT,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	// product_id sengaja tanpa FK: produk boleh dihapus admin walau masih
	// ada order lama; release stok utk produk terhapus jadi no-op.
	`CREATE TABLE IF NOT EXISTS order_items (
		id          BIGSERIAL PRIMARY KEY,
		order_id    TEXT NOT NULL REFERENCES orders(id),
		product_id  TEXT NOT NULL,
		qty         INT NOT NULL CHECK (qty >= 1),
		price_toman BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id)`,
	// external_id unik hanya di antara order aktif: order yg sudah terminal
	// melepas klaimnya, jadi retry client bisa bikin placement baru.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_external_active
		ON orders(external_id) WHERE status IN ('pending','awaiting_payment')`,
}

func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range ddl {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SeedAdmin bikin user admin kalau ADMIN_USER_ID diset (mirip migrate lama).
func SeedAdmin(ctx context.Context, db *pgxpool.Pool, telegramID string) error {
	if telegramID == "" {
		return nil
	}
	id, err := strconv.ParseInt(telegramID, 10, 64)
	if err != nil {
		return fmt.Errorf("seed admin: invalid telegram id %q", telegramID)
	}
	_, err = db.Exec(ctx, `
		INSERT INTO users (telegram_id, first_name, is_admin)
		VALUES ($1, 'Admin', TRUE)
		ON CONFLICT (telegram_id) DO UPDATE SET is_admin = TRUE`, id)
	return err
}
