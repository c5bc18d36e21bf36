// Notifier service: consume event notifikasi dari Kafka dan serahkan ke
// kolaborator delivery (bot Telegram). Delivery-nya sendiri di luar core;
// di sini pesan cuma di-log lewat deliverer default.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/hamedAligholizade/sefareshgiri-bot/internal/config"
	kafkax "github.com/hamedAligholizade/sefareshgiri-bot/internal/kafka"
	"github.com/hamedAligholizade/sefareshgiri-bot/internal/orders"
)

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func handle(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		// Pesan rusak tidak akan membaik kalau di-retry; commit saja.
		log.Printf("notifier: envelope rusak, skip: %v", err)
		return nil
	}
	p, err := kafkax.UnwrapPayload[orders.NotificationPayload](env.Payload)
	if err != nil {
		log.Printf("notifier: payload rusak, skip: %v", err)
		return nil
	}
	// TODO(hamed): sambungkan ke bot Telegram via sendMessage begitu token
	// delivery dipindah ke service ini.
	log.Printf("deliver [%s] order=%s user=%v:\n%s", env.EventType, p.OrderID, p.UserID, p.Message)
	return nil
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	group := getenv("NOTIFIER_GROUP", "notifier-svc")
	workers := mustAtoi(os.Getenv("NOTIFIER_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicNotifications, workers)

	go func() {
		log.Printf("notifier consumer started: group=%s topic=%s workers=%d", group, orders.TopicNotifications, workers)
		if err := cons.Start(ctx, handle); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down notifier...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}
