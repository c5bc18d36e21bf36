// Package notify mengantar pesan status ke user. Dari sisi core sifatnya
// fire-and-forget: kegagalan delivery tidak boleh menggagalkan transisi
// order yg sudah commit.
package notify

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/hamedAligholizade/sefareshgiri-bot/internal/kafka"
	"github.com/hamedAligholizade/sefareshgiri-bot/internal/orders"
)

type Notifier interface {
	Notify(ctx context.Context, event string, p orders.NotificationPayload)
}

// Kafka publish notifikasi ke topic shop.notifications; delivery ke
// Telegram diurus notifier service terpisah.
type Kafka struct {
	Producer *kafkax.Producer
	Service  string
}

func (k *Kafka) Notify(ctx context.Context, event string, p orders.NotificationPayload) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     event,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      k.Service,
		CorrelationID: p.OrderID,
		Payload:       kafkax.MustMarshal(p),
	}
	k.Producer.Publish(orders.PartitionKey(p.OrderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(event)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// Log: fallback utk dev / test.
type Log struct{}

func (Log) Notify(_ context.Context, event string, p orders.NotificationPayload) {
	log.Printf("notify [%s] order=%s user=%v: %s", event, p.OrderID, p.UserID, p.Message)
}
