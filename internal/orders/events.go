package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderAwaitingPayment = "OrderAwaitingPayment"
	EventOrderConfirmed       = "OrderConfirmed"
	EventOrderFailed          = "OrderFailed"
	EventOrderCancelled       = "OrderCancelled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "shop-api"
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

// NotificationPayload: pesan siap-kirim utk user. Delivery (Telegram)
// diurus notifier service, core cuma publish.
type NotificationPayload struct {
	OrderID string `json:"order_id"`
	UserID  *int64 `json:"user_id,omitempty"` // nil utk order anonim
	Message string `json:"message"`
}
