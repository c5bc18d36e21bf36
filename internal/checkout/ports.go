package checkout

import (
	"context"

	"github.com/hamedAligholizade/sefareshgiri-bot/internal/orders"
	"github.com/hamedAligholizade/sefareshgiri-bot/internal/zarinpal"
)

// Port kecil supaya coordinator/reconciler bisa dites dgn fake in-memory;
// implementasi produksi ada di internal/orders (pgx) dan internal/zarinpal.

type Ledger interface {
	// Reserve = compare-and-decrement atomik; balikin snapshot harga.
	Reserve(ctx context.Context, productID string, qty int) (priceToman int64, err error)
	Release(ctx context.Context, productID string, qty int) error
}

type Store interface {
	Create(ctx context.Context, externalID string, userID *int64, lines []orders.Line) (orders.Order, error)
	Transition(ctx context.Context, orderID string, t orders.Transition) (orders.Order, error)
	Get(ctx context.Context, orderID string) (orders.Order, error)
	FindByExternalID(ctx context.Context, externalID string) (orders.Order, error)
	ItemsOf(ctx context.Context, orderID string) ([]orders.OrderItem, error)
}

type Gateway interface {
	RequestPayment(ctx context.Context, amountToman int64, description, orderID string) (zarinpal.PaymentRequest, error)
	Verify(ctx context.Context, authority string, amountToman int64) (zarinpal.VerifyResult, error)
	PaymentURL(authority string) string
}
