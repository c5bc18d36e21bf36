package checkout

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/hamedAligholizade/sefareshgiri-bot/internal/notify"
	"github.com/hamedAligholizade/sefareshgiri-bot/internal/orders"
)

type Outcome string

const (
	OutcomeConfirmed         Outcome = "confirmed"
	OutcomeFailed            Outcome = "failed"
	OutcomeAlreadyReconciled Outcome = "already_reconciled"
	OutcomeOrderNotFound     Outcome = "order_not_found"
)

// Status callback dari gateway: "OK" berarti user menyelesaikan pembayaran,
// nilai lain apa pun dianggap batal.
const CallbackStatusOK = "OK"

// Reconciler memproses callback verifikasi gateway. Gateway bisa nge-retry
// delivery, jadi seluruh jalur ini harus idempotent: guard expected-status
// di Transition yg memastikan callback kedua jatuh ke AlreadyReconciled
// tanpa efek samping (dan tanpa notifikasi ulang).
type Reconciler struct {
	Store    Store
	Ledger   Ledger
	Gateway  Gateway
	Notifier notify.Notifier

	// RestockOnFailure: kembalikan stok saat verifikasi gagal. Default
	// false: order failed tetap pegang stoknya utk review manual.
	RestockOnFailure bool

	GatewayTimeout time.Duration
}

func (r *Reconciler) gatewayTimeout() time.Duration {
	if r.GatewayTimeout > 0 {
		return r.GatewayTimeout
	}
	return 10 * time.Second
}

var awaitingGuard = orders.Transition{
	Expect:    []orders.Status{orders.StatusAwaitingPayment},
	ExpectPay: []orders.PaymentStatus{orders.PayAwaitingVerification},
}

// HandleCallback aman dipanggil berulang dgn argumen identik. Error hanya
// utk fault transient (storage/gateway); hasil bisnis ada di Outcome.
func (r *Reconciler) HandleCallback(ctx context.Context, authority, gatewayStatus, orderID string) (Outcome, error) {
	order, err := r.Store.Get(ctx, orderID)
	if errors.Is(err, orders.ErrOrderNotFound) {
		return OutcomeOrderNotFound, nil
	}
	if err != nil {
		return "", err
	}

	// Sudah keluar dari awaiting_payment -> callback lama / replay.
	if order.Status != orders.StatusAwaitingPayment {
		return OutcomeAlreadyReconciled, nil
	}

	// User batal di halaman gateway.
	if gatewayStatus != CallbackStatusOK {
		return r.fail(ctx, order, "")
	}

	gctx, cancel := context.WithTimeout(ctx, r.gatewayTimeout())
	res, err := r.Gateway.Verify(gctx, authority, order.TotalToman)
	cancel()
	if err != nil {
		// Transient: biarkan gateway nge-retry callback, state belum berubah.
		return "", err
	}
	if !res.Success {
		return r.fail(ctx, order, res.Reason)
	}

	t := awaitingGuard
	t.To = orders.StatusConfirmed
	t.ToPay = orders.PayPaid
	t.RefID = res.RefID
	confirmed, err := r.Store.Transition(ctx, order.ID, t)
	if errors.Is(err, orders.ErrConflict) {
		// Callback kembar menang duluan; transisi kedua gagal tanpa efek.
		return OutcomeAlreadyReconciled, nil
	}
	if err != nil {
		return "", err
	}

	r.Notifier.Notify(ctx, orders.EventOrderConfirmed, orders.NotificationPayload{
		OrderID: confirmed.ID,
		UserID:  confirmed.UserID,
		Message: notify.PaymentConfirmed(confirmed.ID, confirmed.RefID, confirmed.TotalToman),
	})
	return OutcomeConfirmed, nil
}

func (r *Reconciler) fail(ctx context.Context, order orders.Order, reason string) (Outcome, error) {
	t := awaitingGuard
	t.To = orders.StatusFailed
	t.ToPay = orders.PayFailed
	failed, err := r.Store.Transition(ctx, order.ID, t)
	if errors.Is(err, orders.ErrConflict) {
		return OutcomeAlreadyReconciled, nil
	}
	if err != nil {
		return "", err
	}

	if r.RestockOnFailure {
		r.restock(ctx, failed.ID)
	}

	r.Notifier.Notify(ctx, orders.EventOrderFailed, orders.NotificationPayload{
		OrderID: failed.ID,
		UserID:  failed.UserID,
		Message: notify.PaymentFailed(failed.ID, reason),
	})
	return OutcomeFailed, nil
}

func (r *Reconciler) restock(ctx context.Context, orderID string) {
	items, err := r.Store.ItemsOf(ctx, orderID)
	if err != nil {
		log.Printf("restock order %s: baca items: %v", orderID, err)
		return
	}
	for _, it := range items {
		if err := r.Ledger.Release(ctx, it.ProductID, it.Qty); err != nil {
			log.Printf("restock order %s: release %s x%d: %v", orderID, it.ProductID, it.Qty, err)
		}
	}
}
