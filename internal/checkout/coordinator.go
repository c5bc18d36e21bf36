// Package checkout berisi inti lifecycle order: koordinator reservasi
// (place order) dan handler rekonsiliasi callback gateway.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hamedAligholizade/sefareshgiri-bot/internal/notify"
	"github.com/hamedAligholizade/sefareshgiri-bot/internal/orders"
)

// Coordinator mengikat reserve stok + create order + request payment jadi
// satu unit logis. Setiap step bisa gagal dan step sebelumnya di-rollback,
// jadi dari luar cuma dua hasil yg mungkin: order awaiting_payment dgn stok
// ter-reserve, atau tidak ada order dan stok utuh.
type Coordinator struct {
	Ledger   Ledger
	Store    Store
	Gateway  Gateway
	Notifier notify.Notifier

	// Batas waktu call gateway; lewat ini dianggap GatewayUnavailable dan
	// reservasi di-rollback, jangan sampai stok ketahan selamanya.
	GatewayTimeout time.Duration
}

type PlaceOrderResult struct {
	Order      orders.Order
	PaymentURL string
}

func (c *Coordinator) gatewayTimeout() time.Duration {
	if c.GatewayTimeout > 0 {
		return c.GatewayTimeout
	}
	return 10 * time.Second
}

// PlaceOrder: jalur utama storefront. externalID opsional (idempotency
// dari sisi client), userID nil utk order web anonim.
func (c *Coordinator) PlaceOrder(ctx context.Context, externalID string, userID *int64, items []orders.ItemInput) (PlaceOrderResult, error) {
	if err := validateItems(items); err != nil {
		return PlaceOrderResult{}, err
	}

	// Idempotency: external_id yg sama -> jawab order AKTIF yg sudah ada,
	// jangan reserve stok lagi. Order terminal tidak dihitung: order yg
	// keburu cancelled/failed (gateway down, misalnya) sudah melepas
	// stoknya, jadi retry client dgn external_id sama harus menghasilkan
	// placement baru, bukan replay order mati.
	if externalID != "" {
		existing, err := c.Store.FindByExternalID(ctx, externalID)
		switch {
		case err == nil && !orders.IsTerminal(existing.Status):
			url := ""
			if existing.Authority != "" {
				url = c.Gateway.PaymentURL(existing.Authority)
			}
			return PlaceOrderResult{Order: existing, PaymentURL: url}, nil
		case err != nil && !errors.Is(err, orders.ErrOrderNotFound):
			return PlaceOrderResult{}, err
		}
	}

	// Step 1: reserve per item. Gagal satu -> lepas semua yg sudah kepegang.
	lines := make([]orders.Line, 0, len(items))
	for _, it := range items {
		price, err := c.Ledger.Reserve(ctx, it.ProductID, it.Qty)
		if err != nil {
			c.releaseLines(ctx, lines)
			switch {
			case errors.Is(err, orders.ErrOutOfStock):
				return PlaceOrderResult{}, &OutOfStockError{ProductID: it.ProductID, Requested: it.Qty}
			case errors.Is(err, orders.ErrProductNotFound):
				return PlaceOrderResult{}, fmt.Errorf("%w: product %s", ErrValidation, it.ProductID)
			default:
				return PlaceOrderResult{}, err
			}
		}
		lines = append(lines, orders.Line{ProductID: it.ProductID, Qty: it.Qty, PriceToman: price})
	}

	// Step 2: buat order pending/not_paid dgn snapshot harga.
	order, err := c.Store.Create(ctx, externalID, userID, lines)
	if err != nil {
		c.releaseLines(ctx, lines)
		return PlaceOrderResult{}, err
	}

	// Step 3: minta link pembayaran, dgn timeout. Gagal -> rollback stok dan
	// tinggalkan order di cancelled/failed, jangan nyangkut di pending.
	gctx, cancel := context.WithTimeout(ctx, c.gatewayTimeout())
	payment, err := c.Gateway.RequestPayment(gctx, order.TotalToman,
		fmt.Sprintf("پرداخت سفارش #%s", order.ID), order.ID)
	cancel()
	if err != nil {
		c.releaseLines(ctx, lines)
		if _, terr := c.Store.Transition(ctx, order.ID, orders.Transition{
			Expect: []orders.Status{orders.StatusPending},
			To:     orders.StatusCancelled,
			ToPay:  orders.PayFailed,
		}); terr != nil && !errors.Is(terr, orders.ErrConflict) {
			log.Printf("place order %s: gagal tandai cancelled setelah gateway error: %v", order.ID, terr)
		}
		return PlaceOrderResult{}, err
	}

	// Step 4: commit ke awaiting_payment sambil simpan authority.
	order, err = c.Store.Transition(ctx, order.ID, orders.Transition{
		Expect:    []orders.Status{orders.StatusPending},
		ExpectPay: []orders.PaymentStatus{orders.PayNotPaid},
		To:        orders.StatusAwaitingPayment,
		ToPay:     orders.PayAwaitingVerification,
		Authority: payment.Authority,
	})
	if err != nil {
		// Conflict di sini artinya order keburu di-cancel; stok sudah
		// dilepas canceller, cukup teruskan errornya.
		return PlaceOrderResult{}, err
	}

	c.Notifier.Notify(ctx, orders.EventOrderAwaitingPayment, orders.NotificationPayload{
		OrderID: order.ID,
		UserID:  order.UserID,
		Message: fmt.Sprintf("لطفا برای پرداخت مبلغ %s تومان بر روی لینک زیر کلیک کنید:\n%s",
			notify.FormatToman(order.TotalToman), payment.URL),
	})

	return PlaceOrderResult{Order: order, PaymentURL: payment.URL}, nil
}

// Cancel membatalkan order yg belum dibayar dan mengembalikan stok tiap
// line item. Order yg sudah paid ditolak ErrAlreadyPaid; yg sudah terminal
// ditolak ErrAlreadyCancelled.
func (c *Coordinator) Cancel(ctx context.Context, orderID string) (orders.Order, error) {
	order, err := c.Store.Transition(ctx, orderID, orders.Transition{
		Expect:    []orders.Status{orders.StatusPending, orders.StatusAwaitingPayment},
		ExpectPay: []orders.PaymentStatus{orders.PayNotPaid, orders.PayAwaitingVerification, orders.PayFailed},
		To:        orders.StatusCancelled,
	})
	if errors.Is(err, orders.ErrConflict) {
		current, gerr := c.Store.Get(ctx, orderID)
		if gerr != nil {
			return orders.Order{}, gerr
		}
		if current.PaymentStatus == orders.PayPaid || current.Status == orders.StatusConfirmed {
			return orders.Order{}, ErrAlreadyPaid
		}
		return orders.Order{}, ErrAlreadyCancelled
	}
	if err != nil {
		return orders.Order{}, err
	}

	c.restock(ctx, orderID)

	c.Notifier.Notify(ctx, orders.EventOrderCancelled, orders.NotificationPayload{
		OrderID: order.ID,
		UserID:  order.UserID,
		Message: notify.OrderCancelled(order.ID),
	})
	return order, nil
}

// restock: kompensasi stok utk semua item order. Release toleran produk
// terhapus, jadi error di sini cuma di-log.
func (c *Coordinator) restock(ctx context.Context, orderID string) {
	items, err := c.Store.ItemsOf(ctx, orderID)
	if err != nil {
		log.Printf("restock order %s: baca items: %v", orderID, err)
		return
	}
	for _, it := range items {
		if err := c.Ledger.Release(ctx, it.ProductID, it.Qty); err != nil {
			log.Printf("restock order %s: release %s x%d: %v", orderID, it.ProductID, it.Qty, err)
		}
	}
}

func (c *Coordinator) releaseLines(ctx context.Context, lines []orders.Line) {
	for _, ln := range lines {
		if err := c.Ledger.Release(ctx, ln.ProductID, ln.Qty); err != nil {
			log.Printf("rollback reserve: release %s x%d: %v", ln.ProductID, ln.Qty, err)
		}
	}
}

func validateItems(items []orders.ItemInput) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: order kosong", ErrValidation)
	}
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if it.ProductID == "" {
			return fmt.Errorf("%w: product id kosong", ErrValidation)
		}
		if it.Qty < 1 {
			return fmt.Errorf("%w: qty %d utk product %s", ErrValidation, it.Qty, it.ProductID)
		}
		if seen[it.ProductID] {
			return fmt.Errorf("%w: product %s dobel", ErrValidation, it.ProductID)
		}
		seen[it.ProductID] = true
	}
	return nil
}
