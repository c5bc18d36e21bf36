package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct{ DB *pgxpool.Pool }

const orderCols = `id, COALESCE(external_id,''), user_id, status, payment_status,
	total_toman, COALESCE(authority,''), COALESCE(ref_id,''), created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.ExternalID, &o.UserID, &o.Status, &o.PaymentStatus,
		&o.TotalToman, &o.Authority, &o.RefID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	return o, err
}

// Create: order + items dalam satu tx. Total dihitung dari snapshot harga
// di Line (hasil Reserve), BUKAN baca ulang harga produk -- hindari race
// dengan edit harga.
func (s *Store) Create(ctx context.Context, externalID string, userID *int64, lines []Line) (Order, error) {
	if len(lines) == 0 {
		return Order{}, fmt.Errorf("create order: no lines")
	}
	var total int64
	for _, ln := range lines {
		if ln.Qty < 1 {
			return Order{}, fmt.Errorf("create order: invalid qty for product %s", ln.ProductID)
		}
		total += ln.PriceToman * int64(ln.Qty)
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	orderID := uuid.NewString()
	row := tx.QueryRow(ctx, `
		INSERT INTO orders (id, external_id, user_id, status, payment_status, total_toman)
		VALUES ($1, NULLIF($2,''), $3, $4, $5, $6)
		RETURNING `+orderCols,
		orderID, externalID, userID, StatusPending, PayNotPaid, total)
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, err
	}

	for _, ln := range lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, qty, price_toman)
			VALUES ($1, $2, $3, $4)`,
			orderID, ln.ProductID, ln.Qty, ln.PriceToman); err != nil {
			return Order{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return o, nil
}

// Transition = perubahan status dgn optimistic guard. Update hanya jalan
// kalau status sekarang ada di Expect (dan payment_status di ExpectPay,
// kalau diisi). Guard ini yg bikin callback duplikat jadi no-op.
type Transition struct {
	Expect    []Status
	ExpectPay []PaymentStatus // kosong = tidak dicek
	To        Status
	ToPay     PaymentStatus // kosong = payment_status tidak diubah
	Authority string        // diisi kalau non-empty
	RefID     string        // diisi kalau non-empty
}

// Validate cek setiap pasangan Expect -> To terhadap tabel transisi.
// Transisi yg tidak ada di tabel = bug pemanggil, bukan conflict.
func (t Transition) Validate() error {
	if len(t.Expect) == 0 {
		return fmt.Errorf("transition to %s: expect set kosong", t.To)
	}
	for _, st := range t.Expect {
		if !CanTransition(st, t.To) {
			return fmt.Errorf("transition %s -> %s not allowed", st, t.To)
		}
	}
	return nil
}

func (s *Store) Transition(ctx context.Context, orderID string, t Transition) (Order, error) {
	if err := t.Validate(); err != nil {
		return Order{}, err
	}
	expect := make([]string, len(t.Expect))
	for i, st := range t.Expect {
		expect[i] = string(st)
	}
	var expectPay []string
	for _, ps := range t.ExpectPay {
		expectPay = append(expectPay, string(ps))
	}

	row := s.DB.QueryRow(ctx, `
		UPDATE orders SET
			status = $2,
			payment_status = CASE WHEN $3 <> '' THEN $3 ELSE payment_status END,
			authority = CASE WHEN $4 <> '' THEN $4 ELSE authority END,
			ref_id    = CASE WHEN $5 <> '' THEN $5 ELSE ref_id END,
			updated_at = now()
		WHERE id = $1
		  AND status = ANY($6)
		  AND (cardinality($7::text[]) = 0 OR payment_status = ANY($7))
		RETURNING `+orderCols,
		orderID, t.To, t.ToPay, t.Authority, t.RefID, expect, expectPay)

	o, err := scanOrder(row)
	if errors.Is(err, ErrOrderNotFound) {
		// Bedakan: order memang tidak ada, atau guard yg tidak kena.
		var exists bool
		if err2 := s.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, orderID).Scan(&exists); err2 != nil {
			return Order{}, err2
		}
		if !exists {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, ErrConflict
	}
	return o, err
}

func (s *Store) Get(ctx context.Context, orderID string) (Order, error) {
	return scanOrder(s.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, orderID))
}

// FindByExternalID ambil order terbaru utk external_id tsb. Bisa ada
// beberapa order terminal dgn external_id sama (retry setelah gagal),
// tapi paling banyak satu yg aktif.
func (s *Store) FindByExternalID(ctx context.Context, externalID string) (Order, error) {
	return scanOrder(s.DB.QueryRow(ctx,
		`SELECT `+orderCols+` FROM orders WHERE external_id=$1 ORDER BY created_at DESC LIMIT 1`, externalID))
}

func (s *Store) ItemsOf(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, order_id, product_id, qty, price_toman
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Qty, &it.PriceToman); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ListForUser: riwayat order user (tampilan "My Orders" di bot).
func (s *Store) ListForUser(ctx context.Context, userID int64) ([]Order, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+orderCols+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
