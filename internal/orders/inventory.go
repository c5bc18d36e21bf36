package orders

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InventoryLedger: satu-satunya jalur mutasi stok.
type InventoryLedger struct{ DB *pgxpool.Pool }

// Reserve: compare-and-decrement atomik. Lock row produk (FOR UPDATE),
// cek stok, kurangi -- semua dalam satu tx, jadi dua pembeli yg rebutan
// unit terakhir tidak mungkin dua-duanya sukses.
// Harga dibaca di bawah lock yg sama dan dikembalikan sebagai snapshot,
// biar total order kebal dari edit harga yg berbarengan.
func (l *InventoryLedger) Reserve(ctx context.Context, productID string, qty int) (priceToman int64, err error) {
	if qty < 1 {
		return 0, fmt.Errorf("reserve: invalid qty %d", qty)
	}
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var stock int
	err = tx.QueryRow(ctx, `SELECT available_units, price_toman FROM products WHERE id=$1 FOR UPDATE`,
		productID).Scan(&stock, &priceToman)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("reserve %s: %w", productID, ErrProductNotFound)
	}
	if err != nil {
		return 0, err
	}
	if stock < qty {
		return 0, fmt.Errorf("reserve %s: need %d, have %d: %w", productID, qty, stock, ErrOutOfStock)
	}

	if _, err := tx.Exec(ctx, `UPDATE products SET available_units = available_units - $2, updated_at = now() WHERE id=$1`,
		productID, qty); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return priceToman, nil
}

// Release: aksi kompensasi utk cancel / gagal bayar. Produk yg sudah
// dihapus admin cuma di-log lalu no-op -- stok produk terhapus tidak relevan.
func (l *InventoryLedger) Release(ctx context.Context, productID string, qty int) error {
	ct, err := l.DB.Exec(ctx, `UPDATE products SET available_units = available_units + $2, updated_at = now() WHERE id=$1`,
		productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		log.Printf("release: product %s tidak ada lagi, skip restock %d unit", productID, qty)
	}
	return nil
}
