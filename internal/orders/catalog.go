package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Catalog: read-only view utk storefront. Manajemen katalog (CRUD produk)
// dikerjakan kolaborator admin, bukan di sini.
type Catalog struct{ DB *pgxpool.Pool }

func (c *Catalog) ListAvailable(ctx context.Context) ([]Product, error) {
	rows, err := c.DB.Query(ctx, `
		SELECT id, name, description, price_toman, image_path, available_units, created_at, updated_at
		FROM products WHERE available_units > 0 ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.PriceToman, &p.ImagePath,
			&p.AvailableUnits, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (c *Catalog) Get(ctx context.Context, productID string) (Product, error) {
	var p Product
	err := c.DB.QueryRow(ctx, `
		SELECT id, name, description, price_toman, image_path, available_units, created_at, updated_at
		FROM products WHERE id=$1`, productID).
		Scan(&p.ID, &p.Name, &p.Description, &p.PriceToman, &p.ImagePath,
			&p.AvailableUnits, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}
