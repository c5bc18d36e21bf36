package orders

import "time"

// Harga selalu Toman bulat (int64), jangan float. Gateway juga minta integer.
type Product struct {
	ID             string
	Name           string
	Description    string
	PriceToman     int64
	ImagePath      string
	AvailableUnits int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Order struct {
	ID            string
	ExternalID    string // opsional, utk idempotency place-order dari storefront
	UserID        *int64 // nullable: order web anonim
	Status        Status
	PaymentStatus PaymentStatus
	TotalToman    int64
	Authority     string // token gateway, kosong sebelum request payment
	RefID         string // ref id dari gateway, terisi hanya setelah paid
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderItem immutable setelah create; qty >= 1.
// PriceToman = snapshot harga saat order dibuat (bukan harga produk sekarang).
type OrderItem struct {
	ID         int64
	OrderID    string
	ProductID  string
	Qty        int
	PriceToman int64
}

type ItemInput struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

// Line = item + snapshot harga hasil reserve, bahan Create.
type Line struct {
	ProductID  string
	Qty        int
	PriceToman int64
}
