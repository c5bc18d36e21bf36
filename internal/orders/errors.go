package orders

import "errors"

var (
	ErrOutOfStock      = errors.New("out of stock")
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")

	// ErrConflict: guard expected-status tidak kena. Ini bukan error beneran,
	// justru mekanisme idempotency transisi -- jangan di-log sebagai error.
	ErrConflict = errors.New("order status conflict")
)
