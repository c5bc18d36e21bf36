package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrAlreadyPaid      = errors.New("order already paid")
	ErrAlreadyCancelled = errors.New("order already cancelled")
)

// OutOfStockError bawa product id yg kalah race, biar storefront bisa
// kasih tahu user produk mana yg habis.
type OutOfStockError struct {
	ProductID string
	Requested int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("out of stock: product %s (requested %d)", e.ProductID, e.Requested)
}
