package cart

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart       = errors.New("cart: cart is empty")
	ErrItemNotInCart   = errors.New("cart: item not in cart")
	ErrInvalidDelta    = errors.New("cart: quantity delta must be +1 or -1")
	ErrInvalidQuantity = errors.New("cart: quantity must be positive")
	ErrInvalidProduct  = errors.New("cart: product id must be positive")
)

// InvariantError rejects a cart that would break the line item rules:
// unique ids, quantity >= 1, non-negative price.
type InvariantError struct {
	ID     int
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("cart: invariant violated for item %d: %s", e.ID, e.Reason)
}
