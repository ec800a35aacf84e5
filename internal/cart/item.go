package cart

import (
	"github.com/shopspring/decimal"

	"github.com/kingrea/storefront/internal/catalog"
)

// LineItem is one product in the cart with its own quantity. Display fields
// are a snapshot of the product taken when it was added.
type LineItem struct {
	ID          int             `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
	Rating      catalog.Rating  `json:"rating"`
	Quantity    int             `json:"quantity"`
	Category    string          `json:"category"`
}

// FromProduct snapshots p into a line item.
func FromProduct(p catalog.Product, quantity int) LineItem {
	return LineItem{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Image:       p.Image,
		Price:       p.Price,
		Rating:      p.Rating,
		Quantity:    quantity,
		Category:    p.Category,
	}
}

// LineTotal is price * quantity.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Cart is the ordered list of line items, in insertion order.
type Cart []LineItem

// Index returns the position of id, or -1.
func (c Cart) Index(id int) int {
	for i, item := range c {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// Contains reports whether a line for id exists.
func (c Cart) Contains(id int) bool {
	return c.Index(id) >= 0
}

// Find returns the line for id.
func (c Cart) Find(id int) (LineItem, bool) {
	if i := c.Index(id); i >= 0 {
		return c[i], true
	}
	return LineItem{}, false
}

// Units is the sum of all quantities.
func (c Cart) Units() int {
	total := 0
	for _, item := range c {
		total += item.Quantity
	}
	return total
}

// Clone returns an independent copy.
func (c Cart) Clone() Cart {
	if c == nil {
		return Cart{}
	}
	return append(Cart(nil), c...)
}

// Validate checks the line item invariants.
func (c Cart) Validate() error {
	seen := make(map[int]struct{}, len(c))
	for _, item := range c {
		if err := validateItem(item); err != nil {
			return err
		}
		if _, dup := seen[item.ID]; dup {
			return &InvariantError{ID: item.ID, Reason: "duplicate line item"}
		}
		seen[item.ID] = struct{}{}
	}
	return nil
}

func validateItem(item LineItem) error {
	switch {
	case item.ID <= 0:
		return &InvariantError{ID: item.ID, Reason: "id must be positive"}
	case item.Quantity < 1:
		return &InvariantError{ID: item.ID, Reason: "quantity below 1"}
	case item.Price.IsNegative():
		return &InvariantError{ID: item.ID, Reason: "negative price"}
	}
	return nil
}

// Sanitize drops entries that break the invariants, keeping the first line
// for any repeated id. It returns the cleaned cart and how many entries were
// dropped.
func Sanitize(items []LineItem) (Cart, int) {
	out := make(Cart, 0, len(items))
	seen := make(map[int]struct{}, len(items))
	dropped := 0
	for _, item := range items {
		if validateItem(item) != nil {
			dropped++
			continue
		}
		if _, dup := seen[item.ID]; dup {
			dropped++
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	return out, dropped
}
