package cart

import "time"

// Order statuses. Only ordered is produced locally; there is no payment step.
const (
	StatusOrdered = "ordered"
)

// Receipt describes a placed order. Checkout clears the local store, so a
// receipt only outlives the call if an Archiver files it.
type Receipt struct {
	OrderID  string
	Status   string
	Items    Cart
	Summary  PriceSummary
	PlacedAt time.Time
}

// ShortID is the first block of the order id, for display.
func (r Receipt) ShortID() string {
	if len(r.OrderID) > 8 {
		return r.OrderID[:8]
	}
	return r.OrderID
}
