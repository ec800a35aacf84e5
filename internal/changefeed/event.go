package changefeed

import (
	"strings"
	"time"
)

// Kind names a local state change.
type Kind string

const (
	CartItemAdded       Kind = "cart.item_added"
	CartQuantityChanged Kind = "cart.quantity_changed"
	CartItemRemoved     Kind = "cart.item_removed"
	CartCleared         Kind = "cart.cleared"
	FavoriteLiked       Kind = "favorites.liked"
	FavoriteUnliked     Kind = "favorites.unliked"
	SessionEnded        Kind = "session.ended"
)

// Topics a subscriber can ask for.
const (
	TopicCart      = "cart"
	TopicFavorites = "favorites"
	TopicSession   = "session"
)

// Topic returns the part of the kind before the first dot.
func (k Kind) Topic() string {
	topic, _, _ := strings.Cut(string(k), ".")
	return topic
}

// Event records one committed change to the local store. ProductID is zero
// for changes that touch the whole store.
type Event struct {
	ID        string    `json:"id"`
	Sequence  int64     `json:"sequence"`
	Kind      Kind      `json:"kind"`
	ProductID int       `json:"product_id,omitempty"`
	Time      time.Time `json:"time"`
}

// Touches reports whether the event may change the flags of productID.
func (e Event) Touches(productID int) bool {
	return e.ProductID == 0 || e.ProductID == productID
}

// critical events are never dropped in favor of others.
func (e Event) critical() bool {
	return e.Kind == CartCleared || e.Kind == SessionEnded
}

// coalescible events carry nothing a later event does not also imply.
func (e Event) coalescible() bool {
	return e.Kind == CartQuantityChanged
}
