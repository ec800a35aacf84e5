// Package membership recomputes whether a product is in the cart and liked.
// Screens call Refresh every time they regain focus; nothing is pushed
// between screens.
package membership

import (
	"context"

	"github.com/kingrea/storefront/internal/cart"
	"github.com/kingrea/storefront/internal/favorites"
)

// Membership is the reconciled state of one product.
type Membership struct {
	ProductID int
	InCart    bool
	Liked     bool
}

// Reconciler reads membership from the cart and favorites engines.
type Reconciler struct {
	cart      *cart.Engine
	favorites *favorites.Engine
}

// New builds a reconciler.
func New(c *cart.Engine, f *favorites.Engine) *Reconciler {
	return &Reconciler{cart: c, favorites: f}
}

// Refresh reloads both flags for productID from the store.
func (r *Reconciler) Refresh(ctx context.Context, productID int) Membership {
	return Membership{
		ProductID: productID,
		InCart:    r.cart.IsInCart(ctx, productID),
		Liked:     r.favorites.IsLiked(ctx, productID),
	}
}

// RefreshAll reconciles several products, in order, with one read per key.
func (r *Reconciler) RefreshAll(ctx context.Context, productIDs []int) []Membership {
	items := r.cart.Load(ctx)
	liked := make(map[int]bool)
	for _, id := range r.favorites.ListLiked(ctx) {
		liked[id] = true
	}
	out := make([]Membership, len(productIDs))
	for i, id := range productIDs {
		out[i] = Membership{ProductID: id, InCart: items.Contains(id), Liked: liked[id]}
	}
	return out
}
