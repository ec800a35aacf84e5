// Package cart owns the persisted cart: adding, quantity changes, removal,
// pricing and checkout. Every mutation loads the stored cart, applies the
// change, validates it and writes the whole document back. A failed write
// leaves the stored cart untouched and returns the previous snapshot.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kingrea/storefront/internal/catalog"
	"github.com/kingrea/storefront/internal/changefeed"
	"github.com/kingrea/storefront/internal/store"
)

// DuplicatePolicy decides what AddItem does for a product already in the cart.
type DuplicatePolicy int

const (
	// DuplicateReject leaves the cart unchanged and reports AlreadyPresent.
	DuplicateReject DuplicatePolicy = iota
	// DuplicateIncrement adds the requested quantity to the existing line.
	DuplicateIncrement
)

// ParseDuplicatePolicy maps the config value to a policy.
func ParseDuplicatePolicy(value string) (DuplicatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "reject":
		return DuplicateReject, nil
	case "increment":
		return DuplicateIncrement, nil
	default:
		return DuplicateReject, fmt.Errorf("cart: unknown duplicate policy %q", value)
	}
}

// AddOutcome tags what AddItem did.
type AddOutcome int

const (
	Added AddOutcome = iota + 1
	AlreadyPresent
	Incremented
)

func (o AddOutcome) String() string {
	switch o {
	case Added:
		return "added"
	case AlreadyPresent:
		return "already_present"
	case Incremented:
		return "incremented"
	default:
		return "unknown"
	}
}

// AddResult carries the outcome and the cart after the call.
type AddResult struct {
	Outcome AddOutcome
	Cart    Cart
}

// Journal records user-facing activity such as placed orders.
type Journal interface {
	Info(format string, args ...any)
}

// Archiver files placed orders outside the local store.
type Archiver interface {
	Record(ctx context.Context, r Receipt) error
}

// Engine applies cart operations against the local store.
type Engine struct {
	store   *store.Store
	logger  *zap.Logger
	journal Journal
	changes changefeed.Publisher
	archive Archiver
	rates   Rates
	policy  DuplicatePolicy
	now     func() time.Time
	newID   func() string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithJournal records placed orders in j.
func WithJournal(j Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithChanges publishes every committed cart change to p.
func WithChanges(p changefeed.Publisher) Option {
	return func(e *Engine) {
		e.changes = p
	}
}

// WithArchive files every placed order in a.
func WithArchive(a Archiver) Option {
	return func(e *Engine) {
		e.archive = a
	}
}

// WithRates overrides the tax rate and delivery fee.
func WithRates(rates Rates) Option {
	return func(e *Engine) {
		e.rates = rates
	}
}

// WithDuplicatePolicy sets how AddItem treats products already in the cart.
func WithDuplicatePolicy(policy DuplicatePolicy) Option {
	return func(e *Engine) {
		e.policy = policy
	}
}

// WithClock overrides the time source used for receipts.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithOrderIDs overrides the receipt id generator.
func WithOrderIDs(next func() string) Option {
	return func(e *Engine) {
		if next != nil {
			e.newID = next
		}
	}
}

// NewEngine builds a cart engine over s.
func NewEngine(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		logger: zap.NewNop(),
		rates:  DefaultRates(),
		policy: DuplicateReject,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Policy returns the active duplicate policy.
func (e *Engine) Policy() DuplicatePolicy {
	return e.policy
}

// Load returns the stored cart. A missing or unreadable cart is empty, and
// entries that break the line item rules are dropped.
func (e *Engine) Load(ctx context.Context) Cart {
	var elems []json.RawMessage
	if !e.store.Get(ctx, store.KeyCart, &elems) {
		return Cart{}
	}
	raw := make([]LineItem, 0, len(elems))
	undecodable := 0
	for _, elem := range elems {
		var item LineItem
		if err := json.Unmarshal(elem, &item); err != nil {
			undecodable++
			continue
		}
		raw = append(raw, item)
	}
	cart, dropped := Sanitize(raw)
	dropped += undecodable
	if dropped > 0 {
		e.logger.Warn("dropped invalid cart entries", zap.Int("dropped", dropped))
	}
	return cart
}

// IsInCart reports whether productID has a line in the stored cart.
func (e *Engine) IsInCart(ctx context.Context, productID int) bool {
	return e.Load(ctx).Contains(productID)
}

// AddItem adds quantity units of product. A product already in the cart is
// handled by the duplicate policy.
func (e *Engine) AddItem(ctx context.Context, product catalog.Product, quantity int) (AddResult, error) {
	if product.ID <= 0 {
		return AddResult{Cart: e.Load(ctx)}, ErrInvalidProduct
	}
	if quantity < 1 {
		return AddResult{Cart: e.Load(ctx)}, ErrInvalidQuantity
	}
	outcome := Added
	next, _, err := e.mutate(ctx, func(current Cart) (Cart, bool, error) {
		idx := current.Index(product.ID)
		if idx < 0 {
			return append(current, FromProduct(product, quantity)), true, nil
		}
		if e.policy == DuplicateReject {
			outcome = AlreadyPresent
			return current, false, nil
		}
		outcome = Incremented
		current[idx].Quantity += quantity
		return current, true, nil
	})
	if err != nil {
		return AddResult{Cart: next}, err
	}
	e.logger.Debug("cart add",
		zap.Int("product_id", product.ID),
		zap.Stringer("outcome", outcome),
	)
	switch outcome {
	case Added:
		e.publish(changefeed.CartItemAdded, product.ID)
	case Incremented:
		e.publish(changefeed.CartQuantityChanged, product.ID)
	}
	return AddResult{Outcome: outcome, Cart: next}, nil
}

// UpdateQuantity moves one line's quantity by delta (+1 or -1). Quantities
// never drop below 1; removing a line is RemoveItem's job.
func (e *Engine) UpdateQuantity(ctx context.Context, productID, delta int) (Cart, error) {
	if delta != 1 && delta != -1 {
		return e.Load(ctx), ErrInvalidDelta
	}
	next, changed, err := e.mutate(ctx, func(current Cart) (Cart, bool, error) {
		idx := current.Index(productID)
		if idx < 0 {
			return current, false, ErrItemNotInCart
		}
		qty := current[idx].Quantity + delta
		if qty < 1 {
			qty = 1
		}
		if qty == current[idx].Quantity {
			return current, false, nil
		}
		current[idx].Quantity = qty
		return current, true, nil
	})
	if changed {
		e.publish(changefeed.CartQuantityChanged, productID)
	}
	return next, err
}

// RemoveItem deletes the line for productID. Removing an absent id is a
// no-op.
func (e *Engine) RemoveItem(ctx context.Context, productID int) (Cart, error) {
	next, changed, err := e.mutate(ctx, func(current Cart) (Cart, bool, error) {
		idx := current.Index(productID)
		if idx < 0 {
			return current, false, nil
		}
		return append(current[:idx], current[idx+1:]...), true, nil
	})
	if changed {
		e.publish(changefeed.CartItemRemoved, productID)
	}
	return next, err
}

// Summarize prices c with the engine's rates.
func (e *Engine) Summarize(c Cart) PriceSummary {
	return Summarize(c, e.rates)
}

// Summary prices the stored cart.
func (e *Engine) Summary(ctx context.Context) PriceSummary {
	return e.Summarize(e.Load(ctx))
}

// Checkout places an order for the stored cart and clears the entire local
// store, favorites and login flag included. The cart is read and cleared as
// one step, so a line added concurrently is either on the receipt or survives
// the clear. A failed clear leaves the cart in place and returns the error.
// Archiving happens after the clear; an archive failure is logged and does not
// undo the order.
func (e *Engine) Checkout(ctx context.Context) (Receipt, error) {
	var receipt Receipt
	err := e.store.ClearAfter(ctx, func() error {
		current := e.Load(ctx)
		if len(current) == 0 {
			return ErrEmptyCart
		}
		receipt = Receipt{
			OrderID:  e.newID(),
			Status:   StatusOrdered,
			Items:    current,
			Summary:  e.Summarize(current),
			PlacedAt: e.now().UTC(),
		}
		return nil
	})
	if errors.Is(err, ErrEmptyCart) {
		return Receipt{}, err
	}
	if err != nil {
		e.logger.Error("checkout failed to clear local store", zap.Error(err))
		return Receipt{}, err
	}
	e.logger.Info("order placed",
		zap.String("order_id", receipt.OrderID),
		zap.Int("lines", len(receipt.Items)),
		zap.String("total", receipt.Summary.TotalText()),
	)
	e.publish(changefeed.CartCleared, 0)
	if e.archive != nil {
		if err := e.archive.Record(ctx, receipt); err != nil {
			e.logger.Warn("order not archived", zap.String("order_id", receipt.OrderID), zap.Error(err))
		}
	}
	if e.journal != nil {
		e.journal.Info("Order %s placed: %d item(s), total $%s",
			receipt.ShortID(), receipt.Items.Units(), receipt.Summary.TotalText())
	}
	return receipt, nil
}

func (e *Engine) publish(kind changefeed.Kind, productID int) {
	if e.changes != nil {
		e.changes.Publish(kind, productID)
	}
}

// mutate runs one load-change-validate-save cycle under the store's key lock.
// fn receives a private copy and reports whether it changed anything. On any
// error the previous cart is returned. saved is true only when a new cart was
// written.
func (e *Engine) mutate(ctx context.Context, fn func(Cart) (Cart, bool, error)) (result Cart, saved bool, err error) {
	err = e.store.Mutate(ctx, store.KeyCart, func() error {
		current := e.Load(ctx)
		result = current
		next, changed, err := fn(current.Clone())
		if err != nil || !changed {
			return err
		}
		if err := next.Validate(); err != nil {
			return err
		}
		if err := e.store.Set(ctx, store.KeyCart, next); err != nil {
			e.logger.Error("cart write failed", zap.Error(err))
			return err
		}
		result = next
		saved = true
		return nil
	})
	return result, saved, err
}
