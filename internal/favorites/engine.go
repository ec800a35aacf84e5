// Package favorites keeps the set of liked product ids. Only ids are stored;
// callers resolve them to products through a catalog lookup.
package favorites

import (
	"context"
	"sort"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kingrea/storefront/internal/catalog"
	"github.com/kingrea/storefront/internal/changefeed"
	"github.com/kingrea/storefront/internal/store"
)

// DefaultHydrateLimit caps concurrent catalog lookups in Hydrate.
const DefaultHydrateLimit = 4

// likedMap is the stored shape: product id (as a JSON object key) to liked.
type likedMap map[string]bool

// Engine reads and toggles likes against the local store.
type Engine struct {
	store   *store.Store
	logger  *zap.Logger
	changes changefeed.Publisher
	limit   int
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

// WithChanges publishes every committed like or unlike to p.
func WithChanges(p changefeed.Publisher) Option {
	return func(e *Engine) {
		e.changes = p
	}
}

// WithHydrateLimit sets how many lookups Hydrate runs at once.
func WithHydrateLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

// NewEngine builds a favorites engine over s.
func NewEngine(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		logger: zap.NewNop(),
		limit:  DefaultHydrateLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *Engine) load(ctx context.Context) likedMap {
	liked := likedMap{}
	if !e.store.Get(ctx, store.KeyLikedProducts, &liked) || liked == nil {
		return likedMap{}
	}
	return liked
}

// IsLiked reports the stored flag for productID; absent means false.
func (e *Engine) IsLiked(ctx context.Context, productID int) bool {
	return e.load(ctx)[strconv.Itoa(productID)]
}

// ToggleLike flips the flag for productID, persists the whole map and returns
// the new state. Unliking removes the key. On a write failure the stored map
// is unchanged and the previous state is returned with the error.
func (e *Engine) ToggleLike(ctx context.Context, productID int) (bool, error) {
	return e.update(ctx, productID, func(cur bool) bool { return !cur })
}

// SetLiked forces the like state of productID. Setting the state it already
// has writes nothing and announces nothing.
func (e *Engine) SetLiked(ctx context.Context, productID int, liked bool) error {
	_, err := e.update(ctx, productID, func(bool) bool { return liked })
	return err
}

func (e *Engine) update(ctx context.Context, productID int, decide func(bool) bool) (bool, error) {
	key := strconv.Itoa(productID)
	var state, changed bool
	err := e.store.Mutate(ctx, store.KeyLikedProducts, func() error {
		liked := e.load(ctx)
		state = liked[key]
		next := decide(state)
		if next == state {
			return nil
		}
		if next {
			liked[key] = true
		} else {
			delete(liked, key)
		}
		if err := e.store.Set(ctx, store.KeyLikedProducts, liked); err != nil {
			e.logger.Error("favorites write failed", zap.Int("product_id", productID), zap.Error(err))
			return err
		}
		state, changed = next, true
		return nil
	})
	if changed && e.changes != nil {
		kind := changefeed.FavoriteUnliked
		if state {
			kind = changefeed.FavoriteLiked
		}
		e.changes.Publish(kind, productID)
	}
	return state, err
}

// ListLiked returns the liked ids in ascending order. Keys that are not
// integers are skipped.
func (e *Engine) ListLiked(ctx context.Context) []int {
	liked := e.load(ctx)
	ids := make([]int, 0, len(liked))
	for key, on := range liked {
		if !on {
			continue
		}
		id, err := strconv.Atoi(key)
		if err != nil {
			e.logger.Warn("skipping malformed favorite key", zap.String("key", key))
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Entry is one hydrated favorite. Err is set when the lookup failed; the
// rest of the list is unaffected.
type Entry struct {
	ID      int
	Product catalog.Product
	Err     error
}

// OK reports whether the lookup succeeded.
func (en Entry) OK() bool {
	return en.Err == nil
}

// Hydrate resolves every liked id through lookup, keeping ListLiked order.
// Lookup failures are recorded per entry.
func (e *Engine) Hydrate(ctx context.Context, lookup catalog.Lookup) []Entry {
	ids := e.ListLiked(ctx)
	entries := make([]Entry, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)
	for i, id := range ids {
		i, id := i, id
		entries[i].ID = id
		g.Go(func() error {
			p, err := lookup.Product(gctx, id)
			if err != nil {
				e.logger.Warn("favorite lookup failed", zap.Int("product_id", id), zap.Error(err))
				entries[i].Err = err
				return nil
			}
			entries[i].Product = p
			return nil
		})
	}
	_ = g.Wait()
	return entries
}
