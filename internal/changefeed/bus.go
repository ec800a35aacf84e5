// Package changefeed fans out committed cart, favorites and session changes
// to in-process subscribers. Only subscribers present at publish time see an
// event. Each subscriber owns a bounded channel; when it fills, quantity
// changes are dropped first and store-wide resets last.
package changefeed

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultCapacity = 64

// Publisher is what the engines depend on.
type Publisher interface {
	Publish(kind Kind, productID int)
}

// BusOption customizes a Bus.
type BusOption func(*Bus)

// WithLogger logs dropped events.
func WithLogger(logger *zap.Logger) BusOption {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithSubscriberCapacity sets the channel size handed to each subscriber.
func WithSubscriberCapacity(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.capacity = n
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) BusOption {
	return func(b *Bus) {
		if now != nil {
			b.now = now
		}
	}
}

// Bus is safe for concurrent use. A nil *Bus drops everything.
type Bus struct {
	mu       sync.RWMutex
	subs     []*subscriber
	capacity int
	seq      atomic.Int64
	logger   *zap.Logger
	now      func() time.Time
}

// NewBus returns a bus that gives each subscriber a 64-event buffer.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{capacity: defaultCapacity, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Subscription receives events for the topics it was opened with.
type Subscription struct {
	Events <-chan Event
	cancel func()
}

// Close ends the subscription and closes Events. It may be called twice.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Publish stamps an event and offers it to every subscriber of its topic.
func (b *Bus) Publish(kind Kind, productID int) {
	if b == nil {
		return
	}
	topic := kind.Topic()
	if topic == "" {
		return
	}
	event := Event{
		ID:        uuid.NewString(),
		Sequence:  b.seq.Add(1),
		Kind:      kind,
		ProductID: productID,
		Time:      b.now().UTC(),
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.topics[topic] {
			sub.offer(event, b.logger)
		}
	}
}

// Subscribe opens a subscription to topics. Unknown topic names are kept and
// simply never match.
func (b *Bus) Subscribe(topics ...string) Subscription {
	sub := &subscriber{
		ch:     make(chan Event, b.capacity),
		topics: make(map[string]bool, len(topics)),
	}
	for _, t := range topics {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			sub.topics[t] = true
		}
	}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return Subscription{Events: sub.ch, cancel: func() { b.unsubscribe(sub) }}
}

func (b *Bus) unsubscribe(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

type subscriber struct {
	ch     chan Event
	topics map[string]bool
	// mu orders concurrent offers so the evict-then-send below stays atomic.
	mu sync.Mutex
}

// offer never blocks. On a full channel the less important of the oldest
// queued event and the incoming one is discarded.
func (s *subscriber) offer(event Event, logger *zap.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case s.ch <- event:
		return
	default:
	}
	select {
	case head := <-s.ch:
		if outranks(head, event) {
			s.ch <- head
			logDropped(logger, event)
			return
		}
		logDropped(logger, head)
	default:
	}
	s.ch <- event
}

// outranks reports whether queued should be kept over incoming when only one
// fits. Resets beat everything; quantity changes lose to everything else.
func outranks(queued, incoming Event) bool {
	if queued.critical() != incoming.critical() {
		return queued.critical()
	}
	return incoming.coalescible() && !queued.coalescible()
}

func logDropped(logger *zap.Logger, event Event) {
	logger.Debug("changefeed dropped event",
		zap.String("kind", string(event.Kind)),
		zap.Int64("sequence", event.Sequence),
	)
}
