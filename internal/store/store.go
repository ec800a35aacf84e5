// Package store is the durable key-value layer shared by every screen.
//
// Values are JSON documents replaced whole on every write. Reads fail soft:
// a missing, unreadable or undecodable key is logged and reported as absent.
// Writes and clears fail hard so callers can roll back and tell the user.
// Nothing is cached; every Get goes to the backend.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Keys shared by the engines and the account session.
const (
	KeyCart          = "cart"
	KeyLikedProducts = "likedProducts"
	KeyLoggedIn      = "isLoggedIn"
)

// Store wraps a Backend with JSON encoding and the soft-read policy.
type Store struct {
	backend Backend
	logger  *zap.Logger
	locks   *keyLocks
}

// Option customizes a Store during construction.
type Option func(*Store)

// WithLogger routes read failures to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSerializedKeys makes Mutate hold a per-key lock for the whole
// read-modify-write cycle and makes Clear wait for in-flight mutations.
// Without it, concurrent mutations of one key are last-write-wins.
func WithSerializedKeys() Option {
	return func(s *Store) {
		s.locks = newKeyLocks()
	}
}

// New builds a store over backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Serialized reports whether per-key serialization is enabled.
func (s *Store) Serialized() bool {
	return s.locks != nil
}

// Get decodes the value stored under key into dst and reports whether a
// value was found. Read and decode failures are logged and reported as
// false; dst may be partially written in that case.
func (s *Store) Get(ctx context.Context, key string, dst any) bool {
	data, err := s.backend.Read(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logReadError(&ReadError{Key: key, Err: err})
		}
		return false
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false
	}
	if err := json.Unmarshal(trimmed, dst); err != nil {
		s.logReadError(&ReadError{Key: key, Err: err})
		return false
	}
	return true
}

// Set encodes value and replaces whatever is stored under key.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return &WriteError{Key: key, Err: err}
	}
	if err := s.backend.Write(ctx, key, data); err != nil {
		return &WriteError{Key: key, Err: err}
	}
	return nil
}

// Clear removes every key. Used at logout.
func (s *Store) Clear(ctx context.Context) error {
	return s.ClearAfter(ctx, nil)
}

// ClearAfter runs fn and then removes every key. With serialized keys both
// happen while every Mutate is held off, so whatever fn read is exactly what
// gets cleared. An error from fn leaves the store untouched and is returned
// as is.
func (s *Store) ClearAfter(ctx context.Context, fn func() error) error {
	if s.locks != nil {
		s.locks.all.Lock()
		defer s.locks.all.Unlock()
	}
	if fn != nil {
		if err := fn(); err != nil {
			return err
		}
	}
	if err := s.backend.Clear(ctx); err != nil {
		return &WriteError{Err: err}
	}
	s.logger.Info("local store cleared")
	return nil
}

// Mutate runs fn as one read-modify-write cycle on key. With serialized keys
// no other Mutate on the same key and no Clear runs concurrently; otherwise fn
// simply runs.
func (s *Store) Mutate(_ context.Context, key string, fn func() error) error {
	if s.locks == nil {
		return fn()
	}
	s.locks.all.RLock()
	defer s.locks.all.RUnlock()
	unlock := s.locks.lock(key)
	defer unlock()
	return fn()
}

func (s *Store) logReadError(err *ReadError) {
	s.logger.Warn("local store read failed; treating as empty",
		zap.String("key", err.Key),
		zap.Error(err.Err),
	)
}

// keyLocks hands out one mutex per key. all guards Clear against in-flight
// mutations.
type keyLocks struct {
	all sync.RWMutex

	mu    sync.Mutex
	byKey map[string]*sync.Mutex
}

func newKeyLocks() *keyLocks {
	return &keyLocks{byKey: make(map[string]*sync.Mutex)}
}

func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.byKey[key]
	if !ok {
		m = &sync.Mutex{}
		k.byKey[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}
