// Package cache keeps per-operator console state that outlives a single
// request: the in-progress cart and seen submission keys.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/LightDreamhs/MyPetShop3.0/internal/cart"
)

var ErrDuplicateSubmission = errors.New("submission already received")

// CartStore holds one in-progress cart per operator. Get returns an empty
// cart when none is stored.
type CartStore interface {
	Get(ctx context.Context, operator string) (cart.Cart, error)
	Put(ctx context.Context, operator string, c cart.Cart) error
	Delete(ctx context.Context, operator string) error
}

// SubmissionGuard rejects a second submission carrying the same key
// within ttl. An empty key is never deduplicated.
type SubmissionGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

type NoopGuard struct{}

func (NoopGuard) Acquire(_ context.Context, _ string, _ time.Duration) error { return nil }

func (NoopGuard) Release(_ context.Context, _ string) error { return nil }

// MemoryCartStore stores carts serialized so callers never share backing
// slices with the store.
type MemoryCartStore struct {
	mu    sync.RWMutex
	carts map[string][]byte
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{carts: map[string][]byte{}}
}

func (s *MemoryCartStore) Get(_ context.Context, operator string) (cart.Cart, error) {
	s.mu.RLock()
	raw, ok := s.carts[operator]
	s.mu.RUnlock()

	var c cart.Cart
	if !ok {
		return c, nil
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return cart.Cart{}, err
	}
	return c, nil
}

func (s *MemoryCartStore) Put(_ context.Context, operator string, c cart.Cart) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.carts[operator] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryCartStore) Delete(_ context.Context, operator string) error {
	s.mu.Lock()
	delete(s.carts, operator)
	s.mu.Unlock()
	return nil
}

type MemoryGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{seen: map[string]time.Time{}, now: time.Now}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string, ttl time.Duration) error {
	if key == "" {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for k, expires := range g.seen {
		if now.After(expires) {
			delete(g.seen, k)
		}
	}
	if _, ok := g.seen[key]; ok {
		return ErrDuplicateSubmission
	}
	g.seen[key] = now.Add(ttl)
	return nil
}

func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	delete(g.seen, key)
	g.mu.Unlock()
	return nil
}
