// Package cart keeps each user's pre-purchase selection of courses.
//
// The cart does not consult the catalog: callers filter inactive courses when
// rendering and checkout re-resolves everything authoritatively.
package cart

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/m3rciful/coursebot/core/logger"
)

// Store is the keyed cart storage. Get returns nil for an unknown user;
// Set with an empty slice removes the key.
type Store interface {
	Get(ctx context.Context, userID int64) ([]int64, error)
	Set(ctx context.Context, userID int64, courseIDs []int64) error
}

// AddResult tells whether Add changed the cart.
type AddResult int

const (
	Added AddResult = iota + 1
	Duplicate
)

// RemoveResult tells whether Remove changed the cart.
type RemoveResult int

const (
	Removed RemoveResult = iota + 1
	NotPresent
)

const lockStripes = 64

// Service serialises read-modify-write per user. Users hashing to different
// stripes never contend.
type Service struct {
	store Store
	locks [lockStripes]sync.Mutex
}

// NewService wires a cart over store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) lock(userID int64) func() {
	mu := &s.locks[uint64(userID)%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// Add appends courseID unless it is already there.
func (s *Service) Add(ctx context.Context, userID, courseID int64) (AddResult, error) {
	defer s.lock(userID)()

	ids, err := s.store.Get(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("cart: get %d: %w", userID, err)
	}
	for _, id := range ids {
		if id == courseID {
			return Duplicate, nil
		}
	}
	next := append(append(make([]int64, 0, len(ids)+1), ids...), courseID)
	if err := s.store.Set(ctx, userID, next); err != nil {
		return 0, fmt.Errorf("cart: set %d: %w", userID, err)
	}
	logger.Debug(ctx, logger.ComponentCart, "cart.add",
		slog.Int64("user_id", userID),
		slog.Int64("course_id", courseID),
		slog.Int("count", len(next)),
	)
	return Added, nil
}

// Remove drops courseID; an empty cart is deleted.
func (s *Service) Remove(ctx context.Context, userID, courseID int64) (RemoveResult, error) {
	defer s.lock(userID)()

	ids, err := s.store.Get(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("cart: get %d: %w", userID, err)
	}
	next := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id != courseID {
			next = append(next, id)
		}
	}
	if len(next) == len(ids) {
		return NotPresent, nil
	}
	if err := s.store.Set(ctx, userID, next); err != nil {
		return 0, fmt.Errorf("cart: set %d: %w", userID, err)
	}
	logger.Debug(ctx, logger.ComponentCart, "cart.remove",
		slog.Int64("user_id", userID),
		slog.Int64("course_id", courseID),
		slog.Int("count", len(next)),
	)
	return Removed, nil
}

// List returns the course ids in insertion order.
func (s *Service) List(ctx context.Context, userID int64) ([]int64, error) {
	ids, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("cart: get %d: %w", userID, err)
	}
	return ids, nil
}

// Contains reports whether courseID is in the cart.
func (s *Service) Contains(ctx context.Context, userID, courseID int64) (bool, error) {
	ids, err := s.List(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == courseID {
			return true, nil
		}
	}
	return false, nil
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, userID int64) error {
	defer s.lock(userID)()
	if err := s.store.Set(ctx, userID, nil); err != nil {
		return fmt.Errorf("cart: clear %d: %w", userID, err)
	}
	return nil
}

// Retain drops every id for which keep returns false, e.g. courses that left
// the catalog. It reports how many ids were dropped.
func (s *Service) Retain(ctx context.Context, userID int64, keep func(courseID int64) bool) (int, error) {
	defer s.lock(userID)()

	ids, err := s.store.Get(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("cart: get %d: %w", userID, err)
	}
	next := make([]int64, 0, len(ids))
	for _, id := range ids {
		if keep(id) {
			next = append(next, id)
		}
	}
	dropped := len(ids) - len(next)
	if dropped == 0 {
		return 0, nil
	}
	if err := s.store.Set(ctx, userID, next); err != nil {
		return 0, fmt.Errorf("cart: set %d: %w", userID, err)
	}
	return dropped, nil
}

// MemoryStore keeps carts in process memory. Carts are lost on restart and
// are not shared between replicas.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[int64][]int64
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[int64][]int64)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, userID int64) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids, ok := m.carts[userID]
	if !ok {
		return nil, nil
	}
	return append([]int64(nil), ids...), nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, userID int64, courseIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(courseIDs) == 0 {
		delete(m.carts, userID)
		return nil
	}
	m.carts[userID] = append([]int64(nil), courseIDs...)
	return nil
}

// Len reports how many users have a non-empty cart.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.carts)
}
