// Package ordertest provides in-memory order persistence for tests.
package ordertest

import (
	"context"
	"fmt"
	"sync"

	"wali/internal/apperr"
	"wali/internal/modules/order"
	"wali/internal/types"
)

// Store is an in-memory order.Repository with the same version semantics as
// the Postgres store.
type Store struct {
	mu      sync.Mutex
	orders  map[types.ID]order.Order
	numbers map[string]types.ID
	events  map[types.ID][]order.Event
	nextID  int64

	// FailCreate, when set, is returned by the next Create call.
	FailCreate error
}

func NewStore() *Store {
	return &Store{
		orders:  make(map[types.ID]order.Order),
		numbers: make(map[string]types.ID),
		events:  make(map[types.ID][]order.Event),
	}
}

func (s *Store) Create(_ context.Context, o *order.Order, e order.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.FailCreate; err != nil {
		s.FailCreate = nil
		return err
	}
	if _, ok := s.numbers[o.Number]; ok {
		return order.ErrDuplicateNumber
	}
	if _, ok := s.orders[o.ID]; ok {
		return fmt.Errorf("ordertest: duplicate id %s", o.ID)
	}
	s.orders[o.ID] = o.Clone()
	s.numbers[o.Number] = o.ID
	s.appendLocked(e)
	return nil
}

func (s *Store) Get(_ context.Context, id types.ID) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", apperr.ErrNotFound, id)
	}
	c := o.Clone()
	return &c, nil
}

func (s *Store) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	s.mu.Lock()
	id, ok := s.numbers[number]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: order %s", apperr.ErrNotFound, number)
	}
	return s.Get(ctx, id)
}

func (s *Store) Update(_ context.Context, o *order.Order, expectedVersion int, e order.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.orders[o.ID]
	if !ok {
		return fmt.Errorf("%w: order %s", apperr.ErrNotFound, o.ID)
	}
	if cur.Version != expectedVersion {
		return fmt.Errorf("%w: order %s is no longer at version %d", apperr.ErrConcurrentModification, o.ID, expectedVersion)
	}
	o.Version = expectedVersion + 1
	s.orders[o.ID] = o.Clone()
	s.appendLocked(e)
	return nil
}

func (s *Store) ListEvents(_ context.Context, id types.ID) ([]order.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]order.Event(nil), s.events[id]...), nil
}

// Put stores o as-is, bypassing version checks. Tests use it to seed an
// order in an arbitrary status.
func (s *Store) Put(o order.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o.Clone()
	if o.Number != "" {
		s.numbers[o.Number] = o.ID
	}
}

func (s *Store) appendLocked(e order.Event) {
	s.nextID++
	e.ID = s.nextID
	s.events[e.OrderID] = append(s.events[e.OrderID], e)
}

// Cache is an in-memory order.Cache that counts hits.
type Cache struct {
	mu     sync.Mutex
	orders map[types.ID]order.Order
	Hits   int
	Err    error
}

func NewCache() *Cache {
	return &Cache{orders: make(map[types.ID]order.Order)}
}

func (c *Cache) Get(_ context.Context, id types.ID) (*order.Order, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, false, c.Err
	}
	o, ok := c.orders[id]
	if !ok {
		return nil, false, nil
	}
	c.Hits++
	cp := o.Clone()
	return &cp, true, nil
}

func (c *Cache) Set(_ context.Context, o *order.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	if cur, ok := c.orders[o.ID]; ok && cur.Version > o.Version {
		return nil
	}
	c.orders[o.ID] = o.Clone()
	return nil
}
