// Package memory implements the catalog and order repositories in memory.
package memory

import (
	"context"
	"sort"
	"sync"

	"storefront/pkg/catalog"
	"storefront/pkg/order"
)

// Store provides an in-memory implementation of catalog.Repository and
// order.Repository. Transactions hold the write lock for their whole
// duration, so they are serialised.
type Store struct {
	mu       sync.RWMutex
	products map[string]catalog.Product
	byName   map[string]string
	orders   map[string]order.Order
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		products: make(map[string]catalog.Product),
		byName:   make(map[string]string),
		orders:   make(map[string]order.Order),
	}
}

// FindByName returns the product with the given normalized name.
func (s *Store) FindByName(ctx context.Context, name string) (catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[name]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return s.products[id], nil
}

// Insert stores the product, enforcing name uniqueness.
func (s *Store) Insert(ctx context.Context, p catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[p.Name]; ok {
		return catalog.ErrNameTaken
	}
	s.products[p.ID] = p
	s.byName[p.Name] = p.ID
	return nil
}

// Query returns the matching products ordered by name, and their count.
func (s *Store) Query(ctx context.Context, q catalog.Query) ([]catalog.Product, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []catalog.Product
	for _, p := range s.products {
		if matches(p, q) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name != matched[j].Name {
			return matched[i].Name < matched[j].Name
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	if q.Offset >= total {
		return []catalog.Product{}, total, nil
	}
	end := total
	if q.Limit < total-q.Offset {
		end = q.Offset + q.Limit
	}
	out := make([]catalog.Product, end-q.Offset)
	copy(out, matched[q.Offset:end])
	return out, total, nil
}

func matches(p catalog.Product, q catalog.Query) bool {
	switch {
	case q.ID != "" && p.ID != q.ID:
		return false
	case q.Name != "" && p.Name != q.Name:
		return false
	case q.MinPrice.Valid && p.Price.LessThan(q.MinPrice.Decimal):
		return false
	case q.MaxPrice.Valid && p.Price.GreaterThan(q.MaxPrice.Decimal):
		return false
	}
	return true
}

// ProductsByIDs returns the known products among ids.
func (s *Store) ProductsByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Get retrieves an order by ID.
func (s *Store) Get(ctx context.Context, id string) (order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	return o, nil
}

// InTx stages the writes made by fn and applies them only if fn succeeds.
// fn must not call other Store methods.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &stagedTx{store: s, stock: make(map[string]int)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for id, qty := range tx.stock {
		p := s.products[id]
		p.Quantity = qty
		s.products[id] = p
	}
	for _, o := range tx.orders {
		s.orders[o.ID] = o
	}
	return nil
}

// stagedTx buffers writes until InTx commits. The store lock is held by InTx.
type stagedTx struct {
	store  *Store
	orders []order.Order
	stock  map[string]int
}

func (t *stagedTx) InsertOrder(ctx context.Context, o order.Order) error {
	t.orders = append(t.orders, o)
	return nil
}

func (t *stagedTx) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	current, ok := t.stock[productID]
	if !ok {
		p, exists := t.store.products[productID]
		if !exists {
			return false, nil
		}
		current = p.Quantity
	}
	if current < quantity {
		return false, nil
	}
	t.stock[productID] = current - quantity
	return true, nil
}

// Products returns a snapshot of all products.
func (s *Store) Products() []catalog.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out
}

// Orders returns a snapshot of all orders.
func (s *Store) Orders() []order.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	return out
}
