package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-faster/errors"

	"github.com/qorikusi/storefront/internal/domain/kv"
	"github.com/qorikusi/storefront/internal/domain/product"
)

type memKV struct {
	mu sync.Mutex
	m  map[string]string
}

func newMemKV() *memKV { return &memKV{m: map[string]string{}} }

func (s *memKV) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if !ok {
		return "", kv.ErrNotFound
	}
	return v, nil
}

func (s *memKV) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

func (s *memKV) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// mockBackend is an in-memory cart service that records every call.
type mockBackend struct {
	mu      sync.Mutex
	carts   map[string][]Item
	catalog map[string]product.Product
	owner   string
	next    int
	calls   []string

	createErr error
	mergeErr  error
	addErr    error
	// addHook runs inside AddItem before the write is applied.
	addHook func()
}

func newMockBackend(products ...product.Product) *mockBackend {
	b := &mockBackend{
		carts:   map[string][]Item{},
		catalog: map[string]product.Product{},
	}
	for _, p := range products {
		b.catalog[p.ID] = p
	}
	return b
}

func (b *mockBackend) record(call string) {
	b.calls = append(b.calls, call)
}

func (b *mockBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *mockBackend) Create(context.Context) (*Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("create")
	if b.createErr != nil {
		return nil, b.createErr
	}
	if b.owner != "" {
		return b.snapshot(b.owner), nil
	}
	b.next++
	id := fmt.Sprintf("cart-%d", b.next)
	b.carts[id] = nil
	return &Cart{ID: id}, nil
}

func (b *mockBackend) Get(_ context.Context, id string) (*Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("get " + id)
	if _, ok := b.carts[id]; !ok {
		return nil, ErrNotFound
	}
	return b.snapshot(id), nil
}

func (b *mockBackend) snapshot(id string) *Cart {
	c := &Cart{ID: id}
	for _, it := range b.carts[id] {
		it.Product.Stock = 0
		it.Subtotal = it.LineTotal()
		c.Items = append(c.Items, it)
	}
	c.Total = c.Subtotal()
	return c
}

func (b *mockBackend) AddItem(_ context.Context, id, productID string, quantity int) error {
	if b.addHook != nil {
		b.addHook()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(fmt.Sprintf("add %s %s %d", id, productID, quantity))
	if b.addErr != nil {
		return b.addErr
	}
	items, ok := b.carts[id]
	if !ok {
		return ErrNotFound
	}
	for i := range items {
		if items[i].Product.ID == productID {
			items[i].Quantity += quantity
			return nil
		}
	}
	b.carts[id] = append(items, Item{Product: b.catalog[productID], Quantity: quantity})
	return nil
}

func (b *mockBackend) UpdateItem(_ context.Context, id, productID string, quantity int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(fmt.Sprintf("update %s %s %d", id, productID, quantity))
	if _, ok := b.carts[id]; !ok {
		return ErrNotFound
	}
	for i, it := range b.carts[id] {
		if it.Product.ID == productID {
			b.carts[id][i].Quantity = quantity
			return nil
		}
	}
	return ErrItemNotFound
}

func (b *mockBackend) RemoveItem(_ context.Context, id, productID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(fmt.Sprintf("remove %s %s", id, productID))
	if _, ok := b.carts[id]; !ok {
		return ErrNotFound
	}
	items := b.carts[id]
	for i, it := range items {
		if it.Product.ID == productID {
			b.carts[id] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return ErrItemNotFound
}

func (b *mockBackend) Clear(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("clear " + id)
	if _, ok := b.carts[id]; !ok {
		return ErrNotFound
	}
	delete(b.carts, id)
	return nil
}

func (b *mockBackend) Merge(_ context.Context, anonID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("merge " + anonID)
	if b.mergeErr != nil {
		return b.mergeErr
	}
	if b.owner == "" {
		return errors.New("merge requires an authenticated request")
	}
	for _, it := range b.carts[anonID] {
		b.carts[b.owner] = append(b.carts[b.owner], it)
	}
	delete(b.carts, anonID)
	return nil
}

// login makes later Create calls return the user's cart.
func (b *mockBackend) login(userCartID string, items ...Item) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.owner = userCartID
	b.carts[userCartID] = items
}

// drop deletes a cart behind the store's back, as a checkout in another
// session of the same user would.
func (b *mockBackend) drop(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.carts, id)
}
