package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/qorikusi/storefront/internal/domain/auth"
	"github.com/qorikusi/storefront/internal/domain/cart"
	"github.com/qorikusi/storefront/internal/domain/kv"
	"github.com/qorikusi/storefront/internal/domain/order"
	"github.com/qorikusi/storefront/internal/domain/payment"
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

type fakeAuth struct {
	authenticated bool
	user          auth.User
}

func (a *fakeAuth) Authenticated(context.Context) bool { return a.authenticated }

func (a *fakeAuth) User(context.Context) (*auth.User, error) {
	if !a.authenticated {
		return nil, auth.ErrNoToken
	}
	u := a.user
	return &u, nil
}

// fakeCartBackend is an in-memory cart service. Lines carry no stock, like
// the real service.
type fakeCartBackend struct {
	mu       sync.Mutex
	carts    map[string]*cart.Cart
	catalog  map[string]product.Product
	next     int
	clearErr error
	cleared  int
}

func newFakeCartBackend(products ...product.Product) *fakeCartBackend {
	b := &fakeCartBackend{
		carts:   map[string]*cart.Cart{},
		catalog: map[string]product.Product{},
	}
	for _, p := range products {
		b.catalog[p.ID] = p
	}
	return b
}

func (b *fakeCartBackend) Create(context.Context) (*cart.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := fmt.Sprintf("cart-%d", b.next)
	b.carts[id] = &cart.Cart{ID: id}
	return &cart.Cart{ID: id}, nil
}

func (b *fakeCartBackend) Get(_ context.Context, id string) (*cart.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.carts[id]
	if !ok {
		return nil, cart.ErrNotFound
	}
	out := cart.Cart{ID: c.ID}
	for _, it := range c.Items {
		it.Product.Stock = 0
		it.Subtotal = it.LineTotal()
		out.Items = append(out.Items, it)
	}
	out.Total = out.Subtotal()
	return &out, nil
}

func (b *fakeCartBackend) AddItem(_ context.Context, id, productID string, quantity int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.carts[id]
	if !ok {
		return cart.ErrNotFound
	}
	for i := range c.Items {
		if c.Items[i].Product.ID == productID {
			c.Items[i].Quantity += quantity
			return nil
		}
	}
	c.Items = append(c.Items, cart.Item{Product: b.catalog[productID], Quantity: quantity})
	return nil
}

func (b *fakeCartBackend) UpdateItem(_ context.Context, id, productID string, quantity int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.carts[id]
	if !ok {
		return cart.ErrNotFound
	}
	for i := range c.Items {
		if c.Items[i].Product.ID == productID {
			c.Items[i].Quantity = quantity
			return nil
		}
	}
	return cart.ErrItemNotFound
}

func (b *fakeCartBackend) RemoveItem(_ context.Context, id, productID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.carts[id]
	if !ok {
		return cart.ErrNotFound
	}
	for i := range c.Items {
		if c.Items[i].Product.ID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
	}
	return cart.ErrItemNotFound
}

func (b *fakeCartBackend) Clear(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.clearErr != nil {
		return b.clearErr
	}
	b.cleared++
	delete(b.carts, id)
	return nil
}

func (b *fakeCartBackend) Merge(context.Context, string) error { return nil }

type fakeOrders struct {
	mu      sync.Mutex
	err     error
	created []string
}

func (f *fakeOrders) Create(_ context.Context, cartID, shippingMethod string) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	n := len(f.created) + 1
	f.created = append(f.created, cartID)
	return &order.Order{
		ID:             fmt.Sprintf("order-%d", n),
		Code:           fmt.Sprintf("PED-%04d", n),
		Status:         order.StatusPending,
		Total:          decimal.NewFromInt(180),
		ShippingMethod: shippingMethod,
		CreatedAt:      time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeOrders) List(context.Context) ([]order.Details, error) { return nil, nil }

func (f *fakeOrders) Get(context.Context, string) (*order.Details, error) {
	return nil, order.ErrNotFound
}

func (f *fakeOrders) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type fakePayments struct {
	mu       sync.Mutex
	statuses []payment.Status
	err      error
	block    chan struct{}
	requests []payment.Request
}

func (f *fakePayments) Process(ctx context.Context, req payment.Request) (*payment.Receipt, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	status := payment.StatusCompleted
	if len(f.statuses) > 0 {
		status, f.statuses = f.statuses[0], f.statuses[1:]
	}
	return &payment.Receipt{
		ID:     fmt.Sprintf("receipt-%d", len(f.requests)),
		Type:   req.ReceiptType,
		TaxID:  req.CustomerID,
		Name:   req.CustomerName,
		Amount: req.Amount,
		Series: "B001",
		Number: "00000042",
		Payment: payment.Payment{
			ID:      fmt.Sprintf("pay-%d", len(f.requests)),
			OrderID: req.OrderID,
			Amount:  req.Amount,
			Method:  req.Method,
			Status:  status,
		},
	}, nil
}

type fakeArchive struct {
	mu       sync.Mutex
	receipts map[string][]payment.Receipt
}

func (a *fakeArchive) Append(_ context.Context, owner string, r payment.Receipt) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.receipts == nil {
		a.receipts = map[string][]payment.Receipt{}
	}
	a.receipts[owner] = append(a.receipts[owner], r)
	return nil
}

func (a *fakeArchive) List(_ context.Context, owner string) ([]payment.Receipt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.receipts[owner], nil
}

var (
	lunarLamp = product.Product{ID: "p-lamp", Name: "Lámpara lunar", Category: "Hogar", Price: decimal.NewFromInt(180), Stock: 5}
	moonTea   = product.Product{ID: "p-tea", Name: "Té de luna", Category: "Bebidas", Price: decimal.NewFromInt(35), Stock: 20}
)

type fixture struct {
	auth     *fakeAuth
	backend  *fakeCartBackend
	store    *cart.Store
	orders   *fakeOrders
	payments *fakePayments
	archive  *fakeArchive
	o        *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		auth:     &fakeAuth{authenticated: true, user: auth.User{Login: "ana@example.com"}},
		backend:  newFakeCartBackend(lunarLamp, moonTea),
		orders:   &fakeOrders{},
		payments: &fakePayments{},
		archive:  &fakeArchive{},
	}
	f.store = cart.NewStore(f.backend, newMemKV(), cart.DefaultPricing(), zap.NewNop())
	f.o = New(Deps{
		Auth:     f.auth,
		Cart:     f.store,
		Orders:   f.orders,
		Payments: f.payments,
		Archive:  f.archive,
		Logger:   zap.NewNop(),
	}, decimal.NewFromInt(15))
	return f
}

func validShipping() ShippingForm {
	return ShippingForm{
		FirstName:   "Ana",
		LastName:    "Quispe",
		Email:       "ana@example.com",
		Phone:       "987654321",
		Address:     "Av. Los Incas 123",
		City:        "Cusco",
		ReceiptType: payment.ReceiptIndividual,
		TaxID:       "12345678",
	}
}

func validCard() PaymentForm {
	return PaymentForm{
		Method:     payment.MethodCard,
		CardName:   "ANA QUISPE",
		CardNumber: "4111 1111 1111 1111",
		Expiry:     "12/29",
		CVV:        "123",
	}
}
