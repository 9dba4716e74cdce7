package handler

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/qorikusi/storefront/internal/domain/account"
	"github.com/qorikusi/storefront/internal/domain/auth"
	"github.com/qorikusi/storefront/internal/domain/cart"
	"github.com/qorikusi/storefront/internal/domain/order"
	"github.com/qorikusi/storefront/internal/domain/payment"
	"github.com/qorikusi/storefront/internal/domain/product"
)

var (
	lamp = product.Product{ID: "p-lamp", Name: "Clay lamp", Category: "Hogar", Price: decimal.NewFromInt(120), Stock: 4}
	rug  = product.Product{ID: "p-rug", Name: "Alpaca rug", Category: "Hogar", Price: decimal.NewFromInt(180), Stock: 20}
	mug  = product.Product{ID: "p-mug", Name: "Ceramic mug", Category: "Cocina", Price: decimal.NewFromInt(35), Stock: 0}
)

type fakeProducts struct {
	mu         sync.Mutex
	products   map[string]product.Product
	created    []product.Draft
	categories []product.Category
}

func newFakeProducts(ps ...product.Product) *fakeProducts {
	f := &fakeProducts{
		products:   make(map[string]product.Product),
		categories: []product.Category{{ID: 1, Name: "Hogar"}, {ID: 2, Name: "Cocina"}},
	}
	for _, p := range ps {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeProducts) List(_ context.Context, q product.Query) (*product.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := &product.Page{Number: q.Page, Size: q.Size, TotalPages: 1}
	for _, p := range f.products {
		if q.Category == "" || p.Category == q.Category {
			page.Items = append(page.Items, p)
		}
	}
	slices.SortFunc(page.Items, func(a, b product.Product) int { return cmp.Compare(a.ID, b.ID) })
	page.TotalItems = len(page.Items)
	return page, nil
}

func (f *fakeProducts) Get(_ context.Context, id string) (*product.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (f *fakeProducts) Create(_ context.Context, d product.Draft) (*product.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, d)
	p := product.Product{ID: fmt.Sprintf("p-new-%d", len(f.created)), Name: d.Name, Price: d.Price, Stock: d.Stock}
	f.products[p.ID] = p
	return &p, nil
}

func (f *fakeProducts) Update(_ context.Context, id string, d product.Draft) (*product.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	p.Name, p.Price, p.Stock = d.Name, d.Price, d.Stock
	f.products[id] = p
	return &p, nil
}

func (f *fakeProducts) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[id]; !ok {
		return product.ErrNotFound
	}
	delete(f.products, id)
	return nil
}

func (f *fakeProducts) Categories(context.Context) ([]product.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.categories), nil
}

func (f *fakeProducts) CreateCategory(_ context.Context, name string) (*product.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := product.Category{ID: len(f.categories) + 1, Name: name}
	f.categories = append(f.categories, c)
	return &c, nil
}

func (f *fakeProducts) UpdateCategory(_ context.Context, id int, name string) (*product.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := slices.IndexFunc(f.categories, func(c product.Category) bool { return c.ID == id })
	if i < 0 {
		return nil, product.ErrCategoryNotFound
	}
	old := f.categories[i].Name
	f.categories[i].Name = name
	for pid, p := range f.products {
		if p.Category == old {
			p.Category = name
			f.products[pid] = p
		}
	}
	c := f.categories[i]
	return &c, nil
}

func (f *fakeProducts) DeleteCategory(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := slices.IndexFunc(f.categories, func(c product.Category) bool { return c.ID == id })
	if i < 0 {
		return product.ErrCategoryNotFound
	}
	f.categories = slices.Delete(f.categories, i, i+1)
	return nil
}

// fakeAccounts is the auth and customer services. Accounts are keyed by
// email; the profile belongs to whoever is logged in.
type fakeAccounts struct {
	mu        sync.Mutex
	passwords map[string]string
	resets    map[string]string
	profile   account.Profile
	email     string
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		passwords: map[string]string{"ana@example.com": "secret"},
		resets:    map[string]string{},
		profile:   account.Profile{FirstName: "Ana", LastName: "Quispe", Phone: "987654321", Points: 40},
		email:     "ana@example.com",
	}
}

func (f *fakeAccounts) Register(_ context.Context, email, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.passwords[email]; ok {
		return account.ErrAlreadyExists
	}
	f.passwords[email] = password
	return nil
}

func (f *fakeAccounts) ForgotPassword(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.passwords[email]; !ok {
		return account.ErrNotFound
	}
	f.resets["reset-"+email] = email
	return nil
}

func (f *fakeAccounts) ResetPassword(_ context.Context, token, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	email, ok := f.resets[token]
	if !ok {
		return account.ErrResetTokenInvalid
	}
	delete(f.resets, token)
	f.passwords[email] = password
	return nil
}

func (f *fakeAccounts) Profile(context.Context) (*account.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.profile
	return &p, nil
}

func (f *fakeAccounts) UpdateProfile(_ context.Context, u account.ProfileUpdate) (*account.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profile.FirstName, f.profile.LastName, f.profile.Phone = u.FirstName, u.LastName, u.Phone
	f.profile.ZodiacSign, f.profile.MoonPhase = u.ZodiacSign, u.MoonPhase
	p := f.profile
	return &p, nil
}

func (f *fakeAccounts) ChangeEmail(_ context.Context, current, next string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if current != f.email {
		return account.ErrWrongPassword
	}
	f.passwords[next] = f.passwords[current]
	delete(f.passwords, current)
	f.email = next
	return nil
}

func (f *fakeAccounts) ChangePassword(_ context.Context, current, next string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.passwords[f.email] != current {
		return account.ErrWrongPassword
	}
	f.passwords[f.email] = next
	return nil
}

// fakeCarts is a cart service. Carts created after login are the user's
// cart, which absorbs merged anonymous carts.
type fakeCarts struct {
	mu       sync.Mutex
	products *fakeProducts
	carts    map[string]*cart.Cart
	seq      int
	loggedIn atomic.Bool
	mergeErr error
	merged   []string
}

const userCartID = "user-cart"

func newFakeCarts(products *fakeProducts) *fakeCarts {
	return &fakeCarts{products: products, carts: make(map[string]*cart.Cart)}
}

func (f *fakeCarts) Create(context.Context) (*cart.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loggedIn.Load() {
		return f.clone(f.userCart()), nil
	}
	f.seq++
	c := &cart.Cart{ID: fmt.Sprintf("anon-%d", f.seq)}
	f.carts[c.ID] = c
	return f.clone(c), nil
}

func (f *fakeCarts) userCart() *cart.Cart {
	c, ok := f.carts[userCartID]
	if !ok {
		c = &cart.Cart{ID: userCartID}
		f.carts[userCartID] = c
	}
	return c
}

func (f *fakeCarts) Get(_ context.Context, id string) (*cart.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[id]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return f.clone(c), nil
}

func (f *fakeCarts) AddItem(ctx context.Context, cartID, productID string, quantity int) error {
	p, err := f.products.Get(ctx, productID)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[cartID]
	if !ok {
		return cart.ErrNotFound
	}
	add(c, *p, quantity)
	return nil
}

func (f *fakeCarts) UpdateItem(_ context.Context, cartID, productID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[cartID]
	if !ok {
		return cart.ErrNotFound
	}
	for i := range c.Items {
		if c.Items[i].Product.ID == productID {
			c.Items[i].Quantity = quantity
			c.Items[i].Subtotal = c.Items[i].LineTotal()
			return nil
		}
	}
	return cart.ErrItemNotFound
}

func (f *fakeCarts) RemoveItem(_ context.Context, cartID, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[cartID]
	if !ok {
		return cart.ErrNotFound
	}
	n := len(c.Items)
	c.Items = slices.DeleteFunc(c.Items, func(it cart.Item) bool { return it.Product.ID == productID })
	if len(c.Items) == n {
		return cart.ErrItemNotFound
	}
	return nil
}

func (f *fakeCarts) Clear(_ context.Context, cartID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[cartID]
	if !ok {
		return cart.ErrNotFound
	}
	c.Items = nil
	return nil
}

func (f *fakeCarts) Merge(_ context.Context, anonID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.merged = append(f.merged, anonID)
	if f.mergeErr != nil {
		return f.mergeErr
	}
	anon, ok := f.carts[anonID]
	if !ok {
		return cart.ErrNotFound
	}
	user := f.userCart()
	for _, it := range anon.Items {
		add(user, it.Product, it.Quantity)
	}
	delete(f.carts, anonID)
	return nil
}

func (f *fakeCarts) clone(c *cart.Cart) *cart.Cart {
	cp := *c
	cp.Items = slices.Clone(c.Items)
	return &cp
}

func add(c *cart.Cart, p product.Product, quantity int) {
	for i := range c.Items {
		if c.Items[i].Product.ID == p.ID {
			c.Items[i].Quantity += quantity
			c.Items[i].Subtotal = c.Items[i].LineTotal()
			return
		}
	}
	it := cart.Item{Product: p, Quantity: quantity}
	it.Subtotal = it.LineTotal()
	c.Items = append(c.Items, it)
}

type fakeAuth struct {
	carts *fakeCarts
}

func (a fakeAuth) Login(_ context.Context, login, password string) (*auth.Token, error) {
	if password != "secret" {
		return nil, auth.ErrUnauthorized
	}
	tok := &auth.Token{AccessToken: "opaque-" + login, TokenType: "Bearer", ExpiresIn: time.Hour}
	if login == "admin" {
		tok.Roles = []string{"ROLE_ADMIN"}
	}
	a.carts.loggedIn.Store(true)
	return tok, nil
}

type fakeOrders struct {
	mu     sync.Mutex
	orders []order.Details
}

func (f *fakeOrders) Create(_ context.Context, cartID, shippingMethod string) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.orders) + 1
	o := order.Order{
		ID:             fmt.Sprintf("o-%d", n),
		Code:           fmt.Sprintf("ORD-%04d", n),
		Status:         order.StatusPending,
		Total:          decimal.NewFromInt(255),
		ShippingMethod: shippingMethod,
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.orders = append(f.orders, order.Details{Order: o, Customer: cartID})
	return &o, nil
}

func (f *fakeOrders) List(context.Context) ([]order.Details, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.orders), nil
}

func (f *fakeOrders) Get(_ context.Context, id string) (*order.Details, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, order.ErrNotFound
}

type fakePayments struct {
	declined atomic.Bool
}

func (f *fakePayments) Process(_ context.Context, req payment.Request) (*payment.Receipt, error) {
	if f.declined.Load() {
		return nil, payment.ErrDeclined
	}
	return &payment.Receipt{
		ID:       "r-" + req.OrderID,
		Type:     req.ReceiptType,
		TaxID:    req.CustomerID,
		Name:     req.CustomerName,
		IssuedAt: time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC),
		Amount:   req.Amount,
		Series:   "B001",
		Number:   "000123",
		Payment: payment.Payment{
			ID:      "pay-" + req.OrderID,
			OrderID: req.OrderID,
			Amount:  req.Amount,
			Method:  req.Method,
			Status:  payment.StatusCompleted,
		},
	}, nil
}
