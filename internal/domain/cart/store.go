package cart

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/qorikusi/storefront/internal/domain/kv"
	"github.com/qorikusi/storefront/internal/domain/product"
)

// Store owns the session's in-memory cart. Every mutation is sent to the
// Backend and followed by a full re-fetch; mutations are serialized so the
// emitted state always reflects the last acknowledged write.
type Store struct {
	backend Backend
	kv      kv.Store
	pricing Pricing
	lg      *zap.Logger

	// sem is a one-slot semaphore held across mutation and re-fetch.
	sem chan struct{}

	mu      sync.RWMutex
	cart    Cart
	stock   map[string]int
	subs    map[uint64]chan Cart
	nextSub uint64
}

// NewStore creates an empty Store. Call Load to restore a persisted cart.
func NewStore(backend Backend, store kv.Store, pricing Pricing, lg *zap.Logger) *Store {
	return &Store{
		backend: backend,
		kv:      store,
		pricing: pricing,
		lg:      lg,
		sem:     make(chan struct{}, 1),
		stock:   make(map[string]int),
		subs:    make(map[uint64]chan Cart),
	}
}

// lock waits for exclusive mutation rights or for ctx to end.
func (s *Store) lock(ctx context.Context) (func(), error) {
	select {
	case s.sem <- struct{}{}:
		return func() { <-s.sem }, nil
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "wait for cart")
	}
}

// Load restores the persisted cart identity and fetches its contents. A cart
// the server no longer knows is discarded.
func (s *Store) Load(ctx context.Context) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	id, err := s.kv.Get(ctx, IdentityKey)
	if errors.Is(err, kv.ErrNotFound) {
		s.replace(Cart{})
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "read cart identity")
	}
	return s.refresh(ctx, id)
}

// AddItem adds quantity units of p, creating the server cart on first use.
// The resulting line quantity is clamped to min(stock, MaxQuantity); a line
// already above that limit is shrunk to it.
func (s *Store) AddItem(ctx context.Context, p product.Product, quantity int) error {
	if !p.InStock() {
		return ErrOutOfStock
	}

	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	limit := s.pricing.limit(p.Stock)
	current := 0
	if it, ok := s.Snapshot().Find(p.ID); ok {
		current = it.Quantity
	}
	s.rememberStock(p)

	if current > limit {
		id := s.ID()
		err := s.backend.UpdateItem(ctx, id, p.ID, limit)
		switch {
		case err == nil:
			s.lg.Info("Line shrunk to stock", zap.String("cart_id", id), zap.String("product_id", p.ID), zap.Int("quantity", limit))
			return s.refresh(ctx, id)
		case !errors.Is(err, ErrNotFound):
			return errors.Wrapf(err, "update product %s", p.ID)
		}
		if err := s.discard(ctx, id); err != nil {
			return err
		}
		s.rememberStock(p)
		current = 0
	}

	target := min(current+clamp(quantity, 1, limit), limit)
	delta := target - current
	if delta <= 0 {
		return nil
	}

	id, err := s.ensureIdentity(ctx)
	if err != nil {
		return err
	}
	err = s.backend.AddItem(ctx, id, p.ID, delta)
	if errors.Is(err, ErrNotFound) {
		// The server cart is gone; start a new one holding only this line.
		if err := s.discard(ctx, id); err != nil {
			return err
		}
		s.rememberStock(p)
		delta = clamp(quantity, 1, limit)
		if id, err = s.ensureIdentity(ctx); err != nil {
			return err
		}
		err = s.backend.AddItem(ctx, id, p.ID, delta)
	}
	if err != nil {
		return errors.Wrapf(err, "add product %s", p.ID)
	}
	s.lg.Debug("Item added", zap.String("cart_id", id), zap.String("product_id", p.ID), zap.Int("quantity", delta))
	return s.refresh(ctx, id)
}

// SetQuantity sets the quantity of an existing line, clamped to
// [1, min(stock, MaxQuantity)].
func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	c := s.Snapshot()
	it, ok := c.Find(productID)
	if !ok {
		return ErrItemNotFound
	}
	q := clamp(quantity, 1, s.pricing.limit(it.Product.Stock))
	if q == it.Quantity {
		return nil
	}

	err = s.backend.UpdateItem(ctx, c.ID, productID, q)
	if errors.Is(err, ErrNotFound) {
		if err := s.discard(ctx, c.ID); err != nil {
			return err
		}
		return ErrItemNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "update product %s", productID)
	}
	return s.refresh(ctx, c.ID)
}

// RemoveItem drops a line. Removing an absent line is a no-op.
func (s *Store) RemoveItem(ctx context.Context, productID string) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	c := s.Snapshot()
	if _, ok := c.Find(productID); !ok {
		return nil
	}

	err = s.backend.RemoveItem(ctx, c.ID, productID)
	switch {
	case errors.Is(err, ErrNotFound):
		return s.discard(ctx, c.ID)
	case err != nil && !errors.Is(err, ErrItemNotFound):
		return errors.Wrapf(err, "remove product %s", productID)
	}
	return s.refresh(ctx, c.ID)
}

// Clear empties the server cart and forgets its identity.
func (s *Store) Clear(ctx context.Context) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	id := s.ID()
	if id != "" {
		if err := s.backend.Clear(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			return errors.Wrap(err, "clear cart")
		}
	}
	return s.forgetLocked(ctx)
}

// Forget drops the local cart and its persisted identity without contacting
// the server.
func (s *Store) Forget(ctx context.Context) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	return s.forgetLocked(ctx)
}

// Adopt binds the store to an existing server cart and loads it.
func (s *Store) Adopt(ctx context.Context, cartID string) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.kv.Set(ctx, IdentityKey, cartID); err != nil {
		return errors.Wrap(err, "persist cart identity")
	}
	return s.refresh(ctx, cartID)
}

// Snapshot returns a copy of the current cart.
func (s *Store) Snapshot() Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.clone()
}

// ID returns the current cart identity, or "" when there is none.
func (s *Store) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.ID
}

// Count returns the number of units in the cart.
func (s *Store) Count() int {
	return s.Snapshot().Count()
}

// Quantity returns the quantity of productID in the cart, or zero.
func (s *Store) Quantity(productID string) int {
	it, _ := s.Snapshot().Find(productID)
	return it.Quantity
}

// Contains reports whether productID is in the cart.
func (s *Store) Contains(productID string) bool {
	_, ok := s.Snapshot().Find(productID)
	return ok
}

// Subtotal returns the sum of price times quantity over all lines.
func (s *Store) Subtotal() decimal.Decimal {
	return s.Snapshot().Subtotal()
}

// Total returns the subtotal plus shippingFee, waived from the free-shipping
// threshold on.
func (s *Store) Total(shippingFee decimal.Decimal) decimal.Decimal {
	return s.pricing.Total(s.Subtotal(), shippingFee)
}

// Pricing returns the store's pricing rules.
func (s *Store) Pricing() Pricing {
	return s.pricing
}

// Subscribe returns a channel that yields the current cart immediately and
// every later state. A slow reader only observes the newest state. The
// returned func cancels the subscription and closes the channel.
func (s *Store) Subscribe() (<-chan Cart, func()) {
	ch := make(chan Cart, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.cart.clone()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			close(ch)
			s.mu.Unlock()
		})
	}
}

// ensureIdentity returns the cart id, creating a server cart if needed.
// Must be called with the semaphore held.
func (s *Store) ensureIdentity(ctx context.Context) (string, error) {
	if id := s.ID(); id != "" {
		return id, nil
	}

	c, err := s.backend.Create(ctx)
	if err != nil {
		return "", errors.Wrap(err, "create cart")
	}
	if err := s.kv.Set(ctx, IdentityKey, c.ID); err != nil {
		return "", errors.Wrap(err, "persist cart identity")
	}
	s.lg.Info("Cart created", zap.String("cart_id", c.ID))

	s.mu.Lock()
	s.cart.ID = c.ID
	s.mu.Unlock()
	return c.ID, nil
}

// refresh re-fetches the cart and publishes it. Must be called with the
// semaphore held.
func (s *Store) refresh(ctx context.Context, id string) error {
	c, err := s.backend.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return s.discard(ctx, id)
	}
	if err != nil {
		return errors.Wrap(err, "fetch cart")
	}
	if c.ID == "" {
		c.ID = id
	}
	s.replace(*c)
	return nil
}

// discard drops an identity the server no longer knows. Must be called with
// the semaphore held.
func (s *Store) discard(ctx context.Context, id string) error {
	s.lg.Info("Stored cart no longer exists, discarding", zap.String("cart_id", id))
	return s.forgetLocked(ctx)
}

func (s *Store) rememberStock(p product.Product) {
	s.mu.Lock()
	s.stock[p.ID] = p.Stock
	s.mu.Unlock()
}

// adoptLocked binds the store to c, which the caller already fetched. Must
// be called with the semaphore held.
func (s *Store) adoptLocked(ctx context.Context, c *Cart) error {
	if err := s.kv.Set(ctx, IdentityKey, c.ID); err != nil {
		return errors.Wrap(err, "persist cart identity")
	}
	s.replace(*c)
	return nil
}

// forgetLocked must be called with the semaphore held.
func (s *Store) forgetLocked(ctx context.Context) error {
	err := s.kv.Delete(ctx, IdentityKey)

	s.mu.Lock()
	clear(s.stock)
	s.mu.Unlock()
	s.replace(Cart{})

	if err != nil {
		return errors.Wrap(err, "delete cart identity")
	}
	return nil
}

// replace installs c as the current state and notifies subscribers.
func (s *Store) replace(c Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reported := decimal.Zero
	for i := range c.Items {
		it := &c.Items[i]
		if stock, ok := s.stock[it.Product.ID]; ok && it.Product.Stock == 0 {
			it.Product.Stock = stock
		}
		reported = reported.Add(it.Subtotal)
	}
	if computed := c.Subtotal(); len(c.Items) > 0 && !computed.Equal(reported) {
		s.lg.Warn("Cart subtotal drift",
			zap.String("cart_id", c.ID),
			zap.String("computed", computed.String()),
			zap.String("reported", reported.String()),
		)
	}

	s.cart = c
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- c.clone():
		default:
		}
	}
}
