// Package session holds the per-browser-session object graph of the
// gateway: storage scope, cart store, merge coordinator, login state and
// checkout.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/qorikusi/storefront/internal/backend"
	"github.com/qorikusi/storefront/internal/domain/auth"
	"github.com/qorikusi/storefront/internal/domain/cart"
	"github.com/qorikusi/storefront/internal/domain/checkout"
	"github.com/qorikusi/storefront/internal/domain/kv"
	"github.com/qorikusi/storefront/internal/domain/order"
	"github.com/qorikusi/storefront/internal/domain/payment"
)

// ErrInvalidID is returned for session ids that are not UUIDs.
var ErrInvalidID = errors.New("invalid session id")

// Backends are the remote services shared by all sessions.
type Backends struct {
	Auth     auth.Backend
	Cart     cart.Backend
	Orders   order.Backend
	Payments payment.Backend
}

// Config tunes session behaviour.
type Config struct {
	// IdleTTL is how long an unused session stays in memory. Persisted
	// values outlive eviction.
	IdleTTL     time.Duration
	Pricing     cart.Pricing
	ShippingFee decimal.Decimal
}

// Session is the state one browser used to hold.
type Session struct {
	ID       string
	Cart     *cart.Store
	Auth     *auth.Session
	Checkout *checkout.Orchestrator

	lastSeen atomic.Int64
}

// Context returns ctx carrying the session's token for backend calls.
func (s *Session) Context(ctx context.Context) context.Context {
	return backend.WithTokenSource(ctx, s.Auth)
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastSeen.Load()))
}

// Manager builds sessions lazily and evicts idle ones.
type Manager struct {
	store    kv.Store
	backends Backends
	archive  payment.Archive
	tel      *checkout.Telemetry
	cfg      Config
	lg       *zap.Logger
	now      func() time.Time

	group    singleflight.Group
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a Manager. store is shared by every session; each
// session sees it through its own key prefix.
func NewManager(store kv.Store, backends Backends, archive payment.Archive, tel *checkout.Telemetry, cfg Config, lg *zap.Logger) *Manager {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.Pricing.MaxQuantity <= 0 {
		cfg.Pricing = cart.DefaultPricing()
	}
	return &Manager{
		store:    store,
		backends: backends,
		archive:  archive,
		tel:      tel,
		cfg:      cfg,
		lg:       lg,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// Get returns the session for id, restoring its persisted state on first
// use. Concurrent first requests for the same id share one restore.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.touch(m.now())
		return s, nil
	}

	v, err, _ := m.group.Do(id, func() (any, error) {
		m.mu.RLock()
		s, ok := m.sessions[id]
		m.mu.RUnlock()
		if ok {
			return s, nil
		}

		s = m.build(id)
		// A session whose cart could not be read is not cached: its first
		// write would otherwise replace the persisted cart identity.
		if err := s.Cart.Load(s.Context(ctx)); err != nil {
			return nil, errors.Wrap(err, "restore cart")
		}
		s.touch(m.now())

		m.mu.Lock()
		m.sessions[id] = s
		m.mu.Unlock()
		m.lg.Debug("Session restored", zap.String("session_id", id))
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (m *Manager) build(id string) *Session {
	lg := m.lg.With(zap.String("session_id", id))
	scope := kv.Prefixed(m.store, kv.SessionPrefix(id))

	store := cart.NewStore(m.backends.Cart, scope, m.cfg.Pricing, lg.Named("cart"))
	merger := cart.NewMerger(m.backends.Cart, scope, store, lg.Named("merge"))
	authSession := auth.NewSession(m.backends.Auth, scope, merger, store, lg.Named("auth"))

	return &Session{
		ID:   id,
		Cart: store,
		Auth: authSession,
		Checkout: checkout.New(checkout.Deps{
			Auth:      authSession,
			Cart:      store,
			Orders:    m.backends.Orders,
			Payments:  m.backends.Payments,
			Archive:   m.archive,
			Telemetry: m.tel,
			Logger:    lg.Named("checkout"),
		}, m.cfg.ShippingFee),
	}
}

// Len returns the number of sessions held in memory.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Evict drops sessions idle for longer than the configured TTL and returns
// how many were dropped.
func (m *Manager) Evict() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.idleSince(now) > m.cfg.IdleTTL {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Run evicts idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Evict(); n > 0 {
				m.lg.Debug("Evicted idle sessions", zap.Int("count", n), zap.Int("remaining", m.Len()))
			}
		}
	}
}
