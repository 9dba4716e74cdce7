package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/qorikusi/storefront/internal/domain/kv"
)

// MergeWarning reports a merge that did not fully succeed. It never blocks
// login: the anonymous identity is discarded either way.
type MergeWarning struct {
	AnonymousID string
	Err         error
}

func (w *MergeWarning) Error() string {
	if w.AnonymousID == "" {
		return fmt.Sprintf("load user cart: %v", w.Err)
	}
	return fmt.Sprintf("merge cart %s: %v", w.AnonymousID, w.Err)
}

func (w *MergeWarning) Unwrap() error {
	return w.Err
}

// Is makes every MergeWarning match ErrMergeFailed.
func (w *MergeWarning) Is(target error) bool {
	return target == ErrMergeFailed
}

// Merger folds the anonymous cart into the authenticated user's cart once a
// login completes, then hands the user's cart to the Store.
type Merger struct {
	backend Backend
	kv      kv.Store
	store   *Store
	lg      *zap.Logger

	mu sync.Mutex
}

// NewMerger creates a Merger operating on store.
func NewMerger(backend Backend, store kv.Store, cartStore *Store, lg *zap.Logger) *Merger {
	return &Merger{
		backend: backend,
		kv:      store,
		store:   cartStore,
		lg:      lg,
	}
}

// Merge runs the login-time reconciliation. The backend must already see the
// request as authenticated. A non-nil result is a *MergeWarning (or a
// context error) and is advisory only.
func (m *Merger) Merge(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	unlock, err := m.store.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	var warning error

	anonID, err := m.kv.Get(ctx, IdentityKey)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		anonID = ""
	case err != nil:
		m.lg.Warn("Cannot read anonymous cart identity", zap.Error(err))
		anonID = ""
	}

	if anonID != "" {
		if err := m.backend.Merge(ctx, anonID); err != nil {
			m.lg.Warn("Cart merge failed, discarding anonymous cart",
				zap.String("cart_id", anonID),
				zap.Error(err),
			)
			warning = &MergeWarning{AnonymousID: anonID, Err: err}
		} else {
			m.lg.Info("Anonymous cart merged", zap.String("cart_id", anonID))
		}

		// Never retry with a stale id.
		if err := m.store.forgetLocked(ctx); err != nil {
			m.lg.Warn("Cannot discard anonymous cart identity", zap.Error(err))
		}
	}

	c, err := m.backend.Create(ctx)
	if err != nil {
		m.lg.Warn("Cannot obtain user cart", zap.Error(err))
		if err := m.store.forgetLocked(ctx); err != nil {
			m.lg.Warn("Cannot reset cart", zap.Error(err))
		}
		if warning == nil {
			warning = &MergeWarning{Err: err}
		}
		return warning
	}
	if err := m.store.adoptLocked(ctx, c); err != nil {
		m.lg.Warn("Cannot adopt user cart", zap.String("cart_id", c.ID), zap.Error(err))
		if warning == nil {
			warning = &MergeWarning{Err: err}
		}
	}
	return warning
}
