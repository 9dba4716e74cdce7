package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/qorikusi/storefront/internal/domain/payment"
)

var _ payment.Archive = (*Archive)(nil)

// Archive is a payment.Archive backed by a map of per-owner slices.
type Archive struct {
	mu       sync.RWMutex
	receipts map[string][]payment.Receipt
}

// NewArchive creates an empty Archive.
func NewArchive() *Archive {
	return &Archive{receipts: make(map[string][]payment.Receipt)}
}

func (a *Archive) Append(_ context.Context, owner string, r payment.Receipt) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.receipts[owner] = append(a.receipts[owner], r)
	return nil
}

// List returns a copy of the owner's receipts, newest first.
func (a *Archive) List(_ context.Context, owner string) ([]payment.Receipt, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := slices.Clone(a.receipts[owner])
	slices.Reverse(out)
	return out, nil
}
