// Package cart holds the session's shopping cart: a store that mirrors the
// server-side cart after every acknowledged write, and the coordinator that
// folds an anonymous cart into the user's cart at login.
package cart

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/qorikusi/storefront/internal/domain/product"
)

// IdentityKey is the storage key holding the server-issued cart id.
const IdentityKey = "uuidCarrito"

var (
	// ErrOutOfStock is returned when adding a product with no stock left.
	ErrOutOfStock = errors.New("product out of stock")
	// ErrItemNotFound is returned when a line item is not in the cart.
	ErrItemNotFound = errors.New("item not in cart")
	// ErrNotFound is returned by a Backend when the cart id is unknown.
	ErrNotFound = errors.New("cart not found")
	// ErrMergeFailed marks a login-time merge that did not fully succeed.
	ErrMergeFailed = errors.New("cart merge failed")
)

// Item is one cart line. Product is a snapshot taken when the line was last
// fetched; a Stock of zero on a line means the stock is unknown.
type Item struct {
	Product  product.Product `json:"product"`
	Quantity int             `json:"quantity"`
	// Subtotal is the line subtotal reported by the server.
	Subtotal decimal.Decimal `json:"subtotal"`
}

// LineTotal returns price times quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the client view of a server-owned cart.
type Cart struct {
	ID    string `json:"id,omitempty"`
	Items []Item `json:"items"`
	// Total is the server-reported total.
	Total decimal.Decimal `json:"total"`
}

// Empty reports whether the cart has no lines.
func (c Cart) Empty() bool {
	return len(c.Items) == 0
}

// Subtotal returns the sum of price times quantity over all lines.
func (c Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range c.Items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// Count returns the total number of units across lines.
func (c Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Find returns the line for productID.
func (c Cart) Find(productID string) (Item, bool) {
	for _, it := range c.Items {
		if it.Product.ID == productID {
			return it, true
		}
	}
	return Item{}, false
}

// Fingerprint identifies the cart contents. Two carts with the same id and
// the same lines share a fingerprint regardless of line order.
func (c Cart) Fingerprint() string {
	lines := make([]string, len(c.Items))
	for i, it := range c.Items {
		lines[i] = it.Product.ID + "x" + strconv.Itoa(it.Quantity)
	}
	slices.Sort(lines)
	return c.ID + "|" + strings.Join(lines, ",")
}

func (c Cart) clone() Cart {
	c.Items = slices.Clone(c.Items)
	return c
}

// Backend is the remote cart service. Mutations return no state; callers
// re-fetch the cart after each acknowledged write.
type Backend interface {
	// Create returns a new anonymous cart, or the caller's cart when the
	// request is authenticated.
	Create(ctx context.Context) (*Cart, error)
	Get(ctx context.Context, cartID string) (*Cart, error)
	AddItem(ctx context.Context, cartID, productID string, quantity int) error
	UpdateItem(ctx context.Context, cartID, productID string, quantity int) error
	RemoveItem(ctx context.Context, cartID, productID string) error
	Clear(ctx context.Context, cartID string) error
	// Merge folds the anonymous cart into the authenticated user's cart.
	Merge(ctx context.Context, anonymousID string) error
}

// Pricing holds the configured shipping and quantity rules.
type Pricing struct {
	FreeShippingThreshold decimal.Decimal
	MaxQuantity           int
}

// DefaultPricing returns the storefront defaults: free shipping from 250 and
// at most 10 units per line.
func DefaultPricing() Pricing {
	return Pricing{
		FreeShippingThreshold: decimal.NewFromInt(250),
		MaxQuantity:           10,
	}
}

// ShippingFee returns fee, or zero when subtotal reaches the free-shipping
// threshold.
func (p Pricing) ShippingFee(subtotal, fee decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(p.FreeShippingThreshold) {
		return decimal.Zero
	}
	return fee
}

// Total returns subtotal plus the applicable shipping fee.
func (p Pricing) Total(subtotal, fee decimal.Decimal) decimal.Decimal {
	return subtotal.Add(p.ShippingFee(subtotal, fee))
}

// limit returns the highest quantity allowed for a line with the given stock.
// Unknown stock (zero or less) is bounded by MaxQuantity alone.
func (p Pricing) limit(stock int) int {
	if stock > 0 && stock < p.MaxQuantity {
		return stock
	}
	return p.MaxQuantity
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
