package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrCacheMiss is returned by a Cache that holds no entry for the key.
	ErrCacheMiss = errors.New("cache miss")
)

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Image       string          `json:"image,omitempty"`
}

// InStock reports whether at least one unit can be ordered.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// Query selects one page of the catalog. Pages are zero-based.
type Query struct {
	Category string
	Page     int
	Size     int
}

// Page is one page of catalog results.
type Page struct {
	Items      []Product `json:"items"`
	TotalItems int       `json:"totalItems"`
	TotalPages int       `json:"totalPages"`
	Number     int       `json:"number"`
	Size       int       `json:"size"`
}

// Draft carries the editable fields of a product for admin create and update.
type Draft struct {
	CategoryID  int
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Image       string
}

// Source is the remote product service.
type Source interface {
	List(ctx context.Context, q Query) (*Page, error)
	Get(ctx context.Context, id string) (*Product, error)
	Create(ctx context.Context, d Draft) (*Product, error)
	Update(ctx context.Context, id string, d Draft) (*Product, error)
	Delete(ctx context.Context, id string) error
}

// Cache stores products and catalog pages between requests.
type Cache interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	SetProduct(ctx context.Context, p Product) error
	DeleteProduct(ctx context.Context, id string) error
	GetPage(ctx context.Context, q Query) (*Page, error)
	SetPage(ctx context.Context, q Query, page *Page) error
	// PatchPages replaces p in every cached page that contains it.
	PatchPages(ctx context.Context, p Product) error
	// InvalidatePages drops every cached page.
	InvalidatePages(ctx context.Context) error
}
