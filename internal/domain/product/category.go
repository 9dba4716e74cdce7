package product

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/qorikusi/storefront/internal/domain/form"
)

// ErrCategoryNotFound is returned when a category does not exist.
var ErrCategoryNotFound = errors.New("category not found")

// Category groups products. Products carry the category name.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// CategoryDraft carries the editable fields of a category.
type CategoryDraft struct {
	Name string `json:"name" validate:"required,min=3,max=100"`
}

// CategorySource is the admin category API of the product service.
type CategorySource interface {
	Categories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, name string) (*Category, error)
	UpdateCategory(ctx context.Context, id int, name string) (*Category, error)
	DeleteCategory(ctx context.Context, id int) error
}

// Categories administers categories. Renaming or deleting one drops the
// cached catalog pages, whose products embed the category name.
type Categories struct {
	source   CategorySource
	cache    Cache
	validate *form.Validator
	lg       *zap.Logger
}

// NewCategories creates a Categories service. cache may be nil.
func NewCategories(source CategorySource, cache Cache, lg *zap.Logger) *Categories {
	return &Categories{source: source, cache: cache, validate: form.New(), lg: lg}
}

// List returns every category.
func (c *Categories) List(ctx context.Context) ([]Category, error) {
	out, err := c.source.Categories(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	return out, nil
}

// Create adds a category.
func (c *Categories) Create(ctx context.Context, d CategoryDraft) (*Category, error) {
	d.Name = strings.TrimSpace(d.Name)
	if err := c.validate.Struct(d); err != nil {
		return nil, err
	}
	cat, err := c.source.CreateCategory(ctx, d.Name)
	if err != nil {
		return nil, errors.Wrap(err, "create category")
	}
	return cat, nil
}

// Rename changes the name of category id.
func (c *Categories) Rename(ctx context.Context, id int, d CategoryDraft) (*Category, error) {
	d.Name = strings.TrimSpace(d.Name)
	if err := c.validate.Struct(d); err != nil {
		return nil, err
	}
	cat, err := c.source.UpdateCategory(ctx, id, d.Name)
	if err != nil {
		return nil, errors.Wrapf(err, "update category %d", id)
	}
	c.invalidate(ctx)
	return cat, nil
}

// Delete removes category id.
func (c *Categories) Delete(ctx context.Context, id int) error {
	if err := c.source.DeleteCategory(ctx, id); err != nil {
		return errors.Wrapf(err, "delete category %d", id)
	}
	c.invalidate(ctx)
	return nil
}

func (c *Categories) invalidate(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.InvalidatePages(ctx); err != nil {
		c.lg.Warn("Cache invalidation failed", zap.Error(err))
	}
}
