package product

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// DefaultPageSize is used when a query does not specify a page size.
const DefaultPageSize = 12

// Catalog serves products from the remote Source through an optional Cache.
// Admin mutations patch or invalidate exactly the affected cache entries
// instead of reloading the catalog.
type Catalog struct {
	source Source
	cache  Cache
	lg     *zap.Logger
}

// NewCatalog creates a Catalog. A nil cache disables caching.
func NewCatalog(source Source, cache Cache, lg *zap.Logger) *Catalog {
	return &Catalog{source: source, cache: cache, lg: lg}
}

// List returns one page of products, served from cache when possible.
func (c *Catalog) List(ctx context.Context, q Query) (*Page, error) {
	q = normalize(q)
	if c.cache != nil {
		page, err := c.cache.GetPage(ctx, q)
		if err == nil {
			return page, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			c.lg.Warn("Catalog cache read failed", zap.Error(err))
		}
	}

	page, err := c.source.List(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}

	if c.cache != nil {
		if err := c.cache.SetPage(ctx, q, page); err != nil {
			c.lg.Warn("Catalog cache write failed", zap.Error(err))
		}
	}
	return page, nil
}

// Get returns a single product, served from cache when possible.
func (c *Catalog) Get(ctx context.Context, id string) (*Product, error) {
	if c.cache != nil {
		p, err := c.cache.GetProduct(ctx, id)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			c.lg.Warn("Product cache read failed", zap.String("product_id", id), zap.Error(err))
		}
	}

	p, err := c.source.Get(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %s", id)
	}

	if c.cache != nil {
		if err := c.cache.SetProduct(ctx, *p); err != nil {
			c.lg.Warn("Product cache write failed", zap.String("product_id", id), zap.Error(err))
		}
	}
	return p, nil
}

// Fresh fetches a product from the source, skipping the cache, and writes
// the result back. Stock checks use it since cached stock may lag.
func (c *Catalog) Fresh(ctx context.Context, id string) (*Product, error) {
	p, err := c.source.Get(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %s", id)
	}
	c.patch(ctx, *p)
	return p, nil
}

// Sold drops the cached entries of products a completed order took stock
// from. Pages are dropped too since they carry stock.
func (c *Catalog) Sold(ctx context.Context, ids ...string) {
	if c.cache == nil || len(ids) == 0 {
		return
	}
	for _, id := range ids {
		c.warnOnErr("Product cache delete failed", c.cache.DeleteProduct(ctx, id))
	}
	c.warnOnErr("Cache invalidation failed", c.cache.InvalidatePages(ctx))
}

// Create adds a product. Cached pages are invalidated since pagination shifts.
func (c *Catalog) Create(ctx context.Context, d Draft) (*Product, error) {
	p, err := c.source.Create(ctx, d)
	if err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	if c.cache != nil {
		c.warnOnErr("Cache invalidation failed", c.cache.InvalidatePages(ctx))
		c.warnOnErr("Product cache write failed", c.cache.SetProduct(ctx, *p))
	}
	return p, nil
}

// Update edits a product and patches it in place wherever it is cached.
func (c *Catalog) Update(ctx context.Context, id string, d Draft) (*Product, error) {
	p, err := c.source.Update(ctx, id, d)
	if err != nil {
		return nil, errors.Wrapf(err, "update product %s", id)
	}
	c.patch(ctx, *p)
	return p, nil
}

// Delete removes a product and drops it and every cached page.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	if err := c.source.Delete(ctx, id); err != nil {
		return errors.Wrapf(err, "delete product %s", id)
	}
	if c.cache != nil {
		c.warnOnErr("Product cache delete failed", c.cache.DeleteProduct(ctx, id))
		c.warnOnErr("Cache invalidation failed", c.cache.InvalidatePages(ctx))
	}
	return nil
}

// patch replaces p wherever it is cached.
func (c *Catalog) patch(ctx context.Context, p Product) {
	if c.cache == nil {
		return
	}
	c.warnOnErr("Product cache write failed", c.cache.SetProduct(ctx, p))
	if err := c.cache.PatchPages(ctx, p); err != nil {
		// A stale page is worse than a miss.
		c.warnOnErr("Cache patch failed", err)
		c.warnOnErr("Cache invalidation failed", c.cache.InvalidatePages(ctx))
	}
}

func (c *Catalog) warnOnErr(msg string, err error) {
	if err != nil {
		c.lg.Warn(msg, zap.Error(err))
	}
}

func normalize(q Query) Query {
	if q.Page < 0 {
		q.Page = 0
	}
	if q.Size <= 0 {
		q.Size = DefaultPageSize
	}
	return q
}
