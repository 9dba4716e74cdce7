package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/qorikusi/storefront/internal/domain/product"
)

const (
	productPrefix = "catalog:product:"
	pagePrefix    = "catalog:page:"
	scanBatch     = 100
)

var _ product.Cache = (*Cache)(nil)

// Cache is a product.Cache on Redis. Products and pages are stored as JSON
// under separate key spaces so pages can be scanned and patched.
type Cache struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewCache creates a Cache whose entries expire after ttl.
func NewCache(client goredis.UniversalClient, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func productKey(id string) string {
	return productPrefix + id
}

func pageKey(q product.Query) string {
	return fmt.Sprintf("%s%s:%d:%d", pagePrefix, q.Category, q.Page, q.Size)
}

func (c *Cache) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	var p product.Product
	if err := c.get(ctx, productKey(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Cache) SetProduct(ctx context.Context, p product.Product) error {
	return c.set(ctx, productKey(p.ID), p, c.ttl)
}

func (c *Cache) DeleteProduct(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, productKey(id)).Err(); err != nil {
		return errors.Wrapf(err, "delete product %s", id)
	}
	return nil
}

func (c *Cache) GetPage(ctx context.Context, q product.Query) (*product.Page, error) {
	var page product.Page
	if err := c.get(ctx, pageKey(q), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Cache) SetPage(ctx context.Context, q product.Query, page *product.Page) error {
	return c.set(ctx, pageKey(q), page, c.ttl)
}

// PatchPages rewrites every cached page holding p, keeping each page's
// remaining TTL.
func (c *Cache) PatchPages(ctx context.Context, p product.Product) error {
	return c.scan(ctx, pagePrefix+"*", func(keys []string) error {
		for _, key := range keys {
			var page product.Page
			err := c.get(ctx, key, &page)
			if errors.Is(err, product.ErrCacheMiss) {
				continue
			}
			if err != nil {
				return err
			}
			if !replaceProduct(page.Items, p) {
				continue
			}
			ttl, err := c.client.PTTL(ctx, key).Result()
			if err != nil {
				return errors.Wrapf(err, "ttl %s", key)
			}
			if ttl <= 0 {
				ttl = goredis.KeepTTL
			}
			if err := c.set(ctx, key, page, ttl); err != nil {
				return err
			}
		}
		return nil
	})
}

// InvalidatePages drops every cached page.
func (c *Cache) InvalidatePages(ctx context.Context) error {
	return c.scan(ctx, pagePrefix+"*", func(keys []string) error {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return errors.Wrap(err, "delete pages")
		}
		return nil
	})
}

func replaceProduct(items []product.Product, p product.Product) bool {
	found := false
	for i := range items {
		if items[i].ID == p.ID {
			items[i] = p
			found = true
		}
	}
	return found
}

func (c *Cache) scan(ctx context.Context, match string, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return errors.Wrapf(err, "scan %s", match)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (c *Cache) get(ctx context.Context, key string, v any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return product.ErrCacheMiss
	}
	if err != nil {
		return errors.Wrapf(err, "redis get %s", key)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "unmarshal %s", key)
	}
	return nil
}

func (c *Cache) set(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", key)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return errors.Wrapf(err, "redis set %s", key)
	}
	return nil
}
