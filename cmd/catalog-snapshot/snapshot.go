package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/qorikusi/storefront/internal/domain/product"
)

// snapshotter pages through the catalog and writes every product as one
// JSON line into a gzip stream.
type snapshotter struct {
	source   product.Source
	cache    product.Cache // optional
	limiter  *rate.Limiter
	workers  int
	pageSize int
	category string
	lg       *zap.Logger
}

// Run fetches page 0 to learn the page count, fetches the remaining pages
// concurrently and writes products in catalog order. Products repeated
// across pages, which happens when the catalog changes mid-run, are written
// once.
func (s *snapshotter) Run(ctx context.Context, w io.Writer) (int, error) {
	first, err := s.fetch(ctx, 0)
	if err != nil {
		return 0, err
	}
	s.lg.Info("Catalog size",
		zap.Int("products", first.TotalItems),
		zap.Int("pages", first.TotalPages),
	)

	pages := make([]*product.Page, max(first.TotalPages, 1))
	pages[0] = first

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.workers, 1))
	for i := 1; i < len(pages); i++ {
		g.Go(func() error {
			p, err := s.fetch(gctx, i)
			if err != nil {
				return err
			}
			pages[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	gz := pgzip.NewWriter(w)
	enc := json.NewEncoder(gz)
	seen := make(map[string]struct{}, first.TotalItems)
	for _, page := range pages {
		for _, p := range page.Items {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			if err := enc.Encode(p); err != nil {
				return 0, errors.Wrapf(err, "write product %s", p.ID)
			}
		}
	}
	if err := gz.Close(); err != nil {
		return 0, errors.Wrap(err, "close gzip")
	}

	if s.cache != nil {
		s.warm(ctx, pages)
	}
	return len(seen), nil
}

func (s *snapshotter) query(page int) product.Query {
	return product.Query{Category: s.category, Page: page, Size: s.pageSize}
}

func (s *snapshotter) fetch(ctx context.Context, page int) (*product.Page, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "wait for rate limiter")
	}
	p, err := s.source.List(ctx, s.query(page))
	if err != nil {
		return nil, errors.Wrapf(err, "fetch page %d", page)
	}
	s.lg.Debug("Page fetched", zap.Int("page", page), zap.Int("products", len(p.Items)))
	return p, nil
}

// warm stores every page and product in the cache. Failures are logged
// only; the snapshot file is already complete.
func (s *snapshotter) warm(ctx context.Context, pages []*product.Page) {
	var failed int
	for i, page := range pages {
		if err := s.cache.SetPage(ctx, s.query(i), page); err != nil {
			failed++
			s.lg.Warn("Cannot cache page", zap.Int("page", i), zap.Error(err))
		}
		for _, p := range page.Items {
			if err := s.cache.SetProduct(ctx, p); err != nil {
				failed++
				s.lg.Warn("Cannot cache product", zap.String("product_id", p.ID), zap.Error(err))
			}
		}
	}
	s.lg.Info("Cache warmed", zap.Int("pages", len(pages)), zap.Int("failed", failed))
}
