// Command catalog-snapshot pages through the product catalog concurrently,
// writes a gzip JSONL snapshot and optionally warms the Redis product cache.
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/qorikusi/storefront/internal/backend"
	"github.com/qorikusi/storefront/internal/storage/redis"
)

type options struct {
	catalogURL string
	output     string
	redisURL   string
	category   string
	pageSize   int
	workers    int
	rps        float64
	timeout    time.Duration
	cacheTTL   time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.catalogURL, "catalog-url", os.Getenv("CATALOG_URL"), "product service base URL (or CATALOG_URL env)")
	flag.StringVar(&opts.output, "out", "catalog.jsonl.gz", "snapshot file")
	flag.StringVar(&opts.redisURL, "redis-url", os.Getenv("REDIS_URL"), "warm the product cache in this Redis (or REDIS_URL env)")
	flag.StringVar(&opts.category, "category", "", "only snapshot this category")
	flag.IntVar(&opts.pageSize, "page-size", 50, "products per page")
	flag.IntVar(&opts.workers, "workers", 4, "concurrent page fetches")
	flag.Float64Var(&opts.rps, "rps", 10, "max page requests per second")
	flag.DurationVar(&opts.timeout, "timeout", 10*time.Second, "timeout of one page request")
	flag.DurationVar(&opts.cacheTTL, "cache-ttl", 5*time.Minute, "TTL of warmed cache entries")
	flag.Parse()

	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		return run(ctx, lg, opts)
	})
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	if opts.catalogURL == "" {
		return errors.New("catalog URL is required: set --catalog-url or CATALOG_URL")
	}
	client, err := backend.New(opts.catalogURL, backend.Options{Timeout: opts.timeout, Logger: lg.Named("backend")})
	if err != nil {
		return errors.Wrap(err, "catalog client")
	}

	limit := rate.Inf
	if opts.rps > 0 {
		limit = rate.Limit(opts.rps)
	}
	s := &snapshotter{
		source:   backend.NewCatalogService(client),
		limiter:  rate.NewLimiter(limit, 1),
		workers:  opts.workers,
		pageSize: opts.pageSize,
		category: opts.category,
		lg:       lg,
	}
	if opts.redisURL != "" {
		rdb, err := redis.Connect(ctx, opts.redisURL)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = rdb.Close() }()
		s.cache = redis.NewCache(rdb, opts.cacheTTL)
	}

	// Write next to the target and rename, so readers never see a partial file.
	tmp, err := os.CreateTemp(filepath.Dir(opts.output), ".catalog-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	start := time.Now()
	n, err := s.Run(ctx, tmp)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = errors.Wrap(closeErr, "close temp file")
	}
	if err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), opts.output); err != nil {
		return errors.Wrap(err, "rename snapshot")
	}

	lg.Info("Snapshot written",
		zap.String("file", opts.output),
		zap.Int("products", n),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}
