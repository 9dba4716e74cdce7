// Package app wires the session gateway together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/qorikusi/storefront/internal/backend"
	"github.com/qorikusi/storefront/internal/domain/account"
	"github.com/qorikusi/storefront/internal/domain/checkout"
	"github.com/qorikusi/storefront/internal/domain/product"
	"github.com/qorikusi/storefront/internal/handler"
	"github.com/qorikusi/storefront/internal/session"
	"github.com/qorikusi/storefront/pkg/health"
	"github.com/qorikusi/storefront/pkg/httpmiddleware"
)

// services are the REST clients of the storefront microservices.
type services struct {
	auth     *backend.AuthService
	accounts *backend.AccountService
	catalog  *backend.CatalogService
	cart     *backend.CartService
	orders   *backend.OrderService
	payments *backend.PaymentService
}

func newServices(lg *zap.Logger, cfg BackendConfig) (*services, error) {
	client := func(name, url string) (*backend.Client, error) {
		c, err := backend.New(url, backend.Options{
			Timeout: cfg.Timeout,
			Logger:  lg.Named(name),
		})
		return c, errors.Wrapf(err, "%s service", name)
	}

	var s services
	c, err := client("auth", cfg.AuthURL)
	if err != nil {
		return nil, err
	}
	s.auth = backend.NewAuthService(c)
	customer, err := client("customer", cfg.CustomerURL)
	if err != nil {
		return nil, err
	}
	s.accounts = backend.NewAccountService(c, customer)
	if c, err = client("catalog", cfg.CatalogURL); err != nil {
		return nil, err
	}
	s.catalog = backend.NewCatalogService(c)
	if c, err = client("cart", cfg.CartURL); err != nil {
		return nil, err
	}
	s.cart = backend.NewCartService(c)
	if c, err = client("orders", cfg.OrdersURL); err != nil {
		return nil, err
	}
	s.orders = backend.NewOrderService(c)
	if c, err = client("payments", cfg.PaymentsURL); err != nil {
		return nil, err
	}
	s.payments = backend.NewPaymentService(c)
	return &s, nil
}

// gateway is the wired HTTP surface of the gateway with the components
// whose loops Run drives.
type gateway struct {
	handler  http.Handler
	health   *health.Health
	sessions *session.Manager
}

func newGateway(ctx context.Context, lg *zap.Logger, tp trace.TracerProvider, mp metric.MeterProvider, cfg *Config, st *stores, healthSvc *health.Health) (*gateway, error) {
	pricing, fee, err := cfg.Cart.Pricing()
	if err != nil {
		return nil, errors.Wrap(err, "cart config")
	}

	svc, err := newServices(lg.Named("backend"), cfg.Backend)
	if err != nil {
		return nil, err
	}
	healthSvc.Readiness(health.Check{
		Name: "catalog",
		Func: health.HTTPCheck(&http.Client{Timeout: cfg.Backend.Timeout}, cfg.Backend.CatalogURL+"/catalog/products?size=1"),
	})

	tel, err := checkout.NewTelemetry(tp, mp)
	if err != nil {
		return nil, errors.Wrap(err, "checkout telemetry")
	}

	sessions := session.NewManager(st.kv, session.Backends{
		Auth:     svc.auth,
		Cart:     svc.cart,
		Orders:   svc.orders,
		Payments: svc.payments,
	}, st.archive, tel, session.Config{
		IdleTTL:     cfg.Session.IdleTTL,
		Pricing:     pricing,
		ShippingFee: fee,
	}, lg.Named("session"))

	h := handler.New(handler.Config{
		Timeout:     cfg.Backend.RequestTimeout,
		ShippingFee: fee,
	}, handler.Services{
		Sessions:   sessions,
		Catalog:    product.NewCatalog(svc.catalog, st.cache, lg.Named("catalog")),
		Categories: product.NewCategories(svc.catalog, st.cache, lg.Named("categories")),
		Accounts:   account.NewService(svc.accounts, lg.Named("account")),
		Orders:     svc.orders,
		Receipts:   st.archive,
	})

	r := chi.NewRouter()
	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	r.Mount("/api", httpmiddleware.Wrap(h.Routes(),
		httpmiddleware.SessionCookie(httpmiddleware.SessionConfig{
			CookieName: cfg.Session.CookieName,
			MaxAge:     cfg.Session.CookieMaxAge,
			Secure:     cfg.Session.Secure,
			Valid:      func(id string) bool { return uuid.Validate(id) == nil },
			NewID:      session.NewID,
		}),
	))

	return &gateway{
		handler: otelhttp.NewHandler(httpmiddleware.Wrap(r,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.LogRequests(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, "Retry-After"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
		), "storefront",
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithMeterProvider(mp),
		),
		health:   healthSvc,
		sessions: sessions,
	}, nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the gateway.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
	)

	healthSvc := health.New()
	healthSvc.Liveness(health.Check{Name: "goroutines", Timeout: time.Second, Func: health.GoroutineCountCheck(10000)})

	st, err := openStores(ctx, lg, cfg, healthSvc)
	if err != nil {
		return err
	}
	defer st.close()

	gw, err := newGateway(ctx, lg, m.TracerProvider(), m.MeterProvider(), cfg, st, healthSvc)
	if err != nil {
		return err
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Backend.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           gw.handler,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gw.health.Run(gctx, 10*time.Second)
	})
	g.Go(func() error {
		return gw.sessions.Run(gctx, cfg.Session.EvictInterval)
	})

	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		gw.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		gw.health.SetReady(true)
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	return g.Wait()
}
