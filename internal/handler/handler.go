// Package handler exposes the session gateway over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	"github.com/qorikusi/storefront/internal/domain/account"
	"github.com/qorikusi/storefront/internal/domain/order"
	"github.com/qorikusi/storefront/internal/domain/payment"
	"github.com/qorikusi/storefront/internal/domain/product"
	"github.com/qorikusi/storefront/internal/session"
	"github.com/qorikusi/storefront/pkg/httpmiddleware"
)

// Sessions resolves the session of a request.
type Sessions interface {
	Get(ctx context.Context, id string) (*session.Session, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// Timeout bounds every request except the event stream.
	Timeout     time.Duration
	ShippingFee decimal.Decimal
}

// Services are the collaborators shared by every session.
type Services struct {
	Sessions   Sessions
	Catalog    *product.Catalog
	Categories *product.Categories
	Accounts   *account.Service
	Orders     order.Backend
	// Receipts may be nil, which lists no receipts.
	Receipts payment.Archive
}

// Handler serves the gateway API.
type Handler struct {
	sessions   Sessions
	catalog    *product.Catalog
	categories *product.Categories
	accounts   *account.Service
	orders     order.Backend
	receipts   payment.Archive
	timeout    time.Duration
	fee        decimal.Decimal
}

// New creates a Handler.
func New(cfg Config, svc Services) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Handler{
		sessions:   svc.Sessions,
		catalog:    svc.Catalog,
		categories: svc.Categories,
		accounts:   svc.Accounts,
		orders:     svc.Orders,
		receipts:   svc.Receipts,
		timeout:    cfg.Timeout,
		fee:        cfg.ShippingFee,
	}
}

// Routes returns the API router, to be mounted under /api.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/catalog/products", h.timed(h.ListProducts))
	r.Get("/catalog/products/{id}", h.timed(h.GetProduct))

	r.Post("/auth/register", h.timed(h.Register))
	r.Post("/auth/forgot-password", h.timed(h.ForgotPassword))
	r.Post("/auth/reset-password", h.timed(h.ResetPassword))

	r.Group(func(r chi.Router) {
		r.Use(h.withSession)

		r.Post("/auth/login", h.timed(h.Login))
		r.Post("/auth/logout", h.timed(h.Logout))
		r.Get("/auth/me", h.timed(h.Me))

		r.Get("/cart", h.timed(h.GetCart))
		r.Get("/cart/events", h.CartEvents)
		r.Post("/cart/items", h.timed(h.AddItem))
		r.Put("/cart/items/{productID}", h.timed(h.UpdateItem))
		r.Delete("/cart/items/{productID}", h.timed(h.RemoveItem))
		r.Delete("/cart", h.timed(h.ClearCart))

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", h.timed(h.CheckoutSummary))
			r.Post("/", h.timed(h.BeginCheckout))
			r.Delete("/", h.timed(h.AbandonCheckout))
			r.Post("/shipping", h.timed(h.SubmitShipping))
			r.Post("/receipt-type", h.timed(h.ChangeReceiptType))
			r.Post("/back", h.timed(h.CheckoutBack))
			r.Post("/payment", h.timed(h.SubmitPayment))
		})

		r.Route("/profile", func(r chi.Router) {
			r.Use(h.requireLogin)
			r.Get("/", h.timed(h.Profile))
			r.Get("/orders", h.timed(h.ListOrders))
			r.Get("/orders/{id}", h.timed(h.GetOrder))
			r.Get("/receipts", h.timed(h.ListReceipts))
			r.Get("/account", h.timed(h.GetAccount))
			r.Patch("/account", h.timed(h.UpdateAccount))
			r.Post("/email", h.timed(h.ChangeEmail))
			r.Post("/password", h.timed(h.ChangePassword))
		})

		r.Route("/admin/products", func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Post("/", h.timed(h.CreateProduct))
			r.Patch("/{id}", h.timed(h.UpdateProduct))
			r.Delete("/{id}", h.timed(h.DeleteProduct))
		})

		r.Route("/admin/categories", func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Get("/", h.timed(h.ListCategories))
			r.Post("/", h.timed(h.CreateCategory))
			r.Put("/{id}", h.timed(h.RenameCategory))
			r.Delete("/{id}", h.timed(h.DeleteCategory))
		})
	})
	return r
}

// timed bounds a handler by the configured timeout.
func (h *Handler) timed(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		fn(w, r.WithContext(ctx))
	}
}

type sessionKey struct{}

func sessionFrom(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey{}).(*session.Session)
	return s
}

// withSession resolves the cookie session and makes its token available to
// backend calls.
func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := h.sessions.Get(r.Context(), httpmiddleware.SessionIDFromContext(r.Context()))
		if err != nil {
			respondError(w, r, err)
			return
		}
		ctx := context.WithValue(s.Context(r.Context()), sessionKey{}, s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func decode(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return &badRequestError{msg: "The request body is not valid JSON."}
	}
	return nil
}
