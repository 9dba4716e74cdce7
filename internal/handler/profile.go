package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/qorikusi/storefront/internal/domain/auth"
	"github.com/qorikusi/storefront/internal/domain/order"
	"github.com/qorikusi/storefront/internal/domain/payment"
)

type profileResponse struct {
	User     *auth.User        `json:"user"`
	Orders   []order.Details   `json:"orders"`
	Receipts []payment.Receipt `json:"receipts"`
}

// Profile returns the user with their orders and receipts, fetched in
// parallel.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	u, err := sessionFrom(r.Context()).Auth.User(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := profileResponse{User: u}
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		resp.Orders, err = h.orders.List(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		resp.Receipts, err = h.receiptsOf(ctx, u.Login)
		return err
	})
	if err := g.Wait(); err != nil {
		respondError(w, r, err)
		return
	}
	if resp.Orders == nil {
		resp.Orders = []order.Details{}
	}
	respondJSON(w, r, http.StatusOK, resp)
}

// ListOrders returns the user's orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if orders == nil {
		orders = []order.Details{}
	}
	respondJSON(w, r, http.StatusOK, orders)
}

// GetOrder returns one of the user's orders.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, o)
}

// ListReceipts returns the receipts issued to the user, newest first.
func (h *Handler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	u, err := sessionFrom(r.Context()).Auth.User(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	receipts, err := h.receiptsOf(r.Context(), u.Login)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, receipts)
}

func (h *Handler) receiptsOf(ctx context.Context, login string) ([]payment.Receipt, error) {
	if h.receipts == nil {
		return []payment.Receipt{}, nil
	}
	receipts, err := h.receipts.List(ctx, login)
	if err != nil {
		return nil, err
	}
	if receipts == nil {
		receipts = []payment.Receipt{}
	}
	return receipts, nil
}
