package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/qorikusi/storefront/internal/domain/cart"
)

// cartView is the cart as the storefront displays it.
type cartView struct {
	ID                    string          `json:"id,omitempty"`
	Items                 []cart.Item     `json:"items"`
	Count                 int             `json:"count"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	ShippingFee           decimal.Decimal `json:"shippingFee"`
	Total                 decimal.Decimal `json:"total"`
	FreeShippingThreshold decimal.Decimal `json:"freeShippingThreshold"`
	MaxQuantity           int             `json:"maxQuantity"`
}

func (h *Handler) viewCart(c cart.Cart, p cart.Pricing) cartView {
	items := c.Items
	if items == nil {
		items = []cart.Item{}
	}
	subtotal := c.Subtotal()
	return cartView{
		ID:                    c.ID,
		Items:                 items,
		Count:                 c.Count(),
		Subtotal:              subtotal,
		ShippingFee:           p.ShippingFee(subtotal, h.fee),
		Total:                 p.Total(subtotal, h.fee),
		FreeShippingThreshold: p.FreeShippingThreshold,
		MaxQuantity:           p.MaxQuantity,
	}
}

func (h *Handler) respondCart(w http.ResponseWriter, r *http.Request, status int) {
	s := sessionFrom(r.Context())
	respondJSON(w, r, status, h.viewCart(s.Cart.Snapshot(), s.Cart.Pricing()))
}

// GetCart returns the session cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.respondCart(w, r, http.StatusOK)
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// AddItem adds a product to the cart. The product is fetched past the cache
// first so the quantity is clamped to current stock.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.ProductID == "" {
		respondError(w, r, &badRequestError{msg: "The product is required."})
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	p, err := h.catalog.Fresh(r.Context(), req.ProductID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := sessionFrom(r.Context()).Cart.AddItem(r.Context(), *p, req.Quantity); err != nil {
		respondError(w, r, err)
		return
	}
	h.respondCart(w, r, http.StatusOK)
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateItem sets the quantity of a cart line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	s := sessionFrom(r.Context())
	if err := s.Cart.SetQuantity(r.Context(), chi.URLParam(r, "productID"), req.Quantity); err != nil {
		respondError(w, r, err)
		return
	}
	h.respondCart(w, r, http.StatusOK)
}

// RemoveItem drops a cart line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	if err := s.Cart.RemoveItem(r.Context(), chi.URLParam(r, "productID")); err != nil {
		respondError(w, r, err)
		return
	}
	h.respondCart(w, r, http.StatusOK)
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r.Context()).Cart.Clear(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	h.respondCart(w, r, http.StatusOK)
}
