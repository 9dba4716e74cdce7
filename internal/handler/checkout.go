package handler

import (
	"net/http"

	"github.com/qorikusi/storefront/internal/domain/checkout"
	"github.com/qorikusi/storefront/internal/domain/payment"
)

func respondSummary(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, sessionFrom(r.Context()).Checkout.Summary())
}

// CheckoutSummary returns the current checkout state.
func (h *Handler) CheckoutSummary(w http.ResponseWriter, r *http.Request) {
	respondSummary(w, r)
}

// BeginCheckout enters the shipping step.
func (h *Handler) BeginCheckout(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r.Context()).Checkout.Begin(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	respondSummary(w, r)
}

// SubmitShipping validates the shipping form and moves to payment.
func (h *Handler) SubmitShipping(w http.ResponseWriter, r *http.Request) {
	var form checkout.ShippingForm
	if err := decode(r, &form); err != nil {
		respondError(w, r, err)
		return
	}
	if err := sessionFrom(r.Context()).Checkout.SubmitShipping(r.Context(), form); err != nil {
		respondError(w, r, err)
		return
	}
	respondSummary(w, r)
}

type receiptTypeRequest struct {
	ReceiptType payment.ReceiptType `json:"receiptType"`
}

// ChangeReceiptType switches between individual and business receipts.
func (h *Handler) ChangeReceiptType(w http.ResponseWriter, r *http.Request) {
	var req receiptTypeRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := sessionFrom(r.Context()).Checkout.ChangeReceiptType(req.ReceiptType); err != nil {
		respondError(w, r, err)
		return
	}
	respondSummary(w, r)
}

// CheckoutBack returns to the previous step.
func (h *Handler) CheckoutBack(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r.Context()).Checkout.Back(); err != nil {
		respondError(w, r, err)
		return
	}
	respondSummary(w, r)
}

// SubmitPayment places the order, pays it and clears the cart.
func (h *Handler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	var form checkout.PaymentForm
	if err := decode(r, &form); err != nil {
		respondError(w, r, err)
		return
	}
	co := sessionFrom(r.Context()).Checkout
	if err := co.SubmitPayment(r.Context(), form); err != nil {
		respondError(w, r, err)
		return
	}
	sum := co.Summary()
	ids := make([]string, 0, len(sum.Items))
	for _, it := range sum.Items {
		ids = append(ids, it.Product.ID)
	}
	h.catalog.Sold(r.Context(), ids...)
	respondJSON(w, r, http.StatusOK, sum)
}

// AbandonCheckout discards the checkout state.
func (h *Handler) AbandonCheckout(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r.Context()).Checkout.Abandon(); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
