package handler

import (
	"net/http"

	"github.com/qorikusi/storefront/internal/domain/account"
)

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// Register creates a customer account. The customer logs in afterwards.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req account.Registration
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.accounts.Register(r.Context(), req); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// ForgotPassword mails a password reset link.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.accounts.ForgotPassword(r.Context(), req.Email); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetPassword sets a new password from a reset link.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req account.PasswordReset
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Token == "" {
		req.Token = r.URL.Query().Get("token")
	}
	if err := h.accounts.ResetPassword(r.Context(), req); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAccount returns the customer profile.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	p, err := h.accounts.Profile(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, p)
}

// UpdateAccount edits the customer profile.
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req account.ProfileUpdate
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.accounts.UpdateProfile(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, p)
}

// ChangeEmail moves the account to a new email.
func (h *Handler) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	var req account.EmailChange
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.accounts.ChangeEmail(r.Context(), req); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChangePassword replaces the account password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req account.PasswordChange
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.accounts.ChangePassword(r.Context(), req); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
