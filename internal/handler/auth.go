package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"

	"github.com/qorikusi/storefront/internal/domain/auth"
)

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type loginResponse struct {
	User    auth.User `json:"user"`
	Cart    cartView  `json:"cart"`
	Warning string    `json:"warning,omitempty"`
}

type meResponse struct {
	Authenticated bool       `json:"authenticated"`
	User          *auth.User `json:"user,omitempty"`
}

// Login authenticates the session and merges its anonymous cart.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Login) == "" || req.Password == "" {
		respondError(w, r, &badRequestError{msg: "Enter your username or email and your password."})
		return
	}

	s := sessionFrom(r.Context())
	if s.Auth.Authenticated(r.Context()) {
		if err := s.Checkout.Abandon(); err != nil {
			respondError(w, r, err)
			return
		}
	}
	res, err := s.Auth.Login(r.Context(), strings.TrimSpace(req.Login), req.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}
	resp := loginResponse{
		User: res.User,
		Cart: h.viewCart(s.Cart.Snapshot(), s.Cart.Pricing()),
	}
	if res.MergeWarning != nil {
		resp.Warning = "We could not carry over the products you added before logging in."
	}
	respondJSON(w, r, http.StatusOK, resp)
}

// Logout drops the token, the user, the cart identity and any checkout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	if err := s.Checkout.Abandon(); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.Auth.Logout(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me reports the login state of the session.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	if !s.Auth.Authenticated(r.Context()) {
		respondJSON(w, r, http.StatusOK, meResponse{})
		return
	}
	u, err := s.Auth.User(r.Context())
	if err != nil && !errors.Is(err, auth.ErrNoToken) {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, meResponse{Authenticated: true, User: u})
}

// requireLogin rejects sessions without a valid token.
func (h *Handler) requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !sessionFrom(r.Context()).Auth.Authenticated(r.Context()) {
			respondError(w, r, auth.ErrNoToken)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin rejects sessions whose user lacks the admin role.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return h.requireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := sessionFrom(r.Context()).Auth.User(r.Context())
		if err != nil {
			respondError(w, r, err)
			return
		}
		if !u.HasRole(auth.RoleAdmin) {
			respondError(w, r, errForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}))
}
