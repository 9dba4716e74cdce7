// Package auth keeps the session's login state: the access token persisted
// in durable storage and the user it belongs to.
package auth

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/qorikusi/storefront/internal/domain/kv"
)

// Storage keys. Both are removed together on logout.
const (
	TokenKey = "token"
	UserKey  = "usuario"
)

// RoleAdmin grants access to catalog administration.
const RoleAdmin = "ADMIN"

var (
	// ErrUnauthorized is returned when the server rejects the token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoToken is returned when the session has no access token.
	ErrNoToken = errors.New("not logged in")
)

// Token is the login response of the auth service.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresIn   time.Duration
	Roles       []string
}

// User describes the logged-in account.
type User struct {
	Login     string    `json:"login"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
}

// HasRole reports whether the user holds role, ignoring case and a
// "ROLE_" prefix.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if strings.EqualFold(strings.TrimPrefix(strings.ToUpper(r), "ROLE_"), role) {
			return true
		}
	}
	return false
}

// Backend is the remote auth service.
type Backend interface {
	Login(ctx context.Context, login, password string) (*Token, error)
}

// CartMerger reconciles carts after login. Its error is advisory.
type CartMerger interface {
	Merge(ctx context.Context) error
}

// CartForgetter drops the local cart on logout.
type CartForgetter interface {
	Forget(ctx context.Context) error
}

// LoginResult carries the user and the outcome of the cart merge, which
// never fails the login itself.
type LoginResult struct {
	User         User
	MergeWarning error
}

// Session manages login state for one browser session.
type Session struct {
	backend Backend
	kv      kv.Store
	merger  CartMerger
	cart    CartForgetter
	lg      *zap.Logger
	now     func() time.Time
}

// NewSession creates a Session.
func NewSession(backend Backend, store kv.Store, merger CartMerger, cart CartForgetter, lg *zap.Logger) *Session {
	return &Session{
		backend: backend,
		kv:      store,
		merger:  merger,
		cart:    cart,
		lg:      lg,
		now:     time.Now,
	}
}

// Login authenticates, persists the token and then merges the anonymous
// cart into the user's cart. A session that is already logged in drops the
// previous user's cart identity first, so only anonymous carts are merged.
func (s *Session) Login(ctx context.Context, login, password string) (*LoginResult, error) {
	tok, err := s.backend.Login(ctx, login, password)
	if err != nil {
		return nil, errors.Wrap(err, "login")
	}

	if _, err := s.Token(ctx); err == nil {
		if err := s.cart.Forget(ctx); err != nil {
			return nil, errors.Wrap(err, "drop previous cart")
		}
		s.lg.Info("Replacing previous login", zap.String("login", login))
	}

	u := User{Login: login, Roles: tok.Roles}
	if tok.ExpiresIn > 0 {
		u.ExpiresAt = s.now().Add(tok.ExpiresIn)
	}
	if err := s.store(ctx, tok.AccessToken, u); err != nil {
		return nil, err
	}
	s.lg.Info("Logged in", zap.String("login", login))

	res := &LoginResult{User: u}
	if err := s.merger.Merge(ctx); err != nil {
		s.lg.Warn("Cart merge after login incomplete", zap.Error(err))
		res.MergeWarning = err
	}
	return res, nil
}

// Logout removes the token, the user and the cart identity together.
func (s *Session) Logout(ctx context.Context) error {
	var errs []error
	for _, key := range []string{TokenKey, UserKey} {
		if err := s.kv.Delete(ctx, key); err != nil {
			errs = append(errs, errors.Wrapf(err, "delete %s", key))
		}
	}
	if err := s.cart.Forget(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Token returns the access token for authenticated requests.
func (s *Session) Token(ctx context.Context) (string, error) {
	tok, err := s.kv.Get(ctx, TokenKey)
	if errors.Is(err, kv.ErrNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", errors.Wrap(err, "read token")
	}
	return tok, nil
}

// User returns the logged-in user.
func (s *Session) User(ctx context.Context) (*User, error) {
	raw, err := s.kv.Get(ctx, UserKey)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, errors.Wrap(err, "read user")
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, errors.Wrap(err, "decode user")
	}
	return &u, nil
}

// Authenticated reports whether the session holds a token that has not
// expired. JWT tokens are checked against their exp claim; opaque tokens
// against the expiry announced at login.
func (s *Session) Authenticated(ctx context.Context) bool {
	tok, err := s.Token(ctx)
	if err != nil {
		return false
	}

	now := s.now()
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err == nil {
		return claims.ExpiresAt == nil || now.Before(claims.ExpiresAt.Time)
	}

	u, err := s.User(ctx)
	if err != nil {
		return true
	}
	return u.ExpiresAt.IsZero() || now.Before(u.ExpiresAt)
}

func (s *Session) store(ctx context.Context, token string, u User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return errors.Wrap(err, "encode user")
	}
	if err := s.kv.Set(ctx, TokenKey, token); err != nil {
		return errors.Wrap(err, "persist token")
	}
	if err := s.kv.Set(ctx, UserKey, string(raw)); err != nil {
		return errors.Wrap(err, "persist user")
	}
	return nil
}
