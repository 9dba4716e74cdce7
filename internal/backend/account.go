package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-faster/jx"

	"github.com/qorikusi/storefront/internal/domain/account"
)

// AccountService calls the identity service for registration and password
// recovery, and the customer service for the profile.
type AccountService struct {
	auth     *Client
	customer *Client
}

// NewAccountService creates an AccountService.
func NewAccountService(auth, customer *Client) *AccountService {
	return &AccountService{auth: auth, customer: customer}
}

var _ account.Backend = (*AccountService)(nil)

var (
	resetCodes = map[string]error{
		CodeInvalidToken:     account.ErrResetTokenInvalid,
		CodeTokenExpired:     account.ErrResetTokenInvalid,
		CodeInvalidSignature: account.ErrResetTokenInvalid,
	}
	changeCodes = map[string]error{
		CodeInvalidCredentials: account.ErrWrongPassword,
		CodeBadCredentials:     account.ErrWrongPassword,
	}
)

// Register creates a customer account.
func (s *AccountService) Register(ctx context.Context, email, password string) error {
	return s.auth.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/register/client",
		public: true,
		body: func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("correo", func(e *jx.Encoder) { e.Str(email) })
				e.Field("contrasenia", func(e *jx.Encoder) { e.Str(password) })
			})
		},
	})
}

// ForgotPassword requests a password reset mail.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	return s.auth.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/forgot-password",
		public: true,
		body: func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("correo", func(e *jx.Encoder) { e.Str(email) })
			})
		},
		notFound: account.ErrNotFound,
	})
}

// ResetPassword sets a new password using the mailed token.
func (s *AccountService) ResetPassword(ctx context.Context, token, password string) error {
	return s.auth.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/reset-password",
		query:  url.Values{"token": {token}},
		public: true,
		body: func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("nuevaContrasenia", func(e *jx.Encoder) { e.Str(password) })
			})
		},
		codes: resetCodes,
	})
}

// Profile returns the logged-in customer.
func (s *AccountService) Profile(ctx context.Context) (*account.Profile, error) {
	var p account.Profile
	err := s.customer.do(ctx, request{
		method:   http.MethodGet,
		path:     "/client",
		decode:   func(d *jx.Decoder) error { return decodeProfile(d, &p) },
		notFound: account.ErrNotFound,
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile edits the logged-in customer.
func (s *AccountService) UpdateProfile(ctx context.Context, u account.ProfileUpdate) (*account.Profile, error) {
	var p account.Profile
	err := s.customer.do(ctx, request{
		method: http.MethodPatch,
		path:   "/client",
		body: func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("nombres", func(e *jx.Encoder) { e.Str(u.FirstName) })
				e.Field("apellidos", func(e *jx.Encoder) { e.Str(u.LastName) })
				e.Field("telefono", func(e *jx.Encoder) { e.Str(u.Phone) })
				if u.ZodiacSign != "" {
					e.Field("signoZodiacal", func(e *jx.Encoder) { e.Str(u.ZodiacSign) })
				}
				if u.MoonPhase != "" {
					e.Field("faseLunarPreferida", func(e *jx.Encoder) { e.Str(u.MoonPhase) })
				}
			})
		},
		decode:   func(d *jx.Decoder) error { return decodeProfile(d, &p) },
		notFound: account.ErrNotFound,
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ChangeEmail moves the logged-in customer to a new email.
func (s *AccountService) ChangeEmail(ctx context.Context, current, next string) error {
	return s.customer.do(ctx, request{
		method: http.MethodPost,
		path:   "/client/reset-email",
		body: func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("actualCorreo", func(e *jx.Encoder) { e.Str(current) })
				e.Field("nuevoCorreo", func(e *jx.Encoder) { e.Str(next) })
			})
		},
		codes: changeCodes,
	})
}

// ChangePassword replaces the logged-in customer's password.
func (s *AccountService) ChangePassword(ctx context.Context, current, next string) error {
	return s.customer.do(ctx, request{
		method: http.MethodPost,
		path:   "/client/reset-password",
		body: func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("actualContrasenia", func(e *jx.Encoder) { e.Str(current) })
				e.Field("nuevaContrasenia", func(e *jx.Encoder) { e.Str(next) })
			})
		},
		codes: changeCodes,
	})
}

func decodeProfile(d *jx.Decoder, p *account.Profile) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "nombres":
			p.FirstName, err = decodeString(d)
		case "apellidos":
			p.LastName, err = decodeString(d)
		case "telefono":
			p.Phone, err = decodeString(d)
		case "puntos":
			p.Points, err = decodeInt(d)
		case "signoZodiacal":
			p.ZodiacSign, err = decodeString(d)
		case "faseLunarPreferida":
			p.MoonPhase, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return err
	})
}
