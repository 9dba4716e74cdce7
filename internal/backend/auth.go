package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/qorikusi/storefront/internal/domain/auth"
)

// AuthService calls the identity service.
type AuthService struct {
	c *Client
}

// NewAuthService creates an AuthService.
func NewAuthService(c *Client) *AuthService {
	return &AuthService{c: c}
}

// Login exchanges credentials for an access token.
func (s *AuthService) Login(ctx context.Context, login, password string) (*auth.Token, error) {
	var tok auth.Token
	err := s.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		public: true,
		body: func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("usuarioOCorreo", func(e *jx.Encoder) { e.Str(login) })
				e.Field("contrasenia", func(e *jx.Encoder) { e.Str(password) })
			})
		},
		decode: func(d *jx.Decoder) error {
			return d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "accessToken":
					tok.AccessToken, err = decodeString(d)
				case "tokenType":
					tok.TokenType, err = decodeString(d)
				case "expiresIn":
					var secs int
					secs, err = decodeInt(d)
					tok.ExpiresIn = time.Duration(secs) * time.Second
				case "roles":
					tok.Roles, err = decodeStrings(d)
				default:
					err = d.Skip()
				}
				return err
			})
		},
	})
	if err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, errors.New("login response without access token")
	}
	return &tok, nil
}
