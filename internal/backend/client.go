// Package backend is the REST client for the storefront microservices:
// auth, customers, catalog, cart, orders and payments.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/qorikusi/storefront/internal/domain/auth"
	"github.com/qorikusi/storefront/pkg/httpmiddleware"
)

// DefaultTimeout bounds a single call when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

const maxBodySize = 4 << 20

// ErrTimeout is returned when a call does not complete within its timeout.
var ErrTimeout = errors.New("request timed out")

// TokenSource supplies the access token for authenticated calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type tokenSourceKey struct{}

// WithTokenSource attaches src to ctx. Calls made with the returned context
// send src's token as a bearer token. The token is read at call time, so a
// login completed earlier in the same request is honoured.
func WithTokenSource(ctx context.Context, src TokenSource) context.Context {
	return context.WithValue(ctx, tokenSourceKey{}, src)
}

// Options configures a Client.
type Options struct {
	// Timeout bounds each call including reading the response body.
	Timeout time.Duration
	// Transport is wrapped with otelhttp. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
	Logger    *zap.Logger
}

// Client performs JSON calls against one service base URL.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	lg      *zap.Logger
}

// New creates a Client for the service rooted at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "parse base url %q", baseURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", baseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		base:    u,
		http:    &http.Client{Transport: otelhttp.NewTransport(opts.Transport)},
		timeout: opts.Timeout,
		lg:      opts.Logger,
	}, nil
}

// request describes one call. A nil body sends no payload; a nil decode
// discards the response body.
type request struct {
	method string
	path   string
	query  url.Values
	body   func(e *jx.Encoder)
	decode func(d *jx.Decoder) error
	// public calls never carry the bearer token.
	public bool
	// notFound is the error a 404 without a known code maps to.
	notFound error
	// codes overrides the domain error of server codes for this call.
	codes map[string]error
}

func (c *Client) do(ctx context.Context, r request) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.base.JoinPath(r.path)
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		e := jx.GetEncoder()
		defer jx.PutEncoder(e)
		r.body(e)
		body = bytes.NewReader(e.Bytes())
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if id := httpmiddleware.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(httpmiddleware.RequestIDHeader, id)
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !r.public {
		if err := c.authorize(ctx, req); err != nil {
			return err
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(ctx, r, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return c.transportError(ctx, r, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := decodeError(resp.StatusCode, data)
		if k, ok := r.codes[apiErr.Code]; ok {
			apiErr.kind = k
		}
		if apiErr.kind == nil && resp.StatusCode == http.StatusNotFound {
			apiErr.kind = r.notFound
		}
		c.lg.Debug("Backend call failed",
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.Int("status", apiErr.Status),
			zap.String("code", apiErr.Code),
		)
		return apiErr
	}

	if r.decode == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := r.decode(jx.DecodeBytes(data)); err != nil {
		return errors.Wrapf(err, "decode %s %s", r.method, r.path)
	}
	return nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	src, ok := ctx.Value(tokenSourceKey{}).(TokenSource)
	if !ok {
		return nil
	}
	tok, err := src.Token(ctx)
	switch {
	case errors.Is(err, auth.ErrNoToken):
		return nil
	case err != nil:
		return errors.Wrap(err, "read token")
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}

func (c *Client) transportError(ctx context.Context, r request, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		c.lg.Warn("Backend call timed out",
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.Duration("timeout", c.timeout),
		)
		return errors.Wrapf(ErrTimeout, "%s %s", r.method, r.path)
	}
	return errors.Wrapf(err, "%s %s", r.method, r.path)
}

// Error is a non-2xx answer from a service. It unwraps to the domain error
// its code stands for, if any.
type Error struct {
	Status    int
	Code      string
	Timestamp string

	kind error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend error %d: %s", e.Status, e.Code)
	}
	return fmt.Sprintf("backend error %d", e.Status)
}

func (e *Error) Unwrap() error {
	return e.kind
}

// decodeError parses the {status, code, timestamp} error body. Unparseable
// bodies yield an Error carrying only the HTTP status.
func decodeError(status int, data []byte) *Error {
	e := &Error{Status: status}
	if len(bytes.TrimSpace(data)) > 0 {
		d := jx.DecodeBytes(data)
		if d.Next() == jx.Object {
			_ = d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "code":
					e.Code, err = decodeString(d)
				case "timestamp":
					e.Timestamp, err = decodeString(d)
				default:
					err = d.Skip()
				}
				return err
			})
		}
	}
	e.kind = kindOf(e.Code, status)
	return e
}
