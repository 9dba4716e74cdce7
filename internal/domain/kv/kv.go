// Package kv defines the durable key/value storage a browser session keeps
// between requests: the auth token and the cart identity.
package kv

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("key not found")

// Store persists string values by key. Deleting an absent key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Prefixed returns a Store that transparently prefixes every key, scoping
// values to a single session.
func Prefixed(s Store, prefix string) Store {
	return &prefixed{s: s, prefix: prefix}
}

type prefixed struct {
	s      Store
	prefix string
}

func (p *prefixed) Get(ctx context.Context, key string) (string, error) {
	return p.s.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key, value string) error {
	return p.s.Set(ctx, p.prefix+key, value)
}

func (p *prefixed) Delete(ctx context.Context, key string) error {
	return p.s.Delete(ctx, p.prefix+key)
}

// SessionPrefix returns the key prefix used for the given session id.
func SessionPrefix(sessionID string) string {
	return "session:" + sessionID + ":"
}
