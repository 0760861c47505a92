// Package auth supplies bearer tokens for the remote backup transport.
// Token acquisition (OAuth flows, refresh) is out of scope; callers hand
// us an already-minted access token through one of the sources here.
package auth

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/awnumar/memguard"
)

// EnvTokenVar is the environment variable the default source reads.
const EnvTokenVar = "ETRACKER_ACCESS_TOKEN"

var ErrNoToken = errors.New("auth: no access token available")

// TokenSource yields an access token for a single request. Implementations
// must be safe for concurrent use.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type staticTokenSource struct {
	token string
}

// Static wraps a fixed token. An empty token yields ErrNoToken.
func Static(token string) TokenSource {
	return &staticTokenSource{token: token}
}

func (s *staticTokenSource) Token(context.Context) (string, error) {
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}

type envTokenSource struct {
	key string
}

// FromEnv reads the token from the named environment variable on every
// call. An empty key falls back to EnvTokenVar.
func FromEnv(key string) TokenSource {
	if key == "" {
		key = EnvTokenVar
	}
	return &envTokenSource{key: key}
}

func (e *envTokenSource) Token(context.Context) (string, error) {
	token := strings.TrimSpace(os.Getenv(e.key))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// CachedTokenSource holds a token in a locked buffer so it is not left
// in plain heap memory between requests.
type CachedTokenSource struct {
	mu     sync.Mutex
	buffer *memguard.LockedBuffer
}

func NewCachedTokenSource() *CachedTokenSource {
	return &CachedTokenSource{}
}

func (c *CachedTokenSource) Set(token string) error {
	if token == "" {
		return ErrNoToken
	}

	raw := []byte(token)
	buffer := memguard.NewBufferFromBytes(raw)
	memguard.WipeBytes(raw)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buffer != nil {
		c.buffer.Destroy()
	}
	c.buffer = buffer
	return nil
}

func (c *CachedTokenSource) Token(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.buffer == nil || !c.buffer.IsAlive() {
		return "", ErrNoToken
	}
	return string(c.buffer.Bytes()), nil
}

func (c *CachedTokenSource) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buffer != nil {
		c.buffer.Destroy()
		c.buffer = nil
	}
}
