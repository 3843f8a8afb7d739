package auth

import (
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/kilianp07/fleetpulse/core/transport"
)

var (
	_ transport.Authorizer = (*ClientCred)(nil)
	_ transport.Authorizer = StaticToken("")
)

// New returns the authorizer described by conf, or nil when conf is empty.
func New(conf Conf) transport.Authorizer {
	switch {
	case conf.oauth():
		return NewClientCred(conf)
	case conf.Token != "":
		return StaticToken(conf.Token)
	default:
		return nil
	}
}

// ClientCred obtains and caches OAuth2 client credential tokens. It is safe
// for concurrent use.
type ClientCred struct {
	conf  clientcredentials.Config
	mu    sync.Mutex
	token *oauth2.Token
}

func NewClientCred(conf Conf) *ClientCred {
	return &ClientCred{
		conf: conf.toOauth2Config(),
	}
}

// Token returns a valid token, requesting a new one from the token endpoint
// when the cached token is missing or expired. The request context bounds
// the token call.
func (c *ClientCred) Token(r *http.Request) (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != nil && c.token.Valid() {
		return c.token, nil
	}
	tok, err := c.conf.Token(r.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	c.token = tok
	return tok, nil
}

// Invalidate drops the cached token so the next request fetches a new one.
func (c *ClientCred) Invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

func (c *ClientCred) SetAuthHeader(r *http.Request) error {
	tok, err := c.Token(r)
	if err != nil {
		return err
	}
	tok.SetAuthHeader(r)
	return nil
}

// StaticToken authorizes requests with a fixed bearer token.
type StaticToken string

func (s StaticToken) SetAuthHeader(r *http.Request) error {
	(&oauth2.Token{AccessToken: string(s), TokenType: "Bearer"}).SetAuthHeader(r)
	return nil
}
