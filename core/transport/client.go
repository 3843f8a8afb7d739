package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a fetch when the caller passes no timeout.
	DefaultTimeout = 10 * time.Second
	// DefaultMaxBodyBytes caps the size of a telemetry response.
	DefaultMaxBodyBytes int64 = 8 << 20
	defaultUserAgent          = "fleetpulse/1.0"
)

// Authorizer decorates outgoing requests with credentials.
type Authorizer interface {
	SetAuthHeader(r *http.Request) error
}

// Client performs bounded HTTP GET requests against a telemetry source.
// It holds no per-request state and is safe for concurrent use.
type Client struct {
	http         *http.Client
	auth         Authorizer
	authHost     string
	userAgent    string
	maxBody      int64
	defaultLimit time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithAuthorizer sets the request authorizer.
func WithAuthorizer(a Authorizer) Option {
	return func(cl *Client) { cl.auth = a }
}

// WithAuthorizedHost restricts the authorizer to requests whose host (and
// port) equals host. Requests to any other host go out without credentials.
func WithAuthorizedHost(host string) Option {
	return func(cl *Client) { cl.authHost = host }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		if ua != "" {
			cl.userAgent = ua
		}
	}
}

// WithMaxBodyBytes caps the accepted response size. Non-positive keeps the default.
func WithMaxBodyBytes(n int64) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.maxBody = n
		}
	}
}

// WithDefaultTimeout sets the timeout used when Fetch receives none.
func WithDefaultTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.defaultLimit = d
		}
	}
}

// NewClient creates a transport client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:         &http.Client{},
		userAgent:    defaultUserAgent,
		maxBody:      DefaultMaxBodyBytes,
		defaultLimit: DefaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fetch issues a single GET to url and returns the response body. The timeout
// covers connection, headers and body. Fetch never retries.
func (c *Client) Fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = c.defaultLimit
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: KindConnectionFailed, URL: url, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.auth != nil && c.authorizes(req) {
		if err := c.auth.SetAuthHeader(req); err != nil {
			return nil, &Error{Kind: KindConnectionFailed, URL: url, Err: fmt.Errorf("set auth header: %w", err)}
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(ctx, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a bounded amount so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &Error{Kind: KindHTTPStatus, URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, classify(ctx, url, fmt.Errorf("read response: %w", err))
	}
	if int64(len(body)) > c.maxBody {
		return nil, &Error{Kind: KindResponseTooLarge, URL: url}
	}
	return body, nil
}

func (c *Client) authorizes(req *http.Request) bool {
	return c.authHost == "" || strings.EqualFold(req.URL.Host, c.authHost)
}

func classify(ctx context.Context, url string, err error) *Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, URL: url, Err: err}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &Error{Kind: KindTimeout, URL: url, Err: err}
	}
	return &Error{Kind: KindConnectionFailed, URL: url, Err: err}
}
