// Package httpwatch implements the list/watch transport over plain
// HTTP for endpoints that speak the Kubernetes wire format without
// being full API servers (aggregation proxies, read replicas, test
// fixtures). It depends only on net/http and the apimachinery types.
package httpwatch

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ChinYing-Li/kubemirror/internal/core"
)

// defaultRequestTimeout bounds a single list request, response body
// included. Watch requests are exempt; they stay open until the
// server-side timeout.
const defaultRequestTimeout = 30 * time.Second

// Client builds raw HTTP transports against one base URL. Requests
// are unauthenticated by default; callers inject a bearer token or a
// custom RoundTripper for anything beyond that.
type Client struct {
	base        *url.URL
	http        *http.Client
	token       string
	listTimeout time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithBearerToken attaches a static bearer token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the underlying HTTP client. The client must
// not enforce an overall request timeout, or long-lived watch
// requests will be cut short.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRequestTimeout bounds each list request. Watch requests are not
// affected.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.listTimeout = d
	}
}

// WithRoundTripper replaces the transport on the default HTTP client,
// for example to add mTLS or tracing.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http = &http.Client{Transport: rt}
	}
}

// New parses baseURL and returns a Client for it.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	c := &Client{
		base:        base,
		http:        &http.Client{},
		listTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewTransport implements core.TransportFactory.
func (c *Client) NewTransport(spec core.CollectionSpec) (core.Transport, error) {
	if spec.Resource == "" || spec.Version == "" {
		return nil, fmt.Errorf("collection %q missing version or resource", spec.Name)
	}
	return &transport{client: c, spec: spec}, nil
}
