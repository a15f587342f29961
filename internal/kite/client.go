// Package kite is a client for the Zerodha Kite OMS endpoints used by the
// web terminal. Requests authenticate with an enctoken.
package kite

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultBaseURL is the Kite web OMS host.
const DefaultBaseURL = "https://kite.zerodha.com"

// Client provides access to the Kite OMS REST API.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	orderTag   string

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new OMS client.
func NewClient(baseURL, authToken string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		orderTag:     NewOrderTag(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration for idempotent calls.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithOrderTag sets the tag attached to every order placed by this client.
func WithOrderTag(tag string) ClientOption {
	return func(c *Client) {
		if tag != "" {
			c.orderTag = tag
		}
	}
}

// OrderTag returns the tag attached to placed orders.
func (c *Client) OrderTag() string {
	return c.orderTag
}

// NewOrderTag returns a short random tag. Kite limits tags to 20 characters.
func NewOrderTag() string {
	return "ps" + strings.ReplaceAll(uuid.New().String(), "-", "")[:10]
}
