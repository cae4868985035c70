package api

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"
)

// Default base URLs.
const (
	ProdBaseURL = "https://api.elections.kalshi.com/trade-api/v2"
	DemoBaseURL = "https://demo-api.kalshi.co/trade-api/v2"
)

// Signer produces the authentication headers for a request path.
type Signer interface {
	SignRequest(method, path string) (map[string]string, error)
}

// Client provides access to the Kalshi REST API.
type Client struct {
	baseURL    string
	signer     Signer
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration

	books singleflight.Group
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client. A nil signer sends unsigned
// requests, which only the public market endpoints accept.
func NewClient(baseURL string, signer Signer, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		signer:  signer,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
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

// WithRetries sets the retry configuration for reads.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}
