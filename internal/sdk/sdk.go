// Package sdk is the client for the codesync server API. It wraps an HTTP
// client with bounded retry/backoff for transient failures; the sync engine
// treats an exhausted retry budget as a degraded cycle, never as a partial
// commit.
package sdk

import (
	"time"

	"github.com/imroc/req/v3"

	"github.com/mirrorlab/codesync/internal/version"
)

// Client is the main entry point for talking to the sync server.
type Client struct {
	client  *req.Client
	baseURL string
	Sync    *SyncAPI
}

// Option tweaks the underlying HTTP client.
type Option func(*req.Client)

// WithRetryCount overrides the retry budget for transient failures.
func WithRetryCount(n int) Option {
	return func(c *req.Client) { c.SetCommonRetryCount(n) }
}

// WithRetryBackoff overrides the retry backoff window.
func WithRetryBackoff(minWait, maxWait time.Duration) Option {
	return func(c *req.Client) { c.SetCommonRetryBackoffInterval(minWait, maxWait) }
}

// New creates a Client for the given server URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, ErrNoServerURL
	}

	client := req.C().
		SetBaseURL(baseURL).
		SetCommonRetryCount(3).
		SetCommonRetryBackoffInterval(500*time.Millisecond, 5*time.Second).
		SetUserAgent(UserAgent).
		SetCommonHeader(HeaderCodeSyncVersion, version.Version).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	for _, opt := range opts {
		opt(client)
	}

	return &Client{
		client:  client,
		baseURL: baseURL,
		Sync:    newSyncAPI(client),
	}, nil
}

// BaseURL returns the configured server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases idle connections.
func (c *Client) Close() {
	c.client.GetClient().CloseIdleConnections()
}
