package backend

import (
	"net/http"
	"strings"
	"time"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for every call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithAssistantURL sets the base URL of the chat assistant service.
func WithAssistantURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.assistantURL = strings.TrimRight(u, "/")
		}
	}
}

// WithRecommenderURL sets the base URL of the recommendation service.
func WithRecommenderURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.recommenderURL = strings.TrimRight(u, "/")
		}
	}
}

// WithMaxResponseBytes limits how much of a response body is read.
func WithMaxResponseBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxResponseBytes = n
		}
	}
}
