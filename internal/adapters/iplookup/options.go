package iplookup

import (
	"net/http"
	"time"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithAddressURL sets the address service endpoint.
func WithAddressURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.addressURL = u
		}
	}
}

// WithLocationURL sets the location service base URL; requests go to
// {base}/{address}/json.
func WithLocationURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.locationURL = u
		}
	}
}

// WithUserAgent sets the User-Agent header on outbound requests.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}
