// Package iplookup implements the external address and address-location
// lookups against ipify- and ipinfo-shaped HTTP services.
package iplookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/devinfo/internal/domain/facts"
)

// Default endpoints.
const (
	DefaultAddressURL  = "https://api.ipify.org?format=json"
	DefaultLocationURL = "https://ipinfo.io"

	defaultTimeout = 5 * time.Second
	maxBodyBytes   = 64 << 10
)

// Client performs both lookup steps. The zero value is not usable; use New.
type Client struct {
	http        *http.Client
	addressURL  string
	locationURL string
	userAgent   string
}

// New builds a Client with defaults overridden by opts.
func New(opts ...Option) *Client {
	c := &Client{
		http:        &http.Client{Timeout: defaultTimeout},
		addressURL:  DefaultAddressURL,
		locationURL: DefaultLocationURL,
		userAgent:   "devinfo",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type addressResponse struct {
	IP      string `json:"ip"`
	Address string `json:"address"`
}

type locationResponse struct {
	IP      string `json:"ip"`
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
	Bogon   bool   `json:"bogon"`
}

// ResolveAddress asks the address service for the caller's public address.
func (c *Client) ResolveAddress(ctx context.Context) (string, error) {
	var resp addressResponse
	if err := c.getJSON(ctx, c.addressURL, &resp); err != nil {
		return "", fmt.Errorf("resolve address: %w", err)
	}
	addr := resp.IP
	if addr == "" {
		addr = resp.Address
	}
	if net.ParseIP(addr) == nil {
		return "", fmt.Errorf("resolve address: %w: invalid address %q", ErrBadResponse, addr)
	}
	return addr, nil
}

// Locate asks the location service where address is.
func (c *Client) Locate(ctx context.Context, address string) (facts.Location, error) {
	if net.ParseIP(address) == nil {
		return facts.Location{}, fmt.Errorf("locate %q: %w", address, ErrInvalidAddress)
	}
	endpoint := strings.TrimRight(c.locationURL, "/") + "/" + url.PathEscape(address) + "/json"

	var resp locationResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return facts.Location{}, fmt.Errorf("locate %s: %w", address, err)
	}
	if resp.Bogon || (resp.City == "" && resp.Country == "") {
		return facts.Location{}, fmt.Errorf("locate %s: %w: no location data", address, ErrBadResponse)
	}
	return facts.Location{City: resp.City, Region: resp.Region, Country: resp.Country}, nil
}

// getJSON issues a GET and decodes the body into v. Transport failures and
// non-2xx statuses wrap facts.ErrNetworkFailure.
func (c *Client) getJSON(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", facts.ErrNetworkFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return fmt.Errorf("%w: %w: status %d", facts.ErrNetworkFailure, ErrUnexpectedStatus, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("%w: decode: %w", ErrBadResponse, err)
	}
	return nil
}
