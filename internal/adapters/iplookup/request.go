package iplookup

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// RequestAddress resolves the address from an inbound HTTP request instead of
// asking the upstream service, which would only see the server's own address.
type RequestAddress struct {
	addr string
}

// FromRequest extracts the client address, preferring the first
// X-Forwarded-For hop, then X-Real-IP, then the socket peer.
func FromRequest(r *http.Request) RequestAddress {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(first) != nil {
			return RequestAddress{addr: first}
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(real) != nil {
		return RequestAddress{addr: real}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if net.ParseIP(host) != nil {
		return RequestAddress{addr: host}
	}
	return RequestAddress{}
}

// ResolveAddress returns the extracted address.
func (a RequestAddress) ResolveAddress(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if a.addr == "" {
		return "", ErrNoClientAddress
	}
	return a.addr, nil
}
