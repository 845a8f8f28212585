package iplookup

import (
	"errors"
	"fmt"

	"github.com/okian/devinfo/internal/domain/facts"
)

// Sentinel kinds for lookup errors. Bad responses count as network failures
// for the consumer since the remote service misbehaved.
var (
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrBadResponse      = fmt.Errorf("bad lookup response: %w", facts.ErrNetworkFailure)
	ErrInvalidAddress   = errors.New("invalid address")
	ErrNoClientAddress  = errors.New("no client address on request")
)
