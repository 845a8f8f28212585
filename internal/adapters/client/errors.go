package client

import "errors"

var (
	// ErrInvalidReport is returned when a posted report cannot be decoded.
	ErrInvalidReport = errors.New("invalid device report")
	// ErrPositionUnavailable is reported when the page's position request failed
	// for a reason other than denial, such as a timeout.
	ErrPositionUnavailable = errors.New("position unavailable")
)
