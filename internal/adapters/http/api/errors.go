package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest           = errors.New("bad request")
	ErrStreamingUnsupported = errors.New("streaming unsupported")
)

// WrapKind annotates err with the operation and a sentinel kind so callers can
// match the kind with errors.Is and still see the cause.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// NewKind builds an error of kind with a message and no further cause.
func NewKind(op string, kind error, msg string) error {
	return fmt.Errorf("%s: %w: %s", op, kind, msg)
}
