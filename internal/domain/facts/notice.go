package facts

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors sources return to classify their failure.
var (
	ErrCapabilityAbsent = errors.New("capability absent")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNetworkFailure   = errors.New("network failure")
)

// Kind classifies why a fact became unavailable.
type Kind string

// Failure kinds.
const (
	KindCapabilityAbsent Kind = "capability_absent"
	KindPermissionDenied Kind = "permission_denied"
	KindNetworkFailure   Kind = "network_failure"
	KindSourceFailure    Kind = "source_failure"
	KindCancelled        Kind = "cancelled"
)

// Surfaced reports whether consumers should see a notice of this kind.
// Absent capabilities and cancellations stay silent.
func (k Kind) Surfaced() bool {
	return k != KindCapabilityAbsent && k != KindCancelled
}

// Classify maps a source error to its kind.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrCapabilityAbsent):
		return KindCapabilityAbsent
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrNetworkFailure):
		return KindNetworkFailure
	default:
		return KindSourceFailure
	}
}

// Notice is an informational, non-blocking report of a field failure.
type Notice struct {
	Field   Field  `json:"field"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// NewNotice builds a notice for field from err.
func NewNotice(field Field, err error) Notice {
	n := Notice{Field: field, Kind: Classify(err)}
	switch n.Kind {
	case KindPermissionDenied:
		n.Message = fmt.Sprintf("%s: permission denied", Label(field))
	case KindNetworkFailure:
		n.Message = fmt.Sprintf("Failed to fetch %s!", Label(field))
	default:
		n.Message = fmt.Sprintf("%s unavailable: %v", Label(field), err)
	}
	return n
}
