//go:build !linux

package host

import (
	"fmt"

	"github.com/okian/devinfo/internal/domain/facts"
)

func totalMemory() (uint64, error) {
	return 0, fmt.Errorf("%w: memory size", facts.ErrCapabilityAbsent)
}
