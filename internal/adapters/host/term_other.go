//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package host

import (
	"errors"
	"os"
)

var errNoWinsize = errors.New("terminal size not supported on this platform")

func terminalSize(int) (cols, rows int, err error) { return 0, 0, errNoWinsize }

func resizeSignal() os.Signal { return nil }
