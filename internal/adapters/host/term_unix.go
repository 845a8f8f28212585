//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package host

import (
	"os"

	"golang.org/x/sys/unix"
)

func terminalSize(fd int) (cols, rows int, err error) {
	ws, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
	if err != nil {
		return 0, 0, err
	}
	return int(ws.Col), int(ws.Row), nil
}

func resizeSignal() os.Signal { return unix.SIGWINCH }
