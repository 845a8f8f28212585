package host

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/okian/devinfo/internal/domain/aggregator"
	"github.com/okian/devinfo/internal/domain/facts"
)

// Orientation names, matching the screen orientation types browsers report.
const (
	Landscape = "landscape-primary"
	Portrait  = "portrait-primary"
)

// terminal reports the controlling terminal's size as the viewport and
// derives orientation from it.
type terminal struct {
	fd int
}

// OrientationOf classifies a viewport.
func OrientationOf(v facts.Viewport) string {
	if v.Height > v.Width {
		return Portrait
	}
	return Landscape
}

func (t *terminal) size() (facts.Viewport, error) {
	w, h, err := terminalSize(t.fd)
	if err != nil {
		return facts.Viewport{}, err
	}
	return facts.Viewport{Width: w, Height: h}, nil
}

// Orientation reads the current orientation once.
func (t *terminal) Orientation(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := t.size()
	if err != nil {
		return "", fmt.Errorf("%w: %w", facts.ErrCapabilityAbsent, err)
	}
	return OrientationOf(v), nil
}

// WatchViewport reports every terminal resize.
func (t *terminal) WatchViewport(fn func(facts.Viewport)) (aggregator.Unsubscribe, error) {
	return t.watch(fn)
}

// WatchOrientation reports orientation changes.
func (t *terminal) WatchOrientation(fn func(string)) (aggregator.Unsubscribe, error) {
	var last string
	if v, err := t.size(); err == nil {
		last = OrientationOf(v)
	}
	return t.watch(func(v facts.Viewport) {
		if o := OrientationOf(v); o != last {
			last = o
			fn(o)
		}
	})
}

func (t *terminal) watch(onResize func(facts.Viewport)) (aggregator.Unsubscribe, error) {
	sig := resizeSignal()
	if sig == nil {
		return nil, fmt.Errorf("%w: resize notifications", facts.ErrCapabilityAbsent)
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sig)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			case <-ch:
				if v, err := t.size(); err == nil {
					onResize(v)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(stop)
			<-done
		})
	}, nil
}
