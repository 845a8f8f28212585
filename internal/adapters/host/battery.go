package host

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/okian/devinfo/internal/domain/aggregator"
	"github.com/okian/devinfo/internal/domain/facts"
	"github.com/okian/devinfo/pkg/logger"
)

const powerSupplyDir = "class/power_supply"

// battery reads the first battery under power_supply.
type battery struct {
	fsys     fs.FS
	interval time.Duration
	logger   logger.Logger
}

func newBattery(fsys fs.FS, interval time.Duration, log logger.Logger) *battery {
	return &battery{fsys: fsys, interval: interval, logger: log}
}

func (b *battery) present() bool {
	_, err := b.device()
	return err == nil
}

// device returns the sysfs directory of the first supply whose type is Battery.
func (b *battery) device() (string, error) {
	entries, err := fs.ReadDir(b.fsys, powerSupplyDir)
	if err != nil {
		return "", fmt.Errorf("%w: %w", facts.ErrCapabilityAbsent, err)
	}
	for _, e := range entries {
		dir := path.Join(powerSupplyDir, e.Name())
		kind, err := readTrimmed(b.fsys, path.Join(dir, "type"))
		if err != nil {
			if strings.HasPrefix(e.Name(), "BAT") {
				return dir, nil
			}
			continue
		}
		if kind == "Battery" {
			return dir, nil
		}
	}
	return "", fmt.Errorf("%w: no battery", facts.ErrCapabilityAbsent)
}

// Battery reads capacity and status once.
func (b *battery) Battery(ctx context.Context) (facts.Battery, error) {
	if err := ctx.Err(); err != nil {
		return facts.Battery{}, err
	}
	dir, err := b.device()
	if err != nil {
		return facts.Battery{}, err
	}
	raw, err := readTrimmed(b.fsys, path.Join(dir, "capacity"))
	if err != nil {
		return facts.Battery{}, fmt.Errorf("read capacity: %w", err)
	}
	pct, err := strconv.Atoi(raw)
	if err != nil {
		return facts.Battery{}, fmt.Errorf("parse capacity %q: %w", raw, err)
	}
	status, err := readTrimmed(b.fsys, path.Join(dir, "status"))
	if err != nil {
		return facts.Battery{}, fmt.Errorf("read status: %w", err)
	}
	return facts.BatteryFromLevel(float64(pct)/100, status == "Charging" || status == "Full"), nil
}

// WatchBattery polls sysfs and calls fn when the reading changes.
func (b *battery) WatchBattery(fn func(facts.Battery)) (aggregator.Unsubscribe, error) {
	last, err := b.Battery(context.Background())
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			cur, err := b.Battery(ctx)
			if err != nil {
				if ctx.Err() == nil {
					b.logger.Warn(ctx, "battery poll failed", logger.Error(err))
				}
				continue
			}
			if cur != last {
				last = cur
				fn(cur)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}, nil
}

func readTrimmed(fsys fs.FS, name string) (string, error) {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
