package host

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"

	"github.com/okian/devinfo/internal/domain/facts"
)

const netDir = "class/net"

// Link types reported as the connection's effective type.
const (
	LinkWiFi     = "wifi"
	LinkEthernet = "ethernet"
	LinkOffline  = "offline"
)

// network reads link information from class/net.
type network struct {
	fsys fs.FS
}

func newNetwork(fsys fs.FS) *network { return &network{fsys: fsys} }

func (n *network) present() bool {
	_, err := fs.ReadDir(n.fsys, netDir)
	return err == nil
}

// Connection reports the first interface that is up, preferring wired links.
func (n *network) Connection(ctx context.Context) (facts.Connection, error) {
	if err := ctx.Err(); err != nil {
		return facts.Connection{}, err
	}
	entries, err := fs.ReadDir(n.fsys, netDir)
	if err != nil {
		return facts.Connection{}, fmt.Errorf("%w: %w", facts.ErrCapabilityAbsent, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Name() != "lo" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var wifi *facts.Connection
	for _, name := range names {
		dir := path.Join(netDir, name)
		if state, err := readTrimmed(n.fsys, path.Join(dir, "operstate")); err != nil || state != "up" {
			continue
		}
		if _, err := fs.Stat(n.fsys, path.Join(dir, "wireless")); err == nil {
			if wifi == nil {
				wifi = &facts.Connection{EffectiveType: LinkWiFi}
			}
			continue
		}
		c := facts.Connection{EffectiveType: LinkEthernet}
		if raw, err := readTrimmed(n.fsys, path.Join(dir, "speed")); err == nil {
			if mbps, err := strconv.Atoi(raw); err == nil && mbps > 0 {
				c.DownlinkMbps = float64(mbps)
			}
		}
		return c, nil
	}
	if wifi != nil {
		return *wifi, nil
	}
	return facts.Connection{EffectiveType: LinkOffline}, nil
}
