package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/okian/devinfo/internal/adapters/host"
	service "github.com/okian/devinfo/internal/app"
	"github.com/okian/devinfo/internal/domain/aggregator"
)

// LoadedMessage is printed once every field has settled.
const LoadedMessage = "Device Info Loaded!"

func newShowCommand(a *app) *cobra.Command {
	var more, watch bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show facts about this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc := a.newService()
			if err := svc.Start(ctx); err != nil {
				return err
			}
			defer svc.Stop()

			theme, err := a.hostTheme(ctx, svc)
			if err != nil {
				return err
			}
			r := newRenderer(cmd.OutOrStdout(), theme)
			h := a.newHost(cmd)
			src := service.Source{Environment: h.Environment(), Capabilities: h.Capabilities()}

			if !watch {
				res, err := svc.Collect(ctx, src)
				if err != nil {
					return err
				}
				r.rows(res.Facts.Rows(more))
				r.notices(res.Notices)
				if res.Settled {
					r.line(LoadedMessage)
				}
				return nil
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			loaded := false
			return svc.Stream(ctx, src, func(_ string, u aggregator.Update) {
				r.rows(changedRows(u.Facts, u.Changed, more))
				r.notices(u.Notices)
				if u.Settled && !loaded {
					loaded = true
					r.line(LoadedMessage)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&more, "more", false, "include the extended fields")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep printing live changes until interrupted")
	return cmd
}

// newHost builds the local host adapter from the loaded configuration.
func (a *app) newHost(cmd *cobra.Command) *host.Host {
	return host.New(
		host.WithSysFS(os.DirFS(a.cfg.SysfsRoot)),
		host.WithTerminal(terminalFile(cmd.OutOrStdout())),
		host.WithPollInterval(a.cfg.BatteryPoll()),
		host.WithGeolocation(host.GeoConfig{
			Allowed:   a.cfg.GeolocationAllowed,
			Latitude:  a.cfg.GeolocationLatitude,
			Longitude: a.cfg.GeolocationLongitude,
		}),
		host.WithVersion(a.version),
		host.WithLogger(a.log.Named("host")),
	)
}

// hostTheme returns the stored theme of this machine's client id.
func (a *app) hostTheme(ctx context.Context, svc *service.Service) (string, error) {
	p, err := svc.Preferences(ctx, hostClientID())
	if err != nil {
		return "", err
	}
	return p.Theme(), nil
}

// hostClientID names this machine in the preference store.
func hostClientID() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "host"
	}
	var b strings.Builder
	b.WriteString("host-")
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	id := b.String()
	if len(id) > 128 {
		id = id[:128]
	}
	return id
}
