package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPrefsCommand(a *app) *cobra.Command {
	prefs := &cobra.Command{
		Use:   "prefs",
		Short: "Read or change view preferences",
	}

	var client string
	darkMode := &cobra.Command{
		Use:       "dark-mode [on|off]",
		Short:     "Show or set dark mode",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc := a.newService()
			if err := svc.Start(ctx); err != nil {
				return err
			}
			defer svc.Stop()

			if client == "" {
				client = hostClientID()
			}
			if len(args) == 1 {
				if err := svc.SetDarkMode(ctx, client, args[0] == "on"); err != nil {
					return err
				}
			}
			p, err := svc.Preferences(ctx, client)
			if err != nil {
				return err
			}
			state := "off"
			if p.DarkMode() {
				state = "on"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dark mode %s for %s\n", state, client)
			return nil
		},
	}
	darkMode.Flags().StringVar(&client, "client", "", "client id (defaults to this host)")

	prefs.AddCommand(darkMode)
	return prefs
}
