package cli

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	service "github.com/okian/devinfo/internal/app"
	"github.com/okian/devinfo/internal/domain/facts"
)

// ErrNothingToCopy is returned when the requested field did not resolve.
var ErrNothingToCopy = errors.New("nothing to copy")

func newCopyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "copy <field>",
		Short: "Copy a rendered fact to the clipboard",
		Long: "Copy a rendered fact to the clipboard through the terminal's OSC 52 sequence.\n" +
			"Fields use their API names, for example address, browser or viewport.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			field := facts.Field(args[0])
			if !field.Valid() {
				return fmt.Errorf("unknown field %q", args[0])
			}

			svc := a.newService()
			if err := svc.Start(ctx); err != nil {
				return err
			}
			defer svc.Stop()

			h := a.newHost(cmd)
			res, err := svc.Collect(ctx, service.Source{Environment: h.Environment(), Capabilities: h.Capabilities()})
			if err != nil {
				return err
			}
			fact := res.Facts.Get(field)
			if fact.State != facts.Resolved {
				return fmt.Errorf("%s: %w", facts.Label(field), ErrNothingToCopy)
			}
			text := fact.Display(field)
			if err := writeClipboard(cmd.OutOrStdout(), text); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Copied %s: %s\n", facts.Label(field), text)
			return nil
		},
	}
}

// writeClipboard emits the OSC 52 set-clipboard sequence for text.
func writeClipboard(w io.Writer, text string) error {
	_, err := fmt.Fprintf(w, "\x1b]52;c;%s\a", base64.StdEncoding.EncodeToString([]byte(text)))
	return err
}
