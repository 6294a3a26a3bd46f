package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/galah-project/galah-cli/internal/application"
	"github.com/galah-project/galah-cli/internal/domain"
)

func newCallCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "call COMMAND [ARG]... [NAME=VALUE]...",
		Short: "Invoke a server command",
		Long:  "Invoke one of the commands the server advertises in its manifest. Positional values bind to parameters in declaration order; NAME=VALUE pairs bind by name and must come after all positional values.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.connect(flagVerbosity(cmd)); err != nil {
				return err
			}
			if err := ensureReady(cmd, app); err != nil {
				return err
			}

			positional, keyword, err := application.ParseCallArgs(args[1:])
			if err != nil {
				return err
			}

			outcome, err := app.session.Call(cmd.Context(), args[0], positional, keyword)
			if err != nil {
				return err
			}

			switch result := outcome.(type) {
			case domain.TextResult:
				fmt.Fprintln(cmd.OutOrStdout(), result.Body)
			case domain.DownloadReady:
				path, err := runDownload(cmd, app, result)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "File saved to %s.\n", path)
			}
			return nil
		},
	}
}
