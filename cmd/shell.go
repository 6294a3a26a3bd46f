package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/galah-project/galah-cli/internal/domain"
	"github.com/galah-project/galah-cli/internal/shell"
)

func newShellCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive shell for issuing commands",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.connect(flagVerbosity(cmd)); err != nil {
				return err
			}
			if err := ensureReady(cmd, app); err != nil {
				return err
			}

			sh := &shell.Shell{
				Caller: app.session,
				Download: func(_ context.Context, ready domain.DownloadReady) (string, error) {
					return runDownload(cmd, app, ready)
				},
				In:  cmd.InOrStdin(),
				Out: cmd.OutOrStdout(),
			}
			return sh.Run(cmd.Context())
		},
	}
}
