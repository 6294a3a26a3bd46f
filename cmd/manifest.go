package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newManifestCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Manage the cached command manifest",
	}

	cmd.AddCommand(
		newManifestRefreshCmd(app),
		newManifestClearCmd(app),
		newManifestShowCmd(app),
	)

	return cmd
}

func newManifestRefreshCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch the manifest from the server, replacing the cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.connect(flagVerbosity(cmd)); err != nil {
				return err
			}
			if err := app.session.Load(cmd.Context()); err != nil {
				return err
			}

			err := runWithSpinner(cmd.Context(), cmd.OutOrStdout(), "Fetching command manifest...", func(ctx context.Context) error {
				return app.session.FetchManifest(ctx)
			})
			if err != nil {
				return err
			}

			if err := saveSession(cmd, app); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Manifest refreshed: %d command(s).\n", len(app.session.Commands()))
			return nil
		},
	}
}

func newManifestClearCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the cached manifest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.connect(flagVerbosity(cmd)); err != nil {
				return err
			}
			if err := app.session.ClearManifest(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Manifest cache cleared.")
			return nil
		},
	}
}

func newManifestShowCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List the known commands and their parameters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.connect(flagVerbosity(cmd)); err != nil {
				return err
			}
			if err := ensureReady(cmd, app); err != nil {
				return err
			}

			commands := app.session.Commands()
			for _, name := range commands.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), commands[name].Usage())
			}
			return nil
		},
	}
}
