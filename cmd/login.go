package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newLoginCmd(app *app) *cobra.Command {
	var useOAuth bool
	var accessToken string

	cmd := &cobra.Command{
		Use:   "login [user]",
		Short: "Authenticate with the server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.connect(flagVerbosity(cmd)); err != nil {
				return err
			}
			if err := app.session.Load(cmd.Context()); err != nil {
				return err
			}

			if useOAuth {
				if err := runOAuthLogin(cmd, app, accessToken); err != nil {
					return err
				}
			} else {
				userArg := ""
				if len(args) > 0 {
					userArg = args[0]
				}
				user, password, err := determineCredentials(cmd, app, userArg)
				if err != nil {
					return err
				}
				err = runWithSpinner(cmd.Context(), cmd.OutOrStdout(), "Logging in...", func(ctx context.Context) error {
					return app.session.Login(ctx, user, password)
				})
				if err != nil {
					return err
				}
			}

			if err := saveSession(cmd, app); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", app.session.Identity())
			return nil
		},
	}

	cmd.Flags().BoolVar(&useOAuth, "use-oauth", false, "Authenticate with an OAuth access token instead of a password")
	cmd.Flags().StringVar(&accessToken, "access-token", "", "OAuth access token (prompted for when omitted)")

	return cmd
}

// runOAuthLogin performs the external-token exchange. Obtaining the token
// (browser dance) is the user's business; we only need the token itself.
func runOAuthLogin(cmd *cobra.Command, app *app, accessToken string) error {
	if accessToken == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Please paste the access token from your browser: ")
		if _, err := fmt.Fscanln(cmd.InOrStdin(), &accessToken); err != nil {
			return fmt.Errorf("read access token: %w", err)
		}
	}

	tokenInfoURL := app.cfg.GetString("oauth-token-info-url")
	return runWithSpinner(cmd.Context(), cmd.OutOrStdout(), "Logging in...", func(ctx context.Context) error {
		return app.session.LoginExternal(ctx, tokenInfoURL, accessToken)
	})
}

func newLogoutCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the persisted session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.connect(flagVerbosity(cmd)); err != nil {
				return err
			}
			if err := app.session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}
