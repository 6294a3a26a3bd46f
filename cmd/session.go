package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/galah-project/galah-cli/internal/adapters/render"
	"github.com/galah-project/galah-cli/internal/application"
	"github.com/galah-project/galah-cli/internal/domain"
	"github.com/galah-project/galah-cli/internal/ports"
)

// ensureReady brings the session to a usable state the way the original
// client did on every run: restore persisted state, log in when there are
// no credentials, fetch the manifest when there is no cache, and persist
// whatever changed.
func ensureReady(cmd *cobra.Command, app *app) error {
	ctx := cmd.Context()

	if err := app.session.Load(ctx); err != nil {
		return err
	}

	if !app.session.Authenticated() {
		user, password, err := determineCredentials(cmd, app, "")
		if err != nil {
			return err
		}
		err = runWithSpinner(ctx, cmd.OutOrStdout(), "Logging in...", func(ctx context.Context) error {
			return app.session.Login(ctx, user, password)
		})
		if err != nil {
			return err
		}
	}

	if !app.session.HasManifest() {
		err := runWithSpinner(ctx, cmd.OutOrStdout(), "Fetching command manifest...", func(ctx context.Context) error {
			return app.session.FetchManifest(ctx)
		})
		if err != nil {
			return err
		}
	}

	return saveSession(cmd, app)
}

// saveSession persists dirty state. A failed save is fatal only under the
// strict-save policy; otherwise it is logged and the command proceeds.
func saveSession(cmd *cobra.Command, app *app) error {
	if !app.session.Dirty() {
		return nil
	}
	if err := app.session.Save(cmd.Context()); err != nil {
		if app.cfg.GetBool("strict-save") {
			return err
		}
		app.logger.Warn("could not persist session", "error", err)
	}
	return nil
}

// determineCredentials resolves the login identity and password: command
// argument, then config, then an interactive prompt; the password comes
// from GALAH_PASSWORD or a hidden prompt.
func determineCredentials(cmd *cobra.Command, app *app, userArg string) (string, string, error) {
	user := userArg
	if user == "" {
		user = app.cfg.GetString("user")
	}
	if user == "" {
		fmt.Fprint(cmd.OutOrStdout(), "What user would you like to log in as?: ")
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return "", "", fmt.Errorf("read user name: %w", err)
		}
		user = strings.TrimSpace(line)
	}
	if user == "" {
		return "", "", fmt.Errorf("no user name was specified")
	}

	if password, ok := os.LookupEnv("GALAH_PASSWORD"); ok {
		app.logger.Info("using password from GALAH_PASSWORD environment variable")
		return user, password, nil
	}

	stdinFd := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFd) {
		// No terminal for a hidden prompt (tests, pipes): read a plain line.
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return "", "", fmt.Errorf("read password: %w", err)
		}
		return user, strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Please enter password for user %s: ", user)
	passwordBytes, err := term.ReadPassword(stdinFd)
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", "", fmt.Errorf("read password: %w", err)
	}
	return user, string(passwordBytes), nil
}

// runDownload drives the download engine for one DownloadReady outcome.
// Ctrl-C cancels the download without killing the process; the partial
// file is left in place.
func runDownload(cmd *cobra.Command, app *app, ready domain.DownloadReady) (string, error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	sink := &render.CarriageSink{Out: cmd.OutOrStdout()}
	downloader := application.NewDownloader(app.api, ports.SystemClock{}, sink, app.logger, app.downloadsDir())

	path, err := downloader.Download(ctx, ready.URL, ready.SuggestedName)
	sink.Clear()
	return path, err
}
