package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/galah-project/galah-cli/internal/adapters/galahapi"
	"github.com/galah-project/galah-cli/internal/adapters/statefile"
	"github.com/galah-project/galah-cli/internal/application"
	"github.com/galah-project/galah-cli/internal/ports"
)

const defaultTokenInfoURL = "https://www.googleapis.com/oauth2/v1/tokeninfo"

type app struct {
	cfg    *viper.Viper
	logger *slog.Logger

	store   ports.StateStore
	api     *galahapi.Client
	session *application.Session
}

func wireApp() (*app, error) {
	cfg := viper.New()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	cfg.SetConfigName("config")
	cfg.SetConfigType("toml")
	cfg.AddConfigPath(filepath.Join(homeDir, ".config", "galah"))

	cfg.SetDefault("host", "")
	cfg.SetDefault("session-path", filepath.Join(homeDir, ".cache", "galah", "session.toml"))
	cfg.SetDefault("manifest-path", filepath.Join(homeDir, ".cache", "galah", "api_info.json"))
	cfg.SetDefault("downloads-directory", ".")
	cfg.SetDefault("verbosity", 0)
	cfg.SetDefault("strict-save", false)
	cfg.SetDefault("no-verify-certificate", false)
	cfg.SetDefault("oauth-token-info-url", defaultTokenInfoURL)

	cfg.SetEnvPrefix("GALAH")
	cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cfg.AutomaticEnv()

	if err := cfg.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return &app{cfg: cfg}, nil
}

// connect finishes wiring the parts that need a configured host. Called
// by commands that talk to the server or touch persisted state; plain
// commands like version never pay for it.
func (a *app) connect(verbosity int) error {
	if a.session != nil {
		return nil
	}

	if verbosity == 0 {
		verbosity = a.cfg.GetInt("verbosity")
	}
	a.logger = newLogger(verbosity)

	host := a.cfg.GetString("host")
	if host == "" {
		return fmt.Errorf("host is not configured (set host in the config file or GALAH_HOST)")
	}

	opts := []galahapi.Option{galahapi.WithLogger(a.logger)}
	if a.cfg.GetBool("no-verify-certificate") {
		opts = append(opts, galahapi.WithInsecureTLS())
	}

	api, err := galahapi.NewClient(host, opts...)
	if err != nil {
		return err
	}

	store, err := statefile.NewStore(
		a.cfg.GetString("session-path"),
		a.cfg.GetString("manifest-path"),
	)
	if err != nil {
		return err
	}

	a.api = api
	a.store = store
	a.session = application.NewSession(api, store, ports.SystemClock{}, a.logger)
	return nil
}

func (a *app) downloadsDir() string {
	return a.cfg.GetString("downloads-directory")
}
