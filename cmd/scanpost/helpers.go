package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/scanpost/scanpost/internal/github"
	"github.com/scanpost/scanpost/internal/ledger"
	"github.com/scanpost/scanpost/internal/observability"
	"github.com/scanpost/scanpost/pkg/config"
)

// loadConfig reads the config file (explicit path or discovered from the
// working directory), applies environment overrides and validates the result.
func loadConfig(path string, getenv func(string) string) (*config.Config, error) {
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			path = config.FindConfigFile(wd)
		}
	}

	cfg := config.DefaultConfig()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.ApplyEnv(getenv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *zap.Logger {
	return observability.New(cfg.Logging, zapcore.AddSync(os.Stderr))
}

// githubOptions resolves GitHub credentials. A token wins; otherwise GitHub
// App credentials are read from GITHUB_APP_ID, GITHUB_APP_INSTALLATION_ID and
// GITHUB_APP_PRIVATE_KEY (PEM) or GITHUB_APP_PRIVATE_KEY_PATH.
func githubOptions(cfg *config.Config, getenv func(string) string) (github.Options, error) {
	opts := github.Options{
		Token:   cfg.Token(getenv),
		APIURL:  cfg.GitHub.APIURL,
		Timeout: time.Duration(cfg.GitHub.Timeout) * time.Second,
	}
	if opts.Token != "" || getenv("GITHUB_APP_ID") == "" {
		return opts, nil
	}

	appID, err := strconv.ParseInt(getenv("GITHUB_APP_ID"), 10, 64)
	if err != nil {
		return opts, fmt.Errorf("parse GITHUB_APP_ID: %w", err)
	}
	installationID, err := strconv.ParseInt(getenv("GITHUB_APP_INSTALLATION_ID"), 10, 64)
	if err != nil {
		return opts, fmt.Errorf("parse GITHUB_APP_INSTALLATION_ID: %w", err)
	}

	key := []byte(getenv("GITHUB_APP_PRIVATE_KEY"))
	if len(key) == 0 {
		keyPath := getenv("GITHUB_APP_PRIVATE_KEY_PATH")
		if keyPath == "" {
			return opts, fmt.Errorf("GITHUB_APP_PRIVATE_KEY or GITHUB_APP_PRIVATE_KEY_PATH is required with GITHUB_APP_ID")
		}
		key, err = os.ReadFile(keyPath)
		if err != nil {
			return opts, fmt.Errorf("read app private key: %w", err)
		}
	}

	opts.App = &github.AppCredentials{
		AppID:          appID,
		InstallationID: installationID,
		PrivateKeyPEM:  key,
	}
	return opts, nil
}

// openLedger connects to the configured ledger database, running migrations
// when auto_migrate is set. It returns nils when no database is configured.
func openLedger(ctx context.Context, cfg *config.Config) (*ledger.Store, *sql.DB, error) {
	if cfg.Ledger.DatabaseURL == "" {
		return nil, nil, nil
	}
	db, err := ledger.Open(ctx, cfg.Ledger.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Ledger.AutoMigrate {
		if err := ledger.AutoMigrate(db); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	return ledger.NewStore(db), db, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
