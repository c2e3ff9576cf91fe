// Package cli holds the start-up steps shared by the spendlog binaries.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"spendlog/internal/backend"
	"spendlog/internal/config"
	applog "spendlog/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// Bootstrap reads .env and the environment and installs the process logger.
// The caller decides which validation the binary needs.
func Bootstrap(component string) (*config.Config, *applog.Logger, error) {
	LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := applog.Setup(cfg.LogLevel, cfg.LogFormat, component)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// MustBootstrap is Bootstrap followed by validate; it exits the process on failure.
func MustBootstrap(component string, validate func(*config.Config) error) (*config.Config, *applog.Logger) {
	cfg, logger, err := Bootstrap(component)
	if err != nil {
		applog.New(applog.DefaultConfig()).Error("Failed to load configuration",
			applog.FieldComponent, component,
			applog.FieldError, err)
		os.Exit(1)
	}
	if validate != nil {
		if err := validate(cfg); err != nil {
			logger.Error("Configuration validation failed", "error", err)
			os.Exit(1)
		}
	}
	return cfg, logger
}

// ValidateBackend checks only the settings needed to open the data backend.
// Offline tools use it instead of the full server validation.
func ValidateBackend(cfg *config.Config) error {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	return bc.Validate()
}

// OpenStore opens the configured data backend.
func OpenStore(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*backend.BackendResult, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bc)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.DataBackend, err)
	}
	return result, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
