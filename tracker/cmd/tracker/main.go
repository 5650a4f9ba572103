package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/contextcommerce/contextcommerce/tracker/internal/attribution"
	"github.com/contextcommerce/contextcommerce/tracker/internal/config"
	"github.com/contextcommerce/contextcommerce/tracker/internal/consent"
	"github.com/contextcommerce/contextcommerce/tracker/internal/eventlog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		failure.Fprintln(os.Stderr, "error:", err) //nolint:errcheck
		os.Exit(1)
	}
}

// app is the state shared by every subcommand, built once the config is loaded.
type app struct {
	configPath string
	cfg        *config.Config
	consent    *consent.Store
	session    *attribution.Session
	logger     *eventlog.Logger
}

// sink returns the HTTP sink for the configured endpoint, or a console sink
// when none is set.
func (a *app) sink() eventlog.Sink {
	t := a.cfg.Tracker
	if t.Endpoint == "" {
		return eventlog.ConsoleSink{}
	}
	return eventlog.NewHTTPSink(t.Endpoint, t.Timeout)
}

func (a *app) target() string {
	if a.cfg.Tracker.Endpoint == "" {
		return "console"
	}
	return a.cfg.Tracker.Endpoint
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var logLevel string

	cmd := &cobra.Command{
		Use:           "contextcommerce-tracker",
		Short:         "Consent-gated analytics event tracker for contextual commerce widgets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging(cmd, logLevel)
			cfg, err := loadConfig(a.configPath, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			a.cfg = cfg
			t := cfg.Tracker
			a.consent = consent.NewStore(t.ConsentFile)
			a.session = attribution.NewSession(t.LandingURL)
			a.logger = eventlog.New(a.consent, a.session, eventlog.Options{
				MaxQueue:      t.MaxQueue,
				FlushInterval: t.FlushInterval,
				WidgetVersion: t.WidgetVersion,
			})
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "config.yaml", "path to config file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug|info|warn|error")

	cmd.AddCommand(
		newConsentCmd(a),
		newSendTestCmd(a),
		newReplayCmd(a),
		newRunCmd(a),
		newStatsCmd(a),
	)
	return cmd
}

// setupLogging sends JSON logs to the command's stderr so stdout stays
// readable for command output.
func setupLogging(cmd *cobra.Command, level string) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: l})))
}

// loadConfig reads path. A missing default config file falls back to the
// built-in defaults; a missing file named with --config is an error.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		slog.Debug("config file not found, using defaults", "path", path)
		return config.Default(), nil
	}
	return nil, fmt.Errorf("load config: %w", err)
}
