package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/UnknownOlympus/homepos-setup/internal/config"
	"github.com/UnknownOlympus/homepos-setup/internal/geocoding"
	"github.com/UnknownOlympus/homepos-setup/internal/metrics"
	"github.com/UnknownOlympus/homepos-setup/internal/wizard"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

// main is the entry point of the application.
func main() {
	cmd := newRootCommand(os.Stdin, os.Stdout, os.Stderr, afero.NewOsFs())
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer, fsys afero.Fs) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "homepos-setup",
		Short:         "Geocode a location and store it as the dump1090 home position",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, stdin, stdout, setupLogger(cfg.Env, stderr), fsys)
		},
	}
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	config.RegisterFlags(cmd.Flags())

	return cmd
}

// run wires the geocoding provider, metrics and config file store into one
// wizard run. The metrics textfile is written whatever the outcome.
func run(
	ctx context.Context,
	cfg *config.Config,
	stdin io.Reader,
	stdout io.Writer,
	logger *slog.Logger,
	fsys afero.Fs,
) error {
	provider, err := geocoding.NewProvider(geocoding.ProviderConfig{
		Type:      geocoding.ProviderType(cfg.Provider.Type),
		APIKey:    cfg.Provider.APIKey,
		BaseURL:   cfg.Provider.BaseURL,
		UserAgent: cfg.Provider.UserAgent,
		RateLimit: cfg.Provider.RateLimit,
		Timeout:   cfg.Provider.Timeout,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create geocoding provider: %w", err)
	}

	logger.DebugContext(ctx, "Geocoding provider initialized",
		"type", cfg.Provider.Type, "timeout", cfg.Provider.Timeout)

	reg := prometheus.NewRegistry()
	appMetrics := metrics.NewMetrics(reg)

	wiz := wizard.New(wizard.Options{
		Fs:             fsys,
		ConfigFile:     cfg.ConfigFile,
		Provider:       provider,
		ProviderName:   cfg.Provider.Type,
		In:             stdin,
		Out:            stdout,
		Logger:         logger,
		Metrics:        appMetrics,
		Location:       cfg.Location,
		EnableLocation: cfg.EnableLocation,
		EchoInput:      !isTerminal(stdin),
	})

	_, runErr := wiz.Run(ctx)
	if runErr != nil {
		kind, _ := wizard.KindOf(runErr)
		logger.InfoContext(ctx, "Setup failed", "kind", kind.String(), "error", runErr)
	}

	if err = metrics.WriteTextfile(cfg.MetricsTextfile, reg); err != nil {
		logger.WarnContext(ctx, "Could not export metrics", "path", cfg.MetricsTextfile, "error", err)
	}

	return runErr
}

func isTerminal(r io.Reader) bool {
	file, ok := r.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// setupLogger initializes and returns a logger based on the environment provided.
// Logs go to w so they stay apart from the console dialogue.
func setupLogger(env string, w io.Writer) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(w, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(w, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(w, &slog.HandlerOptions{
				Level:       slog.LevelWarn,
				ReplaceAttr: dropTime,
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(w, &slog.HandlerOptions{
				Level:       slog.LevelError,
				ReplaceAttr: dropTime,
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}

func dropTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}
