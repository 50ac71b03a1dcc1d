package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Grant-Gate/grantgate/internal/config"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the trust core",
	Long: `Start the Grant Gate trust core.

Boots the rate limiter, authorization service, credential vendor, and
audit pipeline from the configuration file, then runs until interrupted.
Expired credentials are swept in the background.

Examples:
  # Start with config file settings
  grantgate start

  # Start with a specific config file
  grantgate --config /path/to/config.yaml start

  # Start in development mode
  grantgate start --dev`,
	RunE: runStart,
}

var devMode bool

func init() {
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (verbose logging, seeded dev agent)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigWithFlags()
	if err != nil {
		return err
	}

	// Signal context for graceful shutdown.
	// stop() restores default signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logger := newLogger(cfg)
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}
	if cfg.DevMode {
		logger.Warn("development mode enabled; do not use the dev signing secret in production")
	}

	shutdownTracing, err := setupTracing(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer shutdownTracing()

	c, err := buildCore(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	c.startBackground(ctx)

	if cfg.Server.MetricsAddr != "" {
		startMetricsServer(ctx, cfg.Server.MetricsAddr, c, logger)
	}

	logger.Info("grantgate started",
		"tools", len(cfg.Tools),
		"policies", len(cfg.Policies),
		"agents", len(cfg.Auth.Agents),
		"rate_limiting", cfg.RateLimit.Enabled,
	)

	<-ctx.Done()
	logger.Info("grantgate stopped")
	return nil
}

// loadConfigWithFlags loads config, applies CLI flag overrides, then
// completes dev defaults and validation.
func loadConfigWithFlags() (*config.GateConfig, error) {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if devMode {
		cfg.DevMode = true
	}

	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// newLogger builds the stderr logger. DevMode always forces debug.
func newLogger(cfg *config.GateConfig) *slog.Logger {
	level := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// setupTracing installs a stderr span exporter in dev mode. Outside dev
// mode the default no-op tracer provider stays in place.
func setupTracing(ctx context.Context, cfg *config.GateConfig) (func(), error) {
	if !cfg.DevMode {
		return func() {}, nil
	}

	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(os.Stderr),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}, nil
}

// startMetricsServer serves the Prometheus registry until ctx is done.
func startMetricsServer(ctx context.Context, addr string, c *core, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
