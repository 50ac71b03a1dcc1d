package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	celadapter "github.com/Grant-Gate/grantgate/internal/adapter/outbound/cel"
	"github.com/Grant-Gate/grantgate/internal/adapter/outbound/memory"
	redisadapter "github.com/Grant-Gate/grantgate/internal/adapter/outbound/redis"
	"github.com/Grant-Gate/grantgate/internal/adapter/outbound/sqlite"
	"github.com/Grant-Gate/grantgate/internal/config"
	"github.com/Grant-Gate/grantgate/internal/domain/audit"
	"github.com/Grant-Gate/grantgate/internal/domain/auth"
	"github.com/Grant-Gate/grantgate/internal/domain/authz"
	"github.com/Grant-Gate/grantgate/internal/domain/credential"
	"github.com/Grant-Gate/grantgate/internal/domain/ratelimit"
	"github.com/Grant-Gate/grantgate/internal/service"
)

// core holds the wired trust core plus everything that needs explicit
// shutdown.
type core struct {
	cfg      *config.GateConfig
	logger   *slog.Logger
	access   *service.AccessService
	vendor   *credential.Vendor
	authz    *authz.Service
	janitor  *service.Janitor
	registry *prometheus.Registry

	localWindows *memory.WindowStore
	auditStore   audit.Store
	redisClient  *redis.Client
}

// buildCore wires all components from a validated configuration.
// The caller owns the returned core and must call Close.
func buildCore(cfg *config.GateConfig, logger *slog.Logger) (*core, error) {
	c := &core{cfg: cfg, logger: logger}

	// Signing and credential issuance.
	signer, err := credential.NewHMACSigner([]byte(cfg.Signing.Secret), cfg.Signing.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create token signer: %w", err)
	}
	c.vendor = credential.NewVendor(signer, logger)

	// Authorization with CEL condition support.
	evaluator, err := celadapter.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create condition evaluator: %w", err)
	}
	c.authz = authz.NewService(logger, authz.WithConditionEvaluator(evaluator))
	for _, p := range cfg.BuildPolicies() {
		c.authz.AddPolicy(p)
	}

	// Seed agents, keys, and tools.
	agents := memory.NewAgentStore()
	for _, a := range cfg.BuildAgents() {
		agents.AddAgent(a)
	}
	for _, k := range cfg.BuildAPIKeys() {
		agents.AddKey(k)
	}
	directory := memory.NewDirectory()
	for _, t := range cfg.BuildTools() {
		directory.AddTool(t)
	}

	// Rate limiter: shared Redis backend when configured, local windows
	// as the one-way fallback.
	limiter, err := c.buildLimiter()
	if err != nil {
		c.Close()
		return nil, err
	}

	// Audit store.
	c.auditStore, err = buildAuditStore(cfg)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.registry = prometheus.NewRegistry()
	metrics := service.NewMetrics(c.registry)

	defaultTTL, err := time.ParseDuration(cfg.Signing.DefaultTTL)
	if err != nil {
		defaultTTL = credential.DefaultTTL
		logger.Warn("invalid signing.default_ttl, using default",
			"value", cfg.Signing.DefaultTTL, "default", defaultTTL.String())
	}

	c.access = service.NewAccessService(
		limiter,
		auth.NewAPIKeyService(agents),
		agents,
		directory,
		c.authz,
		c.vendor,
		c.auditStore,
		metrics,
		logger,
		service.WithDefaultTTL(defaultTTL),
	)

	cleanupInterval, err := time.ParseDuration(cfg.Cleanup.Interval)
	if err != nil {
		cleanupInterval = service.DefaultCleanupInterval
		logger.Warn("invalid cleanup.interval, using default",
			"value", cfg.Cleanup.Interval, "default", cleanupInterval.String())
	}
	c.janitor = service.NewJanitor(c.vendor, cleanupInterval, logger)

	return c, nil
}

// buildLimiter constructs the rate limiter, or returns nil when rate
// limiting is disabled.
func (c *core) buildLimiter() (*ratelimit.Limiter, error) {
	rl := c.cfg.RateLimit
	if !rl.Enabled {
		return nil, nil
	}

	window, err := time.ParseDuration(rl.Window)
	if err != nil {
		return nil, fmt.Errorf("invalid rate_limit.window: %w", err)
	}
	cleanupInterval := parseDurationOr(rl.CleanupInterval, 5*time.Minute)
	maxTTL := parseDurationOr(rl.MaxTTL, time.Hour)

	c.localWindows = memory.NewWindowStoreWithConfig(cleanupInterval, maxTTL)

	var primary ratelimit.WindowStore
	var opts []ratelimit.LimiterOption
	if rl.RedisAddr != "" {
		c.redisClient = redis.NewClient(&redis.Options{Addr: rl.RedisAddr})
		primary = redisadapter.NewWindowStore(c.redisClient)
		opts = append(opts, ratelimit.WithStoreTimeout(parseDurationOr(rl.RedisTimeout, 2*time.Second)))
		c.logger.Info("rate limiter using shared backend", "addr", rl.RedisAddr)
	}

	cfg := ratelimit.Config{Limit: rl.Limit, Window: window}
	return ratelimit.NewLimiter(cfg, primary, c.localWindows, c.logger, opts...), nil
}

// buildAuditStore constructs the audit store named by audit.output.
func buildAuditStore(cfg *config.GateConfig) (audit.Store, error) {
	output := cfg.Audit.Output
	switch {
	case output == "stdout" || output == "":
		return memory.NewAuditStore(cfg.Audit.BufferSize), nil

	case strings.HasPrefix(output, "file://"):
		path := strings.TrimPrefix(output, "file://")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit file: %w", err)
		}
		return memory.NewAuditStoreWithWriter(f, cfg.Audit.BufferSize), nil

	case strings.HasPrefix(output, "sqlite://"):
		path := strings.TrimPrefix(output, "sqlite://")
		store, err := sqlite.NewAuditStore(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit database: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported audit output: %s", output)
	}
}

// startBackground launches the janitor and local window cleanup.
func (c *core) startBackground(ctx context.Context) {
	c.janitor.Start(ctx)
	if c.localWindows != nil {
		c.localWindows.StartCleanup(ctx)
	}
}

// Close stops background work and releases held resources.
// Safe to call on a partially built core.
func (c *core) Close() {
	if c.janitor != nil {
		c.janitor.Stop()
	}
	if c.localWindows != nil {
		c.localWindows.Stop()
	}
	if c.auditStore != nil {
		if err := c.auditStore.Close(); err != nil {
			c.logger.Warn("failed to close audit store", "error", err)
		}
	}
	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			c.logger.Warn("failed to close redis client", "error", err)
		}
	}
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// parseLogLevel maps a config log level string to a slog level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
