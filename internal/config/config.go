// Package config provides configuration types for Grant Gate.
//
// Grant Gate is configured from a single YAML file plus environment
// overrides. The schema is deliberately flat and file-based:
//
//   - Agents, API keys, tools, and policies are seeded from the file
//   - Credential signing uses a shared HMAC secret
//   - Rate limiting optionally uses a shared Redis backend
//   - Audit output is stdout, a file, or a SQLite database
package config

import (
	"github.com/spf13/viper"
)

// GateConfig is the top-level configuration for Grant Gate.
type GateConfig struct {
	// Server configures logging and runtime behavior.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Signing configures credential token signing.
	Signing SigningConfig `yaml:"signing" mapstructure:"signing"`

	// RateLimit configures the request rate limiter.
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`

	// Audit configures where access records are written.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Auth configures file-based agents and API keys.
	// Optional: when empty, only pre-resolved agent IDs can request access.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// Tools defines the registered tools agents may request access to.
	Tools []ToolConfig `yaml:"tools" mapstructure:"tools" validate:"omitempty,dive"`

	// Policies defines the access control policies.
	// Optional: tools without attached policies grant default read access.
	Policies []PolicyConfig `yaml:"policies" mapstructure:"policies" validate:"omitempty,dive"`

	// Cleanup configures the expired-credential sweep.
	Cleanup CleanupConfig `yaml:"cleanup" mapstructure:"cleanup"`

	// DevMode enables development features (verbose logging, seeded
	// dev agent and secret).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures runtime behavior.
type ServerConfig struct {
	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	// Defaults to "info" if empty. DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// MetricsAddr is the optional Prometheus metrics listener address
	// (e.g. "127.0.0.1:9102"). Empty disables the metrics endpoint.
	MetricsAddr string `yaml:"metrics_addr" mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`
}

// SigningConfig configures credential token signing.
type SigningConfig struct {
	// Secret is the HMAC signing secret. Required outside dev mode.
	Secret string `yaml:"secret" mapstructure:"secret"`

	// Issuer is the audience prefix stamped into issued tokens.
	// Defaults to "grantgate".
	Issuer string `yaml:"issuer" mapstructure:"issuer"`

	// DefaultTTL is the credential lifetime when a decision carries no
	// duration (e.g. "15m"). Defaults to "15m".
	DefaultTTL string `yaml:"default_ttl" mapstructure:"default_ttl" validate:"omitempty"`
}

// RateLimitConfig configures rate limiting.
type RateLimitConfig struct {
	// Enabled turns rate limiting on or off.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Limit is the maximum requests per window per caller.
	// Defaults to 100 if rate limiting is enabled.
	Limit int `yaml:"limit" mapstructure:"limit" validate:"omitempty,min=1"`

	// Window is the sliding window length (e.g. "1m").
	// Defaults to "1m".
	Window string `yaml:"window" mapstructure:"window" validate:"omitempty"`

	// RedisAddr is the optional shared Redis backend (host:port).
	// When empty, windows are tracked in process memory only.
	RedisAddr string `yaml:"redis_addr" mapstructure:"redis_addr" validate:"omitempty,hostname_port"`

	// RedisTimeout bounds each call to the shared backend (e.g. "2s").
	// Defaults to "2s".
	RedisTimeout string `yaml:"redis_timeout" mapstructure:"redis_timeout" validate:"omitempty"`

	// CleanupInterval is how often idle local window keys are removed
	// (e.g. "5m"). Defaults to "5m".
	CleanupInterval string `yaml:"cleanup_interval" mapstructure:"cleanup_interval" validate:"omitempty"`

	// MaxTTL is the maximum age of an idle local window key before
	// removal (e.g. "1h"). Defaults to "1h".
	MaxTTL string `yaml:"max_ttl" mapstructure:"max_ttl" validate:"omitempty"`
}

// AuditConfig configures access-record output.
type AuditConfig struct {
	// Output specifies where access records are written.
	// Valid values: "stdout", "file:///absolute/path/to/audit.log",
	// or "sqlite:///absolute/path/to/audit.db".
	// Defaults to "stdout" if empty.
	Output string `yaml:"output" mapstructure:"output" validate:"required,audit_output"`

	// BufferSize is the number of recent records kept in memory for
	// recent-record queries. Defaults to 1000 if not specified or 0.
	BufferSize int `yaml:"buffer_size" mapstructure:"buffer_size" validate:"omitempty,min=1"`
}

// AuthConfig configures file-based authentication.
type AuthConfig struct {
	// Agents defines the known agents.
	Agents []AgentConfig `yaml:"agents" mapstructure:"agents" validate:"omitempty,dive"`

	// APIKeys defines the API keys that map to agents.
	APIKeys []APIKeyConfig `yaml:"api_keys" mapstructure:"api_keys" validate:"omitempty,dive"`
}

// AgentConfig defines a file-based agent.
type AgentConfig struct {
	// ID is the unique identifier for this agent.
	ID string `yaml:"id" mapstructure:"id" validate:"required"`

	// Name is the human-readable name for this agent.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	// Roles are the roles assigned to this agent (used in policy evaluation).
	Roles []string `yaml:"roles" mapstructure:"roles" validate:"required,min=1,dive,oneof=admin user readonly"`
}

// APIKeyConfig defines an API key that authenticates as an agent.
type APIKeyConfig struct {
	// KeyHash is the stored hash of the API key: either a SHA-256 hex
	// hash (optionally "sha256:" prefixed) or an Argon2id PHC string.
	// Generate with: grantgate hash-key <raw-key>
	KeyHash string `yaml:"key_hash" mapstructure:"key_hash" validate:"required"`

	// AgentID references the agent this key authenticates as.
	// Must match an ID in Auth.Agents.
	AgentID string `yaml:"agent_id" mapstructure:"agent_id" validate:"required"`
}

// ToolConfig defines a registered tool.
type ToolConfig struct {
	// ID is the unique identifier for this tool.
	ID string `yaml:"id" mapstructure:"id" validate:"required"`

	// Name is the human-readable name. Defaults to the ID.
	Name string `yaml:"name" mapstructure:"name"`

	// Scopes are the scopes this tool supports (e.g. "read", "write").
	Scopes []string `yaml:"scopes" mapstructure:"scopes"`

	// Tags classify the tool for tag-based policy matching.
	Tags []string `yaml:"tags" mapstructure:"tags"`

	// Policies lists policy IDs attached to this tool.
	// Must match IDs in the top-level Policies list.
	Policies []string `yaml:"policies" mapstructure:"policies"`
}

// PolicyConfig defines an access control policy.
type PolicyConfig struct {
	// ID is the unique identifier for this policy.
	ID string `yaml:"id" mapstructure:"id" validate:"required"`

	// Name is the human-readable name, echoed in grant reasons.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	// Priority orders policy evaluation; higher values win.
	Priority int `yaml:"priority" mapstructure:"priority"`

	// Roles the requesting agent must hold one of. Empty matches all.
	Roles []string `yaml:"roles" mapstructure:"roles" validate:"omitempty,dive,oneof=admin user readonly"`

	// Scopes granted on a match. Empty falls back to the tool's scopes.
	Scopes []string `yaml:"scopes" mapstructure:"scopes"`

	// Tools restricts the policy to specific tool IDs. Empty matches all.
	Tools []string `yaml:"tools" mapstructure:"tools"`

	// Tags restricts the policy to tools carrying one of these tags.
	Tags []string `yaml:"tags" mapstructure:"tags"`

	// Condition is an optional CEL expression gating applicability.
	// Available variables: agent_id, agent_roles, tool_id, tool_tags,
	// tool_scopes.
	Condition string `yaml:"condition" mapstructure:"condition"`

	// Time optionally restricts when the policy grants access.
	Time *TimeConfig `yaml:"time" mapstructure:"time"`

	// Limits optionally caps resource usage under the policy.
	Limits *LimitsConfig `yaml:"limits" mapstructure:"limits"`
}

// TimeConfig restricts a policy to days and hours.
type TimeConfig struct {
	// Days are permitted weekdays, 0 = Monday through 6 = Sunday.
	// Empty permits every day.
	Days []int `yaml:"days" mapstructure:"days" validate:"omitempty,dive,min=0,max=6"`

	// Hours are permitted hour ranges. Start is inclusive, End exclusive.
	// Empty permits every hour.
	Hours []HourRangeConfig `yaml:"hours" mapstructure:"hours" validate:"omitempty,dive"`
}

// HourRangeConfig is a half-open [start, end) hour range.
type HourRangeConfig struct {
	Start int `yaml:"start" mapstructure:"start" validate:"min=0,max=23"`
	End   int `yaml:"end" mapstructure:"end" validate:"min=1,max=24"`
}

// LimitsConfig caps resource usage under a policy.
type LimitsConfig struct {
	// MaxCallsPerMinute caps calls in the trailing 60 seconds.
	// 0 means unlimited.
	MaxCallsPerMinute int `yaml:"max_calls_per_minute" mapstructure:"max_calls_per_minute" validate:"omitempty,min=1"`

	// MaxCostPerDay is a declared daily cost budget. Recorded but not
	// enforced; enforcement needs cost accounting that is not wired yet.
	MaxCostPerDay float64 `yaml:"max_cost_per_day" mapstructure:"max_cost_per_day" validate:"omitempty,min=0"`
}

// CleanupConfig configures the expired-credential sweep.
type CleanupConfig struct {
	// Interval is how often expired credentials are revoked (e.g. "1m").
	// Defaults to "1m".
	Interval string `yaml:"interval" mapstructure:"interval" validate:"omitempty"`
}

// SetDevDefaults applies permissive defaults for development mode.
// This allows running grantgate with minimal config.
// These defaults are applied BEFORE validation so required fields are satisfied.
func (c *GateConfig) SetDevDefaults() {
	if !c.DevMode {
		return
	}

	if c.Signing.Secret == "" {
		c.Signing.Secret = "grantgate-dev-secret-do-not-use-in-production"
	}

	// Provide a default dev agent if none configured
	if len(c.Auth.Agents) == 0 {
		c.Auth.Agents = []AgentConfig{
			{
				ID:    "dev-agent",
				Name:  "Development Agent",
				Roles: []string{"admin"},
			},
		}
	}

	// Provide a default dev API key if none configured
	// SHA256 of "dev-api-key"
	if len(c.Auth.APIKeys) == 0 {
		c.Auth.APIKeys = []APIKeyConfig{
			{
				KeyHash: "sha256:6e1e4e1b8f8b36d08901cdb51b97841dfe20f5efd2fd2fd00768971408c46274",
				AgentID: "dev-agent",
			},
		}
	}

	if c.Audit.Output == "" {
		c.Audit.Output = "stdout"
	}
}

// SetDefaults applies sensible default values to the configuration.
func (c *GateConfig) SetDefaults() {
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	// Signing defaults
	if c.Signing.Issuer == "" {
		c.Signing.Issuer = "grantgate"
	}
	if c.Signing.DefaultTTL == "" {
		c.Signing.DefaultTTL = "15m"
	}

	// Rate limit defaults
	if c.RateLimit.Limit == 0 {
		c.RateLimit.Limit = 100
	}
	if c.RateLimit.Window == "" {
		c.RateLimit.Window = "1m"
	}
	if c.RateLimit.RedisTimeout == "" {
		c.RateLimit.RedisTimeout = "2s"
	}
	if c.RateLimit.CleanupInterval == "" {
		c.RateLimit.CleanupInterval = "5m"
	}
	if c.RateLimit.MaxTTL == "" {
		c.RateLimit.MaxTTL = "1h"
	}

	// Audit defaults
	if c.Audit.Output == "" {
		c.Audit.Output = "stdout"
	}
	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = 1000
	}

	// Cleanup defaults
	if c.Cleanup.Interval == "" {
		c.Cleanup.Interval = "1m"
	}

	// Tool names default to their IDs.
	for i := range c.Tools {
		if c.Tools[i].Name == "" {
			c.Tools[i].Name = c.Tools[i].ID
		}
	}

	// DevMode forces debug logging unless set explicitly.
	if c.DevMode && !viper.IsSet("server.log_level") {
		c.Server.LogLevel = "debug"
	}
}
