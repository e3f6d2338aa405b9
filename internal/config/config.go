// Package config loads runtime configuration for the authorization
// pipeline from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all process configuration, loaded from environment variables.
type Config struct {
	// Server
	Host string `env:"SENTINEL_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"SENTINEL_PORT" envDefault:"8443"`

	// Redis backs session storage, rate limiting, decision caching and
	// anti-replay nonces.
	RedisURL string `env:"SENTINEL_REDIS_URL" envDefault:"redis://localhost:6379/0"`

	// Session
	SessionTTL time.Duration `env:"SENTINEL_SESSION_TTL" envDefault:"8h"`

	// Policy engine (C6). Mode selects "remote" (HTTP OPA-compatible
	// sidecar) or "embedded" (in-process WASM policy module).
	PolicyMode        string        `env:"SENTINEL_POLICY_MODE" envDefault:"remote"`
	PolicyURL         string        `env:"SENTINEL_POLICY_URL" envDefault:"http://localhost:8181/v1/data/sentinel/authz"`
	PolicyTimeout     time.Duration `env:"SENTINEL_POLICY_TIMEOUT" envDefault:"2s"`
	PolicyBundlePath  string        `env:"SENTINEL_POLICY_BUNDLE_PATH" envDefault:"policies/bundle.yaml"`
	PolicyWasmPath    string        `env:"SENTINEL_POLICY_WASM_PATH"`
	DecisionCacheTTL  time.Duration `env:"SENTINEL_DECISION_CACHE_TTL" envDefault:"5s"`
	DecisionCacheMode string        `env:"SENTINEL_DECISION_CACHE_MODE" envDefault:"memory"`

	// Risk engine (C2/C3). Weight applied per matched risk signal severity
	// point, and the thresholds separating risk levels.
	RiskWeight            int `env:"SENTINEL_RISK_WEIGHT" envDefault:"5"`
	RiskThresholdMedium   int `env:"SENTINEL_RISK_THRESHOLD_MEDIUM" envDefault:"30"`
	RiskThresholdHigh     int `env:"SENTINEL_RISK_THRESHOLD_HIGH" envDefault:"60"`
	RiskThresholdCritical int `env:"SENTINEL_RISK_THRESHOLD_CRITICAL" envDefault:"80"`

	// Audit log (C9). When set, the HMAC key signs every audit record
	// (audit.NewSignedLog); DLQSize bounds the in-memory dead-letter queue for records that
	// exhausted their write retries.
	AuditHMACKey  string `env:"SENTINEL_AUDIT_HMAC_KEY"`
	AuditDLQSize  int    `env:"SENTINEL_AUDIT_DLQ_SIZE" envDefault:"1000"`
	AuditLogPath  string `env:"SENTINEL_AUDIT_LOG_PATH" envDefault:"-"` // "-" means stdout

	// Device binding (C1/C2 evidence).
	RequireDeviceBinding bool `env:"SENTINEL_REQUIRE_DEVICE_BINDING" envDefault:"true"`

	// Anti-replay guard (transport-boundary, not one of the fixed seven
	// pipeline steps — see pipeline/httpglue.MiddlewareWithReplay). Disabled
	// by default since it requires callers to supply the nonce/timestamp
	// headers; a deployment in front of a nonce-aware client enables it.
	RequireAntiReplay bool          `env:"SENTINEL_REQUIRE_ANTI_REPLAY" envDefault:"false"`
	ReplayWindow      time.Duration `env:"SENTINEL_REPLAY_WINDOW" envDefault:"5m"`

	// Logging
	LogLevel  string `env:"SENTINEL_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"SENTINEL_LOG_FORMAT" envDefault:"json"`

	// Telemetry
	MetricsPath string `env:"SENTINEL_METRICS_PATH" envDefault:"/metrics"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config from env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that env.Parse cannot express via tags alone.
func (c *Config) Validate() error {
	if c.PolicyMode != "remote" && c.PolicyMode != "embedded" {
		return fmt.Errorf("config: SENTINEL_POLICY_MODE must be \"remote\" or \"embedded\", got %q", c.PolicyMode)
	}
	if c.PolicyMode == "embedded" && c.PolicyWasmPath == "" {
		return fmt.Errorf("config: SENTINEL_POLICY_WASM_PATH is required when SENTINEL_POLICY_MODE=embedded")
	}
	if c.DecisionCacheMode != "memory" && c.DecisionCacheMode != "redis" {
		return fmt.Errorf("config: SENTINEL_DECISION_CACHE_MODE must be \"memory\" or \"redis\", got %q", c.DecisionCacheMode)
	}
	if c.RiskThresholdMedium >= c.RiskThresholdHigh || c.RiskThresholdHigh >= c.RiskThresholdCritical {
		return fmt.Errorf("config: risk thresholds must be strictly increasing (medium=%d high=%d critical=%d)",
			c.RiskThresholdMedium, c.RiskThresholdHigh, c.RiskThresholdCritical)
	}
	if c.AuditHMACKey != "" && len(c.AuditHMACKey) < 32 {
		return fmt.Errorf("config: SENTINEL_AUDIT_HMAC_KEY must be at least 32 bytes if set")
	}
	return nil
}

// ListenAddr returns the address the HTTP server should listen on.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
