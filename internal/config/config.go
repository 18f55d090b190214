// Package config provides configuration types and loading for wasp.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration struct.
// Top-level groups: Paths, Policy, Inbound, Canary, RateLimit, Signature,
// Admin, Events, Alerts. Loaded once at startup; immutable afterwards.
type Config struct {
	Paths     PathsConfig     `json:"paths"`
	Policy    PolicyConfig    `json:"policy"`
	Inbound   InboundConfig   `json:"inbound"`
	Canary    CanaryConfig    `json:"canary"`
	RateLimit RateLimitConfig `json:"rateLimit"`
	Signature SignatureConfig `json:"signature"`
	Admin     AdminConfig     `json:"admin"`
	Events    EventsConfig    `json:"events"`
	Alerts    AlertsConfig    `json:"alerts"`
}

// ---------------------------------------------------------------------------
// Paths – filesystem locations
// ---------------------------------------------------------------------------

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
}

// ---------------------------------------------------------------------------
// Policy – tool access matrix
// ---------------------------------------------------------------------------

// PolicyConfig configures the tool policy engine.
type PolicyConfig struct {
	DangerousTools []string `json:"dangerousTools"`
	SafeTools      []string `json:"safeTools"`
	// DefaultDeny flips the unlisted-tool default from allow to block.
	DefaultDeny bool `json:"defaultDeny" envconfig:"POLICY_DEFAULT_DENY"`
}

// ---------------------------------------------------------------------------
// Inbound – blocked-message handling
// ---------------------------------------------------------------------------

// InboundConfig configures the inbound pipeline.
type InboundConfig struct {
	// BlockedAction is what happens to a message from a non-whitelisted
	// sender: "quarantine" (default) retains it for review, "ignore" drops it.
	BlockedAction string `json:"blockedAction" envconfig:"BLOCKED_ACTION"`
}

// ---------------------------------------------------------------------------
// Canary – injection heuristic telemetry
// ---------------------------------------------------------------------------

// CanaryConfig configures the injection heuristic.
type CanaryConfig struct {
	Enabled bool `json:"enabled" envconfig:"CANARY_ENABLED"`
	// Threshold is the minimum score at which a telemetry row is persisted.
	Threshold float64 `json:"threshold" envconfig:"CANARY_THRESHOLD"`
}

// ---------------------------------------------------------------------------
// RateLimit – admin façade request budget
// ---------------------------------------------------------------------------

// RateLimitConfig configures the per-client request window.
type RateLimitConfig struct {
	WindowMs    int `json:"windowMs" envconfig:"RATE_WINDOW_MS"`
	MaxRequests int `json:"maxRequests" envconfig:"RATE_MAX_REQUESTS"`
}

// ---------------------------------------------------------------------------
// Signature – outbound identity marker
// ---------------------------------------------------------------------------

// SignatureConfig configures the outbound signature guard.
type SignatureConfig struct {
	Enabled         bool     `json:"enabled" envconfig:"SIGNATURE_ENABLED"`
	Signature       string   `json:"signature" envconfig:"SIGNATURE"`
	SignaturePrefix string   `json:"signaturePrefix" envconfig:"SIGNATURE_PREFIX"`
	Action          string   `json:"action" envconfig:"SIGNATURE_ACTION"` // "append" or "block"
	Channels        []string `json:"channels"`
}

// ---------------------------------------------------------------------------
// Admin – local HTTP façade
// ---------------------------------------------------------------------------

// AdminConfig contains admin server settings.
type AdminConfig struct {
	Host string `json:"host" envconfig:"HOST"`
	Port int    `json:"port" envconfig:"PORT"`
	// APIToken protects the admin endpoints. When empty, protected endpoints
	// accept loopback clients only.
	APIToken string `json:"apiToken" envconfig:"API_TOKEN"`
}

// ---------------------------------------------------------------------------
// Events – decision event export via Kafka
// ---------------------------------------------------------------------------

// EventsConfig configures the optional Kafka decision-event publisher.
type EventsConfig struct {
	Enabled bool   `json:"enabled" envconfig:"EVENTS_ENABLED"`
	Brokers string `json:"brokers" envconfig:"KAFKA_BROKERS"`
	Topic   string `json:"topic" envconfig:"EVENTS_TOPIC"`
}

// ---------------------------------------------------------------------------
// Alerts – Slack security notifications
// ---------------------------------------------------------------------------

// AlertsConfig configures the optional Slack alert notifier.
type AlertsConfig struct {
	Enabled      bool   `json:"enabled" envconfig:"ALERTS_ENABLED"`
	SlackToken   string `json:"slackToken" envconfig:"SLACK_TOKEN"`
	SlackChannel string `json:"slackChannel" envconfig:"SLACK_CHANNEL"`
	// MinScore is the telemetry score at which an alert is posted.
	MinScore float64 `json:"minScore" envconfig:"ALERTS_MIN_SCORE"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Paths.DataDir empty means the resolved default (WASP_HOME or
		// ~/.wasp).
		Paths: PathsConfig{},
		Policy: PolicyConfig{
			DangerousTools: []string{"exec", "write", "message", "gateway", "Edit", "Write"},
			SafeTools:      []string{"web_search", "memory_search", "Read", "session_status"},
		},
		Inbound: InboundConfig{
			BlockedAction: "quarantine",
		},
		Canary: CanaryConfig{
			Enabled:   true,
			Threshold: 0.5,
		},
		RateLimit: RateLimitConfig{
			WindowMs:    60_000,
			MaxRequests: 100,
		},
		Signature: SignatureConfig{
			Action: "append",
		},
		Admin: AdminConfig{
			Host: "127.0.0.1", // Secure default
			Port: 18890,
		},
		Alerts: AlertsConfig{
			MinScore: 0.8,
		},
	}
}

// Validate enforces the rules that must fail at startup, not at first use.
func (c *Config) Validate() error {
	if c.Signature.Enabled && strings.TrimSpace(c.Signature.Signature) == "" {
		return fmt.Errorf("signature guard enabled but signature is empty")
	}
	if c.Signature.Enabled {
		switch c.Signature.Action {
		case "append", "block":
		default:
			return fmt.Errorf("signature action must be \"append\" or \"block\", got %q", c.Signature.Action)
		}
	}
	switch c.Inbound.BlockedAction {
	case "", "quarantine", "ignore":
	default:
		return fmt.Errorf("inbound blockedAction must be \"quarantine\" or \"ignore\", got %q", c.Inbound.BlockedAction)
	}
	if c.Canary.Threshold < 0 || c.Canary.Threshold > 1 {
		return fmt.Errorf("canary threshold must be within [0,1], got %v", c.Canary.Threshold)
	}
	if c.RateLimit.WindowMs <= 0 || c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("rate limit window and max requests must be positive")
	}
	if c.Events.Enabled && strings.TrimSpace(c.Events.Brokers) == "" {
		return fmt.Errorf("events enabled but no kafka brokers configured")
	}
	if c.Alerts.Enabled && (strings.TrimSpace(c.Alerts.SlackToken) == "" || strings.TrimSpace(c.Alerts.SlackChannel) == "") {
		return fmt.Errorf("alerts enabled but slack token or channel is empty")
	}
	return nil
}
