// Package signature enforces the identity marker on outbound agent messages.
package signature

import (
	"fmt"
	"strings"

	"github.com/waspsec/wasp/internal/config"
)

// Action constants for the guard.
const (
	ActionAppend = "append"
	ActionBlock  = "block"
)

// Outcome kinds returned by Inspect.
const (
	OutcomePass     = "pass"
	OutcomeModified = "modified"
	OutcomeBlocked  = "blocked"
)

// Result describes what the guard did with one outbound message.
type Result struct {
	Outcome string `json:"outcome"`
	// Content carries the (possibly modified) message for pass/modified.
	Content string `json:"content,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Guard inspects outbound agent messages on configured channels.
type Guard struct {
	cfg      config.SignatureConfig
	channels map[string]bool
}

// NewGuard validates the configuration and builds the guard. An enabled
// guard without a signature is a configuration error, surfaced here rather
// than at first use.
func NewGuard(cfg config.SignatureConfig) (*Guard, error) {
	if cfg.Enabled && strings.TrimSpace(cfg.Signature) == "" {
		return nil, fmt.Errorf("signature guard enabled but signature is empty")
	}
	g := &Guard{cfg: cfg, channels: make(map[string]bool, len(cfg.Channels))}
	for _, ch := range cfg.Channels {
		g.channels[ch] = true
	}
	return g, nil
}

// Inspect checks one outbound message. Disabled guard, unlisted channel, or
// a non-agent message pass through untouched. A message already carrying the
// signature passes; otherwise the configured action applies.
func (g *Guard) Inspect(content, channel string, fromAgent bool) Result {
	if g == nil || !g.cfg.Enabled || !fromAgent || !g.channels[channel] {
		return Result{Outcome: OutcomePass, Content: content}
	}
	if strings.Contains(content, g.cfg.Signature) {
		return Result{Outcome: OutcomePass, Content: content}
	}

	if g.cfg.Action == ActionBlock {
		return Result{Outcome: OutcomeBlocked, Reason: "missing signature"}
	}
	modified := content + "\n\n"
	if g.cfg.SignaturePrefix != "" {
		modified += g.cfg.SignaturePrefix
	}
	modified += g.cfg.Signature
	return Result{Outcome: OutcomeModified, Content: modified}
}
