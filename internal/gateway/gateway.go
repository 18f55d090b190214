// Package gateway implements the host-runtime callbacks: inbound message
// processing, the pre-tool-call gate, outbound signature inspection, and
// turn teardown. It owns no state of its own; it binds the store, the turn
// map, the policy engine, the canary, and the optional exporters together.
package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/waspsec/wasp/internal/canary"
	"github.com/waspsec/wasp/internal/config"
	"github.com/waspsec/wasp/internal/events"
	"github.com/waspsec/wasp/internal/notify"
	"github.com/waspsec/wasp/internal/policy"
	"github.com/waspsec/wasp/internal/session"
	"github.com/waspsec/wasp/internal/signature"
	"github.com/waspsec/wasp/internal/store"
	"github.com/waspsec/wasp/internal/trust"
)

// Inbound is one message arriving from a channel. The sender identifier is
// whatever the upstream channel supplied; the gateway does not
// re-authenticate it.
type Inbound struct {
	Content    string
	Sender     string
	Channel    trust.Platform
	SessionKey string
}

// ToolCall is one pending tool execution.
type ToolCall struct {
	Name       string
	SessionKey string
}

// ToolVerdict is the pre-tool-call gate result. Block=false means no-op.
type ToolVerdict struct {
	Block  bool   `json:"block"`
	Reason string `json:"reason,omitempty"`
}

// Outbound is one agent-generated message about to leave.
type Outbound struct {
	Content    string
	Channel    string
	FromAgent  bool
	SessionKey string
}

// Gateway binds the enforcement core together for a host runtime.
type Gateway struct {
	store     *store.Store
	turns     *session.Manager
	engine    policy.Engine
	canary    *canary.Service
	guard     *signature.Guard
	publisher *events.Publisher
	notifier  *notify.Notifier

	quarantineBlocked bool
	alertMinScore     float64
}

// New wires a gateway from configuration and an open store. The signature
// guard config was validated at load time; NewGuard re-checks the
// empty-signature rule so a hand-built config cannot skip that one.
func New(cfg *config.Config, st *store.Store) (*Gateway, error) {
	guard, err := signature.NewGuard(cfg.Signature)
	if err != nil {
		return nil, fmt.Errorf("configure signature guard: %w", err)
	}
	g := &Gateway{
		store:             st,
		turns:             session.NewManager(),
		engine:            policy.NewDefaultEngine(cfg.Policy.DangerousTools, cfg.Policy.SafeTools, cfg.Policy.DefaultDeny),
		canary:            canary.NewService(st, cfg.Canary.Enabled, cfg.Canary.Threshold),
		guard:             guard,
		quarantineBlocked: cfg.Inbound.BlockedAction != "ignore",
		alertMinScore:     cfg.Alerts.MinScore,
	}
	if cfg.Events.Enabled {
		g.publisher = events.NewPublisher(cfg.Events.Brokers, cfg.Events.Topic)
	}
	if cfg.Alerts.Enabled {
		g.notifier = notify.NewNotifier(cfg.Alerts.SlackToken, cfg.Alerts.SlackChannel)
	}
	return g, nil
}

// Turns exposes the turn-state manager for host adapters that manage
// sessions directly.
func (g *Gateway) Turns() *session.Manager { return g.turns }

// Close releases the optional exporters.
func (g *Gateway) Close() error {
	return g.publisher.Close()
}

// HandleInbound runs the inbound pipeline: whitelist check, audit write,
// optional quarantine, turn binding, injection analysis. It cannot veto
// delivery; the host consumes the turn state through the tool gate.
func (g *Gateway) HandleInbound(ctx context.Context, msg Inbound) error {
	traceID := uuid.NewString()
	check, err := g.store.CheckContact(msg.Sender, msg.Channel)
	if err != nil {
		return fmt.Errorf("whitelist check: %w", err)
	}

	decision := trust.DecisionDeny
	if check.Allowed {
		decision = trust.DecisionAllow
		if check.Trust == trust.Limited {
			decision = trust.DecisionLimited
		}
	}
	if err := g.store.AppendAudit(store.AuditEntry{
		TraceID:    traceID,
		Identifier: msg.Sender,
		Platform:   msg.Channel,
		Decision:   decision,
		Reason:     check.Reason,
	}); err != nil {
		return err
	}
	g.publish(ctx, events.DecisionEvent{
		TraceID:    traceID,
		Kind:       "inbound",
		Identifier: msg.Sender,
		Platform:   string(msg.Channel),
		Decision:   decision,
		Reason:     check.Reason,
	})

	if !check.Allowed && g.quarantineBlocked {
		if err := g.store.Quarantine(msg.Sender, msg.Channel, msg.Content); err != nil {
			return err
		}
		g.notifier.QuarantineAlert(ctx, msg.Sender, string(msg.Channel), store.Truncate(msg.Content, store.QuarantinePreviewLen))
	}

	// Bind the turn even for unknown senders: the empty trust label is what
	// makes the tool gate treat the session as untrusted.
	g.turns.SetTurn(msg.SessionKey, check.Trust, msg.Sender)

	if result, persisted := g.canary.Inspect(msg.Content, msg.Sender, msg.Channel); persisted {
		slog.Info("canary telemetry recorded",
			"sender", msg.Sender, "platform", msg.Channel,
			"score", result.Score, "patterns", result.Patterns)
		if result.Score >= g.alertMinScore {
			g.notifier.CanaryAlert(ctx, msg.Sender, string(msg.Channel), result.Score, result.Patterns)
		}
	}
	return nil
}

// PreToolCall is the strict gate: it reads the turn bound to the session key
// and asks the policy engine. Every decision writes exactly one audit row.
func (g *Gateway) PreToolCall(ctx context.Context, call ToolCall) (ToolVerdict, error) {
	traceID := uuid.NewString()
	turn := g.turns.GetTurn(call.SessionKey)

	d := g.engine.Evaluate(policy.Context{
		Tool:       call.Name,
		SessionKey: session.Normalize(call.SessionKey),
		Trust:      turn.Trust,
		Sender:     turn.Sender,
		TraceID:    traceID,
	})

	decision := trust.DecisionAllow
	if !d.Allow {
		decision = trust.DecisionDeny
	}
	identifier := turn.Sender
	if identifier == "" {
		identifier = "unknown"
	}
	if err := g.store.AppendAudit(store.AuditEntry{
		TraceID:    traceID,
		Identifier: identifier,
		Platform:   "",
		Decision:   decision,
		Reason:     d.Reason,
	}); err != nil {
		return ToolVerdict{}, err
	}
	g.publish(ctx, events.DecisionEvent{
		TraceID:    traceID,
		Kind:       "tool",
		Identifier: identifier,
		Decision:   decision,
		Reason:     d.Reason,
	})

	if d.Allow {
		return ToolVerdict{}, nil
	}
	return ToolVerdict{Block: true, Reason: d.Reason}, nil
}

// PreOutbound inspects an agent message with the signature guard.
func (g *Gateway) PreOutbound(ctx context.Context, msg Outbound) signature.Result {
	r := g.guard.Inspect(msg.Content, msg.Channel, msg.FromAgent)
	if r.Outcome == signature.OutcomeBlocked {
		g.publish(ctx, events.DecisionEvent{
			Kind:       "outbound",
			Identifier: "agent",
			Platform:   msg.Channel,
			Decision:   trust.DecisionDeny,
			Reason:     r.Reason,
		})
	}
	return r
}

// EndTurn clears the session's turn state.
func (g *Gateway) EndTurn(sessionKey string) {
	g.turns.ClearTurn(sessionKey)
}

func (g *Gateway) publish(ctx context.Context, e events.DecisionEvent) {
	if g.publisher == nil {
		return
	}
	g.publisher.Publish(ctx, e)
}
