// Package policy provides tool execution authorization.
package policy

import (
	"fmt"
	"time"

	"github.com/waspsec/wasp/internal/trust"
)

// Context holds information about a pending tool execution. Trust and Sender
// come from the turn state of the session the call belongs to.
type Context struct {
	Tool       string
	SessionKey string
	Trust      trust.Level
	Sender     string
	TraceID    string
}

// Decision is the result of a policy evaluation.
type Decision struct {
	Allow   bool
	Reason  string
	Ts      time.Time
	TraceID string
}

// Engine evaluates whether a tool execution should proceed.
type Engine interface {
	Evaluate(ctx Context) Decision
}

// DefaultEngine is the list-precedence implementation: trusted turns bypass
// the lists entirely; untrusted turns are checked against the dangerous list,
// then the safe list, then the unlisted default. The engine holds no
// mutable state; identical inputs produce identical decisions.
type DefaultEngine struct {
	dangerous map[string]bool
	safe      map[string]bool
	// defaultDeny blocks unlisted tools for untrusted turns instead of the
	// shipped default-allow posture.
	defaultDeny bool
}

// NewDefaultEngine creates an engine from configured tool lists. A tool
// appearing in both lists is treated as dangerous: overlap can only tighten
// the configuration, never loosen it.
func NewDefaultEngine(dangerousTools, safeTools []string, defaultDeny bool) *DefaultEngine {
	e := &DefaultEngine{
		dangerous:   make(map[string]bool, len(dangerousTools)),
		safe:        make(map[string]bool, len(safeTools)),
		defaultDeny: defaultDeny,
	}
	for _, t := range dangerousTools {
		e.dangerous[t] = true
	}
	for _, t := range safeTools {
		e.safe[t] = true
	}
	return e
}

// Evaluate applies the trust label, then list precedence.
func (e *DefaultEngine) Evaluate(ctx Context) Decision {
	d := Decision{
		Ts:      time.Now(),
		TraceID: ctx.TraceID,
	}

	// Trusted and sovereign turns are never tool-restricted.
	if ctx.Trust.CanUseTools() {
		d.Allow = true
		d.Reason = fmt.Sprintf("sender trust %s permits all tools", ctx.Trust)
		return d
	}

	// Limited or unknown sender: dangerous wins over safe on overlap.
	if e.dangerous[ctx.Tool] {
		d.Allow = false
		d.Reason = fmt.Sprintf("tool %s blocked for untrusted sender", ctx.Tool)
		return d
	}
	if e.safe[ctx.Tool] {
		d.Allow = true
		d.Reason = fmt.Sprintf("tool %s is safe for all senders", ctx.Tool)
		return d
	}
	if e.defaultDeny {
		d.Allow = false
		d.Reason = fmt.Sprintf("tool %s not classified", ctx.Tool)
		return d
	}
	d.Allow = true
	d.Reason = fmt.Sprintf("tool %s not listed, default allow", ctx.Tool)
	return d
}
