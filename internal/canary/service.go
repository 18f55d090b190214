package canary

import (
	"log/slog"

	"github.com/waspsec/wasp/internal/store"
	"github.com/waspsec/wasp/internal/trust"
)

// Service runs the detector and persists rows that cross the telemetry
// threshold. Known false-positive class: technical discussions of injection
// trip the same patterns; the scorer flags wording, not intent.
type Service struct {
	store     *store.Store
	threshold float64
	enabled   bool
}

// NewService creates a canary service. Threshold is the minimum score at
// which a row is persisted.
func NewService(s *store.Store, enabled bool, threshold float64) *Service {
	return &Service{store: s, enabled: enabled, threshold: threshold}
}

// Inspect analyzes content and persists a telemetry row when the score
// reaches the threshold. It never blocks the caller's decision: persistence
// failures are logged and swallowed.
func (s *Service) Inspect(content, identifier string, platform trust.Platform) (Result, bool) {
	if s == nil || !s.enabled {
		return Result{Patterns: []string{}, Verbs: []string{}}, false
	}
	r := Analyze(content)
	if r.Score < s.threshold {
		return r, false
	}
	err := s.store.AddCanaryEvent(store.CanaryEvent{
		Identifier: identifier,
		Platform:   platform,
		Score:      r.Score,
		Patterns:   r.Patterns,
		Verbs:      r.Verbs,
		Preview:    content,
		CreatedAt:  r.Ts,
	})
	if err != nil {
		slog.Warn("canary telemetry write failed", "error", err)
		return r, false
	}
	return r, true
}
