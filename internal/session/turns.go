// Package session tracks which inbound sender caused the current turn, per
// conversation. Tool-call decisions read this state; inbound processing
// writes it.
package session

import (
	"sync"

	"github.com/waspsec/wasp/internal/trust"
)

// DefaultKey is the sentinel used when the host supplies no session key.
// Calls using it from genuinely different conversations collapse into one
// bucket and must not be relied upon for isolation.
const DefaultKey = "__default__"

// TurnState binds a session to the sender that scheduled its current turn.
// A zero TurnState (empty trust, empty sender) means no turn is bound.
type TurnState struct {
	Trust  trust.Level `json:"trust,omitempty"`
	Sender string      `json:"sender,omitempty"`
}

// Bound reports whether a turn is currently bound.
func (t TurnState) Bound() bool {
	return t.Trust != "" || t.Sender != ""
}

// Manager keeps the per-session turn map. All operations are non-blocking
// memory updates; operations on the same key are linearizable, operations on
// distinct keys are independent.
type Manager struct {
	mu    sync.RWMutex
	turns map[string]TurnState
}

// NewManager creates an empty turn-state manager.
func NewManager() *Manager {
	return &Manager{turns: make(map[string]TurnState)}
}

// Normalize maps an absent session key to the default sentinel.
func Normalize(key string) string {
	if key == "" {
		return DefaultKey
	}
	return key
}

// SetTurn binds the session's current turn to a sender and trust level.
func (m *Manager) SetTurn(key string, level trust.Level, sender string) {
	key = Normalize(key)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[key] = TurnState{Trust: level, Sender: sender}
}

// GetTurn reads the session's turn state. A session with no entry returns
// the empty state.
func (m *Manager) GetTurn(key string) TurnState {
	key = Normalize(key)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.turns[key]
}

// ClearTurn resets the session to the empty state.
func (m *Manager) ClearTurn(key string) {
	key = Normalize(key)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.turns, key)
}
