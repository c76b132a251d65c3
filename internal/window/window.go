// internal/window/window.go
// Package window maintains the conversation history for a run and exposes the
// bounded slice actually sent to the vendor per call.
package window

import (
	"sync"

	"github.com/spar65/aiassessmenttool/internal/providers"
)

// Manager holds an unbounded append log of exchanged messages. The windowed
// view sent per call is capped at 2N messages including the pending question,
// so token cost and latency stay bounded while the model still sees its prior
// answers. The leading system message is handled by the adapters and never
// counts against the window.
type Manager struct {
	mu    sync.Mutex
	pairs int
	log   []providers.ChatMessage
}

// NewManager creates a Manager that keeps the most recent pairs exchanges in
// its windowed view.
func NewManager(pairs int) *Manager {
	if pairs <= 0 {
		pairs = 20
	}
	return &Manager{pairs: pairs}
}

// Append records a completed exchange: the run's log grows by exactly two
// entries per answered question.
func (m *Manager) Append(question, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log,
		providers.ChatMessage{Role: "user", Content: question},
		providers.ChatMessage{Role: "assistant", Content: answer},
	)
}

// Windowed returns the messages for the next call: recent history followed by
// the pending question, never more than 2N entries in total. History is
// trimmed in whole pairs so the view always opens on a user turn, which
// vendors with strict turn alternation require.
func (m *Manager) Windowed(question string) []providers.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := 0
	if budget := m.pairs*2 - 1; len(m.log) > budget {
		start = len(m.log) - budget
		if start%2 != 0 {
			start++
		}
	}
	view := make([]providers.ChatMessage, 0, len(m.log)-start+1)
	view = append(view, m.log[start:]...)
	return append(view, providers.ChatMessage{Role: "user", Content: question})
}

// Log returns a copy of the full unbounded history.
func (m *Manager) Log() []providers.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]providers.ChatMessage, len(m.log))
	copy(out, m.log)
	return out
}

// Restore replaces the log with a previously persisted history.
func (m *Manager) Restore(history []providers.ChatMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = make([]providers.ChatMessage, len(history))
	copy(m.log, history)
}

// Len reports the number of messages in the unbounded log.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.log)
}
