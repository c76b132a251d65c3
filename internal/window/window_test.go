// internal/window/window_test.go
package window

import (
	"fmt"
	"testing"
)

func TestAppendGrowsByPairs(t *testing.T) {
	m := NewManager(20)
	m.Append("Question 1?", "A")
	m.Append("Question 2?", "B")
	if m.Len() != 4 {
		t.Fatalf("expected 4 messages after 2 exchanges, got %d", m.Len())
	}
	log := m.Log()
	if log[0].Role != "user" || log[1].Role != "assistant" {
		t.Fatalf("unexpected roles: %s, %s", log[0].Role, log[1].Role)
	}
}

// TestWindowedCapsAtConfiguredPairs verifies the core property: the payload
// for the next call, pending question included, never exceeds 2N messages,
// and history is trimmed in whole pairs from the oldest end.
func TestWindowedCapsAtConfiguredPairs(t *testing.T) {
	m := NewManager(20)
	for i := 1; i <= 30; i++ {
		m.Append(fmt.Sprintf("Question %d?", i), "A")
	}

	view := m.Windowed("Question 31?")
	if len(view) != 39 {
		t.Fatalf("expected 19 recent pairs + pending question, got %d messages", len(view))
	}
	if view[0].Content != "Question 12?" {
		t.Fatalf("expected window to start at the 12th exchange, got %q", view[0].Content)
	}
	if view[0].Role != "user" {
		t.Fatalf("window must open on a user turn, got %q", view[0].Role)
	}
	if view[len(view)-1].Content != "Question 31?" {
		t.Fatalf("expected pending question last, got %q", view[len(view)-1].Content)
	}
	if view[len(view)-1].Role != "user" {
		t.Fatalf("pending question must be a user turn, got %q", view[len(view)-1].Role)
	}
}

// TestWindowedNeverExceedsTwiceThePairs locks the cap down across growing
// logs: no payload handed to a provider is ever longer than 2N entries.
func TestWindowedNeverExceedsTwiceThePairs(t *testing.T) {
	m := NewManager(20)
	for i := 1; i <= 120; i++ {
		view := m.Windowed(fmt.Sprintf("Question %d?", i))
		if len(view) > 40 {
			t.Fatalf("payload at question %d has %d entries; cap is 40", i, len(view))
		}
		m.Append(fmt.Sprintf("Question %d?", i), "A")
	}
}

func TestWindowedShortHistoryPassesEverything(t *testing.T) {
	m := NewManager(20)
	m.Append("Question 1?", "A")

	view := m.Windowed("Question 2?")
	if len(view) != 3 {
		t.Fatalf("expected full short history + question, got %d messages", len(view))
	}
}

func TestRestoreReplacesLog(t *testing.T) {
	m := NewManager(20)
	m.Append("old question", "A")

	restored := NewManager(20)
	restored.Append("Question 1?", "B")
	m.Restore(restored.Log())

	log := m.Log()
	if len(log) != 2 || log[0].Content != "Question 1?" {
		t.Fatalf("expected restored history, got %+v", log)
	}
}

func TestLogReturnsCopy(t *testing.T) {
	m := NewManager(20)
	m.Append("Question 1?", "A")
	log := m.Log()
	log[0].Content = "mutated"
	if m.Log()[0].Content != "Question 1?" {
		t.Fatal("Log must return a copy, not the backing slice")
	}
}
