// internal/recovery/recovery_test.go
package recovery

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spar65/aiassessmenttool/internal/providers"
)

func sampleState() ([]providers.ChatMessage, []PartialResult) {
	history := []providers.ChatMessage{
		{Role: "user", Content: "Question 1?"},
		{Role: "assistant", Content: "A"},
		{Role: "user", Content: "Question 2?"},
		{Role: "assistant", Content: "C"},
	}
	results := []PartialResult{
		{QuestionIndex: 0, QuestionID: 101, Question: "Question 1?", Answer: "A", Dimension: "lying", Timestamp: time.Now().UTC()},
		{QuestionIndex: 1, QuestionID: 102, Question: "Question 2?", Answer: "C", Dimension: "harm", Timestamp: time.Now().UTC()},
	}
	return history, results
}

func TestSaveLoadClear(t *testing.T) {
	store := NewStore(NewMemoryStorage(), "session-1")

	if _, ok, err := store.Load(); err != nil || ok {
		t.Fatalf("expected empty store, got ok=%t err=%v", ok, err)
	}

	history, results := sampleState()
	if err := store.Save(history, results); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	snapshot, ok, err := store.Load()
	if err != nil || !ok {
		t.Fatalf("Load failed: ok=%t err=%v", ok, err)
	}
	if !reflect.DeepEqual(snapshot.History, history) {
		t.Fatalf("history mismatch: got %+v", snapshot.History)
	}
	if len(snapshot.Results) != 2 || snapshot.Results[1].Answer != "C" {
		t.Fatalf("results mismatch: got %+v", snapshot.Results)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if _, ok, _ := store.Load(); ok {
		t.Fatal("expected store to be empty after Clear")
	}
}

// TestSaveIsIdempotent verifies that saving the same state twice yields a
// snapshot from which resume reconstructs an identical history, with no
// duplication.
func TestSaveIsIdempotent(t *testing.T) {
	store := NewStore(NewMemoryStorage(), "session-1")
	history, results := sampleState()

	if err := store.Save(history, results); err != nil {
		t.Fatalf("first Save returned error: %v", err)
	}
	if err := store.Save(history, results); err != nil {
		t.Fatalf("second Save returned error: %v", err)
	}

	snapshot, ok, err := store.Load()
	if err != nil || !ok {
		t.Fatalf("Load failed: ok=%t err=%v", ok, err)
	}
	if len(snapshot.History) != len(history) {
		t.Fatalf("expected %d history messages, got %d", len(history), len(snapshot.History))
	}
	if len(snapshot.Results) != len(results) {
		t.Fatalf("expected %d results, got %d", len(results), len(snapshot.Results))
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	storage := NewMemoryStorage()
	first := NewStore(storage, "session-1")
	second := NewStore(storage, "session-2")

	history, results := sampleState()
	if err := first.Save(history, results); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if _, ok, _ := second.Load(); ok {
		t.Fatal("expected second session to be empty")
	}
}

func TestSQLiteStorageRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "recovery.db")
	storage, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStorage returned error: %v", err)
	}
	defer storage.Close()

	store := NewStore(storage, "session-1")
	history, results := sampleState()
	if err := store.Save(history, results); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	// Overwrite must replace, not append.
	if err := store.Save(history, results); err != nil {
		t.Fatalf("second Save returned error: %v", err)
	}

	snapshot, ok, err := store.Load()
	if err != nil || !ok {
		t.Fatalf("Load failed: ok=%t err=%v", ok, err)
	}
	if len(snapshot.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(snapshot.Results))
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if _, ok, _ := store.Load(); ok {
		t.Fatal("expected SQLite store to be empty after Clear")
	}
}
