// internal/recovery/recovery.go
// Package recovery persists in-progress assessment state so an interrupted
// run can be resumed instead of restarted.
package recovery

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spar65/aiassessmenttool/internal/providers"
)

// Storage is the injected key/value abstraction backing the recovery store.
// The assessment core only ever needs get/set/remove, so tests run against
// the in-memory implementation.
type Storage interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Remove(key string) error
	Close() error
}

// PartialResult records one answered question. questionIndex is strictly
// increasing and contiguous from 0 within a run.
type PartialResult struct {
	QuestionIndex int       `json:"questionIndex"`
	QuestionID    int       `json:"questionId"`
	Question      string    `json:"question"`
	Answer        string    `json:"answer"`
	Dimension     string    `json:"dimension"`
	Timestamp     time.Time `json:"timestamp"`
}

// Snapshot is the persisted state of an interrupted run.
type Snapshot struct {
	History []providers.ChatMessage `json:"history"`
	Results []PartialResult         `json:"results"`
	SavedAt time.Time               `json:"savedAt"`
}

// Store reads and writes snapshots under a session-scoped key.
type Store struct {
	storage Storage
	key     string
}

// NewStore creates a Store scoped to one assessment session.
func NewStore(storage Storage, sessionID string) *Store {
	return &Store{storage: storage, key: "assessment:" + sessionID}
}

// Save persists the full conversation log and partial-results list. Saving
// the same state twice is harmless: the snapshot is overwritten whole, never
// appended to.
func (s *Store) Save(history []providers.ChatMessage, results []PartialResult) error {
	snapshot := Snapshot{
		History: history,
		Results: results,
		SavedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding recovery snapshot: %w", err)
	}
	if err := s.storage.Set(s.key, data); err != nil {
		return fmt.Errorf("writing recovery snapshot: %w", err)
	}
	return nil
}

// Load returns the saved snapshot if one exists.
func (s *Store) Load() (Snapshot, bool, error) {
	data, ok, err := s.storage.Get(s.key)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("reading recovery snapshot: %w", err)
	}
	if !ok {
		return Snapshot{}, false, nil
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, false, fmt.Errorf("decoding recovery snapshot: %w", err)
	}
	return snapshot, true, nil
}

// Clear removes any saved snapshot. A completed run's logs are not
// resumable data.
func (s *Store) Clear() error {
	return s.storage.Remove(s.key)
}
