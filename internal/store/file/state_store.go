// Package file provides filesystem-backed persistence: a JSON state
// snapshot, a CSV trade journal, and a JSONL event log. It is the default
// backend for single-host deployments; the postgres package covers the rest.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

const stateFileName = "state.json"

// StateStore persists tracker state as a single JSON document, written
// atomically via a temp-file rename.
type StateStore struct {
	path string
	mu   sync.Mutex
}

// NewStateStore creates a state store rooted at dataDir, creating the
// directory if needed.
func NewStateStore(dataDir string) (*StateStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("file: create data dir: %w", err)
	}
	return &StateStore{path: filepath.Join(dataDir, stateFileName)}, nil
}

// Save writes the full state snapshot, replacing any previous one.
func (s *StateStore) Save(_ context.Context, state domain.TrackerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("file: marshal state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("file: write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("file: replace state: %w", err)
	}
	return nil
}

// Load reads the last snapshot. A missing file maps to domain.ErrNotFound so
// callers can distinguish first run from corruption.
func (s *StateStore) Load(_ context.Context) (domain.TrackerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.TrackerState{}, domain.ErrNotFound
		}
		return domain.TrackerState{}, fmt.Errorf("file: read state: %w", err)
	}

	var state domain.TrackerState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.TrackerState{}, fmt.Errorf("file: decode state: %w", err)
	}
	return state, nil
}
