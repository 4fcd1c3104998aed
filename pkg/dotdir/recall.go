package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	recallFile = "recall.json"
)

// RecallState is the result list of the last search run from the CLI.
type RecallState struct {
	// Query is the search text that produced the results.
	Query string `json:"query"`

	// ProjectID scopes the search; empty for all projects.
	ProjectID string `json:"project_id,omitempty"`

	// RecordIDs are the returned record IDs in ranked order.
	RecordIDs []string `json:"record_ids"`

	SearchedAt time.Time `json:"searched_at"`
}

// Resolve returns the record ID at the 1-based position n.
func (s *RecallState) Resolve(n int) (string, error) {
	if n < 1 || n > len(s.RecordIDs) {
		return "", fmt.Errorf("no result #%d in the last search (%d results)", n, len(s.RecordIDs))
	}
	return s.RecordIDs[n-1], nil
}

// LoadRecallState loads the recall state from a target .mnemo/recall.json.
// Returns nil, nil if no search has been recorded yet.
func (m *Manager) LoadRecallState(overrideDir string) (*RecallState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, recallFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading recall state: %w", err)
	}

	state := &RecallState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing recall state: %w", err)
	}

	return state, nil
}

// SaveRecallState persists the recall state to a target .mnemo/recall.json.
func (m *Manager) SaveRecallState(state *RecallState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil recall state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling recall state: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, recallFile), data, 0o600); err != nil {
		return fmt.Errorf("writing recall state: %w", err)
	}

	return nil
}

// ClearRecallState removes the recall state file.
// Returns nil if the file doesn't exist.
func (m *Manager) ClearRecallState(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(dir, recallFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing recall state: %w", err)
	}

	return nil
}
