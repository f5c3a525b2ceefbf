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
	lastRunFile = "lastrun.json"
)

// LastRunState is the persisted summary of the most recent ingestion run.
type LastRunState struct {
	RunID      string    `json:"run_id"`
	Tables     int       `json:"tables"`
	Chunks     int       `json:"chunks"`
	Failures   []string  `json:"failures,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

// LoadLastRunState loads the last-run summary from a target
// .releaselens/lastrun.json. Returns nil, nil if no state exists.
// If overrideDir is non-empty, it is used instead of the default location.
func (m *Manager) LoadLastRunState(overrideDir string) (*LastRunState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, lastRunFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading last-run state: %w", err)
	}

	var state LastRunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing last-run state: %w", err)
	}

	return &state, nil
}

// SaveLastRunState persists the last-run summary to
// .releaselens/lastrun.json.
func (m *Manager) SaveLastRunState(overrideDir string, state *LastRunState) error {
	if state == nil {
		return errors.New("cannot save nil last-run state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding last-run state: %w", err)
	}

	path := filepath.Join(dir, lastRunFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing last-run state: %w", err)
	}

	return nil
}
