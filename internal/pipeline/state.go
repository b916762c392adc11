package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Record is the persisted summary of one finished run.
// Written to <state_dir>/last-run.json and <state_dir>/runs/<run_id>.json.
type Record struct {
	RunID      string    `json:"run_id"`
	Spec       string    `json:"spec"`
	APIID      string    `json:"api_id,omitempty"`
	VersionID  string    `json:"version_id,omitempty"`
	Status     string    `json:"status"` // "pass" or "fail"
	State      string    `json:"state"`
	Level      string    `json:"level,omitempty"`
	Errors     int       `json:"errors"`
	Warnings   int       `json:"warnings"`
	Infos      int       `json:"infos"`
	Hints      int       `json:"hints"`
	Stage      string    `json:"failed_stage,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewRecord builds the record for a finished run. Level is only recorded
// once classification has happened.
func NewRecord(out *Outcome, started, finished time.Time) Record {
	rec := Record{
		RunID:      out.RunID,
		Spec:       out.Spec,
		APIID:      out.Ref.APIID,
		VersionID:  out.Ref.VersionID,
		Status:     "pass",
		State:      out.State,
		Errors:     out.Summary.Errors,
		Warnings:   out.Summary.Warnings,
		Infos:      out.Summary.Infos,
		Hints:      out.Summary.Hints,
		StartedAt:  started.UTC(),
		FinishedAt: finished.UTC(),
	}
	if out.Level.Valid() {
		rec.Level = out.Level.ID()
	}
	if out.Err != nil {
		rec.Status = "fail"
		rec.Stage = FailedStage(out.Err)
		rec.Error = out.Err.Error()
	}
	return rec
}

// StateStore handles reading and writing run records.
type StateStore struct {
	baseDir string
}

// NewStateStore creates a store at the given base directory (e.g. .agentready/run).
func NewStateStore(baseDir string) *StateStore {
	return &StateStore{baseDir: baseDir}
}

// Dir returns the base directory.
func (s *StateStore) Dir() string {
	return s.baseDir
}

func (s *StateStore) lastRunPath() string {
	return filepath.Join(s.baseDir, "last-run.json")
}

func (s *StateStore) runPath(runID string) string {
	return filepath.Join(s.baseDir, "runs", runID+".json")
}

// Write saves rec as the last run and under its run id.
func (s *StateStore) Write(rec Record) error {
	if rec.RunID == "" {
		return fmt.Errorf("writing run record: empty run id")
	}
	if err := writeJSON(s.runPath(rec.RunID), rec); err != nil {
		return fmt.Errorf("writing run record: %w", err)
	}
	if err := writeJSON(s.lastRunPath(), rec); err != nil {
		return fmt.Errorf("writing last run: %w", err)
	}
	return nil
}

// ReadLastRun loads the most recent record. A missing file returns nil, nil.
func (s *StateStore) ReadLastRun() (*Record, error) {
	return readRecord(s.lastRunPath())
}

// ReadRun loads the record of a specific run. A missing file returns nil, nil.
func (s *StateStore) ReadRun(runID string) (*Record, error) {
	return readRecord(s.runPath(runID))
}

// Reset clears the state directory.
func (s *StateStore) Reset() error {
	return os.RemoveAll(s.baseDir)
}

func readRecord(path string) (*Record, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil // Not found is clean state
	}
	if err != nil {
		return nil, fmt.Errorf("opening run record: %w", err)
	}
	defer func() { _ = f.Close() }()

	var rec Record
	if err := json.NewDecoder(f).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decoding run record %s: %w", path, err)
	}
	return &rec, nil
}

// writeJSON replaces path atomically so concurrent runs never leave a
// half-written last-run.json.
func writeJSON(path string, v any) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
