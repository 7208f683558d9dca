// Package checkpoint persists pipeline progress so interrupted runs can
// resume without refetching completed work. State is written atomically
// via a temp file rename.
package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/opencivic/roster/pkg/errors"
	"github.com/opencivic/roster/pkg/records"
)

// Stage names the pipeline phases recorded in checkpoints.
const (
	StageRegistry = "registry"
	StageDetail   = "detail"
	StageCombine  = "combine"
	StageDedupe   = "dedupe"
	StageEnrich   = "enrich"
	StageExport   = "export"
	StageDone     = "done"
)

// State is the persisted progress of one pipeline run.
type State struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Stage     string    `json:"stage"`

	RegistryCount int `json:"registry_count,omitempty"`
	DetailCount   int `json:"detail_count,omitempty"`
	OutputCount   int `json:"output_count,omitempty"`

	// DetailDone lists identifiers whose detail fetch completed and
	// DetailRecords holds the records those fetches produced, so a
	// resumed run skips them without losing their data.
	DetailDone    []records.Identifier `json:"detail_done,omitempty"`
	DetailRecords []records.Record     `json:"detail_records,omitempty"`
}

// Remaining filters ids down to those not yet fetched.
func (s *State) Remaining(ids []records.Identifier) []records.Identifier {
	done := make(map[records.Identifier]bool, len(s.DetailDone))
	for _, id := range s.DetailDone {
		done[id] = true
	}

	var out []records.Identifier
	for _, id := range ids {
		if !done[id] {
			out = append(out, id)
		}
	}
	return out
}

const latestFile = "latest.json"

// Store reads and writes run state under one directory.
type Store struct {
	dir string
}

// NewStore creates a checkpoint store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.NewConfigError("checkpoint", "directory is required", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewIOError("create", dir, err)
	}
	return &Store{dir: dir}, nil
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Begin starts tracking a new run.
func (s *Store) Begin() *State {
	now := time.Now().UTC()
	return &State{
		RunID:     NewRunID(),
		StartedAt: now,
		UpdatedAt: now,
		Stage:     StageRegistry,
	}
}

// Save persists the state atomically and marks it as the latest run.
func (s *Store) Save(state *State) error {
	state.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.NewParseError("json", "", "encoding checkpoint", err)
	}

	for _, name := range []string{state.RunID + ".json", latestFile} {
		if err := atomicWrite(filepath.Join(s.dir, name), data); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the state of a specific run.
func (s *Store) Load(runID string) (*State, error) {
	return s.read(filepath.Join(s.dir, runID+".json"))
}

// Latest reads the most recently saved run. Returns ErrNotFound when no
// run has been saved.
func (s *Store) Latest() (*State, error) {
	return s.read(filepath.Join(s.dir, latestFile))
}

// Clear removes the latest-run marker. Per-run files are kept.
func (s *Store) Clear() error {
	err := os.Remove(filepath.Join(s.dir, latestFile))
	if err != nil && !os.IsNotExist(err) {
		return errors.NewIOError("delete", latestFile, err)
	}
	return nil
}

func (s *Store) read(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.NewIOError("read", path, err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.NewParseError("json", path, "decoding checkpoint", err)
	}
	return &state, nil
}

func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".checkpoint-*")
	if err != nil {
		return errors.NewIOError("create", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.NewIOError("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewIOError("write", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.NewIOError("write", path, err)
	}
	return nil
}
