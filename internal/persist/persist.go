// Package persist saves the whitelisted client state to a single JSON file
// and restores it at startup.
package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"roast-tracker/internal/errs"
	"roast-tracker/internal/model"
)

// Snapshot is the persisted subset of client state. The current monitoring
// session binding is deliberately absent.
type Snapshot struct {
	DetectionRecords []model.DetectionRecord `json:"detectionRecords"`
	MonitorSessions  []model.MonitorSession  `json:"monitorSessions"`
	Settings         model.Settings          `json:"settings"`
	Identity         model.Identity          `json:"identity"`
}

// Default returns the first-run state.
func Default() Snapshot {
	return Snapshot{
		DetectionRecords: []model.DetectionRecord{},
		MonitorSessions:  []model.MonitorSession{},
		Settings:         model.DefaultSettings(),
		Identity:         model.Anonymous(),
	}
}

// Validate reports the first shape mismatch in s.
func (s Snapshot) Validate() error {
	for i, r := range s.DetectionRecords {
		if r.ID == "" {
			return fmt.Errorf("detectionRecords[%d]: missing id", i)
		}
		if !r.RoastLabel.Valid() {
			return fmt.Errorf("detectionRecords[%d]: unknown roast level %q", i, r.RoastLabel)
		}
		if r.Confidence < 0 || r.Confidence > 1 {
			return fmt.Errorf("detectionRecords[%d]: confidence %v out of range", i, r.Confidence)
		}
	}
	for i, ms := range s.MonitorSessions {
		if ms.ID == "" {
			return fmt.Errorf("monitorSessions[%d]: missing id", i)
		}
		if !ms.Status.Valid() {
			return fmt.Errorf("monitorSessions[%d]: unknown status %q", i, ms.Status)
		}
		if !ms.TargetRoastLabel.Valid() {
			return fmt.Errorf("monitorSessions[%d]: unknown roast level %q", i, ms.TargetRoastLabel)
		}
	}
	if err := s.Settings.Validate(); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	if !s.Identity.Consistent() {
		return errors.New("identity: signed-out identity carries an id or email")
	}
	return nil
}

// Persister saves and restores Snapshots.
type Persister interface {
	Save(ctx context.Context, s Snapshot) error
	// Restore never fails: a missing or malformed snapshot yields Default.
	Restore(ctx context.Context) Snapshot
}

// File persists to a JSON file. Writes go to a temp file in the same
// directory and are renamed over the target.
type File struct {
	path   string
	logger *log.Logger
	mu     sync.Mutex
}

// NewFile returns a Persister writing to path. A nil logger uses the
// standard logger.
func NewFile(path string, logger *log.Logger) *File {
	if logger == nil {
		logger = log.Default()
	}
	return &File{path: path, logger: logger}
}

// Path returns the snapshot file location.
func (f *File) Path() string {
	return f.path
}

func (f *File) Save(ctx context.Context, s Snapshot) error {
	if err := ctx.Err(); err != nil {
		return &errs.PersistenceError{Op: "save", Path: f.path, Err: err}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return &errs.PersistenceError{Op: "save", Path: f.path, Err: err}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &errs.PersistenceError{Op: "save", Path: f.path, Err: err}
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return &errs.PersistenceError{Op: "save", Path: f.path, Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &errs.PersistenceError{Op: "save", Path: f.path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &errs.PersistenceError{Op: "save", Path: f.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &errs.PersistenceError{Op: "save", Path: f.path, Err: err}
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return &errs.PersistenceError{Op: "save", Path: f.path, Err: err}
	}
	return nil
}

func (f *File) Restore(ctx context.Context) Snapshot {
	f.mu.Lock()
	data, err := os.ReadFile(f.path)
	f.mu.Unlock()

	if errors.Is(err, os.ErrNotExist) {
		return Default()
	}
	if err != nil {
		f.warn(err)
		return Default()
	}

	s, err := Decode(data)
	if err != nil {
		f.warn(err)
		return Default()
	}
	return s
}

func (f *File) warn(err error) {
	f.logger.Printf("WARN: %v; starting from defaults", &errs.PersistenceError{Op: "restore", Path: f.path, Err: err})
}

// Decode parses and validates a snapshot. Missing keys take their defaults;
// unknown keys are a shape mismatch.
func Decode(data []byte) (Snapshot, error) {
	s := Default()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return Snapshot{}, err
	}
	if s.DetectionRecords == nil {
		s.DetectionRecords = []model.DetectionRecord{}
	}
	if s.MonitorSessions == nil {
		s.MonitorSessions = []model.MonitorSession{}
	}
	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// Memory keeps the snapshot in memory. It is used by tests and when no state
// path is configured.
type Memory struct {
	mu    sync.Mutex
	saved *Snapshot
	saves int
	// Err, when set, is returned by every Save.
	Err error
}

func (m *Memory) Save(_ context.Context, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return &errs.PersistenceError{Op: "save", Path: "memory", Err: m.Err}
	}
	cp := s
	cp.DetectionRecords = slices.Clone(s.DetectionRecords)
	cp.MonitorSessions = slices.Clone(s.MonitorSessions)
	m.saved = &cp
	m.saves++
	return nil
}

func (m *Memory) Restore(context.Context) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		return Default()
	}
	return *m.saved
}

// Saves returns how many saves succeeded.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
