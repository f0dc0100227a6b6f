// Package storage is the durability backstop for a project: a local
// key-value snapshot store plus file export/import.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"conarrator/api/internal/model"

	"github.com/cockroachdb/pebble"
)

// snapshotKey is the fixed key the project snapshot lives under. One
// device, one project, one key; every save overwrites the prior value.
const snapshotKey = "project:conarrator:v1"

// SnapshotStore persists the full ProjectState on the local device.
type SnapshotStore struct {
	db *pebble.DB
}

// Open opens (or creates) the snapshot database at path.
func Open(path string) (*SnapshotStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open snapshot db at %s: %w", path, err)
	}
	return &SnapshotStore{db: db}, nil
}

// Save overwrites the persisted snapshot with state, stamping
// LastModified. Failures are returned for the caller to log; in-memory
// state stays authoritative either way.
func (s *SnapshotStore) Save(state model.ProjectState) error {
	state.LastModified = time.Now().UnixMilli()
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.db.Set([]byte(snapshotKey), data, pebble.Sync); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Load returns the persisted snapshot. The second return is false when
// no snapshot exists or the stored value does not parse; a corrupt
// snapshot is treated the same as an absent one.
func (s *SnapshotStore) Load() (model.ProjectState, bool) {
	value, closer, err := s.db.Get([]byte(snapshotKey))
	if errors.Is(err, pebble.ErrNotFound) {
		return model.ProjectState{}, false
	}
	if err != nil {
		return model.ProjectState{}, false
	}
	defer closer.Close()

	var state model.ProjectState
	if err := json.Unmarshal(value, &state); err != nil {
		return model.ProjectState{}, false
	}
	return state, true
}

// Clear removes the persisted snapshot unconditionally.
func (s *SnapshotStore) Clear() error {
	if err := s.db.Delete([]byte(snapshotKey), pebble.Sync); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}
