package storage

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"conarrator/api/internal/model"
)

func sampleState() model.ProjectState {
	return model.ProjectState{
		Messages: []model.Message{
			{ID: "msg_1", Role: model.MessageHost, Text: "Once upon a time", Timestamp: 1700000000000},
			{ID: "msg_2", Role: model.MessageAI, Text: "...there was a dragon.", Timestamp: 1700000001000},
		},
		Documents: []model.Document{
			{ID: "doc_1", Title: "Lore", Content: "Dragons exist."},
		},
		Suggestions: []model.Suggestion{
			{ID: "sug_1", Author: "Bob", Text: "Add a twist", Status: model.SuggestionPending, Timestamp: 1700000002000},
		},
		RoomURL: "https://co-narrator.daily.co/room-1",
	}
}

func openStore(t *testing.T) *SnapshotStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "snapshots"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	s := openStore(t)

	state := sampleState()
	if err := s.Save(state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, ok := s.Load()
	if !ok {
		t.Fatal("expected a snapshot, got absent")
	}
	if loaded.LastModified == 0 {
		t.Error("expected LastModified to be stamped")
	}
	loaded.LastModified = 0
	if !reflect.DeepEqual(loaded, state) {
		t.Errorf("loaded snapshot differs:\n got %+v\nwant %+v", loaded, state)
	}
}

func TestLoadAbsentSnapshot(t *testing.T) {
	s := openStore(t)
	if _, ok := s.Load(); ok {
		t.Error("expected absent snapshot on fresh store")
	}
}

func TestSaveOverwritesPriorSnapshot(t *testing.T) {
	s := openStore(t)

	first := sampleState()
	if err := s.Save(first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	second := sampleState()
	second.Messages = append(second.Messages, model.Message{ID: "msg_3", Role: model.MessageHost, Text: "And then", Timestamp: 1700000003000})
	if err := s.Save(second); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	loaded, ok := s.Load()
	if !ok {
		t.Fatal("expected a snapshot")
	}
	if len(loaded.Messages) != 3 {
		t.Errorf("expected 3 messages after overwrite, got %d", len(loaded.Messages))
	}
}

func TestClearSnapshot(t *testing.T) {
	s := openStore(t)

	if err := s.Save(sampleState()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok := s.Load(); ok {
		t.Error("expected absent snapshot after Clear")
	}
	// Clearing again is a no-op, not an error.
	if err := s.Clear(); err != nil {
		t.Errorf("second Clear failed: %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	state := sampleState()

	path, err := ExportToFile(state, dir)
	if err != nil {
		t.Fatalf("ExportToFile failed: %v", err)
	}
	if filepath.Ext(path) != ".json" {
		t.Errorf("expected .json export, got %s", path)
	}

	imported, err := ImportFromFile(path)
	if err != nil {
		t.Fatalf("ImportFromFile failed: %v", err)
	}
	imported.LastModified = 0
	state.LastModified = 0
	if !reflect.DeepEqual(imported, state) {
		t.Errorf("round trip differs:\n got %+v\nwant %+v", imported, state)
	}
}

func TestImportRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	_, err := ImportFromFile(path)
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}
}

func TestImportRejectsWrongShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.json")
	if err := os.WriteFile(path, []byte(`{"title":"not a project"}`), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	_, err := ImportFromFile(path)
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse for wrong shape, got %v", err)
	}
}

func TestImportMissingFile(t *testing.T) {
	_, err := ImportFromFile(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if errors.Is(err, ErrParse) {
		t.Error("missing file is a read failure, not a parse failure")
	}
}

func TestImportAcceptsEmptyArrays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	payload := `{"messages":[],"documents":[],"suggestions":[],"lastModified":0}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	state, err := ImportFromFile(path)
	if err != nil {
		t.Fatalf("ImportFromFile failed: %v", err)
	}
	if !state.Empty() {
		t.Errorf("expected empty state, got %+v", state)
	}
}
