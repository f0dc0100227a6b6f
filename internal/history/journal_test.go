package history

import (
	"testing"

	"conarrator/api/internal/model"
)

func stateWithMessage(text string) model.ProjectState {
	return model.ProjectState{
		Messages:    []model.Message{{ID: "msg_1", Role: model.MessageHost, Text: text, Timestamp: 1700000000000}},
		Documents:   []model.Document{},
		Suggestions: []model.Suggestion{},
	}
}

func TestCommitAndHistory(t *testing.T) {
	j := New(t.TempDir())

	first, err := j.Commit(stateWithMessage("once upon a time"), "Ada", "add opening line")
	if err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if len(first.Hash) != 7 {
		t.Errorf("hash = %q, want 7-char abbreviation", first.Hash)
	}

	if _, err := j.Commit(stateWithMessage("once upon a time, in a cave"), "Ada", "extend opening"); err != nil {
		t.Fatalf("second commit: %v", err)
	}

	entries, err := j.History(0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Message != "extend opening" {
		t.Errorf("newest entry = %q, want most recent first", entries[0].Message)
	}
	if entries[1].Author != "Ada" {
		t.Errorf("author = %q", entries[1].Author)
	}
}

func TestHistoryLimit(t *testing.T) {
	j := New(t.TempDir())
	for _, text := range []string{"a", "ab", "abc"} {
		if _, err := j.Commit(stateWithMessage(text), "Ada", "step"); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}

	entries, err := j.History(2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("len(entries) = %d, want 2", len(entries))
	}
}

func TestHistoryOnEmptyJournal(t *testing.T) {
	j := New(t.TempDir())
	entries, err := j.History(10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty history, got %d entries", len(entries))
	}
}

func TestStateAtRecoversOldRevision(t *testing.T) {
	j := New(t.TempDir())

	old, err := j.Commit(stateWithMessage("the original line"), "Ada", "v1")
	if err != nil {
		t.Fatalf("commit v1: %v", err)
	}
	if _, err := j.Commit(stateWithMessage("a rewritten line"), "Ada", "v2"); err != nil {
		t.Fatalf("commit v2: %v", err)
	}

	state, err := j.StateAt(old.Hash)
	if err != nil {
		t.Fatalf("state at %s: %v", old.Hash, err)
	}
	if len(state.Messages) != 1 || state.Messages[0].Text != "the original line" {
		t.Errorf("recovered state = %+v", state.Messages)
	}
}

func TestUnchangedStateIsNoOpCommit(t *testing.T) {
	j := New(t.TempDir())

	state := stateWithMessage("steady")
	first, err := j.Commit(state, "Ada", "initial")
	if err != nil {
		t.Fatalf("first commit: %v", err)
	}
	second, err := j.Commit(state, "Ada", "retry")
	if err != nil {
		t.Fatalf("repeat commit: %v", err)
	}
	if second.Hash != first.Hash {
		t.Errorf("repeat commit created %s, want head %s unchanged", second.Hash, first.Hash)
	}

	entries, err := j.History(0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("len(entries) = %d, want 1", len(entries))
	}
}
