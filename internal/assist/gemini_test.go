package assist

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func geminiAgainst(t *testing.T, handler http.HandlerFunc) *Gemini {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewGemini("test-key", "gemini-2.5-flash", 5*time.Second).WithEndpoint(server.URL)
}

func TestGenerateReturnsModelText(t *testing.T) {
	g := geminiAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.5-flash") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("request body not JSON: %v", err)
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"And so the dragon woke."}]}}]}`))
	})

	got := g.Generate(context.Background(), nil, nil, "Continue the story")
	if got != "And so the dragon woke." {
		t.Errorf("unexpected reply %q", got)
	}
}

func TestGenerateFlattensHistoryAndDocuments(t *testing.T) {
	var captured string
	g := geminiAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		captured = string(body)
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	})

	history := []Turn{{Role: "host", Text: "We begin"}, {Role: "ai", Text: "In a cave"}}
	docs := []DocumentRef{{Title: "Lore", Content: "Dragons exist."}}
	g.Generate(context.Background(), history, docs, "What next?")

	for _, want := range []string{
		"PREVIOUS CONVERSATION CONTEXT",
		"HOST: We begin",
		"AI: In a cave",
		"CURRENT REQUEST",
		"What next?",
		"DOCUMENT TITLE: Lore",
		"Dragons exist.",
	} {
		if !strings.Contains(captured, want) {
			t.Errorf("request missing %q", want)
		}
	}
}

func TestGenerateApologizesOnServerError(t *testing.T) {
	g := geminiAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	got := g.Generate(context.Background(), nil, nil, "hello")
	if got != apology {
		t.Errorf("expected apology, got %q", got)
	}
}

func TestGenerateApologizesOnUnreachableBackend(t *testing.T) {
	g := NewGemini("test-key", "gemini-2.5-flash", 500*time.Millisecond).
		WithEndpoint("http://127.0.0.1:1")

	got := g.Generate(context.Background(), nil, nil, "hello")
	if got != apology {
		t.Errorf("expected apology, got %q", got)
	}
}

func TestGenerateEmptyCandidates(t *testing.T) {
	g := geminiAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	})

	got := g.Generate(context.Background(), nil, nil, "hello")
	if got != "No response generated." {
		t.Errorf("expected fallback text, got %q", got)
	}
}

func TestRecentWindow(t *testing.T) {
	history := []Turn{{Text: "a"}, {Text: "b"}, {Text: "c"}}

	if got := RecentWindow(history, 2); len(got) != 2 || got[0].Text != "b" {
		t.Errorf("unexpected window %+v", got)
	}
	if got := RecentWindow(history, 10); len(got) != 3 {
		t.Errorf("expected full history, got %d", len(got))
	}
	if got := RecentWindow(history, 0); len(got) != 3 {
		t.Errorf("zero window must mean unbounded, got %d", len(got))
	}
}
