// Package model defines the replicated entities shared by every tab in a
// co-narration room: chat messages, reference documents, viewer suggestions
// and the project aggregate that gets persisted and exported.
package model

import (
	"time"

	"conarrator/api/internal/util"
)

// Role is the local authority a tab holds. It is never replicated; each
// process decides its own role via the invite link or explicit selection.
type Role string

const (
	RoleUnset  Role = "unset"
	RoleHost   Role = "host"
	RoleViewer Role = "viewer"
)

// MessageRole identifies who authored a chat message.
type MessageRole string

const (
	MessageHost   MessageRole = "host"
	MessageAI     MessageRole = "ai"
	MessageViewer MessageRole = "viewer"
)

// SuggestionStatus transitions pending -> accepted or pending -> rejected,
// exactly once. Once resolved it never changes again.
type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionAccepted SuggestionStatus = "accepted"
	SuggestionRejected SuggestionStatus = "rejected"
)

// Message is one entry in the narrative stream. Immutable once created;
// display order is insertion order.
type Message struct {
	ID        string      `json:"id"`
	Role      MessageRole `json:"role"`
	Text      string      `json:"text"`
	Timestamp int64       `json:"timestamp"`
	Author    string      `json:"author,omitempty"`
}

// Document is a reference text the host provides to ground the narrative.
type Document struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Suggestion is a viewer-submitted contribution awaiting host moderation.
type Suggestion struct {
	ID        string           `json:"id"`
	Author    string           `json:"author"`
	Text      string           `json:"text"`
	Status    SuggestionStatus `json:"status"`
	Timestamp int64            `json:"timestamp"`
}

// ProjectState is the full persistable/exportable unit: everything a tab
// replicates plus the room URL of an active call. LastModified is stamped
// at persistence time only and plays no part in conflict resolution.
type ProjectState struct {
	Messages     []Message    `json:"messages"`
	Documents    []Document   `json:"documents"`
	Suggestions  []Suggestion `json:"suggestions"`
	RoomURL      string       `json:"roomUrl,omitempty"`
	LastModified int64        `json:"lastModified"`
}

// NewMessage stamps a fresh id and timestamp.
func NewMessage(role MessageRole, text, author string) Message {
	return Message{
		ID:        util.NewID("msg"),
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
		Author:    author,
	}
}

// NewDocument stamps a fresh id.
func NewDocument(title, content string) Document {
	return Document{
		ID:      util.NewID("doc"),
		Title:   title,
		Content: content,
	}
}

// NewSuggestion stamps a fresh id and timestamp; suggestions start pending.
func NewSuggestion(text, author string) Suggestion {
	if author == "" {
		author = "Anonymous Viewer"
	}
	return Suggestion{
		ID:        util.NewID("sug"),
		Author:    author,
		Text:      text,
		Status:    SuggestionPending,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Resolved reports whether the suggestion has left the pending state.
func (s Suggestion) Resolved() bool {
	return s.Status != SuggestionPending
}

// Clone returns a deep copy so callers can hand state across goroutine
// boundaries without aliasing the store's slices.
func (p ProjectState) Clone() ProjectState {
	out := ProjectState{
		RoomURL:      p.RoomURL,
		LastModified: p.LastModified,
	}
	out.Messages = append([]Message(nil), p.Messages...)
	out.Documents = append([]Document(nil), p.Documents...)
	out.Suggestions = append([]Suggestion(nil), p.Suggestions...)
	return out
}

// Empty reports whether the project carries no content at all.
func (p ProjectState) Empty() bool {
	return len(p.Messages) == 0 && len(p.Documents) == 0 && len(p.Suggestions) == 0
}
