// Package collab owns the replicated room state for one tab: the message
// stream, reference documents, viewer suggestions and the call room URL.
// It is the only writer of persisted and replicated data in the process.
//
// Consistency model: peers exchange minimal delta events; a tab joining
// late publishes REQUEST_STATE and any host answers with its full state.
// The last SYNC_STATE received wins unconditionally - no merge, no
// timestamp comparison. Concurrent hosts can therefore cause visible
// state jumps; that is an accepted property of the design.
package collab

import (
	"context"
	"fmt"
	"log"
	"sync"

	"conarrator/api/internal/bus"
	"conarrator/api/internal/model"
	"conarrator/api/internal/storage"
)

// WelcomeText seeds an empty narrative when a tab becomes host.
const WelcomeText = "Welcome to the collaboration session. I am ready to help you build your narrative. Please add documents or start typing."

// Store is the per-tab state machine. All mutators run to completion
// under one mutex; bus delivery happens on its own goroutine, so the
// mutex stands in for the single-threaded tab the design assumes.
type Store struct {
	bus       bus.Bus
	snapshots *storage.SnapshotStore

	mu          sync.Mutex
	role        model.Role
	messages    []model.Message
	documents   []model.Document
	suggestions []model.Suggestion
	roomURL     string

	listenerMu sync.Mutex
	listeners  map[int]func()
	nextID     int
}

// NewStore builds a store bound to its bus and snapshot store. Call
// Start to run the initialization handshake.
func NewStore(b bus.Bus, snapshots *storage.SnapshotStore) *Store {
	return &Store{
		bus:       b,
		snapshots: snapshots,
		role:      model.RoleUnset,
		listeners: make(map[int]func()),
	}
}

// Start runs the per-tab bootstrap: restore the persisted snapshot as
// initial state, subscribe to the bus, then ask any live host for the
// current truth. Persisted state is only the fallback when no peer
// answers.
func (s *Store) Start(ctx context.Context) {
	if s.snapshots != nil {
		if state, ok := s.snapshots.Load(); ok {
			s.mu.Lock()
			s.applyStateLocked(state)
			s.mu.Unlock()
			s.notify()
		}
	}

	s.bus.Subscribe(s.handleEvent)

	if err := s.bus.Publish(ctx, bus.EventRequestState, nil); err != nil {
		log.Printf("collab: state request failed: %v", err)
	}
}

// OnChange registers fn to run after every state change and returns an
// unsubscribe function. Listeners run outside the state lock and may
// read the store freely.
func (s *Store) OnChange(fn func()) func() {
	s.listenerMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenerMu.Unlock()

	return func() {
		s.listenerMu.Lock()
		delete(s.listeners, id)
		s.listenerMu.Unlock()
	}
}

func (s *Store) notify() {
	s.listenerMu.Lock()
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenerMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Role returns this tab's local role.
func (s *Store) Role() model.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// RoomURL returns the active call room address, if any.
func (s *Store) RoomURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomURL
}

// State returns a deep copy of the full replicable state.
func (s *Store) State() model.ProjectState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked().Clone()
}

func (s *Store) stateLocked() model.ProjectState {
	return model.ProjectState{
		Messages:    s.messages,
		Documents:   s.documents,
		Suggestions: s.suggestions,
		RoomURL:     s.roomURL,
	}
}

// persistable is the durable view of the state: the room URL is a live
// call artifact and is never written to disk or export files.
func (s *Store) persistable() model.ProjectState {
	state := s.State()
	state.RoomURL = ""
	return state
}

// SetRole grants this tab its local role. Becoming host of an empty
// narrative seeds the welcome message, which replicates like any other.
func (s *Store) SetRole(ctx context.Context, role model.Role) {
	s.mu.Lock()
	s.role = role
	empty := len(s.messages) == 0
	s.mu.Unlock()
	s.notify()

	if role == model.RoleHost && empty {
		s.AddMessage(ctx, model.NewMessage(model.MessageAI, WelcomeText, ""))
	}
}

// AddMessage appends to the narrative and replicates the delta.
func (s *Store) AddMessage(ctx context.Context, msg model.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.notify()
	s.publish(ctx, bus.EventNewMessage, msg)
}

// AddDocument appends a reference document. Empty titles or content are
// a caller error and leave the state untouched with nothing published.
func (s *Store) AddDocument(ctx context.Context, doc model.Document) {
	if doc.Title == "" || doc.Content == "" {
		return
	}
	s.mu.Lock()
	s.documents = append(s.documents, doc)
	s.mu.Unlock()
	s.notify()
	s.publish(ctx, bus.EventNewDocument, doc)
}

// AddSuggestion records a pending viewer contribution, most recent
// first, and replicates it.
func (s *Store) AddSuggestion(ctx context.Context, text, author string) model.Suggestion {
	suggestion := model.NewSuggestion(text, author)
	s.mu.Lock()
	s.suggestions = append([]model.Suggestion{suggestion}, s.suggestions...)
	s.mu.Unlock()
	s.notify()
	s.publish(ctx, bus.EventNewSuggestion, suggestion)
	return suggestion
}

// UpdateSuggestionStatus resolves a pending suggestion. Unknown ids and
// already-resolved suggestions are silent no-ops, which makes the
// operation idempotent and order-insensitive across tabs. Accepting a
// suggestion also promotes its text into the narrative as a viewer
// message, so acceptance is itself an observable, replicated event.
func (s *Store) UpdateSuggestionStatus(ctx context.Context, id string, status model.SuggestionStatus) {
	if status != model.SuggestionAccepted && status != model.SuggestionRejected {
		return
	}

	s.mu.Lock()
	var updated *model.Suggestion
	for i := range s.suggestions {
		if s.suggestions[i].ID != id {
			continue
		}
		if s.suggestions[i].Resolved() {
			s.mu.Unlock()
			return
		}
		s.suggestions[i].Status = status
		copied := s.suggestions[i]
		updated = &copied
		break
	}
	s.mu.Unlock()

	if updated == nil {
		return
	}
	s.notify()
	s.publish(ctx, bus.EventUpdateSuggestion, *updated)

	if status == model.SuggestionAccepted {
		s.AddMessage(ctx, model.NewMessage(model.MessageViewer, updated.Text, updated.Author))
	}
}

// RemoveDocument drops a document from local state only. Removal is not
// replicated to peers; a host-local cleanup that a later SYNC_STATE from
// this tab makes permanent for new joiners.
func (s *Store) RemoveDocument(id string) {
	s.mu.Lock()
	removed := false
	for i := range s.documents {
		if s.documents[i].ID == id {
			s.documents = append(s.documents[:i], s.documents[i+1:]...)
			removed = true
			break
		}
	}
	s.mu.Unlock()
	if removed {
		s.notify()
	}
}

// SetRoomURL records the active call address and replicates it.
func (s *Store) SetRoomURL(ctx context.Context, url string) {
	s.mu.Lock()
	s.roomURL = url
	s.mu.Unlock()
	s.notify()
	s.publish(ctx, bus.EventSetRoomURL, url)
}

// BroadcastState pushes this tab's full state to every peer.
func (s *Store) BroadcastState(ctx context.Context) {
	s.publish(ctx, bus.EventSyncState, s.State())
}

// ImportProject replaces the whole project from an exported file and
// pushes the result to all peers. On any failure the in-memory state is
// left untouched.
func (s *Store) ImportProject(ctx context.Context, path string) error {
	state, err := storage.ImportFromFile(path)
	if err != nil {
		return fmt.Errorf("import project: %w", err)
	}

	s.mu.Lock()
	s.applyStateLocked(state)
	s.mu.Unlock()
	s.notify()
	s.BroadcastState(ctx)
	return nil
}

// ExportProject writes the current project to a download file in dir and
// returns its path.
func (s *Store) ExportProject(dir string) (string, error) {
	return storage.ExportToFile(s.persistable(), dir)
}

// ClearProject resets everything: in-memory state, the persisted
// snapshot, and every peer via a broadcast of the cleared state. A host
// tab immediately re-seeds its welcome message.
func (s *Store) ClearProject(ctx context.Context) {
	s.mu.Lock()
	s.messages = nil
	s.documents = nil
	s.suggestions = nil
	s.roomURL = ""
	host := s.role == model.RoleHost
	s.mu.Unlock()
	s.notify()

	if s.snapshots != nil {
		if err := s.snapshots.Clear(); err != nil {
			log.Printf("collab: clear snapshot failed: %v", err)
		}
	}

	s.BroadcastState(ctx)

	if host {
		s.AddMessage(ctx, model.NewMessage(model.MessageAI, WelcomeText, ""))
	}
}

func (s *Store) applyStateLocked(state model.ProjectState) {
	s.messages = append([]model.Message(nil), state.Messages...)
	s.documents = append([]model.Document(nil), state.Documents...)
	s.suggestions = append([]model.Suggestion(nil), state.Suggestions...)
	if state.RoomURL != "" {
		s.roomURL = state.RoomURL
	}
}

// publish sends a delta event; a failed publish is transient, the local
// mutation stands and peers reconverge through the next handshake.
func (s *Store) publish(ctx context.Context, typ bus.EventType, payload any) {
	if err := s.bus.Publish(ctx, typ, payload); err != nil {
		log.Printf("collab: publish %s failed: %v", typ, err)
	}
}

// handleEvent reconciles one inbound bus event into local state.
func (s *Store) handleEvent(ev bus.Event) {
	switch ev.Type {
	case bus.EventRequestState:
		// Only a host answers a joining tab.
		if s.Role() == model.RoleHost {
			s.BroadcastState(context.Background())
		}
		return

	case bus.EventSyncState:
		var state model.ProjectState
		if err := ev.Decode(&state); err != nil {
			log.Printf("collab: bad SYNC_STATE payload: %v", err)
			return
		}
		s.mu.Lock()
		// Last writer wins: peer truth replaces local state wholesale,
		// including an empty room URL.
		s.messages = append([]model.Message(nil), state.Messages...)
		s.documents = append([]model.Document(nil), state.Documents...)
		s.suggestions = append([]model.Suggestion(nil), state.Suggestions...)
		s.roomURL = state.RoomURL
		s.mu.Unlock()

	case bus.EventNewMessage:
		var msg model.Message
		if err := ev.Decode(&msg); err != nil {
			log.Printf("collab: bad NEW_MESSAGE payload: %v", err)
			return
		}
		s.mu.Lock()
		s.messages = append(s.messages, msg)
		s.mu.Unlock()

	case bus.EventNewDocument:
		var doc model.Document
		if err := ev.Decode(&doc); err != nil {
			log.Printf("collab: bad NEW_DOCUMENT payload: %v", err)
			return
		}
		s.mu.Lock()
		s.documents = append(s.documents, doc)
		s.mu.Unlock()

	case bus.EventNewSuggestion:
		var suggestion model.Suggestion
		if err := ev.Decode(&suggestion); err != nil {
			log.Printf("collab: bad NEW_SUGGESTION payload: %v", err)
			return
		}
		s.mu.Lock()
		s.suggestions = append([]model.Suggestion{suggestion}, s.suggestions...)
		s.mu.Unlock()

	case bus.EventUpdateSuggestion:
		var suggestion model.Suggestion
		if err := ev.Decode(&suggestion); err != nil {
			log.Printf("collab: bad UPDATE_SUGGESTION payload: %v", err)
			return
		}
		s.mu.Lock()
		for i := range s.suggestions {
			if s.suggestions[i].ID == suggestion.ID {
				s.suggestions[i] = suggestion
				break
			}
		}
		s.mu.Unlock()

	case bus.EventSetRoomURL:
		var url string
		if err := ev.Decode(&url); err != nil {
			log.Printf("collab: bad SET_ROOM_URL payload: %v", err)
			return
		}
		s.mu.Lock()
		s.roomURL = url
		s.mu.Unlock()

	default:
		log.Printf("collab: ignoring unknown event type %q", ev.Type)
		return
	}

	s.notify()
}
