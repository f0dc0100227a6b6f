package app

import (
	"context"
	"log"
	"net/http"
	"sync/atomic"

	"conarrator/api/internal/assist"
	"conarrator/api/internal/call"
	"conarrator/api/internal/collab"
	"conarrator/api/internal/export"
	"conarrator/api/internal/history"
	"conarrator/api/internal/model"
	"conarrator/api/internal/search"
)

// RoomCreator provisions call rooms.
type RoomCreator interface {
	CreateRoom(ctx context.Context) (string, error)
}

// Service is the application facade. It layers role gating and the
// single-generation rule on top of the replicated store and wires the
// surrounding services together.
type Service struct {
	store         *collab.Store
	generator     assist.Generator
	calls         *call.Client
	rooms         RoomCreator
	search        *search.Service
	exporter      *export.Service
	journal       *history.Journal
	historyWindow int
	exportDir     string
	generating    atomic.Bool
}

func NewService(
	store *collab.Store,
	generator assist.Generator,
	calls *call.Client,
	rooms RoomCreator,
	searchSvc *search.Service,
	exporter *export.Service,
	journal *history.Journal,
	historyWindow int,
	exportDir string,
) *Service {
	s := &Service{
		store:         store,
		generator:     generator,
		calls:         calls,
		rooms:         rooms,
		search:        searchSvc,
		exporter:      exporter,
		journal:       journal,
		historyWindow: historyWindow,
		exportDir:     exportDir,
	}
	if searchSvc != nil {
		store.OnChange(func() {
			searchSvc.SyncState(store.State())
		})
	}
	return s
}

// SelectRole applies the role chosen at entry. The choice is applied
// once per process; later selections are rejected.
func (s *Service) SelectRole(ctx context.Context, roleParam string) (model.Role, error) {
	var role model.Role
	switch roleParam {
	case "host":
		role = model.RoleHost
	case "viewer":
		role = model.RoleViewer
	default:
		return "", domainError(http.StatusBadRequest, "INVALID_ROLE", "role must be host or viewer", nil)
	}

	if current := s.store.Role(); current != model.RoleUnset && current != role {
		return "", domainError(http.StatusConflict, "ROLE_ALREADY_SET", "role has already been selected", nil)
	}
	s.store.SetRole(ctx, role)
	return role, nil
}

// Role returns the selected role, empty until SelectRole succeeds.
func (s *Service) Role() model.Role {
	return s.store.Role()
}

// State returns a snapshot of the replicated project state.
func (s *Service) State() model.ProjectState {
	return s.store.State()
}

// IsGenerating reports whether an AI turn is in flight.
func (s *Service) IsGenerating() bool {
	return s.generating.Load()
}

// GenerateTurn runs one host prompt through the assistant. The host
// message is committed and replicated before the model is called, the
// AI reply after. Only one turn may be in flight at a time.
func (s *Service) GenerateTurn(ctx context.Context, prompt string) (model.Message, model.Message, error) {
	if err := s.requireHost(); err != nil {
		return model.Message{}, model.Message{}, err
	}
	if prompt == "" {
		return model.Message{}, model.Message{}, domainError(http.StatusBadRequest, "EMPTY_PROMPT", "prompt must not be empty", nil)
	}
	if !s.generating.CompareAndSwap(false, true) {
		return model.Message{}, model.Message{}, domainError(http.StatusConflict, "GENERATION_IN_PROGRESS", "an AI turn is already in flight", nil)
	}
	defer s.generating.Store(false)

	state := s.store.State()
	historyTurns := make([]assist.Turn, 0, len(state.Messages))
	for _, msg := range state.Messages {
		historyTurns = append(historyTurns, assist.Turn{Role: string(msg.Role), Text: msg.Text})
	}
	documents := make([]assist.DocumentRef, 0, len(state.Documents))
	for _, doc := range state.Documents {
		documents = append(documents, assist.DocumentRef{Title: doc.Title, Content: doc.Content})
	}

	hostMsg := model.NewMessage(model.MessageHost, prompt, "")
	s.store.AddMessage(ctx, hostMsg)

	reply := s.generator.Generate(ctx, assist.RecentWindow(historyTurns, s.historyWindow), documents, prompt)
	aiMsg := model.NewMessage(model.MessageAI, reply, "")
	s.store.AddMessage(ctx, aiMsg)

	s.journalCommit("Lead Writer", "ai turn")
	return hostMsg, aiMsg, nil
}

// AddDocument attaches a reference document. Host only.
func (s *Service) AddDocument(ctx context.Context, title, content string) (model.Document, error) {
	if err := s.requireHost(); err != nil {
		return model.Document{}, err
	}
	if title == "" || content == "" {
		return model.Document{}, domainError(http.StatusBadRequest, "INVALID_DOCUMENT", "title and content are required", nil)
	}
	doc := model.NewDocument(title, content)
	s.store.AddDocument(ctx, doc)
	s.journalCommit("Lead Writer", "add document "+title)
	return doc, nil
}

// RemoveDocument detaches a reference document from this tab only.
func (s *Service) RemoveDocument(id string) error {
	if err := s.requireHost(); err != nil {
		return err
	}
	s.store.RemoveDocument(id)
	if s.search != nil {
		s.search.RemoveDocument(id)
	}
	return nil
}

// AddSuggestion records a viewer suggestion.
func (s *Service) AddSuggestion(ctx context.Context, author, text string) (model.Suggestion, error) {
	if text == "" {
		return model.Suggestion{}, domainError(http.StatusBadRequest, "EMPTY_SUGGESTION", "suggestion text must not be empty", nil)
	}
	return s.store.AddSuggestion(ctx, text, author), nil
}

// ResolveSuggestion accepts or rejects a pending suggestion. Host only.
func (s *Service) ResolveSuggestion(ctx context.Context, id string, status model.SuggestionStatus) error {
	if err := s.requireHost(); err != nil {
		return err
	}
	if status != model.SuggestionAccepted && status != model.SuggestionRejected {
		return domainError(http.StatusBadRequest, "INVALID_STATUS", "status must be accepted or rejected", nil)
	}
	s.store.UpdateSuggestionStatus(ctx, id, status)
	return nil
}

// CreateRoom provisions a call room and replicates its URL. Host only.
func (s *Service) CreateRoom(ctx context.Context) (string, error) {
	if err := s.requireHost(); err != nil {
		return "", err
	}
	if existing := s.store.RoomURL(); existing != "" {
		return existing, nil
	}
	url, err := s.rooms.CreateRoom(ctx)
	if err != nil {
		return "", domainError(http.StatusBadGateway, "ROOM_CREATE_FAILED", "could not create a call room", nil)
	}
	s.store.SetRoomURL(ctx, url)
	return url, nil
}

// JoinCall joins the replicated room. Viewers join with an automatic
// screen share attempt so the host can see their context.
func (s *Service) JoinCall(ctx context.Context) error {
	url := s.store.RoomURL()
	if url == "" {
		return domainError(http.StatusNotFound, "NO_ROOM", "no call room has been created", nil)
	}
	autoShare := s.store.Role() == model.RoleViewer
	if err := s.calls.Join(ctx, url, autoShare); err != nil {
		return domainError(http.StatusBadGateway, "JOIN_FAILED", "could not join the call", nil)
	}
	return nil
}

// LeaveCall leaves any active call.
func (s *Service) LeaveCall(ctx context.Context) error {
	return s.calls.Leave(ctx)
}

// CallStatus is the reactive snapshot of the call.
type CallStatus struct {
	State         call.State         `json:"state"`
	Participants  []call.Participant `json:"participants"`
	ActiveSpeaker string             `json:"activeSpeaker,omitempty"`
	ScreenSharer  string             `json:"screenSharer,omitempty"`
	MicOn         bool               `json:"micOn"`
	CameraOn      bool               `json:"cameraOn"`
}

func (s *Service) CallStatus() CallStatus {
	return CallStatus{
		State:         s.calls.State(),
		Participants:  s.calls.Participants(),
		ActiveSpeaker: s.calls.ActiveSpeakerID(),
		ScreenSharer:  s.calls.ScreenShareOwnerID(),
		MicOn:         s.calls.MicOn(),
		CameraOn:      s.calls.CameraOn(),
	}
}

// ToggleMic flips the local microphone.
func (s *Service) ToggleMic() { s.calls.ToggleMic() }

// ToggleCamera flips the local camera.
func (s *Service) ToggleCamera() { s.calls.ToggleCamera() }

// ToggleScreenShare flips the local screen share.
func (s *Service) ToggleScreenShare(ctx context.Context) error {
	return s.calls.ToggleScreenShare(ctx)
}

// ExportProjectFile writes the project to a JSON file and returns its
// path. Host only.
func (s *Service) ExportProjectFile(dir string) (string, error) {
	if err := s.requireHost(); err != nil {
		return "", err
	}
	if dir == "" {
		dir = s.exportDir
	}
	path, err := s.store.ExportProject(dir)
	if err != nil {
		return "", domainError(http.StatusInternalServerError, "EXPORT_FAILED", "could not write project file", nil)
	}
	return path, nil
}

// ExportTranscript renders the session transcript. Host only.
func (s *Service) ExportTranscript(req export.Request) (*export.Result, error) {
	if err := s.requireHost(); err != nil {
		return nil, err
	}
	result, err := s.exporter.Export(s.store.State(), req)
	if err != nil {
		return nil, domainError(http.StatusInternalServerError, "EXPORT_FAILED", "could not render transcript", nil)
	}
	return result, nil
}

// ImportProjectFile replaces the project from a JSON file and
// broadcasts the new state. Host only.
func (s *Service) ImportProjectFile(ctx context.Context, path string) error {
	if err := s.requireHost(); err != nil {
		return err
	}
	if err := s.store.ImportProject(ctx, path); err != nil {
		return domainError(http.StatusBadRequest, "IMPORT_FAILED", "project file is invalid", nil)
	}
	s.journalCommit("Lead Writer", "import project")
	return nil
}

// ClearProject wipes the project everywhere. Host only.
func (s *Service) ClearProject(ctx context.Context) error {
	if err := s.requireHost(); err != nil {
		return err
	}
	s.store.ClearProject(ctx)
	s.journalCommit("Lead Writer", "clear project")
	return nil
}

// Search queries the narrative.
func (s *Service) Search(q search.Query) search.Response {
	return s.search.Search(q)
}

// History lists journal entries, newest first.
func (s *Service) History(limit int) ([]history.CommitInfo, error) {
	if s.journal == nil {
		return []history.CommitInfo{}, nil
	}
	return s.journal.History(limit)
}

// StateAt recovers the project state at a journal revision.
func (s *Service) StateAt(hash string) (model.ProjectState, error) {
	if s.journal == nil {
		return model.ProjectState{}, domainError(http.StatusNotFound, "HISTORY_DISABLED", "history is not enabled", nil)
	}
	state, err := s.journal.StateAt(hash)
	if err != nil {
		return model.ProjectState{}, domainError(http.StatusNotFound, "REVISION_NOT_FOUND", "no such revision", nil)
	}
	return state, nil
}

func (s *Service) requireHost() error {
	if s.store.Role() != model.RoleHost {
		return domainError(http.StatusForbidden, "FORBIDDEN", "host role required", nil)
	}
	return nil
}

func (s *Service) journalCommit(author, message string) {
	if s.journal == nil {
		return
	}
	state := s.store.State()
	state.RoomURL = ""
	go func() {
		if _, err := s.journal.Commit(state, author, message); err != nil {
			log.Printf("history: commit failed: %v", err)
		}
	}()
}
