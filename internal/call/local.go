package call

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// LocalSession is a transport that models membership without moving any
// media. It stands in when no native media stack is available, so the
// call lifecycle, track toggles and participant views stay functional.
type LocalSession struct {
	name string

	mu      sync.Mutex
	id      string
	joined  bool
	sharing bool
	events  chan Event
}

func NewLocalSession(name string) *LocalSession {
	if name == "" {
		name = "You"
	}
	return &LocalSession{
		name:   name,
		id:     uuid.NewString(),
		events: make(chan Event, 16),
	}
}

func (s *LocalSession) Join(_ context.Context, _ string, _ JoinOptions) error {
	s.mu.Lock()
	s.joined = true
	s.mu.Unlock()
	s.events <- Event{Kind: EventParticipants, Participants: []Participant{
		{SessionID: s.id, Name: s.name, Local: true},
	}}
	s.events <- Event{Kind: EventActiveSpeaker, SessionID: s.id}
	return nil
}

func (s *LocalSession) Leave(context.Context) error {
	s.mu.Lock()
	s.joined = false
	s.mu.Unlock()
	return nil
}

func (s *LocalSession) SetAudio(bool) error { return nil }

func (s *LocalSession) SetVideo(bool) error { return nil }

func (s *LocalSession) StartScreenShare(context.Context) error {
	s.mu.Lock()
	s.sharing = true
	s.mu.Unlock()
	s.events <- Event{Kind: EventScreenShareStarted, SessionID: s.id, Local: true}
	return nil
}

func (s *LocalSession) StopScreenShare() error {
	s.mu.Lock()
	s.sharing = false
	s.mu.Unlock()
	s.events <- Event{Kind: EventScreenShareStopped, SessionID: s.id, Local: true}
	return nil
}

func (s *LocalSession) Events() <-chan Event { return s.events }

func (s *LocalSession) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joined = false
}
