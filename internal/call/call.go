// Package call wraps a third-party real-time media session behind a
// small state machine. The concrete transport is opaque; the rest of
// the system only sees call state, participants, the active speaker
// and the screen-share owner.
package call

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

// State is the call lifecycle: idle -> joining -> {joined | error},
// joined -> leaving -> idle. Error recovers to idle via Reset.
type State string

const (
	StateIdle    State = "idle"
	StateJoining State = "joining"
	StateJoined  State = "joined"
	StateLeaving State = "leaving"
	StateError   State = "error"
)

// ErrBusy is returned when Join is called while a call is underway.
var ErrBusy = errors.New("call already in progress")

// Participant is one peer in the session.
type Participant struct {
	SessionID     string `json:"sessionId"`
	Name          string `json:"name"`
	Local         bool   `json:"local"`
	ScreenSharing bool   `json:"screenSharing"`
}

// JoinOptions control the initial track state. The default join policy
// is a phone call: audio on, camera off.
type JoinOptions struct {
	Audio bool
	Video bool
}

// EventKind tags transport events.
type EventKind int

const (
	EventParticipants EventKind = iota
	EventActiveSpeaker
	EventScreenShareStarted
	EventScreenShareStopped
	EventError
	EventLeft
)

// Event is a notification from the transport.
type Event struct {
	Kind         EventKind
	Participants []Participant
	SessionID    string
	Local        bool
	Err          error
}

// Session is the opaque media transport. Implementations must make
// Destroy safe to call in any state so a failed join leaves nothing
// dangling.
type Session interface {
	Join(ctx context.Context, url string, opts JoinOptions) error
	Leave(ctx context.Context) error
	SetAudio(enabled bool) error
	SetVideo(enabled bool) error
	StartScreenShare(ctx context.Context) error
	StopScreenShare() error
	Events() <-chan Event
	Destroy()
}

// Factory creates a fresh Session per join attempt.
type Factory func() Session

// Client drives one session at a time through the call state machine.
type Client struct {
	factory Factory

	mu               sync.Mutex
	state            State
	session          Session
	participants     []Participant
	activeSpeakerID  string
	screenShareOwner string
	audioOn          bool
	videoOn          bool
	sharing          bool
	stopEvents       chan struct{}
}

func NewClient(factory Factory) *Client {
	return &Client{factory: factory, state: StateIdle}
}

// Join starts a call. Audio is enabled and video disabled on entry; with
// autoShareScreen the client additionally attempts a screen share once
// joined, logging (not failing) if the attempt is refused. Any join
// failure fully tears the session down and lands in the error state.
func (c *Client) Join(ctx context.Context, url string, autoShareScreen bool) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = StateJoining
	session := c.factory()
	c.session = session
	c.mu.Unlock()

	if err := session.Join(ctx, url, JoinOptions{Audio: true, Video: false}); err != nil {
		session.Destroy()
		c.mu.Lock()
		c.session = nil
		c.state = StateError
		c.mu.Unlock()
		return fmt.Errorf("join call: %w", err)
	}

	c.mu.Lock()
	c.state = StateJoined
	c.audioOn = true
	c.videoOn = false
	c.stopEvents = make(chan struct{})
	stop := c.stopEvents
	c.mu.Unlock()

	go c.eventLoop(session, stop)

	if autoShareScreen {
		if err := session.StartScreenShare(ctx); err != nil {
			log.Printf("call: auto screen share failed: %v", err)
		} else {
			c.mu.Lock()
			c.sharing = true
			c.mu.Unlock()
		}
	}
	return nil
}

// Leave ends the call and resets all reactive views. Safe to call when
// no call is active.
func (c *Client) Leave(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	if session == nil {
		c.mu.Unlock()
		return nil
	}
	c.state = StateLeaving
	stop := c.stopEvents
	c.mu.Unlock()

	err := session.Leave(ctx)
	session.Destroy()
	if stop != nil {
		close(stop)
	}

	c.mu.Lock()
	c.teardownLocked()
	if err != nil {
		// Session is gone either way; a failed leave still ends idle,
		// matching the no-dangling-session rule.
		log.Printf("call: leave error: %v", err)
	}
	c.mu.Unlock()
	return nil
}

// Reset recovers from the error state.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateError {
		c.teardownLocked()
	}
}

func (c *Client) teardownLocked() {
	c.session = nil
	c.state = StateIdle
	c.participants = nil
	c.activeSpeakerID = ""
	c.screenShareOwner = ""
	c.audioOn = false
	c.videoOn = false
	c.sharing = false
	c.stopEvents = nil
}

// ToggleMic flips the local audio track.
func (c *Client) ToggleMic() {
	c.mu.Lock()
	session := c.session
	next := !c.audioOn
	c.mu.Unlock()
	if session == nil {
		return
	}
	if err := session.SetAudio(next); err != nil {
		log.Printf("call: toggle mic: %v", err)
		return
	}
	c.mu.Lock()
	c.audioOn = next
	c.mu.Unlock()
}

// ToggleCamera flips the local video track.
func (c *Client) ToggleCamera() {
	c.mu.Lock()
	session := c.session
	next := !c.videoOn
	c.mu.Unlock()
	if session == nil {
		return
	}
	if err := session.SetVideo(next); err != nil {
		log.Printf("call: toggle camera: %v", err)
		return
	}
	c.mu.Lock()
	c.videoOn = next
	c.mu.Unlock()
}

// ToggleScreenShare starts or stops sharing this tab's screen.
func (c *Client) ToggleScreenShare(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	sharing := c.sharing
	c.mu.Unlock()
	if session == nil {
		return nil
	}

	if sharing {
		if err := session.StopScreenShare(); err != nil {
			return fmt.Errorf("stop screen share: %w", err)
		}
		c.mu.Lock()
		c.sharing = false
		c.mu.Unlock()
		return nil
	}

	if err := session.StartScreenShare(ctx); err != nil {
		return fmt.Errorf("start screen share: %w", err)
	}
	c.mu.Lock()
	c.sharing = true
	c.mu.Unlock()
	return nil
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Participants returns the current peer list.
func (c *Client) Participants() []Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Participant(nil), c.participants...)
}

// ActiveSpeakerID returns the session id of whoever is speaking.
func (c *Client) ActiveSpeakerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeSpeakerID
}

// ScreenShareOwnerID returns the session id of whoever is sharing.
func (c *Client) ScreenShareOwnerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.screenShareOwner
}

// MicOn reports the local audio track state.
func (c *Client) MicOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audioOn
}

// CameraOn reports the local video track state.
func (c *Client) CameraOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.videoOn
}

func (c *Client) eventLoop(session Session, stop chan struct{}) {
	events := session.Events()
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.applyEvent(session, ev)
		}
	}
}

func (c *Client) applyEvent(session Session, ev Event) {
	switch ev.Kind {
	case EventParticipants:
		c.mu.Lock()
		c.participants = ev.Participants
		// Re-derive the share owner in case a track event was missed.
		c.screenShareOwner = ""
		for _, p := range ev.Participants {
			if p.ScreenSharing {
				c.screenShareOwner = p.SessionID
				break
			}
		}
		c.mu.Unlock()

	case EventActiveSpeaker:
		c.mu.Lock()
		c.activeSpeakerID = ev.SessionID
		c.mu.Unlock()

	case EventScreenShareStarted:
		c.mu.Lock()
		c.screenShareOwner = ev.SessionID
		if ev.Local {
			c.sharing = true
		}
		c.mu.Unlock()

	case EventScreenShareStopped:
		c.mu.Lock()
		if ev.Local {
			c.sharing = false
		}
		if c.screenShareOwner == ev.SessionID {
			c.screenShareOwner = ""
			for _, p := range c.participants {
				if p.ScreenSharing && p.SessionID != ev.SessionID {
					c.screenShareOwner = p.SessionID
					break
				}
			}
		}
		c.mu.Unlock()

	case EventError:
		log.Printf("call: session error: %v", ev.Err)
		session.Destroy()
		c.mu.Lock()
		c.session = nil
		c.participants = nil
		c.activeSpeakerID = ""
		c.screenShareOwner = ""
		c.sharing = false
		c.state = StateError
		c.mu.Unlock()

	case EventLeft:
		go func() { _ = c.Leave(context.Background()) }()
	}
}
