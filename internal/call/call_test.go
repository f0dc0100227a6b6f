package call

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// fakeSession is a scriptable transport for exercising the state machine.
type fakeSession struct {
	joinErr   error
	shareErr  error
	events    chan Event
	destroyed bool
	joined    bool
	left      bool
	audio     bool
	video     bool
	sharing   bool
	joinOpts  JoinOptions
}

func newFakeSession() *fakeSession {
	return &fakeSession{events: make(chan Event, 16)}
}

func (f *fakeSession) Join(_ context.Context, _ string, opts JoinOptions) error {
	if f.joinErr != nil {
		return f.joinErr
	}
	f.joined = true
	f.joinOpts = opts
	f.audio = opts.Audio
	f.video = opts.Video
	return nil
}

func (f *fakeSession) Leave(context.Context) error {
	f.left = true
	return nil
}

func (f *fakeSession) SetAudio(enabled bool) error {
	f.audio = enabled
	return nil
}

func (f *fakeSession) SetVideo(enabled bool) error {
	f.video = enabled
	return nil
}

func (f *fakeSession) StartScreenShare(context.Context) error {
	if f.shareErr != nil {
		return f.shareErr
	}
	f.sharing = true
	return nil
}

func (f *fakeSession) StopScreenShare() error {
	f.sharing = false
	return nil
}

func (f *fakeSession) Events() <-chan Event { return f.events }

func (f *fakeSession) Destroy() { f.destroyed = true }

func newTestClient() (*Client, *fakeSession) {
	session := newFakeSession()
	return NewClient(func() Session { return session }), session
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestJoinDefaultsAudioOnVideoOff(t *testing.T) {
	client, session := newTestClient()

	if err := client.Join(context.Background(), "https://rooms.example/abc", false); err != nil {
		t.Fatalf("join: %v", err)
	}
	if client.State() != StateJoined {
		t.Fatalf("state = %s, want joined", client.State())
	}
	if !session.joinOpts.Audio || session.joinOpts.Video {
		t.Errorf("join opts = %+v, want audio on video off", session.joinOpts)
	}
	if !client.MicOn() || client.CameraOn() {
		t.Errorf("mic=%v camera=%v, want mic on camera off", client.MicOn(), client.CameraOn())
	}
}

func TestJoinFailureTearsDownAndEntersError(t *testing.T) {
	client, session := newTestClient()
	session.joinErr = errors.New("room full")

	err := client.Join(context.Background(), "https://rooms.example/abc", false)
	if err == nil {
		t.Fatal("expected join error")
	}
	if client.State() != StateError {
		t.Errorf("state = %s, want error", client.State())
	}
	if !session.destroyed {
		t.Error("failed join must destroy the session")
	}

	client.Reset()
	if client.State() != StateIdle {
		t.Errorf("state after reset = %s, want idle", client.State())
	}
}

func TestJoinWhileJoinedReturnsBusy(t *testing.T) {
	client, _ := newTestClient()

	if err := client.Join(context.Background(), "https://rooms.example/abc", false); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := client.Join(context.Background(), "https://rooms.example/other", false); !errors.Is(err, ErrBusy) {
		t.Errorf("second join error = %v, want ErrBusy", err)
	}
}

func TestAutoScreenShareOnJoin(t *testing.T) {
	client, session := newTestClient()

	if err := client.Join(context.Background(), "https://rooms.example/abc", true); err != nil {
		t.Fatalf("join: %v", err)
	}
	if !session.sharing {
		t.Error("expected screen share to start with the join")
	}
}

func TestAutoScreenShareFailureDoesNotFailJoin(t *testing.T) {
	client, session := newTestClient()
	session.shareErr = errors.New("permission denied")

	if err := client.Join(context.Background(), "https://rooms.example/abc", true); err != nil {
		t.Fatalf("join must survive a refused share: %v", err)
	}
	if client.State() != StateJoined {
		t.Errorf("state = %s, want joined", client.State())
	}
}

func TestLeaveResetsEverything(t *testing.T) {
	client, session := newTestClient()

	if err := client.Join(context.Background(), "https://rooms.example/abc", false); err != nil {
		t.Fatalf("join: %v", err)
	}
	session.events <- Event{Kind: EventParticipants, Participants: []Participant{
		{SessionID: "p1", Name: "Ada", Local: true},
		{SessionID: "p2", Name: "Ben"},
	}}
	session.events <- Event{Kind: EventActiveSpeaker, SessionID: "p2"}
	waitFor(t, func() bool { return client.ActiveSpeakerID() == "p2" })

	if err := client.Leave(context.Background()); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if client.State() != StateIdle {
		t.Errorf("state = %s, want idle", client.State())
	}
	if len(client.Participants()) != 0 || client.ActiveSpeakerID() != "" {
		t.Error("leave must clear participants and active speaker")
	}
	if !session.left || !session.destroyed {
		t.Error("leave must tear down the underlying session")
	}
}

func TestLeaveWithoutCallIsNoOp(t *testing.T) {
	client, _ := newTestClient()
	if err := client.Leave(context.Background()); err != nil {
		t.Fatalf("leave on idle client: %v", err)
	}
}

func TestToggleMicAndCamera(t *testing.T) {
	client, session := newTestClient()

	if err := client.Join(context.Background(), "https://rooms.example/abc", false); err != nil {
		t.Fatalf("join: %v", err)
	}

	client.ToggleMic()
	if client.MicOn() || session.audio {
		t.Error("mic should be off after toggle")
	}
	client.ToggleCamera()
	if !client.CameraOn() || !session.video {
		t.Error("camera should be on after toggle")
	}
}

func TestScreenShareOwnerTracking(t *testing.T) {
	client, session := newTestClient()

	if err := client.Join(context.Background(), "https://rooms.example/abc", false); err != nil {
		t.Fatalf("join: %v", err)
	}

	session.events <- Event{Kind: EventScreenShareStarted, SessionID: "p2"}
	waitFor(t, func() bool { return client.ScreenShareOwnerID() == "p2" })

	session.events <- Event{Kind: EventScreenShareStopped, SessionID: "p2"}
	waitFor(t, func() bool { return client.ScreenShareOwnerID() == "" })
}

func TestSessionErrorEntersErrorState(t *testing.T) {
	client, session := newTestClient()

	if err := client.Join(context.Background(), "https://rooms.example/abc", false); err != nil {
		t.Fatalf("join: %v", err)
	}

	session.events <- Event{Kind: EventError, Err: errors.New("ice failure")}
	waitFor(t, func() bool { return client.State() == StateError })
	if !session.destroyed {
		t.Error("session error must destroy the transport")
	}
}

func TestCreateRoomViaAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rooms" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization = %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("body not JSON: %v", err)
		}
		w.Write([]byte(`{"url":"https://example.daily.co/room-123"}`))
	}))
	defer server.Close()

	p := NewRoomProvisioner("secret", server.URL, "example")
	url, err := p.CreateRoom(context.Background())
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if url != "https://example.daily.co/room-123" {
		t.Errorf("url = %q", url)
	}
}

func TestCreateRoomWithoutKeyFabricatesURL(t *testing.T) {
	p := NewRoomProvisioner("", "https://api.invalid", "mydomain")
	url, err := p.CreateRoom(context.Background())
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if !strings.HasPrefix(url, "https://mydomain.daily.co/co-narrator-") {
		t.Errorf("fabricated url = %q", url)
	}
}

func TestCreateRoomFallsBackOnAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	p := NewRoomProvisioner("secret", server.URL, "mydomain")
	url, err := p.CreateRoom(context.Background())
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if !strings.HasPrefix(url, "https://mydomain.daily.co/co-narrator-") {
		t.Errorf("fallback url = %q", url)
	}
}
