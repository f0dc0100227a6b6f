package bus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupBus(t *testing.T, s *miniredis.Miniredis) *RedisBus {
	t.Helper()
	b, err := NewRedisBus("redis://"+s.Addr(), "conarrator:test")
	if err != nil {
		t.Fatalf("NewRedisBus failed: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestPublishReachesPeer(t *testing.T) {
	s := miniredis.RunT(t)
	a := setupBus(t, s)
	b := setupBus(t, s)

	received := make(chan Event, 1)
	b.Subscribe(func(ev Event) { received <- ev })

	if err := a.Publish(context.Background(), EventNewMessage, map[string]string{"id": "m1"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case ev := <-received:
		if ev.Type != EventNewMessage {
			t.Errorf("expected NEW_MESSAGE, got %s", ev.Type)
		}
		if ev.Sender != a.Sender() {
			t.Errorf("expected sender %s, got %s", a.Sender(), ev.Sender)
		}
		var payload map[string]string
		if err := ev.Decode(&payload); err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if payload["id"] != "m1" {
			t.Errorf("expected payload id m1, got %s", payload["id"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublisherNeverReceivesOwnEvent(t *testing.T) {
	s := miniredis.RunT(t)
	a := setupBus(t, s)
	b := setupBus(t, s)

	fromA := make(chan Event, 4)
	a.Subscribe(func(ev Event) { fromA <- ev })

	// A publishes first, then B. If A's own event were delivered back it
	// would arrive before B's.
	if err := a.Publish(context.Background(), EventRequestState, nil); err != nil {
		t.Fatalf("Publish from a failed: %v", err)
	}
	if err := b.Publish(context.Background(), EventSetRoomURL, "https://example.daily.co/room"); err != nil {
		t.Fatalf("Publish from b failed: %v", err)
	}

	select {
	case ev := <-fromA:
		if ev.Sender == a.Sender() {
			t.Fatalf("publisher received its own event %s", ev.Type)
		}
		if ev.Type != EventSetRoomURL {
			t.Errorf("expected SET_ROOM_URL from b, got %s", ev.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for b's event")
	}
}

func TestNoPayloadEvent(t *testing.T) {
	s := miniredis.RunT(t)
	a := setupBus(t, s)
	b := setupBus(t, s)

	received := make(chan Event, 1)
	b.Subscribe(func(ev Event) { received <- ev })

	if err := a.Publish(context.Background(), EventRequestState, nil); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case ev := <-received:
		if ev.Type != EventRequestState {
			t.Errorf("expected REQUEST_STATE, got %s", ev.Type)
		}
		if len(ev.Payload) != 0 {
			t.Errorf("expected empty payload, got %s", ev.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestMalformedEventDropped(t *testing.T) {
	s := miniredis.RunT(t)
	b := setupBus(t, s)

	received := make(chan Event, 2)
	b.Subscribe(func(ev Event) { received <- ev })

	// Raw client bypassing the envelope.
	opts, err := redis.ParseURL("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("ParseURL failed: %v", err)
	}
	raw := redis.NewClient(opts)
	defer raw.Close()

	ctx := context.Background()
	if err := raw.Publish(ctx, "conarrator:test", "{not json").Err(); err != nil {
		t.Fatalf("raw publish failed: %v", err)
	}
	// A well-formed event published afterwards must still come through.
	if err := raw.Publish(ctx, "conarrator:test", `{"type":"NEW_DOCUMENT","sender":"peer-x"}`).Err(); err != nil {
		t.Fatalf("raw publish failed: %v", err)
	}

	select {
	case ev := <-received:
		if ev.Type != EventNewDocument {
			t.Errorf("expected NEW_DOCUMENT after dropped garbage, got %s", ev.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event after malformed one")
	}
}
