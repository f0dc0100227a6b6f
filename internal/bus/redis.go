package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisBus implements Bus over a Redis pub/sub channel. All tabs on the
// same device point at the same local Redis and channel name.
type RedisBus struct {
	client  *redis.Client
	pubsub  *redis.PubSub
	channel string
	sender  string

	mu       sync.Mutex
	handlers []Handler

	done chan struct{}
	wg   sync.WaitGroup
}

// NewRedisBus connects to Redis, joins the named channel and starts
// delivering inbound events. The subscription is confirmed before
// returning so an immediately published REQUEST_STATE cannot race past
// this tab's own subscriber.
func NewRedisBus(redisURL, channel string) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	b := &RedisBus{
		client:  client,
		channel: channel,
		sender:  uuid.NewString(),
		done:    make(chan struct{}),
	}

	b.pubsub = client.Subscribe(context.Background(), channel)
	if _, err := b.pubsub.Receive(ctx); err != nil {
		_ = b.pubsub.Close()
		_ = client.Close()
		return nil, fmt.Errorf("subscribe channel %s: %w", channel, err)
	}

	b.wg.Add(1)
	go b.readLoop()
	return b, nil
}

// Ping probes the Redis connection, for readiness checks.
func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Sender returns this tab's channel identity.
func (b *RedisBus) Sender() string {
	return b.sender
}

// Publish marshals the payload and sends it to every other subscriber.
func (b *RedisBus) Publish(ctx context.Context, typ EventType, payload any) error {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", typ, err)
		}
		raw = data
	}

	data, err := json.Marshal(Event{Type: typ, Sender: b.sender, Payload: raw})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", typ, err)
	}

	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", typ, err)
	}
	return nil
}

// Subscribe registers a handler. Handlers run on the bus delivery
// goroutine; they must not block for long.
func (b *RedisBus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

func (b *RedisBus) readLoop() {
	defer b.wg.Done()
	ch := b.pubsub.Channel()
	for {
		select {
		case <-b.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("bus: dropping malformed event: %v", err)
				continue
			}
			if ev.Sender == b.sender {
				continue
			}
			b.mu.Lock()
			handlers := append([]Handler(nil), b.handlers...)
			b.mu.Unlock()
			for _, h := range handlers {
				h(ev)
			}
		}
	}
}

// Close tears down the subscription and the client.
func (b *RedisBus) Close() error {
	close(b.done)
	err := b.pubsub.Close()
	b.wg.Wait()
	if cerr := b.client.Close(); err == nil {
		err = cerr
	}
	return err
}
