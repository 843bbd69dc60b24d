// Package events publishes room membership changes to an external bus so
// other services can follow room activity. Publishing is fire-and-forget:
// nothing is read back and the signaling hub never waits on it.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Kind string

const (
	RoomCreated       Kind = "room_created"
	RoomDeleted       Kind = "room_deleted"
	ParticipantJoined Kind = "participant_joined"
	ParticipantLeft   Kind = "participant_left"
)

type Event struct {
	Kind         Kind      `json:"kind"`
	RoomID       string    `json:"roomId"`
	ConnectionID string    `json:"connectionId,omitempty"`
	Name         string    `json:"name,omitempty"`
	Participants int       `json:"participants"`
	At           time.Time `json:"at"`
}

// Publisher must not block the caller.
type Publisher interface {
	Publish(Event)
	Close() error
}

type Nop struct{}

func (Nop) Publish(Event) {}
func (Nop) Close() error  { return nil }

const (
	DefaultBuffer         = 1024
	DefaultPublishTimeout = 2 * time.Second
)

var ErrMissingChannel = errors.New("events: redis channel is required")

// redisClient is the slice of *redis.Client the publisher uses.
type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

type RedisOptions struct {
	URL     string
	Channel string
	// Buffer bounds events waiting to be sent; extras are dropped.
	Buffer int
	// PublishTimeout bounds each PUBLISH round trip.
	PublishTimeout time.Duration
	// OnDrop is called for every event discarded because the buffer is full.
	OnDrop func()
}

// RedisPublisher sends events as JSON on a Redis pub/sub channel from a
// background goroutine.
type RedisPublisher struct {
	client  redisClient
	channel string
	timeout time.Duration
	onDrop  func()
	log     *slog.Logger

	queue chan Event
	done  chan struct{}

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewRedisPublisher connects to opts.URL and verifies the connection with a
// PING before returning.
func NewRedisPublisher(ctx context.Context, opts RedisOptions, log *slog.Logger) (*RedisPublisher, error) {
	if opts.Channel == "" {
		return nil, ErrMissingChannel
	}
	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("events: parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("events: ping redis: %w", err)
	}
	return newRedisPublisher(client, opts, log), nil
}

func newRedisPublisher(client redisClient, opts RedisOptions, log *slog.Logger) *RedisPublisher {
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = DefaultPublishTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	p := &RedisPublisher{
		client:  client,
		channel: opts.Channel,
		timeout: opts.PublishTimeout,
		onDrop:  opts.OnDrop,
		log:     log,
		queue:   make(chan Event, opts.Buffer),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *RedisPublisher) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- ev:
	default:
		if p.onDrop != nil {
			p.onDrop()
		}
	}
}

// Close stops accepting events, flushes what is queued and closes the client.
func (p *RedisPublisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()

		<-p.done
		err = p.client.Close()
	})
	return err
}

func (p *RedisPublisher) run() {
	defer close(p.done)
	for ev := range p.queue {
		p.send(ev)
	}
}

func (p *RedisPublisher) send(ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("encode room event", "event", ev.Kind, "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		p.log.Warn("publish room event", "event", ev.Kind, "room_id", ev.RoomID, "err", err)
	}
}
