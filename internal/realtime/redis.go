package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"barbuddy/internal/shared/constants"
	"barbuddy/pkg/logger"
)

const subscriptionBuffer = 64

// RedisTransport subscribes to per-bar Redis Pub/Sub channels
type RedisTransport struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisTransport creates a transport on top of client
func NewRedisTransport(client *redis.Client, log *logger.Logger) *RedisTransport {
	return &RedisTransport{client: client, log: log}
}

// Subscribe subscribes to barID's channel and returns once Redis has
// confirmed the subscription, so no later publish is missed.
func (t *RedisTransport) Subscribe(ctx context.Context, barID string) (Subscription, error) {
	ps := t.client.Subscribe(ctx, constants.BuildHoldChannel(barID))

	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to bar %s: %w", barID, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	sub := &redisSubscription{
		ps:     ps,
		events: make(chan Event, subscriptionBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
		log:    t.log,
	}
	go sub.loop(loopCtx)

	return sub, nil
}

type redisSubscription struct {
	ps     *redis.PubSub
	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
	log    *logger.Logger

	mu   sync.Mutex
	err  error
	once sync.Once
}

func (s *redisSubscription) loop(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)

	for {
		msg, err := s.ps.Receive(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.setErr(err)
			}
			return
		}

		m, ok := msg.(*redis.Message)
		if !ok {
			continue
		}

		var ev Event
		if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
			s.log.LogRealtimeDropped(ctx, "unknown", "", "malformed payload")
			continue
		}

		select {
		case s.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (s *redisSubscription) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *redisSubscription) Events() <-chan Event {
	return s.events
}

func (s *redisSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.ps.Close()
		<-s.done
	})
	return err
}

// RedisPublisher publishes events on per-bar Redis Pub/Sub channels
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher creates a publisher on top of client
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish broadcasts ev to the subscribers of ev.BarID
func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := p.client.Publish(ctx, constants.BuildHoldChannel(ev.BarID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event for table %s: %w", ev.Type, ev.TableID, err)
	}
	return nil
}
