package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"barbuddy/pkg/logger"
)

// Handler receives events from other sessions, in arrival order
type Handler func(ev Event)

// ResyncFunc refreshes the held-tables snapshot after (re)connecting
type ResyncFunc func(ctx context.Context) error

const (
	defaultMinBackoff = time.Second
	defaultMaxBackoff = 30 * time.Second
)

// ErrAlreadyConnected is returned by Connect on a connected channel
var ErrAlreadyConnected = errors.New("realtime channel already connected")

// Channel is the per-bar realtime subscription of one session. It drops
// events originated by the session itself, delivers the rest to the
// handler on a single goroutine and, when the subscription drops,
// reconnects with exponential backoff and resyncs before dispatching again.
type Channel struct {
	transport Transport
	barID     string
	selfID    string
	handler   Handler
	resync    ResyncFunc
	log       *logger.Logger

	minBackoff time.Duration
	maxBackoff time.Duration

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool
}

// ChannelOption configures a Channel
type ChannelOption func(*Channel)

// WithBackoff sets the reconnect backoff bounds
func WithBackoff(minBackoff, maxBackoff time.Duration) ChannelOption {
	return func(c *Channel) {
		c.minBackoff = minBackoff
		c.maxBackoff = maxBackoff
	}
}

// WithChannelLogger sets the logger
func WithChannelLogger(log *logger.Logger) ChannelOption {
	return func(c *Channel) {
		c.log = log
	}
}

// NewChannel creates a disconnected channel for barID. selfID is the holder
// id of this session; resync may be nil.
func NewChannel(transport Transport, barID, selfID string, handler Handler, resync ResyncFunc, opts ...ChannelOption) *Channel {
	c := &Channel{
		transport:  transport,
		barID:      barID,
		selfID:     selfID,
		handler:    handler,
		resync:     resync,
		log:        logger.GetDefault(),
		minBackoff: defaultMinBackoff,
		maxBackoff: defaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect subscribes to the bar, runs the resync hook and starts dispatching.
// If the first subscription attempt fails the error is returned and the
// channel keeps retrying in the background until Disconnect.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	// Disconnect must be able to abort a subscribe that hangs
	subCtx, stop := context.WithCancel(runCtx)
	stopAfter := context.AfterFunc(ctx, stop)
	sub, err := c.transport.Subscribe(subCtx, c.barID)
	stopAfter()
	stop()
	if err != nil {
		c.log.WithError(err).Warn("realtime subscribe failed, retrying in background", "bar_id", c.barID)
		go c.run(runCtx, nil, done)
		return err
	}

	c.setConnected(true)
	c.runResync(ctx)
	go c.run(runCtx, sub, done)
	return nil
}

// Disconnect tears the subscription down and waits for dispatching to stop.
// Events missed while disconnected are recovered by the resync on the next Connect.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.setConnected(false)
}

// Connected reports whether a live subscription is being dispatched
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Channel) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *Channel) run(ctx context.Context, sub Subscription, done chan struct{}) {
	defer close(done)

	backoff := c.minBackoff
	for {
		if sub != nil {
			c.setConnected(true)
			c.dispatch(ctx, sub)
			_ = sub.Close()
			c.setConnected(false)

			if ctx.Err() != nil {
				return
			}
			attrs := []any{"bar_id", c.barID}
			if err := sub.Err(); err != nil {
				attrs = append(attrs, "error", err.Error())
			}
			c.log.Warn("realtime subscription dropped, reconnecting", attrs...)
			sub = nil
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		next, err := c.transport.Subscribe(ctx, c.barID)
		if err != nil {
			backoff *= 2
			if backoff > c.maxBackoff {
				backoff = c.maxBackoff
			}
			c.log.WithError(err).Warn("realtime reconnect failed", "bar_id", c.barID, "retry_in", backoff)
			continue
		}

		backoff = c.minBackoff
		sub = next
		c.setConnected(true)
		c.runResync(ctx)
	}
}

func (c *Channel) dispatch(ctx context.Context, sub Subscription) {
	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.BarID != c.barID {
				c.log.LogRealtimeDropped(ctx, string(ev.Type), ev.TableID, "other bar")
				continue
			}
			if ev.HolderID == c.selfID {
				c.log.LogRealtimeDropped(ctx, string(ev.Type), ev.TableID, "self originated")
				continue
			}
			c.handler(ev)
		}
	}
}

func (c *Channel) runResync(ctx context.Context) {
	if c.resync == nil {
		return
	}
	if err := c.resync(ctx); err != nil {
		c.log.WithError(err).Warn("resync after connect failed", "bar_id", c.barID)
	}
}
