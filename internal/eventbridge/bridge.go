package eventbridge

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fiorix/go-eventsocket/eventsocket"
)

// reconnectInterval is the fixed retry period after a lost connection.
const reconnectInterval = 3 * time.Second

// subscriberBuffer bounds each subscriber channel. A subscriber that falls
// this far behind loses events; the periodic snapshot poll heals its view.
const subscriberBuffer = 256

// Config locates the switch's event socket.
type Config struct {
	Addr     string
	Password string
}

// Bridge holds the persistent event-socket connection and broadcasts
// normalized events to subscribers. Construct with New, run with Run.
type Bridge struct {
	cfg       Config
	connected atomic.Bool

	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// New creates a Bridge. No connection is made until Run.
func New(cfg Config) *Bridge {
	return &Bridge{
		cfg:  cfg,
		subs: make(map[chan Event]struct{}),
	}
}

// Subscribe registers a new event consumer. The caller must drain the
// channel and call Unsubscribe when done.
func (b *Bridge) Subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Connected reports whether the event stream is currently up.
func (b *Bridge) Connected() bool {
	return b.connected.Load()
}

// Unsubscribe removes a consumer and closes its channel.
func (b *Bridge) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// publish fans an event out without blocking the read loop. Slow
// subscribers drop events.
func (b *Bridge) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("event subscriber is not keeping up, dropping event", "family", ev.Family())
		}
	}
}

// Run connects to the switch and pumps events until ctx is cancelled.
// Connection loss triggers a fixed-interval reconnect, indefinitely.
func (b *Bridge) Run(ctx context.Context) {
	for {
		if err := b.runOnce(ctx); err != nil {
			slog.Warn("event socket connection lost", "addr", b.cfg.Addr, "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
		}
	}
}

func (b *Bridge) runOnce(ctx context.Context) error {
	conn, err := eventsocket.Dial(b.cfg.Addr, b.cfg.Password)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Send("event json " + subscriptionList()); err != nil {
		return err
	}
	slog.Info("event socket connected", "addr", b.cfg.Addr)
	b.connected.Store(true)
	defer b.connected.Store(false)

	// Close the connection when ctx ends so ReadEvent unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		ev, err := conn.ReadEvent()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if normalized := Classify(ev); normalized != nil {
			b.publish(normalized)
		}
	}
}

// subscriptionList is the full event-name set the bridge listens for.
// CUSTOM must come last: every name after it is read as a subclass.
func subscriptionList() string {
	names := make([]string, 0, len(channelEvents)+1+len(registrationSubclasses))
	names = append(names, channelEvents...)
	names = append(names, "CUSTOM")
	names = append(names, registrationSubclasses...)
	return strings.Join(names, " ")
}
