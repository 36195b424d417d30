package realtime

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/routepbx/routepbx/internal/eventbridge"
)

// pollInterval is the fallback recompute period covering missed events.
const defaultPollInterval = 5 * time.Second

// clientBuffer bounds each client's outbound queue. Pushes are at-most-once
// and best-effort: a full queue drops the message.
const clientBuffer = 32

// Room groups clients by sofia profile and, optionally, domain.
type Room struct {
	Profile string
	Domain  string
}

// Key is the canonical room identifier.
func (r Room) Key() string {
	if r.Domain == "" {
		return r.Profile
	}
	return r.Profile + "::domain::" + r.Domain
}

// Message is one typed frame pushed to a client.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Client is one connected subscriber, fixed to its room at subscribe time.
type Client struct {
	room Room
	send chan Message
}

// NewClient creates a client pinned to room.
func NewClient(room Room) *Client {
	return &Client{room: room, send: make(chan Message, clientBuffer)}
}

// Messages is the client's outbound queue. It is closed on unsubscribe.
func (c *Client) Messages() <-chan Message { return c.send }

// Room returns the room the client was pinned to.
func (c *Client) Room() Room { return c.room }

// SnapshotFunc computes the current listing and its content hash for a
// room. The hash must cover only fields material to display identity so
// unrelated metadata churn does not trigger pushes.
type SnapshotFunc func(ctx context.Context, room Room) (payload any, hash string, err error)

// EventSource is the bridge surface the distributor consumes; satisfied by
// eventbridge.Bridge and substitutable in tests.
type EventSource interface {
	Subscribe() chan eventbridge.Event
	Unsubscribe(chan eventbridge.Event)
}

// Distributor owns the rooms of one channel family. All room and hash state
// is confined to the Run loop; Subscribe and Unsubscribe communicate with
// it over channels.
type Distributor struct {
	family   string
	source   EventSource
	snapshot SnapshotFunc
	poll     time.Duration

	subscribeCh   chan *Client
	unsubscribeCh chan *Client
	done          chan struct{}
	clientCount   atomic.Int64
}

// NewDistributor creates a Distributor for one family. A non-positive poll
// interval selects the default.
func NewDistributor(family string, source EventSource, snapshot SnapshotFunc, poll time.Duration) *Distributor {
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Distributor{
		family:        family,
		source:        source,
		snapshot:      snapshot,
		poll:          poll,
		subscribeCh:   make(chan *Client),
		unsubscribeCh: make(chan *Client),
		done:          make(chan struct{}),
	}
}

// Subscribe adds a client. The client receives an initial snapshot, then
// change-deduplicated snapshots and bridged events. It is a no-op once the
// distributor has stopped.
func (d *Distributor) Subscribe(c *Client) {
	select {
	case d.subscribeCh <- c:
	case <-d.done:
	}
}

// Unsubscribe removes a client and closes its message channel.
func (d *Distributor) Unsubscribe(c *Client) {
	select {
	case d.unsubscribeCh <- c:
	case <-d.done:
	}
}

// ClientCount reports the number of connected clients.
func (d *Distributor) ClientCount() int64 {
	return d.clientCount.Load()
}

// Run processes subscriptions, bridge events and the fallback poll until
// ctx is cancelled. It owns the room membership and last-hash maps.
func (d *Distributor) Run(ctx context.Context) {
	defer close(d.done)

	events := d.source.Subscribe()
	defer d.source.Unsubscribe(events)

	clients := make(map[*Client]struct{})
	lastHash := make(map[string]string)

	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			for c := range clients {
				close(c.send)
			}
			return

		case c := <-d.subscribeCh:
			clients[c] = struct{}{}
			d.clientCount.Store(int64(len(clients)))
			payload, hash, err := d.snapshot(ctx, c.room)
			if err != nil {
				slog.Warn("initial snapshot failed", "family", d.family, "room", c.room.Key(), "error", err)
				continue
			}
			key := c.room.Key()
			prev, seen := lastHash[key]
			lastHash[key] = hash
			msg := Message{Type: d.family + ":snapshot", Payload: payload}
			d.push(c, msg)
			// The join may have observed a change the room has not been
			// told about yet; existing members must see it too, or the
			// advanced hash would make the poll skip it forever.
			if seen && prev != hash {
				for other := range clients {
					if other != c && other.room.Key() == key {
						d.push(other, msg)
					}
				}
			}

		case c := <-d.unsubscribeCh:
			if _, ok := clients[c]; !ok {
				continue
			}
			delete(clients, c)
			d.clientCount.Store(int64(len(clients)))
			close(c.send)
			// Drop hash state for rooms nobody watches anymore.
			for key := range lastHash {
				if !roomActive(clients, key) {
					delete(lastHash, key)
				}
			}

		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Family() != d.family {
				continue
			}
			for c := range clients {
				if eventMatchesRoom(ev, c.room) {
					d.push(c, Message{Type: d.family + ":event", Payload: ev})
				}
			}
			d.refresh(ctx, clients, lastHash, func(room Room) bool {
				return eventMatchesRoom(ev, room)
			})

		case <-ticker.C:
			d.refresh(ctx, clients, lastHash, func(Room) bool { return true })
		}
	}
}

// refresh recomputes snapshots for every distinct room accepted by match
// and pushes to that room's clients only when the content hash changed.
func (d *Distributor) refresh(ctx context.Context, clients map[*Client]struct{}, lastHash map[string]string, match func(Room) bool) {
	byRoom := make(map[string][]*Client)
	rooms := make(map[string]Room)
	for c := range clients {
		if !match(c.room) {
			continue
		}
		key := c.room.Key()
		byRoom[key] = append(byRoom[key], c)
		rooms[key] = c.room
	}

	for key, members := range byRoom {
		payload, hash, err := d.snapshot(ctx, rooms[key])
		if err != nil {
			slog.Warn("snapshot failed", "family", d.family, "room", key, "error", err)
			continue
		}
		if lastHash[key] == hash {
			continue
		}
		lastHash[key] = hash
		msg := Message{Type: d.family + ":snapshot", Payload: payload}
		for _, c := range members {
			d.push(c, msg)
		}
	}
}

// push delivers best-effort: a client that cannot keep up loses the message
// and recovers via the next poll-driven snapshot.
func (d *Distributor) push(c *Client, msg Message) {
	select {
	case c.send <- msg:
	default:
		slog.Warn("dropping push to slow client", "family", d.family, "room", c.room.Key(), "type", msg.Type)
	}
}

func roomActive(clients map[*Client]struct{}, key string) bool {
	for c := range clients {
		if c.room.Key() == key {
			return true
		}
	}
	return false
}

// eventMatchesRoom restricts pushes to rooms the event concerns. A
// domain-scoped room only sees events naming its own domain; an event
// whose domain is unknown is withheld from scoped rooms and reaches them
// through the next snapshot instead.
func eventMatchesRoom(ev eventbridge.Event, room Room) bool {
	switch e := ev.(type) {
	case eventbridge.RegistrationEvent:
		if room.Profile != "" && e.Profile != room.Profile {
			return false
		}
		if room.Domain != "" && e.Domain != "" && e.Domain != room.Domain {
			return false
		}
		return true
	case eventbridge.CallEvent:
		return room.Domain == "" || e.Domain == room.Domain
	default:
		return true
	}
}

// HashRegistrations hashes the display-material fields of a registration
// listing: address, contact and state. Entries are ordered first so listing
// order never affects the hash.
func HashRegistrations(regs []eventbridge.Registration) string {
	sorted := make([]eventbridge.Registration, len(regs))
	copy(sorted, regs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].User != sorted[j].User {
			return sorted[i].User < sorted[j].User
		}
		return sorted[i].Address() < sorted[j].Address()
	})

	h := sha256.New()
	for _, r := range sorted {
		fmt.Fprintf(h, "%s|%s|%s\n", r.Address(), r.Contact, r.Status)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HashChannels hashes the display-material fields of a channel listing.
func HashChannels(channels []eventbridge.Channel) string {
	sorted := make([]eventbridge.Channel, len(channels))
	copy(sorted, channels)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UUID < sorted[j].UUID })

	h := sha256.New()
	for _, c := range sorted {
		fmt.Fprintf(h, "%s|%s|%s\n", c.UUID, c.Destination, c.State)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RegistrationSnapshots builds the SnapshotFunc of the registrations family
// over a Snapshotter.
func RegistrationSnapshots(snap *eventbridge.Snapshotter) SnapshotFunc {
	return func(ctx context.Context, room Room) (any, string, error) {
		regs, err := snap.Registrations(ctx, room.Profile, room.Domain)
		if err != nil {
			return nil, "", err
		}
		return regs, HashRegistrations(regs), nil
	}
}

// ChannelSnapshots builds the SnapshotFunc of the calls family over a
// Snapshotter.
func ChannelSnapshots(snap *eventbridge.Snapshotter) SnapshotFunc {
	return func(ctx context.Context, room Room) (any, string, error) {
		channels, err := snap.Channels(ctx, room.Domain)
		if err != nil {
			return nil, "", err
		}
		return channels, HashChannels(channels), nil
	}
}
