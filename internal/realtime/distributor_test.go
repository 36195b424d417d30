package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/routepbx/routepbx/internal/eventbridge"
)

// fakeSource is a hand-driven EventSource.
type fakeSource struct {
	ch chan eventbridge.Event
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan eventbridge.Event, 16)}
}

func (s *fakeSource) Subscribe() chan eventbridge.Event  { return s.ch }
func (s *fakeSource) Unsubscribe(chan eventbridge.Event) {}
func (s *fakeSource) emit(ev eventbridge.Event)          { s.ch <- ev }

func recvMessage(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg, ok := <-c.Messages():
		if !ok {
			t.Fatal("message channel closed")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func expectNoMessage(t *testing.T, c *Client, wait time.Duration) {
	t.Helper()
	select {
	case msg := <-c.Messages():
		t.Fatalf("unexpected message: %+v", msg)
	case <-time.After(wait):
	}
}

func TestDistributorDedupsUnchangedSnapshots(t *testing.T) {
	source := newFakeSource()

	// The snapshot content never changes, so only the initial subscribe may
	// produce a snapshot push.
	snapshot := func(ctx context.Context, room Room) (any, string, error) {
		return []string{"static"}, "hash-1", nil
	}

	d := NewDistributor(eventbridge.FamilyRegistrations, source, snapshot, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	client := NewClient(Room{Profile: "internal"})
	d.Subscribe(client)

	first := recvMessage(t, client)
	if first.Type != "registrations:snapshot" {
		t.Fatalf("first message = %q, want registrations:snapshot", first.Type)
	}

	// Let several poll ticks and one event-driven recompute pass.
	source.emit(eventbridge.RegistrationEvent{Action: "register", Profile: "internal", User: "1001"})
	ev := recvMessage(t, client)
	if ev.Type != "registrations:event" {
		t.Fatalf("second message = %q, want registrations:event", ev.Type)
	}
	expectNoMessage(t, client, 200*time.Millisecond)
}

func TestDistributorPushesOnChange(t *testing.T) {
	source := newFakeSource()

	hashes := make(chan string, 4)
	hashes <- "hash-1"
	hashes <- "hash-2"
	snapshot := func(ctx context.Context, room Room) (any, string, error) {
		select {
		case h := <-hashes:
			return nil, h, nil
		default:
			return nil, "hash-2", nil
		}
	}

	d := NewDistributor(eventbridge.FamilyRegistrations, source, snapshot, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	client := NewClient(Room{Profile: "internal"})
	d.Subscribe(client)
	recvMessage(t, client) // initial snapshot, hash-1

	source.emit(eventbridge.RegistrationEvent{Action: "expire", Profile: "internal"})
	if msg := recvMessage(t, client); msg.Type != "registrations:event" {
		t.Fatalf("got %q, want registrations:event", msg.Type)
	}
	if msg := recvMessage(t, client); msg.Type != "registrations:snapshot" {
		t.Fatalf("got %q, want registrations:snapshot", msg.Type)
	}

	// Same hash again: the event is forwarded but no snapshot follows.
	source.emit(eventbridge.RegistrationEvent{Action: "expire", Profile: "internal"})
	if msg := recvMessage(t, client); msg.Type != "registrations:event" {
		t.Fatalf("got %q, want registrations:event", msg.Type)
	}
	expectNoMessage(t, client, 100*time.Millisecond)
}

func TestDistributorJoinDoesNotSwallowRoomChange(t *testing.T) {
	source := newFakeSource()

	// First snapshot (client A's join) sees hash-1; every later computation
	// sees hash-2, as if the room changed between the two joins.
	hashes := make(chan string, 1)
	hashes <- "hash-1"
	snapshot := func(ctx context.Context, room Room) (any, string, error) {
		select {
		case h := <-hashes:
			return nil, h, nil
		default:
			return nil, "hash-2", nil
		}
	}

	d := NewDistributor(eventbridge.FamilyRegistrations, source, snapshot, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	a := NewClient(Room{Profile: "internal"})
	d.Subscribe(a)
	recvMessage(t, a) // initial snapshot, hash-1

	b := NewClient(Room{Profile: "internal"})
	d.Subscribe(b)
	recvMessage(t, b) // initial snapshot, hash-2

	// B's join advanced the room hash; A must still be told about hash-2
	// rather than the poll forever considering the room up to date.
	if msg := recvMessage(t, a); msg.Type != "registrations:snapshot" {
		t.Fatalf("got %q, want registrations:snapshot", msg.Type)
	}
}

func TestDistributorIgnoresOtherFamilies(t *testing.T) {
	source := newFakeSource()
	snapshot := func(ctx context.Context, room Room) (any, string, error) {
		return nil, "hash-1", nil
	}

	d := NewDistributor(eventbridge.FamilyRegistrations, source, snapshot, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	client := NewClient(Room{Profile: "internal"})
	d.Subscribe(client)
	recvMessage(t, client)

	source.emit(eventbridge.CallEvent{Name: "CHANNEL_CREATE", UUID: "abc"})
	expectNoMessage(t, client, 100*time.Millisecond)
}

func TestDistributorProfileScoping(t *testing.T) {
	source := newFakeSource()
	snapshot := func(ctx context.Context, room Room) (any, string, error) {
		return nil, "hash-" + room.Key(), nil
	}

	d := NewDistributor(eventbridge.FamilyRegistrations, source, snapshot, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	internal := NewClient(Room{Profile: "internal"})
	external := NewClient(Room{Profile: "external"})
	d.Subscribe(internal)
	d.Subscribe(external)
	recvMessage(t, internal)
	recvMessage(t, external)

	source.emit(eventbridge.RegistrationEvent{Action: "register", Profile: "internal"})
	if msg := recvMessage(t, internal); msg.Type != "registrations:event" {
		t.Fatalf("got %q, want registrations:event", msg.Type)
	}
	expectNoMessage(t, external, 100*time.Millisecond)
}

func TestDistributorDomainScopedCallEvents(t *testing.T) {
	source := newFakeSource()
	snapshot := func(ctx context.Context, room Room) (any, string, error) {
		return nil, "hash-" + room.Key(), nil
	}

	d := NewDistributor(eventbridge.FamilyCalls, source, snapshot, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	scoped := NewClient(Room{Profile: "internal", Domain: "t1.example.com"})
	wide := NewClient(Room{Profile: "internal"})
	d.Subscribe(scoped)
	d.Subscribe(wide)
	recvMessage(t, scoped)
	recvMessage(t, wide)

	// Another tenant's call must not reach the domain-scoped client.
	source.emit(eventbridge.CallEvent{Name: "CHANNEL_CREATE", UUID: "other", Domain: "t2.example.com", CallerNumber: "2001"})
	if msg := recvMessage(t, wide); msg.Type != "calls:event" {
		t.Fatalf("got %q, want calls:event", msg.Type)
	}
	expectNoMessage(t, scoped, 100*time.Millisecond)

	// A call without a resolvable domain is withheld from scoped rooms too.
	source.emit(eventbridge.CallEvent{Name: "CHANNEL_CREATE", UUID: "anon"})
	if msg := recvMessage(t, wide); msg.Type != "calls:event" {
		t.Fatalf("got %q, want calls:event", msg.Type)
	}
	expectNoMessage(t, scoped, 100*time.Millisecond)

	// The client's own domain gets through.
	source.emit(eventbridge.CallEvent{Name: "CHANNEL_ANSWER", UUID: "own", Domain: "t1.example.com"})
	if msg := recvMessage(t, scoped); msg.Type != "calls:event" {
		t.Fatalf("got %q, want calls:event", msg.Type)
	}
}

func TestHashRegistrationsIgnoresOrderAndMetadata(t *testing.T) {
	a := eventbridge.Registration{User: "1001", Domain: "t1", Contact: "sip:1001@a", Status: "Registered(UDP)", NetworkIP: "192.0.2.1", NetworkPort: "5060"}
	b := eventbridge.Registration{User: "1002", Domain: "t1", Contact: "sip:1002@b", Status: "Registered(UDP)", NetworkIP: "192.0.2.2", NetworkPort: "5060"}

	h1 := HashRegistrations([]eventbridge.Registration{a, b})
	h2 := HashRegistrations([]eventbridge.Registration{b, a})
	if h1 != h2 {
		t.Error("listing order must not affect the hash")
	}

	// Agent churn is immaterial to display identity.
	b.Agent = "OtherPhone/2.0"
	if h3 := HashRegistrations([]eventbridge.Registration{a, b}); h3 != h1 {
		t.Error("agent change must not affect the hash")
	}

	b.Contact = "sip:1002@elsewhere"
	if h4 := HashRegistrations([]eventbridge.Registration{a, b}); h4 == h1 {
		t.Error("contact change must affect the hash")
	}
}

func TestRoomKey(t *testing.T) {
	tests := []struct {
		room Room
		want string
	}{
		{Room{Profile: "internal"}, "internal"},
		{Room{Profile: "internal", Domain: "t1.example.com"}, "internal::domain::t1.example.com"},
	}
	for _, tt := range tests {
		if got := tt.room.Key(); got != tt.want {
			t.Errorf("Key(%+v) = %q, want %q", tt.room, got, tt.want)
		}
	}
}
