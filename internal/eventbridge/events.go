// Package eventbridge maintains the event-socket link to the switch and
// fans normalized events out to subscribers.
package eventbridge

import (
	"strconv"
	"strings"
	"time"
)

// Event families.
const (
	FamilyRegistrations = "registrations"
	FamilyCalls         = "calls"
)

// Event is a normalized switch event. The concrete type is either
// RegistrationEvent or CallEvent.
type Event interface {
	Family() string
}

// RegistrationEvent is a normalized sofia registration state change.
type RegistrationEvent struct {
	Action  string // register | unregister | expire | reregister
	Profile string
	User    string
	Domain  string
	Contact string
}

// Family identifies the registrations channel family.
func (RegistrationEvent) Family() string { return FamilyRegistrations }

// CallEvent is a normalized channel lifecycle event.
type CallEvent struct {
	Name         string // the CHANNEL_* event name
	UUID         string
	Direction    string
	Domain       string
	CallerNumber string
	CalleeNumber string
	ChannelState string
	AnswerState  string
	HangupCause  string
	OtherLegUUID string
	Timestamp    time.Time
}

// Family identifies the calls channel family.
func (CallEvent) Family() string { return FamilyCalls }

// Headers is a flat view of one event frame. The event-socket client's
// Event type satisfies it.
type Headers interface {
	Get(name string) string
}

// registrationActions maps CUSTOM sofia subclasses to registration actions.
var registrationActions = map[string]string{
	"sofia::register":   "register",
	"sofia::unregister": "unregister",
	"sofia::expire":     "expire",
	"sofia::reregister": "reregister",
}

// registrationSubclasses lists the subscribed CUSTOM subclasses in a stable
// order for the subscription command.
var registrationSubclasses = []string{
	"sofia::register",
	"sofia::unregister",
	"sofia::expire",
	"sofia::reregister",
}

// channelEvents is the channel lifecycle set the bridge subscribes to.
var channelEvents = []string{
	"CHANNEL_CREATE",
	"CHANNEL_ANSWER",
	"CHANNEL_BRIDGE",
	"CHANNEL_UNBRIDGE",
	"CHANNEL_HOLD",
	"CHANNEL_UNHOLD",
	"CHANNEL_HANGUP_COMPLETE",
}

// Classify maps a raw frame onto a normalized event, or nil when the frame
// is not one the bridge distributes.
func Classify(h Headers) Event {
	name := h.Get("Event-Name")

	if name == "CUSTOM" {
		action, ok := registrationActions[h.Get("Event-Subclass")]
		if !ok {
			return nil
		}
		user := firstHeader(h, "from-user", "username")
		domain := firstHeader(h, "from-host", "domain_name", "realm")
		return RegistrationEvent{
			Action:  action,
			Profile: NormalizeProfile(h.Get("profile-name")),
			User:    user,
			Domain:  domain,
			Contact: h.Get("contact"),
		}
	}

	if strings.HasPrefix(name, "CHANNEL_") {
		return CallEvent{
			Name:         name,
			UUID:         h.Get("Unique-ID"),
			Direction:    h.Get("Call-Direction"),
			Domain:       firstHeader(h, "variable_domain_name", "variable_sip_auth_realm", "Caller-Domain"),
			CallerNumber: h.Get("Caller-Caller-ID-Number"),
			CalleeNumber: h.Get("Caller-Destination-Number"),
			ChannelState: h.Get("Channel-State"),
			AnswerState:  h.Get("Answer-State"),
			HangupCause:  h.Get("Hangup-Cause"),
			OtherLegUUID: h.Get("Other-Leg-Unique-ID"),
			Timestamp:    ParseTimestamp(h.Get("Event-Date-Timestamp")),
		}
	}

	return nil
}

// NormalizeProfile reduces the many spellings of a sofia profile name to a
// canonical form: anything naming the internal profile collapses to
// "internal", @-qualified names keep their pre-@ segment.
func NormalizeProfile(raw string) string {
	p := strings.TrimSpace(raw)
	if strings.Contains(p, "internal") || strings.Contains(p, ".local") {
		return "internal"
	}
	if at := strings.Index(p, "@"); at > 0 {
		return p[:at]
	}
	return p
}

// ParseTimestamp interprets a switch timestamp by magnitude: the switch
// emits seconds, milliseconds or microseconds depending on the source.
func ParseTimestamp(raw string) time.Time {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || v <= 0 {
		return time.Time{}
	}
	switch {
	case v > 1e14: // microseconds
		return time.UnixMicro(v)
	case v > 1e11: // milliseconds
		return time.UnixMilli(v)
	default:
		return time.Unix(v, 0)
	}
}

func firstHeader(h Headers, names ...string) string {
	for _, n := range names {
		if v := h.Get(n); v != "" {
			return v
		}
	}
	return ""
}
