package eventbridge

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/fiorix/go-eventsocket/eventsocket"
)

// Registration is one entry of a profile's registration listing.
type Registration struct {
	User        string `json:"user"`
	Domain      string `json:"domain"`
	Contact     string `json:"contact"`
	Agent       string `json:"agent"`
	Status      string `json:"status"`
	NetworkIP   string `json:"networkIp"`
	NetworkPort string `json:"networkPort"`
}

// Address is the network endpoint the entry registered from.
func (r Registration) Address() string {
	if r.NetworkPort == "" {
		return r.NetworkIP
	}
	return r.NetworkIP + ":" + r.NetworkPort
}

// Channel is one entry of the live channel listing.
type Channel struct {
	UUID         string `json:"uuid"`
	Direction    string `json:"direction"`
	Created      string `json:"created"`
	CallerNumber string `json:"callerNumber"`
	Destination  string `json:"destination"`
	State        string `json:"state"`
	Application  string `json:"application"`
}

// Snapshotter answers point-in-time state queries over a dedicated
// event-socket api connection, separate from the event stream so api
// replies never interleave with event frames.
type Snapshotter struct {
	cfg Config

	mu   sync.Mutex
	conn *eventsocket.Connection
}

// NewSnapshotter creates a Snapshotter. Connections are made lazily.
func NewSnapshotter(cfg Config) *Snapshotter {
	return &Snapshotter{cfg: cfg}
}

// Close releases the api connection if one is open.
func (s *Snapshotter) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// api runs one api command, reconnecting once on a stale connection.
func (s *Snapshotter) api(command string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < 2; attempt++ {
		if s.conn == nil {
			conn, err := eventsocket.Dial(s.cfg.Addr, s.cfg.Password)
			if err != nil {
				return "", fmt.Errorf("dialing event socket: %w", err)
			}
			s.conn = conn
		}

		ev, err := s.conn.Send("api " + command)
		if err != nil {
			s.conn.Close()
			s.conn = nil
			continue
		}
		return ev.Body, nil
	}
	return "", fmt.Errorf("api command %q failed after reconnect", command)
}

// Registrations lists the current registrations of a sofia profile,
// optionally restricted to one domain. Malformed switch output is logged
// and treated as an empty listing.
func (s *Snapshotter) Registrations(ctx context.Context, profile, domain string) ([]Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := s.api(fmt.Sprintf("sofia xmlstatus profile %s reg", profile))
	if err != nil {
		return nil, err
	}

	regs := parseRegistrationsXML(body)
	if domain == "" {
		return regs, nil
	}
	filtered := regs[:0]
	for _, r := range regs {
		if r.Domain == domain {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// Channels lists the live channels, optionally restricted to numbers
// containing the domain marker. Malformed output is logged and treated as
// an empty listing.
func (s *Snapshotter) Channels(ctx context.Context, domain string) ([]Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := s.api("show channels as json")
	if err != nil {
		return nil, err
	}

	channels := parseChannelsJSON(body)
	if domain == "" {
		return channels, nil
	}
	filtered := channels[:0]
	for _, c := range channels {
		if strings.Contains(c.CallerNumber, domain) || strings.Contains(c.Destination, domain) {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

// registrationsXML mirrors the sofia xmlstatus reg output.
type registrationsXML struct {
	XMLName       xml.Name `xml:"profile"`
	Registrations []struct {
		User        string `xml:"user"`
		Contact     string `xml:"contact"`
		Agent       string `xml:"agent"`
		Status      string `xml:"status"`
		NetworkIP   string `xml:"network-ip"`
		NetworkPort string `xml:"network-port"`
	} `xml:"registrations>registration"`
}

func parseRegistrationsXML(body string) []Registration {
	var doc registrationsXML
	if err := xml.Unmarshal([]byte(body), &doc); err != nil {
		slog.Warn("unparseable registrations listing from switch", "error", err)
		return nil
	}

	regs := make([]Registration, 0, len(doc.Registrations))
	for _, e := range doc.Registrations {
		user, domain := splitUser(e.User)
		regs = append(regs, Registration{
			User:        user,
			Domain:      domain,
			Contact:     strings.TrimSpace(e.Contact),
			Agent:       e.Agent,
			Status:      e.Status,
			NetworkIP:   e.NetworkIP,
			NetworkPort: e.NetworkPort,
		})
	}
	return regs
}

// channelsJSON mirrors the "show channels as json" output.
type channelsJSON struct {
	RowCount int `json:"row_count"`
	Rows     []struct {
		UUID        string `json:"uuid"`
		Direction   string `json:"direction"`
		Created     string `json:"created"`
		CIDNum      string `json:"cid_num"`
		Dest        string `json:"dest"`
		Callstate   string `json:"callstate"`
		Application string `json:"application"`
	} `json:"rows"`
}

func parseChannelsJSON(body string) []Channel {
	var doc channelsJSON
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		slog.Warn("unparseable channel listing from switch", "error", err)
		return nil
	}

	channels := make([]Channel, 0, len(doc.Rows))
	for _, row := range doc.Rows {
		channels = append(channels, Channel{
			UUID:         row.UUID,
			Direction:    row.Direction,
			Created:      row.Created,
			CallerNumber: row.CIDNum,
			Destination:  row.Dest,
			State:        row.Callstate,
			Application:  row.Application,
		})
	}
	return channels
}

// splitUser breaks a "user@domain" listing entry apart.
func splitUser(s string) (user, domain string) {
	s = strings.TrimSpace(s)
	if at := strings.Index(s, "@"); at >= 0 {
		return s[:at], s[at+1:]
	}
	return s, ""
}
