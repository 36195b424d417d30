package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/routepbx/routepbx/internal/eventbridge"
)

// TokenCookie is the cookie consulted when no other credential is supplied.
const TokenCookie = "routepbx_token"

// subscribeTimeout bounds how long a client may take to send its subscribe
// frame after the handshake.
const subscribeTimeout = 10 * time.Second

// subscribeRequest is the first frame a client sends: its room choice plus,
// optionally, the access token when not carried in the handshake.
type subscribeRequest struct {
	Token   string `json:"token,omitempty"`
	Profile string `json:"profile,omitempty"`
	Domain  string `json:"domain,omitempty"`
}

// Handler upgrades WebSocket clients and binds them to a family
// distributor.
type Handler struct {
	auth           *Authenticator
	registrations  *Distributor
	calls          *Distributor
	originPatterns []string
}

// NewHandler creates a Handler. Empty originPatterns restrict clients to
// same-origin requests.
func NewHandler(auth *Authenticator, registrations, calls *Distributor, originPatterns []string) *Handler {
	return &Handler{
		auth:           auth,
		registrations:  registrations,
		calls:          calls,
		originPatterns: originPatterns,
	}
}

// Registrations serves the registrations family endpoint.
func (h *Handler) Registrations(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, eventbridge.FamilyRegistrations, h.registrations)
}

// Calls serves the calls family endpoint.
func (h *Handler) Calls(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, eventbridge.FamilyCalls, h.calls)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, family string, d *Distributor) {
	opts := &websocket.AcceptOptions{OriginPatterns: h.originPatterns}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		slog.Debug("websocket accept failed", "family", family, "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	ctx := r.Context()

	subCtx, cancel := context.WithTimeout(ctx, subscribeTimeout)
	var sub subscribeRequest
	err = wsjson.Read(subCtx, conn, &sub)
	cancel()
	if err != nil {
		conn.Close(websocket.StatusPolicyViolation, "expected subscribe")
		return
	}

	// Credential preference order: subscribe payload, bearer header, cookie.
	token := sub.Token
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		if c, err := r.Cookie(TokenCookie); err == nil {
			token = c.Value
		}
	}

	scope, err := h.auth.Verify(token)
	if err != nil {
		h.reject(ctx, conn, family, "authentication failed")
		return
	}
	domain, err := scope.RoomDomain(sub.Domain)
	if err != nil {
		h.reject(ctx, conn, family, err.Error())
		return
	}

	client := NewClient(Room{Profile: sub.Profile, Domain: domain})
	d.Subscribe(client)
	defer d.Unsubscribe(client)

	// Discard further client frames but notice disconnects.
	readCtx := conn.CloseRead(ctx)

	for {
		select {
		case <-readCtx.Done():
			conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case msg, ok := <-client.Messages():
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "shutting down")
				return
			}
			if err := wsjson.Write(readCtx, conn, msg); err != nil {
				slog.Debug("websocket write failed", "family", family, "room", client.Room().Key(), "error", err)
				return
			}
		}
	}
}

// reject emits a typed error frame, then disconnects. The client must
// re-authenticate and resubscribe.
func (h *Handler) reject(ctx context.Context, conn *websocket.Conn, family, reason string) {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = wsjson.Write(writeCtx, conn, Message{
		Type:    family + ":error",
		Payload: map[string]string{"error": reason},
	})
	conn.Close(websocket.StatusPolicyViolation, reason)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
