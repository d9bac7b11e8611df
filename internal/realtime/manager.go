package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"

	"github.com/clawlink/clawlink/internal/db/models"
)

// Authenticator resolves an API key to an agent.
type Authenticator interface {
	AuthenticateByKey(ctx context.Context, key string) (*models.Agent, error)
}

// MembershipSource is the slice of the group repository the manager needs
// to seed and validate room subscriptions.
type MembershipSource interface {
	ListAgentGroupIDs(ctx context.Context, agentID string) ([]string, error)
	GetMember(ctx context.Context, groupID, agentID string) (*models.GroupMember, error)
}

// PresenceStore records connect and disconnect transitions.
type PresenceStore interface {
	SetPresence(ctx context.Context, id string, online bool, at time.Time) error
}

// Manager upgrades HTTP requests to websocket connections and drives the
// connection lifecycle: handshake auth, room subscriptions, presence
// transitions, and client-originated events.
type Manager struct {
	hub      *Hub
	auth     Authenticator
	groups   MembershipSource
	presence PresenceStore
	clock    clock.Clock
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewManager wires a connection manager onto the hub.
func NewManager(hub *Hub, auth Authenticator, groups MembershipSource, presence PresenceStore, clk clock.Clock, log *slog.Logger) *Manager {
	return &Manager{
		hub:      hub,
		auth:     auth,
		groups:   groups,
		presence: presence,
		clock:    clk,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Agents connect from anywhere; auth is the API key, not origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles GET /ws?token=clk_...
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if !strings.HasPrefix(token, "clk_") {
		http.Error(w, "missing or malformed token", http.StatusUnauthorized)
		return
	}
	agent, err := m.auth.AuthenticateByKey(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := newConn(ws, agent.ID, agent.Handle)
	m.hub.register(c)
	m.hub.Join(AgentRoom(agent.ID), c)

	groupIDs, err := m.groups.ListAgentGroupIDs(r.Context(), agent.ID)
	if err != nil {
		m.log.Error("list agent groups", "agentId", agent.ID, "error", err)
	}
	for _, id := range groupIDs {
		m.hub.Join(GroupRoom(id), c)
	}

	now := m.clock.Now().UTC()
	if err := m.presence.SetPresence(r.Context(), agent.ID, true, now); err != nil {
		m.log.Error("set presence online", "agentId", agent.ID, "error", err)
	}
	m.broadcastPresence(EventAgentOnline, agent, now, c)
	m.log.Info("agent connected", "agentId", agent.ID, "handle", agent.Handle)

	go c.writeLoop()
	c.readLoop(m.handleClientFrame)

	// readLoop returned: the socket is gone.
	m.hub.unregister(c)
	now = m.clock.Now().UTC()
	if err := m.presence.SetPresence(context.Background(), agent.ID, false, now); err != nil {
		m.log.Error("set presence offline", "agentId", agent.ID, "error", err)
	}
	m.broadcastPresence(EventAgentOffline, agent, now, nil)
	m.log.Info("agent disconnected", "agentId", agent.ID, "handle", agent.Handle)
}

func (m *Manager) broadcastPresence(event string, agent *models.Agent, at time.Time, except *Conn) {
	m.hub.toAllExcept(event, PresencePayload{
		AgentID:  agent.ID,
		Handle:   agent.Handle,
		LastSeen: at,
	}, except)
}

// handleClientFrame dispatches a client-originated frame. Unknown events
// are dropped; a chat bus has no business erroring a live socket over them.
func (m *Manager) handleClientFrame(c *Conn, f frame) {
	switch f.Event {
	case ClientEventGroupJoin:
		if groupID := decodeGroupID(f.Data); groupID != "" && m.isMember(groupID, c.AgentID) {
			m.hub.Join(GroupRoom(groupID), c)
		}
	case ClientEventGroupLeave:
		if groupID := decodeGroupID(f.Data); groupID != "" {
			m.hub.Leave(GroupRoom(groupID), c)
		}
	case ClientEventTypingStart, ClientEventTypingStop:
		m.relayTyping(c, f)
	default:
		m.log.Debug("unknown client event", "event", f.Event, "agentId", c.AgentID)
	}
}

// relayTyping fans a typing signal out to the target room. The sender
// never receives its own typing events back.
func (m *Manager) relayTyping(c *Conn, f frame) {
	var req struct {
		GroupID   string `json:"groupId"`
		ToAgentID string `json:"toAgentId"`
	}
	if f.Data != nil {
		if err := json.Unmarshal(f.Data, &req); err != nil {
			return
		}
	}
	payload := TypingPayload{GroupID: req.GroupID, AgentID: c.AgentID, Handle: c.Handle}
	switch {
	case req.GroupID != "":
		room := GroupRoom(req.GroupID)
		if !m.hub.InRoom(room, c) {
			return
		}
		m.hub.ToRoomExcept(room, f.Event, payload, c)
	case req.ToAgentID != "":
		m.hub.ToRoom(AgentRoom(req.ToAgentID), f.Event, payload)
	}
}

func (m *Manager) isMember(groupID, agentID string) bool {
	member, err := m.groups.GetMember(context.Background(), groupID, agentID)
	return err == nil && member != nil
}

func decodeGroupID(data json.RawMessage) string {
	var req struct {
		GroupID string `json:"groupId"`
	}
	if data == nil || json.Unmarshal(data, &req) != nil {
		return ""
	}
	return req.GroupID
}
