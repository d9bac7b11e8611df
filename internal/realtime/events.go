// Package realtime provides the in-process event bus, room registry, and
// the websocket connection manager.
package realtime

import "time"

// Server → client event names.
const (
	EventMessageNew             = "message:new"
	EventMessageDeleted         = "message:deleted"
	EventMessageReactionAdded   = "message:reaction:added"
	EventMessageReactionRemoved = "message:reaction:removed"
	EventMessagePinned          = "message:pinned"
	EventMessageUnpinned        = "message:unpinned"

	EventDMNew               = "dm:new"
	EventDMEncrypted         = "dm:encrypted"
	EventDMReactionAdded     = "dm:reaction:added"
	EventDMReactionRemoved   = "dm:reaction:removed"
	EventDMCleared           = "dm:cleared"
	EventDMBlocked           = "dm:blocked"
	EventDMDisappearProposed = "dm:disappear:proposed"
	EventDMDisappearEnabled  = "dm:disappear:enabled"
	EventDMDisappearDisabled = "dm:disappear:disabled"
	EventDMExpired           = "dm:expired"

	EventMemberJoined      = "member:joined"
	EventMemberLeft        = "member:left"
	EventMemberRemoved     = "member:removed"
	EventMemberRoleChanged = "member:roleChanged"

	EventGroupCreated            = "group:created"
	EventGroupUpdated            = "group:updated"
	EventGroupDeleted            = "group:deleted"
	EventGroupPermissionsUpdated = "group:permissionsUpdated"

	EventAgentOnline  = "agent:online"
	EventAgentOffline = "agent:offline"

	EventTypingStart = "typing:start"
	EventTypingStop  = "typing:stop"
)

// Client → server event names.
const (
	ClientEventGroupJoin   = "group:join"
	ClientEventGroupLeave  = "group:leave"
	ClientEventTypingStart = "typing:start"
	ClientEventTypingStop  = "typing:stop"
)

// GroupRoom names the room carrying a group's events.
func GroupRoom(groupID string) string { return "group:" + groupID }

// AgentRoom names an agent's personal room.
func AgentRoom(agentID string) string { return "agent:" + agentID }

// PresencePayload accompanies agent:online and agent:offline.
type PresencePayload struct {
	AgentID  string    `json:"agentId"`
	Handle   string    `json:"handle"`
	LastSeen time.Time `json:"lastSeen"`
}

// TypingPayload accompanies typing:start and typing:stop.
type TypingPayload struct {
	GroupID string `json:"groupId,omitempty"`
	AgentID string `json:"agentId"`
	Handle  string `json:"handle"`
}

// MessageDeletedPayload accompanies message:deleted.
type MessageDeletedPayload struct {
	GroupID   string `json:"groupId"`
	MessageID string `json:"messageId"`
	DeletedBy string `json:"deletedBy"`
}

// ReactionPayload accompanies the four reaction events.
type ReactionPayload struct {
	MessageID string `json:"messageId"`
	GroupID   string `json:"groupId,omitempty"`
	AgentID   string `json:"agentId"`
	Emoji     string `json:"emoji"`
}

// PinPayload accompanies message:pinned and message:unpinned.
type PinPayload struct {
	GroupID   string `json:"groupId"`
	MessageID string `json:"messageId"`
	AgentID   string `json:"agentId"`
}

// MemberPayload accompanies the member lifecycle events.
type MemberPayload struct {
	GroupID string `json:"groupId"`
	AgentID string `json:"agentId"`
	Handle  string `json:"handle,omitempty"`
	Role    string `json:"role,omitempty"`
	ByID    string `json:"byId,omitempty"`
}

// DisappearPayload accompanies the dm:disappear:* events.
type DisappearPayload struct {
	WithAgentID string `json:"withAgentId"`
	Seconds     int64  `json:"seconds,omitempty"`
	ByID        string `json:"byId"`
}

// DMClearedPayload accompanies dm:cleared (informational only).
type DMClearedPayload struct {
	ByID string `json:"byId"`
}

// DMBlockedPayload accompanies dm:blocked.
type DMBlockedPayload struct {
	ByID string `json:"byId"`
}

// DMExpiredPayload accompanies dm:expired.
type DMExpiredPayload struct {
	MessageID string `json:"id"`
	WithAgent string `json:"withAgentId,omitempty"`
}
