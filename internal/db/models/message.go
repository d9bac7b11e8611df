package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Message is a group message. IDs are ULIDs, so lexicographic order is
// creation order within a group.
type Message struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID        string    `bun:"id,pk" json:"id"`
	GroupID   string    `bun:"group_id,notnull,type:uuid" json:"groupId"`
	AgentID   string    `bun:"agent_id,notnull,type:uuid" json:"agentId"`
	Content   string    `bun:"content,notnull" json:"content"`
	ReplyToID *string   `bun:"reply_to_id" json:"replyToId,omitempty"` // same group only
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// Reaction is an emoji annotation on a group message, unique per
// (message, agent, emoji).
type Reaction struct {
	bun.BaseModel `bun:"table:reactions,alias:r"`

	MessageID string    `bun:"message_id,pk" json:"messageId"`
	AgentID   string    `bun:"agent_id,pk,type:uuid" json:"agentId"`
	Emoji     string    `bun:"emoji,pk" json:"emoji"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
}
