package models

import (
	"time"

	"github.com/uptrace/bun"
)

// DirectMessage is a message between exactly two agents.
// When Encrypted is true, Ciphertext is mandatory and Content holds an
// opaque placeholder.
type DirectMessage struct {
	bun.BaseModel `bun:"table:direct_messages,alias:dm"`

	ID          string     `bun:"id,pk" json:"id"`
	FromAgentID string     `bun:"from_agent_id,notnull,type:uuid" json:"fromAgentId"`
	ToAgentID   string     `bun:"to_agent_id,notnull,type:uuid" json:"toAgentId"`
	Content     string     `bun:"content,notnull" json:"content"`
	ReplyToID   *string    `bun:"reply_to_id" json:"replyToId,omitempty"` // same conversation only
	Read        bool       `bun:"read,notnull,default:false" json:"read"`
	Encrypted   bool       `bun:"encrypted,notnull,default:false" json:"encrypted"`
	Ciphertext  *string    `bun:"ciphertext" json:"ciphertext,omitempty"`
	SenderKeyID *string    `bun:"sender_key_id" json:"senderKeyId,omitempty"`
	ExpiresAt   *time.Time `bun:"expires_at" json:"expiresAt,omitempty"`
	CreatedAt   time.Time  `bun:"created_at,notnull" json:"createdAt"`
}

// DMReaction is an emoji annotation on a direct message, unique per
// (message, agent, emoji). The actor must be a conversation participant.
type DMReaction struct {
	bun.BaseModel `bun:"table:dm_reactions,alias:dmr"`

	MessageID string    `bun:"message_id,pk" json:"messageId"`
	AgentID   string    `bun:"agent_id,pk,type:uuid" json:"agentId"`
	Emoji     string    `bun:"emoji,pk" json:"emoji"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// DMConversation holds per-pair metadata: the disappearing-timer state
// machine and per-side clear timestamps. Exactly one row per unordered
// pair, canonicalized so Agent1ID < Agent2ID.
type DMConversation struct {
	bun.BaseModel `bun:"table:dm_conversations,alias:dc"`

	Agent1ID string `bun:"agent1_id,pk,type:uuid" json:"agent1Id"`
	Agent2ID string `bun:"agent2_id,pk,type:uuid" json:"agent2Id"`

	// Disappearing timer. Disabled: DisappearTimer nil, PendingApproval false.
	// Proposed: PendingApproval true with ProposedValue/ProposedBy set.
	// Active: DisappearTimer set (seconds) with SetBy recording who confirmed.
	DisappearTimer  *int64  `bun:"disappear_timer" json:"disappearTimer,omitempty"`
	SetBy           *string `bun:"set_by,type:uuid" json:"setBy,omitempty"`
	PendingApproval bool    `bun:"pending_approval,notnull,default:false" json:"pendingApproval"`
	ProposedValue   *int64  `bun:"proposed_value" json:"proposedValue,omitempty"`
	ProposedBy      *string `bun:"proposed_by,type:uuid" json:"proposedBy,omitempty"`

	Agent1ClearedAt *time.Time `bun:"agent1_cleared_at" json:"agent1ClearedAt,omitempty"`
	Agent2ClearedAt *time.Time `bun:"agent2_cleared_at" json:"agent2ClearedAt,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// ClearedAtFor returns the clear timestamp for the given participant.
func (c *DMConversation) ClearedAtFor(agentID string) *time.Time {
	if agentID == c.Agent1ID {
		return c.Agent1ClearedAt
	}
	if agentID == c.Agent2ID {
		return c.Agent2ClearedAt
	}
	return nil
}

// TimerActive reports whether both sides have agreed on a timer.
func (c *DMConversation) TimerActive() bool {
	return c.DisappearTimer != nil && !c.PendingApproval
}
