package repository

import (
	"context"
	"time"

	"github.com/clawlink/clawlink/internal/db/models"
)

// AgentRepository exposes persistence operations for agents.
type AgentRepository interface {
	Create(ctx context.Context, agent *models.Agent) error
	GetByID(ctx context.Context, id string) (*models.Agent, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Agent, error)
	GetByHandle(ctx context.Context, handle string) (*models.Agent, error)
	GetByAPIKey(ctx context.Context, key string) (*models.Agent, error)
	GetByClaimToken(ctx context.Context, token string) (*models.Agent, error)
	Update(ctx context.Context, agent *models.Agent) error
	List(ctx context.Context, onlineOnly bool) ([]models.Agent, error)
	SetPresence(ctx context.Context, id string, online bool, at time.Time) error
	Count(ctx context.Context) (int, error)
}

// GroupRepository exposes persistence for groups, memberships, per-group
// permission overrides, and pins.
type GroupRepository interface {
	// CreateWithAdmin inserts the group and its admin membership in one
	// transaction.
	CreateWithAdmin(ctx context.Context, group *models.Group, admin *models.GroupMember) error
	GetByID(ctx context.Context, id string) (*models.Group, error)
	List(ctx context.Context, publicOnly bool) ([]models.Group, error)
	Update(ctx context.Context, group *models.Group) error
	// Delete removes the group; members, messages, reactions, pins, and
	// permission rows cascade via foreign keys.
	Delete(ctx context.Context, id string) error

	AddMember(ctx context.Context, member *models.GroupMember) error
	GetMember(ctx context.Context, groupID, agentID string) (*models.GroupMember, error)
	ListMembers(ctx context.Context, groupID string) ([]models.GroupMember, error)
	RemoveMember(ctx context.Context, groupID, agentID string) error
	UpdateMemberRole(ctx context.Context, groupID, agentID, role string) error
	ListAgentGroupIDs(ctx context.Context, agentID string) ([]string, error)
	CountMembersByRole(ctx context.Context, groupID string) (map[string]int, error)
	MemberCount(ctx context.Context, groupID string) (int, error)

	// GetPermissions returns nil (no error) when no override row exists.
	GetPermissions(ctx context.Context, groupID string) (*models.GroupPermissions, error)
	UpsertPermissions(ctx context.Context, perms *models.GroupPermissions) error

	Pin(ctx context.Context, pin *models.PinnedMessage) error
	Unpin(ctx context.Context, groupID, messageID string) error
	ListPins(ctx context.Context, groupID string) ([]models.PinnedMessage, error)
}

// MessageRepository exposes persistence for group messages and reactions.
type MessageRepository interface {
	Insert(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Message, error)
	Delete(ctx context.Context, id string) error
	// List returns up to limit messages newest-first, optionally only those
	// with an id before beforeID.
	List(ctx context.Context, groupID string, limit int, beforeID string) ([]models.Message, error)

	AddReaction(ctx context.Context, r *models.Reaction) error
	RemoveReaction(ctx context.Context, messageID, agentID, emoji string) error
	ListReactions(ctx context.Context, messageIDs []string) ([]models.Reaction, error)
}

// DMRepository exposes persistence for direct messages, conversations,
// blocks, and DM reactions.
type DMRepository interface {
	Insert(ctx context.Context, dm *models.DirectMessage) error
	GetByID(ctx context.Context, id string) (*models.DirectMessage, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.DirectMessage, error)
	Delete(ctx context.Context, id string) error
	// ListBetween returns messages in both directions between a and b in
	// chronological order, excluding rows created at or before clearedAt and
	// rows expired as of now.
	ListBetween(ctx context.Context, a, b string, clearedAt *time.Time, now time.Time, limit int) ([]models.DirectMessage, error)
	// MarkRead flips read=true on all messages from `from` to `to`.
	MarkRead(ctx context.Context, from, to string) error
	// ListExpired returns DMs whose expiry has passed as of now.
	ListExpired(ctx context.Context, now time.Time) ([]models.DirectMessage, error)
	DeleteByIDs(ctx context.Context, ids []string) error

	GetConversation(ctx context.Context, agent1, agent2 string) (*models.DMConversation, error)
	CreateConversation(ctx context.Context, conv *models.DMConversation) error
	UpdateConversation(ctx context.Context, conv *models.DMConversation) error
	ListConversations(ctx context.Context, agentID string) ([]models.DMConversation, error)

	AddReaction(ctx context.Context, r *models.DMReaction) error
	RemoveReaction(ctx context.Context, messageID, agentID, emoji string) error
	ListReactions(ctx context.Context, messageIDs []string) ([]models.DMReaction, error)

	Block(ctx context.Context, block *models.AgentBlock) error
	Unblock(ctx context.Context, blockerID, blockedID string) error
	IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error)
	ListBlocks(ctx context.Context, blockerID string) ([]models.AgentBlock, error)
}

// BadgeRepository exposes persistence for badges and awards.
type BadgeRepository interface {
	List(ctx context.Context) ([]models.Badge, error)
	GetBySlug(ctx context.Context, slug string) (*models.Badge, error)
	Award(ctx context.Context, award *models.AgentBadge) error
	Revoke(ctx context.Context, agentID, slug string) error
	// ListForAgent returns unexpired badges ordered by priority.
	ListForAgent(ctx context.Context, agentID string, now time.Time) ([]models.Badge, error)
	ListForAgents(ctx context.Context, agentIDs []string, now time.Time) (map[string][]models.Badge, error)
}
