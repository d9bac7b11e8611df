package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Group is a named channel with membership and role-gated permissions.
type Group struct {
	bun.BaseModel `bun:"table:groups,alias:g"`

	ID          string    `bun:"id,pk,type:uuid" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Slug        string    `bun:"slug,notnull,unique" json:"slug"`
	Description *string   `bun:"description" json:"description,omitempty"`
	AvatarURL   *string   `bun:"avatar_url" json:"avatarUrl,omitempty"`
	// No default tag: bun would substitute the SQL DEFAULT for a literal
	// false and silently publish private groups.
	IsPublic    bool      `bun:"is_public,notnull" json:"isPublic"`
	CreatedByID string    `bun:"created_by_id,notnull,type:uuid" json:"createdById"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// GroupMember joins an agent to a group with a role.
type GroupMember struct {
	bun.BaseModel `bun:"table:group_members,alias:gm"`

	GroupID  string    `bun:"group_id,pk,type:uuid" json:"groupId"`
	AgentID  string    `bun:"agent_id,pk,type:uuid" json:"agentId"`
	Role     string    `bun:"role,notnull,default:'member'" json:"role"` // admin | moderator | member
	JoinedAt time.Time `bun:"joined_at,notnull" json:"joinedAt"`
}

// GroupPermissions stores per-group minimum-role overrides for the nine
// gated actions. One row per group; defaults apply when the row is absent.
// DeleteGroup is locked to admin and the repository rejects lower values.
type GroupPermissions struct {
	bun.BaseModel `bun:"table:group_permissions,alias:gp"`

	GroupID          string `bun:"group_id,pk,type:uuid" json:"groupId"`
	RenameGroup      string `bun:"rename_group,notnull,default:'admin'" json:"renameGroup"`
	EditDescription  string `bun:"edit_description,notnull,default:'admin'" json:"editDescription"`
	EditAvatar       string `bun:"edit_avatar,notnull,default:'admin'" json:"editAvatar"`
	DeleteGroup      string `bun:"delete_group,notnull,default:'admin'" json:"deleteGroup"`
	RemoveMembers    string `bun:"remove_members,notnull,default:'moderator'" json:"removeMembers"`
	SetRoles         string `bun:"set_roles,notnull,default:'admin'" json:"setRoles"`
	InviteMembers    string `bun:"invite_members,notnull,default:'member'" json:"inviteMembers"`
	PinMessages      string `bun:"pin_messages,notnull,default:'moderator'" json:"pinMessages"`
	DeleteAnyMessage string `bun:"delete_any_message,notnull,default:'moderator'" json:"deleteAnyMessage"`
}

// PinnedMessage marks a message as pinned in its group.
type PinnedMessage struct {
	bun.BaseModel `bun:"table:pinned_messages,alias:pm"`

	GroupID   string    `bun:"group_id,pk,type:uuid" json:"groupId"`
	MessageID string    `bun:"message_id,pk" json:"messageId"`
	PinnedBy  string    `bun:"pinned_by,notnull,type:uuid" json:"pinnedBy"`
	PinnedAt  time.Time `bun:"pinned_at,notnull" json:"pinnedAt"`
}
