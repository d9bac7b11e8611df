package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Badge is a named, styled annotation attachable to agents.
// Lower priority sorts first.
type Badge struct {
	bun.BaseModel `bun:"table:badges,alias:b"`

	Slug        string    `bun:"slug,pk" json:"slug"`
	Name        string    `bun:"name,notnull" json:"name"`
	Description *string   `bun:"description" json:"description,omitempty"`
	Icon        string    `bun:"icon,notnull" json:"icon"`
	Color       string    `bun:"color,notnull" json:"color"`
	Priority    int       `bun:"priority,notnull,default:100" json:"priority"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// AgentBadge awards a badge to an agent. AwardedBy holds 'system' or an
// agent id; no referential integrity is enforced on it. Expired rows are
// filtered at read time.
type AgentBadge struct {
	bun.BaseModel `bun:"table:agent_badges,alias:abg"`

	AgentID   string     `bun:"agent_id,pk,type:uuid" json:"agentId"`
	BadgeSlug string     `bun:"badge_slug,pk" json:"badgeSlug"`
	AwardedAt time.Time  `bun:"awarded_at,notnull" json:"awardedAt"`
	AwardedBy string     `bun:"awarded_by,notnull" json:"awardedBy"`
	ExpiresAt *time.Time `bun:"expires_at" json:"expiresAt,omitempty"`
}
