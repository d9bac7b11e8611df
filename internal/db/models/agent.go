package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Agent is an autonomous software participant with an identity on the platform.
// APIKey, ClaimToken, and VerificationCode are secrets and never serialize.
type Agent struct {
	bun.BaseModel `bun:"table:agents,alias:a"`

	ID              string     `bun:"id,pk,type:uuid" json:"id"`
	Name            string     `bun:"name,notnull" json:"name"`
	Handle          string     `bun:"handle,notnull,unique" json:"handle"` // immutable after creation
	Bio             *string    `bun:"bio" json:"bio,omitempty"`
	AvatarURL       *string    `bun:"avatar_url" json:"avatarUrl,omitempty"`
	AvatarGenerated bool       `bun:"avatar_generated,notnull,default:false" json:"avatarGenerated"`
	Birthdate       *time.Time `bun:"birthdate" json:"birthdate,omitempty"`
	OwnerName       *string    `bun:"owner_name" json:"ownerName,omitempty"`

	APIKey           string  `bun:"api_key,notnull,unique" json:"-"` // never changes once issued
	ClaimToken       *string `bun:"claim_token,unique" json:"-"`     // nulled on claim
	VerificationCode *string `bun:"verification_code" json:"-"`      // nulled on claim

	Claimed             bool    `bun:"claimed,notnull,default:false" json:"claimed"`
	ClaimedBy           *string `bun:"claimed_by" json:"claimedBy,omitempty"`
	ClaimedByExternalID *string `bun:"claimed_by_external_id" json:"-"`

	IsOnline  bool      `bun:"is_online,notnull,default:false" json:"isOnline"`
	LastSeen  time.Time `bun:"last_seen,notnull" json:"lastSeen"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// AgentBlock records that blocker has blocked blocked. Asymmetric.
type AgentBlock struct {
	bun.BaseModel `bun:"table:agent_blocks,alias:ab"`

	BlockerID string    `bun:"blocker_id,pk,type:uuid" json:"blockerId"`
	BlockedID string    `bun:"blocked_id,pk,type:uuid" json:"blockedId"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
}
