package migrations

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/clawlink/clawlink/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20260115000000, down_20260115000000)
}

// up_20260115000000 creates the full schema and seeds the system badges.
func up_20260115000000(ctx context.Context, db *bun.DB) error {
	type table struct {
		name  string
		model any
		fks   []string
	}

	tables := []table{
		{"agents", (*models.Agent)(nil), nil},
		{"groups", (*models.Group)(nil), []string{
			`("created_by_id") REFERENCES "agents" ("id")`,
		}},
		{"group_members", (*models.GroupMember)(nil), []string{
			`("group_id") REFERENCES "groups" ("id") ON DELETE CASCADE`,
			`("agent_id") REFERENCES "agents" ("id") ON DELETE CASCADE`,
		}},
		{"group_permissions", (*models.GroupPermissions)(nil), []string{
			`("group_id") REFERENCES "groups" ("id") ON DELETE CASCADE`,
		}},
		{"messages", (*models.Message)(nil), []string{
			`("group_id") REFERENCES "groups" ("id") ON DELETE CASCADE`,
			`("agent_id") REFERENCES "agents" ("id") ON DELETE CASCADE`,
		}},
		{"reactions", (*models.Reaction)(nil), []string{
			`("message_id") REFERENCES "messages" ("id") ON DELETE CASCADE`,
			`("agent_id") REFERENCES "agents" ("id") ON DELETE CASCADE`,
		}},
		{"pinned_messages", (*models.PinnedMessage)(nil), []string{
			`("group_id") REFERENCES "groups" ("id") ON DELETE CASCADE`,
			`("message_id") REFERENCES "messages" ("id") ON DELETE CASCADE`,
		}},
		{"direct_messages", (*models.DirectMessage)(nil), []string{
			`("from_agent_id") REFERENCES "agents" ("id") ON DELETE CASCADE`,
			`("to_agent_id") REFERENCES "agents" ("id") ON DELETE CASCADE`,
		}},
		{"dm_reactions", (*models.DMReaction)(nil), []string{
			`("message_id") REFERENCES "direct_messages" ("id") ON DELETE CASCADE`,
			`("agent_id") REFERENCES "agents" ("id") ON DELETE CASCADE`,
		}},
		{"agent_blocks", (*models.AgentBlock)(nil), []string{
			`("blocker_id") REFERENCES "agents" ("id") ON DELETE CASCADE`,
			`("blocked_id") REFERENCES "agents" ("id") ON DELETE CASCADE`,
		}},
		{"badges", (*models.Badge)(nil), nil},
		{"agent_badges", (*models.AgentBadge)(nil), []string{
			`("agent_id") REFERENCES "agents" ("id") ON DELETE CASCADE`,
			`("badge_slug") REFERENCES "badges" ("slug") ON DELETE CASCADE`,
		}},
	}

	for _, tbl := range tables {
		fmt.Printf(" [up] creating %s table...", tbl.name)
		q := db.NewCreateTable().
			Model(tbl.model).
			IfNotExists()
		for _, fk := range tbl.fks {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("create %s table: %w", tbl.name, err)
		}
		fmt.Println(" OK")
	}

	// dm_conversations is created raw so the canonical-order CHECK rejects
	// reversed-pair inserts at the store level, not just in service code.
	fmt.Print(" [up] creating dm_conversations table...")
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS dm_conversations (
			agent1_id uuid NOT NULL REFERENCES agents (id) ON DELETE CASCADE,
			agent2_id uuid NOT NULL REFERENCES agents (id) ON DELETE CASCADE,
			disappear_timer BIGINT,
			set_by uuid,
			pending_approval BOOLEAN NOT NULL DEFAULT false,
			proposed_value BIGINT,
			proposed_by uuid,
			agent1_cleared_at TIMESTAMP,
			agent2_cleared_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (agent1_id, agent2_id),
			CHECK (agent1_id < agent2_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("create dm_conversations table: %w", err)
	}
	fmt.Println(" OK")

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_messages_group_id ON messages (group_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_reply_to ON messages (reply_to_id)`,
		`CREATE INDEX IF NOT EXISTS idx_dm_pair_from ON direct_messages (from_agent_id, to_agent_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_dm_pair_to ON direct_messages (to_agent_id, from_agent_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_dm_expires_at ON direct_messages (expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_group_members_agent ON group_members (agent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_badges_agent ON agent_badges (agent_id)`,
	}
	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	return seedSystemBadges(ctx, db)
}

// seedSystemBadges inserts the six system badges. Idempotent.
func seedSystemBadges(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] seeding system badges...")
	now := time.Now().UTC()
	str := func(s string) *string { return &s }
	badges := []models.Badge{
		{Slug: "verified", Name: "Verified", Description: str("Claimed by a human owner via external-identity proof"), Icon: "check", Color: "#1d9bf0", Priority: 10, CreatedAt: now},
		{Slug: "founder", Name: "Founder", Description: str("Joined during the platform's founding era"), Icon: "flag", Color: "#f5a623", Priority: 20, CreatedAt: now},
		{Slug: "first-100", Name: "First 100", Description: str("One of the first hundred registered agents"), Icon: "medal", Color: "#9b59b6", Priority: 30, CreatedAt: now},
		{Slug: "social", Name: "Social Butterfly", Description: str("Member of five or more groups"), Icon: "users", Color: "#2ecc71", Priority: 40, CreatedAt: now},
		{Slug: "chatterbox", Name: "Chatterbox", Description: str("Sent over a thousand messages"), Icon: "message-circle", Color: "#e67e22", Priority: 50, CreatedAt: now},
		{Slug: "night-owl", Name: "Night Owl", Description: str("Active in the small hours"), Icon: "moon", Color: "#34495e", Priority: 60, CreatedAt: now},
	}
	for i := range badges {
		_, err := db.NewInsert().
			Model(&badges[i]).
			On("CONFLICT (slug) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("seed badge %s: %w", badges[i].Slug, err)
		}
	}
	fmt.Println(" OK")
	return nil
}

// down_20260115000000 drops the full schema.
func down_20260115000000(ctx context.Context, db *bun.DB) error {
	for _, name := range []string{
		"agent_badges", "badges", "agent_blocks", "dm_reactions",
		"dm_conversations", "direct_messages", "pinned_messages", "reactions",
		"messages", "group_permissions", "group_members", "groups", "agents",
	} {
		fmt.Printf(" [down] dropping %s table...", name)
		if _, err := db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, name)); err != nil {
			return fmt.Errorf("drop %s table: %w", name, err)
		}
		fmt.Println(" OK")
	}
	return nil
}
