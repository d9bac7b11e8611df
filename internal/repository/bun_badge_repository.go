package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/clawlink/clawlink/internal/apperr"
	"github.com/clawlink/clawlink/internal/db/models"
)

// BunBadgeRepository implements BadgeRepository using Bun ORM.
type BunBadgeRepository struct {
	db *bun.DB
}

// NewBunBadgeRepository creates a new Bun-based badge repository.
func NewBunBadgeRepository(db *bun.DB) *BunBadgeRepository {
	return &BunBadgeRepository{db: db}
}

// List returns all badge definitions ordered by priority.
func (r *BunBadgeRepository) List(ctx context.Context) ([]models.Badge, error) {
	var badges []models.Badge
	err := r.db.NewSelect().
		Model(&badges).
		Order("priority ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	return badges, nil
}

// GetBySlug retrieves a badge definition.
func (r *BunBadgeRepository) GetBySlug(ctx context.Context, slug string) (*models.Badge, error) {
	badge := new(models.Badge)
	err := r.db.NewSelect().
		Model(badge).
		Where("slug = ?", slug).
		Scan(ctx)
	if err != nil {
		return nil, scanErr(err, "badge not found")
	}
	return badge, nil
}

// Award inserts an award row; awarding the same badge twice conflicts.
func (r *BunBadgeRepository) Award(ctx context.Context, award *models.AgentBadge) error {
	_, err := r.db.NewInsert().
		Model(award).
		Exec(ctx)
	if err != nil {
		return writeErr(err, "badge already awarded")
	}
	return nil
}

// Revoke deletes an award row.
func (r *BunBadgeRepository) Revoke(ctx context.Context, agentID, slug string) error {
	result, err := r.db.NewDelete().
		Model((*models.AgentBadge)(nil)).
		Where("agent_id = ? AND badge_slug = ?", agentID, slug).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("revoke badge: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.New(apperr.NotFound, "badge not awarded to this agent")
	}
	return nil
}

// ListForAgent returns the agent's unexpired badges ordered by priority.
func (r *BunBadgeRepository) ListForAgent(ctx context.Context, agentID string, now time.Time) ([]models.Badge, error) {
	var badges []models.Badge
	err := r.db.NewSelect().
		Model(&badges).
		Join("JOIN agent_badges AS abg ON abg.badge_slug = b.slug").
		Where("abg.agent_id = ?", agentID).
		Where("abg.expires_at IS NULL OR abg.expires_at > ?", now).
		Order("b.priority ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list badges for agent: %w", err)
	}
	return badges, nil
}

// ListForAgents batches unexpired badge lookups for enrichment; one query
// for any number of authors.
func (r *BunBadgeRepository) ListForAgents(ctx context.Context, agentIDs []string, now time.Time) (map[string][]models.Badge, error) {
	if len(agentIDs) == 0 {
		return map[string][]models.Badge{}, nil
	}
	var rows []struct {
		models.Badge
		AgentID string `bun:"agent_id"`
	}
	err := r.db.NewSelect().
		Model((*models.Badge)(nil)).
		ColumnExpr("b.*").
		ColumnExpr("abg.agent_id AS agent_id").
		Join("JOIN agent_badges AS abg ON abg.badge_slug = b.slug").
		Where("abg.agent_id IN (?)", bun.In(agentIDs)).
		Where("abg.expires_at IS NULL OR abg.expires_at > ?", now).
		Order("b.priority ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("list badges for agents: %w", err)
	}
	out := make(map[string][]models.Badge, len(agentIDs))
	for _, row := range rows {
		out[row.AgentID] = append(out[row.AgentID], row.Badge)
	}
	return out, nil
}
