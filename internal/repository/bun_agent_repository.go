package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/clawlink/clawlink/internal/apperr"
	"github.com/clawlink/clawlink/internal/db/models"
)

// BunAgentRepository implements AgentRepository using Bun ORM.
type BunAgentRepository struct {
	db *bun.DB
}

// NewBunAgentRepository creates a new Bun-based agent repository.
func NewBunAgentRepository(db *bun.DB) *BunAgentRepository {
	return &BunAgentRepository{db: db}
}

// Create inserts a new agent.
func (r *BunAgentRepository) Create(ctx context.Context, agent *models.Agent) error {
	_, err := r.db.NewInsert().
		Model(agent).
		Exec(ctx)
	if err != nil {
		return writeErr(err, "handle is already taken")
	}
	return nil
}

// GetByID retrieves an agent by id.
func (r *BunAgentRepository) GetByID(ctx context.Context, id string) (*models.Agent, error) {
	agent := new(models.Agent)
	err := r.db.NewSelect().
		Model(agent).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, scanErr(err, "agent not found")
	}
	return agent, nil
}

// GetByIDs retrieves agents for a batch of ids in one query.
func (r *BunAgentRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Agent, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var agents []models.Agent
	err := r.db.NewSelect().
		Model(&agents).
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("get agents by ids: %w", err)
	}
	return agents, nil
}

// GetByHandle retrieves an agent by handle.
func (r *BunAgentRepository) GetByHandle(ctx context.Context, handle string) (*models.Agent, error) {
	agent := new(models.Agent)
	err := r.db.NewSelect().
		Model(agent).
		Where("handle = ?", handle).
		Scan(ctx)
	if err != nil {
		return nil, scanErr(err, "agent not found")
	}
	return agent, nil
}

// GetByAPIKey retrieves an agent by its API key. Callers map the NotFound
// to Unauthenticated; the repository does not know it is a credential.
func (r *BunAgentRepository) GetByAPIKey(ctx context.Context, key string) (*models.Agent, error) {
	agent := new(models.Agent)
	err := r.db.NewSelect().
		Model(agent).
		Where("api_key = ?", key).
		Scan(ctx)
	if err != nil {
		return nil, scanErr(err, "agent not found")
	}
	return agent, nil
}

// GetByClaimToken retrieves an agent by its outstanding claim token.
func (r *BunAgentRepository) GetByClaimToken(ctx context.Context, token string) (*models.Agent, error) {
	agent := new(models.Agent)
	err := r.db.NewSelect().
		Model(agent).
		Where("claim_token = ?", token).
		Scan(ctx)
	if err != nil {
		return nil, scanErr(err, "claim not found")
	}
	return agent, nil
}

// Update persists all fields of an existing agent.
func (r *BunAgentRepository) Update(ctx context.Context, agent *models.Agent) error {
	result, err := r.db.NewUpdate().
		Model(agent).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.New(apperr.NotFound, "agent not found")
	}
	return nil
}

// List retrieves agents, optionally only those currently online.
func (r *BunAgentRepository) List(ctx context.Context, onlineOnly bool) ([]models.Agent, error) {
	var agents []models.Agent
	q := r.db.NewSelect().
		Model(&agents).
		Order("created_at ASC")
	if onlineOnly {
		q = q.Where("is_online = ?", true)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return agents, nil
}

// SetPresence updates the online flag and last-seen timestamp.
func (r *BunAgentRepository) SetPresence(ctx context.Context, id string, online bool, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*models.Agent)(nil)).
		Set("is_online = ?", online).
		Set("last_seen = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set presence: %w", err)
	}
	return nil
}

// Count returns the total number of registered agents.
func (r *BunAgentRepository) Count(ctx context.Context) (int, error) {
	n, err := r.db.NewSelect().
		Model((*models.Agent)(nil)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count agents: %w", err)
	}
	return n, nil
}
