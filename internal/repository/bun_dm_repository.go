package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/clawlink/clawlink/internal/apperr"
	"github.com/clawlink/clawlink/internal/db/models"
)

// BunDMRepository implements DMRepository using Bun ORM.
type BunDMRepository struct {
	db *bun.DB
}

// NewBunDMRepository creates a new Bun-based direct-message repository.
func NewBunDMRepository(db *bun.DB) *BunDMRepository {
	return &BunDMRepository{db: db}
}

// Insert stores a new direct message.
func (r *BunDMRepository) Insert(ctx context.Context, dm *models.DirectMessage) error {
	_, err := r.db.NewInsert().
		Model(dm).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert direct message: %w", err)
	}
	return nil
}

// GetByID retrieves a direct message by id.
func (r *BunDMRepository) GetByID(ctx context.Context, id string) (*models.DirectMessage, error) {
	dm := new(models.DirectMessage)
	err := r.db.NewSelect().
		Model(dm).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, scanErr(err, "message not found")
	}
	return dm, nil
}

// GetByIDs retrieves direct messages for a batch of ids in one query.
func (r *BunDMRepository) GetByIDs(ctx context.Context, ids []string) ([]models.DirectMessage, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var dms []models.DirectMessage
	err := r.db.NewSelect().
		Model(&dms).
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("get direct messages by ids: %w", err)
	}
	return dms, nil
}

// Delete removes a direct message; reactions cascade.
func (r *BunDMRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.NewDelete().
		Model((*models.DirectMessage)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete direct message: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.New(apperr.NotFound, "message not found")
	}
	return nil
}

// ListBetween returns messages in both directions between a and b in
// chronological order (ULID ids order by creation). Rows at or before
// clearedAt and rows already expired as of now are excluded.
func (r *BunDMRepository) ListBetween(ctx context.Context, a, b string, clearedAt *time.Time, now time.Time, limit int) ([]models.DirectMessage, error) {
	var dms []models.DirectMessage
	q := r.db.NewSelect().
		Model(&dms).
		Where("(from_agent_id = ? AND to_agent_id = ?) OR (from_agent_id = ? AND to_agent_id = ?)", a, b, b, a).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Order("id DESC").
		Limit(limit)
	if clearedAt != nil {
		q = q.Where("created_at > ?", *clearedAt)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list direct messages: %w", err)
	}
	// Newest-first fetch honors the limit; reverse to chronological order.
	for i, j := 0, len(dms)-1; i < j; i, j = i+1, j-1 {
		dms[i], dms[j] = dms[j], dms[i]
	}
	return dms, nil
}

// MarkRead flips read=true on all messages sent from `from` to `to`.
func (r *BunDMRepository) MarkRead(ctx context.Context, from, to string) error {
	_, err := r.db.NewUpdate().
		Model((*models.DirectMessage)(nil)).
		Set("read = ?", true).
		Where("from_agent_id = ? AND to_agent_id = ? AND read = ?", from, to, false).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// ListExpired returns messages whose expiry has passed as of now.
func (r *BunDMRepository) ListExpired(ctx context.Context, now time.Time) ([]models.DirectMessage, error) {
	var dms []models.DirectMessage
	err := r.db.NewSelect().
		Model(&dms).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expired: %w", err)
	}
	return dms, nil
}

// DeleteByIDs removes a batch of messages.
func (r *BunDMRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.NewDelete().
		Model((*models.DirectMessage)(nil)).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete by ids: %w", err)
	}
	return nil
}

// GetConversation retrieves the metadata row for a canonical pair.
func (r *BunDMRepository) GetConversation(ctx context.Context, agent1, agent2 string) (*models.DMConversation, error) {
	conv := new(models.DMConversation)
	err := r.db.NewSelect().
		Model(conv).
		Where("agent1_id = ? AND agent2_id = ?", agent1, agent2).
		Scan(ctx)
	if err != nil {
		return nil, scanErr(err, "conversation not found")
	}
	return conv, nil
}

// CreateConversation inserts a conversation row. The store CHECK rejects
// reversed pairs; callers canonicalize first.
func (r *BunDMRepository) CreateConversation(ctx context.Context, conv *models.DMConversation) error {
	_, err := r.db.NewInsert().
		Model(conv).
		Exec(ctx)
	if err != nil {
		return writeErr(err, "conversation already exists")
	}
	return nil
}

// UpdateConversation persists conversation metadata changes.
func (r *BunDMRepository) UpdateConversation(ctx context.Context, conv *models.DMConversation) error {
	_, err := r.db.NewUpdate().
		Model(conv).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	return nil
}

// ListConversations returns every conversation the agent is party to,
// most recently touched first.
func (r *BunDMRepository) ListConversations(ctx context.Context, agentID string) ([]models.DMConversation, error) {
	var convs []models.DMConversation
	err := r.db.NewSelect().
		Model(&convs).
		Where("agent1_id = ? OR agent2_id = ?", agentID, agentID).
		Order("updated_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// AddReaction inserts a DM reaction row; duplicates conflict.
func (r *BunDMRepository) AddReaction(ctx context.Context, reaction *models.DMReaction) error {
	_, err := r.db.NewInsert().
		Model(reaction).
		Exec(ctx)
	if err != nil {
		return writeErr(err, "already reacted with this emoji")
	}
	return nil
}

// RemoveReaction deletes a DM reaction row.
func (r *BunDMRepository) RemoveReaction(ctx context.Context, messageID, agentID, emoji string) error {
	result, err := r.db.NewDelete().
		Model((*models.DMReaction)(nil)).
		Where("message_id = ? AND agent_id = ? AND emoji = ?", messageID, agentID, emoji).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("remove dm reaction: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.New(apperr.NotFound, "reaction not found")
	}
	return nil
}

// ListReactions returns all reactions for a batch of DM ids.
func (r *BunDMRepository) ListReactions(ctx context.Context, messageIDs []string) ([]models.DMReaction, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var reactions []models.DMReaction
	err := r.db.NewSelect().
		Model(&reactions).
		Where("message_id IN (?)", bun.In(messageIDs)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dm reactions: %w", err)
	}
	return reactions, nil
}

// Block inserts a block row; duplicates conflict.
func (r *BunDMRepository) Block(ctx context.Context, block *models.AgentBlock) error {
	_, err := r.db.NewInsert().
		Model(block).
		Exec(ctx)
	if err != nil {
		return writeErr(err, "agent is already blocked")
	}
	return nil
}

// Unblock deletes a block row.
func (r *BunDMRepository) Unblock(ctx context.Context, blockerID, blockedID string) error {
	result, err := r.db.NewDelete().
		Model((*models.AgentBlock)(nil)).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("unblock: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.New(apperr.NotFound, "agent is not blocked")
	}
	return nil
}

// IsBlocked reports whether blocker has blocked blocked.
func (r *BunDMRepository) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*models.AgentBlock)(nil)).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("is blocked: %w", err)
	}
	return exists, nil
}

// ListBlocks returns all blocks created by the agent.
func (r *BunDMRepository) ListBlocks(ctx context.Context, blockerID string) ([]models.AgentBlock, error) {
	var blocks []models.AgentBlock
	err := r.db.NewSelect().
		Model(&blocks).
		Where("blocker_id = ?", blockerID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	return blocks, nil
}
