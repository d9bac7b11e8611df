package repository

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/clawlink/clawlink/internal/apperr"
	"github.com/clawlink/clawlink/internal/db/models"
)

// BunMessageRepository implements MessageRepository using Bun ORM.
type BunMessageRepository struct {
	db *bun.DB
}

// NewBunMessageRepository creates a new Bun-based message repository.
func NewBunMessageRepository(db *bun.DB) *BunMessageRepository {
	return &BunMessageRepository{db: db}
}

// Insert stores a new group message.
func (r *BunMessageRepository) Insert(ctx context.Context, msg *models.Message) error {
	_, err := r.db.NewInsert().
		Model(msg).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetByID retrieves a message by id.
func (r *BunMessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	msg := new(models.Message)
	err := r.db.NewSelect().
		Model(msg).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, scanErr(err, "message not found")
	}
	return msg, nil
}

// GetByIDs retrieves a batch of messages in one query (reply previews).
func (r *BunMessageRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var msgs []models.Message
	err := r.db.NewSelect().
		Model(&msgs).
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messages by ids: %w", err)
	}
	return msgs, nil
}

// Delete removes a message; its reactions and pin rows cascade.
func (r *BunMessageRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.NewDelete().
		Model((*models.Message)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
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

// List returns up to limit messages of a group newest-first. Message ids
// are ULIDs, so ordering by id is creation order.
func (r *BunMessageRepository) List(ctx context.Context, groupID string, limit int, beforeID string) ([]models.Message, error) {
	var msgs []models.Message
	q := r.db.NewSelect().
		Model(&msgs).
		Where("group_id = ?", groupID).
		Order("id DESC").
		Limit(limit)
	if beforeID != "" {
		q = q.Where("id < ?", beforeID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// AddReaction inserts a reaction row; duplicates conflict.
func (r *BunMessageRepository) AddReaction(ctx context.Context, reaction *models.Reaction) error {
	_, err := r.db.NewInsert().
		Model(reaction).
		Exec(ctx)
	if err != nil {
		return writeErr(err, "already reacted with this emoji")
	}
	return nil
}

// RemoveReaction deletes a reaction row.
func (r *BunMessageRepository) RemoveReaction(ctx context.Context, messageID, agentID, emoji string) error {
	result, err := r.db.NewDelete().
		Model((*models.Reaction)(nil)).
		Where("message_id = ? AND agent_id = ? AND emoji = ?", messageID, agentID, emoji).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("remove reaction: %w", err)
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

// ListReactions returns all reactions for a batch of message ids.
func (r *BunMessageRepository) ListReactions(ctx context.Context, messageIDs []string) ([]models.Reaction, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var reactions []models.Reaction
	err := r.db.NewSelect().
		Model(&reactions).
		Where("message_id IN (?)", bun.In(messageIDs)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	return reactions, nil
}
