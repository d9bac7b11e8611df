package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/clawlink/clawlink/internal/apperr"
	"github.com/clawlink/clawlink/internal/db/models"
)

// BunGroupRepository implements GroupRepository using Bun ORM.
type BunGroupRepository struct {
	db *bun.DB
}

// NewBunGroupRepository creates a new Bun-based group repository.
func NewBunGroupRepository(db *bun.DB) *BunGroupRepository {
	return &BunGroupRepository{db: db}
}

// CreateWithAdmin inserts the group and its creator's admin membership in a
// single transaction, so no group ever exists without an admin.
func (r *BunGroupRepository) CreateWithAdmin(ctx context.Context, group *models.Group, admin *models.GroupMember) error {
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(group).Exec(ctx); err != nil {
			return writeErr(err, "a group with this name already exists")
		}
		if _, err := tx.NewInsert().Model(admin).Exec(ctx); err != nil {
			return fmt.Errorf("insert admin membership: %w", err)
		}
		return nil
	})
	return err
}

// GetByID retrieves a group by id.
func (r *BunGroupRepository) GetByID(ctx context.Context, id string) (*models.Group, error) {
	group := new(models.Group)
	err := r.db.NewSelect().
		Model(group).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, scanErr(err, "group not found")
	}
	return group, nil
}

// List retrieves groups, optionally only public ones.
func (r *BunGroupRepository) List(ctx context.Context, publicOnly bool) ([]models.Group, error) {
	var groups []models.Group
	q := r.db.NewSelect().
		Model(&groups).
		Order("created_at ASC")
	if publicOnly {
		q = q.Where("is_public = ?", true)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// Update persists group settings changes.
func (r *BunGroupRepository) Update(ctx context.Context, group *models.Group) error {
	result, err := r.db.NewUpdate().
		Model(group).
		WherePK().
		Exec(ctx)
	if err != nil {
		return writeErr(err, "a group with this name already exists")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.New(apperr.NotFound, "group not found")
	}
	return nil
}

// Delete removes the group; related rows cascade via foreign keys.
func (r *BunGroupRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.NewDelete().
		Model((*models.Group)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.New(apperr.NotFound, "group not found")
	}
	return nil
}

// AddMember inserts a membership row.
func (r *BunGroupRepository) AddMember(ctx context.Context, member *models.GroupMember) error {
	_, err := r.db.NewInsert().
		Model(member).
		Exec(ctx)
	if err != nil {
		return writeErr(err, "already a member of this group")
	}
	return nil
}

// GetMember retrieves a membership row.
func (r *BunGroupRepository) GetMember(ctx context.Context, groupID, agentID string) (*models.GroupMember, error) {
	member := new(models.GroupMember)
	err := r.db.NewSelect().
		Model(member).
		Where("group_id = ? AND agent_id = ?", groupID, agentID).
		Scan(ctx)
	if err != nil {
		return nil, scanErr(err, "not a member of this group")
	}
	return member, nil
}

// ListMembers retrieves all memberships of a group.
func (r *BunGroupRepository) ListMembers(ctx context.Context, groupID string) ([]models.GroupMember, error) {
	var members []models.GroupMember
	err := r.db.NewSelect().
		Model(&members).
		Where("group_id = ?", groupID).
		Order("joined_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// RemoveMember deletes a membership row.
func (r *BunGroupRepository) RemoveMember(ctx context.Context, groupID, agentID string) error {
	result, err := r.db.NewDelete().
		Model((*models.GroupMember)(nil)).
		Where("group_id = ? AND agent_id = ?", groupID, agentID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.New(apperr.NotFound, "not a member of this group")
	}
	return nil
}

// UpdateMemberRole changes a member's role.
func (r *BunGroupRepository) UpdateMemberRole(ctx context.Context, groupID, agentID, role string) error {
	result, err := r.db.NewUpdate().
		Model((*models.GroupMember)(nil)).
		Set("role = ?", role).
		Where("group_id = ? AND agent_id = ?", groupID, agentID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update member role: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.New(apperr.NotFound, "not a member of this group")
	}
	return nil
}

// ListAgentGroupIDs returns the ids of all groups the agent belongs to.
func (r *BunGroupRepository) ListAgentGroupIDs(ctx context.Context, agentID string) ([]string, error) {
	var ids []string
	err := r.db.NewSelect().
		Model((*models.GroupMember)(nil)).
		Column("group_id").
		Where("agent_id = ?", agentID).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("list agent group ids: %w", err)
	}
	return ids, nil
}

// CountMembersByRole returns the member count per role for a group.
func (r *BunGroupRepository) CountMembersByRole(ctx context.Context, groupID string) (map[string]int, error) {
	var rows []struct {
		Role  string `bun:"role"`
		Count int    `bun:"count"`
	}
	err := r.db.NewSelect().
		Model((*models.GroupMember)(nil)).
		Column("role").
		ColumnExpr("COUNT(*) AS count").
		Where("group_id = ?", groupID).
		Group("role").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("count members by role: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Role] = row.Count
	}
	return counts, nil
}

// MemberCount returns the total member count of a group.
func (r *BunGroupRepository) MemberCount(ctx context.Context, groupID string) (int, error) {
	n, err := r.db.NewSelect().
		Model((*models.GroupMember)(nil)).
		Where("group_id = ?", groupID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("member count: %w", err)
	}
	return n, nil
}

// GetPermissions returns the group's override row, or nil when no override
// has ever been written (callers fall back to defaults).
func (r *BunGroupRepository) GetPermissions(ctx context.Context, groupID string) (*models.GroupPermissions, error) {
	perms := new(models.GroupPermissions)
	err := r.db.NewSelect().
		Model(perms).
		Where("group_id = ?", groupID).
		Scan(ctx)
	if err != nil {
		if errIsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get permissions: %w", err)
	}
	return perms, nil
}

// UpsertPermissions writes the group's override row.
func (r *BunGroupRepository) UpsertPermissions(ctx context.Context, perms *models.GroupPermissions) error {
	_, err := r.db.NewInsert().
		Model(perms).
		On("CONFLICT (group_id) DO UPDATE").
		Set("rename_group = EXCLUDED.rename_group").
		Set("edit_description = EXCLUDED.edit_description").
		Set("edit_avatar = EXCLUDED.edit_avatar").
		Set("delete_group = EXCLUDED.delete_group").
		Set("remove_members = EXCLUDED.remove_members").
		Set("set_roles = EXCLUDED.set_roles").
		Set("invite_members = EXCLUDED.invite_members").
		Set("pin_messages = EXCLUDED.pin_messages").
		Set("delete_any_message = EXCLUDED.delete_any_message").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert permissions: %w", err)
	}
	return nil
}

// Pin inserts a pin row.
func (r *BunGroupRepository) Pin(ctx context.Context, pin *models.PinnedMessage) error {
	_, err := r.db.NewInsert().
		Model(pin).
		Exec(ctx)
	if err != nil {
		return writeErr(err, "message is already pinned")
	}
	return nil
}

// Unpin deletes a pin row.
func (r *BunGroupRepository) Unpin(ctx context.Context, groupID, messageID string) error {
	result, err := r.db.NewDelete().
		Model((*models.PinnedMessage)(nil)).
		Where("group_id = ? AND message_id = ?", groupID, messageID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("unpin message: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.New(apperr.NotFound, "message is not pinned")
	}
	return nil
}

// ListPins retrieves all pins of a group, newest first.
func (r *BunGroupRepository) ListPins(ctx context.Context, groupID string) ([]models.PinnedMessage, error) {
	var pins []models.PinnedMessage
	err := r.db.NewSelect().
		Model(&pins).
		Where("group_id = ?", groupID).
		Order("pinned_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pins: %w", err)
	}
	return pins, nil
}
