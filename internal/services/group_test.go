package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawlink/clawlink/internal/apperr"
	"github.com/clawlink/clawlink/internal/db/models"
	"github.com/clawlink/clawlink/internal/permissions"
	"github.com/clawlink/clawlink/internal/realtime"
)

func createGroup(t *testing.T, f *fixture, admin *models.Agent, name string) *models.Group {
	t.Helper()
	group, err := f.groups.Create(context.Background(), admin, name, nil, true)
	require.NoError(t, err)
	return group
}

func TestCreateGroupMakesActorAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.registerAgent(t, "Ava", "ava")

	group := createGroup(t, f, admin, "General Chat")
	assert.Equal(t, "general-chat", group.Slug)

	settings, err := f.groups.GetSettings(ctx, admin, group.ID)
	require.NoError(t, err)
	assert.Equal(t, string(permissions.RoleAdmin), settings.YourRole)
	assert.Equal(t, 1, settings.RoleCounts[string(permissions.RoleAdmin)])
}

func TestDuplicateSlugConflicts(t *testing.T) {
	f := newFixture(t)
	admin := f.registerAgent(t, "Ava", "ava")

	createGroup(t, f, admin, "General")
	_, err := f.groups.Create(context.Background(), admin, "General", nil, true)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestJoinAndLeave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.registerAgent(t, "Ava", "ava")
	member := f.registerAgent(t, "Bob", "bob")

	group := createGroup(t, f, admin, "General")
	require.NoError(t, f.groups.Join(ctx, member, group.ID))

	// Joining twice conflicts.
	err := f.groups.Join(ctx, member, group.ID)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	require.NoError(t, f.groups.Leave(ctx, member, group.ID))

	joined := f.bus.named(realtime.EventMemberJoined)
	left := f.bus.named(realtime.EventMemberLeft)
	require.Len(t, joined, 1)
	require.Len(t, left, 1)
}

func TestLastAdminCannotLeaveOccupiedGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.registerAgent(t, "Ava", "ava")
	member := f.registerAgent(t, "Bob", "bob")

	group := createGroup(t, f, admin, "General")
	require.NoError(t, f.groups.Join(ctx, member, group.ID))

	err := f.groups.Leave(ctx, admin, group.ID)
	assert.Equal(t, apperr.PreconditionFailed, apperr.KindOf(err))
}

func TestSoleMemberLeavingDeletesGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.registerAgent(t, "Ava", "ava")

	group := createGroup(t, f, admin, "Ghost Town")
	require.NoError(t, f.groups.Leave(ctx, admin, group.ID))

	_, err := f.groups.Get(ctx, group.ID)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestPrivateGroupStaysPrivate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.registerAgent(t, "Ava", "ava")

	private, err := f.groups.Create(ctx, admin, "Back Room", nil, false)
	require.NoError(t, err)
	assert.False(t, private.IsPublic)

	stored, err := f.groups.Get(ctx, private.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPublic, "private flag survives the round trip")

	createGroup(t, f, admin, "Lobby")
	public, err := f.groups.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "lobby", public[0].Slug)
}

func TestMissingGroupReportsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := f.registerAgent(t, "Ava", "ava")
	ghost := uuid.NewString()

	err := f.groups.Leave(ctx, agent, ghost)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	_, err = f.groups.GetSettings(ctx, agent, ghost)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	err = f.groups.Delete(ctx, agent, ghost)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	_, err = f.groups.UpdatePermissions(ctx, agent, ghost, permissions.Overrides{})
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestPermissionOverrideLetsMemberRename(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.registerAgent(t, "Ava", "ava")
	member := f.registerAgent(t, "Bob", "bob")

	group := createGroup(t, f, admin, "General")
	require.NoError(t, f.groups.Join(ctx, member, group.ID))

	// Default: members cannot rename.
	name := "New Name"
	_, err := f.groups.UpdateSettings(ctx, member, group.ID, SettingsUpdate{Name: &name})
	require.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	// Lower the bar to member.
	memberRole := permissions.RoleMember
	_, err = f.groups.UpdatePermissions(ctx, admin, group.ID, permissions.Overrides{RenameGroup: &memberRole})
	require.NoError(t, err)

	updated, err := f.groups.UpdateSettings(ctx, member, group.ID, SettingsUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	assert.Equal(t, "new-name", updated.Slug)
}

func TestDeleteGroupLockCannotBeLowered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.registerAgent(t, "Ava", "ava")
	group := createGroup(t, f, admin, "General")

	memberRole := permissions.RoleMember
	_, err := f.groups.UpdatePermissions(ctx, admin, group.ID, permissions.Overrides{DeleteGroup: &memberRole})
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
}

func TestOnlyAdminsUpdatePermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.registerAgent(t, "Ava", "ava")
	member := f.registerAgent(t, "Bob", "bob")

	group := createGroup(t, f, admin, "General")
	require.NoError(t, f.groups.Join(ctx, member, group.ID))

	memberRole := permissions.RoleMember
	_, err := f.groups.UpdatePermissions(ctx, member, group.ID, permissions.Overrides{RenameGroup: &memberRole})
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
}

func TestSetMemberRoleGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.registerAgent(t, "Ava", "ava")
	bob := f.registerAgent(t, "Bob", "bob")
	carol := f.registerAgent(t, "Carol", "carol")

	group := createGroup(t, f, admin, "General")
	require.NoError(t, f.groups.Join(ctx, bob, group.ID))
	require.NoError(t, f.groups.Join(ctx, carol, group.ID))

	// Admin promotes Bob to moderator.
	require.NoError(t, f.groups.SetMemberRole(ctx, admin, group.ID, bob.ID, "moderator"))

	// A moderator holds no setRoles permission by default.
	err := f.groups.SetMemberRole(ctx, bob, group.ID, carol.ID, "moderator")
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	// Nobody edits their own role.
	err = f.groups.SetMemberRole(ctx, admin, group.ID, admin.ID, "member")
	assert.Equal(t, apperr.PreconditionFailed, apperr.KindOf(err))

	// Admin cannot mint a second admin's equal via assignment to themselves,
	// but promoting another member to admin is out of strict reach too.
	err = f.groups.SetMemberRole(ctx, admin, group.ID, carol.ID, "admin")
	assert.Equal(t, apperr.PreconditionFailed, apperr.KindOf(err))

	// Unknown roles are rejected at the boundary.
	err = f.groups.SetMemberRole(ctx, admin, group.ID, carol.ID, "owner")
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
}

func TestRemoveMemberHierarchy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.registerAgent(t, "Ava", "ava")
	bob := f.registerAgent(t, "Bob", "bob")
	carol := f.registerAgent(t, "Carol", "carol")

	group := createGroup(t, f, admin, "General")
	require.NoError(t, f.groups.Join(ctx, bob, group.ID))
	require.NoError(t, f.groups.Join(ctx, carol, group.ID))
	require.NoError(t, f.groups.SetMemberRole(ctx, admin, group.ID, bob.ID, "moderator"))

	// A plain member cannot remove anyone.
	err := f.groups.RemoveMember(ctx, carol, group.ID, bob.ID)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	// A moderator cannot remove an admin.
	err = f.groups.RemoveMember(ctx, bob, group.ID, admin.ID)
	assert.Equal(t, apperr.PreconditionFailed, apperr.KindOf(err))

	// A moderator removes a member.
	require.NoError(t, f.groups.RemoveMember(ctx, bob, group.ID, carol.ID))
}

func TestPinRequiresMessageInGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.registerAgent(t, "Ava", "ava")
	groupA := createGroup(t, f, admin, "Alpha")
	groupB := createGroup(t, f, admin, "Beta")

	msg, err := f.messaging.Send(ctx, admin, groupA.ID, "hello", nil)
	require.NoError(t, err)

	err = f.groups.Pin(ctx, admin, groupB.ID, msg.ID)
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))

	require.NoError(t, f.groups.Pin(ctx, admin, groupA.ID, msg.ID))

	// Pinning twice conflicts.
	err = f.groups.Pin(ctx, admin, groupA.ID, msg.ID)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	settings, err := f.groups.GetSettings(ctx, admin, groupA.ID)
	require.NoError(t, err)
	require.Len(t, settings.Pinned, 1)
	assert.Equal(t, msg.ID, settings.Pinned[0].MessageID)
}

func TestDeleteGroupCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.registerAgent(t, "Ava", "ava")
	member := f.registerAgent(t, "Bob", "bob")

	group := createGroup(t, f, admin, "General")
	require.NoError(t, f.groups.Join(ctx, member, group.ID))
	_, err := f.messaging.Send(ctx, member, group.ID, "hi", nil)
	require.NoError(t, err)

	// Members cannot delete.
	err = f.groups.Delete(ctx, member, group.ID)
	require.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	require.NoError(t, f.groups.Delete(ctx, admin, group.ID))
	_, err = f.groups.Get(ctx, group.ID)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}
