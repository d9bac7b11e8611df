package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawlink/clawlink/internal/db/models"
)

func TestRoleLevels(t *testing.T) {
	assert.Equal(t, 3, RoleAdmin.Level())
	assert.Equal(t, 2, RoleModerator.Level())
	assert.Equal(t, 1, RoleMember.Level())
	assert.Equal(t, 0, Role("owner").Level())
}

func TestHasPermission(t *testing.T) {
	assert.True(t, HasPermission(RoleAdmin, RoleMember))
	assert.True(t, HasPermission(RoleModerator, RoleModerator))
	assert.False(t, HasPermission(RoleMember, RoleModerator))
	assert.False(t, HasPermission(Role("bogus"), RoleMember))
}

func TestCanModifyRoleIsStrict(t *testing.T) {
	assert.True(t, CanModifyRole(RoleAdmin, RoleModerator))
	assert.True(t, CanModifyRole(RoleModerator, RoleMember))
	assert.False(t, CanModifyRole(RoleAdmin, RoleAdmin))
	assert.False(t, CanModifyRole(RoleMember, RoleAdmin))
}

func TestRequiredRoleDefaults(t *testing.T) {
	assert.Equal(t, RoleAdmin, RequiredRole(nil, ActionRenameGroup))
	assert.Equal(t, RoleModerator, RequiredRole(nil, ActionRemoveMembers))
	assert.Equal(t, RoleMember, RequiredRole(nil, ActionInviteMembers))
}

func TestRequiredRoleOverrides(t *testing.T) {
	perms := DefaultRow("g1")
	perms.RenameGroup = string(RoleMember)
	assert.Equal(t, RoleMember, RequiredRole(perms, ActionRenameGroup))

	// Garbage stored values fall back to defaults.
	perms.PinMessages = "superuser"
	assert.Equal(t, RoleModerator, RequiredRole(perms, ActionPinMessages))
}

func TestDeleteGroupIsLocked(t *testing.T) {
	perms := DefaultRow("g1")
	perms.DeleteGroup = string(RoleMember) // stored garbage must not unlock it
	assert.Equal(t, RoleAdmin, RequiredRole(perms, ActionDeleteGroup))
}

func TestEvaluate(t *testing.T) {
	member := &models.GroupMember{GroupID: "g1", AgentID: "a1", Role: string(RoleMember)}

	check := Evaluate(member, nil, ActionInviteMembers)
	assert.True(t, check.Allowed)
	assert.Equal(t, RoleMember, check.ActorRole)

	check = Evaluate(member, nil, ActionRenameGroup)
	require.False(t, check.Allowed)
	assert.Equal(t, RoleAdmin, check.RequiredRole)
	assert.NotEmpty(t, check.Reason)

	check = Evaluate(nil, nil, ActionInviteMembers)
	require.False(t, check.Allowed)
	assert.Equal(t, "not a member of this group", check.Reason)
}

func TestOverridesValidate(t *testing.T) {
	member := RoleMember
	admin := RoleAdmin
	bogus := Role("bogus")

	o := &Overrides{RenameGroup: &member}
	assert.Empty(t, o.Validate())

	o = &Overrides{DeleteGroup: &admin}
	assert.Empty(t, o.Validate())

	o = &Overrides{DeleteGroup: &member}
	assert.Equal(t, "deleteGroup", o.Validate())

	o = &Overrides{SetRoles: &bogus}
	assert.Equal(t, "setRoles", o.Validate())
}

func TestOverridesApply(t *testing.T) {
	member := RoleMember
	perms := DefaultRow("g1")
	(&Overrides{RenameGroup: &member}).Apply(perms)
	assert.Equal(t, string(RoleMember), perms.RenameGroup)
	// Untouched fields keep their values.
	assert.Equal(t, string(RoleAdmin), perms.SetRoles)
}
