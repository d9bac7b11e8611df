// Package permissions is the pure role-lattice layer: it maps
// (group, actor, action) to an allow/deny decision using the role hierarchy
// and per-group minimum-role overrides. It touches no storage.
package permissions

import "github.com/clawlink/clawlink/internal/db/models"

// Role is a group membership role.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleMember    Role = "member"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleModerator || r == RoleMember
}

// Level returns the numeric rank of a role: admin=3 > moderator=2 > member=1.
// Unknown roles rank 0.
func (r Role) Level() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleModerator:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}

// Action is one of the nine role-gated group actions.
type Action string

const (
	ActionRenameGroup      Action = "renameGroup"
	ActionEditDescription  Action = "editDescription"
	ActionEditAvatar       Action = "editAvatar"
	ActionDeleteGroup      Action = "deleteGroup" // locked to admin
	ActionRemoveMembers    Action = "removeMembers"
	ActionSetRoles         Action = "setRoles"
	ActionInviteMembers    Action = "inviteMembers"
	ActionPinMessages      Action = "pinMessages"
	ActionDeleteAnyMessage Action = "deleteAnyMessage"
)

// Actions lists all gated actions in a stable order.
var Actions = []Action{
	ActionRenameGroup,
	ActionEditDescription,
	ActionEditAvatar,
	ActionDeleteGroup,
	ActionRemoveMembers,
	ActionSetRoles,
	ActionInviteMembers,
	ActionPinMessages,
	ActionDeleteAnyMessage,
}

// Defaults maps each action to its default minimum role.
var Defaults = map[Action]Role{
	ActionRenameGroup:      RoleAdmin,
	ActionEditDescription:  RoleAdmin,
	ActionEditAvatar:       RoleAdmin,
	ActionDeleteGroup:      RoleAdmin,
	ActionRemoveMembers:    RoleModerator,
	ActionSetRoles:         RoleAdmin,
	ActionInviteMembers:    RoleMember,
	ActionPinMessages:      RoleModerator,
	ActionDeleteAnyMessage: RoleModerator,
}

// HasPermission reports whether userRole meets requiredRole.
func HasPermission(userRole, requiredRole Role) bool {
	return userRole.Level() >= requiredRole.Level()
}

// CanModifyRole reports whether actorRole strictly outranks targetRole.
// Used for both removing members and changing their roles.
func CanModifyRole(actorRole, targetRole Role) bool {
	return actorRole.Level() > targetRole.Level()
}

// RequiredRole resolves the minimum role for an action from the group's
// override row, falling back to defaults when the row is absent.
// DeleteGroup always resolves to admin regardless of stored overrides.
func RequiredRole(perms *models.GroupPermissions, action Action) Role {
	if action == ActionDeleteGroup {
		return RoleAdmin
	}
	if perms == nil {
		return Defaults[action]
	}
	var v string
	switch action {
	case ActionRenameGroup:
		v = perms.RenameGroup
	case ActionEditDescription:
		v = perms.EditDescription
	case ActionEditAvatar:
		v = perms.EditAvatar
	case ActionRemoveMembers:
		v = perms.RemoveMembers
	case ActionSetRoles:
		v = perms.SetRoles
	case ActionInviteMembers:
		v = perms.InviteMembers
	case ActionPinMessages:
		v = perms.PinMessages
	case ActionDeleteAnyMessage:
		v = perms.DeleteAnyMessage
	}
	if r := Role(v); r.Valid() {
		return r
	}
	return Defaults[action]
}

// Check is the result of a permission evaluation.
type Check struct {
	Allowed      bool   `json:"allowed"`
	ActorRole    Role   `json:"actorRole,omitempty"`
	RequiredRole Role   `json:"requiredRole"`
	Reason       string `json:"reason,omitempty"`
}

// Evaluate decides whether the member may perform action under the group's
// overrides. A nil member means the actor is not in the group.
func Evaluate(member *models.GroupMember, perms *models.GroupPermissions, action Action) Check {
	required := RequiredRole(perms, action)
	if member == nil {
		return Check{
			Allowed:      false,
			RequiredRole: required,
			Reason:       "not a member of this group",
		}
	}
	actor := Role(member.Role)
	if !HasPermission(actor, required) {
		return Check{
			Allowed:      false,
			ActorRole:    actor,
			RequiredRole: required,
			Reason:       "requires " + string(required) + " role",
		}
	}
	return Check{Allowed: true, ActorRole: actor, RequiredRole: required}
}

// ApplyOverrides copies the valid fields of an override request onto a
// permissions row, reporting an attempt to unlock deleteGroup.
type Overrides struct {
	RenameGroup      *Role `json:"renameGroup,omitempty"`
	EditDescription  *Role `json:"editDescription,omitempty"`
	EditAvatar       *Role `json:"editAvatar,omitempty"`
	DeleteGroup      *Role `json:"deleteGroup,omitempty"`
	RemoveMembers    *Role `json:"removeMembers,omitempty"`
	SetRoles         *Role `json:"setRoles,omitempty"`
	InviteMembers    *Role `json:"inviteMembers,omitempty"`
	PinMessages      *Role `json:"pinMessages,omitempty"`
	DeleteAnyMessage *Role `json:"deleteAnyMessage,omitempty"`
}

// Validate checks every provided role value and enforces the deleteGroup
// lock. Returns the offending field name, or "" when the overrides are ok.
func (o *Overrides) Validate() string {
	fields := map[string]*Role{
		"renameGroup":      o.RenameGroup,
		"editDescription":  o.EditDescription,
		"editAvatar":       o.EditAvatar,
		"deleteGroup":      o.DeleteGroup,
		"removeMembers":    o.RemoveMembers,
		"setRoles":         o.SetRoles,
		"inviteMembers":    o.InviteMembers,
		"pinMessages":      o.PinMessages,
		"deleteAnyMessage": o.DeleteAnyMessage,
	}
	for name, r := range fields {
		if r == nil {
			continue
		}
		if !r.Valid() {
			return name
		}
		if name == "deleteGroup" && *r != RoleAdmin {
			return name
		}
	}
	return ""
}

// Apply writes the provided overrides onto the row.
func (o *Overrides) Apply(perms *models.GroupPermissions) {
	set := func(dst *string, src *Role) {
		if src != nil {
			*dst = string(*src)
		}
	}
	set(&perms.RenameGroup, o.RenameGroup)
	set(&perms.EditDescription, o.EditDescription)
	set(&perms.EditAvatar, o.EditAvatar)
	set(&perms.DeleteGroup, o.DeleteGroup)
	set(&perms.RemoveMembers, o.RemoveMembers)
	set(&perms.SetRoles, o.SetRoles)
	set(&perms.InviteMembers, o.InviteMembers)
	set(&perms.PinMessages, o.PinMessages)
	set(&perms.DeleteAnyMessage, o.DeleteAnyMessage)
}

// DefaultRow returns a permissions row populated with the defaults.
func DefaultRow(groupID string) *models.GroupPermissions {
	return &models.GroupPermissions{
		GroupID:          groupID,
		RenameGroup:      string(Defaults[ActionRenameGroup]),
		EditDescription:  string(Defaults[ActionEditDescription]),
		EditAvatar:       string(Defaults[ActionEditAvatar]),
		DeleteGroup:      string(Defaults[ActionDeleteGroup]),
		RemoveMembers:    string(Defaults[ActionRemoveMembers]),
		SetRoles:         string(Defaults[ActionSetRoles]),
		InviteMembers:    string(Defaults[ActionInviteMembers]),
		PinMessages:      string(Defaults[ActionPinMessages]),
		DeleteAnyMessage: string(Defaults[ActionDeleteAnyMessage]),
	}
}
