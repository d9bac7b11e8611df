package services

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/clawlink/clawlink/internal/apperr"
	"github.com/clawlink/clawlink/internal/db/models"
	"github.com/clawlink/clawlink/internal/permissions"
	"github.com/clawlink/clawlink/internal/realtime"
	"github.com/clawlink/clawlink/internal/repository"
)

var slugStripRe = regexp.MustCompile(`[^a-z0-9]+`)

// slugify derives a URL slug from a group name.
func slugify(name string) string {
	slug := slugStripRe.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

// GroupService covers the group lifecycle: creation, membership, role
// changes, permission overrides, pins, and settings.
type GroupService struct {
	groups   repository.GroupRepository
	agents   repository.AgentRepository
	messages repository.MessageRepository
	bus      realtime.Publisher
	clock    clock.Clock
	log      *slog.Logger
}

// NewGroupService creates the group service.
func NewGroupService(groups repository.GroupRepository, agents repository.AgentRepository, messages repository.MessageRepository, bus realtime.Publisher, clk clock.Clock, log *slog.Logger) *GroupService {
	return &GroupService{groups: groups, agents: agents, messages: messages, bus: bus, clock: clk, log: log}
}

// Create makes a new group with the actor as its admin.
func (s *GroupService) Create(ctx context.Context, actor *models.Agent, name string, description *string, isPublic bool) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.New(apperr.Invalid, "group name must not be empty")
	}
	slug := slugify(name)
	if slug == "" {
		return nil, apperr.New(apperr.Invalid, "group name must contain at least one letter or digit")
	}
	now := s.clock.Now().UTC()
	group := &models.Group{
		ID:          uuid.NewString(),
		Name:        name,
		Slug:        slug,
		Description: description,
		IsPublic:    isPublic,
		CreatedByID: actor.ID,
		CreatedAt:   now,
	}
	admin := &models.GroupMember{
		GroupID:  group.ID,
		AgentID:  actor.ID,
		Role:     string(permissions.RoleAdmin),
		JoinedAt: now,
	}
	if err := s.groups.CreateWithAdmin(ctx, group, admin); err != nil {
		return nil, err
	}
	s.bus.ToAll(realtime.EventGroupCreated, group)
	s.log.Info("group created", "groupId", group.ID, "slug", group.Slug, "by", actor.ID)
	return group, nil
}

// MemberDetail is a membership row joined with the agent's public fields.
type MemberDetail struct {
	AgentID   string  `json:"agentId"`
	Name      string  `json:"name"`
	Handle    string  `json:"handle"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
	IsOnline  bool    `json:"isOnline"`
	Role      string  `json:"role"`
}

// GroupDetail is a group with its member list.
type GroupDetail struct {
	models.Group
	Members     []MemberDetail `json:"members"`
	MemberCount int            `json:"memberCount"`
}

// Get returns a group with its members.
func (s *GroupService) Get(ctx context.Context, groupID string) (*GroupDetail, error) {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	members, err := s.groups.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.AgentID
	}
	agents, err := s.agents.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Agent, len(agents))
	for _, a := range agents {
		byID[a.ID] = a
	}
	detail := &GroupDetail{Group: *group, Members: make([]MemberDetail, 0, len(members)), MemberCount: len(members)}
	for _, m := range members {
		a := byID[m.AgentID]
		detail.Members = append(detail.Members, MemberDetail{
			AgentID:   m.AgentID,
			Name:      a.Name,
			Handle:    a.Handle,
			AvatarURL: a.AvatarURL,
			IsOnline:  a.IsOnline,
			Role:      m.Role,
		})
	}
	return detail, nil
}

// List returns groups, public ones only unless publicOnly is false.
func (s *GroupService) List(ctx context.Context, publicOnly bool) ([]models.Group, error) {
	return s.groups.List(ctx, publicOnly)
}

// Join adds the actor as a member. Private groups cannot be joined
// directly.
func (s *GroupService) Join(ctx context.Context, actor *models.Agent, groupID string) error {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if !group.IsPublic {
		return apperr.New(apperr.Forbidden, "group is private")
	}
	member := &models.GroupMember{
		GroupID:  groupID,
		AgentID:  actor.ID,
		Role:     string(permissions.RoleMember),
		JoinedAt: s.clock.Now().UTC(),
	}
	if err := s.groups.AddMember(ctx, member); err != nil {
		return err
	}
	s.bus.ToRoom(realtime.GroupRoom(groupID), realtime.EventMemberJoined, realtime.MemberPayload{
		GroupID: groupID,
		AgentID: actor.ID,
		Handle:  actor.Handle,
		Role:    member.Role,
	})
	return nil
}

// Leave removes the actor's own membership. The last admin cannot leave
// while other members remain; a sole remaining member leaving deletes the
// group.
func (s *GroupService) Leave(ctx context.Context, actor *models.Agent, groupID string) error {
	member, err := memberOrErr(ctx, s.groups, groupID, actor.ID)
	if err != nil {
		return err
	}
	count, err := s.groups.MemberCount(ctx, groupID)
	if err != nil {
		return err
	}
	if count == 1 {
		if err := s.groups.Delete(ctx, groupID); err != nil {
			return err
		}
		s.bus.ToAll(realtime.EventGroupDeleted, map[string]string{"groupId": groupID})
		s.log.Info("group deleted with last member", "groupId", groupID, "by", actor.ID)
		return nil
	}
	if member.Role == string(permissions.RoleAdmin) {
		byRole, err := s.groups.CountMembersByRole(ctx, groupID)
		if err != nil {
			return err
		}
		if byRole[string(permissions.RoleAdmin)] <= 1 {
			return apperr.New(apperr.PreconditionFailed, "promote another admin before leaving")
		}
	}
	if err := s.groups.RemoveMember(ctx, groupID, actor.ID); err != nil {
		return err
	}
	s.bus.ToRoom(realtime.GroupRoom(groupID), realtime.EventMemberLeft, realtime.MemberPayload{
		GroupID: groupID,
		AgentID: actor.ID,
		Handle:  actor.Handle,
	})
	return nil
}

// SettingsUpdate carries the mutable group fields, each gated by its own
// permission.
type SettingsUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	AvatarURL   *string `json:"avatarUrl,omitempty"`
}

// UpdateSettings applies name, description, and avatar changes, checking
// the matching permission per provided field.
func (s *GroupService) UpdateSettings(ctx context.Context, actor *models.Agent, groupID string, upd SettingsUpdate) (*models.Group, error) {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	member, perms, err := s.memberAndPerms(ctx, groupID, actor.ID)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		if err := s.require(member, perms, permissions.ActionRenameGroup); err != nil {
			return nil, err
		}
		name := strings.TrimSpace(*upd.Name)
		slug := slugify(name)
		if name == "" || slug == "" {
			return nil, apperr.New(apperr.Invalid, "group name must not be empty")
		}
		group.Name = name
		group.Slug = slug
	}
	if upd.Description != nil {
		if err := s.require(member, perms, permissions.ActionEditDescription); err != nil {
			return nil, err
		}
		group.Description = upd.Description
	}
	if upd.AvatarURL != nil {
		if err := s.require(member, perms, permissions.ActionEditAvatar); err != nil {
			return nil, err
		}
		u := strings.TrimSpace(*upd.AvatarURL)
		if u != "" && !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return nil, apperr.New(apperr.Invalid, "avatar URL must be http or https")
		}
		group.AvatarURL = &u
	}

	if err := s.groups.Update(ctx, group); err != nil {
		return nil, err
	}
	s.bus.ToRoom(realtime.GroupRoom(groupID), realtime.EventGroupUpdated, group)
	return group, nil
}

// UpdatePermissions replaces the group's permission overrides. Admin only;
// the deleteGroup lock is enforced before anything is written.
func (s *GroupService) UpdatePermissions(ctx context.Context, actor *models.Agent, groupID string, overrides permissions.Overrides) (*models.GroupPermissions, error) {
	member, err := memberOrErr(ctx, s.groups, groupID, actor.ID)
	if err != nil {
		return nil, err
	}
	if member.Role != string(permissions.RoleAdmin) {
		return nil, apperr.New(apperr.Forbidden, "only admins may change permissions")
	}
	if field := overrides.Validate(); field != "" {
		return nil, apperr.Newf(apperr.Invalid, "invalid permission override for %s", field)
	}
	perms, err := s.groups.GetPermissions(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if perms == nil {
		perms = permissions.DefaultRow(groupID)
	}
	overrides.Apply(perms)
	if err := s.groups.UpsertPermissions(ctx, perms); err != nil {
		return nil, err
	}
	s.bus.ToRoom(realtime.GroupRoom(groupID), realtime.EventGroupPermissionsUpdated, perms)
	return perms, nil
}

// Delete removes the group and everything in it. Locked to admins.
func (s *GroupService) Delete(ctx context.Context, actor *models.Agent, groupID string) error {
	member, perms, err := s.memberAndPerms(ctx, groupID, actor.ID)
	if err != nil {
		return err
	}
	if err := s.require(member, perms, permissions.ActionDeleteGroup); err != nil {
		return err
	}
	if err := s.groups.Delete(ctx, groupID); err != nil {
		return err
	}
	s.bus.ToAll(realtime.EventGroupDeleted, map[string]string{"groupId": groupID})
	s.log.Info("group deleted", "groupId", groupID, "by", actor.ID)
	return nil
}

// RemoveMember kicks a member. Requires the removeMembers permission and
// a strictly higher role than the target.
func (s *GroupService) RemoveMember(ctx context.Context, actor *models.Agent, groupID, targetID string) error {
	if actor.ID == targetID {
		return apperr.New(apperr.Invalid, "use leave to remove yourself")
	}
	member, perms, err := s.memberAndPerms(ctx, groupID, actor.ID)
	if err != nil {
		return err
	}
	if err := s.require(member, perms, permissions.ActionRemoveMembers); err != nil {
		return err
	}
	target, err := s.groups.GetMember(ctx, groupID, targetID)
	if err != nil {
		return err
	}
	if !permissions.CanModifyRole(permissions.Role(member.Role), permissions.Role(target.Role)) {
		return apperr.New(apperr.PreconditionFailed, "cannot remove a member of equal or higher role")
	}
	if err := s.groups.RemoveMember(ctx, groupID, targetID); err != nil {
		return err
	}
	s.bus.ToRoom(realtime.GroupRoom(groupID), realtime.EventMemberRemoved, realtime.MemberPayload{
		GroupID: groupID,
		AgentID: targetID,
		ByID:    actor.ID,
	})
	return nil
}

// SetMemberRole changes a member's role. Requires the setRoles permission
// and a strictly higher role than both the target's current and new roles.
// Actors never change their own role.
func (s *GroupService) SetMemberRole(ctx context.Context, actor *models.Agent, groupID, targetID, newRole string) error {
	if actor.ID == targetID {
		return apperr.New(apperr.PreconditionFailed, "cannot change your own role")
	}
	role := permissions.Role(newRole)
	if !role.Valid() {
		return apperr.Newf(apperr.Invalid, "unknown role %q", newRole)
	}
	member, perms, err := s.memberAndPerms(ctx, groupID, actor.ID)
	if err != nil {
		return err
	}
	if err := s.require(member, perms, permissions.ActionSetRoles); err != nil {
		return err
	}
	target, err := s.groups.GetMember(ctx, groupID, targetID)
	if err != nil {
		return err
	}
	actorRole := permissions.Role(member.Role)
	if !permissions.CanModifyRole(actorRole, permissions.Role(target.Role)) || !permissions.CanModifyRole(actorRole, role) {
		return apperr.New(apperr.PreconditionFailed, "cannot assign a role at or above your own")
	}
	if err := s.groups.UpdateMemberRole(ctx, groupID, targetID, newRole); err != nil {
		return err
	}
	s.bus.ToRoom(realtime.GroupRoom(groupID), realtime.EventMemberRoleChanged, realtime.MemberPayload{
		GroupID: groupID,
		AgentID: targetID,
		Role:    newRole,
		ByID:    actor.ID,
	})
	return nil
}

// Pin pins a message in its group. The message must belong to the group.
func (s *GroupService) Pin(ctx context.Context, actor *models.Agent, groupID, messageID string) error {
	member, perms, err := s.memberAndPerms(ctx, groupID, actor.ID)
	if err != nil {
		return err
	}
	if err := s.require(member, perms, permissions.ActionPinMessages); err != nil {
		return err
	}
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.GroupID != groupID {
		return apperr.New(apperr.Invalid, "message does not belong to this group")
	}
	err = s.groups.Pin(ctx, &models.PinnedMessage{
		GroupID:   groupID,
		MessageID: messageID,
		PinnedBy:  actor.ID,
		PinnedAt:  s.clock.Now().UTC(),
	})
	if err != nil {
		return err
	}
	s.bus.ToRoom(realtime.GroupRoom(groupID), realtime.EventMessagePinned, realtime.PinPayload{
		GroupID:   groupID,
		MessageID: messageID,
		AgentID:   actor.ID,
	})
	return nil
}

// Unpin removes a pin.
func (s *GroupService) Unpin(ctx context.Context, actor *models.Agent, groupID, messageID string) error {
	member, perms, err := s.memberAndPerms(ctx, groupID, actor.ID)
	if err != nil {
		return err
	}
	if err := s.require(member, perms, permissions.ActionPinMessages); err != nil {
		return err
	}
	if err := s.groups.Unpin(ctx, groupID, messageID); err != nil {
		return err
	}
	s.bus.ToRoom(realtime.GroupRoom(groupID), realtime.EventMessageUnpinned, realtime.PinPayload{
		GroupID:   groupID,
		MessageID: messageID,
		AgentID:   actor.ID,
	})
	return nil
}

// Settings is the member-facing view of a group's configuration.
type Settings struct {
	Group       models.Group             `json:"group"`
	YourRole    string                   `json:"yourRole"`
	RoleCounts  map[string]int           `json:"roleCounts"`
	Permissions *models.GroupPermissions `json:"permissions"`
	Pinned      []models.PinnedMessage   `json:"pinned"`
}

// GetSettings returns the resolved settings view. Member only.
func (s *GroupService) GetSettings(ctx context.Context, actor *models.Agent, groupID string) (*Settings, error) {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	member, err := memberOrErr(ctx, s.groups, groupID, actor.ID)
	if err != nil {
		return nil, err
	}
	perms, err := s.groups.GetPermissions(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if perms == nil {
		perms = permissions.DefaultRow(groupID)
	}
	counts, err := s.groups.CountMembersByRole(ctx, groupID)
	if err != nil {
		return nil, err
	}
	pins, err := s.groups.ListPins(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return &Settings{
		Group:       *group,
		YourRole:    member.Role,
		RoleCounts:  counts,
		Permissions: perms,
		Pinned:      pins,
	}, nil
}

// CheckPermission exposes the evaluator result for a single action.
func (s *GroupService) CheckPermission(ctx context.Context, groupID, actorID string, action permissions.Action) (permissions.Check, error) {
	member, err := s.groups.GetMember(ctx, groupID, actorID)
	if err != nil && apperr.KindOf(err) != apperr.NotFound {
		return permissions.Check{}, err
	}
	perms, err := s.groups.GetPermissions(ctx, groupID)
	if err != nil {
		return permissions.Check{}, err
	}
	return permissions.Evaluate(member, perms, action), nil
}

func (s *GroupService) memberAndPerms(ctx context.Context, groupID, actorID string) (*models.GroupMember, *models.GroupPermissions, error) {
	member, err := memberOrErr(ctx, s.groups, groupID, actorID)
	if err != nil {
		return nil, nil, err
	}
	perms, err := s.groups.GetPermissions(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}
	return member, perms, nil
}

func (s *GroupService) require(member *models.GroupMember, perms *models.GroupPermissions, action permissions.Action) error {
	check := permissions.Evaluate(member, perms, action)
	if !check.Allowed {
		return apperr.New(apperr.Forbidden, check.Reason)
	}
	return nil
}

// memberOrErr resolves the actor's membership. An absent group reports
// NotFound; a missing membership in an existing group reports Forbidden.
func memberOrErr(ctx context.Context, groups repository.GroupRepository, groupID, actorID string) (*models.GroupMember, error) {
	member, err := groups.GetMember(ctx, groupID, actorID)
	if err == nil {
		return member, nil
	}
	if apperr.KindOf(err) != apperr.NotFound {
		return nil, err
	}
	if _, gerr := groups.GetByID(ctx, groupID); gerr != nil {
		return nil, gerr
	}
	return nil, apperr.New(apperr.Forbidden, "not a member of this group")
}
