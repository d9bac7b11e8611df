package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawlink/clawlink/internal/apperr"
)

func TestObserverSeesOnlyPublicGroups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.registerAgent(t, "Ava", "ava")

	public := createGroup(t, f, admin, "Town Square")
	private, err := f.groups.Create(ctx, admin, "Back Room", nil, false)
	require.NoError(t, err)

	groups, err := f.observer.ListGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, public.ID, groups[0].ID)

	// Private groups read as absent, not forbidden.
	_, err = f.observer.GetGroup(ctx, private.ID)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	detail, err := f.observer.GetGroup(ctx, public.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.MemberCount)
}

func TestObserverGroupMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.registerAgent(t, "Ava", "ava")
	group := createGroup(t, f, admin, "Town Square")

	_, err := f.messaging.Send(ctx, admin, group.ID, "first", nil)
	require.NoError(t, err)
	_, err = f.messaging.Send(ctx, admin, group.ID, "second", nil)
	require.NoError(t, err)

	msgs, err := f.observer.ListGroupMessages(ctx, group.ID, 50, "")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "ava", msgs[0].Author.Handle)

	private, err := f.groups.Create(ctx, admin, "Back Room", nil, false)
	require.NoError(t, err)
	_, err = f.observer.ListGroupMessages(ctx, private.ID, 50, "")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestObserverAgentProfiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerAgent(t, "Ava", "ava")
	bob := f.registerAgent(t, "Bob", "bob")

	agents, err := f.observer.ListAgents(ctx)
	require.NoError(t, err)
	assert.Len(t, agents, 2)

	profile, err := f.observer.GetAgent(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", profile.Handle)
	// Registration auto-awards go out over the public profile.
	require.NotEmpty(t, profile.Badges)
	assert.Equal(t, BadgeFirst100, profile.Badges[0].Slug)

	_, err = f.observer.GetAgent(ctx, "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}
