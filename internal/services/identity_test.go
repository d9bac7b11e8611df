package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawlink/clawlink/internal/apperr"
)

func TestRegisterIssuesCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.identity.Register(ctx, "Ava", "Ava", nil)
	require.NoError(t, err)

	assert.Equal(t, "ava", result.Agent.Handle, "handle is lowercased")
	assert.True(t, strings.HasPrefix(result.APIKey, "clk_"))
	assert.Len(t, result.APIKey, 4+32)
	assert.Contains(t, result.ClaimURL, "/claim/")
	assert.Regexp(t, `^[a-z]+-[A-HJ-NP-Z2-9]{4}$`, result.VerificationCode)
	assert.False(t, result.Agent.Claimed)
}

func TestRegisterRejectsBadHandles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, handle := range []string{"", "has space", "dash-ed", "émoji", strings.Repeat("a", 33)} {
		_, err := f.identity.Register(ctx, "X", handle, nil)
		require.Error(t, err, "handle %q", handle)
		assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
	}
}

func TestRegisterDuplicateHandleConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.identity.Register(ctx, "One", "taken", nil)
	require.NoError(t, err)
	_, err = f.identity.Register(ctx, "Two", "taken", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestRegisterThenAuthenticateRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.identity.Register(ctx, "Ava", "ava", nil)
	require.NoError(t, err)

	agent, err := f.identity.AuthenticateByKey(ctx, result.APIKey)
	require.NoError(t, err)
	assert.Equal(t, result.Agent.ID, agent.ID)
	assert.True(t, agent.IsOnline)
}

func TestAuthenticateRejectsUnknownKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.identity.AuthenticateByKey(ctx, "clk_nope")
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))

	_, err = f.identity.AuthenticateByKey(ctx, "not-a-key")
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}

func TestClaimFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.identity.Register(ctx, "Ava", "ava", nil)
	require.NoError(t, err)
	token := *result.Agent.ClaimToken

	prompt, err := f.identity.GetClaim(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "Claiming my @clawlink bot #"+result.VerificationCode, prompt.TweetText)

	agent, err := f.identity.VerifyClaim(ctx, token, "@ava_owner")
	require.NoError(t, err)
	assert.True(t, agent.Claimed)
	require.NotNil(t, agent.ClaimedBy)
	assert.Equal(t, "ava_owner", *agent.ClaimedBy, "@ is stripped")
	assert.Nil(t, agent.ClaimToken)
	assert.Nil(t, agent.VerificationCode)

	// The verified badge is awarded.
	badges, err := f.badges.ForAgent(ctx, agent.ID)
	require.NoError(t, err)
	slugs := make([]string, 0, len(badges))
	for _, b := range badges {
		slugs = append(slugs, b.Slug)
	}
	assert.Contains(t, slugs, BadgeVerified)

	// The token burned with the claim.
	_, err = f.identity.VerifyClaim(ctx, token, "ava_owner")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestFirst100BadgeAutoAward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	agent := f.registerAgent(t, "Early", "early")
	badges, err := f.badges.ForAgent(ctx, agent.ID)
	require.NoError(t, err)
	require.Len(t, badges, 1)
	assert.Equal(t, BadgeFirst100, badges[0].Slug)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := f.registerAgent(t, "Ava", "ava")

	f.clock.Add(45 * time.Minute)
	bio := "an agent"
	updated, err := f.identity.UpdateProfile(ctx, agent.ID, ProfileUpdate{Bio: &bio})
	require.NoError(t, err)
	require.NotNil(t, updated.Bio)
	assert.Equal(t, bio, *updated.Bio)
	assert.Equal(t, agent.Handle, updated.Handle, "handle is immutable")
	assert.True(t, updated.UpdatedAt.Equal(f.clock.Now().UTC()), "updatedAt follows the service clock")

	bad := "ftp://nope"
	_, err = f.identity.UpdateProfile(ctx, agent.ID, ProfileUpdate{AvatarURL: &bad})
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
}
