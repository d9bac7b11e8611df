package ownerauth

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawlink/clawlink/internal/apperr"
)

func TestDisabledWithoutSecret(t *testing.T) {
	s := NewSessions("", clock.NewMock())
	assert.False(t, s.Enabled())

	_, err := s.Mint("ext-1", "ava")
	assert.Equal(t, apperr.PreconditionFailed, apperr.KindOf(err))
	_, err = s.Validate("anything")
	assert.Equal(t, apperr.PreconditionFailed, apperr.KindOf(err))
}

func TestMintValidateRoundTrip(t *testing.T) {
	clk := clock.NewMock()
	s := NewSessions("secret", clk)
	require.True(t, s.Enabled())

	token, err := s.Mint("ext-1", "ava")
	require.NoError(t, err)

	claims, err := s.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ext-1", claims.ExternalID)
	assert.Equal(t, "ava", claims.Handle)
	assert.Equal(t, "clawlink", claims.Issuer)
}

func TestSessionExpires(t *testing.T) {
	clk := clock.NewMock()
	s := NewSessions("secret", clk)

	token, err := s.Mint("ext-1", "ava")
	require.NoError(t, err)

	clk.Add(sessionTTL + time.Minute)
	_, err = s.Validate(token)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	clk := clock.NewMock()
	token, err := NewSessions("other-secret", clk).Mint("ext-1", "ava")
	require.NoError(t, err)

	_, err = NewSessions("secret", clk).Validate(token)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}

func TestChallengeConsumeIsOneShot(t *testing.T) {
	s := NewSessions("secret", clock.NewMock())
	s.RegisterChallenge("state-1", ChallengeS256("verifier"))

	require.NoError(t, s.ConsumeChallenge("state-1", "verifier"))

	err := s.ConsumeChallenge("state-1", "verifier")
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}

func TestChallengeVerifierMismatch(t *testing.T) {
	s := NewSessions("secret", clock.NewMock())
	s.RegisterChallenge("state-1", ChallengeS256("verifier"))

	err := s.ConsumeChallenge("state-1", "wrong")
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))

	// The challenge burned on the failed attempt.
	err = s.ConsumeChallenge("state-1", "verifier")
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}

func TestChallengeExpires(t *testing.T) {
	clk := clock.NewMock()
	s := NewSessions("secret", clk)
	s.RegisterChallenge("state-1", ChallengeS256("verifier"))

	clk.Add(challengeTTL + time.Second)
	err := s.ConsumeChallenge("state-1", "verifier")
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}
