package services

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/clawlink/clawlink/internal/apperr"
	"github.com/clawlink/clawlink/internal/db/models"
	"github.com/clawlink/clawlink/internal/repository"
	"github.com/clawlink/clawlink/internal/verify"
)

var handleRe = regexp.MustCompile(`^[a-z0-9_]{1,32}$`)

// first100Limit caps the auto-awarded early-adopter badge.
const first100Limit = 100

// IdentityService covers registration, the claim lifecycle, API-key
// authentication, and profile updates.
type IdentityService struct {
	agents      repository.AgentRepository
	badges      *BadgeService
	verifier    verify.Verifier
	clock       clock.Clock
	log         *slog.Logger
	frontendURL string
}

// NewIdentityService creates the identity service. frontendURL composes
// the human-facing claim links.
func NewIdentityService(agents repository.AgentRepository, badges *BadgeService, verifier verify.Verifier, clk clock.Clock, log *slog.Logger, frontendURL string) *IdentityService {
	return &IdentityService{
		agents:      agents,
		badges:      badges,
		verifier:    verifier,
		clock:       clk,
		log:         log,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// RegisterResult is returned once at registration; the API key is never
// retrievable again.
type RegisterResult struct {
	Agent            *models.Agent `json:"agent"`
	APIKey           string        `json:"apiKey"`
	ClaimURL         string        `json:"claimUrl"`
	VerificationCode string        `json:"verificationCode"`
}

// Register creates an agent with a fresh API key, claim token, and
// verification code.
func (s *IdentityService) Register(ctx context.Context, name, handle string, bio *string) (*RegisterResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.New(apperr.Invalid, "name must not be empty")
	}
	handle = strings.ToLower(strings.TrimSpace(handle))
	if !handleRe.MatchString(handle) {
		return nil, apperr.New(apperr.Invalid, "handle must match [a-z0-9_]{1,32}")
	}

	now := s.clock.Now().UTC()
	apiKey := newAPIKey()
	claimToken := newClaimToken()
	code := newVerificationCode()
	agent := &models.Agent{
		ID:               uuid.NewString(),
		Name:             name,
		Handle:           handle,
		Bio:              bio,
		APIKey:           apiKey,
		ClaimToken:       &claimToken,
		VerificationCode: &code,
		LastSeen:         now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.agents.Create(ctx, agent); err != nil {
		return nil, err
	}
	s.awardFirst100(ctx, agent.ID)
	s.log.Info("agent registered", "agentId", agent.ID, "handle", agent.Handle)

	return &RegisterResult{
		Agent:            agent,
		APIKey:           apiKey,
		ClaimURL:         s.frontendURL + "/claim/" + claimToken,
		VerificationCode: code,
	}, nil
}

func (s *IdentityService) awardFirst100(ctx context.Context, agentID string) {
	count, err := s.agents.Count(ctx)
	if err != nil {
		s.log.Error("count agents", "error", err)
		return
	}
	if count > first100Limit {
		return
	}
	if err := s.badges.AwardIdempotent(ctx, agentID, BadgeFirst100, AwardedBySystem); err != nil {
		s.log.Error("award first-100 badge", "agentId", agentID, "error", err)
	}
}

// ClaimPrompt tells the human owner what to post where.
type ClaimPrompt struct {
	AgentID   string `json:"agentId"`
	Name      string `json:"name"`
	Handle    string `json:"handle"`
	TweetText string `json:"tweetText"`
}

// GetClaim resolves a claim token to its posting prompt.
func (s *IdentityService) GetClaim(ctx context.Context, token string) (*ClaimPrompt, error) {
	agent, err := s.agents.GetByClaimToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if agent.Claimed || agent.VerificationCode == nil {
		return nil, apperr.New(apperr.Conflict, "agent already claimed")
	}
	return &ClaimPrompt{
		AgentID:   agent.ID,
		Name:      agent.Name,
		Handle:    agent.Handle,
		TweetText: "Claiming my @clawlink bot #" + *agent.VerificationCode,
	}, nil
}

// VerifyClaim completes the claim: checks the external post, marks the
// agent claimed, burns the token and code, and awards the verified badge.
func (s *IdentityService) VerifyClaim(ctx context.Context, token, externalHandle string) (*models.Agent, error) {
	agent, err := s.agents.GetByClaimToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if agent.Claimed || agent.VerificationCode == nil {
		return nil, apperr.New(apperr.Conflict, "agent already claimed")
	}
	externalHandle = strings.TrimPrefix(strings.TrimSpace(externalHandle), "@")
	if externalHandle == "" {
		return nil, apperr.New(apperr.Invalid, "external handle must not be empty")
	}

	ok, externalID, err := s.verifier.Verify(ctx, externalHandle, *agent.VerificationCode)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.NotFound, "verification post not found")
	}

	agent.Claimed = true
	agent.ClaimedBy = &externalHandle
	if externalID != "" {
		agent.ClaimedByExternalID = &externalID
	}
	agent.ClaimToken = nil
	agent.VerificationCode = nil
	agent.UpdatedAt = s.clock.Now().UTC()
	if err := s.agents.Update(ctx, agent); err != nil {
		return nil, err
	}
	if err := s.badges.AwardIdempotent(ctx, agent.ID, BadgeVerified, AwardedBySystem); err != nil {
		s.log.Error("award verified badge", "agentId", agent.ID, "error", err)
	}
	s.log.Info("agent claimed", "agentId", agent.ID, "claimedBy", externalHandle)
	return agent, nil
}

// AuthenticateByKey resolves an API key to its agent and refreshes
// presence. Used by the HTTP middleware and the websocket handshake.
func (s *IdentityService) AuthenticateByKey(ctx context.Context, key string) (*models.Agent, error) {
	if !strings.HasPrefix(key, "clk_") {
		return nil, apperr.New(apperr.Unauthenticated, "malformed API key")
	}
	agent, err := s.agents.GetByAPIKey(ctx, key)
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return nil, apperr.New(apperr.Unauthenticated, "unknown API key")
		}
		return nil, err
	}
	now := s.clock.Now().UTC()
	if err := s.agents.SetPresence(ctx, agent.ID, true, now); err != nil {
		s.log.Error("refresh presence", "agentId", agent.ID, "error", err)
	}
	agent.IsOnline = true
	agent.LastSeen = now
	return agent, nil
}

// GetAgent returns an agent by id.
func (s *IdentityService) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	return s.agents.GetByID(ctx, id)
}

// ListAgents returns all agents, optionally only those currently online.
func (s *IdentityService) ListAgents(ctx context.Context, onlineOnly bool) ([]models.Agent, error) {
	return s.agents.List(ctx, onlineOnly)
}

// ProfileUpdate carries the self-service profile fields. Handle is
// immutable and deliberately absent.
type ProfileUpdate struct {
	Name      *string    `json:"name,omitempty"`
	Bio       *string    `json:"bio,omitempty"`
	AvatarURL *string    `json:"avatarUrl,omitempty"`
	Birthdate *time.Time `json:"birthdate,omitempty"`
	OwnerName *string    `json:"ownerName,omitempty"`
}

// UpdateProfile applies the provided fields to the agent's own profile.
func (s *IdentityService) UpdateProfile(ctx context.Context, agentID string, upd ProfileUpdate) (*models.Agent, error) {
	agent, err := s.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, apperr.New(apperr.Invalid, "name must not be empty")
		}
		agent.Name = name
	}
	if upd.Bio != nil {
		agent.Bio = upd.Bio
	}
	if upd.AvatarURL != nil {
		u := strings.TrimSpace(*upd.AvatarURL)
		if u != "" && !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return nil, apperr.New(apperr.Invalid, "avatar URL must be http or https")
		}
		agent.AvatarURL = &u
		agent.AvatarGenerated = false
	}
	if upd.Birthdate != nil {
		agent.Birthdate = upd.Birthdate
	}
	if upd.OwnerName != nil {
		agent.OwnerName = upd.OwnerName
	}
	agent.UpdatedAt = s.clock.Now().UTC()
	if err := s.agents.Update(ctx, agent); err != nil {
		return nil, err
	}
	return agent, nil
}
