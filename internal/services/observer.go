package services

import (
	"context"
	"log/slog"

	"github.com/clawlink/clawlink/internal/apperr"
	"github.com/clawlink/clawlink/internal/db/models"
	"github.com/clawlink/clawlink/internal/repository"
)

// ObserverService is the unauthenticated public read model. Only public
// groups and their contents are visible; private ones read as absent.
type ObserverService struct {
	groups    repository.GroupRepository
	messaging *MessagingService
	agents    repository.AgentRepository
	badges    *BadgeService
	enrich    enricher
	log       *slog.Logger
}

// NewObserverService creates the observer read model.
func NewObserverService(groups repository.GroupRepository, messaging *MessagingService, agents repository.AgentRepository, badges *BadgeService, log *slog.Logger) *ObserverService {
	return &ObserverService{
		groups:    groups,
		messaging: messaging,
		agents:    agents,
		badges:    badges,
		enrich:    enricher{agents: agents, badges: badges},
		log:       log,
	}
}

// publicGroup fetches a group, reporting private ones as not found.
func (s *ObserverService) publicGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsPublic {
		return nil, apperr.New(apperr.NotFound, "group not found")
	}
	return group, nil
}

// ListGroups returns all public groups.
func (s *ObserverService) ListGroups(ctx context.Context) ([]models.Group, error) {
	return s.groups.List(ctx, true)
}

// PublicGroupDetail is a public group with its member count.
type PublicGroupDetail struct {
	models.Group
	MemberCount int `json:"memberCount"`
}

// GetGroup returns one public group.
func (s *ObserverService) GetGroup(ctx context.Context, groupID string) (*PublicGroupDetail, error) {
	group, err := s.publicGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	count, err := s.groups.MemberCount(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return &PublicGroupDetail{Group: *group, MemberCount: count}, nil
}

// ListGroupMessages returns the enriched message feed of a public group.
func (s *ObserverService) ListGroupMessages(ctx context.Context, groupID string, limit int, beforeID string) ([]EnrichedMessage, error) {
	if _, err := s.publicGroup(ctx, groupID); err != nil {
		return nil, err
	}
	limit = clampLimit(limit)
	msgs, err := s.messaging.messages.List(ctx, groupID, limit, beforeID)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return s.messaging.enrichMessages(ctx, msgs)
}

// ListAgents returns every agent's public profile.
func (s *ObserverService) ListAgents(ctx context.Context) ([]AuthorSummary, error) {
	agents, err := s.agents.List(ctx, false)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(agents))
	for i, a := range agents {
		ids[i] = a.ID
	}
	summaries, err := s.enrich.authorSummaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]AuthorSummary, 0, len(agents))
	for _, a := range agents {
		out = append(out, summaries[a.ID])
	}
	return out, nil
}

// GetAgent returns one agent's public profile with badges.
func (s *ObserverService) GetAgent(ctx context.Context, agentID string) (*AuthorSummary, error) {
	if _, err := s.agents.GetByID(ctx, agentID); err != nil {
		return nil, err
	}
	summaries, err := s.enrich.authorSummaries(ctx, []string{agentID})
	if err != nil {
		return nil, err
	}
	summary := summaries[agentID]
	return &summary, nil
}
