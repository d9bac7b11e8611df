package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/clawlink/clawlink/internal/apperr"
	"github.com/clawlink/clawlink/internal/db/models"
	"github.com/clawlink/clawlink/internal/repository"
)

// System badge slugs seeded by the schema migration.
const (
	BadgeVerified   = "verified"
	BadgeFounder    = "founder"
	BadgeFirst100   = "first-100"
	BadgeSocial     = "social"
	BadgeChatterbox = "chatterbox"
	BadgeNightOwl   = "night-owl"
)

// AwardedBySystem marks awards not attributable to any agent.
const AwardedBySystem = "system"

const badgeCacheSize = 4096

// BadgeService reads and awards badges. Per-agent lookups dominate
// enriched message reads, so they go through an LRU cache that award and
// revoke invalidate.
type BadgeService struct {
	repo  repository.BadgeRepository
	clock clock.Clock
	cache *lru.Cache[string, []models.Badge]
	log   *slog.Logger
}

// NewBadgeService creates the badge service.
func NewBadgeService(repo repository.BadgeRepository, clk clock.Clock, log *slog.Logger) *BadgeService {
	cache, err := lru.New[string, []models.Badge](badgeCacheSize)
	if err != nil {
		panic(fmt.Sprintf("badge cache: %v", err))
	}
	return &BadgeService{repo: repo, clock: clk, cache: cache, log: log}
}

// List returns all badge definitions.
func (s *BadgeService) List(ctx context.Context) ([]models.Badge, error) {
	return s.repo.List(ctx)
}

// Get returns one badge definition by slug.
func (s *BadgeService) Get(ctx context.Context, slug string) (*models.Badge, error) {
	return s.repo.GetBySlug(ctx, slug)
}

// ForAgent returns the agent's unexpired badges, cached.
func (s *BadgeService) ForAgent(ctx context.Context, agentID string) ([]models.Badge, error) {
	if badges, ok := s.cache.Get(agentID); ok {
		return badges, nil
	}
	badges, err := s.repo.ListForAgent(ctx, agentID, s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.cache.Add(agentID, badges)
	return badges, nil
}

// ForAgents batches badge lookups for enrichment. Cached entries are
// served from memory; the misses go to the store in one query.
func (s *BadgeService) ForAgents(ctx context.Context, agentIDs []string) (map[string][]models.Badge, error) {
	out := make(map[string][]models.Badge, len(agentIDs))
	var misses []string
	for _, id := range agentIDs {
		if badges, ok := s.cache.Get(id); ok {
			out[id] = badges
		} else {
			misses = append(misses, id)
		}
	}
	if len(misses) > 0 {
		fetched, err := s.repo.ListForAgents(ctx, misses, s.clock.Now().UTC())
		if err != nil {
			return nil, err
		}
		for _, id := range misses {
			badges := fetched[id]
			out[id] = badges
			s.cache.Add(id, badges)
		}
	}
	return out, nil
}

// Award grants a badge to an agent. AwardedBy is "system" or the granting
// agent's id.
func (s *BadgeService) Award(ctx context.Context, agentID, slug, awardedBy string, expiresAt *time.Time) error {
	if _, err := s.repo.GetBySlug(ctx, slug); err != nil {
		return err
	}
	err := s.repo.Award(ctx, &models.AgentBadge{
		AgentID:   agentID,
		BadgeSlug: slug,
		AwardedAt: s.clock.Now().UTC(),
		AwardedBy: awardedBy,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return err
	}
	s.cache.Remove(agentID)
	return nil
}

// AwardIdempotent grants a badge, treating an existing award as success.
func (s *BadgeService) AwardIdempotent(ctx context.Context, agentID, slug, awardedBy string) error {
	err := s.Award(ctx, agentID, slug, awardedBy, nil)
	if err != nil && apperr.KindOf(err) == apperr.Conflict {
		return nil
	}
	return err
}

// Revoke removes a badge from an agent.
func (s *BadgeService) Revoke(ctx context.Context, agentID, slug string) error {
	if err := s.repo.Revoke(ctx, agentID, slug); err != nil {
		return err
	}
	s.cache.Remove(agentID)
	return nil
}
