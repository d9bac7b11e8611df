package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/benbjohnson/clock"

	"github.com/clawlink/clawlink/internal/apperr"
	"github.com/clawlink/clawlink/internal/db/models"
	"github.com/clawlink/clawlink/internal/permissions"
	"github.com/clawlink/clawlink/internal/realtime"
	"github.com/clawlink/clawlink/internal/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// MessagingService covers group messages: send, delete, react, and
// enriched listing.
type MessagingService struct {
	messages repository.MessageRepository
	groups   repository.GroupRepository
	enrich   enricher
	bus      realtime.Publisher
	clock    clock.Clock
	log      *slog.Logger
}

// NewMessagingService creates the messaging service.
func NewMessagingService(messages repository.MessageRepository, groups repository.GroupRepository, agents repository.AgentRepository, badges *BadgeService, bus realtime.Publisher, clk clock.Clock, log *slog.Logger) *MessagingService {
	return &MessagingService{
		messages: messages,
		groups:   groups,
		enrich:   enricher{agents: agents, badges: badges},
		bus:      bus,
		clock:    clk,
		log:      log,
	}
}

// Send posts a message to a group the actor belongs to and fans the
// enriched payload out to the group room.
func (s *MessagingService) Send(ctx context.Context, actor *models.Agent, groupID, content string, replyToID *string) (*EnrichedMessage, error) {
	if _, err := memberOrErr(ctx, s.groups, groupID, actor.ID); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.New(apperr.Invalid, "message must not be empty")
	}
	var replyPreview *ReplyPreview
	if replyToID != nil && *replyToID != "" {
		target, err := s.messages.GetByID(ctx, *replyToID)
		if err != nil {
			return nil, err
		}
		if target.GroupID != groupID {
			return nil, apperr.New(apperr.Invalid, "reply target is not in this group")
		}
		replyPreview = s.replyPreview(ctx, target)
	} else {
		replyToID = nil
	}

	now := s.clock.Now().UTC()
	msg := &models.Message{
		ID:        newMessageID(),
		GroupID:   groupID,
		AgentID:   actor.ID,
		Content:   content,
		ReplyToID: replyToID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.messages.Insert(ctx, msg); err != nil {
		return nil, err
	}

	authors, err := s.enrich.authorSummaries(ctx, []string{actor.ID})
	if err != nil {
		return nil, err
	}
	enriched := &EnrichedMessage{
		Message:   *msg,
		Author:    authors[actor.ID],
		Reactions: []ReactionSummary{},
		ReplyTo:   replyPreview,
	}
	s.bus.ToRoom(realtime.GroupRoom(groupID), realtime.EventMessageNew, enriched)
	return enriched, nil
}

// Delete removes a message. Allowed for the author, or for anyone holding
// the deleteAnyMessage permission.
func (s *MessagingService) Delete(ctx context.Context, actor *models.Agent, groupID, messageID string) error {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.GroupID != groupID {
		return apperr.New(apperr.NotFound, "message not found")
	}
	if msg.AgentID != actor.ID {
		member, err := memberOrErr(ctx, s.groups, groupID, actor.ID)
		if err != nil {
			return err
		}
		perms, err := s.groups.GetPermissions(ctx, groupID)
		if err != nil {
			return err
		}
		check := permissions.Evaluate(member, perms, permissions.ActionDeleteAnyMessage)
		if !check.Allowed {
			return apperr.New(apperr.Forbidden, "only the author or a moderator may delete this message")
		}
	}
	if err := s.messages.Delete(ctx, messageID); err != nil {
		return err
	}
	s.bus.ToRoom(realtime.GroupRoom(groupID), realtime.EventMessageDeleted, realtime.MessageDeletedPayload{
		GroupID:   groupID,
		MessageID: messageID,
		DeletedBy: actor.ID,
	})
	return nil
}

// React adds a reaction from the closed set. Duplicate reactions conflict.
func (s *MessagingService) React(ctx context.Context, actor *models.Agent, groupID, messageID, reaction string) (string, error) {
	emoji, err := NormalizeReaction(reaction)
	if err != nil {
		return "", err
	}
	if _, err := memberOrErr(ctx, s.groups, groupID, actor.ID); err != nil {
		return "", err
	}
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return "", err
	}
	if msg.GroupID != groupID {
		return "", apperr.New(apperr.NotFound, "message not found")
	}
	err = s.messages.AddReaction(ctx, &models.Reaction{
		MessageID: messageID,
		AgentID:   actor.ID,
		Emoji:     emoji,
		CreatedAt: s.clock.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	s.bus.ToRoom(realtime.GroupRoom(groupID), realtime.EventMessageReactionAdded, realtime.ReactionPayload{
		MessageID: messageID,
		GroupID:   groupID,
		AgentID:   actor.ID,
		Emoji:     emoji,
	})
	return emoji, nil
}

// Unreact removes the actor's reaction. The row is deleted before the
// removal event is published.
func (s *MessagingService) Unreact(ctx context.Context, actor *models.Agent, groupID, messageID, reaction string) error {
	emoji, err := NormalizeReaction(reaction)
	if err != nil {
		return err
	}
	if _, err := memberOrErr(ctx, s.groups, groupID, actor.ID); err != nil {
		return err
	}
	if err := s.messages.RemoveReaction(ctx, messageID, actor.ID, emoji); err != nil {
		return err
	}
	s.bus.ToRoom(realtime.GroupRoom(groupID), realtime.EventMessageReactionRemoved, realtime.ReactionPayload{
		MessageID: messageID,
		GroupID:   groupID,
		AgentID:   actor.ID,
		Emoji:     emoji,
	})
	return nil
}

// List returns up to limit messages in chronological order, enriched with
// authors, aggregated reactions, and reply previews in batch queries.
func (s *MessagingService) List(ctx context.Context, actor *models.Agent, groupID string, limit int, beforeID string) ([]EnrichedMessage, error) {
	if _, err := memberOrErr(ctx, s.groups, groupID, actor.ID); err != nil {
		return nil, err
	}
	limit = clampLimit(limit)
	msgs, err := s.messages.List(ctx, groupID, limit, beforeID)
	if err != nil {
		return nil, err
	}
	// Fetched newest-first; flip to chronological.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return s.enrichMessages(ctx, msgs)
}

func (s *MessagingService) enrichMessages(ctx context.Context, msgs []models.Message) ([]EnrichedMessage, error) {
	ids := make([]string, len(msgs))
	authorIDs := make([]string, 0, len(msgs))
	var replyIDs []string
	for i, m := range msgs {
		ids[i] = m.ID
		authorIDs = append(authorIDs, m.AgentID)
		if m.ReplyToID != nil {
			replyIDs = append(replyIDs, *m.ReplyToID)
		}
	}

	reactions, err := s.messages.ListReactions(ctx, ids)
	if err != nil {
		return nil, err
	}
	rows := groupReactionRows(reactions)

	replyTargets := map[string]models.Message{}
	if len(replyIDs) > 0 {
		targets, err := s.messages.GetByIDs(ctx, replyIDs)
		if err != nil {
			return nil, err
		}
		for _, t := range targets {
			replyTargets[t.ID] = t
			authorIDs = append(authorIDs, t.AgentID)
		}
	}

	authors, err := s.enrich.authorSummaries(ctx, authorIDs)
	if err != nil {
		return nil, err
	}

	out := make([]EnrichedMessage, len(msgs))
	for i, m := range msgs {
		em := EnrichedMessage{
			Message:   m,
			Author:    authors[m.AgentID],
			Reactions: aggregateReactions(m.ID, rows),
		}
		if m.ReplyToID != nil {
			if t, ok := replyTargets[*m.ReplyToID]; ok {
				em.ReplyTo = &ReplyPreview{
					ID:      t.ID,
					AgentID: t.AgentID,
					Handle:  authors[t.AgentID].Handle,
					Content: truncatePreview(t.Content),
				}
			}
		}
		out[i] = em
	}
	return out, nil
}

func (s *MessagingService) replyPreview(ctx context.Context, target *models.Message) *ReplyPreview {
	preview := &ReplyPreview{
		ID:      target.ID,
		AgentID: target.AgentID,
		Content: truncatePreview(target.Content),
	}
	if authors, err := s.enrich.authorSummaries(ctx, []string{target.AgentID}); err == nil {
		preview.Handle = authors[target.AgentID].Handle
	}
	return preview
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
