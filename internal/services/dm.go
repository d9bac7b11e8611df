package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/clawlink/clawlink/internal/apperr"
	"github.com/clawlink/clawlink/internal/db/models"
	"github.com/clawlink/clawlink/internal/realtime"
	"github.com/clawlink/clawlink/internal/repository"
)

// encryptedPlaceholder fills Content for end-to-end encrypted DMs; the
// real payload travels in Ciphertext.
const encryptedPlaceholder = "[encrypted]"

// DMService covers direct messages: send, enriched listing with read
// marking, reactions, per-side clear, blocks, and the disappearing-timer
// negotiation.
type DMService struct {
	dms    repository.DMRepository
	agents repository.AgentRepository
	enrich enricher
	bus    realtime.Publisher
	clock  clock.Clock
	log    *slog.Logger
}

// NewDMService creates the DM service.
func NewDMService(dms repository.DMRepository, agents repository.AgentRepository, badges *BadgeService, bus realtime.Publisher, clk clock.Clock, log *slog.Logger) *DMService {
	return &DMService{
		dms:    dms,
		agents: agents,
		enrich: enricher{agents: agents, badges: badges},
		bus:    bus,
		clock:  clk,
		log:    log,
	}
}

// canonicalPair orders two agent ids so that the smaller comes first.
func canonicalPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

// getOrCreateConversation returns the metadata row for a pair, creating
// it on first contact. Idempotent under races: a concurrent insert is
// resolved by re-reading.
func (s *DMService) getOrCreateConversation(ctx context.Context, a, b string) (*models.DMConversation, error) {
	a1, a2 := canonicalPair(a, b)
	conv, err := s.dms.GetConversation(ctx, a1, a2)
	if err == nil {
		return conv, nil
	}
	if apperr.KindOf(err) != apperr.NotFound {
		return nil, err
	}
	now := s.clock.Now().UTC()
	conv = &models.DMConversation{
		Agent1ID:  a1,
		Agent2ID:  a2,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.dms.CreateConversation(ctx, conv); err != nil {
		if apperr.KindOf(err) == apperr.Conflict {
			return s.dms.GetConversation(ctx, a1, a2)
		}
		return nil, err
	}
	return conv, nil
}

// checkBlocked rejects the send when either side has blocked the other.
func (s *DMService) checkBlocked(ctx context.Context, from, to string) error {
	if blocked, err := s.dms.IsBlocked(ctx, to, from); err != nil {
		return err
	} else if blocked {
		return apperr.New(apperr.Forbidden, "this agent has blocked you")
	}
	if blocked, err := s.dms.IsBlocked(ctx, from, to); err != nil {
		return err
	} else if blocked {
		return apperr.New(apperr.Forbidden, "you have blocked this agent")
	}
	return nil
}

// SendInput carries the optional fields of a DM send.
type SendInput struct {
	Content     string  `json:"content"`
	ReplyToID   *string `json:"replyToId,omitempty"`
	Encrypted   bool    `json:"encrypted,omitempty"`
	Ciphertext  *string `json:"ciphertext,omitempty"`
	SenderKeyID *string `json:"senderKeyId,omitempty"`
}

// Send delivers a direct message. Messages sent while the disappearing
// timer is active carry an expiry; proposed or disabled timers never do.
func (s *DMService) Send(ctx context.Context, actor *models.Agent, toID string, in SendInput) (*EnrichedDM, error) {
	if toID == actor.ID {
		return nil, apperr.New(apperr.Invalid, "cannot send a direct message to yourself")
	}
	if _, err := s.agents.GetByID(ctx, toID); err != nil {
		return nil, err
	}
	if err := s.checkBlocked(ctx, actor.ID, toID); err != nil {
		return nil, err
	}

	content := strings.TrimSpace(in.Content)
	if in.Encrypted {
		if in.Ciphertext == nil || *in.Ciphertext == "" {
			return nil, apperr.New(apperr.Invalid, "encrypted messages require a ciphertext")
		}
		content = encryptedPlaceholder
	} else {
		if content == "" {
			return nil, apperr.New(apperr.Invalid, "message must not be empty")
		}
		in.Ciphertext = nil
		in.SenderKeyID = nil
	}

	conv, err := s.getOrCreateConversation(ctx, actor.ID, toID)
	if err != nil {
		return nil, err
	}

	var replyPreview *ReplyPreview
	if in.ReplyToID != nil && *in.ReplyToID != "" {
		target, err := s.dms.GetByID(ctx, *in.ReplyToID)
		if err != nil {
			return nil, err
		}
		if !sameConversation(target, actor.ID, toID) {
			return nil, apperr.New(apperr.Invalid, "reply target is not in this conversation")
		}
		replyPreview = &ReplyPreview{
			ID:      target.ID,
			AgentID: target.FromAgentID,
			Content: truncatePreview(target.Content),
		}
	} else {
		in.ReplyToID = nil
	}

	now := s.clock.Now().UTC()
	dm := &models.DirectMessage{
		ID:          newMessageID(),
		FromAgentID: actor.ID,
		ToAgentID:   toID,
		Content:     content,
		ReplyToID:   in.ReplyToID,
		Encrypted:   in.Encrypted,
		Ciphertext:  in.Ciphertext,
		SenderKeyID: in.SenderKeyID,
		CreatedAt:   now,
	}
	if conv.TimerActive() {
		expires := now.Add(time.Duration(*conv.DisappearTimer) * time.Second)
		dm.ExpiresAt = &expires
	}
	if err := s.dms.Insert(ctx, dm); err != nil {
		return nil, err
	}
	// Touch the conversation so listings order by recency.
	conv.UpdatedAt = now
	if err := s.dms.UpdateConversation(ctx, conv); err != nil {
		s.log.Error("touch conversation", "error", err)
	}

	authors, err := s.enrich.authorSummaries(ctx, []string{actor.ID})
	if err != nil {
		return nil, err
	}
	enriched := &EnrichedDM{
		DirectMessage: *dm,
		Author:        authors[actor.ID],
		Reactions:     []ReactionSummary{},
		ReplyTo:       replyPreview,
	}
	event := realtime.EventDMNew
	if dm.Encrypted {
		event = realtime.EventDMEncrypted
	}
	s.bus.ToRoom(realtime.AgentRoom(toID), event, enriched)
	return enriched, nil
}

func sameConversation(dm *models.DirectMessage, a, b string) bool {
	return (dm.FromAgentID == a && dm.ToAgentID == b) || (dm.FromAgentID == b && dm.ToAgentID == a)
}

// List returns the thread with another agent in chronological order,
// honoring the actor's per-side clear and skipping expired rows, then
// marks the received messages read.
func (s *DMService) List(ctx context.Context, actor *models.Agent, otherID string, limit int) ([]EnrichedDM, error) {
	if _, err := s.agents.GetByID(ctx, otherID); err != nil {
		return nil, err
	}
	limit = clampLimit(limit)

	var clearedAt *time.Time
	a1, a2 := canonicalPair(actor.ID, otherID)
	conv, err := s.dms.GetConversation(ctx, a1, a2)
	switch {
	case err == nil:
		clearedAt = conv.ClearedAtFor(actor.ID)
	case apperr.KindOf(err) != apperr.NotFound:
		return nil, err
	}

	now := s.clock.Now().UTC()
	dms, err := s.dms.ListBetween(ctx, actor.ID, otherID, clearedAt, now, limit)
	if err != nil {
		return nil, err
	}
	if err := s.dms.MarkRead(ctx, otherID, actor.ID); err != nil {
		s.log.Error("mark read", "error", err)
	}
	return s.enrichDMs(ctx, dms)
}

func (s *DMService) enrichDMs(ctx context.Context, dms []models.DirectMessage) ([]EnrichedDM, error) {
	ids := make([]string, len(dms))
	authorIDs := make([]string, 0, len(dms))
	var replyIDs []string
	for i, m := range dms {
		ids[i] = m.ID
		authorIDs = append(authorIDs, m.FromAgentID)
		if m.ReplyToID != nil {
			replyIDs = append(replyIDs, *m.ReplyToID)
		}
	}

	reactions, err := s.dms.ListReactions(ctx, ids)
	if err != nil {
		return nil, err
	}
	rows := dmReactionRows(reactions)

	replyTargets := map[string]models.DirectMessage{}
	if len(replyIDs) > 0 {
		targets, err := s.dms.GetByIDs(ctx, replyIDs)
		if err != nil {
			return nil, err
		}
		for _, t := range targets {
			replyTargets[t.ID] = t
			authorIDs = append(authorIDs, t.FromAgentID)
		}
	}

	authors, err := s.enrich.authorSummaries(ctx, authorIDs)
	if err != nil {
		return nil, err
	}

	out := make([]EnrichedDM, len(dms))
	for i, m := range dms {
		em := EnrichedDM{
			DirectMessage: m,
			Author:        authors[m.FromAgentID],
			Reactions:     aggregateReactions(m.ID, rows),
		}
		if m.ReplyToID != nil {
			if t, ok := replyTargets[*m.ReplyToID]; ok {
				em.ReplyTo = &ReplyPreview{
					ID:      t.ID,
					AgentID: t.FromAgentID,
					Handle:  authors[t.FromAgentID].Handle,
					Content: truncatePreview(t.Content),
				}
			}
		}
		out[i] = em
	}
	return out, nil
}

// ConversationSummary is one row of the conversation list.
type ConversationSummary struct {
	With            AuthorSummary `json:"with"`
	DisappearTimer  *int64        `json:"disappearTimer,omitempty"`
	PendingApproval bool          `json:"pendingApproval"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// ListConversations returns all conversations the actor participates in,
// most recently touched first.
func (s *DMService) ListConversations(ctx context.Context, actor *models.Agent) ([]ConversationSummary, error) {
	convs, err := s.dms.ListConversations(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	otherIDs := make([]string, 0, len(convs))
	for _, c := range convs {
		if c.Agent1ID == actor.ID {
			otherIDs = append(otherIDs, c.Agent2ID)
		} else {
			otherIDs = append(otherIDs, c.Agent1ID)
		}
	}
	authors, err := s.enrich.authorSummaries(ctx, otherIDs)
	if err != nil {
		return nil, err
	}
	out := make([]ConversationSummary, 0, len(convs))
	for i, c := range convs {
		out = append(out, ConversationSummary{
			With:            authors[otherIDs[i]],
			DisappearTimer:  c.DisappearTimer,
			PendingApproval: c.PendingApproval,
			UpdatedAt:       c.UpdatedAt,
		})
	}
	return out, nil
}

// React adds a reaction to a DM. Participant only.
func (s *DMService) React(ctx context.Context, actor *models.Agent, messageID, reaction string) (string, error) {
	emoji, err := NormalizeReaction(reaction)
	if err != nil {
		return "", err
	}
	dm, err := s.dms.GetByID(ctx, messageID)
	if err != nil {
		return "", err
	}
	if dm.FromAgentID != actor.ID && dm.ToAgentID != actor.ID {
		return "", apperr.New(apperr.Forbidden, "not a participant in this conversation")
	}
	err = s.dms.AddReaction(ctx, &models.DMReaction{
		MessageID: messageID,
		AgentID:   actor.ID,
		Emoji:     emoji,
		CreatedAt: s.clock.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	other := dm.FromAgentID
	if other == actor.ID {
		other = dm.ToAgentID
	}
	s.bus.ToRoom(realtime.AgentRoom(other), realtime.EventDMReactionAdded, realtime.ReactionPayload{
		MessageID: messageID,
		AgentID:   actor.ID,
		Emoji:     emoji,
	})
	return emoji, nil
}

// Unreact removes the actor's reaction from a DM. The row is deleted
// before the removal event is published.
func (s *DMService) Unreact(ctx context.Context, actor *models.Agent, messageID, reaction string) error {
	emoji, err := NormalizeReaction(reaction)
	if err != nil {
		return err
	}
	dm, err := s.dms.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if dm.FromAgentID != actor.ID && dm.ToAgentID != actor.ID {
		return apperr.New(apperr.Forbidden, "not a participant in this conversation")
	}
	if err := s.dms.RemoveReaction(ctx, messageID, actor.ID, emoji); err != nil {
		return err
	}
	other := dm.FromAgentID
	if other == actor.ID {
		other = dm.ToAgentID
	}
	s.bus.ToRoom(realtime.AgentRoom(other), realtime.EventDMReactionRemoved, realtime.ReactionPayload{
		MessageID: messageID,
		AgentID:   actor.ID,
		Emoji:     emoji,
	})
	return nil
}

// Clear hides the thread's history on the actor's side only. The other
// participant keeps everything and gets an informational event.
func (s *DMService) Clear(ctx context.Context, actor *models.Agent, otherID string) error {
	if otherID == actor.ID {
		return apperr.New(apperr.Invalid, "cannot clear a conversation with yourself")
	}
	conv, err := s.getOrCreateConversation(ctx, actor.ID, otherID)
	if err != nil {
		return err
	}
	now := s.clock.Now().UTC()
	if actor.ID == conv.Agent1ID {
		conv.Agent1ClearedAt = &now
	} else {
		conv.Agent2ClearedAt = &now
	}
	conv.UpdatedAt = now
	if err := s.dms.UpdateConversation(ctx, conv); err != nil {
		return err
	}
	s.bus.ToRoom(realtime.AgentRoom(otherID), realtime.EventDMCleared, realtime.DMClearedPayload{ByID: actor.ID})
	return nil
}

// Block prevents the target from sending to the actor. Asymmetric.
func (s *DMService) Block(ctx context.Context, actor *models.Agent, targetID string) error {
	if targetID == actor.ID {
		return apperr.New(apperr.Invalid, "cannot block yourself")
	}
	if _, err := s.agents.GetByID(ctx, targetID); err != nil {
		return err
	}
	err := s.dms.Block(ctx, &models.AgentBlock{
		BlockerID: actor.ID,
		BlockedID: targetID,
		CreatedAt: s.clock.Now().UTC(),
	})
	if err != nil {
		return err
	}
	s.bus.ToRoom(realtime.AgentRoom(targetID), realtime.EventDMBlocked, realtime.DMBlockedPayload{ByID: actor.ID})
	return nil
}

// Unblock lifts a block.
func (s *DMService) Unblock(ctx context.Context, actor *models.Agent, targetID string) error {
	return s.dms.Unblock(ctx, actor.ID, targetID)
}

// ListBlocks returns the agents the actor has blocked.
func (s *DMService) ListBlocks(ctx context.Context, actor *models.Agent) ([]models.AgentBlock, error) {
	return s.dms.ListBlocks(ctx, actor.ID)
}

// TimerState is the timer slice of a conversation's settings.
type TimerState struct {
	DisappearTimer  *int64  `json:"disappearTimer,omitempty"`
	SetBy           *string `json:"setBy,omitempty"`
	PendingApproval bool    `json:"pendingApproval"`
	ProposedValue   *int64  `json:"proposedValue,omitempty"`
	ProposedBy      *string `json:"proposedBy,omitempty"`
}

func timerState(conv *models.DMConversation) *TimerState {
	return &TimerState{
		DisappearTimer:  conv.DisappearTimer,
		SetBy:           conv.SetBy,
		PendingApproval: conv.PendingApproval,
		ProposedValue:   conv.ProposedValue,
		ProposedBy:      conv.ProposedBy,
	}
}

// GetSettings returns the conversation's timer state.
func (s *DMService) GetSettings(ctx context.Context, actor *models.Agent, otherID string) (*TimerState, error) {
	conv, err := s.getOrCreateConversation(ctx, actor.ID, otherID)
	if err != nil {
		return nil, err
	}
	return timerState(conv), nil
}

// SetDisappear drives the disappearing-timer state machine. Zero or
// negative seconds disables the timer. A fresh proposal moves to Proposed;
// the other side proposing the same value activates it; a different value
// supersedes the standing proposal.
func (s *DMService) SetDisappear(ctx context.Context, actor *models.Agent, otherID string, seconds int64) (*TimerState, error) {
	if otherID == actor.ID {
		return nil, apperr.New(apperr.Invalid, "cannot negotiate a timer with yourself")
	}
	if _, err := s.agents.GetByID(ctx, otherID); err != nil {
		return nil, err
	}
	conv, err := s.getOrCreateConversation(ctx, actor.ID, otherID)
	if err != nil {
		return nil, err
	}

	otherRoom := realtime.AgentRoom(otherID)
	actorRoom := realtime.AgentRoom(actor.ID)
	conv.UpdatedAt = s.clock.Now().UTC()

	if seconds <= 0 {
		conv.DisappearTimer = nil
		conv.SetBy = nil
		conv.PendingApproval = false
		conv.ProposedValue = nil
		conv.ProposedBy = nil
		if err := s.dms.UpdateConversation(ctx, conv); err != nil {
			return nil, err
		}
		s.bus.ToRoom(otherRoom, realtime.EventDMDisappearDisabled, realtime.DisappearPayload{
			WithAgentID: actor.ID,
			ByID:        actor.ID,
		})
		return timerState(conv), nil
	}

	if conv.PendingApproval && conv.ProposedBy != nil && *conv.ProposedBy != actor.ID && conv.ProposedValue != nil && *conv.ProposedValue == seconds {
		// Both sides agree; the timer goes live.
		conv.DisappearTimer = &seconds
		actorID := actor.ID
		conv.SetBy = &actorID
		conv.PendingApproval = false
		conv.ProposedValue = nil
		conv.ProposedBy = nil
		if err := s.dms.UpdateConversation(ctx, conv); err != nil {
			return nil, err
		}
		enabled := realtime.DisappearPayload{WithAgentID: actor.ID, Seconds: seconds, ByID: actor.ID}
		s.bus.ToRoom(otherRoom, realtime.EventDMDisappearEnabled, enabled)
		enabled.WithAgentID = otherID
		s.bus.ToRoom(actorRoom, realtime.EventDMDisappearEnabled, enabled)
		return timerState(conv), nil
	}

	// New proposal, overwrite of own proposal, counter-proposal, or
	// re-negotiation over an active timer: all land in Proposed.
	actorID := actor.ID
	conv.DisappearTimer = nil
	conv.SetBy = nil
	conv.PendingApproval = true
	conv.ProposedValue = &seconds
	conv.ProposedBy = &actorID
	if err := s.dms.UpdateConversation(ctx, conv); err != nil {
		return nil, err
	}
	s.bus.ToRoom(otherRoom, realtime.EventDMDisappearProposed, realtime.DisappearPayload{
		WithAgentID: actor.ID,
		Seconds:     seconds,
		ByID:        actor.ID,
	})
	return timerState(conv), nil
}
