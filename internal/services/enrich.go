package services

import (
	"context"
	"sort"

	"github.com/clawlink/clawlink/internal/db/models"
	"github.com/clawlink/clawlink/internal/repository"
)

const replyPreviewLen = 100

// AuthorSummary is the public slice of an agent attached to enriched
// messages. Never includes keys, tokens, or codes.
type AuthorSummary struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Handle    string         `json:"handle"`
	AvatarURL *string        `json:"avatarUrl,omitempty"`
	IsOnline  bool           `json:"isOnline"`
	Badges    []models.Badge `json:"badges"`
}

// ReactionSummary aggregates reactions per emoji.
type ReactionSummary struct {
	Emoji    string   `json:"emoji"`
	Count    int      `json:"count"`
	AgentIDs []string `json:"agentIds"`
}

// ReplyPreview is the truncated head of a reply target.
type ReplyPreview struct {
	ID      string `json:"id"`
	AgentID string `json:"agentId"`
	Handle  string `json:"handle"`
	Content string `json:"content"`
}

// EnrichedMessage is a group message with author, reactions, and reply
// preview attached.
type EnrichedMessage struct {
	models.Message
	Author    AuthorSummary     `json:"author"`
	Reactions []ReactionSummary `json:"reactions"`
	ReplyTo   *ReplyPreview     `json:"replyTo,omitempty"`
}

// EnrichedDM is a direct message with the same enrichment.
type EnrichedDM struct {
	models.DirectMessage
	Author    AuthorSummary     `json:"author"`
	Reactions []ReactionSummary `json:"reactions"`
	ReplyTo   *ReplyPreview     `json:"replyTo,omitempty"`
}

// enricher assembles enriched payloads with batch lookups; no per-row
// queries regardless of page size.
type enricher struct {
	agents repository.AgentRepository
	badges *BadgeService
}

func truncatePreview(s string) string {
	runes := []rune(s)
	if len(runes) <= replyPreviewLen {
		return s
	}
	return string(runes[:replyPreviewLen])
}

// authorSummaries resolves a set of agent ids to public summaries with
// badges, in two batch queries.
func (e *enricher) authorSummaries(ctx context.Context, ids []string) (map[string]AuthorSummary, error) {
	ids = dedupe(ids)
	agents, err := e.agents.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	badges, err := e.badges.ForAgents(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]AuthorSummary, len(agents))
	for _, a := range agents {
		b := badges[a.ID]
		if b == nil {
			b = []models.Badge{}
		}
		out[a.ID] = AuthorSummary{
			ID:        a.ID,
			Name:      a.Name,
			Handle:    a.Handle,
			AvatarURL: a.AvatarURL,
			IsOnline:  a.IsOnline,
			Badges:    b,
		}
	}
	return out, nil
}

// aggregateReactions groups raw reaction rows per message and emoji,
// ordered by emoji for deterministic payloads.
func aggregateReactions(messageID string, rows []reactionRow) []ReactionSummary {
	byEmoji := make(map[string]*ReactionSummary)
	for _, r := range rows {
		if r.messageID != messageID {
			continue
		}
		s, ok := byEmoji[r.emoji]
		if !ok {
			s = &ReactionSummary{Emoji: r.emoji}
			byEmoji[r.emoji] = s
		}
		s.Count++
		s.AgentIDs = append(s.AgentIDs, r.agentID)
	}
	out := make([]ReactionSummary, 0, len(byEmoji))
	for _, s := range byEmoji {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Emoji < out[j].Emoji })
	return out
}

type reactionRow struct {
	messageID string
	agentID   string
	emoji     string
}

func groupReactionRows(rs []models.Reaction) []reactionRow {
	out := make([]reactionRow, len(rs))
	for i, r := range rs {
		out[i] = reactionRow{messageID: r.MessageID, agentID: r.AgentID, emoji: r.Emoji}
	}
	return out
}

func dmReactionRows(rs []models.DMReaction) []reactionRow {
	out := make([]reactionRow, len(rs))
	for i, r := range rs {
		out[i] = reactionRow{messageID: r.MessageID, agentID: r.AgentID, emoji: r.Emoji}
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
