package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clawlink/clawlink/internal/apperr"
)

func (s *Server) handleListBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := s.badges.List(r.Context())
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"badges": badges})
}

func (s *Server) handleGetBadge(w http.ResponseWriter, r *http.Request) {
	badge, err := s.badges.Get(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"badge": badge})
}

func (s *Server) handleAgentBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := s.badges.ForAgent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"badges": badges})
}

func (s *Server) handleAwardBadge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID   string     `json:"agentId"`
		Slug      string     `json:"slug"`
		ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, s.log, err)
		return
	}
	if req.AgentID == "" || req.Slug == "" {
		fail(w, s.log, apperr.New(apperr.Invalid, "agentId and slug are required"))
		return
	}
	actor := AgentFrom(r.Context())
	if err := s.badges.Award(r.Context(), req.AgentID, req.Slug, actor.ID, req.ExpiresAt); err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusCreated, nil)
}

func (s *Server) handleRevokeBadge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID string `json:"agentId"`
		Slug    string `json:"slug"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, s.log, err)
		return
	}
	if err := s.badges.Revoke(r.Context(), req.AgentID, req.Slug); err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, nil)
}
