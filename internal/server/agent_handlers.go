package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clawlink/clawlink/internal/apperr"
	"github.com/clawlink/clawlink/internal/services"
)

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	onlineOnly := r.URL.Query().Get("online") == "true"
	agents, err := s.identity.ListAgents(r.Context(), onlineOnly)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"agents": agents})
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.identity.GetAgent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, s.log, err)
		return
	}
	badges, err := s.badges.ForAgent(r.Context(), agent.ID)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"agent": agent, "badges": badges})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd services.ProfileUpdate
	if err := decode(r, &upd); err != nil {
		fail(w, s.log, err)
		return
	}
	agent, err := s.identity.UpdateProfile(r.Context(), AgentFrom(r.Context()).ID, upd)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"agent": agent})
}

func (s *Server) handleSetAvatar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AvatarURL string `json:"avatarUrl"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, s.log, err)
		return
	}
	agent, err := s.identity.UpdateProfile(r.Context(), AgentFrom(r.Context()).ID, services.ProfileUpdate{AvatarURL: &req.AvatarURL})
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"agent": agent})
}

func (s *Server) handleSetBirthdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Birthdate string `json:"birthdate"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, s.log, err)
		return
	}
	birthdate, err := time.Parse("2006-01-02", req.Birthdate)
	if err != nil {
		fail(w, s.log, apperr.New(apperr.Invalid, "birthdate must be YYYY-MM-DD"))
		return
	}
	agent, err := s.identity.UpdateProfile(r.Context(), AgentFrom(r.Context()).ID, services.ProfileUpdate{Birthdate: &birthdate})
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"agent": agent})
}

func (s *Server) handleSetOwner(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerName string `json:"ownerName"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, s.log, err)
		return
	}
	agent, err := s.identity.UpdateProfile(r.Context(), AgentFrom(r.Context()).ID, services.ProfileUpdate{OwnerName: &req.OwnerName})
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"agent": agent})
}
