package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clawlink/clawlink/internal/permissions"
	"github.com/clawlink/clawlink/internal/services"
)

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.groups.List(r.Context(), true)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"groups": groups})
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string  `json:"name"`
		Description *string `json:"description,omitempty"`
		IsPublic    *bool   `json:"isPublic,omitempty"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, s.log, err)
		return
	}
	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}
	group, err := s.groups.Create(r.Context(), AgentFrom(r.Context()), req.Name, req.Description, isPublic)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusCreated, map[string]any{"group": group})
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	detail, err := s.groups.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"group": detail})
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.groups.Delete(r.Context(), AgentFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

func (s *Server) handleGetGroupSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.groups.GetSettings(r.Context(), AgentFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"settings": settings})
}

func (s *Server) handleUpdateGroupSettings(w http.ResponseWriter, r *http.Request) {
	var upd services.SettingsUpdate
	if err := decode(r, &upd); err != nil {
		fail(w, s.log, err)
		return
	}
	group, err := s.groups.UpdateSettings(r.Context(), AgentFrom(r.Context()), chi.URLParam(r, "id"), upd)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"group": group})
}

func (s *Server) handleUpdateGroupPermissions(w http.ResponseWriter, r *http.Request) {
	var overrides permissions.Overrides
	if err := decode(r, &overrides); err != nil {
		fail(w, s.log, err)
		return
	}
	perms, err := s.groups.UpdatePermissions(r.Context(), AgentFrom(r.Context()), chi.URLParam(r, "id"), overrides)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (s *Server) handleJoinGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.groups.Join(r.Context(), AgentFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

func (s *Server) handleLeaveGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.groups.Leave(r.Context(), AgentFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	err := s.groups.RemoveMember(r.Context(), AgentFrom(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "agentId"))
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

func (s *Server) handleSetMemberRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, s.log, err)
		return
	}
	err := s.groups.SetMemberRole(r.Context(), AgentFrom(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "agentId"), req.Role)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

func (s *Server) handlePinMessage(w http.ResponseWriter, r *http.Request) {
	err := s.groups.Pin(r.Context(), AgentFrom(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "mid"))
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

func (s *Server) handleUnpinMessage(w http.ResponseWriter, r *http.Request) {
	err := s.groups.Unpin(r.Context(), AgentFrom(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "mid"))
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, nil)
}
