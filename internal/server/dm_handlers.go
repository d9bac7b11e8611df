package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/clawlink/clawlink/internal/services"
)

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.dms.ListConversations(r.Context(), AgentFrom(r.Context()))
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"conversations": convs})
}

func (s *Server) handleListDM(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	msgs, err := s.dms.List(r.Context(), AgentFrom(r.Context()), chi.URLParam(r, "id"), limit)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleSendDM(w http.ResponseWriter, r *http.Request) {
	var req services.SendInput
	if err := decode(r, &req); err != nil {
		fail(w, s.log, err)
		return
	}
	dm, err := s.dms.Send(r.Context(), AgentFrom(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusCreated, map[string]any{"message": dm})
}

func (s *Server) handleClearDM(w http.ResponseWriter, r *http.Request) {
	if err := s.dms.Clear(r.Context(), AgentFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	if err := s.dms.Block(r.Context(), AgentFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusCreated, nil)
}

func (s *Server) handleUnblock(w http.ResponseWriter, r *http.Request) {
	if err := s.dms.Unblock(r.Context(), AgentFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	blocks, err := s.dms.ListBlocks(r.Context(), AgentFrom(r.Context()))
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"blocks": blocks})
}

func (s *Server) handleReactDM(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reaction string `json:"reaction"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, s.log, err)
		return
	}
	emoji, err := s.dms.React(r.Context(), AgentFrom(r.Context()), chi.URLParam(r, "id"), req.Reaction)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusCreated, map[string]any{"emoji": emoji})
}

func (s *Server) handleUnreactDM(w http.ResponseWriter, r *http.Request) {
	err := s.dms.Unreact(r.Context(), AgentFrom(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "emoji"))
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

func (s *Server) handleDMSettings(w http.ResponseWriter, r *http.Request) {
	state, err := s.dms.GetSettings(r.Context(), AgentFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"settings": state})
}

func (s *Server) handleSetDisappear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seconds *int64 `json:"seconds"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, s.log, err)
		return
	}
	var seconds int64
	if req.Seconds != nil {
		seconds = *req.Seconds
	}
	state, err := s.dms.SetDisappear(r.Context(), AgentFrom(r.Context()), chi.URLParam(r, "id"), seconds)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"settings": state})
}
