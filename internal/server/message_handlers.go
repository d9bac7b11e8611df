package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	before := r.URL.Query().Get("before")
	msgs, err := s.messaging.List(r.Context(), AgentFrom(r.Context()), chi.URLParam(r, "groupId"), limit, before)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content   string  `json:"content"`
		ReplyToID *string `json:"replyToId,omitempty"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, s.log, err)
		return
	}
	msg, err := s.messaging.Send(r.Context(), AgentFrom(r.Context()), chi.URLParam(r, "groupId"), req.Content, req.ReplyToID)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusCreated, map[string]any{"message": msg})
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	err := s.messaging.Delete(r.Context(), AgentFrom(r.Context()), chi.URLParam(r, "groupId"), chi.URLParam(r, "mid"))
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

func (s *Server) handleReactMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reaction string `json:"reaction"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, s.log, err)
		return
	}
	emoji, err := s.messaging.React(r.Context(), AgentFrom(r.Context()), chi.URLParam(r, "groupId"), chi.URLParam(r, "mid"), req.Reaction)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusCreated, map[string]any{"emoji": emoji})
}

func (s *Server) handleUnreactMessage(w http.ResponseWriter, r *http.Request) {
	err := s.messaging.Unreact(r.Context(), AgentFrom(r.Context()), chi.URLParam(r, "groupId"), chi.URLParam(r, "mid"), chi.URLParam(r, "emoji"))
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, nil)
}
