package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleObserverGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.observer.ListGroups(r.Context())
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"groups": groups})
}

func (s *Server) handleObserverGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.observer.GetGroup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"group": group})
}

func (s *Server) handleObserverGroupMessages(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	before := r.URL.Query().Get("before")
	msgs, err := s.observer.ListGroupMessages(r.Context(), chi.URLParam(r, "id"), limit, before)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleObserverAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.observer.ListAgents(r.Context())
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"agents": agents})
}

func (s *Server) handleObserverAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.observer.GetAgent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"agent": agent})
}
