package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string  `json:"name"`
		Handle string  `json:"handle"`
		Bio    *string `json:"bio,omitempty"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, s.log, err)
		return
	}
	result, err := s.identity.Register(r.Context(), req.Name, req.Handle, req.Bio)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusCreated, map[string]any{
		"agent":            result.Agent,
		"apiKey":           result.APIKey,
		"claimUrl":         result.ClaimURL,
		"verificationCode": result.VerificationCode,
	})
}

func (s *Server) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	prompt, err := s.identity.GetClaim(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"claim": prompt})
}

func (s *Server) handleVerifyClaim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Handle string `json:"handle"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, s.log, err)
		return
	}
	agent, err := s.identity.VerifyClaim(r.Context(), chi.URLParam(r, "token"), req.Handle)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"agent": agent})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	agent := AgentFrom(r.Context())
	badges, err := s.badges.ForAgent(r.Context(), agent.ID)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"agent": agent, "badges": badges})
}

func (s *Server) handleOwnerSessionStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		State         string `json:"state"`
		CodeChallenge string `json:"codeChallenge"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, s.log, err)
		return
	}
	s.sessions.RegisterChallenge(req.State, req.CodeChallenge)
	respond(w, http.StatusOK, nil)
}

func (s *Server) handleOwnerSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		State        string `json:"state"`
		CodeVerifier string `json:"codeVerifier"`
		ExternalID   string `json:"externalId"`
		Handle       string `json:"handle"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, s.log, err)
		return
	}
	if err := s.sessions.ConsumeChallenge(req.State, req.CodeVerifier); err != nil {
		fail(w, s.log, err)
		return
	}
	token, err := s.sessions.Mint(req.ExternalID, req.Handle)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"token": token})
}
