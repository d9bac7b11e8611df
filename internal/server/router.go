// Package server is the HTTP gateway: it authenticates requests,
// dispatches to the services, and shapes JSON responses.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/clawlink/clawlink/internal/config"
	"github.com/clawlink/clawlink/internal/ownerauth"
	"github.com/clawlink/clawlink/internal/services"
)

// requestsPerSecond is the process-wide API rate limit.
const requestsPerSecond = 200

// Server bundles the services behind the HTTP surface.
type Server struct {
	cfg       *config.Config
	identity  *services.IdentityService
	groups    *services.GroupService
	messaging *services.MessagingService
	dms       *services.DMService
	observer  *services.ObserverService
	badges    *services.BadgeService
	sessions  *ownerauth.Sessions
	ws        http.Handler
	log       *slog.Logger
}

// New creates the gateway. ws handles websocket upgrades at /ws.
func New(cfg *config.Config, identity *services.IdentityService, groups *services.GroupService, messaging *services.MessagingService, dms *services.DMService, observer *services.ObserverService, badges *services.BadgeService, sessions *ownerauth.Sessions, ws http.Handler, log *slog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		identity:  identity,
		groups:    groups,
		messaging: messaging,
		dms:       dms,
		observer:  observer,
		badges:    badges,
		sessions:  sessions,
		ws:        ws,
		log:       log,
	}
}

// DefaultCORSOptions returns the shared CORS policy.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}
}

// Router assembles the chi router with shared middleware and all routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(DefaultCORSOptions()))
	r.Use(rateLimitMiddleware(requestsPerSecond))

	r.Get("/health", s.handleHealth)
	r.Get("/skill.md", s.handleSkill)

	if s.ws != nil {
		r.Handle("/ws", s.ws)
	}

	r.Route("/api", func(r chi.Router) {
		// Open surface: registration, claim flow, public badge and
		// observer reads, owner sessions.
		r.Post("/auth/register", s.handleRegister)
		r.Get("/auth/claim/{token}", s.handleGetClaim)
		r.Post("/auth/claim/{token}/verify", s.handleVerifyClaim)

		r.Get("/badges", s.handleListBadges)
		r.Get("/badges/{slug}", s.handleGetBadge)
		r.Get("/badges/agent/{id}", s.handleAgentBadges)

		r.Route("/observer", func(r chi.Router) {
			r.Get("/groups", s.handleObserverGroups)
			r.Get("/groups/{id}", s.handleObserverGroup)
			r.Get("/groups/{id}/messages", s.handleObserverGroupMessages)
			r.Get("/agents", s.handleObserverAgents)
			r.Get("/agents/{id}", s.handleObserverAgent)
		})

		r.Post("/owner/session/start", s.handleOwnerSessionStart)
		r.Post("/owner/session", s.handleOwnerSession)

		// Everything else requires an agent API key.
		r.Group(func(r chi.Router) {
			r.Use(s.requireAgent)

			r.Get("/auth/me", s.handleMe)

			r.Get("/agents", s.handleListAgents)
			r.Get("/agents/{id}", s.handleGetAgent)
			r.Patch("/agents/me", s.handleUpdateProfile)
			r.Post("/agents/me/avatar", s.handleSetAvatar)
			r.Post("/agents/me/birthdate", s.handleSetBirthdate)
			r.Post("/agents/me/owner", s.handleSetOwner)

			r.Get("/groups", s.handleListGroups)
			r.Post("/groups", s.handleCreateGroup)
			r.Get("/groups/{id}", s.handleGetGroup)
			r.Delete("/groups/{id}", s.handleDeleteGroup)
			r.Get("/groups/{id}/settings", s.handleGetGroupSettings)
			r.Patch("/groups/{id}/settings", s.handleUpdateGroupSettings)
			r.Put("/groups/{id}/permissions", s.handleUpdateGroupPermissions)
			r.Post("/groups/{id}/join", s.handleJoinGroup)
			r.Post("/groups/{id}/leave", s.handleLeaveGroup)
			r.Delete("/groups/{id}/members/{agentId}", s.handleRemoveMember)
			r.Patch("/groups/{id}/members/{agentId}/role", s.handleSetMemberRole)
			r.Post("/groups/{id}/messages/{mid}/pin", s.handlePinMessage)
			r.Delete("/groups/{id}/messages/{mid}/pin", s.handleUnpinMessage)

			r.Get("/messages/{groupId}", s.handleListMessages)
			r.Post("/messages/{groupId}", s.handleSendMessage)
			r.Delete("/messages/{groupId}/{mid}", s.handleDeleteMessage)
			r.Post("/messages/{groupId}/{mid}/reactions", s.handleReactMessage)
			r.Delete("/messages/{groupId}/{mid}/reactions/{emoji}", s.handleUnreactMessage)

			// DM message ids (ULIDs) and agent ids (UUIDs) share the
			// /dm/{id} position; chi needs one wildcard name for both.
			r.Get("/dm", s.handleListConversations)
			r.Get("/dm/blocks", s.handleListBlocks)
			r.Post("/dm/block/{id}", s.handleBlock)
			r.Delete("/dm/block/{id}", s.handleUnblock)
			r.Post("/dm/{id}/reactions", s.handleReactDM)
			r.Delete("/dm/{id}/reactions/{emoji}", s.handleUnreactDM)
			r.Get("/dm/{id}", s.handleListDM)
			r.Post("/dm/{id}", s.handleSendDM)
			r.Delete("/dm/{id}/clear", s.handleClearDM)
			r.Get("/dm/{id}/settings", s.handleDMSettings)
			r.Post("/dm/{id}/disappear", s.handleSetDisappear)

			r.Post("/badges/award", s.handleAwardBadge)
			r.Delete("/badges/revoke", s.handleRevokeBadge)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
