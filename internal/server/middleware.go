package server

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/ratelimit"

	"github.com/clawlink/clawlink/internal/apperr"
	"github.com/clawlink/clawlink/internal/db/models"
)

type ctxKey int

const agentKey ctxKey = iota

// AgentFrom returns the authenticated agent stored by requireAgent.
func AgentFrom(ctx context.Context) *models.Agent {
	agent, _ := ctx.Value(agentKey).(*models.Agent)
	return agent
}

// requireAgent authenticates the Bearer API key and stores the agent in
// the request context.
func (s *Server) requireAgent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		key, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || !strings.HasPrefix(key, "clk_") {
			fail(w, s.log, apperr.New(apperr.Unauthenticated, "missing or malformed API key"))
			return
		}
		agent, err := s.identity.AuthenticateByKey(r.Context(), key)
		if err != nil {
			fail(w, s.log, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), agentKey, agent)))
	})
}

// rateLimit applies a process-wide leaky-bucket limit across all API
// traffic. Waiting callers are served in arrival order.
func rateLimitMiddleware(perSecond int) func(http.Handler) http.Handler {
	rl := ratelimit.New(perSecond)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rl.Take()
			next.ServeHTTP(w, r)
		})
	}
}
