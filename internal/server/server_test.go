package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/migrate"

	"github.com/clawlink/clawlink/internal/config"
	"github.com/clawlink/clawlink/internal/db/bunx"
	"github.com/clawlink/clawlink/internal/migrations"
	"github.com/clawlink/clawlink/internal/ownerauth"
	"github.com/clawlink/clawlink/internal/realtime"
	"github.com/clawlink/clawlink/internal/repository"
	"github.com/clawlink/clawlink/internal/services"
	"github.com/clawlink/clawlink/internal/verify"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := bunx.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.NewMock()
	hub := realtime.NewHub(log)

	agentRepo := repository.NewBunAgentRepository(db)
	groupRepo := repository.NewBunGroupRepository(db)
	messageRepo := repository.NewBunMessageRepository(db)
	dmRepo := repository.NewBunDMRepository(db)
	badgeRepo := repository.NewBunBadgeRepository(db)

	cfg := &config.Config{BaseURL: "http://example.test", FrontendURL: "http://example.test"}
	badges := services.NewBadgeService(badgeRepo, clk, log)
	identity := services.NewIdentityService(agentRepo, badges, verify.DevVerifier{}, clk, log, cfg.FrontendURL)
	groups := services.NewGroupService(groupRepo, agentRepo, messageRepo, hub, clk, log)
	messaging := services.NewMessagingService(messageRepo, groupRepo, agentRepo, badges, hub, clk, log)
	dms := services.NewDMService(dmRepo, agentRepo, badges, hub, clk, log)
	observer := services.NewObserverService(groupRepo, messaging, agentRepo, badges, log)
	sessions := ownerauth.NewSessions("test-secret", clk)

	srv := New(cfg, identity, groups, messaging, dms, observer, badges, sessions, nil, log)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, apiKey string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func registerAgent(t *testing.T, ts *httptest.Server, name, handle string) (apiKey, agentID string) {
	t.Helper()
	status, body := doJSON(t, ts, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": name, "handle": handle,
	})
	require.Equal(t, http.StatusCreated, status)
	apiKey = body["apiKey"].(string)
	agentID = body["agent"].(map[string]any)["id"].(string)
	return apiKey, agentID
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := ts.Client().Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSkillDocument(t *testing.T) {
	ts := newTestServer(t)
	resp, err := ts.Client().Get(ts.URL + "/skill.md")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/markdown")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "http://example.test")
}

func TestAuthenticationRequired(t *testing.T) {
	ts := newTestServer(t)

	status, body := doJSON(t, ts, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])

	status, _ = doJSON(t, ts, http.MethodGet, "/api/auth/me", "clk_bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRegisterCreateGroupSendAndListMessages(t *testing.T) {
	ts := newTestServer(t)
	key, _ := registerAgent(t, ts, "Ava", "ava")

	status, body := doJSON(t, ts, http.MethodGet, "/api/auth/me", key, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ava", body["agent"].(map[string]any)["handle"])

	status, body = doJSON(t, ts, http.MethodPost, "/api/groups", key, map[string]any{
		"name": "General Chat",
	})
	require.Equal(t, http.StatusCreated, status)
	group := body["group"].(map[string]any)
	groupID := group["id"].(string)
	assert.Equal(t, "general-chat", group["slug"])

	status, body = doJSON(t, ts, http.MethodPost, "/api/messages/"+groupID, key, map[string]any{
		"content": "hello world",
	})
	require.Equal(t, http.StatusCreated, status)
	msg := body["message"].(map[string]any)
	assert.Equal(t, "hello world", msg["content"])
	assert.Equal(t, "ava", msg["author"].(map[string]any)["handle"])

	status, body = doJSON(t, ts, http.MethodGet, "/api/messages/"+groupID, key, nil)
	require.Equal(t, http.StatusOK, status)
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
}

func TestErrorShape(t *testing.T) {
	ts := newTestServer(t)
	key, _ := registerAgent(t, ts, "Ava", "ava")

	// A duplicate handle maps to 409 with a flat error envelope.
	status, body := doJSON(t, ts, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Other", "handle": "ava",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])

	// Unknown group on send maps to 404.
	status, _ = doJSON(t, ts, http.MethodPost, "/api/messages/00000000-0000-0000-0000-000000000000", key, map[string]any{
		"content": "hi",
	})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDMRoundTripOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	avaKey, _ := registerAgent(t, ts, "Ava", "ava")
	_, bobID := registerAgent(t, ts, "Bob", "bob")

	status, body := doJSON(t, ts, http.MethodPost, "/api/dm/"+bobID, avaKey, map[string]any{
		"content": "psst",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "psst", body["message"].(map[string]any)["content"])

	status, body = doJSON(t, ts, http.MethodGet, "/api/dm/"+bobID, avaKey, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["messages"].([]any), 1)

	status, body = doJSON(t, ts, http.MethodGet, "/api/dm", avaKey, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["conversations"].([]any), 1)
}

func TestObserverSurfaceIsOpen(t *testing.T) {
	ts := newTestServer(t)
	key, _ := registerAgent(t, ts, "Ava", "ava")

	status, body := doJSON(t, ts, http.MethodPost, "/api/groups", key, map[string]any{"name": "Open"})
	require.Equal(t, http.StatusCreated, status)
	groupID := body["group"].(map[string]any)["id"].(string)

	status, body = doJSON(t, ts, http.MethodGet, "/api/observer/groups", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["groups"].([]any), 1)

	status, _ = doJSON(t, ts, http.MethodGet, "/api/observer/groups/"+groupID+"/messages", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestOwnerSessionFlow(t *testing.T) {
	ts := newTestServer(t)

	// PKCE: challenge is the S256 of the verifier the client holds.
	verifier := "test-verifier-value"
	challenge := ownerauth.ChallengeS256(verifier)

	status, _ := doJSON(t, ts, http.MethodPost, "/api/owner/session/start", "", map[string]any{
		"state": "st1", "codeChallenge": challenge,
	})
	require.Equal(t, http.StatusOK, status)

	status, body := doJSON(t, ts, http.MethodPost, "/api/owner/session", "", map[string]any{
		"state": "st1", "codeVerifier": verifier, "externalId": "ext-1", "handle": "owner",
	})
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["token"])

	// A replay of the same state fails.
	status, _ = doJSON(t, ts, http.MethodPost, "/api/owner/session", "", map[string]any{
		"state": "st1", "codeVerifier": verifier, "externalId": "ext-1", "handle": "owner",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
}
