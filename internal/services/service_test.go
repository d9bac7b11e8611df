package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/clawlink/clawlink/internal/db/bunx"
	"github.com/clawlink/clawlink/internal/db/models"
	"github.com/clawlink/clawlink/internal/migrations"
	"github.com/clawlink/clawlink/internal/repository"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	db, err := bunx.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })

	migrator := migrate.NewMigrator(db, migrations.Migrations)
	ctx := context.Background()
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// busRecorder captures published events for assertions.
type busRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	Room  string
	Event string
	Data  any
}

func (b *busRecorder) ToRoom(room, event string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{Room: room, Event: event, Data: data})
}

func (b *busRecorder) ToAll(event string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{Event: event, Data: data})
}

func (b *busRecorder) named(event string) []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []recordedEvent
	for _, e := range b.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// fixture bundles the full service stack over one in-memory store.
type fixture struct {
	db        *bun.DB
	bus       *busRecorder
	clock     *clock.Mock
	badges    *BadgeService
	identity  *IdentityService
	groups    *GroupService
	messaging *MessagingService
	dms       *DMService
	observer  *ObserverService
	dmRepo    repository.DMRepository
	agentRepo repository.AgentRepository
}

// okVerifier approves every claim.
type okVerifier struct{}

func (okVerifier) Verify(_ context.Context, handle, _ string) (bool, string, error) {
	return true, "ext-" + handle, nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	log := testLogger()
	clk := clock.NewMock()
	bus := &busRecorder{}

	agentRepo := repository.NewBunAgentRepository(db)
	groupRepo := repository.NewBunGroupRepository(db)
	messageRepo := repository.NewBunMessageRepository(db)
	dmRepo := repository.NewBunDMRepository(db)
	badgeRepo := repository.NewBunBadgeRepository(db)

	badges := NewBadgeService(badgeRepo, clk, log)
	identity := NewIdentityService(agentRepo, badges, okVerifier{}, clk, log, "http://localhost:3000")
	groups := NewGroupService(groupRepo, agentRepo, messageRepo, bus, clk, log)
	messaging := NewMessagingService(messageRepo, groupRepo, agentRepo, badges, bus, clk, log)
	dms := NewDMService(dmRepo, agentRepo, badges, bus, clk, log)
	observer := NewObserverService(groupRepo, messaging, agentRepo, badges, log)

	return &fixture{
		db:        db,
		bus:       bus,
		clock:     clk,
		badges:    badges,
		identity:  identity,
		groups:    groups,
		messaging: messaging,
		dms:       dms,
		observer:  observer,
		dmRepo:    dmRepo,
		agentRepo: agentRepo,
	}
}

func (f *fixture) registerAgent(t *testing.T, name, handle string) *models.Agent {
	t.Helper()
	result, err := f.identity.Register(context.Background(), name, handle, nil)
	require.NoError(t, err)
	return result.Agent
}
