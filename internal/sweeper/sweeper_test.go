package sweeper

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/migrate"

	"github.com/clawlink/clawlink/internal/db/bunx"
	"github.com/clawlink/clawlink/internal/db/models"
	"github.com/clawlink/clawlink/internal/migrations"
	"github.com/clawlink/clawlink/internal/realtime"
	"github.com/clawlink/clawlink/internal/repository"
)

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

type harness struct {
	sweeper *Sweeper
	dms     repository.DMRepository
	bus     *busRecorder
	clock   *clock.Mock
	ava     *models.Agent
	bob     *models.Agent
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := bunx.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)

	clk := clock.NewMock()
	bus := &busRecorder{}
	agents := repository.NewBunAgentRepository(db)
	dms := repository.NewBunDMRepository(db)

	now := clk.Now().UTC()
	ava := &models.Agent{ID: uuid.NewString(), Name: "Ava", Handle: "ava", APIKey: "clk_a", LastSeen: now, CreatedAt: now, UpdatedAt: now}
	bob := &models.Agent{ID: uuid.NewString(), Name: "Bob", Handle: "bob", APIKey: "clk_b", LastSeen: now, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, agents.Create(ctx, ava))
	require.NoError(t, agents.Create(ctx, bob))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &harness{
		sweeper: New(dms, bus, clk, log),
		dms:     dms,
		bus:     bus,
		clock:   clk,
		ava:     ava,
		bob:     bob,
	}
}

func (h *harness) insertDM(t *testing.T, expiresAt *time.Time) *models.DirectMessage {
	t.Helper()
	dm := &models.DirectMessage{
		ID:          ulid.Make().String(),
		FromAgentID: h.ava.ID,
		ToAgentID:   h.bob.ID,
		Content:     "hello",
		ExpiresAt:   expiresAt,
		CreatedAt:   h.clock.Now().UTC(),
	}
	require.NoError(t, h.dms.Insert(context.Background(), dm))
	return dm
}

func TestSweepDeletesExpiredAndNotifiesBothSides(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	expiry := h.clock.Now().UTC().Add(time.Hour)
	doomed := h.insertDM(t, &expiry)
	keeper := h.insertDM(t, nil)

	// Nothing expired yet.
	require.NoError(t, h.sweeper.Sweep(ctx))
	assert.Empty(t, h.bus.named(realtime.EventDMExpired))

	h.clock.Add(2 * time.Hour)
	require.NoError(t, h.sweeper.Sweep(ctx))

	events := h.bus.named(realtime.EventDMExpired)
	require.Len(t, events, 2)
	rooms := []string{events[0].Room, events[1].Room}
	assert.ElementsMatch(t, []string{realtime.AgentRoom(h.ava.ID), realtime.AgentRoom(h.bob.ID)}, rooms)
	payload, ok := events[0].Data.(realtime.DMExpiredPayload)
	require.True(t, ok)
	assert.Equal(t, doomed.ID, payload.MessageID)

	_, err := h.dms.GetByID(ctx, doomed.ID)
	require.Error(t, err)
	_, err = h.dms.GetByID(ctx, keeper.ID)
	require.NoError(t, err, "messages without a timer survive")
}

func TestSweepIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	expiry := h.clock.Now().UTC().Add(time.Minute)
	h.insertDM(t, &expiry)
	h.clock.Add(2 * time.Minute)

	require.NoError(t, h.sweeper.Sweep(ctx))
	require.NoError(t, h.sweeper.Sweep(ctx))
	assert.Len(t, h.bus.named(realtime.EventDMExpired), 2, "one notification per side, once")
}

func TestRunSweepsOnTicks(t *testing.T) {
	h := newHarness(t)

	expiry := h.clock.Now().UTC().Add(30 * time.Second)
	h.insertDM(t, &expiry)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.sweeper.Run(ctx)
		close(done)
	}()

	// Give the goroutine a beat to install its ticker, then advance past
	// one interval.
	time.Sleep(10 * time.Millisecond)
	h.clock.Add(Interval + time.Second)
	require.Eventually(t, func() bool {
		return len(h.bus.named(realtime.EventDMExpired)) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
