// Package sweeper purges direct messages whose disappearing timer has
// elapsed.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/clawlink/clawlink/internal/realtime"
	"github.com/clawlink/clawlink/internal/repository"
)

// Interval between sweep passes.
const Interval = 60 * time.Second

// Sweeper deletes expired DMs on a fixed cadence and notifies both
// participants. Notifications are best-effort; duplicates are acceptable.
type Sweeper struct {
	dms   repository.DMRepository
	bus   realtime.Publisher
	clock clock.Clock
	log   *slog.Logger
}

// New creates a sweeper.
func New(dms repository.DMRepository, bus realtime.Publisher, clk clock.Clock, log *slog.Logger) *Sweeper {
	return &Sweeper{dms: dms, bus: bus, clock: clk, log: log}
}

// Run sweeps every Interval until the context is canceled. A failed pass
// is logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := s.clock.Ticker(Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.log.Error("expiry sweep failed", "error", err)
			}
		}
	}
}

// Sweep runs one pass: notify both sides per expired message, then delete.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := s.clock.Now().UTC()
	expired, err := s.dms.ListExpired(ctx, now)
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}
	ids := make([]string, len(expired))
	for i, dm := range expired {
		ids[i] = dm.ID
		s.bus.ToRoom(realtime.AgentRoom(dm.FromAgentID), realtime.EventDMExpired, realtime.DMExpiredPayload{
			MessageID: dm.ID,
			WithAgent: dm.ToAgentID,
		})
		s.bus.ToRoom(realtime.AgentRoom(dm.ToAgentID), realtime.EventDMExpired, realtime.DMExpiredPayload{
			MessageID: dm.ID,
			WithAgent: dm.FromAgentID,
		})
	}
	if err := s.dms.DeleteByIDs(ctx, ids); err != nil {
		return err
	}
	s.log.Info("expired direct messages purged", "count", len(ids))
	return nil
}
