package system

import (
	"context"
	"time"

	"github.com/CredenceHamby/mydu-pve-mod/internal/core/event"
	coresys "github.com/CredenceHamby/mydu-pve-mod/internal/core/system"
	"github.com/CredenceHamby/mydu-pve-mod/internal/persist"
	"go.uber.org/zap"
)

// EventWriter stores a batch of NPC events.
type EventWriter interface {
	WriteEvents(ctx context.Context, rows []persist.EventRow) error
}

// maxPendingEvents bounds the buffer while the database is unreachable.
const maxPendingEvents = 10000

// EventPersistSystem buffers NPC events from the bus and writes them in one
// transaction every interval frames. Phase 2 (Persist).
type EventPersistSystem struct {
	bus       *event.Bus
	writer    EventWriter
	log       *zap.Logger
	pending   []persist.EventRow
	tickCount int
	interval  int // flush every N frames
}

func NewEventPersistSystem(bus *event.Bus, writer EventWriter, log *zap.Logger, intervalTicks int) *EventPersistSystem {
	if intervalTicks < 1 {
		intervalTicks = 1
	}
	s := &EventPersistSystem{bus: bus, writer: writer, log: log, interval: intervalTicks}
	event.Subscribe(bus, func(e event.PlayerDefeatedNpc) { s.add(e) })
	event.Subscribe(bus, func(e event.ConstructEventFired) { s.add(e) })
	return s
}

func (s *EventPersistSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *EventPersistSystem) Update(ctx context.Context, _ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	_ = s.Flush(ctx)
}

// Flush writes all buffered events immediately. A failed write keeps the
// batch for the next attempt.
func (s *EventPersistSystem) Flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	if err := s.writer.WriteEvents(ctx, s.pending); err != nil {
		s.log.Error("event flush failed", zap.Int("pending", len(s.pending)), zap.Error(err))
		return err
	}
	s.log.Debug("events flushed", zap.Int("count", len(s.pending)))
	s.pending = s.pending[:0]
	return nil
}

// Drain delivers events still queued on the bus and writes everything
// buffered. Called once on shutdown, after the last frame, so events
// published during that frame reach the database.
func (s *EventPersistSystem) Drain(ctx context.Context) error {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
	return s.Flush(ctx)
}

// Pending returns the number of buffered events.
func (s *EventPersistSystem) Pending() int { return len(s.pending) }

func (s *EventPersistSystem) add(ev any) {
	row, ok := persist.EventRowFrom(ev)
	if !ok {
		return
	}
	if len(s.pending) >= maxPendingEvents {
		s.log.Warn("event buffer full, dropping oldest", zap.Int("limit", maxPendingEvents))
		s.pending = s.pending[1:]
	}
	s.pending = append(s.pending, row)
}
