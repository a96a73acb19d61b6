package system

import (
	"context"
	"time"

	"github.com/CredenceHamby/mydu-pve-mod/internal/core/event"
	coresys "github.com/CredenceHamby/mydu-pve-mod/internal/core/system"
)

// EventDispatchSystem delivers the events published during the previous
// frame. Phase 0 (PreUpdate).
type EventDispatchSystem struct {
	bus *event.Bus
}

func NewEventDispatchSystem(bus *event.Bus) *EventDispatchSystem {
	return &EventDispatchSystem{bus: bus}
}

func (s *EventDispatchSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *EventDispatchSystem) Update(_ context.Context, _ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
