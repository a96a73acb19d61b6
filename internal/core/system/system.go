package system

import (
	"context"
	"time"
)

// Phase defines execution ordering within a single frame.
type Phase int

const (
	PhasePreUpdate Phase = iota // 0: deliver last frame's events
	PhaseUpdate                 // 1: construct behavior ticks
	PhasePersist                // 2: batch writes
	PhaseCleanup                // 3: cache eviction
)

func (p Phase) String() string {
	switch p {
	case PhasePreUpdate:
		return "pre_update"
	case PhaseUpdate:
		return "update"
	case PhasePersist:
		return "persist"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// System is the interface every frame system implements.
type System interface {
	Phase() Phase
	Update(ctx context.Context, dt time.Duration)
}
