package system

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const numPhases = int(PhaseCleanup) + 1

// Runner executes systems in phase order each frame. Systems sharing a phase
// keep their registration order.
type Runner struct {
	phases [numPhases][]System

	budget time.Duration
	log    *zap.Logger
	now    func() time.Time
}

func NewRunner() *Runner {
	return &Runner{now: time.Now}
}

// Register adds s to its phase. Systems reporting an unknown phase run last.
func (r *Runner) Register(s System) {
	p := int(s.Phase())
	if p < 0 || p >= numPhases {
		p = numPhases - 1
	}
	r.phases[p] = append(r.phases[p], s)
}

// WarnSlowFrames logs a warning whenever a full Tick takes longer than budget.
func (r *Runner) WarnSlowFrames(budget time.Duration, log *zap.Logger) {
	r.budget = budget
	r.log = log
}

// Tick runs every phase. A cancelled ctx stops the frame between systems.
func (r *Runner) Tick(ctx context.Context, dt time.Duration) {
	start := r.now()
	for p := range r.phases {
		for _, s := range r.phases[p] {
			if ctx.Err() != nil {
				return
			}
			s.Update(ctx, dt)
		}
	}
	if r.log != nil && r.budget > 0 {
		if took := r.now().Sub(start); took > r.budget {
			r.log.Warn("slow frame",
				zap.Duration("took", took),
				zap.Duration("budget", r.budget),
				zap.Duration("dt", dt),
			)
		}
	}
}

// TickPhase runs only the systems of one phase.
func (r *Runner) TickPhase(ctx context.Context, phase Phase, dt time.Duration) {
	p := int(phase)
	if p < 0 || p >= numPhases {
		return
	}
	for _, s := range r.phases[p] {
		s.Update(ctx, dt)
	}
}

// Len returns the number of registered systems.
func (r *Runner) Len() int {
	n := 0
	for _, ss := range r.phases {
		n += len(ss)
	}
	return n
}
