package system

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CredenceHamby/mydu-pve-mod/internal/behavior"
	"github.com/CredenceHamby/mydu-pve-mod/internal/core/snapshot"
	coresys "github.com/CredenceHamby/mydu-pve-mod/internal/core/system"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ConstructTicker runs the per-construct tick procedure.
type ConstructTicker interface {
	TickConstruct(ctx context.Context, dt time.Duration, h behavior.Handle) (behavior.Report, error)
}

// FrameStats summarises one frame of the construct loop.
type FrameStats struct {
	Disabled     bool
	Launched     int // executions started this frame
	Completed    int // executions finished before the frame returned
	InFlight     int // skipped, previous execution still outstanding
	Unresolved   int // skipped, prefab not resolvable yet
	Failed       int // execution returned an error or panicked
	UnitFailures int // contained unit failures across all reports
}

// ConstructLoop fans out one isolated execution per active construct every
// frame. Phase 1 (Update).
//
// A construct whose previous execution is still running is skipped for the
// frame. Each execution is bounded by the execution timeout, and the frame
// waits for the executions it launched at most that long.
type ConstructLoop struct {
	handles *snapshot.Cell[[]behavior.Handle]
	enabled *snapshot.Cell[bool]
	ticker  ConstructTicker
	workers int
	timeout time.Duration
	log     *zap.Logger

	mu       sync.Mutex
	inflight map[uint64]struct{}

	last atomic.Pointer[FrameStats]
}

func NewConstructLoop(handles *snapshot.Cell[[]behavior.Handle], enabled *snapshot.Cell[bool], ticker ConstructTicker, workers int, timeout time.Duration, log *zap.Logger) *ConstructLoop {
	return &ConstructLoop{
		handles:  handles,
		enabled:  enabled,
		ticker:   ticker,
		workers:  workers,
		timeout:  timeout,
		log:      log,
		inflight: make(map[uint64]struct{}),
	}
}

func (s *ConstructLoop) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *ConstructLoop) Update(ctx context.Context, dt time.Duration) {
	stats := s.RunFrame(ctx, dt)
	s.last.Store(&stats)
}

// LastFrame returns the stats of the most recent Update.
func (s *ConstructLoop) LastFrame() FrameStats {
	if st := s.last.Load(); st != nil {
		return *st
	}
	return FrameStats{}
}

type frameCounters struct {
	completed, unresolved, failed, unitFailures atomic.Int64
}

// RunFrame executes one frame and returns its stats.
func (s *ConstructLoop) RunFrame(ctx context.Context, dt time.Duration) FrameStats {
	if !s.enabled.Load() {
		return FrameStats{Disabled: true}
	}

	handles := s.handles.Load()
	var (
		stats  FrameStats
		counts frameCounters
	)

	launch := make([]behavior.Handle, 0, len(handles))
	for _, h := range handles {
		if !s.acquire(h.ConstructID) {
			stats.InFlight++
			continue
		}
		launch = append(launch, h)
	}
	stats.Launched = len(launch)
	if len(launch) == 0 {
		return stats
	}

	g := &errgroup.Group{}
	if s.workers > 0 {
		g.SetLimit(s.workers)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, h := range launch {
			h := h
			g.Go(func() error {
				defer s.release(h.ConstructID)
				s.execute(ctx, dt, h, &counts)
				return nil
			})
		}
		_ = g.Wait()
	}()

	if s.timeout > 0 {
		timer := time.NewTimer(s.timeout)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			s.log.Warn("frame deadline reached with executions outstanding",
				zap.Int("launched", stats.Launched),
				zap.Int64("completed", counts.completed.Load()),
			)
		}
	} else {
		<-done
	}

	stats.Completed = int(counts.completed.Load())
	stats.Unresolved = int(counts.unresolved.Load())
	stats.Failed = int(counts.failed.Load())
	stats.UnitFailures = int(counts.unitFailures.Load())
	return stats
}

// execute is the per-construct isolation boundary.
func (s *ConstructLoop) execute(ctx context.Context, dt time.Duration, h behavior.Handle, counts *frameCounters) {
	defer counts.completed.Add(1)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rep, err := s.runIsolated(ctx, dt, h)
	switch {
	case errors.Is(err, behavior.ErrUnresolvedDefinition):
		counts.unresolved.Add(1)
	case err != nil:
		counts.failed.Add(1)
		s.log.Error("construct execution failed",
			zap.Uint64("construct_id", h.ConstructID),
			zap.String("prefab", h.Prefab),
			zap.Error(err),
		)
	default:
		counts.unitFailures.Add(int64(len(rep.Failures)))
	}
}

func (s *ConstructLoop) runIsolated(ctx context.Context, dt time.Duration, h behavior.Handle) (rep behavior.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.ticker.TickConstruct(ctx, dt, h)
}

func (s *ConstructLoop) acquire(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *ConstructLoop) release(id uint64) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}
