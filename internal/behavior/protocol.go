package behavior

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CredenceHamby/mydu-pve-mod/internal/world"
	"go.uber.org/zap"
)

// Report is the outcome of one pipeline run.
type Report struct {
	ConstructID uint64
	Initialized int // units whose Initialize succeeded
	Ticked      int // units whose Tick was called
	Skipped     int // units not ticked (inactive or failed to initialize)
	Failures    []*UnitError
}

// OK reports whether every unit ran without failure.
func (r Report) OK() bool { return len(r.Failures) == 0 }

func (r *Report) fail(u Unit, phase UnitPhase, err error) {
	var ue *UnitError
	if !errors.As(err, &ue) {
		ue = &UnitError{Kind: kindOf(u), Phase: phase, Err: err}
	}
	r.Failures = append(r.Failures, ue)
}

// RunPipeline applies the two-phase protocol to units in order. Every unit is
// initialized, then every unit that initialized and reports IsActive ticks.
// Units are expected to be wrapped with WithErrorHandler.
func RunPipeline(ctx context.Context, bc *Context, units []Unit) Report {
	rep := Report{ConstructID: bc.ConstructID}

	initFailed := make([]bool, len(units))
	for i, u := range units {
		if err := u.Initialize(ctx, bc); err != nil {
			initFailed[i] = true
			rep.fail(u, PhaseInitialize, err)
			continue
		}
		rep.Initialized++
	}

	for i, u := range units {
		if initFailed[i] || !u.IsActive() {
			rep.Skipped++
			continue
		}
		rep.Ticked++
		if err := u.Tick(ctx, bc); err != nil {
			rep.fail(u, PhaseTick, err)
		}
	}
	return rep
}

// Executor runs the per-construct tick procedure.
type Executor struct {
	resolver Resolver
	composer *Composer
	cache    *Cache
	client   world.Client
	services *Services
	log      *zap.Logger
}

func NewExecutor(resolver Resolver, composer *Composer, cache *Cache, client world.Client, svc *Services, log *zap.Logger) *Executor {
	return &Executor{
		resolver: resolver,
		composer: composer,
		cache:    cache,
		client:   client,
		services: svc,
		log:      log,
	}
}

func (e *Executor) Cache() *Cache { return e.cache }

// TickConstruct advances one construct by one frame: resolve its prefab,
// compose the pipeline, fetch or create its context, run the protocol and
// write the context back. ErrUnresolvedDefinition means "not ready yet".
func (e *Executor) TickConstruct(ctx context.Context, dt time.Duration, h Handle) (Report, error) {
	if h.Prefab == "" {
		return Report{ConstructID: h.ConstructID}, ErrUnresolvedDefinition
	}
	prefab, err := e.resolver.Resolve(h.Prefab)
	if err != nil {
		return Report{ConstructID: h.ConstructID}, fmt.Errorf("%w: %s: %w", ErrUnresolvedDefinition, h.Prefab, err)
	}

	units := e.composer.Compose(h, prefab)

	bc := e.cache.GetOrDefault(h.ConstructID, func() *Context {
		return NewContext(h.ConstructID, h.Sector, e.client, e.services, prefab)
	})
	// Pick up reloaded definitions for long-lived contexts.
	bc.Prefab = prefab
	bc.SetDeltaTime(dt.Seconds())

	rep := RunPipeline(ctx, bc, units)

	e.cache.Set(h.ConstructID, bc)
	return rep, nil
}
