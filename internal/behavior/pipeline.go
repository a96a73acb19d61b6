package behavior

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrUnknownBehavior is returned by a Registry for unregistered kinds.
var ErrUnknownBehavior = errors.New("unknown behavior kind")

// Factory builds entity-defined behavior units from prefab descriptors.
type Factory interface {
	Create(constructID uint64, prefab *Prefab, d Descriptor) (Unit, error)
}

// Constructor builds one unit kind.
type Constructor func(constructID uint64, prefab *Prefab, d Descriptor) (Unit, error)

// Registry is a Factory keyed by behavior kind.
type Registry struct {
	mu    sync.RWMutex
	ctors map[Kind]Constructor
}

func NewRegistry() *Registry {
	r := &Registry{ctors: make(map[Kind]Constructor)}
	r.Register(KindNoop, func(uint64, *Prefab, Descriptor) (Unit, error) { return Noop{}, nil })
	return r
}

func (r *Registry) Register(kind Kind, ctor Constructor) {
	r.mu.Lock()
	r.ctors[kind] = ctor
	r.mu.Unlock()
}

func (r *Registry) Create(constructID uint64, prefab *Prefab, d Descriptor) (Unit, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[d.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBehavior, d.Kind)
	}
	return ctor(constructID, prefab, d)
}

// Composer assembles the ordered pipeline of one construct for one frame.
type Composer struct {
	factory Factory
	log     *zap.Logger
}

func NewComposer(factory Factory, log *zap.Logger) *Composer {
	return &Composer{factory: factory, log: log}
}

// Compose returns alive-check and select-target, then the prefab behaviors in
// declaration order, then update-last-controlled. Every unit is wrapped with
// WithErrorHandler.
func (c *Composer) Compose(h Handle, prefab *Prefab) []Unit {
	n := 3
	if prefab != nil {
		n += len(prefab.Behaviors)
	}
	units := make([]Unit, 0, n)
	units = append(units,
		WithErrorHandler(KindAliveCheck, h.ConstructID, NewAliveCheck(h.ConstructID), c.log),
		WithErrorHandler(KindSelectTarget, h.ConstructID, NewSelectTarget(h.ConstructID), c.log),
	)

	if prefab != nil {
		for _, d := range prefab.Behaviors {
			u, err := c.factory.Create(h.ConstructID, prefab, d)
			if err != nil {
				c.log.Warn("behavior build failed",
					zap.Uint64("construct_id", h.ConstructID),
					zap.String("kind", string(d.Kind)),
					zap.String("prefab", prefab.Name),
					zap.Error(err),
				)
				u = Noop{}
			}
			units = append(units, WithErrorHandler(d.Kind, h.ConstructID, u, c.log))
		}
	}

	units = append(units,
		WithErrorHandler(KindUpdateLastControlled, h.ConstructID, NewUpdateLastControlled(h.ConstructID), c.log),
	)
	return units
}

// UnitPhase names the protocol step a unit failed in.
type UnitPhase string

const (
	PhaseInitialize UnitPhase = "initialize"
	PhaseIsActive   UnitPhase = "is_active"
	PhaseTick       UnitPhase = "tick"
)

// UnitError is a contained failure of one unit.
type UnitError struct {
	Kind  Kind
	Phase UnitPhase
	Err   error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("behavior %s %s: %v", e.Kind, e.Phase, e.Err)
}

func (e *UnitError) Unwrap() error { return e.Err }

// guardedUnit contains errors and panics of the wrapped unit at its boundary.
type guardedUnit struct {
	kind        Kind
	constructID uint64
	inner       Unit
	log         *zap.Logger
}

// WithErrorHandler wraps u so that a failure inside it is logged with the
// construct and kind and returned as a *UnitError instead of propagating.
func WithErrorHandler(kind Kind, constructID uint64, u Unit, log *zap.Logger) Unit {
	return &guardedUnit{kind: kind, constructID: constructID, inner: u, log: log}
}

func (g *guardedUnit) Kind() Kind { return g.kind }

func (g *guardedUnit) Initialize(ctx context.Context, bc *Context) (err error) {
	defer g.recoverInto(PhaseInitialize, &err)
	return g.check(PhaseInitialize, g.inner.Initialize(ctx, bc))
}

// IsActive reports false when the wrapped unit panics.
func (g *guardedUnit) IsActive() (active bool) {
	defer func() {
		if rec := recover(); rec != nil {
			g.log.Error("behavior panic recovered",
				zap.Uint64("construct_id", g.constructID),
				zap.String("kind", string(g.kind)),
				zap.String("phase", string(PhaseIsActive)),
				zap.Any("panic", rec),
			)
			active = false
		}
	}()
	return g.inner.IsActive()
}

func (g *guardedUnit) Tick(ctx context.Context, bc *Context) (err error) {
	defer g.recoverInto(PhaseTick, &err)
	return g.check(PhaseTick, g.inner.Tick(ctx, bc))
}

func (g *guardedUnit) check(phase UnitPhase, err error) error {
	if err == nil {
		return nil
	}
	g.log.Error("behavior failed",
		zap.Uint64("construct_id", g.constructID),
		zap.String("kind", string(g.kind)),
		zap.String("phase", string(phase)),
		zap.Error(err),
	)
	return &UnitError{Kind: g.kind, Phase: phase, Err: err}
}

func (g *guardedUnit) recoverInto(phase UnitPhase, err *error) {
	if rec := recover(); rec != nil {
		g.log.Error("behavior panic recovered",
			zap.Uint64("construct_id", g.constructID),
			zap.String("kind", string(g.kind)),
			zap.String("phase", string(phase)),
			zap.Any("panic", rec),
		)
		*err = &UnitError{Kind: g.kind, Phase: phase, Err: fmt.Errorf("panic: %v", rec)}
	}
}

// kindOf returns the kind of a guarded unit, or KindNoop when unknown.
func kindOf(u Unit) Kind {
	if k, ok := u.(interface{ Kind() Kind }); ok {
		return k.Kind()
	}
	return KindNoop
}
