package prefab

import (
	"context"
	"errors"
	"fmt"

	"github.com/CredenceHamby/mydu-pve-mod/internal/behavior"
	"github.com/CredenceHamby/mydu-pve-mod/internal/scripting"
	"go.uber.org/multierr"
)

// ErrUnknownPrefab is returned when no loaded prefab has the requested name.
var ErrUnknownPrefab = errors.New("unknown prefab")

// ScriptRunner executes Lua functions for actions and script behaviors.
type ScriptRunner interface {
	HasFunction(name string) bool
	CallAction(ctx context.Context, fn string, ac scripting.ActionContext) error
	RunBehavior(ctx context.Context, fn string, bc scripting.BehaviorContext) ([]scripting.BehaviorCommand, error)
}

// Library is an immutable set of hydrated prefabs.
type Library struct {
	prefabs map[string]*behavior.Prefab
}

// Build hydrates definitions, binding event actions to runner. Every bound
// function must exist.
func Build(defs []Definition, runner ScriptRunner) (*Library, error) {
	lib := &Library{prefabs: make(map[string]*behavior.Prefab, len(defs))}
	var errs error
	for _, d := range defs {
		if err := validate(d, runner); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		lib.prefabs[d.Name] = hydrate(d, runner)
	}
	if errs != nil {
		return nil, errs
	}
	return lib, nil
}

func validate(d Definition, runner ScriptRunner) error {
	var errs error
	for _, fn := range d.Events.functions() {
		if fn != "" && !runner.HasFunction(fn) {
			errs = multierr.Append(errs, fmt.Errorf("prefab %q: event function %q not defined", d.Name, fn))
		}
	}
	for _, b := range d.Behaviors {
		if b.Kind != KindScript {
			continue
		}
		fn := b.String("function")
		if fn == "" || !runner.HasFunction(fn) {
			errs = multierr.Append(errs, fmt.Errorf("prefab %q: script behavior function %q not defined", d.Name, fn))
		}
	}
	return errs
}

func hydrate(d Definition, runner ScriptRunner) *behavior.Prefab {
	p := &behavior.Prefab{
		Name:      d.Name,
		Behaviors: append([]behavior.Descriptor(nil), d.Behaviors...),
		Events: behavior.Events{
			OnDestruction:      bind(runner, d.Events.OnDestruction),
			OnCoreStressHigh:   bind(runner, d.Events.OnCoreStressHigh),
			OnShieldHalfAction: bind(runner, d.Events.OnShieldHalf),
			OnShieldLowAction:  bind(runner, d.Events.OnShieldLow),
			OnShieldDownAction: bind(runner, d.Events.OnShieldDown),
		},
	}
	if len(d.Events.Custom) > 0 {
		p.Events.Custom = make(map[string]behavior.EventAction, len(d.Events.Custom))
		for name, fn := range d.Events.Custom {
			p.Events.Custom[name] = bind(runner, fn)
		}
	}
	return p
}

func (l *Library) Get(name string) (*behavior.Prefab, bool) {
	p, ok := l.prefabs[name]
	return p, ok
}

func (l *Library) Count() int {
	return len(l.prefabs)
}

// scriptAction runs one Lua function as a prefab event action.
type scriptAction struct {
	runner ScriptRunner
	fn     string
}

func bind(runner ScriptRunner, fn string) behavior.EventAction {
	if fn == "" {
		return nil
	}
	return scriptAction{runner: runner, fn: fn}
}

func (a scriptAction) Execute(ctx context.Context, sc behavior.ScriptContext) error {
	return a.runner.CallAction(ctx, a.fn, scripting.ActionContext{
		ConstructID: sc.ConstructID,
		PlayerIDs:   sc.PlayerIDs,
		SectorX:     sc.Sector.X,
		SectorY:     sc.Sector.Y,
		SectorZ:     sc.Sector.Z,
	})
}
