package behavior

import (
	"context"
	"errors"

	"github.com/CredenceHamby/mydu-pve-mod/internal/world"
)

// ErrUnresolvedDefinition means a handle's prefab could not be resolved this
// frame. The construct is skipped, not dropped.
var ErrUnresolvedDefinition = errors.New("construct definition unresolved")

// Resolver hydrates the prefab a handle refers to.
type Resolver interface {
	Resolve(name string) (*Prefab, error)
}

// Prefab is the static definition of a construct.
type Prefab struct {
	Name      string
	Behaviors []Descriptor
	Events    Events
}

// Events holds the event-action bindings of a prefab. Nil actions are no-ops.
type Events struct {
	OnDestruction      EventAction
	OnCoreStressHigh   EventAction
	OnShieldHalfAction EventAction
	OnShieldLowAction  EventAction
	OnShieldDownAction EventAction
	Custom             map[string]EventAction
}

// ScriptContext is what an event action sees when it runs.
type ScriptContext struct {
	ConstructID uint64
	PlayerIDs   []uint64
	Sector      world.Vec3
}

type EventAction interface {
	Execute(ctx context.Context, sc ScriptContext) error
}

// ActionFunc adapts a function to EventAction.
type ActionFunc func(ctx context.Context, sc ScriptContext) error

func (f ActionFunc) Execute(ctx context.Context, sc ScriptContext) error { return f(ctx, sc) }

func execute(ctx context.Context, a EventAction, sc ScriptContext) error {
	if a == nil {
		return nil
	}
	return a.Execute(ctx, sc)
}
