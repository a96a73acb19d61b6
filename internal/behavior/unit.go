// Package behavior schedules construct AI: the per-construct context carried
// across frames, the pipeline of behavior units run against it, and the
// execution protocol that isolates unit failures.
package behavior

import (
	"context"

	"github.com/CredenceHamby/mydu-pve-mod/internal/world"
)

// Kind is a stable identifier for a behavior unit type. Kinds are persisted in
// prefab files and activation flags, so existing values must never change.
type Kind string

const (
	KindAliveCheck           Kind = "alive-check"
	KindSelectTarget         Kind = "select-target"
	KindUpdateLastControlled Kind = "update-last-controlled"
	KindNoop                 Kind = "noop"
)

// Unit is one step of a construct's behavior pipeline.
//
// Initialize is called every frame before any unit ticks, even when the unit
// will not be active. Tick is only called when IsActive reports true.
type Unit interface {
	Initialize(ctx context.Context, bc *Context) error
	IsActive() bool
	Tick(ctx context.Context, bc *Context) error
}

// Handle identifies one schedulable construct. Handles are immutable once
// published in an active set.
type Handle struct {
	ConstructID uint64
	Sector      world.Vec3
	Prefab      string // definition reference, empty when not assigned yet
}

// Descriptor declares one entity-defined behavior in a prefab.
type Descriptor struct {
	Kind   Kind           `yaml:"kind"`
	Params map[string]any `yaml:"params,omitempty"`
}

// String returns the descriptor param key, or "" when missing or not a string.
func (d Descriptor) String(key string) string {
	s, _ := d.Params[key].(string)
	return s
}

// Noop is a unit that never does anything. It stands in for behaviors the
// factory could not build.
type Noop struct{}

func (Noop) Initialize(context.Context, *Context) error { return nil }
func (Noop) IsActive() bool                             { return false }
func (Noop) Tick(context.Context, *Context) error       { return nil }
