package world

import (
	"context"
	"errors"
	"math"
)

// ErrConstructNotFound is returned when the game world has no construct with
// the requested id (removed, or never spawned).
var ErrConstructNotFound = errors.New("construct not found")

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Len() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// Dist returns the euclidean distance between two points.
func (v Vec3) Dist(o Vec3) float64 { return v.Sub(o).Len() }

type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// ConstructInfo is the physical state of one construct as seen by the game world.
type ConstructInfo struct {
	ConstructID     uint64  `json:"construct_id"`
	Destroyed       bool    `json:"destroyed"`
	Position        Vec3    `json:"position"`
	Velocity        Vec3    `json:"velocity"`
	Rotation        Quat    `json:"rotation"`
	ShieldRatio     float64 `json:"shield_ratio"`      // 0.0-1.0
	CoreStressRatio float64 `json:"core_stress_ratio"` // 0.0-1.0
}

// Contact is one construct on the radar of another.
type Contact struct {
	ConstructID uint64 `json:"construct_id"`
	PlayerID    uint64 `json:"player_id"` // 0 = not player controlled
	Position    Vec3   `json:"position"`
}

// Client reads and writes construct state in the game world. Implementations
// must be safe for concurrent use by many behavior executions.
type Client interface {
	ConstructInfo(ctx context.Context, constructID uint64) (ConstructInfo, error)
	Radar(ctx context.Context, constructID uint64) ([]Contact, error)
	ResetCombatLock(ctx context.Context, constructID uint64) error
}
