package event

import "time"

// PlayerDefeatedNpc is published once per associated player when an NPC
// construct is destroyed.
type PlayerDefeatedNpc struct {
	PlayerID    uint64
	ConstructID uint64
	SectorX     float64
	SectorY     float64
	SectorZ     float64
	PlayerCount int
	At          time.Time
}

// ConstructEventFired records a one-shot construct notification (shield
// thresholds, core stress, custom events) for downstream consumers.
type ConstructEventFired struct {
	ConstructID uint64
	Name        string
	PlayerCount int
	At          time.Time
}
