package behavior

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// targetReselectInterval is how long a selection is kept before the radar is
// read again.
const targetReselectInterval = 10 * time.Second

// SelectTarget keeps the context's target current: every player seen on the
// radar joins the player set and the nearest player construct is targeted.
type SelectTarget struct {
	constructID uint64
	bc          *Context
}

func NewSelectTarget(constructID uint64) *SelectTarget {
	return &SelectTarget{constructID: constructID}
}

func (b *SelectTarget) Initialize(_ context.Context, bc *Context) error {
	b.bc = bc
	return nil
}

func (b *SelectTarget) IsActive() bool {
	return b.bc != nil && b.bc.IsAlive && b.bc.IsBehaviorActive(KindSelectTarget)
}

func (b *SelectTarget) Tick(ctx context.Context, bc *Context) error {
	now := bc.Services.now()
	if !bc.TargetSelectedTime.IsZero() && now.Sub(bc.TargetSelectedTime) < targetReselectInterval {
		return nil
	}

	if bc.Client == nil {
		return errors.New("no world client")
	}
	contacts, err := bc.Client.Radar(ctx, b.constructID)
	if err != nil {
		return fmt.Errorf("radar: %w", err)
	}

	var best uint64
	bestDist := math.Inf(1)
	for _, c := range contacts {
		if c.ConstructID == b.constructID || c.PlayerID == 0 {
			continue
		}
		bc.Players().Add(c.PlayerID, c.ConstructID)
		if d := bc.Position.Dist(c.Position); d < bestDist {
			best, bestDist = c.ConstructID, d
		}
	}

	bc.TargetConstructID = best
	bc.TargetSelectedTime = now
	return nil
}
