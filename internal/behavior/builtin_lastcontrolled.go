package behavior

import (
	"context"
	"fmt"
	"time"
)

const (
	lastControlledInterval = 5 * time.Second
	propLastControlled     = "last_controlled_at"
)

// LastControlledStore persists the time a construct was last driven by the loop.
type LastControlledStore interface {
	TouchLastControlled(ctx context.Context, constructID uint64, at time.Time) error
}

// UpdateLastControlled runs last in every pipeline and records that the loop
// still controls the construct. Writes are throttled to one per interval.
type UpdateLastControlled struct {
	constructID uint64
	bc          *Context
}

func NewUpdateLastControlled(constructID uint64) *UpdateLastControlled {
	return &UpdateLastControlled{constructID: constructID}
}

func (b *UpdateLastControlled) Initialize(_ context.Context, bc *Context) error {
	b.bc = bc
	return nil
}

func (b *UpdateLastControlled) IsActive() bool {
	return b.bc != nil && b.bc.IsBehaviorActive(KindUpdateLastControlled)
}

func (b *UpdateLastControlled) Tick(ctx context.Context, bc *Context) error {
	if bc.Services == nil || bc.Services.LastControlled == nil {
		return nil
	}
	now := bc.Services.now()
	if last, ok := Property[time.Time](bc.Properties(), propLastControlled); ok && now.Sub(last) < lastControlledInterval {
		return nil
	}
	if err := bc.Services.LastControlled.TouchLastControlled(ctx, b.constructID, now); err != nil {
		return fmt.Errorf("touch last controlled: %w", err)
	}
	bc.Properties().Set(propLastControlled, now)
	return nil
}
