package behavior

import (
	"context"
	"errors"
	"fmt"

	"github.com/CredenceHamby/mydu-pve-mod/internal/world"
	"go.uber.org/multierr"
)

// Threshold ratios for one-shot shield and core stress notifications.
const (
	shieldHalfRatio = 0.5
	shieldLowRatio  = 0.25
	coreStressHigh  = 0.75
)

// AliveCheck reads the construct's physical state each frame. A missing or
// destroyed construct is marked dead and its destruction is notified. Target
// selection stops, and the check deactivates itself so a dead construct costs
// no further world reads. Live constructs get their position copied into the
// context and their shield and core stress thresholds checked.
type AliveCheck struct {
	constructID uint64
	bc          *Context
}

func NewAliveCheck(constructID uint64) *AliveCheck {
	return &AliveCheck{constructID: constructID}
}

func (b *AliveCheck) Initialize(_ context.Context, bc *Context) error {
	b.bc = bc
	return nil
}

func (b *AliveCheck) IsActive() bool {
	return b.bc != nil && b.bc.IsBehaviorActive(KindAliveCheck)
}

func (b *AliveCheck) Tick(ctx context.Context, bc *Context) error {
	if bc.Client == nil {
		return errors.New("no world client")
	}
	info, err := bc.Client.ConstructInfo(ctx, b.constructID)
	switch {
	case errors.Is(err, world.ErrConstructNotFound):
		return b.destroyed(ctx, bc, false)
	case err != nil:
		return fmt.Errorf("construct info: %w", err)
	case info.Destroyed:
		return b.destroyed(ctx, bc, true)
	}

	bc.IsAlive = true
	bc.Position = info.Position
	bc.Velocity = info.Velocity
	bc.Rotation = info.Rotation
	return b.thresholds(ctx, bc, info)
}

func (b *AliveCheck) destroyed(ctx context.Context, bc *Context, wreck bool) error {
	bc.IsAlive = false
	bc.IsActiveWreck = wreck
	bc.Deactivate(KindSelectTarget)
	err := bc.Services.Notifier.NotifyConstructDestroyed(ctx, bc)
	bc.Deactivate(KindAliveCheck)
	return err
}

func (b *AliveCheck) thresholds(ctx context.Context, bc *Context, info world.ConstructInfo) error {
	n := bc.Services.Notifier
	var err error
	if info.ShieldRatio <= shieldHalfRatio {
		err = multierr.Append(err, n.NotifyShieldHalf(ctx, bc))
	}
	if info.ShieldRatio <= shieldLowRatio {
		err = multierr.Append(err, n.NotifyShieldLow(ctx, bc))
	}
	if info.ShieldRatio <= 0 {
		err = multierr.Append(err, n.NotifyShieldDown(ctx, bc))
	}
	if info.CoreStressRatio >= coreStressHigh {
		err = multierr.Append(err, n.NotifyCoreStressHigh(ctx, bc))
	}
	return err
}
