package behavior

import (
	"context"
	"time"

	"github.com/CredenceHamby/mydu-pve-mod/internal/core/event"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// One-shot ledger names.
const (
	EventConstructDestroyed = "construct_destroyed"
	EventCoreStressHigh     = "core_stress_high"
	EventShieldHalf         = "shield_half"
	EventShieldLow          = "shield_low"
	EventShieldDown         = "shield_down"

	customEventPrefix = "custom:"
)

// FeatureResetCombatLock toggles resetting the combat lock of a destroyed NPC.
const FeatureResetCombatLock = "ResetNPCCombatLockOnDestruction"

// FeatureSource reads dynamic feature flags.
type FeatureSource interface {
	GetBool(ctx context.Context, name string, def bool) (bool, error)
}

// Publisher accepts domain events for asynchronous processing.
type Publisher interface {
	Publish(ev any)
}

// Notifier fires construct notifications. Each notification runs its side
// effects at most once per context, no matter how many frames detect the
// triggering condition.
type Notifier struct {
	publisher Publisher
	features  FeatureSource
	log       *zap.Logger
	now       func() time.Time
}

func NewNotifier(publisher Publisher, features FeatureSource, log *zap.Logger) *Notifier {
	return &Notifier{
		publisher: publisher,
		features:  features,
		log:       log,
		now:       time.Now,
	}
}

// NotifyConstructDestroyed publishes a PlayerDefeatedNpc event for every
// associated player, runs the prefab destruction action and optionally resets
// the construct's combat lock.
func (n *Notifier) NotifyConstructDestroyed(ctx context.Context, bc *Context) error {
	_, err := bc.published.Do(EventConstructDestroyed, func() error {
		return n.constructDestroyed(ctx, bc)
	})
	return err
}

func (n *Notifier) constructDestroyed(ctx context.Context, bc *Context) error {
	players := bc.players.IDs()
	n.log.Info("npc defeated by players",
		zap.Uint64("construct_id", bc.ConstructID),
		zap.Uint64s("players", players),
	)

	at := n.now()
	for _, id := range players {
		n.publish(event.PlayerDefeatedNpc{
			PlayerID:    id,
			ConstructID: bc.ConstructID,
			SectorX:     bc.Sector.X,
			SectorY:     bc.Sector.Y,
			SectorZ:     bc.Sector.Z,
			PlayerCount: len(players),
			At:          at,
		})
	}

	err := execute(ctx, bc.events().OnDestruction, bc.scriptContext())

	if n.featureEnabled(ctx, FeatureResetCombatLock) && bc.Client != nil {
		err = multierr.Append(err, bc.Client.ResetCombatLock(ctx, bc.ConstructID))
	}
	return err
}

func (n *Notifier) NotifyCoreStressHigh(ctx context.Context, bc *Context) error {
	return n.fire(ctx, bc, EventCoreStressHigh, bc.events().OnCoreStressHigh)
}

func (n *Notifier) NotifyShieldHalf(ctx context.Context, bc *Context) error {
	return n.fire(ctx, bc, EventShieldHalf, bc.events().OnShieldHalfAction)
}

func (n *Notifier) NotifyShieldLow(ctx context.Context, bc *Context) error {
	return n.fire(ctx, bc, EventShieldLow, bc.events().OnShieldLowAction)
}

func (n *Notifier) NotifyShieldDown(ctx context.Context, bc *Context) error {
	return n.fire(ctx, bc, EventShieldDown, bc.events().OnShieldDownAction)
}

// NotifyEvent fires a prefab-defined custom event once.
func (n *Notifier) NotifyEvent(ctx context.Context, bc *Context, name string) error {
	return n.fire(ctx, bc, customEventPrefix+name, bc.events().Custom[name])
}

func (n *Notifier) fire(ctx context.Context, bc *Context, name string, action EventAction) error {
	_, err := bc.published.Do(name, func() error {
		n.publish(event.ConstructEventFired{
			ConstructID: bc.ConstructID,
			Name:        name,
			PlayerCount: bc.players.Len(),
			At:          n.now(),
		})
		return execute(ctx, action, bc.scriptContext())
	})
	return err
}

func (n *Notifier) publish(ev any) {
	if n.publisher != nil {
		n.publisher.Publish(ev)
	}
}

func (n *Notifier) featureEnabled(ctx context.Context, name string) bool {
	if n.features == nil {
		return false
	}
	on, err := n.features.GetBool(ctx, name, false)
	if err != nil {
		n.log.Warn("feature flag read failed", zap.String("feature", name), zap.Error(err))
		return false
	}
	return on
}
