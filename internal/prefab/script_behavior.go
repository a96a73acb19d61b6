package prefab

import (
	"context"
	"errors"
	"fmt"

	"github.com/CredenceHamby/mydu-pve-mod/internal/behavior"
	"github.com/CredenceHamby/mydu-pve-mod/internal/scripting"
	"go.uber.org/multierr"
)

// KindScript is the descriptor kind of Lua-implemented behaviors. The
// "function" param names the Lua global to call each tick; every other
// string param is passed through to the script.
const KindScript behavior.Kind = "script"

var errMissingFunction = errors.New(`script behavior needs a "function" param`)

// RegisterScriptBehaviors adds the script kind to reg.
func RegisterScriptBehaviors(reg *behavior.Registry, runner ScriptRunner) {
	reg.Register(KindScript, func(constructID uint64, _ *behavior.Prefab, d behavior.Descriptor) (behavior.Unit, error) {
		fn := d.String("function")
		if fn == "" {
			return nil, errMissingFunction
		}
		params := make(map[string]string, len(d.Params))
		for k, v := range d.Params {
			if k == "function" {
				continue
			}
			params[k] = fmt.Sprint(v)
		}
		return &ScriptBehavior{
			kind:        behavior.Kind(string(KindScript) + ":" + fn),
			constructID: constructID,
			fn:          fn,
			params:      params,
			runner:      runner,
		}, nil
	})
}

// ScriptBehavior runs a Lua function every tick and applies the commands it
// returns. Its activation flag is keyed by function so two scripts on one
// prefab finish independently.
type ScriptBehavior struct {
	kind        behavior.Kind
	constructID uint64
	fn          string
	params      map[string]string
	runner      ScriptRunner

	bc *behavior.Context
}

func (b *ScriptBehavior) Initialize(_ context.Context, bc *behavior.Context) error {
	b.bc = bc
	return nil
}

func (b *ScriptBehavior) IsActive() bool {
	return b.bc != nil && b.bc.IsBehaviorActive(b.kind)
}

func (b *ScriptBehavior) Tick(ctx context.Context, bc *behavior.Context) error {
	cmds, err := b.runner.RunBehavior(ctx, b.fn, scripting.BehaviorContext{
		ConstructID:       bc.ConstructID,
		DeltaTime:         bc.DeltaTime(),
		X:                 bc.Position.X,
		Y:                 bc.Position.Y,
		Z:                 bc.Position.Z,
		TargetConstructID: bc.TargetConstructID,
		Alive:             bc.IsAlive,
		PlayerCount:       bc.Players().Len(),
		Params:            b.params,
	})
	if err != nil {
		return err
	}

	var errs error
	for _, cmd := range cmds {
		switch cmd.Type {
		case "finish":
			bc.Deactivate(b.kind)
		case "notify":
			if bc.Services == nil || bc.Services.Notifier == nil {
				continue
			}
			errs = multierr.Append(errs, bc.Services.Notifier.NotifyEvent(ctx, bc, cmd.Event))
		case "set":
			bc.Properties().Set(cmd.Key, cmd.Value)
		default:
			errs = multierr.Append(errs, fmt.Errorf("%s: unknown command %q", b.fn, cmd.Type))
		}
	}
	return errs
}
