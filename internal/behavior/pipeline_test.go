package behavior

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestComposeOrder(t *testing.T) {
	reg := NewRegistry()
	for _, k := range []Kind{"patrol", "attack"} {
		reg.Register(k, func(uint64, *Prefab, Descriptor) (Unit, error) { return Noop{}, nil })
	}
	prefab := &Prefab{Name: "pirate", Behaviors: []Descriptor{{Kind: "attack"}, {Kind: "patrol"}, {Kind: "missing"}}}

	units := NewComposer(reg, zap.NewNop()).Compose(Handle{ConstructID: 5}, prefab)

	want := []Kind{KindAliveCheck, KindSelectTarget, "attack", "patrol", "missing", KindUpdateLastControlled}
	if len(units) != len(want) {
		t.Fatalf("composed %d units, want %d", len(units), len(want))
	}
	for i, u := range units {
		if got := kindOf(u); got != want[i] {
			t.Errorf("unit %d kind = %q, want %q", i, got, want[i])
		}
	}
	// The unknown kind keeps its slot as a no-op.
	if units[4].IsActive() {
		t.Error("unbuildable behavior should be inactive")
	}
}

func TestComposeNilPrefab(t *testing.T) {
	units := NewComposer(NewRegistry(), zap.NewNop()).Compose(Handle{ConstructID: 5}, nil)
	if len(units) != 3 {
		t.Fatalf("composed %d units, want 3", len(units))
	}
	if kindOf(units[2]) != KindUpdateLastControlled {
		t.Errorf("last unit = %q", kindOf(units[2]))
	}
}

func TestRegistryUnknownKind(t *testing.T) {
	_, err := NewRegistry().Create(1, nil, Descriptor{Kind: "nope"})
	if !errors.Is(err, ErrUnknownBehavior) {
		t.Fatalf("err = %v, want ErrUnknownBehavior", err)
	}
	u, err := NewRegistry().Create(1, nil, Descriptor{Kind: KindNoop})
	if err != nil || u == nil {
		t.Fatalf("noop: %v, %v", u, err)
	}
}

type panicUnit struct{ where string }

func (p panicUnit) Initialize(context.Context, *Context) error {
	if p.where == "init" {
		panic("init boom")
	}
	return nil
}

func (p panicUnit) IsActive() bool {
	if p.where == "active" {
		panic("active boom")
	}
	return true
}

func (p panicUnit) Tick(context.Context, *Context) error {
	if p.where == "tick" {
		panic("tick boom")
	}
	return nil
}

func TestWithErrorHandlerRecoversPanics(t *testing.T) {
	bc := NewContext(1, zeroVec, nil, nil, nil)
	ctx := context.Background()

	u := WithErrorHandler("p", 1, panicUnit{where: "init"}, zap.NewNop())
	var ue *UnitError
	if err := u.Initialize(ctx, bc); !errors.As(err, &ue) || ue.Phase != PhaseInitialize || ue.Kind != "p" {
		t.Errorf("init err = %v", err)
	}

	u = WithErrorHandler("p", 1, panicUnit{where: "active"}, zap.NewNop())
	if u.IsActive() {
		t.Error("panicking IsActive should report false")
	}

	u = WithErrorHandler("p", 1, panicUnit{where: "tick"}, zap.NewNop())
	if err := u.Tick(ctx, bc); !errors.As(err, &ue) || ue.Phase != PhaseTick {
		t.Errorf("tick err = %v", err)
	}
}

func TestWithErrorHandlerWrapsErrors(t *testing.T) {
	boom := errors.New("boom")
	var trace []string
	u := WithErrorHandler("r", 1, &recordingUnit{name: "r", active: true, tickErr: boom, trace: &trace}, zap.NewNop())

	err := u.Tick(context.Background(), NewContext(1, zeroVec, nil, nil, nil))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if err := u.Initialize(context.Background(), nil); err != nil {
		t.Fatalf("init err = %v", err)
	}
}
