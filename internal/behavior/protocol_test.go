package behavior

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/CredenceHamby/mydu-pve-mod/internal/world"
	"go.uber.org/zap"
)

func guard(u *recordingUnit) Unit {
	return WithErrorHandler(Kind(u.name), 1, u, zap.NewNop())
}

func TestRunPipelineInitializesEveryUnit(t *testing.T) {
	var trace []string
	units := []Unit{
		guard(&recordingUnit{name: "a", active: true, trace: &trace}),
		guard(&recordingUnit{name: "b", active: false, trace: &trace}),
		guard(&recordingUnit{name: "c", active: true, trace: &trace}),
	}

	rep := RunPipeline(context.Background(), NewContext(1, zeroVec, nil, nil, nil), units)

	want := []string{"init:a", "init:b", "init:c", "tick:a", "tick:c"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", trace, want)
		}
	}
	if rep.Initialized != 3 || rep.Ticked != 2 || rep.Skipped != 1 || !rep.OK() {
		t.Errorf("report = %+v", rep)
	}
}

func TestRunPipelineContainsFailures(t *testing.T) {
	var trace []string
	units := []Unit{
		guard(&recordingUnit{name: "init-fails", active: true, initErr: errors.New("bad init"), trace: &trace}),
		guard(&recordingUnit{name: "tick-fails", active: true, tickErr: errors.New("bad tick"), trace: &trace}),
		guard(&recordingUnit{name: "panics", active: true, panics: true, trace: &trace}),
		guard(&recordingUnit{name: "last", active: true, trace: &trace}),
	}

	rep := RunPipeline(context.Background(), NewContext(1, zeroVec, nil, nil, nil), units)

	want := []string{
		"init:init-fails", "init:tick-fails", "init:panics", "init:last",
		"tick:tick-fails", "tick:panics", "tick:last",
	}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", trace, want)
		}
	}
	if len(rep.Failures) != 3 {
		t.Fatalf("failures = %v, want 3", rep.Failures)
	}
	if f := rep.Failures[0]; f.Kind != "init-fails" || f.Phase != PhaseInitialize {
		t.Errorf("failure[0] = %+v", f)
	}
	if f := rep.Failures[2]; f.Kind != "panics" || f.Phase != PhaseTick {
		t.Errorf("failure[2] = %+v", f)
	}
	if rep.Skipped != 1 || rep.Ticked != 3 {
		t.Errorf("report = %+v", rep)
	}
}

func newTestExecutor(env *testEnv, reg *Registry, prefabs fakeResolver) *Executor {
	return NewExecutor(prefabs, NewComposer(reg, zap.NewNop()), NewCache(), env.client, env.services, zap.NewNop())
}

func TestTickConstructCreatesAndStoresContext(t *testing.T) {
	env := newTestEnv(nil)
	env.client.setInfo(world.ConstructInfo{ConstructID: 11, ShieldRatio: 1, Position: world.Vec3{X: 5}})
	ex := newTestExecutor(env, NewRegistry(), fakeResolver{"empty": {Name: "empty"}})

	h := Handle{ConstructID: 11, Sector: world.Vec3{X: 10}, Prefab: "empty"}
	rep, err := ex.TickConstruct(context.Background(), 20*time.Millisecond, h)
	if err != nil {
		t.Fatalf("TickConstruct: %v", err)
	}
	if !rep.OK() || rep.Ticked != 3 {
		t.Errorf("report = %+v", rep)
	}

	bc, ok := ex.Cache().Get(11)
	if !ok {
		t.Fatal("context not stored")
	}
	if bc.DeltaTime() < DefaultMinDeltaTime || bc.DeltaTime() != 0.02 {
		t.Errorf("DeltaTime = %v, want 0.02", bc.DeltaTime())
	}
	if bc.Sector.X != 10 || bc.Position.X != 5 {
		t.Errorf("context sector=%v position=%v", bc.Sector, bc.Position)
	}
	if env.client.infoCalls != 1 || env.client.radarCalls != 1 || len(env.store.touches) != 1 {
		t.Errorf("info=%d radar=%d touches=%d, want 1 each",
			env.client.infoCalls, env.client.radarCalls, len(env.store.touches))
	}
}

func TestTickConstructReusesContext(t *testing.T) {
	env := newTestEnv(nil)
	env.client.setInfo(world.ConstructInfo{ConstructID: 11, ShieldRatio: 1})
	prefabs := fakeResolver{"v1": {Name: "v1"}, "v2": {Name: "v2"}}
	ex := newTestExecutor(env, NewRegistry(), prefabs)

	ctx := context.Background()
	if _, err := ex.TickConstruct(ctx, time.Second, Handle{ConstructID: 11, Prefab: "v1"}); err != nil {
		t.Fatal(err)
	}
	first, _ := ex.Cache().Get(11)
	first.Properties().Set("marker", true)

	if _, err := ex.TickConstruct(ctx, time.Millisecond, Handle{ConstructID: 11, Prefab: "v2"}); err != nil {
		t.Fatal(err)
	}
	second, _ := ex.Cache().Get(11)
	if first != second {
		t.Fatal("context was recreated between frames")
	}
	if _, ok := second.Properties().Get("marker"); !ok {
		t.Error("property bag lost between frames")
	}
	if second.Prefab.Name != "v2" {
		t.Errorf("Prefab = %q, want v2", second.Prefab.Name)
	}
	if second.DeltaTime() != DefaultMinDeltaTime {
		t.Errorf("DeltaTime = %v, want clamped to min", second.DeltaTime())
	}
}

func TestTickConstructUnresolved(t *testing.T) {
	env := newTestEnv(nil)
	ex := newTestExecutor(env, NewRegistry(), fakeResolver{})

	for _, h := range []Handle{{ConstructID: 1}, {ConstructID: 2, Prefab: "unknown"}} {
		_, err := ex.TickConstruct(context.Background(), time.Millisecond, h)
		if !errors.Is(err, ErrUnresolvedDefinition) {
			t.Errorf("handle %d: err = %v, want ErrUnresolvedDefinition", h.ConstructID, err)
		}
	}
	if ex.Cache().Len() != 0 {
		t.Error("unresolved constructs must not get a context")
	}
	if env.client.infoCalls != 0 {
		t.Error("unresolved constructs must not run behaviors")
	}
}

func TestTickConstructWritesBackAfterUnitFailure(t *testing.T) {
	env := newTestEnv(nil)
	env.client.setInfo(world.ConstructInfo{ConstructID: 3, ShieldRatio: 1})

	var trace []string
	reg := NewRegistry()
	reg.Register("explodes", func(uint64, *Prefab, Descriptor) (Unit, error) {
		return &recordingUnit{name: "explodes", active: true, panics: true, trace: &trace}, nil
	})
	reg.Register("after", func(uint64, *Prefab, Descriptor) (Unit, error) {
		return &recordingUnit{name: "after", active: true, trace: &trace}, nil
	})
	prefabs := fakeResolver{"p": {Name: "p", Behaviors: []Descriptor{{Kind: "explodes"}, {Kind: "after"}}}}
	ex := newTestExecutor(env, reg, prefabs)

	rep, err := ex.TickConstruct(context.Background(), 20*time.Millisecond, Handle{ConstructID: 3, Prefab: "p"})
	if err != nil {
		t.Fatalf("TickConstruct: %v", err)
	}
	if len(rep.Failures) != 1 || rep.Failures[0].Kind != "explodes" {
		t.Errorf("failures = %v", rep.Failures)
	}
	if trace[len(trace)-1] != "tick:after" {
		t.Errorf("trace = %v, want unit after the failure to tick", trace)
	}
	if len(env.store.touches) != 1 {
		t.Error("trailing bookkeeping did not run after a failure")
	}
	if _, ok := ex.Cache().Get(3); !ok {
		t.Error("context not written back after a unit failure")
	}
}
