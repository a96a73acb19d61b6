package system

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordSystem struct {
	name  string
	phase Phase
	log   *[]string
}

func (s recordSystem) Phase() Phase { return s.phase }

func (s recordSystem) Update(context.Context, time.Duration) {
	*s.log = append(*s.log, s.name)
}

func TestRunnerPhaseOrder(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(recordSystem{"cleanup", PhaseCleanup, &log})
	r.Register(recordSystem{"update-a", PhaseUpdate, &log})
	r.Register(recordSystem{"pre", PhasePreUpdate, &log})
	r.Register(recordSystem{"update-b", PhaseUpdate, &log})
	r.Register(recordSystem{"persist", PhasePersist, &log})

	r.Tick(context.Background(), 50*time.Millisecond)

	want := []string{"pre", "update-a", "update-b", "persist", "cleanup"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log = %v, want %v", log, want)
		}
	}
}

func TestRunnerTickPhase(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(recordSystem{"update", PhaseUpdate, &log})
	r.Register(recordSystem{"persist", PhasePersist, &log})

	r.TickPhase(context.Background(), PhasePersist, 0)
	if len(log) != 1 || log[0] != "persist" {
		t.Errorf("log = %v, want [persist]", log)
	}
}

func TestRunnerStopsOnCancelledContext(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(recordSystem{"update", PhaseUpdate, &log})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Tick(ctx, 0)
	if len(log) != 0 {
		t.Errorf("log = %v, want empty", log)
	}
}

type slowSystem struct{ clock *time.Time }

func (slowSystem) Phase() Phase { return PhaseUpdate }

func (s slowSystem) Update(context.Context, time.Duration) {
	*s.clock = s.clock.Add(200 * time.Millisecond)
}

func TestRunnerWarnsSlowFrames(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	clock := time.Unix(0, 0)
	r := NewRunner()
	r.now = func() time.Time { return clock }
	r.WarnSlowFrames(50*time.Millisecond, zap.New(core))
	r.Register(slowSystem{&clock})

	r.Tick(context.Background(), 50*time.Millisecond)
	if logs.FilterMessage("slow frame").Len() != 1 {
		t.Errorf("slow frame warnings = %d, want 1", logs.Len())
	}
}

func TestRunnerUnknownPhaseRunsLast(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(recordSystem{"odd", Phase(42), &log})
	r.Register(recordSystem{"cleanup", PhaseCleanup, &log})
	r.Register(recordSystem{"pre", PhasePreUpdate, &log})
	if r.Len() != 3 {
		t.Fatalf("Len = %d", r.Len())
	}
	r.Tick(context.Background(), 0)
	if len(log) != 3 || log[0] != "pre" || log[2] != "cleanup" {
		t.Errorf("log = %v", log)
	}
}
