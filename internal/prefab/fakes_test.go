package prefab

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/CredenceHamby/mydu-pve-mod/internal/scripting"
	"github.com/CredenceHamby/mydu-pve-mod/internal/world"
)

type actionCall struct {
	fn string
	ac scripting.ActionContext
}

type fakeRunner struct {
	mu      sync.Mutex
	fns     map[string]bool
	cmds    map[string][]scripting.BehaviorCommand
	actions []actionCall
	ticks   []scripting.BehaviorContext
}

func newFakeRunner(fns ...string) *fakeRunner {
	r := &fakeRunner{fns: make(map[string]bool), cmds: make(map[string][]scripting.BehaviorCommand)}
	for _, fn := range fns {
		r.fns[fn] = true
	}
	return r
}

func (r *fakeRunner) HasFunction(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fns[name]
}

func (r *fakeRunner) CallAction(_ context.Context, fn string, ac scripting.ActionContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.fns[fn] {
		return scripting.ErrFunctionNotFound
	}
	r.actions = append(r.actions, actionCall{fn: fn, ac: ac})
	return nil
}

func (r *fakeRunner) RunBehavior(_ context.Context, fn string, bc scripting.BehaviorContext) ([]scripting.BehaviorCommand, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.fns[fn] {
		return nil, errors.New("boom")
	}
	r.ticks = append(r.ticks, bc)
	return r.cmds[fn], nil
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

const raiderYAML = `
prefabs:
  - name: raider
    behaviors:
      - kind: script
        params:
          function: patrol
          route: alpha
          legs: 3
      - kind: noop
    events:
      on_destruction: reward_players
      on_shield_low: call_help
      custom:
        reinforcements: spawn_wave
  - name: hauler
`

type recordingPublisher struct {
	mu     sync.Mutex
	events []any
}

func (p *recordingPublisher) Publish(ev any) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

var zeroSector world.Vec3
