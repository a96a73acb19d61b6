package behavior

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/CredenceHamby/mydu-pve-mod/internal/world"
	"go.uber.org/zap"
)

type fakeClient struct {
	mu       sync.Mutex
	info     map[uint64]world.ConstructInfo
	contacts []world.Contact
	infoErr  error
	radarErr error

	infoCalls  int
	radarCalls int
	resets     []uint64
}

func newFakeClient() *fakeClient {
	return &fakeClient{info: make(map[uint64]world.ConstructInfo)}
}

func (c *fakeClient) setInfo(info world.ConstructInfo) {
	c.mu.Lock()
	c.info[info.ConstructID] = info
	c.mu.Unlock()
}

func (c *fakeClient) ConstructInfo(_ context.Context, id uint64) (world.ConstructInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.infoCalls++
	if c.infoErr != nil {
		return world.ConstructInfo{}, c.infoErr
	}
	info, ok := c.info[id]
	if !ok {
		return world.ConstructInfo{}, world.ErrConstructNotFound
	}
	return info, nil
}

func (c *fakeClient) Radar(context.Context, uint64) ([]world.Contact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.radarCalls++
	if c.radarErr != nil {
		return nil, c.radarErr
	}
	return append([]world.Contact(nil), c.contacts...), nil
}

func (c *fakeClient) ResetCombatLock(_ context.Context, id uint64) error {
	c.mu.Lock()
	c.resets = append(c.resets, id)
	c.mu.Unlock()
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []any
}

func (p *fakePublisher) Publish(ev any) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type fakeFeatures struct {
	values map[string]bool
	err    error
}

func (f fakeFeatures) GetBool(_ context.Context, name string, def bool) (bool, error) {
	if f.err != nil {
		return def, f.err
	}
	if v, ok := f.values[name]; ok {
		return v, nil
	}
	return def, nil
}

type countingAction struct {
	mu    sync.Mutex
	calls int
	last  ScriptContext
	err   error
}

func (a *countingAction) Execute(_ context.Context, sc ScriptContext) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.last = sc
	return a.err
}

func (a *countingAction) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type fakeStore struct {
	mu      sync.Mutex
	touches []time.Time
	err     error
}

func (s *fakeStore) TouchLastControlled(_ context.Context, _ uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.touches = append(s.touches, at)
	return nil
}

type fakeResolver map[string]*Prefab

func (r fakeResolver) Resolve(name string) (*Prefab, error) {
	p, ok := r[name]
	if !ok {
		return nil, errors.New("no such prefab")
	}
	return p, nil
}

// recordingUnit logs every protocol call into a shared trace.
type recordingUnit struct {
	name    string
	active  bool
	initErr error
	tickErr error
	panics  bool
	trace   *[]string
}

func (u *recordingUnit) Initialize(context.Context, *Context) error {
	*u.trace = append(*u.trace, "init:"+u.name)
	return u.initErr
}

func (u *recordingUnit) IsActive() bool { return u.active }

func (u *recordingUnit) Tick(context.Context, *Context) error {
	*u.trace = append(*u.trace, "tick:"+u.name)
	if u.panics {
		panic("boom")
	}
	return u.tickErr
}

// manualClock is a settable time source.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	client    *fakeClient
	publisher *fakePublisher
	store     *fakeStore
	clock     *manualClock
	services  *Services
}

func newTestEnv(features FeatureSource) *testEnv {
	env := &testEnv{
		client:    newFakeClient(),
		publisher: &fakePublisher{},
		store:     &fakeStore{},
		clock:     newManualClock(),
	}
	n := NewNotifier(env.publisher, features, zap.NewNop())
	n.now = env.clock.Now
	env.services = &Services{
		Notifier:       n,
		LastControlled: env.store,
		Log:            zap.NewNop(),
		Now:            env.clock.Now,
	}
	return env
}

func (env *testEnv) newContext(id uint64, prefab *Prefab) *Context {
	return NewContext(id, world.Vec3{X: 1, Y: 2, Z: 3}, env.client, env.services, prefab)
}

var zeroVec world.Vec3
