package behavior

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/CredenceHamby/mydu-pve-mod/internal/world"
	"go.uber.org/zap"
)

// Default simulation step bounds, in seconds.
const (
	DefaultMinDeltaTime = 1.0 / 60.0
	DefaultMaxDeltaTime = 1.0 / 30.0
)

// Services are the shared collaborators every context carries.
type Services struct {
	Notifier       *Notifier
	LastControlled LastControlledStore
	Log            *zap.Logger
	Now            func() time.Time

	MinDeltaTime float64
	MaxDeltaTime float64
}

func (s *Services) now() time.Time {
	if s == nil || s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Services) logger() *zap.Logger {
	if s == nil || s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

// Context is the durable state of one construct between frames. It is owned
// by one execution at a time; only the player set, the property bag and the
// event ledger may be touched concurrently by units of the same execution.
type Context struct {
	ConstructID uint64
	Sector      world.Vec3
	Client      world.Client
	Services    *Services
	Prefab      *Prefab

	TargetConstructID  uint64 // 0 = no target
	TargetSelectedTime time.Time

	Position world.Vec3
	Velocity world.Vec3
	Rotation world.Quat

	IsAlive       bool
	IsActiveWreck bool

	deltaTime float64
	minDelta  float64
	maxDelta  float64

	players   *PlayerSet
	props     *Properties
	published *Ledger

	flagsMu  sync.RWMutex
	finished map[Kind]bool
}

func NewContext(constructID uint64, sector world.Vec3, client world.Client, svc *Services, prefab *Prefab) *Context {
	minDelta, maxDelta := DefaultMinDeltaTime, DefaultMaxDeltaTime
	if svc != nil && svc.MinDeltaTime > 0 && svc.MaxDeltaTime >= svc.MinDeltaTime {
		minDelta, maxDelta = svc.MinDeltaTime, svc.MaxDeltaTime
	}
	return &Context{
		ConstructID: constructID,
		Sector:      sector,
		Client:      client,
		Services:    svc,
		Prefab:      prefab,
		IsAlive:     true,
		deltaTime:   minDelta,
		minDelta:    minDelta,
		maxDelta:    maxDelta,
		players:     NewPlayerSet(),
		props:       NewProperties(),
		published:   NewLedger(),
		finished:    make(map[Kind]bool),
	}
}

// DeltaTime is the simulated step of the current frame, in seconds.
func (c *Context) DeltaTime() float64 { return c.deltaTime }

// SetDeltaTime stores seconds clamped into the configured step range, so
// frame jitter never feeds an unstable step to the behaviors.
func (c *Context) SetDeltaTime(seconds float64) {
	switch {
	case math.IsNaN(seconds) || seconds < c.minDelta:
		c.deltaTime = c.minDelta
	case seconds > c.maxDelta:
		c.deltaTime = c.maxDelta
	default:
		c.deltaTime = seconds
	}
}

func (c *Context) Players() *PlayerSet     { return c.players }
func (c *Context) Properties() *Properties { return c.props }
func (c *Context) Published() *Ledger      { return c.published }

// Deactivate marks a unit kind as finished for this context.
func (c *Context) Deactivate(kind Kind) {
	c.flagsMu.Lock()
	c.finished[kind] = true
	c.flagsMu.Unlock()
}

// Activate clears a previous Deactivate.
func (c *Context) Activate(kind Kind) {
	c.flagsMu.Lock()
	c.finished[kind] = false
	c.flagsMu.Unlock()
}

// IsBehaviorActive reports false only when kind was deactivated.
func (c *Context) IsBehaviorActive(kind Kind) bool {
	c.flagsMu.RLock()
	defer c.flagsMu.RUnlock()
	return !c.finished[kind]
}

func (c *Context) scriptContext() ScriptContext {
	return ScriptContext{
		ConstructID: c.ConstructID,
		PlayerIDs:   c.players.IDs(),
		Sector:      c.Sector,
	}
}

func (c *Context) events() Events {
	if c.Prefab == nil {
		return Events{}
	}
	return c.Prefab.Events
}

// PlayerSet maps player ids to the construct they were seen piloting.
type PlayerSet struct {
	mu  sync.RWMutex
	ids map[uint64]uint64
}

func NewPlayerSet() *PlayerSet {
	return &PlayerSet{ids: make(map[uint64]uint64)}
}

// Add records a player. It reports whether the player was new.
func (s *PlayerSet) Add(playerID, constructID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, seen := s.ids[playerID]
	s.ids[playerID] = constructID
	return !seen
}

func (s *PlayerSet) Remove(playerID uint64) {
	s.mu.Lock()
	delete(s.ids, playerID)
	s.mu.Unlock()
}

func (s *PlayerSet) Contains(playerID uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[playerID]
	return ok
}

func (s *PlayerSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// IDs returns the player ids in ascending order.
func (s *PlayerSet) IDs() []uint64 {
	s.mu.RLock()
	ids := make([]uint64, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Properties is a string-keyed bag units use to signal each other.
type Properties struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewProperties() *Properties {
	return &Properties{values: make(map[string]any)}
}

func (p *Properties) Set(key string, v any) {
	p.mu.Lock()
	p.values[key] = v
	p.mu.Unlock()
}

func (p *Properties) Get(key string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[key]
	return v, ok
}

func (p *Properties) Delete(key string) {
	p.mu.Lock()
	delete(p.values, key)
	p.mu.Unlock()
}

func (p *Properties) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.values)
}

// Property returns the value under key when it exists and has type T.
func Property[T any](p *Properties, key string) (T, bool) {
	var zero T
	v, ok := p.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Ledger records one-shot events. A name is inserted at most once.
type Ledger struct {
	run sync.Mutex // serializes Do

	mu    sync.RWMutex
	names map[string]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{names: make(map[string]struct{})}
}

func (l *Ledger) Has(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.names[name]
	return ok
}

// Mark inserts name and reports whether it was absent.
func (l *Ledger) Mark(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.names[name]; ok {
		return false
	}
	l.names[name] = struct{}{}
	return true
}

// Do runs fn unless name is already recorded, then records name. The name is
// recorded even when fn fails, so side effects are never attempted twice.
// Concurrent calls for the same ledger are serialized.
func (l *Ledger) Do(name string, fn func() error) (fired bool, err error) {
	l.run.Lock()
	defer l.run.Unlock()
	if l.Has(name) {
		return false, nil
	}
	err = fn()
	l.Mark(name)
	return true, err
}

// Names returns the recorded names in ascending order.
func (l *Ledger) Names() []string {
	l.mu.RLock()
	names := make([]string, 0, len(l.names))
	for n := range l.names {
		names = append(names, n)
	}
	l.mu.RUnlock()
	sort.Strings(names)
	return names
}
