package scripting

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// ErrFunctionNotFound is returned when a script names an undefined global.
var ErrFunctionNotFound = errors.New("lua function not found")

// Engine wraps a single gopher-lua VM running prefab event actions and script
// behaviors. The VM is not goroutine safe, so every call holds mu.
type Engine struct {
	mu  sync.Mutex
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	// Shared helpers first, then event actions and behaviors
	for _, sub := range []string{"core", "events", "behaviors"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// LoadString runs a chunk of Lua source, defining its globals.
func (e *Engine) LoadString(src string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vm.DoString(src)
}

// HasFunction reports whether a global Lua function exists.
func (e *Engine) HasFunction(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

// ActionContext is passed to event action functions.
type ActionContext struct {
	ConstructID uint64
	PlayerIDs   []uint64
	SectorX     float64
	SectorY     float64
	SectorZ     float64
}

// luaID passes a 64-bit id as a decimal string. Lua numbers are float64 and
// would round ids above 2^53.
func luaID(id uint64) lua.LString {
	return lua.LString(strconv.FormatUint(id, 10))
}

// CallAction calls fn(ctx_table) for a prefab event action.
func (e *Engine) CallAction(ctx context.Context, fn string, ac ActionContext) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.vm.NewTable()
	t.RawSetString("construct_id", luaID(ac.ConstructID))
	t.RawSetString("sector", e.vec(ac.SectorX, ac.SectorY, ac.SectorZ))
	players := e.vm.NewTable()
	for i, id := range ac.PlayerIDs {
		players.RawSetInt(i+1, luaID(id))
	}
	t.RawSetString("player_ids", players)

	_, err := e.call(ctx, fn, 0, t)
	return err
}

// BehaviorContext holds pre-packed construct state for a script behavior.
type BehaviorContext struct {
	ConstructID       uint64
	DeltaTime         float64
	X, Y, Z           float64
	TargetConstructID uint64
	Alive             bool
	PlayerCount       int
	Params            map[string]string
}

// BehaviorCommand is a single action returned by a script behavior.
type BehaviorCommand struct {
	Type  string // "finish", "notify", "set"
	Event string // notify: custom event name
	Key   string // set: property key
	Value string // set: property value
}

// RunBehavior calls fn(ctx_table) and returns the list of commands it produced.
func (e *Engine) RunBehavior(ctx context.Context, fn string, bc BehaviorContext) ([]BehaviorCommand, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.vm.NewTable()
	t.RawSetString("construct_id", luaID(bc.ConstructID))
	t.RawSetString("delta_time", lua.LNumber(bc.DeltaTime))
	t.RawSetString("position", e.vec(bc.X, bc.Y, bc.Z))
	if bc.TargetConstructID != 0 {
		t.RawSetString("target_construct_id", luaID(bc.TargetConstructID))
	}
	t.RawSetString("alive", lua.LBool(bc.Alive))
	t.RawSetString("player_count", lua.LNumber(bc.PlayerCount))
	params := e.vm.NewTable()
	for k, v := range bc.Params {
		params.RawSetString(k, lua.LString(v))
	}
	t.RawSetString("params", params)

	result, err := e.call(ctx, fn, 1, t)
	if err != nil {
		return nil, err
	}

	rt, ok := result.(*lua.LTable)
	if !ok {
		return nil, nil
	}

	// Parse commands array
	var cmds []BehaviorCommand
	rt.ForEach(func(_, v lua.LValue) {
		if row, ok := v.(*lua.LTable); ok {
			cmds = append(cmds, BehaviorCommand{
				Type:  lStr(row, "type"),
				Event: lStr(row, "event"),
				Key:   lStr(row, "key"),
				Value: lStr(row, "value"),
			})
		}
	})
	return cmds, nil
}

// call invokes a global function with mu held. The VM honours ctx for
// cancellation while the function runs.
func (e *Engine) call(ctx context.Context, name string, nret int, args ...lua.LValue) (lua.LValue, error) {
	fn, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return lua.LNil, fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}

	e.vm.SetContext(ctx)
	defer e.vm.RemoveContext()

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    nret,
		Protect: true,
	}, args...); err != nil {
		e.vm.SetTop(0)
		return lua.LNil, fmt.Errorf("lua %s: %w", name, err)
	}

	if nret == 0 {
		return lua.LNil, nil
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)
	return result, nil
}

// --- Lua helpers ---

func (e *Engine) vec(x, y, z float64) *lua.LTable {
	t := e.vm.NewTable()
	t.RawSetString("x", lua.LNumber(x))
	t.RawSetString("y", lua.LNumber(y))
	t.RawSetString("z", lua.LNumber(z))
	return t
}

// lStr reads a string field from a Lua table.
func lStr(t *lua.LTable, key string) string {
	v := t.RawGetString(key)
	if v == lua.LNil {
		return ""
	}
	return lua.LVAsString(v)
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}
