package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM driving a scene: setup() spawns
// entities, update(t, dt) moves them every tick.
// Single-goroutine access only (tick loop).
type Engine struct {
	vm      *lua.LState
	log     *zap.Logger
	builtin bool
}

// NewEngine creates a Lua engine and loads every script of scriptsDir. When
// the directory is missing or holds no script, the built-in doppler drone
// scene is loaded instead.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	n, err := e.loadDir(scriptsDir)
	if err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scene scripts: %w", err)
	}
	if n == 0 {
		if err := vm.DoString(DopplerDrone); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load built-in scene: %w", err)
		}
		e.builtin = true
		log.Info("no scene scripts found, using built-in doppler drone", zap.String("dir", scriptsDir))
	}
	return e, nil
}

// NewEngineFromSource loads a scene from a Lua chunk.
func NewEngineFromSource(src string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	if err := vm.DoString(src); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scene: %w", err)
	}
	return &Engine{vm: vm, log: log}, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) (int, error) {
	if dir == "" {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil // skip missing dirs
		}
		return 0, err
	}
	n := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return n, fmt.Errorf("load %s: %w", path, err)
		}
		n++
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return n, nil
}

// Builtin reports whether the built-in scene is running.
func (e *Engine) Builtin() bool { return e.builtin }

// Spawn describes one entity created by the scene. Key is the scene's own
// handle for it in later commands.
type Spawn struct {
	Key             string
	Kind            string // "emitter" or "listener"
	Name            string
	X, Y, Z         float64
	Yaw             float64 // radians around +Y
	Event           string
	AutoPost        bool
	Looping         bool
	DespawnOnSilent bool
	Default         bool // listener only
}

// Scene is what setup() returns.
type Scene struct {
	Banks  []string
	Spawns []Spawn
}

// Command is one instruction returned by update(). Type is one of move,
// rtpc, post, post_at, stop, spawn or despawn. post_at plays Event once at
// X, Y, Z without a scene entity.
type Command struct {
	Type    string
	Key     string
	X, Y, Z float64
	Yaw     float64
	Name    string
	Value   float64
	Event   string
	Looping bool
	Spawn   *Spawn
}

// Setup calls the Lua setup() function.
func (e *Engine) Setup() (*Scene, error) {
	fn := e.vm.GetGlobal("setup")
	if fn == lua.LNil {
		return &Scene{}, nil
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}); err != nil {
		return nil, fmt.Errorf("lua setup: %w", err)
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("lua setup returned %s, want table", result.Type())
	}

	scene := &Scene{}
	if banks, ok := rt.RawGetString("banks").(*lua.LTable); ok {
		banks.ForEach(func(_, v lua.LValue) {
			scene.Banks = append(scene.Banks, lua.LVAsString(v))
		})
	}
	if spawns, ok := rt.RawGetString("spawns").(*lua.LTable); ok {
		spawns.ForEach(func(_, v lua.LValue) {
			if row, ok := v.(*lua.LTable); ok {
				scene.Spawns = append(scene.Spawns, parseSpawn(row))
			}
		})
	}
	return scene, nil
}

// Update calls the Lua update(t, dt) function. A script error is logged and
// yields no commands, so a broken frame never stops the tick loop.
func (e *Engine) Update(t, dt float64) []Command {
	fn := e.vm.GetGlobal("update")
	if fn == lua.LNil {
		return nil
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(t), lua.LNumber(dt)); err != nil {
		e.log.Error("lua update error", zap.Error(err))
		return nil
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return nil
	}

	var cmds []Command
	rt.ForEach(func(_, v lua.LValue) {
		row, ok := v.(*lua.LTable)
		if !ok {
			return
		}
		cmd := Command{
			Type:    lStr(row, "type"),
			Key:     lStr(row, "key"),
			X:       lNum(row, "x"),
			Y:       lNum(row, "y"),
			Z:       lNum(row, "z"),
			Yaw:     lNum(row, "yaw"),
			Name:    lStr(row, "name"),
			Value:   lNum(row, "value"),
			Event:   lStr(row, "event"),
			Looping: lBool(row, "looping"),
		}
		if cmd.Type == "spawn" {
			sp := parseSpawn(row)
			cmd.Spawn = &sp
		}
		cmds = append(cmds, cmd)
	})
	return cmds
}

func parseSpawn(row *lua.LTable) Spawn {
	return Spawn{
		Key:             lStr(row, "key"),
		Kind:            lStr(row, "kind"),
		Name:            lStr(row, "name"),
		X:               lNum(row, "x"),
		Y:               lNum(row, "y"),
		Z:               lNum(row, "z"),
		Yaw:             lNum(row, "yaw"),
		Event:           lStr(row, "event"),
		AutoPost:        lBool(row, "auto_post"),
		Looping:         lBool(row, "looping"),
		DespawnOnSilent: lBool(row, "despawn_on_silent"),
		Default:         lBool(row, "default"),
	}
}

// --- Lua helpers ---

// lNum reads a number field from a Lua table.
func lNum(t *lua.LTable, key string) float64 {
	return float64(lua.LVAsNumber(t.RawGetString(key)))
}

// lStr reads a string field from a Lua table.
func lStr(t *lua.LTable, key string) string {
	return lua.LVAsString(t.RawGetString(key))
}

func lBool(t *lua.LTable, key string) bool {
	return lua.LVAsBool(t.RawGetString(key))
}

// callNumFunc calls a Lua function with number args and returns a number.
func (e *Engine) callNumFunc(name string, args ...float64) (float64, error) {
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		return 0, fmt.Errorf("lua function %s not found", name)
	}

	lArgs := make([]lua.LValue, len(args))
	for i, a := range args {
		lArgs[i] = lua.LNumber(a)
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lArgs...); err != nil {
		return 0, fmt.Errorf("lua %s: %w", name, err)
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)
	return float64(lua.LVAsNumber(result)), nil
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
