// Package lua hosts the script VM and the bridge that exposes native modules, proxy
// objects and domain signals to it.
//
// Every touch of the VM happens on the runtime's executor goroutine. Native functions
// and signal callbacks run there synchronously, one at a time, to completion.
package lua

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/zot/ezbridge/internal/logging"
	"github.com/zot/ezbridge/internal/metrics"
	"github.com/zot/ezbridge/internal/proto"
)

// ErrClosed is returned for work submitted after Shutdown.
var ErrClosed = errors.New("lua runtime closed")

// ErrModuleNotFound is raised by require for an unknown module.
var ErrModuleNotFound = errors.New("module not found")

// WorkItem represents a unit of work for the executor.
type WorkItem struct {
	fn     func() (any, error)
	result chan WorkResult
}

// WorkResult holds the result of a work item.
type WorkResult struct {
	Value any
	Err   error
}

// Options configures a Runtime.
type Options struct {
	// ScriptsDir is where require() looks for script modules and main.lua.
	ScriptsDir string
	Logger     *zap.Logger
	Verbosity  int
	// Metrics may be nil.
	Metrics *metrics.Bridge
}

// Runtime owns one Lua VM.
type Runtime struct {
	State        *lua.LState
	scriptsDir   string
	loaded       *lua.LTable // package.loaded, keyed by module name
	metatables   map[proto.Kind]*lua.LTable
	services     map[any]any
	executorChan chan WorkItem
	done         chan struct{}
	closeOnce    sync.Once
	log          *zap.Logger
	verbosity    int
	metrics      *metrics.Bridge
	mu           sync.RWMutex
}

// NewRuntime creates a Runtime with its executor goroutine.
func NewRuntime(opts Options) (*Runtime, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	r := &Runtime{
		State:        L,
		scriptsDir:   opts.ScriptsDir,
		loaded:       L.NewTable(),
		metatables:   make(map[proto.Kind]*lua.LTable),
		services:     make(map[any]any),
		executorChan: make(chan WorkItem, 100),
		done:         make(chan struct{}),
		log:          opts.Logger,
		verbosity:    opts.Verbosity,
		metrics:      opts.Metrics,
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}

	// Load standard libraries
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
		{lua.OsLibName, lua.OpenOs},
	} {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.fn), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, fmt.Errorf("open %s library: %w", lib.name, err)
		}
	}

	r.registerRequire()
	r.registerPrint()

	r.startExecutor()

	return r, nil
}

// Log logs a verbosity-gated message.
func (r *Runtime) Log(level int, format string, args ...any) {
	logging.Logf(r.log, r.verbosity, level, format, args...)
}

// Logger returns the runtime's zap logger.
func (r *Runtime) Logger() *zap.Logger {
	return r.log
}

// Provide attaches a host service to the runtime under key. Native functions fetch it
// back with Service.
func (r *Runtime) Provide(key, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[key] = value
}

// Service returns the value provided under key, or nil.
func (r *Runtime) Service(key any) any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.services[key]
}

// registerPrint routes print() to the logger.
func (r *Runtime) registerPrint() {
	r.State.SetGlobal("print", r.State.NewFunction(func(L *lua.LState) int {
		top := L.GetTop()
		parts := make([]string, 0, top)
		for i := 1; i <= top; i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		r.log.Info("[lua] " + strings.Join(parts, "\t"))
		return 0
	}))
}

// registerRequire installs require(): native modules first, then script files.
// Results are cached in package.loaded. A module is marked loaded before it runs so
// circular requires see a value instead of recursing.
func (r *Runtime) registerRequire() {
	L := r.State
	loaded := r.loaded

	requireFn := L.NewFunction(func(L *lua.LState) int {
		modName := L.CheckString(1)

		if cached := L.GetField(loaded, modName); cached != lua.LNil {
			L.Push(cached)
			return 1
		}

		L.SetField(loaded, modName, lua.LTrue)
		result, err := r.requireDirect(modName)
		if err != nil {
			// Unmark on error (allows retry)
			L.SetField(loaded, modName, lua.LNil)
			L.RaiseError("error loading module '%s': %v", modName, err)
			return 0
		}
		if result == lua.LNil {
			result = lua.LTrue
		}
		L.SetField(loaded, modName, result)
		L.Push(result)
		return 1
	})

	L.SetGlobal("require", requireFn)

	// Also expose package.loaded for compatibility
	pkg := L.NewTable()
	L.SetField(pkg, "loaded", loaded)
	L.SetGlobal("package", pkg)
}

// requireDirect resolves a module by name.
// MUST only be called from within an execute() context.
func (r *Runtime) requireDirect(name string) (lua.LValue, error) {
	if m, ok := LookupModule(name); ok {
		return r.loadModule(m)
	}
	if r.scriptsDir == "" || strings.Contains(name, ":") {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}

	// "foo.bar" -> <scripts>/foo/bar.lua
	filename := strings.ReplaceAll(name, ".", string(filepath.Separator)) + ".lua"
	path := filepath.Join(r.scriptsDir, filename)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s (%s)", ErrModuleNotFound, name, path)
	}

	L := r.State
	fn, err := L.LoadFile(path)
	if err != nil {
		return nil, err
	}
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		return nil, err
	}
	result := L.Get(-1)
	L.Pop(1)
	r.Log(2, "lua: loaded %s", path)
	return result, nil
}

// Require loads a module through the executor and returns its exports.
func (r *Runtime) Require(name string) (lua.LValue, error) {
	v, err := r.execute(func() (any, error) {
		L := r.State
		if err := L.CallByParam(lua.P{Fn: L.GetGlobal("require"), NRet: 1, Protect: true}, lua.LString(name)); err != nil {
			return nil, err
		}
		result := L.Get(-1)
		L.Pop(1)
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(lua.LValue), nil
}

// DoString runs a chunk of Lua code via the executor.
func (r *Runtime) DoString(code string) error {
	_, err := r.execute(func() (any, error) {
		return nil, r.State.DoString(code)
	})
	return err
}

// DoFile runs a Lua file via the executor.
func (r *Runtime) DoFile(path string) error {
	_, err := r.execute(func() (any, error) {
		return nil, r.State.DoFile(path)
	})
	return err
}

// RunMain runs <scripts>/main.lua. A missing main.lua is not an error.
func (r *Runtime) RunMain() error {
	if r.scriptsDir == "" {
		return nil
	}
	mainPath := filepath.Join(r.scriptsDir, "main.lua")
	if _, err := os.Stat(mainPath); err != nil {
		r.Log(1, "lua: no main.lua in %s", r.scriptsDir)
		return nil
	}
	if err := r.DoFile(mainPath); err != nil {
		return fmt.Errorf("failed to load main.lua: %w", err)
	}
	r.Log(1, "lua: ran %s", mainPath)
	return nil
}

// Eval evaluates a Lua expression and converts the result to Go.
func (r *Runtime) Eval(expr string) (any, error) {
	return r.execute(func() (any, error) {
		L := r.State
		fn, err := L.LoadString("return " + expr)
		if err != nil {
			return nil, err
		}
		L.Push(fn)
		if err := L.PCall(0, 1, nil); err != nil {
			return nil, err
		}
		result := L.Get(-1)
		L.Pop(1)
		return LuaToGo(result), nil
	})
}

// Global reads a global variable and converts it to Go.
func (r *Runtime) Global(name string) any {
	v, _ := r.execute(func() (any, error) {
		return LuaToGo(r.State.GetGlobal(name)), nil
	})
	return v
}

// startExecutor creates the goroutine that processes work items.
func (r *Runtime) startExecutor() {
	go func() {
		for {
			select {
			case <-r.done:
				return
			case work := <-r.executorChan:
				result, err := r.runWork(work.fn)
				work.result <- WorkResult{Value: result, Err: err}
			}
		}
	}()
}

// runWork turns a Go panic inside a work item into an error so one bad item cannot
// take the executor down.
func (r *Runtime) runWork(fn func() (any, error)) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("lua executor: panic: %v", p)
		}
	}()
	return fn()
}

// execute queues a function on the executor and blocks until complete.
// It must not be called from the executor goroutine itself.
func (r *Runtime) execute(fn func() (any, error)) (any, error) {
	result := make(chan WorkResult, 1)
	select {
	case <-r.done:
		return nil, ErrClosed
	case r.executorChan <- WorkItem{fn: fn, result: result}:
	}
	select {
	case res := <-result:
		return res.Value, res.Err
	case <-r.done:
		return nil, ErrClosed
	}
}

// Shutdown stops the executor and closes the VM.
func (r *Runtime) Shutdown() {
	r.closeOnce.Do(func() {
		// Close the VM on the executor so no work item is mid-flight.
		_, _ = r.execute(func() (any, error) {
			r.State.Close()
			return nil, nil
		})
		close(r.done)
	})
}

// GoToLua converts a Go value to Lua.
func GoToLua(L *lua.LState, val any) lua.LValue {
	if val == nil {
		return lua.LNil
	}

	switch v := val.(type) {
	case lua.LValue:
		return v
	case bool:
		return lua.LBool(v)
	case int:
		return lua.LNumber(float64(v))
	case int64:
		return lua.LNumber(float64(v))
	case uint8:
		return lua.LNumber(float64(v))
	case uint32:
		return lua.LNumber(float64(v))
	case float64:
		return lua.LNumber(v)
	case string:
		return lua.LString(v)
	case fmt.Stringer:
		return lua.LString(v.String())
	case []any:
		tbl := L.NewTable()
		for i, item := range v {
			L.RawSetInt(tbl, i+1, GoToLua(L, item))
		}
		return tbl
	case []string:
		tbl := L.NewTable()
		for i, item := range v {
			L.RawSetInt(tbl, i+1, lua.LString(item))
		}
		return tbl
	case map[string]any:
		tbl := L.NewTable()
		for k, item := range v {
			L.SetField(tbl, k, GoToLua(L, item))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}

// LuaToGo converts a Lua value to Go.
// Fields prefixed with "_" are skipped (internal/private fields).
func LuaToGo(val lua.LValue) any {
	switch v := val.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case *lua.LTable:
		// Count numeric and string keys to determine if array or map
		hasNumericKeys := false
		hasStringKeys := false
		maxN := 0
		v.ForEach(func(key, _ lua.LValue) {
			if n, ok := key.(lua.LNumber); ok {
				hasNumericKeys = true
				if int(n) > maxN {
					maxN = int(n)
				}
			} else if ks, ok := key.(lua.LString); ok {
				if !strings.HasPrefix(string(ks), "_") {
					hasStringKeys = true
				}
			}
		})

		// Pure array (only numeric keys)
		if hasNumericKeys && !hasStringKeys && maxN > 0 {
			arr := make([]any, maxN)
			for i := 1; i <= maxN; i++ {
				arr[i-1] = LuaToGo(v.RawGetInt(i))
			}
			return arr
		}

		m := make(map[string]any)
		v.ForEach(func(key, value lua.LValue) {
			if ks, ok := key.(lua.LString); ok {
				keyStr := string(ks)
				if !strings.HasPrefix(keyStr, "_") {
					m[keyStr] = LuaToGo(value)
				}
			}
		})
		return m
	case *lua.LUserData:
		return v.Value
	default:
		return nil
	}
}
