package lua

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	lua "github.com/yuin/gopher-lua"
)

// Argument validation failures. Natives return them wrapped; scripts see them as
// runtime errors.
var (
	ErrInvalidArgumentCount = errors.New("invalid argument count")
	ErrInvalidArgumentType  = errors.New("invalid argument type")
)

// NativeFunc implements one function of a native module. Returning nil or lua.LNil
// gives the script the "no value" result.
type NativeFunc func(c *Call) (lua.LValue, error)

// Module is a named unit of native functions plus the Lua declaration that builds its
// public surface.
//
// Declaration runs once per VM with the native table as its only vararg and must
// return the export table, e.g.
//
//	local native = ...
//	return { getThing = native.getThing }
type Module struct {
	Name        string
	Natives     map[string]NativeFunc
	Declaration string
}

// Global module registry, filled from init() and never changed afterwards.
var modules = struct {
	byName map[string]*Module
	mu     sync.RWMutex
}{
	byName: make(map[string]*Module),
}

// RegisterModule declares a module. Empty or duplicate names panic.
func RegisterModule(m Module) {
	if m.Name == "" {
		panic("lua: module without a name")
	}
	modules.mu.Lock()
	defer modules.mu.Unlock()
	if _, exists := modules.byName[m.Name]; exists {
		panic(fmt.Sprintf("lua: module %q registered twice", m.Name))
	}
	modules.byName[m.Name] = &m
}

// LookupModule finds a registered module.
func LookupModule(name string) (*Module, bool) {
	modules.mu.RLock()
	defer modules.mu.RUnlock()
	m, ok := modules.byName[name]
	return m, ok
}

// Modules returns every registered module sorted by name.
func Modules() []*Module {
	modules.mu.RLock()
	defer modules.mu.RUnlock()
	list := make([]*Module, 0, len(modules.byName))
	for _, m := range modules.byName {
		list = append(list, m)
	}
	slices.SortFunc(list, func(a, b *Module) int { return strings.Compare(a.Name, b.Name) })
	return list
}

// FunctionNames returns the module's native function names sorted.
func (m *Module) FunctionNames() []string {
	names := make([]string, 0, len(m.Natives))
	for name := range m.Natives {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// loadModule builds the native table for m and evaluates its declaration.
// MUST only be called from within an execute() context.
func (r *Runtime) loadModule(m *Module) (lua.LValue, error) {
	L := r.State
	native := L.NewTable()
	for _, name := range m.FunctionNames() {
		L.SetField(native, name, r.nativeFunction(m.Name, name, m.Natives[name]))
	}

	chunk, err := L.Load(strings.NewReader(m.Declaration), "="+m.Name)
	if err != nil {
		return nil, fmt.Errorf("declaration of %s: %w", m.Name, err)
	}
	L.Push(chunk)
	L.Push(native)
	if err := L.PCall(1, 1, nil); err != nil {
		return nil, fmt.Errorf("declaration of %s: %w", m.Name, err)
	}
	exports := L.Get(-1)
	L.Pop(1)
	r.Log(1, "lua: loaded module %s", m.Name)
	return exports, nil
}

// nativeFunction adapts a NativeFunc to the VM calling convention. Errors become Lua
// runtime errors raised at the call site; a Go panic inside fn is converted the same way.
func (r *Runtime) nativeFunction(module, name string, fn NativeFunc) *lua.LFunction {
	var self *lua.LFunction
	self = r.State.NewFunction(func(L *lua.LState) int {
		top := L.GetTop()
		args := make([]lua.LValue, top)
		for i := 1; i <= top; i++ {
			args[i-1] = L.Get(i)
		}
		call := &Call{L: L, Runtime: r, Callee: self, Name: name, Args: args}

		result, err := r.invokeNative(fn, call)
		r.metrics.ObserveNative(module, name, err)
		if err != nil {
			r.Log(2, "lua: %s.%s: %v", module, name, err)
			L.RaiseError("%s: %v", name, err)
			return 0
		}
		if result == nil {
			result = lua.LNil
		}
		L.Push(result)
		return 1
	})
	return self
}

func (r *Runtime) invokeNative(fn NativeFunc, call *Call) (result lua.LValue, err error) {
	defer func() {
		if p := recover(); p != nil {
			// Lua errors raised by helpers inside fn travel as *lua.ApiError; let the VM
			// handle those.
			if apiErr, ok := p.(*lua.ApiError); ok {
				panic(apiErr)
			}
			err = fmt.Errorf("native panic: %v", p)
		}
	}()
	return fn(call)
}

// Call is one native invocation: the callee and the script's arguments.
type Call struct {
	L       *lua.LState
	Runtime *Runtime
	Callee  *lua.LFunction
	Name    string
	Args    []lua.LValue
}

// Arity fails with ErrInvalidArgumentCount unless exactly n arguments were passed.
func (c *Call) Arity(n int) error {
	if len(c.Args) != n {
		return fmt.Errorf("%w: require %d argument(s), got %d", ErrInvalidArgumentCount, n, len(c.Args))
	}
	return nil
}

func (c *Call) typeError(i int, want string) error {
	return fmt.Errorf("%w: argument %d must be %s, got %s", ErrInvalidArgumentType, i+1, want, c.Args[i].Type())
}

// String decodes argument i as a string. Numbers are converted.
func (c *Call) String(i int) (string, error) {
	switch v := c.Args[i].(type) {
	case lua.LString:
		return string(v), nil
	case lua.LNumber:
		return v.String(), nil
	default:
		return "", c.typeError(i, "a string")
	}
}

// Uint64 decodes argument i as a 64-bit identifier. Decimal strings are the canonical
// form since Lua numbers cannot hold every 64-bit value; integral numbers are accepted.
func (c *Call) Uint64(i int) (uint64, error) {
	switch v := c.Args[i].(type) {
	case lua.LString:
		// Base 10 only: "010" is xuid 10, and hex, underscores or fractions are rejected.
		n, err := strconv.ParseUint(strings.TrimSpace(string(v)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: argument %d: %q is not a decimal 64-bit identifier", ErrInvalidArgumentType, i+1, string(v))
		}
		return n, nil
	case lua.LNumber:
		f := float64(v)
		if f != math.Trunc(f) || f >= 1<<64 {
			return 0, fmt.Errorf("%w: argument %d: %v is not a 64-bit identifier", ErrInvalidArgumentType, i+1, f)
		}
		n, err := cast.ToUint64E(f)
		if err != nil {
			return 0, fmt.Errorf("%w: argument %d: %v", ErrInvalidArgumentType, i+1, err)
		}
		return n, nil
	default:
		return 0, c.typeError(i, "a string-encoded identifier")
	}
}

// UUID decodes argument i as a UUID string.
func (c *Call) UUID(i int) (uuid.UUID, error) {
	s, ok := c.Args[i].(lua.LString)
	if !ok {
		return uuid.Nil, c.typeError(i, "a uuid string")
	}
	id, err := uuid.Parse(string(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: argument %d: %v", ErrInvalidArgumentType, i+1, err)
	}
	return id, nil
}

// Function decodes argument i as a Lua function.
func (c *Call) Function(i int) (*lua.LFunction, error) {
	fn, ok := c.Args[i].(*lua.LFunction)
	if !ok {
		return nil, c.typeError(i, "a function")
	}
	return fn, nil
}
