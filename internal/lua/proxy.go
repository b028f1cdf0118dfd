package lua

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/zot/ezbridge/internal/proto"
)

// Wrap returns a proxy userdata for value bound to kind's prototype.
// value is the binding the prototype's accessors receive as self; it should own a copy
// of the domain entry. Property reads run the accessor on every access.
// MUST only be called from within an execute() context.
func (r *Runtime) Wrap(L *lua.LState, kind proto.Kind, value any) (*lua.LUserData, error) {
	mt, err := r.metatable(L, kind)
	if err != nil {
		return nil, err
	}
	ud := L.NewUserData()
	ud.Value = value
	L.SetMetatable(ud, mt)
	return ud, nil
}

// WrapMany wraps values in order into an array table. Empty input gives an empty table.
// MUST only be called from within an execute() context.
func WrapMany[T any](r *Runtime, L *lua.LState, kind proto.Kind, values []T, bind func(T) any) (*lua.LTable, error) {
	tbl := L.CreateTable(len(values), 0)
	for i, v := range values {
		ud, err := r.Wrap(L, kind, bind(v))
		if err != nil {
			return nil, err
		}
		L.RawSetInt(tbl, i+1, ud)
	}
	return tbl, nil
}

// Unwrap returns the binding behind a proxy and its kind.
func Unwrap(v lua.LValue) (any, proto.Kind, bool) {
	ud, ok := v.(*lua.LUserData)
	if !ok {
		return nil, "", false
	}
	mt, ok := ud.Metatable.(*lua.LTable)
	if !ok {
		return nil, "", false
	}
	name, ok := mt.RawGetString("__name").(lua.LString)
	if !ok {
		return nil, "", false
	}
	return ud.Value, proto.Kind(name), true
}

// metatable returns this VM's metatable for kind, building it on first use from the
// shared prototype.
func (r *Runtime) metatable(L *lua.LState, kind proto.Kind) (*lua.LTable, error) {
	if mt, ok := r.metatables[kind]; ok {
		return mt, nil
	}
	p, err := proto.Get(kind)
	if err != nil {
		return nil, err
	}

	mt := L.NewTable()
	L.SetField(mt, "__name", lua.LString(kind))
	L.SetField(mt, "__metatable", lua.LString(kind))

	// __index(self, key): properties are evaluated now, methods come back bound to self.
	L.SetField(mt, "__index", L.NewFunction(func(L *lua.LState) int {
		ud := L.CheckUserData(1)
		key, ok := L.Get(2).(lua.LString)
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		member, ok := p.Lookup(string(key))
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		switch m := member.(type) {
		case proto.Property:
			L.Push(GoToLua(L, m.Get(ud.Value)))
		case proto.Method:
			L.Push(r.boundMethod(L, ud, string(key), m))
		default:
			L.Push(lua.LNil)
		}
		return 1
	}))

	L.SetField(mt, "__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("%s.%s is read-only", kind, L.CheckString(2))
		return 0
	}))

	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		ud := L.CheckUserData(1)
		if m, ok := p.Lookup("toString"); ok {
			if method, ok := m.(proto.Method); ok {
				res, err := method.Call(ud.Value, nil)
				if err != nil {
					L.RaiseError("%s.toString: %v", kind, err)
					return 0
				}
				L.Push(lua.LString(fmt.Sprint(res)))
				return 1
			}
		}
		L.Push(lua.LString(fmt.Sprintf("%s: %p", kind, ud)))
		return 1
	}))

	r.metatables[kind] = mt
	r.Log(2, "lua: built metatable for %s (%v)", kind, p.Names())
	return mt, nil
}

// boundMethod returns a function that calls m with self, accepting both obj:m(...) and
// obj.m(...) call styles.
func (r *Runtime) boundMethod(L *lua.LState, self *lua.LUserData, name string, m proto.Method) *lua.LFunction {
	return L.NewFunction(func(L *lua.LState) int {
		first := 1
		if ud, ok := L.Get(1).(*lua.LUserData); ok && ud == self {
			first = 2
		}
		args := make([]any, 0, L.GetTop())
		for i := first; i <= L.GetTop(); i++ {
			args = append(args, LuaToGo(L.Get(i)))
		}
		res, err := m.Call(self.Value, args)
		if err != nil {
			L.RaiseError("%s: %v", name, err)
			return 0
		}
		L.Push(GoToLua(L, res))
		return 1
	})
}
