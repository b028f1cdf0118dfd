package lua

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// Signaler is a domain source that fans named signals out to handlers.
type Signaler[E any] interface {
	AddListener(signal string, handler func(E))
}

// Marshal turns a signal payload into the value handed to the script callback.
// It runs on the executor.
type Marshal[E any] func(L *lua.LState, payload E) (lua.LValue, error)

// Subscribe attaches a script callback to a domain signal and returns immediately.
// On each emission the payload is marshaled and fn is called with it as the only
// argument. A failing callback is logged and counted; it never reaches the emitter.
//
// There is no unsubscribe: the listener lives as long as the source.
func Subscribe[E any](r *Runtime, src Signaler[E], signal string, fn *lua.LFunction, marshal Marshal[E]) {
	src.AddListener(signal, func(payload E) {
		err := r.deliver(fn, func(L *lua.LState) (lua.LValue, error) {
			return marshal(L, payload)
		})
		r.metrics.ObserveDelivery(signal, err)
		if err != nil {
			r.log.Sugar().Warnw("script callback failed", "signal", signal, "error", err)
		}
	})
	r.Log(2, "lua: subscribed callback to %q", signal)
}

// deliver calls fn on the executor with the marshaled argument.
func (r *Runtime) deliver(fn *lua.LFunction, build func(L *lua.LState) (lua.LValue, error)) error {
	_, err := r.execute(func() (any, error) {
		L := r.State
		arg, err := build(L)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		return nil, L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, arg)
	})
	return err
}
