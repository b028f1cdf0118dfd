package lua

import (
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zot/ezbridge/internal/metrics"
	"github.com/zot/ezbridge/internal/proto"
)

const kindItem proto.Kind = "test_item"

type item struct {
	ID   uint64
	Name string
}

// itemBinding counts property reads so tests can tell lazy reads from snapshots.
type itemBinding struct {
	item  item
	reads int
}

// itemSource is the domain side of the test module: a list of items plus a listener
// table.
type itemSource struct {
	items    []item
	lookups  int
	handlers map[string][]func(item)
	mu       sync.Mutex
}

func newItemSource(items ...item) *itemSource {
	return &itemSource{items: items, handlers: make(map[string][]func(item))}
}

func (s *itemSource) find(id uint64) (item, bool) {
	s.lookups++
	for _, it := range s.items {
		if it.ID == id {
			return it, true
		}
	}
	return item{}, false
}

func (s *itemSource) AddListener(signal string, handler func(item)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[signal] = append(s.handlers[signal], handler)
}

func (s *itemSource) emit(signal string, it item) {
	s.mu.Lock()
	handlers := slices.Clone(s.handlers[signal])
	s.mu.Unlock()
	for _, h := range handlers {
		h(it)
	}
}

type itemsKey struct{}

func sourceOf(c *Call) *itemSource {
	return c.Runtime.Service(itemsKey{}).(*itemSource)
}

func init() {
	proto.Register(kindItem, func() proto.Members {
		self := func(v any) *itemBinding { return v.(*itemBinding) }
		return proto.Members{
			"id":   proto.Property{Get: func(v any) any { return fmt.Sprint(self(v).item.ID) }},
			"name": proto.Property{Get: func(v any) any { return self(v).item.Name }},
			"reads": proto.Property{Get: func(v any) any {
				b := self(v)
				b.reads++
				return b.reads
			}},
			"greet": proto.Method{Call: func(v any, args []any) (any, error) {
				if len(args) != 1 {
					return nil, fmt.Errorf("%w: greet takes 1 argument", ErrInvalidArgumentCount)
				}
				return fmt.Sprintf("%s greets %v", self(v).item.Name, args[0]), nil
			}},
			"toString": proto.Method{Call: func(v any, _ []any) (any, error) {
				it := self(v).item
				return fmt.Sprintf("Item { id: %d, name: %s }", it.ID, it.Name), nil
			}},
		}
	})

	RegisterModule(Module{
		Name: "test:items",
		Natives: map[string]NativeFunc{
			"find": func(c *Call) (lua.LValue, error) {
				if err := c.Arity(1); err != nil {
					return nil, err
				}
				id, err := c.Uint64(0)
				if err != nil {
					return nil, err
				}
				it, ok := sourceOf(c).find(id)
				if !ok {
					return lua.LNil, nil
				}
				return c.Runtime.Wrap(c.L, kindItem, &itemBinding{item: it})
			},
			"list": func(c *Call) (lua.LValue, error) {
				if err := c.Arity(0); err != nil {
					return nil, err
				}
				return WrapMany(c.Runtime, c.L, kindItem, sourceOf(c).items, func(it item) any {
					return &itemBinding{item: it}
				})
			},
			"uuid": func(c *Call) (lua.LValue, error) {
				if err := c.Arity(1); err != nil {
					return nil, err
				}
				id, err := c.UUID(0)
				if err != nil {
					return nil, err
				}
				return lua.LString(id.String()), nil
			},
			"on": func(c *Call) (lua.LValue, error) {
				if err := c.Arity(2); err != nil {
					return nil, err
				}
				signal, err := c.String(0)
				if err != nil {
					return nil, err
				}
				fn, err := c.Function(1)
				if err != nil {
					return nil, err
				}
				rt := c.Runtime
				Subscribe[item](rt, sourceOf(c), signal, fn, func(L *lua.LState, it item) (lua.LValue, error) {
					return rt.Wrap(L, kindItem, &itemBinding{item: it})
				})
				return nil, nil
			},
			"boom": func(c *Call) (lua.LValue, error) {
				panic("kaboom")
			},
		},
		Declaration: `
local native = ...
return {
  find = native.find,
  list = native.list,
  uuid = native.uuid,
  on = native.on,
  boom = native.boom,
}
`,
	})

	RegisterModule(Module{Name: "test:broken", Declaration: `this is not lua`})
}

type harness struct {
	rt      *Runtime
	src     *itemSource
	logs    *observer.ObservedLogs
	metrics *metrics.Bridge
}

func newHarness(t *testing.T, scriptsDir string, items ...item) *harness {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	m := metrics.New()
	rt, err := NewRuntime(Options{
		ScriptsDir: scriptsDir,
		Logger:     zap.New(core),
		Verbosity:  2,
		Metrics:    m,
	})
	require.NoError(t, err)
	t.Cleanup(rt.Shutdown)

	src := newItemSource(items...)
	rt.Provide(itemsKey{}, src)
	return &harness{rt: rt, src: src, logs: logs, metrics: m}
}
