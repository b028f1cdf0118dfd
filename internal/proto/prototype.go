// Package proto holds the per-kind prototype tables that describe what a wrapped entity
// exposes to scripts.
//
// Prototypes are process-wide. A kind's builder is registered from package init and runs
// at most once, on the first Get for that kind; the resulting table is never mutated and
// is shared by every proxy of the kind in every script VM.
package proto

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrUnknownKind is returned by Get for a kind nobody registered.
var ErrUnknownKind = errors.New("unknown prototype kind")

// Kind names a wrapped-entity kind, e.g. "player".
type Kind string

// Member is either a Property or a Method.
type Member interface {
	member()
}

// Property is read lazily: Get runs every time a script reads the name.
type Property struct {
	Get func(self any) any
}

// Method is invoked with the script's explicit arguments.
type Method struct {
	Call func(self any, args []any) (any, error)
}

func (Property) member() {}
func (Method) member()   {}

// Members is what a Builder produces.
type Members map[string]Member

// Builder constructs the members of one kind. It must be idempotent.
type Builder func() Members

// Prototype is the immutable member table of one kind.
type Prototype struct {
	kind    Kind
	members Members
}

// Kind returns the kind this prototype describes.
func (p *Prototype) Kind() Kind {
	return p.kind
}

// Lookup finds a member by exact, case-sensitive name.
func (p *Prototype) Lookup(name string) (Member, bool) {
	m, ok := p.members[name]
	return m, ok
}

// Names returns the member names in sorted order.
func (p *Prototype) Names() []string {
	names := make([]string, 0, len(p.members))
	for name := range p.members {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

type slot struct {
	once  sync.Once
	build Builder
	proto *Prototype
}

// Global prototype registry, filled from init() functions.
var registry = struct {
	slots map[Kind]*slot
	mu    sync.RWMutex
}{
	slots: make(map[Kind]*slot),
}

// Register declares the builder for a kind. Registering a kind twice panics.
func Register(kind Kind, build Builder) {
	if build == nil {
		panic(fmt.Sprintf("proto: nil builder for kind %q", kind))
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, exists := registry.slots[kind]; exists {
		panic(fmt.Sprintf("proto: kind %q registered twice", kind))
	}
	registry.slots[kind] = &slot{build: build}
}

// Get returns the shared prototype for kind, building it on first use.
func Get(kind Kind) (*Prototype, error) {
	registry.mu.RLock()
	s, ok := registry.slots[kind]
	registry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	s.once.Do(func() {
		members := s.build()
		// Copy so a builder holding on to its map cannot mutate the prototype.
		table := make(Members, len(members))
		for name, m := range members {
			table[name] = m
		}
		s.proto = &Prototype{kind: kind, members: table}
	})
	return s.proto, nil
}

// Kinds lists the registered kinds in sorted order.
func Kinds() []Kind {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	kinds := make([]Kind, 0, len(registry.slots))
	for k := range registry.slots {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}
