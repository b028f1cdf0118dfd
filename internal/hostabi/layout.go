package hostabi

import (
	"errors"
	"fmt"
	"slices"
)

// ErrUnknownVersion is returned when no offset table exists for a host version.
var ErrUnknownVersion = errors.New("unknown host version")

// Struct names a host structure kind.
type Struct string

const (
	StructPlayer Struct = "Player"
)

// FieldKey identifies one field of one host structure.
type FieldKey struct {
	Struct Struct
	Name   string
}

// DefaultVersion is the host build the bundled offsets were derived from.
const DefaultVersion = "1.14.60.5"

// Layout is the offset table for a single host version. It is never mutated after
// construction.
type Layout struct {
	Version string
	offsets map[FieldKey]uintptr
}

var layouts = map[string]*Layout{
	DefaultVersion: {
		Version: DefaultVersion,
		offsets: map[FieldKey]uintptr{
			{StructPlayer, "certificate"}: 3208,
		},
	},
}

// LayoutFor returns the offset table for a host version.
func LayoutFor(version string) (*Layout, error) {
	l, ok := layouts[version]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownVersion, version, Versions())
	}
	return l, nil
}

// Versions lists the host versions with a compiled-in offset table.
func Versions() []string {
	versions := make([]string, 0, len(layouts))
	for v := range layouts {
		versions = append(versions, v)
	}
	slices.Sort(versions)
	return versions
}

// Offset returns the byte offset of a field.
// Panics for a field missing from the table: offsets are fixed at build time, so a
// missing entry is a bug in the table rather than a runtime condition.
func (l *Layout) Offset(s Struct, name string) uintptr {
	off, ok := l.offsets[FieldKey{s, name}]
	if !ok {
		panic(fmt.Sprintf("hostabi: no offset for %s.%s in layout %s", s, name, l.Version))
	}
	return off
}

// Has reports whether the layout knows a field.
func (l *Layout) Has(s Struct, name string) bool {
	_, ok := l.offsets[FieldKey{s, name}]
	return ok
}
