// Package hostabi reads and writes fields of host-owned structures at fixed byte offsets.
//
// The host binary does not publish its structure layouts. Every offset used here comes
// from a Layout pinned to one host version; all raw access goes through Field so that a
// host upgrade only touches the offset table in layout.go.
package hostabi

import "unsafe"

// Field returns a typed reference to the value located offset bytes past base.
// Nothing is validated: T must match the real field type and size of the host build
// the offset was derived for. A mismatch silently reads or corrupts host memory.
func Field[T any](base unsafe.Pointer, offset uintptr) *T {
	return (*T)(unsafe.Add(base, offset))
}
