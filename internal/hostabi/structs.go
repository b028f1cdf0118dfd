package hostabi

import (
	"fmt"
	"unsafe"

	"github.com/google/uuid"
)

// Certificate is the identity block a Player points at.
type Certificate struct {
	XUID uint64
	UUID uuid.UUID
	Name string
}

// PlayerCertificate follows Player.certificate.
func PlayerCertificate(l *Layout, player unsafe.Pointer) *Certificate {
	return *Field[*Certificate](player, l.Offset(StructPlayer, "certificate"))
}

// NewPlayerBlock allocates a zeroed stand-in for a host Player object whose certificate
// field points at cert, so hosts without a real game process go through the same
// accessors. The block is pointer-typed memory, which keeps cert reachable for as long
// as the block is.
func NewPlayerBlock(l *Layout, cert *Certificate) unsafe.Pointer {
	off := l.Offset(StructPlayer, "certificate")
	const word = unsafe.Sizeof(uintptr(0))
	if off%word != 0 {
		panic(fmt.Sprintf("hostabi: Player.certificate offset %d is not pointer aligned", off))
	}
	block := make([]unsafe.Pointer, off/word+1)
	base := unsafe.Pointer(&block[0])
	*Field[*Certificate](base, off) = cert
	return base
}
