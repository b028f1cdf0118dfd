package hostabi

import (
	"net/netip"
	"runtime"
	"testing"
	"unsafe"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultLayout(t *testing.T) *Layout {
	t.Helper()
	l, err := LayoutFor(DefaultVersion)
	require.NoError(t, err)
	return l
}

func TestFieldReadsAndWritesAtOffset(t *testing.T) {
	buf := make([]byte, 64)
	base := unsafe.Pointer(&buf[0])

	*Field[uint32](base, 8) = 0xdeadbeef
	assert.Equal(t, uint32(0xdeadbeef), *Field[uint32](base, 8))
	assert.Equal(t, byte(0xef), buf[8], "little-endian low byte lands at the offset")
	assert.Zero(t, buf[7])
}

func TestLayoutForUnknownVersion(t *testing.T) {
	_, err := LayoutFor("0.0.0")
	require.ErrorIs(t, err, ErrUnknownVersion)
	assert.Contains(t, err.Error(), DefaultVersion)
}

func TestLayoutOffsetPanicsForMissingField(t *testing.T) {
	l := defaultLayout(t)
	assert.True(t, l.Has(StructPlayer, "certificate"))
	assert.False(t, l.Has(StructPlayer, "health"))
	assert.Panics(t, func() { l.Offset(StructPlayer, "health") })
}

func TestPlayerCertificate(t *testing.T) {
	l := defaultLayout(t)
	cert := &Certificate{XUID: 2535416409920839, UUID: uuid.New(), Name: "Steve"}

	// Pointer-typed backing store so the GC sees the certificate reference.
	player := make([]unsafe.Pointer, 3208/8+1)
	player[3208/8] = unsafe.Pointer(cert)

	got := PlayerCertificate(l, unsafe.Pointer(&player[0]))
	assert.Same(t, cert, got)
	runtime.KeepAlive(player)
}

func TestNewPlayerBlock(t *testing.T) {
	l := defaultLayout(t)
	cert := &Certificate{XUID: 2535416409920839, UUID: uuid.New(), Name: "Alex"}

	block := NewPlayerBlock(l, cert)
	assert.Same(t, cert, PlayerCertificate(l, block))
	assert.Nil(t, *Field[unsafe.Pointer](block, 0), "fields other than the certificate stay zero")
}

type peerMap map[uint64]netip.AddrPort

func (p peerMap) SystemAddress(guid uint64) (netip.AddrPort, bool) {
	a, ok := p[guid]
	return a, ok
}

func TestRealAddress(t *testing.T) {
	peers := peerMap{7: netip.MustParseAddrPort("192.168.1.20:19132")}

	assert.Equal(t, "192.168.1.20|19132", NetworkIdentifier{GUID: 7}.RealAddress(peers))
	assert.Equal(t, UnassignedAddress, NetworkIdentifier{GUID: 8}.RealAddress(peers))
	assert.Equal(t, UnassignedAddress, NetworkIdentifier{GUID: 7}.RealAddress(nil))
}
