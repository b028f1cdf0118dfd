package playerdb

import (
	"net/netip"
	"sync"
)

// PeerBook maps connection GUIDs to remote addresses. It implements hostabi.PeerTable
// for hosts that report addresses alongside join events.
type PeerBook struct {
	peers map[uint64]netip.AddrPort
	mu    sync.RWMutex
}

// NewPeerBook creates an empty peer book.
func NewPeerBook() *PeerBook {
	return &PeerBook{peers: make(map[uint64]netip.AddrPort)}
}

// Set records the address of a connection.
func (b *PeerBook) Set(guid uint64, addr netip.AddrPort) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.peers[guid] = addr
}

// Remove forgets a connection.
func (b *PeerBook) Remove(guid uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.peers, guid)
}

// SystemAddress implements hostabi.PeerTable.
func (b *PeerBook) SystemAddress(guid uint64) (netip.AddrPort, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	addr, ok := b.peers[guid]
	return addr, ok
}
