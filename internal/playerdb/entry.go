// Package playerdb is the player registry the script bridge queries: who is online, who
// has ever joined, and the joined/left signals.
package playerdb

import (
	"unsafe"

	"github.com/google/uuid"

	"github.com/zot/ezbridge/internal/hostabi"
)

// Signals emitted by the Registry.
const (
	SignalJoined = "joined"
	SignalLeft   = "left"
)

// PlayerEntry is a snapshot of an online player. It holds no reference into host memory.
type PlayerEntry struct {
	XUID  uint64
	UUID  uuid.UUID
	Name  string
	NetID hostabi.NetworkIdentifier
}

// OfflinePlayerEntry is a player known from a previous session.
type OfflinePlayerEntry struct {
	XUID uint64    `yaml:"xuid"`
	UUID uuid.UUID `yaml:"uuid"`
	Name string    `yaml:"name"`
}

// Offline strips the connection-specific parts of an entry.
func (e PlayerEntry) Offline() OfflinePlayerEntry {
	return OfflinePlayerEntry{XUID: e.XUID, UUID: e.UUID, Name: e.Name}
}

// FromHost snapshots a host Player object through its certificate.
func FromHost(l *hostabi.Layout, player unsafe.Pointer, netid hostabi.NetworkIdentifier) PlayerEntry {
	cert := hostabi.PlayerCertificate(l, player)
	return PlayerEntry{
		XUID:  cert.XUID,
		UUID:  cert.UUID,
		Name:  cert.Name,
		NetID: netid,
	}
}
