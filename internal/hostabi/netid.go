package hostabi

import (
	"net/netip"
	"strconv"
)

// UnassignedAddress is what the host prints for a peer it has no address for.
const UnassignedAddress = "UNASSIGNED_SYSTEM_ADDRESS"

// NetworkIdentifier is the host's per-connection handle.
type NetworkIdentifier struct {
	GUID uint64
}

// PeerTable resolves a connection GUID to the remote system address.
type PeerTable interface {
	SystemAddress(guid uint64) (netip.AddrPort, bool)
}

// RealAddress formats the remote address the way the host does ("ip|port").
func (n NetworkIdentifier) RealAddress(peers PeerTable) string {
	if peers == nil {
		return UnassignedAddress
	}
	addr, ok := peers.SystemAddress(n.GUID)
	if !ok || !addr.IsValid() {
		return UnassignedAddress
	}
	return addr.Addr().Unmap().String() + "|" + strconv.Itoa(int(addr.Port()))
}
