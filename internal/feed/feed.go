// Package feed turns join/leave notifications from a stand-in host into registry
// updates. Notifications arrive as JSON objects, one per line on a stream or one per
// websocket message.
package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zot/ezbridge/internal/hostabi"
	"github.com/zot/ezbridge/internal/logging"
	"github.com/zot/ezbridge/internal/playerdb"
)

// Event kinds.
const (
	EventJoin  = "join"
	EventLeave = "leave"
)

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrNotOnline    = errors.New("player not online")
)

// Event is one notification.
//
//	{"event":"join","xuid":"2535416409485371","uuid":"...","name":"Steve","address":"192.0.2.7:19132"}
//	{"event":"leave","xuid":"2535416409485371"}
//
// xuid may be a JSON number or a decimal string. guid is optional; joins without one get
// a fresh connection id.
type Event struct {
	Event   string      `json:"event"`
	XUID    json.Number `json:"xuid"`
	UUID    string      `json:"uuid,omitempty"`
	Name    string      `json:"name,omitempty"`
	Address string      `json:"address,omitempty"`
	GUID    uint64      `json:"guid,omitempty"`
}

// Registry is the part of playerdb.Registry the feed drives.
type Registry interface {
	Find(xuid uint64) (playerdb.PlayerEntry, bool)
	Join(entry playerdb.PlayerEntry)
	Leave(xuid uint64) (playerdb.PlayerEntry, bool)
}

// Peers is the address book updated alongside joins and leaves.
type Peers interface {
	Set(guid uint64, addr netip.AddrPort)
	Remove(guid uint64)
}

// Applier applies events to a registry. Joins are materialised as host Player blocks
// and read back through the layout, the same path a live host integration takes.
type Applier struct {
	db        Registry
	peers     Peers
	layout    *hostabi.Layout
	log       *zap.Logger
	verbosity int
	nextGUID  atomic.Uint64
	applied   atomic.Int64
	rejected  atomic.Int64
}

// NewApplier creates an Applier. peers may be nil.
func NewApplier(db Registry, peers Peers, layout *hostabi.Layout, log *zap.Logger, verbosity int) *Applier {
	a := &Applier{db: db, peers: peers, layout: layout, log: log, verbosity: verbosity}
	a.nextGUID.Store(1 << 32)
	return a
}

// Log logs a verbosity-gated message.
func (a *Applier) Log(level int, format string, args ...any) {
	logging.Logf(a.log, a.verbosity, level, format, args...)
}

// Stats reports how many events were applied and rejected so far.
func (a *Applier) Stats() (applied, rejected int64) {
	return a.applied.Load(), a.rejected.Load()
}

// Decode parses one JSON event.
func Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}

// Apply performs one event.
func (a *Applier) Apply(ev Event) error {
	err := a.apply(ev)
	if err != nil {
		a.rejected.Add(1)
		return err
	}
	a.applied.Add(1)
	return nil
}

func (a *Applier) apply(ev Event) error {
	xuid, err := strconv.ParseUint(ev.XUID.String(), 10, 64)
	if err != nil {
		return fmt.Errorf("xuid %q: %w", ev.XUID, err)
	}

	switch strings.ToLower(ev.Event) {
	case EventJoin:
		entry, addr, err := a.joinEntry(xuid, ev)
		if err != nil {
			return err
		}
		if a.peers != nil {
			// A rejoin without a leave replaces the connection.
			if prev, ok := a.db.Find(xuid); ok && prev.NetID.GUID != entry.NetID.GUID {
				a.peers.Remove(prev.NetID.GUID)
			}
			if addr.IsValid() {
				a.peers.Set(entry.NetID.GUID, addr)
			}
		}
		a.db.Join(entry)
		return nil

	case EventLeave:
		entry, ok := a.db.Leave(xuid)
		if !ok {
			return fmt.Errorf("%w: %d", ErrNotOnline, xuid)
		}
		if a.peers != nil {
			a.peers.Remove(entry.NetID.GUID)
		}
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Event)
	}
}

func (a *Applier) joinEntry(xuid uint64, ev Event) (playerdb.PlayerEntry, netip.AddrPort, error) {
	var addr netip.AddrPort
	if ev.Name == "" {
		return playerdb.PlayerEntry{}, addr, fmt.Errorf("join %d: missing name", xuid)
	}
	id, err := uuid.Parse(ev.UUID)
	if err != nil {
		return playerdb.PlayerEntry{}, addr, fmt.Errorf("join %d: uuid: %w", xuid, err)
	}
	if ev.Address != "" {
		if addr, err = netip.ParseAddrPort(ev.Address); err != nil {
			return playerdb.PlayerEntry{}, addr, fmt.Errorf("join %d: address: %w", xuid, err)
		}
	}
	guid := ev.GUID
	if guid == 0 {
		guid = a.nextGUID.Add(1)
	}
	cert := &hostabi.Certificate{XUID: xuid, UUID: id, Name: ev.Name}
	player := hostabi.NewPlayerBlock(a.layout, cert)
	return playerdb.FromHost(a.layout, player, hostabi.NetworkIdentifier{GUID: guid}), addr, nil
}

// ReadLines applies one event per line until r is exhausted or ctx is done. Blank lines
// and lines starting with # are skipped. A bad line is logged and skipped.
func (a *Applier) ReadLines(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		ev, err := Decode([]byte(text))
		if err == nil {
			err = a.Apply(ev)
		} else {
			a.rejected.Add(1)
		}
		if err != nil {
			a.Log(0, "feed: line %d: %v", line, err)
			continue
		}
		a.Log(2, "feed: line %d: %s %s", line, ev.Event, ev.XUID)
	}
	return scanner.Err()
}
