// Package apiset registers the native modules scripts can require.
package apiset

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/zot/ezbridge/internal/hostabi"
	"github.com/zot/ezbridge/internal/lua"
	"github.com/zot/ezbridge/internal/playerdb"
	"github.com/zot/ezbridge/internal/proto"
)

// Prototype kinds exposed by ez:player.
const (
	KindPlayer        proto.Kind = "player"
	KindOfflinePlayer proto.Kind = "offline_player"
)

// PlayerSource is what ez:player needs from the player registry.
type PlayerSource interface {
	Find(xuid uint64) (playerdb.PlayerEntry, bool)
	FindByUUID(id uuid.UUID) (playerdb.PlayerEntry, bool)
	FindByName(name string) (playerdb.PlayerEntry, bool)
	FindOffline(xuid uint64) (playerdb.OfflinePlayerEntry, bool, error)
	FindOfflineByUUID(id uuid.UUID) (playerdb.OfflinePlayerEntry, bool, error)
	FindOfflineByName(name string) (playerdb.OfflinePlayerEntry, bool, error)
	GetData() []playerdb.PlayerEntry
	AddListener(signal string, handler func(playerdb.PlayerEntry))
}

type playerEnvKey struct{}

type playerEnv struct {
	db    PlayerSource
	peers hostabi.PeerTable
}

// AttachPlayers makes db and peers available to ez:player in rt. It must be called
// before scripts require the module.
func AttachPlayers(rt *lua.Runtime, db PlayerSource, peers hostabi.PeerTable) {
	rt.Provide(playerEnvKey{}, &playerEnv{db: db, peers: peers})
}

func playerEnvOf(c *lua.Call) (*playerEnv, error) {
	env, ok := c.Runtime.Service(playerEnvKey{}).(*playerEnv)
	if !ok {
		return nil, fmt.Errorf("no player source attached to this runtime")
	}
	return env, nil
}

// playerBinding is the self of a player proxy. It owns its copy of the entry.
type playerBinding struct {
	entry playerdb.PlayerEntry
	env   *playerEnv
}

func (b *playerBinding) address() string {
	return b.entry.NetID.RealAddress(b.env.peers)
}

func (b *playerBinding) String() string {
	return fmt.Sprintf("Player { xuid: %d, uuid: %s, name: %s, ip: %s }",
		b.entry.XUID, b.entry.UUID, b.entry.Name, b.address())
}

func buildPlayerPrototype() proto.Members {
	self := func(v any) *playerBinding { return v.(*playerBinding) }
	return proto.Members{
		"xuid":    proto.Property{Get: func(v any) any { return fmt.Sprint(self(v).entry.XUID) }},
		"uuid":    proto.Property{Get: func(v any) any { return self(v).entry.UUID.String() }},
		"name":    proto.Property{Get: func(v any) any { return self(v).entry.Name }},
		"address": proto.Property{Get: func(v any) any { return self(v).address() }},
		"alive": proto.Property{Get: func(v any) any {
			b := self(v)
			_, ok := b.env.db.Find(b.entry.XUID)
			return ok
		}},
		"toString": proto.Method{Call: func(v any, _ []any) (any, error) {
			return self(v).String(), nil
		}},
	}
}

// offlinePlayerBinding is the self of an offline player proxy.
type offlinePlayerBinding struct {
	entry playerdb.OfflinePlayerEntry
}

func (b *offlinePlayerBinding) String() string {
	return fmt.Sprintf("OfflinePlayer { xuid: %d, uuid: %s, name: %s }", b.entry.XUID, b.entry.UUID, b.entry.Name)
}

func buildOfflinePlayerPrototype() proto.Members {
	self := func(v any) *offlinePlayerBinding { return v.(*offlinePlayerBinding) }
	return proto.Members{
		"xuid": proto.Property{Get: func(v any) any { return fmt.Sprint(self(v).entry.XUID) }},
		"uuid": proto.Property{Get: func(v any) any { return self(v).entry.UUID.String() }},
		"name": proto.Property{Get: func(v any) any { return self(v).entry.Name }},
		"toString": proto.Method{Call: func(v any, _ []any) (any, error) {
			return self(v).String(), nil
		}},
	}
}

func init() {
	proto.Register(KindPlayer, buildPlayerPrototype)
	proto.Register(KindOfflinePlayer, buildOfflinePlayerPrototype)
	lua.RegisterModule(playerModule)
}
