package apiset

import (
	golua "github.com/yuin/gopher-lua"

	"github.com/zot/ezbridge/internal/lua"
	"github.com/zot/ezbridge/internal/playerdb"
)

// ModulePlayer is the name scripts require.
const ModulePlayer = "ez:player"

const playerDeclaration = `
local native = ...
return {
  getPlayerByXUID = native.getPlayerByXUID,
  getPlayerByUUID = native.getPlayerByUUID,
  getPlayerByNAME = native.getPlayerByNAME,
  getOfflinePlayerByXUID = native.getOfflinePlayerByXUID,
  getOfflinePlayerByUUID = native.getOfflinePlayerByUUID,
  getOfflinePlayerByNAME = native.getOfflinePlayerByNAME,
  getPlayerList = native.getPlayerList,
  onPlayerJoined = native.onPlayerJoined,
  onPlayerLeft = native.onPlayerLeft,
}
`

var playerModule = lua.Module{
	Name: ModulePlayer,
	Natives: map[string]lua.NativeFunc{
		"getPlayerByXUID": func(c *lua.Call) (golua.LValue, error) {
			return lookupOnline(c, func(env *playerEnv) (playerdb.PlayerEntry, bool, error) {
				xuid, err := c.Uint64(0)
				if err != nil {
					return playerdb.PlayerEntry{}, false, err
				}
				e, ok := env.db.Find(xuid)
				return e, ok, nil
			})
		},
		"getPlayerByUUID": func(c *lua.Call) (golua.LValue, error) {
			return lookupOnline(c, func(env *playerEnv) (playerdb.PlayerEntry, bool, error) {
				id, err := c.UUID(0)
				if err != nil {
					return playerdb.PlayerEntry{}, false, err
				}
				e, ok := env.db.FindByUUID(id)
				return e, ok, nil
			})
		},
		"getPlayerByNAME": func(c *lua.Call) (golua.LValue, error) {
			return lookupOnline(c, func(env *playerEnv) (playerdb.PlayerEntry, bool, error) {
				name, err := c.String(0)
				if err != nil {
					return playerdb.PlayerEntry{}, false, err
				}
				e, ok := env.db.FindByName(name)
				return e, ok, nil
			})
		},
		"getOfflinePlayerByXUID": func(c *lua.Call) (golua.LValue, error) {
			return lookupOffline(c, func(env *playerEnv) (playerdb.OfflinePlayerEntry, bool, error) {
				xuid, err := c.Uint64(0)
				if err != nil {
					return playerdb.OfflinePlayerEntry{}, false, err
				}
				return env.db.FindOffline(xuid)
			})
		},
		"getOfflinePlayerByUUID": func(c *lua.Call) (golua.LValue, error) {
			return lookupOffline(c, func(env *playerEnv) (playerdb.OfflinePlayerEntry, bool, error) {
				id, err := c.UUID(0)
				if err != nil {
					return playerdb.OfflinePlayerEntry{}, false, err
				}
				return env.db.FindOfflineByUUID(id)
			})
		},
		"getOfflinePlayerByNAME": func(c *lua.Call) (golua.LValue, error) {
			return lookupOffline(c, func(env *playerEnv) (playerdb.OfflinePlayerEntry, bool, error) {
				name, err := c.String(0)
				if err != nil {
					return playerdb.OfflinePlayerEntry{}, false, err
				}
				return env.db.FindOfflineByName(name)
			})
		},
		"getPlayerList": func(c *lua.Call) (golua.LValue, error) {
			if err := c.Arity(0); err != nil {
				return nil, err
			}
			env, err := playerEnvOf(c)
			if err != nil {
				return nil, err
			}
			return lua.WrapMany(c.Runtime, c.L, KindPlayer, env.db.GetData(), func(e playerdb.PlayerEntry) any {
				return &playerBinding{entry: e, env: env}
			})
		},
		"onPlayerJoined": func(c *lua.Call) (golua.LValue, error) {
			return subscribe(c, playerdb.SignalJoined)
		},
		"onPlayerLeft": func(c *lua.Call) (golua.LValue, error) {
			return subscribe(c, playerdb.SignalLeft)
		},
	},
	Declaration: playerDeclaration,
}

// lookupOnline checks arity before touching the source, then wraps a hit or returns
// the no-value result.
func lookupOnline(c *lua.Call, find func(*playerEnv) (playerdb.PlayerEntry, bool, error)) (golua.LValue, error) {
	if err := c.Arity(1); err != nil {
		return nil, err
	}
	env, err := playerEnvOf(c)
	if err != nil {
		return nil, err
	}
	entry, ok, err := find(env)
	if err != nil || !ok {
		return golua.LNil, err
	}
	return c.Runtime.Wrap(c.L, KindPlayer, &playerBinding{entry: entry, env: env})
}

func lookupOffline(c *lua.Call, find func(*playerEnv) (playerdb.OfflinePlayerEntry, bool, error)) (golua.LValue, error) {
	if err := c.Arity(1); err != nil {
		return nil, err
	}
	env, err := playerEnvOf(c)
	if err != nil {
		return nil, err
	}
	entry, ok, err := find(env)
	if err != nil || !ok {
		return golua.LNil, err
	}
	return c.Runtime.Wrap(c.L, KindOfflinePlayer, &offlinePlayerBinding{entry: entry})
}

func subscribe(c *lua.Call, signal string) (golua.LValue, error) {
	if err := c.Arity(1); err != nil {
		return nil, err
	}
	fn, err := c.Function(0)
	if err != nil {
		return nil, err
	}
	env, err := playerEnvOf(c)
	if err != nil {
		return nil, err
	}
	rt := c.Runtime
	lua.Subscribe[playerdb.PlayerEntry](rt, env.db, signal, fn, func(L *golua.LState, e playerdb.PlayerEntry) (golua.LValue, error) {
		return rt.Wrap(L, KindPlayer, &playerBinding{entry: e, env: env})
	})
	return golua.LNil, nil
}
