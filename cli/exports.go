// This file re-exports the bridge surface wrapper projects need to register native
// modules of their own.

package cli

import (
	"github.com/zot/ezbridge/internal/lua"
	"github.com/zot/ezbridge/internal/playerdb"
	"github.com/zot/ezbridge/internal/proto"
)

// Re-export bridge types
type (
	Runtime     = lua.Runtime
	Module      = lua.Module
	NativeFunc  = lua.NativeFunc
	Call        = lua.Call
	Kind        = proto.Kind
	Members     = proto.Members
	Property    = proto.Property
	Method      = proto.Method
	PlayerEntry = playerdb.PlayerEntry
)

// Re-export registration functions
var (
	RegisterModule    = lua.RegisterModule
	RegisterPrototype = proto.Register
	LuaToGo           = lua.LuaToGo
	GoToLua           = lua.GoToLua
)

// Re-export argument errors so natives can wrap them
var (
	ErrInvalidArgumentCount = lua.ErrInvalidArgumentCount
	ErrInvalidArgumentType  = lua.ErrInvalidArgumentType
)
