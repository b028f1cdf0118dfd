package apiset

import (
	"strings"

	golua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zot/ezbridge/internal/lua"
)

// ModuleLog is the script logging module.
const ModuleLog = "ez:log"

func logAt(level zapcore.Level) lua.NativeFunc {
	return func(c *lua.Call) (golua.LValue, error) {
		if len(c.Args) == 0 {
			return nil, c.Arity(1)
		}
		parts := make([]string, len(c.Args))
		for i, arg := range c.Args {
			parts[i] = c.L.ToStringMeta(arg).String()
		}
		if ce := c.Runtime.Logger().Check(level, strings.Join(parts, "\t")); ce != nil {
			ce.Write(zap.String("source", "script"))
		}
		return golua.LNil, nil
	}
}

func init() {
	lua.RegisterModule(lua.Module{
		Name: ModuleLog,
		Natives: map[string]lua.NativeFunc{
			"debug": logAt(zapcore.DebugLevel),
			"info":  logAt(zapcore.InfoLevel),
			"warn":  logAt(zapcore.WarnLevel),
			"error": logAt(zapcore.ErrorLevel),
		},
		Declaration: `
local native = ...
return {
  debug = native.debug,
  info = native.info,
  warn = native.warn,
  error = native.error,
}
`,
	})
}
