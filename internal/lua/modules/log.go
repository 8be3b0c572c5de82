package modules

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"
)

// LogModule exposes log.debug/info/warn/error(msg, fields?) to scripts.
type LogModule struct {
	source string
}

// NewLogModule creates a log module that tags entries with source.
func NewLogModule(source string) *LogModule {
	return &LogModule{source: source}
}

// Loader is the module loader for Lua
func (m *LogModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "debug", L.NewFunction(m.at(zerolog.DebugLevel)))
	L.SetField(mod, "info", L.NewFunction(m.at(zerolog.InfoLevel)))
	L.SetField(mod, "warn", L.NewFunction(m.at(zerolog.WarnLevel)))
	L.SetField(mod, "error", L.NewFunction(m.at(zerolog.ErrorLevel)))

	L.Push(mod)
	return 1
}

func (m *LogModule) at(level zerolog.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)

		event := log.WithLevel(level).Str("source", m.source)
		if tbl, ok := L.Get(2).(*lua.LTable); ok {
			tbl.ForEach(func(k, v lua.LValue) {
				event = event.Interface(lua.LVAsString(k), LuaToGo(v))
			})
		}
		event.Msg(msg)
		return 0
	}
}
