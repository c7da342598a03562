package modules

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"
)

// LogModule provides logging functions to Lua
type LogModule struct {
	logger zerolog.Logger
}

// NewLogModule creates a new log module tagged with the manifest path.
func NewLogModule(script string) *LogModule {
	return &LogModule{
		logger: log.With().Str("source", "lua").Str("script", script).Logger(),
	}
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

// at returns log.<level>(msg, fields?)
func (m *LogModule) at(level zerolog.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)

		event := m.logger.WithLevel(level)
		for k, v := range parseFields(L, 2) {
			event = event.Interface(k, v)
		}
		event.Msg(msg)
		return 0
	}
}

func parseFields(L *lua.LState, argIndex int) map[string]any {
	if tbl, ok := L.Get(argIndex).(*lua.LTable); ok {
		return LuaTableToMap(tbl)
	}
	return nil
}
