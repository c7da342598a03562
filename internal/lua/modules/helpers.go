package modules

import (
	lua "github.com/yuin/gopher-lua"
)

// LuaToGo converts a Lua value to a Go value
func LuaToGo(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return float64(val)
	case lua.LBool:
		return bool(val)
	case *lua.LTable:
		// Check if it's an array or object
		isArray := true
		maxIdx := 0
		val.ForEach(func(k, _ lua.LValue) {
			if num, ok := k.(lua.LNumber); ok {
				if idx := int(num); idx > maxIdx {
					maxIdx = idx
				}
			} else {
				isArray = false
			}
		})

		if isArray && maxIdx > 0 {
			arr := make([]any, maxIdx)
			val.ForEach(func(k, v lua.LValue) {
				if num, ok := k.(lua.LNumber); ok {
					arr[int(num)-1] = LuaToGo(v)
				}
			})
			return arr
		}
		return LuaTableToMap(val)
	case *lua.LNilType:
		return nil
	default:
		return v.String()
	}
}

// LuaTableToMap converts the string-keyed part of a Lua table to a Go map
func LuaTableToMap(tbl *lua.LTable) map[string]any {
	m := make(map[string]any)
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			m[string(ks)] = LuaToGo(v)
		}
	})
	return m
}

// stringField reads an optional string field, rejecting other types.
func stringField(L *lua.LState, tbl *lua.LTable, name string) string {
	switch v := L.GetField(tbl, name).(type) {
	case *lua.LNilType:
		return ""
	case lua.LString:
		return string(v)
	default:
		L.ArgError(1, name+" must be a string")
		return ""
	}
}

// stringList reads an optional array of strings. A single string is
// accepted as a one-element list.
func stringList(L *lua.LState, tbl *lua.LTable, name string) []string {
	switch v := L.GetField(tbl, name).(type) {
	case *lua.LNilType:
		return nil
	case lua.LString:
		return []string{string(v)}
	case *lua.LTable:
		out := make([]string, 0, v.Len())
		for i := 1; i <= v.Len(); i++ {
			item, ok := v.RawGetInt(i).(lua.LString)
			if !ok {
				L.ArgError(1, name+" must contain only strings")
				return nil
			}
			out = append(out, string(item))
		}
		return out
	default:
		L.ArgError(1, name+" must be a list of strings")
		return nil
	}
}
