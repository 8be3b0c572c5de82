package modules

import (
	"math"

	lua "github.com/yuin/gopher-lua"
)

// LuaToGo converts a Lua value to a Go value. Integral numbers become int64,
// sequences become slices and other tables become maps.
func LuaToGo(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LString:
		return string(val)
	case lua.LNumber:
		f := float64(val)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f)
		}
		return f
	case lua.LBool:
		return bool(val)
	case *lua.LTable:
		if n := val.Len(); n > 0 {
			arr := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				arr = append(arr, LuaToGo(val.RawGetInt(i)))
			}
			return arr
		}
		obj := make(map[string]any)
		val.ForEach(func(k, v lua.LValue) {
			obj[lua.LVAsString(k)] = LuaToGo(v)
		})
		return obj
	case *lua.LNilType:
		return nil
	default:
		return v.String()
	}
}
