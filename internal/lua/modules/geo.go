package modules

import (
	"time"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/sunlamp/internal/geo"
)

// GeoModule exposes the configured location and its solar events to Lua
type GeoModule struct {
	calculator *geo.Calculator
	now        func() time.Time
}

// NewGeoModule creates a new geo module with a shared calculator
func NewGeoModule(calculator *geo.Calculator, now func() time.Time) *GeoModule {
	if now == nil {
		now = time.Now
	}
	return &GeoModule{calculator: calculator, now: now}
}

// Loader is the module loader for Lua
func (m *GeoModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	loc := m.calculator.Location()
	L.SetField(mod, "name", lua.LString(loc.Name))
	L.SetField(mod, "lat", lua.LNumber(loc.Latitude))
	L.SetField(mod, "lon", lua.LNumber(loc.Longitude))
	L.SetField(mod, "timezone", lua.LString(m.calculator.Timezone().String()))

	L.SetField(mod, "today", L.NewFunction(m.today))
	L.SetField(mod, "altitude", L.NewFunction(m.altitude))

	L.Push(mod)
	return 1
}

// today() -> {midnight, blue_hour, golden_hour, sunrise, day, noon,
// evening_golden_hour, sunset, evening_blue_hour, night} as Unix seconds,
// or nil when the sun does not cross a threshold today.
func (m *GeoModule) today(L *lua.LState) int {
	now := m.now()
	times, err := m.calculator.Times(m.calculator.ReferenceFor(now))
	if err != nil {
		log.Error().Err(err).Msg("Failed to calculate astronomical times")
		L.Push(lua.LNil)
		return 1
	}

	result := L.NewTable()
	set := func(name string, t time.Time) {
		L.SetField(result, name, lua.LNumber(t.Unix()))
	}
	set("midnight", m.calculator.StartOfDay(now))
	set("blue_hour", times.MorningBlueHour)
	set("golden_hour", times.MorningGoldenHour)
	set("sunrise", times.Sunrise)
	set("day", times.Day)
	set("noon", times.Noon)
	set("evening_golden_hour", times.EveningGoldenHour)
	set("sunset", times.Sunset)
	set("evening_blue_hour", times.EveningBlueHour)
	set("night", times.Night)

	L.Push(result)
	return 1
}

// altitude(ts?) -> sun elevation in degrees at ts (default now)
func (m *GeoModule) altitude(L *lua.LState) int {
	at := m.now()
	if L.GetTop() >= 1 {
		at = time.Unix(L.CheckInt64(1), 0)
	}
	L.Push(lua.LNumber(m.calculator.Altitude(at)))
	return 1
}
