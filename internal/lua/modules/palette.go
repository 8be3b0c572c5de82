package modules

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/sunlamp/internal/animation"
	"github.com/dokzlo13/sunlamp/internal/color"
	"github.com/dokzlo13/sunlamp/internal/scheduler"
)

// PaletteModule exposes the built-in palette and phase names so scripts can
// start from the defaults and override single phases.
type PaletteModule struct{}

// NewPaletteModule creates a new palette module
func NewPaletteModule() *PaletteModule {
	return &PaletteModule{}
}

// Loader is the module loader for Lua
func (m *PaletteModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	phases := L.NewTable()
	for i, name := range scheduler.PhaseNames {
		L.SetField(phases, name, lua.LNumber(i+1))
	}
	L.SetField(mod, "phases", phases)

	L.SetField(mod, "default", L.NewFunction(func(L *lua.LState) int {
		L.Push(PaletteToTable(L, scheduler.DefaultPalette))
		return 1
	}))
	L.SetField(mod, "rgb", L.NewFunction(m.rgb))

	L.Push(mod)
	return 1
}

// rgb(r, g, b, tag?) -> {r=, g=, b=, tag=}
func (m *PaletteModule) rgb(L *lua.LState) int {
	tbl := L.NewTable()
	L.SetField(tbl, "r", lua.LNumber(L.CheckInt(1)))
	L.SetField(tbl, "g", lua.LNumber(L.CheckInt(2)))
	L.SetField(tbl, "b", lua.LNumber(L.CheckInt(3)))
	L.SetField(tbl, "tag", lua.LBool(L.OptBool(4, false)))
	L.Push(tbl)
	return 1
}

// PaletteToTable converts a palette into a 1-based Lua array of styles.
func PaletteToTable(L *lua.LState, p scheduler.Palette) *lua.LTable {
	tbl := L.NewTable()
	for _, style := range p {
		entry := L.NewTable()
		L.SetField(entry, "kind", lua.LString(style.Kind.String()))
		L.SetField(entry, "src", colorToTable(L, style.Src))
		L.SetField(entry, "dst", colorToTable(L, style.Dst))
		tbl.Append(entry)
	}
	return tbl
}

func colorToTable(L *lua.LState, c color.Color) *lua.LTable {
	tbl := L.NewTable()
	L.SetField(tbl, "r", lua.LNumber(c.R))
	L.SetField(tbl, "g", lua.LNumber(c.G))
	L.SetField(tbl, "b", lua.LNumber(c.B))
	L.SetField(tbl, "tag", lua.LBool(c.Tag))
	return tbl
}

// TableToPalette parses a 7-element array of {kind=, src=, dst=} styles.
// Colors are either {r=, g=, b=, tag=} or {r, g, b, tag}.
func TableToPalette(tbl *lua.LTable) (scheduler.Palette, error) {
	var p scheduler.Palette
	if n := tbl.Len(); n != scheduler.PhaseCount {
		return p, fmt.Errorf("palette must have %d entries, got %d", scheduler.PhaseCount, n)
	}

	for i := range p {
		entry, ok := tbl.RawGetInt(i + 1).(*lua.LTable)
		if !ok {
			return p, fmt.Errorf("palette entry %d (%s) is not a table", i+1, scheduler.PhaseNames[i])
		}
		style, err := tableToStyle(entry)
		if err != nil {
			return p, fmt.Errorf("palette entry %d (%s): %w", i+1, scheduler.PhaseNames[i], err)
		}
		p[i] = style
	}
	return p, nil
}

func tableToStyle(tbl *lua.LTable) (scheduler.Style, error) {
	var style scheduler.Style

	kindName, ok := tbl.RawGetString("kind").(lua.LString)
	if !ok {
		return style, fmt.Errorf("missing kind")
	}
	kind, err := animation.ParseKind(string(kindName))
	if err != nil {
		return style, err
	}
	style.Kind = kind

	if style.Src, err = tableToColor(tbl.RawGetString("src")); err != nil {
		return style, fmt.Errorf("src: %w", err)
	}
	if style.Dst, err = tableToColor(tbl.RawGetString("dst")); err != nil {
		return style, fmt.Errorf("dst: %w", err)
	}
	return style, nil
}

func tableToColor(v lua.LValue) (color.Color, error) {
	if v == lua.LNil {
		return color.Black, nil
	}
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return color.Black, fmt.Errorf("color must be a table, got %s", v.Type())
	}

	channel := func(key string, idx int) (uint8, error) {
		raw := tbl.RawGetString(key)
		if raw == lua.LNil {
			raw = tbl.RawGetInt(idx)
		}
		if raw == lua.LNil {
			return 0, nil
		}
		n, ok := raw.(lua.LNumber)
		if !ok || n < 0 || n > 255 {
			return 0, fmt.Errorf("channel %s must be 0..255, got %s", key, raw.String())
		}
		return uint8(n), nil
	}

	var c color.Color
	var err error
	if c.R, err = channel("r", 1); err != nil {
		return c, err
	}
	if c.G, err = channel("g", 2); err != nil {
		return c, err
	}
	if c.B, err = channel("b", 3); err != nil {
		return c, err
	}

	tag := tbl.RawGetString("tag")
	if tag == lua.LNil {
		tag = tbl.RawGetInt(4)
	}
	c.Tag = lua.LVAsBool(tag)
	return c, nil
}
