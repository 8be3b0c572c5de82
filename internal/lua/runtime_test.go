package lua

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/sunlamp/internal/animation"
	"github.com/dokzlo13/sunlamp/internal/color"
	"github.com/dokzlo13/sunlamp/internal/geo"
	"github.com/dokzlo13/sunlamp/internal/scheduler"
)

func testCalc(t *testing.T) *geo.Calculator {
	t.Helper()
	c, err := geo.NewCalculator(geo.Location{Name: "Lviv", Latitude: 49.839684, Longitude: 24.029716, Timezone: "Europe/Kyiv"})
	require.NoError(t, err)
	return c
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "palette.lua")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadPalette_DefaultRoundTrip(t *testing.T) {
	path := writeScript(t, `
local palette = require("palette")
return palette.default()
`)
	got, err := LoadPaletteFile(path, testCalc(t), "")
	require.NoError(t, err)
	assert.Equal(t, scheduler.DefaultPalette, got)
}

func TestLoadPalette_OverridesPhase(t *testing.T) {
	path := writeScript(t, `
local palette = require("palette")
local log = require("log")
local geo = require("geo")

local p = palette.default()
p[palette.phases.day] = {
  kind = "color",
  src = palette.rgb(255, 200, 120),
  dst = {255, 255, 255, true},
}
log.info("custom palette", {location = geo.name, sunrise = geo.today().sunrise})
return p
`)
	got, err := LoadPaletteFile(path, testCalc(t), "")
	require.NoError(t, err)

	assert.Equal(t, scheduler.Style{
		Kind: animation.KindColor,
		Src:  color.RGB(255, 200, 120),
		Dst:  color.Color{R: 255, G: 255, B: 255, Tag: true},
	}, got[3])
	assert.Equal(t, scheduler.DefaultPalette[0], got[0])
}

func TestLoadPalette_RelativeToBaseDir(t *testing.T) {
	path := writeScript(t, `return require("palette").default()`)

	_, err := LoadPaletteFile(filepath.Base(path), testCalc(t), filepath.Dir(path))
	assert.NoError(t, err)
}

func TestLoadPalette_Errors(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		wantErr string
	}{
		{"syntax", `return {`, "failed to execute"},
		{"nothing", `local x = 1`, "returned nothing"},
		{"not_table", `return 42`, "must return a table"},
		{"short", `return {{kind = "color"}}`, "must have 7 entries"},
		{"bad_kind", `local p = require("palette").default(); p[2].kind = "strobe"; return p`, "unknown animation kind"},
		{"bad_channel", `local p = require("palette").default(); p[1].src = {300, 0, 0}; return p`, "0..255"},
		{"missing_kind", `local p = require("palette").default(); p[7] = {src = {1, 2, 3}}; return p`, "missing kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPaletteFile(writeScript(t, tt.script), testCalc(t), "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
