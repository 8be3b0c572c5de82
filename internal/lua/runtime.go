// Package lua runs the optional palette script that overrides the lamp's
// default phase colors.
package lua

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/sunlamp/internal/geo"
	"github.com/dokzlo13/sunlamp/internal/lua/modules"
	"github.com/dokzlo13/sunlamp/internal/scheduler"
)

// Runtime wraps a Lua VM with the lamp's modules preloaded. It is used once
// at startup and is not safe for concurrent use.
type Runtime struct {
	L       *lua.LState
	geoCalc *geo.Calculator
	baseDir string
}

// NewRuntime creates a new Lua runtime. Relative script paths that do not
// exist are resolved against baseDir (the config file's directory).
func NewRuntime(geoCalc *geo.Calculator, baseDir string) *Runtime {
	r := &Runtime{
		L:       lua.NewState(),
		geoCalc: geoCalc,
		baseDir: baseDir,
	}
	r.registerModules()
	return r
}

// Close releases the Lua state.
func (r *Runtime) Close() {
	r.L.Close()
}

func (r *Runtime) registerModules() {
	r.L.PreloadModule("log", modules.NewLogModule("lua").Loader)
	r.L.PreloadModule("geo", modules.NewGeoModule(r.geoCalc, time.Now).Loader)
	r.L.PreloadModule("palette", modules.NewPaletteModule().Loader)
}

// LoadPalette executes the script at path and parses the table it returns.
func (r *Runtime) LoadPalette(path string) (scheduler.Palette, error) {
	path = r.resolve(path)
	log.Info().Str("path", path).Msg("Loading palette script")

	top := r.L.GetTop()
	if err := r.L.DoFile(path); err != nil {
		return scheduler.Palette{}, fmt.Errorf("failed to execute palette script: %w", err)
	}
	defer r.L.SetTop(top)

	if r.L.GetTop() == top {
		return scheduler.Palette{}, fmt.Errorf("palette script %s returned nothing", path)
	}
	tbl, ok := r.L.Get(-1).(*lua.LTable)
	if !ok {
		return scheduler.Palette{}, fmt.Errorf("palette script %s must return a table, got %s", path, r.L.Get(-1).Type())
	}

	palette, err := modules.TableToPalette(tbl)
	if err != nil {
		return scheduler.Palette{}, err
	}

	log.Info().Msg("Palette script loaded successfully")
	return palette, nil
}

// LoadPaletteFile is a convenience wrapper creating a throwaway runtime.
func LoadPaletteFile(path string, geoCalc *geo.Calculator, baseDir string) (scheduler.Palette, error) {
	r := NewRuntime(geoCalc, baseDir)
	defer r.Close()
	return r.LoadPalette(path)
}

func (r *Runtime) resolve(path string) string {
	if filepath.IsAbs(path) || r.baseDir == "" {
		return path
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return filepath.Join(r.baseDir, path)
	}
	return path
}
