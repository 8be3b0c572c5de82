package app

import (
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sunlamp/internal/config"
	"github.com/dokzlo13/sunlamp/internal/geo"
	luart "github.com/dokzlo13/sunlamp/internal/lua"
	"github.com/dokzlo13/sunlamp/internal/scheduler"
)

// LoadPalette runs the configured palette script, or returns the default
// palette when none is set.
func LoadPalette(cfg *config.Config, geoCalc *geo.Calculator) (scheduler.Palette, error) {
	if cfg.Palette.Script == "" {
		log.Info().Msg("Using default palette")
		return scheduler.DefaultPalette, nil
	}
	return luart.LoadPaletteFile(cfg.Palette.Script, geoCalc, cfg.BaseDir)
}
