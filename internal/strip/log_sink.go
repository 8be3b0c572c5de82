package strip

import (
	"encoding/hex"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sunlamp/internal/color"
)

// LogSink logs each frame at debug level instead of driving hardware.
type LogSink struct {
	level zerolog.Level
}

// NewLogSink creates a sink that logs frames at the given level.
func NewLogSink(level zerolog.Level) *LogSink {
	return &LogSink{level: level}
}

func (s *LogSink) Write(frame []byte) error {
	log.WithLevel(s.level).
		Str("avg", color.Average(frame).String()).
		Int("pixels", len(frame)/3).
		Str("frame", hex.EncodeToString(frame)).
		Msg("Strip frame")
	return nil
}
