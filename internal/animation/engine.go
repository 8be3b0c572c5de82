package animation

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sunlamp/internal/color"
)

// DefaultTick is the engine's polling period.
const DefaultTick = 10 * time.Millisecond

// Strip is the pixel buffer the engine renders into.
type Strip interface {
	Len() int
	SetPixel(i int, c color.Color)
	SetAll(c color.Color)
	Average() color.Color
	Rotate(forward bool)
	Clear()
	Flush() error
}

// Engine runs one animation at a time. Commands arrive through Send and are
// applied by Run; a new command supersedes whatever is in progress.
//
// Handle and Step mutate engine state and must only be called from the
// goroutine running Run, or directly when Run is not used.
type Engine struct {
	strip  Strip
	tick   time.Duration
	tickMs uint32
	queue  chan Command

	st state

	current atomic.Uint32 // packed RGB of the last rendered frame
	kind    atomic.Uint32
}

// state is the per-animation scratch, reset by every command.
type state struct {
	kind    Kind
	cmd     Command
	period  uint32 // ticks per frame
	counter uint32 // ticks until the next frame
	elapsed uint32 // ms into the transition
	step    uint32 // ms per frame

	pixel int // comet position
	dir   int // comet direction for ping-pong
	hue   int // comet color index: 0 red, 1 green, 2 blue
	fade  int // position in the fade triangle
	hsv   color.HSV
}

// NewEngine creates an idle engine with a bounded command queue.
func NewEngine(strip Strip, tick time.Duration, queueSize int) *Engine {
	if tick <= 0 {
		tick = DefaultTick
	}
	if queueSize < 1 {
		queueSize = 1
	}
	tickMs := uint32(tick.Milliseconds())
	if tickMs == 0 {
		tickMs = 1
	}
	e := &Engine{
		strip:  strip,
		tick:   tick,
		tickMs: tickMs,
		queue:  make(chan Command, queueSize),
		st:     state{kind: KindEmpty},
	}
	e.kind.Store(uint32(KindEmpty))
	e.publish()
	return e
}

// Send enqueues a command without blocking. When the queue is full the
// command is dropped and Send returns false.
func (e *Engine) Send(cmd Command) bool {
	select {
	case e.queue <- cmd:
		return true
	default:
		log.Debug().Str("kind", cmd.Kind.String()).Msg("Animation queue full, dropping command")
		return false
	}
}

// CurrentColor returns the average color of the last rendered frame.
func (e *Engine) CurrentColor() color.Color {
	v := e.current.Load()
	return color.RGB(uint8(v>>16), uint8(v>>8), uint8(v))
}

// Kind returns the active animation kind.
func (e *Engine) Kind() Kind {
	return Kind(e.kind.Load())
}

// Run applies queued commands and advances the active animation once per
// tick until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	log.Info().Dur("tick", e.tick).Int("pixels", e.strip.Len()).Msg("Animation engine started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Animation engine stopped")
			return ctx.Err()
		case cmd := <-e.queue:
			e.Handle(cmd)
		case <-ticker.C:
			e.Step()
		}
	}
}

// Handle starts cmd immediately, discarding any animation in progress.
func (e *Engine) Handle(cmd Command) {
	e.st = state{kind: cmd.Kind}

	log.Debug().
		Str("kind", cmd.Kind.String()).
		Str("src", cmd.Src.String()).
		Str("dst", cmd.Dst.String()).
		Uint32("interval_ms", cmd.Interval).
		Uint32("duration_ms", cmd.Duration).
		Msg("Animation command")

	switch cmd.Kind {
	case KindColor, KindSine, KindRainbow:
		e.setTimed(cmd)
	case KindRgbCirculation:
		e.setCirculation(cmd)
	case KindPingPong:
		e.setPingPong(cmd)
	case KindRainbowCirculation:
		e.setRainbowCirculation(cmd)
	case KindFade:
		e.setFade(cmd)
	default:
		e.st = state{kind: KindEmpty}
	}
	e.kind.Store(uint32(e.st.kind))
}

// Step advances the active animation by one tick.
func (e *Engine) Step() {
	if e.st.kind == KindEmpty {
		return
	}
	if e.st.counter > 1 {
		e.st.counter--
		return
	}
	e.st.counter = e.st.period

	switch e.st.kind {
	case KindColor, KindSine, KindRainbow:
		e.iterateTimed()
	case KindRgbCirculation:
		e.iterateCirculation()
	case KindPingPong:
		e.iteratePingPong()
	case KindRainbowCirculation:
		e.iterateRainbowCirculation()
	case KindFade:
		e.iterateFade()
	default:
		e.st = state{kind: KindEmpty}
	}
	e.kind.Store(uint32(e.st.kind))
}

// render flushes the buffer and publishes the new average color.
func (e *Engine) render() {
	if err := e.strip.Flush(); err != nil {
		log.Warn().Err(err).Msg("Failed to flush strip")
	}
	e.publish()
}

func (e *Engine) publish() {
	c := e.strip.Average()
	e.current.Store(uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B))
}
