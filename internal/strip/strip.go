// Package strip holds the lamp's pixel buffer and the sinks that frames are
// pushed to.
package strip

import (
	"bytes"
	"errors"

	"github.com/dokzlo13/sunlamp/internal/color"
)

// Sink receives a packed RGB frame after every change.
type Sink interface {
	Write(frame []byte) error
}

// Buffer is an N-pixel RGB buffer. It is owned by the animation goroutine and
// is not safe for concurrent use.
type Buffer struct {
	pixels  []byte
	flushed []byte
	sink    Sink
}

// NewBuffer creates a zeroed buffer of n pixels. A nil sink discards frames.
func NewBuffer(n int, sink Sink) *Buffer {
	if n < 1 {
		n = 1
	}
	return &Buffer{
		pixels: make([]byte, n*3),
		sink:   sink,
	}
}

// Len returns the number of pixels.
func (b *Buffer) Len() int {
	return len(b.pixels) / 3
}

// SetPixel sets one pixel. Out of range indices are ignored.
func (b *Buffer) SetPixel(i int, c color.Color) {
	pos := i * 3
	if i < 0 || pos+2 >= len(b.pixels) {
		return
	}
	b.pixels[pos] = c.R
	b.pixels[pos+1] = c.G
	b.pixels[pos+2] = c.B
}

// Pixel returns the color at index i, or black when out of range.
func (b *Buffer) Pixel(i int) color.Color {
	pos := i * 3
	if i < 0 || pos+2 >= len(b.pixels) {
		return color.Black
	}
	return color.RGB(b.pixels[pos], b.pixels[pos+1], b.pixels[pos+2])
}

// SetAll paints every pixel.
func (b *Buffer) SetAll(c color.Color) {
	for pos := 0; pos < len(b.pixels); pos += 3 {
		b.pixels[pos] = c.R
		b.pixels[pos+1] = c.G
		b.pixels[pos+2] = c.B
	}
}

// Average returns the per-channel mean over all pixels.
func (b *Buffer) Average() color.Color {
	return color.Average(b.pixels)
}

// Rotate shifts the buffer by one pixel. Forward moves the first pixel to
// the end.
func (b *Buffer) Rotate(forward bool) {
	if len(b.pixels) <= 3 {
		return
	}
	var px [3]byte
	last := len(b.pixels) - 3
	if forward {
		copy(px[:], b.pixels[:3])
		copy(b.pixels, b.pixels[3:])
		copy(b.pixels[last:], px[:])
	} else {
		copy(px[:], b.pixels[last:])
		copy(b.pixels[3:], b.pixels[:last])
		copy(b.pixels[:3], px[:])
	}
}

// Clear sets every pixel to black.
func (b *Buffer) Clear() {
	clear(b.pixels)
}

// Snapshot returns a copy of the packed buffer.
func (b *Buffer) Snapshot() []byte {
	return bytes.Clone(b.pixels)
}

// Flush pushes the buffer to the sink if it changed since the last flush.
func (b *Buffer) Flush() error {
	if b.flushed != nil && bytes.Equal(b.flushed, b.pixels) {
		return nil
	}
	b.flushed = bytes.Clone(b.pixels)
	if b.sink == nil {
		return nil
	}
	return b.sink.Write(b.flushed)
}

// MultiSink writes every frame to all of its sinks.
type MultiSink []Sink

func (m MultiSink) Write(frame []byte) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
