package strip

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/sunlamp/internal/color"
)

type recordSink struct {
	frames [][]byte
	err    error
}

func (r *recordSink) Write(frame []byte) error {
	r.frames = append(r.frames, frame)
	return r.err
}

func TestBuffer_SetAndAverage(t *testing.T) {
	b := NewBuffer(4, nil)
	require.Equal(t, 4, b.Len())
	assert.Equal(t, color.Black, b.Average())

	b.SetAll(color.RGB(10, 20, 30))
	assert.Equal(t, color.RGB(10, 20, 30), b.Average())

	b.SetPixel(0, color.RGB(50, 60, 70))
	assert.Equal(t, color.RGB(50, 60, 70), b.Pixel(0))
	assert.Equal(t, color.RGB(20, 30, 40), b.Average())

	// Out of range writes are ignored.
	b.SetPixel(4, color.RGB(255, 255, 255))
	b.SetPixel(-1, color.RGB(255, 255, 255))
	assert.Equal(t, color.RGB(20, 30, 40), b.Average())
	assert.Equal(t, color.Black, b.Pixel(9))
}

func TestBuffer_Rotate(t *testing.T) {
	b := NewBuffer(3, nil)
	b.SetPixel(0, color.RGB(1, 1, 1))
	b.SetPixel(1, color.RGB(2, 2, 2))
	b.SetPixel(2, color.RGB(3, 3, 3))

	b.Rotate(true)
	assert.Equal(t, []byte{2, 2, 2, 3, 3, 3, 1, 1, 1}, b.Snapshot())

	b.Rotate(false)
	assert.Equal(t, []byte{1, 1, 1, 2, 2, 2, 3, 3, 3}, b.Snapshot())

	b.Rotate(false)
	assert.Equal(t, []byte{3, 3, 3, 1, 1, 1, 2, 2, 2}, b.Snapshot())
}

func TestBuffer_FlushOnlyOnChange(t *testing.T) {
	sink := &recordSink{}
	b := NewBuffer(2, sink)

	require.NoError(t, b.Flush())
	require.NoError(t, b.Flush())
	assert.Len(t, sink.frames, 1)

	b.SetAll(color.RGB(9, 9, 9))
	require.NoError(t, b.Flush())
	require.Len(t, sink.frames, 2)
	assert.Equal(t, []byte{9, 9, 9, 9, 9, 9}, sink.frames[1])

	// The flushed frame is a copy.
	b.Clear()
	assert.Equal(t, []byte{9, 9, 9, 9, 9, 9}, sink.frames[1])
}

func TestMultiSink(t *testing.T) {
	ok := &recordSink{}
	bad := &recordSink{err: errors.New("broker down")}

	err := MultiSink{ok, bad}.Write([]byte{1, 2, 3})
	assert.ErrorContains(t, err, "broker down")
	assert.Len(t, ok.frames, 1)
	assert.Len(t, bad.frames, 1)
}
