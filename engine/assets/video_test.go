package assets

import (
	"fmt"
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/livewall/engine/renderer/headless"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) Now() time.Time {
	return c.t
}

func TestImageSequenceSource(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 4; i++ {
		writeImage(t, filepath.Join(dir, fmt.Sprintf("frame_%02d.png", i)), 2, 2, color.RGBA{R: uint8(i * 10), A: 255})
	}
	writeFile(t, filepath.Join(dir, "notes.txt"), []byte("ignored"))

	device, err := headless.NewDevice(headless.Config{ManualCompletion: true})
	require.NoError(t, err)
	defer device.Destroy()

	clock := &stepClock{t: time.Unix(100, 0)}
	src, err := NewImageSequenceSource(device, dir, ImageSequenceConfig{FPS: 10, Now: clock.Now})
	require.NoError(t, err)
	assert.Equal(t, 4, src.FrameCount())

	first, ok := src.NextFrame()
	require.True(t, ok)
	assert.Equal(t, byte(0), first.(*headless.Texture).Pixels()[0])

	// Same frame still due.
	clock.t = clock.t.Add(50 * time.Millisecond)
	_, ok = src.NextFrame()
	assert.False(t, ok)

	clock.t = clock.t.Add(100 * time.Millisecond)
	second, ok := src.NextFrame()
	require.True(t, ok)
	assert.NotSame(t, first, second)
	assert.Equal(t, byte(10), second.(*headless.Texture).Pixels()[0])
	// The previous texture keeps its contents.
	assert.Equal(t, byte(0), first.(*headless.Texture).Pixels()[0])

	// Loops past the last frame: 0.45s is frame 4 -> 0.
	clock.t = time.Unix(100, 0).Add(450 * time.Millisecond)
	looped, ok := src.NextFrame()
	require.True(t, ok)
	assert.Equal(t, byte(0), looped.(*headless.Texture).Pixels()[0])

	src.Rewind()
	_, ok = src.NextFrame()
	assert.True(t, ok)
}

func TestImageSequenceSourceErrors(t *testing.T) {
	device, err := headless.NewDevice(headless.Config{ManualCompletion: true})
	require.NoError(t, err)
	defer device.Destroy()

	_, err = NewImageSequenceSource(device, t.TempDir(), ImageSequenceConfig{})
	assert.ErrorIs(t, err, ErrNoFrames)

	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "a.png"), 2, 2, color.RGBA{A: 255})
	writeImage(t, filepath.Join(dir, "b.png"), 3, 2, color.RGBA{A: 255})
	_, err = NewImageSequenceSource(device, dir, ImageSequenceConfig{})
	assert.Error(t, err)
}
