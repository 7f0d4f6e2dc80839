package loaders

import (
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spirv(words ...uint32) []byte {
	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[4*i:], w)
	}
	return out
}

func writePNG(t *testing.T, path string, w, h int, fill func(x, y int) color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, fill(x, y))
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestValidateSPIRV(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		ok   bool
	}{
		{"valid", spirv(spirvMagic, 0x00010000, 0, 8, 0), true},
		{"too short", spirv(spirvMagic), false},
		{"unaligned", append(spirv(spirvMagic, 0, 0, 0, 0), 1), false},
		{"bad magic", spirv(0xdeadbeef, 0, 0, 0, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSPIRV(tt.code)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidSPIRV)
			}
		})
	}
}

func TestShaderLoader(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "basic_vertex.spv")
	require.NoError(t, os.WriteFile(good, spirv(spirvMagic, 0x00010000, 0, 8, 0), 0o644))
	bad := filepath.Join(dir, "broken.spv")
	require.NoError(t, os.WriteFile(bad, []byte("not spir-v at all!!!"), 0o644))

	l := &ShaderLoader{}
	res, err := l.Load(good, nil)
	require.NoError(t, err)
	assert.Equal(t, "basic_vertex", res.Name)
	assert.Equal(t, metadata.ResourceTypeShader, res.Type)
	assert.Equal(t, uint64(20), res.DataSize)

	_, err = l.Load(bad, nil)
	assert.ErrorIs(t, err, ErrInvalidSPIRV)

	require.NoError(t, l.Unload(res))
	assert.Nil(t, res.Data)
}

func TestImageLoaderFlip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gradient.png")
	writePNG(t, path, 2, 2, func(x, y int) color.RGBA {
		if y == 0 {
			return color.RGBA{R: 255, A: 255}
		}
		return color.RGBA{B: 255, A: 255}
	})

	l := &ImageLoader{}
	res, err := l.Load(path, nil)
	require.NoError(t, err)
	data := res.Data.(*metadata.ImageResourceData)
	assert.Equal(t, 2, data.Width)
	assert.Equal(t, 2, data.Height)
	assert.Len(t, data.Pixels, 16)
	assert.Equal(t, []byte{255, 0, 0, 255}, data.Pixels[0:4])

	res, err = l.Load(path, &metadata.ImageResourceParams{FlipY: true})
	require.NoError(t, err)
	data = res.Data.(*metadata.ImageResourceData)
	assert.Equal(t, []byte{0, 0, 255, 255}, data.Pixels[0:4])
	assert.Equal(t, []byte{255, 0, 0, 255}, data.Pixels[8:12])
}

func TestImageLoaderDownscale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.png")
	writePNG(t, path, 64, 32, func(x, y int) color.RGBA { return color.RGBA{G: 200, A: 255} })

	res, err := (&ImageLoader{}).Load(path, &metadata.ImageResourceParams{MaxWidth: 16})
	require.NoError(t, err)
	data := res.Data.(*metadata.ImageResourceData)
	assert.Equal(t, 16, data.Width)
	assert.Equal(t, 8, data.Height)
	assert.Len(t, data.Pixels, 16*8*4)
	assert.InDelta(t, 200, int(data.Pixels[1]), 1)
}

func TestImageLoaderRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.png")
	require.NoError(t, os.WriteFile(path, []byte("nope"), 0o644))
	_, err := (&ImageLoader{}).Load(path, nil)
	assert.Error(t, err)
}

func TestFitSize(t *testing.T) {
	tests := []struct {
		w, h, maxW, maxH int
		wantW, wantH     int
	}{
		{100, 50, 0, 0, 100, 50},
		{100, 50, 200, 200, 100, 50},
		{100, 50, 50, 0, 50, 25},
		{100, 50, 0, 10, 20, 10},
		{100, 50, 10, 10, 10, 5},
		{1000, 1, 10, 0, 10, 1},
	}
	for _, tt := range tests {
		w, h := fitSize(tt.w, tt.h, tt.maxW, tt.maxH)
		assert.Equal(t, tt.wantW, w)
		assert.Equal(t, tt.wantH, h)
	}
}
