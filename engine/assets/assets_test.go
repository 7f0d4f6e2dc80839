package assets

import (
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spirvModule() []byte {
	out := make([]byte, 20)
	binary.LittleEndian.PutUint32(out, 0x07230203)
	binary.LittleEndian.PutUint32(out[4:], 0x00010000)
	return out
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func writeImage(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func newManager(t *testing.T, root string) *AssetManager {
	t.Helper()
	am, err := NewAssetManager(root)
	require.NoError(t, err)
	t.Cleanup(func() { am.Close() })
	return am
}

func TestDetermineAssetType(t *testing.T) {
	tests := map[string]metadata.ResourceType{
		"shaders/basic_vertex.spv": metadata.ResourceTypeShader,
		"textures/wall.PNG":        metadata.ResourceTypeImage,
		"frames/0001.jpeg":         metadata.ResourceTypeImage,
		"frames/0001.webp":         metadata.ResourceTypeImage,
		"livewall.toml":            metadata.ResourceTypeConfig,
		"livewall.yml":             metadata.ResourceTypeConfig,
		"data/blob.bin":            metadata.ResourceTypeBinary,
		"LICENSE":                  metadata.ResourceTypeNone,
	}
	for path, want := range tests {
		assert.Equal(t, want, determineAssetType(path), path)
	}
}

func TestIndexAndLoad(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "shaders", "basic_vertex.spv"), spirvModule())
	writeFile(t, filepath.Join(root, "shaders", "color_fragment.spv"), spirvModule())
	writeFile(t, filepath.Join(root, "shaders", "broken.spv"), []byte("garbage!"))
	writeImage(t, filepath.Join(root, "textures", "wall.png"), 4, 2, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	am := newManager(t, root)

	assets := am.Assets()
	require.Len(t, assets, 4)
	assert.Equal(t, "shaders/basic_vertex.spv", assets[0].Path)
	assert.Equal(t, "basic_vertex", assets[0].Name)

	assert.Equal(t, []string{"basic_vertex", "broken", "color_fragment"}, am.ShaderNames())

	code, err := am.LoadShader("basic_vertex")
	require.NoError(t, err)
	assert.Len(t, code, 20)

	_, err = am.LoadShader("broken")
	assert.Error(t, err)

	_, err = am.LoadShader("missing")
	assert.ErrorIs(t, err, ErrAssetNotFound)

	img, err := am.LoadImage("textures/wall.png", nil)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Width)
	assert.Equal(t, []byte{10, 20, 30, 255}, img.Pixels[:4])

	img, err = am.LoadImage(filepath.Join(root, "textures", "wall.png"), &metadata.ImageResourceParams{MaxWidth: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, img.Width)
	assert.Equal(t, 1, img.Height)

	_, err = am.LoadImage("shaders/basic_vertex.spv", nil)
	assert.Error(t, err)

	_, ok := am.Lookup("../outside.png")
	assert.False(t, ok)
}

func TestWatchPublishesChanges(t *testing.T) {
	root := t.TempDir()
	am := newManager(t, root)
	events, cancel := am.Subscribe()
	defer cancel()

	writeFile(t, filepath.Join(root, "waterEffect.spv"), spirvModule())
	require.Eventually(t, func() bool {
		_, ok := am.Lookup("waterEffect.spv")
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	select {
	case e := <-events:
		assert.Equal(t, "waterEffect.spv", e.Asset.Path)
		assert.Equal(t, metadata.ResourceTypeShader, e.Asset.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("no event for the created shader")
	}

	// New directories are watched too.
	writeFile(t, filepath.Join(root, "nested", "deeper", "frame.png"), []byte("x"))
	require.Eventually(t, func() bool {
		_, ok := am.Lookup("nested/deeper/frame.png")
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.RemoveAll(filepath.Join(root, "nested")))
	require.Eventually(t, func() bool {
		_, ok := am.Lookup("nested/deeper/frame.png")
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestCloseEndsSubscriptions(t *testing.T) {
	am, err := NewAssetManager(t.TempDir())
	require.NoError(t, err)
	events, cancel := am.Subscribe()

	require.NoError(t, am.Close())
	_, open := <-events
	assert.False(t, open)
	cancel()
	assert.NoError(t, am.Close())

	late, _ := am.Subscribe()
	_, open = <-late
	assert.False(t, open)
}

func TestNewAssetManagerRejectsFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.bin")
	writeFile(t, path, []byte{1})
	_, err := NewAssetManager(path)
	assert.Error(t, err)
}
