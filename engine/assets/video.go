package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spaghettifunk/livewall/engine/assets/loaders"
	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
)

// videoTextureCount textures rotate so a frame still sampled by an
// in-flight command buffer is never overwritten.
const videoTextureCount = 3

var ErrNoFrames = errors.New("no image frames found")

type ImageSequenceConfig struct {
	// FPS defaults to 30.
	FPS    float64
	Params metadata.ImageResourceParams
	// Now overrides the time source, used by tests.
	Now func() time.Time
}

// ImageSequenceSource plays a directory of image frames in file name order
// at a fixed frame rate, looping at the end.
type ImageSequenceSource struct {
	frames   []*metadata.ImageResourceData
	textures [videoTextureCount]metadata.Texture
	next     int

	fps     float64
	now     func() time.Time
	start   time.Time
	current int
}

// NewImageSequenceSource decodes every frame of dir up front. All frames
// must have the size of the first one.
func NewImageSequenceSource(device metadata.Device, dir string, config ImageSequenceConfig) (*ImageSequenceSource, error) {
	if config.FPS <= 0 {
		config.FPS = 30
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && determineAssetType(e.Name()) == metadata.ResourceTypeImage {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoFrames)
	}
	slices.Sort(paths)

	loader := &loaders.ImageLoader{}
	frames := make([]*metadata.ImageResourceData, 0, len(paths))
	for _, p := range paths {
		res, err := loader.Load(p, &config.Params)
		if err != nil {
			return nil, err
		}
		frame := res.Data.(*metadata.ImageResourceData)
		if len(frames) > 0 && (frame.Width != frames[0].Width || frame.Height != frames[0].Height) {
			return nil, fmt.Errorf("frame %s is %dx%d, expected %dx%d", p, frame.Width, frame.Height, frames[0].Width, frames[0].Height)
		}
		frames = append(frames, frame)
	}

	s := &ImageSequenceSource{
		frames:  frames,
		fps:     config.FPS,
		now:     config.Now,
		current: -1,
	}
	for i := range s.textures {
		tex, err := device.NewTexture(frames[0].TextureDescriptor(fmt.Sprintf("video-%d", i)), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create video texture: %w", err)
		}
		s.textures[i] = tex
	}
	s.start = s.now()
	core.LogInfo("Loaded %d video frames (%dx%d) from %s.", len(frames), frames[0].Width, frames[0].Height, dir)
	return s, nil
}

func (s *ImageSequenceSource) FrameCount() int {
	return len(s.frames)
}

// NextFrame returns the texture of the frame due now. It reports false when
// the due frame is the one returned last.
func (s *ImageSequenceSource) NextFrame() (metadata.Texture, bool) {
	elapsed := s.now().Sub(s.start).Seconds()
	index := int(elapsed*s.fps) % len(s.frames)
	if index < 0 {
		index = 0
	}
	if index == s.current {
		return nil, false
	}

	tex := s.textures[s.next]
	if err := tex.ReplaceRegion(s.frames[index].Pixels); err != nil {
		core.LogError("failed to upload video frame %d: %s", index, err)
		return nil, false
	}
	s.current = index
	s.next = (s.next + 1) % videoTextureCount
	return tex, true
}

// Rewind restarts playback from the first frame.
func (s *ImageSequenceSource) Rewind() {
	s.start = s.now()
	s.current = -1
}
