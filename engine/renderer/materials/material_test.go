package materials

import (
	"testing"

	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/renderer/headless"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDevice(t *testing.T) (*headless.Device, *headless.Surface) {
	t.Helper()
	device, err := headless.NewDevice(headless.Config{ManualCompletion: true})
	require.NoError(t, err)
	t.Cleanup(device.Destroy)
	return device, headless.NewSurface(64, 64)
}

func TestStandardMaterial(t *testing.T) {
	device, surface := newDevice(t)
	library, err := device.DefaultLibrary()
	require.NoError(t, err)

	m, err := StandardMaterial(device, library, surface, DefaultEffect(), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, metadata.FaceCullModeNone, m.CullMode())
	assert.True(t, m.WritesToDepthBuffer())
	assert.Equal(t, "basic_vertex+vortex_fragment", m.Label())
	assert.NotNil(t, m.Pipeline())
}

func TestUnknownFunctionYieldsNoMaterial(t *testing.T) {
	device, surface := newDevice(t)
	library, err := device.DefaultLibrary()
	require.NoError(t, err)

	tests := []struct {
		name   string
		effect Effect
	}{
		{"vertex", Effect{VertexFunction: "missing_vertex", FragmentFunction: "vortex_fragment"}},
		{"fragment", Effect{VertexFunction: "basic_vertex", FragmentFunction: "missing_fragment"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := StandardMaterial(device, library, surface, tt.effect, nil, nil)
			assert.Nil(t, m)
			assert.ErrorIs(t, err, core.ErrFunctionNotFound)
		})
	}
}

func TestWrongStageFailsPipeline(t *testing.T) {
	device, surface := newDevice(t)
	library, err := device.DefaultLibrary()
	require.NoError(t, err)

	m, err := StandardMaterial(device, library, surface, Effect{VertexFunction: "vortex_fragment", FragmentFunction: "basic_vertex"}, nil, nil)
	assert.Nil(t, m)
	assert.ErrorIs(t, err, core.ErrPipelineCompile)
}

func TestVertexLayoutMismatch(t *testing.T) {
	device, surface := newDevice(t)
	library, err := device.DefaultLibrary()
	require.NoError(t, err)

	vd := StandardVertexDescriptor()
	vd.Attributes[2].Format = metadata.VertexFormatFloat3

	m, err := BuildMaterial(device, library, Descriptor{
		Label:            "broken",
		Effect:           DefaultEffect(),
		VertexDescriptor: vd,
		ColorPixelFormat: surface.ColorPixelFormat(),
		DepthPixelFormat: surface.DepthStencilPixelFormat(),
	})
	assert.Nil(t, m)
	assert.ErrorIs(t, err, core.ErrVertexLayoutMismatch)
}

func TestStandardVertexDescriptor(t *testing.T) {
	vd := StandardVertexDescriptor()
	require.Len(t, vd.Attributes, 4)
	assert.Equal(t, []int{metadata.FirstFreeVertexBufferIndex}, vd.BufferIndices())
	assert.Equal(t, StandardVertexStride, vd.Layouts[metadata.FirstFreeVertexBufferIndex].Stride)

	last := vd.Attributes[3]
	assert.Equal(t, StandardVertexStride, last.Offset+last.Format.Size())
}

type recordingEncoder struct {
	metadata.RenderCommandEncoder
	pipeline metadata.RenderPipelineState
	cull     metadata.FaceCullMode
	depth    metadata.DepthStencilState
	textures map[int]metadata.Texture
	samplers map[int]metadata.SamplerState
}

func (e *recordingEncoder) SetRenderPipelineState(s metadata.RenderPipelineState) { e.pipeline = s }
func (e *recordingEncoder) SetCullMode(m metadata.FaceCullMode)                   { e.cull = m }
func (e *recordingEncoder) SetDepthStencilState(s metadata.DepthStencilState)     { e.depth = s }
func (e *recordingEncoder) SetFragmentTexture(t metadata.Texture, i int)          { e.textures[i] = t }
func (e *recordingEncoder) SetFragmentSamplerState(s metadata.SamplerState, i int) {
	e.samplers[i] = s
}

func TestApplyBindsState(t *testing.T) {
	device, surface := newDevice(t)
	library, err := device.DefaultLibrary()
	require.NoError(t, err)

	tex, err := device.NewTexture(metadata.TextureDescriptor{Width: 2, Height: 2, PixelFormat: metadata.PixelFormatRGBA8Unorm}, nil)
	require.NoError(t, err)
	sampler, err := LinearSampler(device)
	require.NoError(t, err)

	m, err := StandardMaterial(device, library, surface, Effect{VertexFunction: "basic_vertex", FragmentFunction: "texture_fragment"},
		&Texture{Texture: tex, Sampler: sampler}, nil)
	require.NoError(t, err)

	enabled, _ := device.NewDepthStencilState(metadata.DepthStencilDescriptor{DepthWriteEnabled: true})
	disabled, _ := device.NewDepthStencilState(metadata.DepthStencilDescriptor{})

	enc := &recordingEncoder{textures: map[int]metadata.Texture{}, samplers: map[int]metadata.SamplerState{}}
	m.Apply(enc, enabled, disabled)
	assert.Equal(t, m.Pipeline(), enc.pipeline)
	assert.Equal(t, enabled, enc.depth)
	assert.Equal(t, tex, enc.textures[metadata.MainTextureIndex])
	assert.Equal(t, sampler, enc.samplers[metadata.MainTextureIndex])
	assert.NotContains(t, enc.textures, metadata.SecondaryTextureIndex)

	m.SetDepthWrite(false)
	m.SetCullMode(metadata.FaceCullModeBack)
	m.Apply(enc, enabled, disabled)
	assert.Equal(t, disabled, enc.depth)
	assert.Equal(t, metadata.FaceCullModeBack, enc.cull)
}
