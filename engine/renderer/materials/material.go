// Package materials binds named shader programs and a vertex layout into a
// pipeline state, together with the per-draw state a mesh is rendered with.
package materials

import (
	"fmt"

	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
)

// Effect names the program entry points of a material. KernelFunction is
// only used by the optional compute pass.
type Effect struct {
	VertexFunction   string `toml:"vertex" yaml:"vertex"`
	FragmentFunction string `toml:"fragment" yaml:"fragment"`
	KernelFunction   string `toml:"kernel,omitempty" yaml:"kernel,omitempty"`
}

func DefaultEffect() Effect {
	return Effect{VertexFunction: "basic_vertex", FragmentFunction: "vortex_fragment"}
}

// Texture pairs a texture with the sampler used to read it.
type Texture struct {
	Texture metadata.Texture
	Sampler metadata.SamplerState
}

type Descriptor struct {
	Label            string
	Effect           Effect
	VertexDescriptor *metadata.VertexDescriptor
	MainTexture      *Texture
	SecondaryTexture *Texture
	CullMode         metadata.FaceCullMode
	DepthWrite       bool
	ColorPixelFormat metadata.PixelFormat
	DepthPixelFormat metadata.PixelFormat
}

type Material struct {
	label            string
	effect           Effect
	vertexDescriptor *metadata.VertexDescriptor
	pipeline         metadata.RenderPipelineState

	mainTexture      *Texture
	secondaryTexture *Texture
	cullMode         metadata.FaceCullMode
	depthWrite       bool
}

// BuildMaterial resolves the effect's programs in library and creates the
// pipeline state. Any failure returns a nil material; no placeholder program
// is substituted.
func BuildMaterial(device metadata.Device, library metadata.Library, desc Descriptor) (*Material, error) {
	if desc.VertexDescriptor == nil {
		return nil, fmt.Errorf("%w: material %q has no vertex descriptor", core.ErrPipelineCompile, desc.Label)
	}

	vertexFn, err := library.Function(desc.Effect.VertexFunction)
	if err != nil {
		return nil, fmt.Errorf("material %q: vertex function %q: %w", desc.Label, desc.Effect.VertexFunction, err)
	}
	fragmentFn, err := library.Function(desc.Effect.FragmentFunction)
	if err != nil {
		return nil, fmt.Errorf("material %q: fragment function %q: %w", desc.Label, desc.Effect.FragmentFunction, err)
	}

	pipeline, err := device.NewRenderPipelineState(&metadata.RenderPipelineDescriptor{
		Label:            desc.Label,
		VertexFunction:   vertexFn,
		FragmentFunction: fragmentFn,
		VertexDescriptor: desc.VertexDescriptor,
		ColorPixelFormat: desc.ColorPixelFormat,
		DepthPixelFormat: desc.DepthPixelFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("material %q: %w", desc.Label, err)
	}

	return &Material{
		label:            desc.Label,
		effect:           desc.Effect,
		vertexDescriptor: desc.VertexDescriptor,
		pipeline:         pipeline,
		mainTexture:      desc.MainTexture,
		secondaryTexture: desc.SecondaryTexture,
		cullMode:         desc.CullMode,
		depthWrite:       desc.DepthWrite,
	}, nil
}

func (m *Material) Label() string {
	return m.label
}

func (m *Material) Effect() Effect {
	return m.effect
}

func (m *Material) VertexDescriptor() *metadata.VertexDescriptor {
	return m.vertexDescriptor
}

func (m *Material) Pipeline() metadata.RenderPipelineState {
	return m.pipeline
}

func (m *Material) MainTexture() *Texture {
	return m.mainTexture
}

func (m *Material) SecondaryTexture() *Texture {
	return m.secondaryTexture
}

func (m *Material) CullMode() metadata.FaceCullMode {
	return m.cullMode
}

func (m *Material) WritesToDepthBuffer() bool {
	return m.depthWrite
}

// The setters below must only be called on the render timeline, between frames.

func (m *Material) SetMainTexture(t *Texture) {
	m.mainTexture = t
}

func (m *Material) SetSecondaryTexture(t *Texture) {
	m.secondaryTexture = t
}

func (m *Material) SetCullMode(mode metadata.FaceCullMode) {
	m.cullMode = mode
}

func (m *Material) SetDepthWrite(enabled bool) {
	m.depthWrite = enabled
}

// Apply binds the pipeline, fixed function state and textures for the next draw.
func (m *Material) Apply(encoder metadata.RenderCommandEncoder, depthEnabled, depthDisabled metadata.DepthStencilState) {
	encoder.SetRenderPipelineState(m.pipeline)
	encoder.SetCullMode(m.cullMode)
	if m.depthWrite {
		encoder.SetDepthStencilState(depthEnabled)
	} else {
		encoder.SetDepthStencilState(depthDisabled)
	}
	bindTexture(encoder, m.mainTexture, metadata.MainTextureIndex)
	bindTexture(encoder, m.secondaryTexture, metadata.SecondaryTextureIndex)
}

func bindTexture(encoder metadata.RenderCommandEncoder, t *Texture, index int) {
	if t == nil || t.Texture == nil {
		return
	}
	encoder.SetFragmentTexture(t.Texture, index)
	if t.Sampler != nil {
		encoder.SetFragmentSamplerState(t.Sampler, index)
	}
}
