package headless

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func standardDescriptor() *metadata.VertexDescriptor {
	return &metadata.VertexDescriptor{
		Attributes: []metadata.VertexAttributeDescriptor{
			{Format: metadata.VertexFormatFloat3, Offset: 0, BufferIndex: 2},
			{Format: metadata.VertexFormatFloat3, Offset: 12, BufferIndex: 2},
			{Format: metadata.VertexFormatFloat4, Offset: 24, BufferIndex: 2},
			{Format: metadata.VertexFormatFloat2, Offset: 40, BufferIndex: 2},
		},
		Layouts: map[int]metadata.VertexBufferLayoutDescriptor{2: {Stride: 48}},
	}
}

func TestLibrary(t *testing.T) {
	l := NewLibrary(DefaultFunctions()...)
	assert.Equal(t, []string{"basic_vertex", "color_fragment", "texture_fragment", "vortex_fragment", "waterEffect"}, l.FunctionNames())

	fn, err := l.Function("basic_vertex")
	require.NoError(t, err)
	assert.Equal(t, metadata.ShaderStageVertex, fn.Stage())

	_, err = l.Function("nope")
	assert.ErrorIs(t, err, core.ErrFunctionNotFound)
}

func TestPipelineValidation(t *testing.T) {
	d, err := NewDevice(Config{ManualCompletion: true})
	require.NoError(t, err)
	defer d.Destroy()

	vertex, _ := d.library.Function("basic_vertex")
	fragment, _ := d.library.Function("color_fragment")

	_, err = d.NewRenderPipelineState(&metadata.RenderPipelineDescriptor{
		Label: "ok", VertexFunction: vertex, FragmentFunction: fragment, VertexDescriptor: standardDescriptor(),
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(vd *metadata.VertexDescriptor)
	}{
		{"missing attribute", func(vd *metadata.VertexDescriptor) { vd.Attributes = vd.Attributes[:3] }},
		{"wrong format", func(vd *metadata.VertexDescriptor) { vd.Attributes[0].Format = metadata.VertexFormatFloat4 }},
		{"reserved index", func(vd *metadata.VertexDescriptor) {
			for i := range vd.Attributes {
				vd.Attributes[i].BufferIndex = 1
			}
			vd.Layouts = map[int]metadata.VertexBufferLayoutDescriptor{1: {Stride: 48}}
		}},
		{"missing layout", func(vd *metadata.VertexDescriptor) { vd.Layouts = nil }},
		{"short stride", func(vd *metadata.VertexDescriptor) { vd.Layouts[2] = metadata.VertexBufferLayoutDescriptor{Stride: 40} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vd := standardDescriptor()
			tt.mutate(vd)
			_, err := d.NewRenderPipelineState(&metadata.RenderPipelineDescriptor{
				VertexFunction: vertex, FragmentFunction: fragment, VertexDescriptor: vd,
			})
			assert.ErrorIs(t, err, core.ErrVertexLayoutMismatch)
		})
	}

	_, err = d.NewComputePipelineState(vertex)
	assert.ErrorIs(t, err, core.ErrComputeUnsupported)
}

func TestTextures(t *testing.T) {
	d, err := NewDevice(Config{ManualCompletion: true})
	require.NoError(t, err)
	defer d.Destroy()

	_, err = d.NewTexture(metadata.TextureDescriptor{Width: 0, Height: 4, PixelFormat: metadata.PixelFormatRGBA8Unorm}, nil)
	assert.Error(t, err)

	tex, err := d.NewTexture(metadata.TextureDescriptor{Width: 2, Height: 1, PixelFormat: metadata.PixelFormatRGBA8Unorm}, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, tex.(*Texture).Pixels())
	assert.Error(t, tex.ReplaceRegion([]byte{1}))
}

func commitEmpty(t *testing.T, d *Device, onComplete func(metadata.CommandBuffer)) metadata.CommandBuffer {
	t.Helper()
	q, err := d.NewCommandQueue()
	require.NoError(t, err)
	cb, err := q.CommandBuffer()
	require.NoError(t, err)
	enc, err := cb.RenderCommandEncoder(&metadata.RenderPassDescriptor{})
	require.NoError(t, err)
	enc.EndEncoding()
	cb.AddCompletedHandler(onComplete)
	require.NoError(t, cb.Commit())
	return cb
}

func TestManualCompletion(t *testing.T) {
	d, err := NewDevice(Config{ManualCompletion: true})
	require.NoError(t, err)
	defer d.Destroy()

	var completed atomic.Int32
	first := commitEmpty(t, d, func(metadata.CommandBuffer) { completed.Add(1) })
	commitEmpty(t, d, func(metadata.CommandBuffer) { completed.Add(1) })

	assert.Equal(t, 2, d.Pending())
	assert.Equal(t, metadata.CommandBufferStatusCommitted, first.Status())
	assert.ErrorIs(t, first.Commit(), ErrAlreadyCommitted)

	require.True(t, d.CompleteNext())
	assert.Equal(t, int32(1), completed.Load())
	assert.Equal(t, metadata.CommandBufferStatusCompleted, first.Status())

	d.WaitIdle()
	assert.Equal(t, int32(2), completed.Load())
	assert.False(t, d.CompleteNext())

	frames := d.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, 0, frames[0].Index)
	assert.Equal(t, 1, frames[1].Index)
}

func TestAsyncCompletionAndFailure(t *testing.T) {
	d, err := NewDevice(Config{Workers: 2})
	require.NoError(t, err)
	defer d.Destroy()

	boom := errors.New("boom")
	d.FailNextCommit(boom)

	statuses := make(chan metadata.CommandBufferStatus, 2)
	commitEmpty(t, d, func(cb metadata.CommandBuffer) { statuses <- cb.Status() })
	commitEmpty(t, d, func(cb metadata.CommandBuffer) { statuses <- cb.Status() })

	got := map[metadata.CommandBufferStatus]int{}
	for i := 0; i < 2; i++ {
		select {
		case s := <-statuses:
			got[s]++
		case <-time.After(2 * time.Second):
			t.Fatal("command buffer never completed")
		}
	}
	assert.Equal(t, 1, got[metadata.CommandBufferStatusError])
	assert.Equal(t, 1, got[metadata.CommandBufferStatusCompleted])

	d.WaitIdle()
	frames := d.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, metadata.CommandBufferStatusError, frames[0].Status)
}

func TestSurface(t *testing.T) {
	s := NewSurface(8, 4)
	require.NotNil(t, s.CurrentRenderPassDescriptor())
	drawable := s.CurrentDrawable()
	require.NotNil(t, drawable)
	assert.Equal(t, 8, drawable.Texture().Width())
	assert.Equal(t, 4, drawable.Texture().Height())

	s.SetDrawableSize(0, 0)
	assert.Nil(t, s.CurrentRenderPassDescriptor())
	assert.Nil(t, s.CurrentDrawable())

	s.SetDrawableSize(8, 4)
	s.SetAvailable(false)
	assert.Nil(t, s.CurrentDrawable())
	assert.Equal(t, 1, s.Drawables())
}
