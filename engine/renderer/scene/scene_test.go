package scene

import (
	"encoding/binary"
	"image/color"
	m "math"
	"testing"

	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/math"
	"github.com/spaghettifunk/livewall/engine/renderer/geometry"
	"github.com/spaghettifunk/livewall/engine/renderer/headless"
	"github.com/spaghettifunk/livewall/engine/renderer/materials"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	device   *headless.Device
	surface  *headless.Surface
	mesh     *geometry.Mesh
	material *materials.Material
	depth    DepthStates
	uniforms metadata.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	device, err := headless.NewDevice(headless.Config{ManualCompletion: true})
	require.NoError(t, err)
	t.Cleanup(device.Destroy)
	surface := headless.NewSurface(32, 32)

	library, err := device.DefaultLibrary()
	require.NoError(t, err)
	material, err := materials.StandardMaterial(device, library, surface, materials.DefaultEffect(), nil, nil)
	require.NoError(t, err)
	mesh, err := geometry.BuildMesh(device, "quad", geometry.Plane(1, 1, color.White))
	require.NoError(t, err)

	enabled, _ := device.NewDepthStencilState(metadata.DepthStencilDescriptor{DepthWriteEnabled: true})
	disabled, _ := device.NewDepthStencilState(metadata.DepthStencilDescriptor{})
	uniforms, err := device.NewBuffer(224, "uniforms")
	require.NoError(t, err)

	return &fixture{
		device:   device,
		surface:  surface,
		mesh:     mesh,
		material: material,
		depth:    DepthStates{Enabled: enabled, Disabled: disabled},
		uniforms: uniforms,
	}
}

// render encodes s into one committed frame and returns it.
func (f *fixture) render(t *testing.T, s *Scene) (int, headless.Frame) {
	t.Helper()
	queue, err := f.device.NewCommandQueue()
	require.NoError(t, err)
	cb, err := queue.CommandBuffer()
	require.NoError(t, err)
	enc, err := cb.RenderCommandEncoder(&metadata.RenderPassDescriptor{ClearColor: s.ClearColor})
	require.NoError(t, err)
	draws, err := s.Render(enc, f.uniforms, f.depth)
	require.NoError(t, err)
	enc.EndEncoding()
	require.NoError(t, cb.Commit())
	require.True(t, f.device.CompleteNext())

	frames := f.device.Frames()
	return draws, frames[len(frames)-1]
}

func translationOf(t *testing.T, matrix []byte) math.Vec3 {
	t.Helper()
	require.Len(t, matrix, 64)
	at := func(i int) float32 { return m.Float32frombits(binary.LittleEndian.Uint32(matrix[i*4:])) }
	return math.NewVec3(at(12), at(13), at(14))
}

func TestTraversalOrder(t *testing.T) {
	f := newFixture(t)
	s := NewScene()

	a := NewMeshNode("A", f.mesh, f.material)
	b := NewMeshNode("B", f.mesh, f.material)
	c := NewMeshNode("C", f.mesh, f.material)
	require.NoError(t, s.Root.AddChild(a))
	require.NoError(t, a.AddChild(b))
	require.NoError(t, s.Root.AddChild(c))

	for i := 0; i < 3; i++ {
		var visited []string
		require.NoError(t, s.Traverse(func(n *Node, _ math.Mat4) error {
			if n != s.Root {
				visited = append(visited, n.Name)
			}
			return nil
		}))
		assert.Equal(t, []string{"A", "B", "C"}, visited)
	}

	a.Transform.SetPosition(math.NewVec3(1, 0, 0))
	b.Transform.SetPosition(math.NewVec3(0, 2, 0))
	c.Transform.SetPosition(math.NewVec3(0, 0, 3))

	draws, frame := f.render(t, s)
	assert.Equal(t, 3, draws)
	require.Len(t, frame.Draws, 3)
	assert.True(t, translationOf(t, frame.Draws[0].VertexBytes[metadata.ModelMatrixBufferIndex]).Compare(math.NewVec3(1, 0, 0), 1e-5))
	assert.True(t, translationOf(t, frame.Draws[1].VertexBytes[metadata.ModelMatrixBufferIndex]).Compare(math.NewVec3(1, 2, 0), 1e-5))
	assert.True(t, translationOf(t, frame.Draws[2].VertexBytes[metadata.ModelMatrixBufferIndex]).Compare(math.NewVec3(0, 0, 3), 1e-5))

	for _, d := range frame.Draws {
		assert.Equal(t, "uniforms", d.VertexBuffers[metadata.UniformBufferIndex])
		assert.Equal(t, "uniforms", d.FragmentBuffers[metadata.UniformBufferIndex])
		assert.Equal(t, "quad", d.VertexBuffers[metadata.FirstFreeVertexBufferIndex])
		assert.Equal(t, 6, d.VertexCount)
	}
}

func TestMeshlessNodeGroupsChildren(t *testing.T) {
	f := newFixture(t)
	s := NewScene()

	group := NewNode("group")
	group.Transform.SetPosition(math.NewVec3(5, 0, 0))
	child := NewMeshNode("child", f.mesh, f.material)
	child.Transform.SetPosition(math.NewVec3(0, 1, 0))
	require.NoError(t, s.Root.AddChild(group))
	require.NoError(t, group.AddChild(child))

	draws, frame := f.render(t, s)
	assert.Equal(t, 1, draws)
	require.Len(t, frame.Draws, 1)
	assert.True(t, translationOf(t, frame.Draws[0].VertexBytes[metadata.ModelMatrixBufferIndex]).Compare(math.NewVec3(5, 1, 0), 1e-5))
}

func TestMeshMaterialFallback(t *testing.T) {
	f := newFixture(t)
	s := NewScene()

	f.mesh.Material = f.material
	require.NoError(t, s.Root.AddChild(NewMeshNode("inherits", f.mesh, nil)))
	require.NoError(t, s.Root.AddChild(&Node{Name: "bare", Transform: math.NewTransform()}))

	draws, _ := f.render(t, s)
	assert.Equal(t, 1, draws)
}

func TestAddChildRules(t *testing.T) {
	root := NewNode("root")
	a := NewNode("a")
	b := NewNode("b")

	assert.ErrorIs(t, root.AddChild(nil), core.ErrNilNode)
	require.NoError(t, root.AddChild(a))
	require.NoError(t, a.AddChild(b))

	assert.ErrorIs(t, root.AddChild(b), core.ErrNodeHasParent)
	assert.ErrorIs(t, b.AddChild(root), core.ErrNodeCycle)
	assert.ErrorIs(t, b.AddChild(b), core.ErrNodeCycle)

	assert.True(t, a.RemoveChild(b))
	assert.Nil(t, b.Parent())
	assert.False(t, a.RemoveChild(b))
	require.NoError(t, root.AddChild(b))
	assert.Equal(t, []*Node{a, b}, root.Children())

	root.ClearAllChildren()
	assert.Empty(t, root.Children())
	assert.Nil(t, a.Parent())
}

func TestUpdateRunsParentsFirst(t *testing.T) {
	s := NewScene()
	a := NewNode("a")
	b := NewNode("b")
	require.NoError(t, s.Root.AddChild(a))
	require.NoError(t, a.AddChild(b))

	var order []string
	var got FrameTime
	hook := func(n *Node, ft FrameTime) {
		order = append(order, n.Name)
		got = ft
	}
	a.OnUpdate(hook)
	b.OnUpdate(hook)

	s.Update(FrameTime{Elapsed: 2, Delta: 0.5})
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, FrameTime{Elapsed: 2, Delta: 0.5}, got)
}
