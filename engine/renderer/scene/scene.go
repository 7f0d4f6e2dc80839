package scene

import (
	"github.com/spaghettifunk/livewall/engine/math"
	"github.com/spaghettifunk/livewall/engine/renderer/components"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
)

// Scene owns the node tree, the camera and the clear color of the forward pass.
type Scene struct {
	Root       *Node
	Camera     *components.Camera
	ClearColor metadata.ClearColor
}

func NewScene() *Scene {
	return &Scene{
		Root:       NewNode("root"),
		Camera:     components.NewCamera(),
		ClearColor: metadata.ClearColor{Red: 0, Green: 0, Blue: 0, Alpha: 1},
	}
}

// Update runs the update hooks of every node, parents first.
func (s *Scene) Update(t FrameTime) {
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.onUpdate != nil {
			n.onUpdate(n, t)
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(s.Root)
}

// Traverse visits the tree depth first, parents before children and
// siblings in insertion order. World matrices are computed on every call.
// Returning an error from fn stops the walk.
func (s *Scene) Traverse(fn func(n *Node, world math.Mat4) error) error {
	return traverse(s.Root, math.NewMat4Identity(), fn)
}

func traverse(n *Node, parentWorld math.Mat4, fn func(n *Node, world math.Mat4) error) error {
	world := n.Transform.World(parentWorld)
	if err := fn(n, world); err != nil {
		return err
	}
	for _, c := range n.children {
		if err := traverse(c, world, fn); err != nil {
			return err
		}
	}
	return nil
}

// DepthStates are the two depth stencil configurations materials choose from.
type DepthStates struct {
	Enabled  metadata.DepthStencilState
	Disabled metadata.DepthStencilState
}

// Render encodes one draw for every node carrying a mesh and a material and
// returns how many draws were issued.
func (s *Scene) Render(encoder metadata.RenderCommandEncoder, uniforms metadata.Buffer, depth DepthStates) (int, error) {
	draws := 0
	err := s.Traverse(func(n *Node, world math.Mat4) error {
		material := n.DrawMaterial()
		if material == nil {
			return nil
		}
		material.Apply(encoder, depth.Enabled, depth.Disabled)
		encoder.SetVertexBuffer(uniforms, 0, metadata.UniformBufferIndex)
		encoder.SetFragmentBuffer(uniforms, 0, metadata.UniformBufferIndex)
		encoder.SetVertexBytes(world.Bytes(), metadata.ModelMatrixBufferIndex)
		n.Mesh.Draw(encoder)
		draws++
		return nil
	})
	return draws, err
}
