package scene

import (
	"github.com/google/uuid"
	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/math"
	"github.com/spaghettifunk/livewall/engine/renderer/geometry"
	"github.com/spaghettifunk/livewall/engine/renderer/materials"
)

// FrameTime is passed to update hooks once per rendered frame.
type FrameTime struct {
	// Seconds since the renderer was created.
	Elapsed float64
	// Seconds since the previous frame, 0 on the first one.
	Delta float64
}

type UpdateFunc func(n *Node, t FrameTime)

// Node is an element of the scene tree. Nodes own their children; the parent
// link is only a back reference.
type Node struct {
	ID        uuid.UUID
	Name      string
	Transform math.Transform
	Mesh      *geometry.Mesh
	Material  *materials.Material

	parent   *Node
	children []*Node
	onUpdate UpdateFunc
}

func NewNode(name string) *Node {
	return &Node{
		ID:        uuid.New(),
		Name:      name,
		Transform: math.NewTransform(),
	}
}

// NewMeshNode creates a node drawing mesh with material. A nil material
// falls back to the mesh's own.
func NewMeshNode(name string, mesh *geometry.Mesh, material *materials.Material) *Node {
	n := NewNode(name)
	n.Mesh = mesh
	n.Material = material
	return n
}

func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns the children in insertion order. The slice must not be modified.
func (n *Node) Children() []*Node {
	return n.children
}

// OnUpdate sets a hook run by Scene.Update before every traversal.
func (n *Node) OnUpdate(fn UpdateFunc) {
	n.onUpdate = fn
}

// AddChild appends child. The child must be detached and must not be n or
// one of its ancestors.
func (n *Node) AddChild(child *Node) error {
	if child == nil {
		return core.ErrNilNode
	}
	if child.parent != nil {
		return core.ErrNodeHasParent
	}
	for p := n; p != nil; p = p.parent {
		if p == child {
			return core.ErrNodeCycle
		}
	}
	child.parent = n
	n.children = append(n.children, child)
	return nil
}

// RemoveChild detaches child and its subtree. It reports whether child was found.
func (n *Node) RemoveChild(child *Node) bool {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i:i], n.children[i+1:]...)
			c.parent = nil
			return true
		}
	}
	return false
}

// ClearAllChildren releases every descendant of n.
func (n *Node) ClearAllChildren() {
	for _, c := range n.children {
		c.ClearAllChildren()
		c.parent = nil
	}
	n.children = nil
}

// DrawMaterial returns the material the node is drawn with, or nil when the
// node does not draw.
func (n *Node) DrawMaterial() *materials.Material {
	if n.Mesh == nil {
		return nil
	}
	if n.Material != nil {
		return n.Material
	}
	return n.Mesh.Material
}
