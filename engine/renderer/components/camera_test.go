package components

import (
	"testing"

	"github.com/spaghettifunk/livewall/engine/math"
	"github.com/stretchr/testify/assert"
)

func TestViewIsInverseOfPosition(t *testing.T) {
	c := NewCamera()
	c.SetPosition(math.NewVec3(0, 0, 8))

	p := math.NewVec3Zero().Transform(c.View())
	assert.True(t, p.Compare(math.NewVec3(0, 0, -8), 1e-4), "got %v", p)
}

func TestAspectRatioRebuildsProjection(t *testing.T) {
	c := NewCamera()
	before := c.Projection()

	c.SetAspectRatio(2)
	after := c.Projection()
	assert.InDelta(t, before.Data[0]/2, after.Data[0], 1e-5)
	assert.Equal(t, before.Data[5], after.Data[5])

	c.SetAspectRatio(0)
	assert.Equal(t, float32(2), c.AspectRatio())
}

func TestPitchIsClamped(t *testing.T) {
	c := NewCamera()
	c.Pitch(10)
	assert.InDelta(t, pitchLimit, c.EulerRotation().X, 1e-6)
	c.Pitch(-20)
	assert.InDelta(t, -pitchLimit, c.EulerRotation().X, 1e-6)
}

func TestMoveForwardFollowsView(t *testing.T) {
	c := NewCamera()
	c.SetPosition(math.NewVec3(0, 0, 8))
	c.MoveForward(3)
	assert.True(t, c.Position().Compare(math.NewVec3(0, 0, 5), 1e-4), "got %v", c.Position())
}
