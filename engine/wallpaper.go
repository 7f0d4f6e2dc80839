package engine

import (
	"fmt"
	"image/color"
	"sync"

	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/math"
	"github.com/spaghettifunk/livewall/engine/renderer"
	"github.com/spaghettifunk/livewall/engine/renderer/geometry"
	"github.com/spaghettifunk/livewall/engine/renderer/materials"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
	"github.com/spaghettifunk/livewall/engine/renderer/scene"
)

const (
	planeWidth  float32 = 5
	planeLength float32 = 10
	cuboidSize  float32 = 2
	// Radians per second.
	cuboidSpin float32 = 0.8
	// Distance at which the rotated plane covers the default field of view.
	cameraDistance float32 = 6
)

type State int

const (
	StateInitial State = iota
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type StateObserver interface {
	WallpaperStateChanged(w *Wallpaper, state State)
}

// WallpaperObserver receives the renderer's frame events relayed by the wallpaper.
type WallpaperObserver interface {
	WillRenderFrame(w *Wallpaper, drawable metadata.Drawable)
	DidProduceDrawable(w *Wallpaper, drawable metadata.Drawable)
	DidChangeViewportSize(w *Wallpaper, width, height int)
}

// VideoSource yields a new texture whenever a new video frame is due.
type VideoSource interface {
	NextFrame() (metadata.Texture, bool)
}

// Wallpaper is the application facing side of the renderer: it builds the
// scene content, owns the play state and feeds video frames into the main
// texture.
type Wallpaper struct {
	renderer.NopObserver

	renderer *renderer.Renderer
	effect   materials.Effect

	// Shared by every textured material, swapped in place for video frames.
	mainTexture *materials.Texture
	video       VideoSource

	stateMu        sync.Mutex
	state          State
	stateObservers []StateObserver

	observersMu sync.RWMutex
	observers   []WallpaperObserver

	detach func()
}

// NewWallpaper starts in StateInitial with the renderer paused.
func NewWallpaper(r *renderer.Renderer, effect materials.Effect) *Wallpaper {
	if effect.VertexFunction == "" || effect.FragmentFunction == "" {
		effect = materials.DefaultEffect()
	}
	w := &Wallpaper{
		renderer: r,
		effect:   effect,
		state:    StateInitial,
	}
	r.SetPlaying(false)
	r.Scene().Camera.SetPosition(math.NewVec3(0, 0, cameraDistance))
	w.detach = r.AddObserver(w)
	return w
}

func (w *Wallpaper) Renderer() *renderer.Renderer {
	return w.renderer
}

func (w *Wallpaper) Effect() materials.Effect {
	return w.effect
}

func (w *Wallpaper) State() State {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	return w.state
}

func (w *Wallpaper) AddStateObserver(o StateObserver) {
	w.stateMu.Lock()
	w.stateObservers = append(w.stateObservers, o)
	w.stateMu.Unlock()
}

func (w *Wallpaper) AddObserver(o WallpaperObserver) {
	w.observersMu.Lock()
	w.observers = append(w.observers, o)
	w.observersMu.Unlock()
}

func (w *Wallpaper) Play() {
	w.setState(StatePlaying)
}

// Pause has no effect before the first Play.
func (w *Wallpaper) Pause() {
	if w.State() == StateInitial {
		return
	}
	w.setState(StatePaused)
}

func (w *Wallpaper) Toggle() {
	if w.State() == StatePlaying {
		w.Pause()
	} else {
		w.Play()
	}
}

func (w *Wallpaper) setState(state State) {
	w.stateMu.Lock()
	if w.state == state {
		w.stateMu.Unlock()
		return
	}
	w.state = state
	observers := make([]StateObserver, len(w.stateObservers))
	copy(observers, w.stateObservers)
	w.stateMu.Unlock()

	w.renderer.SetPlaying(state == StatePlaying)
	core.LogDebug("wallpaper %s", state)
	for _, o := range observers {
		o.WallpaperStateChanged(w, state)
	}
}

func (w *Wallpaper) AddNode(n *scene.Node) error {
	return w.renderer.Scene().Root.AddChild(n)
}

func (w *Wallpaper) ClearAllNodes() {
	w.renderer.Scene().Root.ClearAllChildren()
}

func (w *Wallpaper) SetClearColor(c metadata.ClearColor) {
	w.renderer.Scene().ClearColor = c
}

// MainTexture returns the texture slot shared by textured materials,
// creating it with a linear sampler on first use.
func (w *Wallpaper) MainTexture() (*materials.Texture, error) {
	if w.mainTexture != nil {
		return w.mainTexture, nil
	}
	sampler, err := materials.LinearSampler(w.renderer.Device())
	if err != nil {
		return nil, fmt.Errorf("failed to create the texture sampler: %w", err)
	}
	w.mainTexture = &materials.Texture{Sampler: sampler}
	return w.mainTexture, nil
}

// SetTexture shows a still image on every textured material.
func (w *Wallpaper) SetTexture(t metadata.Texture) error {
	mt, err := w.MainTexture()
	if err != nil {
		return err
	}
	mt.Texture = t
	return nil
}

// SetVideoSource replaces the still texture with frames polled from src
// before every rendered frame. A nil source stops polling and keeps the
// last frame.
func (w *Wallpaper) SetVideoSource(src VideoSource) error {
	if src != nil {
		if _, err := w.MainTexture(); err != nil {
			return err
		}
	}
	w.video = src
	return nil
}

func (w *Wallpaper) standardMaterial(textured bool) (*materials.Material, error) {
	var main *materials.Texture
	if textured {
		var err error
		if main, err = w.MainTexture(); err != nil {
			return nil, err
		}
	}
	r := w.renderer
	return materials.StandardMaterial(r.Device(), r.Library(), r.Surface(), w.effect, main, nil)
}

// CreatePlane adds a white 5x10 plane facing the camera, drawn with the
// wallpaper effect.
func (w *Wallpaper) CreatePlane(textured bool) (*scene.Node, error) {
	material, err := w.standardMaterial(textured)
	if err != nil {
		return nil, err
	}
	mesh, err := geometry.BuildMesh(w.renderer.Device(), "plane", geometry.Plane(planeWidth, planeLength, color.White))
	if err != nil {
		return nil, err
	}
	node := scene.NewMeshNode("plane", mesh, material)
	node.Transform.SetRotation(math.NewQuatFromAxisAngle(math.NewVec3(1, 0, 0), math.DegToRad(90), true))
	if err := w.AddNode(node); err != nil {
		return nil, err
	}
	return node, nil
}

// CreateCuboid adds a cuboid spinning around the y and x axes.
func (w *Wallpaper) CreateCuboid(colors geometry.CuboidColors) (*scene.Node, error) {
	material, err := w.standardMaterial(false)
	if err != nil {
		return nil, err
	}
	mesh, err := geometry.BuildMesh(w.renderer.Device(), "cuboid", geometry.Cuboid(cuboidSize, cuboidSize, cuboidSize, colors))
	if err != nil {
		return nil, err
	}
	node := scene.NewMeshNode("cuboid", mesh, material)
	node.OnUpdate(func(n *scene.Node, t scene.FrameTime) {
		angle := float32(t.Elapsed) * cuboidSpin
		yaw := math.NewQuatFromAxisAngle(math.NewVec3(0, 1, 0), angle, true)
		pitch := math.NewQuatFromAxisAngle(math.NewVec3(1, 0, 0), angle*0.5, true)
		n.Transform.SetRotation(yaw.Mul(pitch))
	})
	if err := w.AddNode(node); err != nil {
		return nil, err
	}
	return node, nil
}

// Close detaches the wallpaper from the renderer.
func (w *Wallpaper) Close() {
	if w.detach != nil {
		w.detach()
		w.detach = nil
	}
}

func (w *Wallpaper) relay(fn func(o WallpaperObserver)) {
	w.observersMu.RLock()
	observers := make([]WallpaperObserver, len(w.observers))
	copy(observers, w.observers)
	w.observersMu.RUnlock()
	for _, o := range observers {
		fn(o)
	}
}

// WillRenderFrame runs on the render timeline before the scene is encoded.
func (w *Wallpaper) WillRenderFrame(r *renderer.Renderer, drawable metadata.Drawable) {
	if w.video != nil && w.mainTexture != nil {
		if tex, ok := w.video.NextFrame(); ok {
			w.mainTexture.Texture = tex
		}
	}
	w.relay(func(o WallpaperObserver) { o.WillRenderFrame(w, drawable) })
}

func (w *Wallpaper) DidProduceDrawable(r *renderer.Renderer, drawable metadata.Drawable) {
	w.relay(func(o WallpaperObserver) { o.DidProduceDrawable(w, drawable) })
}

func (w *Wallpaper) DidChangeViewportSize(r *renderer.Renderer, width, height int) {
	w.relay(func(o WallpaperObserver) { o.DidChangeViewportSize(w, width, height) })
}
