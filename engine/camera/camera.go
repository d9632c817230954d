package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/chewxy/math32"
)

// View is the read-only camera surface the passes record against. Both the main
// camera and every shadow-casting light present one.
type View interface {
	// ViewMatrix returns the world-to-view transform (column-major).
	ViewMatrix() [16]float32

	// ProjectionMatrix returns the view-to-clip transform (column-major).
	ProjectionMatrix() [16]float32

	// ViewProjection returns ProjectionMatrix * ViewMatrix.
	ViewProjection() [16]float32

	// Eye returns the world-space position of the viewer.
	Eye() [3]float32

	// Viewport returns the rasterizer viewport covering the view's target.
	Viewport() gpu.Viewport

	// Scissor returns the scissor rectangle covering the view's target.
	Scissor() gpu.Rect
}

type cameraImpl struct {
	mu *sync.Mutex

	up [3]float32

	fov    float32
	aspect float32
	near   float32
	far    float32

	width  uint32
	height uint32

	viewMatrix           [16]float32
	projectionMatrix     [16]float32
	viewProjectionMatrix [16]float32

	controller Controller
}

// Camera is a perspective View driven by an attached Controller. Update must be
// called once per frame, before recording, to pick up controller movement.
type Camera interface {
	View

	// Fov returns the vertical field of view in radians.
	Fov() float32

	// Near returns the near clipping plane distance.
	Near() float32

	// Far returns the far clipping plane distance.
	Far() float32

	// Controller returns the attached controller, or nil.
	Controller() Controller

	// SetController attaches ctrl and recomputes the matrices.
	SetController(ctrl Controller)

	// SetSize sets the target size in pixels, which drives the aspect ratio,
	// viewport and scissor.
	//
	// Parameters:
	//   - width: target width in pixels
	//   - height: target height in pixels
	SetSize(width, height uint32)

	// Update recomputes the matrices from the controller's current position and target.
	Update()
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new perspective camera with the given options applied.
// Without a controller the camera sits at the origin looking down -Z.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:     &sync.Mutex{},
		up:     [3]float32{0, 1, 0},
		fov:    45.0 * (math32.Pi / 180.0),
		aspect: 16.0 / 9.0,
		near:   0.1,
		far:    100.0,
		width:  1280,
		height: 720,
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) ViewMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjection() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) Eye() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controller == nil {
		return [3]float32{}
	}
	return c.controller.Position()
}

func (c *cameraImpl) Viewport() gpu.Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gpu.Viewport{Width: float32(c.width), Height: float32(c.height), MaxDepth: 1}
}

func (c *cameraImpl) Scissor() gpu.Rect {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gpu.Rect{Width: c.width, Height: c.height}
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) Controller() Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) SetController(ctrl Controller) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
	c.updateMatrices()
}

func (c *cameraImpl) SetSize(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width, c.height = width, height
	c.aspect = float32(width) / float32(height)
	c.updateMatrices()
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateMatrices()
}

// updateMatrices recalculates the view, projection and view-projection matrices.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	eye, target := [3]float32{0, 0, 0}, [3]float32{0, 0, -1}
	if c.controller != nil {
		eye = c.controller.Position()
		target = c.controller.Target()
	}

	common.LookAt(c.viewMatrix[:], eye, target, c.up)
	common.Perspective(c.projectionMatrix[:], c.fov, c.aspect, c.near, c.far)
	common.Mul4(c.viewProjectionMatrix[:], c.projectionMatrix[:], c.viewMatrix[:])
}
