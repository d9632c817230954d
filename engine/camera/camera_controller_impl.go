package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/chewxy/math32"
)

// orbitController is the implementation of Controller.
type orbitController struct {
	mu *sync.Mutex

	position [3]float32
	target   [3]float32

	// Spherical coordinates relative to target.
	radius    float32
	azimuth   float32
	elevation float32

	minRadius, maxRadius       float32
	minElevation, maxElevation float32

	orbitSpeed       float32
	mouseSensitivity float32
	zoomSpeed        float32
	panSpeed         float32
}

var _ Controller = &orbitController{}

// ControllerOption is a functional option for configuring an orbit Controller.
type ControllerOption func(*orbitController)

// WithOrbit sets the initial spherical coordinates around the target.
//
// Parameters:
//   - radius: distance from the target
//   - azimuth: horizontal angle in radians (0 = +Z axis)
//   - elevation: vertical angle in radians (0 = horizontal)
//
// Returns:
//   - ControllerOption: functional option to set the orbit
func WithOrbit(radius, azimuth, elevation float32) ControllerOption {
	return func(cc *orbitController) {
		cc.radius = radius
		cc.azimuth = azimuth
		cc.elevation = elevation
	}
}

// WithTarget sets the orbit pivot.
func WithTarget(x, y, z float32) ControllerOption {
	return func(cc *orbitController) {
		cc.target = [3]float32{x, y, z}
	}
}

// WithRadiusBounds clamps zooming to [min, max].
func WithRadiusBounds(min, max float32) ControllerOption {
	return func(cc *orbitController) {
		cc.minRadius, cc.maxRadius = min, max
	}
}

// WithSpeeds sets the keyboard orbit step (radians), mouse sensitivity (radians per
// pixel), zoom and pan multipliers.
func WithSpeeds(orbit, mouse, zoom, pan float32) ControllerOption {
	return func(cc *orbitController) {
		cc.orbitSpeed = orbit
		cc.mouseSensitivity = mouse
		cc.zoomSpeed = zoom
		cc.panSpeed = pan
	}
}

// NewOrbitController creates an orbit controller with defaults suited to a scene a
// few tens of units across.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - Controller: the newly created controller
func NewOrbitController(options ...ControllerOption) Controller {
	cc := &orbitController{
		mu:               &sync.Mutex{},
		radius:           20,
		elevation:        math32.Pi / 6,
		minRadius:        2,
		maxRadius:        200,
		minElevation:     0.05,
		maxElevation:     math32.Pi/2 - 0.1,
		orbitSpeed:       0.03,
		mouseSensitivity: 0.005,
		zoomSpeed:        1,
		panSpeed:         0.5,
	}
	for _, option := range options {
		option(cc)
	}
	cc.clamp()
	cc.updatePosition()
	return cc
}

// clamp keeps radius and elevation inside their bounds. Caller must hold the mutex.
func (cc *orbitController) clamp() {
	cc.radius = math32.Max(cc.minRadius, math32.Min(cc.maxRadius, cc.radius))
	cc.elevation = math32.Max(cc.minElevation, math32.Min(cc.maxElevation, cc.elevation))
}

// updatePosition recomputes the eye from spherical coordinates. Caller must hold the mutex.
func (cc *orbitController) updatePosition() {
	sinElev, cosElev := math32.Sincos(cc.elevation)
	sinAzim, cosAzim := math32.Sincos(cc.azimuth)
	cc.position = [3]float32{
		cc.target[0] + cc.radius*cosElev*sinAzim,
		cc.target[1] + cc.radius*sinElev,
		cc.target[2] + cc.radius*cosElev*cosAzim,
	}
}

func (cc *orbitController) Position() [3]float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.position
}

func (cc *orbitController) Target() [3]float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.target
}

func (cc *orbitController) SetTarget(target [3]float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.target = target
	cc.updatePosition()
}

func (cc *orbitController) Orbit(dAzimuth, dElevation float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.azimuth += dAzimuth * cc.orbitSpeed
	cc.elevation += dElevation * cc.orbitSpeed
	cc.clamp()
	cc.updatePosition()
}

func (cc *orbitController) Drag(dx, dy float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.azimuth -= dx * cc.mouseSensitivity
	cc.elevation += dy * cc.mouseSensitivity
	cc.clamp()
	cc.updatePosition()
}

func (cc *orbitController) Zoom(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.radius -= delta * cc.zoomSpeed
	cc.clamp()
	cc.updatePosition()
}

func (cc *orbitController) Pan(right, up, forward float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	fwd := common.Normalize3([3]float32{
		cc.target[0] - cc.position[0],
		cc.target[1] - cc.position[1],
		cc.target[2] - cc.position[2],
	})
	r := common.Normalize3(common.Cross3(fwd, [3]float32{0, 1, 0}))
	u := common.Cross3(r, fwd)

	for i := range 3 {
		d := (r[i]*right + u[i]*up + fwd[i]*forward) * cc.panSpeed
		cc.target[i] += d
		cc.position[i] += d
	}
}

func (cc *orbitController) Radius() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.radius
}
