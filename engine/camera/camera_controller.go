package camera

// Controller owns the camera's positional state. The camera reads Position and
// Target each Update and derives its matrices from them.
//
// Orbit methods move the eye around the target on a sphere; pan methods move both
// eye and target along the camera's local axes so the orbit relationship is kept.
type Controller interface {
	// Position returns the camera's world-space position.
	//
	// Returns:
	//   - [3]float32: world-space eye position
	Position() [3]float32

	// Target returns the look-at point.
	//
	// Returns:
	//   - [3]float32: world-space target position
	Target() [3]float32

	// SetTarget sets the orbit pivot and recomputes the position.
	//
	// Parameters:
	//   - target: world-space pivot
	SetTarget(target [3]float32)

	// Orbit rotates around the target. Elevation is clamped to the controller's bounds.
	//
	// Parameters:
	//   - dAzimuth: horizontal step in orbit-speed units (positive is right)
	//   - dElevation: vertical step in orbit-speed units (positive is up)
	Orbit(dAzimuth, dElevation float32)

	// Drag rotates around the target from a mouse delta in pixels.
	Drag(dx, dy float32)

	// Zoom moves toward (positive) or away from the target, clamped to the radius bounds.
	Zoom(delta float32)

	// Pan translates eye and target together along the local right, up and forward axes.
	Pan(right, up, forward float32)

	// Radius returns the distance from eye to target.
	Radius() float32
}
