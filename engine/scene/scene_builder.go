package scene

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithSlots sets the number of frame slots, which must match the presenter's buffer count.
//
// Parameters:
//   - n: the number of frame slots
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithSlots(n int) SceneBuilderOption {
	return func(s *scene) {
		if n > 0 {
			s.slotCount = n
		}
	}
}

// WithShadowMapping enables one shadow map per shadow-casting light.
//
// Parameters:
//   - enabled: whether shadow maps are created
//   - size: depth buffer width and height in texels, or 0 for light.DefaultShadowMapSize
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithShadowMapping(enabled bool, size uint32) SceneBuilderOption {
	return func(s *scene) {
		s.shadowMapping = enabled
		if size > 0 {
			s.shadowMapSize = size
		}
	}
}

// WithMaxShadows caps the number of shadow casters at the main layout's shadow table size.
func WithMaxShadows(n int) SceneBuilderOption {
	return func(s *scene) {
		if n > 0 {
			s.maxShadows = n
		}
	}
}

// WithUpdateWorkers sets the number of worker goroutines used by Update to advance
// dynamic objects. Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of workers (minimum 1)
//   - chunk: dynamic objects per task, or 0 to keep the default of 256
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithUpdateWorkers(n, chunk int) SceneBuilderOption {
	return func(s *scene) {
		s.updateWorkers = max(n, 1)
		if chunk > 0 {
			s.updateChunk = chunk
		}
	}
}
