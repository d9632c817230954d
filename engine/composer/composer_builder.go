package composer

// ComposerBuilderOption is a functional option for configuring a Composer.
type ComposerBuilderOption func(*Composer)

// WithBackfaceCulling selects the culled or unculled opaque pipelines. Defaults to true.
//
// Parameters:
//   - on: whether opaque geometry culls back faces
//
// Returns:
//   - ComposerBuilderOption: option function to apply
func WithBackfaceCulling(on bool) ComposerBuilderOption {
	return func(c *Composer) {
		c.culling = on
	}
}

// WithEarlyZ enables the depth pre-pass. Defaults to false.
func WithEarlyZ(on bool) ComposerBuilderOption {
	return func(c *Composer) {
		c.earlyZ = on
	}
}

// WithShadowMapping enables the shadow passes. Defaults to true.
func WithShadowMapping(on bool) ComposerBuilderOption {
	return func(c *Composer) {
		c.shadows = on
	}
}

// WithClearColor sets the color target's clear value.
//
// Parameters:
//   - rgba: linear clear color
//
// Returns:
//   - ComposerBuilderOption: option function to apply
func WithClearColor(rgba [4]float32) ComposerBuilderOption {
	return func(c *Composer) {
		c.clearColor = rgba
	}
}
