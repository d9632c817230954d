package loader

import (
	"github.com/Carmen-Shannon/oxy-frame/engine/light"
)

// LoaderBuilderOption is a functional option for configuring a GLTFLoader via NewGLTFLoader.
type LoaderBuilderOption func(*GLTFLoader)

// WithLights replaces the default lighting rig.
//
// Parameters:
//   - lights: the scene's lights
//
// Returns:
//   - LoaderBuilderOption: a function that applies the lights option to a loader
func WithLights(lights ...light.Light) LoaderBuilderOption {
	return func(l *GLTFLoader) {
		l.lights = lights
	}
}

// WithAmbient sets the scene's ambient light color.
func WithAmbient(r, g, b float32) LoaderBuilderOption {
	return func(l *GLTFLoader) {
		l.ambient = [3]float32{r, g, b}
	}
}

// WithSpin makes every object imported from nodes named node dynamic, spinning at
// spin radians per second around each axis. Transparent and alpha-cut objects keep
// their category.
//
// Parameters:
//   - node: the glTF node name
//   - spin: rotation speed per axis
//
// Returns:
//   - LoaderBuilderOption: a function that applies the spin option to a loader
func WithSpin(node string, spin [3]float32) LoaderBuilderOption {
	return func(l *GLTFLoader) {
		l.dynamic[node] = spin
	}
}

// WithMaxTextureSize bounds the width and height of imported textures. Zero keeps
// images at their native size.
func WithMaxTextureSize(size uint32) LoaderBuilderOption {
	return func(l *GLTFLoader) {
		l.maxTextureSize = size
	}
}
