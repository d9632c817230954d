package pipeline

import "github.com/Carmen-Shannon/oxy-frame/engine/gpu"

// LibraryBuilderOption is a functional option used to configure a Library during construction.
type LibraryBuilderOption func(*Library)

// WithColorFormat sets the render target format of the color passes.
//
// Parameters:
//   - f: the back buffer format
//
// Returns:
//   - LibraryBuilderOption: a function that sets the color format
func WithColorFormat(f gpu.Format) LibraryBuilderOption {
	return func(l *Library) {
		l.colorFormat = f
	}
}

// WithDepthFormat sets the depth format every pipeline tests against.
func WithDepthFormat(f gpu.Format) LibraryBuilderOption {
	return func(l *Library) {
		l.depthFormat = f
	}
}
