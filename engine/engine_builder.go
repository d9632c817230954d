package engine

import (
	"github.com/Carmen-Shannon/oxy-frame/engine/settings"
	"github.com/Carmen-Shannon/oxy-frame/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithSettings replaces the default settings. They are validated by New.
//
// Parameters:
//   - s: the settings to run with
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithSettings(s settings.Settings) EngineBuilderOption {
	return func(e *engine) {
		e.settings = s
	}
}

// WithWindow attaches a window. Run polls it every frame, its size overrides the
// configured one, and its input drives resizing, picking, the camera and the
// V (vsync), Z (early-Z) and R (shader reload) keys.
//
// Parameters:
//   - w: the window the swap chain presents into
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithPickCallback sets the function that receives resolved picks. It runs on the
// frame goroutine at the frame boundary after the pick completes.
func WithPickCallback(fn func(PickResult)) EngineBuilderOption {
	return func(e *engine) {
		e.onPick = fn
	}
}

// WithHeapSize sets the number of descriptor heap slots.
func WithHeapSize(n int) EngineBuilderOption {
	return func(e *engine) {
		if n > 0 {
			e.heapSize = n
		}
	}
}

// WithStartupWorkers sets the size of the worker pool that loads the scene and
// compiles the pipelines.
func WithStartupWorkers(n int) EngineBuilderOption {
	return func(e *engine) {
		e.startupWorkers = max(n, 1)
	}
}
