package presenter

import (
	"time"

	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
)

// PresenterBuilderOption is a functional option for configuring a Presenter.
type PresenterBuilderOption func(*Presenter)

// WithSize sets the initial back buffer size in pixels.
//
// Parameters:
//   - width: back buffer width
//   - height: back buffer height
//
// Returns:
//   - PresenterBuilderOption: option function to apply
func WithSize(width, height uint32) PresenterBuilderOption {
	return func(p *Presenter) {
		p.width = width
		p.height = height
	}
}

// WithBufferCount sets the number of swap chain buffers (and frame slots).
//
// Parameters:
//   - n: 2 for double buffering, 3 for triple buffering
//
// Returns:
//   - PresenterBuilderOption: option function to apply
func WithBufferCount(n int) PresenterBuilderOption {
	return func(p *Presenter) {
		p.bufferCount = n
	}
}

// WithFormat sets the back buffer format.
func WithFormat(f gpu.Format) PresenterBuilderOption {
	return func(p *Presenter) {
		p.format = f
	}
}

// WithDepthFormat sets the per-slot depth buffer format.
func WithDepthFormat(f gpu.Format) PresenterBuilderOption {
	return func(p *Presenter) {
		p.depthFormat = f
	}
}

// WithFrameWaitTimeout bounds BeginFrame's wait for a slot. Zero (the default) waits
// forever. An expired wait is reported as gpu.ErrDeviceLost.
//
// Parameters:
//   - d: the bound, or 0 for no bound
//
// Returns:
//   - PresenterBuilderOption: option function to apply
func WithFrameWaitTimeout(d time.Duration) PresenterBuilderOption {
	return func(p *Presenter) {
		p.frameWaitTimeout = d
	}
}
