// Package window opens the desktop window the engine presents into and turns its
// input events into the callbacks the engine and the demo bind to.
package window

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// Window provides platform windowing and input event handling.
// Callbacks run on the goroutine that calls Poll.
type Window interface {
	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving the new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetClickCallback sets the function called when the primary button is pressed.
	//
	// Parameters:
	//   - callback: function receiving the cursor position in framebuffer pixels
	SetClickCallback(callback func(x, y int))

	// SetDragCallback sets the function called while the middle button is held and
	// the cursor moves.
	//
	// Parameters:
	//   - callback: function receiving the cursor movement in pixels since the last event
	SetDragCallback(callback func(dx, dy float32))

	// SetScrollCallback sets the callback for mouse scroll wheel events.
	//
	// Parameters:
	//   - callback: function receiving scroll delta (positive = up/zoom in, negative = down/zoom out)
	SetScrollCallback(callback func(delta float32))

	// SetKeyCallback sets the callback for key presses. Letter keys are reported as
	// their upper-case rune.
	SetKeyCallback(callback func(key rune))

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor for the platform window.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor, or nil if the window is closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// Poll processes pending events without blocking.
	//
	// Returns:
	//   - bool: false once the window has been asked to close
	Poll() bool

	// Size returns the framebuffer size in pixels.
	Size() (width, height int)

	// Close destroys the window and releases platform resources.
	Close() error
}

// engineWindow holds window configuration and event callbacks. The platform
// state lives in internalWindow.
type engineWindow struct {
	title string

	maxWidth  int
	maxHeight int
	minWidth  int
	minHeight int

	width  int
	height int

	internalWindow any

	onResize func(width, height int)
	onClick  func(x, y int)
	onDrag   func(dx, dy float32)
	onScroll func(delta float32)
	onKey    func(key rune)

	dragging   bool
	lastCursor [2]float64
}

var _ Window = &engineWindow{}

// NewWindow creates and shows a window. Must be called from the main goroutine,
// which stays locked to its OS thread for the window's lifetime.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the open window
//   - error: if the platform window could not be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		title:     "oxy-frame",
		maxWidth:  3840,
		maxHeight: 2160,
		minWidth:  320,
		minHeight: 200,
		width:     1280,
		height:    720,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetClickCallback(callback func(x, y int)) {
	w.onClick = callback
}

func (w *engineWindow) SetDragCallback(callback func(dx, dy float32)) {
	w.onDrag = callback
}

func (w *engineWindow) SetScrollCallback(callback func(delta float32)) {
	w.onScroll = callback
}

func (w *engineWindow) SetKeyCallback(callback func(key rune)) {
	w.onKey = callback
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) Poll() bool {
	return platformProcessMessages(w)
}

func (w *engineWindow) Size() (int, int) {
	return w.width, w.height
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

// cursorMoved turns absolute cursor positions into drag deltas.
func (w *engineWindow) cursorMoved(x, y float64) {
	dx, dy := x-w.lastCursor[0], y-w.lastCursor[1]
	w.lastCursor = [2]float64{x, y}
	if w.dragging && w.onDrag != nil {
		w.onDrag(float32(dx), float32(dy))
	}
}

// framebufferPos scales a cursor position in screen coordinates to framebuffer
// pixels, which differ on high-DPI displays.
func framebufferPos(x, y float64, winW, winH, fbW, fbH int) (int, int) {
	if winW <= 0 || winH <= 0 {
		return int(x), int(y)
	}
	return int(x * float64(fbW) / float64(winW)), int(y * float64(fbH) / float64(winH))
}
