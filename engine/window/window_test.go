package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFramebufferPosScalesHighDPI(t *testing.T) {
	x, y := framebufferPos(100, 50, 640, 360, 1280, 720)
	assert.Equal(t, 200, x)
	assert.Equal(t, 100, y)

	x, y = framebufferPos(7, 9, 0, 0, 1280, 720)
	assert.Equal(t, 7, x)
	assert.Equal(t, 9, y)
}

func TestDragOnlyWhileHeld(t *testing.T) {
	w := &engineWindow{}
	var moves [][2]float32
	w.SetDragCallback(func(dx, dy float32) {
		moves = append(moves, [2]float32{dx, dy})
	})

	w.cursorMoved(10, 10)
	w.dragging = true
	w.cursorMoved(13, 6)
	w.cursorMoved(14, 6)
	w.dragging = false
	w.cursorMoved(50, 50)

	assert.Equal(t, [][2]float32{{3, -4}, {1, 0}}, moves)
}

func TestClosedWindowHasNoSurface(t *testing.T) {
	w := &engineWindow{}
	assert.Nil(t, w.SurfaceDescriptor())
	assert.False(t, w.Poll())
	assert.Error(t, w.Close())
}
