package profiler

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFrameStatsAddDrawAndReset(t *testing.T) {
	var s FrameStats
	s.AddDraw(1, 4)
	s.AddDraw(1, 2)
	s.AddDraw(3, 1)
	s.AddDraw(MaxCategories, 1)

	assert.Equal(t, 4, s.DrawCalls)
	assert.Equal(t, 8, s.Instances)
	assert.Equal(t, 2, s.CategoryDraws[1])
	assert.Equal(t, 1, s.CategoryDraws[3])

	s.Reset()
	assert.Equal(t, FrameStats{}, s)
}

func TestTickLogsAveragesAtInterval(t *testing.T) {
	var buf bytes.Buffer
	clock := time.Unix(0, 0)
	p := NewProfiler(
		WithInterval(time.Second),
		WithCategoryNames("dynamic", "static"),
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))),
	)
	p.now = func() time.Time { return clock }
	p.lastTime = clock

	frame := FrameStats{ShadowPasses: 2}
	frame.AddDraw(0, 10)
	frame.AddDraw(1, 3)

	clock = clock.Add(400 * time.Millisecond)
	assert.False(t, p.Tick(frame))
	clock = clock.Add(600 * time.Millisecond)
	assert.True(t, p.Tick(frame))

	out := buf.String()
	assert.Contains(t, out, "fps=2.00")
	assert.Contains(t, out, "draws=2.0")
	assert.Contains(t, out, "instances=13.0")
	assert.Contains(t, out, "shadow_passes=2.0")
	assert.Contains(t, out, `categories="dynamic=1.0 static=1.0"`)

	buf.Reset()
	clock = clock.Add(100 * time.Millisecond)
	assert.False(t, p.Tick(FrameStats{}))
	assert.Empty(t, buf.String())
}
