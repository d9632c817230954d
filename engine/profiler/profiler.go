package profiler

import (
	"log/slog"
	"runtime"
	"strconv"
	"time"

	"github.com/Carmen-Shannon/oxy-frame/engine/logger"
)

// Profiler tracks frame rate, recorded work and memory statistics.
// Logs the averages at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	totals         FrameStats
	categories     []string
	log            *slog.Logger
	now            func() time.Time
}

// ProfilerBuilderOption is a functional option for configuring a Profiler.
type ProfilerBuilderOption func(*Profiler)

// WithInterval sets how often statistics are logged.
//
// Parameters:
//   - d: the logging interval
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithCategoryNames names the entries of FrameStats.CategoryDraws, in index order.
func WithCategoryNames(names ...string) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.categories = names
	}
}

// WithLogger sets the logger stats are written to. Defaults to the shared engine logger.
func WithLogger(l *slog.Logger) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.log = l
	}
}

// NewProfiler creates a new Profiler.
// Update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		now:            time.Now,
	}
	for _, opt := range options {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Logger()
	}
	p.lastTime = p.now()
	return p
}

// Tick should be called once per frame with that frame's statistics.
// Logs averages when the update interval has elapsed: FPS, draws and instances per
// frame (per category when names were given), shadow passes, heap usage, allocation
// rate, GC count/pause times and total memory.
//
// Parameters:
//   - stats: the statistics of the frame just submitted
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(stats FrameStats) bool {
	p.frameCount++
	p.totals.Add(stats)
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 GC pauses.
	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	attrs := []any{
		"fps", strconv.FormatFloat(fps, 'f', 2, 64),
		"draws", formatAvg(p.totals.DrawCalls, p.frameCount),
		"instances", formatAvg(p.totals.Instances, p.frameCount),
		"shadow_passes", formatAvg(p.totals.ShadowPasses, p.frameCount),
		"barriers", formatAvg(p.totals.Barriers, p.frameCount),
	}
	if len(p.categories) > 0 {
		attrs = append(attrs, "categories", formatCategories(p.totals.CategoryDraws, p.categories, p.frameCount))
	}
	attrs = append(attrs,
		"heap_mb", strconv.FormatFloat(allocMB, 'f', 2, 64),
		"alloc_mb_s", strconv.FormatFloat(allocRateMB, 'f', 2, 64),
		"gc", gcCount,
		"gc_last_us", lastPauseUs,
		"gc_max_us", maxPauseUs,
		"sys_mb", strconv.FormatFloat(sysMB, 'f', 2, 64),
	)
	p.log.Info("profiler", attrs...)

	p.frameCount = 0
	p.totals.Reset()
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// formatAvg renders total/frames with one decimal.
func formatAvg(total, frames int) string {
	if frames == 0 {
		return "0"
	}
	return strconv.FormatFloat(float64(total)/float64(frames), 'f', 1, 64)
}
