package profiler

import "strings"

// MaxCategories is the number of draw categories FrameStats counts separately.
const MaxCategories = 8

// FrameStats counts the work recorded for one frame. The composer resets it at the
// start of every frame and returns it; nothing is kept in globals.
type FrameStats struct {
	// DrawCalls is the total number of instanced draws recorded.
	DrawCalls int
	// Instances is the total number of instances across all draws.
	Instances int
	// CategoryDraws holds draws per scene category, indexed by category value.
	CategoryDraws [MaxCategories]int
	// ShadowPasses is the number of shadow maps rendered.
	ShadowPasses int
	// Barriers is the number of state transitions recorded.
	Barriers int
	// Transparent is the number of objects sorted back to front.
	Transparent int
	// EarlyZ reports whether the depth pre-pass ran.
	EarlyZ bool
}

// Reset zeroes every counter.
func (s *FrameStats) Reset() {
	*s = FrameStats{}
}

// AddDraw counts one draw of instances instances in category.
func (s *FrameStats) AddDraw(category, instances int) {
	s.DrawCalls++
	s.Instances += instances
	if category >= 0 && category < MaxCategories {
		s.CategoryDraws[category]++
	}
}

// Add accumulates o into s. EarlyZ is kept if either had it.
func (s *FrameStats) Add(o FrameStats) {
	s.DrawCalls += o.DrawCalls
	s.Instances += o.Instances
	for i := range s.CategoryDraws {
		s.CategoryDraws[i] += o.CategoryDraws[i]
	}
	s.ShadowPasses += o.ShadowPasses
	s.Barriers += o.Barriers
	s.Transparent += o.Transparent
	s.EarlyZ = s.EarlyZ || o.EarlyZ
}

// formatCategories renders per-category draws as "name=n" pairs, skipping unnamed slots.
func formatCategories(draws [MaxCategories]int, names []string, frames int) string {
	var sb strings.Builder
	for i, name := range names {
		if i >= MaxCategories {
			break
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(formatAvg(draws[i], frames))
	}
	return sb.String()
}
