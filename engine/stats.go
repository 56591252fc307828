// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"fmt"
	"time"
)

// FrameStats measures the frame rate and the average
// frame time over consecutive periods.
type FrameStats struct {
	period time.Duration
	start  time.Time
	frames int

	fps float64
	avg time.Duration
}

// NewFrameStats creates a FrameStats that updates its
// figures once per period.
// A non-positive period means one second.
func NewFrameStats(period time.Duration) *FrameStats {
	if period <= 0 {
		period = time.Second
	}
	return &FrameStats{period: period}
}

// Tick records a frame that completed at now.
// It returns true when the current period has ended,
// in which case FPS and FrameTime were updated.
// The first call only starts the period.
func (s *FrameStats) Tick(now time.Time) bool {
	if s.start.IsZero() {
		s.start = now
		return false
	}
	s.frames++
	d := now.Sub(s.start)
	if d < s.period {
		return false
	}
	s.fps = float64(s.frames) / d.Seconds()
	s.avg = d / time.Duration(s.frames)
	s.start = now
	s.frames = 0
	return true
}

// Reset discards the current period.
// Use it after a pause, such as while the window is
// minimized.
func (s *FrameStats) Reset() {
	s.start = time.Time{}
	s.frames = 0
}

// FPS returns the number of frames per second measured
// over the last complete period.
func (s *FrameStats) FPS() float64 { return s.fps }

// FrameTime returns the average frame time over the last
// complete period.
func (s *FrameStats) FrameTime() time.Duration { return s.avg }

// String formats the statistics as in "60.0 fps 16.67 ms".
func (s *FrameStats) String() string {
	ms := float64(s.avg) / float64(time.Millisecond)
	return fmt.Sprintf("%.1f fps %.2f ms", s.fps, ms)
}
