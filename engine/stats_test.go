// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameStats(t *testing.T) {
	s := NewFrameStats(time.Second)
	t0 := time.Unix(1000, 0)
	require.False(t, s.Tick(t0))

	// 100 frames of 10ms.
	for i := 1; i < 100; i++ {
		require.False(t, s.Tick(t0.Add(time.Duration(i)*10*time.Millisecond)))
	}
	assert.Zero(t, s.FPS())
	require.True(t, s.Tick(t0.Add(time.Second)))
	assert.InDelta(t, 100, s.FPS(), 1e-9)
	assert.Equal(t, 10*time.Millisecond, s.FrameTime())
	assert.Equal(t, "100.0 fps 10.00 ms", s.String())

	// 40 frames of 25ms. The figures only change at the
	// end of the period.
	t1 := t0.Add(time.Second)
	for i := 1; i < 40; i++ {
		require.False(t, s.Tick(t1.Add(time.Duration(i)*25*time.Millisecond)))
		assert.Equal(t, 10*time.Millisecond, s.FrameTime())
	}
	require.True(t, s.Tick(t1.Add(time.Second)))
	assert.InDelta(t, 40, s.FPS(), 1e-9)
	assert.Equal(t, 25*time.Millisecond, s.FrameTime())
	assert.Equal(t, "40.0 fps 25.00 ms", s.String())
}

func TestFrameStatsReset(t *testing.T) {
	s := NewFrameStats(0)
	t0 := time.Unix(1000, 0)
	s.Tick(t0)
	s.Tick(t0.Add(500 * time.Millisecond))

	// A long pause does not count as one slow frame.
	s.Reset()
	t1 := t0.Add(time.Minute)
	require.False(t, s.Tick(t1))
	for i := 1; i <= 60; i++ {
		s.Tick(t1.Add(time.Duration(i) * time.Second / 60))
	}
	assert.InDelta(t, 60, s.FPS(), 1e-6)
	assert.InDelta(t, float64(time.Second/60), float64(s.FrameTime()), float64(time.Microsecond))
}
