package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickReportsOncePerInterval(t *testing.T) {
	now := time.Unix(0, 0)
	p := NewProfiler(WithInterval(time.Second), WithTimeSource(func() time.Time { return now }))

	pending := 3
	p.AddGauge("pool_pending", func() int { return pending })

	for range 59 {
		now = now.Add(10 * time.Millisecond)
		assert.False(t, p.Tick())
	}
	now = now.Add(410 * time.Millisecond)
	require.True(t, p.Tick())

	stats := p.Last()
	assert.InDelta(t, 60, stats.FPS, 0.01)
	assert.Equal(t, map[string]int{"pool_pending": 3}, stats.Gauges)

	pending = 7
	now = now.Add(time.Second)
	require.True(t, p.Tick())
	assert.InDelta(t, 1, p.Last().FPS, 0.01)
	assert.Equal(t, 7, p.Last().Gauges["pool_pending"])
}

func TestTickWithoutGauges(t *testing.T) {
	now := time.Unix(0, 0)
	p := NewProfiler(WithInterval(10*time.Millisecond), WithTimeSource(func() time.Time { return now }))
	now = now.Add(20 * time.Millisecond)
	require.True(t, p.Tick())
	assert.Nil(t, p.Last().Gauges)
	assert.Positive(t, p.Last().SysMB)
}
