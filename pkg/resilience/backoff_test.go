package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeBackoffRespectsCap(t *testing.T) {
	d := computeBackoff(10, 10*time.Millisecond, 1000*time.Millisecond)
	assert.LessOrEqual(t, d, time.Duration(float64(1000*time.Millisecond)*1.1))
}

func TestComputeBackoffGrowsWithAttempt(t *testing.T) {
	base := 10 * time.Millisecond
	capDelay := 1000 * time.Millisecond

	var prev time.Duration
	for attempt := 0; attempt < 5; attempt++ {
		// Jitter is ±10%, so below the cap attempt k's smallest delay
		// (0.9*base*2^k) still exceeds attempt k-1's largest
		// (1.1*base*2^(k-1) = 0.55*base*2^k).
		d := computeBackoff(attempt, base, capDelay)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		if attempt > 0 {
			assert.Greater(t, d, prev)
		}
		prev = d
	}
}

func TestRandomJitterWithinBounds(t *testing.T) {
	for i := 0; i < 200; i++ {
		j := randomJitter(100)
		assert.GreaterOrEqual(t, j, -100.0)
		assert.LessOrEqual(t, j, 100.0)
	}
}

func TestRandomJitterZeroRange(t *testing.T) {
	assert.Equal(t, 0.0, randomJitter(0))
}
