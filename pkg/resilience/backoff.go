package resilience

import (
	"crypto/rand"
	"math/big"
	"time"
)

const (
	DefaultBaseDelay = 10 * time.Millisecond
	DefaultCapDelay  = 1000 * time.Millisecond
	jitterFraction   = 0.10
)

// computeBackoff returns the delay before retry attempt k (0-indexed,
// counting the attempt that just failed), as min(base*2^k, cap) with
// up to ±jitterFraction random jitter applied.
func computeBackoff(attempt int, base, cap time.Duration) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay <= 0 || delay > cap {
			delay = cap
			break
		}
	}
	if delay > cap {
		delay = cap
	}

	jitterRange := float64(delay) * jitterFraction
	jitter := randomJitter(jitterRange)

	result := time.Duration(float64(delay) + jitter)
	if result < 0 {
		result = 0
	}
	return result
}

// randomJitter returns a uniformly random float64 in [-maxAbs, maxAbs],
// seeded from crypto/rand so delays aren't predictable across replicas.
func randomJitter(maxAbs float64) float64 {
	if maxAbs <= 0 {
		return 0
	}

	const scale = 1_000_000
	n, err := rand.Int(rand.Reader, big.NewInt(2*scale+1))
	if err != nil {
		return 0
	}

	frac := float64(n.Int64())/float64(scale) - 1.0 // in [-1, 1]
	return frac * maxAbs
}
