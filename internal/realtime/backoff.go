package realtime

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes resubscription delays. Delays grow by Factor from Initial,
// are capped at Max, and are reduced by up to Jitter (a fraction in [0,1]) so
// many clients do not reconnect in lockstep.
type Backoff struct {
	Initial     time.Duration
	Max         time.Duration
	Factor      float64
	Jitter      float64
	MaxAttempts int
}

func DefaultBackoff() Backoff {
	return Backoff{
		Initial:     time.Second,
		Max:         30 * time.Second,
		Factor:      2.0,
		Jitter:      0.2,
		MaxAttempts: 8,
	}
}

// Delay returns the wait before the given attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := b.Factor
	if factor < 1 {
		factor = 2
	}

	d := float64(b.Initial) * math.Pow(factor, float64(attempt-1))
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		jitter := math.Min(b.Jitter, 1)
		d -= d * jitter * rand.Float64()
	}
	return time.Duration(d)
}

// Exhausted reports whether attempt has used up the budget. Zero MaxAttempts
// means unbounded.
func (b Backoff) Exhausted(attempt int) bool {
	return b.MaxAttempts > 0 && attempt >= b.MaxAttempts
}
