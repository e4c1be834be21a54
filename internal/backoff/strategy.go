// Package backoff computes retry delays.
package backoff

import (
	"math/rand"
	"strings"
	"time"
)

// Params are the knobs shared by every strategy.
type Params struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// Jitter is a fraction in [0, 1] of the computed delay added at random.
	Jitter float64
}

// Strategy returns the delay before retry number attempt (0 based).
type Strategy interface {
	Delay(attempt int, p Params) time.Duration
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(attempt int, p Params) time.Duration

// Delay implements Strategy.
func (f StrategyFunc) Delay(attempt int, p Params) time.Duration {
	return f(attempt, p)
}

// Exponential grows the delay by Multiplier per attempt and adds uniform jitter,
// never exceeding Max.
type Exponential struct{}

// Delay implements Strategy.
func (Exponential) Delay(attempt int, p Params) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}

	d := time.Duration(float64(p.Initial) * Pow(p.Multiplier, attempt))
	if d < 0 || d > p.Max {
		d = p.Max
	}

	if j := clampJitter(p.Jitter); j > 0 {
		extra := time.Duration(float64(d) * j * rand.Float64())
		if d+extra > p.Max {
			return p.Max
		}
		d += extra
	}
	return d
}

// Decorrelated picks a delay uniformly between Initial and Initial*3^attempt,
// capped at Max. The first attempt always waits Initial.
type Decorrelated struct{}

// Delay implements Strategy.
func (Decorrelated) Delay(attempt int, p Params) time.Duration {
	if attempt <= 0 {
		return p.Initial
	}
	if attempt > 10 {
		attempt = 10
	}

	base := float64(p.Initial)
	upper := base * Pow(3.0, attempt)
	if limit := float64(p.Max); upper > limit || upper < 0 {
		upper = limit
	}
	if upper < base {
		upper = base
	}

	d := time.Duration(base + rand.Float64()*(upper-base))
	if d < 0 || d > p.Max {
		d = p.Max
	}
	return d
}

// Constant always waits Initial.
type Constant struct{}

// Delay implements Strategy.
func (Constant) Delay(_ int, p Params) time.Duration {
	return p.Initial
}

// ByName resolves "exponential", "decorrelated" or "constant".
func ByName(name string) (Strategy, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "exponential", "exponential_jitter":
		return Exponential{}, true
	case "decorrelated", "decorrelated_jitter":
		return Decorrelated{}, true
	case "constant":
		return Constant{}, true
	default:
		return nil, false
	}
}

func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

// Pow is base^exponent for small non-negative exponents.
func Pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
