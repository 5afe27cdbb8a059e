// -*- tab-width:2 -*-

package netchan

import (
	"fmt"
	"math"
	"math/rand"
)

// RetryPolicy defines the parameters for exponential backoff when a
// forward attempt fails.
type RetryPolicy struct {
	MaxRetries int          `yaml:"max_retries"`
	BaseDelay  Milliseconds `yaml:"base_delay"`
	Jitter     Milliseconds `yaml:"jitter"`
}

// DefaultRetryPolicy returns a sensible default retry policy.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries: 5,    //nolint:mnd
		BaseDelay:  1000, //nolint:mnd // 1 second
		Jitter:     500,  //nolint:mnd // up to 500ms extra
	}
}

// DelayForAttempt calculates the backoff before the next attempt,
// given how many attempts have already failed. The first retry waits
// BaseDelay, doubling each retry after, plus a uniform random jitter
// in [0, Jitter].
func (p *RetryPolicy) DelayForAttempt(attempt int) Milliseconds {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))

	if p.Jitter > 0 {
		delay += rand.Float64() * float64(p.Jitter) //nolint:gosec
	}

	return Milliseconds(delay)
}

func (p *RetryPolicy) validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries %d must be >= 0",
			ErrInvalidConfig, p.MaxRetries)
	}

	if p.BaseDelay < 0 || p.Jitter < 0 {
		return fmt.Errorf("%w: retry base_delay %v and jitter %v must be >= 0",
			ErrInvalidConfig, p.BaseDelay, p.Jitter)
	}

	return nil
}
