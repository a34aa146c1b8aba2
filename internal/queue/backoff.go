package queue

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Backoff returns how long a job waits before the given attempt is retried.
// attempt is the number of attempts already made (1 after the first failure).
type Backoff interface {
	Delay(attempt int) time.Duration
}

// Linear waits Base * attempt, capped at Max when Max is positive.
type Linear struct {
	Base time.Duration
	Max  time.Duration
}

func (l Linear) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := l.Base * time.Duration(attempt)
	if l.Max > 0 && d > l.Max {
		return l.Max
	}
	return d
}

// Exponential doubles the delay on every attempt, starting at Base.
type Exponential struct {
	Base time.Duration
	Max  time.Duration
}

func (e Exponential) Delay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.Base
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	if e.Max > 0 {
		b.MaxInterval = e.Max
	}
	b.Reset()

	d := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

// NewBackoff picks a policy by name; anything but "exponential" is linear.
func NewBackoff(strategy string, base, max time.Duration) Backoff {
	if strategy == "exponential" {
		return Exponential{Base: base, Max: max}
	}
	return Linear{Base: base, Max: max}
}
