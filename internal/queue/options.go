package queue

import (
	"time"

	"go.uber.org/zap"
)

type Option func(q *Queue)

// WithConcurrency bounds simultaneous sends. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.concurrency = n
		}
	}
}

// WithDefaultRetries sets the retry budget for jobs added without Retries.
func WithDefaultRetries(n int) Option {
	return func(q *Queue) {
		if n >= 0 {
			q.defaultRetries = n
		}
	}
}

func WithBackoff(b Backoff) Option {
	return func(q *Queue) {
		if b != nil {
			q.backoff = b
		}
	}
}

// WithSendTimeout bounds a single transport call. Zero means no timeout.
func WithSendTimeout(d time.Duration) Option {
	return func(q *Queue) {
		q.sendTimeout = d
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(q *Queue) {
		if log != nil {
			q.log = log
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

type addParams struct {
	priority int
	retries  int
}

type AddOption func(p *addParams)

// Priority sets the job priority; higher is served first. Default 0.
func Priority(p int) AddOption {
	return func(params *addParams) {
		params.priority = p
	}
}

// Retries sets how many times a failed send is retried.
func Retries(n int) AddOption {
	return func(params *addParams) {
		params.retries = n
	}
}
