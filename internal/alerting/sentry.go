package alerting

import (
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"ShopPulse/internal/models"
	"ShopPulse/internal/queue"
)

// NewHub returns a Sentry hub bound to its own client so nothing depends on
// the SDK's global state.
func NewHub(dsn, environment string) (*sentry.Hub, error) {
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	})
	if err != nil {
		return nil, fmt.Errorf("init sentry: %w", err)
	}
	return sentry.NewHub(client, sentry.NewScope()), nil
}

// FailureReporter reports mail jobs that ran out of retries.
type FailureReporter struct {
	hub *sentry.Hub
}

func NewFailureReporter(hub *sentry.Hub) *FailureReporter {
	return &FailureReporter{hub: hub}
}

// Observe is a queue listener.
func (r *FailureReporter) Observe(ev queue.Event) {
	if ev.Type != models.EventFailed {
		return
	}

	job := ev.Job
	cause := ev.Err
	if cause == nil {
		cause = errors.New(job.LastError)
	}

	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTag("template", job.Template)
		scope.SetTag("job_id", job.ID)
		if kind := job.Metadata["kind"]; kind != "" {
			scope.SetTag("kind", kind)
		}
		scope.SetContext("email_job", sentry.Context{
			"attempts":    job.Attempts,
			"max_retries": job.MaxRetries,
			"priority":    job.Priority,
			"order_id":    job.Metadata["orderId"],
		})

		r.hub.CaptureException(fmt.Errorf("email %s failed after %d attempts: %w", job.Template, job.Attempts, cause))
	})
}

// Flush waits for buffered reports to be delivered.
func (r *FailureReporter) Flush(timeout time.Duration) bool {
	return r.hub.Flush(timeout)
}
