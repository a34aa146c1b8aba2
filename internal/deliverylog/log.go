package deliverylog

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"ShopPulse/internal/models"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Log records the lifecycle of every mail job. Write failures are logged
// and swallowed: losing an audit row must never fail a delivery.
type Log struct {
	store   Store
	log     *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

// New returns a Log writing to store. A positive timeout bounds each write.
func New(store Store, log *zap.Logger, timeout time.Duration) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{
		store:   store,
		log:     log,
		timeout: timeout,
		now:     time.Now,
	}
}

// LogEvent upserts the record for job.ID. Queue-level events are ignored.
func (l *Log) LogEvent(ctx context.Context, job models.EmailJob, event models.EventType, eventErr error) {
	status := event.Status()
	if status == "" || job.ID == "" {
		return
	}

	now := l.now()

	u := Update{
		JobID:      job.ID,
		Recipient:  strings.Join(job.To, ", "),
		Subject:    job.Subject,
		Template:   job.Template,
		Priority:   job.Priority,
		MaxRetries: job.MaxRetries,
		Metadata:   job.Metadata,
		CreatedAt:  job.CreatedAt,
		Status:     status,
		Attempts:   job.Attempts,
		MessageID:  job.MessageID,
		UpdatedAt:  now,
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if eventErr != nil {
		u.Error = eventErr.Error()
	}

	switch event {
	case models.EventStarted:
		sent := job.StartedAt
		if sent.IsZero() {
			sent = now
		}
		u.SentAt = &sent
	case models.EventCompleted:
		u.CompletedAt = &now
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	if err := l.store.Upsert(ctx, u); err != nil {
		l.log.Error("failed to write delivery log",
			zap.String("job_id", job.ID),
			zap.String("event", string(event)),
			zap.Error(err),
		)
	}
}

func (l *Log) Query(ctx context.Context, f Filter) ([]models.Delivery, error) {
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultLimit
	case f.Limit > MaxLimit:
		f.Limit = MaxLimit
	}
	return l.store.List(ctx, f)
}

func (l *Log) ByStatus(ctx context.Context, status models.JobStatus, limit int) ([]models.Delivery, error) {
	return l.Query(ctx, Filter{Status: status, Limit: limit})
}

func (l *Log) ByRecipient(ctx context.Context, recipient string, limit int) ([]models.Delivery, error) {
	return l.Query(ctx, Filter{Recipient: recipient, Limit: limit})
}

func (l *Log) ByTemplate(ctx context.Context, template string, limit int) ([]models.Delivery, error) {
	return l.Query(ctx, Filter{Template: template, Limit: limit})
}
