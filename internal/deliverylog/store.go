package deliverylog

import (
	"context"
	"time"

	"ShopPulse/internal/models"
)

// Update is one lifecycle event applied to a delivery record.
//
// The creation fields are written only when the record is first inserted
// and never overwritten afterwards. Status, Attempts and UpdatedAt are
// always overwritten. Error, MessageID, SentAt and CompletedAt are only
// overwritten when set.
type Update struct {
	JobID string

	// Creation fields.
	Recipient  string
	Subject    string
	Template   string
	Priority   int
	MaxRetries int
	Metadata   map[string]string
	CreatedAt  time.Time

	Status      models.JobStatus
	Attempts    int
	Error       string
	MessageID   string
	SentAt      *time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

// Filter selects delivery records. Empty fields match everything. Results
// are ordered by creation time, newest first.
type Filter struct {
	Status    models.JobStatus
	Recipient string
	Template  string
	Limit     int
}

// Store persists delivery records keyed by job id. Upsert must be atomic per
// job id so concurrent events for unrelated jobs never interfere.
type Store interface {
	Upsert(ctx context.Context, u Update) error
	List(ctx context.Context, f Filter) ([]models.Delivery, error)
}
