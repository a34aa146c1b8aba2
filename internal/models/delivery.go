package models

import "time"

// Delivery is the persisted mirror of an EmailJob, one record per job id.
type Delivery struct {
	JobID      string            `json:"job_id" bson:"jobId"`
	Recipient  string            `json:"recipient" bson:"recipient"`
	Subject    string            `json:"subject" bson:"subject"`
	Template   string            `json:"template" bson:"template"`
	Status     JobStatus         `json:"status" bson:"status"`
	Priority   int               `json:"priority" bson:"priority"`
	Attempts   int               `json:"attempts" bson:"attempts"`
	MaxRetries int               `json:"max_retries" bson:"maxRetries"`
	Error      string            `json:"error,omitempty" bson:"error,omitempty"`
	MessageID  string            `json:"message_id,omitempty" bson:"messageId,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`

	SentAt      *time.Time `json:"sent_at,omitempty" bson:"sentAt,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"created_at" bson:"createdAt"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updatedAt"`
}
