package models

import "time"

type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusRetrying   JobStatus = "retrying"
	StatusFailed     JobStatus = "failed"
)

// EventType names a lifecycle transition emitted by the mail queue.
type EventType string

const (
	EventQueued    EventType = "queued"
	EventStarted   EventType = "started"
	EventCompleted EventType = "completed"
	EventRetry     EventType = "retry"
	EventFailed    EventType = "failed"

	// Queue-level events carry no job.
	EventPaused  EventType = "paused"
	EventResumed EventType = "resumed"
	EventCleared EventType = "cleared"
)

// Status maps a job event to the status it leaves the job in.
// Queue-level events map to the empty status.
func (e EventType) Status() JobStatus {
	switch e {
	case EventQueued:
		return StatusQueued
	case EventStarted:
		return StatusProcessing
	case EventCompleted:
		return StatusCompleted
	case EventRetry:
		return StatusRetrying
	case EventFailed:
		return StatusFailed
	}
	return ""
}

// EmailJob is the unit of work flowing through the mail queue.
type EmailJob struct {
	ID       string            `json:"id"`
	To       []string          `json:"to"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Data     map[string]any    `json:"data,omitempty"`
	HTML     string            `json:"-"`
	Text     string            `json:"-"`
	Metadata map[string]string `json:"metadata,omitempty"`

	Priority   int       `json:"priority"`
	MaxRetries int       `json:"max_retries"`
	Attempts   int       `json:"attempts"`
	Status     JobStatus `json:"status"`
	LastError  string    `json:"last_error,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`

	CreatedAt     time.Time `json:"created_at"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	CompletedAt   time.Time `json:"completed_at,omitempty"`
	FailedAt      time.Time `json:"failed_at,omitempty"`
	NextAttemptAt time.Time `json:"next_attempt_at,omitempty"`
}
