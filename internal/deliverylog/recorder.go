package deliverylog

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"ShopPulse/internal/models"
)

type record struct {
	job   models.EmailJob
	event models.EventType
	err   error
}

// Recorder feeds events to a Log from a single background goroutine so that
// callers never wait on the database and events for a job are written in
// the order they were recorded.
type Recorder struct {
	log     *Log
	zap     *zap.Logger
	records chan record
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewRecorder(l *Log, buffer int, logger *zap.Logger) *Recorder {
	if buffer <= 0 {
		buffer = 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Recorder{
		log:     l,
		zap:     logger,
		records: make(chan record, buffer),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Record queues an event for writing. When the buffer is full the event is
// dropped and logged.
func (r *Recorder) Record(job models.EmailJob, event models.EventType, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return
	}

	select {
	case r.records <- record{job: job, event: event, err: err}:
	default:
		r.zap.Error("delivery log buffer full, dropping event",
			zap.String("job_id", job.ID),
			zap.String("event", string(event)),
		)
	}
}

// Close stops accepting events and waits until everything queued so far
// has been written.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.records)
	}
	r.mu.Unlock()

	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)

	for rec := range r.records {
		r.log.LogEvent(context.Background(), rec.job, rec.event, rec.err)
	}
}
