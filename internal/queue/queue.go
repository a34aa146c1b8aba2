package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ShopPulse/internal/email"
	"ShopPulse/internal/models"
)

var (
	ErrClosed      = errors.New("mail queue is closed")
	ErrNoRecipient = errors.New("job must have at least one recipient")
)

const (
	DefaultConcurrency = 3
	DefaultRetries     = 3
	DefaultBaseDelay   = time.Second
)

// Event is delivered to listeners after a state transition. Job is a
// snapshot; it is the zero value for queue-level events.
type Event struct {
	Type    models.EventType
	Job     models.EmailJob
	Err     error
	Cleared int
}

type Listener func(Event)

// Stats is a point-in-time view of the queue.
type Stats struct {
	Total      int  `json:"total"`
	Success    int  `json:"success"`
	Failed     int  `json:"failed"`
	Retries    int  `json:"retries"`
	Queued     int  `json:"queued"`
	InProgress int  `json:"in_progress"`
	Scheduled  int  `json:"scheduled"`
	IsPaused   bool `json:"is_paused"`
}

// Request describes a message to enqueue.
type Request struct {
	To       []string
	Subject  string
	Template string
	Data     map[string]any
	HTML     string
	Text     string
	Metadata map[string]string
}

type entry struct {
	job   *models.EmailJob
	order int64
}

// retry is a job waiting out its backoff. timer is nil until the retry
// event has been emitted.
type retry struct {
	job   *models.EmailJob
	timer *time.Timer
}

// Queue is an in-memory priority mail queue. At most concurrency jobs are
// sent at once; the rest wait in priority order, FIFO among equals.
// Failed sends are retried after a backoff until the job's retry budget is
// spent. Nothing survives a restart.
type Queue struct {
	transport      email.Transport
	concurrency    int
	defaultRetries int
	backoff        Backoff
	sendTimeout    time.Duration
	log            *zap.Logger
	now            func() time.Time

	mu         sync.Mutex
	pending    []entry
	nextOrder  int64
	frontOrder int64
	inProgress int
	paused     bool
	closed     bool
	scheduled  map[string]*retry
	stats      Stats

	listenersMu sync.RWMutex
	listeners   []Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(transport email.Transport, opts ...Option) *Queue {
	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		transport:      transport,
		concurrency:    DefaultConcurrency,
		defaultRetries: DefaultRetries,
		backoff:        Linear{Base: DefaultBaseDelay},
		log:            zap.NewNop(),
		now:            time.Now,
		scheduled:      make(map[string]*retry),
		ctx:            ctx,
		cancel:         cancel,
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Subscribe registers a listener for every subsequent event. Listeners run
// synchronously on the goroutine that made the transition, so they should
// not block.
func (q *Queue) Subscribe(l Listener) {
	q.listenersMu.Lock()
	defer q.listenersMu.Unlock()
	q.listeners = append(q.listeners, l)
}

// Add enqueues a job and returns its id immediately. Sending happens
// asynchronously.
func (q *Queue) Add(req Request, opts ...AddOption) (string, error) {
	if len(req.To) == 0 {
		return "", ErrNoRecipient
	}

	params := addParams{retries: q.defaultRetries}
	for _, opt := range opts {
		opt(&params)
	}
	if params.retries < 0 {
		params.retries = 0
	}

	job := &models.EmailJob{
		ID:         uuid.NewString(),
		To:         req.To,
		Subject:    req.Subject,
		Template:   req.Template,
		Data:       req.Data,
		HTML:       req.HTML,
		Text:       req.Text,
		Metadata:   req.Metadata,
		Priority:   params.priority,
		MaxRetries: params.retries,
		Status:     models.StatusQueued,
		CreatedAt:  q.now(),
	}

	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return "", ErrClosed
	}

	// The queued event goes out before the job becomes visible to
	// dispatchers so listeners always see it ahead of started.
	q.emit(Event{Type: models.EventQueued, Job: *job})

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrClosed
	}
	q.insert(entry{job: job, order: q.nextOrder})
	q.nextOrder++
	q.stats.Total++
	q.mu.Unlock()

	q.log.Debug("email queued",
		zap.String("job_id", job.ID),
		zap.String("template", job.Template),
		zap.Int("priority", job.Priority),
	)

	q.process()

	return job.ID, nil
}

// process dispatches pending jobs while a slot is free and the queue is
// running. A job leaves the pending list under the lock before its send
// starts, so concurrent calls never dispatch the same job twice.
func (q *Queue) process() {
	for {
		q.mu.Lock()
		if q.closed || q.paused || q.inProgress >= q.concurrency || len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}

		job := q.pending[0].job
		q.pending[0] = entry{}
		q.pending = q.pending[1:]

		q.inProgress++
		job.Status = models.StatusProcessing
		job.Attempts++
		job.StartedAt = q.now()
		snapshot := *job

		q.wg.Add(1)
		q.mu.Unlock()

		q.emit(Event{Type: models.EventStarted, Job: snapshot})

		go q.send(job)
	}
}

func (q *Queue) send(job *models.EmailJob) {
	defer q.wg.Done()

	receipt, err := q.deliver(job)

	q.mu.Lock()
	q.inProgress--

	var ev Event
	var delay time.Duration

	switch {
	case err == nil:
		job.Status = models.StatusCompleted
		job.CompletedAt = q.now()
		job.MessageID = receipt.MessageID
		job.LastError = ""
		q.stats.Success++
		ev = Event{Type: models.EventCompleted}

	case job.Attempts <= job.MaxRetries && !q.closed:
		delay = q.backoff.Delay(job.Attempts)
		job.Status = models.StatusRetrying
		job.LastError = err.Error()
		job.Priority++
		job.NextAttemptAt = q.now().Add(delay)
		q.scheduled[job.ID] = &retry{job: job}
		q.stats.Retries++
		ev = Event{Type: models.EventRetry, Err: err}

	default:
		job.Status = models.StatusFailed
		job.FailedAt = q.now()
		job.LastError = err.Error()
		q.stats.Failed++
		ev = Event{Type: models.EventFailed, Err: err}
	}

	ev.Job = *job
	q.mu.Unlock()

	switch ev.Type {
	case models.EventCompleted:
		q.log.Info("email sent",
			zap.String("job_id", job.ID),
			zap.String("template", job.Template),
			zap.Int("attempt", ev.Job.Attempts),
		)
	case models.EventRetry:
		q.log.Warn("email send failed, retrying",
			zap.String("job_id", job.ID),
			zap.Int("attempt", ev.Job.Attempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	case models.EventFailed:
		q.log.Error("email send failed permanently",
			zap.String("job_id", job.ID),
			zap.String("template", job.Template),
			zap.Int("attempts", ev.Job.Attempts),
			zap.Error(err),
		)
	}

	q.emit(ev)

	if ev.Type == models.EventRetry {
		q.schedule(job, delay)
	}

	q.process()
}

// deliver calls the transport, turning a panic into a failed attempt.
func (q *Queue) deliver(job *models.EmailJob) (receipt email.Receipt, err error) {
	ctx := q.ctx
	if q.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.sendTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transport panic: %v", r)
		}
	}()

	return q.transport.SendMail(ctx, email.Message{
		To:      job.To,
		Subject: job.Subject,
		HTML:    job.HTML,
		Text:    job.Text,
	})
}

// schedule returns job to the pending list once delay has passed. While
// waiting it occupies neither a slot nor a place in the pending list.
func (q *Queue) schedule(job *models.EmailJob, delay time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	r, ok := q.scheduled[job.ID]
	if !ok {
		return
	}

	r.timer = time.AfterFunc(delay, func() {
		q.requeue(job)
	})
}

func (q *Queue) requeue(job *models.EmailJob) {
	q.mu.Lock()
	if _, ok := q.scheduled[job.ID]; !ok || q.closed {
		q.mu.Unlock()
		return
	}
	delete(q.scheduled, job.ID)

	job.Status = models.StatusQueued
	q.frontOrder--
	q.insert(entry{job: job, order: q.frontOrder})
	q.mu.Unlock()

	q.process()
}

// insert keeps pending sorted by priority descending, then order ascending.
// Must be called with mu held.
func (q *Queue) insert(e entry) {
	i := sort.Search(len(q.pending), func(i int) bool {
		p := q.pending[i]
		if p.job.Priority != e.job.Priority {
			return p.job.Priority < e.job.Priority
		}
		return p.order > e.order
	})

	q.pending = append(q.pending, entry{})
	copy(q.pending[i+1:], q.pending[i:])
	q.pending[i] = e
}

// Pause stops new dispatches. Jobs already sending are not affected.
func (q *Queue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()

	q.log.Info("mail queue paused")
	q.emit(Event{Type: models.EventPaused})
}

func (q *Queue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()

	q.log.Info("mail queue resumed")
	q.emit(Event{Type: models.EventResumed})
	q.process()
}

// Clear drops every job still waiting in the pending list and returns how
// many were removed. Sending and scheduled retries are kept.
func (q *Queue) Clear() int {
	q.mu.Lock()
	n := len(q.pending)
	q.pending = nil
	q.mu.Unlock()

	q.log.Info("mail queue cleared", zap.Int("removed", n))
	q.emit(Event{Type: models.EventCleared, Cleared: n})
	return n
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := q.stats
	s.Queued = len(q.pending)
	s.InProgress = q.inProgress
	s.Scheduled = len(q.scheduled)
	s.IsPaused = q.paused
	return s
}

// Close stops dispatching and waits for in-flight sends to finish or ctx to
// expire, whichever comes first. Pending jobs are discarded. Jobs waiting on
// a retry are failed with ErrClosed.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true

	abandoned := make([]models.EmailJob, 0, len(q.scheduled))
	for id, r := range q.scheduled {
		if r.timer != nil {
			r.timer.Stop()
		}
		delete(q.scheduled, id)

		r.job.Status = models.StatusFailed
		r.job.FailedAt = q.now()
		r.job.LastError = ErrClosed.Error()
		q.stats.Failed++
		abandoned = append(abandoned, *r.job)
	}
	dropped := len(q.pending)
	q.pending = nil
	q.mu.Unlock()

	if dropped > 0 {
		q.log.Warn("mail queue closed with pending jobs", zap.Int("dropped", dropped))
	}
	for _, job := range abandoned {
		q.emit(Event{Type: models.EventFailed, Job: job, Err: ErrClosed})
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		return ctx.Err()
	}
}

func (q *Queue) emit(ev Event) {
	q.listenersMu.RLock()
	listeners := q.listeners
	q.listenersMu.RUnlock()

	for _, l := range listeners {
		q.call(l, ev)
	}
}

func (q *Queue) call(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("queue listener panicked",
				zap.String("event", string(ev.Type)),
				zap.String("job_id", ev.Job.ID),
				zap.Any("panic", r),
			)
		}
	}()
	l(ev)
}
