package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ShopPulse/internal/models"
	"ShopPulse/internal/queue"
)

// Metrics holds the mail queue collectors. Counters are fed from queue
// events; the gauges read the queue's stats at scrape time.
type Metrics struct {
	EmailsQueued   *prometheus.CounterVec
	EmailsSent     *prometheus.CounterVec
	EmailFailures  *prometheus.CounterVec
	EmailRetries   *prometheus.CounterVec
	Attempts       *prometheus.HistogramVec
	SendDuration   *prometheus.HistogramVec
	QueueCleared   prometheus.Counter
	QueuePending   prometheus.GaugeFunc
	QueueInFlight  prometheus.GaugeFunc
	QueueScheduled prometheus.GaugeFunc
	QueuePaused    prometheus.GaugeFunc
}

// New registers the collectors with reg. stats is read on every scrape.
func New(reg prometheus.Registerer, stats func() queue.Stats) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		EmailsQueued: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emails_queued_total",
				Help: "Total emails accepted by the mail queue",
			},
			[]string{"template"},
		),
		EmailsSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emails_sent_total",
				Help: "Total emails sent",
			},
			[]string{"template"},
		),
		EmailFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "email_failures_total",
				Help: "Total emails failed after exhausting retries",
			},
			[]string{"template"},
		),
		EmailRetries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "email_retries_total",
				Help: "Total send attempts scheduled for retry",
			},
			[]string{"template"},
		),
		Attempts: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "email_attempts",
				Help:    "Send attempts per email that reached a final state",
				Buckets: []float64{1, 2, 3, 4, 5, 8},
			},
			[]string{"status"},
		),
		SendDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "email_send_duration_seconds",
				Help:    "Duration of successful transport calls",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"template"},
		),
		QueueCleared: f.NewCounter(
			prometheus.CounterOpts{
				Name: "email_queue_cleared_total",
				Help: "Total pending emails dropped by clearing the queue",
			},
		),
		QueuePending: f.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "email_queue_pending",
				Help: "Emails waiting for a send slot",
			},
			func() float64 { return float64(stats().Queued) },
		),
		QueueInFlight: f.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "email_queue_in_flight",
				Help: "Emails currently being sent",
			},
			func() float64 { return float64(stats().InProgress) },
		),
		QueueScheduled: f.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "email_queue_scheduled_retries",
				Help: "Emails waiting out a retry delay",
			},
			func() float64 { return float64(stats().Scheduled) },
		),
		QueuePaused: f.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "email_queue_paused",
				Help: "1 while dispatch is paused",
			},
			func() float64 {
				if stats().IsPaused {
					return 1
				}
				return 0
			},
		),
	}
}

// Observe is a queue listener.
func (m *Metrics) Observe(ev queue.Event) {
	job := ev.Job

	switch ev.Type {
	case models.EventQueued:
		m.EmailsQueued.WithLabelValues(job.Template).Inc()
	case models.EventCompleted:
		m.EmailsSent.WithLabelValues(job.Template).Inc()
		m.Attempts.WithLabelValues(string(models.StatusCompleted)).Observe(float64(job.Attempts))
		if !job.StartedAt.IsZero() && !job.CompletedAt.IsZero() {
			m.SendDuration.WithLabelValues(job.Template).Observe(job.CompletedAt.Sub(job.StartedAt).Seconds())
		}
	case models.EventRetry:
		m.EmailRetries.WithLabelValues(job.Template).Inc()
	case models.EventFailed:
		m.EmailFailures.WithLabelValues(job.Template).Inc()
		m.Attempts.WithLabelValues(string(models.StatusFailed)).Observe(float64(job.Attempts))
	case models.EventCleared:
		m.QueueCleared.Add(float64(ev.Cleared))
	}
}
