package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"ShopPulse/internal/csvparser"
	"ShopPulse/internal/deliverylog"
	"ShopPulse/internal/email"
	"ShopPulse/internal/models"
	"ShopPulse/internal/notify"
	"ShopPulse/internal/queue"
)

const defaultMaxUpload = 5 << 20

type Notifier interface {
	GetQueueStats() queue.Stats
	PauseQueue()
	ResumeQueue()
	ClearQueue() int
	SendShippingUpdate(order *models.Order, user *models.User, tracking *models.TrackingInfo, opts ...notify.Option) (string, error)
}

type Deliveries interface {
	Query(ctx context.Context, f deliverylog.Filter) ([]models.Delivery, error)
}

type DirectSender interface {
	Send(ctx context.Context, msg email.Message) (email.Receipt, error)
}

// testEmailPolicy strips scripts, handlers and unsafe URLs from operator
// supplied HTML before it reaches a mailbox.
var testEmailPolicy = bluemonday.UGCPolicy()

// Handler serves the admin endpoints.
type Handler struct {
	Notifier   Notifier
	Deliveries Deliveries
	Direct     DirectSender
	Log        *zap.Logger

	// MaxUploadBytes bounds the shipping-update CSV body.
	MaxUploadBytes int64
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Route("/admin", func(r chi.Router) {
		r.Route("/queue", func(r chi.Router) {
			r.Get("/stats", h.QueueStats)
			r.Post("/pause", h.PauseQueue)
			r.Post("/resume", h.ResumeQueue)
			r.Post("/clear", h.ClearQueue)
		})
		r.Get("/deliveries", h.ListDeliveries)
		r.Post("/shipping-updates", h.ShippingUpdates)
		r.Post("/test-email", h.TestEmail)
	})

	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		h.Log.Info("admin request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (h *Handler) QueueStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Notifier.GetQueueStats())
}

func (h *Handler) PauseQueue(w http.ResponseWriter, r *http.Request) {
	h.Notifier.PauseQueue()
	writeJSON(w, http.StatusOK, h.Notifier.GetQueueStats())
}

func (h *Handler) ResumeQueue(w http.ResponseWriter, r *http.Request) {
	h.Notifier.ResumeQueue()
	writeJSON(w, http.StatusOK, h.Notifier.GetQueueStats())
}

func (h *Handler) ClearQueue(w http.ResponseWriter, r *http.Request) {
	removed := h.Notifier.ClearQueue()
	h.Log.Info("queue cleared by admin", zap.Int("removed", removed))
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := deliverylog.Filter{
		Status:    models.JobStatus(q.Get("status")),
		Recipient: strings.TrimSpace(q.Get("recipient")),
		Template:  q.Get("template"),
	}

	switch f.Status {
	case "", models.StatusQueued, models.StatusProcessing, models.StatusCompleted,
		models.StatusRetrying, models.StatusFailed:
	default:
		writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(string(f.Status)))
		return
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		f.Limit = limit
	}

	deliveries, err := h.Deliveries.Query(r.Context(), f)
	if err != nil {
		h.Log.Error("failed to query deliveries", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to query deliveries")
		return
	}
	if deliveries == nil {
		deliveries = []models.Delivery{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":      len(deliveries),
		"deliveries": deliveries,
	})
}

type queuedShipment struct {
	Line  int    `json:"line"`
	JobID string `json:"job_id"`
}

func (h *Handler) ShippingUpdates(w http.ResponseWriter, r *http.Request) {
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUpload
	}
	body := http.MaxBytesReader(w, r.Body, limit)

	shipments, skipped, err := csvparser.ParseShipments(body, 0)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	queued := make([]queuedShipment, 0, len(shipments))
	for _, s := range shipments {
		id, err := h.Notifier.SendShippingUpdate(&s.Order, &s.User, &s.Tracking)
		if err != nil {
			skipped = append(skipped, csvparser.RowError{Line: s.Line, Reason: err.Error()})
			continue
		}
		queued = append(queued, queuedShipment{Line: s.Line, JobID: id})
	}
	if skipped == nil {
		skipped = []csvparser.RowError{}
	}

	h.Log.Info("shipping updates uploaded",
		zap.Int("queued", len(queued)),
		zap.Int("skipped", len(skipped)),
	)

	status := http.StatusAccepted
	if len(queued) == 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]any{
		"queued":  queued,
		"skipped": skipped,
	})
}

type testEmailRequest struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

// TestEmail sends one message synchronously through the direct sender.
func (h *Handler) TestEmail(w http.ResponseWriter, r *http.Request) {
	var req testEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Subject == "" || (req.HTML == "" && req.Text == "") {
		writeError(w, http.StatusBadRequest, "subject and a body are required")
		return
	}

	receipt, err := h.Direct.Send(r.Context(), email.Message{
		To:      req.To,
		Subject: req.Subject,
		HTML:    testEmailPolicy.Sanitize(req.HTML),
		Text:    req.Text,
	})
	if err != nil {
		if errors.Is(err, email.ErrNoRecipient) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.Log.Error("test email failed", zap.Strings("to", req.To), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message_id": receipt.MessageID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
