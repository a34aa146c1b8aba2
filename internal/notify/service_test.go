package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ShopPulse/internal/deliverylog"
	"ShopPulse/internal/email"
	"ShopPulse/internal/models"
	"ShopPulse/internal/queue"
	"ShopPulse/internal/templates"
)

const waitFor = 2 * time.Second

var testSite = templates.Site{
	Name:           "ShopPulse",
	URL:            "https://shop.example.com/",
	SupportEmail:   "support@shop.example.com",
	CurrencySymbol: "$",
}

type captureTransport struct {
	mu       sync.Mutex
	messages []email.Message
	err      error
}

func (c *captureTransport) SendMail(_ context.Context, msg email.Message) (email.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	if c.err != nil {
		return email.Receipt{}, c.err
	}
	return email.Receipt{MessageID: "<id@shop.example.com>"}, nil
}

func (c *captureTransport) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func (c *captureTransport) last() email.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages[len(c.messages)-1]
}

type harness struct {
	svc       *Service
	queue     *queue.Queue
	log       *deliverylog.Log
	store     *deliverylog.MemoryStore
	transport *captureTransport
}

func newHarness(t *testing.T, transport *captureTransport, opts ...queue.Option) *harness {
	t.Helper()

	reg, err := templates.DefaultRegistry()
	require.NoError(t, err)
	resolver, err := templates.NewResolver(reg, templates.NewDefaultRenderer(testSite), testSite)
	require.NoError(t, err)

	opts = append([]queue.Option{queue.WithBackoff(queue.Linear{Base: time.Millisecond})}, opts...)
	q := queue.New(transport, opts...)

	store := deliverylog.NewMemoryStore()
	log := deliverylog.New(store, nil, time.Second)
	recorder := deliverylog.NewRecorder(log, 64, nil)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = q.Close(ctx)
		recorder.Close()
	})

	return &harness{
		svc:       New(resolver, q, recorder, testSite, nil),
		queue:     q,
		log:       log,
		store:     store,
		transport: transport,
	}
}

func testUser() *models.User {
	return &models.User{ID: "u-1", Name: "Ann", Email: "ann@example.com"}
}

func testOrder() *models.Order {
	return &models.Order{
		ID:          "64f1a2b3c4d5e6f7a8b9c0d1",
		OrderNumber: "1001",
		Items:       []models.OrderItem{{Name: "Mug", Quantity: 2, Price: 12.5}},
		Total:       25,
	}
}

func TestService_SendOrderConfirmation(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &captureTransport{})

	id, err := h.svc.SendOrderConfirmation(testOrder(), testUser())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool { return h.svc.GetQueueStats().Success == 1 }, waitFor, time.Millisecond)

	msg := h.transport.last()
	assert.Equal(t, []string{"ann@example.com"}, msg.To)
	assert.Equal(t, "ShopPulse - Order Confirmation #1001", msg.Subject)
	assert.Contains(t, msg.HTML, "Mug x 2: $12.50")
	assert.Contains(t, msg.Text, "Total: $25.00")

	require.Eventually(t, func() bool {
		got, err := h.log.ByStatus(context.Background(), models.StatusCompleted, 0)
		return err == nil && len(got) == 1
	}, waitFor, time.Millisecond)

	got, err := h.log.ByRecipient(context.Background(), "ann@example.com", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].JobID)
	assert.Equal(t, 5, got[0].Priority)
	assert.Equal(t, "<id@shop.example.com>", got[0].MessageID)
	assert.Equal(t, map[string]string{
		"kind":    templates.OrderConfirmation,
		"userId":  "u-1",
		"orderId": "64f1a2b3c4d5e6f7a8b9c0d1",
	}, got[0].Metadata)
}

func TestService_PasswordResetExhaustsRetries(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &captureTransport{err: errors.New("smtp: 451 temporary failure")})

	id, err := h.svc.SendPasswordReset(testUser(), "tok en", WithPriority(5), WithRetries(3))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.svc.GetQueueStats().Failed == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, 4, h.transport.count())
	assert.Contains(t, h.transport.last().Text, "https://shop.example.com/reset-password?token=tok+en")

	var record models.Delivery
	require.Eventually(t, func() bool {
		got, err := h.log.ByStatus(context.Background(), models.StatusFailed, 0)
		if err != nil || len(got) != 1 {
			return false
		}
		record = got[0]
		return true
	}, waitFor, time.Millisecond)

	assert.Equal(t, id, record.JobID)
	assert.Equal(t, 4, record.Attempts)
	assert.Equal(t, 3, record.MaxRetries)
	assert.Equal(t, 5, record.Priority)
	assert.NotEmpty(t, record.Error)
	assert.Equal(t, 1, h.store.Len())

	stats := h.svc.GetQueueStats()
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 3, stats.Retries)
}

func TestService_ValidationErrorsAreNotQueued(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &captureTransport{})

	tests := []struct {
		name    string
		send    func() (string, error)
		wantErr error
		fields  []string
	}{
		{
			name:    "missing order and user",
			send:    func() (string, error) { return h.svc.SendOrderConfirmation(nil, nil) },
			wantErr: templates.ErrMissingRequiredField,
			fields:  []string{"order", "user"},
		},
		{
			name:    "missing error message",
			send:    func() (string, error) { return h.svc.SendPaymentFailed(testOrder(), testUser(), "") },
			wantErr: templates.ErrMissingRequiredField,
			fields:  []string{"errorMessage"},
		},
		{
			name:    "missing tracking",
			send:    func() (string, error) { return h.svc.SendShippingUpdate(testOrder(), testUser(), nil) },
			wantErr: templates.ErrMissingRequiredField,
			fields:  []string{"tracking"},
		},
		{
			name: "no email address",
			send: func() (string, error) {
				return h.svc.SendWelcome(&models.User{Name: "Ann"})
			},
			wantErr: queue.ErrNoRecipient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := tt.send()
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, id)

			var missing *templates.MissingFieldsError
			if errors.As(err, &missing) {
				assert.Equal(t, tt.fields, missing.Fields)
			}
		})
	}

	assert.Equal(t, 0, h.queue.Stats().Total)
}

func TestService_TemplatePriorities(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &captureTransport{})
	h.svc.PauseQueue()

	tracking := &models.TrackingInfo{Carrier: "UPS", TrackingNumber: "1Z999"}

	_, err := h.svc.SendWelcome(testUser())
	require.NoError(t, err)
	_, err = h.svc.SendShippingUpdate(testOrder(), testUser(), tracking)
	require.NoError(t, err)
	_, err = h.svc.SendVerificationEmail(testUser(), "abc")
	require.NoError(t, err)
	_, err = h.svc.SendPaymentFailed(testOrder(), testUser(), "card declined")
	require.NoError(t, err)

	assert.Equal(t, 4, h.svc.GetQueueStats().Queued)
	assert.True(t, h.svc.GetQueueStats().IsPaused)

	h.svc.ResumeQueue()
	require.Eventually(t, func() bool { return h.svc.GetQueueStats().Success == 4 }, waitFor, time.Millisecond)

	h.transport.mu.Lock()
	var subjects []string
	for _, m := range h.transport.messages {
		subjects = append(subjects, m.Subject)
	}
	h.transport.mu.Unlock()

	// With three slots the first three dispatch together, in priority order.
	require.Len(t, subjects, 4)
	assert.True(t, strings.HasPrefix(subjects[3], "Welcome to ShopPulse"), "lowest priority dispatches last: %v", subjects)
}

func TestService_ClearQueue(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &captureTransport{})
	h.svc.PauseQueue()

	for i := 0; i < 3; i++ {
		_, err := h.svc.SendWelcome(testUser())
		require.NoError(t, err)
	}

	assert.Equal(t, 3, h.svc.ClearQueue())
	assert.Equal(t, 0, h.svc.GetQueueStats().Queued)
}
