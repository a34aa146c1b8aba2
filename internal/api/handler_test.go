package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ShopPulse/internal/deliverylog"
	"ShopPulse/internal/email"
	"ShopPulse/internal/models"
	"ShopPulse/internal/notify"
	"ShopPulse/internal/queue"
)

type fakeNotifier struct {
	mu        sync.Mutex
	paused    bool
	pending   int
	shipments []string
	failFor   string
}

func (f *fakeNotifier) GetQueueStats() queue.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return queue.Stats{Queued: f.pending, IsPaused: f.paused}
}

func (f *fakeNotifier) PauseQueue() {
	f.mu.Lock()
	f.paused = true
	f.mu.Unlock()
}

func (f *fakeNotifier) ResumeQueue() {
	f.mu.Lock()
	f.paused = false
	f.mu.Unlock()
}

func (f *fakeNotifier) ClearQueue() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.pending
	f.pending = 0
	return n
}

func (f *fakeNotifier) SendShippingUpdate(order *models.Order, user *models.User, tracking *models.TrackingInfo, _ ...notify.Option) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.Email == f.failFor {
		return "", errors.New("mail queue is closed")
	}
	f.shipments = append(f.shipments, user.Email+"/"+order.Reference()+"/"+tracking.TrackingNumber)
	return "job-" + order.Reference(), nil
}

type fakeDeliveries struct {
	last deliverylog.Filter
	rows []models.Delivery
	err  error
}

func (f *fakeDeliveries) Query(_ context.Context, filter deliverylog.Filter) ([]models.Delivery, error) {
	f.last = filter
	return f.rows, f.err
}

type fakeDirect struct {
	msg email.Message
	err error
}

func (f *fakeDirect) Send(_ context.Context, msg email.Message) (email.Receipt, error) {
	f.msg = msg
	if f.err != nil {
		return email.Receipt{}, f.err
	}
	return email.Receipt{MessageID: "<direct@shop.example.com>"}, nil
}

type testServer struct {
	mux        http.Handler
	notifier   *fakeNotifier
	deliveries *fakeDeliveries
	direct     *fakeDirect
}

func newTestServer() *testServer {
	ts := &testServer{
		notifier:   &fakeNotifier{pending: 4},
		deliveries: &fakeDeliveries{},
		direct:     &fakeDirect{},
	}
	h := &Handler{
		Notifier:   ts.notifier,
		Deliveries: ts.deliveries,
		Direct:     ts.direct,
		Log:        zap.NewNop(),
	}
	ts.mux = h.Routes()
	return ts
}

func (ts *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHandler_QueueControl(t *testing.T) {
	t.Parallel()

	ts := newTestServer()

	rec := ts.do(http.MethodPost, "/admin/queue/pause", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["is_paused"])

	rec = ts.do(http.MethodGet, "/admin/queue/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, 4.0, body["queued"])
	assert.Equal(t, true, body["is_paused"])

	rec = ts.do(http.MethodPost, "/admin/queue/resume", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["is_paused"])

	rec = ts.do(http.MethodPost, "/admin/queue/clear", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4.0, decode(t, rec)["removed"])

	rec = ts.do(http.MethodGet, "/admin/queue/clear", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandler_ListDeliveries(t *testing.T) {
	t.Parallel()

	ts := newTestServer()
	ts.deliveries.rows = []models.Delivery{{JobID: "job-1", Status: models.StatusFailed}}

	rec := ts.do(http.MethodGet, "/admin/deliveries?status=failed&recipient=%20ann@example.com&template=WELCOME&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, deliverylog.Filter{
		Status:    models.StatusFailed,
		Recipient: "ann@example.com",
		Template:  "WELCOME",
		Limit:     10,
	}, ts.deliveries.last)

	body := decode(t, rec)
	assert.Equal(t, 1.0, body["count"])
	rows := body["deliveries"].([]any)
	assert.Equal(t, "job-1", rows[0].(map[string]any)["job_id"])
}

func TestHandler_ListDeliveries_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		target   string
		storeErr error
		want     int
	}{
		{name: "unknown status", target: "/admin/deliveries?status=lost", want: http.StatusBadRequest},
		{name: "bad limit", target: "/admin/deliveries?limit=ten", want: http.StatusBadRequest},
		{name: "negative limit", target: "/admin/deliveries?limit=-1", want: http.StatusBadRequest},
		{name: "store failure", target: "/admin/deliveries", storeErr: errors.New("down"), want: http.StatusInternalServerError},
		{name: "empty result", target: "/admin/deliveries", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer()
			ts.deliveries.err = tt.storeErr

			rec := ts.do(http.MethodGet, tt.target, "")
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, []any{}, decode(t, rec)["deliveries"])
			}
		})
	}
}

func TestHandler_ShippingUpdates(t *testing.T) {
	t.Parallel()

	ts := newTestServer()
	ts.notifier.failFor = "bob@example.com"

	csv := "Email,Name,OrderID,OrderNumber,Carrier,TrackingNumber,TrackingURL\n" +
		"ann@example.com,Ann,o-1,1001,UPS,1Z1,\n" +
		"bob@example.com,Bob,o-2,1002,UPS,1Z2,\n" +
		",Nobody,o-3,1003,UPS,1Z3,\n"

	rec := ts.do(http.MethodPost, "/admin/shipping-updates", csv)
	require.Equal(t, http.StatusAccepted, rec.Code)

	assert.Equal(t, []string{"ann@example.com/1001/1Z1"}, ts.notifier.shipments)

	body := decode(t, rec)
	queued := body["queued"].([]any)
	require.Len(t, queued, 1)
	assert.Equal(t, "job-1001", queued[0].(map[string]any)["job_id"])

	skipped := body["skipped"].([]any)
	require.Len(t, skipped, 2)
	assert.Equal(t, 4.0, skipped[0].(map[string]any)["line"])
	assert.Equal(t, "mail queue is closed", skipped[1].(map[string]any)["reason"])
}

func TestHandler_ShippingUpdates_Rejected(t *testing.T) {
	t.Parallel()

	ts := newTestServer()

	rec := ts.do(http.MethodPost, "/admin/shipping-updates", "Name\nAnn\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/admin/shipping-updates", "Email,OrderNumber,Carrier,TrackingNumber\n,1,UPS,1Z\n")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, ts.notifier.shipments)
}

func TestHandler_TestEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		body      string
		sendErr   error
		want      int
		messageID string
		html      string
	}{
		{
			name:      "sent",
			body:      `{"to":["ops@example.com"],"subject":"ping","text":"hello"}`,
			want:      http.StatusOK,
			messageID: "<direct@shop.example.com>",
		},
		{name: "invalid json", body: `{`, want: http.StatusBadRequest},
		{name: "no body", body: `{"to":["ops@example.com"],"subject":"ping"}`, want: http.StatusBadRequest},
		{
			name:    "no recipient",
			body:    `{"subject":"ping","text":"hello"}`,
			sendErr: email.ErrNoRecipient,
			want:    http.StatusBadRequest,
		},
		{
			name:      "html sanitized",
			body:      `{"to":["ops@example.com"],"subject":"ping","html":"<p onclick=\"x()\">hi</p><script>alert(1)</script>"}`,
			want:      http.StatusOK,
			messageID: "<direct@shop.example.com>",
			html:      "<p>hi</p>",
		},
		{
			name:    "transport down",
			body:    `{"to":["ops@example.com"],"subject":"ping","html":"<p>hi</p>"}`,
			sendErr: errors.New("dial tcp: connection refused"),
			want:    http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer()
			ts.direct.err = tt.sendErr

			rec := ts.do(http.MethodPost, "/admin/test-email", tt.body)
			require.Equal(t, tt.want, rec.Code)
			if tt.messageID != "" {
				assert.Equal(t, tt.messageID, decode(t, rec)["message_id"])
				assert.Equal(t, []string{"ops@example.com"}, ts.direct.msg.To)
			}
			if tt.html != "" {
				assert.Equal(t, tt.html, ts.direct.msg.HTML)
			}
		})
	}
}
