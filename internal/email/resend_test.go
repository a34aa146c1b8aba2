package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResendTransport_SendMail(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"4ef9a417-02e9-4d39-ad75-9611e0fcc33c"}`))
	}))
	t.Cleanup(srv.Close)

	tr := NewResendTransport("re_test", "noreply@shop.example.com")
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	tr.client.BaseURL = base

	receipt, err := tr.SendMail(context.Background(), Message{
		To:      []string{"ann@example.com"},
		Subject: "Welcome",
		HTML:    "<p>Hi</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "4ef9a417-02e9-4d39-ad75-9611e0fcc33c", receipt.MessageID)
	assert.Equal(t, "noreply@shop.example.com", got["from"])
	assert.Equal(t, "Welcome", got["subject"])
}

func TestResendTransport_NoRecipient(t *testing.T) {
	t.Parallel()

	tr := NewResendTransport("re_test", "noreply@shop.example.com")
	_, err := tr.SendMail(context.Background(), Message{Subject: "x"})
	require.ErrorIs(t, err, ErrNoRecipient)
}
