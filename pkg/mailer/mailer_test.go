package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendSetsAuthAndIdempotencyHeaders(t *testing.T) {
	var gotAuth, gotDedup string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotDedup = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-key", "OmniNet", "hello@omninet.app", nil)
	err := c.Send(context.Background(), Message{
		To:       "visitor@example.com",
		Subject:  "Booking received",
		HTML:     "<p>hi</p>",
		Tags:     []string{"type:request_confirmation", "booking:abc"},
		DedupKey: "request-confirmation:abc",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.Equal(t, "request-confirmation:abc", gotDedup)
	assert.Equal(t, "OmniNet <hello@omninet.app>", gotBody["from"])
	assert.Equal(t, "visitor@example.com", gotBody["to"])
}

func TestSendStatusErrorClassification(t *testing.T) {
	cases := []struct {
		code      int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusUnprocessableEntity, false},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.code)
		}))
		c := NewClient(srv.URL, "k", "", "hello@omninet.app", nil)
		err := c.Send(context.Background(), Message{To: "a@b.c", Subject: "s", HTML: "h"})
		srv.Close()

		require.Error(t, err, "status %d", tc.code)
		assert.Equal(t, tc.retryable, IsRetryable(err), "status %d", tc.code)
	}
}

func TestIsRetryableTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // closed server forces a connection error

	c := NewClient(srv.URL, "k", "", "hello@omninet.app", nil)
	err := c.Send(context.Background(), Message{To: "a@b.c", Subject: "s", HTML: "h"})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}
