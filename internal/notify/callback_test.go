package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestNewNotifier_TimeoutDefault(t *testing.T) {
	n := NewNotifier(0, testLogger())
	assert.Equal(t, DefaultTimeout, n.client.Timeout)

	n = NewNotifier(3*time.Second, testLogger())
	assert.Equal(t, 3*time.Second, n.client.Timeout)
}

func TestNotifier_Notify_EmptyURLIsNoOp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	n := NewNotifier(time.Second, testLogger())
	n.Notify(context.Background(), "", Payload{JobID: "job-1", Status: "completed"})

	assert.Equal(t, int32(0), calls.Load())
}

func TestNotifier_Notify_DeliversPayload(t *testing.T) {
	var (
		gotContentType string
		gotBody        []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier(time.Second, testLogger())
	n.Notify(context.Background(), server.URL, Payload{
		JobID:          "job-1",
		Status:         "completed",
		Output:         json.RawMessage(`{"answer":"42"}`),
		CallbackParams: json.RawMessage(`{"session":"abc"}`),
	})

	assert.Equal(t, "application/json", gotContentType)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "job-1", payload["job_id"])
	assert.Equal(t, "completed", payload["status"])
	assert.Equal(t, map[string]any{"answer": "42"}, payload["output"])
	assert.Equal(t, map[string]any{"session": "abc"}, payload["callback_params"])

	// No error key on the success path
	assert.NotContains(t, payload, "error")
}

func TestNotifier_Notify_FailurePayloadCarriesError(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer server.Close()

	n := NewNotifier(time.Second, testLogger())
	n.Notify(context.Background(), server.URL, Payload{
		JobID:          "job-2",
		Status:         "failed",
		Error:          "unsupported job type \"batch\"",
		CallbackParams: json.RawMessage(`{}`),
	})

	var payload map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "failed", payload["status"])
	assert.Equal(t, "unsupported job type \"batch\"", payload["error"])
}

func TestNotifier_Notify_UnreachableEndpointIsSwallowed(t *testing.T) {
	n := NewNotifier(200*time.Millisecond, testLogger())

	// Must not panic or propagate anything
	n.Notify(context.Background(), "http://127.0.0.1:1/callback", Payload{
		JobID:  "job-3",
		Status: "completed",
	})
}

func TestNotifier_Notify_Non2xxIsSwallowed(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := NewNotifier(time.Second, testLogger())
	n.Notify(context.Background(), server.URL, Payload{JobID: "job-4", Status: "completed"})

	// Exactly one attempt, no retry
	assert.Equal(t, int32(1), calls.Load())
}
