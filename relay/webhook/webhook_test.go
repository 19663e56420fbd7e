package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/purplesyringa/sunwalker-conductor/relay"
)

func TestNewRequiresURL(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestNewRejectsNegativeRetries(t *testing.T) {
	_, err := New(Config{URL: "http://example.com", Retries: -1})
	require.Error(t, err)
}

func TestNotifyPostsJSONBody(t *testing.T) {
	var received relay.Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink, err := New(Config{URL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Notify(context.Background(), &relay.Event{SubmissionID: "sub-1"}))
	require.Equal(t, "sub-1", received.SubmissionID)
}

func TestNotifyRetriesOn5xxThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink, err := New(Config{URL: srv.URL, Timeout: time.Second, Retries: 2})
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Notify(context.Background(), &relay.Event{SubmissionID: "sub-1"}))
	require.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestNotifyDoesNotRetryOn4xx(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	sink, err := New(Config{URL: srv.URL, Timeout: time.Second, Retries: 3})
	require.NoError(t, err)
	defer sink.Close()

	err = sink.Notify(context.Background(), &relay.Event{SubmissionID: "sub-1"})
	require.Error(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}
