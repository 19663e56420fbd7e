package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu       sync.Mutex
	events   []*Event
	failNext int
	closed   bool
}

func (r *recordingSink) Notify(_ context.Context, event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext > 0 {
		r.failNext--
		return errors.New("delivery failed")
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func TestBufferedSinkDeliversInOrder(t *testing.T) {
	underlying := &recordingSink{}
	sink := NewBufferedSink(underlying, BufferedConfig{})

	for i := 0; i < 5; i++ {
		require.NoError(t, sink.Notify(context.Background(), &Event{SubmissionID: string(rune('a' + i))}))
	}

	waitFor(t, time.Second, func() bool { return underlying.count() == 5 })
	require.NoError(t, sink.Close())
	require.True(t, underlying.closed)

	for i, event := range underlying.events {
		require.Equal(t, string(rune('a'+i)), event.SubmissionID)
	}
}

func TestBufferedSinkDropsOldestWhenFull(t *testing.T) {
	underlying := &recordingSink{}
	sink := NewBufferedSink(underlying, BufferedConfig{QueueSize: 1})

	// Hold the underlying sink's lock so the delivery goroutine blocks inside
	// its Notify for "first"; with a capacity of 1, "third" then evicts the
	// still-queued "second".
	underlying.mu.Lock()
	require.NoError(t, sink.Notify(context.Background(), &Event{SubmissionID: "first"}))
	waitFor(t, time.Second, func() bool { return sink.Stats().QueueSize == 0 })
	require.NoError(t, sink.Notify(context.Background(), &Event{SubmissionID: "second"}))
	require.NoError(t, sink.Notify(context.Background(), &Event{SubmissionID: "third"}))
	require.Equal(t, int64(1), sink.Stats().Dropped)
	underlying.mu.Unlock()

	waitFor(t, time.Second, func() bool { return underlying.count() == 2 })
	require.NoError(t, sink.Close())
	require.Equal(t, "first", underlying.events[0].SubmissionID)
	require.Equal(t, "third", underlying.events[1].SubmissionID)
}

func TestBufferedSinkCountsDeliveryErrors(t *testing.T) {
	underlying := &recordingSink{failNext: 1}
	sink := NewBufferedSink(underlying, BufferedConfig{})

	require.NoError(t, sink.Notify(context.Background(), &Event{SubmissionID: "bad"}))
	waitFor(t, time.Second, func() bool { return sink.Stats().Errors == 1 })
	require.NoError(t, sink.Close())
}

func TestBufferedSinkCloseIsIdempotent(t *testing.T) {
	underlying := &recordingSink{}
	sink := NewBufferedSink(underlying, BufferedConfig{})
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
}

func TestNoopSinkDiscardsEvents(t *testing.T) {
	sink := NewNoopSink()
	require.NoError(t, sink.Notify(context.Background(), &Event{SubmissionID: "x"}))
	require.NoError(t, sink.Close())
}
