package relay

import (
	"context"
	"sync"

	"github.com/purplesyringa/sunwalker-conductor/log"
)

// Stats is an observability snapshot of a BufferedSink.
type Stats struct {
	Delivered int64
	Dropped   int64
	Errors    int64
	QueueSize int
}

// BufferedConfig configures a BufferedSink.
type BufferedConfig struct {
	// QueueSize bounds the number of pending events. Zero means 256.
	QueueSize int

	// Logger is an optional logger for delivery failures and drops.
	Logger *log.Logger
}

// BufferedSink delivers events to an underlying Sink from a single
// background goroutine, decoupling submission-finalization from relay
// latency. Unlike the ingestion policies it is modeled on, a relay event
// carries no must-not-drop obligation: if the queue is full the oldest
// pending event is dropped to make room, since the conductor's own state
// (spec §3) is the durable record and the relay is a best-effort fanout.
type BufferedSink struct {
	sink   Sink
	logger *log.Logger

	mu    sync.Mutex
	queue []*Event
	cap   int

	stats Stats

	notify chan struct{}
	done   chan struct{}
	closed bool
}

// NewBufferedSink creates a BufferedSink wrapping sink and starts its
// delivery goroutine.
func NewBufferedSink(sink Sink, cfg BufferedConfig) *BufferedSink {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	b := &BufferedSink{
		sink:   sink,
		logger: cfg.Logger,
		cap:    cfg.QueueSize,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go b.run()
	return b
}

// Notify enqueues event for delivery, dropping the oldest queued event if
// the queue is full.
func (b *BufferedSink) Notify(_ context.Context, event *Event) error {
	b.mu.Lock()
	if len(b.queue) >= b.cap {
		b.queue = b.queue[1:]
		b.stats.Dropped++
		b.logDrop()
	}
	b.queue = append(b.queue, event)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return nil
}

// Close stops the delivery goroutine after draining the current queue, and
// closes the underlying sink.
func (b *BufferedSink) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	close(b.done)
	<-b.drained()
	return b.sink.Close()
}

// drained signals once the queue has been fully flushed after Close.
func (b *BufferedSink) drained() <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		for {
			b.mu.Lock()
			empty := len(b.queue) == 0
			b.mu.Unlock()
			if empty {
				close(ch)
				return
			}
			b.deliverOne()
		}
	}()
	return ch
}

func (b *BufferedSink) run() {
	for {
		select {
		case <-b.notify:
			b.drainQueue()
		case <-b.done:
			return
		}
	}
}

func (b *BufferedSink) drainQueue() {
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}
		b.mu.Unlock()
		if !b.deliverOne() {
			return
		}
	}
}

// deliverOne pops and delivers the head of the queue. Returns false if the
// queue was empty.
func (b *BufferedSink) deliverOne() bool {
	b.mu.Lock()
	if len(b.queue) == 0 {
		b.mu.Unlock()
		return false
	}
	event := b.queue[0]
	b.queue = b.queue[1:]
	b.mu.Unlock()

	if err := b.sink.Notify(context.Background(), event); err != nil {
		b.mu.Lock()
		b.stats.Errors++
		b.mu.Unlock()
		b.logFailure(event, err)
		return true
	}

	b.mu.Lock()
	b.stats.Delivered++
	b.mu.Unlock()
	return true
}

// Stats returns a snapshot of delivery counters.
func (b *BufferedSink) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.QueueSize = len(b.queue)
	return s
}

func (b *BufferedSink) logDrop() {
	if b.logger == nil {
		return
	}
	b.logger.Warn("relay event dropped", map[string]any{"reason": "queue_full"})
}

func (b *BufferedSink) logFailure(event *Event, err error) {
	if b.logger == nil {
		return
	}
	b.logger.Error("relay delivery failed", map[string]any{
		"submission_id": event.SubmissionID,
		"error":         err.Error(),
	})
}

var _ Sink = (*BufferedSink)(nil)
