// Package relay publishes submission-completion notifications to
// downstream systems. It generalizes the event-bus adapter boundary to the
// conductor's domain: instead of a scraper run finishing, the event here is
// one submission reaching a final state (every test resolved, or the whole
// submission failed outright).
package relay

import (
	"context"
	"time"
)

// Event is the payload published when a submission finishes.
type Event struct {
	SubmissionID string    `json:"submission_id"`
	ProblemID    string    `json:"problem_id"`
	RevisionID   string    `json:"revision_id"`
	Outcome      string    `json:"outcome"` // "judged", "failed"
	FailureKind  string    `json:"failure_kind,omitempty"`
	FailureMsg   string    `json:"failure_message,omitempty"`
	TestsTotal   int       `json:"tests_total"`
	TestsIgnored int       `json:"tests_ignored"`
	Timestamp    time.Time `json:"timestamp"`
}

// Sink publishes submission-completion events to a downstream system.
// Implementations must be safe for concurrent use by multiple submissions
// finishing at once.
type Sink interface {
	// Notify sends a submission-completion event. Must respect context
	// cancellation and deadlines.
	Notify(ctx context.Context, event *Event) error

	// Close releases sink resources.
	Close() error
}

// NoopSink discards every event. Used when no relay destination is
// configured.
type NoopSink struct{}

// NewNoopSink creates a sink that discards every event.
func NewNoopSink() *NoopSink { return &NoopSink{} }

// Notify does nothing.
func (*NoopSink) Notify(context.Context, *Event) error { return nil }

// Close does nothing.
func (*NoopSink) Close() error { return nil }

var _ Sink = (*NoopSink)(nil)
