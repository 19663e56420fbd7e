// Package session implements the conductor/invoker state machine of spec
// §4.6: per-connection handshake and message dispatch, submission lifecycle,
// and dependency-driven cancellation fan-out. It holds no transport code —
// see the transport package for the websocket accept loop that drives it.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/purplesyringa/sunwalker-conductor/blob"
	"github.com/purplesyringa/sunwalker-conductor/metrics"
	"github.com/purplesyringa/sunwalker-conductor/relay"
	"github.com/purplesyringa/sunwalker-conductor/types"
	"github.com/purplesyringa/sunwalker-conductor/wire"
)

// Conductor is the process-wide supervisor owning every connected invoker
// and in-flight submission. A single instance is created at startup and
// shared by every per-connection task; all its state is guarded by an
// internal mutex rather than being a package-level global (spec §9).
type Conductor struct {
	mu sync.RWMutex

	invokers    map[string]*Invoker
	submissions map[string]*Submission
	revisions   map[string]map[string]*types.ProblemRevision // problem id -> revision id -> revision

	store   blob.Store
	relay   relay.Sink
	metrics *metrics.Collector
}

// NewConductor creates an empty conductor backed by store, publishing
// submission-completion notifications to sink. Counters accumulate on
// collector; a nil collector is a no-op.
func NewConductor(store blob.Store, sink relay.Sink, collector *metrics.Collector) *Conductor {
	return &Conductor{
		invokers:    make(map[string]*Invoker),
		submissions: make(map[string]*Submission),
		revisions:   make(map[string]map[string]*types.ProblemRevision),
		store:       store,
		relay:       sink,
		metrics:     collector,
	}
}

// PublishRevision registers a built problem revision, making it available
// for future AddSubmission calls. Revisions are immutable once published
// (spec §3 "Lifecycles").
func (c *Conductor) PublishRevision(problemID, revisionID string, revision *types.ProblemRevision) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byRevision, ok := c.revisions[problemID]
	if !ok {
		byRevision = make(map[string]*types.ProblemRevision)
		c.revisions[problemID] = byRevision
	}
	byRevision[revisionID] = revision
}

func (c *Conductor) revision(problemID, revisionID string) (*types.ProblemRevision, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byRevision, ok := c.revisions[problemID]
	if !ok {
		return nil, false
	}
	rev, ok := byRevision[revisionID]
	return rev, ok
}

// Handshake registers a new invoker session, replacing any previous session
// under the same name (a reconnect implicitly supersedes the stale
// connection — its outbound queue is simply never drained again, matching
// spec §5's "a dropped connection discards its outbound queue").
func (c *Conductor) Handshake(name string, send Sender) *Invoker {
	inv := NewInvoker(name, send)
	c.mu.Lock()
	c.invokers[name] = inv
	c.mu.Unlock()
	c.metrics.IncInvokerConnected()
	return inv
}

// Disconnect tears down an invoker session: every submission currently
// assigned to it has its outstanding tests transitioned to Ignored (spec
// §5), and the invoker is forgotten.
func (c *Conductor) Disconnect(inv *Invoker) {
	c.mu.Lock()
	if c.invokers[inv.Name] == inv {
		delete(c.invokers, inv.Name)
	}
	c.mu.Unlock()
	c.metrics.IncInvokerDisconnected()

	for _, submissionID := range inv.AssignedSubmissions() {
		if sub, ok := c.Submission(submissionID); ok {
			c.metrics.IncTestsCancelled(sub.PendingCount())
			sub.DiscardOutstanding()
		}
	}
}

// Metrics returns the collector backing this conductor's counters, or nil
// if none was configured.
func (c *Conductor) Metrics() *metrics.Collector {
	return c.metrics
}

// Store returns the blob store backing this conductor, so that ingestion
// code run out-of-band (e.g. the admin ingest route) can populate it with
// the same store submissions are later served files from.
func (c *Conductor) Store() blob.Store {
	return c.store
}

// Submission looks up a submission session by id.
func (c *Conductor) Submission(id string) (*Submission, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sub, ok := c.submissions[id]
	return sub, ok
}

// Invoker looks up a connected invoker by name.
func (c *Conductor) Invoker(name string) (*Invoker, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inv, ok := c.invokers[name]
	return inv, ok
}

// AddSubmission creates a submission session against a published revision
// and dispatches it to the named invoker: an AddSubmission message
// registering the submission's files and limits, followed immediately by a
// PushToJudgementQueue covering every test (spec §4.6).
func (c *Conductor) AddSubmission(
	invokerName string,
	compilationCore uint64,
	submissionID, problemID, revisionID, language string,
	files map[string][]byte,
	invocationLimits map[string]types.InvocationLimit,
) error {
	inv, ok := c.Invoker(invokerName)
	if !ok {
		return types.ConductorFailure("cannot dispatch submission %s: invoker %s is not connected", submissionID, invokerName)
	}
	revision, ok := c.revision(problemID, revisionID)
	if !ok {
		return types.ConfigurationFailure("cannot dispatch submission %s: no such problem revision %s/%s", submissionID, problemID, revisionID)
	}

	sub := NewSubmission(submissionID, problemID, revisionID, language, invokerName, revision)

	c.mu.Lock()
	c.submissions[submissionID] = sub
	c.mu.Unlock()
	inv.Assign(submissionID)
	c.metrics.IncSubmissionStarted()

	if err := inv.Send(&wire.C2I{
		Kind: wire.C2IAddSubmission,
		AddSubmission: &wire.AddSubmission{
			CompilationCore:  compilationCore,
			SubmissionID:     submissionID,
			ProblemID:        problemID,
			RevisionID:       revisionID,
			Files:            files,
			Language:         language,
			InvocationLimits: invocationLimits,
		},
	}); err != nil {
		return err
	}

	tests := make([]uint64, 0, revision.DependencyGraph.TotalTests())
	for id := range revision.DependencyGraph.DependentsOf {
		tests = append(tests, id)
	}
	return inv.Send(&wire.C2I{
		Kind: wire.C2IPushToJudgementQueue,
		PushToJudgementQueue: &wire.PushToJudgementQueue{
			Core:         compilationCore,
			SubmissionID: submissionID,
			Tests:        tests,
		},
	})
}

// FinalizeSubmission tells the bound invoker a submission is complete,
// publishes a relay.Event describing its final shape, and forgets the
// session.
func (c *Conductor) FinalizeSubmission(ctx context.Context, submissionID string) error {
	sub, ok := c.Submission(submissionID)
	if !ok {
		return fmt.Errorf("session: unknown submission %s", submissionID)
	}
	inv, ok := c.Invoker(sub.Invoker)
	if ok {
		inv.Release(submissionID)
		if err := inv.Send(&wire.C2I{
			Kind:               wire.C2IFinalizeSubmission,
			FinalizeSubmission: &wire.FinalizeSubmission{SubmissionID: submissionID},
		}); err != nil {
			return err
		}
	}

	_, _, failed, _ := sub.Summary()
	c.metrics.IncSubmissionFinalized(failed)
	c.publishCompletion(ctx, sub)

	c.mu.Lock()
	delete(c.submissions, submissionID)
	c.mu.Unlock()
	return nil
}

func (c *Conductor) publishCompletion(ctx context.Context, sub *Submission) {
	if c.relay == nil {
		return
	}
	total, ignored, failed, failure := sub.Summary()
	event := &relay.Event{
		SubmissionID: sub.ID,
		ProblemID:    sub.ProblemID,
		RevisionID:   sub.RevisionID,
		Outcome:      "judged",
		TestsTotal:   total,
		TestsIgnored: ignored,
		Timestamp:    time.Now(),
	}
	if failed {
		event.Outcome = "failed"
		if failure != nil {
			event.FailureKind = string(failure.Kind)
			event.FailureMsg = failure.Message
		}
	}
	_ = c.relay.Notify(ctx, event)
}
