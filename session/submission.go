package session

import (
	"sync"

	"github.com/purplesyringa/sunwalker-conductor/types"
)

// Submission is the conductor-side state of one submission, keyed by
// submission id (spec §3 "Submission session"): the problem it targets, the
// invoker it is bound to, and per-test progress.
type Submission struct {
	mu sync.Mutex

	ID         string
	ProblemID  string
	RevisionID string
	Language   string
	Invoker    string

	revision *types.ProblemRevision

	pending map[uint64]bool
	ignored map[uint64]bool
	results map[uint64]types.TestVerdict

	// pendingFileRequests mirrors the data model of spec §3 ("in-flight
	// file-request map request_id -> hash"). RequestFile carries no
	// submission_id on the wire, so in practice a request is resolved
	// against the global blob store without ever being attributed to a
	// particular submission; this map is kept for completeness but is
	// never populated by the RequestFile handler in invoker.go.
	pendingFileRequests map[uint64]string

	compiled bool
	failed   bool
	failure  *types.Error
}

// NewSubmission creates a submission session bound to invokerName, with
// every test id of revision initially pending.
func NewSubmission(id, problemID, revisionID, language, invokerName string, revision *types.ProblemRevision) *Submission {
	pending := make(map[uint64]bool, revision.DependencyGraph.TotalTests())
	for id := range revision.DependencyGraph.DependentsOf {
		pending[id] = true
	}
	return &Submission{
		ID:                  id,
		ProblemID:           problemID,
		RevisionID:          revisionID,
		Language:            language,
		Invoker:             invokerName,
		revision:            revision,
		pending:             pending,
		ignored:             make(map[uint64]bool),
		results:             make(map[uint64]types.TestVerdict),
		pendingFileRequests: make(map[uint64]string),
	}
}

// MarkCompiled records the outcome of the compilation step.
func (s *Submission) MarkCompiled(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compiled = ok
}

// Fail marks the whole submission as failed (spec §4.6
// NotifySubmissionError).
func (s *Submission) Fail(err *types.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = true
	s.failure = err
	for test := range s.pending {
		delete(s.pending, test)
		s.ignored[test] = true
	}
}

// Failed reports whether the submission has been failed, and the recorded
// error if so.
func (s *Submission) Failed() (bool, *types.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed, s.failure
}

// RecordVerdict stores the verdict of one test. If the verdict is terminal
// and non-accepting, it computes and returns the transitive set of
// dependent tests that must now be cancelled (still pending, not already
// resolved or ignored) per spec §4.3/§4.6, marking them Ignored locally.
func (s *Submission) RecordVerdict(test uint64, verdict types.TestVerdict) []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[test] = verdict
	if !verdict.IsTerminal() {
		return nil
	}
	delete(s.pending, test)

	if verdict.IsAccepting() {
		return nil
	}

	var cancelled []uint64
	for _, dependent := range s.revision.DependencyGraph.DependentsOfDeduped(test) {
		if !s.pending[dependent] {
			continue
		}
		delete(s.pending, dependent)
		s.ignored[dependent] = true
		cancelled = append(cancelled, dependent)
	}
	return cancelled
}

// PendingCount returns the number of tests not yet resolved.
func (s *Submission) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Summary reports the final shape of a finished submission: total test
// count, how many were ignored (cancelled by dependency fan-out or
// discarded on disconnect), and the failure recorded via Fail, if any.
func (s *Submission) Summary() (total, ignored int, failed bool, failure *types.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision.DependencyGraph.TotalTests(), len(s.ignored), s.failed, s.failure
}

// DiscardOutstanding transitions every still-pending test to Ignored,
// without computing dependency fan-out (spec §5: "a dropped connection
// discards its outbound queue and transitions all its in-flight tests to
// Ignored").
func (s *Submission) DiscardOutstanding() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for test := range s.pending {
		delete(s.pending, test)
		s.ignored[test] = true
	}
}
