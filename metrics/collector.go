// Package metrics provides process-wide counters for the conductor:
// invoker connections, submission lifecycle, and per-test verdicts. It is a
// leaf package with no dependency on session or wire, so either can import
// it without a cycle.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters. Safe to read
// concurrently after creation.
type Snapshot struct {
	InvokersConnected    int64
	InvokersDisconnected int64

	SubmissionsStarted   int64
	SubmissionsFinalized int64
	SubmissionsFailed    int64

	TestsJudged    int64
	TestsCancelled int64

	FileRequests int64
}

// Collector accumulates counters for the lifetime of a conductor process.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe,
// so a conductor built without metrics wiring (nil Collector) is a no-op.
type Collector struct {
	mu sync.Mutex
	s  Snapshot
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// IncInvokerConnected records a new invoker handshake.
func (c *Collector) IncInvokerConnected() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.s.InvokersConnected++
	c.mu.Unlock()
}

// IncInvokerDisconnected records an invoker connection dropping.
func (c *Collector) IncInvokerDisconnected() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.s.InvokersDisconnected++
	c.mu.Unlock()
}

// IncSubmissionStarted records a submission entering the system via
// AddSubmission.
func (c *Collector) IncSubmissionStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.s.SubmissionsStarted++
	c.mu.Unlock()
}

// IncSubmissionFinalized records a submission reaching FinalizeSubmission,
// split by whether it ended in a hard failure.
func (c *Collector) IncSubmissionFinalized(failed bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.s.SubmissionsFinalized++
	if failed {
		c.s.SubmissionsFailed++
	}
	c.mu.Unlock()
}

// IncTestsJudged records n tests receiving a terminal verdict directly from
// an invoker (as opposed to being cancelled by dependency fan-out).
func (c *Collector) IncTestsJudged(n int) {
	if c == nil || n == 0 {
		return
	}
	c.mu.Lock()
	c.s.TestsJudged += int64(n)
	c.mu.Unlock()
}

// IncTestsCancelled records n tests transitioning to Ignored via dependency
// fan-out or connection loss.
func (c *Collector) IncTestsCancelled(n int) {
	if c == nil || n == 0 {
		return
	}
	c.mu.Lock()
	c.s.TestsCancelled += int64(n)
	c.mu.Unlock()
}

// IncFileRequest records one RequestFile/SupplyFile round trip.
func (c *Collector) IncFileRequest() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.s.FileRequests++
	c.mu.Unlock()
}

// Snapshot returns an immutable copy of the current counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s
}
