package types

import "time"

// VerdictKind is the closed taxonomy of per-test outcomes.
type VerdictKind string

// Verdict kind constants. Exactly one of these tags a TestVerdict.
const (
	VerdictInQueue              VerdictKind = "InQueue"
	VerdictRunning              VerdictKind = "Running"
	VerdictIgnored              VerdictKind = "Ignored"
	VerdictAccepted             VerdictKind = "Accepted"
	VerdictPartialSolution      VerdictKind = "PartialSolution"
	VerdictBug                  VerdictKind = "Bug"
	VerdictWrongAnswer          VerdictKind = "WrongAnswer"
	VerdictRuntimeError         VerdictKind = "RuntimeError"
	VerdictTimeLimitExceeded    VerdictKind = "TimeLimitExceeded"
	VerdictMemoryLimitExceeded  VerdictKind = "MemoryLimitExceeded"
	VerdictPresentationError    VerdictKind = "PresentationError"
	VerdictIdlenessLimitExceeded VerdictKind = "IdlenessLimitExceeded"
	VerdictCheckerFailed        VerdictKind = "CheckerFailed"
)

// ExitStatusKind discriminates RuntimeError's payload.
type ExitStatusKind string

const (
	ExitStatusCode   ExitStatusKind = "ExitCode"
	ExitStatusSignal ExitStatusKind = "Signal"
)

// ExitStatus is the payload of a RuntimeError verdict: either a process
// exit code or a terminating signal number, each a single byte per spec.
type ExitStatus struct {
	Kind  ExitStatusKind `msgpack:"kind" json:"kind"`
	Value uint8          `msgpack:"value" json:"value"`
}

// TestVerdict is a closed variant over the outcome of judging one test.
// Only the field(s) relevant to Kind are populated; this mirrors the
// original Rust enum's payload-carrying variants without needing a
// discriminated union type in Go.
type TestVerdict struct {
	Kind VerdictKind `msgpack:"kind" json:"kind"`

	// Score, in ten-thousandths, set only when Kind == VerdictPartialSolution.
	Score uint64 `msgpack:"score,omitempty" json:"score,omitempty"`
	// BugMessage is set only when Kind == VerdictBug.
	BugMessage string `msgpack:"bug_message,omitempty" json:"bug_message,omitempty"`
	// ExitStatus is set only when Kind == VerdictRuntimeError.
	ExitStatus *ExitStatus `msgpack:"exit_status,omitempty" json:"exit_status,omitempty"`
}

// IsTerminal reports whether the verdict represents a final, non-pending
// outcome (i.e. not InQueue or Running).
func (v TestVerdict) IsTerminal() bool {
	return v.Kind != VerdictInQueue && v.Kind != VerdictRunning
}

// IsAccepting reports whether the verdict is positively resolved (accepted
// or a partial solution awarding a nonzero score). A non-accepting terminal
// verdict is what triggers dependency-graph cancellation per §4.6.
func (v TestVerdict) IsAccepting() bool {
	switch v.Kind {
	case VerdictAccepted:
		return true
	case VerdictPartialSolution:
		return v.Score > 0
	default:
		return false
	}
}

// InvocationStat holds the measured resource usage of a single process
// invocation during judging.
type InvocationStat struct {
	RealTime time.Duration `msgpack:"real_time" json:"real_time"`
	CPUTime  time.Duration `msgpack:"cpu_time" json:"cpu_time"`
	UserTime time.Duration `msgpack:"user_time" json:"user_time"`
	SysTime  time.Duration `msgpack:"sys_time" json:"sys_time"`
	Memory   uint64        `msgpack:"memory" json:"memory"`
}

// InvocationLimit holds the resource limits imposed on a single process
// invocation. Unlike InvocationStat, it has no user/sys breakdown.
type InvocationLimit struct {
	RealTime time.Duration `msgpack:"real_time" json:"real_time"`
	CPUTime  time.Duration `msgpack:"cpu_time" json:"cpu_time"`
	Memory   uint64        `msgpack:"memory" json:"memory"`
}

// TestJudgementResult is the full result of judging one test: its verdict,
// captured logs per named stream, and invocation stats per named process.
type TestJudgementResult struct {
	Verdict         TestVerdict               `msgpack:"verdict" json:"verdict"`
	Logs            map[string][]byte         `msgpack:"logs" json:"logs"`
	InvocationStats map[string]InvocationStat `msgpack:"invocation_stats" json:"invocation_stats"`
}
