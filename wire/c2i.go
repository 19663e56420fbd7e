package wire

import "github.com/purplesyringa/sunwalker-conductor/types"

// C2I is one message sent from the conductor to an invoker. Exactly one
// field is non-nil; Kind names which.
type C2I struct {
	Kind C2IKind `msgpack:"kind"`

	AddSubmission          *AddSubmission          `msgpack:"add_submission,omitempty"`
	PushToJudgementQueue   *PushToJudgementQueue   `msgpack:"push_to_judgement_queue,omitempty"`
	CancelJudgementOnTests *CancelJudgementOnTests `msgpack:"cancel_judgement_on_tests,omitempty"`
	FinalizeSubmission     *FinalizeSubmission     `msgpack:"finalize_submission,omitempty"`
	SupplyFile             *SupplyFile             `msgpack:"supply_file,omitempty"`
}

// C2IKind discriminates a C2I message.
type C2IKind string

const (
	C2IAddSubmission          C2IKind = "AddSubmission"
	C2IPushToJudgementQueue   C2IKind = "PushToJudgementQueue"
	C2ICancelJudgementOnTests C2IKind = "CancelJudgementOnTests"
	C2IFinalizeSubmission     C2IKind = "FinalizeSubmission"
	C2ISupplyFile             C2IKind = "SupplyFile"
)

// AddSubmission registers a new submission against a declared compilation
// core, shipping its source files and per-test invocation limits.
type AddSubmission struct {
	CompilationCore  uint64                          `msgpack:"compilation_core"`
	SubmissionID     string                          `msgpack:"submission_id"`
	ProblemID        string                          `msgpack:"problem_id"`
	RevisionID       string                          `msgpack:"revision_id"`
	Files            map[string][]byte               `msgpack:"files"`
	Language         string                          `msgpack:"language"`
	InvocationLimits map[string]types.InvocationLimit `msgpack:"invocation_limits"`
}

// PushToJudgementQueue asks the invoker to judge the given tests of a
// submission on a given core.
type PushToJudgementQueue struct {
	Core         uint64   `msgpack:"core"`
	SubmissionID string   `msgpack:"submission_id"`
	Tests        []uint64 `msgpack:"tests"`
}

// CancelJudgementOnTests asks the invoker to stop judging certain tests of a
// submission, since the dependency graph has already determined their
// outcome (spec §4.6 cancellation fan-out).
type CancelJudgementOnTests struct {
	SubmissionID string   `msgpack:"submission_id"`
	FailedTests  []uint64 `msgpack:"failed_tests"`
}

// FinalizeSubmission tells the invoker a submission's session is over; it
// may release any per-submission resources.
type FinalizeSubmission struct {
	SubmissionID string `msgpack:"submission_id"`
}

// SupplyFile answers a RequestFile with the blob's contents.
type SupplyFile struct {
	RequestID uint64 `msgpack:"request_id"`
	Contents  []byte `msgpack:"contents"`
}
