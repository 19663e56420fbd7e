// Package wire defines the bidirectional message schema exchanged over an
// invoker session's persistent channel (spec §4.6/§6), and its msgpack
// encoding.
package wire

import (
	"github.com/purplesyringa/sunwalker-conductor/types"
)

// I2C is one message sent from an invoker to the conductor. Exactly one
// field is non-nil; Kind names which.
type I2C struct {
	Kind I2CKind `msgpack:"kind"`

	Handshake               *Handshake               `msgpack:"handshake,omitempty"`
	UpdateMode              *UpdateMode              `msgpack:"update_mode,omitempty"`
	NotifyCompilationStatus *NotifyCompilationStatus `msgpack:"notify_compilation_status,omitempty"`
	NotifyTestStatus        *NotifyTestStatus        `msgpack:"notify_test_status,omitempty"`
	NotifySubmissionError   *NotifySubmissionError   `msgpack:"notify_submission_error,omitempty"`
	RequestFile             *RequestFile             `msgpack:"request_file,omitempty"`
}

// I2CKind discriminates an I2C message.
type I2CKind string

const (
	I2CHandshake               I2CKind = "Handshake"
	I2CUpdateMode              I2CKind = "UpdateMode"
	I2CNotifyCompilationStatus I2CKind = "NotifyCompilationStatus"
	I2CNotifyTestStatus        I2CKind = "NotifyTestStatus"
	I2CNotifySubmissionError   I2CKind = "NotifySubmissionError"
	I2CRequestFile             I2CKind = "RequestFile"
)

// Handshake is the mandatory first message on a new connection (spec §4.6).
type Handshake struct {
	InvokerName string `msgpack:"invoker_name"`
}

// UpdateMode replaces the invoker's declared capability set.
type UpdateMode struct {
	AddedCores     []uint64 `msgpack:"added_cores"`
	RemovedCores   []uint64 `msgpack:"removed_cores"`
	DesignatedRAM  uint64   `msgpack:"designated_ram"`
}

// CompilationResult is the fallible Result<package_name, Error> carried by
// NotifyCompilationStatus.
type CompilationResult struct {
	PackageName string      `msgpack:"package_name,omitempty"`
	Err         *types.Error `msgpack:"err,omitempty"`
}

// NotifyCompilationStatus reports whether a submission's compilation step
// succeeded.
type NotifyCompilationStatus struct {
	SubmissionID string             `msgpack:"submission_id"`
	Result       CompilationResult  `msgpack:"result"`
}

// NotifyTestStatus reports the judgement result of one test.
type NotifyTestStatus struct {
	SubmissionID     string                    `msgpack:"submission_id"`
	Test             uint64                    `msgpack:"test"`
	JudgementResult  types.TestJudgementResult `msgpack:"judgement_result"`
}

// NotifySubmissionError reports a terminal, submission-wide error.
type NotifySubmissionError struct {
	SubmissionID string      `msgpack:"submission_id"`
	Error        *types.Error `msgpack:"error"`
}

// RequestFile asks the conductor to supply the contents of a blob by hash.
type RequestFile struct {
	RequestID uint64 `msgpack:"request_id"`
	Hash      string `msgpack:"hash"`
}
