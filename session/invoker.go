package session

import (
	"context"
	"sync"

	"github.com/purplesyringa/sunwalker-conductor/blob"
	"github.com/purplesyringa/sunwalker-conductor/types"
	"github.com/purplesyringa/sunwalker-conductor/wire"
)

// Sender delivers one conductor-to-invoker message over the connection an
// Invoker is bound to. Implemented by the transport package.
type Sender func(*wire.C2I) error

// Invoker is the conductor-side state of one connected invoker (spec §3
// "Invoker session"), keyed by invoker name: its active core set, RAM
// budget, and the submissions currently assigned to it.
type Invoker struct {
	mu sync.Mutex

	Name string

	cores         map[uint64]bool
	designatedRAM uint64
	submissions   map[string]bool

	send Sender
}

// NewInvoker creates an invoker session bound to name, whose outbound
// messages are delivered through send.
func NewInvoker(name string, send Sender) *Invoker {
	return &Invoker{
		Name:        name,
		cores:       make(map[uint64]bool),
		submissions: make(map[string]bool),
		send:        send,
	}
}

// UpdateMode replaces the invoker's capability set per an UpdateMode
// message.
func (inv *Invoker) UpdateMode(msg *wire.UpdateMode) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for _, core := range msg.RemovedCores {
		delete(inv.cores, core)
	}
	for _, core := range msg.AddedCores {
		inv.cores[core] = true
	}
	inv.designatedRAM = msg.DesignatedRAM
}

// Assign records that submissionID has been dispatched to this invoker.
func (inv *Invoker) Assign(submissionID string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.submissions[submissionID] = true
}

// Release stops tracking submissionID against this invoker.
func (inv *Invoker) Release(submissionID string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	delete(inv.submissions, submissionID)
}

// AssignedSubmissions returns a snapshot of submission ids currently
// assigned to this invoker.
func (inv *Invoker) AssignedSubmissions() []string {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	ids := make([]string, 0, len(inv.submissions))
	for id := range inv.submissions {
		ids = append(ids, id)
	}
	return ids
}

// Send delivers a conductor-to-invoker message on this invoker's
// connection.
func (inv *Invoker) Send(msg *wire.C2I) error {
	return inv.send(msg)
}

// HandleMessage dispatches one already-handshaken i2c message to the
// conductor, per spec §4.6's "Established" state transition table. It
// returns a *types.Error classifying a failure that should terminate the
// connection (CommunicationError for protocol violations), or nil.
func (c *Conductor) HandleMessage(ctx context.Context, inv *Invoker, msg *wire.I2C) error {
	switch msg.Kind {
	case wire.I2CHandshake:
		return types.CommunicationError("unexpected handshake in the middle of conversation from invoker %s", inv.Name)

	case wire.I2CUpdateMode:
		inv.UpdateMode(msg.UpdateMode)
		return nil

	case wire.I2CNotifyCompilationStatus:
		return c.notifyCompilationStatus(msg.NotifyCompilationStatus)

	case wire.I2CNotifyTestStatus:
		return c.notifyTestStatus(inv, msg.NotifyTestStatus)

	case wire.I2CNotifySubmissionError:
		return c.notifySubmissionError(msg.NotifySubmissionError)

	case wire.I2CRequestFile:
		return c.requestFile(ctx, inv, msg.RequestFile)

	default:
		return types.CommunicationError("unknown i2c message kind %q", msg.Kind)
	}
}

func (c *Conductor) notifyCompilationStatus(msg *wire.NotifyCompilationStatus) error {
	sub, ok := c.Submission(msg.SubmissionID)
	if !ok {
		return types.ConductorFailure("notify compilation status for unknown submission %s", msg.SubmissionID)
	}
	sub.MarkCompiled(msg.Result.Err == nil)
	return nil
}

func (c *Conductor) notifyTestStatus(inv *Invoker, msg *wire.NotifyTestStatus) error {
	sub, ok := c.Submission(msg.SubmissionID)
	if !ok {
		return types.ConductorFailure("notify test status for unknown submission %s", msg.SubmissionID)
	}
	cancelled := sub.RecordVerdict(msg.Test, msg.JudgementResult.Verdict)
	if msg.JudgementResult.Verdict.IsTerminal() {
		c.metrics.IncTestsJudged(1)
	}
	if len(cancelled) == 0 {
		return nil
	}
	c.metrics.IncTestsCancelled(len(cancelled))
	return inv.Send(&wire.C2I{
		Kind: wire.C2ICancelJudgementOnTests,
		CancelJudgementOnTests: &wire.CancelJudgementOnTests{
			SubmissionID: msg.SubmissionID,
			FailedTests:  cancelled,
		},
	})
}

func (c *Conductor) notifySubmissionError(msg *wire.NotifySubmissionError) error {
	sub, ok := c.Submission(msg.SubmissionID)
	if !ok {
		return types.ConductorFailure("notify submission error for unknown submission %s", msg.SubmissionID)
	}
	sub.Fail(msg.Error)
	return nil
}

func (c *Conductor) requestFile(ctx context.Context, inv *Invoker, msg *wire.RequestFile) error {
	c.metrics.IncFileRequest()
	handle := blob.ParseHandle(msg.Hash)
	contents, err := c.store.Fetch(ctx, handle)
	if err != nil {
		return types.CommunicationError("invoker %s requested unknown file hash %q: %v", inv.Name, msg.Hash, err)
	}
	return inv.Send(&wire.C2I{
		Kind: wire.C2ISupplyFile,
		SupplyFile: &wire.SupplyFile{
			RequestID: msg.RequestID,
			Contents:  contents,
		},
	})
}
