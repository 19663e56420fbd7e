package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/purplesyringa/sunwalker-conductor/types"
)

func testRevision() *types.ProblemRevision {
	return &types.ProblemRevision{
		DependencyGraph: types.DependencyGraph{
			DependentsOf: map[uint64][]uint64{
				1: {2, 3},
				2: {4},
				3: {4},
				4: {},
			},
		},
	}
}

func TestNewSubmissionStartsFullyPending(t *testing.T) {
	sub := NewSubmission("sub-1", "prob-1", "rev-1", "cpp", "inv-1", testRevision())
	require.Equal(t, 4, sub.PendingCount())
	total, ignored, failed, failure := sub.Summary()
	require.Equal(t, 4, total)
	require.Equal(t, 0, ignored)
	require.False(t, failed)
	require.Nil(t, failure)
}

func TestRecordVerdictAcceptingDoesNotCancel(t *testing.T) {
	sub := NewSubmission("sub-1", "prob-1", "rev-1", "cpp", "inv-1", testRevision())
	cancelled := sub.RecordVerdict(1, types.TestVerdict{Kind: types.VerdictAccepted})
	require.Empty(t, cancelled)
	require.Equal(t, 3, sub.PendingCount())
}

func TestRecordVerdictFailureCancelsTransitiveDependents(t *testing.T) {
	sub := NewSubmission("sub-1", "prob-1", "rev-1", "cpp", "inv-1", testRevision())
	cancelled := sub.RecordVerdict(1, types.TestVerdict{Kind: types.VerdictWrongAnswer})
	require.ElementsMatch(t, []uint64{2, 3, 4}, cancelled)
	require.Equal(t, 0, sub.PendingCount())

	_, ignored, _, _ := sub.Summary()
	require.Equal(t, 3, ignored)
}

func TestRecordVerdictNonTerminalLeavesPending(t *testing.T) {
	sub := NewSubmission("sub-1", "prob-1", "rev-1", "cpp", "inv-1", testRevision())
	cancelled := sub.RecordVerdict(1, types.TestVerdict{Kind: types.VerdictRunning})
	require.Empty(t, cancelled)
	require.Equal(t, 4, sub.PendingCount())
}

func TestRecordVerdictOnlyCancelsStillPendingDependents(t *testing.T) {
	sub := NewSubmission("sub-1", "prob-1", "rev-1", "cpp", "inv-1", testRevision())
	// test 4 already resolved before test 1 fails; it must not reappear as cancelled.
	sub.RecordVerdict(4, types.TestVerdict{Kind: types.VerdictAccepted})
	cancelled := sub.RecordVerdict(1, types.TestVerdict{Kind: types.VerdictWrongAnswer})
	require.ElementsMatch(t, []uint64{2, 3}, cancelled)
}

func TestFailMarksAllPendingIgnored(t *testing.T) {
	sub := NewSubmission("sub-1", "prob-1", "rev-1", "cpp", "inv-1", testRevision())
	sub.RecordVerdict(1, types.TestVerdict{Kind: types.VerdictAccepted})

	err := types.ConductorFailure("invoker crashed")
	sub.Fail(err)

	failed, failure := sub.Failed()
	require.True(t, failed)
	require.Same(t, err, failure)
	require.Equal(t, 0, sub.PendingCount())

	_, ignored, _, _ := sub.Summary()
	require.Equal(t, 3, ignored)
}

func TestDiscardOutstandingIgnoresPendingWithoutFanOut(t *testing.T) {
	sub := NewSubmission("sub-1", "prob-1", "rev-1", "cpp", "inv-1", testRevision())
	sub.RecordVerdict(1, types.TestVerdict{Kind: types.VerdictAccepted})
	sub.DiscardOutstanding()

	require.Equal(t, 0, sub.PendingCount())
	_, ignored, failed, _ := sub.Summary()
	require.Equal(t, 3, ignored)
	require.False(t, failed)
}

func TestMarkCompiledIsIndependentOfTestState(t *testing.T) {
	sub := NewSubmission("sub-1", "prob-1", "rev-1", "cpp", "inv-1", testRevision())
	sub.MarkCompiled(false)
	require.Equal(t, 4, sub.PendingCount())
}
