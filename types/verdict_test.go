package types

import "testing"

func TestIsTerminal(t *testing.T) {
	cases := map[VerdictKind]bool{
		VerdictInQueue:     false,
		VerdictRunning:     false,
		VerdictAccepted:    true,
		VerdictWrongAnswer: true,
	}
	for kind, want := range cases {
		v := TestVerdict{Kind: kind}
		if got := v.IsTerminal(); got != want {
			t.Errorf("IsTerminal(%s) = %v, want %v", kind, got, want)
		}
	}
}

func TestIsAcceptingAccepted(t *testing.T) {
	v := TestVerdict{Kind: VerdictAccepted}
	if !v.IsAccepting() {
		t.Fatal("expected Accepted to be accepting")
	}
}

func TestIsAcceptingPartialSolutionRequiresNonzeroScore(t *testing.T) {
	if (TestVerdict{Kind: VerdictPartialSolution, Score: 0}).IsAccepting() {
		t.Fatal("expected zero-score PartialSolution to be non-accepting")
	}
	if !(TestVerdict{Kind: VerdictPartialSolution, Score: 5000}).IsAccepting() {
		t.Fatal("expected nonzero-score PartialSolution to be accepting")
	}
}

func TestIsAcceptingRejectsFailureKinds(t *testing.T) {
	for _, kind := range []VerdictKind{VerdictWrongAnswer, VerdictRuntimeError, VerdictTimeLimitExceeded, VerdictBug} {
		if (TestVerdict{Kind: kind}).IsAccepting() {
			t.Errorf("expected %s to be non-accepting", kind)
		}
	}
}
