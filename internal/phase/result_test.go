package phase

import "testing"

func TestResult_Success(t *testing.T) {
	r := NewSuccess("A", 2, ChangeSummary{FilesAdded: []string{"a.go"}}, 0)
	if !r.Success || !r.CanProceed() {
		t.Fatal("expected success result to proceed")
	}
}

func TestResult_Failure(t *testing.T) {
	r := NewFailure("A", 3, ChangeSummary{}, 0, "budget exhausted")
	if r.Success || r.CanProceed() {
		t.Fatal("expected failure result to not proceed")
	}
	if r.Error != "budget exhausted" {
		t.Fatalf("error = %q", r.Error)
	}
}

func TestResult_WithReview_FailBlocksProgress(t *testing.T) {
	r := NewSuccess("A", 1, ChangeSummary{}, 0)
	r = r.WithReview(ReviewAggregation{PhaseID: "A", Verdict: VerdictFail})
	if r.Success {
		t.Fatal("expected fail-verdict review to unset success")
	}
	if r.CanProceed() {
		t.Fatal("expected CanProceed false after gating failure")
	}
	if !r.ReviewsBlocking() {
		t.Fatal("expected ReviewsBlocking true")
	}
}

func TestResult_WithReview_WarnDoesNotBlock(t *testing.T) {
	r := NewSuccess("A", 1, ChangeSummary{}, 0)
	r = r.WithReview(ReviewAggregation{PhaseID: "A", Verdict: VerdictWarn})
	if !r.Success || !r.CanProceed() {
		t.Fatal("warn verdict must not block progression")
	}
}

func TestResult_WithDecomposition(t *testing.T) {
	r := NewSuccess("A", 1, ChangeSummary{}, 0).WithDecomposition()
	if !r.Decomposed {
		t.Fatal("expected Decomposed true")
	}
}

func TestClampConfidence(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0.5, 0.5},
		{1.5, 1},
	}
	for _, c := range cases {
		if got := ClampConfidence(c.in); got != c.want {
			t.Errorf("ClampConfidence(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestSummary_AddResultAndSkip(t *testing.T) {
	s := NewSummary(2)
	s.AddResult(NewSuccess("A", 1, ChangeSummary{}, 0))
	s.MarkSkipped("B")

	if s.Completed != 1 || s.Skipped != 1 {
		t.Fatalf("Completed=%d Skipped=%d", s.Completed, s.Skipped)
	}
	if s.AllSuccess() {
		t.Fatal("expected AllSuccess false when a phase was skipped")
	}
	if pct := s.CompletionPercentage(); pct != 100 {
		t.Fatalf("CompletionPercentage = %v, want 100", pct)
	}
}

func TestSeverityOrdering(t *testing.T) {
	if !SeverityError.MoreSevereThan(SeverityWarning) {
		t.Fatal("error should be more severe than warning")
	}
	if !SeverityError.IsCritical() {
		t.Fatal("error should be critical")
	}
	if SeverityInfo.IsCritical() {
		t.Fatal("info should not be critical")
	}
	if !SeverityWarning.IsActionable() {
		t.Fatal("warning should be actionable")
	}
	if SeverityNote.IsActionable() {
		t.Fatal("note should not be actionable")
	}
}

func TestSignals_LatestProgress(t *testing.T) {
	s := Signals{Progress: []int{10, 40, 70}}
	if got := s.LatestProgress(); got != 70 {
		t.Fatalf("LatestProgress() = %d, want 70", got)
	}
	var empty Signals
	if got := empty.LatestProgress(); got != -1 {
		t.Fatalf("LatestProgress() on empty = %d, want -1", got)
	}
}

func TestSignals_UnacknowledgedBlockers(t *testing.T) {
	s := Signals{Blockers: []Blocker{{Text: "a", Acknowledged: true}, {Text: "b"}}}
	un := s.UnacknowledgedBlockers()
	if len(un) != 1 || un[0].Text != "b" {
		t.Fatalf("UnacknowledgedBlockers() = %v", un)
	}
}
