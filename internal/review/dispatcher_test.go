package review

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/forgehq/forge/internal/phase"
)

// scriptDispatcher writes an executable shell script standing in for the
// assistant binary and returns a Dispatcher pointed at it.
func scriptDispatcher(t *testing.T, body string, parallel bool) *Dispatcher {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-assistant.sh")
	content := "#!/bin/sh\n" + body
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig(path)
	cfg.Parallel = parallel
	return New(cfg)
}

func TestDispatch_NoSpecialistsReturnsPass(t *testing.T) {
	d := scriptDispatcher(t, `echo unused`, true)
	agg, err := d.Dispatch(context.Background(), PhaseReviewConfig{PhaseID: "05"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if agg.Verdict != phase.VerdictPass {
		t.Errorf("Verdict = %v, want pass", agg.Verdict)
	}
	if len(agg.Reports) != 0 {
		t.Errorf("Reports = %v, want empty", agg.Reports)
	}
}

func TestDispatch_AllPass(t *testing.T) {
	d := scriptDispatcher(t, `cat >/dev/null; echo '{"verdict":"pass","summary":"clean","findings":[]}'`, true)
	cfg := PhaseReviewConfig{
		PhaseID: "05",
		Specialists: []phase.SpecialistConfig{
			{Type: "security", Gating: true},
			{Type: "performance", Gating: false},
		},
	}
	agg, err := d.Dispatch(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if agg.Verdict != phase.VerdictPass {
		t.Errorf("Verdict = %v, want pass", agg.Verdict)
	}
	if len(agg.Reports) != 2 {
		t.Fatalf("Reports = %d, want 2", len(agg.Reports))
	}
}

func TestDispatch_GatingFailurePropagates(t *testing.T) {
	d := scriptDispatcher(t, `cat >/dev/null; echo '{"verdict":"warn","summary":"bad","findings":[{"severity":"error","file":"a.go","issue":"critical"}]}'`, false)
	cfg := PhaseReviewConfig{
		PhaseID: "05",
		Specialists: []phase.SpecialistConfig{
			{Type: "security", Gating: true},
		},
	}
	agg, err := d.Dispatch(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if agg.Verdict != phase.VerdictFail {
		t.Errorf("Verdict = %v, want fail", agg.Verdict)
	}
}

func TestDispatch_SequentialRunsEachSpecialist(t *testing.T) {
	d := scriptDispatcher(t, `cat >/dev/null; echo '{"verdict":"pass","summary":"ok","findings":[]}'`, false)
	cfg := PhaseReviewConfig{
		PhaseID: "05",
		Specialists: []phase.SpecialistConfig{
			{Type: "security", Gating: true},
			{Type: "architecture", Gating: false},
			{Type: "simplicity", Gating: false},
		},
	}
	agg, err := d.Dispatch(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(agg.Reports) != 3 {
		t.Fatalf("Reports = %d, want 3", len(agg.Reports))
	}
}

func TestDispatch_SubprocessFailureFallsBackToPass(t *testing.T) {
	d := scriptDispatcher(t, `exit 7`, true)
	cfg := PhaseReviewConfig{
		PhaseID: "05",
		Specialists: []phase.SpecialistConfig{
			{Type: "security", Gating: true},
		},
	}
	agg, err := d.Dispatch(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if agg.Reports[0].Verdict != phase.VerdictPass {
		t.Errorf("Verdict = %v, want pass (subprocess failure doesn't block)", agg.Reports[0].Verdict)
	}
}

func TestHasGatingSpecialists(t *testing.T) {
	cfg := PhaseReviewConfig{Specialists: []phase.SpecialistConfig{{Type: "security", Gating: false}}}
	if cfg.HasGatingSpecialists() {
		t.Error("expected no gating specialists")
	}
	cfg.Specialists = append(cfg.Specialists, phase.SpecialistConfig{Type: "performance", Gating: true})
	if !cfg.HasGatingSpecialists() {
		t.Error("expected gating specialists present")
	}
}

func TestResolvedFocusAreas_CustomOverridesDefault(t *testing.T) {
	s := phase.SpecialistConfig{Type: "security", FocusAreas: []string{"only this"}}
	areas := ResolvedFocusAreas(s)
	if len(areas) != 1 || areas[0] != "only this" {
		t.Errorf("ResolvedFocusAreas = %v", areas)
	}
}

func TestBuildReviewPrompt_ContainsContext(t *testing.T) {
	s := phase.SpecialistConfig{Type: "security", Gating: true}
	cfg := PhaseReviewConfig{PhaseID: "05", PhaseName: "OAuth Integration", FilesChanged: []string{"internal/auth.go"}}
	prompt := buildReviewPrompt(s, cfg)

	for _, want := range []string{"Security Sentinel", "Phase: 05", "OAuth Integration", "internal/auth.go", "GATING review", "injection"} {
		if !contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
