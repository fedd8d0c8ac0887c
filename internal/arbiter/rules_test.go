package arbiter

import (
	"testing"

	"github.com/forgehq/forge/internal/phase"
)

func TestApplyRules_OutOfBudget(t *testing.T) {
	in := Input{Budget: 5, IterationsUsed: 5}
	d := ApplyRules(in, AutoConfig(2))
	if d.Verdict != phase.ArbiterEscalate || d.Confidence != 1.0 {
		t.Errorf("got %+v", d)
	}
}

func TestApplyRules_MaxFixAttempts(t *testing.T) {
	in := Input{Budget: 20, IterationsUsed: 0, FixAttempts: 2}
	d := ApplyRules(in, AutoConfig(2))
	if d.Verdict != phase.ArbiterEscalate {
		t.Errorf("Verdict = %v, want escalate", d.Verdict)
	}
}

func TestApplyRules_CriticalWithBudget(t *testing.T) {
	in := Input{Budget: 20, IterationsUsed: 0, BlockingFindings: []phase.ReviewFinding{
		{Severity: phase.SeverityError, File: "a.go", Issue: "x"},
	}}
	d := ApplyRules(in, AutoConfig(2))
	if d.Verdict != phase.ArbiterFix {
		t.Errorf("Verdict = %v, want fix", d.Verdict)
	}
	if d.SuggestedFixBudget != 3 {
		t.Errorf("SuggestedFixBudget = %d, want 3", d.SuggestedFixBudget)
	}
}

func TestApplyRules_CriticalInsufficientBudget(t *testing.T) {
	in := Input{Budget: 20, IterationsUsed: 18, BlockingFindings: []phase.ReviewFinding{
		{Severity: phase.SeverityError, File: "a.go", Issue: "x"},
	}}
	d := ApplyRules(in, AutoConfig(2))
	if d.Verdict != phase.ArbiterEscalate {
		t.Errorf("Verdict = %v, want escalate", d.Verdict)
	}
	if d.Confidence != 0.95 {
		t.Errorf("Confidence = %v, want 0.95", d.Confidence)
	}
}

func TestApplyRules_EscalateOnCategory(t *testing.T) {
	cfg := ArbiterModeConfig()
	cfg.EscalateOn = []string{"security"}
	in := Input{Budget: 20, IterationsUsed: 0, BlockingFindings: []phase.ReviewFinding{
		{Severity: phase.SeverityWarning, File: "a.go", Issue: "x", Category: "security-auth"},
	}}
	d := ApplyRules(in, cfg)
	if d.Verdict != phase.ArbiterEscalate {
		t.Errorf("Verdict = %v, want escalate", d.Verdict)
	}
}

func TestApplyRules_AutoProceedOnCategory(t *testing.T) {
	cfg := ArbiterModeConfig()
	cfg.AutoProceedOn = []string{"style"}
	in := Input{Budget: 20, IterationsUsed: 0, BlockingFindings: []phase.ReviewFinding{
		{Severity: phase.SeverityWarning, File: "a.go", Issue: "x", Category: "style"},
	}}
	d := ApplyRules(in, cfg)
	if d.Verdict != phase.ArbiterProceed {
		t.Errorf("Verdict = %v, want proceed", d.Verdict)
	}
}

func TestApplyRules_DefaultFixWithBudget(t *testing.T) {
	in := Input{Budget: 20, IterationsUsed: 0, BlockingFindings: []phase.ReviewFinding{
		{Severity: phase.SeverityWarning, File: "a.go", Issue: "x"},
	}}
	d := ApplyRules(in, AutoConfig(2))
	if d.Verdict != phase.ArbiterFix {
		t.Errorf("Verdict = %v, want fix", d.Verdict)
	}
	if d.SuggestedFixBudget != 2 {
		t.Errorf("SuggestedFixBudget = %d, want 2", d.SuggestedFixBudget)
	}
}

func TestApplyRules_DefaultEscalateInsufficientBudget(t *testing.T) {
	in := Input{Budget: 10, IterationsUsed: 9, BlockingFindings: []phase.ReviewFinding{
		{Severity: phase.SeverityWarning, File: "a.go", Issue: "x"},
	}}
	d := ApplyRules(in, AutoConfig(2))
	if d.Verdict != phase.ArbiterEscalate {
		t.Errorf("Verdict = %v, want escalate", d.Verdict)
	}
	if d.Confidence != 0.6 {
		t.Errorf("Confidence = %v, want 0.6", d.Confidence)
	}
}

func TestMatchesCategory_CaseInsensitiveSubstring(t *testing.T) {
	f := phase.ReviewFinding{Category: "Security-Auth"}
	if !matchesCategory(f, []string{"security"}) {
		t.Error("expected match")
	}
	if matchesCategory(f, []string{"performance"}) {
		t.Error("expected no match")
	}
}

func TestAllInCategories_EmptyInputsFalse(t *testing.T) {
	if allInCategories(nil, []string{"style"}) {
		t.Error("expected false for empty findings")
	}
	if allInCategories([]phase.ReviewFinding{{Category: "style"}}, nil) {
		t.Error("expected false for empty categories")
	}
}
