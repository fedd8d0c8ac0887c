package arbiter

import (
	"fmt"
	"strings"

	"github.com/forgehq/forge/internal/phase"
)

// ApplyRules applies the rule-based decision ladder, in order: budget
// exhaustion, max fix attempts, critical findings, configured escalate/proceed
// categories, then a default fix-or-escalate based on remaining budget.
func ApplyRules(in Input, config Config) phase.ArbiterDecision {
	if in.RemainingBudget() == 0 {
		d := phase.NewArbiterDecision(phase.ArbiterEscalate, "No remaining budget for fixes", 1.0, phase.SourceRuleBased)
		d.EscalationSummary = "Phase budget exhausted; human decision required on whether to extend budget"
		return d
	}

	maxAttempts := config.MaxFixAttempts
	if maxAttempts == 0 {
		maxAttempts = 2
	}
	if in.FixAttempts >= maxAttempts {
		d := phase.NewArbiterDecision(
			phase.ArbiterEscalate,
			fmt.Sprintf("Max fix attempts (%d) reached without resolution", maxAttempts),
			1.0, phase.SourceRuleBased,
		)
		d.EscalationSummary = "Multiple fix attempts failed; human intervention needed"
		return d
	}

	if in.HasCriticalFindings() {
		critical := in.CriticalFindings()
		if in.RemainingBudget() >= 3 {
			d := phase.NewArbiterDecision(
				phase.ArbiterFix,
				fmt.Sprintf("%d critical finding(s) require immediate attention", len(critical)),
				0.9, phase.SourceRuleBased,
			)
			d.FixInstructions = "Address all critical (error-level) findings from the review"
			d.SuggestedFixBudget = min(3, in.RemainingBudget())
			return d
		}
		d := phase.NewArbiterDecision(phase.ArbiterEscalate, "Critical findings present but insufficient budget to fix", 0.95, phase.SourceRuleBased)
		d.EscalationSummary = fmt.Sprintf("%d critical finding(s) need attention but only %d iterations remain", len(critical), in.RemainingBudget())
		return d
	}

	if config.Mode == ModeArbiter {
		for _, f := range in.BlockingFindings {
			if matchesCategory(f, config.EscalateOn) {
				d := phase.NewArbiterDecision(
					phase.ArbiterEscalate,
					fmt.Sprintf("Finding category '%s' requires human review", f.Category),
					1.0, phase.SourceRuleBased,
				)
				d.EscalationSummary = fmt.Sprintf("Category '%s' is configured to always escalate", f.Category)
				return d
			}
		}
		if allInCategories(in.BlockingFindings, config.AutoProceedOn) {
			return phase.NewArbiterDecision(phase.ArbiterProceed, "All findings are in auto-proceed categories", 0.9, phase.SourceRuleBased)
		}
	}

	if in.RemainingBudget() >= 2 {
		d := phase.NewArbiterDecision(phase.ArbiterFix, "Review findings should be addressed before proceeding", 0.7, phase.SourceRuleBased)
		d.FixInstructions = "Address warning-level findings from the review"
		d.SuggestedFixBudget = min(2, in.RemainingBudget())
		return d
	}
	d := phase.NewArbiterDecision(phase.ArbiterEscalate, "Insufficient budget to confidently address findings", 0.6, phase.SourceRuleBased)
	d.EscalationSummary = fmt.Sprintf("%d finding(s) need review; only %d iteration(s) remaining", len(in.BlockingFindings), in.RemainingBudget())
	return d
}

func matchesCategory(f phase.ReviewFinding, categories []string) bool {
	if f.Category == "" {
		return false
	}
	cat := strings.ToLower(f.Category)
	for _, c := range categories {
		if strings.Contains(cat, strings.ToLower(c)) {
			return true
		}
	}
	return false
}

func allInCategories(findings []phase.ReviewFinding, categories []string) bool {
	if len(findings) == 0 || len(categories) == 0 {
		return false
	}
	for _, f := range findings {
		if !matchesCategory(f, categories) {
			return false
		}
	}
	return true
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
