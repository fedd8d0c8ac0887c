package arbiter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/forgehq/forge/internal/phase"
)

// BuildPrompt assembles the prompt handed to the LLM arbiter: phase context,
// budget, failed specialists, blocking findings as JSON, and the decision
// criteria the model should apply.
func BuildPrompt(in Input, config Config) string {
	findingsJSON, err := json.MarshalIndent(in.BlockingFindings, "", "  ")
	if err != nil {
		findingsJSON = []byte("[]")
	}

	var contextSection string
	if in.AdditionalContext != "" {
		contextSection = fmt.Sprintf("\n## Additional Context\n%s\n", in.AdditionalContext)
	}

	var b strings.Builder
	b.WriteString("# Review Arbiter\n\n")
	b.WriteString("You are deciding how to handle review findings that would block progress.\n\n")
	b.WriteString("## Context\n")
	fmt.Fprintf(&b, "- Phase: %s - %s\n", in.PhaseID, in.PhaseName)
	fmt.Fprintf(&b, "- Budget: %d/%d iterations used (%d remaining)\n", in.IterationsUsed, in.Budget, in.RemainingBudget())
	fmt.Fprintf(&b, "- Fix attempts so far: %d\n", in.FixAttempts)
	fmt.Fprintf(&b, "- Failed specialists: %s\n", strings.Join(in.FailedSpecialists, ", "))
	b.WriteString(contextSection)
	b.WriteString("\n## Blocking Findings\n```json\n")
	b.Write(findingsJSON)
	b.WriteString("\n```\n\n")
	b.WriteString("## Decision Criteria\n\n")
	b.WriteString("**PROCEED** when:\n")
	b.WriteString("- Style issues only (formatting, naming conventions)\n")
	b.WriteString("- Minor warnings that don't affect correctness\n")
	b.WriteString("- Likely false positives\n")
	b.WriteString("- Acceptable trade-offs for MVP/current phase\n")
	b.WriteString("- Issues that are already tracked for future work\n\n")
	b.WriteString("**FIX** when:\n")
	b.WriteString("- Clear fix path exists\n")
	b.WriteString("- Security or correctness issues that must be addressed\n")
	b.WriteString("- Within remaining budget to attempt fix\n")
	b.WriteString("- The fix won't destabilize other work\n\n")
	b.WriteString("**ESCALATE** when:\n")
	b.WriteString("- Architectural concerns that need human judgment\n")
	b.WriteString("- Ambiguous risk that you're uncertain about\n")
	b.WriteString("- Out of budget for fixing\n")
	b.WriteString("- Policy decisions needed\n")
	b.WriteString("- Multiple conflicting trade-offs\n")
	fmt.Fprintf(&b, "- You are less than %.0f%% confident in PROCEED or FIX\n\n", config.effectiveThreshold()*100)
	b.WriteString("## Output\n\n")
	b.WriteString("Respond with ONLY a JSON object in this exact format (no markdown, no explanation):\n\n")
	b.WriteString("```json\n{\n")
	b.WriteString(`  "decision": "PROCEED|FIX|ESCALATE",` + "\n")
	b.WriteString(`  "reasoning": "Brief explanation of why this decision was made",` + "\n")
	b.WriteString(`  "confidence": 0.0-1.0,` + "\n")
	b.WriteString(`  "fix_instructions": "If FIX: specific instructions for what to fix and how",` + "\n")
	b.WriteString(`  "escalation_summary": "If ESCALATE: brief summary for human reviewer"` + "\n")
	b.WriteString("}\n```\n")

	return b.String()
}

// ParseResponse extracts an ArbiterDecision from free-form LLM output. The
// returned decision's Source is left unset (SourceLLMDecision is applied by
// the caller once the confidence threshold is confirmed).
func ParseResponse(response string) (phase.ArbiterDecision, bool) {
	jsonStr, ok := extractJSON(response)
	if !ok {
		return phase.ArbiterDecision{}, false
	}

	var parsed struct {
		Decision           string  `json:"decision"`
		Reasoning          string  `json:"reasoning"`
		Confidence         float64 `json:"confidence"`
		FixInstructions    string  `json:"fix_instructions"`
		EscalationSummary  string  `json:"escalation_summary"`
		SuggestedFixBudget *int    `json:"suggested_fix_budget"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return phase.ArbiterDecision{}, false
	}

	var verdict phase.ArbiterVerdict
	switch strings.ToUpper(parsed.Decision) {
	case "PROCEED":
		verdict = phase.ArbiterProceed
	case "FIX":
		verdict = phase.ArbiterFix
	case "ESCALATE":
		verdict = phase.ArbiterEscalate
	default:
		return phase.ArbiterDecision{}, false
	}

	reasoning := parsed.Reasoning
	if reasoning == "" {
		reasoning = "No reasoning provided"
	}
	confidence := parsed.Confidence
	if confidence == 0 {
		confidence = 0.5
	}

	decision := phase.NewArbiterDecision(verdict, reasoning, confidence, phase.SourceLLMDecision)
	switch verdict {
	case phase.ArbiterFix:
		decision.FixInstructions = parsed.FixInstructions
		if decision.FixInstructions == "" {
			decision.FixInstructions = "Apply suggested fixes from review findings"
		}
	case phase.ArbiterEscalate:
		decision.EscalationSummary = parsed.EscalationSummary
		if decision.EscalationSummary == "" {
			decision.EscalationSummary = "Review findings require human decision"
		}
	}
	if parsed.SuggestedFixBudget != nil {
		decision.SuggestedFixBudget = *parsed.SuggestedFixBudget
	}

	return decision, true
}

// extractJSON mirrors the review package's tolerant JSON extraction: fenced
// ```json block, then fenced generic block, then first brace-balanced object.
func extractJSON(output string) (string, bool) {
	if start := strings.Index(output, "```json"); start != -1 {
		rest := output[start+len("```json"):]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end]), true
		}
	}

	if start := strings.Index(output, "```"); start != -1 {
		rest := output[start+3:]
		if end := strings.Index(rest, "```"); end != -1 {
			block := rest[:end]
			if objStart := strings.Index(block, "{"); objStart != -1 {
				content := strings.TrimSpace(block[objStart:])
				if content != "" {
					return content, true
				}
			}
		}
	}

	if start := strings.Index(output, "{"); start != -1 {
		depth := 0
		for i := start; i < len(output); i++ {
			switch output[i] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return output[start : i+1], true
				}
			}
		}
	}

	return "", false
}
