package review

import (
	"encoding/json"
	"strings"

	"github.com/forgehq/forge/internal/phase"
)

// parseReviewOutput tolerantly extracts a ReviewReport from an assistant's
// free-form stdout: a fenced ```json block, a fenced plain block, or the
// first balanced top-level JSON object. Unparseable output falls back to a
// passing verdict rather than blocking progression on a formatting mistake.
func parseReviewOutput(output, phaseID, reviewer string, isGating bool) phase.ReviewReport {
	if jsonStr, ok := extractJSON(output); ok {
		var parsed struct {
			Verdict  string `json:"verdict"`
			Summary  string `json:"summary"`
			Findings []struct {
				Severity   string `json:"severity"`
				File       string `json:"file"`
				Line       *int   `json:"line"`
				Column     *int   `json:"column"`
				Issue      string `json:"issue"`
				Suggestion string `json:"suggestion"`
				Category   string `json:"category"`
			} `json:"findings"`
		}
		if err := json.Unmarshal([]byte(jsonStr), &parsed); err == nil {
			statedVerdict := parseVerdict(parsed.Verdict)

			var findings []phase.ReviewFinding
			for _, f := range parsed.Findings {
				if f.File == "" || f.Issue == "" {
					continue
				}
				findings = append(findings, phase.ReviewFinding{
					Severity:   parseSeverity(f.Severity),
					File:       f.File,
					Line:       f.Line,
					Column:     f.Column,
					Issue:      f.Issue,
					Suggestion: f.Suggestion,
					Category:   f.Category,
				})
			}

			return phase.ReviewReport{
				PhaseID:  phaseID,
				Reviewer: reviewer,
				Gating:   isGating,
				Verdict:  determineVerdict(findings, statedVerdict, isGating),
				Findings: findings,
				Summary:  parsed.Summary,
			}
		}
	}

	return phase.ReviewReport{
		PhaseID:  phaseID,
		Reviewer: reviewer,
		Gating:   isGating,
		Verdict:  phase.VerdictPass,
		Summary:  "Review completed (output could not be parsed)",
	}
}

func parseVerdict(s string) phase.ReviewVerdict {
	switch strings.ToLower(s) {
	case "fail":
		return phase.VerdictFail
	case "warn":
		return phase.VerdictWarn
	default:
		return phase.VerdictPass
	}
}

func parseSeverity(s string) phase.FindingSeverity {
	switch strings.ToLower(s) {
	case "error":
		return phase.SeverityError
	case "info":
		return phase.SeverityInfo
	case "note":
		return phase.SeverityNote
	default:
		return phase.SeverityWarning
	}
}

// determineVerdict applies the gating rule (a gating review with any
// critical finding is forced to fail) and the upgrade rule (an actionable
// finding upgrades a stated pass to warn), rather than trusting the
// assistant's self-reported verdict unconditionally.
func determineVerdict(findings []phase.ReviewFinding, stated phase.ReviewVerdict, isGating bool) phase.ReviewVerdict {
	hasCritical := false
	hasActionable := false
	for _, f := range findings {
		if f.Severity.IsCritical() {
			hasCritical = true
		}
		if f.Severity.IsActionable() {
			hasActionable = true
		}
	}

	if isGating && hasCritical {
		return phase.VerdictFail
	}
	if hasActionable && stated == phase.VerdictPass {
		return phase.VerdictWarn
	}
	return stated
}

// extractJSON locates a JSON object within free-form text: first a
// ```json fenced block, then any fenced block containing an object, then
// the first brace-balanced object in the raw text.
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
