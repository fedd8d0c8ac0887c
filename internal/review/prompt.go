package review

import (
	"fmt"
	"strings"

	"github.com/forgehq/forge/internal/phase"
)

// buildReviewPrompt assembles the prompt handed to the assistant CLI for a
// single specialist's pass over a phase's changes.
func buildReviewPrompt(specialist phase.SpecialistConfig, cfg PhaseReviewConfig) string {
	_, display, _ := specialistLabel(specialist)
	focusAreas := ResolvedFocusAreas(specialist)

	var focusList strings.Builder
	for _, area := range focusAreas {
		fmt.Fprintf(&focusList, "- %s\n", area)
	}

	var filesSection string
	if len(cfg.FilesChanged) == 0 {
		filesSection = "No specific files listed - review the entire phase output."
	} else {
		var b strings.Builder
		b.WriteString("Focus on these changed files:\n")
		for _, f := range cfg.FilesChanged {
			fmt.Fprintf(&b, "- %s\n", f)
		}
		filesSection = b.String()
	}

	var contextSection string
	if cfg.AdditionalContext != "" {
		contextSection = fmt.Sprintf("\n## Additional Context\n%s\n", cfg.AdditionalContext)
	}

	gatingNote := "This is an advisory review. Issues will be reported but won't block phase progression."
	if specialist.Gating {
		gatingNote = "**This is a GATING review.** If you find critical issues (error severity), the phase cannot proceed until they are resolved."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s Review\n\n", display)
	fmt.Fprintf(&b, "You are a code review specialist focused on **%s** concerns.\n\n", display)
	b.WriteString("## Review Context\n")
	fmt.Fprintf(&b, "- Phase: %s - %s\n", cfg.PhaseID, cfg.PhaseName)
	fmt.Fprintf(&b, "- Reviewer Role: %s\n", display)
	b.WriteString(contextSection)
	b.WriteString(gatingNote)
	b.WriteString("\n\n## Focus Areas\n\nExamine the code for these specific concerns:\n")
	b.WriteString(focusList.String())
	b.WriteString("\n## Files to Review\n\n")
	b.WriteString(filesSection)
	b.WriteString("\n\n## Review Instructions\n\n")
	b.WriteString("1. Examine the code changes carefully\n")
	b.WriteString("2. Check for issues in your focus areas\n")
	b.WriteString("3. For each issue found:\n")
	b.WriteString("   - Identify the specific file and line number\n")
	b.WriteString("   - Describe the issue clearly\n")
	b.WriteString("   - Suggest how to fix it\n")
	b.WriteString("   - Classify severity: error (critical), warning (should fix), info (nice to fix), note (observation)\n\n")
	b.WriteString("## Output Format\n\n")
	b.WriteString("Respond with a JSON object containing your review findings:\n\n")
	b.WriteString("```json\n{\n")
	b.WriteString(`  "verdict": "pass|warn|fail",` + "\n")
	b.WriteString(`  "summary": "Brief summary of your review findings",` + "\n")
	b.WriteString(`  "findings": [` + "\n")
	b.WriteString("    {\n")
	b.WriteString(`      "severity": "error|warning|info|note",` + "\n")
	b.WriteString(`      "file": "path/to/file.go",` + "\n")
	b.WriteString(`      "line": 42,` + "\n")
	b.WriteString(`      "issue": "Description of the issue",` + "\n")
	b.WriteString(`      "suggestion": "How to fix it"` + "\n")
	b.WriteString("    }\n  ]\n}\n```\n\n")
	fmt.Fprintf(&b, "If no issues are found, return a verdict of \"pass\" with an empty findings list and a summary noting no %s issues were found.\n\n", display)
	b.WriteString("Begin your review now.\n")

	return b.String()
}
