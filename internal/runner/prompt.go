package runner

import (
	"fmt"
	"strings"

	"github.com/forgehq/forge/internal/phase"
)

// SkillLookup resolves a named skill fragment to its prompt text. Missing
// skills are rendered as a note rather than failing prompt assembly —
// a typo in a phase file shouldn't crash a run that's otherwise fine.
type SkillLookup func(name string) (content string, ok bool)

// PromptContext carries everything outside the phase definition itself that
// feeds into prompt assembly: the running iteration count, a compaction
// summary (once one has been produced), fix instructions injected by the
// Arbiter on a retry, and free-form extra context from the caller.
type PromptContext struct {
	IterationNumber   int
	CompactionSummary string
	FixInstructions   string
	Extra             string
}

// ComposePrompt assembles the deterministic prompt sent to the assistant for
// one iteration: phase name and promise, iteration/budget, any compaction
// summary, any fix instructions, named skills, and extra context, in that
// fixed order so that prompt diffs across iterations are easy to reason about.
func ComposePrompt(p phase.Phase, pc PromptContext, skills SkillLookup) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Phase: %s\n\n", p.Name)
	fmt.Fprintf(&b, "Promise (emit verbatim on success): %s\n", p.Promise)
	fmt.Fprintf(&b, "Iteration %d of %d\n\n", pc.IterationNumber, p.Budget)

	if pc.CompactionSummary != "" {
		b.WriteString("## Prior progress (compacted)\n\n")
		b.WriteString(pc.CompactionSummary)
		b.WriteString("\n\n")
	}

	if pc.FixInstructions != "" {
		b.WriteString("## Review feedback to address\n\n")
		b.WriteString(pc.FixInstructions)
		b.WriteString("\n\n")
	}

	if len(p.Skills) > 0 && skills != nil {
		b.WriteString("## Skills\n\n")
		for _, name := range p.Skills {
			content, ok := skills(name)
			if !ok {
				fmt.Fprintf(&b, "(skill %q not found)\n\n", name)
				continue
			}
			fmt.Fprintf(&b, "### %s\n\n%s\n\n", name, content)
		}
	}

	if pc.Extra != "" {
		b.WriteString("## Additional context\n\n")
		b.WriteString(pc.Extra)
		b.WriteString("\n")
	}

	return b.String()
}
