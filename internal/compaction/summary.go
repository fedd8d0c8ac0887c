package compaction

import (
	"fmt"
	"strings"
	"time"
)

// IterationContext is what the Compaction Manager retains about one
// iteration before it is either kept verbatim or folded into a Summary.
type IterationContext struct {
	Iteration     int
	Timestamp     time.Time
	Summary       string
	FilesModified []string
	FilesAdded    []string
	ProgressPct   int // -1 if not reported
	Errors        []string
	Pivots        []string
}

// NewIterationContext creates an empty context for the given ordinal.
func NewIterationContext(iteration int) IterationContext {
	return IterationContext{Iteration: iteration, Timestamp: time.Now(), ProgressPct: -1}
}

// AddModifiedFile records a modified path, deduplicated.
func (c *IterationContext) AddModifiedFile(path string) {
	if !containsStr(c.FilesModified, path) {
		c.FilesModified = append(c.FilesModified, path)
	}
}

// AddNewFile records an added path, deduplicated.
func (c *IterationContext) AddNewFile(path string) {
	if !containsStr(c.FilesAdded, path) {
		c.FilesAdded = append(c.FilesAdded, path)
	}
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Summary replaces a run of older iterations with a prose digest suitable
// for prompt injection.
type Summary struct {
	PhaseID              string
	PhaseName            string
	Promise              string
	GeneratedAt          time.Time
	IterationsSummarized int
	OriginalChars        int
	SummaryChars         int
	ProgressPct          int // -1 if unknown
	Accomplishments      []string
	FilesModified        []string
	FilesAdded           []string
	CurrentBlockers      []string
	PivotsMade           []string
	Text                 string
}

// NewSummaryFromIterations builds a Summary over a contiguous run of older
// iterations, deduplicating files and pivots and keeping the latest
// progress/blocker snapshot across them.
func NewSummaryFromIterations(phaseID, phaseName, promise string, iterations []IterationContext, originalChars int) Summary {
	s := Summary{
		PhaseID:              phaseID,
		PhaseName:            phaseName,
		Promise:              promise,
		GeneratedAt:          time.Now(),
		IterationsSummarized: len(iterations),
		OriginalChars:        originalChars,
		ProgressPct:          -1,
	}

	for _, it := range iterations {
		if it.Summary != "" {
			s.Accomplishments = append(s.Accomplishments, fmt.Sprintf("Iteration %d: %s", it.Iteration, it.Summary))
		}
		for _, f := range it.FilesModified {
			if !containsStr(s.FilesModified, f) {
				s.FilesModified = append(s.FilesModified, f)
			}
		}
		for _, f := range it.FilesAdded {
			if !containsStr(s.FilesAdded, f) {
				s.FilesAdded = append(s.FilesAdded, f)
			}
		}
		for _, p := range it.Pivots {
			if !containsStr(s.PivotsMade, p) {
				s.PivotsMade = append(s.PivotsMade, p)
			}
		}
		if it.ProgressPct >= 0 {
			s.ProgressPct = it.ProgressPct
		}
		if len(it.Errors) > 0 {
			s.CurrentBlockers = it.Errors
		}
	}

	s.Text = s.generateText()
	s.SummaryChars = len(s.Text)
	return s
}

func (s Summary) generateText() string {
	var b strings.Builder

	b.WriteString("## CONTEXT COMPACTION\n\n")
	fmt.Fprintf(&b, "Previous iterations have been summarized to preserve context. %d iteration(s) were compacted.\n\n", s.IterationsSummarized)

	if s.ProgressPct >= 0 {
		fmt.Fprintf(&b, "**Current Progress:** %d%%\n\n", s.ProgressPct)
	}

	if len(s.Accomplishments) > 0 {
		b.WriteString("### What Has Been Done\n\n")
		for _, a := range s.Accomplishments {
			fmt.Fprintf(&b, "- %s\n", a)
		}
		b.WriteString("\n")
	}

	if len(s.FilesModified) > 0 || len(s.FilesAdded) > 0 {
		b.WriteString("### Files Changed\n\n")
		if len(s.FilesAdded) > 0 {
			b.WriteString("**Added:**\n")
			for _, f := range s.FilesAdded {
				fmt.Fprintf(&b, "- %s\n", f)
			}
		}
		if len(s.FilesModified) > 0 {
			b.WriteString("**Modified:**\n")
			for _, f := range s.FilesModified {
				fmt.Fprintf(&b, "- %s\n", f)
			}
		}
		b.WriteString("\n")
	}

	if len(s.PivotsMade) > 0 {
		b.WriteString("### Strategy Changes\n\n")
		for _, p := range s.PivotsMade {
			fmt.Fprintf(&b, "- %s\n", p)
		}
		b.WriteString("\n")
	}

	if len(s.CurrentBlockers) > 0 {
		b.WriteString("### Current Issues\n\n")
		for _, blocker := range s.CurrentBlockers {
			fmt.Fprintf(&b, "- %s\n", blocker)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "**Continue working on:** Phase %s - %s\n", s.PhaseID, s.PhaseName)
	fmt.Fprintf(&b, "**Goal:** Output <promise>%s</promise> when complete.\n\n", s.Promise)

	return b.String()
}

// CompressionRatio is the fraction of original size eliminated.
func (s Summary) CompressionRatio() float64 {
	if s.OriginalChars == 0 {
		return 1.0
	}
	return 1.0 - float64(s.SummaryChars)/float64(s.OriginalChars)
}

// Status renders a short status line for logging.
func (s Summary) Status() string {
	return fmt.Sprintf("Compacted %d iterations: %d -> %d chars (%.1f%% reduction)",
		s.IterationsSummarized, s.OriginalChars, s.SummaryChars, s.CompressionRatio()*100)
}
