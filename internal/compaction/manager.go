package compaction

import (
	"strings"

	"github.com/forgehq/forge/internal/phase"
)

// Manager orchestrates context compaction for a single running phase: it
// tracks iteration history, decides when to compact, and exposes the
// latest compaction summary for prompt injection.
type Manager struct {
	PhaseID   string
	PhaseName string
	Promise   string

	tracker        *ContextTracker
	history        []IterationContext
	lastCompaction *Summary
}

// NewManager creates a Manager against the default context window.
func NewManager(phaseID, phaseName, promise string) *Manager {
	return NewManagerWithWindow(phaseID, phaseName, promise, DefaultWindowChars)
}

// NewManagerWithWindow creates a Manager against a custom window size.
func NewManagerWithWindow(phaseID, phaseName, promise string, windowChars int) *Manager {
	return &Manager{
		PhaseID:   phaseID,
		PhaseName: phaseName,
		Promise:   promise,
		tracker:   NewContextTrackerWithWindow(windowChars),
	}
}

// RecordIteration folds one iteration's results into history and updates
// context usage tracking. Call this once per completed iteration.
func (m *Manager) RecordIteration(iteration, promptChars, outputChars int, changes phase.ChangeSummary, sig phase.Signals, outputSummary string) {
	m.tracker.AddIteration(promptChars, outputChars)

	ctx := NewIterationContext(iteration)
	ctx.Summary = outputSummary

	for _, f := range changes.FilesAdded {
		ctx.AddNewFile(f)
	}
	for _, f := range changes.FilesModified {
		ctx.AddModifiedFile(f)
	}

	ctx.ProgressPct = sig.LatestProgress()

	for _, p := range sig.Pivots {
		text := p.Text
		if text == "" {
			text = p.To
		}
		ctx.Pivots = append(ctx.Pivots, text)
	}

	for _, b := range sig.UnacknowledgedBlockers() {
		ctx.Errors = append(ctx.Errors, b.Text)
	}

	m.history = append(m.history, ctx)
}

// ShouldCompact reports whether compaction should run: the tracker is over
// threshold AND at least two iterations have been recorded (compacting a
// single iteration would throw away the only detail we have).
func (m *Manager) ShouldCompact() bool {
	return m.tracker.ShouldCompact() && len(m.history) >= 2
}

// CompactIfNeeded compacts older iterations into a Summary if ShouldCompact
// holds, keeping the most recent maxRecentIterations verbatim. Returns the
// summary text and true if compaction ran.
func (m *Manager) CompactIfNeeded() (string, bool) {
	if !m.ShouldCompact() {
		return "", false
	}
	return m.compact()
}

// ForceCompact compacts regardless of threshold. With two or more recorded
// iterations the most recent one is left untouched; a lone iteration is
// compacted. Used by an operator-triggered "compact now".
func (m *Manager) ForceCompact() (*Summary, bool) {
	if len(m.history) == 0 {
		return nil, false
	}
	toCompact := len(m.history) - 1
	if toCompact < 1 {
		toCompact = 1
	}
	return m.compactN(toCompact)
}

func (m *Manager) compact() (string, bool) {
	toCompact := len(m.history) - maxRecentIterations
	if toCompact <= 0 {
		return "", false
	}
	summary, ok := m.compactN(toCompact)
	if !ok {
		return "", false
	}
	return summary.Text, true
}

func (m *Manager) compactN(n int) (*Summary, bool) {
	if n > len(m.history) {
		n = len(m.history)
	}
	if n <= 0 {
		return nil, false
	}

	toCompact := m.history[:n]
	remaining := m.history[n:]

	originalChars := m.tracker.UsedChars
	summary := NewSummaryFromIterations(m.PhaseID, m.PhaseName, m.Promise, toCompact, originalChars)

	m.tracker.ApplyCompaction(summary.SummaryChars, n)
	m.history = remaining
	m.lastCompaction = &summary

	return &summary, true
}

// LastCompaction returns the most recent compaction summary, if any.
func (m *Manager) LastCompaction() *Summary {
	return m.lastCompaction
}

// Status renders the tracker's current status for logging.
func (m *Manager) Status() string {
	return m.tracker.StatusSummary()
}

// Tracker exposes the underlying ContextTracker for read-only inspection.
func (m *Manager) Tracker() *ContextTracker {
	return m.tracker
}

// HasBudgetForIteration reports whether another iteration's estimated
// prompt size would keep usage under the critical threshold.
func (m *Manager) HasBudgetForIteration(estimatedPromptChars int) bool {
	return m.tracker.HasBudgetFor(estimatedPromptChars)
}

// IterationCount returns the number of iterations currently retained in
// full detail (not yet folded into a summary).
func (m *Manager) IterationCount() int {
	return len(m.history)
}

// ContextInjection returns the latest compaction summary's prompt text, if
// compaction has occurred.
func (m *Manager) ContextInjection() (string, bool) {
	if m.lastCompaction == nil {
		return "", false
	}
	return m.lastCompaction.Text, true
}

// ExtractOutputSummary derives a short digest of an iteration's output for
// storage in history, recognizing common progress phrasing before falling
// back to the first non-empty line.
func ExtractOutputSummary(output string, maxLen int) string {
	var parts []string
	lower := strings.ToLower(output)

	has := func(s string) bool { return strings.Contains(lower, s) }

	if has("created") {
		parts = append(parts, "Created files")
	}
	if has("modified") || has("updated") {
		parts = append(parts, "Modified files")
	}
	if has("test") {
		parts = append(parts, "Worked on tests")
	}
	if has("error") || has("failed") {
		parts = append(parts, "Encountered issues")
	}
	if has("fixed") {
		parts = append(parts, "Fixed issues")
	}
	if has("implemented") {
		parts = append(parts, "Implemented features")
	}
	if has("refactor") {
		parts = append(parts, "Refactored code")
	}

	if len(parts) == 0 {
		for _, line := range strings.Split(output, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			return truncate(line, maxLen)
		}
		return "Iteration completed"
	}

	return truncate(strings.Join(parts, ", "), maxLen)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
