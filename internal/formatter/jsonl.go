package formatter

import (
	"encoding/json"
	"io"

	"github.com/forgehq/forge/internal/audit"
	"github.com/forgehq/forge/internal/phase"
)

// JSONLFormatter renders a run record as JSON Lines: one phase result per
// line, in deterministic (phase ID) order, followed by a final summary
// line. This is the machine-readable sibling of the table and markdown
// renderers — built for piping into jq or another tool, not for a human to
// read directly.
type JSONLFormatter struct {
	// Pretty enables indented JSON per line (off by default; indentation
	// defeats the point of one-object-per-line streaming).
	Pretty bool
}

// NewJSONLFormatter creates a JSONL formatter.
func NewJSONLFormatter() *JSONLFormatter {
	return &JSONLFormatter{Pretty: false}
}

// Extension returns the file extension for JSONL output.
func (jf *JSONLFormatter) Extension() string {
	return ".jsonl"
}

// Format writes record's phase results as JSON lines, then a trailing
// summary line.
func (jf *JSONLFormatter) Format(w io.Writer, record *audit.RunRecord) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if jf.Pretty {
		encoder.SetIndent("", "  ")
	}

	for _, id := range sortedPhaseIDs(record.Phases) {
		if err := encoder.Encode(jf.buildPhaseLine(record.Phases[id])); err != nil {
			return err
		}
	}

	return encoder.Encode(jf.buildSummaryLine(record))
}

// phaseLine is the structure written for each phase result.
type phaseLine struct {
	Type       string   `json:"type"`
	PhaseID    string   `json:"phase_id"`
	Success    bool     `json:"success"`
	Iterations int      `json:"iterations"`
	DurationMS int64    `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
	Review     *reviewLine `json:"review,omitempty"`
}

type reviewLine struct {
	Verdict  string   `json:"verdict"`
	Findings int      `json:"findings"`
}

func (jf *JSONLFormatter) buildPhaseLine(r phase.Result) phaseLine {
	line := phaseLine{
		Type:       "phase",
		PhaseID:    r.PhaseID,
		Success:    r.Success,
		Iterations: r.Iterations,
		DurationMS: r.Duration.Milliseconds(),
		Error:      r.Error,
	}
	if r.Review != nil {
		count := 0
		for _, report := range r.Review.Reports {
			count += len(report.Findings)
		}
		line.Review = &reviewLine{Verdict: string(r.Review.Verdict), Findings: count}
	}
	return line
}

// summaryLine is the trailing record summarizing the whole run.
type summaryLine struct {
	Type      string `json:"type"`
	RunID     string `json:"run_id"`
	Success   bool   `json:"success"`
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at,omitempty"`
}

func (jf *JSONLFormatter) buildSummaryLine(record *audit.RunRecord) summaryLine {
	s := summaryLine{
		Type:      "summary",
		RunID:     record.RunID,
		Success:   record.Success,
		StartedAt: record.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if record.EndedAt != nil {
		s.EndedAt = record.EndedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return s
}
