// Package formatter renders a persisted run record as table, JSONL, or
// markdown output for forge status.
package formatter

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/forgehq/forge/internal/audit"
	"github.com/forgehq/forge/internal/phase"
)

// MarkdownFormatter renders a run record as a human-readable markdown
// report: one section per phase, its review findings, and any arbiter
// decision.
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a markdown formatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Extension returns the file extension for markdown output.
func (mf *MarkdownFormatter) Extension() string {
	return ".md"
}

// Format writes record as a markdown report.
func (mf *MarkdownFormatter) Format(w io.Writer, record *audit.RunRecord) error {
	data := mf.buildTemplateData(record)

	tmpl, err := template.New("run").Funcs(mf.templateFuncs()).Parse(runTemplate)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	return tmpl.Execute(w, data)
}

type runTemplateData struct {
	RunID     string
	StartedAt string
	EndedAt   string
	Success   bool
	Phases    []phaseTemplateData
}

type phaseTemplateData struct {
	ID         string
	Success    bool
	Iterations int
	Duration   string
	Error      string
	Findings   []findingTemplateData
	Arbiter    string
}

type findingTemplateData struct {
	Severity string
	File     string
	Issue    string
}

func (mf *MarkdownFormatter) buildTemplateData(record *audit.RunRecord) *runTemplateData {
	data := &runTemplateData{
		RunID:     record.RunID,
		StartedAt: record.StartedAt.Format(time.RFC3339),
		Success:   record.Success,
	}
	if record.EndedAt != nil {
		data.EndedAt = record.EndedAt.Format(time.RFC3339)
	}

	for _, id := range sortedPhaseIDs(record.Phases) {
		r := record.Phases[id]
		pd := phaseTemplateData{
			ID:         id,
			Success:    r.Success,
			Iterations: r.Iterations,
			Duration:   r.Duration.Round(time.Second).String(),
			Error:      r.Error,
		}
		if r.Review != nil {
			for _, report := range r.Review.Reports {
				for _, f := range report.Findings {
					pd.Findings = append(pd.Findings, findingTemplateData{
						Severity: string(f.Severity),
						File:     f.File,
						Issue:    f.Issue,
					})
				}
			}
		}
		if r.Arbiter != nil {
			pd.Arbiter = fmt.Sprintf("%s (%s, confidence %.2f)", r.Arbiter.Verdict, r.Arbiter.Source, r.Arbiter.Confidence)
		}
		data.Phases = append(data.Phases, pd)
	}

	return data
}

func (mf *MarkdownFormatter) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"statusIcon": func(success bool) string {
			if success {
				return "✅"
			}
			return "❌"
		},
		"hasFindings": func(f []findingTemplateData) bool { return len(f) > 0 },
		"join":        strings.Join,
	}
}

// sortedPhaseIDs returns the keys of a phase-result map in deterministic
// (lexical) order, since map iteration order is not stable and reports must
// read the same way across runs.
func sortedPhaseIDs(phases map[string]phase.Result) []string {
	ids := make([]string, 0, len(phases))
	for id := range phases {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

const runTemplate = `# Run {{ .RunID }}

**Started:** {{ .StartedAt }}
{{- if .EndedAt }}
**Ended:** {{ .EndedAt }}
{{- end }}
**Result:** {{ statusIcon .Success }}

## Phases

{{ range .Phases }}
### {{ statusIcon .Success }} {{ .ID }}

- Iterations: {{ .Iterations }}
- Duration: {{ .Duration }}
{{- if .Error }}
- Error: {{ .Error }}
{{- end }}
{{- if .Arbiter }}
- Arbiter: {{ .Arbiter }}
{{- end }}
{{- if hasFindings .Findings }}

| Severity | File | Issue |
|----------|------|-------|
{{- range .Findings }}
| {{ .Severity }} | {{ .File }} | {{ .Issue }} |
{{- end }}
{{- end }}
{{ end }}
`
