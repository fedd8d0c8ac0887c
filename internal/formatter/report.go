package formatter

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/forgehq/forge/internal/audit"
	"github.com/forgehq/forge/internal/phase"
)

// Formatter renders a persisted run record in a specific output shape.
// JSONLFormatter, MarkdownFormatter, and RunTableFormatter all implement it.
type Formatter interface {
	Format(w io.Writer, record *audit.RunRecord) error
	Extension() string
}

// RunTableFormatter renders a run record as a bordered console table — the
// default `forge status` output when no other format is selected.
type RunTableFormatter struct{}

// NewRunTableFormatter creates a table formatter.
func NewRunTableFormatter() *RunTableFormatter {
	return &RunTableFormatter{}
}

// Extension returns the file extension for table output (not meaningful for
// a terminal renderer, but every Formatter implements it for consistency).
func (rf *RunTableFormatter) Extension() string {
	return ".txt"
}

// Format writes record as a rounded-border table, one row per phase.
func (rf *RunTableFormatter) Format(w io.Writer, record *audit.RunRecord) error {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateRows = false

	tw.AppendHeader(table.Row{"Phase", "Status", "Iterations", "Duration", "Review", "Arbiter"})

	for _, id := range sortedPhaseIDs(record.Phases) {
		r := record.Phases[id]
		tw.AppendRow(table.Row{
			id,
			statusCell(r),
			r.Iterations,
			r.Duration.Round(time.Second),
			reviewCell(r),
			arbiterCell(r),
		})
	}

	tw.AppendFooter(table.Row{"", "", "", "", "", fmt.Sprintf("run %s", record.RunID)})
	tw.Render()
	return nil
}

func statusCell(r phase.Result) string {
	if r.Success {
		return "ok"
	}
	if r.Error != "" {
		return "failed: " + r.Error
	}
	return "failed"
}

func reviewCell(r phase.Result) string {
	if r.Review == nil {
		return "-"
	}
	return string(r.Review.Verdict)
}

func arbiterCell(r phase.Result) string {
	if r.Arbiter == nil {
		return "-"
	}
	return string(r.Arbiter.Verdict)
}
