package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgehq/forge/internal/audit"
	"github.com/forgehq/forge/internal/formatter"
)

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show a run's outcome",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := resolveRunConfig(nil)
	if err != nil {
		return err
	}

	auditDir := cfg.AuditDir
	if !filepath.IsAbs(auditDir) {
		auditDir = filepath.Join(cfg.ProjectDir, auditDir)
	}

	runID := ""
	if len(args) == 1 {
		runID = args[0]
	} else {
		runID, err = latestRunID(auditDir)
		if err != nil {
			return err
		}
	}

	record, err := audit.LoadRecord(auditDir, runID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", runID, err)
	}

	f, err := resolveFormatter(cfg.Output)
	if err != nil {
		return err
	}
	return f.Format(os.Stdout, record)
}

func latestRunID(auditDir string) (string, error) {
	ids, err := audit.ListRuns(auditDir)
	if err != nil {
		return "", fmt.Errorf("list runs: %w", err)
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("no runs recorded under %s", auditDir)
	}
	latestID := ""
	var latest time.Time
	for _, id := range ids {
		record, err := audit.LoadRecord(auditDir, id)
		if err != nil {
			continue
		}
		if latestID == "" || record.StartedAt.After(latest) {
			latestID, latest = id, record.StartedAt
		}
	}
	if latestID == "" {
		return "", fmt.Errorf("no readable runs recorded under %s", auditDir)
	}
	return latestID, nil
}

func resolveFormatter(output string) (formatter.Formatter, error) {
	switch output {
	case "", "table":
		return formatter.NewRunTableFormatter(), nil
	case "jsonl", "json":
		return formatter.NewJSONLFormatter(), nil
	case "markdown", "md":
		return formatter.NewMarkdownFormatter(), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", output)
	}
}
