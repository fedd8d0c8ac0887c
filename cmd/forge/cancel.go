package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgehq/forge/internal/safety"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Signal a running orchestrator to abort",
	Args:  cobra.NoArgs,
	RunE:  runCancel,
}

func runCancel(cmd *cobra.Command, args []string) error {
	cfg, err := resolveRunConfig(nil)
	if err != nil {
		return err
	}

	sentinelDir := filepath.Join(cfg.ProjectDir, ".forge")
	if err := os.MkdirAll(sentinelDir, 0o755); err != nil {
		return fmt.Errorf("create .forge dir: %w", err)
	}

	path := filepath.Join(sentinelDir, safety.AbortFileName)
	if err := os.WriteFile(path, []byte(time.Now().UTC().Format(time.RFC3339)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write abort sentinel: %w", err)
	}

	fmt.Printf("wrote abort sentinel to %s\n", path)
	return nil
}
