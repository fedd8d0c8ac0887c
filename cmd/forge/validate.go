package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgehq/forge/internal/phasefile"
)

var validateCmd = &cobra.Command{
	Use:   "validate [phase-file]",
	Short: "Check a phase file without executing it",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := resolveRunConfig(args)
	if err != nil {
		return err
	}

	graph, doc, err := phasefile.Load(cfg.PhaseFile)
	if err != nil {
		return fmt.Errorf("invalid phase file: %w", err)
	}

	fmt.Printf("%s: %d phase(s), spec hash %s\n", cfg.PhaseFile, len(graph.Phases()), doc.SpecHash)
	for _, p := range graph.Phases() {
		deps := "(none)"
		if len(p.DependsOn) > 0 {
			deps = fmt.Sprintf("%v", p.DependsOn)
		}
		fmt.Printf("  %-20s budget=%-3d permission=%-12s depends_on=%s\n", p.ID, p.Budget, p.EffectivePermission(), deps)
	}
	return nil
}
