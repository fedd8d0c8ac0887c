package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forgehq/forge/internal/audit"
	"github.com/forgehq/forge/internal/events"
	"github.com/forgehq/forge/internal/executor"
	"github.com/forgehq/forge/internal/logging"
	"github.com/forgehq/forge/internal/phase"
	"github.com/forgehq/forge/internal/phasefile"
	"github.com/forgehq/forge/internal/safety"
	"github.com/forgehq/forge/internal/scheduler"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Continue a previously interrupted run",
	Args:  cobra.ExactArgs(1),
	RunE:  runResume,
}

func runResume(cmd *cobra.Command, args []string) error {
	runID := args[0]

	cfg, err := resolveRunConfig(nil)
	if err != nil {
		return err
	}
	logging.Setup(cfg.Verbose)

	auditDir := cfg.AuditDir
	if !filepath.IsAbs(auditDir) {
		auditDir = filepath.Join(cfg.ProjectDir, auditDir)
	}

	record, err := audit.LoadRecord(auditDir, runID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", runID, err)
	}
	if record.Success {
		fmt.Printf("run %s already completed successfully; nothing to resume\n", runID)
		return nil
	}

	graph, _, err := phasefile.Load(cfg.PhaseFile)
	if err != nil {
		return fmt.Errorf("load phase file: %w", err)
	}

	remaining := 0
	for _, p := range graph.Phases() {
		if r, ok := record.Phases[p.ID]; !ok || !r.Success {
			remaining++
		}
	}
	fmt.Printf("resuming run %s: %d of %d phase(s) still incomplete\n", runID, remaining, len(graph.Phases()))

	bus := events.NewBus(0)
	defer bus.Close()

	persister := audit.NewPersister(auditDir, runID, cfg)
	stopPersister := persister.Subscribe(bus)
	defer stopPersister()
	for id, r := range record.Phases {
		if r.Success {
			bus.Publish(events.Completed(id, r))
		}
	}

	arbiterCfg, err := arbiterConfig(cfg)
	if err != nil {
		return err
	}

	exec := executor.New(executor.Config{
		WorkDir:          cfg.ProjectDir,
		AssistantCommand: cfg.AssistantCommand,
		Arbiter:          arbiterCfg,
		MaxFixRounds:     cfg.ArbiterMaxFixAttempts,
	}, nil, bus.Publish)

	sched := scheduler.New(graph, scheduler.Config{
		MaxParallel: cfg.MaxParallel,
		FailFast:    cfg.FailFast,
	}, resumeAwareRun(record, exec.Run), bus.Publish)

	abortWatcher := safety.NewAbortWatcher(cfg.ProjectDir, safety.DefaultPollInterval)
	defer abortWatcher.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	go func() {
		if err := abortWatcher.Wait(runCtx); err == safety.ErrAborted {
			cancelRun()
		}
	}()

	summary, err := sched.Execute(runCtx)
	bus.Publish(events.RunCompleted(err == nil && summary.AllSuccess(), summary))
	stopPersister()

	if err != nil {
		return fmt.Errorf("resume cancelled: %w", err)
	}
	if !summary.AllSuccess() {
		return fmt.Errorf("resume finished with %d failed phase(s)", summary.Failed)
	}
	return nil
}

// resumeAwareRun wraps run so a phase already recorded as successful in a
// prior attempt is returned immediately rather than re-executed, letting a
// resumed run skip straight to whatever didn't finish last time.
func resumeAwareRun(record *audit.RunRecord, run scheduler.RunFunc) scheduler.RunFunc {
	return func(ctx context.Context, p phase.Phase) phase.Result {
		if r, ok := record.Phases[p.ID]; ok && r.Success {
			return r
		}
		return run(ctx, p)
	}
}
