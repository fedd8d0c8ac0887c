package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/forgehq/forge/internal/arbiter"
	"github.com/forgehq/forge/internal/audit"
	"github.com/forgehq/forge/internal/callback"
	"github.com/forgehq/forge/internal/config"
	"github.com/forgehq/forge/internal/events"
	"github.com/forgehq/forge/internal/executor"
	"github.com/forgehq/forge/internal/forgeerr"
	"github.com/forgehq/forge/internal/logging"
	"github.com/forgehq/forge/internal/phasefile"
	"github.com/forgehq/forge/internal/safety"
	"github.com/forgehq/forge/internal/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run [phase-file]",
	Short: "Execute a phase file from scratch",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := resolveRunConfig(args)
	if err != nil {
		return err
	}
	logging.Setup(cfg.Verbose)

	graph, _, err := phasefile.Load(cfg.PhaseFile)
	if err != nil {
		return fmt.Errorf("load phase file: %w", err)
	}

	if cfg.DryRun {
		fmt.Printf("would run %d phase(s) from %s\n", len(graph.Phases()), cfg.PhaseFile)
		return nil
	}

	runID := uuid.NewString()
	auditDir := cfg.AuditDir
	if !filepath.IsAbs(auditDir) {
		auditDir = filepath.Join(cfg.ProjectDir, auditDir)
	}
	if err := os.MkdirAll(auditDir, 0o755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}

	bus := events.NewBus(0)
	defer bus.Close()

	persister := audit.NewPersister(auditDir, runID, cfg)
	stopPersister := persister.Subscribe(bus)
	defer stopPersister()

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
	}, exec.Run, bus.Publish)

	abortWatcher := safety.NewAbortWatcher(cfg.ProjectDir, safety.DefaultPollInterval)
	defer abortWatcher.Close()

	if cfg.CallbackEnabled {
		cb := callback.New()
		callbackURL, err := cb.Start()
		if err != nil {
			return fmt.Errorf("%w: %v", forgeerr.ErrBindCallback, err)
		}
		VerbosePrintf("callback endpoint listening at %s\n", callbackURL)
		defer func() {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelStop()
			_ = cb.Stop(stopCtx)
		}()
	}

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
		return fmt.Errorf("run cancelled: %w", err)
	}
	if !summary.AllSuccess() {
		return fmt.Errorf("run finished with %d failed phase(s)", summary.Failed)
	}
	return nil
}

func resolveRunConfig(args []string) (*config.RunConfig, error) {
	overrides := &config.RunConfig{
		DryRun:  GetDryRun(),
		Verbose: GetVerbose(),
		Output:  GetOutput(),
	}
	if len(args) == 1 {
		overrides.PhaseFile = args[0]
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		return nil, err
	}
	if len(args) == 1 {
		cfg.PhaseFile = args[0]
	}
	return cfg, nil
}

func arbiterConfig(cfg *config.RunConfig) (arbiter.Config, error) {
	switch cfg.ArbiterMode {
	case string(arbiter.ModeManual):
		return arbiter.ManualConfig(), nil
	case string(arbiter.ModeArbiter):
		ac := arbiter.ArbiterModeConfig()
		ac.ConfidenceThreshold = cfg.ArbiterConfidenceThreshold
		ac.MaxFixAttempts = cfg.ArbiterMaxFixAttempts
		return ac, nil
	case "", string(arbiter.ModeAuto):
		return arbiter.AutoConfig(cfg.ArbiterMaxFixAttempts), nil
	default:
		return arbiter.Config{}, fmt.Errorf("unknown arbiter mode %q", cfg.ArbiterMode)
	}
}
