package review

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/forgehq/forge/internal/phase"
	"github.com/forgehq/forge/internal/worker"
)

// DefaultTimeout bounds a single specialist's subprocess invocation.
const DefaultTimeout = 5 * time.Minute

const permissionSkipFlag = "--dangerously-skip-permissions"

// Config configures the Dispatcher's subprocess invocations.
type Config struct {
	Command         string
	WorkingDir      string
	Timeout         time.Duration
	Parallel        bool
	SkipPermissions bool
}

// DefaultConfig returns the dispatcher defaults: parallel execution,
// permission prompts skipped, five-minute per-specialist timeout.
func DefaultConfig(command string) Config {
	return Config{
		Command:         command,
		Timeout:         DefaultTimeout,
		Parallel:        true,
		SkipPermissions: true,
	}
}

// PhaseReviewConfig describes what to review: the phase being reviewed, the
// specialists to run, and the context they should be given.
type PhaseReviewConfig struct {
	PhaseID           string
	PhaseName         string
	Specialists       []phase.SpecialistConfig
	Budget            int
	IterationsUsed    int
	FilesChanged      []string
	AdditionalContext string
}

// HasGatingSpecialists reports whether any configured specialist gates.
func (c PhaseReviewConfig) HasGatingSpecialists() bool {
	for _, s := range c.Specialists {
		if s.Gating {
			return true
		}
	}
	return false
}

// ResolvedFocusAreas returns a specialist's effective focus areas: its
// custom list if non-empty, otherwise the built-in defaults for its type.
func ResolvedFocusAreas(s phase.SpecialistConfig) []string {
	if len(s.FocusAreas) > 0 {
		return s.FocusAreas
	}
	normalized := NormalizeType(s.Type)
	if s.CustomName != "" {
		normalized = s.CustomName
	}
	return DefaultFocusAreas(normalized)
}

// specialistLabel returns the normalized type and display/agent names for a
// specialist, folding in a custom name when present.
func specialistLabel(s phase.SpecialistConfig) (normalized, display, agent string) {
	normalized = NormalizeType(s.Type)
	if s.CustomName != "" {
		normalized = s.CustomName
	}
	return normalized, DisplayName(normalized), AgentName(normalized)
}

// Dispatcher runs review specialists against a phase's changes and
// aggregates their verdicts.
type Dispatcher struct {
	config Config
}

// New creates a Dispatcher with the given configuration.
func New(config Config) *Dispatcher {
	return &Dispatcher{config: config}
}

// Dispatch runs every configured specialist (in parallel or sequentially
// per Config.Parallel) and returns the aggregated result.
func (d *Dispatcher) Dispatch(ctx context.Context, cfg PhaseReviewConfig) (phase.ReviewAggregation, error) {
	if len(cfg.Specialists) == 0 {
		return phase.ReviewAggregation{PhaseID: cfg.PhaseID, Verdict: phase.VerdictPass}, nil
	}

	var reports []phase.ReviewReport
	if d.config.Parallel {
		reports = d.runParallel(ctx, cfg)
	} else {
		reports = d.runSequential(ctx, cfg)
	}

	agg := phase.ReviewAggregation{
		PhaseID: cfg.PhaseID,
		Reports: reports,
		Verdict: overallVerdict(reports),
	}
	return agg, nil
}

func (d *Dispatcher) runSequential(ctx context.Context, cfg PhaseReviewConfig) []phase.ReviewReport {
	reports := make([]phase.ReviewReport, 0, len(cfg.Specialists))
	for _, specialist := range cfg.Specialists {
		reports = append(reports, d.runSingle(ctx, specialist, cfg))
	}
	return reports
}

func (d *Dispatcher) runParallel(ctx context.Context, cfg PhaseReviewConfig) []phase.ReviewReport {
	pool := worker.NewPool[phase.SpecialistConfig, phase.ReviewReport](len(cfg.Specialists))
	results := pool.Process(cfg.Specialists, func(specialist phase.SpecialistConfig) (phase.ReviewReport, error) {
		return d.runSingle(ctx, specialist, cfg), nil
	})

	reports := make([]phase.ReviewReport, len(results))
	for i, r := range results {
		reports[i] = r.Value
	}
	return reports
}

func (d *Dispatcher) runSingle(ctx context.Context, specialist phase.SpecialistConfig, cfg PhaseReviewConfig) phase.ReviewReport {
	start := time.Now()
	_, display, agent := specialistLabel(specialist)

	prompt := buildReviewPrompt(specialist, cfg)
	output, err := d.runAssistant(ctx, prompt)
	if err != nil {
		return phase.ReviewReport{
			PhaseID:  cfg.PhaseID,
			Reviewer: agent,
			Gating:   specialist.Gating,
			Verdict:  phase.VerdictPass,
			Summary:  fmt.Sprintf("%s review could not run: %v", display, err),
			Duration: time.Since(start),
		}
	}

	report := parseReviewOutput(output, cfg.PhaseID, agent, specialist.Gating)
	report.Duration = time.Since(start)
	return report
}

// runAssistant spawns the assistant CLI with the review prompt on stdin and
// collects its stdout, mirroring the iteration runner's subprocess pattern
// but as a single non-iterating call.
func (d *Dispatcher) runAssistant(ctx context.Context, prompt string) (string, error) {
	timeout := d.config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"--print"}
	if d.config.SkipPermissions {
		args = append(args, permissionSkipFlag)
	}

	cmd := exec.CommandContext(runCtx, d.config.Command, args...)
	if d.config.WorkingDir != "" {
		cmd.Dir = d.config.WorkingDir
	}
	cmd.Stdin = strings.NewReader(prompt)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("review: stdout pipe: %w", err)
	}

	var buf bytes.Buffer
	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 1<<20)
		for scanner.Scan() {
			buf.WriteString(scanner.Text())
			buf.WriteByte('\n')
		}
	}()

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("review: start: %w", err)
	}
	<-scanDone
	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("review: %w", err)
	}
	return buf.String(), nil
}

// overallVerdict reduces a set of reports to the closed verdict set: fail if
// any report failed, else warn if any warned, else pass.
func overallVerdict(reports []phase.ReviewReport) phase.ReviewVerdict {
	warned := false
	for _, r := range reports {
		if r.Verdict == phase.VerdictFail {
			return phase.VerdictFail
		}
		if r.Verdict == phase.VerdictWarn {
			warned = true
		}
	}
	if warned {
		return phase.VerdictWarn
	}
	return phase.VerdictPass
}
