// Package executor runs a single phase to completion: iterate the assistant
// until it emits its promise or the budget is exhausted, dispatch review
// specialists over the resulting changes, and consult the arbiter when a
// gating review fails, looping fix iterations until the arbiter proceeds,
// escalates, or the fix-round ceiling is reached.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/forgehq/forge/internal/arbiter"
	"github.com/forgehq/forge/internal/compaction"
	"github.com/forgehq/forge/internal/events"
	"github.com/forgehq/forge/internal/phase"
	"github.com/forgehq/forge/internal/review"
	"github.com/forgehq/forge/internal/runner"
	"github.com/forgehq/forge/internal/tracker"
)

// DefaultIterationDelay mirrors the brief pause the original takes between
// iterations, giving the filesystem and any background tooling a moment to
// settle before the next snapshot diff.
const DefaultIterationDelay = time.Second

// DefaultMaxFixRounds caps how many times a single phase will loop back
// through fix-then-re-review before it is forced to escalate regardless of
// what the arbiter says, so a misbehaving arbiter config can't spin forever.
const DefaultMaxFixRounds = 5

// ApprovalFunc gates an iteration in strict permission mode. Returning false
// (with a nil error) stops the phase: Run returns a failed Result whose error
// reads "paused: awaiting approval", and the executor does not resume it.
type ApprovalFunc func(ctx context.Context, p phase.Phase, iteration int) (bool, error)

// Config configures an Executor.
type Config struct {
	WorkDir          string
	AssistantCommand string
	IterationDelay   time.Duration
	Skills           runner.SkillLookup
	Arbiter          arbiter.Config
	ArbiterInvoke    func(ctx context.Context, prompt string) (string, error)
	MaxFixRounds     int
}

// Executor runs individual phases.
type Executor struct {
	cfg       Config
	runner    *runner.Runner
	tracker   *tracker.Tracker
	dispatch  *review.Dispatcher
	arbiter   *arbiter.Executor
	approve   ApprovalFunc
	onEvent   func(events.Event)
}

// New constructs an Executor. approve and onEvent may both be nil.
func New(cfg Config, approve ApprovalFunc, onEvent func(events.Event)) *Executor {
	if cfg.IterationDelay <= 0 {
		cfg.IterationDelay = DefaultIterationDelay
	}
	if cfg.MaxFixRounds <= 0 {
		cfg.MaxFixRounds = DefaultMaxFixRounds
	}
	reviewCfg := review.DefaultConfig(cfg.AssistantCommand)
	reviewCfg.WorkingDir = cfg.WorkDir

	return &Executor{
		cfg:      cfg,
		runner:   runner.New(cfg.AssistantCommand),
		tracker:  tracker.New(cfg.WorkDir),
		dispatch: review.New(reviewCfg),
		arbiter:  arbiter.New(cfg.Arbiter, cfg.ArbiterInvoke),
		approve:  approve,
		onEvent:  onEvent,
	}
}

func (e *Executor) emit(ev events.Event) {
	if e.onEvent != nil {
		e.onEvent(ev)
	}
}

// Run executes one phase end to end and returns its terminal Result. It never
// returns a Go error: every failure mode (subprocess error, timeout, budget
// exhaustion, review gate, arbiter escalation) is represented in the
// returned Result instead, matching how scheduler callers consume it.
func (e *Executor) Run(ctx context.Context, p phase.Phase) phase.Result {
	start := time.Now()

	snap, err := e.tracker.SnapshotBefore(ctx, p.ID)
	if err != nil {
		return phase.NewFailure(p.ID, 0, phase.ChangeSummary{}, time.Since(start), fmt.Sprintf("snapshot failed: %v", err))
	}

	mgr := compaction.NewManager(p.ID, p.Name, p.Promise)

	iteration := 0
	completed := false
	var lastChanges phase.ChangeSummary

	for iter := 1; iter <= p.Budget; iter++ {
		iteration = iter

		if e.approve != nil && p.EffectivePermission() == phase.PermissionStrict {
			ok, err := e.approve(ctx, p, iter)
			if err != nil {
				return phase.NewFailure(p.ID, iteration, lastChanges, time.Since(start), fmt.Sprintf("approval check failed: %v", err))
			}
			if !ok {
				return phase.NewFailure(p.ID, iteration, lastChanges, time.Since(start), "paused: awaiting approval")
			}
		}

		e.emit(events.Progress(p.ID, iter, p.Budget, nil))

		compactionSummary, _ := mgr.CompactIfNeeded()
		prompt := runner.ComposePrompt(p, runner.PromptContext{
			IterationNumber:   iter,
			CompactionSummary: compactionSummary,
		}, e.cfg.Skills)

		out, err := e.runner.RunIteration(ctx, p, prompt, e.cfg.WorkDir)
		if err != nil {
			return phase.NewFailure(p.ID, iteration, lastChanges, time.Since(start), err.Error())
		}

		changes, err := e.tracker.ComputeChanges(ctx, snap)
		if err != nil {
			return phase.NewFailure(p.ID, iteration, lastChanges, time.Since(start), fmt.Sprintf("change detection failed: %v", err))
		}
		lastChanges = changes

		if p.EffectivePermission() == phase.PermissionReadonly && !changes.IsEmpty() {
			return phase.NewFailure(p.ID, iteration, changes, time.Since(start), "readonly phase produced file changes")
		}

		mgr.RecordIteration(iter, out.PromptChars, out.OutputChars, changes, out.Signals.Signals, compaction.ExtractOutputSummary(out.OutputText, 2000))

		if pct := out.Signals.Signals.LatestProgress(); pct >= 0 {
			e.emit(events.Progress(p.ID, iter, p.Budget, &pct))
		}

		if blockers := out.Signals.Signals.UnacknowledgedBlockers(); len(blockers) > 0 {
			return phase.NewFailure(p.ID, iteration, changes, time.Since(start), fmt.Sprintf("unacknowledged blocker: %s", blockers[0].Text))
		}

		if out.PromiseFound {
			completed = true
			break
		}

		select {
		case <-ctx.Done():
			return phase.NewFailure(p.ID, iteration, changes, time.Since(start), ctx.Err().Error())
		case <-time.After(e.cfg.IterationDelay):
		}
	}

	if !completed {
		return phase.NewFailure(p.ID, iteration, lastChanges, time.Since(start), "budget exhausted without finding promise")
	}

	result := phase.NewSuccess(p.ID, iteration, lastChanges, time.Since(start))

	if p.Review == nil || len(p.Review.Specialists) == 0 {
		return result
	}

	return e.runReviewCycle(ctx, p, result, snap, &iteration, start)
}

// runReviewCycle dispatches the configured specialists and, on a gating
// failure, consults the arbiter and loops through fix iterations until the
// arbiter proceeds, escalates, or the fix-round ceiling is hit.
func (e *Executor) runReviewCycle(ctx context.Context, p phase.Phase, result phase.Result, snap tracker.Snapshot, iteration *int, start time.Time) phase.Result {
	e.emit(events.ReviewStarted(p.ID))

	agg, err := e.dispatch.Dispatch(ctx, review.PhaseReviewConfig{
		PhaseID:        p.ID,
		PhaseName:      p.Name,
		Specialists:    p.Review.Specialists,
		Budget:         p.Budget,
		IterationsUsed: *iteration,
		FilesChanged:   result.Changes.ChangedOrAddedFiles(),
	})
	if err != nil {
		result.Duration = time.Since(start)
		return result
	}

	result = result.WithReview(agg)
	e.emit(events.ReviewCompleted(p.ID, !result.ReviewsBlocking(), countFindings(agg)))

	fixRound := 0
	for result.ReviewsBlocking() && fixRound < e.cfg.MaxFixRounds {
		in := arbiter.FromAggregation(agg, p.Budget, *iteration)
		in.PhaseName = p.Name
		in.FixAttempts = fixRound

		decResult, err := e.arbiter.Decide(ctx, in)
		if err != nil {
			result.Success = false
			result.Error = fmt.Sprintf("arbiter error: %v", err)
			result.Duration = time.Since(start)
			return result
		}
		result = result.WithArbiter(decResult.Decision)

		switch decResult.Decision.Verdict {
		case phase.ArbiterProceed:
			result.Success = true
			result.Error = ""
			result.Duration = time.Since(start)
			return result

		case phase.ArbiterEscalate:
			result.Success = false
			result.Error = "escalated: " + decResult.Decision.EscalationSummary
			result.Duration = time.Since(start)
			return result

		case phase.ArbiterFix:
			extra := decResult.Decision.SuggestedFixBudget
			if extra <= 0 {
				extra = 1
			}
			for j := 0; j < extra && *iteration < p.Budget; j++ {
				*iteration++
				prompt := runner.ComposePrompt(p, runner.PromptContext{
					IterationNumber: *iteration,
					FixInstructions: decResult.Decision.FixInstructions,
				}, e.cfg.Skills)

				out, err := e.runner.RunIteration(ctx, p, prompt, e.cfg.WorkDir)
				if err != nil {
					result.Success = false
					result.Error = err.Error()
					result.Duration = time.Since(start)
					return result
				}
				if out.PromiseFound {
					break
				}
			}

			changes, err := e.tracker.ComputeChanges(ctx, snap)
			if err == nil {
				result.Changes = changes
			}

			agg, err = e.dispatch.Dispatch(ctx, review.PhaseReviewConfig{
				PhaseID:        p.ID,
				PhaseName:      p.Name,
				Specialists:    p.Review.Specialists,
				Budget:         p.Budget,
				IterationsUsed: *iteration,
				FilesChanged:   result.Changes.ChangedOrAddedFiles(),
			})
			if err != nil {
				result.Duration = time.Since(start)
				return result
			}
			result = result.WithReview(agg)
			fixRound++
		}
	}

	if result.ReviewsBlocking() {
		result.Success = false
		result.Error = "review gate failed after exhausting fix rounds"
	} else {
		result.Success = true
		result.Error = ""
	}
	result.Iterations = *iteration
	result.Duration = time.Since(start)
	return result
}

func countFindings(agg phase.ReviewAggregation) int {
	n := 0
	for _, r := range agg.Reports {
		n += len(r.Findings)
	}
	return n
}
