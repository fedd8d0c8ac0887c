// Package arbiter resolves gating review failures: it decides whether a
// phase should proceed despite findings, spawn another fix iteration, or
// escalate to a human. Three resolution modes are supported: always-escalate
// manual mode, rule-based auto mode, and an LLM-backed mode that falls back
// to rule-based logic on a parse failure or low confidence.
package arbiter

import (
	"context"
	"fmt"

	"github.com/forgehq/forge/internal/phase"
)

// Mode is the resolution mode governing how gating failures are handled.
type Mode string

const (
	ModeManual  Mode = "manual"
	ModeAuto    Mode = "auto"
	ModeArbiter Mode = "arbiter"
)

// DefaultConfidenceThreshold is the minimum confidence an LLM decision must
// meet before it is trusted over the rule-based fallback.
const DefaultConfidenceThreshold = 0.7

// DefaultModel is the model identifier recorded in arbiter prompts when the
// caller hasn't configured one explicitly.
const DefaultModel = "claude-3-sonnet"

// Config configures an Executor.
type Config struct {
	Mode                Mode
	Command             string
	MaxFixAttempts      int
	Model               string
	ConfidenceThreshold float64
	EscalateOn          []string
	AutoProceedOn       []string
	SkipPermissions     bool
	IncludeFileContext  bool
}

// ManualConfig returns a config that always escalates.
func ManualConfig() Config {
	return Config{Mode: ModeManual, Command: "claude", MaxFixAttempts: 2, IncludeFileContext: true}
}

// AutoConfig returns a config that applies rule-based logic with the given
// fix-attempt ceiling.
func AutoConfig(maxFixAttempts int) Config {
	return Config{Mode: ModeAuto, Command: "claude", MaxFixAttempts: maxFixAttempts, IncludeFileContext: true}
}

// ArbiterModeConfig returns a config that consults an LLM, falling back to
// rule-based logic.
func ArbiterModeConfig() Config {
	return Config{
		Mode:                ModeArbiter,
		Command:             "claude",
		MaxFixAttempts:      2,
		Model:               DefaultModel,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		IncludeFileContext:  true,
	}
}

func (c Config) effectiveThreshold() float64 {
	if c.ConfidenceThreshold == 0 {
		return DefaultConfidenceThreshold
	}
	return c.ConfidenceThreshold
}

// Input carries the context the Executor needs to decide how to handle a
// gating review failure.
type Input struct {
	PhaseID           string
	PhaseName         string
	Budget            int
	IterationsUsed    int
	FailedReviews     []phase.ReviewReport
	BlockingFindings  []phase.ReviewFinding
	FailedSpecialists []string
	FixAttempts       int
	AdditionalContext string
}

// FromAggregation builds an Input from a failed review aggregation,
// extracting gating failures and their actionable findings.
func FromAggregation(agg phase.ReviewAggregation, budget, iterationsUsed int) Input {
	in := Input{PhaseID: agg.PhaseID, Budget: budget, IterationsUsed: iterationsUsed}
	seen := make(map[string]bool)
	for _, r := range agg.Reports {
		if !r.IsGatingFailure() {
			continue
		}
		in.FailedReviews = append(in.FailedReviews, r)
		if !seen[r.Reviewer] {
			seen[r.Reviewer] = true
			in.FailedSpecialists = append(in.FailedSpecialists, r.Reviewer)
		}
		for _, f := range r.Findings {
			if f.Severity.IsActionable() {
				in.BlockingFindings = append(in.BlockingFindings, f)
			}
		}
	}
	return in
}

// RemainingBudget returns the iterations left for this phase, floored at 0.
func (in Input) RemainingBudget() int {
	if in.IterationsUsed >= in.Budget {
		return 0
	}
	return in.Budget - in.IterationsUsed
}

// CriticalFindings returns the subset of blocking findings at error severity.
func (in Input) CriticalFindings() []phase.ReviewFinding {
	var out []phase.ReviewFinding
	for _, f := range in.BlockingFindings {
		if f.Severity.IsCritical() {
			out = append(out, f)
		}
	}
	return out
}

// HasCriticalFindings reports whether any blocking finding is critical.
func (in Input) HasCriticalFindings() bool {
	for _, f := range in.BlockingFindings {
		if f.Severity.IsCritical() {
			return true
		}
	}
	return false
}

// Result wraps a decision with where it came from and any error or raw LLM
// text, so callers can log provenance without re-deriving it.
type Result struct {
	Decision    phase.ArbiterDecision
	RawResponse string
	Err         string
}

// Executor orchestrates arbiter decisions for one configuration.
type Executor struct {
	config Config
	invoke func(ctx context.Context, prompt string) (string, error)
}

// New constructs an Executor. invoke is the LLM call hook (normally an
// assistant-CLI subprocess invocation); it is unused outside arbiter mode.
func New(config Config, invoke func(ctx context.Context, prompt string) (string, error)) *Executor {
	return &Executor{config: config, invoke: invoke}
}

// Decide makes a resolution decision for the given input. Manual mode always
// escalates; auto mode applies rule-based logic; arbiter mode consults the
// LLM and falls back to rule-based logic on error or low confidence.
func (e *Executor) Decide(ctx context.Context, in Input) (Result, error) {
	if quick, ok := e.quickDecision(in); ok {
		return quick, nil
	}

	switch e.config.Mode {
	case ModeManual:
		d := phase.NewArbiterDecision(
			phase.ArbiterEscalate,
			"Manual resolution mode - human decision required",
			1.0,
			phase.SourceFromConfig,
		)
		d.EscalationSummary = fmt.Sprintf("%d finding(s) from %d specialist(s) require review",
			len(in.BlockingFindings), len(in.FailedSpecialists))
		return Result{Decision: d}, nil

	case ModeAuto:
		return Result{Decision: ApplyRules(in, e.config)}, nil

	case ModeArbiter:
		if e.invoke == nil {
			return Result{Decision: ApplyRules(in, e.config)}, nil
		}
		prompt := BuildPrompt(in, e.config)
		raw, err := e.invoke(ctx, prompt)
		if err != nil {
			return Result{Decision: ApplyRules(in, e.config), Err: err.Error()}, nil
		}
		decision, ok := ParseResponse(raw)
		if !ok {
			return Result{Decision: ApplyRules(in, e.config), RawResponse: raw, Err: "failed to parse arbiter response"}, nil
		}
		if decision.Confidence < e.config.effectiveThreshold() {
			return Result{Decision: ApplyRules(in, e.config), RawResponse: raw}, nil
		}
		decision.Source = phase.SourceLLMDecision
		return Result{Decision: decision, RawResponse: raw}, nil

	default:
		return Result{Decision: ApplyRules(in, e.config)}, nil
	}
}

// quickDecision returns a pre-computed decision when one can be made without
// consulting the LLM: out of budget, max fix attempts reached, or a category
// configured to always escalate or auto-proceed.
func (e *Executor) quickDecision(in Input) (Result, bool) {
	if in.RemainingBudget() == 0 {
		return Result{Decision: phase.NewArbiterDecision(
			phase.ArbiterEscalate, "No remaining budget", 1.0, phase.SourceRuleBased,
		)}, true
	}
	if e.config.MaxFixAttempts > 0 && in.FixAttempts >= e.config.MaxFixAttempts {
		d := phase.NewArbiterDecision(phase.ArbiterEscalate, "Max fix attempts reached", 1.0, phase.SourceRuleBased)
		d.EscalationSummary = fmt.Sprintf("%d fix attempts made without success", in.FixAttempts)
		return Result{Decision: d}, true
	}
	if e.config.Mode == ModeArbiter {
		for _, f := range in.BlockingFindings {
			if matchesCategory(f, e.config.EscalateOn) {
				d := phase.NewArbiterDecision(
					phase.ArbiterEscalate,
					fmt.Sprintf("Category '%s' requires human review", f.Category),
					1.0, phase.SourceFromConfig,
				)
				d.EscalationSummary = fmt.Sprintf("Category '%s' is configured to always escalate", f.Category)
				return Result{Decision: d}, true
			}
		}
		if allInCategories(in.BlockingFindings, e.config.AutoProceedOn) {
			d := phase.NewArbiterDecision(phase.ArbiterProceed, "All findings in auto-proceed categories", 0.95, phase.SourceFromConfig)
			return Result{Decision: d}, true
		}
	}
	return Result{}, false
}
