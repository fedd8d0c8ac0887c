// Package config provides Forge's layered configuration. Values are loaded
// from (highest to lowest priority):
//  1. Command-line flags
//  2. Environment variables (FORGE_*)
//  3. Project config (.forge/config.yaml in the project directory)
//  4. Home config (~/.forge/config.yaml)
//  5. Compiled-in defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// StallCheck selects which signal the autonomous-mode stall detector
// consults when deciding a phase has made no forward progress.
type StallCheck string

const (
	StallCheckLineDelta   StallCheck = "line-delta"
	StallCheckProgressPct StallCheck = "progress-pct"
	StallCheckEither      StallCheck = "either"
)

// RunConfig is the full set of settings a single orchestrator invocation
// needs, loaded once at startup and treated as immutable thereafter.
type RunConfig struct {
	// ProjectDir is the repository root the phases operate on.
	ProjectDir string `yaml:"project_dir" json:"project_dir"`

	// PhaseFile is the path to the phase definition input (YAML or JSON).
	PhaseFile string `yaml:"phase_file" json:"phase_file"`

	// AssistantCommand is the CLI used to spawn assistant subprocesses.
	AssistantCommand string `yaml:"assistant_command" json:"assistant_command"`

	// MaxParallel bounds concurrent phase execution.
	MaxParallel int `yaml:"max_parallel" json:"max_parallel"`

	// FailFast cancels the rest of the run the moment any phase fails.
	FailFast bool `yaml:"fail_fast" json:"fail_fast"`

	// CallbackEnabled starts the localhost callback HTTP listener.
	CallbackEnabled bool `yaml:"callback_enabled" json:"callback_enabled"`

	// IterationTimeout bounds a single assistant subprocess invocation, as a
	// Go duration string (e.g. "30m").
	IterationTimeout string `yaml:"iteration_timeout" json:"iteration_timeout"`

	// ReviewTimeout bounds a single specialist review invocation.
	ReviewTimeout string `yaml:"review_timeout" json:"review_timeout"`

	// ArbiterMode is one of "manual", "auto", "arbiter".
	ArbiterMode string `yaml:"arbiter_mode" json:"arbiter_mode"`

	// ArbiterConfidenceThreshold gates whether an LLM-mode arbiter decision
	// is trusted or falls back to the rule table.
	ArbiterConfidenceThreshold float64 `yaml:"arbiter_confidence_threshold" json:"arbiter_confidence_threshold"`

	// ArbiterMaxFixAttempts caps fix-then-re-review rounds before escalation.
	ArbiterMaxFixAttempts int `yaml:"arbiter_max_fix_attempts" json:"arbiter_max_fix_attempts"`

	// StallWindow is K: the number of trailing iterations a stall check
	// looks back across in autonomous permission mode.
	StallWindow int `yaml:"stall_window" json:"stall_window"`

	// StallCheck selects which signal(s) must show no progress before an
	// autonomous-mode phase is paused as stalled.
	StallCheck StallCheck `yaml:"stall_check" json:"stall_check"`

	// DryRun loads and validates the phase file and its dependency graph
	// without invoking the assistant; no waves are computed.
	DryRun bool `yaml:"dry_run" json:"dry_run"`

	// Verbose enables debug-level logging.
	Verbose bool `yaml:"verbose" json:"verbose"`

	// Output selects the default report format: table, json, or markdown.
	Output string `yaml:"output" json:"output"`

	// AuditDir is where run records and the flat run log are written,
	// relative to ProjectDir unless absolute.
	AuditDir string `yaml:"audit_dir" json:"audit_dir"`

	// CallbackEnabledSet distinguishes "not specified" from "explicitly
	// set to false" for CallbackEnabled, since its zero value is itself a
	// meaningful setting.
	CallbackEnabledSet bool `yaml:"-" json:"-"`
}

// Default output/base settings.
const (
	defaultOutput           = "table"
	defaultAssistantCommand = "claude"
	defaultMaxParallel      = 4
	defaultIterationTimeout = "30m"
	defaultReviewTimeout    = "5m"
	defaultArbiterMode      = "auto"
	defaultConfidence       = 0.7
	defaultMaxFixAttempts   = 2
	defaultStallWindow      = 3
	defaultAuditDir         = ".forge/audit"
)

// Default returns Forge's compiled-in configuration.
func Default() *RunConfig {
	cwd, _ := os.Getwd()
	return &RunConfig{
		ProjectDir:                 cwd,
		PhaseFile:                  "phases.yaml",
		AssistantCommand:           defaultAssistantCommand,
		MaxParallel:                defaultMaxParallel,
		FailFast:                   false,
		CallbackEnabled:            true,
		IterationTimeout:           defaultIterationTimeout,
		ReviewTimeout:              defaultReviewTimeout,
		ArbiterMode:                defaultArbiterMode,
		ArbiterConfidenceThreshold: defaultConfidence,
		ArbiterMaxFixAttempts:      defaultMaxFixAttempts,
		StallWindow:                defaultStallWindow,
		StallCheck:                 StallCheckEither,
		DryRun:                     false,
		Verbose:                    false,
		Output:                     defaultOutput,
		AuditDir:                   defaultAuditDir,
	}
}

// Load resolves configuration with full precedence: flags > env > project >
// home > defaults.
func Load(flagOverrides *RunConfig) (*RunConfig, error) {
	cfg := Default()

	if homeConfig, err := loadFromPath(homeConfigPath()); err == nil && homeConfig != nil {
		cfg = merge(cfg, homeConfig)
	}
	if projectConfig, err := loadFromPath(projectConfigPath(cfg.ProjectDir)); err == nil && projectConfig != nil {
		cfg = merge(cfg, projectConfig)
	}

	cfg = applyEnv(cfg)

	if flagOverrides != nil {
		cfg = merge(cfg, flagOverrides)
	}

	return cfg, nil
}

func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".forge", "config.yaml")
}

func projectConfigPath(projectDir string) string {
	if override := strings.TrimSpace(os.Getenv("FORGE_CONFIG")); override != "" {
		return override
	}
	dir := projectDir
	if dir == "" {
		dir, _ = os.Getwd()
	}
	return filepath.Join(dir, ".forge", "config.yaml")
}

func loadFromPath(path string) (*RunConfig, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

func applyEnv(cfg *RunConfig) *RunConfig {
	if v := os.Getenv("FORGE_PROJECT_DIR"); v != "" {
		cfg.ProjectDir = v
	}
	if v := os.Getenv("FORGE_PHASE_FILE"); v != "" {
		cfg.PhaseFile = v
	}
	if v := os.Getenv("FORGE_ASSISTANT_COMMAND"); v != "" {
		cfg.AssistantCommand = v
	}
	if v := os.Getenv("FORGE_MAX_PARALLEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxParallel = n
		}
	}
	if v := os.Getenv("FORGE_FAIL_FAST"); v == "true" || v == "1" {
		cfg.FailFast = true
	}
	if v := os.Getenv("FORGE_CALLBACK_ENABLED"); v != "" {
		cfg.CallbackEnabled = v == "true" || v == "1"
		cfg.CallbackEnabledSet = true
	}
	if v := os.Getenv("FORGE_ITERATION_TIMEOUT"); v != "" {
		cfg.IterationTimeout = v
	}
	if v := os.Getenv("FORGE_REVIEW_TIMEOUT"); v != "" {
		cfg.ReviewTimeout = v
	}
	if v := os.Getenv("FORGE_ARBITER_MODE"); v != "" {
		cfg.ArbiterMode = v
	}
	if v := os.Getenv("FORGE_ARBITER_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ArbiterConfidenceThreshold = f
		}
	}
	if v := os.Getenv("FORGE_ARBITER_MAX_FIX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ArbiterMaxFixAttempts = n
		}
	}
	if v := os.Getenv("FORGE_STALL_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.StallWindow = n
		}
	}
	if v := os.Getenv("FORGE_STALL_CHECK"); v != "" {
		cfg.StallCheck = StallCheck(v)
	}
	if v := os.Getenv("FORGE_DRY_RUN"); v == "true" || v == "1" {
		cfg.DryRun = true
	}
	if v := os.Getenv("FORGE_VERBOSE"); v == "true" || v == "1" {
		cfg.Verbose = true
	}
	if v := os.Getenv("FORGE_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv("FORGE_AUDIT_DIR"); v != "" {
		cfg.AuditDir = v
	}
	return cfg
}

// merge overlays non-zero-valued fields of src onto dst, returning dst.
func merge(dst, src *RunConfig) *RunConfig {
	if src.ProjectDir != "" {
		dst.ProjectDir = src.ProjectDir
	}
	if src.PhaseFile != "" {
		dst.PhaseFile = src.PhaseFile
	}
	if src.AssistantCommand != "" {
		dst.AssistantCommand = src.AssistantCommand
	}
	if src.MaxParallel != 0 {
		dst.MaxParallel = src.MaxParallel
	}
	if src.FailFast {
		dst.FailFast = true
	}
	if src.IterationTimeout != "" {
		dst.IterationTimeout = src.IterationTimeout
	}
	if src.ReviewTimeout != "" {
		dst.ReviewTimeout = src.ReviewTimeout
	}
	if src.ArbiterMode != "" {
		dst.ArbiterMode = src.ArbiterMode
	}
	if src.ArbiterConfidenceThreshold != 0 {
		dst.ArbiterConfidenceThreshold = src.ArbiterConfidenceThreshold
	}
	if src.ArbiterMaxFixAttempts != 0 {
		dst.ArbiterMaxFixAttempts = src.ArbiterMaxFixAttempts
	}
	if src.StallWindow != 0 {
		dst.StallWindow = src.StallWindow
	}
	if src.StallCheck != "" {
		dst.StallCheck = src.StallCheck
	}
	if src.DryRun {
		dst.DryRun = true
	}
	if src.Verbose {
		dst.Verbose = true
	}
	if src.Output != "" {
		dst.Output = src.Output
	}
	if src.AuditDir != "" {
		dst.AuditDir = src.AuditDir
	}
	// CallbackEnabled defaults true; a config file can only turn it on via
	// this merge (a bare "false" in YAML is indistinguishable from the key
	// being absent). An explicit override — env var or CLI flag — sets
	// CallbackEnabledSet and can turn it off too.
	if src.CallbackEnabledSet {
		dst.CallbackEnabled = src.CallbackEnabled
		dst.CallbackEnabledSet = true
	} else if src.CallbackEnabled {
		dst.CallbackEnabled = true
	}
	return dst
}
