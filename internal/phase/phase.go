// Package phase defines the Phase data model: the immutable unit of work the
// scheduler and executor operate on, its dependency graph, and the mutable
// per-run state machine tracked for each phase.
package phase

import "fmt"

// PermissionMode controls how much autonomy a phase's assistant invocations
// are granted.
type PermissionMode string

const (
	PermissionReadonly   PermissionMode = "readonly"
	PermissionStrict     PermissionMode = "strict"
	PermissionStandard   PermissionMode = "standard"
	PermissionAutonomous PermissionMode = "autonomous"
)

// IsValid reports whether m is one of the closed set of permission modes.
func (m PermissionMode) IsValid() bool {
	switch m {
	case PermissionReadonly, PermissionStrict, PermissionStandard, PermissionAutonomous:
		return true
	default:
		return false
	}
}

// ReviewConfig is the optional per-phase review configuration: which
// specialists run and whether each one gates phase completion.
type ReviewConfig struct {
	Specialists []SpecialistConfig `yaml:"specialists" json:"specialists"`
	Parallel    bool               `yaml:"parallel" json:"parallel"`
}

// SpecialistConfig names one reviewer and whether its failure is gating.
type SpecialistConfig struct {
	Type        string   `yaml:"type" json:"type"`
	Gating      bool     `yaml:"gating" json:"gating"`
	FocusAreas  []string `yaml:"focus_areas,omitempty" json:"focus_areas,omitempty"`
	CustomName  string   `yaml:"name,omitempty" json:"name,omitempty"`
}

// Phase is an immutable unit of work: a budget of iterations, a completion
// signal ("promise"), and a dependency set. Phases are created once at
// spec-load and never mutated afterward; all mutable state lives in State.
type Phase struct {
	ID         string         `yaml:"number" json:"number"`
	Name       string         `yaml:"name" json:"name"`
	Promise    string         `yaml:"promise" json:"promise"`
	Budget     int            `yaml:"budget" json:"budget"`
	Permission PermissionMode `yaml:"permission_mode,omitempty" json:"permission_mode,omitempty"`
	DependsOn  []string       `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Review     *ReviewConfig  `yaml:"reviews,omitempty" json:"reviews,omitempty"`
	Skills     []string       `yaml:"skills,omitempty" json:"skills,omitempty"`
}

// EffectivePermission returns the phase's permission mode, defaulting to
// standard when unset.
func (p Phase) EffectivePermission() PermissionMode {
	if p.Permission == "" {
		return PermissionStandard
	}
	return p.Permission
}

// Validate checks the phase's own fields (not its place in a graph).
func (p Phase) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("phase: empty id")
	}
	if p.Promise == "" {
		return fmt.Errorf("phase %s: empty promise", p.ID)
	}
	if p.Budget < 1 {
		return fmt.Errorf("phase %s: budget must be positive, got %d", p.ID, p.Budget)
	}
	if p.Permission != "" && !p.Permission.IsValid() {
		return fmt.Errorf("phase %s: invalid permission mode %q", p.ID, p.Permission)
	}
	return nil
}
