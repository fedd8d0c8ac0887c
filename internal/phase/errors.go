package phase

import "errors"

// Sentinel errors for phase graph construction and state transitions. Using
// sentinels rather than ad-hoc fmt.Errorf lets callers match with errors.Is
// instead of parsing strings.
var (
	// ErrConfiguration wraps malformed phase-set problems (duplicate ids,
	// unparseable fields) that must be surfaced before any phase runs.
	ErrConfiguration = errors.New("phase: configuration error")

	// ErrUnknownPhase indicates a depends_on entry that does not resolve to
	// a declared phase.
	ErrUnknownPhase = errors.New("phase: unknown phase referenced")

	// ErrCyclicDependency indicates the dependency relation is not acyclic.
	ErrCyclicDependency = errors.New("phase: cyclic dependency")

	// ErrInvalidTransition indicates a PhaseState transition that is not
	// permitted by the state machine.
	ErrInvalidTransition = errors.New("phase: invalid state transition")
)
