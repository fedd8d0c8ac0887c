package tracker

import "errors"

var (
	// ErrNoRepo indicates the project directory is not under version
	// control.
	ErrNoRepo = errors.New("tracker: not a git repository")

	// ErrHeadMissing indicates there is no commit to parent a snapshot onto.
	ErrHeadMissing = errors.New("tracker: no HEAD commit")
)
