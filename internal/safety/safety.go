// Package safety centralizes the narrow set of runtime guards that keep
// autonomous phase execution bounded and reversible: permission-mode
// enforcement at the point an assistant subprocess is invoked or its
// changes are accepted, a kill switch watched between iterations, and a
// fixed allowlist of flags that may ever be forwarded to the assistant
// binary.
//
// # Threat model
//
// These guards map directly onto a subset of a broader autonomous-agent
// threat model:
//
// T3 - Destructive operations: a readonly phase whose iteration produced
// any file change is rejected outright rather than accepted and reviewed,
// since a readonly phase was never supposed to be able to touch the
// working tree in the first place.
//
// T4 - Worker privilege: a strict phase consults an approval gate before
// every iteration rather than running unattended, bounding how much an
// assistant can do before a human (or an automated policy) signs off.
//
// T6 - Runaway loops: the abort sentinel lets an operator stop a run
// between iterations without killing the process, and is checked whether
// or not the filesystem watch backing it is still alive.
//
// T7 - Policy bypass: the subprocess argument allowlist means a crafted
// phase definition or prompt injection cannot smuggle an arbitrary flag
// through to the assistant binary.
package safety

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/forgehq/forge/internal/phase"
)

// AbortFileName is the sentinel file whose presence aborts a run.
const AbortFileName = "swarm.abort"

// AllowedFlags is the closed set of flags permitted on an assistant
// subprocess invocation. Anything else in an args slice fails validation.
var AllowedFlags = map[string]bool{
	"-p":                          true,
	"--dangerously-skip-permissions": true,
}

// ErrReadonlyViolation indicates a readonly-permission phase produced a
// nonempty change summary, which should never happen and is treated as a
// hard stop rather than a warning.
var ErrReadonlyViolation = fmt.Errorf("safety: readonly phase modified the working tree")

// ErrDisallowedArg indicates a subprocess argument outside AllowedFlags was
// about to be forwarded to the assistant binary.
var ErrDisallowedArg = fmt.Errorf("safety: disallowed subprocess argument")

// ErrAborted indicates the abort sentinel was observed.
var ErrAborted = fmt.Errorf("safety: abort sentinel present")

// ValidateArgs checks every entry in args against AllowedFlags, rejecting
// anything not present (flag values like the prompt text itself are passed
// alongside "-p" and are not separately validated — only flags are).
func ValidateArgs(args []string) error {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "" || arg[0] != '-' {
			// positional value (e.g. the prompt text following "-p")
			continue
		}
		if !AllowedFlags[arg] {
			return fmt.Errorf("%w: %q", ErrDisallowedArg, arg)
		}
	}
	return nil
}

// CheckReadonlyChanges enforces that a readonly-permission phase produced no
// file changes during its iteration. Any other permission mode is exempt.
func CheckReadonlyChanges(mode phase.PermissionMode, changes phase.ChangeSummary) error {
	if mode != phase.PermissionReadonly {
		return nil
	}
	if !changes.IsEmpty() {
		return ErrReadonlyViolation
	}
	return nil
}

// ApprovalGate is consulted before every iteration of a strict-permission
// phase. It returns whether the iteration may proceed.
type ApprovalGate func(ctx context.Context, p phase.Phase, iteration int) (bool, error)

// RequireApproval runs gate for a strict-permission phase and returns
// ErrPermissionViolation-shaped feedback when it declines; for any other
// permission mode it's a no-op that always proceeds.
func RequireApproval(ctx context.Context, gate ApprovalGate, p phase.Phase, iteration int) error {
	if p.EffectivePermission() != phase.PermissionStrict {
		return nil
	}
	if gate == nil {
		return fmt.Errorf("safety: strict phase %s has no approval gate configured", p.ID)
	}
	ok, err := gate(ctx, p, iteration)
	if err != nil {
		return fmt.Errorf("safety: approval gate: %w", err)
	}
	if !ok {
		return fmt.Errorf("safety: iteration %d of phase %s was not approved", iteration, p.ID)
	}
	return nil
}

// AbortWatcher watches for the abort sentinel file inside a project's
// .forge directory. It prefers an fsnotify watch on the parent directory
// (so it catches the file being created, not just its eventual mtime) but
// also polls on a fixed interval as a fallback in case the watch is lost —
// some filesystems (network mounts, certain container overlays) silently
// drop inotify events.
type AbortWatcher struct {
	path        string
	pollEvery   time.Duration
	watcher     *fsnotify.Watcher
	fsEvents    chan struct{}
	stop        chan struct{}
	stopped     chan struct{}
}

// DefaultPollInterval is used when NewAbortWatcher is given a zero poll
// interval.
const DefaultPollInterval = 2 * time.Second

// NewAbortWatcher creates a watcher for <dir>/.forge/swarm.abort. The
// filesystem watch is best-effort: if it cannot be established (directory
// doesn't exist yet, inotify limits exhausted) the watcher still functions
// via polling alone.
func NewAbortWatcher(dir string, pollEvery time.Duration) *AbortWatcher {
	if pollEvery <= 0 {
		pollEvery = DefaultPollInterval
	}
	path := filepath.Join(dir, ".forge", AbortFileName)

	w := &AbortWatcher{
		path:      path,
		pollEvery: pollEvery,
		fsEvents:  make(chan struct{}, 1),
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}

	if fw, err := fsnotify.NewWatcher(); err == nil {
		watchDir := filepath.Dir(path)
		if err := fw.Add(watchDir); err == nil {
			w.watcher = fw
			go w.watchLoop()
		} else {
			_ = fw.Close()
		}
	}

	return w
}

func (w *AbortWatcher) watchLoop() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) == filepath.Clean(w.path) {
				select {
				case w.fsEvents <- struct{}{}:
				default:
				}
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		case <-w.stop:
			return
		}
	}
}

// Signalled reports whether the abort sentinel currently exists on disk.
// This is the authoritative check — fsnotify only short-circuits how fast
// Wait notices it.
func (w *AbortWatcher) Signalled() bool {
	_, err := os.Stat(w.path)
	return err == nil
}

// Wait blocks until the abort sentinel appears, ctx is cancelled, or the
// watcher is closed, whichever comes first.
func (w *AbortWatcher) Wait(ctx context.Context) error {
	if w.Signalled() {
		return ErrAborted
	}

	ticker := time.NewTicker(w.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-w.fsEvents:
			if w.Signalled() {
				return ErrAborted
			}
		case <-ticker.C:
			if w.Signalled() {
				return ErrAborted
			}
		case <-w.stop:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close releases the underlying filesystem watch, if one was established.
func (w *AbortWatcher) Close() error {
	close(w.stop)
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
