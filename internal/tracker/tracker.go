// Package tracker provides the Git Tracker: a stable, cheap point of
// reference for each phase, taken as a snapshot commit, and diffs computed
// against it on demand. It shells out to the git binary rather than binding
// libgit2 — the example stack consistently parses git-subprocess output
// rather than linking a C library.
package tracker

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/forgehq/forge/internal/phase"
)

// Snapshot is an opaque token (a commit SHA) identifying the working tree
// state at a point in time.
type Snapshot string

// Tracker operates git subprocesses rooted at ProjectDir.
type Tracker struct {
	ProjectDir string
	// GitTimeout bounds each git subprocess invocation.
	GitTimeout time.Duration
}

// New creates a Tracker rooted at projectDir with a sane default timeout.
func New(projectDir string) *Tracker {
	return &Tracker{ProjectDir: projectDir, GitTimeout: 30 * time.Second}
}

func (t *Tracker) run(ctx context.Context, args ...string) (string, string, error) {
	if t.GitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.GitTimeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = t.ProjectDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// HeadSHA returns the current HEAD commit SHA. Fails with ErrNoRepo if
// projectDir is not a git working tree, ErrHeadMissing if there is no
// commit yet.
func (t *Tracker) HeadSHA(ctx context.Context) (string, error) {
	out, stderr, err := t.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", classifyHeadError(stderr, err)
	}
	return strings.TrimSpace(out), nil
}

// SnapshotBefore stages all tracked and untracked files and records a
// snapshot commit named "[forge] snapshot before phase <id>", parented on
// the current HEAD. Returns the resulting commit SHA.
func (t *Tracker) SnapshotBefore(ctx context.Context, phaseID string) (Snapshot, error) {
	if _, stderr, err := t.run(ctx, "rev-parse", "--is-inside-work-tree"); err != nil {
		return "", classifyNoRepoError(stderr, err)
	}
	if _, err := t.HeadSHA(ctx); err != nil {
		return "", err
	}

	if _, stderr, err := t.run(ctx, "add", "-A"); err != nil {
		return "", fmt.Errorf("git add -A: %w: %s", err, stderr)
	}

	msg := fmt.Sprintf("[forge] snapshot before phase %s", phaseID)
	if _, stderr, err := t.run(ctx, "commit", "--allow-empty", "-m", msg); err != nil {
		return "", fmt.Errorf("git commit: %w: %s", err, stderr)
	}

	sha, err := t.HeadSHA(ctx)
	if err != nil {
		return "", err
	}
	return Snapshot(sha), nil
}

// ComputeChanges diffs the current working tree (including untracked files)
// against snap. Does not materialize per-file diff bodies — use
// GetFullDiffs for that.
func (t *Tracker) ComputeChanges(ctx context.Context, snap Snapshot) (phase.ChangeSummary, error) {
	if _, stderr, err := t.run(ctx, "add", "-AN"); err != nil {
		return phase.ChangeSummary{}, fmt.Errorf("git add -AN: %w: %s", err, stderr)
	}

	numstat, stderr, err := t.run(ctx, "diff", "--numstat", string(snap), "--")
	if err != nil {
		return phase.ChangeSummary{}, fmt.Errorf("git diff --numstat: %w: %s", err, stderr)
	}
	nameStatus, stderr, err := t.run(ctx, "diff", "--name-status", string(snap), "--")
	if err != nil {
		return phase.ChangeSummary{}, fmt.Errorf("git diff --name-status: %w: %s", err, stderr)
	}

	summary := phase.ChangeSummary{}
	classifyByPath := parseNameStatus(nameStatus)

	for _, line := range strings.Split(numstat, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) != 3 {
			continue
		}
		added, _ := strconv.Atoi(fields[0])
		removed, _ := strconv.Atoi(fields[1])
		summary.TotalLinesAdded += added
		summary.TotalLinesRemoved += removed

		path := fields[2]
		switch classifyByPath[path] {
		case phase.ChangeAdded:
			summary.FilesAdded = append(summary.FilesAdded, path)
		case phase.ChangeDeleted:
			summary.FilesDeleted = append(summary.FilesDeleted, path)
		case phase.ChangeRenamed:
			summary.FilesRenamed = append(summary.FilesRenamed, path)
		default:
			summary.FilesModified = append(summary.FilesModified, path)
		}
	}

	return summary, nil
}

// GetFullDiffs is like ComputeChanges but also materializes the unified
// diff text per file, for the audit log.
func (t *Tracker) GetFullDiffs(ctx context.Context, snap Snapshot) ([]phase.FileDiff, error) {
	if _, stderr, err := t.run(ctx, "add", "-AN"); err != nil {
		return nil, fmt.Errorf("git add -AN: %w: %s", err, stderr)
	}

	nameStatus, stderr, err := t.run(ctx, "diff", "--name-status", string(snap), "--")
	if err != nil {
		return nil, fmt.Errorf("git diff --name-status: %w: %s", err, stderr)
	}
	classifyByPath := parseNameStatus(nameStatus)

	var diffs []phase.FileDiff
	for path, ct := range classifyByPath {
		diffOut, _, err := t.run(ctx, "diff", "--no-color", string(snap), "--", path)
		if err != nil {
			continue
		}
		added, removed := countDiffLines(diffOut)
		diffs = append(diffs, phase.FileDiff{
			Path:         path,
			ChangeType:   ct,
			LinesAdded:   added,
			LinesRemoved: removed,
			DiffContent:  diffOut,
		})
	}
	return diffs, nil
}

// parseNameStatus parses `git diff --name-status` output into a path ->
// ChangeType map.
func parseNameStatus(raw string) map[string]phase.ChangeType {
	out := make(map[string]phase.ChangeType)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		status := fields[0]
		path := fields[len(fields)-1]
		switch {
		case strings.HasPrefix(status, "A"):
			out[path] = phase.ChangeAdded
		case strings.HasPrefix(status, "D"):
			out[path] = phase.ChangeDeleted
		case strings.HasPrefix(status, "R"):
			out[path] = phase.ChangeRenamed
		default:
			out[path] = phase.ChangeModified
		}
	}
	return out
}

// countDiffLines counts '+' and '-' content lines in a unified diff,
// excluding the "+++"/"---" file headers.
func countDiffLines(diff string) (added, removed int) {
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---"):
			continue
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return added, removed
}

func classifyNoRepoError(stderr string, err error) error {
	if strings.Contains(stderr, "not a git repository") {
		return fmt.Errorf("%w: %s", ErrNoRepo, strings.TrimSpace(stderr))
	}
	return fmt.Errorf("git rev-parse --is-inside-work-tree: %w: %s", err, stderr)
}

func classifyHeadError(stderr string, err error) error {
	if strings.Contains(stderr, "not a git repository") {
		return fmt.Errorf("%w: %s", ErrNoRepo, strings.TrimSpace(stderr))
	}
	if strings.Contains(stderr, "unknown revision") || strings.Contains(stderr, "ambiguous argument") {
		return fmt.Errorf("%w: %s", ErrHeadMissing, strings.TrimSpace(stderr))
	}
	return fmt.Errorf("git rev-parse HEAD: %w: %s", err, stderr)
}
