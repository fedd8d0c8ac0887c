package tracker

import (
	"bufio"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// CommitEvent is one commit surfaced by RecentHistory: what happened in the
// working tree during a run, read from git rather than from the audit log.
type CommitEvent struct {
	SHA          string
	Timestamp    time.Time
	Author       string
	Message      string
	FilesChanged int
	Insertions   int
	Deletions    int
}

// RecentHistory runs `git log --numstat` since the given time and returns
// commits newest-first. Used for operator-facing history views; the
// orchestrator's own change tracking goes through ComputeChanges instead.
func (t *Tracker) RecentHistory(ctx context.Context, since time.Time) ([]CommitEvent, error) {
	const delim = "|||"
	format := "%H" + delim + "%aI" + delim + "%an" + delim + "%s"

	out, stderr, err := t.run(ctx, "log", "--format="+format, "--numstat", "--since="+since.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("git log: %w: %s", err, stderr)
	}
	return parseGitLog(out, delim)
}

type gitLogParser struct {
	events  []CommitEvent
	current *CommitEvent
	delim   string
}

func (g *gitLogParser) flush() {
	if g.current != nil {
		g.events = append(g.events, *g.current)
		g.current = nil
	}
}

func (g *gitLogParser) processLine(line string) error {
	if strings.TrimSpace(line) == "" {
		g.flush()
		return nil
	}
	if ev, err := tryParseHeader(line, g.delim); ev != nil {
		g.flush()
		g.current = ev
		return nil
	} else if err != nil {
		return err
	}
	if g.current != nil {
		parseNumstatLine(line, g.current)
	}
	return nil
}

func parseGitLog(raw, delim string) ([]CommitEvent, error) {
	scanner := bufio.NewScanner(strings.NewReader(raw))
	g := &gitLogParser{delim: delim}
	for scanner.Scan() {
		if err := g.processLine(scanner.Text()); err != nil {
			return nil, err
		}
	}
	g.flush()

	slices.SortFunc(g.events, func(a, b CommitEvent) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return g.events, nil
}

func tryParseHeader(line, delim string) (*CommitEvent, error) {
	parts := strings.SplitN(line, delim, 4)
	if len(parts) != 4 {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, parts[1])
	if err != nil {
		return nil, fmt.Errorf("parsing commit timestamp %q: %w", parts[1], err)
	}
	return &CommitEvent{SHA: parts[0], Timestamp: ts, Author: parts[2], Message: parts[3]}, nil
}

func parseNumstatLine(line string, ev *CommitEvent) {
	fields := strings.SplitN(line, "\t", 3)
	if len(fields) != 3 {
		return
	}
	ins, _ := strconv.Atoi(fields[0])
	del, _ := strconv.Atoi(fields[1])
	ev.Insertions += ins
	ev.Deletions += del
	ev.FilesChanged++
}
