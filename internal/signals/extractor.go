// Package signals converts free-form assistant subprocess output into the
// structured markers the orchestrator understands: promise detection,
// progress percentages, blockers, and pivots. Parsing is a forgiving scanner,
// not an XML parser — unknown tags are ignored and malformed values are
// dropped rather than treated as fatal.
package signals

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/forgehq/forge/internal/phase"
)

var (
	progressRe     = regexp.MustCompile(`<progress\s+pct="(\d+)"\s*/?>`)
	blockerRe      = regexp.MustCompile(`(?s)<blocker>(.*?)</blocker>`)
	pivotBodyRe    = regexp.MustCompile(`(?s)<pivot>(.*?)</pivot>`)
	pivotAttrRe    = regexp.MustCompile(`<pivot\s+to="([^"]*)"\s*/?>`)
	taskCompleteRe = regexp.MustCompile(`(?s)<task_complete\s+id="([^"]*)">(.*?)</task_complete>`)
	swarmCompleteRe = regexp.MustCompile(`(?s)<swarm_complete>(.*?)</swarm_complete>`)
)

// TaskComplete is one parsed <task_complete> marker, used by the
// parallel-subagent protocol.
type TaskComplete struct {
	ID     string
	Status string
}

// SwarmComplete is the parsed payload of a <swarm_complete> marker.
type SwarmComplete struct {
	Success       bool     `json:"success"`
	Phase         string   `json:"phase"`
	TasksCompleted []string `json:"tasks_completed"`
	TasksFailed    []string `json:"tasks_failed"`
	FilesChanged   []string `json:"files_changed"`
	Error          string   `json:"error,omitempty"`
	Reviews        []struct {
		Specialist string `json:"specialist"`
		Verdict    string `json:"verdict"`
	} `json:"reviews,omitempty"`
}

// Extracted is everything the scanner found in one iteration's output.
type Extracted struct {
	PromiseFound   bool
	Signals        phase.Signals
	TaskCompletes  []TaskComplete
	SwarmComplete  *SwarmComplete
}

// Extract scans output for the promise string (exact, case-sensitive, first
// match wins — the match itself is a presence check, not a capture) and the
// full marker set. It never errors: malformed markers are simply skipped.
func Extract(output, promise string) Extracted {
	var ex Extracted

	if promise != "" && strings.Contains(output, promise) {
		ex.PromiseFound = true
	}

	for _, m := range progressRe.FindAllStringSubmatch(output, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n < 0 || n > 100 {
			continue
		}
		ex.Signals.Progress = append(ex.Signals.Progress, n)
	}

	seenBlockers := make(map[string]bool)
	for _, m := range blockerRe.FindAllStringSubmatch(output, -1) {
		text := strings.TrimSpace(m[1])
		if text == "" || seenBlockers[text] {
			continue
		}
		seenBlockers[text] = true
		ex.Signals.Blockers = append(ex.Signals.Blockers, phase.Blocker{Text: text})
	}

	for _, m := range pivotBodyRe.FindAllStringSubmatch(output, -1) {
		text := strings.TrimSpace(m[1])
		if text == "" {
			continue
		}
		ex.Signals.Pivots = append(ex.Signals.Pivots, phase.Pivot{Text: text})
	}
	for _, m := range pivotAttrRe.FindAllStringSubmatch(output, -1) {
		to := strings.TrimSpace(m[1])
		if to == "" {
			continue
		}
		ex.Signals.Pivots = append(ex.Signals.Pivots, phase.Pivot{To: to})
	}

	for _, m := range taskCompleteRe.FindAllStringSubmatch(output, -1) {
		ex.TaskCompletes = append(ex.TaskCompletes, TaskComplete{
			ID:     strings.TrimSpace(m[1]),
			Status: strings.TrimSpace(m[2]),
		})
	}

	if m := swarmCompleteRe.FindStringSubmatch(output); m != nil {
		var sc SwarmComplete
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &sc); err == nil {
			ex.SwarmComplete = &sc
		}
	}

	return ex
}
