// Package scheduler runs a phase.Graph to completion: it continuously starts
// whatever phases are ready, bounds concurrency to a configured ceiling, and
// collects results as they finish rather than waiting on fixed wave
// boundaries — a later wave's phase starts the instant its dependencies
// clear, even if an earlier wave is still running something else.
package scheduler

import (
	"context"
	"sync"

	"github.com/forgehq/forge/internal/events"
	"github.com/forgehq/forge/internal/phase"
)

// RunFunc executes a single phase and returns its terminal result. It must
// respect ctx cancellation promptly — the scheduler cancels it to implement
// fail-fast.
type RunFunc func(ctx context.Context, p phase.Phase) phase.Result

// Config configures a Scheduler.
type Config struct {
	// MaxParallel bounds how many phases run concurrently. Zero means 1.
	MaxParallel int
	// FailFast cancels every other running phase and skips every phase not
	// yet started the moment one phase fails.
	FailFast bool
}

// Scheduler drives a fixed phase.Graph through to a final phase.Summary.
type Scheduler struct {
	graph   *phase.Graph
	cfg     Config
	run     RunFunc
	onEvent func(events.Event)
}

// New constructs a Scheduler. onEvent may be nil.
func New(graph *phase.Graph, cfg Config, run RunFunc, onEvent func(events.Event)) *Scheduler {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	return &Scheduler{graph: graph, cfg: cfg, run: run, onEvent: onEvent}
}

func (s *Scheduler) emit(ev events.Event) {
	if s.onEvent != nil {
		s.onEvent(ev)
	}
}

type phaseOutcome struct {
	id     string
	result phase.Result
}

// Execute runs every phase in the graph to completion (or until ctx is
// cancelled, or fail-fast trips) and returns the run's Summary. A non-nil
// error is returned only for context cancellation; every phase-level failure
// is recorded in the Summary instead.
func (s *Scheduler) Execute(ctx context.Context) (*phase.Summary, error) {
	ids := make([]string, 0, len(s.graph.Phases()))
	for _, p := range s.graph.Phases() {
		ids = append(ids, p.ID)
	}

	summary := phase.NewSummary(len(ids))
	if len(ids) == 0 {
		return summary, nil
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	store := phase.NewStateStore(ids)
	sem := make(chan struct{}, s.cfg.MaxParallel)
	resultCh := make(chan phaseOutcome, len(ids))

	var wg sync.WaitGroup
	running := make(map[string]bool)
	wave := 0
	failFastTripped := false

	for {
		if !failFastTripped {
			ready := phase.ReadyPhases(s.graph, store)
			var starting []string
			for _, id := range ready {
				if len(running) >= s.cfg.MaxParallel {
					break
				}
				if err := store.Transition(id, phase.StateReady); err != nil {
					continue
				}
				if err := store.Transition(id, phase.StateRunning); err != nil {
					continue
				}
				running[id] = true
				starting = append(starting, id)
			}

			if len(starting) > 0 {
				s.emit(events.WaveStarted(wave, starting))
				for _, id := range starting {
					p, _ := s.graph.Phase(id)
					wg.Add(1)
					s.emit(events.Started(id, wave))
					go func(p phase.Phase) {
						defer wg.Done()
						sem <- struct{}{}
						defer func() { <-sem }()
						result := s.run(runCtx, p)
						// resultCh is sized to the total phase count, so each
						// phase's single send never blocks: no select needed,
						// and no outcome is ever silently dropped on cancel.
						resultCh <- phaseOutcome{id: p.ID, result: result}
					}(p)
				}
			}
		}

		if len(running) == 0 {
			if store.AllTerminal() {
				break
			}
			// Nothing running and nothing ready: either fail-fast just
			// finished draining, or the remaining phases can never become
			// ready (a dependency failed without fail-fast forcing a skip).
			s.skipUnreachable(store, summary)
			break
		}

		var outcome phaseOutcome
		if failFastTripped {
			// Draining: every in-flight phase is guaranteed to eventually
			// send, so a plain blocking receive here can't spin or hang.
			outcome = <-resultCh
		} else {
			select {
			case outcome = <-resultCh:
			case <-runCtx.Done():
				wg.Wait()
				return summary, ctx.Err()
			}
		}

		delete(running, outcome.id)

		nextState := phase.StateCompleted
		if !outcome.result.CanProceed() {
			nextState = phase.StateFailed
		}
		store.Transition(outcome.id, nextState)
		summary.AddResult(outcome.result)

		s.emit(events.Completed(outcome.id, outcome.result))

		if s.cfg.FailFast && nextState == phase.StateFailed && !failFastTripped {
			failFastTripped = true
			cancel()
		}

		if len(running) == 0 && phaseWaveDone(s.graph, store) {
			s.emit(events.WaveCompleted(wave, summary.Completed, summary.Failed))
			wave++
		}

		if failFastTripped && len(running) == 0 {
			s.skipUnreachable(store, summary)
			break
		}
	}

	wg.Wait()
	s.emit(events.WaveCompleted(wave, summary.Completed, summary.Failed))

	success := summary.AllSuccess()
	s.emit(events.RunCompleted(success, summary))

	return summary, nil
}

// skipUnreachable marks every phase still pending as skipped: a dependency
// failed (or fail-fast tripped) and the phase will never become ready.
func (s *Scheduler) skipUnreachable(store *phase.StateStore, summary *phase.Summary) {
	snap := store.Snapshot()
	for id, st := range snap {
		if st == phase.StatePending || st == phase.StateReady {
			store.Transition(id, phase.StateCancelled)
			summary.MarkSkipped(id)
		}
	}
}

// phaseWaveDone reports whether there are no more phases that could start
// right now, used only to decide when to emit a WaveCompleted boundary for
// observability; it has no bearing on scheduling correctness.
func phaseWaveDone(g *phase.Graph, store *phase.StateStore) bool {
	return len(phase.ReadyPhases(g, store)) == 0
}
