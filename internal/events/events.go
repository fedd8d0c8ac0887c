// Package events defines the typed progress events emitted during a run and
// a small fan-out bus for distributing them to subscribers (a terminal
// reporter, the audit logger, a callback-server stream) without coupling the
// scheduler to any one consumer.
package events

import (
	"sync"

	"github.com/forgehq/forge/internal/phase"
)

// Kind identifies the shape of an Event's payload.
type Kind string

const (
	KindPhaseStarted    Kind = "phase_started"
	KindPhaseProgress   Kind = "phase_progress"
	KindPhaseCompleted  Kind = "phase_completed"
	KindReviewStarted   Kind = "review_started"
	KindReviewCompleted Kind = "review_completed"
	KindWaveStarted     Kind = "wave_started"
	KindWaveCompleted   Kind = "wave_completed"
	KindRunCompleted    Kind = "run_completed"

	// Decomposition and subtask kinds have no constructor in this package
	// and are never emitted by the scheduler.
	KindDecompositionStarted   Kind = "decomposition_started"
	KindDecompositionCompleted Kind = "decomposition_completed"
	KindSubtaskStarted         Kind = "subtask_started"
	KindSubtaskCompleted       Kind = "subtask_completed"
)

// Event is a single occurrence during a run. Only the fields relevant to Kind
// are populated; this mirrors the original's tagged-union PhaseEvent without
// needing a Go sum type per variant.
type Event struct {
	Kind Kind

	PhaseID   string
	Wave      int
	Iteration int
	Budget    int
	Percent   *int

	Result *phase.Result

	ReviewPassed        bool
	ReviewFindingsCount int

	WavePhases     []string
	WaveSuccess    int
	WaveFailed     int

	RunSuccess bool
	RunSummary *phase.Summary
}

// Started builds a phase-started event.
func Started(phaseID string, wave int) Event {
	return Event{Kind: KindPhaseStarted, PhaseID: phaseID, Wave: wave}
}

// Progress builds an iteration-progress event.
func Progress(phaseID string, iteration, budget int, percent *int) Event {
	return Event{Kind: KindPhaseProgress, PhaseID: phaseID, Iteration: iteration, Budget: budget, Percent: percent}
}

// Completed builds a phase-completed event.
func Completed(phaseID string, result phase.Result) Event {
	return Event{Kind: KindPhaseCompleted, PhaseID: phaseID, Result: &result}
}

// ReviewStarted builds a review-started event.
func ReviewStarted(phaseID string) Event {
	return Event{Kind: KindReviewStarted, PhaseID: phaseID}
}

// ReviewCompleted builds a review-completed event.
func ReviewCompleted(phaseID string, passed bool, findingsCount int) Event {
	return Event{Kind: KindReviewCompleted, PhaseID: phaseID, ReviewPassed: passed, ReviewFindingsCount: findingsCount}
}

// WaveStarted builds a wave-started event.
func WaveStarted(wave int, phases []string) Event {
	return Event{Kind: KindWaveStarted, Wave: wave, WavePhases: phases}
}

// WaveCompleted builds a wave-completed event.
func WaveCompleted(wave, success, failed int) Event {
	return Event{Kind: KindWaveCompleted, Wave: wave, WaveSuccess: success, WaveFailed: failed}
}

// RunCompleted builds a run-completed event.
func RunCompleted(success bool, summary *phase.Summary) Event {
	return Event{Kind: KindRunCompleted, RunSuccess: success, RunSummary: summary}
}

// Bus fans a single stream of events out to any number of subscribers. Each
// subscriber gets its own buffered channel so a slow consumer never blocks
// publication to the others.
type Bus struct {
	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int
	bufferSize  int
}

// NewBus creates a Bus whose per-subscriber channels are buffered to
// bufferSize; a non-positive value defaults to 64.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Bus{subscribers: make(map[int]chan Event), bufferSize: bufferSize}
}

// Subscribe registers a new subscriber and returns its channel and an
// unsubscribe function. The channel is closed when Unsubscribe is called.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.bufferSize)
	b.subscribers[id] = ch
	return ch, func() { b.unsubscribe(id) }
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
}

// Publish delivers ev to every current subscriber. A subscriber whose buffer
// is full has the event dropped for it rather than blocking the publisher —
// progress events are best-effort telemetry, not a reliable log.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close unsubscribes and closes every remaining subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}
