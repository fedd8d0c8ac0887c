// Package callback implements the Callback Endpoint: a localhost HTTP
// listener the assistant subprocess may POST progress, completion, and
// custom events to, so the orchestrator can observe a parallel-subagent
// swarm without polling the filesystem.
package callback

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"
)

// DefaultMaxEvents bounds the in-memory ring buffer; oldest events are
// dropped once it fills, so a misbehaving agent cannot grow memory
// unbounded.
const DefaultMaxEvents = 10_000

// EventKind distinguishes the three shapes a swarm agent can POST.
type EventKind string

const (
	KindProgress EventKind = "progress"
	KindComplete EventKind = "complete"
	KindEvent    EventKind = "event"
)

// TaskStatus is the terminal state of a swarm subtask.
type TaskStatus string

const (
	TaskSuccess   TaskStatus = "success"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// ProgressUpdate is the payload for POST /progress.
type ProgressUpdate struct {
	Task     string          `json:"task"`
	Status   string          `json:"status"`
	Percent  *int            `json:"percent,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// TaskComplete is the payload for POST /complete.
type TaskComplete struct {
	Task         string     `json:"task"`
	Status       TaskStatus `json:"status"`
	Summary      string     `json:"summary,omitempty"`
	Error        string     `json:"error,omitempty"`
	FilesChanged []string   `json:"files_changed,omitempty"`
}

// GenericEvent is the payload for POST /event.
type GenericEvent struct {
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

// Event is one accumulated swarm event. Exactly one of Progress, Complete,
// or Generic is set, selected by Kind.
type Event struct {
	Kind      EventKind
	Progress  *ProgressUpdate
	Complete  *TaskComplete
	Generic   *GenericEvent
	Timestamp time.Time
}

// Server is a localhost-only HTTP listener accepting swarm callbacks. The
// zero value is not usable; construct with New.
type Server struct {
	maxEvents int

	mu      sync.Mutex
	events  []Event
	running bool

	httpServer *http.Server
	listener   net.Listener
}

// New creates a Server with the default event buffer capacity.
func New() *Server {
	return &Server{maxEvents: DefaultMaxEvents}
}

// NewWithCapacity creates a Server with a custom ring buffer capacity.
func NewWithCapacity(maxEvents int) *Server {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &Server{maxEvents: maxEvents}
}

// Start binds to an OS-assigned localhost port and begins serving in the
// background. Returns the callback URL to pass to the spawned assistant.
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("callback: bind: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /progress", s.handleProgress)
	mux.HandleFunc("POST /complete", s.handleComplete)
	mux.HandleFunc("POST /event", s.handleEvent)

	s.mu.Lock()
	s.listener = listener
	s.httpServer = &http.Server{Handler: mux}
	s.running = true
	s.mu.Unlock()

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "callback server error: %v\n", err)
		}
	}()

	return fmt.Sprintf("http://%s", listener.Addr().String()), nil
}

// Stop gracefully shuts the server down, waiting for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.running = false
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// IsRunning reports whether the server is currently accepting requests.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Addr returns the bound address, or nil if not started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// DrainEvents returns all accumulated events and clears the buffer.
func (s *Server) DrainEvents() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.events
	s.events = nil
	return out
}

// PeekEvents returns a copy of accumulated events without clearing them.
func (s *Server) PeekEvents() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// EventCount returns the number of accumulated events.
func (s *Server) EventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// ClearEvents discards all accumulated events.
func (s *Server) ClearEvents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

func (s *Server) pushEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) >= s.maxEvents {
		s.events = s.events[1:]
	}
	s.events = append(s.events, ev)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	var update ProgressUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, fmt.Sprintf("invalid progress payload: %v", err), http.StatusBadRequest)
		return
	}
	s.pushEvent(Event{Kind: KindProgress, Progress: &update, Timestamp: time.Now()})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var complete TaskComplete
	if err := json.NewDecoder(r.Body).Decode(&complete); err != nil {
		http.Error(w, fmt.Sprintf("invalid complete payload: %v", err), http.StatusBadRequest)
		return
	}
	s.pushEvent(Event{Kind: KindComplete, Complete: &complete, Timestamp: time.Now()})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var generic GenericEvent
	if err := json.NewDecoder(r.Body).Decode(&generic); err != nil {
		http.Error(w, fmt.Sprintf("invalid event payload: %v", err), http.StatusBadRequest)
		return
	}
	s.pushEvent(Event{Kind: KindEvent, Generic: &generic, Timestamp: time.Now()})
	w.WriteHeader(http.StatusOK)
}
