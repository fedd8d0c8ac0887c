package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestServerStartStop(t *testing.T) {
	s := New()
	url, err := s.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !strings.HasPrefix(url, "http://127.0.0.1:") {
		t.Fatalf("url = %q, want 127.0.0.1 prefix", url)
	}
	if !s.IsRunning() {
		t.Fatal("expected server running")
	}
	if s.Addr() == nil {
		t.Fatal("expected non-nil Addr")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.IsRunning() {
		t.Fatal("expected server stopped")
	}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestProgressEndpoint(t *testing.T) {
	s := New()
	url, err := s.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	pct := 50
	resp := postJSON(t, url+"/progress", ProgressUpdate{Task: "task-1", Status: "in_progress", Percent: &pct})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	events := s.PeekEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Kind != KindProgress || events[0].Progress.Task != "task-1" || *events[0].Progress.Percent != 50 {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}

func TestCompleteEndpoint(t *testing.T) {
	s := New()
	url, err := s.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	resp := postJSON(t, url+"/complete", TaskComplete{
		Task: "task-2", Status: TaskSuccess, Summary: "done", FilesChanged: []string{"a.go"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	events := s.PeekEvents()
	if len(events) != 1 || events[0].Kind != KindComplete {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[0].Complete.Status != TaskSuccess || len(events[0].Complete.FilesChanged) != 1 {
		t.Fatalf("unexpected complete: %+v", events[0].Complete)
	}
}

func TestGenericEventEndpoint(t *testing.T) {
	s := New()
	url, err := s.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	resp := postJSON(t, url+"/event", GenericEvent{EventType: "custom_event", Payload: json.RawMessage(`{"key":"value"}`)})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	events := s.PeekEvents()
	if len(events) != 1 || events[0].Generic.EventType != "custom_event" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := New()
	url, err := s.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	resp, err := http.Get(url + "/health")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestEventAccumulationDrainAndPeek(t *testing.T) {
	s := New()
	url, err := s.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	for i := 0; i < 5; i++ {
		pct := i * 20
		postJSON(t, url+"/progress", ProgressUpdate{Task: fmt.Sprintf("task-%d", i), Status: "running", Percent: &pct})
	}

	if s.EventCount() != 5 {
		t.Fatalf("EventCount() = %d, want 5", s.EventCount())
	}

	peeked := s.PeekEvents()
	if len(peeked) != 5 || s.EventCount() != 5 {
		t.Fatal("peek should not drain")
	}

	drained := s.DrainEvents()
	if len(drained) != 5 || s.EventCount() != 0 {
		t.Fatal("drain should clear the buffer")
	}
}

func TestClearEvents(t *testing.T) {
	s := New()
	url, err := s.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	postJSON(t, url+"/progress", ProgressUpdate{Task: "t", Status: "running"})
	if s.EventCount() != 1 {
		t.Fatalf("EventCount() = %d, want 1", s.EventCount())
	}
	s.ClearEvents()
	if s.EventCount() != 0 {
		t.Fatal("expected events cleared")
	}
}

func TestMaxEventsLimit(t *testing.T) {
	s := NewWithCapacity(3)
	for i := 0; i < 4; i++ {
		s.pushEvent(Event{Kind: KindProgress, Progress: &ProgressUpdate{Task: fmt.Sprintf("task-%d", i)}})
	}
	events := s.PeekEvents()
	if len(events) != 3 {
		t.Fatalf("expected 3 events retained, got %d", len(events))
	}
	if events[0].Progress.Task != "task-1" {
		t.Fatalf("expected oldest event dropped, events[0] = %+v", events[0])
	}
	if events[2].Progress.Task != "task-3" {
		t.Fatalf("expected newest event retained, events[2] = %+v", events[2])
	}
}

func TestInvalidPayloadRejected(t *testing.T) {
	s := New()
	url, err := s.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	resp, err := http.Post(url+"/progress", "application/json", bytes.NewReader([]byte("not json")))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if s.EventCount() != 0 {
		t.Fatal("invalid payload should not be recorded")
	}
}
