package audit

import (
	"path/filepath"
	"testing"

	"github.com/forgehq/forge/internal/config"
	"github.com/forgehq/forge/internal/events"
	"github.com/forgehq/forge/internal/phase"
)

func TestPersister_RecordResultAndRunCompleted(t *testing.T) {
	dir := t.TempDir()
	p := NewPersister(dir, "run-1", config.Default())

	bus := events.NewBus(8)
	stop := p.Subscribe(bus)

	bus.Publish(events.Started("01", 0))
	bus.Publish(events.Completed("01", phase.NewSuccess("01", 1, phase.ChangeSummary{}, 0)))
	bus.Publish(events.RunCompleted(true, phase.NewSummary(1)))

	stop()

	record, err := LoadRecord(dir, "run-1")
	if err != nil {
		t.Fatalf("LoadRecord: %v", err)
	}
	if !record.Success {
		t.Error("expected Success true after RunCompleted(true, ...)")
	}
	if record.EndedAt == nil {
		t.Error("expected EndedAt set after run completion")
	}
	if _, ok := record.Phases["01"]; !ok {
		t.Error("expected phase 01 result recorded")
	}
}

func TestPersister_AppendsRunLog(t *testing.T) {
	dir := t.TempDir()
	p := NewPersister(dir, "run-2", config.Default())

	bus := events.NewBus(8)
	stop := p.Subscribe(bus)
	bus.Publish(events.Started("01", 0))
	bus.Publish(events.Completed("01", phase.NewSuccess("01", 1, phase.ChangeSummary{}, 0)))
	stop()

	lines, err := ReadRunLog(dir)
	if err != nil {
		t.Fatalf("ReadRunLog: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %v", len(lines), lines)
	}
}

func TestListRuns(t *testing.T) {
	dir := t.TempDir()
	p1 := NewPersister(dir, "run-a", config.Default())
	if err := p1.WriteRecord(); err != nil {
		t.Fatal(err)
	}
	p2 := NewPersister(dir, "run-b", config.Default())
	if err := p2.WriteRecord(); err != nil {
		t.Fatal(err)
	}

	ids, err := ListRuns(dir)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 run ids, got %d: %v", len(ids), ids)
	}
}

func TestListRuns_MissingDir(t *testing.T) {
	ids, err := ListRuns(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("expected nil error for missing dir, got %v", err)
	}
	if ids != nil {
		t.Errorf("expected nil ids, got %v", ids)
	}
}

func TestLoadRecord_Missing(t *testing.T) {
	if _, err := LoadRecord(t.TempDir(), "nope"); err == nil {
		t.Fatal("expected error loading missing run record")
	}
}
