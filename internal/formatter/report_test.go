package formatter

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunTableFormatter_Extension(t *testing.T) {
	if ext := NewRunTableFormatter().Extension(); ext != ".txt" {
		t.Errorf("Extension() = %q, want .txt", ext)
	}
}

func TestRunTableFormatter_Format(t *testing.T) {
	f := NewRunTableFormatter()
	var buf bytes.Buffer
	if err := f.Format(&buf, sampleRecord()); err != nil {
		t.Fatalf("Format: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Phase", "Status", "01", "02", "ok", "failed: boom", "run run-1"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}
