package executor

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/forgehq/forge/internal/arbiter"
	"github.com/forgehq/forge/internal/phase"
)

// initTestRepo creates a throwaway git repository with one commit.
func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}

	run("init")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", ".")
	run("commit", "-m", "initial")

	return dir
}

// writeScript writes an executable shell script standing in for the
// assistant binary.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-assistant.sh")
	content := "#!/bin/sh\n" + body
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func testPhase(budget int) phase.Phase {
	return phase.Phase{ID: "01", Name: "Build", Promise: "PHASE_DONE", Budget: budget, Permission: phase.PermissionStandard}
}

func TestRun_CompletesOnPromise(t *testing.T) {
	repo := initTestRepo(t)
	assistant := writeScript(t, `cat >/dev/null; echo PHASE_DONE`)

	e := New(Config{WorkDir: repo, AssistantCommand: assistant, IterationDelay: 0}, nil, nil)
	result := e.Run(context.Background(), testPhase(3))

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", result.Iterations)
	}
}

func TestRun_BudgetExhausted(t *testing.T) {
	repo := initTestRepo(t)
	assistant := writeScript(t, `cat >/dev/null; echo nope`)

	e := New(Config{WorkDir: repo, AssistantCommand: assistant, IterationDelay: 0}, nil, nil)
	result := e.Run(context.Background(), testPhase(2))

	if result.Success {
		t.Fatal("expected failure on budget exhaustion")
	}
	if result.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", result.Iterations)
	}
}

func TestRun_ApprovalDeniedPauses(t *testing.T) {
	repo := initTestRepo(t)
	assistant := writeScript(t, `cat >/dev/null; echo PHASE_DONE`)

	approve := func(ctx context.Context, p phase.Phase, iteration int) (bool, error) {
		return false, nil
	}
	e := New(Config{WorkDir: repo, AssistantCommand: assistant, IterationDelay: 0}, approve, nil)
	p := testPhase(3)
	p.Permission = phase.PermissionStrict
	result := e.Run(context.Background(), p)

	if result.Success {
		t.Fatal("expected failure when approval denied")
	}
}

func TestRun_ReadonlyViolation(t *testing.T) {
	repo := initTestRepo(t)
	assistant := writeScript(t, `cat >/dev/null; echo extra >> README.md; echo PHASE_DONE`)

	e := New(Config{WorkDir: repo, AssistantCommand: assistant, IterationDelay: 0}, nil, nil)
	p := testPhase(3)
	p.Permission = phase.PermissionReadonly
	result := e.Run(context.Background(), p)

	if result.Success {
		t.Fatal("expected failure for readonly phase producing changes")
	}
}

func TestRunReviewCycle_FixRoundsEndInEscalation(t *testing.T) {
	repo := initTestRepo(t)
	// assistant: for the phase iteration, emit the promise; for the review
	// dispatch, emit a failing gating verdict.
	assistant := writeScript(t, `
input=$(cat)
case "$input" in
  *"Security Sentinel Review"*)
    echo '{"verdict":"fail","summary":"issue","findings":[{"severity":"error","file":"a.go","issue":"bad"}]}'
    ;;
  *)
    echo PHASE_DONE
    ;;
esac
`)

	cfg := Config{
		WorkDir:          repo,
		AssistantCommand: assistant,
		IterationDelay:   0,
		Arbiter:          arbiter.AutoConfig(2),
	}
	e := New(cfg, nil, nil)

	p := testPhase(5)
	p.Review = &phase.ReviewConfig{
		Specialists: []phase.SpecialistConfig{{Type: "security", Gating: true}},
	}

	result := e.Run(context.Background(), p)

	// Auto mode with a critical finding and ample budget decides FIX, runs
	// another iteration (which again triggers the failing review), and after
	// the arbiter's two allowed fix attempts escalates, so the phase ends as
	// a failure rather than hanging.
	if result.Review == nil {
		t.Fatal("expected a review aggregation to be attached")
	}
	if result.Arbiter == nil {
		t.Fatal("expected an arbiter decision to be attached")
	}
}
