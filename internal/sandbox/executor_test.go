package sandbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"graphscape/internal/sandbox/runner"
)

// fakeRunner writes a shell script standing in for the runner binary so the
// supervision paths (timeout, kill, exit-code mapping) can be exercised
// without a compiled child.
func fakeRunner(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genrunner")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write fake runner: %v", err)
	}
	return path
}

func testJob() runner.Job {
	return runner.Job{Script: `result = {"nodes": [], "edges": []}`, AllowedModules: []string{"math"}}
}

func TestExecuteReturnsStdout(t *testing.T) {
	e := NewExecutor(fakeRunner(t, `cat > /dev/null; echo '{"nodes": [], "edges": []}'`))
	out, err := e.Execute(context.Background(), testJob())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if string(out) != "{\"nodes\": [], \"edges\": []}\n" && string(out) != "{\"nodes\": [], \"edges\": []}" {
		t.Fatalf("unexpected stdout: %q", out)
	}
}

func TestExecuteTimeout(t *testing.T) {
	e := NewExecutor(fakeRunner(t, `sleep 30`))
	e.Timeout = 100 * time.Millisecond

	start := time.Now()
	_, err := e.Execute(context.Background(), testJob())
	if !errors.Is(err, ErrExecutionTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("hung child not killed promptly: %v", elapsed)
	}
}

func TestExecuteNoResultExitCode(t *testing.T) {
	e := NewExecutor(fakeRunner(t, `cat > /dev/null; exit 2`))
	_, err := e.Execute(context.Background(), testJob())
	if !errors.Is(err, ErrNoResultProduced) {
		t.Fatalf("expected no-result, got %v", err)
	}
}

func TestExecuteFaultCarriesStderr(t *testing.T) {
	e := NewExecutor(fakeRunner(t, `cat > /dev/null; echo "division by zero" >&2; exit 1`))
	_, err := e.Execute(context.Background(), testJob())
	if !errors.Is(err, ErrExecutionFault) {
		t.Fatalf("expected fault, got %v", err)
	}
	var genErr *Error
	if !errors.As(err, &genErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if genErr.Message == "" {
		t.Fatalf("fault lost the child's stderr")
	}
}

func TestExecuteEmptyStdoutIsNoResult(t *testing.T) {
	e := NewExecutor(fakeRunner(t, `cat > /dev/null; exit 0`))
	_, err := e.Execute(context.Background(), testJob())
	if !errors.Is(err, ErrNoResultProduced) {
		t.Fatalf("expected no-result for empty stdout, got %v", err)
	}
}

func TestExecuteOutputCeiling(t *testing.T) {
	e := NewExecutor(fakeRunner(t, `cat > /dev/null; yes x | head -c 100000; exit 0`))
	e.MaxOutputBytes = 1024
	_, err := e.Execute(context.Background(), testJob())
	if !errors.Is(err, ErrExecutionFault) {
		t.Fatalf("expected fault for truncated output, got %v", err)
	}
}

func TestExecuteIgnoresCallerCancellation(t *testing.T) {
	// A run in flight is bounded by the wall clock, not by the caller
	// abandoning the request.
	e := NewExecutor(fakeRunner(t, `sleep 30`))
	e.Timeout = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Execute(ctx, testJob())
	if !errors.Is(err, ErrExecutionTimeout) {
		t.Fatalf("expected the wall-clock bound, got %v", err)
	}
}

func TestExecuteCallerDeadlineTightensBound(t *testing.T) {
	e := NewExecutor(fakeRunner(t, `sleep 30`))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := e.Execute(ctx, testJob())
	if !errors.Is(err, ErrExecutionTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("caller deadline not honored: %v", elapsed)
	}
}

func TestExecuteMissingRunnerBinary(t *testing.T) {
	e := NewExecutor(filepath.Join(t.TempDir(), "does-not-exist"))
	_, err := e.Execute(context.Background(), testJob())
	if !errors.Is(err, ErrExecutionFault) {
		t.Fatalf("expected fault for missing runner, got %v", err)
	}
}
