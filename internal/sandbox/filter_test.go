package sandbox

import (
	"errors"
	"strings"
	"testing"
)

func newTestFilter() *Filter {
	return NewFilter([]string{"math", "json", "random", "time"})
}

func TestFilterAcceptsAllowedModules(t *testing.T) {
	script := `
load("math", "sqrt")
result = {"nodes": [{"label": "a", "x": sqrt(4.0), "y": 0.0, "z": 0.0}], "edges": []}
`
	if err := newTestFilter().Check(script); err != nil {
		t.Fatalf("allowed script rejected: %v", err)
	}
}

func TestFilterRejectsUnknownModule(t *testing.T) {
	err := newTestFilter().Check(`load("networkx", "generators")` + "\nresult = {}")
	if err == nil {
		t.Fatalf("expected capability violation")
	}
	if !errors.Is(err, ErrCapabilityViolation) {
		t.Fatalf("wrong sentinel: %v", err)
	}
	var genErr *Error
	if !errors.As(err, &genErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if !strings.Contains(genErr.Message, "networkx") {
		t.Fatalf("violation does not name the module: %q", genErr.Message)
	}
	if genErr.Where == "" {
		t.Fatalf("violation carries no position")
	}
}

func TestFilterRejectsBlockedIdentifiers(t *testing.T) {
	scripts := map[string]string{
		"direct call": `result = eval("1+1")`,
		"aliasing":    "f = getattr\nresult = {}",
		"nested":      "def helper():\n    return open(\"/etc/passwd\")\nresult = {}",
		"bare name":   "subprocess\nresult = {}",
	}
	for name, script := range scripts {
		t.Run(name, func(t *testing.T) {
			err := newTestFilter().Check(script)
			if !errors.Is(err, ErrCapabilityViolation) {
				t.Fatalf("expected capability violation, got %v", err)
			}
		})
	}
}

func TestFilterRejectsUnparsableScript(t *testing.T) {
	err := newTestFilter().Check("def broken(:\n")
	if !errors.Is(err, ErrCapabilityViolation) {
		t.Fatalf("parse failure must be a capability violation, got %v", err)
	}
}

func TestFilterReportsFirstViolationDeterministically(t *testing.T) {
	script := "a = eval\nb = exec\nresult = {}"
	for i := 0; i < 10; i++ {
		var genErr *Error
		if err := newTestFilter().Check(script); !errors.As(err, &genErr) {
			t.Fatalf("expected *Error, got %v", err)
		} else if !strings.Contains(genErr.Message, "eval") {
			t.Fatalf("expected the first violation in source order, got %q", genErr.Message)
		}
	}
}

func TestAllowedModulesIsSorted(t *testing.T) {
	got := newTestFilter().AllowedModules()
	want := []string{"json", "math", "random", "time"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
