package runner

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

var allModules = []string{"math", "json", "random", "time"}

func run(t *testing.T, script string) []byte {
	t.Helper()
	out, err := Run(Job{Script: script, AllowedModules: allModules})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return out
}

func TestRunSimpleResult(t *testing.T) {
	out := run(t, `
nodes = []
for i in range(3):
    nodes.append({"label": "n" + str(i), "x": float(i), "y": 0.0, "z": 0.0})
result = {"nodes": nodes, "edges": [{"source_id": 0, "target_id": 1}]}
`)
	var decoded struct {
		Nodes []map[string]any `json:"nodes"`
		Edges []map[string]any `json:"edges"`
	}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(decoded.Nodes) != 3 || len(decoded.Edges) != 1 {
		t.Fatalf("unexpected shape: %s", out)
	}
	if decoded.Nodes[2]["label"] != "n2" {
		t.Fatalf("node labels wrong: %s", out)
	}
}

func TestRunPredeclaredModules(t *testing.T) {
	out := run(t, `result = {"nodes": [{"label": "a", "x": math.sqrt(4.0), "y": 0.0, "z": 0.0}], "edges": []}`)
	if !bytes.Contains(out, []byte(`"x":2`)) {
		t.Fatalf("math module unusable: %s", out)
	}
}

func TestRunLoadStatement(t *testing.T) {
	out := run(t, `
load("math", "sqrt")
result = {"nodes": [[sqrt(9.0), 0.0, 0.0]], "edges": []}
`)
	if !bytes.Contains(out, []byte("3")) {
		t.Fatalf("load() did not expose module members: %s", out)
	}
}

func TestRunLoadOutsideAllowListFails(t *testing.T) {
	_, err := Run(Job{Script: `load("os", "environ")` + "\nresult = {}", AllowedModules: allModules})
	if err == nil || !strings.Contains(err.Error(), "os") {
		t.Fatalf("expected load failure naming the module, got %v", err)
	}
}

func TestRunNoResultBinding(t *testing.T) {
	_, err := Run(Job{Script: `x = 1`, AllowedModules: allModules})
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected ErrNoResult, got %v", err)
	}
}

func TestRunScriptFaultCarriesBacktrace(t *testing.T) {
	_, err := Run(Job{Script: "def boom():\n    fail(\"bad\")\nboom()\nresult = {}", AllowedModules: allModules})
	if err == nil {
		t.Fatalf("expected fault")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("fault does not carry a backtrace: %v", err)
	}
}

func TestRunStepCeiling(t *testing.T) {
	_, err := Run(Job{
		Script:         "x = 0\nwhile True:\n    x += 1\nresult = {}",
		AllowedModules: allModules,
		MaxSteps:       10_000,
	})
	if err == nil {
		t.Fatalf("unbounded loop must hit the step ceiling")
	}
}

func TestRunSeededRandomIsDeterministic(t *testing.T) {
	script := `
random.seed(42)
vals = [random.randint(0, 1000) for _ in range(5)]
result = {"nodes": [], "edges": [], "vals": vals}
`
	// The result shape here is not a graph; the translator owns that rule.
	first, err := Run(Job{Script: script, AllowedModules: allModules})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := Run(Job{Script: script, AllowedModules: allModules})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("seeded runs diverged:\n%s\n%s", first, second)
	}
}

func TestRunResultKindsSurviveConversion(t *testing.T) {
	out := run(t, `result = {"i": 7, "f": 1.5, "s": "x", "b": True, "n": None, "l": [1, 2], "t": (3, 4), "d": {"k": "v"}}`)
	var decoded map[string]any
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["i"] != float64(7) || decoded["f"] != 1.5 || decoded["s"] != "x" || decoded["b"] != true {
		t.Fatalf("scalar conversion wrong: %v", decoded)
	}
	if decoded["n"] != nil {
		t.Fatalf("None must convert to null")
	}
	if len(decoded["l"].([]any)) != 2 || len(decoded["t"].([]any)) != 2 {
		t.Fatalf("sequence conversion wrong: %v", decoded)
	}
}
