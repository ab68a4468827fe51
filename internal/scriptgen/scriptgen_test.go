package scriptgen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"graphscape/internal/graph"
)

type fakeGenerator struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeGenerator) GenerateText(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func TestConfigured(t *testing.T) {
	if New(nil).Configured() {
		t.Fatalf("service without a model must not report configured")
	}
	if !New(&fakeGenerator{}).Configured() {
		t.Fatalf("service with a model must report configured")
	}
}

func TestGenerationPromptCarriesDescription(t *testing.T) {
	prompt := New(nil).GenerationPrompt("a ring of ten nodes")
	if !strings.Contains(prompt, "a ring of ten nodes") {
		t.Fatalf("description missing from prompt")
	}
	if !strings.Contains(prompt, "result") {
		t.Fatalf("prompt does not name the output binding")
	}
}

func TestModificationPromptSummarizesGraph(t *testing.T) {
	g := &graph.Graph{Name: "big"}
	for i := 0; i < 15; i++ {
		g.Nodes = append(g.Nodes, graph.Node{Label: "node-" + strings.Repeat("x", i+1)})
	}
	prompt := New(nil).ModificationPrompt("add a hub", g)
	if !strings.Contains(prompt, "add a hub") {
		t.Fatalf("instruction missing from prompt")
	}
	if !strings.Contains(prompt, "15") {
		t.Fatalf("node count missing from prompt")
	}
	if !strings.Contains(prompt, "...") {
		t.Fatalf("label list not truncated: %s", prompt)
	}
}

func TestGenerateScriptStripsFences(t *testing.T) {
	gen := &fakeGenerator{reply: "```python\nresult = {\"nodes\": [], \"edges\": []}\n```"}
	script, err := New(gen).GenerateScript(context.Background(), "empty graph")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if strings.Contains(script, "```") {
		t.Fatalf("fence survived: %q", script)
	}
	if !strings.HasPrefix(script, "result =") {
		t.Fatalf("unexpected script: %q", script)
	}
}

func TestGenerateScriptPropagatesModelError(t *testing.T) {
	wantErr := errors.New("quota exceeded")
	_, err := New(&fakeGenerator{err: wantErr}).GenerateScript(context.Background(), "x")
	if !errors.Is(err, wantErr) {
		t.Fatalf("model error lost: %v", err)
	}
}

func TestModifyScriptUsesModificationPrompt(t *testing.T) {
	gen := &fakeGenerator{reply: "result = {}"}
	g := &graph.Graph{Nodes: []graph.Node{{Label: "solo"}}}
	if _, err := New(gen).ModifyScript(context.Background(), "double it", g); err != nil {
		t.Fatalf("modify: %v", err)
	}
	if !strings.Contains(gen.prompt, "double it") || !strings.Contains(gen.prompt, "solo") {
		t.Fatalf("prompt not built from graph and instruction: %s", gen.prompt)
	}
}

func TestStripFences(t *testing.T) {
	cases := map[string]struct{ in, want string }{
		"no fence":       {"result = {}", "result = {}"},
		"plain fence":    {"```\nresult = {}\n```", "result = {}"},
		"language fence": {"```python\nresult = {}\n```", "result = {}"},
		"no closing":     {"```\nresult = {}", "result = {}"},
		"whitespace":     {"  result = {}  ", "result = {}"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := stripFences(tc.in); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
