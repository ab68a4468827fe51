// Package scriptgen turns natural-language descriptions into generation
// scripts. When no model is configured it hands back the prompt so the user
// can run it through a chat model manually; either way the produced script
// goes through the normal sandbox pipeline and gets no special trust.
package scriptgen

import (
	"context"
	"fmt"
	"strings"

	"graphscape/internal/graph"
)

// TextGenerator produces text from a prompt. Satisfied by
// llmclient.GeminiClient.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

const generationPromptTemplate = `Generate a Starlark script that creates a 3D graph structure based on this description:

%s

Requirements:
1. Starlark is a Python-like language. The modules math, json, random and time are predeclared; no other imports exist.
2. Create nodes with 3D positions (x, y, z coordinates).
3. Create edges connecting nodes.
4. Assign a dict with "nodes" and "edges" keys to a top-level variable called result.

Node format:
- Each node is a dict with: label (string), x (float), y (float), z (float), color (hex string, optional), size (float, optional).

Edge format:
- Each edge is a dict with: source_id (int, index into the nodes list), target_id (int), weight (float, optional), directed (bool, optional), color (hex string, optional).

Example output structure:
result = {
    "nodes": [
        {"label": "Node 1", "x": 0.0, "y": 0.0, "z": 0.0, "color": "#3498db", "size": 1.0},
        {"label": "Node 2", "x": 1.0, "y": 1.0, "z": 1.0, "color": "#e74c3c", "size": 1.0},
    ],
    "edges": [
        {"source_id": 0, "target_id": 1, "weight": 1.0, "directed": False, "color": "#95a5a6"},
    ],
}

Generate ONLY the script (no markdown, no explanations). The script must assign the result to a variable called result.`

const modificationPromptTemplate = `Modify this existing 3D graph structure based on the instruction:

Current graph:
- Nodes: %d nodes
- Edges: %d edges
- Node labels: %s

Instruction: %s

Requirements:
1. Starlark is a Python-like language. The modules math, json, random and time are predeclared; no other imports exist.
2. Rebuild the full graph with the instruction applied.
3. Assign a dict with "nodes" and "edges" keys to a top-level variable called result, in the same format as before.

Node format:
- Each node is a dict with: label (string), x (float), y (float), z (float), color (hex string, optional), size (float, optional).

Edge format:
- Each edge is a dict with: source_id (int, index into the nodes list), target_id (int), weight (float, optional), directed (bool, optional), color (hex string, optional).

Generate ONLY the script (no markdown, no explanations). The script must assign the result to a variable called result.`

// Service builds prompts and, when a model is attached, produces scripts.
type Service struct {
	generator TextGenerator // nil when no model is configured
}

func New(generator TextGenerator) *Service {
	return &Service{generator: generator}
}

// Configured reports whether a model is attached.
func (s *Service) Configured() bool { return s != nil && s.generator != nil }

// GenerationPrompt returns the prompt for generating a graph from a
// description, for manual use with an external chat model.
func (s *Service) GenerationPrompt(description string) string {
	return fmt.Sprintf(generationPromptTemplate, strings.TrimSpace(description))
}

// ModificationPrompt returns the prompt for altering an existing graph.
func (s *Service) ModificationPrompt(instruction string, current *graph.Graph) string {
	labels := make([]string, 0, 10)
	for i, n := range current.Nodes {
		if i == 10 {
			labels = append(labels, "...")
			break
		}
		labels = append(labels, n.Label)
	}
	return fmt.Sprintf(modificationPromptTemplate,
		len(current.Nodes), len(current.Edges), strings.Join(labels, ", "),
		strings.TrimSpace(instruction))
}

// GenerateScript asks the model for a script matching the description.
func (s *Service) GenerateScript(ctx context.Context, description string) (string, error) {
	out, err := s.generator.GenerateText(ctx, s.GenerationPrompt(description))
	if err != nil {
		return "", err
	}
	return stripFences(out), nil
}

// ModifyScript asks the model for a script rebuilding the graph with the
// instruction applied.
func (s *Service) ModifyScript(ctx context.Context, instruction string, current *graph.Graph) (string, error) {
	out, err := s.generator.GenerateText(ctx, s.ModificationPrompt(instruction, current))
	if err != nil {
		return "", err
	}
	return stripFences(out), nil
}

// stripFences removes a surrounding markdown code fence if the model added
// one despite the instructions.
func stripFences(script string) string {
	script = strings.TrimSpace(script)
	if !strings.HasPrefix(script, "```") {
		return script
	}
	lines := strings.Split(script, "\n")
	if len(lines) < 2 {
		return script
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
