package handler

import (
	"net/http"
	"strings"

	"graphscape/internal/generation"
	"graphscape/internal/graph"
	"graphscape/internal/scriptgen"
	"graphscape/internal/store"
)

// GenerateHandler serves the generation surface: direct script execution,
// model-backed generation and modification, and the manual-use template.
type GenerateHandler struct {
	gen       *generation.Service
	scriptgen *scriptgen.Service
	store     store.Store
}

func NewGenerateHandler(gen *generation.Service, sg *scriptgen.Service, st store.Store) *GenerateHandler {
	return &GenerateHandler{gen: gen, scriptgen: sg, store: st}
}

type executeScriptRequest struct {
	Script    string `json:"script"`
	GraphName string `json:"graph_name"`
	GraphID   string `json:"graph_id"`
}

type generateRequest struct {
	Description string `json:"description"`
	GraphName   string `json:"graph_name"`
}

type modifyRequest struct {
	GraphID     string `json:"graph_id"`
	Instruction string `json:"instruction"`
}

type generateResponse struct {
	Success bool         `json:"success"`
	Graph   *graph.Graph `json:"graph,omitempty"`
	Prompt  string       `json:"prompt,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// ExecuteScript runs a user-supplied script through the sandbox and commits
// the resulting fragment: into the named graph when graph_id is set,
// otherwise into a freshly created one.
func (h *GenerateHandler) ExecuteScript(w http.ResponseWriter, r *http.Request) {
	var req executeScriptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Script) == "" {
		writeBadRequest(w, "script is required")
		return
	}

	genReq := generation.Request{Script: req.Script, NameHint: strings.TrimSpace(req.GraphName)}
	if req.GraphID == "" {
		g, err := h.gen.GenerateInto(r.Context(), genReq)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, generateResponse{Success: true, Graph: g})
		return
	}

	res, err := h.gen.Generate(r.Context(), genReq)
	if err != nil {
		writeError(w, err)
		return
	}
	g, err := h.gen.ApplyToGraph(r.Context(), req.GraphID, res)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Success: true, Graph: g})
}

// Generate builds a graph from a text description. Without a configured
// model the endpoint degrades to returning the prompt for manual use.
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		writeBadRequest(w, "description is required")
		return
	}

	if !h.scriptgen.Configured() {
		writeJSON(w, http.StatusOK, generateResponse{
			Success: false,
			Prompt:  h.scriptgen.GenerationPrompt(req.Description),
			Error:   "no model configured, use the prompt with an external chat model",
		})
		return
	}

	script, err := h.scriptgen.GenerateScript(r.Context(), req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	name := strings.TrimSpace(req.GraphName)
	if name == "" {
		name = "AI Generated Graph"
	}
	g, err := h.gen.GenerateInto(r.Context(), generation.Request{Script: script, NameHint: name})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, generateResponse{Success: true, Graph: g})
}

// Modify rewrites an existing graph per an instruction. The model produces
// a script that rebuilds the whole graph; the commit replaces the previous
// contents atomically.
func (h *GenerateHandler) Modify(w http.ResponseWriter, r *http.Request) {
	var req modifyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.GraphID == "" || strings.TrimSpace(req.Instruction) == "" {
		writeBadRequest(w, "graph_id and instruction are required")
		return
	}

	current, err := h.store.ReadGraph(r.Context(), req.GraphID)
	if err != nil {
		writeError(w, err)
		return
	}

	if !h.scriptgen.Configured() {
		writeJSON(w, http.StatusOK, generateResponse{
			Success: false,
			Prompt:  h.scriptgen.ModificationPrompt(req.Instruction, current),
			Error:   "no model configured, use the prompt with an external chat model",
		})
		return
	}

	script, err := h.scriptgen.ModifyScript(r.Context(), req.Instruction, current)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.gen.Generate(r.Context(), generation.Request{Script: script})
	if err != nil {
		writeError(w, err)
		return
	}
	g, err := h.gen.ApplyToGraph(r.Context(), req.GraphID, res)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Success: true, Graph: g})
}

type templateResponse struct {
	Template       string   `json:"template"`
	Examples       []string `json:"examples"`
	AllowedModules []string `json:"allowed_modules"`
	Requirements   []string `json:"requirements"`
}

// Template returns the manual-generation instructions: what a script must
// produce and which modules it may load.
func (h *GenerateHandler) Template(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, templateResponse{
		Template: h.scriptgen.GenerationPrompt("<your description here>"),
		Examples: []string{
			"A social network graph with 10 nodes arranged in a circle",
			"A binary tree with 15 nodes, arranged in 4 levels",
			"A random graph with 20 nodes and 30 edges",
			"A 3x3x3 grid graph (27 nodes total)",
			"A star graph with 1 central node and 8 surrounding nodes",
		},
		AllowedModules: h.gen.AllowedModules(),
		Requirements: []string{
			"The script must assign the result to a variable called 'result'",
			"The result must be a dict with 'nodes' and 'edges' keys",
			"Node indices in edges must reference valid node list indices",
			"Only the listed modules may be loaded",
		},
	})
}
