package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"graphscape/internal/graph"
	"graphscape/internal/hub"
	"graphscape/internal/store"
)

// GraphHandler serves the REST surface over stored graphs. Mutations that
// succeed are replicated to live viewers of the affected graph so REST and
// websocket clients see the same state.
type GraphHandler struct {
	store store.Store
	hub   *hub.Hub
}

func NewGraphHandler(st store.Store, h *hub.Hub) *GraphHandler {
	return &GraphHandler{store: st, hub: h}
}

type createGraphRequest struct {
	Name string `json:"name"`
}

type renameGraphRequest struct {
	Name string `json:"name"`
}

func (h *GraphHandler) List(w http.ResponseWriter, r *http.Request) {
	graphs, err := h.store.ListGraphs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if graphs == nil {
		graphs = []graph.Graph{}
	}
	writeJSON(w, http.StatusOK, graphs)
}

func (h *GraphHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createGraphRequest
	if !decodeBody(w, r, &req) {
		return
	}
	g, err := h.store.CreateGraph(r.Context(), strings.TrimSpace(req.Name))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (h *GraphHandler) Get(w http.ResponseWriter, r *http.Request) {
	g, err := h.store.ReadGraph(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *GraphHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req renameGraphRequest
	if !decodeBody(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeBadRequest(w, "name is required")
		return
	}
	if err := h.store.RenameGraph(r.Context(), id, name); err != nil {
		writeError(w, err)
		return
	}
	g, err := h.store.ReadGraph(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *GraphHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteGraph(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GraphHandler) UpsertNode(w http.ResponseWriter, r *http.Request) {
	graphID := r.PathValue("id")
	var n graph.Node
	if !decodeBody(w, r, &n) {
		return
	}
	if strings.TrimSpace(n.Label) == "" {
		writeBadRequest(w, "label is required")
		return
	}
	saved, err := h.store.UpsertNode(r.Context(), graphID, n)
	if err != nil {
		writeError(w, err)
		return
	}
	h.replicate(graphID, hub.EventNodeUpdated, saved)
	writeJSON(w, http.StatusOK, saved)
}

func (h *GraphHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	graphID := r.PathValue("id")
	nodeID := r.PathValue("nodeID")
	if err := h.store.DeleteNode(r.Context(), graphID, nodeID); err != nil {
		writeError(w, err)
		return
	}
	h.replicateGraph(r, graphID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *GraphHandler) UpsertEdge(w http.ResponseWriter, r *http.Request) {
	graphID := r.PathValue("id")
	var e graph.Edge
	if !decodeBody(w, r, &e) {
		return
	}
	if e.SourceID == "" || e.TargetID == "" {
		writeBadRequest(w, "source_id and target_id are required")
		return
	}
	saved, err := h.store.UpsertEdge(r.Context(), graphID, e)
	if err != nil {
		writeError(w, err)
		return
	}
	h.replicate(graphID, hub.EventEdgeUpdated, saved)
	writeJSON(w, http.StatusOK, saved)
}

func (h *GraphHandler) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	graphID := r.PathValue("id")
	if err := h.store.DeleteEdge(r.Context(), graphID, r.PathValue("edgeID")); err != nil {
		writeError(w, err)
		return
	}
	h.replicateGraph(r, graphID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *GraphHandler) replicate(graphID, eventType string, payload any) {
	if h.hub == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.hub.Broadcast(graphID, hub.Event{Type: eventType, GraphID: graphID, Payload: raw})
}

// replicateGraph pushes the full post-mutation graph. Deletes cascade, so a
// delta event cannot describe everything that changed.
func (h *GraphHandler) replicateGraph(r *http.Request, graphID string) {
	if h.hub == nil || h.hub.ViewerCount(graphID) == 0 {
		return
	}
	g, err := h.store.ReadGraph(r.Context(), graphID)
	if err != nil {
		return
	}
	h.replicate(graphID, hub.EventGraphUpdated, g)
}
