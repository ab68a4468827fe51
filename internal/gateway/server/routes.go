package server

import (
	"net/http"

	"graphscape/internal/gateway/handler"
	"graphscape/internal/gateway/middleware"
)

func NewMux(
	graphHandler *handler.GraphHandler,
	generateHandler *handler.GenerateHandler,
	wsHandler *handler.WSHandler,
) http.Handler {
	mux := http.NewServeMux()

	// Graph CRUD
	mux.HandleFunc("GET /api/graphs", graphHandler.List)
	mux.HandleFunc("POST /api/graphs", graphHandler.Create)
	mux.HandleFunc("GET /api/graphs/{id}", graphHandler.Get)
	mux.HandleFunc("PUT /api/graphs/{id}", graphHandler.Rename)
	mux.HandleFunc("DELETE /api/graphs/{id}", graphHandler.Delete)
	mux.HandleFunc("PUT /api/graphs/{id}/nodes", graphHandler.UpsertNode)
	mux.HandleFunc("DELETE /api/graphs/{id}/nodes/{nodeID}", graphHandler.DeleteNode)
	mux.HandleFunc("PUT /api/graphs/{id}/edges", graphHandler.UpsertEdge)
	mux.HandleFunc("DELETE /api/graphs/{id}/edges/{edgeID}", graphHandler.DeleteEdge)

	// Generation
	mux.HandleFunc("POST /api/ai/execute-script", generateHandler.ExecuteScript)
	mux.HandleFunc("POST /api/ai/generate", generateHandler.Generate)
	mux.HandleFunc("POST /api/ai/modify", generateHandler.Modify)
	mux.HandleFunc("GET /api/ai/template", generateHandler.Template)

	// Live editing
	mux.HandleFunc("GET /ws/graphs/{id}", wsHandler.HandleGraphWS)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	// Middleware
	return middleware.CORS(mux)
}
