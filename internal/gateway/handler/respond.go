package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"graphscape/internal/sandbox"
	"graphscape/internal/store"
)

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Where   string `json:"where,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("handler: encode response: %v", err)
	}
}

// writeError maps the domain error taxonomy to HTTP statuses. Generation
// failures carry enough detail (identifier, field, index) for the caller to
// fix the script; storage failures stay generic and retryable.
func writeError(w http.ResponseWriter, err error) {
	var genErr *sandbox.Error
	if errors.As(err, &genErr) {
		status := http.StatusUnprocessableEntity
		if genErr.Kind == sandbox.KindExecutionTimeout {
			status = http.StatusRequestTimeout
		}
		writeJSON(w, status, errorResponse{Error: errorBody{
			Kind:    string(genErr.Kind),
			Message: genErr.Message,
			Where:   genErr.Where,
		}})
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: errorBody{
			Kind:    "not_found",
			Message: err.Error(),
		}})
		return
	}
	if errors.Is(err, store.ErrStorage) {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: errorBody{
			Kind:    "storage_failure",
			Message: "storage is unavailable, retry later",
		}})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errorBody{
		Kind:    "internal",
		Message: err.Error(),
	}})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{
		Kind:    "invalid_argument",
		Message: msg,
	}})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
