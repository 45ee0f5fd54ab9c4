package api

import (
	"context"
	"encoding/json"
	"net/http"
)

// SyncDependencies receives FHIR payloads.
type SyncDependencies interface {
	Sync(ctx context.Context, payload json.RawMessage) error
}

// SyncHandler handles FHIR sync requests.
type SyncHandler struct {
	deps SyncDependencies
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(deps SyncDependencies) *SyncHandler {
	return &SyncHandler{deps: deps}
}

// HandleSync handles POST /api/fhir-sync requests.
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	const op = "api.fhir_sync"
	if !allowMethod(w, r, op, http.MethodPost) {
		return
	}
	raw, err := readJSONBody(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.Sync(r.Context(), raw); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "success"})
}
