package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/medscribe/internal/domain/clinical"
	"github.com/okian/medscribe/pkg/logger"
)

// SummaryDependencies produces clinical summaries.
type SummaryDependencies interface {
	Summarize(ctx context.Context, req clinical.Request) (clinical.Summary, error)
}

// SummarizeHandler handles summarize requests.
type SummarizeHandler struct {
	deps SummaryDependencies
}

// NewSummarizeHandler creates a new summarize handler.
func NewSummarizeHandler(deps SummaryDependencies) *SummarizeHandler {
	return &SummarizeHandler{deps: deps}
}

// HandleSummarize handles POST /api/summarize requests. The body is
// optional; any well-formed JSON gets the summary.
func (h *SummarizeHandler) HandleSummarize(w http.ResponseWriter, r *http.Request) {
	const op = "api.summarize"
	if !allowMethod(w, r, op, http.MethodPost) {
		return
	}
	raw, err := readJSONBody(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	var req clinical.Request
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			// transcript does not influence the result, so a mistyped body is not fatal
			logger.Get().Debug(r.Context(), "ignoring unexpected summarize body", logger.Error(err))
		}
	}

	sum, err := h.deps.Summarize(r.Context(), req)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
