package handler

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"permit-engine/internal/model"
	"permit-engine/internal/progress"
)

func (h *Handler) handleProgress(ctx *fasthttp.RequestCtx) {
	var req model.ProgressRequest
	if !decode(ctx, &req) {
		return
	}
	summary := h.deps.Calculator.Calculate(req.CaseID, req.Circuit, req.Documents)
	if req.Vetoed {
		summary = progress.ApplyVeto(summary)
	}
	writeJSON(ctx, fasthttp.StatusOK, summary)
}

// handleBatch replaces the case list on the board and evaluates it. A batch
// request arriving while another runs makes the older one stale.
func (h *Handler) handleBatch(ctx *fasthttp.RequestCtx) {
	if h.deps.Evaluator == nil {
		writeError(ctx, fasthttp.StatusServiceUnavailable, "Portal is not configured")
		return
	}
	var req model.BatchProgressRequest
	if !decode(ctx, &req) {
		return
	}

	runID := uuid.New().String()
	generation := h.deps.Board.Reset()
	log := h.log.With("run_id", runID, "generation", generation)
	log.Info("Progress batch started", "cases", len(req.Cases))

	reqCtx, cancel := context.WithTimeout(context.Background(), h.deps.Timeout)
	defer cancel()

	res, err := h.deps.Evaluator.Run(reqCtx, h.deps.Board, generation, req.Cases)
	switch {
	case errors.Is(err, progress.ErrStaleGeneration):
		writeError(ctx, fasthttp.StatusConflict, "Case list was replaced during evaluation")
		return
	case errors.Is(err, context.DeadlineExceeded):
		writeError(ctx, fasthttp.StatusGatewayTimeout, "Progress evaluation timed out")
		return
	case err != nil:
		log.Error("Progress batch failed", "error", err)
		writeError(ctx, fasthttp.StatusInternalServerError, err.Error())
		return
	}

	log.Info("Progress batch finished", "evaluated", len(res.Summaries), "failed", len(res.Failed))
	writeJSON(ctx, fasthttp.StatusOK, model.BatchProgressResponse{
		RunID:   runID,
		Results: res.Summaries,
		Failed:  res.Failed,
	})
}
