package handler

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/valyala/fasthttp"

	"permit-engine/internal/engine"
	"permit-engine/internal/ingest"
	"permit-engine/internal/lock"
	"permit-engine/internal/model"
	"permit-engine/internal/portal"
)

const privilegedHeader = "X-Privileged-Token"

// loadFailureNotice is shown to the operator when the results could not be
// fetched; the case list stays usable.
const loadFailureNotice = "Les résultats d'examen n'ont pas pu être chargés."

type caseAttemptsResponse struct {
	Situation    model.Situation       `json:"situation"`
	Unclassified []ingest.Unclassified `json:"unclassified"`
}

func (h *Handler) handleEvaluate(ctx *fasthttp.RequestCtx) {
	var req model.CalculationRequest
	if !decode(ctx, &req) {
		return
	}
	privileged := h.privileged(ctx)
	for i := range req.CalculationInstructions.Mutations {
		req.CalculationInstructions.Mutations[i].Privileged = privileged
	}
	writeJSON(ctx, fasthttp.StatusOK, engine.Process(&req, h.log))
}

// privileged reports whether the request carries the configured operator
// token.
func (h *Handler) privileged(ctx *fasthttp.RequestCtx) bool {
	if h.deps.PrivilegedToken == "" {
		return false
	}
	got := ctx.Request.Header.Peek(privilegedHeader)
	return subtle.ConstantTimeCompare(got, []byte(h.deps.PrivilegedToken)) == 1
}

// handleCaseAttempts loads the stored results of a case. Categories that are
// already terminal come back locked without a prompt.
func (h *Handler) handleCaseAttempts(ctx *fasthttp.RequestCtx, caseID string) {
	if h.deps.Results == nil {
		writeError(ctx, fasthttp.StatusServiceUnavailable, "Portal is not configured")
		return
	}
	reqCtx, cancel := context.WithTimeout(context.Background(), h.deps.Timeout)
	defer cancel()

	records, err := h.deps.Results.Results(reqCtx, caseID)
	switch {
	case errors.Is(err, portal.ErrNotFound):
		records = nil
	case err != nil:
		h.log.Error("Failed to load exam results", "case_id", caseID, "error", err)
		writeError(ctx, fasthttp.StatusBadGateway, loadFailureNotice)
		return
	}

	classified := ingest.Classify(caseID, records)
	coord := lock.New(caseID, lock.NewSession(), h.log)
	for _, cat := range model.Categories {
		if err := coord.Load(cat, classified.Attempts[cat], ""); err != nil {
			writeError(ctx, fasthttp.StatusInternalServerError, err.Error())
			return
		}
	}
	coord.Recompute()
	if n := len(classified.Unclassified); n > 0 {
		h.log.Debug("Result records set aside", "case_id", caseID, "count", n)
	}

	writeJSON(ctx, fasthttp.StatusOK, caseAttemptsResponse{
		Situation:    coord.Snapshot(),
		Unclassified: classified.Unclassified,
	})
}
