// Package handler exposes the engine over HTTP.
package handler

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"permit-engine/internal/logger"
	"permit-engine/internal/metrics"
	"permit-engine/internal/model"
	"permit-engine/internal/progress"
)

var validate = validator.New()

// ResultSource serves the raw exam results of a case.
type ResultSource interface {
	Results(ctx context.Context, caseID string) ([]model.ResultRecord, error)
}

// Deps wires the collaborators of the HTTP layer. Results and Evaluator may
// be nil when no portal is configured; the routes needing them then answer
// 503.
type Deps struct {
	Results    ResultSource
	Calculator *progress.Calculator
	Evaluator  *progress.Evaluator
	Board      *progress.Board
	// Timeout bounds the portal calls made while serving one request.
	Timeout time.Duration
	// PrivilegedToken is compared with the X-Privileged-Token header to
	// grant privileged mutations. Empty means nobody is privileged.
	PrivilegedToken string
}

type Handler struct {
	deps    Deps
	log     *logger.Logger
	metrics fasthttp.RequestHandler
}

func New(deps Deps, log *logger.Logger) *Handler {
	if deps.Calculator == nil {
		deps.Calculator = progress.NewCalculator(nil)
	}
	if deps.Board == nil {
		deps.Board = progress.NewBoard(nil)
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		deps:    deps,
		log:     log.With("component", "http"),
		metrics: fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()),
	}
}

// Handle is the fasthttp entry point.
func (h *Handler) Handle(ctx *fasthttp.RequestCtx) {
	route := h.dispatch(ctx)
	status := ctx.Response.StatusCode()
	metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	if status >= fasthttp.StatusInternalServerError {
		h.log.Warn("Request failed", "route", route, "status", status)
	}
}

func (h *Handler) dispatch(ctx *fasthttp.RequestCtx) string {
	path := string(ctx.Path())
	switch {
	case path == "/attempts/evaluate":
		if h.allow(ctx, fasthttp.MethodPost) {
			h.handleEvaluate(ctx)
		}
		return "evaluate"
	case path == "/progress":
		if h.allow(ctx, fasthttp.MethodPost) {
			h.handleProgress(ctx)
		}
		return "progress"
	case path == "/progress/batch":
		switch {
		case ctx.IsPost():
			h.handleBatch(ctx)
		case ctx.IsGet():
			writeJSON(ctx, fasthttp.StatusOK, h.deps.Board.Snapshot())
		default:
			writeError(ctx, fasthttp.StatusMethodNotAllowed, "Method not allowed")
		}
		return "progress_batch"
	case strings.HasPrefix(path, "/cases/"):
		caseID, ok := caseAttemptsID(path)
		if !ok {
			break
		}
		if h.allow(ctx, fasthttp.MethodGet) {
			h.handleCaseAttempts(ctx, caseID)
		}
		return "case_attempts"
	case path == "/metrics":
		h.metrics(ctx)
		return "metrics"
	case path == "/healthz":
		writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "ok"})
		return "healthz"
	}
	writeError(ctx, fasthttp.StatusNotFound, "Not found")
	return "not_found"
}

// caseAttemptsID extracts {id} from /cases/{id}/attempts. fasthttp collapses
// repeated slashes, so the path is checked segment by segment.
func caseAttemptsID(path string) (string, bool) {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "cases" || parts[1] == "" || parts[2] != "attempts" {
		return "", false
	}
	return parts[1], true
}

func (h *Handler) allow(ctx *fasthttp.RequestCtx, method string) bool {
	if string(ctx.Method()) == method {
		return true
	}
	writeError(ctx, fasthttp.StatusMethodNotAllowed, "Method not allowed")
	return false
}

// decode reads and validates a JSON body. It writes the 400 response itself
// and reports whether the caller may continue.
func decode(ctx *fasthttp.RequestCtx, out any) bool {
	if err := json.Unmarshal(ctx.PostBody(), out); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if err := validate.Struct(out); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "Invalid request: "+err.Error())
		return false
	}
	return true
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, "Failed to encode response")
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}

func writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	body, _ := json.Marshal(model.ErrorResponse{
		Status:  status,
		Message: message,
	})
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}
