package fleet

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/kilianp07/fleetpulse/core/logger"
	"github.com/kilianp07/fleetpulse/core/model"
	"github.com/kilianp07/fleetpulse/core/pipeline"
	"github.com/kilianp07/fleetpulse/core/telemetry"
	"github.com/kilianp07/fleetpulse/core/transport"
	"github.com/kilianp07/fleetpulse/pkg/export"
)

// ErrorResponse is the body of a failed summary request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	RunID string `json:"runId,omitempty"`
}

// Handler runs the pipeline on demand and serves the most recent result.
type Handler struct {
	runner         pipeline.Runner
	defaultURL     string
	defaultTimeout time.Duration
	logger         logger.Logger

	mu   sync.RWMutex
	last *model.PipelineResult
}

// NewHandler creates a Handler. defaultURL and defaultTimeout apply when a
// request does not set them.
func NewHandler(runner pipeline.Runner, defaultURL string, defaultTimeout time.Duration, log logger.Logger) *Handler {
	return &Handler{runner: runner, defaultURL: defaultURL, defaultTimeout: defaultTimeout, logger: log}
}

// SetLast records res as the most recent result.
func (h *Handler) SetLast(res *model.PipelineResult) {
	if res == nil {
		return
	}
	h.mu.Lock()
	h.last = res
	h.mu.Unlock()
}

// Last returns the most recent result, or nil.
func (h *Handler) Last() *model.PipelineResult {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last
}

// Summary handles GET /api/fleet/summary?url=&timeout=. timeout is a Go
// duration ("500ms") or a number of milliseconds.
func (h *Handler) Summary() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		url := r.URL.Query().Get("url")
		if url == "" {
			url = h.defaultURL
		}
		if url == "" {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing url"})
			return
		}
		timeout, err := parseTimeout(r.URL.Query().Get("timeout"), h.defaultTimeout)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}

		res, err := h.runner.Run(r.Context(), url, timeout)
		if err != nil {
			resp := ErrorResponse{Error: err.Error(), Kind: pipeline.ErrorKind(err)}
			var pe *pipeline.Error
			if errors.As(err, &pe) {
				resp.RunID = pe.RunID
			}
			writeJSON(w, StatusFor(err), resp)
			return
		}
		h.SetLast(res)
		writeJSON(w, http.StatusOK, res)
	})
}

// Chart handles GET /api/fleet/chart, an HTML report of the last result.
func (h *Handler) Chart() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		res := h.Last()
		if res == nil {
			http.Error(w, "no result yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := export.WriteHTML(w, res); err != nil {
			h.logger.Errorf("render chart: %v", err)
		}
	})
}

// StatusFor maps a pipeline error to an HTTP status code.
func StatusFor(err error) int {
	var te *transport.Error
	var de *telemetry.DecodeError
	switch {
	case errors.As(err, &te) && te.Kind == transport.KindTimeout:
		return http.StatusGatewayTimeout
	case errors.As(err, &te):
		return http.StatusBadGateway
	case errors.As(err, &de):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func parseTimeout(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
