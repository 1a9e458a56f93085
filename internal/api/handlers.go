package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/analysis"
	"github.com/sells-group/market-intel/internal/model"
)

// InvocationHeader carries the engine invocation ID of a successful analysis.
const InvocationHeader = "X-Invocation-ID"

// Error kinds produced by the HTTP layer itself.
const (
	KindRateLimited analysis.ErrorKind = "RateLimited"
	KindNotFound    analysis.ErrorKind = "NotFound"
	KindBadMethod   analysis.ErrorKind = "MethodNotAllowed"
)

const contentTypeGeoJSON = "application/geo+json"

type handler struct {
	analyzer Analyzer
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) analyze(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req, err := analysis.ParseParams(analysis.RawParamsFromQuery(query))
	if err != nil {
		writeError(w, err)
		return
	}

	// The request context goes straight through: a client that disconnects
	// takes the engine process down with it.
	report, err := h.analyzer.Analyze(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set(InvocationHeader, report.InvocationID)

	if query.Get("format") == "geojson" {
		fc, err := model.CompetitorFeatures(report.Result)
		if err != nil {
			writeError(w, &analysis.Error{Kind: analysis.KindInternal, Message: "geojson export failed", Details: err.Error(), Err: err})
			return
		}
		body, err := json.Marshal(fc)
		if err != nil {
			writeError(w, &analysis.Error{Kind: analysis.KindInternal, Message: "geojson export failed", Details: err.Error(), Err: err})
			return
		}
		writeBody(w, http.StatusOK, contentTypeGeoJSON, body)
		return
	}

	writeBody(w, http.StatusOK, "application/json", report.Payload)
}

func writeError(w http.ResponseWriter, err error) {
	aerr := analysis.AsError(err)
	writeEnvelope(w, aerr.Kind.HTTPStatus(), aerr.Envelope())
}

func writeEnvelope(w http.ResponseWriter, status int, env analysis.Envelope) {
	writeJSON(w, status, env)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		zap.L().Error("api: encode response", zap.Error(err))
		http.Error(w, `{"errorKind":"InternalError","message":"encode response"}`, http.StatusInternalServerError)
		return
	}
	writeBody(w, status, "application/json", body)
}

func writeBody(w http.ResponseWriter, status int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}
