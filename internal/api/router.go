// Package api exposes the analysis orchestrator over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/analysis"
	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/model"
)

// AnalyzePath is the route of the analysis endpoint.
const AnalyzePath = "/analyze/retail_market_intelligence_model"

// Analyzer runs one market analysis. *analysis.Orchestrator implements it.
type Analyzer interface {
	Analyze(ctx context.Context, req model.AnalysisRequest) (*analysis.Report, error)
}

// NewRouter builds the HTTP handler for the service.
func NewRouter(analyzer Analyzer, cfg config.ServerConfig) http.Handler {
	h := &handler{analyzer: analyzer}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(accessLog)
	r.Use(recoverEnvelope)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{InvocationHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.health)

	r.Group(func(r chi.Router) {
		if cfg.RateLimit > 0 {
			r.Use(newRateLimiter(cfg.RateLimit, cfg.RateBurst).middleware)
		}
		r.Get(AnalyzePath, h.analyze)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, analysis.Envelope{ErrorKind: KindNotFound, Message: "no such route"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusMethodNotAllowed, analysis.Envelope{ErrorKind: KindBadMethod, Message: "method not allowed"})
	})

	zap.L().Debug("api: routes registered",
		zap.Strings("allowed_origins", cfg.AllowedOrigins),
		zap.Float64("rate_limit", cfg.RateLimit),
	)
	return r
}
