package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/market-intel/internal/analysis"
)

// accessLog writes one zap entry per request.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			zap.L().Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("invocation_id", ww.Header().Get(InvocationHeader)),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// recoverEnvelope turns a handler panic into a 500 envelope.
func recoverEnvelope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			zap.L().Error("api: handler panic",
				zap.Any("panic", rec),
				zap.String("path", r.URL.Path),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Stack("stack"),
			)
			writeEnvelope(w, http.StatusInternalServerError, analysis.Envelope{
				ErrorKind: analysis.KindInternal,
				Message:   "internal server error",
			})
		}()
		next.ServeHTTP(w, r)
	})
}

// rateLimiter is a server-wide token bucket in front of the engine.
type rateLimiter struct {
	limiter *rate.Limiter
}

func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.limiter.Allow() {
			retry := int(math.Ceil(1 / float64(l.limiter.Limit())))
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			zap.L().Warn("api: rate limit exceeded",
				zap.String("path", r.URL.Path),
				zap.Float64("limit", float64(l.limiter.Limit())),
			)
			writeEnvelope(w, http.StatusTooManyRequests, analysis.Envelope{
				ErrorKind: KindRateLimited,
				Message:   "too many analysis requests, retry later",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
