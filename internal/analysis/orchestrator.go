package analysis

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/model"
)

// Options configures an Orchestrator.
type Options struct {
	// Timeout bounds one analysis end to end, including waiting for a slot.
	// Zero disables the deadline.
	Timeout time.Duration

	// MaxConcurrent caps how many engine processes run at once. Zero means
	// no cap.
	MaxConcurrent int

	Logger *zap.Logger
}

// OptionsFromConfig converts engine config values to Options.
func OptionsFromConfig(cfg config.EngineConfig) Options {
	return Options{
		Timeout:       cfg.Timeout(),
		MaxConcurrent: cfg.MaxConcurrent,
	}
}

// Orchestrator turns one analysis request into one engine invocation and
// classifies the outcome. It is safe for concurrent use; requests share no
// mutable state beyond the admission semaphore.
type Orchestrator struct {
	engine Engine
	opts   Options
	slots  *semaphore.Weighted
}

// NewOrchestrator creates an Orchestrator around engine.
func NewOrchestrator(engine Engine, opts Options) *Orchestrator {
	o := &Orchestrator{engine: engine, opts: opts}
	if opts.MaxConcurrent > 0 {
		o.slots = semaphore.NewWeighted(int64(opts.MaxConcurrent))
	}
	return o
}

// Analyze runs the engine for req and returns the classified outcome. Every
// failure is an *Error. The engine process is gone when Analyze returns.
func (o *Orchestrator) Analyze(ctx context.Context, req model.AnalysisRequest) (*Report, error) {
	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	log := o.logger().With(
		zap.Float64("lat", req.Latitude),
		zap.Float64("lon", req.Longitude),
		zap.String("business_type", req.BusinessType),
		zap.Float64("radius_km", req.RadiusKm),
	)

	if o.slots != nil {
		if err := o.slots.Acquire(ctx, 1); err != nil {
			aerr := interruptedBeforeStart(err)
			log.Warn("analysis not started", zap.String("kind", string(aerr.Kind)), zap.Error(err))
			return nil, aerr
		}
		defer o.slots.Release(1)
	}

	inv := o.engine.Run(ctx, Arguments(req))
	log = log.With(
		zap.String("invocation_id", inv.ID),
		zap.Int("pid", inv.PID),
		zap.Int("exit_code", inv.ExitCode),
		zap.Duration("duration", inv.Duration()),
	)

	report, err := Classify(inv)
	if err != nil {
		aerr := AsError(err)
		fields := []zap.Field{zap.String("kind", string(aerr.Kind)), zap.String("message", aerr.Message)}
		if aerr.Details != "" {
			fields = append(fields, zap.String("details", aerr.Details))
		}
		if aerr.Stderr != "" {
			fields = append(fields, zap.Int("stderr_bytes", len(aerr.Stderr)))
		}
		log.Error("analysis failed", fields...)
		return nil, aerr
	}

	log.Info("analysis complete",
		zap.Float64("traffic_score", report.Result.TrafficScore.TrafficScore),
		zap.Int("competitors", report.Result.ExistingCompetitors.Data.TotalCompetitors),
		zap.Int("stderr_bytes", len(report.Stderr)),
	)
	return report, nil
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.opts.Logger != nil {
		return o.opts.Logger
	}
	return zap.L()
}

func interruptedBeforeStart(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "timed out waiting for a free engine slot", Err: err}
	}
	return &Error{Kind: KindCanceled, Message: "analysis canceled before the engine started", Err: err}
}
