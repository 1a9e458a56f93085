package analysis

import (
	"context"
	"strconv"
	"time"

	"github.com/sells-group/market-intel/internal/model"
)

// Engine runs the external analysis engine once. Run blocks until the
// engine has terminated (or failed to start) and its output streams are
// collected. The returned Invocation is never nil.
type Engine interface {
	Run(ctx context.Context, args []string) *Invocation
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, args []string) *Invocation

// Run calls f(ctx, args).
func (f EngineFunc) Run(ctx context.Context, args []string) *Invocation {
	return f(ctx, args)
}

// Invocation is the terminal state of one engine execution.
type Invocation struct {
	ID         string
	Args       []string
	PID        int
	StartedAt  time.Time
	FinishedAt time.Time

	// StartErr is set when the process could not be spawned; nothing else
	// below is meaningful in that case.
	StartErr error

	// Interrupted is the context error that caused the engine to be killed
	// before it exited on its own.
	Interrupted error

	// StreamErr is set when an output stream could not be read to EOF.
	StreamErr error

	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Duration is the wall time between start and finish.
func (inv *Invocation) Duration() time.Duration {
	if inv.StartedAt.IsZero() || inv.FinishedAt.IsZero() {
		return 0
	}
	return inv.FinishedAt.Sub(inv.StartedAt)
}

// Arguments renders the positional engine arguments in their fixed order:
// latitude, longitude, business type, radius. Floats use the shortest
// representation that round-trips exactly.
func Arguments(req model.AnalysisRequest) []string {
	return []string{
		formatFloat(req.Latitude),
		formatFloat(req.Longitude),
		req.BusinessType,
		formatFloat(req.RadiusKm),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
