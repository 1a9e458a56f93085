package analysis

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/config"
)

const defaultKillGrace = 2 * time.Second

// ProcessEngine runs the analysis engine as a child process. Each Run spawns
// exactly one process; nothing is pooled or reused.
type ProcessEngine struct {
	Command   string
	BaseArgs  []string // prepended to the request arguments, e.g. the runner script
	WorkDir   string
	Env       []string // added to the server's environment
	KillGrace time.Duration
	Logger    *zap.Logger
}

// NewProcessEngine creates a ProcessEngine from config.
func NewProcessEngine(cfg config.EngineConfig) *ProcessEngine {
	return &ProcessEngine{
		Command:   cfg.Command,
		BaseArgs:  cfg.Args,
		WorkDir:   cfg.WorkDir,
		Env:       cfg.Env,
		KillGrace: cfg.KillGrace(),
	}
}

// Run starts the engine with args and collects stdout and stderr until the
// process exits and both streams reach EOF. If ctx ends first the whole
// process group is killed. Helpers still in the group when the engine exits
// are killed too.
func (e *ProcessEngine) Run(ctx context.Context, args []string) *Invocation {
	inv := &Invocation{
		ID:       uuid.NewString(),
		Args:     append(slices.Clone(e.BaseArgs), args...),
		ExitCode: -1,
	}
	log := e.logger().With(zap.String("invocation_id", inv.ID))

	if err := ctx.Err(); err != nil {
		inv.Interrupted = err
		return inv
	}

	cmd := exec.CommandContext(ctx, e.Command, inv.Args...)
	cmd.Dir = e.WorkDir
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	setupProcessGroup(cmd)
	cmd.Cancel = func() error {
		log.Warn("killing engine process group", zap.Error(ctx.Err()))
		return killProcessGroup(cmd)
	}
	// WaitDelay also bounds how long Wait waits for the output copies, so a
	// helper that escaped the group and kept a stream open cannot stall Run.
	cmd.WaitDelay = e.killGrace()

	var stdout, stderr StreamBuffer
	mirror := newLogMirror(log)
	cmd.Stdout = &stdout
	cmd.Stderr = io.MultiWriter(&stderr, mirror)

	inv.StartedAt = time.Now()
	if err := cmd.Start(); err != nil {
		inv.FinishedAt = time.Now()
		if ctxErr := ctx.Err(); ctxErr != nil {
			inv.Interrupted = ctxErr
			return inv
		}
		inv.StartErr = eris.Wrapf(err, "engine: start %s", e.Command)
		return inv
	}
	inv.PID = cmd.Process.Pid
	log.Debug("engine started",
		zap.Int("pid", inv.PID),
		zap.Strings("args", inv.Args),
	)

	waitErr := cmd.Wait()
	// Helpers left in the engine's group die with the invocation.
	reapProcessGroup(inv.PID)
	mirror.Flush()
	stdout.Close()
	stderr.Close()

	inv.FinishedAt = time.Now()
	inv.Stdout = stdout.Bytes()
	inv.Stderr = stderr.Bytes()
	inv.ExitCode = exitCode(cmd.ProcessState)
	switch {
	case waitErr == nil:
	case ctx.Err() != nil:
		inv.Interrupted = ctx.Err()
	case !isExitError(waitErr):
		// ErrWaitDelay or a failed copy: the process finished but its
		// output was not read to EOF.
		log.Warn("engine output stream incomplete", zap.Error(waitErr))
		inv.StreamErr = eris.Wrap(waitErr, "engine: read output")
	}

	log.Debug("engine finished",
		zap.Int("pid", inv.PID),
		zap.Int("exit_code", inv.ExitCode),
		zap.Duration("duration", inv.Duration()),
		zap.Int("stdout_bytes", len(inv.Stdout)),
		zap.Int("stderr_bytes", len(inv.Stderr)),
	)

	return inv
}

func (e *ProcessEngine) killGrace() time.Duration {
	if e.KillGrace > 0 {
		return e.KillGrace
	}
	return defaultKillGrace
}

func (e *ProcessEngine) logger() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.L()
}

func exitCode(state *os.ProcessState) int {
	if state == nil {
		return -1
	}
	return state.ExitCode()
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}
