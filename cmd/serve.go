package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/analysis"
	"github.com/sells-group/market-intel/internal/api"
	"github.com/sells-group/market-intel/internal/config"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP analysis server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			return eris.Wrap(err, "server listen")
		}

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("engine", cfg.Engine.Command),
			zap.Strings("engine_args", cfg.Engine.Args),
			zap.Int("max_concurrent", cfg.Engine.MaxConcurrent),
		)
		return runServer(ctx, ln, buildServer(cfg), time.Duration(cfg.Server.ShutdownTimeoutSecs)*time.Second)
	},
}

// newOrchestrator wires the engine process runner from config.
func newOrchestrator(c *config.Config) *analysis.Orchestrator {
	return analysis.NewOrchestrator(
		analysis.NewProcessEngine(c.Engine),
		analysis.OptionsFromConfig(c.Engine),
	)
}

func buildServer(c *config.Config) *http.Server {
	return &http.Server{
		Handler:           api.NewRouter(newOrchestrator(c), c.Server),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// runServer serves on ln until ctx is done, then drains in-flight requests
// for up to shutdownTimeout. Requests still running after that have their
// contexts canceled, which kills their engine processes.
func runServer(ctx context.Context, ln net.Listener, srv *http.Server, shutdownTimeout time.Duration) error {
	reqCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()
	srv.BaseContext = func(net.Listener) context.Context { return reqCtx }

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server serve")
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server", zap.Duration("timeout", shutdownTimeout))
	shutdownCtx := context.Background()
	if shutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, shutdownTimeout)
		defer cancel()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		cancelRequests()
		_ = srv.Close()
		return eris.Wrap(err, "server shutdown")
	}
	<-errCh
	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
