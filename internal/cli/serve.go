package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gridatlas/queue-etl/internal/adapter/ops"
	"github.com/gridatlas/queue-etl/internal/domain"
)

var serveInterval time.Duration

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run reconciliation on an interval and serve ops endpoints",
	Long: `Serve runs a reconciliation immediately, re-runs on the configured
interval, and exposes /healthz, /readyz, /metrics, and /runs/latest over
HTTP. Readiness turns healthy after the first committed run.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 24*time.Hour, "time between reconciliation runs")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(false, true)
	if err != nil {
		return err
	}
	defer a.close()

	srv := ops.NewServer(a.cfg.HTTPAddr, a.pipeline, a.store, a.logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("ops server error", "error", err)
		}
	}()

	go a.runLoop(ctx)

	<-ctx.Done()
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("ops server shutdown error", "error", err)
	}
	return nil
}

// runLoop reconciles today's snapshots immediately and then once per
// interval. A failed run is logged and retried at the next tick; the store
// keeps serving the last committed state in between.
func (a *app) runLoop(ctx context.Context) {
	a.runOnce(ctx)

	ticker := time.NewTicker(serveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.runOnce(ctx)
		}
	}
}

func (a *app) runOnce(ctx context.Context) {
	if _, err := a.pipeline.Run(ctx, domain.Today()); err != nil && ctx.Err() == nil {
		a.logger.Error("reconciliation run failed", "error", err)
	}
}
