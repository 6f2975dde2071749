package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityPool/internal/config"
	"liquidityPool/internal/metrics"
	"liquidityPool/internal/replay"
	"liquidityPool/internal/storage"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.Pool()
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	e, err := openEnv(ctx, cfg.Config, m, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	var errWriter *storage.JSONLWriter
	if cfg.Errors != "" {
		errWriter, err = storage.NewJSONLWriter(cfg.Errors, true)
		if err != nil {
			return fmt.Errorf("open errors output: %w", err)
		}
		defer errWriter.Close()
	}

	runner := replay.NewRunner(replay.RunConfig{
		InputPath:         cfg.Input,
		FromLine:          cfg.FromLine,
		ToLine:            cfg.ToLine,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		FailFast:          cfg.FailFast,
	}, e.coord, errWriter, m, logger)

	logger.Info("replay start",
		zap.String("pool", e.pool.ID.Hex()),
		zap.String("input", cfg.Input),
		zap.Uint64("from_line", cfg.FromLine),
		zap.Uint64("to_line", cfg.ToLine),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Bool("fail_fast", cfg.FailFast),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	summary, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
