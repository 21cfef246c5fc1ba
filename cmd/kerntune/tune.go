package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/labstack/echo/v5"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/kerntune/internal/api"
	"github.com/samcharles93/kerntune/internal/config"
	"github.com/samcharles93/kerntune/internal/logger"
	"github.com/samcharles93/kerntune/internal/measure"
	"github.com/samcharles93/kerntune/internal/metrics"
	"github.com/samcharles93/kerntune/internal/report"
	"github.com/samcharles93/kerntune/internal/sweep"
	"github.com/samcharles93/kerntune/internal/toolchain"
)

func tuneCmd() *cli.Command {
	return &cli.Command{
		Name:  "tune",
		Usage: "Build and measure every configuration, then store the result set",
		Flags: sweepFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			sc, err := cfg.Scorer()
			if err != nil {
				return err
			}

			store, closeStore, err := openStore(ctx, cfg.Store)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			m := metrics.New(true)
			if cfg.MetricsAddr != "" {
				stop := serveMetrics(ctx, log, cfg.MetricsAddr, m.Handler())
				defer stop()
			}

			dir := toolchain.NewBuildDir(cfg.BuildDir)
			builder := &toolchain.CMake{
				SourceDir: cfg.SourceDir,
				Dir:       dir,
				Space:     cfg.Space,
				Target:    cfg.Artifact,
				Jobs:      cfg.Jobs,
				Log:       log,
			}
			log.Info("configuring build tree", "source", cfg.SourceDir, "build", cfg.BuildDir)
			if err := builder.Init(ctx); err != nil {
				m.RecordError("build")
				return err
			}

			driver := &sweep.Driver{
				Evaluator: &measure.Orchestrator{
					Builder:    builder,
					Bencher:    toolchain.Exec{Log: log},
					Dir:        dir,
					Kernels:    cfg.Kernels,
					RunsDir:    cfg.RunsDir,
					Batches:    cfg.Batches,
					Iterations: cfg.Iterations,
					Log:        log,
				},
				Scorer:     sc,
				Space:      cfg.Space,
				Baseline:   cfg.Baseline,
				Kernels:    cfg.Kernels,
				Batches:    cfg.Batches,
				Iterations: cfg.Iterations,
				Metrics:    m,
				Log:        log,
			}
			set, err := driver.Run(ctx)
			if cfg.MetricsTextfile != "" {
				if werr := m.WriteTextfile(cfg.MetricsTextfile); werr != nil {
					log.Warn("metrics textfile not written", "error", werr)
				}
			}
			if err != nil {
				return err
			}

			if err := store.Save(ctx, set); err != nil {
				return fmt.Errorf("save result set: %w", err)
			}
			log.Info("result set saved", "run", set.Run.ID, "store", describeStore(cfg.Store))

			rep, err := report.Build(set)
			if err != nil {
				return err
			}
			return report.WriteTable(os.Stdout, rep)
		},
	}
}

// serveMetrics exposes /metrics until the returned stop func is called.
func serveMetrics(ctx context.Context, log logger.Logger, addr string, h http.Handler) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	e := echo.New()
	api.RegisterMetrics(e, h)
	go func() {
		defer close(done)
		log.Info("serving metrics", "address", addr)
		sc := echo.StartConfig{Address: addr}
		if err := sc.Start(ctx, e); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", "error", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func describeStore(s config.Store) string {
	if s.Kind == config.StoreRedis {
		return "redis://" + s.RedisAddr
	}
	return s.Path
}
