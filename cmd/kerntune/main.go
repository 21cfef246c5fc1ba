package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/kerntune/internal/config"
	"github.com/samcharles93/kerntune/internal/logger"
)

func main() {
	app := &cli.Command{
		Name:  "kerntune",
		Usage: "Compile-time autotuner for latency-sensitive kernels",
		Flags: append(loggingFlags(), configFlag()),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return setupLogging(ctx, cmd)
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			tuneCmd(),
			reportCmd(),
			ecdfCmd(),
			serveCmd(),
			spaceCmd(),
			hostCmd(),
			versionCmd(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.Run(ctx, os.Args)
	stop()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "kerntune:", err)
		os.Exit(1)
	}
}

func setupLogging(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	level, format := logLevel, logFormat
	if file, err := loadConfigFile(cmd); err == nil {
		if file.LogLevel != nil && !cmd.IsSet("log-level") {
			level = *file.LogLevel
		}
		if file.LogFormat != nil && !cmd.IsSet("log-format") {
			format = *file.LogFormat
		}
	}
	if debug {
		level = "debug"
	}
	log, err := logger.Setup(os.Stderr, level, format)
	if err != nil {
		return ctx, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	return logger.WithContext(ctx, log), nil
}
