package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/kerntune/internal/api"
	"github.com/samcharles93/kerntune/internal/logger"
	"github.com/samcharles93/kerntune/internal/metrics"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve stored result sets and reports over HTTP",
		Flags: append(storeFlags(),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Sources:     cli.EnvVars("KERNTUNE_ADDR"),
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			file, err := loadConfigFile(cmd)
			if err != nil {
				return err
			}
			if file.ServerAddress != nil && !cmd.IsSet("addr") {
				addr = *file.ServerAddress
			}
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(ctx, cfg.Store)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			server := api.NewServer(store, metrics.ProcessHandler())
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "store", describeStore(cfg.Store))
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
