package main

import (
	"context"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/kerntune/internal/results"
)

func hostCmd() *cli.Command {
	return &cli.Command{
		Name:  "host",
		Usage: "Print the host description recorded with every result set",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(results.DetectHost())
		},
	}
}
