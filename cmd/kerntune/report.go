package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/kerntune/internal/report"
)

func reportCmd() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Print the baseline-vs-best report of a stored result set",
		Flags: append(storeFlags(),
			runFlag(),
			&cli.StringFlag{
				Name:  "format",
				Usage: "output format (table, json)",
				Value: "table",
			},
			&cli.StringFlag{
				Name:  "report-out",
				Usage: "write the report to this file instead of stdout",
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var write func(io.Writer, *report.Report) error
			switch format := cmd.String("format"); format {
			case "json":
				write = report.WriteJSON
			case "table", "":
				write = report.WriteTable
			default:
				return fmt.Errorf("unknown report format %q (want table or json)", format)
			}

			set, err := loadSet(ctx, cmd)
			if err != nil {
				return err
			}
			rep, err := report.Build(set)
			if err != nil {
				return err
			}

			w, closeOut, err := createOutput(cmd.String("report-out"))
			if err != nil {
				return err
			}
			if err := write(w, rep); err != nil {
				_ = closeOut()
				return err
			}
			return closeOut()
		},
	}
}

// createOutput opens path for writing, or stdout when path is empty. The
// close func reports errors of the final flush to disk.
func createOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, f.Close, nil
}
