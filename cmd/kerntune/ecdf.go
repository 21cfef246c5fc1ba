package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/kerntune/internal/report"
	"github.com/samcharles93/kerntune/internal/stats"
)

func ecdfCmd() *cli.Command {
	return &cli.Command{
		Name:  "ecdf",
		Usage: "Export baseline and best latency ECDFs of one kernel as CSV for plotting",
		Flags: append(storeFlags(),
			runFlag(),
			&cli.StringFlag{
				Name:     "kernel",
				Aliases:  []string{"k"},
				Usage:    "kernel to export",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "csv",
				Usage: "write the CSV to this file instead of stdout",
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			set, err := loadSet(ctx, cmd)
			if err != nil {
				return err
			}
			kernel := cmd.String("kernel")
			rs := set.ForKernel(kernel)
			if len(rs) == 0 {
				return fmt.Errorf("kernel %s not in run %s", kernel, set.Run.ID)
			}
			kr, err := report.ForKernel(rs, set.Run.Baseline)
			if err != nil {
				return fmt.Errorf("kernel %s: %w", kernel, err)
			}

			series := []ecdfSeries{
				{label: "baseline " + kr.Baseline.Params.String(), path: kr.Baseline.Samples},
				{label: "best " + kr.Best.Params.String(), path: kr.Best.Samples},
			}
			for i, s := range series {
				if s.path == "" {
					return fmt.Errorf("result set does not record the sample file for %s", s.label)
				}
				samples, err := stats.ReadSampleFile(s.path)
				if err != nil {
					return fmt.Errorf("%s: %w", s.label, err)
				}
				series[i].points = stats.ECDF(samples)
			}

			w, closeOut, err := createOutput(cmd.String("csv"))
			if err != nil {
				return err
			}
			if err := writeECDF(w, series); err != nil {
				_ = closeOut()
				return err
			}
			return closeOut()
		},
	}
}

type ecdfSeries struct {
	label  string
	path   string
	points []stats.Point
}

func writeECDF(w io.Writer, series []ecdfSeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"series", "ns", "fraction"}); err != nil {
		return err
	}
	for _, s := range series {
		for _, p := range s.points {
			rec := []string{
				s.label,
				strconv.FormatFloat(p.Value, 'f', -1, 64),
				strconv.FormatFloat(p.Fraction, 'f', 6, 64),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
