package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"
)

func spaceCmd() *cli.Command {
	return &cli.Command{
		Name:  "space",
		Usage: "List the configurations a sweep would evaluate, in order",
		Flags: append(spaceFlags(), kernelsFlag()),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			variants, err := cfg.Space.Enumerate(cfg.Baseline)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tKEY\tDEFINES")
			for i, ps := range variants {
				defines := ""
				for j, s := range ps {
					k, _ := cfg.Space.Knob(s.Name)
					if j > 0 {
						defines += " "
					}
					defines += fmt.Sprintf("%s=%d", k.Define, s.Value)
				}
				marker := ""
				if i == 0 {
					marker = " (baseline)"
				}
				fmt.Fprintf(tw, "%d\t%s%s\t%s\n", i+1, ps.Key(), marker, defines)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Printf("%d configurations x %d kernels = %d benchmark runs\n",
				len(variants), len(cfg.Kernels), len(variants)*len(cfg.Kernels))
			return nil
		},
	}
}
