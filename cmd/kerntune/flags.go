package main

import (
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/kerntune/internal/config"
	"github.com/samcharles93/kerntune/internal/score"
	"github.com/samcharles93/kerntune/internal/space"
)

var (
	logLevel  string
	logFormat string
	debug     bool
)

// numericEnv lists the environment variables of every non-string flag. The
// cli package treats a blank value as "set" and keeps the default, so
// rejectBlankEnv checks these by hand.
var numericEnv = map[string][]string{
	"jobs":      {"KERNTUNE_JOBS"},
	"batches":   {"KERNTUNE_BATCHES", "LSC_BATCHES"},
	"iters":     {"KERNTUNE_ITERS", "LSC_ITERS"},
	"size-cap":  {"KERNTUNE_SIZE_CAP", "LSC_SIZE_CAP"},
	"w-p999":    {"KERNTUNE_W_P999"},
	"w-p99":     {"KERNTUNE_W_P99"},
	"w-stdev":   {"KERNTUNE_W_STDEV"},
	"redis-db":  {"KERNTUNE_REDIS_DB"},
	"redis-ttl": {"KERNTUNE_REDIS_TTL"},
}

func numericSources(flag string) cli.ValueSourceChain {
	return cli.EnvVars(numericEnv[flag]...)
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("KERNTUNE_LOG_LEVEL"),
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Sources:     cli.EnvVars("KERNTUNE_LOG_FORMAT"),
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Usage:   "YAML config file (default: $XDG_CONFIG_HOME/kerntune/config.yaml)",
		Sources: cli.EnvVars("KERNTUNE_CONFIG"),
	}
}

func storeFlags() []cli.Flag {
	def := config.Default()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "store",
			Usage:   "result store (file, redis)",
			Value:   def.Store.Kind,
			Sources: cli.EnvVars("KERNTUNE_STORE"),
		},
		&cli.StringFlag{
			Name:    "out",
			Aliases: []string{"o"},
			Usage:   "result set file for the file store",
			Value:   def.Store.Path,
			Sources: cli.EnvVars("KERNTUNE_OUT"),
		},
		&cli.StringFlag{
			Name:    "redis-addr",
			Usage:   "redis address for the redis store",
			Sources: cli.EnvVars("KERNTUNE_REDIS_ADDR"),
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Usage:   "redis password",
			Sources: cli.EnvVars("KERNTUNE_REDIS_PASSWORD"),
		},
		&cli.IntFlag{
			Name:    "redis-db",
			Usage:   "redis database number",
			Sources: numericSources("redis-db"),
		},
		&cli.DurationFlag{
			Name:    "redis-ttl",
			Usage:   "expiry of stored result sets (0 keeps them)",
			Sources: numericSources("redis-ttl"),
		},
	}
}

func spaceFlags() []cli.Flag {
	def := config.Default()
	flags := make([]cli.Flag, 0, len(def.Space.Knobs)+1)
	for _, k := range def.Space.Knobs {
		name := config.KnobFlag(k.Name)
		flags = append(flags, &cli.StringFlag{
			Name:    name,
			Usage:   "candidate values of " + k.Define + " (comma separated)",
			Value:   space.FormatIntList(k.Values),
			Sources: cli.EnvVars(envName("KERNTUNE", name), envName("LSC", name)),
		})
	}
	return append(flags, &cli.StringFlag{
		Name:    "baseline",
		Usage:   "baseline configuration, e.g. u=1,pf=0,bf=0,la=1,al=0",
		Value:   def.Baseline.String(),
		Sources: cli.EnvVars("KERNTUNE_BASELINE"),
	})
}

func sweepFlags() []cli.Flag {
	def := config.Default()
	w := score.DefaultWeights()
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "source-dir",
			Usage:   "benchmark source tree (holds CMakeLists.txt)",
			Value:   def.SourceDir,
			Sources: cli.EnvVars("KERNTUNE_SOURCE_DIR"),
		},
		&cli.StringFlag{
			Name:    "build-dir",
			Usage:   "build tree shared by every variant",
			Value:   def.BuildDir,
			Sources: cli.EnvVars("KERNTUNE_BUILD_DIR"),
		},
		&cli.StringFlag{
			Name:    "artifact",
			Usage:   "benchmark executable name inside the build dir",
			Value:   def.Artifact,
			Sources: cli.EnvVars("KERNTUNE_ARTIFACT"),
		},
		&cli.StringFlag{
			Name:    "runs-dir",
			Usage:   "directory for raw sample files",
			Value:   def.RunsDir,
			Sources: cli.EnvVars("KERNTUNE_RUNS_DIR"),
		},
		&cli.IntFlag{
			Name:    "jobs",
			Aliases: []string{"j"},
			Usage:   "parallel build jobs",
			Value:   def.Jobs,
			Sources: numericSources("jobs"),
		},
		kernelsFlag(),
		&cli.IntFlag{
			Name:    "batches",
			Usage:   "benchmark batches per kernel",
			Value:   def.Batches,
			Sources: numericSources("batches"),
		},
		&cli.IntFlag{
			Name:    "iters",
			Usage:   "kernel calls per batch",
			Value:   def.Iterations,
			Sources: numericSources("iters"),
		},
		&cli.FloatFlag{
			Name:    "size-cap",
			Usage:   "largest allowed artifact size relative to the baseline",
			Value:   def.SizeCap,
			Sources: numericSources("size-cap"),
		},
		&cli.FloatFlag{
			Name:    "w-p999",
			Usage:   "score weight of p99.9",
			Value:   w.P999,
			Sources: numericSources("w-p999"),
		},
		&cli.FloatFlag{
			Name:    "w-p99",
			Usage:   "score weight of p99",
			Value:   w.P99,
			Sources: numericSources("w-p99"),
		},
		&cli.FloatFlag{
			Name:    "w-stdev",
			Usage:   "score weight of the standard deviation",
			Value:   w.Stdev,
			Sources: numericSources("w-stdev"),
		},
		&cli.StringFlag{
			Name:    "metrics-addr",
			Usage:   "serve sweep metrics on this address while tuning",
			Sources: cli.EnvVars("KERNTUNE_METRICS_ADDR"),
		},
		&cli.StringFlag{
			Name:    "metrics-textfile",
			Usage:   "write final sweep metrics for the node_exporter textfile collector",
			Sources: cli.EnvVars("KERNTUNE_METRICS_TEXTFILE"),
		},
	}
	flags = append(flags, spaceFlags()...)
	return append(flags, storeFlags()...)
}

func kernelsFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "kernels",
		Usage:   "kernels to measure (comma separated)",
		Value:   joinKernels(config.Default().Kernels),
		Sources: cli.EnvVars("KERNTUNE_KERNELS"),
	}
}
