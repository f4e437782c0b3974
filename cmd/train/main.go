// Command train fits the cafeteria recommendation model and writes its
// artifacts under the project root.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexflint/go-arg"
	"github.com/cheggaaa/pb/v3"

	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/config"
	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/logging"
	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/runner"
)

const version = "v0.1.0"

type args struct {
	Root       string `arg:"--root" help:"project root; relative paths in the configuration resolve against it"`
	Config     string `arg:"--config" help:"optional YAML configuration file"`
	NoProgress bool   `arg:"--no-progress" help:"disable the progress bar"`
}

func (args) Version() string {
	return "cantine-trainer " + version
}

func (args) Description() string {
	return `Train the cafeteria recommendation classifier and write model.gob, metrics.json and feature_importances_top2.json.`
}

func main() {
	var a args
	arg.MustParse(&a)

	cfg, err := config.Load(config.LoadOptions{Root: a.Root, File: a.Config})
	if err != nil {
		logging.New().Error("invalid configuration", err)
		os.Exit(1)
	}

	logger := logging.NewFromConfig(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	logger.Info("starting training run",
		logging.String("version", version),
		logging.String("root", cfg.Root),
		logging.String("data", cfg.DataPath),
		logging.String("output", cfg.OutputDir),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []runner.Option
	var bar *pb.ProgressBar
	if cfg.Progress && !a.NoProgress {
		bar = pb.New(cfg.NumTrees)
		bar.SetWriter(os.Stderr)
		opts = append(opts, runner.WithProgress(func(done, total int) {
			if done == 1 {
				bar.Start()
			}
			bar.Increment()
		}))
	}

	_, err = runner.Run(ctx, cfg, logger, opts...)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		stop()
		os.Exit(1)
	}
}
