package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/born-ml/sam/internal/config"
	"github.com/born-ml/sam/internal/metrics"
	"github.com/born-ml/sam/internal/train"
)

// trainFlags are the command line overrides shared by train and bigram.
type trainFlags struct {
	configPath      string
	base            string
	lr              float64
	rho             float64
	adaptive        bool
	momentum        float64
	epochs          int
	batchSize       int
	seed            int64
	workers         int
	checkpointDir   string
	checkpointEvery int
	resume          string
	logLevel        string
	logJSON         bool
	metricsTextfile string
}

func (f *trainFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.configPath, "config", "c", "", "YAML configuration file")
	fs.StringVar(&f.base, "base", "", "base optimizer (sgd, adam)")
	fs.Float64Var(&f.lr, "lr", 0, "learning rate of the base optimizer")
	fs.Float64Var(&f.rho, "rho", 0, "SAM neighborhood radius")
	fs.BoolVar(&f.adaptive, "adaptive", false, "use adaptive SAM (ASAM)")
	fs.Float64Var(&f.momentum, "momentum", 0, "SGD momentum")
	fs.IntVarP(&f.epochs, "epochs", "e", 0, "number of epochs")
	fs.IntVar(&f.batchSize, "batch-size", 0, "examples per batch")
	fs.Int64Var(&f.seed, "seed", 0, "random seed")
	fs.IntVar(&f.workers, "workers", 0, "gradient norm workers (0 or 1 = sequential)")
	fs.StringVar(&f.checkpointDir, "checkpoint-dir", "", "directory for checkpoints")
	fs.IntVar(&f.checkpointEvery, "checkpoint-every", 0, "epochs between checkpoints (0 = only at the end)")
	fs.StringVar(&f.resume, "resume", "", "checkpoint to resume from")
	fs.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.BoolVar(&f.logJSON, "log-json", false, "log JSON instead of text")
	fs.StringVar(&f.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file after every epoch")
}

// load builds the configuration: defaults, file, environment, then the flags the user set.
func (f *trainFlags) load(fs *pflag.FlagSet) (config.Train, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, err
	}

	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("base", func() { cfg.Optimizer.Base = f.base })
	set("lr", func() { cfg.Optimizer.LR = f.lr })
	set("rho", func() { cfg.Optimizer.Rho = f.rho })
	set("adaptive", func() { cfg.Optimizer.Adaptive = f.adaptive })
	set("momentum", func() { cfg.Optimizer.Momentum = f.momentum })
	set("epochs", func() { cfg.Run.Epochs = f.epochs })
	set("batch-size", func() { cfg.Data.BatchSize = f.batchSize })
	set("seed", func() { cfg.Run.Seed = f.seed })
	set("workers", func() { cfg.Optimizer.Workers = f.workers })
	set("checkpoint-dir", func() { cfg.Run.CheckpointDir = f.checkpointDir })
	set("checkpoint-every", func() { cfg.Run.CheckpointEvery = f.checkpointEvery })
	set("resume", func() { cfg.Run.Resume = f.resume })
	set("log-level", func() { cfg.Log.Level = f.logLevel })
	set("log-json", func() { cfg.Log.JSON = f.logJSON })
	set("metrics-textfile", func() { cfg.Metrics.Textfile = f.metricsTextfile })
	return cfg, nil
}

func newTrainCmd() *cobra.Command {
	var flags trainFlags
	var dumpConfig bool

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model with SAM",
		Long: `Train the configured task with SAM. Without a configuration file this fits a
linear layer to a synthetic regression problem.

Configuration is layered: built-in defaults, the --config file, SAM_* environment
variables, then flags.`,
		Example: `  sam train --rho 0.1 --epochs 50
  sam train --config train.yaml --checkpoint-dir ./ckpt
  sam train --config train.yaml --resume ./ckpt/checkpoint.born`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load(cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if dumpConfig {
				out, err := cfg.Marshal()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}

			task, err := train.NewTask(cfg.Data, cfg.Run.Seed)
			if err != nil {
				return err
			}
			res, err := runTraining(cmd.Context(), cfg, task, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), task, res)
			return nil
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().BoolVar(&dumpConfig, "print-config", false, "print the effective configuration and exit")
	return cmd
}

// runTraining trains task under cfg until done or interrupted by SIGINT/SIGTERM.
func runTraining(ctx context.Context, cfg config.Train, task train.Task, logOut io.Writer) (train.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := newLogger(cfg.Log, logOut)
	if err != nil {
		return train.Result{}, err
	}
	defer func() { _ = log.Close() }()

	trainer, err := train.New(cfg, task,
		train.WithLogger(log),
		train.WithMetrics(metrics.New(metrics.DefaultNamespace)),
	)
	if err != nil {
		return train.Result{}, err
	}
	if cfg.Run.Resume != "" {
		if err := trainer.Resume(cfg.Run.Resume); err != nil {
			return train.Result{}, err
		}
	}

	res, err := trainer.Run(ctx)
	if train.IsInterrupted(err) {
		log.Warn("training interrupted", "run_id", res.RunID, "epochs", res.Epochs, "steps", res.Steps)
	}
	return res, err
}

func printResult(w io.Writer, task train.Task, res train.Result) {
	fmt.Fprintf(w, "Model:      %s\n", task.Name())
	fmt.Fprintf(w, "Run:        %s\n", res.RunID)
	fmt.Fprintf(w, "Epochs:     %d\n", res.Epochs)
	fmt.Fprintf(w, "Steps:      %d\n", res.Steps)
	fmt.Fprintf(w, "Final loss: %.6f\n", res.FinalLoss)
	if res.Checkpoint != "" {
		fmt.Fprintf(w, "Checkpoint: %s\n", res.Checkpoint)
	}
}
