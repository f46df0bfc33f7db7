// Package train runs SAM training loops over the demo tasks.
//
// The trainer owns everything around the optimizer: it evaluates each batch once at the
// current weights, hands the same closure to SAM for the perturbed evaluation, decays the
// learning rate, logs progress, exports metrics and writes checkpoints.
package train

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/born-ml/sam/internal/autodiff"
	"github.com/born-ml/sam/internal/checkpoint"
	"github.com/born-ml/sam/internal/config"
	"github.com/born-ml/sam/internal/logging"
	"github.com/born-ml/sam/internal/metrics"
	"github.com/born-ml/sam/internal/nn"
	"github.com/born-ml/sam/internal/optim"
	"github.com/born-ml/sam/internal/parallel"
)

// CheckpointFile is the name of the rolling checkpoint inside Run.CheckpointDir.
const CheckpointFile = "checkpoint.born"

// NewOptimizer builds SAM over params with the base optimizer selected by cfg.
func NewOptimizer(cfg config.Optimizer, params []*nn.Parameter, tape *autodiff.GradientTape) (*optim.SAM, error) {
	var factory optim.Factory
	switch cfg.Base {
	case "sgd":
		factory = optim.SGDFactory(optim.SGDConfig{
			Momentum:    cfg.Momentum,
			Dampening:   cfg.Dampening,
			WeightDecay: cfg.WeightDecay,
			Nesterov:    cfg.Nesterov,
		})
	case "adam":
		factory = optim.AdamFactory(optim.AdamConfig{
			Betas:       [2]float64{cfg.Beta1, cfg.Beta2},
			Eps:         cfg.Eps,
			WeightDecay: cfg.WeightDecay,
		})
	default:
		return nil, fmt.Errorf("%w: unknown base optimizer %q", optim.ErrInvalidConfig, cfg.Base)
	}

	par := parallel.Sequential()
	if cfg.Workers > 1 {
		par = parallel.Config{Enabled: true, NumWorkers: cfg.Workers, MinChunkSize: 1}
	}
	return optim.NewSAM(optim.Params(params...), factory, optim.SAMConfig{
		Rho:      cfg.Rho,
		Adaptive: cfg.Adaptive,
		LR:       cfg.LR,
		Tape:     tape,
		Parallel: par,
	})
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithLogger sets the logger (default: logging.Nop()).
func WithLogger(l *logging.Logger) Option {
	return func(t *Trainer) { t.log = l }
}

// WithMetrics sets the metrics recorder (default: none).
func WithMetrics(m *metrics.Recorder) Option {
	return func(t *Trainer) { t.metrics = m }
}

// Result summarizes a finished run.
type Result struct {
	RunID      string
	Epochs     int       // epochs completed, including resumed ones
	Steps      int64     // optimizer steps completed, including resumed ones
	EpochLoss  []float64 // mean training loss of every epoch run by this call
	FinalLoss  float32   // loss over the full data set after training
	Checkpoint string    // path of the last checkpoint written, if any
}

// Trainer drives SAM over a Task.
type Trainer struct {
	cfg     config.Train
	task    Task
	tape    *autodiff.GradientTape
	opt     *optim.SAM
	sched   *optim.StepLR
	rng     *rand.Rand
	log     *logging.Logger
	metrics *metrics.Recorder
	runID   string
	epoch   int
	step    int64
}

// New creates a trainer for task. The configuration must already be valid.
func New(cfg config.Train, task Task, opts ...Option) (*Trainer, error) {
	t := &Trainer{
		cfg:  cfg,
		task: task,
		tape: autodiff.NewGradientTape(),
		rng:  rand.New(rand.NewSource(cfg.Run.Seed)), //nolint:gosec // G404: training shuffles need no crypto randomness
		log:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}

	var err error
	t.opt, err = NewOptimizer(cfg.Optimizer, task.Module().Parameters(), t.tape)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	if cfg.Schedule.StepSize > 0 {
		t.sched, err = optim.NewStepLR(t.opt, cfg.Schedule.StepSize, cfg.Schedule.Gamma)
		if err != nil {
			return nil, fmt.Errorf("train: %w", err)
		}
	}
	t.log = t.log.With("task", task.Name())
	return t, nil
}

// Optimizer returns the SAM optimizer.
func (t *Trainer) Optimizer() *optim.SAM {
	return t.opt
}

// Resume restores model, optimizer and progress from a checkpoint.
func (t *Trainer) Resume(path string) error {
	meta, err := checkpoint.Load(path, t.task.Module(), t.opt)
	if err != nil {
		return fmt.Errorf("train: resume: %w", err)
	}
	if meta.ModelType != "" && meta.ModelType != t.task.Name() {
		return fmt.Errorf("train: resume: checkpoint holds a %s model, task is %s", meta.ModelType, t.task.Name())
	}

	t.runID, t.epoch, t.step = meta.RunID, meta.Epoch, meta.Step
	if t.sched != nil {
		for range meta.Epoch {
			t.sched.Step()
		}
	}
	// Consume the shuffles of the completed epochs so the resumed run sees the same order.
	for range meta.Epoch {
		t.task.Shuffle(t.rng)
	}
	t.log.Info("resumed from checkpoint", "path", path, "run_id", t.runID, "epoch", t.epoch, "step", t.step)
	return nil
}

// Run trains until the configured number of epochs is reached or ctx is cancelled.
func (t *Trainer) Run(ctx context.Context) (Result, error) {
	if t.runID == "" {
		t.runID = checkpoint.NewRunID()
	}
	res := Result{RunID: t.runID}
	log := t.log.With("run_id", t.runID)
	log.Info("training started",
		"optimizer", t.optimizerType(),
		"rho", t.cfg.Optimizer.Rho,
		"adaptive", t.cfg.Optimizer.Adaptive,
		"lr", t.opt.GetLR(),
		"epochs", t.cfg.Run.Epochs,
		"start_epoch", t.epoch,
	)
	t.metrics.SetLR(t.lrs())

	for t.epoch < t.cfg.Run.Epochs {
		start := time.Now()
		meanLoss, err := t.runEpoch(ctx)
		if err != nil {
			res.Epochs, res.Steps = t.epoch, t.step
			return res, err
		}
		t.epoch++
		res.EpochLoss = append(res.EpochLoss, meanLoss)

		if t.sched != nil {
			t.sched.Step()
		}
		t.metrics.EpochDone()
		t.metrics.SetLR(t.lrs())

		log.Info("epoch finished",
			"epoch", t.epoch,
			"loss", meanLoss,
			"lr", t.opt.GetLR(),
			"duration", time.Since(start).Round(time.Millisecond),
		)

		if err := t.afterEpoch(&res); err != nil {
			return res, err
		}
	}

	final, err := t.task.Evaluate()
	if err != nil {
		return res, fmt.Errorf("train: evaluate: %w", err)
	}
	res.Epochs, res.Steps, res.FinalLoss = t.epoch, t.step, final
	log.Info("training finished", "epochs", t.epoch, "steps", t.step, "loss", final)
	return res, nil
}

// runEpoch performs one pass over the shuffled task and returns the mean batch loss.
func (t *Trainer) runEpoch(ctx context.Context) (float64, error) {
	batches := t.task.Shuffle(t.rng)
	var total float64
	for i := range batches {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("train: epoch %d interrupted: %w", t.epoch+1, err)
		}
		loss, err := t.trainStep(t.task.Closure(i, t.tape))
		if err != nil {
			return 0, fmt.Errorf("train: epoch %d, batch %d: %w", t.epoch+1, i, err)
		}
		total += float64(loss)
	}
	return total / float64(batches), nil
}

// trainStep evaluates closure at the current weights, then lets SAM take its step.
func (t *Trainer) trainStep(closure optim.Closure) (float32, error) {
	start := time.Now()
	t.opt.ZeroGrad()

	var (
		loss float32
		err  error
	)
	t.tape.EnableGrad(func() {
		loss, err = closure()
	})
	if err != nil {
		t.metrics.StepFailed("closure")
		return 0, err
	}

	norm, err := t.opt.GradNorm()
	if err != nil {
		t.metrics.StepFailed("grad_norm")
		return 0, err
	}
	if err := t.opt.Step(closure); err != nil {
		t.metrics.StepFailed("step")
		return 0, err
	}
	t.opt.ZeroGrad()

	t.step++
	t.metrics.ObserveStep(float64(loss), float64(norm), time.Since(start))
	t.log.Debug("step", "step", t.step, "loss", loss, "grad_norm", norm)
	return loss, nil
}

// afterEpoch writes checkpoints and the metrics textfile as configured.
func (t *Trainer) afterEpoch(res *Result) error {
	dir := t.cfg.Run.CheckpointDir
	every := t.cfg.Run.CheckpointEvery
	last := t.epoch == t.cfg.Run.Epochs
	if dir != "" && (last || (every > 0 && t.epoch%every == 0)) {
		path := filepath.Join(dir, CheckpointFile)
		loss := 0.0
		if n := len(res.EpochLoss); n > 0 {
			loss = res.EpochLoss[n-1]
		}
		if _, err := checkpoint.Save(path, t.task.Module(), t.opt, checkpoint.Meta{
			RunID:         t.runID,
			ModelType:     t.task.Name(),
			OptimizerType: t.optimizerType(),
			Epoch:         t.epoch,
			Step:          t.step,
			Loss:          loss,
			Extra: map[string]any{
				"seed":       t.cfg.Run.Seed,
				"batch_size": t.cfg.Data.BatchSize,
			},
		}); err != nil {
			return fmt.Errorf("train: %w", err)
		}
		res.Checkpoint = path
		t.log.Info("checkpoint saved", "path", path, "epoch", t.epoch)
	}

	if path := t.cfg.Metrics.Textfile; path != "" {
		if err := t.metrics.WriteTextfile(path); err != nil {
			// Metrics export is best effort.
			t.log.Warn("metrics export failed", "path", path, "error", err)
		}
	}
	return nil
}

func (t *Trainer) optimizerType() string {
	return "sam+" + t.cfg.Optimizer.Base
}

func (t *Trainer) lrs() []float64 {
	groups := t.opt.Groups().All()
	out := make([]float64, len(groups))
	for i, g := range groups {
		out[i] = g.Options.Float(optim.KeyLR)
	}
	return out
}

// IsInterrupted reports whether err stems from a cancelled or expired context.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
