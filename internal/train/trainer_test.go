package train

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/sam/internal/config"
	"github.com/born-ml/sam/internal/metrics"
	"github.com/born-ml/sam/internal/optim"
	"github.com/born-ml/sam/internal/tokenizer"
)

func smallConfig() config.Train {
	cfg := config.Default()
	cfg.Run.Epochs = 6
	cfg.Data.Samples = 64
	cfg.Data.Features = 4
	cfg.Data.BatchSize = 16
	cfg.Data.Noise = 0.01
	return cfg
}

func newTrainer(t *testing.T, cfg config.Train, opts ...Option) (*Trainer, Task) {
	t.Helper()
	task, err := NewTask(cfg.Data, cfg.Run.Seed)
	require.NoError(t, err)
	tr, err := New(cfg, task, opts...)
	require.NoError(t, err)
	return tr, task
}

func TestNewOptimizer(t *testing.T) {
	cfg := config.Default().Optimizer
	task, err := NewTask(config.Default().Data, 1)
	require.NoError(t, err)
	params := task.Module().Parameters()

	sam, err := NewOptimizer(cfg, params, nil)
	require.NoError(t, err)
	assert.IsType(t, &optim.SGD{}, sam.Base())
	opts := sam.Groups().At(0).Options
	assert.InDelta(t, 0.9, opts.Float(optim.KeyMomentum), 1e-12)
	assert.InDelta(t, 0.05, opts.Float(optim.KeyRho), 1e-12)

	cfg.Base = "adam"
	cfg.Workers = 4
	sam, err = NewOptimizer(cfg, params, nil)
	require.NoError(t, err)
	assert.IsType(t, &optim.Adam{}, sam.Base())

	cfg.Base = "lbfgs"
	_, err = NewOptimizer(cfg, params, nil)
	assert.ErrorIs(t, err, optim.ErrInvalidConfig)
}

func TestTrainer_RegressionLossDecreases(t *testing.T) {
	for _, base := range []string{"sgd", "adam"} {
		t.Run(base, func(t *testing.T) {
			cfg := smallConfig()
			cfg.Optimizer.Base = base
			cfg.Run.Epochs = 30
			if base == "adam" {
				cfg.Optimizer.LR = 0.05
			}
			rec := metrics.New("test")
			tr, task := newTrainer(t, cfg, WithMetrics(rec))

			before, err := task.Evaluate()
			require.NoError(t, err)

			res, err := tr.Run(context.Background())
			require.NoError(t, err)
			assert.NotEmpty(t, res.RunID)
			assert.Equal(t, 30, res.Epochs)
			assert.Equal(t, int64(30*4), res.Steps)
			require.Len(t, res.EpochLoss, 30)
			assert.Less(t, res.FinalLoss, before/10)
			assert.Less(t, res.EpochLoss[29], res.EpochLoss[0])
			assert.Empty(t, res.Checkpoint)

			expected := `
# HELP test_epochs_total Training epochs completed.
# TYPE test_epochs_total counter
test_epochs_total 30
`
			assert.NoError(t, testutil.GatherAndCompare(rec.Registry(), strings.NewReader(expected), "test_epochs_total"))
		})
	}
}

func TestTrainer_ScheduleDecaysLR(t *testing.T) {
	cfg := smallConfig()
	cfg.Run.Epochs = 4
	cfg.Schedule.StepSize = 2
	cfg.Schedule.Gamma = 0.5
	tr, _ := newTrainer(t, cfg)

	_, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.05*0.25, tr.Optimizer().Groups().At(0).Options.Float(optim.KeyLR), 1e-12)
}

func TestTrainer_ResumeContinuesIdentically(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig()
	cfg.Schedule.StepSize = 2
	cfg.Schedule.Gamma = 0.5

	full, fullTask := newTrainer(t, cfg)
	fullRes, err := full.Run(context.Background())
	require.NoError(t, err)

	half := cfg
	half.Run.Epochs = 3
	half.Run.CheckpointDir = dir
	first, _ := newTrainer(t, half)
	firstRes, err := first.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, CheckpointFile), firstRes.Checkpoint)

	resumed, resumedTask := newTrainer(t, cfg)
	require.NoError(t, resumed.Resume(firstRes.Checkpoint))
	res, err := resumed.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, firstRes.RunID, res.RunID)
	assert.Equal(t, fullRes.Epochs, res.Epochs)
	assert.Equal(t, fullRes.Steps, res.Steps)
	assert.Len(t, res.EpochLoss, 3)
	assert.Equal(t, fullRes.EpochLoss[3:], res.EpochLoss)

	want := fullTask.Module().Parameters()
	got := resumedTask.Module().Parameters()
	for i := range want {
		assert.Equal(t, want[i].Tensor().Data(), got[i].Tensor().Data(), want[i].Name())
	}
	assert.Equal(t,
		full.Optimizer().Groups().At(0).Options.Float(optim.KeyLR),
		resumed.Optimizer().Groups().At(0).Options.Float(optim.KeyLR))
}

func TestTrainer_ResumeRejectsOtherModel(t *testing.T) {
	dir := t.TempDir()
	corpus := filepath.Join(dir, "corpus.txt")
	require.NoError(t, os.WriteFile(corpus, []byte("abcabcabc"), 0o600))

	cfg := smallConfig()
	cfg.Run.Epochs = 1
	cfg.Run.CheckpointDir = dir
	tr, _ := newTrainer(t, cfg)
	res, err := tr.Run(context.Background())
	require.NoError(t, err)

	other := cfg
	other.Data.Kind = "bigram"
	other.Data.Corpus = corpus
	other.Data.Encoding = tokenizer.EncodingBytes
	tr2, _ := newTrainer(t, other)
	assert.Error(t, tr2.Resume(res.Checkpoint))
}

func TestTrainer_CheckpointEvery(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig()
	cfg.Run.Epochs = 3
	cfg.Run.CheckpointDir = dir
	cfg.Run.CheckpointEvery = 2
	cfg.Metrics.Textfile = filepath.Join(dir, "sam.prom")
	tr, _ := newTrainer(t, cfg, WithMetrics(metrics.New("")))

	res, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, res.Checkpoint)

	prom, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "sam_steps_total 12")
}

func TestTrainer_Cancelled(t *testing.T) {
	tr, _ := newTrainer(t, smallConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := tr.Run(ctx)
	require.Error(t, err)
	assert.True(t, IsInterrupted(err))
	assert.Zero(t, res.Steps)
}

func TestTrainer_Bigram(t *testing.T) {
	corpus, err := tokenizer.Build(tokenizer.Bytes{}, strings.Repeat("abcd", 32))
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(3))
	task, err := NewBigram(corpus, 16, rng)
	require.NoError(t, err)

	cfg := smallConfig()
	cfg.Data.Kind = "bigram"
	cfg.Run.Epochs = 40
	cfg.Optimizer.LR = 0.5
	tr, err := New(cfg, task)
	require.NoError(t, err)

	res, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Less(t, res.FinalLoss, float32(0.2))

	// Transitions are deterministic, so a cold sample follows the corpus.
	text, err := task.Sample(0, 7, 0.05, rng)
	require.NoError(t, err)
	assert.Equal(t, "abcdabcd", text)
}

func TestNewTask(t *testing.T) {
	d := config.Default().Data
	task, err := NewTask(d, 1)
	require.NoError(t, err)
	assert.Equal(t, "Linear", task.Name())

	d.Kind = "bigram"
	_, err = NewTask(d, 1)
	assert.Error(t, err, "no corpus")

	d.Corpus = filepath.Join(t.TempDir(), "missing.txt")
	_, err = NewTask(d, 1)
	assert.Error(t, err)

	d.Kind = "vision"
	_, err = NewTask(d, 1)
	assert.Error(t, err)
}
