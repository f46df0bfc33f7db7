package checkpoint_test

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/sam/internal/autodiff"
	"github.com/born-ml/sam/internal/checkpoint"
	"github.com/born-ml/sam/internal/nn"
	"github.com/born-ml/sam/internal/optim"
	"github.com/born-ml/sam/internal/tensor"
)

type fixture struct {
	model *nn.Linear
	opt   *optim.SAM
	tape  *autodiff.GradientTape
	x, y  *tensor.Tensor
}

func newFixture(t *testing.T, seed int64, rho float64) *fixture {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	model := nn.NewLinear("linear", 3, 2, rng)
	tape := autodiff.NewGradientTape()

	opt, err := optim.NewSAM(optim.Params(model.Parameters()...),
		optim.SGDFactory(optim.SGDConfig{Momentum: 0.9}),
		optim.SAMConfig{Rho: rho, LR: 0.05, Tape: tape})
	require.NoError(t, err)

	x, err := tensor.FromSlice([]float32{1, 0, -1, 0.5, 2, 1}, tensor.Shape{2, 3})
	require.NoError(t, err)
	y, err := tensor.FromSlice([]float32{1, -1, 0, 2}, tensor.Shape{2, 2})
	require.NoError(t, err)
	return &fixture{model: model, opt: opt, tape: tape, x: x, y: y}
}

func (f *fixture) closure() (float32, error) {
	pred, err := f.model.Forward(f.x)
	if err != nil {
		return 0, err
	}
	loss, grad, err := nn.MSE(pred, f.y)
	if err != nil {
		return 0, err
	}
	return loss, f.model.Backward(f.x, grad, f.tape)
}

func (f *fixture) train(t *testing.T, steps int) float32 {
	t.Helper()
	var loss float32
	for range steps {
		var err error
		loss, err = f.opt.EvalStep(f.closure)
		require.NoError(t, err)
	}
	return loss
}

func TestSaveLoad_ResumesIdentically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ckpt.born")

	a := newFixture(t, 1, 0.05)
	loss := a.train(t, 4)

	runID, err := checkpoint.Save(path, a.model, a.opt, checkpoint.Meta{
		ModelType:     "Linear",
		OptimizerType: "sam+sgd",
		Epoch:         2,
		Step:          4,
		Loss:          float64(loss),
		Extra:         map[string]any{"batch_size": 2},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	// Different initial weights and rho: everything must come from the file.
	b := newFixture(t, 99, 0.5)
	meta, err := checkpoint.Load(path, b.model, b.opt)
	require.NoError(t, err)

	assert.Equal(t, runID, meta.RunID)
	assert.Equal(t, "Linear", meta.ModelType)
	assert.Equal(t, "sam+sgd", meta.OptimizerType)
	assert.Equal(t, 2, meta.Epoch)
	assert.Equal(t, int64(4), meta.Step)
	assert.InDelta(t, float64(loss), meta.Loss, 1e-9)
	assert.Equal(t, 2.0, meta.Extra["batch_size"])
	assert.False(t, meta.CreatedAt.IsZero())

	assert.Equal(t, 0.05, b.opt.Groups().At(0).Options.Float(optim.KeyRho))
	assert.Same(t, b.opt.Groups(), b.opt.Base().Groups())
	assert.True(t, a.model.Weight().Tensor().Equal(b.model.Weight().Tensor()))

	a.train(t, 3)
	b.train(t, 3)
	assert.True(t, a.model.Weight().Tensor().Equal(b.model.Weight().Tensor()))
	assert.True(t, a.model.Bias().Tensor().Equal(b.model.Bias().Tensor()))
}

func TestSave_KeepsRunID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ckpt.born")
	f := newFixture(t, 1, 0.05)

	runID, err := checkpoint.Save(path, f.model, f.opt, checkpoint.Meta{RunID: "fixed"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", runID)
	assert.NotEqual(t, checkpoint.NewRunID(), checkpoint.NewRunID())
}

func TestLoad_MismatchLeavesStateUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ckpt.born")
	a := newFixture(t, 1, 0.05)
	a.train(t, 2)
	_, err := checkpoint.Save(path, a.model, a.opt, checkpoint.Meta{})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(5))
	other := nn.NewLinear("linear", 4, 2, rng)
	opt, err := optim.NewSAM(optim.Params(other.Parameters()...), optim.SGDFactory(optim.SGDConfig{}),
		optim.SAMConfig{Rho: 0.3})
	require.NoError(t, err)
	before := other.Weight().Tensor().Clone()

	_, err = checkpoint.Load(path, other, opt)
	require.Error(t, err)
	assert.True(t, other.Weight().Tensor().Equal(before))
	assert.Equal(t, 0.3, opt.Groups().At(0).Options.Float(optim.KeyRho))
}

func TestLoad_RejectsModelFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.born")
	f := newFixture(t, 1, 0.05)
	require.NoError(t, checkpoint.SaveModel(path, f.model, "Linear"))

	_, err := checkpoint.Load(path, f.model, f.opt)
	assert.Error(t, err)
}

func TestSaveModel_LoadModel(t *testing.T) {
	dir := t.TempDir()
	a := newFixture(t, 1, 0.05)
	a.train(t, 2)

	modelPath := filepath.Join(dir, "model.born")
	require.NoError(t, checkpoint.SaveModel(modelPath, a.model, "Linear"))

	b := newFixture(t, 2, 0.05)
	require.NoError(t, checkpoint.LoadModel(modelPath, b.model))
	assert.True(t, a.model.Weight().Tensor().Equal(b.model.Weight().Tensor()))

	// Model weights can also be pulled out of a full checkpoint.
	ckptPath := filepath.Join(dir, "ckpt.born")
	_, err := checkpoint.Save(ckptPath, a.model, a.opt, checkpoint.Meta{})
	require.NoError(t, err)
	c := newFixture(t, 3, 0.05)
	require.NoError(t, checkpoint.LoadModel(ckptPath, c.model))
	assert.True(t, a.model.Bias().Tensor().Equal(c.model.Bias().Tensor()))
}
