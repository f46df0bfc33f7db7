// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/sam/autodiff"
	"github.com/born-ml/sam/nn"
	"github.com/born-ml/sam/optim"
	"github.com/born-ml/sam/tensor"
)

// linearProblem returns a model and an MSE closure fitting y = 2x - 1.
func linearProblem(t testing.TB, tape *autodiff.GradientTape) (*nn.Linear, optim.Closure) {
	rng := rand.New(rand.NewSource(7))
	model := nn.NewLinear("fc", 1, 1, rng)

	xs := []float32{-2, -1, 0, 1, 2, 3}
	ys := make([]float32, len(xs))
	for i, x := range xs {
		ys[i] = 2*x - 1
	}
	x, err := tensor.FromSlice(xs, tensor.Shape{len(xs), 1})
	require.NoError(t, err)
	y, err := tensor.FromSlice(ys, tensor.Shape{len(ys), 1})
	require.NoError(t, err)

	return model, func() (float32, error) {
		pred, err := model.Forward(x)
		if err != nil {
			return 0, err
		}
		loss, grad, err := nn.MSE(pred, y)
		if err != nil {
			return 0, err
		}
		return loss, model.Backward(x, grad, tape)
	}
}

func TestSAM_PublicAPI(t *testing.T) {
	tape := autodiff.NewGradientTape()
	model, closure := linearProblem(t, tape)

	opt, err := optim.NewSAM(
		optim.Params(model.Parameters()...),
		optim.SGDFactory(optim.SGDConfig{Momentum: 0.5}),
		optim.SAMConfig{Rho: 0.05, LR: 0.05, Tape: tape},
	)
	require.NoError(t, err)
	sched, err := optim.NewStepLR(opt, 100, 0.5)
	require.NoError(t, err)

	var loss float32
	for range 300 {
		loss, err = opt.EvalStep(closure)
		require.NoError(t, err)
		sched.Step()
	}
	assert.Less(t, loss, float32(1e-2))
	assert.InDelta(t, 2, model.Weight().Tensor().Item(), 0.05)
	assert.InDelta(t, -1, model.Bias().Tensor().Item(), 0.05)
	assert.InDelta(t, 0.05*0.125, opt.Groups().At(0).Options.Float(optim.KeyLR), 1e-12)
}

func TestSAM_NoGradients(t *testing.T) {
	tape := autodiff.NewGradientTape()
	model, _ := linearProblem(t, tape)
	opt, err := optim.NewSAM(optim.Params(model.Parameters()...), optim.AdamFactory(optim.AdamConfig{}), optim.SAMConfig{})
	require.NoError(t, err)

	err = opt.Step(func() (float32, error) { return 0, nil })
	assert.ErrorIs(t, err, optim.ErrNoGradients)
}

func ExampleNewSAM() {
	tape := autodiff.NewGradientTape()
	model := nn.NewLinear("fc", 1, 1, rand.New(rand.NewSource(1)))
	x, _ := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3, 1})
	y, _ := tensor.FromSlice([]float32{2, 4, 6}, tensor.Shape{3, 1})

	opt, err := optim.NewSAM(
		optim.Params(model.Parameters()...),
		optim.SGDFactory(optim.SGDConfig{Momentum: 0.9}),
		optim.SAMConfig{Rho: 0.05, LR: 0.01, Tape: tape},
	)
	if err != nil {
		panic(err)
	}

	closure := func() (float32, error) {
		pred, err := model.Forward(x)
		if err != nil {
			return 0, err
		}
		loss, grad, err := nn.MSE(pred, y)
		if err != nil {
			return 0, err
		}
		return loss, model.Backward(x, grad, tape)
	}

	for range 200 {
		if _, err := opt.EvalStep(closure); err != nil {
			panic(err)
		}
	}
	fmt.Printf("weight ≈ %.0f\n", model.Weight().Tensor().Item())
}
