// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"

	"github.com/born-ml/sam/internal/nn"
	"github.com/born-ml/sam/tensor"
)

// ErrNotRecording is returned by backward passes while the gradient tape is off.
var ErrNotRecording = nn.ErrNotRecording

// Module is implemented by every model: it lists its trainable parameters.
type Module = nn.Module

// Parameter is a named trainable tensor with an optional gradient.
type Parameter = nn.Parameter

// NewParameter creates a parameter without a gradient.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return nn.NewParameter(name, t)
}

// Linear is a fully connected layer: y = x @ W.T + b.
type Linear = nn.Linear

// NewLinear creates a Linear layer with Xavier-initialized weights and zero biases.
// Parameters are named name+".weight" and name+".bias".
func NewLinear(name string, inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	return nn.NewLinear(name, inFeatures, outFeatures, rng)
}

// Bigram is a next-token model holding one row of logits per previous token.
type Bigram = nn.Bigram

// NewBigram creates a bigram model over vocab tokens.
func NewBigram(vocab int, rng *rand.Rand) *Bigram {
	return nn.NewBigram(vocab, rng)
}

// MSE returns the mean squared error and its gradient w.r.t. pred.
func MSE(pred, target *tensor.Tensor) (float32, *tensor.Tensor, error) {
	return nn.MSE(pred, target)
}

// CrossEntropy returns the mean softmax cross-entropy and its gradient w.r.t. logits.
func CrossEntropy(logits *tensor.Tensor, targets []int) (float32, *tensor.Tensor, error) {
	return nn.CrossEntropy(logits, targets)
}

// StateDict returns the live parameter tensors of m keyed by name.
func StateDict(m Module) map[string]*tensor.Tensor {
	return nn.StateDict(m)
}

// LoadStateDict copies sd into the parameters of m.
func LoadStateDict(m Module, sd map[string]*tensor.Tensor) error {
	return nn.LoadStateDict(m, sd)
}

// ZeroGrad clears the gradients of all parameters of m.
func ZeroGrad(m Module) {
	nn.ZeroGrad(m)
}
