// Package nn implements the small models and losses used to drive the optimizers in this module.
//
// This package provides:
//   - Parameter: trainable tensor with an optional gradient slot
//   - Linear: fully connected layer with analytic backward pass
//   - Bigram: next-token logit table
//   - Loss functions: MSE, CrossEntropy
//
// Backward passes only populate gradients while the supplied gradient tape is recording.
package nn

import (
	"errors"
	"fmt"

	"github.com/born-ml/sam/internal/tensor"
)

// ErrNotRecording is returned by backward passes invoked while gradient recording is off.
var ErrNotRecording = errors.New("backward called while gradient recording is disabled")

// Module is the base interface for all trainable components.
type Module interface {
	// Parameters returns all trainable parameters of this module in a stable order.
	Parameters() []*Parameter
}

// StateDict returns the module parameters keyed by name.
//
// The returned tensors are the live parameter tensors, not copies.
func StateDict(m Module) map[string]*tensor.Tensor {
	sd := make(map[string]*tensor.Tensor)
	for _, p := range m.Parameters() {
		sd[p.Name()] = p.Tensor()
	}
	return sd
}

// LoadStateDict copies tensors from sd into the module parameters of the same name.
//
// Every parameter must be present with a matching shape.
func LoadStateDict(m Module, sd map[string]*tensor.Tensor) error {
	for _, p := range m.Parameters() {
		src, ok := sd[p.Name()]
		if !ok {
			return fmt.Errorf("missing parameter %q in state dict", p.Name())
		}
		if err := p.Tensor().CopyFrom(src); err != nil {
			return fmt.Errorf("parameter %q: %w", p.Name(), err)
		}
	}
	return nil
}

// ZeroGrad clears the gradients of every parameter of m.
func ZeroGrad(m Module) {
	for _, p := range m.Parameters() {
		p.ZeroGrad()
	}
}
