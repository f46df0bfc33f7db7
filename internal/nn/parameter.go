package nn

import (
	"fmt"

	"github.com/born-ml/sam/internal/tensor"
)

// Parameter represents a trainable parameter.
//
// Parameters are identity-addressable: optimizers key their per-parameter state by the
// *Parameter pointer, so a Parameter must not be copied by value once training starts.
//
// Example:
//
//	// Create a weight parameter
//	weight := nn.NewParameter("weight", weightTensor)
//
//	// Get gradient after backward pass
//	grad := weight.Grad()
type Parameter struct {
	name   string         // Parameter name (e.g., "weight", "bias")
	tensor *tensor.Tensor // The parameter tensor
	grad   *tensor.Tensor // Gradient tensor (nil until a backward pass sets it)
}

// NewParameter creates a new trainable parameter.
//
// The parameter tensor should be initialized before creating the Parameter.
// Gradient will be allocated during the first backward pass.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
		grad:   nil, // Gradient allocated on first backward pass
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}

// Grad returns the gradient tensor.
//
// Returns nil if no gradient has been computed yet (before backward pass).
func (p *Parameter) Grad() *tensor.Tensor {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter) SetGrad(grad *tensor.Tensor) {
	p.grad = grad
}

// AccumulateGrad adds g to the current gradient, allocating it on first use.
func (p *Parameter) AccumulateGrad(g *tensor.Tensor) error {
	if !g.Shape().Equal(p.tensor.Shape()) {
		return fmt.Errorf("parameter %s: gradient shape %v does not match %v", p.name, g.Shape(), p.tensor.Shape())
	}
	if p.grad == nil {
		p.grad = g.Clone()
		return nil
	}
	return p.grad.AddScaled(1, g)
}

// ZeroGrad clears the gradient tensor.
//
// This should be called before each training iteration to avoid
// accumulating gradients from previous iterations.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}
