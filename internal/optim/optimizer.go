// Package optim implements optimization algorithms for training models.
//
// This package provides:
//   - Optimizer / Delegate interfaces: base update rules over shared parameter groups
//   - SGD: Stochastic Gradient Descent with momentum, dampening, weight decay and Nesterov
//   - Adam: Adaptive Moment Estimation with bias correction
//   - SAM: Sharpness-Aware Minimization wrapping any Delegate
//   - StepLR: step-decay learning rate schedule
//
// Parameters are organized into groups. Each group carries its own Options (lr, rho, momentum, ...)
// and a wrapper and its delegate always share one *GroupList, so a schedule that edits a group's
// learning rate through the wrapper is seen by the delegate on its next step.
//
// Example usage:
//
//	tape := autodiff.NewGradientTape()
//	sam, err := optim.NewSAM(optim.Params(model.Parameters()...),
//	    optim.SGDFactory(optim.SGDConfig{Momentum: 0.9}),
//	    optim.SAMConfig{Rho: 0.05, LR: 0.1, Tape: tape},
//	)
//
//	closure := func() (float32, error) {
//	    pred, _ := model.Forward(x)
//	    loss, grad, _ := nn.MSE(pred, y)
//	    return loss, model.Backward(x, grad, tape)
//	}
//
//	for step := range steps {
//	    loss, err := sam.EvalStep(closure)
//	    ...
//	}
package optim

import "errors"

// Common errors.
var (
	ErrInvalidConfig  = errors.New("invalid optimizer configuration")
	ErrEmptyParams    = errors.New("optimizer got an empty parameter list")
	ErrDuplicateParam = errors.New("some parameters appear in more than one parameter group")
	ErrStateMismatch  = errors.New("loaded state does not match optimizer parameter groups")
	ErrNilClosure     = errors.New("step requires a closure")
	ErrNoGradients    = errors.New("no parameter has a gradient: evaluate the closure before calling Step")
)

// Optimizer is the base interface for all update rules.
//
// Optimizers update parameters in place from the gradients currently attached to them.
// Parameters without a gradient are skipped.
type Optimizer interface {
	// Step applies one update to every parameter that carries a gradient.
	Step() error

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// Groups returns the parameter group list the optimizer reads on every step.
	Groups() *GroupList

	// Defaults returns the default options this optimizer fills into groups.
	Defaults() Options

	// StateDict returns group options and per-parameter state for serialization.
	StateDict() *StateDict

	// LoadStateDict restores group options and per-parameter state.
	LoadStateDict(sd *StateDict) error

	// GetLR returns the learning rate of the first parameter group.
	GetLR() float32
}

// Delegate is an Optimizer that can be wrapped: it agrees to read its groups from a list
// owned by someone else.
type Delegate interface {
	Optimizer

	// AdoptGroups makes the delegate operate on groups from now on.
	AdoptGroups(groups *GroupList)
}

// Factory builds a Delegate over the given group list.
//
// The factory must operate on the list it is given rather than a copy; the wrapper adopts
// whatever list the delegate reports afterwards.
type Factory func(groups *GroupList) (Delegate, error)

// Closure performs one forward pass and backward pass, leaving gradients on the parameters.
// The returned loss is not inspected by the optimizers.
type Closure func() (float32, error)

// GroupProvider is implemented by everything that exposes a parameter group list.
type GroupProvider interface {
	Groups() *GroupList
}

// Stateful is implemented by optimizers whose state can be checkpointed, including SAM.
type Stateful interface {
	StateDict() *StateDict
	LoadStateDict(sd *StateDict) error
}

// zeroGrads clears the gradients of every parameter in groups.
func zeroGrads(groups *GroupList) {
	for _, p := range groups.Params() {
		p.ZeroGrad()
	}
}

// hasGrad reports whether any parameter in groups carries a gradient.
func hasGrad(groups *GroupList) bool {
	for _, p := range groups.Params() {
		if p.Grad() != nil {
			return true
		}
	}
	return false
}
