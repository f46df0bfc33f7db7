package optim

import (
	"fmt"
)

const stateMomentumBuffer = "momentum_buffer"

// SGD implements Stochastic Gradient Descent with optional momentum.
//
// Update rule, per parameter group:
//
//	d = gradient + weight_decay * param
//	velocity = momentum * velocity + (1 - dampening) * d   // first step: velocity = d
//	d = nesterov ? d + momentum * velocity : velocity
//	param = param - lr * d
//
// Every hyperparameter is read from the group options at each step, so schedules
// that edit the group list take effect immediately.
type SGD struct {
	base
}

// SGDConfig holds the default hyperparameters of SGD.
type SGDConfig struct {
	LR          float64 // Learning rate (default: 0.01)
	Momentum    float64 // Momentum factor (default: 0.0)
	Dampening   float64 // Dampening for momentum (default: 0.0)
	WeightDecay float64 // L2 penalty (default: 0.0)
	Nesterov    bool    // Enables Nesterov momentum
}

func (c SGDConfig) options() Options {
	if c.LR == 0 {
		c.LR = 0.01
	}
	return Options{
		KeyLR:          c.LR,
		KeyMomentum:    c.Momentum,
		KeyDampening:   c.Dampening,
		KeyWeightDecay: c.WeightDecay,
		KeyNesterov:    c.Nesterov,
	}
}

// NewSGD creates a new SGD optimizer operating on groups.
//
// Group options that are already set (for example lr chosen by a wrapper) take
// precedence over config.
func NewSGD(groups *GroupList, config SGDConfig) (*SGD, error) {
	s := &SGD{}
	s.init(groups, config.options())
	for i, g := range groups.All() {
		if err := validateSGD(g.Options); err != nil {
			return nil, fmt.Errorf("sgd: group %d: %w", i, err)
		}
	}
	return s, nil
}

// SGDFactory returns a Factory building SGD with config, for use with NewSAM.
func SGDFactory(config SGDConfig) Factory {
	return func(groups *GroupList) (Delegate, error) {
		return NewSGD(groups, config)
	}
}

func validateSGD(o Options) error {
	lr, momentum, dampening, wd := o.Float(KeyLR), o.Float(KeyMomentum), o.Float(KeyDampening), o.Float(KeyWeightDecay)
	switch {
	case lr < 0 || !finite(lr):
		return fmt.Errorf("%w: lr %v", ErrInvalidConfig, lr)
	case momentum < 0 || !finite(momentum):
		return fmt.Errorf("%w: momentum %v", ErrInvalidConfig, momentum)
	case wd < 0 || !finite(wd):
		return fmt.Errorf("%w: weight_decay %v", ErrInvalidConfig, wd)
	case o.Bool(KeyNesterov) && (momentum <= 0 || dampening != 0):
		return fmt.Errorf("%w: nesterov momentum requires a momentum and zero dampening", ErrInvalidConfig)
	}
	return nil
}

// Step performs a single optimization step.
//
// Parameters with no gradient are skipped.
func (s *SGD) Step() error {
	for _, g := range s.groups.All() {
		lr := float32(g.Options.Float(KeyLR))
		momentum := float32(g.Options.Float(KeyMomentum))
		dampening := float32(g.Options.Float(KeyDampening))
		wd := float32(g.Options.Float(KeyWeightDecay))
		nesterov := g.Options.Bool(KeyNesterov)

		for _, p := range g.Params {
			grad := p.Grad()
			if grad == nil {
				// Parameter didn't participate in forward pass, skip
				continue
			}
			if !grad.Shape().Equal(p.Tensor().Shape()) {
				return fmt.Errorf("sgd: parameter %q: gradient shape %v does not match %v",
					p.Name(), grad.Shape(), p.Tensor().Shape())
			}

			d := grad
			if wd != 0 {
				d = grad.Clone()
				_ = d.AddScaled(wd, p.Tensor())
			}

			if momentum != 0 {
				st := s.paramState(p)
				buf, ok := st[stateMomentumBuffer]
				if !ok {
					buf = d.Clone()
					st[stateMomentumBuffer] = buf
				} else {
					buf.Scale(momentum)
					_ = buf.AddScaled(1-dampening, d)
				}

				if nesterov {
					d = d.Clone()
					_ = d.AddScaled(momentum, buf)
				} else {
					d = buf
				}
			}

			_ = p.Tensor().AddScaled(-lr, d)
		}
	}
	return nil
}

// LoadStateDict restores group options and momentum buffers.
//
// Returns an error if a momentum buffer's shape does not match its parameter.
func (s *SGD) LoadStateDict(sd *StateDict) error {
	return s.loadStateDict(sd, stateMomentumBuffer)
}
