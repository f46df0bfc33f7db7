package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/sam/internal/nn"
	"github.com/born-ml/sam/internal/tensor"
)

const (
	stateStep     = "step"
	stateExpAvg   = "exp_avg"
	stateExpAvgSq = "exp_avg_sq"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)  // Parameter update
//
// The timestep t is tracked per parameter, so parameters that skip steps
// (no gradient) keep a correct bias correction.
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	base
}

// AdamConfig holds the default hyperparameters of Adam.
type AdamConfig struct {
	LR          float64    // Learning rate (default: 0.001)
	Betas       [2]float64 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps         float64    // Term for numerical stability (default: 1e-8)
	WeightDecay float64    // L2 penalty added to the gradient (default: 0)
}

func (c AdamConfig) options() Options {
	if c.LR == 0 {
		c.LR = 0.001
	}
	if c.Betas[0] == 0 {
		c.Betas[0] = 0.9
	}
	if c.Betas[1] == 0 {
		c.Betas[1] = 0.999
	}
	if c.Eps == 0 {
		c.Eps = 1e-8
	}
	return Options{
		KeyLR:          c.LR,
		KeyBeta1:       c.Betas[0],
		KeyBeta2:       c.Betas[1],
		KeyEps:         c.Eps,
		KeyWeightDecay: c.WeightDecay,
	}
}

// NewAdam creates a new Adam optimizer operating on groups.
//
// Group options that are already set take precedence over config.
func NewAdam(groups *GroupList, config AdamConfig) (*Adam, error) {
	a := &Adam{}
	a.init(groups, config.options())
	for i, g := range groups.All() {
		if err := validateAdam(g.Options); err != nil {
			return nil, fmt.Errorf("adam: group %d: %w", i, err)
		}
	}
	return a, nil
}

// AdamFactory returns a Factory building Adam with config, for use with NewSAM.
func AdamFactory(config AdamConfig) Factory {
	return func(groups *GroupList) (Delegate, error) {
		return NewAdam(groups, config)
	}
}

func validateAdam(o Options) error {
	lr, b1, b2, eps, wd := o.Float(KeyLR), o.Float(KeyBeta1), o.Float(KeyBeta2), o.Float(KeyEps), o.Float(KeyWeightDecay)
	switch {
	case lr < 0 || !finite(lr):
		return fmt.Errorf("%w: lr %v", ErrInvalidConfig, lr)
	case b1 < 0 || b1 >= 1:
		return fmt.Errorf("%w: beta1 %v not in [0, 1)", ErrInvalidConfig, b1)
	case b2 < 0 || b2 >= 1:
		return fmt.Errorf("%w: beta2 %v not in [0, 1)", ErrInvalidConfig, b2)
	case eps < 0 || !finite(eps):
		return fmt.Errorf("%w: eps %v", ErrInvalidConfig, eps)
	case wd < 0 || !finite(wd):
		return fmt.Errorf("%w: weight_decay %v", ErrInvalidConfig, wd)
	}
	return nil
}

// Step performs a single optimization step using Adam algorithm.
//
// Parameters with no gradient are skipped.
func (a *Adam) Step() error {
	for _, g := range a.groups.All() {
		lr := float32(g.Options.Float(KeyLR))
		beta1 := float32(g.Options.Float(KeyBeta1))
		beta2 := float32(g.Options.Float(KeyBeta2))
		eps := float32(g.Options.Float(KeyEps))
		wd := float32(g.Options.Float(KeyWeightDecay))

		for _, p := range g.Params {
			grad := p.Grad()
			if grad == nil {
				continue
			}
			if !grad.Shape().Equal(p.Tensor().Shape()) {
				return fmt.Errorf("adam: parameter %q: gradient shape %v does not match %v",
					p.Name(), grad.Shape(), p.Tensor().Shape())
			}
			a.updateParameter(p, lr, beta1, beta2, eps, wd)
		}
	}
	return nil
}

// updateParameter performs Adam update for a single parameter.
func (a *Adam) updateParameter(p *nn.Parameter, lr, beta1, beta2, eps, wd float32) {
	st := a.paramState(p)
	if st[stateStep] == nil || st[stateExpAvg] == nil || st[stateExpAvgSq] == nil {
		st[stateStep] = tensor.Scalar(0)
		st[stateExpAvg] = tensor.Zeros(p.Tensor().Shape())
		st[stateExpAvgSq] = tensor.Zeros(p.Tensor().Shape())
	}

	step := st[stateStep].Data()
	step[0]++
	t := float64(step[0])

	// bias_correction1 = 1 - beta1^t
	// bias_correction2 = 1 - beta2^t
	biasCorrection1 := float32(1.0 - math.Pow(float64(beta1), t))
	biasCorrection2 := float32(1.0 - math.Pow(float64(beta2), t))

	gradData := p.Grad().Data()
	mData := st[stateExpAvg].Data()
	vData := st[stateExpAvgSq].Data()
	paramData := p.Tensor().Data()

	for i := range paramData {
		g := gradData[i] + wd*paramData[i]

		mData[i] = beta1*mData[i] + (1.0-beta1)*g
		vData[i] = beta2*vData[i] + (1.0-beta2)*g*g

		mHat := mData[i] / biasCorrection1
		vHat := vData[i] / biasCorrection2

		paramData[i] -= lr * mHat / (float32(math.Sqrt(float64(vHat))) + eps)
	}
}

// GetTimestep returns the number of updates applied to p.
func (a *Adam) GetTimestep(p *nn.Parameter) int {
	st, ok := a.state[p]
	if !ok || st[stateStep] == nil {
		return 0
	}
	return int(st[stateStep].Item())
}

// LoadStateDict restores group options and moment estimates.
//
// Returns an error if a moment buffer's shape does not match its parameter.
func (a *Adam) LoadStateDict(sd *StateDict) error {
	return a.loadStateDict(sd, stateExpAvg, stateExpAvgSq)
}
