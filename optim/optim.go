// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/sam/internal/optim"
	"github.com/born-ml/sam/nn"
)

// Errors returned by the optimizers.
var (
	ErrInvalidConfig  = optim.ErrInvalidConfig
	ErrEmptyParams    = optim.ErrEmptyParams
	ErrDuplicateParam = optim.ErrDuplicateParam
	ErrStateMismatch  = optim.ErrStateMismatch
	ErrNilClosure     = optim.ErrNilClosure
	ErrNoGradients    = optim.ErrNoGradients
)

// Option keys shared by SAM and the base optimizers.
const (
	KeyLR          = optim.KeyLR
	KeyRho         = optim.KeyRho
	KeyAdaptive    = optim.KeyAdaptive
	KeyMomentum    = optim.KeyMomentum
	KeyDampening   = optim.KeyDampening
	KeyWeightDecay = optim.KeyWeightDecay
	KeyNesterov    = optim.KeyNesterov
	KeyBeta1       = optim.KeyBeta1
	KeyBeta2       = optim.KeyBeta2
	KeyEps         = optim.KeyEps
)

// Optimizer is the common interface of all update rules.
type Optimizer = optim.Optimizer

// GroupProvider is implemented by SAM and every base optimizer.
type GroupProvider = optim.GroupProvider

// Stateful is implemented by every optimizer whose state can be saved.
type Stateful = optim.Stateful

// Delegate is an optimizer SAM can wrap.
type Delegate = optim.Delegate

// Factory builds a Delegate over a shared group list.
type Factory = optim.Factory

// Closure performs a forward and backward pass and returns the loss.
type Closure = optim.Closure

// Options holds per-group hyperparameters.
type Options = optim.Options

// ParamGroup is a set of parameters sharing options.
type ParamGroup = optim.ParamGroup

// GroupList is the ordered list of parameter groups an optimizer reads.
type GroupList = optim.GroupList

// StateDict holds optimizer groups and per-parameter state.
type StateDict = optim.StateDict

// Params puts all params in a single group with default options.
func Params(params ...*nn.Parameter) []*ParamGroup {
	return optim.Params(params...)
}

// Group creates a parameter group whose options override the optimizer defaults.
//
// Example:
//
//	groups := []*optim.ParamGroup{
//	    optim.Group(nil, model.Weight()),
//	    optim.Group(optim.Options{optim.KeyRho: 0.1, optim.KeyAdaptive: true}, model.Bias()),
//	}
func Group(opts Options, params ...*nn.Parameter) *ParamGroup {
	return optim.Group(opts, params...)
}

// SAM (Sharpness-Aware Minimization)

// SAM wraps a base optimizer with the two-pass sharpness-aware update.
type SAM = optim.SAM

// SAMConfig holds the SAM defaults.
type SAMConfig = optim.SAMConfig

// DefaultSAMConfig returns rho 0.05 and lr 0.002 with parallel norm reduction.
func DefaultSAMConfig() SAMConfig {
	return optim.DefaultSAMConfig()
}

// NewSAM creates a SAM optimizer over groups around the base optimizer built by factory.
func NewSAM(groups []*ParamGroup, factory Factory, config SAMConfig) (*SAM, error) {
	return optim.NewSAM(groups, factory, config)
}

// SGD (Stochastic Gradient Descent)

// SGD is stochastic gradient descent with optional momentum.
type SGD = optim.SGD

// SGDConfig contains the SGD defaults.
type SGDConfig = optim.SGDConfig

// NewSGD creates an SGD optimizer over groups.
func NewSGD(groups *GroupList, config SGDConfig) (*SGD, error) {
	return optim.NewSGD(groups, config)
}

// SGDFactory returns a Factory building SGD with config as defaults.
func SGDFactory(config SGDConfig) Factory {
	return optim.SGDFactory(config)
}

// Adam (Adaptive Moment Estimation)

// Adam is the Adam optimizer with bias correction.
type Adam = optim.Adam

// AdamConfig contains the Adam defaults.
type AdamConfig = optim.AdamConfig

// NewAdam creates an Adam optimizer over groups.
func NewAdam(groups *GroupList, config AdamConfig) (*Adam, error) {
	return optim.NewAdam(groups, config)
}

// AdamFactory returns a Factory building Adam with config as defaults.
func AdamFactory(config AdamConfig) Factory {
	return optim.AdamFactory(config)
}

// NewGroupList validates groups and builds a list for direct use with NewSGD or NewAdam.
func NewGroupList(groups ...*ParamGroup) (*GroupList, error) {
	return optim.NewGroupList(groups...)
}

// Schedules

// StepLR decays every group's learning rate by gamma every stepSize epochs.
type StepLR = optim.StepLR

// NewStepLR creates a step-decay schedule over the groups of opt.
func NewStepLR(opt GroupProvider, stepSize int, gamma float64) (*StepLR, error) {
	return optim.NewStepLR(opt, stepSize, gamma)
}
