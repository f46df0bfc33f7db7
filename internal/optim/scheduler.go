package optim

import (
	"fmt"
	"math"
)

// StepLR decays the learning rate of every group by gamma every stepSize epochs.
//
//	lr_epoch = base_lr * gamma^(epoch / stepSize)
//
// It edits the group list reported by the optimizer at each call, so it keeps working
// after the optimizer reloads its state.
type StepLR struct {
	opt      GroupProvider
	stepSize int
	gamma    float64
	baseLRs  []float64
	epoch    int
}

// NewStepLR creates a step-decay schedule. The current group learning rates become the base rates.
func NewStepLR(opt GroupProvider, stepSize int, gamma float64) (*StepLR, error) {
	if stepSize <= 0 {
		return nil, fmt.Errorf("%w: step size must be positive, got %d", ErrInvalidConfig, stepSize)
	}
	if gamma <= 0 || !finite(gamma) {
		return nil, fmt.Errorf("%w: gamma must be positive, got %v", ErrInvalidConfig, gamma)
	}

	groups := opt.Groups().All()
	baseLRs := make([]float64, len(groups))
	for i, g := range groups {
		baseLRs[i] = g.Options.Float(KeyLR)
	}
	return &StepLR{opt: opt, stepSize: stepSize, gamma: gamma, baseLRs: baseLRs}, nil
}

// Step advances the schedule by one epoch and writes the new rates into the groups.
func (s *StepLR) Step() {
	s.epoch++
	factor := math.Pow(s.gamma, float64(s.epoch/s.stepSize))
	for i, g := range s.opt.Groups().All() {
		if i < len(s.baseLRs) {
			g.Options[KeyLR] = s.baseLRs[i] * factor
		}
	}
}

// Epoch returns the number of completed Step calls.
func (s *StepLR) Epoch() int {
	return s.epoch
}

// LastLR returns the current learning rate of every group.
func (s *StepLR) LastLR() []float64 {
	groups := s.opt.Groups().All()
	lrs := make([]float64, len(groups))
	for i, g := range groups {
		lrs[i] = g.Options.Float(KeyLR)
	}
	return lrs
}
