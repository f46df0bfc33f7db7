package optim

import (
	"fmt"

	"github.com/born-ml/sam/internal/autodiff"
	"github.com/born-ml/sam/internal/nn"
	"github.com/born-ml/sam/internal/parallel"
	"github.com/born-ml/sam/internal/tensor"
)

// gradNormEps keeps the ascent scale finite when every gradient is zero.
const gradNormEps = 1e-12

// Default SAM hyperparameters.
const (
	DefaultRho = 0.05
	DefaultLR  = 0.002
)

// SAMConfig holds the default hyperparameters of SAM.
type SAMConfig struct {
	Rho      float64 // Perturbation radius, must be > 0 (default: 0.05)
	Adaptive bool    // Scale the perturbation by |param| (ASAM)
	LR       float64 // Learning rate handed to the base optimizer (default: 0.002)

	// Tape is switched off while parameters are mutated and forced on while the
	// closure runs. Nil means gradient recording is not tracked.
	Tape *autodiff.GradientTape

	// Parallel controls the per-parameter gradient norm reduction.
	Parallel parallel.Config
}

// DefaultSAMConfig returns the default configuration with parallel norm reduction.
func DefaultSAMConfig() SAMConfig {
	return SAMConfig{
		Rho:      DefaultRho,
		LR:       DefaultLR,
		Parallel: parallel.DefaultConfig(),
	}
}

func (c SAMConfig) options() (Options, error) {
	if c.Rho == 0 {
		c.Rho = DefaultRho
	}
	if c.LR == 0 {
		c.LR = DefaultLR
	}
	if !(c.Rho > 0) || !finite(c.Rho) {
		return nil, fmt.Errorf("%w: rho must be positive, got %v", ErrInvalidConfig, c.Rho)
	}
	return Options{
		KeyRho:      c.Rho,
		KeyAdaptive: c.Adaptive,
		KeyLR:       c.LR,
	}, nil
}

// SAM implements Sharpness-Aware Minimization around a base optimizer.
//
// One SAM step evaluates the gradient twice:
//  1. FirstStep moves every parameter w to the ascent point w + e(w), where
//     e(w) = rho * g / ||g|| (or rho * w² * g / ||w ⊙ g|| when adaptive).
//  2. The closure recomputes gradients at w + e(w).
//  3. SecondStep restores w exactly and lets the base optimizer apply its update
//     using the gradients from the perturbed point.
//
// SAM and its base optimizer share one group list, so group options such as lr, rho
// and momentum live side by side and are persisted together.
//
// SAM is not safe for concurrent use; callers must serialize steps.
//
// Reference: "Sharpness-Aware Minimization for Efficiently Improving Generalization"
// (Foret et al., 2020); adaptive variant: "ASAM" (Kwon et al., 2021).
type SAM struct {
	base
	delegate  Delegate
	scratch   map[*nn.Parameter]*tensor.Tensor // pre-perturbation values
	perturbed []*nn.Parameter                  // parameters moved by the last FirstStep
	tape      *autodiff.GradientTape
	parallel  parallel.Config
}

// NewSAM creates a SAM optimizer over groups, wrapping the base optimizer built by factory.
//
// The factory receives SAM's group list, with rho, adaptive and lr already filled in.
// SAM then adopts the delegate's group list and merges the delegate defaults into its own.
//
// Returns ErrInvalidConfig if a group ends up with a non-positive rho.
func NewSAM(groups []*ParamGroup, factory Factory, config SAMConfig) (*SAM, error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: nil base optimizer factory", ErrInvalidConfig)
	}
	defaults, err := config.options()
	if err != nil {
		return nil, err
	}
	list, err := NewGroupList(groups...)
	if err != nil {
		return nil, err
	}

	s := &SAM{
		scratch:  make(map[*nn.Parameter]*tensor.Tensor),
		tape:     config.Tape,
		parallel: config.Parallel,
	}
	s.init(list, defaults)
	if err := validateRho(list); err != nil {
		return nil, err
	}

	delegate, err := factory(list)
	if err != nil {
		return nil, fmt.Errorf("sam: base optimizer: %w", err)
	}
	s.delegate = delegate
	s.groups = delegate.Groups()
	s.defaults.Update(delegate.Defaults())

	if err := validateRho(s.groups); err != nil {
		return nil, err
	}
	return s, nil
}

func validateRho(groups *GroupList) error {
	for i, g := range groups.All() {
		rho := g.Options.Float(KeyRho)
		if !(rho > 0) || !finite(rho) {
			return fmt.Errorf("%w: group %d: rho must be positive, got %v", ErrInvalidConfig, i, g.Options[KeyRho])
		}
	}
	return nil
}

// Base returns the wrapped base optimizer.
func (s *SAM) Base() Delegate {
	return s.delegate
}

// GradNorm returns the L2 norm over all parameter gradients, each scaled by |param|
// in adaptive groups. Parameters without a gradient are skipped.
//
// It is computed as the norm of per-parameter norms, which equals the norm of the
// concatenated gradients and does not depend on how parameters are grouped.
func (s *SAM) GradNorm() (float32, error) {
	type entry struct {
		param    *nn.Parameter
		adaptive bool
	}
	var entries []entry
	for _, g := range s.groups.All() {
		adaptive := g.Options.Bool(KeyAdaptive)
		for _, p := range g.Params {
			if p.Grad() != nil {
				entries = append(entries, entry{param: p, adaptive: adaptive})
			}
		}
	}

	norms := make([]float32, len(entries))
	err := parallel.ForErr(len(entries), func(i int) error {
		n, err := paramGradNorm(entries[i].param, entries[i].adaptive)
		norms[i] = n
		return err
	}, s.parallel)
	if err != nil {
		return 0, err
	}
	return tensor.NormOf(norms), nil
}

func paramGradNorm(p *nn.Parameter, adaptive bool) (float32, error) {
	grad := p.Grad()
	if !grad.Shape().Equal(p.Tensor().Shape()) {
		return 0, fmt.Errorf("sam: parameter %q: gradient shape %v does not match %v",
			p.Name(), grad.Shape(), p.Tensor().Shape())
	}
	if !adaptive {
		return grad.Norm(), nil
	}
	scaled := p.Tensor().Abs()
	if err := scaled.MulInPlace(grad); err != nil {
		return 0, err
	}
	return scaled.Norm(), nil
}

// ascentDelta returns e = (adaptive ? param² : 1) ⊙ grad * scale.
func ascentDelta(param, grad *tensor.Tensor, scale float32, adaptive bool) (*tensor.Tensor, error) {
	e := grad.Clone()
	if adaptive {
		if err := e.MulInPlace(param.Square()); err != nil {
			return nil, err
		}
	}
	e.Scale(scale)
	return e, nil
}

// FirstStep moves every parameter that has a gradient to its ascent point and
// remembers its current value. Parameters without a gradient are left untouched.
//
// If zeroGrad is set, all gradients are cleared afterwards so the closure can
// compute fresh ones at the perturbed point.
func (s *SAM) FirstStep(zeroGrad bool) error {
	var err error
	s.tape.NoGrad(func() {
		err = s.perturb()
	})
	if err != nil {
		return err
	}
	if zeroGrad {
		s.ZeroGrad()
	}
	return nil
}

func (s *SAM) perturb() error {
	norm, err := s.GradNorm()
	if err != nil {
		return err
	}

	s.perturbed = s.perturbed[:0]
	for _, g := range s.groups.All() {
		scale := float32(g.Options.Float(KeyRho) / (float64(norm) + gradNormEps))
		adaptive := g.Options.Bool(KeyAdaptive)

		for _, p := range g.Params {
			grad := p.Grad()
			if grad == nil {
				continue
			}

			old, ok := s.scratch[p]
			if ok && old.Shape().Equal(p.Tensor().Shape()) {
				_ = old.CopyFrom(p.Tensor())
			} else {
				s.scratch[p] = p.Tensor().Clone()
			}

			e, err := ascentDelta(p.Tensor(), grad, scale, adaptive)
			if err != nil {
				return err
			}
			// w + e(w)
			_ = p.Tensor().AddScaled(1, e)
			s.perturbed = append(s.perturbed, p)
		}
	}
	return nil
}

// restore copies the saved values back into the parameters moved by the last FirstStep.
func (s *SAM) restore() {
	for _, p := range s.perturbed {
		_ = p.Tensor().CopyFrom(s.scratch[p])
	}
	s.perturbed = s.perturbed[:0]
}

// SecondStep restores the parameters perturbed by FirstStep to their exact previous
// values, then runs the base optimizer with the gradients currently attached, which
// are the gradients evaluated at the perturbed point.
//
// If zeroGrad is set, all gradients are cleared afterwards.
func (s *SAM) SecondStep(zeroGrad bool) error {
	var err error
	s.tape.NoGrad(func() {
		s.restore()
		err = s.delegate.Step()
	})
	if err != nil {
		return fmt.Errorf("sam: base optimizer step: %w", err)
	}
	if zeroGrad {
		s.ZeroGrad()
	}
	return nil
}

// Step performs one full SAM update.
//
// Gradients at the current parameters must already be attached: the caller evaluates
// the closure once before Step, and Step invokes it exactly once more at the perturbed
// point, with gradient recording forced on. Returns ErrNoGradients if no parameter has
// a gradient on entry.
//
// If the closure fails, the parameters are restored, the base optimizer is not run and
// the closure error is returned wrapped.
func (s *SAM) Step(closure Closure) error {
	if closure == nil {
		return ErrNilClosure
	}
	if !hasGrad(s.groups) {
		return ErrNoGradients
	}

	if err := s.FirstStep(true); err != nil {
		return err
	}

	var err error
	s.tape.EnableGrad(func() {
		_, err = closure()
	})
	if err != nil {
		s.tape.NoGrad(s.restore)
		return fmt.Errorf("sam: closure at perturbed point: %w", err)
	}

	return s.SecondStep(false)
}

// EvalStep clears gradients, evaluates the closure at the current parameters and then
// performs Step, so both evaluations are driven by the optimizer. Gradients are cleared
// again after the update.
//
// Returns the loss of the first, unperturbed evaluation.
func (s *SAM) EvalStep(closure Closure) (float32, error) {
	if closure == nil {
		return 0, ErrNilClosure
	}
	s.ZeroGrad()

	var (
		loss float32
		err  error
	)
	s.tape.EnableGrad(func() {
		loss, err = closure()
	})
	if err != nil {
		return 0, fmt.Errorf("sam: closure: %w", err)
	}

	if err := s.Step(closure); err != nil {
		return loss, err
	}
	s.ZeroGrad()
	return loss, nil
}

// StateDict returns the group options (including rho and adaptive) together with the
// base optimizer state. Pre-perturbation values are step-scoped and never included.
func (s *SAM) StateDict() *StateDict {
	return s.delegate.StateDict()
}

// LoadStateDict restores group options and base optimizer state.
//
// The group structure of sd must match the optimizer's; mismatches return ErrStateMismatch.
// Afterwards SAM and its base optimizer reference the same freshly loaded group list.
func (s *SAM) LoadStateDict(sd *StateDict) error {
	groups, _, err := s.loadGroups(sd)
	if err != nil {
		return err
	}
	if err := validateRho(groups); err != nil {
		return err
	}
	if err := s.delegate.LoadStateDict(sd); err != nil {
		return fmt.Errorf("sam: base optimizer: %w", err)
	}

	s.groups = groups
	s.delegate.AdoptGroups(groups)
	s.scratch = make(map[*nn.Parameter]*tensor.Tensor)
	s.perturbed = nil
	return nil
}
