// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides Sharpness-Aware Minimization (SAM) and the base optimizers it wraps.
//
// # Overview
//
// This package contains:
//   - SAM: two-pass wrapper that minimizes the loss at the worst point in a rho-ball
//   - SGD: Stochastic Gradient Descent with momentum, dampening, weight decay and Nesterov
//   - Adam: Adaptive Moment Estimation with bias correction
//   - StepLR: step-decay learning rate schedule
//
// SAM and its base optimizer share one parameter group list. Options set on a group
// (lr, rho, adaptive, momentum, ...) are seen by both, and a schedule that edits the
// list reaches the base optimizer directly.
//
// # Basic Usage
//
//	tape := autodiff.NewGradientTape()
//	model := nn.NewLinear("fc", 8, 1, rng)
//
//	opt, err := optim.NewSAM(
//	    optim.Params(model.Parameters()...),
//	    optim.SGDFactory(optim.SGDConfig{Momentum: 0.9}),
//	    optim.SAMConfig{Rho: 0.05, LR: 0.1, Tape: tape},
//	)
//
//	closure := func() (float32, error) {
//	    pred, err := model.Forward(x)
//	    if err != nil {
//	        return 0, err
//	    }
//	    loss, grad, err := nn.MSE(pred, y)
//	    if err != nil {
//	        return 0, err
//	    }
//	    return loss, model.Backward(x, grad, tape)
//	}
//
//	for range epochs {
//	    loss, err := opt.EvalStep(closure)
//	}
//
// # Manual Two-Pass Steps
//
// Callers that compute gradients themselves use FirstStep and SecondStep:
//
//	tape.EnableGrad(func() { _, err = closure() })
//	err = opt.FirstStep(true)  // move to w + e(w), clear gradients
//	tape.EnableGrad(func() { _, err = closure() })
//	err = opt.SecondStep(true) // restore w, base optimizer update
//
// # Adaptive SAM
//
// With Adaptive set, the perturbation of every parameter is scaled element-wise by
// its magnitude, which makes the sharpness measure invariant to parameter rescaling.
// Adaptive usually needs a larger rho (for example 2.0).
package optim
