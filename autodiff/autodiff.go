// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff controls gradient recording.
//
// A GradientTape records whether backward passes may write gradients. SAM turns it off
// while it moves parameters and forces it on while the closure evaluates the loss at
// the perturbed point.
//
// Example:
//
//	tape := autodiff.NewGradientTape()
//	tape.EnableGrad(func() {
//	    loss, err = closure()
//	})
package autodiff

import (
	"github.com/born-ml/sam/internal/autodiff"
)

// GradientTape tracks whether gradient recording is enabled.
type GradientTape = autodiff.GradientTape

// NewGradientTape creates a tape with recording disabled.
func NewGradientTape() *GradientTape {
	return autodiff.NewGradientTape()
}
