// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides trainable parameters and the small models used with SAM.
//
// A Parameter pairs a named tensor with its gradient. Models implement Module by
// listing their parameters; forward passes are plain functions and backward passes
// accumulate into Parameter gradients when the gradient tape is recording.
//
// Example:
//
//	rng := rand.New(rand.NewSource(1))
//	model := nn.NewLinear("fc", 8, 1, rng)
//	pred, _ := model.Forward(x)
//	loss, grad, _ := nn.MSE(pred, y)
//	err := model.Backward(x, grad, tape)
package nn
