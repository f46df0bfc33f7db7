// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides dense float32 tensors for SAM training.
//
// Tensors are stored row-major on the host. Optimizers update them in place, so the
// package favors explicit in-place operations (AddScaled, Scale, CopyFrom) over
// allocating arithmetic.
//
// Example:
//
//	w, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2})
//	g := tensor.Zeros(tensor.Shape{2, 2})
//	_ = w.AddScaled(-0.1, g) // w -= 0.1 * g
package tensor
