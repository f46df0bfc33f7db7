package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/blas/blas32"
)

// vec views the tensor as a unit-stride BLAS vector.
func vec(t *Tensor) blas32.Vector {
	return blas32.Vector{N: len(t.data), Data: t.data, Inc: 1}
}

func copyVec(src, dst *Tensor) {
	blas32.Copy(vec(src), vec(dst))
}

// Norm returns the L2 norm of all elements.
func (t *Tensor) Norm() float32 {
	return blas32.Nrm2(vec(t))
}

// NormOf returns the L2 norm of a plain slice, e.g. a list of per-tensor norms.
func NormOf(values []float32) float32 {
	if len(values) == 0 {
		return 0
	}
	return blas32.Nrm2(blas32.Vector{N: len(values), Data: values, Inc: 1})
}

// AddScaled performs t += alpha * x in place.
func (t *Tensor) AddScaled(alpha float32, x *Tensor) error {
	if !t.shape.Equal(x.shape) {
		return fmt.Errorf("add: shape mismatch %v vs %v", t.shape, x.shape)
	}
	blas32.Axpy(alpha, vec(x), vec(t))
	return nil
}

// Scale multiplies every element by alpha in place.
func (t *Tensor) Scale(alpha float32) {
	blas32.Scal(alpha, vec(t))
}

// Fill sets every element to value.
func (t *Tensor) Fill(value float32) {
	for i := range t.data {
		t.data[i] = value
	}
}

// MulInPlace performs elementwise t *= x.
func (t *Tensor) MulInPlace(x *Tensor) error {
	if !t.shape.Equal(x.shape) {
		return fmt.Errorf("mul: shape mismatch %v vs %v", t.shape, x.shape)
	}
	for i, v := range x.data {
		t.data[i] *= v
	}
	return nil
}

// Abs returns a new tensor holding |t|.
func (t *Tensor) Abs() *Tensor {
	out := t.Clone()
	for i, v := range out.data {
		if v < 0 {
			out.data[i] = -v
		}
	}
	return out
}

// Square returns a new tensor holding t².
func (t *Tensor) Square() *Tensor {
	out := t.Clone()
	for i, v := range out.data {
		out.data[i] = v * v
	}
	return out
}
