package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/sam/internal/autodiff"
	"github.com/born-ml/sam/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output tensor with shape [batch_size, out_features]
//
// Weights are initialized using Xavier/Glorot initialization.
// Biases are initialized to zeros.
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter // [out_features, in_features]
	bias        *Parameter // [out_features]
}

// NewLinear creates a new Linear layer. Parameter names are prefixed with name.
func NewLinear(name string, inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	weight := Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, rng)
	bias := tensor.Zeros(tensor.Shape{outFeatures})

	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter(name+".weight", weight),
		bias:        NewParameter(name+".bias", bias),
	}
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear) Bias() *Parameter {
	return l.bias
}

// Parameters returns [weight, bias].
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// Forward computes x @ W.T + b for x of shape [batch, in_features].
func (l *Linear) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	batch, err := l.checkInput(x)
	if err != nil {
		return nil, err
	}

	out := tensor.Zeros(tensor.Shape{batch, l.outFeatures})
	xd, wd, bd, od := x.Data(), l.weight.Tensor().Data(), l.bias.Tensor().Data(), out.Data()
	for n := 0; n < batch; n++ {
		row := xd[n*l.inFeatures : (n+1)*l.inFeatures]
		for o := 0; o < l.outFeatures; o++ {
			w := wd[o*l.inFeatures : (o+1)*l.inFeatures]
			sum := bd[o]
			for i, v := range row {
				sum += v * w[i]
			}
			od[n*l.outFeatures+o] = sum
		}
	}
	return out, nil
}

// Backward accumulates dL/dW and dL/db given the forward input x and dL/dy.
//
// Returns ErrNotRecording if tape is not recording.
func (l *Linear) Backward(x, gradOut *tensor.Tensor, tape *autodiff.GradientTape) error {
	if !tape.IsRecording() {
		return ErrNotRecording
	}
	batch, err := l.checkInput(x)
	if err != nil {
		return err
	}
	if !gradOut.Shape().Equal(tensor.Shape{batch, l.outFeatures}) {
		return fmt.Errorf("linear backward: grad shape %v, want [%d %d]", gradOut.Shape(), batch, l.outFeatures)
	}

	gw := tensor.Zeros(l.weight.Tensor().Shape())
	gb := tensor.Zeros(l.bias.Tensor().Shape())
	xd, gd, gwd, gbd := x.Data(), gradOut.Data(), gw.Data(), gb.Data()
	for n := 0; n < batch; n++ {
		row := xd[n*l.inFeatures : (n+1)*l.inFeatures]
		for o := 0; o < l.outFeatures; o++ {
			g := gd[n*l.outFeatures+o]
			gbd[o] += g
			w := gwd[o*l.inFeatures : (o+1)*l.inFeatures]
			for i, v := range row {
				w[i] += g * v
			}
		}
	}

	if err := l.weight.AccumulateGrad(gw); err != nil {
		return err
	}
	return l.bias.AccumulateGrad(gb)
}

func (l *Linear) checkInput(x *tensor.Tensor) (int, error) {
	shape := x.Shape()
	if len(shape) != 2 || shape[1] != l.inFeatures {
		return 0, fmt.Errorf("linear: input shape %v, want [batch %d]", shape, l.inFeatures)
	}
	return shape[0], nil
}
