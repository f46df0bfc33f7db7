package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/sam/internal/tensor"
)

// MSE computes the mean squared error between pred and target and its gradient w.r.t. pred.
//
//	loss = mean((pred - target)²)
//	grad = 2 * (pred - target) / N
func MSE(pred, target *tensor.Tensor) (float32, *tensor.Tensor, error) {
	if !pred.Shape().Equal(target.Shape()) {
		return 0, nil, fmt.Errorf("mse: shape mismatch %v vs %v", pred.Shape(), target.Shape())
	}

	n := float32(pred.NumElements())
	grad := tensor.Zeros(pred.Shape())
	var sum float64
	pd, td, gd := pred.Data(), target.Data(), grad.Data()
	for i := range pd {
		diff := pd[i] - td[i]
		sum += float64(diff * diff)
		gd[i] = 2 * diff / n
	}
	return float32(sum / float64(n)), grad, nil
}

// CrossEntropy computes the mean softmax cross-entropy of logits [batch, classes] against
// integer targets, and its gradient w.r.t. logits.
//
// Uses the log-sum-exp trick for numerical stability:
//
//	loss = mean(logsumexp(z) - z[target])
//	grad = (softmax(z) - onehot(target)) / batch
func CrossEntropy(logits *tensor.Tensor, targets []int) (float32, *tensor.Tensor, error) {
	shape := logits.Shape()
	if len(shape) != 2 || shape[0] != len(targets) {
		return 0, nil, fmt.Errorf("cross entropy: logits shape %v does not match %d targets", shape, len(targets))
	}
	batch, classes := shape[0], shape[1]

	grad := tensor.Zeros(shape)
	ld, gd := logits.Data(), grad.Data()
	var total float64
	for n := 0; n < batch; n++ {
		target := targets[n]
		if target < 0 || target >= classes {
			return 0, nil, fmt.Errorf("cross entropy: target %d out of range [0, %d)", target, classes)
		}
		row := ld[n*classes : (n+1)*classes]
		g := gd[n*classes : (n+1)*classes]

		maxLogit := row[0]
		for _, v := range row[1:] {
			maxLogit = max(maxLogit, v)
		}
		var sumExp float64
		for i, v := range row {
			e := math.Exp(float64(v - maxLogit))
			g[i] = float32(e)
			sumExp += e
		}
		total += math.Log(sumExp) + float64(maxLogit) - float64(row[target])

		for i := range g {
			g[i] = float32(float64(g[i])/sumExp) / float32(batch)
		}
		g[target] -= 1 / float32(batch)
	}
	return float32(total / float64(batch)), grad, nil
}
