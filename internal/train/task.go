package train

import (
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/born-ml/sam/internal/autodiff"
	"github.com/born-ml/sam/internal/config"
	"github.com/born-ml/sam/internal/nn"
	"github.com/born-ml/sam/internal/optim"
	"github.com/born-ml/sam/internal/tensor"
	"github.com/born-ml/sam/internal/tokenizer"
)

// Task couples a model with its data. The trainer shuffles the task once per epoch and
// asks for one closure per batch.
type Task interface {
	// Name identifies the model type in logs and checkpoints.
	Name() string

	// Module returns the model being trained.
	Module() nn.Module

	// Shuffle reorders the training examples and returns the number of batches.
	Shuffle(rng *rand.Rand) int

	// Closure returns the forward and backward pass for batch i of the current order.
	Closure(i int, tape *autodiff.GradientTape) optim.Closure

	// Evaluate returns the loss over the full data set without touching gradients.
	Evaluate() (float32, error)
}

// NewTask builds the task selected by d.Kind. Data generation and model initialization
// draw from a generator seeded with seed.
func NewTask(d config.Data, seed int64) (Task, error) {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // G404: reproducible synthetic data
	switch d.Kind {
	case "regression":
		return NewRegression(d, rng)
	case "bigram":
		if d.Corpus == "" {
			return nil, fmt.Errorf("bigram: no corpus file configured")
		}
		text, err := os.ReadFile(d.Corpus)
		if err != nil {
			return nil, fmt.Errorf("bigram: read corpus: %w", err)
		}
		tok, err := tokenizer.New(d.Encoding)
		if err != nil {
			return nil, fmt.Errorf("bigram: %w", err)
		}
		corpus, err := tokenizer.Build(tok, string(text))
		if err != nil {
			return nil, fmt.Errorf("bigram: %w", err)
		}
		return NewBigram(corpus, d.BatchSize, rng)
	default:
		return nil, fmt.Errorf("unknown task kind %q", d.Kind)
	}
}

// batchRange returns the example positions [lo, hi) of batch i.
func batchRange(i, size, n int) (int, int) {
	lo := i * size
	return lo, min(lo+size, n)
}

func numBatches(n, size int) int {
	return (n + size - 1) / size
}

// Regression fits a linear layer to noisy samples of a hidden linear map.
type Regression struct {
	model     *nn.Linear
	x, y      *tensor.Tensor
	features  int
	outputs   int
	batchSize int
	order     []int
}

// NewRegression generates a synthetic regression problem as configured by d.
func NewRegression(d config.Data, rng *rand.Rand) (*Regression, error) {
	if d.Samples <= 0 || d.Features <= 0 || d.Outputs <= 0 || d.BatchSize <= 0 {
		return nil, fmt.Errorf("regression: samples, features, outputs and batch size must be positive")
	}

	truth := nn.NewLinear("truth", d.Features, d.Outputs, rng)
	x := tensor.Zeros(tensor.Shape{d.Samples, d.Features})
	for i, xd := 0, x.Data(); i < len(xd); i++ {
		xd[i] = float32(rng.NormFloat64())
	}
	y, err := truth.Forward(x)
	if err != nil {
		return nil, err
	}
	for i, yd := 0, y.Data(); i < len(yd); i++ {
		yd[i] += float32(d.Noise * rng.NormFloat64())
	}

	order := make([]int, d.Samples)
	for i := range order {
		order[i] = i
	}
	return &Regression{
		model:     nn.NewLinear("linear", d.Features, d.Outputs, rng),
		x:         x,
		y:         y,
		features:  d.Features,
		outputs:   d.Outputs,
		batchSize: d.BatchSize,
		order:     order,
	}, nil
}

// Name returns "Linear".
func (r *Regression) Name() string { return "Linear" }

// Module returns the linear model.
func (r *Regression) Module() nn.Module { return r.model }

// Model returns the linear model.
func (r *Regression) Model() *nn.Linear { return r.model }

// Shuffle permutes the samples.
func (r *Regression) Shuffle(rng *rand.Rand) int {
	rng.Shuffle(len(r.order), func(i, j int) { r.order[i], r.order[j] = r.order[j], r.order[i] })
	return numBatches(len(r.order), r.batchSize)
}

// Closure returns the MSE closure for batch i.
func (r *Regression) Closure(i int, tape *autodiff.GradientTape) optim.Closure {
	lo, hi := batchRange(i, r.batchSize, len(r.order))
	x := tensor.Zeros(tensor.Shape{hi - lo, r.features})
	y := tensor.Zeros(tensor.Shape{hi - lo, r.outputs})
	xs, ys, xd, yd := r.x.Data(), r.y.Data(), x.Data(), y.Data()
	for n, idx := range r.order[lo:hi] {
		copy(xd[n*r.features:(n+1)*r.features], xs[idx*r.features:(idx+1)*r.features])
		copy(yd[n*r.outputs:(n+1)*r.outputs], ys[idx*r.outputs:(idx+1)*r.outputs])
	}

	return func() (float32, error) {
		pred, err := r.model.Forward(x)
		if err != nil {
			return 0, err
		}
		loss, grad, err := nn.MSE(pred, y)
		if err != nil {
			return 0, err
		}
		return loss, r.model.Backward(x, grad, tape)
	}
}

// Evaluate returns the MSE over all samples.
func (r *Regression) Evaluate() (float32, error) {
	pred, err := r.model.Forward(r.x)
	if err != nil {
		return 0, err
	}
	loss, _, err := nn.MSE(pred, r.y)
	return loss, err
}

// Bigram learns next-token statistics of a tokenized corpus.
type Bigram struct {
	model     *nn.Bigram
	corpus    *tokenizer.Corpus
	prev      []int
	next      []int
	batchSize int
	order     []int
}

// NewBigram creates a bigram task over corpus.
func NewBigram(corpus *tokenizer.Corpus, batchSize int, rng *rand.Rand) (*Bigram, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("bigram: batch size must be positive")
	}
	prev, next := corpus.Pairs()
	order := make([]int, len(prev))
	for i := range order {
		order[i] = i
	}
	return &Bigram{
		model:     nn.NewBigram(corpus.Vocab.Size(), rng),
		corpus:    corpus,
		prev:      prev,
		next:      next,
		batchSize: batchSize,
		order:     order,
	}, nil
}

// Name returns "Bigram".
func (b *Bigram) Name() string { return "Bigram" }

// Module returns the bigram model.
func (b *Bigram) Module() nn.Module { return b.model }

// Corpus returns the training corpus.
func (b *Bigram) Corpus() *tokenizer.Corpus { return b.corpus }

// Shuffle permutes the token pairs.
func (b *Bigram) Shuffle(rng *rand.Rand) int {
	rng.Shuffle(len(b.order), func(i, j int) { b.order[i], b.order[j] = b.order[j], b.order[i] })
	return numBatches(len(b.order), b.batchSize)
}

// Closure returns the cross-entropy closure for batch i.
func (b *Bigram) Closure(i int, tape *autodiff.GradientTape) optim.Closure {
	lo, hi := batchRange(i, b.batchSize, len(b.order))
	prev := make([]int, 0, hi-lo)
	next := make([]int, 0, hi-lo)
	for _, idx := range b.order[lo:hi] {
		prev = append(prev, b.prev[idx])
		next = append(next, b.next[idx])
	}

	return func() (float32, error) {
		logits, err := b.model.Forward(prev)
		if err != nil {
			return 0, err
		}
		loss, grad, err := nn.CrossEntropy(logits, next)
		if err != nil {
			return 0, err
		}
		return loss, b.model.Backward(prev, grad, tape)
	}
}

// Evaluate returns the mean cross-entropy over all token pairs.
func (b *Bigram) Evaluate() (float32, error) {
	logits, err := b.model.Forward(b.prev)
	if err != nil {
		return 0, err
	}
	loss, _, err := nn.CrossEntropy(logits, b.next)
	return loss, err
}

// Sample generates n tokens after start by sampling the learned next-token distribution
// at the given temperature, and decodes them together with start.
func (b *Bigram) Sample(start, n int, temperature float64, rng *rand.Rand) (string, error) {
	if temperature <= 0 {
		temperature = 1
	}
	vocab := b.model.VocabSize()
	table := b.model.Parameters()[0].Tensor().Data()

	out := []int{start}
	probs := make([]float64, vocab)
	tok := start
	for range n {
		row := table[tok*vocab : (tok+1)*vocab]
		maxLogit := math.Inf(-1)
		for _, v := range row {
			maxLogit = math.Max(maxLogit, float64(v))
		}
		var sum float64
		for i, v := range row {
			probs[i] = math.Exp((float64(v) - maxLogit) / temperature)
			sum += probs[i]
		}

		r := rng.Float64() * sum
		tok = vocab - 1
		for i, p := range probs {
			if r < p {
				tok = i
				break
			}
			r -= p
		}
		out = append(out, tok)
	}
	return b.corpus.Decode(out)
}
