package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/sam/internal/autodiff"
	"github.com/born-ml/sam/internal/tensor"
)

// Bigram is a next-token model whose logits for token t are row t of a [vocab, vocab] table.
type Bigram struct {
	vocab int
	table *Parameter
}

// NewBigram creates a bigram model with small random logits.
func NewBigram(vocab int, rng *rand.Rand) *Bigram {
	table := tensor.Zeros(tensor.Shape{vocab, vocab})
	data := table.Data()
	for i := range data {
		data[i] = float32(rng.NormFloat64() * 0.01)
	}
	return &Bigram{vocab: vocab, table: NewParameter("bigram.logits", table)}
}

// VocabSize returns the vocabulary size.
func (b *Bigram) VocabSize() int {
	return b.vocab
}

// Parameters returns the logit table.
func (b *Bigram) Parameters() []*Parameter {
	return []*Parameter{b.table}
}

// Forward gathers the logit rows for prev, returning [len(prev), vocab].
func (b *Bigram) Forward(prev []int) (*tensor.Tensor, error) {
	if len(prev) == 0 {
		return nil, fmt.Errorf("bigram: empty batch")
	}
	out := tensor.Zeros(tensor.Shape{len(prev), b.vocab})
	td, od := b.table.Tensor().Data(), out.Data()
	for n, tok := range prev {
		if tok < 0 || tok >= b.vocab {
			return nil, fmt.Errorf("bigram: token %d out of range [0, %d)", tok, b.vocab)
		}
		copy(od[n*b.vocab:(n+1)*b.vocab], td[tok*b.vocab:(tok+1)*b.vocab])
	}
	return out, nil
}

// Backward scatters dL/dlogits back into the rows of the table gradient.
//
// Returns ErrNotRecording if tape is not recording.
func (b *Bigram) Backward(prev []int, gradLogits *tensor.Tensor, tape *autodiff.GradientTape) error {
	if !tape.IsRecording() {
		return ErrNotRecording
	}
	if !gradLogits.Shape().Equal(tensor.Shape{len(prev), b.vocab}) {
		return fmt.Errorf("bigram backward: grad shape %v, want [%d %d]", gradLogits.Shape(), len(prev), b.vocab)
	}

	g := tensor.Zeros(b.table.Tensor().Shape())
	gd, src := g.Data(), gradLogits.Data()
	for n, tok := range prev {
		row := gd[tok*b.vocab : (tok+1)*b.vocab]
		for i, v := range src[n*b.vocab : (n+1)*b.vocab] {
			row[i] += v
		}
	}
	return b.table.AccumulateGrad(g)
}
