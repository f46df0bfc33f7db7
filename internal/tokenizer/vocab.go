package tokenizer

import (
	"errors"
	"fmt"
	"slices"
)

// ErrCorpusTooShort is returned when a corpus has fewer than two tokens.
var ErrCorpusTooShort = errors.New("corpus needs at least two tokens")

// Vocab maps the token ids seen in a corpus to dense indices [0, Size()).
// Indices follow ascending token id order.
type Vocab struct {
	index  map[int32]int
	tokens []int32
}

// NewVocab builds a vocabulary from the distinct ids in tokens.
func NewVocab(tokens []int32) *Vocab {
	ids := slices.Clone(tokens)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	index := make(map[int32]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}
	return &Vocab{index: index, tokens: ids}
}

// Size returns the number of distinct tokens.
func (v *Vocab) Size() int {
	return len(v.tokens)
}

// Index returns the dense index of token id.
func (v *Vocab) Index(id int32) (int, bool) {
	i, ok := v.index[id]
	return i, ok
}

// Token returns the token id at dense index i.
func (v *Vocab) Token(i int) int32 {
	return v.tokens[i]
}

// Corpus is a tokenized text with its compact vocabulary.
type Corpus struct {
	Tokenizer Tokenizer
	Vocab     *Vocab
	Indices   []int // dense indices, one per token
}

// Build tokenizes text and remaps it onto a compact vocabulary.
func Build(tok Tokenizer, text string) (*Corpus, error) {
	ids, err := tok.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("tokenize corpus: %w", err)
	}
	if len(ids) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrCorpusTooShort, len(ids))
	}

	vocab := NewVocab(ids)
	indices := make([]int, len(ids))
	for i, id := range ids {
		indices[i], _ = vocab.Index(id)
	}
	return &Corpus{Tokenizer: tok, Vocab: vocab, Indices: indices}, nil
}

// Pairs returns the (previous, next) index pairs of consecutive tokens.
func (c *Corpus) Pairs() (prev, next []int) {
	n := len(c.Indices) - 1
	return slices.Clone(c.Indices[:n]), slices.Clone(c.Indices[1:])
}

// Decode converts dense indices back to text.
func (c *Corpus) Decode(indices []int) (string, error) {
	ids := make([]int32, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= c.Vocab.Size() {
			return "", fmt.Errorf("index %d outside vocabulary of %d", idx, c.Vocab.Size())
		}
		ids[i] = c.Vocab.Token(idx)
	}
	return c.Tokenizer.Decode(ids)
}
