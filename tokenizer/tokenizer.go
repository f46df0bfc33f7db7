// Package tokenizer turns text corpora into token sequences for the bigram demo.
//
// Supported tokenizers:
//   - TikToken: OpenAI BPE encodings such as cl100k_base
//   - Bytes: one token per byte, no vocabulary download needed
//
// Example usage:
//
//	import "github.com/born-ml/sam/tokenizer"
//
//	tok, err := tokenizer.New("cl100k_base")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	corpus, err := tokenizer.Build(tok, text)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	prev, next := corpus.Pairs()
package tokenizer

import (
	"github.com/born-ml/sam/internal/tokenizer"
)

// EncodingBytes selects the byte-level tokenizer.
const EncodingBytes = tokenizer.EncodingBytes

// ErrCorpusTooShort is returned when a corpus has fewer than two tokens.
var ErrCorpusTooShort = tokenizer.ErrCorpusTooShort

// Tokenizer converts between text and token IDs.
type Tokenizer = tokenizer.Tokenizer

// TikToken is an OpenAI BPE tokenizer.
type TikToken = tokenizer.TikToken

// Bytes tokenizes text into raw bytes.
type Bytes = tokenizer.Bytes

// Vocab maps token IDs onto dense indices.
type Vocab = tokenizer.Vocab

// Corpus is a tokenized text remapped onto a compact vocabulary.
type Corpus = tokenizer.Corpus

// New returns the tokenizer for encoding: EncodingBytes or a tiktoken encoding name.
func New(encoding string) (Tokenizer, error) {
	return tokenizer.New(encoding)
}

// NewTikToken loads the named tiktoken encoding.
func NewTikToken(encoding string) (*TikToken, error) {
	return tokenizer.NewTikToken(encoding)
}

// Build tokenizes text with tok and builds its vocabulary.
func Build(tok Tokenizer, text string) (*Corpus, error) {
	return tokenizer.Build(tok, text)
}
