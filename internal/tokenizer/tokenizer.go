package tokenizer

import "fmt"

// EncodingBytes selects the byte-level tokenizer.
const EncodingBytes = "bytes"

// Tokenizer is the interface for text tokenization.
type Tokenizer interface {
	// Encode converts text to token IDs.
	Encode(text string) ([]int32, error)

	// Decode converts token IDs back to text.
	Decode(tokens []int32) (string, error)

	// VocabSize returns the total vocabulary size.
	VocabSize() int

	// Name returns the tokenizer name.
	Name() string
}

// New returns the tokenizer for encoding: EncodingBytes or a tiktoken encoding name.
func New(encoding string) (Tokenizer, error) {
	if encoding == EncodingBytes {
		return Bytes{}, nil
	}
	return NewTikToken(encoding)
}

// Bytes tokenizes text into its raw bytes.
type Bytes struct{}

// Encode returns one token per byte of text.
func (Bytes) Encode(text string) ([]int32, error) {
	out := make([]int32, len(text))
	for i := 0; i < len(text); i++ {
		out[i] = int32(text[i])
	}
	return out, nil
}

// Decode converts byte tokens back to text.
func (Bytes) Decode(tokens []int32) (string, error) {
	buf := make([]byte, len(tokens))
	for i, tok := range tokens {
		if tok < 0 || tok > 255 {
			return "", fmt.Errorf("byte token %d out of range", tok)
		}
		buf[i] = byte(tok)
	}
	return string(buf), nil
}

// VocabSize returns 256.
func (Bytes) VocabSize() int { return 256 }

// Name returns EncodingBytes.
func (Bytes) Name() string { return EncodingBytes }
