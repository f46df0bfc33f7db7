// Package tokenizer turns text into token sequences for the bigram training demo.
//
// Two tokenizers are provided:
//   - TikToken: OpenAI BPE encodings (cl100k_base, p50k_base, r50k_base) via tiktoken-go
//   - Bytes: one token per byte, needs no encoding files
//
// BPE vocabularies are far larger than any demo corpus, so Vocab remaps the token ids
// that actually occur to a dense range [0, n) usable as embedding or logit indices.
//
// Example usage:
//
//	tok, err := tokenizer.New("cl100k_base")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	corpus, err := tokenizer.Build(tok, text)
//	prev, next := corpus.Pairs()
package tokenizer
