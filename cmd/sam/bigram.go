package main

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/born-ml/sam/internal/train"
)

func newBigramCmd() *cobra.Command {
	var (
		flags       trainFlags
		corpus      string
		encoding    string
		sampleLen   int
		temperature float64
	)

	cmd := &cobra.Command{
		Use:   "bigram",
		Short: "Train a bigram language model on a text corpus with SAM",
		Long: `Tokenize a corpus, train a bigram model on consecutive token pairs with SAM,
then print a sample drawn from the learned next-token distribution.`,
		Example: `  sam bigram --corpus shakespeare.txt --epochs 5
  sam bigram --corpus notes.txt --encoding bytes --sample 200 --temperature 0.8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load(cmd.Flags())
			if err != nil {
				return err
			}
			cfg.Data.Kind = "bigram"
			if cmd.Flags().Changed("corpus") {
				cfg.Data.Corpus = corpus
			}
			if cmd.Flags().Changed("encoding") {
				cfg.Data.Encoding = encoding
			}
			if cfg.Data.Corpus == "" {
				return fmt.Errorf("a corpus file is required (--corpus)")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			task, err := train.NewTask(cfg.Data, cfg.Run.Seed)
			if err != nil {
				return err
			}
			res, err := runTraining(cmd.Context(), cfg, task, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), task, res)

			bigram, ok := task.(*train.Bigram)
			if !ok || sampleLen <= 0 {
				return nil
			}
			rng := rand.New(rand.NewSource(cfg.Run.Seed)) //nolint:gosec // G404: sampling needs no crypto randomness
			start := bigram.Corpus().Indices[0]
			text, err := bigram.Sample(start, sampleLen, temperature, rng)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Vocabulary: %d tokens (%s)\n", bigram.Corpus().Vocab.Size(), bigram.Corpus().Tokenizer.Name())
			fmt.Fprintf(cmd.OutOrStdout(), "Sample:\n%s\n", text)
			return nil
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&corpus, "corpus", "", "text file to train on")
	cmd.Flags().StringVar(&encoding, "encoding", "", `tokenizer encoding: a tiktoken name such as "cl100k_base", or "bytes"`)
	cmd.Flags().IntVar(&sampleLen, "sample", 100, "number of tokens to sample after training (0 disables sampling)")
	cmd.Flags().Float64Var(&temperature, "temperature", 1.0, "sampling temperature")
	return cmd
}
