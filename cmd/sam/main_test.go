package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/sam/internal/config"
	"github.com/born-ml/sam/internal/train"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "sam "+version+"\n", out)
}

func TestTrain_PrintConfig(t *testing.T) {
	out, _, err := execute(t, "train", "--print-config", "--rho", "0.2", "--adaptive", "--base", "adam")
	require.NoError(t, err)

	cfg, err := config.Parse(strings.NewReader(out))
	require.NoError(t, err)
	assert.InDelta(t, 0.2, cfg.Optimizer.Rho, 1e-12)
	assert.True(t, cfg.Optimizer.Adaptive)
	assert.Equal(t, "adam", cfg.Optimizer.Base)
}

func TestTrain_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.yaml")
	require.NoError(t, os.WriteFile(path, []byte("optimizer:\n  rho: 0.3\nrun:\n  epochs: 7\n"), 0o600))

	out, _, err := execute(t, "train", "--print-config", "--config", path, "--epochs", "9")
	require.NoError(t, err)
	cfg, err := config.Parse(strings.NewReader(out))
	require.NoError(t, err)
	assert.InDelta(t, 0.3, cfg.Optimizer.Rho, 1e-12)
	assert.Equal(t, 9, cfg.Run.Epochs, "flags win over the file")
}

func TestTrain_InvalidRho(t *testing.T) {
	_, _, err := execute(t, "train", "--rho", "-1")
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestTrain_CheckpointAndInspect(t *testing.T) {
	dir := t.TempDir()
	out, _, err := execute(t, "train",
		"--epochs", "2",
		"--checkpoint-dir", dir,
		"--log-level", "error",
		"--metrics-textfile", filepath.Join(dir, "sam.prom"),
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Model:      Linear")
	assert.Contains(t, out, "Epochs:     2")
	assert.Contains(t, out, "Final loss:")

	ckpt := filepath.Join(dir, train.CheckpointFile)
	require.FileExists(t, ckpt)
	assert.FileExists(t, filepath.Join(dir, "sam.prom"))

	out, _, err = execute(t, "inspect", ckpt)
	require.NoError(t, err)
	assert.Contains(t, out, "Kind:       checkpoint")
	assert.Contains(t, out, "Optimizer:  sam+sgd")
	assert.Contains(t, out, "Epoch:      2")
	assert.Contains(t, out, "model.linear.weight")

	out, _, err = execute(t, "inspect", "--json", ckpt)
	require.NoError(t, err)
	assert.Contains(t, out, `"kind": "checkpoint"`)

	// Resuming a finished run trains no further epochs.
	out, _, err = execute(t, "train", "--epochs", "2", "--resume", ckpt, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "Epochs:     2")
}

func TestInspect_Errors(t *testing.T) {
	_, _, err := execute(t, "inspect")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "junk.born")
	require.NoError(t, os.WriteFile(path, []byte("not a born file"), 0o600))
	_, _, err = execute(t, "inspect", path)
	assert.Error(t, err)
}

func TestBigram(t *testing.T) {
	corpus := filepath.Join(t.TempDir(), "corpus.txt")
	require.NoError(t, os.WriteFile(corpus, []byte(strings.Repeat("the cat sat on the mat. ", 20)), 0o600))

	out, _, err := execute(t, "bigram",
		"--corpus", corpus,
		"--encoding", "bytes",
		"--epochs", "3",
		"--sample", "20",
		"--log-level", "error",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Model:      Bigram")
	assert.Contains(t, out, "(bytes)")
	assert.Contains(t, out, "Sample:\nt")
}

func TestBigram_RequiresCorpus(t *testing.T) {
	_, _, err := execute(t, "bigram", "--encoding", "bytes")
	assert.Error(t, err)
}
