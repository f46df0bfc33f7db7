package serialization_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/sam/internal/serialization"
	"github.com/born-ml/sam/internal/tensor"
)

func sampleTensors(t *testing.T) map[string]*tensor.Tensor {
	t.Helper()
	w, err := tensor.FromSlice([]float32{1, -2, 3.5, 4, 0, -0.25}, tensor.Shape{2, 3})
	require.NoError(t, err)
	return map[string]*tensor.Tensor{
		"model.linear.weight": w,
		"model.linear.bias":   tensor.Zeros(tensor.Shape{3}),
		"state.0.step":        tensor.Scalar(7),
	}
}

func encode(t *testing.T, tensors map[string]*tensor.Tensor, header serialization.Header) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, serialization.Write(&buf, tensors, header))
	return buf.Bytes()
}

func TestWriteRead_RoundTrip(t *testing.T) {
	tensors := sampleTensors(t)
	header := serialization.Header{
		Kind:      serialization.KindCheckpoint,
		ModelType: "Linear",
		Metadata:  map[string]string{"optimizer": "sam"},
		CheckpointMeta: &serialization.CheckpointMeta{
			RunID:           "run-1",
			Epoch:           3,
			Step:            120,
			Loss:            0.125,
			OptimizerType:   "sam+sgd",
			OptimizerGroups: []byte(`[{"options":{"lr":0.1,"rho":0.05},"params":[0,1]}]`),
		},
	}

	raw := encode(t, tensors, header)
	assert.Equal(t, "BORN", string(raw[:4]))
	assert.Equal(t, uint32(serialization.FormatVersion), binary.LittleEndian.Uint32(raw[4:8]))

	f, err := serialization.Read(bytes.NewReader(raw), serialization.ReaderOptions{})
	require.NoError(t, err)

	assert.Equal(t, serialization.DefaultProducer, f.Header.Producer)
	assert.Equal(t, serialization.KindCheckpoint, f.Header.Kind)
	assert.Equal(t, "sam", f.Header.Metadata["optimizer"])
	assert.NotZero(t, f.Flags&serialization.FlagHasOptimizer)
	assert.NotZero(t, f.Flags&serialization.FlagHasMetadata)
	require.NotNil(t, f.Header.CheckpointMeta)
	assert.Equal(t, int64(120), f.Header.CheckpointMeta.Step)
	assert.JSONEq(t, string(header.CheckpointMeta.OptimizerGroups), string(f.Header.CheckpointMeta.OptimizerGroups))

	assert.Equal(t, []string{"model.linear.bias", "model.linear.weight", "state.0.step"}, f.TensorNames())
	require.Len(t, f.Tensors, len(tensors))
	for name, want := range tensors {
		assert.True(t, want.Equal(f.Tensors[name]), name)
	}
}

func TestWrite_Deterministic(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	header := serialization.Header{Kind: serialization.KindModel, CreatedAt: created}
	a := encode(t, sampleTensors(t), header)
	b := encode(t, sampleTensors(t), header)
	assert.Equal(t, a, b)
}

func TestWrite_DataIsAligned(t *testing.T) {
	raw := encode(t, sampleTensors(t), serialization.Header{})
	headerSize := binary.LittleEndian.Uint64(raw[16:24])
	dataSize := binary.LittleEndian.Uint64(raw[24:32])

	// Total = aligned start of data + data.
	start := uint64(len(raw)) - dataSize
	assert.Zero(t, start%serialization.HeaderAlignment)
	assert.GreaterOrEqual(t, start, uint64(serialization.FixedHeaderSize)+headerSize)
}

func TestWrite_RejectsInvalidNames(t *testing.T) {
	var buf bytes.Buffer
	err := serialization.Write(&buf, map[string]*tensor.Tensor{"../x": tensor.Scalar(1)}, serialization.Header{})
	assert.ErrorIs(t, err, serialization.ErrInvalidTensorName)
}

func TestRead_Corruption(t *testing.T) {
	raw := encode(t, sampleTensors(t), serialization.Header{})

	t.Run("checksum", func(t *testing.T) {
		corrupt := bytes.Clone(raw)
		corrupt[len(corrupt)-1] ^= 0xFF
		_, err := serialization.Read(bytes.NewReader(corrupt), serialization.ReaderOptions{})
		assert.ErrorIs(t, err, serialization.ErrChecksumMismatch)

		_, err = serialization.Read(bytes.NewReader(corrupt), serialization.ReaderOptions{SkipChecksumValidation: true})
		assert.NoError(t, err)
	})

	t.Run("magic", func(t *testing.T) {
		corrupt := bytes.Clone(raw)
		copy(corrupt, "NOPE")
		_, err := serialization.Read(bytes.NewReader(corrupt), serialization.ReaderOptions{})
		assert.ErrorIs(t, err, serialization.ErrInvalidMagic)
	})

	t.Run("version", func(t *testing.T) {
		corrupt := bytes.Clone(raw)
		binary.LittleEndian.PutUint32(corrupt[4:8], 1)
		_, err := serialization.Read(bytes.NewReader(corrupt), serialization.ReaderOptions{})
		assert.ErrorIs(t, err, serialization.ErrUnsupportedVersion)
	})

	t.Run("header size", func(t *testing.T) {
		corrupt := bytes.Clone(raw)
		binary.LittleEndian.PutUint64(corrupt[16:24], serialization.MaxHeaderSize+1)
		_, err := serialization.Read(bytes.NewReader(corrupt), serialization.ReaderOptions{})
		assert.ErrorIs(t, err, serialization.ErrHeaderTooLarge)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := serialization.Read(bytes.NewReader(raw[:len(raw)-3]), serialization.ReaderOptions{})
		assert.Error(t, err)
	})
}

func TestWriteFile_ReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.born")
	tensors := sampleTensors(t)

	require.NoError(t, serialization.WriteFile(path, tensors, serialization.Header{Kind: serialization.KindModel}))
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	f, err := serialization.ReadFile(path, serialization.ReaderOptions{})
	require.NoError(t, err)
	assert.Equal(t, serialization.KindModel, f.Header.Kind)
	assert.True(t, tensors["model.linear.weight"].Equal(f.Tensors["model.linear.weight"]))

	_, err = serialization.ReadFile(filepath.Join(t.TempDir(), "missing.born"), serialization.ReaderOptions{})
	assert.Error(t, err)
}
