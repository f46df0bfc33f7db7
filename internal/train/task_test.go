package train

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/sam/internal/autodiff"
	"github.com/born-ml/sam/internal/config"
	"github.com/born-ml/sam/internal/nn"
)

func TestBatchRange(t *testing.T) {
	assert.Equal(t, 3, numBatches(10, 4))
	lo, hi := batchRange(2, 4, 10)
	assert.Equal(t, 8, lo)
	assert.Equal(t, 10, hi)
}

func TestRegression_Closure(t *testing.T) {
	d := config.Default().Data
	d.Samples, d.BatchSize = 10, 4
	task, err := NewRegression(d, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, 3, task.Shuffle(rand.New(rand.NewSource(2))))

	tape := autodiff.NewGradientTape()
	closure := task.Closure(2, tape)

	// Recording is off by default.
	_, err = closure()
	assert.ErrorIs(t, err, nn.ErrNotRecording)

	var loss float32
	tape.EnableGrad(func() { loss, err = closure() })
	require.NoError(t, err)
	assert.Greater(t, loss, float32(0))
	require.NotNil(t, task.Model().Weight().Grad())
	require.NotNil(t, task.Model().Bias().Grad())
}

func TestNewRegression_Invalid(t *testing.T) {
	d := config.Default().Data
	d.BatchSize = 0
	_, err := NewRegression(d, rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}
