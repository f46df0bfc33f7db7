package optim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/sam/internal/optim"
)

func TestStepLR(t *testing.T) {
	a := newParam(t, "a", 1)
	b := newParam(t, "b", 1)
	opt, err := optim.NewSGD(groupList(t,
		optim.Group(nil, a),
		optim.Group(optim.Options{optim.KeyLR: 1.0}, b),
	), optim.SGDConfig{LR: 0.1})
	require.NoError(t, err)

	sched, err := optim.NewStepLR(opt, 2, 0.1)
	require.NoError(t, err)

	sched.Step()
	assert.Equal(t, 1, sched.Epoch())
	assert.InDeltaSlice(t, []float64{0.1, 1.0}, sched.LastLR(), 1e-12)

	sched.Step()
	assert.InDeltaSlice(t, []float64{0.01, 0.1}, sched.LastLR(), 1e-12)

	sched.Step()
	sched.Step()
	assert.InDeltaSlice(t, []float64{0.001, 0.01}, sched.LastLR(), 1e-12)
	assert.InDelta(t, 0.001, opt.GetLR(), 1e-9)
}

func TestStepLR_InvalidConfig(t *testing.T) {
	opt, err := optim.NewSGD(groupList(t, optim.Params(newParam(t, "x", 1))...), optim.SGDConfig{})
	require.NoError(t, err)

	_, err = optim.NewStepLR(opt, 0, 0.5)
	assert.ErrorIs(t, err, optim.ErrInvalidConfig)
	_, err = optim.NewStepLR(opt, 1, 0)
	assert.ErrorIs(t, err, optim.ErrInvalidConfig)
}
