package autodiff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTape_Recording(t *testing.T) {
	tape := NewGradientTape()
	assert.False(t, tape.IsRecording())

	tape.StartRecording()
	assert.True(t, tape.IsRecording())

	tape.StopRecording()
	assert.False(t, tape.IsRecording())
}

func TestNoGrad_RestoresRecordingState(t *testing.T) {
	tape := NewGradientTape()
	tape.StartRecording()

	var inside bool
	tape.NoGrad(func() {
		inside = tape.IsRecording()
	})

	assert.False(t, inside)
	assert.True(t, tape.IsRecording())
}

func TestEnableGrad_ForcesRecording(t *testing.T) {
	tape := NewGradientTape()

	var inside bool
	tape.NoGrad(func() {
		tape.EnableGrad(func() {
			inside = tape.IsRecording()
		})
		assert.False(t, tape.IsRecording(), "NoGrad state must be restored after EnableGrad")
	})

	assert.True(t, inside)
	assert.False(t, tape.IsRecording())
}

func TestEnableGrad_RestoresOnPanic(t *testing.T) {
	tape := NewGradientTape()

	assert.Panics(t, func() {
		tape.EnableGrad(func() { panic("closure failed") })
	})
	assert.False(t, tape.IsRecording())
}

func TestNilTape(t *testing.T) {
	var tape *GradientTape

	called := false
	tape.NoGrad(func() { called = true })
	assert.True(t, called)
	assert.True(t, tape.IsRecording())

	tape.StartRecording()
	tape.StopRecording()
}
