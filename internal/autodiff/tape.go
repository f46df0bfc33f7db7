// Package autodiff holds the gradient tape switch that decides whether backward passes
// are allowed to populate parameter gradients.
//
// Models in this module compute their gradients analytically, so the tape does not record
// individual operations; it only tracks whether recording is on. Optimizer code mutates
// parameters inside NoGrad, while evaluation closures run inside EnableGrad.
package autodiff

import "sync/atomic"

// GradientTape tracks whether gradient computation is enabled.
//
// A nil *GradientTape is valid and behaves as a tape that is always recording,
// with NoGrad and EnableGrad simply invoking their function.
//
// Usage:
//
//	tape := autodiff.NewGradientTape()
//	tape.StartRecording()
//	tape.NoGrad(func() {
//	    // parameter mutation that must not be differentiated
//	})
type GradientTape struct {
	recording atomic.Bool
}

// NewGradientTape creates a new gradient tape. Recording starts disabled.
func NewGradientTape() *GradientTape {
	return &GradientTape{}
}

// StartRecording enables gradient recording.
func (t *GradientTape) StartRecording() {
	if t != nil {
		t.recording.Store(true)
	}
}

// StopRecording disables gradient recording.
func (t *GradientTape) StopRecording() {
	if t != nil {
		t.recording.Store(false)
	}
}

// IsRecording returns true if the tape is currently recording.
func (t *GradientTape) IsRecording() bool {
	if t == nil {
		return true
	}
	return t.recording.Load()
}

// NoGrad runs fn with recording disabled and restores the previous state afterwards,
// even if fn panics.
func (t *GradientTape) NoGrad(fn func()) {
	t.scoped(false, fn)
}

// EnableGrad runs fn with recording enabled regardless of the ambient state and restores
// the previous state afterwards, even if fn panics.
func (t *GradientTape) EnableGrad(fn func()) {
	t.scoped(true, fn)
}

func (t *GradientTape) scoped(recording bool, fn func()) {
	if t == nil {
		fn()
		return
	}
	was := t.recording.Swap(recording)
	defer t.recording.Store(was)
	fn()
}
