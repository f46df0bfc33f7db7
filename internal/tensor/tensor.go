package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Tensor is a dense, row-major float32 array.
//
// Tensors are mutable: parameters, gradients and optimizer buffers are all updated
// in place. Use Clone to obtain an independent copy.
type Tensor struct {
	shape Shape
	data  []float32
}

// New creates a zero-filled tensor with the given shape.
func New(shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &Tensor{
		shape: shape.Clone(),
		data:  make([]float32, shape.NumElements()),
	}, nil
}

// Zeros creates a zero-filled tensor and panics on an invalid shape.
//
// It is meant for shapes taken from an existing tensor, which are valid by construction.
func Zeros(shape Shape) *Tensor {
	t, err := New(shape)
	if err != nil {
		panic(err)
	}
	return t
}

// Full creates a tensor with every element set to value.
func Full(shape Shape, value float32) (*Tensor, error) {
	t, err := New(shape)
	if err != nil {
		return nil, err
	}
	t.Fill(value)
	return t, nil
}

// Scalar creates a single-element tensor of shape [1].
func Scalar(value float32) *Tensor {
	return &Tensor{shape: Shape{1}, data: []float32{value}}
}

// FromSlice creates a tensor that copies data and has the given shape.
func FromSlice(data []float32, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}
	buf := make([]float32, len(data))
	copy(buf, data)
	return &Tensor{shape: shape.Clone(), data: buf}, nil
}

// FromBytes decodes little-endian float32 data into a tensor of the given shape.
func FromBytes(raw []byte, shape Shape) (*Tensor, error) {
	t, err := New(shape)
	if err != nil {
		return nil, err
	}
	if len(raw) != t.ByteSize() {
		return nil, fmt.Errorf("byte length %d does not match shape %v (%d bytes)", len(raw), shape, t.ByteSize())
	}
	for i := range t.data {
		t.data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return t, nil
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// DType returns the tensor's data type.
func (t *Tensor) DType() DataType {
	return Float32
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return len(t.data)
}

// ByteSize returns the total memory size in bytes.
func (t *Tensor) ByteSize() int {
	return len(t.data) * Float32.Size()
}

// Data returns the underlying element slice.
// WARNING: Direct access to underlying memory. Writes are visible to every holder of t.
func (t *Tensor) Data() []float32 {
	return t.data
}

// Item returns the first element. Intended for single-element tensors.
func (t *Tensor) Item() float32 {
	return t.data[0]
}

// Bytes encodes the elements as little-endian float32.
func (t *Tensor) Bytes() []byte {
	out := make([]byte, t.ByteSize())
	for i, v := range t.data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	buf := make([]float32, len(t.data))
	copy(buf, t.data)
	return &Tensor{shape: t.shape.Clone(), data: buf}
}

// CopyFrom overwrites t with the contents of src. Shapes must match.
func (t *Tensor) CopyFrom(src *Tensor) error {
	if !t.shape.Equal(src.shape) {
		return fmt.Errorf("copy: shape mismatch %v vs %v", t.shape, src.shape)
	}
	copyVec(src, t)
	return nil
}

// Equal reports whether both tensors have the same shape and bitwise identical elements.
func (t *Tensor) Equal(other *Tensor) bool {
	if other == nil || !t.shape.Equal(other.shape) {
		return false
	}
	for i, v := range t.data {
		if math.Float32bits(v) != math.Float32bits(other.data[i]) {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	const preview = 8
	if len(t.data) <= preview {
		return fmt.Sprintf("Tensor%v%v", []int(t.shape), t.data)
	}
	return fmt.Sprintf("Tensor%v%v...", []int(t.shape), t.data[:preview])
}
