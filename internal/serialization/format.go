package serialization

import (
	"encoding/json"
	"time"
)

// Format constants.
const (
	MagicBytes      = "BORN"
	FormatVersion   = 2    // With SHA-256 checksum of the data section
	HeaderAlignment = 64   // Tensor data starts on a 64-byte boundary
	FixedHeaderSize = 64   // Fixed header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
)

// DTypeFloat32 is the only tensor data type stored in .born files.
const DTypeFloat32 = "float32"

// Flags for the .born format.
const (
	FlagHasOptimizer uint32 = 1 << 1 // bit 1: optimizer state included
	FlagHasMetadata  uint32 = 1 << 2 // bit 2: custom metadata included
)

// File kinds recorded in Header.Kind.
const (
	KindModel      = "model"
	KindCheckpoint = "checkpoint"
)

// Header represents the JSON header in a .born file.
type Header struct {
	FormatVersion  int               `json:"format_version"`       // Version of the .born format
	Producer       string            `json:"producer"`             // Program version that wrote the file
	Kind           string            `json:"kind"`                 // KindModel or KindCheckpoint
	ModelType      string            `json:"model_type"`           // Type of model (e.g., "Linear", "Bigram")
	CreatedAt      time.Time         `json:"created_at"`           // When the file was created
	Tensors        []TensorMeta      `json:"tensors"`              // Tensor metadata
	Metadata       map[string]string `json:"metadata"`             // Custom metadata
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"` // Checkpoint metadata (optional)
}

// CheckpointMeta contains training state information for checkpoints.
type CheckpointMeta struct {
	RunID           string          `json:"run_id"`           // Identifier of the training run
	Epoch           int             `json:"epoch"`            // Training epoch number
	Step            int64           `json:"step"`             // Training step number
	Loss            float64         `json:"loss"`             // Loss value at checkpoint
	OptimizerType   string          `json:"optimizer_type"`   // Optimizer type ("sam+sgd", "sam+adam", ...)
	OptimizerGroups json.RawMessage `json:"optimizer_groups"` // Serialized optimizer parameter groups
	TrainingMeta    map[string]any  `json:"training_meta"`    // Additional training metadata
}

// TensorMeta describes a tensor in the .born file.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "model.linear.weight")
	DType  string `json:"dtype"`  // Data type, always "float32"
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Offset in the data section (bytes from start of tensor data)
	Size   int64  `json:"size"`   // Size in bytes
}

// dataOffset returns where the data section starts for a JSON header of headerSize bytes.
func dataOffset(headerSize int64) int64 {
	pos := int64(FixedHeaderSize) + headerSize
	return pos + (HeaderAlignment-(pos%HeaderAlignment))%HeaderAlignment
}
