// Package checkpoint saves and restores complete training state: model parameters,
// optimizer parameter groups and optimizer state, plus run metadata.
//
// A checkpoint is a single .born file. Model parameters are stored as "model.<name>",
// optimizer state as "state.<index>.<key>", and the optimizer groups as JSON in the
// checkpoint header.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/born-ml/sam/internal/nn"
	"github.com/born-ml/sam/internal/optim"
	"github.com/born-ml/sam/internal/serialization"
	"github.com/born-ml/sam/internal/tensor"
)

// modelPrefix prefixes model parameter tensor names.
const modelPrefix = "model."

// Meta describes where in a training run a checkpoint was taken.
type Meta struct {
	RunID         string         // Identifier of the training run (generated if empty)
	ModelType     string         // Type of model (e.g., "Linear", "Bigram")
	OptimizerType string         // Optimizer description (e.g., "sam+sgd")
	Epoch         int            // Training epoch number
	Step          int64          // Training step number
	Loss          float64        // Loss value at this checkpoint
	Extra         map[string]any // Additional training metadata
	CreatedAt     time.Time      // When the checkpoint was created (set on load)
}

// NewRunID returns a fresh training run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Save writes model parameters, optimizer state and meta to path.
//
// Returns the run id recorded in the file.
func Save(path string, model nn.Module, opt optim.Stateful, meta Meta) (string, error) {
	if meta.RunID == "" {
		meta.RunID = NewRunID()
	}

	sd := opt.StateDict()
	groups, err := json.Marshal(sd.Groups)
	if err != nil {
		return "", fmt.Errorf("checkpoint: failed to marshal optimizer groups: %w", err)
	}

	tensors := sd.Tensors()
	for name, t := range nn.StateDict(model) {
		tensors[modelPrefix+name] = t
	}

	header := serialization.Header{
		Kind:      serialization.KindCheckpoint,
		ModelType: meta.ModelType,
		Metadata:  map[string]string{"run_id": meta.RunID},
		CheckpointMeta: &serialization.CheckpointMeta{
			RunID:           meta.RunID,
			Epoch:           meta.Epoch,
			Step:            meta.Step,
			Loss:            meta.Loss,
			OptimizerType:   meta.OptimizerType,
			OptimizerGroups: groups,
			TrainingMeta:    meta.Extra,
		},
	}
	if err := serialization.WriteFile(path, tensors, header); err != nil {
		return "", fmt.Errorf("checkpoint: %w", err)
	}
	return meta.RunID, nil
}

// Load restores model parameters and optimizer state from path and returns the stored meta.
//
// Everything is validated before anything is modified: on error the model and the
// optimizer are left untouched.
func Load(path string, model nn.Module, opt optim.Stateful) (Meta, error) {
	f, err := serialization.ReadFile(path, serialization.ReaderOptions{})
	if err != nil {
		return Meta{}, fmt.Errorf("checkpoint: %w", err)
	}
	cm := f.Header.CheckpointMeta
	if f.Header.Kind != serialization.KindCheckpoint || cm == nil {
		return Meta{}, fmt.Errorf("checkpoint: %s is not a training checkpoint", path)
	}

	var groups []optim.GroupState
	if err := json.Unmarshal(cm.OptimizerGroups, &groups); err != nil {
		return Meta{}, fmt.Errorf("checkpoint: failed to parse optimizer groups: %w", err)
	}
	sd, err := optim.NewStateDict(groups, f.Tensors)
	if err != nil {
		return Meta{}, fmt.Errorf("checkpoint: %w", err)
	}

	params, err := modelTensors(f.Tensors, model)
	if err != nil {
		return Meta{}, err
	}
	if err := opt.LoadStateDict(sd); err != nil {
		return Meta{}, fmt.Errorf("checkpoint: optimizer: %w", err)
	}
	if err := nn.LoadStateDict(model, params); err != nil {
		return Meta{}, fmt.Errorf("checkpoint: model: %w", err)
	}

	return Meta{
		RunID:         cm.RunID,
		ModelType:     f.Header.ModelType,
		OptimizerType: cm.OptimizerType,
		Epoch:         cm.Epoch,
		Step:          cm.Step,
		Loss:          cm.Loss,
		Extra:         cm.TrainingMeta,
		CreatedAt:     f.Header.CreatedAt,
	}, nil
}

// SaveModel writes only the model parameters to path.
func SaveModel(path string, model nn.Module, modelType string) error {
	tensors := make(map[string]*tensor.Tensor)
	for name, t := range nn.StateDict(model) {
		tensors[modelPrefix+name] = t
	}
	header := serialization.Header{Kind: serialization.KindModel, ModelType: modelType}
	if err := serialization.WriteFile(path, tensors, header); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

// LoadModel restores model parameters from a model file or a checkpoint.
func LoadModel(path string, model nn.Module) error {
	f, err := serialization.ReadFile(path, serialization.ReaderOptions{})
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	params, err := modelTensors(f.Tensors, model)
	if err != nil {
		return err
	}
	if err := nn.LoadStateDict(model, params); err != nil {
		return fmt.Errorf("checkpoint: model: %w", err)
	}
	return nil
}

// modelTensors extracts the model parameters from a decoded file and checks them
// against model.
func modelTensors(all map[string]*tensor.Tensor, model nn.Module) (map[string]*tensor.Tensor, error) {
	params := make(map[string]*tensor.Tensor)
	for name, t := range all {
		if rest, ok := strings.CutPrefix(name, modelPrefix); ok {
			params[rest] = t
		}
	}
	for _, p := range model.Parameters() {
		t, ok := params[p.Name()]
		if !ok {
			return nil, fmt.Errorf("checkpoint: missing parameter %q", p.Name())
		}
		if !t.Shape().Equal(p.Tensor().Shape()) {
			return nil, fmt.Errorf("checkpoint: parameter %q has shape %v, model expects %v",
				p.Name(), t.Shape(), p.Tensor().Shape())
		}
	}
	return params, nil
}
