package optim

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/born-ml/sam/internal/tensor"
)

// stateTensorPrefix prefixes flattened state tensor names: "state.<index>.<key>".
const stateTensorPrefix = "state."

// ParamState is the per-parameter state of an optimizer (momentum buffers, moments, step counts).
type ParamState map[string]*tensor.Tensor

// Clone returns a deep copy of the state.
func (s ParamState) Clone() ParamState {
	out := make(ParamState, len(s))
	for k, t := range s {
		out[k] = t.Clone()
	}
	return out
}

// GroupState is the persisted form of one parameter group.
type GroupState struct {
	Options Options `json:"options"`
	Params  []int   `json:"params"` // Parameter indices, see GroupList.Params
}

// StateDict is the persisted state of an optimizer.
//
// Parameters are referenced by index rather than identity so that a state dict can be
// loaded into a freshly constructed optimizer over an equivalent parameter structure.
type StateDict struct {
	State  map[int]ParamState
	Groups []GroupState
}

// Tensors flattens the per-parameter state into named tensors "state.<index>.<key>".
func (sd *StateDict) Tensors() map[string]*tensor.Tensor {
	out := make(map[string]*tensor.Tensor)
	for id, st := range sd.State {
		for key, t := range st {
			out[stateTensorPrefix+strconv.Itoa(id)+"."+key] = t
		}
	}
	return out
}

// NewStateDict rebuilds a StateDict from group states and flattened tensors produced by
// Tensors. Tensors without the state prefix are ignored.
func NewStateDict(groups []GroupState, tensors map[string]*tensor.Tensor) (*StateDict, error) {
	sd := &StateDict{State: make(map[int]ParamState), Groups: groups}

	names := make([]string, 0, len(tensors))
	for name := range tensors {
		if strings.HasPrefix(name, stateTensorPrefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		rest := strings.TrimPrefix(name, stateTensorPrefix)
		idxStr, key, ok := strings.Cut(rest, ".")
		if !ok || key == "" {
			return nil, fmt.Errorf("malformed state tensor name %q", name)
		}
		id, err := strconv.Atoi(idxStr)
		if err != nil || id < 0 {
			return nil, fmt.Errorf("malformed parameter index in state tensor name %q", name)
		}
		st, ok := sd.State[id]
		if !ok {
			st = make(ParamState)
			sd.State[id] = st
		}
		st[key] = tensors[name]
	}
	return sd, nil
}
