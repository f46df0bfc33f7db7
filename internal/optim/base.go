package optim

import (
	"fmt"

	"github.com/born-ml/sam/internal/nn"
)

// base carries what every optimizer in this package shares: the group list,
// the defaults and per-parameter state keyed by parameter identity.
type base struct {
	groups   *GroupList
	defaults Options
	state    map[*nn.Parameter]ParamState
}

// init adopts groups and fills defaults into every group that lacks a key.
func (b *base) init(groups *GroupList, defaults Options) {
	b.groups = groups
	b.defaults = defaults
	b.state = make(map[*nn.Parameter]ParamState)
	for _, g := range groups.All() {
		g.Options.SetDefaults(defaults)
	}
}

// Groups returns the shared group list.
func (b *base) Groups() *GroupList {
	return b.groups
}

// AdoptGroups replaces the group list with groups.
func (b *base) AdoptGroups(groups *GroupList) {
	b.groups = groups
}

// Defaults returns a copy of the default options.
func (b *base) Defaults() Options {
	return b.defaults.Clone()
}

// ZeroGrad clears gradients for all parameters.
func (b *base) ZeroGrad() {
	zeroGrads(b.groups)
}

// GetLR returns the learning rate of the first group.
func (b *base) GetLR() float32 {
	return float32(b.groups.At(0).Options.Float(KeyLR))
}

// SetLR sets the learning rate of every group.
//
// Useful for learning rate scheduling during training.
func (b *base) SetLR(lr float32) {
	b.groups.Set(KeyLR, float64(lr))
}

// paramState returns the state of p, allocating it on first use.
func (b *base) paramState(p *nn.Parameter) ParamState {
	st, ok := b.state[p]
	if !ok {
		st = make(ParamState)
		b.state[p] = st
	}
	return st
}

// StateDict returns a deep copy of group options and per-parameter state.
//
// Parameters are numbered in group order; see GroupList.Params.
func (b *base) StateDict() *StateDict {
	sd := &StateDict{
		State:  make(map[int]ParamState),
		Groups: make([]GroupState, 0, b.groups.Len()),
	}

	idx := 0
	for _, g := range b.groups.All() {
		gs := GroupState{Options: g.Options.Clone(), Params: make([]int, len(g.Params))}
		for i, p := range g.Params {
			gs.Params[i] = idx
			if st, ok := b.state[p]; ok && len(st) > 0 {
				sd.State[idx] = st.Clone()
			}
			idx++
		}
		sd.Groups = append(sd.Groups, gs)
	}
	return sd
}

// LoadStateDict restores group options and state. See loadStateDict.
func (b *base) LoadStateDict(sd *StateDict) error {
	return b.loadStateDict(sd)
}

// loadStateDict builds fresh group objects carrying the saved options and the current
// parameters, and replaces the per-parameter state with copies of the saved tensors.
// For each key in shapedKeys the saved tensor must have the parameter's shape.
func (b *base) loadStateDict(sd *StateDict, shapedKeys ...string) error {
	groups, index, err := b.loadGroups(sd)
	if err != nil {
		return err
	}

	state := make(map[*nn.Parameter]ParamState, len(sd.State))
	for id, st := range sd.State {
		p := index[id]
		for _, key := range shapedKeys {
			if t, ok := st[key]; ok && !t.Shape().Equal(p.Tensor().Shape()) {
				return fmt.Errorf("%w: %s for parameter %d has shape %v, expected %v",
					ErrStateMismatch, key, id, t.Shape(), p.Tensor().Shape())
			}
		}
		state[p] = st.Clone()
	}

	b.groups = groups
	b.state = state
	return nil
}

// loadGroups validates sd against the current groups and returns a new group list
// with the saved options, plus the mapping from saved parameter index to parameter.
func (b *base) loadGroups(sd *StateDict) (*GroupList, map[int]*nn.Parameter, error) {
	if sd == nil {
		return nil, nil, fmt.Errorf("%w: nil state dict", ErrStateMismatch)
	}
	if len(sd.Groups) != b.groups.Len() {
		return nil, nil, fmt.Errorf("%w: loaded state has %d parameter groups, optimizer has %d",
			ErrStateMismatch, len(sd.Groups), b.groups.Len())
	}

	index := make(map[int]*nn.Parameter)
	groups := make([]*ParamGroup, len(sd.Groups))
	for i, saved := range sd.Groups {
		current := b.groups.At(i)
		if len(saved.Params) != len(current.Params) {
			return nil, nil, fmt.Errorf("%w: group %d has %d parameters in loaded state, %d in optimizer",
				ErrStateMismatch, i, len(saved.Params), len(current.Params))
		}
		for j, id := range saved.Params {
			if _, dup := index[id]; dup {
				return nil, nil, fmt.Errorf("%w: parameter index %d appears twice", ErrStateMismatch, id)
			}
			index[id] = current.Params[j]
		}
		groups[i] = &ParamGroup{Params: current.Params, Options: saved.Options.Clone()}
	}

	for id := range sd.State {
		if _, ok := index[id]; !ok {
			return nil, nil, fmt.Errorf("%w: state for unknown parameter index %d", ErrStateMismatch, id)
		}
	}

	list, err := NewGroupList(groups...)
	if err != nil {
		return nil, nil, err
	}
	return list, index, nil
}
