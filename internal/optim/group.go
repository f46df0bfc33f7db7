package optim

import (
	"fmt"

	"github.com/born-ml/sam/internal/nn"
)

// ParamGroup is an ordered set of parameters sharing one set of Options.
type ParamGroup struct {
	Params  []*nn.Parameter
	Options Options
}

// Group creates a parameter group with per-group option overrides.
//
// Keys missing from opts are filled from the optimizer defaults at construction.
func Group(opts Options, params ...*nn.Parameter) *ParamGroup {
	return &ParamGroup{Params: params, Options: opts.Clone()}
}

// Params wraps params into a single group that uses the optimizer defaults.
func Params(params ...*nn.Parameter) []*ParamGroup {
	return []*ParamGroup{Group(nil, params...)}
}

// GroupList is the list of parameter groups an optimizer reads on every step.
//
// A wrapper and its delegate hold the same *GroupList; whoever replaces the list
// (for example when loading state) hands the new one to the other side explicitly.
type GroupList struct {
	groups []*ParamGroup
}

// NewGroupList validates groups and wraps them into a list.
//
// Every group must be non-empty and no parameter may appear twice.
// Group objects are used by reference; nil Options are replaced by an empty map.
func NewGroupList(groups ...*ParamGroup) (*GroupList, error) {
	if len(groups) == 0 {
		return nil, ErrEmptyParams
	}

	seen := make(map[*nn.Parameter]struct{})
	for i, g := range groups {
		if g == nil || len(g.Params) == 0 {
			return nil, fmt.Errorf("group %d: %w", i, ErrEmptyParams)
		}
		if g.Options == nil {
			g.Options = Options{}
		}
		for _, p := range g.Params {
			if p == nil {
				return nil, fmt.Errorf("group %d: nil parameter: %w", i, ErrInvalidConfig)
			}
			if _, dup := seen[p]; dup {
				return nil, fmt.Errorf("group %d, parameter %q: %w", i, p.Name(), ErrDuplicateParam)
			}
			seen[p] = struct{}{}
		}
	}

	return &GroupList{groups: groups}, nil
}

// Len returns the number of groups.
func (l *GroupList) Len() int {
	return len(l.groups)
}

// At returns group i.
func (l *GroupList) At(i int) *ParamGroup {
	return l.groups[i]
}

// All returns the groups in order. The slice must not be modified.
func (l *GroupList) All() []*ParamGroup {
	return l.groups
}

// Params returns every parameter, group by group. Its order defines the parameter
// indices used in a StateDict.
func (l *GroupList) Params() []*nn.Parameter {
	var params []*nn.Parameter
	for _, g := range l.groups {
		params = append(params, g.Params...)
	}
	return params
}

// Set assigns key to value in every group.
func (l *GroupList) Set(key string, value any) {
	for _, g := range l.groups {
		g.Options[key] = value
	}
}
