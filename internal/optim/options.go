package optim

import (
	"maps"
	"math"
)

// Option keys shared by the optimizers in this package.
const (
	KeyLR          = "lr"
	KeyRho         = "rho"
	KeyAdaptive    = "adaptive"
	KeyMomentum    = "momentum"
	KeyDampening   = "dampening"
	KeyWeightDecay = "weight_decay"
	KeyNesterov    = "nesterov"
	KeyBeta1       = "beta1"
	KeyBeta2       = "beta2"
	KeyEps         = "eps"
)

// Options holds the hyperparameters of one parameter group.
//
// Numeric values are stored as float64 and flags as bool, which keeps Options
// JSON round-trippable. Accessors tolerate other numeric kinds.
type Options map[string]any

// Float returns the numeric option key, or 0 if it is missing or not numeric.
func (o Options) Float(key string) float64 {
	switch v := o[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// Bool returns the flag option key, or false if it is missing or not a bool.
func (o Options) Bool(key string) bool {
	v, _ := o[key].(bool)
	return v
}

// Has reports whether key is set.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// Clone returns a shallow copy of the options.
func (o Options) Clone() Options {
	if o == nil {
		return Options{}
	}
	return maps.Clone(o)
}

// Update overwrites o with every key of other.
func (o Options) Update(other Options) {
	maps.Copy(o, other)
}

// SetDefaults fills keys of defaults that o does not already have.
func (o Options) SetDefaults(defaults Options) {
	for k, v := range defaults {
		if _, ok := o[k]; !ok {
			o[k] = v
		}
	}
}

// finite reports whether v is neither NaN nor infinite.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
