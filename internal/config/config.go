// Package config loads and validates training configuration.
//
// Configuration comes from three layers, later ones winning: Default(), a YAML file,
// and SAM_* environment variables. CLI flags are applied on top by cmd/sam.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned when a configuration fails validation.
var ErrInvalid = errors.New("invalid training configuration")

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Train is the complete configuration of one training run.
type Train struct {
	Run       Run       `yaml:"run"`
	Optimizer Optimizer `yaml:"optimizer"`
	Schedule  Schedule  `yaml:"schedule"`
	Data      Data      `yaml:"data"`
	Log       Log       `yaml:"log"`
	Metrics   Metrics   `yaml:"metrics"`
}

// Run controls the training loop and checkpointing.
type Run struct {
	Epochs          int    `yaml:"epochs" validate:"gt=0"`
	Seed            int64  `yaml:"seed"`
	CheckpointDir   string `yaml:"checkpoint_dir"`
	CheckpointEvery int    `yaml:"checkpoint_every" validate:"gte=0"` // epochs, 0 = only at the end
	Resume          string `yaml:"resume"`                            // checkpoint to resume from
}

// Optimizer selects the base optimizer and the SAM hyperparameters.
type Optimizer struct {
	Base        string  `yaml:"base" validate:"oneof=sgd adam"`
	LR          float64 `yaml:"lr" validate:"gt=0"`
	Rho         float64 `yaml:"rho" validate:"gt=0"`
	Adaptive    bool    `yaml:"adaptive"`
	Momentum    float64 `yaml:"momentum" validate:"gte=0,lt=1"`
	Dampening   float64 `yaml:"dampening" validate:"gte=0,lte=1"`
	WeightDecay float64 `yaml:"weight_decay" validate:"gte=0"`
	Nesterov    bool    `yaml:"nesterov"`
	Beta1       float64 `yaml:"beta1" validate:"gte=0,lt=1"`
	Beta2       float64 `yaml:"beta2" validate:"gte=0,lt=1"`
	Eps         float64 `yaml:"eps" validate:"gt=0"`
	Workers     int     `yaml:"workers" validate:"gte=0"` // gradient norm workers, 0 = sequential
}

// Schedule configures the step-decay learning rate schedule.
type Schedule struct {
	StepSize int     `yaml:"step_size" validate:"gte=0"` // epochs between decays, 0 = constant
	Gamma    float64 `yaml:"gamma" validate:"gt=0,lte=1"`
}

// Data describes the training data.
type Data struct {
	Kind      string  `yaml:"kind" validate:"oneof=regression bigram"`
	Samples   int     `yaml:"samples" validate:"gt=0"`
	Features  int     `yaml:"features" validate:"gt=0"`
	Outputs   int     `yaml:"outputs" validate:"gt=0"`
	Noise     float64 `yaml:"noise" validate:"gte=0"`
	BatchSize int     `yaml:"batch_size" validate:"gt=0"`
	Corpus    string  `yaml:"corpus"`                                      // text file for the bigram model
	Encoding  string  `yaml:"encoding" validate:"required_if=Kind bigram"` // tiktoken encoding name
}

// Log configures logging.
type Log struct {
	Level   string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON    bool   `yaml:"json"`
	Dir     string `yaml:"dir"`
	Service string `yaml:"service"`
}

// Metrics configures metrics export.
type Metrics struct {
	Textfile string `yaml:"textfile"` // Prometheus textfile written after every epoch
}

// Default returns the default configuration: SAM (rho 0.05) over SGD with momentum on
// a synthetic regression task.
func Default() Train {
	return Train{
		Run: Run{
			Epochs: 20,
			Seed:   1,
		},
		Optimizer: Optimizer{
			Base:     "sgd",
			LR:       0.05,
			Rho:      0.05,
			Momentum: 0.9,
			Beta1:    0.9,
			Beta2:    0.999,
			Eps:      1e-8,
		},
		Schedule: Schedule{Gamma: 0.5},
		Data: Data{
			Kind:      "regression",
			Samples:   256,
			Features:  8,
			Outputs:   1,
			Noise:     0.1,
			BatchSize: 32,
			Encoding:  "cl100k_base",
		},
		Log: Log{Level: "info", Service: "sam"},
	}
}

// Validate checks c against its constraints.
func (c *Train) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Optimizer.Nesterov && (c.Optimizer.Momentum == 0 || c.Optimizer.Dampening != 0) {
		return fmt.Errorf("%w: nesterov requires momentum > 0 and dampening == 0", ErrInvalid)
	}
	return nil
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(r io.Reader) (Train, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return c, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// Load reads path (if not empty), applies environment overrides and validates the result.
func Load(path string) (Train, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("read config: %w", err)
		}
		if c, err = Parse(bytes.NewReader(data)); err != nil {
			return c, err
		}
	}
	if err := ApplyEnv(&c, os.LookupEnv); err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// ApplyEnv overrides c with SAM_* variables found by lookup.
func ApplyEnv(c *Train, lookup func(string) (string, bool)) error {
	floats := map[string]*float64{
		"SAM_LR":           &c.Optimizer.LR,
		"SAM_RHO":          &c.Optimizer.Rho,
		"SAM_MOMENTUM":     &c.Optimizer.Momentum,
		"SAM_WEIGHT_DECAY": &c.Optimizer.WeightDecay,
	}
	for key, dst := range floats {
		if v, ok := lookup(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = f
		}
	}
	if v, ok := lookup("SAM_ADAPTIVE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SAM_ADAPTIVE: %w", err)
		}
		c.Optimizer.Adaptive = b
	}
	if v, ok := lookup("SAM_EPOCHS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SAM_EPOCHS: %w", err)
		}
		c.Run.Epochs = n
	}
	if v, ok := lookup("SAM_BASE"); ok {
		c.Optimizer.Base = v
	}
	if v, ok := lookup("SAM_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	return nil
}

// Marshal encodes c as YAML.
func (c Train) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
