package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, 0.05, c.Optimizer.Rho)
	assert.Equal(t, "sgd", c.Optimizer.Base)
	assert.False(t, c.Optimizer.Adaptive)
}

func TestParse_OverridesDefaults(t *testing.T) {
	c, err := Parse(strings.NewReader(`
optimizer:
  base: adam
  rho: 0.5
  adaptive: true
run:
  epochs: 3
`))
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "adam", c.Optimizer.Base)
	assert.Equal(t, 0.5, c.Optimizer.Rho)
	assert.True(t, c.Optimizer.Adaptive)
	assert.Equal(t, 3, c.Run.Epochs)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.05, c.Optimizer.LR)
	assert.Equal(t, 32, c.Data.BatchSize)
}

func TestParse_Empty(t *testing.T) {
	c, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestParse_UnknownKey(t *testing.T) {
	_, err := Parse(strings.NewReader("optimizer:\n  rhoo: 0.1\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Train)
	}{
		{"zero rho", func(c *Train) { c.Optimizer.Rho = 0 }},
		{"negative rho", func(c *Train) { c.Optimizer.Rho = -0.05 }},
		{"unknown base", func(c *Train) { c.Optimizer.Base = "lion" }},
		{"momentum too large", func(c *Train) { c.Optimizer.Momentum = 1 }},
		{"zero epochs", func(c *Train) { c.Run.Epochs = 0 }},
		{"bad gamma", func(c *Train) { c.Schedule.Gamma = 2 }},
		{"unknown data kind", func(c *Train) { c.Data.Kind = "images" }},
		{"bigram without encoding", func(c *Train) { c.Data.Kind = "bigram"; c.Data.Encoding = "" }},
		{"bad log level", func(c *Train) { c.Log.Level = "loud" }},
		{"nesterov without momentum", func(c *Train) { c.Optimizer.Nesterov = true; c.Optimizer.Momentum = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalid)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SAM_RHO":       "0.2",
		"SAM_ADAPTIVE":  "true",
		"SAM_EPOCHS":    "7",
		"SAM_BASE":      "adam",
		"SAM_LOG_LEVEL": "debug",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	c := Default()
	require.NoError(t, ApplyEnv(&c, lookup))
	assert.Equal(t, 0.2, c.Optimizer.Rho)
	assert.True(t, c.Optimizer.Adaptive)
	assert.Equal(t, 7, c.Run.Epochs)
	assert.Equal(t, "adam", c.Optimizer.Base)
	assert.Equal(t, "debug", c.Log.Level)

	env["SAM_LR"] = "fast"
	assert.Error(t, ApplyEnv(&c, lookup))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.yaml")
	require.NoError(t, os.WriteFile(path, []byte("optimizer:\n  rho: 0.1\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.1, c.Optimizer.Rho)

	require.NoError(t, os.WriteFile(path, []byte("optimizer:\n  rho: -1\n"), 0o600))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMarshal_RoundTrip(t *testing.T) {
	c := Default()
	c.Optimizer.Adaptive = true
	data, err := c.Marshal()
	require.NoError(t, err)

	back, err := Parse(strings.NewReader(string(data)))
	require.NoError(t, err)
	assert.Equal(t, c, back)
}
