package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "campaign.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	path := writeConfig(t, `
nb_runs: 100
seed: 42
workers: 4
schedule:
  - start: 0
    end: 24
    nb_values: 23
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Runs)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, 4, cfg.Workers)
	require.Len(t, cfg.Schedule, 1)
	assert.Equal(t, 24.0, cfg.Horizon())
	assert.Len(t, cfg.Instants(), 23)
}

func TestLoadConfig_UnknownFieldIsError(t *testing.T) {
	path := writeConfig(t, `
nb_runs: 1
nb_rnus: 2
schedule:
  - {start: 0, end: 1, nb_values: 1}
`)
	_, err := LoadConfig(path)
	assert.Error(t, err, "typoed field must not be ignored")
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		Runs:     1,
		Schedule: []Window{{Start: 0, End: 10, NValues: 5}},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no runs", func(c *Config) { c.Runs = 0 }},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"empty schedule", func(c *Config) { c.Schedule = nil }},
		{"inverted window", func(c *Config) { c.Schedule = []Window{{Start: 5, End: 5, NValues: 1}} }},
		{"no values", func(c *Config) { c.Schedule = []Window{{Start: 0, End: 1, NValues: 0}} }},
		{"overlapping windows", func(c *Config) {
			c.Schedule = []Window{
				{Start: 0, End: 10, NValues: 2},
				{Start: 5, End: 20, NValues: 2},
			}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWindow_Instants_EvenlySpacedHalfOpen(t *testing.T) {
	w := Window{Start: 0, End: 24, NValues: 12}
	instants := w.Instants()

	require.Len(t, instants, 12)
	assert.Equal(t, 0.0, instants[0])
	assert.Equal(t, 2.0, instants[1])
	assert.Equal(t, 22.0, instants[11])
}

func TestConfig_Instants_ConcatenatesWindows(t *testing.T) {
	cfg := Config{
		Runs: 1,
		Schedule: []Window{
			{Start: 0, End: 10, NValues: 2},
			{Start: 10, End: 30, NValues: 4},
		},
	}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []float64{0, 5, 10, 15, 20, 25}, cfg.Instants())
	assert.Equal(t, 30.0, cfg.Horizon())
}
