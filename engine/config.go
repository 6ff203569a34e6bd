package engine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Window is one observation window of the simulation schedule. NValues
// evenly spaced sampling instants are emitted over [Start, End): instant
// i is Start + (End-Start)*i/NValues.
type Window struct {
	Start   float64 `yaml:"start"`
	End     float64 `yaml:"end"`
	NValues int     `yaml:"nb_values"`
}

// Instants returns the window's sampling instants in ascending order.
func (w Window) Instants() []float64 {
	out := make([]float64, 0, w.NValues)
	span := w.End - w.Start
	for i := 0; i < w.NValues; i++ {
		out = append(out, w.Start+span*float64(i)/float64(w.NValues))
	}
	return out
}

// Config drives a simulation campaign.
type Config struct {
	// Runs is the number of Monte Carlo runs.
	Runs int `yaml:"nb_runs"`

	// Seed is the global random seed. Run i uses Seed+i, so results are
	// independent of worker assignment.
	Seed int64 `yaml:"seed"`

	// Workers caps the number of concurrent runs in SimulateParallel.
	// Zero means one worker per available CPU.
	Workers int `yaml:"workers"`

	// Schedule lists the observation windows in chronological order. The
	// end of the last window is the simulation horizon; an event scheduled
	// exactly at the horizon still fires.
	Schedule []Window `yaml:"schedule"`

	// InstantQuota overrides DefaultInstantQuota when positive.
	InstantQuota int `yaml:"instant_quota"`
}

// Validate rejects configurations the scheduler cannot honor.
func (c *Config) Validate() error {
	if c.Runs <= 0 {
		return fmt.Errorf("config: nb_runs must be positive, got %d", c.Runs)
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must not be negative, got %d", c.Workers)
	}
	if len(c.Schedule) == 0 {
		return fmt.Errorf("config: schedule must list at least one window")
	}
	prev := 0.0
	for i, w := range c.Schedule {
		if w.End <= w.Start {
			return fmt.Errorf("config: schedule window %d: end %g must exceed start %g", i, w.End, w.Start)
		}
		if w.NValues <= 0 {
			return fmt.Errorf("config: schedule window %d: nb_values must be positive, got %d", i, w.NValues)
		}
		if i > 0 && w.Start < prev {
			return fmt.Errorf("config: schedule window %d starts at %g before previous window end %g", i, w.Start, prev)
		}
		prev = w.End
	}
	return nil
}

// Horizon returns the end of the last schedule window.
func (c *Config) Horizon() float64 {
	return c.Schedule[len(c.Schedule)-1].End
}

// Instants returns all sampling instants of the schedule, in order.
func (c *Config) Instants() []float64 {
	var out []float64
	for _, w := range c.Schedule {
		out = append(out, w.Instants()...)
	}
	return out
}

// LoadConfig reads a YAML config file. Unknown fields are errors, so a
// typo in a campaign file fails loudly instead of silently running with
// defaults.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
