// Package automation runs scripted batches of field passes.
package automation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/agsteer/internal/config"
	"github.com/san-kum/agsteer/internal/sim"
)

// Runner drives one configured field pass.
type Runner func(ctx context.Context, cfg *config.Config) (*sim.Result, error)

// Scenario is a scripted sequence of field passes.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep starts from a preset or a config file, then applies the
// law and numeric params by YAML key.
type ScenarioStep struct {
	Name   string             `yaml:"name"`
	Preset string             `yaml:"preset"`
	Config string             `yaml:"config"`
	Law    string             `yaml:"law"`
	Params map[string]float64 `yaml:"params"`
	// Repeat runs the step with consecutive seeds.
	Repeat int `yaml:"repeat"`
}

// LoadScenario reads a scenario. Config paths are relative to the
// scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	for i := range scenario.Steps {
		if c := scenario.Steps[i].Config; c != "" && !filepath.IsAbs(c) {
			scenario.Steps[i].Config = filepath.Join(dir, c)
		}
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	return &scenario, nil
}

func (s *Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return errors.New("scenario has no steps")
	}
	for i, st := range s.Steps {
		if st.Preset != "" && st.Config != "" {
			return fmt.Errorf("step %d: preset and config are exclusive", i+1)
		}
		if st.Repeat < 0 {
			return fmt.Errorf("step %d: repeat must not be negative", i+1)
		}
		if _, err := st.Build(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

// Build returns the validated config for the step.
func (st ScenarioStep) Build() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if st.Config != "" {
		cfg, err = config.Load(st.Config)
	} else {
		cfg, err = config.FromPreset(st.Preset)
	}
	if err != nil {
		return nil, err
	}
	if st.Name != "" {
		cfg.Name = st.Name
	}
	if st.Law != "" {
		cfg.Guidance.Law = st.Law
	}
	for k, v := range st.Params {
		if err := cfg.Set(k, v); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StepResult is one pass of a scenario. Err holds a failed run; the
// scenario carries on with the next pass.
type StepResult struct {
	Step   int
	Name   string
	Seed   int64
	Config *config.Config
	Result *sim.Result
	Err    error
}

// RunScenario executes all steps in order. progress, when set, sees each
// pass as it finishes.
func RunScenario(ctx context.Context, scenario *Scenario, run Runner, progress func(StepResult)) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		repeat := max(step.Repeat, 1)
		for r := range repeat {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			cfg, err := step.Build()
			if err != nil {
				return results, fmt.Errorf("step %d: %w", i+1, err)
			}
			cfg.Sim.Seed += int64(r)

			res, err := run(ctx, cfg)
			sr := StepResult{Step: i + 1, Name: cfg.Name, Seed: cfg.Sim.Seed, Config: cfg, Result: res, Err: err}
			results = append(results, sr)
			if progress != nil {
				progress(sr)
			}
		}
	}

	return results, nil
}
