package config

import (
	"fmt"
	"sort"
)

// params are the numeric keys that can be set by name, for tuning sweeps
// and scenario files. Keys match the YAML paths.
var params = map[string]func(*Config) *float64{
	"vehicle.wheelbase":             func(c *Config) *float64 { return &c.Vehicle.Wheelbase },
	"vehicle.max_steer_angle":       func(c *Config) *float64 { return &c.Vehicle.MaxSteerAngle },
	"tool.width":                    func(c *Config) *float64 { return &c.Tool.Width },
	"tool.overlap":                  func(c *Config) *float64 { return &c.Tool.Overlap },
	"guidance.look_ahead_hold":      func(c *Config) *float64 { return &c.Guidance.LookAheadHold },
	"guidance.look_ahead_min":       func(c *Config) *float64 { return &c.Guidance.LookAheadMin },
	"guidance.look_ahead_max":       func(c *Config) *float64 { return &c.Guidance.LookAheadMax },
	"guidance.integral_gain":        func(c *Config) *float64 { return &c.Guidance.IntegralGain },
	"guidance.stanley_gain":         func(c *Config) *float64 { return &c.Guidance.StanleyGain },
	"guidance.stanley_heading_gain": func(c *Config) *float64 { return &c.Guidance.StanleyHeadingGain },
	"guidance.side_hill_comp":       func(c *Config) *float64 { return &c.Guidance.SideHillComp },
	"turn.radius":                   func(c *Config) *float64 { return &c.Turn.Radius },
	"turn.entry_length":             func(c *Config) *float64 { return &c.Turn.EntryLength },
	"sim.speed":                     func(c *Config) *float64 { return &c.Sim.Speed },
	"sim.duration":                  func(c *Config) *float64 { return &c.Sim.Duration },
	"sim.steer_lag":                 func(c *Config) *float64 { return &c.Sim.SteerLag },
	"sim.start_offset":              func(c *Config) *float64 { return &c.Sim.StartOffset },
	"sim.start_heading_error":       func(c *Config) *float64 { return &c.Sim.StartHeadingError },
	"sim.position_noise":            func(c *Config) *float64 { return &c.Sim.PositionNoise },
}

// Set assigns a numeric value by YAML key. The result is not validated.
func (c *Config) Set(key string, v float64) error {
	field, ok := params[key]
	if !ok {
		return fmt.Errorf("%w: %s is not a numeric parameter", ErrInvalid, key)
	}
	*field(c) = v
	return nil
}

// Get reads a numeric value by YAML key.
func (c *Config) Get(key string) (float64, error) {
	field, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s is not a numeric parameter", ErrInvalid, key)
	}
	return *field(c), nil
}

func ParamNames() []string {
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
