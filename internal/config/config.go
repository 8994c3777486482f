package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/agsteer/internal/autosteer"
	"github.com/san-kum/agsteer/internal/boundary"
	"github.com/san-kum/agsteer/internal/geo"
	"github.com/san-kum/agsteer/internal/guidance"
	"github.com/san-kum/agsteer/internal/pgn"
	"github.com/san-kum/agsteer/internal/track"
	"github.com/san-kum/agsteer/internal/transport"
	"github.com/san-kum/agsteer/internal/uturn"
)

const (
	DefaultDt       = 0.1
	DefaultDuration = 240.0
	DefaultSpeed    = 2.5
	DefaultToolW    = 6.0
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Name      string          `yaml:"name"`
	Vehicle   VehicleConfig   `yaml:"vehicle"`
	Tool      ToolConfig      `yaml:"tool"`
	Guidance  GuidanceConfig  `yaml:"guidance"`
	Turn      TurnConfig      `yaml:"turn"`
	Steer     SteerConfig     `yaml:"steer"`
	Field     FieldConfig     `yaml:"field"`
	Sim       SimConfig       `yaml:"sim"`
	Transport TransportConfig `yaml:"transport"`
	Log       LogConfig       `yaml:"log"`
}

type VehicleConfig struct {
	Wheelbase     float64 `yaml:"wheelbase"`
	MaxSteerAngle float64 `yaml:"max_steer_angle"`
	MinTurnRadius float64 `yaml:"min_turn_radius"`
}

type ToolConfig struct {
	Width   float64 `yaml:"width"`
	Overlap float64 `yaml:"overlap"`
}

type GuidanceConfig struct {
	Law                string  `yaml:"law"`
	LookAheadHold      float64 `yaml:"look_ahead_hold"`
	LookAheadMin       float64 `yaml:"look_ahead_min"`
	LookAheadMax       float64 `yaml:"look_ahead_max"`
	IntegralGain       float64 `yaml:"integral_gain"`
	IntegralWindow     float64 `yaml:"integral_window"`
	IntegralLimit      float64 `yaml:"integral_limit"`
	StanleyGain        float64 `yaml:"stanley_gain"`
	StanleyHeadingGain float64 `yaml:"stanley_heading_gain"`
	SideHillComp       float64 `yaml:"side_hill_comp"`
	SearchWindow       int     `yaml:"search_window"`
}

type TurnConfig struct {
	Enabled              bool    `yaml:"enabled"`
	RowSkip              int     `yaml:"row_skip"`
	Radius               float64 `yaml:"radius"`
	EntryLength          float64 `yaml:"entry_length"`
	PointSpacing         float64 `yaml:"point_spacing"`
	SmoothingPasses      int     `yaml:"smoothing_passes"`
	MinCreateDistance    float64 `yaml:"min_create_distance"`
	DebounceTicks        int     `yaml:"debounce_ticks"`
	TriggerDistance      float64 `yaml:"trigger_distance"`
	CompleteDistance     float64 `yaml:"complete_distance"`
	AlignTolerance       float64 `yaml:"align_tolerance"`
	StartLeft            bool    `yaml:"start_left"`
	AlternateDirection   bool    `yaml:"alternate_direction"`
	InvalidateOnMisalign bool    `yaml:"invalidate_on_misalign"`
}

// SteerConfig holds what is sent to the steering controller on connect.
type SteerConfig struct {
	Kp              uint8   `yaml:"kp"`
	HighPWM         uint8   `yaml:"high_pwm"`
	LowPWM          uint8   `yaml:"low_pwm"`
	MinPWM          uint8   `yaml:"min_pwm"`
	DeadzoneHeading float64 `yaml:"deadzone_heading"`
	DeadzoneDelay   uint8   `yaml:"deadzone_delay"`
	WASOffset       int16   `yaml:"was_offset"`
	CountsPerDegree uint8   `yaml:"counts_per_degree"`
	Ackermann       uint8   `yaml:"ackermann"`
	PulseCountMax   uint8   `yaml:"pulse_count_max"`
	MinSpeed        float64 `yaml:"min_speed"`
	InvertWAS       bool    `yaml:"invert_was"`
	InvertMotor     bool    `yaml:"invert_motor"`
	RelayActiveHigh bool    `yaml:"relay_active_high"`
	SingleInputWAS  bool    `yaml:"single_input_was"`
	CytronDriver    bool    `yaml:"cytron_driver"`
	SteerSwitch     bool    `yaml:"steer_switch"`
	SteerButton     bool    `yaml:"steer_button"`
	ShaftEncoder    bool    `yaml:"shaft_encoder"`
	Danfoss         bool    `yaml:"danfoss"`
	PressureSensor  bool    `yaml:"pressure_sensor"`
	CurrentSensor   bool    `yaml:"current_sensor"`
	UseYAxis        bool    `yaml:"use_y_axis"`
	PressureTrip    uint8   `yaml:"pressure_trip"`
	CurrentTrip     uint8   `yaml:"current_trip"`
}

// FieldConfig describes either a rectangle in local metres or, when Outer
// is set, lon/lat rings. With lon/lat rings the track coordinates are
// lon/lat too.
type FieldConfig struct {
	Width    float64 `yaml:"width"`
	Length   float64 `yaml:"length"`
	Headland float64 `yaml:"headland"`

	EPSG         int          `yaml:"epsg"`
	Outer        [][2]float64 `yaml:"outer"`
	HeadlandRing [][2]float64 `yaml:"headland_ring"`

	Track TrackConfig `yaml:"track"`
}

type TrackConfig struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	// A is the start of an AB line.
	A       [2]float64 `yaml:"a"`
	Heading float64    `yaml:"heading"`
	Length  float64    `yaml:"length"`
	// Points of a curve.
	Points [][2]float64 `yaml:"points"`
}

type SimConfig struct {
	Dt         float64 `yaml:"dt"`
	Duration   float64 `yaml:"duration"`
	Speed      float64 `yaml:"speed"`
	Integrator string  `yaml:"integrator"`
	// Initial pose relative to the track start: distance along the
	// track, lateral offset (positive right) and heading error.
	StartAlong        float64 `yaml:"start_along"`
	StartOffset       float64 `yaml:"start_offset"`
	StartHeadingError float64 `yaml:"start_heading_error"`
	SteerLag          float64 `yaml:"steer_lag"`
	PositionNoise     float64 `yaml:"position_noise"`
	Seed              int64   `yaml:"seed"`
}

type TransportConfig struct {
	Kind   string                `yaml:"kind"`
	Remote string                `yaml:"remote"`
	Listen string                `yaml:"listen"`
	Port   string                `yaml:"port"`
	Serial transport.PortOptions `yaml:"serial"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

func DefaultConfig() *Config {
	s := autosteer.DefaultSettings()
	tc := uturn.DefaultConfig()
	gp := guidance.DefaultParams()
	return &Config{
		Name: "default",
		Vehicle: VehicleConfig{
			Wheelbase:     s.Wheelbase,
			MaxSteerAngle: s.MaxSteerAngle,
			MinTurnRadius: tc.MinTurnRadius,
		},
		Tool: ToolConfig{Width: DefaultToolW},
		Guidance: GuidanceConfig{
			Law:                "pure_pursuit",
			LookAheadHold:      s.LookAheadHold,
			LookAheadMin:       s.LookAheadMin,
			LookAheadMax:       s.LookAheadMax,
			IntegralGain:       gp.PurePursuitIntegralGain,
			IntegralWindow:     gp.IntegralWindow,
			IntegralLimit:      gp.IntegralLimit,
			StanleyGain:        gp.StanleyGain,
			StanleyHeadingGain: gp.StanleyHeadingGain,
			SideHillComp:       gp.SideHillCompFactor,
			SearchWindow:       gp.SearchWindow,
		},
		Turn: TurnConfig{
			Enabled:            true,
			RowSkip:            tc.RowSkip,
			Radius:             tc.TurnRadius,
			EntryLength:        tc.EntryLength,
			PointSpacing:       tc.PointSpacing,
			SmoothingPasses:    tc.SmoothingPasses,
			MinCreateDistance:  tc.MinCreateDistance,
			DebounceTicks:      tc.DebounceTicks,
			TriggerDistance:    tc.TriggerDistance,
			CompleteDistance:   tc.CompleteDistance,
			AlignTolerance:     geo.Degrees(tc.AlignTolerance),
			AlternateDirection: tc.AlternateDirection,
		},
		Steer: SteerConfig{
			Kp:              s.SteerSettings.Kp,
			HighPWM:         s.SteerSettings.HighPWM,
			LowPWM:          s.SteerSettings.LowPWM,
			MinPWM:          s.SteerSettings.MinPWM,
			DeadzoneHeading: s.SteerSettings.DeadzoneHeading,
			DeadzoneDelay:   s.SteerSettings.DeadzoneDelay,
			CountsPerDegree: s.SteerConfig.CountsPerDegree,
			Ackermann:       s.SteerConfig.Ackermann,
			PulseCountMax:   s.SteerConfig.PulseCountMax,
			MinSpeed:        s.SteerConfig.MinSpeed,
		},
		Field: FieldConfig{
			Width:    120,
			Length:   300,
			Headland: 20,
			Track: TrackConfig{
				Name:   "AB 1",
				Kind:   "ab",
				A:      [2]float64{33, 0},
				Length: 300,
			},
		},
		Sim: SimConfig{
			Dt:         DefaultDt,
			Duration:   DefaultDuration,
			Speed:      DefaultSpeed,
			Integrator: "rk4",
			StartAlong: 25,
			SteerLag:   0.2,
			Seed:       1,
		},
		Transport: TransportConfig{Kind: "none"},
		Log:       LogConfig{Level: "info"},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func invalid(key, format string, args ...any) error {
	return fmt.Errorf("%w: %s %s", ErrInvalid, key, fmt.Sprintf(format, args...))
}

// Validate reports the first bad value by its YAML key path.
func (c *Config) Validate() error {
	switch {
	case !(c.Vehicle.Wheelbase > 0):
		return invalid("vehicle.wheelbase", "must be positive")
	case !(c.Vehicle.MaxSteerAngle > 0) || c.Vehicle.MaxSteerAngle >= 90:
		return invalid("vehicle.max_steer_angle", "must be in (0, 90)")
	case !(c.Tool.Width > 0):
		return invalid("tool.width", "must be positive")
	case c.Tool.Overlap < 0 || c.Tool.Overlap >= c.Tool.Width:
		return invalid("tool.overlap", "must be in [0, tool.width)")
	case !(c.Guidance.LookAheadMin > 0):
		return invalid("guidance.look_ahead_min", "must be positive")
	case c.Guidance.LookAheadMax > 0 && c.Guidance.LookAheadMax < c.Guidance.LookAheadMin:
		return invalid("guidance.look_ahead_max", "must not be below look_ahead_min")
	case c.Guidance.SearchWindow < 1:
		return invalid("guidance.search_window", "must be at least 1")
	case !(c.Sim.Dt > 0):
		return invalid("sim.dt", "must be positive")
	case !(c.Sim.Duration > 0):
		return invalid("sim.duration", "must be positive")
	case c.Sim.SteerLag < 0:
		return invalid("sim.steer_lag", "must not be negative")
	}
	if _, err := guidance.ParseLaw(c.Guidance.Law); err != nil {
		return invalid("guidance.law", "%q is not pure_pursuit or stanley", c.Guidance.Law)
	}
	if _, err := track.ParseKind(c.Field.Track.Kind); err != nil {
		return invalid("field.track.kind", "%q is not ab or curve", c.Field.Track.Kind)
	}
	switch c.Sim.Integrator {
	case "euler", "rk4":
	default:
		return invalid("sim.integrator", "%q is not euler or rk4", c.Sim.Integrator)
	}
	switch c.Transport.Kind {
	case "", "none":
	case "udp":
		if c.Transport.Remote == "" {
			return invalid("transport.remote", "is required for udp")
		}
	case "serial":
		if c.Transport.Port == "" {
			return invalid("transport.port", "is required for serial")
		}
		if _, err := c.Transport.Serial.Normalize(); err != nil {
			return invalid("transport.serial", "%v", err)
		}
	default:
		return invalid("transport.kind", "%q is not none, udp or serial", c.Transport.Kind)
	}
	if len(c.Field.Outer) == 0 && !(c.Field.Width > 0 && c.Field.Length > 0) {
		return invalid("field", "needs width and length or an outer ring")
	}
	if err := c.TurnConfig().Validate(); err != nil {
		return invalid("turn", "%v", err)
	}
	return nil
}

func (c *Config) TurnConfig() uturn.Config {
	tc := uturn.DefaultConfig()
	tc.ToolWidth = c.Tool.Width
	tc.Overlap = c.Tool.Overlap
	tc.RowSkip = c.Turn.RowSkip
	tc.TurnRadius = c.Turn.Radius
	tc.MinTurnRadius = c.Vehicle.MinTurnRadius
	tc.EntryLength = c.Turn.EntryLength
	tc.PointSpacing = c.Turn.PointSpacing
	tc.SmoothingPasses = c.Turn.SmoothingPasses
	tc.MinCreateDistance = c.Turn.MinCreateDistance
	tc.DebounceTicks = c.Turn.DebounceTicks
	tc.TriggerDistance = c.Turn.TriggerDistance
	tc.CompleteDistance = c.Turn.CompleteDistance
	tc.AlignTolerance = geo.Radians(c.Turn.AlignTolerance)
	tc.StartLeft = c.Turn.StartLeft
	tc.AlternateDirection = c.Turn.AlternateDirection
	tc.InvalidateOnMisalign = c.Turn.InvalidateOnMisalign
	return tc
}

// Snapshot builds the read-only settings the guidance loop runs on.
// Call Validate first; an unknown law falls back to Pure Pursuit.
func (c *Config) Snapshot() autosteer.Settings {
	law, err := guidance.ParseLaw(c.Guidance.Law)
	if err != nil {
		law = guidance.PurePursuit
	}
	st := c.Steer
	return autosteer.Settings{
		Law:           law,
		Wheelbase:     c.Vehicle.Wheelbase,
		MaxSteerAngle: c.Vehicle.MaxSteerAngle,
		LookAheadHold: c.Guidance.LookAheadHold,
		LookAheadMin:  c.Guidance.LookAheadMin,
		LookAheadMax:  c.Guidance.LookAheadMax,
		Params: guidance.Params{
			PurePursuitIntegralGain: c.Guidance.IntegralGain,
			IntegralWindow:          c.Guidance.IntegralWindow,
			IntegralLimit:           c.Guidance.IntegralLimit,
			StanleyGain:             c.Guidance.StanleyGain,
			StanleyHeadingGain:      c.Guidance.StanleyHeadingGain,
			SideHillCompFactor:      c.Guidance.SideHillComp,
			SearchWindow:            c.Guidance.SearchWindow,
		},
		UTurn: c.Turn.Enabled,
		Turn:  c.TurnConfig(),
		SteerSettings: pgn.SteerSettings{
			Kp:              st.Kp,
			HighPWM:         st.HighPWM,
			LowPWM:          st.LowPWM,
			MinPWM:          st.MinPWM,
			DeadzoneHeading: st.DeadzoneHeading,
			DeadzoneDelay:   st.DeadzoneDelay,
			WASOffset:       st.WASOffset,
		},
		SteerConfig: pgn.SteerConfig{
			InvertWAS:       st.InvertWAS,
			InvertMotor:     st.InvertMotor,
			RelayActiveHigh: st.RelayActiveHigh,
			SingleInputWAS:  st.SingleInputWAS,
			CytronDriver:    st.CytronDriver,
			SteerSwitch:     st.SteerSwitch,
			SteerButton:     st.SteerButton,
			ShaftEncoder:    st.ShaftEncoder,
			CountsPerDegree: st.CountsPerDegree,
			Ackermann:       st.Ackermann,
			PulseCountMax:   st.PulseCountMax,
			MinSpeed:        st.MinSpeed,
			Danfoss:         st.Danfoss,
			PressureSensor:  st.PressureSensor,
			CurrentSensor:   st.CurrentSensor,
			UseYAxis:        st.UseYAxis,
			PressureTrip:    st.PressureTrip,
			CurrentTrip:     st.CurrentTrip,
		},
	}
}

// Projector returns nil for a field in local metres.
func (c *Config) Projector() (*geo.Projector, error) {
	if len(c.Field.Outer) == 0 {
		return nil, nil
	}
	if c.Field.EPSG != 0 {
		return geo.NewProjectorEPSG(c.Field.EPSG), nil
	}
	first := c.Field.Outer[0]
	return geo.NewProjector(first[0], first[1])
}

// BuildField returns the field in grid metres.
func (c *Config) BuildField(p *geo.Projector) (boundary.Field, error) {
	if p == nil {
		return boundary.NewRectField(geo.Vec2{}, c.Field.Width, c.Field.Length, c.Field.Headland)
	}
	f := boundary.Field{Outer: boundary.FromLonLat(p, c.Field.Outer)}
	if !f.Outer.Usable() {
		return boundary.Field{}, fmt.Errorf("%w: outer ring", boundary.ErrInvalidRing)
	}
	if len(c.Field.HeadlandRing) > 0 {
		f.Headland = boundary.FromLonLat(p, c.Field.HeadlandRing)
	}
	return f, nil
}

// BuildTrack returns the reference track in grid metres.
func (c *Config) BuildTrack(p *geo.Projector) (*track.Track, error) {
	tc := c.Field.Track
	kind, err := track.ParseKind(tc.Kind)
	if err != nil {
		return nil, err
	}
	point := func(v [2]float64) geo.Vec2 {
		if p != nil {
			return p.Project(v[0], v[1])
		}
		return geo.Vec2{Easting: v[0], Northing: v[1]}
	}

	var t *track.Track
	switch kind {
	case track.Curve:
		pts := make([]geo.Vec2, len(tc.Points))
		for i, v := range tc.Points {
			pts[i] = point(v)
		}
		t = track.NewCurve(tc.Name, pts)
	default:
		length := tc.Length
		if length <= 0 {
			length = c.Field.Length
		}
		t = track.NewABLineFromHeading(tc.Name, point(tc.A), geo.Radians(tc.Heading), length)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("field.track: %w", err)
	}
	t.IsActive = true
	return t, nil
}
