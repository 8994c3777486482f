package config

import (
	"fmt"
	"sort"
	"strings"
)

// Presets are grouped by control law. Each entry adjusts a fresh
// DefaultConfig.
var Presets = map[string]map[string]func(*Config){
	"pure_pursuit": {
		"default": func(c *Config) {
			c.Guidance.Law = "pure_pursuit"
		},
		"wide_tool": func(c *Config) {
			c.Tool.Width = 12
			c.Field.Width = 200
			c.Field.Track.A = [2]float64{26, 0}
		},
		"skip_row": func(c *Config) {
			c.Tool.Width = 3
			c.Turn.RowSkip = 2
			c.Turn.AlternateDirection = false
		},
		"tight": func(c *Config) {
			c.Tool.Width = 3
			c.Turn.Radius = 5
			c.Field.Headland = 25
			c.Field.Track.A = [2]float64{30, 0}
		},
		"integral": func(c *Config) {
			c.Guidance.IntegralGain = 0.5
			c.Sim.StartOffset = 0.6
			c.Turn.Enabled = false
		},
		"offset_start": func(c *Config) {
			c.Sim.StartOffset = 3
			c.Sim.StartHeadingError = 10
		},
		"curve": func(c *Config) {
			c.Field.Track = TrackConfig{
				Name: "Curve 1",
				Kind: "curve",
				Points: [][2]float64{
					{40, 0}, {41, 50}, {44, 100}, {48, 150}, {50, 200}, {49, 250}, {46, 300},
				},
			}
			c.Field.Width = 140
		},
		"geo_field": func(c *Config) {
			c.Field = geoField()
		},
	},
	"stanley": {
		"default": func(c *Config) {
			c.Guidance.Law = "stanley"
		},
		"offset_start": func(c *Config) {
			c.Guidance.Law = "stanley"
			c.Sim.StartOffset = 3
			c.Sim.StartHeadingError = 10
		},
		"noisy_gps": func(c *Config) {
			c.Guidance.Law = "stanley"
			c.Sim.PositionNoise = 0.02
		},
	},
}

// geoField is a 120 x 300 m field on the zone 32 central meridian.
func geoField() FieldConfig {
	const (
		lon0 = 9.0
		lat0 = 48.0
		dLon = 0.0016119 // ~120 m
		dLat = 0.0026986 // ~300 m
		hLon = 0.0002687 // ~20 m
		hLat = 0.0001799 // ~20 m
	)
	return FieldConfig{
		EPSG: 32632,
		Outer: [][2]float64{
			{lon0, lat0}, {lon0 + dLon, lat0}, {lon0 + dLon, lat0 + dLat}, {lon0, lat0 + dLat},
		},
		HeadlandRing: [][2]float64{
			{lon0 + hLon, lat0 + hLat}, {lon0 + dLon - hLon, lat0 + hLat},
			{lon0 + dLon - hLon, lat0 + dLat - hLat}, {lon0 + hLon, lat0 + dLat - hLat},
		},
		Track: TrackConfig{
			Name:   "AB geo",
			Kind:   "ab",
			A:      [2]float64{lon0 + 0.000443, lat0},
			Length: 300,
		},
	}
}

func GetPreset(law, preset string) *Config {
	lawPresets, ok := Presets[law]
	if !ok {
		return nil
	}
	apply, ok := lawPresets[preset]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Name = law + "/" + preset
	apply(cfg)
	return cfg
}

func ListPresets(law string) []string {
	lawPresets, ok := Presets[law]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(lawPresets))
	for name := range lawPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParsePreset accepts "law/name", a bare law ("stanley") or a bare
// pure_pursuit preset name ("wide_tool").
func ParsePreset(ref string) (law, name string) {
	if law, name, ok := strings.Cut(ref, "/"); ok {
		return law, name
	}
	if _, ok := Presets[ref]; ok {
		return ref, "default"
	}
	if ref == "" {
		ref = "default"
	}
	return "pure_pursuit", ref
}

// FromPreset returns a fresh config for a preset reference.
func FromPreset(ref string) (*Config, error) {
	law, name := ParsePreset(ref)
	cfg := GetPreset(law, name)
	if cfg == nil {
		return nil, fmt.Errorf("%w: unknown preset %s/%s", ErrInvalid, law, name)
	}
	return cfg, nil
}
