package main

import (
	"github.com/san-kum/agsteer/internal/autosteer"
	"github.com/san-kum/agsteer/internal/config"
	"github.com/san-kum/agsteer/internal/integrators"
	"github.com/san-kum/agsteer/internal/logging"
	"github.com/san-kum/agsteer/internal/metrics"
	"github.com/san-kum/agsteer/internal/sim"
	"github.com/san-kum/agsteer/internal/storage"
)

// loadConfig reads --config when given, otherwise the preset.
func loadConfig(path, preset string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.FromPreset(preset)
}

func simConfig(cfg *config.Config) sim.Config {
	return sim.Config{
		Dt:                cfg.Sim.Dt,
		Duration:          cfg.Sim.Duration,
		Speed:             cfg.Sim.Speed,
		StartAlong:        cfg.Sim.StartAlong,
		StartOffset:       cfg.Sim.StartOffset,
		StartHeadingError: cfg.Sim.StartHeadingError,
		PositionNoise:     cfg.Sim.PositionNoise,
		Seed:              cfg.Sim.Seed,
		StopAtEndOfField:  true,
	}
}

// rig is everything needed to drive one field pass.
type rig struct {
	cfg   *config.Config
	loop  *autosteer.Loop
	sim   *sim.Simulator
	field *storage.FieldSnapshot
}

func newRig(cfg *config.Config, lg *logging.Logger) (*rig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	proj, err := cfg.Projector()
	if err != nil {
		return nil, err
	}
	field, err := cfg.BuildField(proj)
	if err != nil {
		return nil, err
	}
	ref, err := cfg.BuildTrack(proj)
	if err != nil {
		return nil, err
	}

	loop, err := autosteer.NewLoop(cfg.Snapshot(), lg)
	if err != nil {
		return nil, err
	}
	loop.SetField(field)
	if err := loop.SetTrack(ref); err != nil {
		return nil, err
	}

	integ, err := integrators.New(cfg.Sim.Integrator)
	if err != nil {
		return nil, err
	}
	v := sim.NewVehicle(cfg.Vehicle.Wheelbase, cfg.Vehicle.MaxSteerAngle, cfg.Sim.SteerLag)
	s := sim.New(v, integ, loop, lg)

	snap := storage.NewFieldSnapshot(field, ref, cfg.TurnConfig().PassWidth())
	for _, m := range metrics.Standard() {
		s.AddMetric(m)
	}
	s.AddObserver(storage.NewTurnRecorder(loop.Planner(), snap))

	return &rig{cfg: cfg, loop: loop, sim: s, field: snap}, nil
}

func (r *rig) metadata() storage.RunMetadata {
	return storage.RunMetadata{
		Name:       r.cfg.Name,
		Law:        r.cfg.Guidance.Law,
		Integrator: r.cfg.Sim.Integrator,
		Seed:       r.cfg.Sim.Seed,
		Dt:         r.cfg.Sim.Dt,
		Duration:   r.cfg.Sim.Duration,
		Speed:      r.cfg.Sim.Speed,
	}
}
