package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/san-kum/agsteer/internal/autosteer"
	"github.com/san-kum/agsteer/internal/geo"
	"github.com/san-kum/agsteer/internal/guidance"
	"github.com/san-kum/agsteer/internal/logging"
	"github.com/san-kum/agsteer/internal/uturn"
)

// Simulator drives a guidance loop with a vehicle model in place of a
// GNSS receiver and steering controller.
type Simulator struct {
	vehicle    *Vehicle
	integrator Integrator
	loop       *autosteer.Loop
	metrics    []Metric
	observers  []Observer
	log        *logging.Logger
}

func New(v *Vehicle, integrator Integrator, loop *autosteer.Loop, lg *logging.Logger) *Simulator {
	return &Simulator{
		vehicle:    v,
		integrator: integrator,
		loop:       loop,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
		log:        lg,
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) Loop() *autosteer.Loop { return s.loop }

// StartState places the vehicle relative to the first point of the loop's
// reference track.
func (s *Simulator) StartState(cfg Config) (State, error) {
	t := s.loop.Reference()
	if t == nil || t.Len() == 0 {
		return nil, autosteer.ErrNoTrack
	}
	p0 := t.Points[0]
	pos := geo.Forward(p0.XY(), p0.Heading, cfg.StartAlong)
	pos = geo.Offset(pos, p0.Heading, cfg.StartOffset)
	h := geo.NormalizeHeading(p0.Heading + geo.Radians(cfg.StartHeadingError))
	return s.vehicle.InitState(pos.WithHeading(h)), nil
}

func validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f", cfg.Duration)
	}
	if cfg.PositionNoise < 0 {
		return fmt.Errorf("position noise must not be negative, got %f", cfg.PositionNoise)
	}
	return nil
}

// Session is a field pass in progress, advanced one tick at a time.
type Session struct {
	sim    *Simulator
	cfg    Config
	x      State
	t      float64
	step   int
	steps  int
	noise  *distuv.Normal
	result *Result
	done   bool
}

// Start returns the loop to the reference row, engages it and places the
// vehicle for a new pass.
func (s *Simulator) Start(cfg Config) (*Session, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	x, err := s.StartState(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.loop.SetTrack(s.loop.Reference()); err != nil {
		return nil, err
	}

	steps := int(math.Round(cfg.Duration / cfg.Dt))
	result := &Result{
		Samples: make([]Sample, 0, steps),
		Metrics: make(map[string]float64),
		Stopped: StopDuration,
	}
	ss := &Session{sim: s, cfg: cfg, x: x, steps: steps, result: result}
	if cfg.PositionNoise > 0 {
		ss.noise = &distuv.Normal{
			Mu:    0,
			Sigma: cfg.PositionNoise,
			Src:   rand.NewPCG(uint64(cfg.Seed), 0x9e3779b97f4a7c15),
		}
	}
	for _, m := range s.metrics {
		m.Reset()
	}
	s.loop.Engage(true)
	s.log.Info("field pass started",
		slog.Float64("dt", cfg.Dt),
		slog.Float64("duration", cfg.Duration),
		slog.Float64("speed", cfg.Speed))
	return ss, nil
}

func (ss *Session) Done() bool    { return ss.done }
func (ss *Session) Time() float64 { return ss.t }
func (ss *Session) State() State  { return ss.x.Clone() }

func (ss *Session) Progress() float64 {
	if ss.steps == 0 {
		return 1
	}
	return float64(ss.step) / float64(ss.steps)
}

// Step runs one guidance tick and integrates the vehicle over dt. It
// returns false once the pass has ended.
func (ss *Session) Step() (Sample, bool, error) {
	if ss.done {
		return Sample{}, false, nil
	}
	if ss.step >= ss.steps {
		ss.finish()
		return Sample{}, false, nil
	}
	s, cfg, x := ss.sim, ss.cfg, ss.x

	pose := autosteer.Pose{
		Easting:  x[IdxEasting],
		Northing: x[IdxNorthing],
		Heading:  geo.NormalizeHeading(x[IdxHeading]),
		Speed:    cfg.Speed,
		Roll:     guidance.RollUnavailable,
	}
	if ss.noise != nil {
		pose.Easting += ss.noise.Rand()
		pose.Northing += ss.noise.Rand()
	}

	cmd, err := s.loop.Tick(pose)
	if err != nil {
		ss.done = true
		return Sample{}, false, SimError{Time: ss.t, Step: ss.step, Message: err.Error()}
	}

	sample := Sample{
		T:           ss.t,
		Pose:        pose,
		SteerCmd:    cmd.SteerAngle,
		SteerActual: geo.Degrees(s.vehicle.limit(x[IdxSteer])),
		XTE:         cmd.CrossTrackError,
		Status:      cmd.Status,
		PathsAway:   cmd.PathsAway,
		Held:        cmd.Held,
	}
	ss.result.Samples = append(ss.result.Samples, sample)
	for _, m := range s.metrics {
		m.Observe(sample)
	}
	for _, obs := range s.observers {
		obs.OnStep(sample)
	}

	if cfg.StopAtEndOfField && cmd.Status == uturn.StatusEndOfField {
		ss.result.Stopped = StopEndOfField
		ss.finish()
		return sample, true, nil
	}

	u := Control{geo.Radians(cmd.SteerAngle), cfg.Speed}
	s.vehicle.Actuate(x, u)
	next := s.integrator.Step(s.vehicle, x, u, ss.t, cfg.Dt)
	if !next.IsValid() {
		ss.done = true
		return sample, false, SimError{Time: ss.t, Step: ss.step, Message: "invalid state (NaN/Inf)"}
	}
	ss.x = next
	ss.t += cfg.Dt
	ss.step++
	ss.result.StepsTaken++

	outer := s.loop.Field().Outer
	if outer.Usable() && !outer.Contains(geo.Vec2{Easting: next[IdxEasting], Northing: next[IdxNorthing]}) {
		ss.result.Stopped = StopLeftField
		ss.finish()
	}
	return sample, true, nil
}

func (ss *Session) finish() {
	if ss.done {
		return
	}
	ss.done = true
	for _, m := range ss.sim.metrics {
		ss.result.Metrics[m.Name()] = m.Value()
	}
	ss.sim.log.Info("field pass finished",
		slog.Int("steps", ss.result.StepsTaken),
		slog.String("stopped", string(ss.result.Stopped)))
}

// Result is complete once Done reports true.
func (ss *Session) Result() *Result { return ss.result }

// Run engages the loop and steps until the duration elapses, the vehicle
// leaves the outer boundary, or no further row fits.
func (s *Simulator) Run(ctx context.Context, cfg Config) (*Result, error) {
	ss, err := s.Start(cfg)
	if err != nil {
		return nil, err
	}
	for {
		select {
		case <-ctx.Done():
			return ss.result, ctx.Err()
		default:
		}
		_, ok, err := ss.Step()
		if err != nil {
			return ss.result, err
		}
		if !ok || ss.done {
			return ss.result, nil
		}
	}
}

// RunWithCallback hands each sample to callback, which returns false to
// stop early.
func (s *Simulator) RunWithCallback(ctx context.Context, cfg Config, callback func(Sample) bool) error {
	ss, err := s.Start(cfg)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		smp, ok, err := ss.Step()
		if err != nil {
			return err
		}
		if !ok || !callback(smp) || ss.Done() {
			return nil
		}
	}
}
