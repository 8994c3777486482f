package sim

import (
	"fmt"
	"math"

	"github.com/san-kum/agsteer/internal/autosteer"
	"github.com/san-kum/agsteer/internal/uturn"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type Control []float64

type Dynamics interface {
	Derivative(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

type Integrator interface {
	Step(dyn Dynamics, x State, u Control, t float64, dt float64) State
}

// Sample is one recorded tick of a field pass.
type Sample struct {
	T    float64
	Pose autosteer.Pose
	// Commanded and actual wheel angle in degrees.
	SteerCmd    float64
	SteerActual float64
	XTE         float64

	Status    uturn.Status
	PathsAway int
	Held      bool
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(s Sample)
}

type Config struct {
	Dt       float64
	Duration float64
	// Speed in m/s, negative to reverse down the row.
	Speed float64

	StartAlong        float64
	StartOffset       float64
	StartHeadingError float64 // degrees

	// PositionNoise is the standard deviation in metres added to each
	// easting and northing fix.
	PositionNoise float64
	Seed          int64

	// StopAtEndOfField ends the run once no further row fits.
	StopAtEndOfField bool
}

func DefaultConfig() Config {
	return Config{
		Dt:               0.1,
		Duration:         120,
		Speed:            2.5,
		StartAlong:       25,
		Seed:             1,
		StopAtEndOfField: true,
	}
}

type StopReason string

const (
	StopDuration   StopReason = "duration"
	StopEndOfField StopReason = "end_of_field"
	StopLeftField  StopReason = "left_field"
)

type Result struct {
	Samples    []Sample
	Metrics    map[string]float64
	StepsTaken int
	Stopped    StopReason
}

type SimError struct {
	Time    float64
	Step    int
	Message string
}

func (e SimError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %s", e.Step, e.Time, e.Message)
}
