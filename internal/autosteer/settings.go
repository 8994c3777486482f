// Package autosteer owns the per-tick guidance cycle: it takes a pose,
// runs the turn planner and the guidance engine, and sends the resulting
// steer command to the controller.
package autosteer

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/agsteer/internal/geo"
	"github.com/san-kum/agsteer/internal/guidance"
	"github.com/san-kum/agsteer/internal/pgn"
	"github.com/san-kum/agsteer/internal/uturn"
)

var (
	ErrNoTrack  = errors.New("autosteer: no active track")
	ErrSettings = errors.New("autosteer: invalid settings")
)

// Settings is a read-only snapshot handed to the loop. Changing settings
// means building a new snapshot and calling Loop.Apply.
type Settings struct {
	Law guidance.Law

	Wheelbase     float64 // metres
	MaxSteerAngle float64 // degrees

	// Look-ahead distance is speed times LookAheadHold seconds, kept
	// within [LookAheadMin, LookAheadMax] metres.
	LookAheadHold float64
	LookAheadMin  float64
	LookAheadMax  float64

	Params guidance.Params

	UTurn bool
	Turn  uturn.Config

	SteerSettings pgn.SteerSettings
	SteerConfig   pgn.SteerConfig
}

func DefaultSettings() Settings {
	return Settings{
		Law:           guidance.PurePursuit,
		Wheelbase:     2.5,
		MaxSteerAngle: 35,
		LookAheadHold: 1.5,
		LookAheadMin:  2,
		LookAheadMax:  10,
		Params:        guidance.DefaultParams(),
		UTurn:         true,
		Turn:          uturn.DefaultConfig(),
		SteerSettings: pgn.SteerSettings{
			Kp:              40,
			HighPWM:         235,
			LowPWM:          30,
			MinPWM:          25,
			DeadzoneHeading: 0.1,
			DeadzoneDelay:   5,
		},
		SteerConfig: pgn.SteerConfig{
			CountsPerDegree: 110,
			Ackermann:       100,
			PulseCountMax:   3,
			MinSpeed:        1,
		},
	}
}

func (s Settings) Validate() error {
	switch {
	case !(s.Wheelbase > 0):
		return fmt.Errorf("%w: wheelbase %v must be positive", ErrSettings, s.Wheelbase)
	case !(s.MaxSteerAngle > 0) || s.MaxSteerAngle >= 90:
		return fmt.Errorf("%w: max steer angle %v must be in (0, 90)", ErrSettings, s.MaxSteerAngle)
	case !(s.LookAheadMin > 0):
		return fmt.Errorf("%w: minimum look-ahead %v must be positive", ErrSettings, s.LookAheadMin)
	case s.LookAheadHold < 0:
		return fmt.Errorf("%w: look-ahead hold %v must not be negative", ErrSettings, s.LookAheadHold)
	}
	if s.UTurn {
		if err := s.Turn.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrSettings, err)
		}
	}
	return nil
}

// LookAhead is the goal distance for a given speed.
func (s Settings) LookAhead(speed float64) float64 {
	return guidance.ScaledLookAhead(speed, s.LookAheadHold, s.LookAheadMin, s.LookAheadMax)
}

// Pose is one position fix at the vehicle's pivot, usually the rear axle.
type Pose struct {
	Easting  float64
	Northing float64
	// Heading in radians, compass convention.
	Heading float64
	// Speed in m/s, negative when reversing.
	Speed float64
	// Roll in degrees, or guidance.RollUnavailable.
	Roll float64
}

func (p Pose) Vec3() geo.Vec3 {
	return geo.Vec3{Easting: p.Easting, Northing: p.Northing, Heading: p.Heading}
}

// Command is the outcome of one tick.
type Command struct {
	// SteerAngle in degrees, positive right.
	SteerAngle      float64
	CrossTrackError float64
	GoalPoint       geo.Vec2

	// Held is set when geometry was degenerate and the previous command
	// was repeated.
	Held    bool
	Engaged bool

	Status             uturn.Status
	PathsAway          int
	DistanceToHeadland float64
}

func idleCommand() Command {
	return Command{Status: uturn.StatusIdle, DistanceToHeadland: math.Inf(1)}
}
