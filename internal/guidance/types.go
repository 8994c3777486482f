package guidance

import (
	"fmt"

	"github.com/san-kum/agsteer/internal/geo"
	"github.com/san-kum/agsteer/internal/track"
)

type Law int

const (
	PurePursuit Law = iota
	Stanley
)

func (l Law) String() string {
	switch l {
	case PurePursuit:
		return "pure_pursuit"
	case Stanley:
		return "stanley"
	default:
		return fmt.Sprintf("law(%d)", int(l))
	}
}

func ParseLaw(s string) (Law, error) {
	switch s {
	case "pure_pursuit", "purepursuit", "pp":
		return PurePursuit, nil
	case "stanley":
		return Stanley, nil
	}
	return 0, fmt.Errorf("unknown control law: %s", s)
}

// RollUnavailable is the IMU roll sentinel meaning no roll is known.
const RollUnavailable = 88888.0

type Params struct {
	// Pure Pursuit integral, in degrees per metre of cross-track error per tick.
	PurePursuitIntegralGain float64

	// Integral only runs while |xte| is below this many metres.
	IntegralWindow float64

	// Integral clamp in degrees.
	IntegralLimit float64

	StanleyGain        float64
	StanleyHeadingGain float64

	// Degrees of steer per degree of roll.
	SideHillCompFactor float64

	// Half-width in points of the local nearest-point search.
	SearchWindow int
}

func DefaultParams() Params {
	return Params{
		PurePursuitIntegralGain: 0,
		IntegralWindow:          1.0,
		IntegralLimit:           3.0,
		StanleyGain:             0.8,
		StanleyHeadingGain:      1.0,
		SideHillCompFactor:      0,
		SearchWindow:            10,
	}
}

// State is carried from one computation to the next. A nil *State forces a
// full nearest-point search; callers drop it whenever the track changes.
type State struct {
	Index    int
	Integral float64
}

type Input struct {
	Track *track.Track
	Pivot geo.Vec3

	// SteerAxle is the pivot projected forward by the wheelbase.
	SteerAxle geo.Vec3

	Law            Law
	HeadingSameWay bool

	Wheelbase     float64
	MaxSteerAngle float64 // degrees
	LookAhead     float64 // metres
	Speed         float64 // m/s
	Params        Params

	Previous          *State
	FindGlobalNearest bool

	IsReverse   bool
	AutoSteerOn bool

	// IMURoll in degrees, or RollUnavailable.
	IMURoll float64
}

type Output struct {
	// SteerAngle in degrees, positive steers right, clamped to the max.
	SteerAngle float64

	// CrossTrackError in metres, positive when right of the direction of travel.
	CrossTrackError float64

	NewState State

	// NearestIndex is in the track's stored order.
	NearestIndex int
	GoalPoint    geo.Vec2

	// HeadingError is vehicle minus local track heading, radians in (-π, π].
	HeadingError  float64
	DistanceToEnd float64
}

// SteerAxle projects the pivot forward by the wheelbase.
func SteerAxle(pivot geo.Vec3, wheelbase float64) geo.Vec3 {
	return geo.Forward(pivot.XY(), pivot.Heading, wheelbase).WithHeading(pivot.Heading)
}
