package uturn

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/agsteer/internal/boundary"
	"github.com/san-kum/agsteer/internal/geo"
	"github.com/san-kum/agsteer/internal/guidance"
	"github.com/san-kum/agsteer/internal/track"
)

var (
	// ErrBoundaryUnavailable means the headland could not be used to shape a
	// turn. The planner recovers with the pose-based path.
	ErrBoundaryUnavailable = errors.New("uturn: boundary unavailable")

	// ErrPathTooShort is returned when a generated path has too few points.
	ErrPathTooShort = errors.New("uturn: generated path too short")
)

// Phase is one of Idle, Approaching, PathReady or Executing.
type Phase interface {
	fmt.Stringer
	isPhase()
}

type Idle struct{}

// Approaching counts consecutive ticks with the headland far enough away
// to build a turn. Missed is set after driving past a planned turn.
type Approaching struct {
	Ticks  int
	Missed bool
}

type PathReady struct {
	TurnLeft bool
}

// Executing records the travel direction at the moment the turn began,
// since it flips halfway through the turn.
type Executing struct {
	StartedSameWay bool
	TurnLeft       bool
}

func (Idle) isPhase()        {}
func (Approaching) isPhase() {}
func (PathReady) isPhase()   {}
func (Executing) isPhase()   {}

func (Idle) String() string        { return "idle" }
func (Approaching) String() string { return "approaching" }
func (PathReady) String() string   { return "path_ready" }
func (Executing) String() string   { return "executing" }

type Status int

const (
	StatusIdle Status = iota
	StatusApproaching
	StatusPathReady
	StatusTriggered
	StatusExecuting
	StatusCompleted
	StatusEndOfField
	// StatusTurnMissed means a planned turn was driven past and the
	// headland is now too close to build another.
	StatusTurnMissed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusApproaching:
		return "approaching"
	case StatusPathReady:
		return "path_ready"
	case StatusTriggered:
		return "triggered"
	case StatusExecuting:
		return "executing"
	case StatusCompleted:
		return "completed"
	case StatusEndOfField:
		return "end_of_field"
	case StatusTurnMissed:
		return "turn_missed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Steering reports whether the planner supplied the steering command.
func (s Status) Steering() bool {
	return s == StatusTriggered || s == StatusExecuting
}

type Config struct {
	ToolWidth float64
	Overlap   float64
	RowSkip   int

	TurnRadius    float64
	MinTurnRadius float64
	EntryLength   float64
	PointSpacing  float64

	SmoothingPasses int
	MinPathPoints   int

	MinCreateDistance  float64
	DebounceTicks      int
	TriggerDistance    float64
	CompleteDistance   float64
	MinTravelFromStart float64

	// AlignTolerance in radians, forward or reverse.
	AlignTolerance float64

	StartLeft          bool
	AlternateDirection bool

	// InvalidateOnMisalign drops a ready path when the vehicle stops
	// tracking the row before reaching it.
	InvalidateOnMisalign bool
}

func DefaultConfig() Config {
	return Config{
		ToolWidth:            6,
		Overlap:              0,
		RowSkip:              1,
		TurnRadius:           3,
		MinTurnRadius:        2,
		EntryLength:          10,
		PointSpacing:         0.5,
		SmoothingPasses:      2,
		MinPathPoints:        10,
		MinCreateDistance:    30,
		DebounceTicks:        4,
		TriggerDistance:      2,
		CompleteDistance:     2,
		MinTravelFromStart:   5,
		AlignTolerance:       geo.Radians(20),
		AlternateDirection:   true,
		InvalidateOnMisalign: false,
	}
}

// PassWidth is the lateral step of one paths-away unit.
func (c Config) PassWidth() float64 {
	return c.ToolWidth - c.Overlap
}

// RowSpacing is the lateral distance between the rows a turn connects.
func (c Config) RowSpacing() float64 {
	return float64(c.RowSkip) * c.PassWidth()
}

func (c Config) radius() float64 {
	return math.Max(c.TurnRadius, c.MinTurnRadius)
}

func (c Config) Validate() error {
	if c.ToolWidth <= 0 {
		return fmt.Errorf("tool width must be positive, got %f", c.ToolWidth)
	}
	if c.Overlap < 0 || c.Overlap >= c.ToolWidth {
		return fmt.Errorf("overlap must be in [0, tool width), got %f", c.Overlap)
	}
	if c.RowSkip < 1 {
		return fmt.Errorf("row skip must be at least 1, got %d", c.RowSkip)
	}
	if c.radius() <= 0 {
		return fmt.Errorf("turn radius must be positive, got %f", c.TurnRadius)
	}
	if c.PointSpacing <= 0 {
		return fmt.Errorf("point spacing must be positive, got %f", c.PointSpacing)
	}
	if c.EntryLength <= 0 {
		return fmt.Errorf("entry length must be positive, got %f", c.EntryLength)
	}
	if c.DebounceTicks < 1 {
		return fmt.Errorf("debounce ticks must be at least 1, got %d", c.DebounceTicks)
	}
	return nil
}

type Input struct {
	Pivot geo.Vec3
	// Track is the row currently being followed.
	Track *track.Track
	Field boundary.Field
	// Vehicle carries wheelbase, limits, look-ahead and gains used to
	// follow the turn path. Pose fields are filled in by the planner.
	Vehicle guidance.Input
}

type Result struct {
	Status Status
	// Steer is set while the planner is steering.
	Steer              *guidance.Output
	DistanceToHeadland float64
	Path               []geo.Vec3
	PathsAway          int
}

// State is a snapshot of the planner.
type State struct {
	Phase              Phase
	Path               []geo.Vec3
	DistanceToHeadland float64
	NextTurnLeft       bool
	PathsAway          int
	NextPathsAway      int
	EndOfField         bool
	UsedFallback       bool
}
