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

// Planner watches the distance to the headland, builds a U-turn before it
// and steers through it, then moves on to the next row. Not safe for
// concurrent use; the owner serialises Process calls.
type Planner struct {
	cfg Config

	phase    Phase
	path     []geo.Vec3
	distance float64
	turnLeft bool

	pathsAway     int
	nextPathsAway int
	endOfField    bool
	usedFallback  bool

	pathState *guidance.State
}

func NewPlanner(cfg Config) (*Planner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Planner{cfg: cfg}
	p.Reset()
	return p, nil
}

func (p *Planner) Config() Config { return p.cfg }

// SetConfig takes effect on the next tick. A ready path built with the old
// geometry is dropped.
func (p *Planner) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	p.cfg = cfg
	if _, ok := p.phase.(PathReady); ok {
		p.dropPath()
	}
	return nil
}

func (p *Planner) State() State {
	var path []geo.Vec3
	if p.path != nil {
		path = make([]geo.Vec3, len(p.path))
		copy(path, p.path)
	}
	return State{
		Phase:              p.phase,
		Path:               path,
		DistanceToHeadland: p.distance,
		NextTurnLeft:       p.turnLeft,
		PathsAway:          p.pathsAway,
		NextPathsAway:      p.nextPathsAway,
		EndOfField:         p.endOfField,
		UsedFallback:       p.usedFallback,
	}
}

func (p *Planner) PathsAway() int { return p.pathsAway }

// SetPathsAway jumps to another row. Any planned or running turn is
// abandoned.
func (p *Planner) SetPathsAway(n int) {
	p.Cancel()
	p.pathsAway = n
	p.nextPathsAway = n
}

// CurrentTrack is the reference line shifted to the row being worked.
func (p *Planner) CurrentTrack(ref *track.Track) *track.Track {
	return ref.Offset(float64(p.pathsAway) * p.cfg.PassWidth())
}

// Cancel abandons the current turn. The row count is kept.
func (p *Planner) Cancel() {
	p.phase = Idle{}
	p.path = nil
	p.pathState = nil
	p.distance = math.Inf(1)
	p.nextPathsAway = p.pathsAway
	p.usedFallback = false
}

// Reset starts a new field pass on the reference row.
func (p *Planner) Reset() {
	p.Cancel()
	p.pathsAway = 0
	p.nextPathsAway = 0
	p.endOfField = false
	p.turnLeft = p.cfg.StartLeft
}

// SwapDirection flips the side of the next turn. It has no effect on a
// turn already under way.
func (p *Planner) SwapDirection() {
	if _, ok := p.phase.(Executing); ok {
		return
	}
	p.turnLeft = !p.turnLeft
	p.endOfField = false
	if _, ok := p.phase.(PathReady); ok {
		p.dropPath()
	}
}

func (p *Planner) dropPath() {
	p.path = nil
	p.usedFallback = false
	p.phase = Approaching{}
}

// Process advances the state machine by one tick.
func (p *Planner) Process(in Input) (Result, error) {
	if in.Track == nil || len(in.Track.Points) < 2 {
		n := 0
		if in.Track != nil {
			n = len(in.Track.Points)
		}
		return Result{}, &guidance.TrackError{Index: n, Reason: "turn planning needs a track of 2 or more points", Err: guidance.ErrPreconditionViolation}
	}

	if ex, ok := p.phase.(Executing); ok {
		return p.execute(in, ex)
	}

	idx := in.Track.NearestIndex(in.Pivot.XY())
	trackHeading := in.Track.Points[idx].Heading
	aligned, sameWay := geo.IsAligned(in.Pivot.Heading, trackHeading, p.cfg.AlignTolerance)
	travel := trackHeading
	if !sameWay {
		travel = geo.NormalizeHeading(trackHeading + math.Pi)
	}

	p.distance = math.Inf(1)
	if aligned {
		p.distance = headlandDistance(in.Field, in.Pivot.XY(), travel)
	}

	res := Result{DistanceToHeadland: p.distance, PathsAway: p.pathsAway}

	if p.endOfField {
		p.phase = Idle{}
		res.Status = StatusEndOfField
		return res, nil
	}

	switch ph := p.phase.(type) {
	case Idle:
		if !aligned || math.IsInf(p.distance, 1) {
			res.Status = StatusIdle
			return res, nil
		}
		p.phase = Approaching{}
		return p.approach(in, res, Approaching{}, travel)

	case Approaching:
		if !aligned || math.IsInf(p.distance, 1) {
			p.phase = Idle{}
			res.Status = StatusIdle
			return res, nil
		}
		return p.approach(in, res, ph, travel)

	case PathReady:
		return p.ready(in, res, ph, aligned, sameWay, travel)
	}

	res.Status = StatusIdle
	return res, nil
}

func (p *Planner) approach(in Input, res Result, ph Approaching, travel float64) (Result, error) {
	res.Status = StatusApproaching
	if p.distance <= p.cfg.MinCreateDistance {
		p.phase = Approaching{Missed: ph.Missed}
		if ph.Missed {
			res.Status = StatusTurnMissed
		}
		return res, nil
	}
	ph.Missed = false
	ph.Ticks++
	if ph.Ticks < p.cfg.DebounceTicks {
		p.phase = ph
		return res, nil
	}

	rowPoint := projectOnRow(in.Track, in.Pivot.XY(), travel)
	if !p.nextRowInField(in.Field, rowPoint, travel) {
		p.endOfField = true
		p.phase = Idle{}
		res.Status = StatusEndOfField
		return res, nil
	}

	path, fallback, err := p.buildPath(in.Field, rowPoint, travel)
	if err != nil {
		// try again after another full debounce
		p.phase = Approaching{}
		return res, nil
	}

	p.path = path
	p.usedFallback = fallback
	p.pathState = nil
	p.phase = PathReady{TurnLeft: p.turnLeft}
	res.Status = StatusPathReady
	res.Path = path
	return res, nil
}

func (p *Planner) buildPath(field boundary.Field, rowPoint geo.Vec2, travel float64) ([]geo.Vec3, bool, error) {
	path, err := p.cfg.BoundaryPath(field, rowPoint, travel, p.turnLeft)
	if err == nil {
		return path, false, nil
	}
	if !errors.Is(err, ErrBoundaryUnavailable) {
		return nil, false, err
	}
	// laid out along the row so heading error at planning time does not
	// swing the far end of the path
	d := headlandDistance(field, rowPoint, travel)
	if math.IsInf(d, 1) {
		d = p.distance
	}
	path, err = p.cfg.SimplePath(rowPoint, travel, d, p.turnLeft)
	if err != nil {
		return nil, false, fmt.Errorf("fallback turn: %w", err)
	}
	return path, true, nil
}

func (p *Planner) ready(in Input, res Result, ph PathReady, aligned, sameWay bool, travel float64) (Result, error) {
	res.Path = p.path
	if !aligned && p.cfg.InvalidateOnMisalign {
		p.path = nil
		p.phase = Idle{}
		res.Path = nil
		res.Status = StatusIdle
		return res, nil
	}

	start := p.path[0].XY()
	pos := in.Pivot.XY()
	if pos.Dist(start) <= p.cfg.TriggerDistance {
		ex := Executing{StartedSameWay: sameWay, TurnLeft: ph.TurnLeft}
		p.nextPathsAway = p.pathsAway + offsetStep(ex, p.cfg.RowSkip)
		p.phase = ex
		p.pathState = nil
		out, err := p.execute(in, ex)
		if out.Status == StatusExecuting {
			out.Status = StatusTriggered
		}
		return out, err
	}

	// drove past the start without reaching it
	if aligned && geo.AlongDistance(start, pos, travel) < -p.cfg.TriggerDistance {
		p.dropPath()
		p.phase = Approaching{Missed: true}
		res.Path = nil
		res.Status = StatusTurnMissed
		return res, nil
	}

	res.Status = StatusPathReady
	return res, nil
}

func (p *Planner) execute(in Input, ex Executing) (Result, error) {
	pos := in.Pivot.XY()
	dFirst := pos.Dist(p.path[0].XY())
	dLast := pos.Dist(p.path[len(p.path)-1].XY())

	res := Result{DistanceToHeadland: math.Inf(1), PathsAway: p.pathsAway, Path: p.path}

	if dLast < p.cfg.CompleteDistance && dLast < dFirst && dFirst >= p.cfg.MinTravelFromStart {
		p.pathsAway = p.nextPathsAway
		p.path = nil
		p.pathState = nil
		p.usedFallback = false
		p.phase = Idle{}
		if p.cfg.AlternateDirection {
			p.turnLeft = !p.turnLeft
		}
		res.Status = StatusCompleted
		res.PathsAway = p.pathsAway
		res.Path = nil
		return res, nil
	}

	g := in.Vehicle
	g.Pivot = in.Pivot
	g.SteerAxle = guidance.SteerAxle(in.Pivot, g.Wheelbase)
	g.Previous = p.pathState
	g.FindGlobalNearest = p.pathState == nil
	out, err := guidance.FollowPath(p.path, g)
	if err != nil {
		return res, err
	}
	st := out.NewState
	p.pathState = &st

	res.Status = StatusExecuting
	res.Steer = &out
	return res, nil
}

// offsetStep applies the row-advance sign rule: turning left while
// travelling with the line, or right against it, moves to a row left of
// the line.
func offsetStep(ex Executing, rowSkip int) int {
	if ex.TurnLeft != ex.StartedSameWay {
		return rowSkip
	}
	return -rowSkip
}

// nextRowInField checks the row the turn leads onto. With a headland the
// row must lie inside it too: a row in the headland band never meets the
// headland line, so no turn could be planned at its far end.
func (p *Planner) nextRowInField(field boundary.Field, rowPoint geo.Vec2, travel float64) bool {
	next := geo.Offset(rowPoint, travel, sideOf(p.turnLeft)*p.cfg.RowSpacing())
	if field.Outer.Usable() && !field.Outer.Contains(next) {
		return false
	}
	if field.Headland.Usable() {
		return field.Headland.Contains(next)
	}
	return true
}

// headlandDistance measures to the headland line, falling back to the
// outer boundary when no headland exists.
func headlandDistance(field boundary.Field, pos geo.Vec2, h float64) float64 {
	if field.Headland.Usable() {
		return field.Headland.DistanceAlong(pos, h)
	}
	return field.Outer.DistanceAlong(pos, h)
}

func projectOnRow(t *track.Track, p geo.Vec2, h float64) geo.Vec2 {
	i := t.NearestIndex(p)
	base := t.Points[i].XY()
	return geo.Offset(p, h, -geo.SignedDistance(p, base, h))
}
