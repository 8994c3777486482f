package guidance

import (
	"math"

	"github.com/san-kum/agsteer/internal/geo"
	"github.com/san-kum/agsteer/internal/track"
)

const (
	// integral accumulation per tick, matching a ~25 Hz fix rate
	integralRate = 0.04

	// below these speeds Stanley's cross-track term is floored and the
	// integral holds
	minStanleySpeed  = 0.5
	minIntegralSpeed = 0.5
)

// Compute runs one guidance step. It is pure apart from threading
// in.Previous into Output.NewState and does not mutate the track.
func Compute(in Input) (Output, error) {
	if err := checkInput(in); err != nil {
		return Output{}, err
	}

	pts := in.Track.Points
	n := len(pts)
	view := pts
	if !in.HeadingSameWay {
		view = reversePoints(pts)
	}
	toStored := func(i int) int {
		if in.HeadingSameWay {
			return i
		}
		return n - 1 - i
	}

	axle := in.SteerAxle.XY()

	nearest := -1
	if in.Previous != nil && !in.FindGlobalNearest {
		nearest = windowNearest(view, axle, toStored(in.Previous.Index), in.Params.SearchWindow)
	}
	if nearest < 0 {
		nearest = globalNearest(view, axle)
	}

	seg, q := nearestSegment(view, axle, nearest)
	segHeading := geo.HeadingBetween(view[seg].XY(), view[seg+1].XY())

	xte := geo.SignedDistance(axle, view[seg].XY(), segHeading)
	goal := walkForward(view, seg, q, in.LookAhead)

	out := Output{
		CrossTrackError: xte,
		NearestIndex:    toStored(nearest),
		GoalPoint:       goal,
		HeadingError:    geo.AngleDiff(in.SteerAxle.Heading, segHeading),
		DistanceToEnd:   remaining(view, seg, q),
	}

	st := State{Index: out.NearestIndex}
	if in.Previous != nil {
		st.Integral = in.Previous.Integral
	}

	var delta float64
	switch in.Law {
	case Stanley:
		speed := math.Max(math.Abs(in.Speed), minStanleySpeed)
		delta = -(in.Params.StanleyHeadingGain*out.HeadingError + math.Atan2(in.Params.StanleyGain*xte, speed))
		delta = geo.Degrees(delta)
		st.Integral = 0
	default:
		alpha := geo.AngleDiff(geo.HeadingBetween(axle, goal), in.SteerAxle.Heading)
		delta = geo.Degrees(math.Atan2(2*in.Wheelbase*math.Sin(alpha), in.LookAhead))
		st.Integral = nextIntegral(in, st.Integral, xte)
		delta += st.Integral
	}

	if in.IMURoll != RollUnavailable && in.Params.SideHillCompFactor != 0 && !math.IsNaN(in.IMURoll) {
		delta -= in.IMURoll * in.Params.SideHillCompFactor
	}

	if in.IsReverse {
		delta = -delta
	}

	out.SteerAngle = clamp(delta, in.MaxSteerAngle)
	out.NewState = st
	return out, nil
}

// FollowPath steers along a generated path such as a turn. The path is
// always driven in its stored direction with Pure Pursuit.
func FollowPath(path []geo.Vec3, in Input) (Output, error) {
	in.Track = &track.Track{Name: "path", Points: path, Kind: track.Curve}
	in.HeadingSameWay = true
	in.Law = PurePursuit
	in.Params.PurePursuitIntegralGain = 0
	return Compute(in)
}

func checkInput(in Input) error {
	if in.Track == nil || len(in.Track.Points) == 0 {
		return ErrDegenerateTrack
	}
	if len(in.Track.Points) == 1 {
		return &TrackError{Index: 0, Reason: "single point track", Err: ErrPreconditionViolation}
	}
	if in.Wheelbase <= 0 || in.MaxSteerAngle <= 0 {
		return &TrackError{Index: -1, Reason: "non-positive vehicle geometry", Err: ErrPreconditionViolation}
	}
	if in.Law == PurePursuit && in.LookAhead <= 0 {
		return &TrackError{Index: -1, Reason: "non-positive look-ahead", Err: ErrPreconditionViolation}
	}
	if !in.SteerAxle.XY().IsFinite() {
		return &TrackError{Index: -1, Reason: "non-finite pose", Err: ErrPreconditionViolation}
	}
	pts := in.Track.Points
	for i := 1; i < len(pts); i++ {
		if pts[i].XY().DistSq(pts[i-1].XY()) < 1e-12 {
			return &TrackError{Index: i - 1, Reason: "zero-length segment", Err: ErrDegenerateTrack}
		}
	}
	return nil
}

func reversePoints(pts []geo.Vec3) []geo.Vec3 {
	n := len(pts)
	out := make([]geo.Vec3, n)
	for i, p := range pts {
		p.Heading = geo.NormalizeHeading(p.Heading + math.Pi)
		out[n-1-i] = p
	}
	return out
}

func globalNearest(pts []geo.Vec3, p geo.Vec2) int {
	best, idx := math.Inf(1), 0
	for i, q := range pts {
		if d := q.XY().DistSq(p); d < best {
			best, idx = d, i
		}
	}
	return idx
}

// windowNearest scans around prev. It returns -1 when prev is out of range
// or the best point sits on the window edge, since the true nearest may
// then lie outside it.
func windowNearest(pts []geo.Vec3, p geo.Vec2, prev, window int) int {
	n := len(pts)
	if prev < 0 || prev >= n || window <= 0 {
		return -1
	}
	lo, hi := max(prev-window, 0), min(prev+window, n-1)
	best, idx := math.Inf(1), -1
	for i := lo; i <= hi; i++ {
		if d := pts[i].XY().DistSq(p); d < best {
			best, idx = d, i
		}
	}
	if (idx == lo && lo > 0) || (idx == hi && hi < n-1) {
		return -1
	}
	return idx
}

// nearestSegment picks the segment adjacent to vertex i that p projects
// closest to. It returns the segment start and the projected point.
func nearestSegment(pts []geo.Vec3, p geo.Vec2, i int) (int, geo.Vec2) {
	n := len(pts)
	seg, best := -1, math.Inf(1)
	var q geo.Vec2
	if i > 0 {
		c, _ := geo.ProjectOnSegment(p, pts[i-1].XY(), pts[i].XY())
		seg, best, q = i-1, c.DistSq(p), c
	}
	if i < n-1 {
		c, _ := geo.ProjectOnSegment(p, pts[i].XY(), pts[i+1].XY())
		if d := c.DistSq(p); d < best {
			seg, q = i, c
		}
	}
	return seg, q
}

// walkForward returns the point dist metres ahead of q along the track,
// or the last point if the track ends first.
func walkForward(pts []geo.Vec3, seg int, q geo.Vec2, dist float64) geo.Vec2 {
	left := dist
	from := q
	for i := seg + 1; i < len(pts); i++ {
		to := pts[i].XY()
		d := from.Dist(to)
		if d >= left {
			if d == 0 {
				return to
			}
			return geo.Lerp(from, to, left/d)
		}
		left -= d
		from = to
	}
	return pts[len(pts)-1].XY()
}

func remaining(pts []geo.Vec3, seg int, q geo.Vec2) float64 {
	total := q.Dist(pts[seg+1].XY())
	for i := seg + 2; i < len(pts); i++ {
		total += pts[i].XY().Dist(pts[i-1].XY())
	}
	return total
}

func nextIntegral(in Input, integral, xte float64) float64 {
	gain := in.Params.PurePursuitIntegralGain
	if gain <= 0 || !in.AutoSteerOn {
		return 0
	}
	if in.IsReverse {
		return integral
	}
	if math.Abs(xte) >= in.Params.IntegralWindow {
		return 0
	}
	if math.Abs(in.Speed) < minIntegralSpeed {
		return integral
	}
	integral -= xte * gain * integralRate
	limit := in.Params.IntegralLimit
	if limit > 0 {
		integral = math.Max(-limit, math.Min(limit, integral))
	}
	return integral
}

func clamp(v, limit float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-limit, math.Min(limit, v))
}

// ScaledLookAhead returns speed*holdSeconds bounded to [min, max].
func ScaledLookAhead(speed, holdSeconds, minDist, maxDist float64) float64 {
	ld := math.Abs(speed) * holdSeconds
	if ld < minDist {
		ld = minDist
	}
	if maxDist > minDist && ld > maxDist {
		ld = maxDist
	}
	return ld
}
