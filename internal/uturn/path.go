package uturn

import (
	"fmt"
	"math"

	"github.com/san-kum/agsteer/internal/boundary"
	"github.com/san-kum/agsteer/internal/geo"
)

// Turn paths are built in a local frame: x to the right of travel, y
// forward, origin on the current row. A right turn is built and mirrored
// for left turns. Local headings use the compass convention of the frame.

type frame struct {
	origin geo.Vec2
	h      float64
	side   float64 // +1 right, -1 left
}

func (f frame) toWorld(p geo.Vec3) geo.Vec3 {
	w := f.origin.
		Add(geo.HeadingVector(f.h).Scale(p.Northing)).
		Add(geo.RightOf(f.h).Scale(f.side * p.Easting))
	return w.WithHeading(geo.NormalizeHeading(f.h + f.side*p.Heading))
}

type builder struct {
	pts     []geo.Vec3
	spacing float64
}

func (b *builder) add(p geo.Vec3) {
	if n := len(b.pts); n > 0 && b.pts[n-1].XY().Dist(p.XY()) < 1e-6 {
		b.pts[n-1] = p
		return
	}
	b.pts = append(b.pts, p)
}

func (b *builder) line(from, to geo.Vec2) {
	l := from.Dist(to)
	if l == 0 {
		return
	}
	h := geo.HeadingBetween(from, to)
	steps := int(math.Ceil(l / b.spacing))
	for i := 0; i <= steps; i++ {
		b.add(geo.Lerp(from, to, float64(i)/float64(steps)).WithHeading(h))
	}
}

// arc samples the circle of radius r around c from angle a0 to a1, angles
// measured counter-clockwise from +x. ccw selects the travel direction.
func (b *builder) arc(c geo.Vec2, r, a0, a1 float64, ccw bool) {
	sweep := math.Abs(a1 - a0)
	steps := int(math.Ceil(sweep * r / b.spacing))
	if steps < 1 {
		steps = 1
	}
	for i := 0; i <= steps; i++ {
		a := a0 + (a1-a0)*float64(i)/float64(steps)
		p := geo.Vec2{Easting: c.Easting + r*math.Cos(a), Northing: c.Northing + r*math.Sin(a)}
		var h float64
		if ccw {
			h = -a
		} else {
			h = math.Pi - a
		}
		b.add(p.WithHeading(geo.NormalizeHeading(h)))
	}
}

// turnArcs adds the arcs joining (0, e) heading forward to (w, e) heading
// back, turning right with radius r.
func (b *builder) turnArcs(w, r, e float64) {
	const tol = 1e-6
	switch {
	case math.Abs(2*r-w) < tol:
		b.arc(geo.Vec2{Easting: r, Northing: e}, r, math.Pi, 0, false)
	case 2*r < w:
		b.arc(geo.Vec2{Easting: r, Northing: e}, r, math.Pi, math.Pi/2, false)
		b.line(geo.Vec2{Easting: r, Northing: e + r}, geo.Vec2{Easting: w - r, Northing: e + r})
		b.arc(geo.Vec2{Easting: w - r, Northing: e}, r, math.Pi/2, 0, false)
	default:
		// bulb turn: swing out left, loop right over the top, swing back
		half := r + w/2
		rise := math.Sqrt(4*r*r - half*half)
		c1 := geo.Vec2{Easting: -r, Northing: e}
		c2 := geo.Vec2{Easting: w / 2, Northing: e + rise}
		c3 := geo.Vec2{Easting: w + r, Northing: e}
		phi := math.Atan2(rise, half)
		b.arc(c1, r, 0, phi, true)
		b.arc(c2, r, phi-math.Pi, -phi-2*math.Pi, false)
		b.arc(c3, r, math.Pi-phi, math.Pi, true)
	}
}

// buildTurn creates entry leg, arcs and exit leg in the local frame. e is
// the forward distance where the legs meet the arcs.
func buildTurn(w, r, e, entry, spacing float64) []geo.Vec3 {
	b := &builder{spacing: spacing}
	b.line(geo.Vec2{Northing: e - entry}, geo.Vec2{Northing: e})
	b.turnArcs(w, r, e)
	b.line(geo.Vec2{Easting: w, Northing: e}, geo.Vec2{Easting: w, Northing: e - entry})
	return b.pts
}

// smooth averages interior points over three neighbours per pass. The end
// points and their headings stay fixed.
func smooth(pts []geo.Vec3, passes int) []geo.Vec3 {
	n := len(pts)
	if n < 3 || passes <= 0 {
		return pts
	}
	cur := make([]geo.Vec3, n)
	copy(cur, pts)
	next := make([]geo.Vec3, n)
	for p := 0; p < passes; p++ {
		next[0], next[n-1] = cur[0], cur[n-1]
		for i := 1; i < n-1; i++ {
			next[i] = geo.Vec3{
				Easting:  (cur[i-1].Easting + cur[i].Easting + cur[i+1].Easting) / 3,
				Northing: (cur[i-1].Northing + cur[i].Northing + cur[i+1].Northing) / 3,
			}
		}
		cur, next = next, cur
	}
	for i := 1; i < n-1; i++ {
		cur[i].Heading = geo.HeadingBetween(cur[i-1].XY(), cur[i+1].XY())
	}
	return cur
}

func (c Config) finish(f frame, local []geo.Vec3) ([]geo.Vec3, error) {
	out := make([]geo.Vec3, len(local))
	for i, p := range local {
		out[i] = f.toWorld(p)
	}
	out = smooth(out, c.SmoothingPasses)
	if len(out) <= c.MinPathPoints {
		return nil, fmt.Errorf("%w: %d points", ErrPathTooShort, len(out))
	}
	return out, nil
}

// BoundaryPath builds a turn whose legs meet the headland line. rowPoint is
// the vehicle's position projected onto the current row and h the travel
// heading. Both the current and next rows are cast against the headland
// and the turn starts at the further crossing.
func (c Config) BoundaryPath(field boundary.Field, rowPoint geo.Vec2, h float64, turnLeft bool) ([]geo.Vec3, error) {
	if !field.Headland.Usable() {
		return nil, ErrBoundaryUnavailable
	}
	side := sideOf(turnLeft)
	w := c.RowSpacing()

	d1 := field.Headland.DistanceAlong(rowPoint, h)
	next := geo.Offset(rowPoint, h, side*w)
	d2 := field.Headland.DistanceAlong(next, h)
	if math.IsInf(d1, 1) || math.IsInf(d2, 1) {
		return nil, fmt.Errorf("%w: row does not cross the headland", ErrBoundaryUnavailable)
	}

	e := math.Max(d1, d2)
	f := frame{origin: rowPoint, h: h, side: side}
	return c.finish(f, buildTurn(w, c.radius(), e, c.EntryLength, c.PointSpacing))
}

// SimplePath builds a turn without the boundary: the legs meet the arcs
// dist metres ahead of pos along heading h. The planner passes the row
// point and the travel heading.
func (c Config) SimplePath(pos geo.Vec2, h, dist float64, turnLeft bool) ([]geo.Vec3, error) {
	if math.IsInf(dist, 0) || math.IsNaN(dist) {
		return nil, fmt.Errorf("%w: unknown turn distance", ErrPathTooShort)
	}
	f := frame{origin: pos, h: h, side: sideOf(turnLeft)}
	return c.finish(f, buildTurn(c.RowSpacing(), c.radius(), dist, c.EntryLength, c.PointSpacing))
}

func sideOf(turnLeft bool) float64 {
	if turnLeft {
		return -1
	}
	return 1
}
