package track

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/agsteer/internal/geo"
)

var (
	ErrTooFewPoints = errors.New("track: fewer than 2 points")
	ErrZeroLength   = errors.New("track: zero-length segment")
	ErrKindMismatch = errors.New("track: point count does not match kind")
)

type Kind int

const (
	ABLine Kind = iota
	Curve
)

func (k Kind) String() string {
	switch k {
	case ABLine:
		return "ab"
	case Curve:
		return "curve"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "ab", "abline", "ab_line":
		return ABLine, nil
	case "curve":
		return Curve, nil
	}
	return 0, fmt.Errorf("unknown track kind: %s", s)
}

// minSpacing drops curve vertices closer than this to their predecessor.
const minSpacing = 0.05

// Track is a directed guidance line. Guidance code treats it as read-only.
type Track struct {
	Name      string
	Points    []geo.Vec3
	Kind      Kind
	IsActive  bool
	IsVisible bool
}

func NewABLine(name string, a, b geo.Vec2) *Track {
	h := geo.HeadingBetween(a, b)
	return &Track{
		Name:      name,
		Points:    []geo.Vec3{a.WithHeading(h), b.WithHeading(h)},
		Kind:      ABLine,
		IsVisible: true,
	}
}

// NewABLineFromHeading builds an AB line of the given length starting at a.
func NewABLineFromHeading(name string, a geo.Vec2, heading, length float64) *Track {
	b := geo.Forward(a, heading, length)
	t := NewABLine(name, a, b)
	h := geo.NormalizeHeading(heading)
	t.Points[0].Heading = h
	t.Points[1].Heading = h
	return t
}

// NewCurve builds a curve and assigns each point a tangent heading.
// Consecutive near-duplicate points are removed.
func NewCurve(name string, pts []geo.Vec2) *Track {
	clean := make([]geo.Vec2, 0, len(pts))
	for _, p := range pts {
		if len(clean) > 0 && clean[len(clean)-1].Dist(p) < minSpacing {
			continue
		}
		clean = append(clean, p)
	}
	return &Track{
		Name:      name,
		Points:    withTangents(clean),
		Kind:      Curve,
		IsVisible: true,
	}
}

func withTangents(pts []geo.Vec2) []geo.Vec3 {
	out := make([]geo.Vec3, len(pts))
	n := len(pts)
	for i, p := range pts {
		var h float64
		switch {
		case n < 2:
			h = 0
		case i == 0:
			h = geo.HeadingBetween(pts[0], pts[1])
		case i == n-1:
			h = geo.HeadingBetween(pts[n-2], pts[n-1])
		default:
			h = geo.HeadingBetween(pts[i-1], pts[i+1])
		}
		out[i] = p.WithHeading(h)
	}
	return out
}

func (t *Track) Len() int { return len(t.Points) }

func (t *Track) Validate() error {
	if len(t.Points) < 2 {
		return ErrTooFewPoints
	}
	switch t.Kind {
	case ABLine:
		if len(t.Points) != 2 {
			return fmt.Errorf("%w: ab line with %d points", ErrKindMismatch, len(t.Points))
		}
	case Curve:
		if len(t.Points) < 3 {
			return fmt.Errorf("%w: curve with %d points", ErrKindMismatch, len(t.Points))
		}
	}
	for i := 1; i < len(t.Points); i++ {
		if t.Points[i].XY().Dist(t.Points[i-1].XY()) < 1e-9 {
			return fmt.Errorf("%w at index %d", ErrZeroLength, i-1)
		}
	}
	return nil
}

// Heading is the A->B heading of an AB line or the first tangent of a curve.
func (t *Track) Heading() float64 {
	if len(t.Points) == 0 {
		return 0
	}
	return t.Points[0].Heading
}

func (t *Track) Length() float64 {
	total := 0.0
	for i := 1; i < len(t.Points); i++ {
		total += t.Points[i].XY().Dist(t.Points[i-1].XY())
	}
	return total
}

func (t *Track) Clone() *Track {
	c := *t
	c.Points = make([]geo.Vec3, len(t.Points))
	copy(c.Points, t.Points)
	return &c
}

// Reversed returns the same line travelled B->A.
func (t *Track) Reversed() *Track {
	c := t.Clone()
	n := len(c.Points)
	for i, p := range t.Points {
		p.Heading = geo.NormalizeHeading(p.Heading + math.Pi)
		c.Points[n-1-i] = p
	}
	return c
}

// Offset returns a parallel copy shifted d metres to the right of the A->B
// direction (negative is left). Curve points move along their own normal,
// so tight inside bends may fold; the result is re-tangented.
func (t *Track) Offset(d float64) *Track {
	c := t.Clone()
	if d == 0 {
		return c
	}
	if t.Kind == ABLine {
		for i := range c.Points {
			c.Points[i] = geo.Offset(t.Points[i].XY(), t.Points[i].Heading, d).WithHeading(t.Points[i].Heading)
		}
		return c
	}
	pts := make([]geo.Vec2, len(t.Points))
	for i, p := range t.Points {
		pts[i] = geo.Offset(p.XY(), p.Heading, d)
	}
	c.Points = withTangents(pts)
	return c
}

// NearestIndex returns the index of the point closest to p over the
// whole track, or -1 if the track is empty.
func (t *Track) NearestIndex(p geo.Vec2) int {
	best, idx := math.Inf(1), -1
	for i, q := range t.Points {
		if d := q.XY().DistSq(p); d < best {
			best, idx = d, i
		}
	}
	return idx
}
