package boundary

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/agsteer/internal/geo"
)

var ErrInvalidRing = errors.New("boundary: invalid ring")

// Ring is a closed polygon; the last point connects back to the first.
type Ring struct {
	Points []geo.Vec2
	Valid  bool
}

func NewRing(pts []geo.Vec2) Ring {
	return Ring{Points: pts, Valid: len(pts) >= 3}
}

// Usable reports whether the ring can be ray-cast and tested.
func (r Ring) Usable() bool {
	return r.Valid && len(r.Points) >= 3
}

func (r Ring) Contains(p geo.Vec2) bool {
	if !r.Usable() {
		return false
	}
	return geo.PointInPolygon(p, r.Points)
}

// DistanceAlong is the forward distance from origin along heading h to the
// nearest edge, or +Inf.
func (r Ring) DistanceAlong(origin geo.Vec2, h float64) float64 {
	if !r.Usable() {
		return math.Inf(1)
	}
	d, _ := geo.RayRing(origin, h, r.Points)
	return d
}

func (r Ring) Bounds() (min, max geo.Vec2) {
	min = geo.Vec2{Easting: math.Inf(1), Northing: math.Inf(1)}
	max = geo.Vec2{Easting: math.Inf(-1), Northing: math.Inf(-1)}
	for _, p := range r.Points {
		min.Easting = math.Min(min.Easting, p.Easting)
		min.Northing = math.Min(min.Northing, p.Northing)
		max.Easting = math.Max(max.Easting, p.Easting)
		max.Northing = math.Max(max.Northing, p.Northing)
	}
	return min, max
}

// Field is the outer boundary plus the headland line inset from it.
type Field struct {
	Outer    Ring
	Headland Ring
}

func Rect(minE, minN, maxE, maxN float64) Ring {
	return NewRing([]geo.Vec2{
		{Easting: minE, Northing: minN},
		{Easting: maxE, Northing: minN},
		{Easting: maxE, Northing: maxN},
		{Easting: minE, Northing: maxN},
	})
}

// NewRectField builds a width x length field with its south-west corner at
// origin and a headland inset by headlandWidth on every side.
func NewRectField(origin geo.Vec2, width, length, headlandWidth float64) (Field, error) {
	if width <= 0 || length <= 0 {
		return Field{}, fmt.Errorf("%w: field size %fx%f", ErrInvalidRing, width, length)
	}
	if headlandWidth < 0 || 2*headlandWidth >= width || 2*headlandWidth >= length {
		return Field{}, fmt.Errorf("%w: headland width %f does not fit", ErrInvalidRing, headlandWidth)
	}
	e, n := origin.Easting, origin.Northing
	return Field{
		Outer:    Rect(e, n, e+width, n+length),
		Headland: Rect(e+headlandWidth, n+headlandWidth, e+width-headlandWidth, n+length-headlandWidth),
	}, nil
}

// FromLonLat projects a lon/lat ring into grid metres.
func FromLonLat(p *geo.Projector, lonlat [][2]float64) Ring {
	pts := make([]geo.Vec2, 0, len(lonlat))
	for _, ll := range lonlat {
		pts = append(pts, p.Project(ll[0], ll[1]))
	}
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	return NewRing(pts)
}
