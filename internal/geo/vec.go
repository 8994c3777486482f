package geo

import "math"

const twoPi = 2 * math.Pi

// Vec2 is a planar point in metres (easting, northing).
type Vec2 struct {
	Easting  float64
	Northing float64
}

// Vec3 is a planar point with a compass heading in radians: 0 is north,
// increasing clockwise.
type Vec3 struct {
	Easting  float64
	Northing float64
	Heading  float64
}

func (v Vec3) XY() Vec2 {
	return Vec2{Easting: v.Easting, Northing: v.Northing}
}

func (v Vec2) WithHeading(h float64) Vec3 {
	return Vec3{Easting: v.Easting, Northing: v.Northing, Heading: h}
}

func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{v.Easting + o.Easting, v.Northing + o.Northing}
}

func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{v.Easting - o.Easting, v.Northing - o.Northing}
}

func (v Vec2) Scale(f float64) Vec2 {
	return Vec2{v.Easting * f, v.Northing * f}
}

func (v Vec2) Dot(o Vec2) float64 {
	return v.Easting*o.Easting + v.Northing*o.Northing
}

// Cross is the z component of the 3D cross product.
func (v Vec2) Cross(o Vec2) float64 {
	return v.Easting*o.Northing - v.Northing*o.Easting
}

func (v Vec2) Len() float64 {
	return math.Hypot(v.Easting, v.Northing)
}

func (v Vec2) Dist(o Vec2) float64 {
	return v.Sub(o).Len()
}

func (v Vec2) DistSq(o Vec2) float64 {
	d := v.Sub(o)
	return d.Dot(d)
}

func (v Vec2) IsFinite() bool {
	return !math.IsNaN(v.Easting) && !math.IsNaN(v.Northing) &&
		!math.IsInf(v.Easting, 0) && !math.IsInf(v.Northing, 0)
}

func Lerp(a, b Vec2, t float64) Vec2 {
	return a.Add(b.Sub(a).Scale(t))
}
