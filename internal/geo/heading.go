package geo

import "math"

func Radians(deg float64) float64 { return deg * math.Pi / 180 }
func Degrees(rad float64) float64 { return rad * 180 / math.Pi }

// NormalizeHeading wraps h into [0, 2π).
func NormalizeHeading(h float64) float64 {
	h = math.Mod(h, twoPi)
	if h < 0 {
		h += twoPi
	}
	if h >= twoPi {
		h = 0
	}
	return h
}

// NormalizeAngle wraps a into (-π, π].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, twoPi)
	if a <= -math.Pi {
		a += twoPi
	} else if a > math.Pi {
		a -= twoPi
	}
	return a
}

// AngleDiff returns the signed turn from b to a in (-π, π]. A positive
// result means a is clockwise of b.
func AngleDiff(a, b float64) float64 {
	return NormalizeAngle(a - b)
}

// HeadingVector is the unit vector pointing along compass heading h.
func HeadingVector(h float64) Vec2 {
	return Vec2{Easting: math.Sin(h), Northing: math.Cos(h)}
}

// RightOf is the unit vector 90° clockwise of heading h.
func RightOf(h float64) Vec2 {
	return Vec2{Easting: math.Cos(h), Northing: -math.Sin(h)}
}

// HeadingBetween is the compass heading from a to b.
func HeadingBetween(a, b Vec2) float64 {
	return NormalizeHeading(math.Atan2(b.Easting-a.Easting, b.Northing-a.Northing))
}

// Offset moves p sideways from heading h; positive d is to the right.
func Offset(p Vec2, h, d float64) Vec2 {
	return p.Add(RightOf(h).Scale(d))
}

// Forward moves p along heading h by d metres.
func Forward(p Vec2, h, d float64) Vec2 {
	return p.Add(HeadingVector(h).Scale(d))
}

// SignedDistance is the perpendicular distance of p from the line through
// origin with heading h, positive when p lies to the right of travel.
func SignedDistance(p, origin Vec2, h float64) float64 {
	return p.Sub(origin).Dot(RightOf(h))
}

// AlongDistance is the distance of p's projection ahead of origin along h.
func AlongDistance(p, origin Vec2, h float64) float64 {
	return p.Sub(origin).Dot(HeadingVector(h))
}

// IsAligned reports whether heading a points along b within tol radians,
// forward or reverse.
func IsAligned(a, b, tol float64) (aligned, sameWay bool) {
	d := math.Abs(AngleDiff(a, b))
	if d <= tol {
		return true, true
	}
	if math.Pi-d <= tol {
		return true, false
	}
	return false, d < math.Pi/2
}
