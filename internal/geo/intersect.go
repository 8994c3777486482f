package geo

import "math"

const epsilon = 1e-9

// ProjectOnSegment returns the point of segment ab closest to p and its
// parameter t in [0, 1]. A zero-length segment yields a with t = 0.
func ProjectOnSegment(p, a, b Vec2) (Vec2, float64) {
	ab := b.Sub(a)
	l2 := ab.Dot(ab)
	if l2 < epsilon*epsilon {
		return a, 0
	}
	t := p.Sub(a).Dot(ab) / l2
	t = math.Max(0, math.Min(1, t))
	return a.Add(ab.Scale(t)), t
}

// RaySegment intersects the ray from origin along heading h with segment
// ab and returns the distance along the ray. Only forward hits count;
// parallel segments never intersect.
func RaySegment(origin Vec2, h float64, a, b Vec2) (float64, bool) {
	d := HeadingVector(h)
	e := b.Sub(a)
	denom := d.Cross(e)
	if math.Abs(denom) < epsilon {
		return 0, false
	}
	w := a.Sub(origin)
	s := w.Cross(e) / denom
	t := w.Cross(d) / denom
	if s <= 0 || t < 0 || t > 1 {
		return 0, false
	}
	return s, true
}

// RayRing returns the nearest forward crossing of the ray with any edge of
// the closed ring, or +Inf and false when nothing is hit.
func RayRing(origin Vec2, h float64, ring []Vec2) (float64, bool) {
	best := math.Inf(1)
	n := len(ring)
	if n < 2 {
		return best, false
	}
	for i := 0; i < n; i++ {
		a, b := ring[i], ring[(i+1)%n]
		if s, ok := RaySegment(origin, h, a, b); ok && s < best {
			best = s
		}
	}
	return best, !math.IsInf(best, 1)
}

// PointInPolygon uses the even-odd crossing rule; the ring is implicitly
// closed.
func PointInPolygon(p Vec2, ring []Vec2) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := ring[i], ring[j]
		if (pi.Northing > p.Northing) != (pj.Northing > p.Northing) {
			x := (pj.Easting-pi.Easting)*(p.Northing-pi.Northing)/(pj.Northing-pi.Northing) + pi.Easting
			if p.Easting < x {
				inside = !inside
			}
		}
	}
	return inside
}

// PathLength sums the segment lengths of an open polyline.
func PathLength(pts []Vec2) float64 {
	total := 0.0
	for i := 1; i < len(pts); i++ {
		total += pts[i].Dist(pts[i-1])
	}
	return total
}
