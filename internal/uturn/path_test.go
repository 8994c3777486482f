package uturn

import (
	"math"
	"testing"

	"github.com/san-kum/agsteer/internal/geo"
)

func TestSmoothPinsEndpoints(t *testing.T) {
	pts := []geo.Vec3{
		{Easting: 0, Northing: 0, Heading: 0.1},
		{Easting: 1, Northing: 1},
		{Easting: 0, Northing: 2},
		{Easting: 1, Northing: 3},
		{Easting: 0, Northing: 4, Heading: 0.2},
	}
	out := smooth(pts, 3)
	if out[0] != pts[0] || out[4] != pts[4] {
		t.Errorf("endpoints moved: %v %v", out[0], out[4])
	}
	if pts[1].Easting != 1 {
		t.Error("smooth must not modify its input")
	}
	if math.Abs(out[2].Easting-0.5) > 0.3 {
		t.Errorf("expected interior point pulled toward the middle, got %f", out[2].Easting)
	}
}

func TestSmoothKeepsStraightLine(t *testing.T) {
	b := &builder{spacing: 0.5}
	b.line(geo.Vec2{}, geo.Vec2{Northing: 10})
	out := smooth(b.pts, 5)
	for i, p := range out {
		if math.Abs(p.Easting) > 1e-12 {
			t.Fatalf("point %d left the line: %v", i, p)
		}
	}
	if len(out) != 21 {
		t.Errorf("expected 21 points, got %d", len(out))
	}
}

func TestArcHeadingsFollowTangent(t *testing.T) {
	b := &builder{spacing: 0.25}
	b.turnArcs(6, 3, 0)
	for i := 1; i < len(b.pts)-1; i++ {
		chord := geo.HeadingBetween(b.pts[i-1].XY(), b.pts[i+1].XY())
		if d := math.Abs(geo.AngleDiff(chord, b.pts[i].Heading)); d > 0.05 {
			t.Fatalf("point %d: heading %f differs from chord %f", i, b.pts[i].Heading, chord)
		}
	}
}

func TestBulbArcsAreContinuous(t *testing.T) {
	b := &builder{spacing: 0.5}
	b.turnArcs(4, 6, 0)
	last := b.pts[len(b.pts)-1]
	if last.XY().Dist(geo.Vec2{Easting: 4}) > 1e-9 {
		t.Errorf("expected to end at (4,0), got %v", last)
	}
	for i := 1; i < len(b.pts); i++ {
		if d := b.pts[i].XY().Dist(b.pts[i-1].XY()); d > 0.5+1e-9 {
			t.Fatalf("gap of %f at %d", d, i)
		}
	}
}
