package geo

import (
	"math"
	"testing"
)

const tol = 1e-9

func TestHeadingVector(t *testing.T) {
	tests := []struct {
		name    string
		heading float64
		want    Vec2
	}{
		{"north", 0, Vec2{0, 1}},
		{"east", math.Pi / 2, Vec2{1, 0}},
		{"south", math.Pi, Vec2{0, -1}},
		{"west", 3 * math.Pi / 2, Vec2{-1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HeadingVector(tt.heading)
			if got.Dist(tt.want) > tol {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRightOf(t *testing.T) {
	r := RightOf(0)
	if r.Dist(Vec2{1, 0}) > tol {
		t.Errorf("right of north should be east, got %v", r)
	}
	r = RightOf(math.Pi / 2)
	if r.Dist(Vec2{0, -1}) > tol {
		t.Errorf("right of east should be south, got %v", r)
	}
}

func TestNormalizeAngle(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
		{5 * math.Pi, math.Pi},
	}
	for _, tt := range tests {
		got := NormalizeAngle(tt.in)
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("NormalizeAngle(%f): expected %f, got %f", tt.in, tt.want, got)
		}
		if got <= -math.Pi || got > math.Pi {
			t.Errorf("NormalizeAngle(%f) = %f outside (-pi, pi]", tt.in, got)
		}
	}
}

func TestNormalizeHeading(t *testing.T) {
	if h := NormalizeHeading(-math.Pi / 2); math.Abs(h-3*math.Pi/2) > tol {
		t.Errorf("expected 3pi/2, got %f", h)
	}
	if h := NormalizeHeading(2 * math.Pi); h != 0 {
		t.Errorf("expected 0, got %f", h)
	}
}

func TestHeadingBetween(t *testing.T) {
	h := HeadingBetween(Vec2{0, 0}, Vec2{10, 0})
	if math.Abs(h-math.Pi/2) > tol {
		t.Errorf("expected east, got %f", h)
	}
	h = HeadingBetween(Vec2{0, 0}, Vec2{0, -10})
	if math.Abs(h-math.Pi) > tol {
		t.Errorf("expected south, got %f", h)
	}
}

func TestSignedDistance(t *testing.T) {
	if d := SignedDistance(Vec2{5, 500}, Vec2{0, 0}, 0); math.Abs(d-5) > tol {
		t.Errorf("expected 5 (right of north line), got %f", d)
	}
	if d := SignedDistance(Vec2{5, 500}, Vec2{0, 1000}, math.Pi); math.Abs(d+5) > tol {
		t.Errorf("expected -5 when travelling south, got %f", d)
	}
}

func TestIsAligned(t *testing.T) {
	tol := Radians(20)
	if ok, same := IsAligned(Radians(10), 0, tol); !ok || !same {
		t.Error("10 degrees off should be aligned same way")
	}
	if ok, same := IsAligned(Radians(185), 0, tol); !ok || same {
		t.Error("185 degrees off should be aligned reverse")
	}
	if ok, _ := IsAligned(Radians(90), 0, tol); ok {
		t.Error("90 degrees off should not be aligned")
	}
}

func TestRaySegment(t *testing.T) {
	d, ok := RaySegment(Vec2{0, 0}, 0, Vec2{-5, 10}, Vec2{5, 10})
	if !ok || math.Abs(d-10) > tol {
		t.Errorf("expected hit at 10, got %f ok=%v", d, ok)
	}

	if _, ok := RaySegment(Vec2{0, 0}, math.Pi, Vec2{-5, 10}, Vec2{5, 10}); ok {
		t.Error("segment behind the ray should not intersect")
	}

	if _, ok := RaySegment(Vec2{0, 0}, 0, Vec2{1, 0}, Vec2{1, 10}); ok {
		t.Error("parallel segment should not intersect")
	}

	if _, ok := RaySegment(Vec2{0, 0}, 0, Vec2{1, 10}, Vec2{5, 10}); ok {
		t.Error("segment beside the ray should not intersect")
	}
}

func TestRayRing(t *testing.T) {
	ring := []Vec2{{-10, -10}, {10, -10}, {10, 10}, {-10, 10}}
	d, ok := RayRing(Vec2{0, 0}, 0, ring)
	if !ok || math.Abs(d-10) > tol {
		t.Errorf("expected 10, got %f", d)
	}
	d, ok = RayRing(Vec2{0, -5}, math.Pi/2, ring)
	if !ok || math.Abs(d-10) > tol {
		t.Errorf("expected 10 to east edge, got %f", d)
	}
	d, ok = RayRing(Vec2{50, 50}, 0, ring)
	if ok || !math.IsInf(d, 1) {
		t.Errorf("expected miss, got %f", d)
	}
}

func TestPointInPolygon(t *testing.T) {
	ring := []Vec2{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	tests := []struct {
		p    Vec2
		want bool
	}{
		{Vec2{5, 5}, true},
		{Vec2{-1, 5}, false},
		{Vec2{11, 5}, false},
		{Vec2{5, 11}, false},
		{Vec2{0.1, 9.9}, true},
	}
	for _, tt := range tests {
		if got := PointInPolygon(tt.p, ring); got != tt.want {
			t.Errorf("PointInPolygon(%v): expected %v, got %v", tt.p, tt.want, got)
		}
	}
}

func TestProjectOnSegment(t *testing.T) {
	p, tt := ProjectOnSegment(Vec2{3, 4}, Vec2{0, 0}, Vec2{0, 10})
	if p.Dist(Vec2{0, 4}) > tol || math.Abs(tt-0.4) > tol {
		t.Errorf("expected (0,4) t=0.4, got %v t=%f", p, tt)
	}
	p, tt = ProjectOnSegment(Vec2{3, 40}, Vec2{0, 0}, Vec2{0, 10})
	if p.Dist(Vec2{0, 10}) > tol || tt != 1 {
		t.Errorf("expected clamp to end, got %v t=%f", p, tt)
	}
}

func TestUTMZone(t *testing.T) {
	code, err := UTMZone(10.5, 52.3)
	if err != nil {
		t.Fatal(err)
	}
	if code != 32632 {
		t.Errorf("expected 32632, got %d", code)
	}
	code, _ = UTMZone(-58.4, -34.6)
	if code != 32721 {
		t.Errorf("expected 32721, got %d", code)
	}
	if _, err := UTMZone(0, 89); err == nil {
		t.Error("expected error near the pole")
	}
}

func TestProjectorDistances(t *testing.T) {
	p, err := NewProjector(10.5, 52.3)
	if err != nil {
		t.Fatal(err)
	}
	a := p.Project(10.5, 52.3)
	b := p.Project(10.5, 52.301)
	d := a.Dist(b)
	if d < 100 || d > 120 {
		t.Errorf("expected ~111m for 0.001 deg latitude, got %f", d)
	}
	if b.Northing <= a.Northing {
		t.Error("northing should grow with latitude")
	}
}
