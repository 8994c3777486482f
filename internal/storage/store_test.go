package storage

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/san-kum/agsteer/internal/boundary"
	"github.com/san-kum/agsteer/internal/geo"
	"github.com/san-kum/agsteer/internal/guidance"
	"github.com/san-kum/agsteer/internal/sim"
	"github.com/san-kum/agsteer/internal/track"
	"github.com/san-kum/agsteer/internal/uturn"
)

func testResult() *sim.Result {
	samples := []sim.Sample{
		{T: 0, XTE: 2, SteerCmd: -10, Status: uturn.StatusApproaching},
		{T: 0.1, XTE: 1.5, SteerCmd: -8, Status: uturn.StatusExecuting, PathsAway: 1, Held: true},
	}
	samples[1].Pose.Easting = 33.5
	samples[1].Pose.Northing = 27.25
	samples[1].Pose.Heading = geo.Radians(90)
	samples[1].Pose.Speed = 2.5
	return &sim.Result{
		Samples:    samples,
		Metrics:    map[string]float64{"xte_rms": 0.05},
		StepsTaken: 2,
		Stopped:    sim.StopDuration,
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := New(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}

	id, err := s.Save(RunMetadata{Name: "pure_pursuit/default", Law: "pure_pursuit", Dt: 0.1}, testResult(), nil)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	meta, err := s.Load(id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if meta.ID != id || meta.Steps != 2 || meta.Stopped != "duration" {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.Metrics["xte_rms"] != 0.05 {
		t.Errorf("metrics not stored: %v", meta.Metrics)
	}

	samples, err := s.LoadSamples(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	got := samples[1]
	if got.Status != uturn.StatusExecuting || got.PathsAway != 1 || !got.Held {
		t.Errorf("sample fields lost: %+v", got)
	}
	if math.Abs(got.Pose.Heading-geo.Radians(90)) > 1e-6 || got.Pose.Easting != 33.5 {
		t.Errorf("pose lost: %+v", got.Pose)
	}
	if got.Pose.Roll != guidance.RollUnavailable {
		t.Errorf("expected roll unavailable, got %f", got.Pose.Roll)
	}

	field, err := s.LoadField(id)
	if err != nil || field != nil {
		t.Errorf("expected no field, got %v, %v", field, err)
	}
}

func TestLoadMissing(t *testing.T) {
	s := New(t.TempDir())
	if _, err := s.Load("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestListAndResolve(t *testing.T) {
	s := New(t.TempDir())
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a1", "run-a2", "run-b1"} {
		meta := RunMetadata{ID: id, Timestamp: base.Add(time.Duration(i) * time.Minute)}
		if _, err := s.Save(meta, testResult(), nil); err != nil {
			t.Fatal(err)
		}
	}
	// stray directories without metadata are skipped
	if err := os.MkdirAll(filepath.Join(s.baseDir, "junk"), 0755); err != nil {
		t.Fatal(err)
	}

	runs, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 || runs[0].ID != "run-b1" {
		t.Fatalf("expected 3 runs newest first, got %v", runs)
	}

	tests := []struct {
		prefix string
		want   string
		err    error
	}{
		{"", "run-b1", nil},
		{"run-b", "run-b1", nil},
		{"run-a1", "run-a1", nil},
		{"run-a", "", ErrAmbiguousRun},
		{"zzz", "", ErrRunNotFound},
	}
	for _, tt := range tests {
		got, err := s.Resolve(tt.prefix)
		if tt.err != nil {
			if !errors.Is(err, tt.err) {
				t.Errorf("Resolve(%q): expected %v, got %v", tt.prefix, tt.err, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("Resolve(%q) = %q, %v; want %q", tt.prefix, got, err, tt.want)
		}
	}
}

func TestListEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing"))
	runs, err := s.List()
	if err != nil || len(runs) != 0 {
		t.Errorf("expected empty list, got %v, %v", runs, err)
	}
	if _, err := s.Resolve(""); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestNewRunID(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	a, b := NewRunID(now), NewRunID(now)
	if a == b {
		t.Error("run ids should be unique")
	}
	if !strings.HasPrefix(a, "20240501T123000-") || len(a) != len("20240501T123000-")+8 {
		t.Errorf("unexpected id %q", a)
	}
}

func TestFieldSnapshotRoundTrip(t *testing.T) {
	f, err := boundary.NewRectField(geo.Vec2{}, 120, 300, 20)
	if err != nil {
		t.Fatal(err)
	}
	tr := track.NewABLineFromHeading("AB 1", geo.Vec2{Easting: 33}, 0, 300)
	snap := NewFieldSnapshot(f, tr, 6)
	snap.Turns = append(snap.Turns, []geo.Vec3{{Easting: 33, Northing: 280}, {Easting: 39, Northing: 280, Heading: math.Pi}})

	s := New(t.TempDir())
	id, err := s.Save(RunMetadata{}, testResult(), snap)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadField(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Outer) != 4 || len(got.Headland) != 4 {
		t.Errorf("rings lost: %+v", got)
	}
	if got.TrackName != "AB 1" || got.TrackKind != "ab" || len(got.Track) != 2 {
		t.Errorf("track lost: %+v", got)
	}
	if len(got.Turns) != 1 || got.Turns[0][1].Heading != math.Pi {
		t.Errorf("turns lost: %+v", got.Turns)
	}

	row := got.Row(2)
	if len(row) != 2 || math.Abs(row[0].Easting-45) > 1e-9 {
		t.Errorf("expected row two passes right at easting 45, got %v", row)
	}
}

func TestReadSamplesRejectsGarbage(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSamples(&buf, testResult().Samples); err != nil {
		t.Fatal(err)
	}
	bad := strings.Replace(buf.String(), "executing", "spinning", 1)
	if _, err := ReadSamples(strings.NewReader(bad)); err == nil {
		t.Error("expected unknown status error")
	}
	if _, err := ReadSamples(strings.NewReader("time,x\n1,2\n")); err == nil {
		t.Error("expected column count error")
	}
}

func TestSamplesKeepEveryStatus(t *testing.T) {
	var in []sim.Sample
	for st := uturn.StatusIdle; st <= uturn.StatusTurnMissed; st++ {
		in = append(in, sim.Sample{T: float64(st), Status: st})
	}
	var buf bytes.Buffer
	if err := WriteSamples(&buf, in); err != nil {
		t.Fatal(err)
	}
	out, err := ReadSamples(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d samples, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i].Status != in[i].Status {
			t.Errorf("sample %d: status %v, want %v", i, out[i].Status, in[i].Status)
		}
	}
}

func TestTurnRecorder(t *testing.T) {
	snap := &FieldSnapshot{}
	r := NewTurnRecorder(nil, snap)
	r.OnStep(sim.Sample{Status: uturn.StatusTriggered})
	if len(snap.Turns) != 0 {
		t.Error("recorder without a planner should not record")
	}
}
