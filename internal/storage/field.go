package storage

import (
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/san-kum/agsteer/internal/boundary"
	"github.com/san-kum/agsteer/internal/geo"
	"github.com/san-kum/agsteer/internal/sim"
	"github.com/san-kum/agsteer/internal/track"
	"github.com/san-kum/agsteer/internal/uturn"
)

// FieldSnapshot is the geometry a run was driven on, in grid metres.
type FieldSnapshot struct {
	Outer    []geo.Vec2 `msgpack:"outer"`
	Headland []geo.Vec2 `msgpack:"headland"`

	TrackName string     `msgpack:"track_name"`
	TrackKind string     `msgpack:"track_kind"`
	Track     []geo.Vec3 `msgpack:"track"`
	PassWidth float64    `msgpack:"pass_width"`

	// Turns holds every U-turn path that was driven, in order.
	Turns [][]geo.Vec3 `msgpack:"turns"`
}

func NewFieldSnapshot(f boundary.Field, t *track.Track, passWidth float64) *FieldSnapshot {
	snap := &FieldSnapshot{
		Outer:     append([]geo.Vec2(nil), f.Outer.Points...),
		Headland:  append([]geo.Vec2(nil), f.Headland.Points...),
		PassWidth: passWidth,
	}
	if t != nil {
		snap.TrackName = t.Name
		snap.TrackKind = t.Kind.String()
		snap.Track = append([]geo.Vec3(nil), t.Points...)
	}
	return snap
}

// Row returns the reference track shifted by pathsAway passes.
func (f *FieldSnapshot) Row(pathsAway int) []geo.Vec3 {
	kind, err := track.ParseKind(f.TrackKind)
	if err != nil || len(f.Track) == 0 {
		return nil
	}
	t := &track.Track{Name: f.TrackName, Kind: kind, Points: f.Track}
	return t.Offset(float64(pathsAway) * f.PassWidth).Points
}

// TurnRecorder copies each turn path into a snapshot when it triggers.
type TurnRecorder struct {
	planner *uturn.Planner
	snap    *FieldSnapshot
}

func NewTurnRecorder(p *uturn.Planner, snap *FieldSnapshot) *TurnRecorder {
	return &TurnRecorder{planner: p, snap: snap}
}

func (r *TurnRecorder) OnStep(s sim.Sample) {
	if r.planner == nil || s.Status != uturn.StatusTriggered {
		return
	}
	if path := r.planner.State().Path; len(path) > 0 {
		r.snap.Turns = append(r.snap.Turns, path)
	}
}

func writeField(path string, snap *FieldSnapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return err
	}
	if err := msgpack.NewEncoder(zw).Encode(snap); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

func readField(path string) (*FieldSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var snap FieldSnapshot
	if err := msgpack.NewDecoder(zr).Decode(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
