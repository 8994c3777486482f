package autosteer

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/agsteer/internal/geo"
	"github.com/san-kum/agsteer/internal/guidance"
	"github.com/san-kum/agsteer/internal/pgn"
	"github.com/san-kum/agsteer/internal/track"
	"github.com/san-kum/agsteer/internal/transport"
	"github.com/san-kum/agsteer/internal/uturn"
)

func newTestLoop(t *testing.T, uturnOn bool) (*Loop, *transport.Recorder) {
	t.Helper()
	s := DefaultSettings()
	s.UTurn = uturnOn
	l, err := NewLoop(s, nil)
	require.NoError(t, err)
	require.NoError(t, l.SetTrack(track.NewABLine("north", geo.Vec2{}, geo.Vec2{Northing: 100})))
	rec := &transport.Recorder{}
	l.SetSender(rec)
	l.Engage(true)
	return l, rec
}

func pose(e, n, headingDeg, speed float64) Pose {
	return Pose{Easting: e, Northing: n, Heading: geo.Radians(headingDeg), Speed: speed, Roll: guidance.RollUnavailable}
}

func TestTickWithoutTrack(t *testing.T) {
	l, err := NewLoop(DefaultSettings(), nil)
	require.NoError(t, err)
	_, err = l.Tick(pose(0, 0, 0, 2))
	assert.ErrorIs(t, err, ErrNoTrack)
}

func TestTickOnLine(t *testing.T) {
	l, rec := newTestLoop(t, true)
	cmd, err := l.Tick(pose(0, 50, 0, 2))
	require.NoError(t, err)

	assert.InDelta(t, 0, cmd.SteerAngle, 1e-9)
	assert.InDelta(t, 0, cmd.CrossTrackError, 1e-9)
	assert.True(t, cmd.Engaged)
	assert.Equal(t, uturn.StatusIdle, cmd.Status)

	frames := rec.Frames()
	require.Len(t, frames, 1)
	data, err := pgn.DecodeSteerData(frames[0])
	require.NoError(t, err)
	assert.True(t, data.AutoSteerOn)
	assert.InDelta(t, 7.2, data.SpeedKmh, 1e-9)
}

func TestTickSteersBackToLine(t *testing.T) {
	l, rec := newTestLoop(t, false)

	right, err := l.Tick(pose(2, 50, 0, 2))
	require.NoError(t, err)
	assert.Less(t, right.SteerAngle, 0.0)
	assert.InDelta(t, 2, right.CrossTrackError, 1e-9)

	left, err := l.Tick(pose(-2, 50, 0, 2))
	require.NoError(t, err)
	assert.Greater(t, left.SteerAngle, 0.0)

	data, err := pgn.DecodeSteerData(rec.Frames()[1])
	require.NoError(t, err)
	assert.InDelta(t, left.SteerAngle, data.SteerAngle, 0.01)
	assert.InDelta(t, -2, data.CrossTrackError, 0.01)
}

func TestTickAgainstLine(t *testing.T) {
	l, _ := newTestLoop(t, false)
	// driving south, east of the line is the vehicle's left
	cmd, err := l.Tick(pose(2, 50, 180, 2))
	require.NoError(t, err)
	assert.InDelta(t, -2, cmd.CrossTrackError, 1e-9)
	assert.Greater(t, cmd.SteerAngle, 0.0)
}

func TestDisengagedSendsZeroSteer(t *testing.T) {
	l, rec := newTestLoop(t, false)
	l.Engage(false)
	cmd, err := l.Tick(pose(2, 50, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, 0.0, cmd.SteerAngle)
	assert.InDelta(t, 2, cmd.CrossTrackError, 1e-9)

	data, err := pgn.DecodeSteerData(rec.Frames()[0])
	require.NoError(t, err)
	assert.False(t, data.AutoSteerOn)
}

func TestDegenerateTrackHoldsLastCommand(t *testing.T) {
	l, rec := newTestLoop(t, false)
	first, err := l.Tick(pose(1, 50, 0, 2))
	require.NoError(t, err)

	l.current = &track.Track{Name: "bad", Kind: track.Curve, Points: []geo.Vec3{
		{Northing: 0}, {Northing: 0}, {Northing: 10},
	}}
	held, err := l.Tick(pose(3, 50, 0, 2))
	require.NoError(t, err)
	assert.True(t, held.Held)
	assert.Equal(t, first.SteerAngle, held.SteerAngle)
	assert.Equal(t, first.CrossTrackError, held.CrossTrackError)
	assert.Equal(t, 2, rec.Count(pgn.PGNSteerData))
}

func TestPreconditionViolationIsReturned(t *testing.T) {
	l, _ := newTestLoop(t, false)
	l.current = &track.Track{Name: "dot", Points: []geo.Vec3{{}}}
	_, err := l.Tick(pose(0, 0, 0, 2))
	assert.ErrorIs(t, err, guidance.ErrPreconditionViolation)
}

func TestHandleFrame(t *testing.T) {
	l, _ := newTestLoop(t, false)

	bad := pgn.EncodeSteerTelemetry(pgn.SteerTelemetry{ActualAngle: 5})
	bad[len(bad)-1]++
	err := l.HandleFrame(bad)
	assert.ErrorIs(t, err, pgn.ErrMalformedFrame)
	assert.Equal(t, 1, l.Dropped())
	_, ok := l.Telemetry()
	assert.False(t, ok)

	require.NoError(t, l.HandleFrame(pgn.EncodeSteerTelemetry(pgn.SteerTelemetry{ActualAngle: 5, PWM: 80})))
	tel, ok := l.Telemetry()
	require.True(t, ok)
	assert.Equal(t, 5.0, tel.ActualAngle)
	assert.Equal(t, uint8(80), tel.PWM)

	assert.NoError(t, l.HandleFrame(pgn.EncodeSteerSettings(pgn.SteerSettings{})))
	assert.Equal(t, 1, l.Dropped())
}

func TestSteerSwitchFollowsTelemetry(t *testing.T) {
	s := DefaultSettings()
	s.SteerConfig.SteerSwitch = true
	l, err := NewLoop(s, nil)
	require.NoError(t, err)

	require.NoError(t, l.HandleFrame(pgn.EncodeSteerTelemetry(pgn.SteerTelemetry{Switch: 0x02})))
	assert.True(t, l.Engaged())
	require.NoError(t, l.HandleFrame(pgn.EncodeSteerTelemetry(pgn.SteerTelemetry{Switch: 0x00})))
	assert.False(t, l.Engaged())
}

func TestTelemetryRollUsedWhenPoseHasNone(t *testing.T) {
	s := DefaultSettings()
	s.UTurn = false
	s.Params.SideHillCompFactor = 1
	l, err := NewLoop(s, nil)
	require.NoError(t, err)
	require.NoError(t, l.SetTrack(track.NewABLine("north", geo.Vec2{}, geo.Vec2{Northing: 100})))
	l.Engage(true)

	require.NoError(t, l.HandleFrame(pgn.EncodeSteerTelemetry(pgn.SteerTelemetry{Roll: 3, RollValid: true})))
	cmd, err := l.Tick(pose(0, 50, 0, 2))
	require.NoError(t, err)
	assert.InDelta(t, -3, cmd.SteerAngle, 1e-9)
}

func TestSendSettings(t *testing.T) {
	l, rec := newTestLoop(t, false)
	require.NoError(t, l.SendSettings())
	assert.Equal(t, 1, rec.Count(pgn.PGNSteerSettings))
	assert.Equal(t, 1, rec.Count(pgn.PGNSteerConfig))

	got, err := pgn.DecodeSteerSettings(rec.Frames()[0])
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings().SteerSettings, got)
}

type failingSender struct{ err error }

func (f failingSender) Send([]byte) error { return f.err }
func (f failingSender) Close() error      { return nil }

func TestSendSettingsError(t *testing.T) {
	l, _ := newTestLoop(t, false)
	boom := errors.New("boom")
	l.SetSender(failingSender{boom})
	assert.ErrorIs(t, l.SendSettings(), boom)

	// a failed steer data send does not fail the tick
	_, err := l.Tick(pose(0, 50, 0, 2))
	assert.NoError(t, err)
}

func TestRun(t *testing.T) {
	l, _ := newTestLoop(t, false)
	var seen []Command
	l.Observe(func(_ Pose, c Command) { seen = append(seen, c) })

	poses := make(chan Pose, 3)
	for i := 0; i < 3; i++ {
		poses <- pose(0.5, 10+float64(i), 0, 2)
	}
	close(poses)
	frames := make(chan []byte, 1)
	frames <- []byte{0x01}
	close(frames)

	require.NoError(t, l.Run(context.Background(), poses, frames))
	assert.Len(t, seen, 3)
	for _, c := range seen {
		assert.Less(t, c.SteerAngle, 0.0)
	}
}

func TestRunCountsMalformedFrames(t *testing.T) {
	l, _ := newTestLoop(t, false)
	frames := make(chan []byte, 2)
	frames <- []byte{0x80, 0x81, 0x7e}
	frames <- pgn.EncodeSteerTelemetry(pgn.SteerTelemetry{ActualAngle: 1.5})
	close(frames)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := l.Run(ctx, make(chan Pose), frames)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, l.Dropped())
	tel, ok := l.Telemetry()
	require.True(t, ok)
	assert.InDelta(t, 1.5, tel.ActualAngle, 1e-9)
}

func TestRunStopsOnCancel(t *testing.T) {
	l, _ := newTestLoop(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Run(ctx, make(chan Pose), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name  string
		apply func(*Settings)
	}{
		{"wheelbase", func(s *Settings) { s.Wheelbase = 0 }},
		{"max steer", func(s *Settings) { s.MaxSteerAngle = 90 }},
		{"look-ahead", func(s *Settings) { s.LookAheadMin = 0 }},
		{"nan wheelbase", func(s *Settings) { s.Wheelbase = math.NaN() }},
		{"turn", func(s *Settings) { s.Turn.ToolWidth = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.apply(&s)
			assert.ErrorIs(t, s.Validate(), ErrSettings)
		})
	}
	assert.NoError(t, DefaultSettings().Validate())
}

func TestLookAheadScalesWithSpeed(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, 2.0, s.LookAhead(0))
	assert.InDelta(t, 4.5, s.LookAhead(3), 1e-9)
	assert.InDelta(t, 4.5, s.LookAhead(-3), 1e-9)
	assert.Equal(t, 10.0, s.LookAhead(20))
}
