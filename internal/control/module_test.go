package control

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/san-kum/agsteer/internal/autosteer"
	"github.com/san-kum/agsteer/internal/geo"
	"github.com/san-kum/agsteer/internal/guidance"
	"github.com/san-kum/agsteer/internal/pgn"
	"github.com/san-kum/agsteer/internal/track"
)

func configuredModule(t *testing.T) *Module {
	t.Helper()
	s := autosteer.DefaultSettings()
	m := NewModule(nil)
	if err := m.HandleFrame(pgn.EncodeSteerSettings(s.SteerSettings)); err != nil {
		t.Fatal(err)
	}
	if err := m.HandleFrame(pgn.EncodeSteerConfig(s.SteerConfig)); err != nil {
		t.Fatal(err)
	}
	return m
}

func steer(t *testing.T, m *Module, angle, kmh float64, on bool) {
	t.Helper()
	err := m.HandleFrame(pgn.EncodeSteerData(pgn.SteerData{SpeedKmh: kmh, AutoSteerOn: on, SteerAngle: angle}))
	if err != nil {
		t.Fatal(err)
	}
}

func TestModuleAppliesSettings(t *testing.T) {
	m := configuredModule(t)
	if m.Settings().Kp != 40 || m.pid.Kp != 40 || m.pid.Limit != 235 {
		t.Errorf("settings not applied: %+v", m.Settings())
	}
	if m.Config().MinSpeed != 1 {
		t.Errorf("config not applied: %+v", m.Config())
	}
}

func TestModuleDropsMalformed(t *testing.T) {
	m := NewModule(nil)
	err := m.HandleFrame([]byte{0x80, 0x81, 0x7f})
	if !errors.Is(err, pgn.ErrMalformedFrame) {
		t.Errorf("expected ErrMalformedFrame, got %v", err)
	}
	bad := pgn.EncodeSteerData(pgn.SteerData{SteerAngle: 5})
	bad[len(bad)-1]++
	if err := m.HandleFrame(bad); !errors.Is(err, pgn.ErrMalformedFrame) {
		t.Errorf("expected checksum failure, got %v", err)
	}
	if m.Dropped() != 2 {
		t.Errorf("expected 2 dropped, got %d", m.Dropped())
	}
	// telemetry from another module is not ours to consume
	if err := m.HandleFrame(pgn.EncodeSteerTelemetry(pgn.SteerTelemetry{})); err != nil {
		t.Errorf("expected telemetry to be ignored, got %v", err)
	}
}

func TestModuleTracksTarget(t *testing.T) {
	m := configuredModule(t)
	for range 100 {
		steer(t, m, 10, 9, true)
		m.Step(0.1)
	}
	if !m.Engaged() {
		t.Fatal("expected module engaged")
	}
	if m.Angle() > 10+1e-9 || m.Angle() < 9.89 {
		t.Errorf("expected wheel within the deadzone below 10, got %f", m.Angle())
	}
	if tel := m.Telemetry(); tel.PWM != 0 || tel.SetAngle != 10 {
		t.Errorf("expected idle PWM at target, got %+v", tel)
	}
}

func TestModuleSlewLimited(t *testing.T) {
	m := configuredModule(t)
	steer(t, m, -30, 9, true)
	m.Step(0.1)
	want := -235.0 / 255 * DefaultSlewRate * 0.1
	if math.Abs(m.Angle()-want) > 1e-9 {
		t.Errorf("expected one full-PWM step to %f, got %f", want, m.Angle())
	}
	if m.Telemetry().PWM != 235 {
		t.Errorf("expected PWM 235, got %d", m.Telemetry().PWM)
	}
}

func TestModuleClampsTarget(t *testing.T) {
	m := configuredModule(t)
	steer(t, m, 60, 9, true)
	if m.Telemetry().SetAngle != DefaultMaxAngle {
		t.Errorf("expected set angle clamped to %d, got %f", DefaultMaxAngle, m.Telemetry().SetAngle)
	}
}

func TestModuleReleases(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, m *Module)
	}{
		{"below min speed", func(t *testing.T, m *Module) { steer(t, m, 10, 0.5, true) }},
		{"autosteer off", func(t *testing.T, m *Module) { steer(t, m, 10, 9, false) }},
		{"steer switch off", func(t *testing.T, m *Module) {
			c := m.Config()
			c.SteerSwitch = true
			m.HandleFrame(pgn.EncodeSteerConfig(c))
			m.Switch = 0
			steer(t, m, 10, 9, true)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := configuredModule(t)
			tt.setup(t, m)
			m.Step(0.1)
			if m.Engaged() || m.Angle() != 0 {
				t.Errorf("expected released wheel, engaged %v angle %f", m.Engaged(), m.Angle())
			}
		})
	}
}

func TestModuleWatchdog(t *testing.T) {
	m := configuredModule(t)
	steer(t, m, 10, 9, true)
	for range DefaultWatchdog {
		m.Step(0.1)
	}
	if !m.Engaged() {
		t.Fatal("released before the watchdog expired")
	}
	m.Step(0.1)
	if m.Engaged() {
		t.Error("expected release after the watchdog expired")
	}
}

type moduleSender struct{ m *Module }

func (s moduleSender) Send(b []byte) error { return s.m.HandleFrame(b) }
func (s moduleSender) Close() error        { return nil }

func TestModuleClosesLoop(t *testing.T) {
	s := autosteer.DefaultSettings()
	s.UTurn = false
	loop, err := autosteer.NewLoop(s, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := loop.SetTrack(track.NewABLineFromHeading("ab", geo.Vec2{}, 0, 300)); err != nil {
		t.Fatal(err)
	}
	m := NewModule(nil)
	loop.SetSender(moduleSender{m})
	if err := loop.SendSettings(); err != nil {
		t.Fatal(err)
	}
	loop.Engage(true)

	pose := autosteer.Pose{Easting: 1, Northing: 10, Speed: 2.5, Roll: guidance.RollUnavailable}
	var cmd autosteer.Command
	for range 30 {
		cmd, err = loop.Tick(pose)
		if err != nil {
			t.Fatal(err)
		}
		m.Step(0.1)
	}
	if cmd.SteerAngle >= 0 {
		t.Fatalf("expected a left command right of the line, got %f", cmd.SteerAngle)
	}
	if err := loop.HandleFrame(pgn.EncodeSteerTelemetry(m.Telemetry())); err != nil {
		t.Fatal(err)
	}
	tel, ok := loop.Telemetry()
	if !ok {
		t.Fatal("expected telemetry")
	}
	if math.Abs(tel.ActualAngle-cmd.SteerAngle) > 0.15 {
		t.Errorf("expected wheel at %f, telemetry says %f", cmd.SteerAngle, tel.ActualAngle)
	}
	if !loop.Engaged() {
		t.Error("telemetry should not disengage without a steer switch")
	}
}

type chanLink struct {
	in  chan []byte
	out chan []byte
}

func (l *chanLink) Send(b []byte) error {
	select {
	case l.out <- append([]byte(nil), b...):
	default:
	}
	return nil
}

func (l *chanLink) Close() error                             { return nil }
func (l *chanLink) Listen(ctx context.Context) <-chan []byte { return l.in }

func TestModuleServe(t *testing.T) {
	link := &chanLink{in: make(chan []byte, 4), out: make(chan []byte, 64)}
	s := autosteer.DefaultSettings()
	link.in <- pgn.EncodeSteerSettings(s.SteerSettings)
	link.in <- pgn.EncodeSteerConfig(s.SteerConfig)
	link.in <- pgn.EncodeSteerData(pgn.SteerData{SpeedKmh: 9, AutoSteerOn: true, SteerAngle: 5})

	m := NewModule(nil)
	m.Watchdog = 0
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, link, 5*time.Millisecond) }()

	deadline := time.After(2 * time.Second)
	for moved := false; !moved; {
		select {
		case f := <-link.out:
			tel, err := pgn.DecodeSteerTelemetry(f)
			if err != nil {
				t.Fatal(err)
			}
			moved = tel.ActualAngle > 0
		case <-deadline:
			t.Fatal("module never reported movement")
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestModuleServeLinkClosed(t *testing.T) {
	link := &chanLink{in: make(chan []byte), out: make(chan []byte, 1)}
	close(link.in)
	if err := NewModule(nil).Serve(context.Background(), link, time.Second); err != nil {
		t.Errorf("expected nil when the link closes, got %v", err)
	}
}
