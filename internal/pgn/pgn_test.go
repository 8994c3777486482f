package pgn

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTelemetryRoundTrip(t *testing.T) {
	want := SteerTelemetry{
		ActualAngle:  -12.34,
		SetAngle:     15.5,
		Heading:      271.3,
		HeadingValid: true,
		Roll:         -2.5,
		RollValid:    true,
		Switch:       0x03,
		PWM:          187,
	}
	got, err := DecodeSteerTelemetry(EncodeSteerTelemetry(want))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("telemetry mismatch (-want +got):\n%s", diff)
	}
	if !got.WorkSwitch() || !got.SteerSwitch() {
		t.Error("expected both switches set")
	}
}

func TestTelemetryWithoutIMU(t *testing.T) {
	in := SteerTelemetry{ActualAngle: 1, SetAngle: 2, Heading: 90, Roll: 3, PWM: 10}
	got, err := DecodeSteerTelemetry(EncodeSteerTelemetry(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := SteerTelemetry{ActualAngle: 1, SetAngle: 2, PWM: 10}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("telemetry mismatch (-want +got):\n%s", diff)
	}
}

func TestTelemetryLayout(t *testing.T) {
	b := EncodeSteerTelemetry(SteerTelemetry{ActualAngle: 1.5, SetAngle: -1, PWM: 200})
	want := []byte{
		0x80, 0x81, 0x7E, 253, 10,
		0x96, 0x00, // 150
		0x9C, 0xFF, // -100
		0x0F, 0x27, // 9999
		0xB8, 0x22, // 8888
		0x00, 0xC8,
	}
	var sum byte
	for _, v := range want[2:] {
		sum += v
	}
	want = append(want, sum)
	if diff := cmp.Diff(want, b); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	want := SteerSettings{
		Kp:              50,
		HighPWM:         235,
		LowPWM:          30,
		MinPWM:          25,
		DeadzoneHeading: 0.5,
		DeadzoneDelay:   5,
		WASOffset:       -320,
	}
	b := EncodeSteerSettings(want)
	if len(b) != 14 {
		t.Fatalf("expected 14 byte frame, got %d", len(b))
	}
	got, err := DecodeSteerSettings(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	want := SteerConfig{
		InvertWAS:       true,
		RelayActiveHigh: true,
		ShaftEncoder:    true,
		CountsPerDegree: 110,
		Ackermann:       100,
		PulseCountMax:   3,
		MinSpeed:        1.5,
		Danfoss:         true,
		UseYAxis:        true,
		PressureTrip:    80,
		CurrentTrip:     40,
	}
	got, err := DecodeSteerConfig(EncodeSteerConfig(want))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestSteerDataSaturates(t *testing.T) {
	got, err := DecodeSteerData(EncodeSteerData(SteerData{
		SpeedKmh:        -3,
		AutoSteerOn:     true,
		SteerAngle:      1000,
		CrossTrackError: -1000,
		Sections:        7,
	}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := SteerData{
		SpeedKmh:        0,
		AutoSteerOn:     true,
		SteerAngle:      327.67,
		CrossTrackError: -327.68,
		Sections:        7,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("steer data mismatch (-want +got):\n%s", diff)
	}
}

func TestMalformedFrames(t *testing.T) {
	good := EncodeSteerTelemetry(SteerTelemetry{ActualAngle: 3})

	badCRC := append([]byte(nil), good...)
	badCRC[len(badCRC)-1]++

	badHeader := append([]byte(nil), good...)
	badHeader[0] = 0x00

	wrongLen := append([]byte(nil), good...)
	wrongLen[4] = 9

	tests := []struct {
		name string
		b    []byte
	}{
		{"empty", nil},
		{"short", good[:4]},
		{"truncated", good[:len(good)-2]},
		{"bad crc", badCRC},
		{"bad header", badHeader},
		{"length byte mismatch", wrongLen},
		{"wrong pgn", EncodeSteerSettings(SteerSettings{})},
		{"wrong payload length", AppendFrame(nil, SourceSteer, PGNSteerTelemetry, make([]byte, 8))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSteerTelemetry(tt.b)
			if !errors.Is(err, ErrMalformedFrame) {
				t.Fatalf("expected ErrMalformedFrame, got %v", err)
			}
			var fe *FrameError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FrameError, got %T", err)
			}
			if fe.Reason == "" {
				t.Error("expected a reason")
			}
		})
	}
}

func TestPeekPGN(t *testing.T) {
	got, err := PeekPGN(EncodeSteerConfig(SteerConfig{}))
	if err != nil {
		t.Fatal(err)
	}
	if got != PGNSteerConfig {
		t.Errorf("expected pgn %d, got %d", PGNSteerConfig, got)
	}
}

func TestAppendFrameReusesBuffer(t *testing.T) {
	buf := make([]byte, 0, 64)
	buf = AppendSteerData(buf, SteerData{SpeedKmh: 8})
	n := len(buf)
	buf = AppendSteerData(buf, SteerData{SpeedKmh: 9})
	first, err := DecodeSteerData(buf[:n])
	if err != nil {
		t.Fatal(err)
	}
	second, err := DecodeSteerData(buf[n:])
	if err != nil {
		t.Fatal(err)
	}
	if first.SpeedKmh != 8 || second.SpeedKmh != 9 {
		t.Errorf("got %v and %v", first.SpeedKmh, second.SpeedKmh)
	}
}
