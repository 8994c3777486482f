package pgn

import "encoding/binary"

const (
	steerSettingsLen  = 8
	steerConfigLen    = 8
	steerDataLen      = 8
	steerTelemetryLen = 10

	// raw telemetry values meaning the module has no IMU reading
	headingUnavailable = 9999
	rollUnavailable    = 8888
)

// SteerSettings carries the controller gains and PWM limits (PGN 252).
type SteerSettings struct {
	Kp      uint8
	HighPWM uint8
	LowPWM  uint8
	MinPWM  uint8
	// DeadzoneHeading in degrees, sent in 0.1° steps.
	DeadzoneHeading float64
	// DeadzoneDelay in controller loop ticks.
	DeadzoneDelay uint8
	WASOffset     int16
}

func AppendSteerSettings(dst []byte, s SteerSettings) []byte {
	var p [steerSettingsLen]byte
	p[0] = s.Kp
	p[1] = s.HighPWM
	p[2] = s.LowPWM
	p[3] = s.MinPWM
	p[4] = u8(s.DeadzoneHeading, 10)
	p[5] = s.DeadzoneDelay
	putI16(p[6:], s.WASOffset)
	return AppendFrame(dst, SourceApp, PGNSteerSettings, p[:])
}

func EncodeSteerSettings(s SteerSettings) []byte {
	return AppendSteerSettings(make([]byte, 0, headerLen+steerSettingsLen+1), s)
}

func DecodeSteerSettings(b []byte) (SteerSettings, error) {
	p, err := expect(b, PGNSteerSettings, steerSettingsLen)
	if err != nil {
		return SteerSettings{}, err
	}
	return SteerSettings{
		Kp:              p[0],
		HighPWM:         p[1],
		LowPWM:          p[2],
		MinPWM:          p[3],
		DeadzoneHeading: float64(p[4]) / 10,
		DeadzoneDelay:   p[5],
		WASOffset:       getI16(p[6:]),
	}, nil
}

// SteerConfig carries hardware settings that rarely change (PGN 251).
type SteerConfig struct {
	InvertWAS       bool
	InvertMotor     bool
	RelayActiveHigh bool
	SingleInputWAS  bool
	CytronDriver    bool
	SteerSwitch     bool
	SteerButton     bool
	ShaftEncoder    bool

	CountsPerDegree uint8
	// Ackermann compensation in percent.
	Ackermann     uint8
	PulseCountMax uint8
	// MinSpeed in km/h, sent in 0.1 km/h steps.
	MinSpeed float64

	Danfoss        bool
	PressureSensor bool
	CurrentSensor  bool
	UseYAxis       bool

	PressureTrip uint8
	CurrentTrip  uint8
}

func AppendSteerConfig(dst []byte, c SteerConfig) []byte {
	var p [steerConfigLen]byte
	p[0] = flags(c.InvertWAS, c.InvertMotor, c.RelayActiveHigh, c.SingleInputWAS,
		c.CytronDriver, c.SteerSwitch, c.SteerButton, c.ShaftEncoder)
	p[1] = c.CountsPerDegree
	p[2] = c.Ackermann
	p[3] = c.PulseCountMax
	p[4] = u8(c.MinSpeed, 10)
	p[5] = flags(c.Danfoss, c.PressureSensor, c.CurrentSensor, c.UseYAxis)
	p[6] = c.PressureTrip
	p[7] = c.CurrentTrip
	return AppendFrame(dst, SourceApp, PGNSteerConfig, p[:])
}

func EncodeSteerConfig(c SteerConfig) []byte {
	return AppendSteerConfig(make([]byte, 0, headerLen+steerConfigLen+1), c)
}

func DecodeSteerConfig(b []byte) (SteerConfig, error) {
	p, err := expect(b, PGNSteerConfig, steerConfigLen)
	if err != nil {
		return SteerConfig{}, err
	}
	return SteerConfig{
		InvertWAS:       bit(p[0], 0),
		InvertMotor:     bit(p[0], 1),
		RelayActiveHigh: bit(p[0], 2),
		SingleInputWAS:  bit(p[0], 3),
		CytronDriver:    bit(p[0], 4),
		SteerSwitch:     bit(p[0], 5),
		SteerButton:     bit(p[0], 6),
		ShaftEncoder:    bit(p[0], 7),
		CountsPerDegree: p[1],
		Ackermann:       p[2],
		PulseCountMax:   p[3],
		MinSpeed:        float64(p[4]) / 10,
		Danfoss:         bit(p[5], 0),
		PressureSensor:  bit(p[5], 1),
		CurrentSensor:   bit(p[5], 2),
		UseYAxis:        bit(p[5], 3),
		PressureTrip:    p[6],
		CurrentTrip:     p[7],
	}, nil
}

// SteerData is the per-tick command to the controller (PGN 254).
type SteerData struct {
	SpeedKmh    float64
	AutoSteerOn bool
	// SteerAngle in degrees, positive right.
	SteerAngle float64
	// CrossTrackError in metres, sent in whole centimetres.
	CrossTrackError float64
	Sections        uint8
}

func AppendSteerData(dst []byte, d SteerData) []byte {
	var p [steerDataLen]byte
	binary.LittleEndian.PutUint16(p[0:], u16(d.SpeedKmh, 10))
	p[2] = flags(d.AutoSteerOn)
	putI16(p[3:], i16(d.SteerAngle, 100))
	putI16(p[5:], i16(d.CrossTrackError, 100))
	p[7] = d.Sections
	return AppendFrame(dst, SourceApp, PGNSteerData, p[:])
}

func EncodeSteerData(d SteerData) []byte {
	return AppendSteerData(make([]byte, 0, headerLen+steerDataLen+1), d)
}

func DecodeSteerData(b []byte) (SteerData, error) {
	p, err := expect(b, PGNSteerData, steerDataLen)
	if err != nil {
		return SteerData{}, err
	}
	return SteerData{
		SpeedKmh:        float64(binary.LittleEndian.Uint16(p[0:])) / 10,
		AutoSteerOn:     bit(p[2], 0),
		SteerAngle:      float64(getI16(p[3:])) / 100,
		CrossTrackError: float64(getI16(p[5:])) / 100,
		Sections:        p[7],
	}, nil
}

// SteerTelemetry is reported by the controller (PGN 253).
type SteerTelemetry struct {
	// Angles in degrees.
	ActualAngle float64
	SetAngle    float64

	// Heading and Roll in degrees, only meaningful when the matching
	// Valid flag is set.
	Heading      float64
	HeadingValid bool
	Roll         float64
	RollValid    bool

	Switch uint8
	PWM    uint8
}

// WorkSwitch and SteerSwitch decode the switch byte.
func (t SteerTelemetry) WorkSwitch() bool  { return bit(t.Switch, 0) }
func (t SteerTelemetry) SteerSwitch() bool { return bit(t.Switch, 1) }

func AppendSteerTelemetry(dst []byte, t SteerTelemetry) []byte {
	var p [steerTelemetryLen]byte
	putI16(p[0:], i16(t.ActualAngle, 100))
	putI16(p[2:], i16(t.SetAngle, 100))
	heading := int16(headingUnavailable)
	if t.HeadingValid {
		heading = i16(t.Heading, 10)
	}
	roll := int16(rollUnavailable)
	if t.RollValid {
		roll = i16(t.Roll, 10)
	}
	putI16(p[4:], heading)
	putI16(p[6:], roll)
	p[8] = t.Switch
	p[9] = t.PWM
	return AppendFrame(dst, SourceSteer, PGNSteerTelemetry, p[:])
}

func EncodeSteerTelemetry(t SteerTelemetry) []byte {
	return AppendSteerTelemetry(make([]byte, 0, headerLen+steerTelemetryLen+1), t)
}

// DecodeSteerTelemetry never panics; any defect yields a *FrameError.
func DecodeSteerTelemetry(b []byte) (SteerTelemetry, error) {
	p, err := expect(b, PGNSteerTelemetry, steerTelemetryLen)
	if err != nil {
		return SteerTelemetry{}, err
	}
	t := SteerTelemetry{
		ActualAngle: float64(getI16(p[0:])) / 100,
		SetAngle:    float64(getI16(p[2:])) / 100,
		Switch:      p[8],
		PWM:         p[9],
	}
	if h := getI16(p[4:]); h != headingUnavailable {
		t.Heading = float64(h) / 10
		t.HeadingValid = true
	}
	if r := getI16(p[6:]); r != rollUnavailable {
		t.Roll = float64(r) / 10
		t.RollValid = true
	}
	return t, nil
}
