// Package control emulates the steering controller that turns the wheel
// angle commands of the guidance loop into valve or motor PWM.
package control

import (
	"context"
	"math"
	"time"

	"github.com/san-kum/agsteer/internal/logging"
	"github.com/san-kum/agsteer/internal/pgn"
	"github.com/san-kum/agsteer/internal/transport"
)

const (
	DefaultSlewRate = 20 // deg/s at full PWM
	DefaultMaxAngle = 40
	DefaultWatchdog = 10
	maxPWM          = 255
)

// SwitchSteer is the steer switch bit of the telemetry switch byte.
const SwitchSteer uint8 = 1 << 1

// Module answers steering frames the way the controller firmware does:
// PWM proportional to the angle error, raised by MinPWM, capped at
// HighPWM, and zero inside the heading deadzone. The wheel moves at
// SlewRate times the PWM duty.
//
// Not safe for concurrent use.
type Module struct {
	SlewRate float64
	MaxAngle float64
	// Watchdog is how many steps may pass without steer data before the
	// module lets go of the wheel.
	Watchdog int
	Switch   uint8

	settings pgn.SteerSettings
	config   pgn.SteerConfig
	pid      *PID

	angle     float64
	target    float64
	pwm       float64
	engaged   bool
	sinceData int
	dropped   int
	log       *logging.Logger
}

func NewModule(lg *logging.Logger) *Module {
	return &Module{
		SlewRate: DefaultSlewRate,
		MaxAngle: DefaultMaxAngle,
		Watchdog: DefaultWatchdog,
		Switch:   SwitchSteer,
		pid:      NewPID(0, 0, 0),
		log:      lg,
	}
}

func (m *Module) Settings() pgn.SteerSettings { return m.settings }
func (m *Module) Config() pgn.SteerConfig     { return m.config }
func (m *Module) Angle() float64              { return m.angle }
func (m *Module) Engaged() bool               { return m.engaged }
func (m *Module) Dropped() int                { return m.dropped }

func (m *Module) applySettings(s pgn.SteerSettings) {
	m.settings = s
	m.pid.Kp = float64(s.Kp)
	m.pid.Limit = float64(s.HighPWM)
	m.pid.Reset()
}

// HandleFrame applies one frame from the guidance side. Malformed frames
// are counted and returned; frames the module does not consume are
// ignored.
func (m *Module) HandleFrame(b []byte) error {
	id, err := pgn.PeekPGN(b)
	if err != nil {
		m.dropped++
		return err
	}
	switch id {
	case pgn.PGNSteerSettings:
		s, err := pgn.DecodeSteerSettings(b)
		if err != nil {
			m.dropped++
			return err
		}
		m.applySettings(s)
		m.log.Info("steer settings", "kp", s.Kp, "high_pwm", s.HighPWM, "min_pwm", s.MinPWM)
	case pgn.PGNSteerConfig:
		c, err := pgn.DecodeSteerConfig(b)
		if err != nil {
			m.dropped++
			return err
		}
		m.config = c
		m.log.Info("steer config", "steer_switch", c.SteerSwitch, "min_speed", c.MinSpeed)
	case pgn.PGNSteerData:
		d, err := pgn.DecodeSteerData(b)
		if err != nil {
			m.dropped++
			return err
		}
		m.target = math.Max(-m.MaxAngle, math.Min(m.MaxAngle, d.SteerAngle))
		on := d.AutoSteerOn && d.SpeedKmh >= m.config.MinSpeed
		if m.config.SteerSwitch && m.Switch&SwitchSteer == 0 {
			on = false
		}
		if on != m.engaged {
			m.log.Debug("module engage", "on", on)
			m.pid.Reset()
		}
		m.engaged = on
		m.sinceData = 0
	}
	return nil
}

// Step advances the wheel by dt seconds.
func (m *Module) Step(dt float64) {
	m.sinceData++
	if m.Watchdog > 0 && m.sinceData > m.Watchdog && m.engaged {
		m.log.Warn("steer data timeout, releasing")
		m.engaged = false
	}
	if !m.engaged {
		m.pwm = 0
		return
	}

	err := m.target - m.angle
	if math.Abs(err) <= m.settings.DeadzoneHeading {
		m.pwm = 0
		return
	}
	u := m.pid.Update(err, dt)
	duty := math.Abs(u)
	if duty > 0 {
		duty = math.Min(duty+float64(m.settings.MinPWM), float64(m.settings.HighPWM))
	}
	m.pwm = math.Copysign(duty, u)

	step := m.pwm / maxPWM * m.SlewRate * dt
	// never overshoot inside one step
	if math.Abs(step) > math.Abs(err) {
		step = err
	}
	m.angle = math.Max(-m.MaxAngle, math.Min(m.MaxAngle, m.angle+step))
}

func (m *Module) Telemetry() pgn.SteerTelemetry {
	return pgn.SteerTelemetry{
		ActualAngle: m.angle,
		SetAngle:    m.target,
		Switch:      m.Switch,
		PWM:         uint8(math.Round(math.Abs(m.pwm))),
	}
}

// Serve runs the module against a link until ctx is done or the link
// closes, sending telemetry after every step.
func (m *Module) Serve(ctx context.Context, link transport.Link, dt time.Duration) error {
	frames := link.Listen(ctx)
	ticker := time.NewTicker(dt)
	defer ticker.Stop()

	var buf []byte
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			m.HandleFrame(f)
		case <-ticker.C:
			m.Step(dt.Seconds())
			buf = pgn.AppendSteerTelemetry(buf[:0], m.Telemetry())
			if err := link.Send(buf); err != nil {
				m.log.Warn("send telemetry failed", "error", err)
			}
		}
	}
}
