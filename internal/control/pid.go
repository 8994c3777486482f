package control

import "math"

// PID is a positional PID controller. When Limit is positive the output is
// clamped to [-Limit, Limit] and the integral stops growing while the
// output is saturated.
//
// Not safe for concurrent use.
type PID struct {
	Kp    float64
	Ki    float64
	Kd    float64
	Limit float64

	integral float64
	prevErr  float64
	first    bool
}

func NewPID(kp, ki, kd float64) *PID {
	return &PID{Kp: kp, Ki: ki, Kd: kd, first: true}
}

// Update returns the output for error err after dt seconds. A non-positive
// dt gives the proportional term only.
func (p *PID) Update(err, dt float64) float64 {
	if dt <= 0 {
		return p.clamp(p.Kp * err)
	}

	derivative := 0.0
	if !p.first {
		derivative = (err - p.prevErr) / dt
	}
	p.prevErr = err
	p.first = false

	integral := p.integral + err*dt
	u := p.Kp*err + p.Ki*integral + p.Kd*derivative
	out := p.clamp(u)
	if out == u {
		p.integral = integral
	}
	return out
}

func (p *PID) clamp(u float64) float64 {
	if p.Limit <= 0 {
		return u
	}
	return math.Max(-p.Limit, math.Min(p.Limit, u))
}

// Reset clears integral and derivative state.
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.first = true
}
