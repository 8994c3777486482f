package metrics

import (
	"math"

	"github.com/san-kum/agsteer/internal/sim"
)

// SteerEffort is the mean absolute commanded wheel angle in degrees.
type SteerEffort struct {
	name    string
	sum     float64
	samples int
}

func NewSteerEffort() *SteerEffort {
	return &SteerEffort{
		name: "steer_effort",
	}
}

func (c *SteerEffort) Name() string {
	return c.name
}

func (c *SteerEffort) Observe(s sim.Sample) {
	c.sum += math.Abs(s.SteerCmd)
	c.samples++
}

func (c *SteerEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *SteerEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// SteerRate is the mean absolute change of the command in degrees per
// second. A chattering controller scores high even with a small effort.
type SteerRate struct {
	name    string
	sum     float64
	samples int
	prev    sim.Sample
	started bool
}

func NewSteerRate() *SteerRate {
	return &SteerRate{name: "steer_rate"}
}

func (c *SteerRate) Name() string { return c.name }

func (c *SteerRate) Observe(s sim.Sample) {
	if c.started {
		if dt := s.T - c.prev.T; dt > 0 {
			c.sum += math.Abs(s.SteerCmd-c.prev.SteerCmd) / dt
			c.samples++
		}
	}
	c.prev = s
	c.started = true
}

func (c *SteerRate) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *SteerRate) Reset() {
	c.sum = 0
	c.samples = 0
	c.started = false
}
