package metrics

import (
	"math"

	"github.com/san-kum/agsteer/internal/sim"
)

// OnLine is the fraction of line-following samples within threshold
// metres of the line. Turn samples are not counted.
type OnLine struct {
	name      string
	threshold float64
	within    int
	samples   int
}

func NewOnLine(threshold float64) *OnLine {
	return &OnLine{
		name:      "on_line",
		threshold: threshold,
	}
}

func (s *OnLine) Name() string {
	return s.name
}

func (s *OnLine) Observe(smp sim.Sample) {
	if smp.Status.Steering() {
		return
	}
	s.samples++
	if math.Abs(smp.XTE) <= s.threshold {
		s.within++
	}
}

func (s *OnLine) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return float64(s.within) / float64(s.samples)
}

func (s *OnLine) Reset() {
	s.within = 0
	s.samples = 0
}
