package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/agsteer/internal/sim"
	"github.com/san-kum/agsteer/internal/uturn"
)

type xteStat int

const (
	xteRMS xteStat = iota
	xteMeanAbs
	xteMax
	xteStdDev
)

// CrossTrack summarises the cross-track error of line-following samples.
// Samples are skipped until the vehicle first comes within settle metres
// of the line so a deliberate offset start does not dominate.
type CrossTrack struct {
	name    string
	kind    xteStat
	settle  float64
	settled bool
	values  []float64
}

func newCrossTrack(name string, kind xteStat, settle float64) *CrossTrack {
	return &CrossTrack{name: name, kind: kind, settle: settle}
}

func NewXTERMS(settle float64) *CrossTrack     { return newCrossTrack("xte_rms", xteRMS, settle) }
func NewXTEMeanAbs(settle float64) *CrossTrack { return newCrossTrack("xte_mean_abs", xteMeanAbs, settle) }
func NewXTEMax(settle float64) *CrossTrack     { return newCrossTrack("xte_max", xteMax, settle) }
func NewXTEStdDev(settle float64) *CrossTrack  { return newCrossTrack("xte_stddev", xteStdDev, settle) }

func (c *CrossTrack) Name() string { return c.name }

func (c *CrossTrack) Observe(s sim.Sample) {
	if s.Status.Steering() || s.Held {
		return
	}
	if !c.settled {
		if c.settle > 0 && math.Abs(s.XTE) > c.settle {
			return
		}
		c.settled = true
	}
	c.values = append(c.values, s.XTE)
}

func (c *CrossTrack) Value() float64 {
	n := len(c.values)
	if n == 0 {
		return 0
	}
	switch c.kind {
	case xteMeanAbs:
		abs := make([]float64, n)
		for i, v := range c.values {
			abs[i] = math.Abs(v)
		}
		return stat.Mean(abs, nil)
	case xteMax:
		return math.Max(floats.Max(c.values), -floats.Min(c.values))
	case xteStdDev:
		if n < 2 {
			return 0
		}
		return stat.StdDev(c.values, nil)
	}
	return math.Sqrt(floats.Dot(c.values, c.values) / float64(n))
}

func (c *CrossTrack) Reset() {
	c.values = c.values[:0]
	c.settled = false
}

// Turns counts completed U-turns.
type Turns struct {
	count int
}

func NewTurns() *Turns { return &Turns{} }

func (t *Turns) Name() string { return "turns" }

func (t *Turns) Observe(s sim.Sample) {
	if s.Status == uturn.StatusCompleted {
		t.count++
	}
}

func (t *Turns) Value() float64 { return float64(t.count) }
func (t *Turns) Reset()         { t.count = 0 }

// Standard is the set recorded with every run.
func Standard() []sim.Metric {
	const settle = 0.1
	return []sim.Metric{
		NewXTERMS(settle),
		NewXTEMeanAbs(settle),
		NewXTEMax(settle),
		NewXTEStdDev(settle),
		NewSteerEffort(),
		NewSteerRate(),
		NewOnLine(0.05),
		NewTurns(),
	}
}
