package analysis

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"

	"github.com/san-kum/agsteer/internal/sim"
)

// MinSamples is the shortest signal worth a spectrum.
const MinSamples = 32

var ErrTooShort = errors.New("analysis: too few samples")

// Spectrum is the one-sided amplitude spectrum of a signal.
type Spectrum struct {
	Freq      []float64 // Hz
	Amplitude []float64
}

// NewSpectrum removes the mean, applies a Hann window and transforms.
// Amplitudes are scaled so a pure sine of amplitude A peaks near A.
func NewSpectrum(data []float64, dt float64) (Spectrum, error) {
	n := len(data)
	if n < MinSamples {
		return Spectrum{}, ErrTooShort
	}
	if !(dt > 0) {
		return Spectrum{}, errors.New("analysis: dt must be positive")
	}

	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(n)

	w := window.Hann(n)
	gain := 0.0
	x := make([]float64, n)
	for i, v := range data {
		x[i] = (v - mean) * w[i]
		gain += w[i]
	}

	coeffs := fft.FFTReal(x)
	half := n/2 + 1
	s := Spectrum{Freq: make([]float64, half), Amplitude: make([]float64, half)}
	for k := 0; k < half; k++ {
		s.Freq[k] = float64(k) / (float64(n) * dt)
		s.Amplitude[k] = 2 * cmplx.Abs(coeffs[k]) / gain
	}
	return s, nil
}

// Peak is the strongest component above DC.
type Peak struct {
	Hz        float64
	Amplitude float64
}

func (s Spectrum) Peak() Peak {
	var p Peak
	for k := 1; k < len(s.Amplitude); k++ {
		if s.Amplitude[k] > p.Amplitude {
			p = Peak{Hz: s.Freq[k], Amplitude: s.Amplitude[k]}
		}
	}
	return p
}

// Weave is the dominant oscillation in steering and cross-track error.
type Weave struct {
	Samples int
	Steer   Peak // degrees
	XTE     Peak // metres
	// Period of the steering peak in seconds, Inf when there is none.
	Period float64
}

// DetectWeave analyses the line-following part of a run. Samples taken
// while turning or holding a command are left out, and the longest
// unbroken stretch is used so the turns do not show up as a peak.
func DetectWeave(samples []sim.Sample, dt float64) (Weave, error) {
	steer, xte := longestStretch(samples)
	w := Weave{Samples: len(steer), Period: math.Inf(1)}

	ss, err := NewSpectrum(steer, dt)
	if err != nil {
		return w, err
	}
	xs, err := NewSpectrum(xte, dt)
	if err != nil {
		return w, err
	}
	w.Steer = ss.Peak()
	w.XTE = xs.Peak()
	if w.Steer.Hz > 0 {
		w.Period = 1 / w.Steer.Hz
	}
	return w, nil
}

func longestStretch(samples []sim.Sample) (steer, xte []float64) {
	start, bestStart, bestLen := 0, 0, 0
	for i := 0; i <= len(samples); i++ {
		if i < len(samples) && !samples[i].Status.Steering() && !samples[i].Held {
			continue
		}
		if i-start > bestLen {
			bestStart, bestLen = start, i-start
		}
		start = i + 1
	}
	steer = make([]float64, bestLen)
	xte = make([]float64, bestLen)
	for i := range bestLen {
		s := samples[bestStart+i]
		steer[i] = s.SteerCmd
		xte[i] = s.XTE
	}
	return steer, xte
}
