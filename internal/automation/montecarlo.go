package automation

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/san-kum/agsteer/internal/config"
	"github.com/san-kum/agsteer/internal/sim"
)

// MonteCarloConfig perturbs the start pose of a pass.
type MonteCarloConfig struct {
	Trials int
	// Start offsets are drawn from [-MaxOffset, MaxOffset] metres and
	// heading errors from [-MaxHeadingError, MaxHeadingError] degrees.
	MaxOffset       float64
	MaxHeadingError float64
	// Tolerance is the |xte| in metres a pass must end within.
	Tolerance float64
	Seed      uint64
}

type MonteCarloResult struct {
	Trial             int
	StartOffset       float64
	StartHeadingError float64
	FinalXTE          float64
	Settled           bool
	Err               error
}

// RunMonteCarlo repeats base with random start poses and reports which
// passes end on the line.
func RunMonteCarlo(ctx context.Context, base *config.Config, mc MonteCarloConfig, run Runner) ([]MonteCarloResult, error) {
	if mc.Trials < 1 {
		return nil, errors.New("monte carlo needs at least one trial")
	}
	if !(mc.Tolerance > 0) {
		return nil, errors.New("monte carlo tolerance must be positive")
	}
	src := rand.NewPCG(mc.Seed, 0x2545f4914f6cdd1d)
	offset := distuv.Uniform{Min: -mc.MaxOffset, Max: mc.MaxOffset, Src: src}
	heading := distuv.Uniform{Min: -mc.MaxHeadingError, Max: mc.MaxHeadingError, Src: src}

	results := make([]MonteCarloResult, 0, mc.Trials)
	for trial := 0; trial < mc.Trials; trial++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		cfg := *base
		cfg.Sim.StartOffset = offset.Rand()
		cfg.Sim.StartHeadingError = heading.Rand()
		cfg.Sim.Seed = base.Sim.Seed + int64(trial)

		r := MonteCarloResult{
			Trial:             trial,
			StartOffset:       cfg.Sim.StartOffset,
			StartHeadingError: cfg.Sim.StartHeadingError,
			FinalXTE:          math.NaN(),
		}
		res, err := run(ctx, &cfg)
		if err != nil {
			r.Err = err
		} else if xte, ok := FinalXTE(res); ok {
			r.FinalXTE = xte
			r.Settled = math.Abs(xte) <= mc.Tolerance
		}
		results = append(results, r)
	}
	return results, nil
}

// FinalXTE is the cross-track error of the last sample taken while
// following a row.
func FinalXTE(res *sim.Result) (float64, bool) {
	if res == nil {
		return 0, false
	}
	for i := len(res.Samples) - 1; i >= 0; i-- {
		s := res.Samples[i]
		if !s.Status.Steering() && !s.Held {
			return s.XTE, true
		}
	}
	return 0, false
}

// MonteCarloStats counts settled and unsettled passes.
func MonteCarloStats(results []MonteCarloResult) (settled int, unsettled int) {
	for _, r := range results {
		if r.Settled {
			settled++
		} else {
			unsettled++
		}
	}
	return
}
