// Package optim tunes guidance parameters by exhaustive search.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/agsteer/internal/sim"
)

var ErrNoValidTrial = errors.New("optim: no trial produced a value")

// Objective scores one parameter set; lower is better.
type Objective func(ctx context.Context, params map[string]float64) (float64, error)

type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	workers    int
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) == 0 || len(params) != len(ranges) {
		return nil, fmt.Errorf("optim: %d names for %d ranges", len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("optim: %s has no values", params[i])
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges, workers: runtime.GOMAXPROCS(0)}, nil
}

// SetWorkers bounds how many trials run at once.
func (g *GridSearch) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	g.workers = n
}

// Points lists every combination, last parameter varying fastest.
func (g *GridSearch) Points() []map[string]float64 {
	var out []map[string]float64
	g.collect(0, make(map[string]float64), &out)
	return out
}

func (g *GridSearch) collect(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		*out = append(*out, current)
		return
	}
	name := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		next := make(map[string]float64, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		next[name] = val
		g.collect(depth+1, next, out)
	}
}

// Search runs every point. A failing trial is recorded and skipped; only
// cancellation aborts the search. Ties keep the earlier point.
func (g *GridSearch) Search(ctx context.Context, obj Objective) (Trial, []Trial, error) {
	points := g.Points()
	trials := make([]Trial, len(points))

	var eg errgroup.Group
	eg.SetLimit(g.workers)
	for i, p := range points {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := obj(ctx, p)
			trials[i] = Trial{Params: p, Value: v, Err: err}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Trial{}, trials, err
	}
	if err := ctx.Err(); err != nil {
		return Trial{}, trials, err
	}

	best := -1
	for i, t := range trials {
		if t.Err != nil || math.IsNaN(t.Value) {
			continue
		}
		if best < 0 || t.Value < trials[best].Value {
			best = i
		}
	}
	if best < 0 {
		return Trial{}, trials, ErrNoValidTrial
	}
	return trials[best], trials, nil
}

// Build returns a fresh simulator and pass config for one parameter set.
type Build func(params map[string]float64) (*sim.Simulator, sim.Config, error)

// SimObjective scores a parameter set by the mean of metric over runs
// passes with consecutive seeds.
func SimObjective(build Build, metric string, runs int) Objective {
	if runs < 1 {
		runs = 1
	}
	return func(ctx context.Context, params map[string]float64) (float64, error) {
		_, cfg, err := build(params)
		if err != nil {
			return 0, err
		}
		factory := func() (*sim.Simulator, error) {
			s, _, err := build(params)
			return s, err
		}
		results, err := sim.NewEnsemble(factory, runs, cfg.Seed).Run(ctx, cfg)
		if err != nil {
			return 0, err
		}
		sum := 0.0
		for _, r := range results {
			v, ok := r.Metrics[metric]
			if !ok {
				return 0, fmt.Errorf("optim: run has no metric %q", metric)
			}
			sum += v
		}
		return sum / float64(len(results)), nil
	}
}
