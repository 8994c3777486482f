package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/agsteer/internal/analysis"
	"github.com/san-kum/agsteer/internal/automation"
	"github.com/san-kum/agsteer/internal/config"
	"github.com/san-kum/agsteer/internal/control"
	"github.com/san-kum/agsteer/internal/logging"
	"github.com/san-kum/agsteer/internal/optim"
	"github.com/san-kum/agsteer/internal/sim"
	"github.com/san-kum/agsteer/internal/storage"
	"github.com/san-kum/agsteer/internal/transport"
	"github.com/san-kum/agsteer/internal/viz"
)

// parseGrid turns "key=v1,v2" flags into search axes. Keys are checked
// against the settable config params.
const tuneExample = "agsteer tune --grid guidance.look_ahead_hold=2,3,4 --grid guidance.integral_gain=0,0.1"

func parseGrid(args []string) ([]string, [][]float64, error) {
	if len(args) == 0 {
		return nil, nil, errors.New("at least one --grid is required")
	}
	defaults := config.DefaultConfig()
	names := make([]string, 0, len(args))
	ranges := make([][]float64, 0, len(args))
	for _, arg := range args {
		key, list, ok := strings.Cut(arg, "=")
		if !ok || list == "" {
			return nil, nil, fmt.Errorf("bad grid %q, want key=v1,v2", arg)
		}
		key = strings.TrimSpace(key)
		if _, err := defaults.Get(key); err != nil {
			return nil, nil, err
		}
		var values []float64
		for _, f := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("grid %s: %w", key, err)
			}
			values = append(values, v)
		}
		names = append(names, key)
		ranges = append(ranges, values)
	}
	return names, ranges, nil
}

// paramBuild makes a fresh rig for every parameter set, starting from a
// copy of base.
func paramBuild(base *config.Config, lg *logging.Logger) optim.Build {
	return func(params map[string]float64) (*sim.Simulator, sim.Config, error) {
		cfg := *base
		for k, v := range params {
			if err := cfg.Set(k, v); err != nil {
				return nil, sim.Config{}, err
			}
		}
		r, err := newRig(&cfg, lg)
		if err != nil {
			return nil, sim.Config{}, err
		}
		return r.sim, simConfig(&cfg), nil
	}
}

func formatParams(names []string, p map[string]float64) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s=%g", n, p[n])
	}
	return strings.Join(parts, " ")
}

func tuneParams(cmd *cobra.Command, args []string) error {
	base, lg, err := configure(cmd, args)
	if err != nil {
		return err
	}
	names, ranges, err := parseGrid(grid)
	if err != nil {
		return err
	}
	gs, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}
	if workers > 0 {
		gs.SetWorkers(workers)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	start := time.Now()
	best, all, err := gs.Search(ctx, optim.SimObjective(paramBuild(base, lg), metric, runs))
	if err != nil {
		return err
	}
	lg.Info("tune finished", "points", len(all), "metric", metric, "elapsed", time.Since(start))

	sort.SliceStable(all, func(i, j int) bool {
		if (all[i].Err == nil) != (all[j].Err == nil) {
			return all[i].Err == nil
		}
		return all[i].Value < all[j].Value
	})
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tPARAMS\n", strings.ToUpper(metric))
	for _, t := range all {
		if t.Err != nil {
			fmt.Fprintf(w, "error\t%s (%v)\n", formatParams(names, t.Params), t.Err)
			continue
		}
		fmt.Fprintf(w, "%.4f\t%s\n", t.Value, formatParams(names, t.Params))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nbest %s %.4f with %s\n", metric, best.Value, formatParams(names, best.Params))
	return nil
}

// passRunner builds a rig per config and optionally stores the pass.
func passRunner(lg *logging.Logger, st *storage.Store) automation.Runner {
	return func(ctx context.Context, cfg *config.Config) (*sim.Result, error) {
		r, err := newRig(cfg, lg)
		if err != nil {
			return nil, err
		}
		res, err := r.sim.Run(ctx, simConfig(cfg))
		if err != nil {
			return nil, err
		}
		if st != nil {
			id, err := st.Save(r.metadata(), res, r.field)
			if err != nil {
				return res, err
			}
			lg.Info("run saved", "id", id, "name", cfg.Name)
		}
		return res, nil
	}
}

func runBatch(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	lg := logging.New(logLevel, "")

	var st *storage.Store
	if save {
		st = storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if sc.Name != "" {
		fmt.Printf("scenario %s: %d steps\n", sc.Name, len(sc.Steps))
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tNAME\tSEED\tSTEPS\tSTOPPED\tXTE_RMS\tTURNS")
	results, err := automation.RunScenario(ctx, sc, passRunner(lg, st), func(r automation.StepResult) {
		if r.Err != nil {
			fmt.Fprintf(w, "%d\t%s\t%d\terror: %v\n", r.Step, r.Name, r.Seed, r.Err)
			return
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\t%.3f\t%.0f\n",
			r.Step, r.Name, r.Seed, r.Result.StepsTaken, r.Result.Stopped,
			r.Result.Metrics["xte_rms"], r.Result.Metrics["turns"])
	})
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d passes failed", failed, len(results))
	}
	return nil
}

func monteCarlo(cmd *cobra.Command, args []string) error {
	base, lg, err := configure(cmd, args)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	mc := automation.MonteCarloConfig{
		Trials:          trials,
		MaxOffset:       maxOffset,
		MaxHeadingError: maxHead,
		Tolerance:       tolerance,
		Seed:            mcSeed,
	}
	results, err := automation.RunMonteCarlo(ctx, base, mc, passRunner(lg, nil))
	if err != nil {
		return err
	}
	settled, unsettled := automation.MonteCarloStats(results)

	worst := results[0]
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("trial %d: %v\n", r.Trial, r.Err)
		}
		if !r.Settled && (worst.Settled || r.StartOffset*r.StartOffset > worst.StartOffset*worst.StartOffset) {
			worst = r
		}
	}
	fmt.Printf("%s: %d of %d passes settled within %.2f m\n", base.Name, settled, settled+unsettled, tolerance)
	if !worst.Settled {
		fmt.Printf("largest unsettled start: offset %+.2f m, heading %+.1f°, final xte %+.3f m\n",
			worst.StartOffset, worst.StartHeadingError, worst.FinalXTE)
	}
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	st, id, err := resolveRun(args)
	if err != nil {
		return err
	}
	meta, err := st.Load(id)
	if err != nil {
		return err
	}
	samples, err := st.LoadSamples(id)
	if err != nil {
		return err
	}
	wv, err := analysis.DetectWeave(samples, meta.Dt)
	if err != nil {
		return fmt.Errorf("run %s: %w", meta.ID, err)
	}

	fmt.Printf("run: %s (%s, %s)\n", meta.ID, meta.Name, meta.Law)
	fmt.Printf("line following: %d samples\n\n", wv.Samples)
	fmt.Printf("steer peak: %.3f Hz, %.2f°\n", wv.Steer.Hz, wv.Steer.Amplitude)
	fmt.Printf("xte peak:   %.3f Hz, %.3f m\n", wv.XTE.Hz, wv.XTE.Amplitude)
	if wv.Steer.Hz > 0 {
		fmt.Printf("weave period: %.1f s\n", wv.Period)
	}
	fmt.Println()
	fmt.Println(viz.ASCIIPlot(samples, width, height))
	return nil
}

// emulateModule stands in for the steering controller: it answers steer
// frames with telemetry until interrupted.
func emulateModule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configFile, preset)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	lg := logging.New(cfg.Log.Level, cfg.Log.Dir)
	if !(rate > 0) {
		return fmt.Errorf("rate must be positive, got %g", rate)
	}

	var link transport.Link
	switch {
	case port != "":
		link, err = transport.OpenSerial(port, cfg.Transport.Serial, lg)
	case reply != "":
		link, err = transport.DialUDP(reply, emuListen, lg)
	default:
		return errors.New("emulate needs --reply or --port")
	}
	if err != nil {
		return err
	}
	defer link.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	m := control.NewModule(lg)
	fmt.Println("emulating steer module, ctrl-c to stop")
	err = m.Serve(ctx, link, time.Duration(float64(time.Second)/rate))
	fmt.Printf("angle %.1f°, engaged %v, %d frames dropped\n", m.Angle(), m.Engaged(), m.Dropped())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
