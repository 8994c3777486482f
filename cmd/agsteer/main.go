package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/agsteer/internal/config"
	"github.com/san-kum/agsteer/internal/geo"
	"github.com/san-kum/agsteer/internal/logging"
	"github.com/san-kum/agsteer/internal/sim"
	"github.com/san-kum/agsteer/internal/storage"
	"github.com/san-kum/agsteer/internal/transport"
	"github.com/san-kum/agsteer/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string
	logLevel   string
	// overrides
	law        string
	integrator string
	duration   float64
	speed      float64
	seed       int64
	// plot
	pngFile string
	width   int
	height  int
	// live
	theme string
	// drive
	remote string
	port   string
	listen string
	// emulate
	emuListen string
	reply     string
	rate      float64
	// tune
	grid    []string
	metric  string
	runs    int
	workers int
	// montecarlo
	trials    int
	maxOffset float64
	maxHead   float64
	tolerance float64
	mcSeed    uint64
	// batch
	save bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "agsteer",
		Short:        "autosteer guidance and u-turn simulator",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".agsteer", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "yaml config file")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "pure_pursuit/default", "preset as law/name")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "simulate a field pass and store it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runField,
	}
	addOverrides(runCmd)
	runCmd.Flags().BoolP("plot", "p", false, "print an xte chart")

	liveCmd := &cobra.Command{
		Use:   "live [preset]",
		Short: "drive a field pass in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE:  liveField,
	}
	addOverrides(liveCmd)
	liveCmd.Flags().StringVar(&theme, "theme", "field", "field, night or minimal")

	driveCmd := &cobra.Command{
		Use:   "drive [preset]",
		Short: "steer a real controller from simulated poses",
		Args:  cobra.MaximumNArgs(1),
		RunE:  driveField,
	}
	addOverrides(driveCmd)
	driveCmd.Flags().StringVar(&remote, "remote", "", "controller udp address")
	driveCmd.Flags().StringVar(&listen, "listen", "", "local udp address for telemetry")
	driveCmd.Flags().StringVar(&port, "port", "", "serial port")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [id]",
		Short: "plot a stored run, newest when no id is given",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&pngFile, "png", "", "write path and xte plots to png")
	plotCmd.Flags().IntVar(&width, "width", 80, "chart width")
	plotCmd.Flags().IntVar(&height, "height", 12, "chart height")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [id]",
		Short: "write run samples as csv",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [id]",
		Short: "write run metadata and samples as json",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportJSON,
	}

	decodeCmd := &cobra.Command{
		Use:   "decode <hex>",
		Short: "decode a controller frame",
		Args:  cobra.MinimumNArgs(1),
		RunE:  decodeHex,
	}

	encodeCmd := &cobra.Command{
		Use:       "encode settings|config",
		Short:     "encode the configured controller frame as hex",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"settings", "config"},
		RunE:      encodeHex,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [law]",
		Short: "list presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	emulateCmd := &cobra.Command{
		Use:   "emulate",
		Short: "act as a steering controller on a udp or serial link",
		Args:  cobra.NoArgs,
		RunE:  emulateModule,
	}
	emulateCmd.Flags().StringVar(&emuListen, "listen", ":8888", "local udp address for steer frames")
	emulateCmd.Flags().StringVar(&reply, "reply", "", "udp address telemetry is sent to")
	emulateCmd.Flags().StringVar(&port, "port", "", "serial port instead of udp")
	emulateCmd.Flags().Float64Var(&rate, "rate", 10, "control rate in Hz")

	tuneCmd := &cobra.Command{
		Use:   "tune [preset]",
		Short: "grid search guidance parameters",
		Long:  "grid search guidance parameters, e.g.\n  " + tuneExample,
		Args:  cobra.MaximumNArgs(1),
		RunE:  tuneParams,
	}
	addOverrides(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&grid, "grid", nil, "key=v1,v2,... (repeatable)")
	tuneCmd.Flags().StringVar(&metric, "metric", "xte_rms", "metric to minimise")
	tuneCmd.Flags().IntVar(&runs, "runs", 1, "passes per point")
	tuneCmd.Flags().IntVar(&workers, "workers", 0, "parallel points, 0 for one per cpu")

	mcCmd := &cobra.Command{
		Use:   "montecarlo [preset]",
		Short: "run passes from random start poses",
		Args:  cobra.MaximumNArgs(1),
		RunE:  monteCarlo,
	}
	addOverrides(mcCmd)
	mcCmd.Flags().IntVar(&trials, "trials", 100, "number of passes")
	mcCmd.Flags().Float64Var(&maxOffset, "offset", 3, "max start offset in metres")
	mcCmd.Flags().Float64Var(&maxHead, "heading", 15, "max start heading error in degrees")
	mcCmd.Flags().Float64Var(&tolerance, "tol", 0.1, "final |xte| counted as settled")
	mcCmd.Flags().Uint64Var(&mcSeed, "mc-seed", 1, "start pose seed")

	batchCmd := &cobra.Command{
		Use:   "batch <scenario.yaml>",
		Short: "run a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	batchCmd.Flags().BoolVar(&save, "save", false, "store every pass")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [id]",
		Short: "find steering weave in a stored run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().IntVar(&width, "width", 80, "chart width")
	analyzeCmd.Flags().IntVar(&height, "height", 12, "chart height")

	rootCmd.AddCommand(runCmd, liveCmd, driveCmd, emulateCmd, tuneCmd, mcCmd, batchCmd, analyzeCmd,
		listCmd, plotCmd, exportCSVCmd, exportJSONCmd, decodeCmd, encodeCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addOverrides(cmd *cobra.Command) {
	cmd.Flags().StringVar(&law, "law", "", "pure_pursuit or stanley")
	cmd.Flags().StringVar(&integrator, "integrator", "", "euler or rk4")
	cmd.Flags().Float64Var(&duration, "time", 0, "duration in seconds")
	cmd.Flags().Float64Var(&speed, "speed", 0, "speed in m/s")
	cmd.Flags().Int64Var(&seed, "seed", 0, "noise seed")
}

// setup loads the config named by the flags, applies command line
// overrides and builds the rig.
func setup(cmd *cobra.Command, args []string) (*rig, *logging.Logger, error) {
	cfg, lg, err := configure(cmd, args)
	if err != nil {
		return nil, nil, err
	}
	r, err := newRig(cfg, lg)
	if err != nil {
		return nil, nil, err
	}
	return r, lg, nil
}

func configure(cmd *cobra.Command, args []string) (*config.Config, *logging.Logger, error) {
	p := preset
	if len(args) > 0 {
		p = args[0]
	}
	cfg, err := loadConfig(configFile, p)
	if err != nil {
		return nil, nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("law") {
		cfg.Guidance.Law = law
	}
	if flags.Changed("integrator") {
		cfg.Sim.Integrator = integrator
	}
	if flags.Changed("time") {
		cfg.Sim.Duration = duration
	}
	if flags.Changed("speed") {
		cfg.Sim.Speed = speed
	}
	if flags.Changed("seed") {
		cfg.Sim.Seed = seed
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(cfg.Log.Level, cfg.Log.Dir), nil
}

func runField(cmd *cobra.Command, args []string) error {
	r, lg, err := setup(cmd, args)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := r.sim.Run(cmd.Context(), simConfig(r.cfg))
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	id, err := st.Save(r.metadata(), res, r.field)
	if err != nil {
		return err
	}
	lg.Info("run saved", "id", id, "elapsed", elapsed)

	fmt.Printf("completed in %v: %d steps, stopped on %s\n", elapsed, res.StepsTaken, res.Stopped)
	fmt.Printf("run id: %s\n", id)
	fmt.Println()
	fmt.Print(viz.Summary(res.Metrics))

	if show, _ := cmd.Flags().GetBool("plot"); show {
		fmt.Println()
		fmt.Println(viz.ASCIIPlot(res.Samples, 80, 12))
	}
	return nil
}

func liveField(cmd *cobra.Command, args []string) error {
	r, _, err := setup(cmd, args)
	if err != nil {
		return err
	}
	viz.SetTheme(theme)

	m, err := viz.NewModel(r.sim, simConfig(r.cfg), r.cfg.Name)
	if err != nil {
		return err
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

func openLink(cfg config.TransportConfig, lg *logging.Logger) (transport.Link, error) {
	switch cfg.Kind {
	case "udp":
		return transport.DialUDP(cfg.Remote, cfg.Listen, lg)
	case "serial":
		return transport.OpenSerial(cfg.Port, cfg.Serial, lg)
	}
	return nil, fmt.Errorf("drive needs transport.kind udp or serial, got %q", cfg.Kind)
}

// driveField runs the simulated vehicle in real time and sends every
// steering command to the controller. Telemetry read back from the
// controller is handled on the same goroutine as the ticks.
func driveField(cmd *cobra.Command, args []string) error {
	r, lg, err := setup(cmd, args)
	if err != nil {
		return err
	}
	tc := r.cfg.Transport
	switch {
	case remote != "":
		tc.Kind, tc.Remote, tc.Listen = "udp", remote, listen
	case port != "":
		tc.Kind, tc.Port = "serial", port
	}
	link, err := openLink(tc, lg)
	if err != nil {
		return err
	}
	defer link.Close()

	r.loop.SetSender(link)
	if err := r.loop.SendSettings(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	frames := link.Listen(ctx)

	cfg := simConfig(r.cfg)
	ss, err := r.sim.Start(cfg)
	if err != nil {
		return err
	}
	ticker := time.NewTicker(time.Duration(cfg.Dt * float64(time.Second)))
	defer ticker.Stop()

	fmt.Printf("driving %s, ctrl-c to stop\n", r.cfg.Name)
	for !ss.Done() {
		select {
		case <-ctx.Done():
			fmt.Println()
			fmt.Printf("stopped after %d steps, %d frames dropped\n", ss.Result().StepsTaken, r.loop.Dropped())
			return nil
		case f, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			r.loop.HandleFrame(f)
		case <-ticker.C:
			smp, _, err := ss.Step()
			if err != nil {
				return err
			}
			line := fmt.Sprintf("\r%-10s xte %+6.2f m  steer %+6.1f°", smp.Status, smp.XTE, smp.SteerCmd)
			if t, ok := r.loop.Telemetry(); ok {
				line += fmt.Sprintf("  actual %+6.1f°  pwm %3d", t.ActualAngle, t.PWM)
			}
			fmt.Print(line)
		}
	}

	res := ss.Result()
	fmt.Println()
	fmt.Printf("finished: %d steps, stopped on %s, %d frames dropped\n", res.StepsTaken, res.Stopped, r.loop.Dropped())
	fmt.Print(viz.Summary(res.Metrics))
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tLAW\tSTEPS\tSTOPPED\tXTE_RMS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%.3f\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Law,
			run.Steps,
			run.Stopped,
			run.Metrics["xte_rms"],
		)
	}

	return w.Flush()
}

func resolveRun(args []string) (*storage.Store, string, error) {
	st := storage.New(dataDir)
	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}
	id, err := st.Resolve(prefix)
	return st, id, err
}

func plotRun(cmd *cobra.Command, args []string) error {
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
	if len(samples) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s (%s, %s)\n", meta.ID, meta.Name, meta.Law)
	fmt.Printf("samples: %d\n\n", len(samples))
	fmt.Println(viz.ASCIIPlot(samples, width, height))
	fmt.Println()
	fmt.Print(viz.Summary(meta.Metrics))

	if pngFile == "" {
		return nil
	}
	field, err := st.LoadField(id)
	if err != nil {
		return err
	}
	xtePath, err := viz.SavePNG(pngFile, meta.Name, samples, field)
	if err != nil {
		return err
	}
	fmt.Printf("\nsaved %s and %s\n", pngFile, xtePath)
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st, id, err := resolveRun(args)
	if err != nil {
		return err
	}
	samples, err := st.LoadSamples(id)
	if err != nil {
		return err
	}
	return storage.WriteSamples(os.Stdout, samples)
}

type sampleJSON struct {
	T           float64 `json:"t"`
	Easting     float64 `json:"easting"`
	Northing    float64 `json:"northing"`
	HeadingDeg  float64 `json:"heading_deg"`
	SteerCmd    float64 `json:"steer_cmd"`
	SteerActual float64 `json:"steer_actual"`
	XTE         float64 `json:"xte"`
	Status      string  `json:"status"`
	PathsAway   int     `json:"paths_away"`
	Held        bool    `json:"held,omitempty"`
}

type runJSON struct {
	Run     *storage.RunMetadata `json:"run"`
	Samples []sampleJSON         `json:"samples"`
}

func toJSON(meta *storage.RunMetadata, samples []sim.Sample) runJSON {
	out := runJSON{Run: meta, Samples: make([]sampleJSON, len(samples))}
	for i, s := range samples {
		out.Samples[i] = sampleJSON{
			T:           s.T,
			Easting:     s.Pose.Easting,
			Northing:    s.Pose.Northing,
			HeadingDeg:  geo.Degrees(s.Pose.Heading),
			SteerCmd:    s.SteerCmd,
			SteerActual: s.SteerActual,
			XTE:         s.XTE,
			Status:      s.Status.String(),
			PathsAway:   s.PathsAway,
			Held:        s.Held,
		}
	}
	return out
}

func exportJSON(cmd *cobra.Command, args []string) error {
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

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(toJSON(meta, samples))
}

func decodeHex(cmd *cobra.Command, args []string) error {
	b, err := parseHex(args)
	if err != nil {
		return err
	}
	name, v, err := decodeFrame(b)
	if err != nil {
		return err
	}
	fmt.Println(name)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func encodeHex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configFile, preset)
	if err != nil {
		return err
	}
	b, err := encodeFrame(cfg, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("% x\n", b)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	laws := make([]string, 0, len(config.Presets))
	for l := range config.Presets {
		laws = append(laws, l)
	}
	sort.Strings(laws)
	if len(args) > 0 {
		if config.ListPresets(args[0]) == nil {
			return fmt.Errorf("unknown law %q", args[0])
		}
		laws = args[:1]
	}

	for _, l := range laws {
		fmt.Printf("%s:\n", l)
		for _, name := range config.ListPresets(l) {
			fmt.Printf("  %s\n", name)
		}
	}
	return nil
}
