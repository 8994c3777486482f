package viz

import (
	"fmt"
	"image/color"
	"math"

	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/agsteer/internal/geo"
	"github.com/san-kum/agsteer/internal/sim"
	"github.com/san-kum/agsteer/internal/storage"
)

var (
	outerColor    = color.RGBA{R: 60, G: 60, B: 60, A: 255}
	headlandColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	rowColor      = color.RGBA{R: 120, G: 170, B: 60, A: 255}
	turnColor     = color.RGBA{R: 230, G: 140, B: 0, A: 255}
	driveColor    = color.RGBA{R: 20, G: 90, B: 200, A: 255}
)

// ASCIIPlot renders cross-track error in centimetres and the steering
// command in degrees as two stacked terminal graphs.
func ASCIIPlot(samples []sim.Sample, w, h int) string {
	if len(samples) == 0 {
		return "no samples\n"
	}
	xte := make([]float64, len(samples))
	steer := make([]float64, len(samples))
	for i, s := range samples {
		xte[i] = s.XTE * 100
		steer[i] = s.SteerCmd
	}
	a := asciigraph.Plot(xte, asciigraph.Height(h), asciigraph.Width(w), asciigraph.Caption("cross-track error (cm)"))
	b := asciigraph.Plot(steer, asciigraph.Height(h), asciigraph.Width(w), asciigraph.Caption("steer command (deg)"))
	return a + "\n\n" + b + "\n"
}

func xys(pts []geo.Vec2, closed bool) plotter.XYs {
	out := make(plotter.XYs, 0, len(pts)+1)
	for _, p := range pts {
		out = append(out, plotter.XY{X: p.Easting, Y: p.Northing})
	}
	if closed && len(pts) > 2 {
		out = append(out, out[0])
	}
	return out
}

func addLine(p *plot.Plot, pts plotter.XYs, c color.Color, width float64, dashed bool, legend string) error {
	if len(pts) < 2 {
		return nil
	}
	l, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	l.Color = c
	l.Width = vg.Points(width)
	if dashed {
		l.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	}
	p.Add(l)
	if legend != "" {
		p.Legend.Add(legend, l)
	}
	return nil
}

// PathPlot draws the driven path over the field, every row visited and
// each U-turn. field may be nil.
func PathPlot(title string, samples []sim.Sample, field *storage.FieldSnapshot) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Easting (m)"
	p.Y.Label.Text = "Northing (m)"
	p.Add(plotter.NewGrid())

	driven := make([]geo.Vec2, len(samples))
	for i, s := range samples {
		driven[i] = s.Pose.Vec3().XY()
	}

	if field != nil {
		if err := addLine(p, xys(field.Outer, true), outerColor, 1.5, false, "boundary"); err != nil {
			return nil, err
		}
		if err := addLine(p, xys(field.Headland, true), headlandColor, 1, true, "headland"); err != nil {
			return nil, err
		}
		rows := map[int]bool{}
		for _, s := range samples {
			rows[s.PathsAway] = true
		}
		legend := "rows"
		for n := range rows {
			if err := addLine(p, xys(xy(field.Row(n)), false), rowColor, 0.8, true, legend); err != nil {
				return nil, err
			}
			legend = ""
		}
		legend = "u-turns"
		for _, t := range field.Turns {
			if err := addLine(p, xys(xy(t), false), turnColor, 1, false, legend); err != nil {
				return nil, err
			}
			legend = ""
		}
	}
	if err := addLine(p, xys(driven, false), driveColor, 1, false, "driven"); err != nil {
		return nil, err
	}
	p.Legend.Top = true

	equalAxes(p)
	return p, nil
}

// equalAxes widens the shorter axis so one metre is the same length on
// both when the canvas is square.
func equalAxes(p *plot.Plot) {
	w := p.X.Max - p.X.Min
	h := p.Y.Max - p.Y.Min
	if w <= 0 || h <= 0 {
		return
	}
	if w > h {
		mid := (p.Y.Max + p.Y.Min) / 2
		p.Y.Min, p.Y.Max = mid-w/2, mid+w/2
	} else {
		mid := (p.X.Max + p.X.Min) / 2
		p.X.Min, p.X.Max = mid-h/2, mid+h/2
	}
}

// XTEPlot draws cross-track error over time with the turns greyed out.
func XTEPlot(title string, samples []sim.Sample) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Cross-track error (cm)"
	p.Add(plotter.NewGrid())

	line := make(plotter.XYs, 0, len(samples))
	var turn plotter.XYs
	for _, s := range samples {
		pt := plotter.XY{X: s.T, Y: s.XTE * 100}
		if s.Status.Steering() {
			turn = append(turn, pt)
			continue
		}
		line = append(line, pt)
	}
	if err := addLine(p, line, driveColor, 1, false, "on row"); err != nil {
		return nil, err
	}
	if len(turn) > 0 {
		sc, err := plotter.NewScatter(turn)
		if err != nil {
			return nil, err
		}
		sc.Color = turnColor
		sc.Radius = vg.Points(1)
		p.Add(sc)
		p.Legend.Add("in turn", sc)
	}
	p.Legend.Top = true
	return p, nil
}

// SavePNG writes the path plot and, next to it, the cross-track plot.
func SavePNG(path string, title string, samples []sim.Sample, field *storage.FieldSnapshot) (string, error) {
	pp, err := PathPlot(title, samples, field)
	if err != nil {
		return "", err
	}
	if err := pp.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return "", err
	}
	xp, err := XTEPlot(title, samples)
	if err != nil {
		return "", err
	}
	xtePath := xteName(path)
	if err := xp.Save(12*vg.Inch, 5*vg.Inch, xtePath); err != nil {
		return "", err
	}
	return xtePath, nil
}

func xteName(path string) string {
	const ext = ".png"
	if len(path) > len(ext) && path[len(path)-len(ext):] == ext {
		return path[:len(path)-len(ext)] + "_xte" + ext
	}
	return path + "_xte" + ext
}

// Summary formats run metrics for the terminal.
func Summary(metrics map[string]float64) string {
	order := []struct {
		key, label, unit string
		scale            float64
	}{
		{"xte_rms", "XTE RMS", "cm", 100},
		{"xte_mean_abs", "XTE mean |e|", "cm", 100},
		{"xte_stddev", "XTE std dev", "cm", 100},
		{"xte_max", "XTE max", "cm", 100},
		{"on_line", "On line", "%", 100},
		{"steer_effort", "Steer effort", "deg", 1},
		{"steer_rate", "Steer rate", "deg/s", 1},
		{"turns", "Turns", "", 1},
	}
	var b []byte
	for _, o := range order {
		v, ok := metrics[o.key]
		if !ok || math.IsNaN(v) {
			continue
		}
		b = fmt.Appendf(b, "%-14s %8.2f %s\n", o.label, v*o.scale, o.unit)
	}
	return string(b)
}
