package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/agsteer/internal/geo"
	"github.com/san-kum/agsteer/internal/sim"
	"github.com/san-kum/agsteer/internal/uturn"
)

const (
	width           = 64
	height          = 22
	historyCapacity = 600
	trailCapacity   = 4000
	maxSpeedup      = 64
)

type TickMsg time.Time

// Model steps a field pass in real time, or faster, and draws the field,
// the row being worked, any planned turn and the vehicle's trail.
type Model struct {
	sim      *sim.Simulator
	cfg      sim.Config
	session  *sim.Session
	title    string
	canvas   *Canvas
	view     Viewport
	trail    []geo.Vec2
	xte      []float64
	last     sim.Sample
	running  bool
	speedup  int
	err      error
	showHelp bool
}

func NewModel(s *sim.Simulator, cfg sim.Config, title string) (Model, error) {
	m := Model{
		sim:     s,
		cfg:     cfg,
		title:   title,
		canvas:  NewCanvas(width, height),
		running: true,
		speedup: 1,
	}
	if err := m.restart(); err != nil {
		return Model{}, err
	}
	m.fit()
	return m, nil
}

func (m *Model) restart() error {
	ss, err := m.sim.Start(m.cfg)
	if err != nil {
		return err
	}
	m.session = ss
	m.trail = m.trail[:0]
	m.xte = m.xte[:0]
	m.last = sim.Sample{}
	m.err = nil
	return nil
}

// fit frames the outer boundary, or the reference track when the loop has
// no field.
func (m *Model) fit() {
	loop := m.sim.Loop()
	if outer := loop.Field().Outer; outer.Usable() {
		lo, hi := outer.Bounds()
		m.view = Fit(m.canvas, lo, hi, 2)
		return
	}
	pts := xy(loop.Reference().Points)
	lo, hi := pts[0], pts[0]
	for _, p := range pts {
		lo = geo.Vec2{Easting: math.Min(lo.Easting, p.Easting), Northing: math.Min(lo.Northing, p.Northing)}
		hi = geo.Vec2{Easting: math.Max(hi.Easting, p.Easting), Northing: math.Max(hi.Northing, p.Northing)}
	}
	m.view = Fit(m.canvas, lo, hi, 20)
}

func (m Model) interval() time.Duration {
	return time.Duration(m.cfg.Dt * float64(time.Second))
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval(), func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			if err := m.restart(); err != nil {
				m.err = err
			}
		case "+", "=":
			if m.speedup < maxSpeedup {
				m.speedup *= 2
			}
		case "-", "_":
			if m.speedup > 1 {
				m.speedup /= 2
			}
		case "s":
			if p := m.sim.Loop().Planner(); p != nil {
				p.SwapDirection()
			}
		case "t":
			NextTheme()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			m.advance(m.speedup)
		}
		return m, m.tick()
	}
	return m, nil
}

// advance runs n simulation steps.
func (m *Model) advance(n int) {
	for i := 0; i < n && !m.session.Done(); i++ {
		smp, ok, err := m.session.Step()
		if err != nil {
			m.err = err
			return
		}
		if !ok {
			return
		}
		m.last = smp
		m.trail = append(m.trail, smp.Pose.Vec3().XY())
		if len(m.trail) > trailCapacity {
			m.trail = m.trail[1:]
		}
		m.xte = append(m.xte, smp.XTE*100)
		if len(m.xte) > historyCapacity {
			m.xte = m.xte[1:]
		}
	}
}

func (m *Model) draw() {
	c, v := m.canvas, m.view
	c.Clear()
	loop := m.sim.Loop()
	f := loop.Field()
	if f.Outer.Usable() {
		c.Polyline(v, f.Outer.Points, true, false)
	}
	if f.Headland.Usable() {
		c.Polyline(v, f.Headland.Points, true, true)
	}
	if t := loop.Track(); t != nil {
		c.Polyline(v, xy(t.Points), false, true)
	}
	if p := loop.Planner(); p != nil {
		if path := p.State().Path; len(path) > 0 {
			c.Polyline(v, xy(path), false, false)
		}
	}
	for _, pt := range m.trail {
		c.Set(v.Dot(pt))
	}
	if len(m.trail) > 0 {
		c.Vehicle(v, m.trail[len(m.trail)-1], m.last.Pose.Heading)
	}
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return "ERROR"
	case m.session.Done():
		return "FINISHED (" + string(m.session.Result().Stopped) + ")"
	case !m.running:
		return "PAUSED"
	}
	return fmt.Sprintf("RUNNING x%d", m.speedup)
}

func (m Model) View() string {
	m.draw()
	canvasView := canvasStyle.Render(fieldStyle().Render(m.canvas.String()))

	var s strings.Builder
	s.WriteString(headerStyle().Render(strings.ToUpper(m.title)) + "\n")
	s.WriteString(m.status() + "\n")
	s.WriteString(ProgressBar(m.session.Progress(), 30) + "\n\n")

	if len(m.xte) > 1 {
		chart := asciigraph.Plot(m.xte, asciigraph.Height(5), asciigraph.Width(30), asciigraph.Caption("xte (cm)"))
		s.WriteString(graphStyle().Render(chart) + "\n\n")
	}

	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + value + "\n")
	}
	val := valueStyle()
	smp := m.last
	row("Time", val.Render(fmt.Sprintf("%.1fs", smp.T)))
	row("Speed", val.Render(fmt.Sprintf("%.1f km/h", math.Abs(smp.Pose.Speed)*3.6)))
	row("Heading", val.Render(fmt.Sprintf("%.1f°", geo.Degrees(smp.Pose.Heading))))
	row("XTE", xteStyle(smp.XTE).Render(fmt.Sprintf("%+.1f cm", smp.XTE*100)))
	maxSteer := m.sim.Loop().Settings().MaxSteerAngle
	row("Steer", val.Render(fmt.Sprintf("%+5.1f° ", smp.SteerCmd))+SteerBar(smp.SteerCmd, maxSteer, 15))
	row("Wheels", val.Render(fmt.Sprintf("%+5.1f°", smp.SteerActual)))
	row("Phase", statusStyle(smp.Status).Render(smp.Status.String()))
	row("Row", val.Render(fmt.Sprintf("%d", smp.PathsAway)))
	if p := m.sim.Loop().Planner(); p != nil {
		side := "right"
		if p.State().NextTurnLeft {
			side = "left"
		}
		row("Next turn", val.Render(side))
		if d := p.State().DistanceToHeadland; !math.IsInf(d, 1) && smp.Status != uturn.StatusExecuting {
			row("Headland", val.Render(fmt.Sprintf("%.1f m", d)))
		}
	}
	if m.err != nil {
		row("Error", lipgloss.NewStyle().Foreground(CurrentTheme.Error).Render(m.err.Error()))
	}

	s.WriteString(helpStyle().Render("SP:Pause R:Restart Q:Quit\n+/-:Speed S:Swap turn T:Theme ?:Help"))
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
	if m.showHelp {
		return `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume             ║
║  R        - Restart the field pass   ║
║  Q        - Quit                     ║
║  + / -    - Double / halve speed     ║
║  S        - Swap next turn side      ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝
` + "\n\n" + mainView
	}
	return mainView
}
