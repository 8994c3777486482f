package autosteer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/agsteer/internal/boundary"
	"github.com/san-kum/agsteer/internal/geo"
	"github.com/san-kum/agsteer/internal/guidance"
	"github.com/san-kum/agsteer/internal/logging"
	"github.com/san-kum/agsteer/internal/pgn"
	"github.com/san-kum/agsteer/internal/track"
	"github.com/san-kum/agsteer/internal/transport"
	"github.com/san-kum/agsteer/internal/uturn"
)

// Loop is the single owner of guidance and turn state. Tick and
// HandleFrame must not be called concurrently; Run serialises them.
type Loop struct {
	settings Settings
	field    boundary.Field

	ref     *track.Track
	current *track.Track
	row     int

	state   *guidance.State
	planner *uturn.Planner

	engaged   bool
	last      Command
	telemetry pgn.SteerTelemetry
	haveTelem bool
	dropped   int

	sender   transport.Sender
	log      *logging.Logger
	observer func(Pose, Command)
	phase    uturn.Status
	buf      []byte
}

func NewLoop(s Settings, lg *logging.Logger) (*Loop, error) {
	l := &Loop{log: lg, last: idleCommand(), phase: uturn.StatusIdle}
	if err := l.Apply(s); err != nil {
		return nil, err
	}
	return l, nil
}

// Apply installs a new settings snapshot. Turn progress is kept when the
// planner survives the change.
func (l *Loop) Apply(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	l.settings = s
	if !s.UTurn {
		l.planner = nil
		return nil
	}
	if l.planner == nil {
		p, err := uturn.NewPlanner(s.Turn)
		if err != nil {
			return err
		}
		l.planner = p
		return nil
	}
	return l.planner.SetConfig(s.Turn)
}

func (l *Loop) Settings() Settings { return l.settings }

func (l *Loop) SetField(f boundary.Field) { l.field = f }

func (l *Loop) Field() boundary.Field { return l.field }

// SetTrack makes t the reference row and restarts the field pass.
func (l *Loop) SetTrack(t *track.Track) error {
	if err := t.Validate(); err != nil {
		return err
	}
	l.ref = t
	l.current = t
	l.row = 0
	l.state = nil
	if l.planner != nil {
		l.planner.Reset()
	}
	l.log.Info("track set", slog.String("name", t.Name), slog.String("kind", t.Kind.String()),
		slog.Int("points", t.Len()))
	return nil
}

// Reference is the track given to SetTrack.
func (l *Loop) Reference() *track.Track { return l.ref }

// Track is the row being followed, the reference shifted by PathsAway.
func (l *Loop) Track() *track.Track { return l.current }

func (l *Loop) SetSender(s transport.Sender) { l.sender = s }

// Observe registers fn to be called after every tick.
func (l *Loop) Observe(fn func(Pose, Command)) { l.observer = fn }

func (l *Loop) Engage(on bool) {
	if on != l.engaged {
		l.log.Info("autosteer engaged", slog.Bool("on", on))
	}
	l.engaged = on
	l.state = nil
}

func (l *Loop) Engaged() bool { return l.engaged }

func (l *Loop) Planner() *uturn.Planner { return l.planner }

// Telemetry returns the last valid controller report.
func (l *Loop) Telemetry() (pgn.SteerTelemetry, bool) { return l.telemetry, l.haveTelem }

// Dropped counts malformed inbound frames.
func (l *Loop) Dropped() int { return l.dropped }

func (l *Loop) Last() Command { return l.last }

// syncRow follows the planner onto a new row.
func (l *Loop) syncRow() {
	if l.planner == nil || l.ref == nil {
		return
	}
	if n := l.planner.PathsAway(); n != l.row {
		l.row = n
		l.current = l.planner.CurrentTrack(l.ref)
		l.state = nil
		l.log.Info("row changed", slog.Int("paths_away", n))
	}
}

func (l *Loop) vehicleInput(p Pose) guidance.Input {
	pivot := p.Vec3()
	roll := p.Roll
	if roll == guidance.RollUnavailable && l.haveTelem && l.telemetry.RollValid {
		roll = l.telemetry.Roll
	}
	return guidance.Input{
		Pivot:         pivot,
		SteerAxle:     guidance.SteerAxle(pivot, l.settings.Wheelbase),
		Law:           l.settings.Law,
		Wheelbase:     l.settings.Wheelbase,
		MaxSteerAngle: l.settings.MaxSteerAngle,
		LookAhead:     l.settings.LookAhead(p.Speed),
		Speed:         p.Speed,
		Params:        l.settings.Params,
		IsReverse:     p.Speed < 0,
		AutoSteerOn:   l.engaged,
		IMURoll:       roll,
	}
}

// Tick runs one guidance cycle for pose p.
//
// Degenerate track geometry does not fail the tick: the previous command
// is repeated with Held set. Precondition violations are returned.
func (l *Loop) Tick(p Pose) (Command, error) {
	if l.ref == nil {
		return Command{}, ErrNoTrack
	}
	l.syncRow()
	in := l.vehicleInput(p)

	cmd := idleCommand()
	cmd.PathsAway = l.row

	if l.planner != nil {
		res, err := l.planner.Process(uturn.Input{Pivot: in.Pivot, Track: l.current, Field: l.field, Vehicle: in})
		if err != nil {
			return l.fail(p, err)
		}
		l.logPhase(res)
		cmd.Status = res.Status
		cmd.DistanceToHeadland = res.DistanceToHeadland
		cmd.PathsAway = res.PathsAway
		if res.Steer != nil {
			cmd.SteerAngle = res.Steer.SteerAngle
			cmd.CrossTrackError = res.Steer.CrossTrackError
			cmd.GoalPoint = res.Steer.GoalPoint
			return l.finish(p, cmd), nil
		}
		if res.Status == uturn.StatusCompleted {
			l.syncRow()
			in = l.vehicleInput(p)
		}
	}

	idx := l.current.NearestIndex(in.Pivot.XY())
	_, sameWay := geo.IsAligned(in.Pivot.Heading, l.current.Points[idx].Heading, 0)
	in.Track = l.current
	in.HeadingSameWay = sameWay
	in.Previous = l.state
	in.FindGlobalNearest = l.state == nil

	out, err := guidance.Compute(in)
	if err != nil {
		return l.fail(p, err)
	}
	st := out.NewState
	l.state = &st

	cmd.SteerAngle = out.SteerAngle
	cmd.CrossTrackError = out.CrossTrackError
	cmd.GoalPoint = out.GoalPoint
	return l.finish(p, cmd), nil
}

func (l *Loop) fail(p Pose, err error) (Command, error) {
	if !errors.Is(err, guidance.ErrDegenerateTrack) {
		return Command{}, err
	}
	l.log.Warn("degenerate geometry, holding last command", slog.Any("error", err))
	held := l.last
	held.Held = true
	return l.finish(p, held), nil
}

func (l *Loop) finish(p Pose, cmd Command) Command {
	cmd.Engaged = l.engaged
	if !l.engaged {
		cmd.SteerAngle = 0
	}
	l.last = cmd
	l.send(p, cmd)
	if l.observer != nil {
		l.observer(p, cmd)
	}
	return cmd
}

func (l *Loop) send(p Pose, cmd Command) {
	if l.sender == nil {
		return
	}
	l.buf = pgn.AppendSteerData(l.buf[:0], pgn.SteerData{
		SpeedKmh:        math.Abs(p.Speed) * 3.6,
		AutoSteerOn:     cmd.Engaged,
		SteerAngle:      cmd.SteerAngle,
		CrossTrackError: cmd.CrossTrackError,
	})
	if err := l.sender.Send(l.buf); err != nil {
		l.log.Warn("send steer data failed", slog.Any("error", err))
	}
}

func (l *Loop) logPhase(res uturn.Result) {
	if res.Status == l.phase {
		return
	}
	attrs := []any{
		slog.String("from", l.phase.String()),
		slog.String("to", res.Status.String()),
		slog.Int("paths_away", res.PathsAway),
	}
	// JSON has no infinity
	if !math.IsInf(res.DistanceToHeadland, 0) {
		attrs = append(attrs, slog.Float64("headland_m", res.DistanceToHeadland))
	}
	if res.Status == uturn.StatusTurnMissed {
		l.log.Warn("turn start missed", attrs...)
	} else {
		l.log.Info("turn phase", attrs...)
	}
	l.phase = res.Status
}

// SendSettings pushes the controller settings and hardware config.
func (l *Loop) SendSettings() error {
	if l.sender == nil {
		return nil
	}
	if err := l.sender.Send(pgn.EncodeSteerSettings(l.settings.SteerSettings)); err != nil {
		return fmt.Errorf("send steer settings: %w", err)
	}
	if err := l.sender.Send(pgn.EncodeSteerConfig(l.settings.SteerConfig)); err != nil {
		return fmt.Errorf("send steer config: %w", err)
	}
	return nil
}

// HandleFrame processes one inbound frame. Malformed frames are counted,
// logged and dropped with no other effect.
func (l *Loop) HandleFrame(b []byte) error {
	id, err := pgn.PeekPGN(b)
	if err != nil {
		return l.drop(err)
	}
	switch id {
	case pgn.PGNSteerTelemetry:
		t, err := pgn.DecodeSteerTelemetry(b)
		if err != nil {
			return l.drop(err)
		}
		l.telemetry = t
		l.haveTelem = true
		if l.settings.SteerConfig.SteerSwitch && t.SteerSwitch() != l.engaged {
			l.Engage(t.SteerSwitch())
		}
		return nil
	default:
		l.log.Debug("ignoring frame", slog.Int("pgn", int(id)))
		return nil
	}
}

func (l *Loop) drop(err error) error {
	l.dropped++
	l.log.Debug("dropped frame", slog.Any("error", err))
	return err
}

// Run feeds poses and inbound frames through the loop on the calling
// goroutine until ctx is done or poses is closed.
func (l *Loop) Run(ctx context.Context, poses <-chan Pose, frames <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p, ok := <-poses:
			if !ok {
				return nil
			}
			if _, err := l.Tick(p); err != nil {
				return err
			}
		case f, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			// malformed frames are counted and dropped
			_ = l.HandleFrame(f)
		}
	}
}
