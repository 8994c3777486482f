package sim

import (
	"math"

	"github.com/san-kum/agsteer/internal/geo"
)

// State layout of the vehicle model.
const (
	IdxEasting = iota
	IdxNorthing
	IdxHeading
	IdxSteer
	vehicleDim
)

// Control layout: commanded wheel angle (rad) and speed (m/s).
const (
	IdxSteerCmd = iota
	IdxSpeed
	vehicleCtrlDim
)

// Vehicle is a kinematic bicycle with a first-order steering actuator.
// The pivot is the rear axle centre.
type Vehicle struct {
	Wheelbase float64
	// MaxSteer in radians.
	MaxSteer float64
	// SteerLag is the actuator time constant in seconds; zero means the
	// wheels follow the command instantly.
	SteerLag float64
}

func NewVehicle(wheelbase, maxSteerDeg, lag float64) *Vehicle {
	return &Vehicle{Wheelbase: wheelbase, MaxSteer: geo.Radians(maxSteerDeg), SteerLag: lag}
}

func (v *Vehicle) StateDim() int   { return vehicleDim }
func (v *Vehicle) ControlDim() int { return vehicleCtrlDim }

func (v *Vehicle) limit(a float64) float64 {
	return math.Max(-v.MaxSteer, math.Min(v.MaxSteer, a))
}

func (v *Vehicle) Derivative(x State, u Control, t float64) State {
	speed := u[IdxSpeed]
	h := x[IdxHeading]
	delta := v.limit(x[IdxSteer])

	dx := make(State, vehicleDim)
	dx[IdxEasting] = speed * math.Sin(h)
	dx[IdxNorthing] = speed * math.Cos(h)
	dx[IdxHeading] = speed * math.Tan(delta) / v.Wheelbase
	if v.SteerLag > 0 {
		dx[IdxSteer] = (v.limit(u[IdxSteerCmd]) - x[IdxSteer]) / v.SteerLag
	}
	return dx
}

// Actuate applies an instantaneous actuator before integration.
func (v *Vehicle) Actuate(x State, u Control) {
	if v.SteerLag <= 0 {
		x[IdxSteer] = v.limit(u[IdxSteerCmd])
	}
}

func (v *Vehicle) InitState(p geo.Vec3) State {
	return State{p.Easting, p.Northing, p.Heading, 0}
}
