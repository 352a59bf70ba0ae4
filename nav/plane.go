// nav/plane.go

package nav

import (
	"time"

	"github.com/tracon-sim/tracon/aviation"
	"github.com/tracon-sim/tracon/math"
)

// UpdateControl integrates the plane physical model for one tick:
// yaw maintenance, throttle maintenance, then vertical maintenance.
// airspeed is the 3-D airspeed vector in nm/s and is updated in place.
// The yaw target may be mutated (TurnHeading collapses to Heading once
// its crossings are spent).
func UpdateControl(dt time.Duration, target *VelocityTarget, control *Control,
	limits *aviation.NavLimits, airspeed *math.Vec3) {
	maintainYaw(dt, target, control, limits, airspeed)
	maintainAccel(dt, target, control, limits, airspeed)
	maintainVert(dt, target, limits, airspeed)
}

func maintainYaw(dt time.Duration, target *VelocityTarget, control *Control,
	limits *aviation.NavLimits, airspeed *math.Vec3) {
	currentYaw := math.HeadingFromVec2(math.Horizontal2f(*airspeed))
	if airspeed[0] == 0 && airspeed[1] == 0 {
		// Zero horizontal airspeed has no direction; keep the thrust heading.
		currentYaw = control.Heading
	}

	var detectCrossing bool
	var crossBoundary math.Heading
	var collapseTo math.Heading
	var collapse bool

	var desiredYawSpeed math.AngularSpeed
	switch target.Yaw.Kind {
	case YawHeading:
		// Would the target heading be overshot if yaw speed started
		// reducing to zero now? The brake angle is taken as u^2 / a,
		// twice the stopping angle u^2 / 2a from v^2 = u^2 + 2as, which
		// leaves a margin (sign carried from the current yaw speed).
		brakeAngle := control.YawSpeed.Squared().DivAccel(limits.MaxYawAccel)
		if control.YawSpeed < 0 {
			brakeAngle = -brakeAngle
		}
		brakedYaw := currentYaw.Add(brakeAngle)

		if target.Yaw.Heading.IsBetween(currentYaw, brakedYaw) {
			// Going to overshoot; start reducing speed now.
			desiredYawSpeed = 0
		} else {
			delta := currentYaw.ClosestDelta(target.Yaw.Heading)
			// The rate that would reach the target heading within this
			// tick.
			desired := delta.Div(dt)
			if math.IsFinite(float32(desired)) {
				desiredYawSpeed = math.Clamp(desired, -limits.MaxYawSpeed, limits.MaxYawSpeed)
			}
			// Cap at the rate whose brake angle equals the remaining
			// delta, so braking always starts before the target.
			stoppable := math.AngularSpeed(math.Sqrt(float32(limits.MaxYawAccel) * float32(delta.Abs())))
			desiredYawSpeed = math.Clamp(desiredYawSpeed, -stoppable, stoppable)
		}

	case YawTurnHeading:
		distance := currentYaw.Distance(target.Yaw.Heading, target.Yaw.Direction)
		if target.Yaw.RemainingCrosses == 0 {
			if distance < math.AngleRight {
				collapse, collapseTo = true, target.Yaw.Heading
			}
		} else {
			detectCrossing, crossBoundary = true, target.Yaw.Heading
		}

		if target.Yaw.Direction == math.TurnCounterClockwise {
			desiredYawSpeed = -limits.MaxYawSpeed
		} else {
			desiredYawSpeed = limits.MaxYawSpeed
		}

	case YawRate:
		desiredYawSpeed = target.Yaw.Rate
	}

	maxDelta := limits.MaxYawAccel.SpeedIn(dt)
	delta := math.Clamp(desiredYawSpeed-control.YawSpeed, -maxDelta, maxDelta)
	control.YawSpeed += delta

	newHeading := control.Heading.Add(control.YawSpeed.AngleIn(dt))
	if detectCrossing && crossBoundary.IsBetween(control.Heading, newHeading) {
		target.Yaw.RemainingCrosses--
	}
	control.Heading = newHeading

	if collapse {
		target.Yaw = YawHeadingTarget(collapseTo)
	}
}

func maintainAccel(dt time.Duration, target *VelocityTarget, control *Control,
	limits *aviation.NavLimits, airspeed *math.Vec3) {
	currentSpeed := math.Speed(math.Length2f(math.Horizontal2f(*airspeed)))
	vertRate := math.Speed(airspeed[2])

	drag := math.Accel(limits.DragCoef * float32(currentSpeed) * float32(currentSpeed))
	maxAccel := limits.Accel(vertRate) - drag
	maxDecel := limits.Decel(vertRate) - drag

	// Decide between increasing and decreasing throttle by where the
	// speed would settle if the throttle started pulling back now at the
	// maximum change rate:
	//   accel(t) = accel(0) - rate*t, zero at t = accel(0)/rate
	//   speed(t_stop) = speed(0) + accel(0)^2 / (2 rate)
	increase := false
	if target.HorizSpeed >= currentSpeed {
		if control.HorizAccel < 0 {
			// Slower than wanted and still decelerating; increasing
			// throttle is the only correct action.
			increase = true
		} else {
			stopSpeed := currentSpeed + control.HorizAccel.Squared().DivRate(limits.AccelChangeRate)/2
			// Start pulling back once the settle speed reaches the
			// target, otherwise keep pushing.
			increase = stopSpeed < target.HorizSpeed
		}
	} else {
		if control.HorizAccel > 0 {
			increase = false
		} else {
			stopSpeed := currentSpeed - control.HorizAccel.Squared().DivRate(limits.AccelChangeRate)/2
			// Start increasing once the settle speed reaches the target
			// from above.
			increase = stopSpeed <= target.HorizSpeed
		}
	}

	step := limits.AccelChangeRate.AccelIn(dt)
	if increase {
		control.HorizAccel = min(maxAccel, control.HorizAccel+step)
	} else {
		control.HorizAccel = max(maxDecel, control.HorizAccel-step)
	}

	newSpeed := currentSpeed + control.HorizAccel.SpeedIn(dt)
	if newSpeed < 0 {
		newSpeed = 0
	}
	horiz := math.Scale2f(control.Heading.Vec2(), float32(newSpeed))
	*airspeed = math.WithVertical3f(horiz, airspeed[2])
}

func maintainVert(dt time.Duration, target *VelocityTarget, limits *aviation.NavLimits,
	airspeed *math.Vec3) {
	var desired math.Speed
	if target.Expedite {
		desired = math.Clamp(target.VertRate, limits.ExpDescent.VertRate, limits.ExpClimb.VertRate)
	} else {
		desired = math.Clamp(target.VertRate, limits.StdDescent.VertRate, limits.StdClimb.VertRate)
	}

	current := math.Speed(airspeed[2])
	maxStep := limits.MaxVertAccel.SpeedIn(dt)
	actual := math.Clamp(desired, current-maxStep, current+maxStep)
	airspeed[2] = float32(actual)
}
