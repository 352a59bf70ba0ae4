// nav/plane_test.go

package nav

import (
	"testing"
	"time"

	"github.com/tracon-sim/tracon/aviation"
	"github.com/tracon-sim/tracon/math"
)

const dt = time.Second

func airspeedFrom(heading math.Heading, ias math.Speed, vert math.Speed) math.Vec3 {
	return math.WithVertical3f(math.Scale2f(heading.Vec2(), float32(ias)), float32(vert))
}

// Turn from 210 to an assigned heading of 090 at 3 deg/s; the shorter
// turn is 120 degrees to the left, so convergence must happen within
// |delta|/maxYawSpeed + maxYawSpeed/maxYawAccel + 2 ticks.
func TestYawConvergence(t *testing.T) {
	limits := aviation.SampleNavLimits()
	control := Stabilized(math.HeadingFromDegrees(210))
	target := &VelocityTarget{
		Yaw:        YawHeadingTarget(math.HeadingFromDegrees(90)),
		HorizSpeed: math.SpeedFromKnots(180),
	}
	airspeed := airspeedFrom(control.Heading, math.SpeedFromKnots(180), 0)

	deadline := 120/3 + 3 + 2 // seconds
	prevDelta := math.Angle(0)
	havePrev := false
	converged := -1
	for i := 0; i < 60; i++ {
		UpdateControl(dt, target, &control, &limits, &airspeed)

		delta := control.Heading.ClosestDelta(math.HeadingFromDegrees(90)).Abs()
		if havePrev && delta > prevDelta+math.AngleFromDegrees(0.01) {
			t.Fatalf("tick %d: |delta| increased from %f to %f deg", i, prevDelta.Degrees(), delta.Degrees())
		}
		prevDelta, havePrev = delta, true

		if converged < 0 && delta < math.AngleFromDegrees(0.1) {
			converged = i + 1
		}
	}
	if converged < 0 || converged > deadline {
		t.Errorf("converged at tick %d, expected within %d", converged, deadline)
	}
}

// The braked-yaw overshoot test must start unloading the turn early
// enough that the heading never blows through the target by more than
// a tick of yaw.
func TestYawNoOvershoot(t *testing.T) {
	limits := aviation.SampleNavLimits()
	control := Stabilized(math.HeadingFromDegrees(0))
	target := &VelocityTarget{Yaw: YawHeadingTarget(math.HeadingFromDegrees(40))}
	airspeed := airspeedFrom(control.Heading, math.SpeedFromKnots(180), 0)

	for i := 0; i < 60; i++ {
		UpdateControl(dt, target, &control, &limits, &airspeed)
		if d := control.Heading.ClosestDelta(math.HeadingFromDegrees(40)); d < -math.AngleFromDegrees(3.5) {
			t.Fatalf("tick %d: overshot target by %f deg", i, -d.Degrees())
		}
	}
	if d := control.Heading.ClosestDelta(math.HeadingFromDegrees(40)).Abs(); d > math.AngleFromDegrees(1) {
		t.Errorf("did not settle on target: %f deg off", d.Degrees())
	}
}

func TestTurnHeadingCollapses(t *testing.T) {
	limits := aviation.SampleNavLimits()
	control := Stabilized(math.HeadingFromDegrees(0))
	// One full extra circle to the right before stopping at 90.
	target := &VelocityTarget{Yaw: YawTurnHeadingTarget(math.HeadingFromDegrees(90), 1, math.TurnClockwise)}
	airspeed := airspeedFrom(control.Heading, math.SpeedFromKnots(180), 0)

	// 360 + 90 degrees at 3 deg/s is 150 s; allow margin for spin-up.
	for i := 0; i < 200; i++ {
		UpdateControl(dt, target, &control, &limits, &airspeed)
	}
	if target.Yaw.Kind != YawHeading {
		t.Fatalf("turn-heading target did not collapse; %d crossings left", target.Yaw.RemainingCrosses)
	}
	if d := control.Heading.ClosestDelta(math.HeadingFromDegrees(90)).Abs(); d > math.AngleFromDegrees(1) {
		t.Errorf("settled %f deg off the collapsed target", d.Degrees())
	}
}

func TestYawRateTarget(t *testing.T) {
	limits := aviation.SampleNavLimits()
	control := Stabilized(math.HeadingFromDegrees(0))
	target := &VelocityTarget{Yaw: YawRateTarget(math.AngularSpeedFromDegsPerSec(2))}
	airspeed := airspeedFrom(control.Heading, math.SpeedFromKnots(180), 0)

	for i := 0; i < 20; i++ {
		UpdateControl(dt, target, &control, &limits, &airspeed)
	}
	if got := control.YawSpeed.DegsPerSec(); math.Abs(got-2) > 0.01 {
		t.Errorf("yaw speed = %f deg/s, expected 2", got)
	}
}

// S1: holding the current speed should stay within a few knots.
func TestThrottleHold(t *testing.T) {
	limits := aviation.SampleNavLimits()
	control := Stabilized(math.HeadingFromDegrees(90))
	target := &VelocityTarget{
		Yaw:        YawHeadingTarget(math.HeadingFromDegrees(90)),
		HorizSpeed: math.SpeedFromKnots(180),
	}
	airspeed := airspeedFrom(control.Heading, math.SpeedFromKnots(180), 0)

	for i := 0; i < 30; i++ {
		UpdateControl(dt, target, &control, &limits, &airspeed)
		ias := math.Speed(math.Length2f(math.Horizontal2f(airspeed))).Knots()
		if math.Abs(ias-180) > 5 {
			t.Fatalf("tick %d: IAS %f kt drifted beyond 180 +/- 5", i, ias)
		}
	}
}

func TestThrottleAccelerates(t *testing.T) {
	limits := aviation.SampleNavLimits()
	control := Stabilized(math.HeadingFromDegrees(90))
	target := &VelocityTarget{
		Yaw:        YawHeadingTarget(math.HeadingFromDegrees(90)),
		HorizSpeed: math.SpeedFromKnots(240),
	}
	airspeed := airspeedFrom(control.Heading, math.SpeedFromKnots(180), 0)

	maxSeen := float32(0)
	for i := 0; i < 120; i++ {
		UpdateControl(dt, target, &control, &limits, &airspeed)
		ias := math.Speed(math.Length2f(math.Horizontal2f(airspeed))).Knots()
		maxSeen = max(maxSeen, ias)
	}
	final := math.Speed(math.Length2f(math.Horizontal2f(airspeed))).Knots()
	if math.Abs(final-240) > 5 {
		t.Errorf("final IAS %f kt, expected about 240", final)
	}
	if maxSeen > 248 {
		t.Errorf("overshot to %f kt; the stop-speed rule should pull back earlier", maxSeen)
	}
}

func TestVerticalClamp(t *testing.T) {
	limits := aviation.SampleNavLimits()
	control := Stabilized(math.HeadingFromDegrees(0))
	target := &VelocityTarget{
		Yaw:        YawHeadingTarget(math.HeadingFromDegrees(0)),
		HorizSpeed: math.SpeedFromKnots(180),
		VertRate:   math.SpeedFromFpm(9000),
	}
	airspeed := airspeedFrom(control.Heading, math.SpeedFromKnots(180), 0)

	for i := 0; i < 30; i++ {
		UpdateControl(dt, target, &control, &limits, &airspeed)
	}
	if got := math.Speed(airspeed[2]).Fpm(); math.Abs(got-2000) > 1 {
		t.Errorf("non-expedited vert rate %f fpm, expected std climb 2000", got)
	}

	target.Expedite = true
	for i := 0; i < 30; i++ {
		UpdateControl(dt, target, &control, &limits, &airspeed)
	}
	if got := math.Speed(airspeed[2]).Fpm(); math.Abs(got-3000) > 1 {
		t.Errorf("expedited vert rate %f fpm, expected exp climb 3000", got)
	}
}
