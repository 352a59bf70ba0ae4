// nav/nav.go

// Package nav implements the airborne control loops: velocity targets,
// the target-* navigation controllers that derive them, and the plane
// physical model that integrates them.
//
// The controllers are pure per-object functions; the sim package
// resolves entity references and calls them in order each tick. All of
// them are inert when the clock is paused (the sim simply does not call
// them).
package nav

import (
	"time"

	"github.com/tracon-sim/tracon/aviation"
	"github.com/tracon-sim/tracon/math"
)

// YawTargetKind discriminates YawTarget.
type YawTargetKind int8

const (
	// YawHeading turns to a heading, whichever direction is closer.
	YawHeading YawTargetKind = iota
	// YawTurnHeading maintains a turn in Direction until the heading
	// crosses Heading RemainingCrosses times, then collapses to
	// YawHeading.
	YawTurnHeading
	// YawRate holds a constant angular speed.
	YawRate
)

// YawTarget is the target yaw change of a velocity target.
type YawTarget struct {
	Kind             YawTargetKind
	Heading          math.Heading
	RemainingCrosses int
	Direction        math.TurnDirection
	Rate             math.AngularSpeed
}

func YawHeadingTarget(h math.Heading) YawTarget {
	return YawTarget{Kind: YawHeading, Heading: h}
}

func YawTurnHeadingTarget(h math.Heading, crosses int, dir math.TurnDirection) YawTarget {
	return YawTarget{Kind: YawTurnHeading, Heading: h, RemainingCrosses: crosses, Direction: dir}
}

func YawRateTarget(w math.AngularSpeed) YawTarget {
	return YawTarget{Kind: YawRate, Rate: w}
}

// VelocityTarget is the current target state of the airspeed vector;
// present on actively piloted airborne objects.
type VelocityTarget struct {
	Yaw        YawTarget
	HorizSpeed math.Speed
	VertRate   math.Speed
	// Expedite selects the expedited climb/descent envelope; when false
	// VertRate is clamped by the standard rates instead.
	Expedite bool
}

// Control is the mutable thrust state modified by the physical model.
// Heading is the horizontal direction of generated thrust.
type Control struct {
	Heading    math.Heading
	YawSpeed   math.AngularSpeed
	HorizAccel math.Accel
}

// Stabilized returns a Control at rest around the given heading.
func Stabilized(heading math.Heading) Control {
	return Control{Heading: heading}
}

// TargetAltitude is the desired altitude; vertical speed is uncontrolled
// without it (unless a TargetGlide overrides).
type TargetAltitude struct {
	Altitude math.Length
	Expedite bool
}

// Maximum proportion of the altitude error to compensate per second.
const altitudeDeltaRate = math.Frequency(0.3)

// UpdateAltitude pulls the target vertical rate toward the desired
// altitude proportionally; under the vertical-rate envelope this
// converges monotonically without overshoot.
func UpdateAltitude(ta *TargetAltitude, altitude math.Length, target *VelocityTarget) {
	diff := ta.Altitude - altitude
	target.VertRate = diff.MulFrequency(altitudeDeltaRate)
	target.Expedite = ta.Expedite
}

// TargetGlide pitches toward a glidepath of depression angle GlideAngle
// into the target waypoint, without pitching outside [MinPitch,
// MaxPitch]. Implemented with pure pursuit: the object aims at the
// glidepath position Lookahead * ground speed ahead. Overrides
// TargetAltitude if both are present.
type TargetGlide struct {
	Waypoint  aviation.WaypointID
	GlideAngle math.Angle
	MinPitch   math.Angle
	MaxPitch   math.Angle
	Lookahead  time.Duration
	// Expedite permits the expedited vertical envelope while capturing
	// the glidepath.
	Expedite bool
}

// TargetGlideStatus is derived state published by the glide controller.
type TargetGlideStatus struct {
	// CurrentPitch is the pitch the object currently aims at.
	CurrentPitch math.Angle
	// AltitudeDeviation is the vertical distance from the glidepath to
	// the object; positive means above the glidepath.
	AltitudeDeviation math.Length
	// GlidepathDistance is the horizontal distance to the intersection
	// with the glidepath; negative if the intersection is behind.
	GlidepathDistance math.Length
}

// UpdateGlide runs the glide controller for one tick. position and
// waypointPos are 3-D in nm; groundSpeed is the 3-D ground velocity.
func UpdateGlide(glide *TargetGlide, status *TargetGlideStatus, target *VelocityTarget,
	position, waypointPos math.Vec3, groundSpeed math.Vec3) {
	direction := math.Sub3f(waypointPos, position)
	gs := math.Speed(math.Length2f(math.Horizontal2f(groundSpeed)))

	horizDistance := math.Length(math.Length2f(math.Horizontal2f(direction)))
	lookaheadDistance := gs.DistanceIn(glide.Lookahead)

	glideTan := glide.GlideAngle.Tan()

	// Elevation of the aim point relative to the target waypoint. The
	// glide angle is an angle of depression: negative for a descent, so
	// the aim point sits above the waypoint ahead of it.
	aimElevation := math.Length(float32(horizDistance-lookaheadDistance) * -glideTan)
	// Elevation of the object relative to the target waypoint.
	currentElevation := math.Length(-direction[2])

	targetPitch := math.Angle(math.Atan2(float32(aimElevation-currentElevation), float32(lookaheadDistance)))
	targetPitch = math.Clamp(targetPitch, glide.MinPitch, glide.MaxPitch)

	status.CurrentPitch = targetPitch
	status.AltitudeDeviation = currentElevation + math.Length(float32(horizDistance)*glideTan)
	if glideTan != 0 {
		status.GlidepathDistance = horizDistance + math.Length(float32(currentElevation)/glideTan)
	} else {
		status.GlidepathDistance = horizDistance
	}

	target.VertRate = math.Speed(float32(gs) * targetPitch.Tan())
	target.Expedite = glide.Expedite
}

// TargetGroundDirection is the desired ground-track direction. The
// ground-heading controller compares it against the actual ground track
// and commands the yaw target in airspeed-space, which makes the loop
// compensate for wind as an unmodeled disturbance.
type TargetGroundDirection struct {
	Active bool
	Target math.Heading
	PID    PIDState
}

// NewTargetGroundDirection returns an active controller holding north.
func NewTargetGroundDirection() *TargetGroundDirection {
	return &TargetGroundDirection{Active: true}
}

// UpdateGroundDirection closes the ground-track loop for one tick:
// the PID output is applied as an offset to the current airspeed heading
// and written as a fixed-heading yaw target.
func UpdateGroundDirection(dt time.Duration, gd *TargetGroundDirection, gains PIDGains,
	groundHeading, airspeedHeading math.Heading, target *VelocityTarget) {
	if !gd.Active {
		// Maintain current airspeed heading; nothing to control.
		return
	}

	err := groundHeading.ClosestDelta(gd.Target)
	signal := math.Angle(gd.PID.Control(gains, float32(err), float32(dt.Seconds())))
	target.Yaw = YawHeadingTarget(airspeedHeading.Add(signal))
}

// TargetWaypoint directs the ground track at a waypoint.
type TargetWaypoint struct {
	Waypoint aviation.WaypointID
}

// UpdateWaypointPursuit points the ground-direction target at the
// waypoint, leaving the controller active so the object flies direct.
func UpdateWaypointPursuit(gd *TargetGroundDirection, position, waypointPos math.Vec2) {
	gd.Target = math.HeadingFromVec2(math.Sub2f(waypointPos, position))
}

// TargetAlignment captures the object onto the line from the start
// waypoint to the end waypoint, holding the current heading until the
// line enters the pure-pursuit circle of radius ground speed *
// Lookahead. It engages when the orthogonal distance to the line is
// below ActivationRange (to avoid prematurely turning directly towards
// the localizer), or when the end-side intersection point lies inside
// the circle, i.e. the end waypoint is within it.
type TargetAlignment struct {
	Start           aviation.WaypointID
	End             aviation.WaypointID
	Lookahead       time.Duration
	ActivationRange math.Length
}

// UpdateAlignment runs the alignment controller for one tick.
func UpdateAlignment(gd *TargetGroundDirection, align *TargetAlignment,
	position math.Vec2, groundSpeed math.Speed, startPos, endPos math.Vec2) {
	radius := groundSpeed.DistanceIn(align.Lookahead)
	radiusSq := float32(radius) * float32(radius)

	lo, hi, ok := math.LineCircleIntersect(position, radiusSq, startPos, endPos)
	if ok {
		hiPos := math.Lerp2f(hi, startPos, endPos)
		loPos := math.Lerp2f(lo, startPos, endPos)

		// Apothem from radius and chord length.
		orthoDistSq := radiusSq - math.DistanceSquared2f(loPos, hiPos)/4

		if math.Sqrt(orthoDistSq) < float32(align.ActivationRange) ||
			math.DistanceSquared2f(position, hiPos) < radiusSq {
			gd.Active = true
			gd.Target = math.HeadingFromVec2(math.Sub2f(hiPos, position))
			return
		}
	}

	// Too far from the path; maintain current heading.
	gd.Active = false
}
