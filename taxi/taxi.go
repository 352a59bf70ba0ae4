// taxi/taxi.go

// Package taxi implements ground object movement in two layers:
//
//   - UpdateTargetPath executes the next Target action, updating
//     OnGround to determine "move along which segment at what speed in
//     which direction", smoothly transitioning to the target segment.
//   - MaintainDir executes the movement indicated by OnGround, driving
//     the object along the segment centerline at the required speed.
//
// MaintainDir reduces speed only when the object is expected to diverge
// from the centerline beyond the overshoot tolerance; otherwise it
// always tries to attain the target speed, and it is UpdateTargetPath's
// responsibility to reduce the target speed when approaching an
// intersection or holding short.
package taxi

import (
	"time"

	"github.com/tracon-sim/tracon/aviation"
	"github.com/tracon-sim/tracon/log"
	"github.com/tracon-sim/tracon/math"
)

var (
	// An object is considered stationary below this speed.
	negligibleSpeed = math.SpeedFromKnots(1)

	// The default speed when an object must use a nonzero speed to move
	// but wants to be as slow as possible, especially while turning.
	minPositiveSpeed = math.SpeedFromKnots(2)

	// Within this distance of the centerline the object heads directly
	// for the target endpoint instead of pursuing the centerline.
	negligibleDeviationLength = math.LengthFromMeters(1)

	// Within this angle of the segment heading the object counts as
	// aligned, for HoldWhenAligned.
	negligibleDeviationAngle = math.AngleFromDegrees(5)

	// If the object is expected to diverge from the centerline beyond
	// this distance, it will not accelerate beyond minPositiveSpeed.
	slowTurnOvershootTolerance = math.LengthFromMeters(3)

	// If the object would end up this far past the ideal turning point
	// even with maximum braking, the turn is missed.
	missTurnOvershootTolerance = math.LengthFromMeters(15)
)

// Extra deceleration distance in case braking is less effective.
const decelBuffer = 1.2

// Graph resolves ground network references; lookups return nil when the
// id is dangling, which the controllers log and skip.
type Graph interface {
	Segment(aviation.SegmentID) *aviation.Segment
	Endpoint(aviation.EndpointID) *aviation.Endpoint
}

// TargetSpeedKind discriminates the OnGround speed state machine.
type TargetSpeedKind int8

const (
	// SpeedExact drives toward a specific signed speed.
	SpeedExact TargetSpeedKind = iota
	// SpeedTakeoffRoll accelerates at full rate with no cap.
	SpeedTakeoffRoll
)

type TargetSpeed struct {
	Kind  TargetSpeedKind
	Speed math.Speed
}

func ExactSpeed(s math.Speed) TargetSpeed { return TargetSpeed{Kind: SpeedExact, Speed: s} }
func TakeoffRoll() TargetSpeed            { return TargetSpeed{Kind: SpeedTakeoffRoll} }

// OnGround places an object on a segment; mutually exclusive with being
// airborne.
type OnGround struct {
	Segment     aviation.SegmentID
	Direction   aviation.SegmentDirection
	TargetSpeed TargetSpeed
}

// Status carries the body heading, which may differ from the velocity
// direction during turn transients.
type Status struct {
	Heading math.Heading
}

// ActionKind discriminates TargetAction.
type ActionKind int8

const (
	// ActionTakeoff taxis along the runway with maximum acceleration.
	ActionTakeoff ActionKind = iota
	// ActionTaxi turns to the first available option segment; if all are
	// unavailable the object holds at the end of the current segment.
	ActionTaxi
	// ActionHold holds at the end of the current segment.
	ActionHold
)

// HoldKind selects when an ActionHold stops the object.
type HoldKind int8

const (
	// HoldWhenAligned stops once the body is aligned with the segment,
	// used for lining up before takeoff.
	HoldWhenAligned HoldKind = iota
	// HoldSegmentEnd stops before the end of the current segment,
	// effectively holding short of the intersection.
	HoldSegmentEnd
)

type TargetAction struct {
	Kind    ActionKind
	Runway  aviation.WaypointID    // for ActionTakeoff
	Options []aviation.SegmentID   // for ActionTaxi, in preference order
	Hold    HoldKind               // for ActionHold
}

// ResolutionKind discriminates Resolution.
type ResolutionKind int8

const (
	// ResolutionCompleted: the Index-th option was accepted.
	ResolutionCompleted ResolutionKind = iota
	// ResolutionInoperable: all options were rejected, e.g. the object
	// is too fast or too wide to enter any of them.
	ResolutionInoperable
)

type Resolution struct {
	Kind  ResolutionKind
	Index int
}

// Target is the next planned step for an object. When absent the object
// holds at the end of the current segment.
type Target struct {
	Action TargetAction
	// Resolution is nil while the target is still pending.
	Resolution *Resolution
}

///////////////////////////////////////////////////////////////////////////
// target path

// UpdateTargetPath executes the Target action to decide whether the
// object should accelerate, decelerate, or switch to another segment.
// It reports whether the resolution state changed this tick, so the
// caller can publish the change.
func UpdateTargetPath(g Graph, position math.Vec2, groundSpeed math.Vec3,
	limits *aviation.TaxiLimits, ground *OnGround, status *Status, target *Target,
	lg *log.Logger) bool {
	action := TargetAction{Kind: ActionHold, Hold: HoldSegmentEnd}
	var resolutionOut **Resolution
	if target != nil && target.Resolution == nil {
		action = target.Action
		resolutionOut = &target.Resolution
	}

	var resolution *Resolution
	switch action.Kind {
	case ActionTakeoff:
		if ground.TargetSpeed.Kind == SpeedExact && ground.TargetSpeed.Speed < 0 {
			// Reversing into a takeoff roll is undefined; refuse it.
			lg.Errorf("takeoff requested while reversing; ignored")
			break
		}
		ground.TargetSpeed = TakeoffRoll()
		// No resolution from this layer; the route owns takeoff progress.

	case ActionTaxi:
		resolution = actionTaxi(g, position, groundSpeed, limits, ground, status, action.Options, lg)

	case ActionHold:
		resolution = actionHoldShort(g, position, groundSpeed, limits, ground, status, action.Hold, lg)
	}

	if resolutionOut != nil {
		changed := (resolution == nil) != (*resolutionOut == nil)
		*resolutionOut = resolution
		return changed
	}
	return false
}

// actionTaxi attempts to turn to one of the options, or holds before the
// end of the current segment if all are currently unavailable.
func actionTaxi(g Graph, position math.Vec2, groundSpeed math.Vec3,
	limits *aviation.TaxiLimits, ground *OnGround, status *Status,
	options []aviation.SegmentID, lg *log.Logger) *Resolution {
	for i, id := range options {
		if id == ground.Segment {
			return &Resolution{Kind: ResolutionCompleted, Index: i}
		}
	}

	currentSegment := g.Segment(ground.Segment)
	if currentSegment == nil {
		lg.Errorf("object on dangling segment %d", ground.Segment)
		return nil
	}

	_, intersectionEndpoint := currentSegment.ByDirection(ground.Direction)
	for i, next := range options {
		result, ok := turnToSegment(g, position, groundSpeed, limits, ground, status,
			intersectionEndpoint, next, lg)
		if !ok {
			return nil
		}
		switch result {
		case turnTooFast, turnTooNarrow:
			// Fall through to the next option.
		case turnLater:
			// We can turn to this segment later; no need to consider the
			// remaining options yet.
			return nil
		case turnCompleted:
			return &Resolution{Kind: ResolutionCompleted, Index: i}
		}
	}

	// All options are inoperable; just hold.
	endpoint := g.Endpoint(intersectionEndpoint)
	if endpoint == nil {
		lg.Errorf("dangling endpoint %d", intersectionEndpoint)
		return nil
	}
	holdBeforeEndpoint(g, position, groundSpeed, limits, ground, endpoint)
	if math.Speed(math.Length2f(math.Horizontal2f(groundSpeed))) < negligibleSpeed {
		return &Resolution{Kind: ResolutionInoperable}
	}
	return nil
}

func actionHoldShort(g Graph, position math.Vec2, groundSpeed math.Vec3,
	limits *aviation.TaxiLimits, ground *OnGround, status *Status, kind HoldKind,
	lg *log.Logger) *Resolution {
	currentSegment := g.Segment(ground.Segment)
	if currentSegment == nil {
		lg.Errorf("object on dangling segment %d", ground.Segment)
		return nil
	}
	fromID, toID := currentSegment.ByDirection(ground.Direction)
	from, to := g.Endpoint(fromID), g.Endpoint(toID)
	if from == nil || to == nil {
		lg.Errorf("segment %d has dangling endpoints", ground.Segment)
		return nil
	}

	switch kind {
	case HoldWhenAligned:
		holdWhenAligned(position, ground, status, from.Position, to.Position)
	case HoldSegmentEnd:
		holdBeforeEndpoint(g, position, groundSpeed, limits, ground, to)
	}

	if math.Speed(math.Length2f(math.Horizontal2f(groundSpeed))) < negligibleSpeed {
		return &Resolution{Kind: ResolutionCompleted, Index: 0}
	}
	return nil
}

type turnResult int8

const (
	// Too fast to complete the turn within the endpoint width.
	turnTooFast turnResult = iota
	// The next segment is too narrow for the object.
	turnTooNarrow
	// The object can turn to the next segment, but is not yet close
	// enough to the intersection point.
	turnLater
	// The object has switched to the next segment.
	turnCompleted
)

// turnToSegment attempts to turn onto nextSegmentID at the intersection,
// decelerating such that the object is slow enough to turn to the next
// heading within the size of the intersection: the object starts turning
// upon entering the intersection width and completes the turn upon exit.
func turnToSegment(g Graph, position math.Vec2, groundSpeed math.Vec3,
	limits *aviation.TaxiLimits, ground *OnGround, status *Status,
	intersectEndpoint aviation.EndpointID, nextSegmentID aviation.SegmentID,
	lg *log.Logger) (turnResult, bool) {
	linearSpeed := math.Speed(math.Length2f(math.Horizontal2f(groundSpeed)))

	intersect := g.Endpoint(intersectEndpoint)
	if intersect == nil {
		lg.Errorf("dangling endpoint %d", intersectEndpoint)
		return 0, false
	}
	currentSegment := g.Segment(ground.Segment)
	nextSegment := g.Segment(nextSegmentID)
	if currentSegment == nil || nextSegment == nil {
		lg.Errorf("dangling segment in turn candidates")
		return 0, false
	}
	if nextSegment.Width < limits.Width {
		return turnTooNarrow, true
	}

	nextTargetEndpoint, ok := nextSegment.OtherEndpoint(intersectEndpoint)
	if !ok {
		lg.Errorf("adjacent segment %d does not back-reference endpoint %d",
			nextSegmentID, intersectEndpoint)
		return 0, false
	}
	nextTarget := g.Endpoint(nextTargetEndpoint)
	if nextTarget == nil {
		lg.Errorf("dangling endpoint %d", nextTargetEndpoint)
		return 0, false
	}
	nextSegmentHeading := math.HeadingFromVec2(math.Sub2f(nextTarget.Position, intersect.Position))
	absTurn := status.Heading.ClosestDelta(nextSegmentHeading).Abs()

	intersectionWidth, ok := endpointWidth(g, intersect)
	if !ok {
		lg.Errorf("endpoint %d has an empty adjacency list", intersectEndpoint)
		return 0, false
	}

	// Expect intersectionWidth / turnRadius >= tan(absTurn / 2), with
	// intersectionWidth already half the widest adjacent segment, so
	// that the turn fits exactly within the intersection circle. Since
	// turnSpeed = turnRadius * turnRate,
	// turnSpeed <= turnRate * intersectionWidth / tan(absTurn / 2).
	halfTan := (absTurn / 2).Tan()
	maxTurnSpeed := limits.MaxSpeed
	if halfTan > 0 {
		maxTurnSpeed = math.Speed(float32(intersectionWidth.RadiusToArc(limits.TurnRate)) / halfTan)
	}

	objectDist := math.Length(math.Distance2f(position, intersect.Position)) - intersectionWidth

	if linearSpeed > maxTurnSpeed {
		// maxTurnSpeed^2 = linearSpeed^2 - 2 * baseBraking * decelDistance
		decelDistance := (linearSpeed.Squared() - maxTurnSpeed.Squared()).DivAccel(limits.BaseBraking * 2)
		if objectDist > decelDistance*decelBuffer {
			// Continue at segment speed until decelDistance from the
			// intersection threshold.
			ground.TargetSpeed = ExactSpeed(currentSegment.MaxSpeed)
			return turnLater, true
		}

		// How much extra distance past the threshold before we are slow
		// enough to turn?
		deficit := decelDistance - objectDist
		if deficit > missTurnOvershootTolerance {
			// Even braking from now on, we are past the intersection by
			// the time we are slow enough; skip this turn.
			return turnTooFast, true
		}

		// Too fast to turn; reduce speed. The segment is neither
		// accepted nor rejected yet.
		ground.TargetSpeed = ExactSpeed(maxTurnSpeed)
		return turnLater, true
	}

	// Slow enough to turn; close enough to the intersection point yet?
	// The distance required to turn from the body heading to the next
	// segment heading, measured along the body heading from the
	// intersection center, is turnRadius * tan(absTurn / 2). (Consider
	// the triangle between the intersection point, the turning center,
	// and the starting point.)
	turnRadius := linearSpeed.DivAngularSpeed(limits.TurnRate)
	turnDistance := math.Length(float32(turnRadius) * halfTan)

	if objectDist > turnDistance {
		ground.TargetSpeed = ExactSpeed(currentSegment.MaxSpeed)
		return turnLater, true
	}

	dir, ok := nextSegment.DirectionFrom(intersectEndpoint)
	if !ok {
		lg.Errorf("segment %d direction from endpoint %d unresolvable", nextSegmentID, intersectEndpoint)
		return 0, false
	}
	ground.Segment = nextSegmentID
	ground.TargetSpeed = ExactSpeed(nextSegment.MaxSpeed)
	ground.Direction = dir
	return turnCompleted, true
}

func holdWhenAligned(position math.Vec2, ground *OnGround, status *Status,
	fromPos, toPos math.Vec2) {
	segmentHeading := math.HeadingFromVec2(math.Sub2f(toPos, fromPos))

	if status.Heading.ClosestDelta(segmentHeading).Abs() < negligibleDeviationAngle {
		closest := math.PointLineClosest(position, fromPos, toPos)
		if math.Length(math.Distance2f(position, closest)) < negligibleDeviationLength {
			ground.TargetSpeed = ExactSpeed(0)
		}
	}
}

// holdBeforeEndpoint decelerates to stop before the width of the
// endpoint intersection.
func holdBeforeEndpoint(g Graph, position math.Vec2, groundSpeed math.Vec3,
	limits *aviation.TaxiLimits, ground *OnGround, endpoint *aviation.Endpoint) {
	intersectionWidth := math.Length(0)
	for _, segID := range endpoint.Adjacency {
		if seg := g.Segment(segID); seg != nil {
			intersectionWidth = max(intersectionWidth, seg.Width)
		}
	}

	// 0 = v^2 - 2 * braking * d  =>  d = v^2 / (2 * braking)
	speedSq := math.Speed(math.Length2f(math.Horizontal2f(groundSpeed))).Squared()
	decelDistance := speedSq.DivAccel(limits.BaseBraking * 2)

	distanceToIntersection := math.Length(math.Distance2f(position, endpoint.Position))
	if distanceToIntersection > decelDistance+intersectionWidth {
		// Far enough; no need to brake yet.
		return
	}

	ground.TargetSpeed = ExactSpeed(0)
}

// endpointWidth is half the widest adjacent segment, the effective turn
// radius available at the junction.
func endpointWidth(g Graph, endpoint *aviation.Endpoint) (math.Length, bool) {
	w := math.Length(0)
	found := false
	for _, segID := range endpoint.Adjacency {
		if seg := g.Segment(segID); seg != nil {
			w = max(w, seg.Width)
			found = true
		}
	}
	return w / 2, found
}

///////////////////////////////////////////////////////////////////////////
// maintain direction

// MaintainDir updates the heading and speed of the object to follow the
// centerline of its current segment from startPos to targetPos:
//
//   - Always try to attain the target speed, even while not parallel.
//   - If turning to the target heading at the maximum rate would still
//     cross the segment, turn toward the target heading now.
//   - Otherwise turn toward the centerline pursuit point.
//   - A negative target speed reverses all speeds and headings for the
//     duration of the computation.
//
// groundSpeed is updated in place; status receives the new body heading.
func MaintainDir(dt time.Duration, position math.Vec2, groundSpeed *math.Vec3,
	ground *OnGround, status *Status, limits *aviation.TaxiLimits,
	startPos, targetPos math.Vec2, lg *log.Logger) {
	reversed := ground.TargetSpeed.Kind == SpeedExact && ground.TargetSpeed.Speed < 0

	currentSpeed := math.Speed(math.ProjectOnto2f(math.Horizontal2f(*groundSpeed), status.Heading.Vec2()))
	currentCorrectedSpeed := currentSpeed
	currentHeading := status.Heading
	if reversed {
		currentCorrectedSpeed = -currentSpeed
		currentHeading = status.Heading.Opposite()
	}

	// From here on reversal is ignored by treating the backward
	// direction as the heading.

	targetHeading := math.HeadingFromVec2(math.Sub2f(targetPos, startPos))

	closest := math.PointLineClosest(position, startPos, targetPos)
	// Vector from the object to the closest point on the line,
	// orthogonal to the line.
	orthoToLine := math.Sub2f(closest, position)
	orthoDist := math.Length(math.Length2f(orthoToLine))

	if math.Dot2f(math.Sub2f(closest, targetPos), math.Sub2f(startPos, targetPos)) <= 0 {
		lg.Warnf("object overshot segment, need recovery")
	}
	isBehindSegment := math.Dot2f(math.Sub2f(closest, startPos), math.Sub2f(targetPos, startPos)) <= 0

	// Whether the current heading faces the centerline; always true when
	// negligibly near it.
	isTowardsCenterline := orthoDist < negligibleDeviationLength ||
		math.Dot2f(currentHeading.Vec2(), orthoToLine) >= 0

	turnTowardsTarget := currentHeading.ClosestDelta(targetHeading)

	// Estimated change in orthogonal displacement if we start turning
	// toward the segment heading now:
	// speed * int_0^{dev/rate} sin(dev - rate*t) dt.
	convergenceDist := math.Length(float32(currentCorrectedSpeed) *
		(1 - turnTowardsTarget.Cos()) / float32(limits.TurnRate))

	directHeading := math.HeadingFromVec2(math.Sub2f(targetPos, position))

	const (
		aimTargetEndpoint = iota
		aimStartEndpoint
		aimCenterline
	)
	var aim int
	switch {
	case orthoDist < negligibleDeviationLength:
		// Do not overcorrect while the deviation is negligible.
		aim = aimTargetEndpoint
	case directHeading.IsBetween(currentHeading, math.HeadingFromVec2(orthoToLine)):
		// Non-negligible deviation, facing away from the target and not
		// moving toward the line; turn toward the centerline first.
		aim = aimCenterline
	case orthoDist < convergenceDist:
		// We will cross the line even if we turn toward the target
		// heading immediately, so turn as soon as possible.
		aim = aimTargetEndpoint
	case isBehindSegment:
		// Behind the segment start there is no centerline to pursue.
		aim = aimStartEndpoint
	default:
		aim = aimCenterline
	}

	var desiredHeading math.Heading
	switch aim {
	case aimTargetEndpoint:
		desiredHeading = targetHeading
	case aimStartEndpoint:
		desiredHeading = math.HeadingFromVec2(math.Sub2f(startPos, position))
	case aimCenterline:
		// Aim at a point on the centerline that would not be overshot
		// within dt at the current speed; zero when even reaching the
		// line within dt is impossible.
		step := currentCorrectedSpeed.DistanceIn(dt)
		offsetSq := float32(step.Squared() - orthoDist.Squared())
		forwardOffset := float32(0)
		if offsetSq > 0 {
			forwardOffset = math.Sqrt(offsetSq)
		}
		if currentCorrectedSpeed < 0 {
			// Moving backwards: the pursuit point goes backwards too,
			// otherwise the object rotates opposite to the target.
			forwardOffset = -forwardOffset
		}
		desiredHeading = math.HeadingFromVec2(
			math.Add2f(orthoToLine, math.Scale2f(targetHeading.Vec2(), forwardOffset)))
	}

	maxTurn := limits.TurnRate.AngleIn(dt)
	newHeading := currentHeading.RestrictedTurn(desiredHeading, maxTurn)

	shouldBrake := false
	if currentCorrectedSpeed > 0 {
		// Cross the centerline and diverge beyond the threshold...
		crossingDiverge := orthoDist < convergenceDist-slowTurnOvershootTolerance
		// ...or diverging and continuing to diverge beyond it.
		continueDiverge := !isTowardsCenterline &&
			orthoDist > slowTurnOvershootTolerance-convergenceDist
		// Either way the object crosses the centerline well before it
		// can turn to the target heading, so slow down further.
		shouldBrake = crossingDiverge || continueDiverge
	}

	var newSpeed math.Speed
	switch {
	case shouldBrake:
		newSpeed = limitedTaxiSpeed(dt, reversed, minPositiveSpeed, currentSpeed, limits)
	case ground.TargetSpeed.Kind == SpeedExact:
		newSpeed = limitedTaxiSpeed(dt, reversed, ground.TargetSpeed.Speed.Abs(), currentSpeed, limits)
	default: // takeoff roll
		newSpeed = currentSpeed + limits.Accel.SpeedIn(dt)
	}

	velocity := math.Scale2f(newHeading.Vec2(), float32(newSpeed))
	*groundSpeed = math.WithVertical3f(velocity, 0)
	if reversed {
		status.Heading = newHeading.Opposite()
	} else {
		status.Heading = newHeading
	}
}

func limitedTaxiSpeed(dt time.Duration, reversed bool, desiredSpeed, currentSpeed math.Speed,
	limits *aviation.TaxiLimits) math.Speed {
	if reversed {
		desiredSpeed = -desiredSpeed
	}
	deviation := desiredSpeed - currentSpeed

	var accelLimit math.Accel
	if (currentSpeed > 0) == (deviation > 0) {
		accelLimit = limits.Accel
	} else {
		accelLimit = limits.BaseBraking
	}
	maxChange := accelLimit.SpeedIn(dt)

	change := math.Clamp(deviation, -maxChange, maxChange)
	return math.Clamp(currentSpeed+change, limits.MinSpeed, limits.MaxSpeed)
}
