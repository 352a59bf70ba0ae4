// sim/route.go

package sim

import (
	"time"

	"github.com/brunoga/deep"

	"github.com/tracon-sim/tracon/aviation"
	"github.com/tracon-sim/tracon/math"
	"github.com/tracon-sim/tracon/nav"
	"github.com/tracon-sim/tracon/taxi"
)

// Horizontal distance before the point at which an object must start
// changing altitude at standard rate in order to reach the required
// altitude configured in the future.
var altitudeChangeTriggerWindow = math.LengthFromNm(1)

// Frequency of re-executing the route plan for each object.
const refreshInterval = 5 * time.Second

// Activation range for AlignRunway nodes; the object starts aligning
// as soon as it is this close to the extended centerline.
var alignRunwayActivationRange = math.LengthFromNm(0.5)

// Lookahead for AlignRunway pure pursuit.
const alignRunwayLookahead = 10 * time.Second

// Track deviation beyond which a visual landing is rejected.
var maxTrackDeviation = math.AngleFromDegrees(22.5)

// Distance from the threshold at which a visual landing commits or goes
// around.
var visualDecisionDistance = math.LengthFromNm(1)

// NodeKind discriminates route nodes.
type NodeKind int8

const (
	// NodeDirectWaypoint heads towards a waypoint.
	NodeDirectWaypoint NodeKind = iota
	// NodeSetAirspeed sets the target airspeed.
	NodeSetAirspeed
	// NodeStartSetAltitude starts pitching to an altitude.
	NodeStartSetAltitude
	// NodeAlignRunway aligns onto a runway localizer and glidepath.
	NodeAlignRunway
	// NodeShortFinal reconfigures to short-final speed near the runway.
	NodeShortFinal
	// NodeVisualLanding commits to landing or goes around.
	NodeVisualLanding
	// NodeTaxi steers the ground path onto a labeled segment.
	NodeTaxi
)

// WaypointProximity selects how a DirectWaypoint node completes.
type WaypointProximity int8

const (
	// FlyBy turns to the next leg before reaching the waypoint so that
	// the rollout lands on the following course.
	FlyBy WaypointProximity = iota
	// FlyOver requires entering the waypoint's distance range first.
	FlyOver
)

// TaxiStopMode selects whether a taxi node holds short after its label.
type TaxiStopMode int8

const (
	TaxiStopHoldShort TaxiStopMode = iota
	TaxiStopExhaust
)

// Node is an entry in the flight plan. Fields apply per Kind.
type Node struct {
	Kind NodeKind

	// DirectWaypoint
	Waypoint  aviation.WaypointID
	Distance  math.Length
	Proximity WaypointProximity
	// Altitude, if set, asks the planner to arrange reaching it
	// approximately when the waypoint is reached.
	Altitude *math.Length

	// SetAirspeed
	Speed      math.Speed
	SpeedError *math.Speed

	// StartSetAltitude
	TargetAltitude *math.Length
	AltitudeError  *math.Length
	Expedite       bool

	// AlignRunway / ShortFinal / VisualLanding
	Runway aviation.WaypointID

	// Taxi
	Label aviation.SegmentLabel
	Stop  TaxiStopMode
}

// Route is the flight plan: the current node plus the ordered queue of
// upcoming nodes. Always manipulate through the World route commands so
// that triggers stay consistent.
type Route struct {
	Current *Node
	Queue   []Node
	// Standby suspends route execution (a heading assignment overrides
	// the route without discarding it).
	Standby  bool
	PresetID string

	completedPosted bool
}

func (r *Route) Push(node Node) {
	if r.Current == nil && len(r.Queue) == 0 {
		n := node
		r.Current = &n
	} else {
		r.Queue = append(r.Queue, node)
	}
}

// Shift drops the current node and promotes the next one.
func (r *Route) Shift() {
	if len(r.Queue) > 0 {
		n := r.Queue[0]
		r.Queue = r.Queue[1:]
		r.Current = &n
	} else {
		r.Current = nil
	}
}

func (r *Route) len() int {
	n := len(r.Queue)
	if r.Current != nil {
		n++
	}
	return n
}

// node returns the i-th upcoming node, 0 being the current one.
func (r *Route) node(i int) *Node {
	if r.Current != nil {
		if i == 0 {
			return r.Current
		}
		i--
	}
	if i < len(r.Queue) {
		return &r.Queue[i]
	}
	return nil
}

func (r *Route) last() *Node {
	if n := len(r.Queue); n > 0 {
		return &r.Queue[n-1]
	}
	return r.Current
}

// RoutePreset is a reusable named route; instantiation deep-copies the
// nodes so runtime mutation never leaks back into the preset.
type RoutePreset struct {
	ID    string
	Title string
	Nodes []Node
}

// RegisterRoutePreset makes a preset selectable by id.
func (w *World) RegisterRoutePreset(p RoutePreset) {
	stored := p
	w.routePresets[p.ID] = &stored
}

func (w *World) RoutePreset(id string) *RoutePreset { return w.routePresets[id] }

///////////////////////////////////////////////////////////////////////////
// route commands

// PushRouteNode appends a node and re-evaluates the route.
func (w *World) PushRouteNode(obj *Object, node Node) {
	if obj.Route == nil {
		obj.Route = &Route{}
	}
	obj.Route.Push(node)
	obj.Route.completedPosted = false
	w.runCurrentNode(obj)
}

// NextNode advances past the current node and re-evaluates.
func (w *World) NextNode(obj *Object) {
	if obj.Route == nil {
		return
	}
	obj.Route.Shift()
	if obj.Route.Current == nil && !obj.Route.completedPosted {
		obj.Route.completedPosted = true
		w.Stats.RoutesCompleted++
		w.Events.Post(Event{Type: RouteCompletedEvent, Object: obj.ID})
	}
	w.runCurrentNode(obj)
}

// RunCurrentNode recomputes the triggers for the route, used after the
// route is replaced wholesale.
func (w *World) RunCurrentNode(obj *Object) { w.runCurrentNode(obj) }

func (w *World) clearAllNodes(obj *Object) {
	if obj.Route == nil {
		return
	}
	obj.Route.Current = nil
	obj.Route.Queue = nil
	w.runCurrentNode(obj)
}

func (w *World) replaceNodes(obj *Object, preset *RoutePreset) {
	nodes := deep.MustCopy(preset.Nodes)
	obj.Route = &Route{PresetID: preset.ID}
	for _, n := range nodes {
		obj.Route.Push(n)
	}
	w.runCurrentNode(obj)
}

// setRouteStandby suspends route execution without discarding nodes.
func (w *World) setRouteStandby(obj *Object) {
	obj.Route.Standby = true
	w.clearMovementTriggers(obj)
	obj.timeTrigger = nil
	obj.distanceTrigger = nil
}

func (w *World) clearMovementTriggers(obj *Object) {
	obj.flyOverTrigger = nil
	obj.flyByTrigger = nil
}

type runNodeResult int8

const (
	// Pending triggers to activate; nothing more to do.
	nodePending runNodeResult = iota
	// Current node is done; skip to the next node.
	nodeDone
	// The route was replaced from inside the node; stop processing.
	nodeReplaced
)

// runCurrentNode executes nodes until one leaves a pending trigger, then
// re-plans altitude and schedules the periodic refresh. All triggers are
// idempotent under re-runs.
func (w *World) runCurrentNode(obj *Object) {
	route := obj.Route
	if route == nil || route.Standby {
		w.clearMovementTriggers(obj)
		return
	}

	for {
		if route.Current == nil {
			w.clearMovementTriggers(obj)
			break
		}
		switch w.runNode(obj, route.Current) {
		case nodePending:
			goto planned
		case nodeDone:
			route.Shift()
		case nodeReplaced:
			return
		}
	}

planned:
	w.updateAltitudePlan(obj)

	if obj.timeTrigger == nil {
		obj.timeTrigger = &timeTrigger{}
	}
	obj.timeTrigger.at = w.clock.Now() + refreshInterval
}

func (w *World) runNode(obj *Object, node *Node) runNodeResult {
	switch node.Kind {
	case NodeDirectWaypoint:
		return w.runDirectWaypoint(obj, node)
	case NodeSetAirspeed:
		return w.runSetAirspeed(obj, node)
	case NodeStartSetAltitude:
		return w.runStartSetAltitude(obj, node)
	case NodeAlignRunway:
		return w.runAlignRunway(obj, node)
	case NodeShortFinal:
		return w.runShortFinal(obj, node)
	case NodeVisualLanding:
		return w.runVisualLanding(obj, node)
	case NodeTaxi:
		return w.runTaxi(obj, node)
	}
	return nodeDone
}

func (w *World) runDirectWaypoint(obj *Object, node *Node) runNodeResult {
	wp := w.waypoints[node.Waypoint]
	if wp == nil {
		obj.logOnce(w.lg, "route-waypoint", "%s: route references unknown waypoint %d",
			obj.Callsign, node.Waypoint)
		return nodeDone
	}

	obj.TargetAlignment = nil
	obj.TargetGlide = nil
	obj.TargetGlideStatus = nil
	obj.TargetWaypoint = &nav.TargetWaypoint{Waypoint: node.Waypoint}
	if obj.TargetGroundDirection == nil {
		obj.TargetGroundDirection = nav.NewTargetGroundDirection()
	}

	switch node.Proximity {
	case FlyOver:
		obj.flyByTrigger = nil
		obj.flyOverTrigger = &flyOverTrigger{waypoint: node.Waypoint, distance: node.Distance}
	case FlyBy:
		// The fly-by turn anticipates the heading of the first upcoming
		// node that configures one; without it the declared distance is
		// the completion condition.
		completion := flyByCompletion{kind: flyByDistance, distance: node.Distance}
		for i := range obj.Route.Queue {
			if cfg, ok := w.nodeConfiguresHeading(&obj.Route.Queue[i]); ok {
				completion = flyByCompletion{kind: flyByHeading, heading: cfg}
				break
			}
		}
		obj.flyOverTrigger = nil
		obj.flyByTrigger = &flyByTrigger{waypoint: node.Waypoint, completion: completion}
	}
	return nodePending
}

func (w *World) runSetAirspeed(obj *Object, node *Node) runNodeResult {
	if obj.VelocityTarget != nil {
		obj.VelocityTarget.HorizSpeed = node.Speed
	}
	if node.SpeedError == nil {
		return nodeDone
	}
	if obj.Airborne == nil {
		return nodePending
	}
	current := math.Speed(math.Length2f(math.Horizontal2f(obj.Airborne.Airspeed)))
	if (current - node.Speed).Abs() <= *node.SpeedError {
		return nodeDone
	}
	return nodePending
}

func (w *World) runStartSetAltitude(obj *Object, node *Node) runNodeResult {
	if node.TargetAltitude == nil {
		obj.logOnce(w.lg, "route-altitude", "%s: altitude node without altitude", obj.Callsign)
		return nodeDone
	}
	obj.TargetAltitude = &nav.TargetAltitude{Altitude: *node.TargetAltitude, Expedite: node.Expedite}
	if node.AltitudeError == nil {
		return nodeDone
	}
	if (math.Length(obj.Position[2]) - *node.TargetAltitude).Abs() <= *node.AltitudeError {
		return nodeDone
	}
	return nodePending
}

func (w *World) runAlignRunway(obj *Object, node *Node) runNodeResult {
	wp := w.waypoints[node.Runway]
	if wp == nil || wp.Runway == nil {
		obj.logOnce(w.lg, "route-runway", "%s: align node references non-runway %d",
			obj.Callsign, node.Runway)
		return nodePending
	}
	if w.waypoints[wp.Runway.LocalizerWaypoint] == nil {
		obj.logOnce(w.lg, "route-localizer", "%s: runway %s has no localizer waypoint",
			obj.Callsign, wp.Name)
		return nodePending
	}

	obj.TargetWaypoint = nil
	obj.TargetAltitude = nil
	obj.TargetAlignment = &nav.TargetAlignment{
		Start:           wp.Runway.LocalizerWaypoint,
		End:             node.Runway,
		ActivationRange: alignRunwayActivationRange,
		Lookahead:       alignRunwayLookahead,
	}
	obj.TargetGlide = &nav.TargetGlide{
		Waypoint:   node.Runway,
		GlideAngle: -wp.Runway.GlideAngle,
		// The actual minimum pitch is regulated by the maximum descent
		// rate.
		MinPitch:  -math.AngleRight,
		MaxPitch:  0,
		Lookahead: alignRunwayLookahead,
		Expedite:  node.Expedite,
	}
	obj.TargetGlideStatus = &nav.TargetGlideStatus{}
	if obj.TargetGroundDirection == nil {
		obj.TargetGroundDirection = nav.NewTargetGroundDirection()
	}

	return nodeDone
}

func (w *World) runShortFinal(obj *Object, node *Node) runNodeResult {
	wp := w.waypoints[node.Runway]
	if wp == nil || wp.Runway == nil || obj.NavLimits == nil {
		return nodePending
	}
	d := math.Length(math.Distance2f(math.Horizontal2f(obj.Position), math.Horizontal2f(wp.Position)))
	if d > obj.NavLimits.ShortFinalDist {
		return nodePending
	}
	if obj.VelocityTarget != nil {
		obj.VelocityTarget.HorizSpeed = obj.NavLimits.ShortFinalSpeed
	}
	return nodeDone
}

func (w *World) runVisualLanding(obj *Object, node *Node) runNodeResult {
	wp := w.waypoints[node.Runway]
	if wp == nil || wp.Runway == nil {
		obj.logOnce(w.lg, "route-runway", "%s: landing node references non-runway %d",
			obj.Callsign, node.Runway)
		return nodePending
	}
	if obj.Airborne == nil {
		return nodeDone
	}

	d := math.Length(math.Distance2f(math.Horizontal2f(obj.Position), math.Horizontal2f(wp.Position)))
	if d > visualDecisionDistance {
		return nodePending
	}

	track := math.HeadingFromVec2(math.Horizontal2f(obj.GroundSpeed))
	deviation := track.ClosestDelta(wp.Runway.LandingHeading()).Abs()
	visibility := w.WX.Lookup(math.Horizontal2f(wp.Position), math.Length(wp.Position[2])).Visibility

	if deviation < maxTrackDeviation && visibility >= d {
		seg := w.segments[wp.Runway.Segment]
		if seg == nil {
			obj.logOnce(w.lg, "route-runway-segment", "%s: runway %s has no ground segment",
				obj.Callsign, wp.Name)
			return nodePending
		}
		w.SetOnGround(obj, wp.Runway.Segment, wp.Runway.SegmentDirection, taxi.ExactSpeed(0))
		w.Stats.Landings++
		w.Events.Post(Event{Type: DestinationReachedEvent, Object: obj.ID})
		return nodeDone
	}

	// Below minima or not tracking the runway: go around.
	w.Stats.GoArounds++
	w.Events.Post(Event{Type: GoAroundEvent, Object: obj.ID})
	if preset := w.routePresets[wp.Runway.GoAroundPreset]; preset != nil {
		w.replaceNodes(obj, preset)
		return nodeReplaced
	}
	obj.logOnce(w.lg, "route-goaround", "%s: no go-around preset for runway %s",
		obj.Callsign, wp.Name)
	return nodeDone
}

func (w *World) runTaxi(obj *Object, node *Node) runNodeResult {
	options := w.SegmentsWithLabel(node.Label)
	if len(options) == 0 {
		obj.logOnce(w.lg, "route-taxi-label", "%s: no segments labeled %s",
			obj.Callsign, node.Label)
		return nodeDone
	}

	// Only trust a target this node installed itself; a leftover hold
	// (or a previous node's target) is replaced.
	if obj.TaxiTarget == nil || !taxiTargetMatches(obj.TaxiTarget, options) {
		obj.TaxiTarget = &taxi.Target{Action: taxi.TargetAction{Kind: taxi.ActionTaxi, Options: options}}
		return nodePending
	}

	res := obj.TaxiTarget.Resolution
	if res == nil {
		return nodePending
	}
	switch res.Kind {
	case taxi.ResolutionCompleted:
		obj.TaxiTarget = nil
		if node.Stop == TaxiStopHoldShort {
			obj.TaxiTarget = &taxi.Target{Action: taxi.TargetAction{Kind: taxi.ActionHold, Hold: taxi.HoldSegmentEnd}}
		}
		return nodeDone
	default:
		// Inoperable: keep holding; the periodic refresh retries.
		return nodePending
	}
}

func taxiTargetMatches(target *taxi.Target, options []aviation.SegmentID) bool {
	if target.Action.Kind != taxi.ActionTaxi || len(target.Action.Options) != len(options) {
		return false
	}
	for i, id := range options {
		if target.Action.Options[i] != id {
			return false
		}
	}
	return true
}

// nodeConfiguresHeading reports the heading the object flies after the
// node, for fly-by turn anticipation.
func (w *World) nodeConfiguresHeading(node *Node) (headingConfig, bool) {
	switch node.Kind {
	case NodeDirectWaypoint:
		return headingConfig{kind: headingToWaypoint, waypoint: node.Waypoint}, true
	case NodeAlignRunway, NodeVisualLanding:
		if wp := w.waypoints[node.Runway]; wp != nil && wp.Runway != nil {
			return headingConfig{kind: headingFixed, heading: wp.Runway.LandingHeading()}, true
		}
	}
	return headingConfig{}, false
}

// nodeDesiredAltitude classifies a node for the altitude planner.
type desiredAltitude int8

const (
	altitudeInconclusive desiredAltitude = iota
	altitudeDesired
	altitudeNotRequired
)

func (w *World) nodeDesiredAltitude(node *Node) (desiredAltitude, math.Vec3) {
	switch node.Kind {
	case NodeDirectWaypoint:
		if node.Altitude == nil {
			return altitudeInconclusive, math.Vec3{}
		}
		wp := w.waypoints[node.Waypoint]
		if wp == nil {
			return altitudeNotRequired, math.Vec3{}
		}
		return altitudeDesired, math.WithVertical3f(math.Horizontal2f(wp.Position), float32(*node.Altitude))
	case NodeStartSetAltitude:
		return altitudeNotRequired, math.Vec3{}
	default:
		return altitudeInconclusive, math.Vec3{}
	}
}

func (w *World) nodeConfiguresAirspeed(node *Node) (math.Speed, bool) {
	if node.Kind == NodeSetAirspeed {
		return node.Speed, true
	}
	return 0, false
}

func (w *World) nodeConfiguresPosition(node *Node) (math.Vec2, bool) {
	if node.Kind == NodeDirectWaypoint {
		if wp := w.waypoints[node.Waypoint]; wp != nil {
			return math.Horizontal2f(wp.Position), true
		}
	}
	return math.Vec2{}, false
}

///////////////////////////////////////////////////////////////////////////
// altitude pre-planning

type planAltitudeResult int8

const (
	planNone planAltitudeResult = iota
	planImmediate
	planDelayed
)

// updateAltitudePlan walks the future route, decides when the altitude
// change must begin, and installs either an immediate TargetAltitude or
// a DistanceTrigger at the computed point.
func (w *World) updateAltitudePlan(obj *Object) {
	result, altitude, expedite, distance := w.planAltitude(obj)

	switch result {
	case planNone:
		obj.distanceTrigger = nil
	case planImmediate:
		obj.distanceTrigger = nil
		obj.TargetAltitude = &nav.TargetAltitude{Altitude: altitude, Expedite: expedite}
	case planDelayed:
		if ta := obj.TargetAltitude; ta != nil {
			current := math.Length(obj.Position[2])
			if math.Sign(float32(ta.Altitude-current)) == math.Sign(float32(altitude-current)) {
				// Already moving in the right direction; no need to wait.
				// Just drop expedite since there is plenty of time.
				ta.Expedite = false
				return
			}
		}
		obj.distanceTrigger = &distanceTrigger{
			remaining: distance,
			lastPos:   math.Horizontal2f(obj.Position),
		}
	}
}

func (w *World) planAltitude(obj *Object) (planAltitudeResult, math.Length, bool, math.Length) {
	route := obj.Route
	if route == nil || obj.Airborne == nil {
		return planNone, 0, false, 0
	}

	// Find the first node that pins an altitude, or declares that no
	// planning is needed.
	targetIndex := -1
	var targetPos math.Vec3
	found := false
	for i := 0; i < route.len(); i++ {
		kind, pos := w.nodeDesiredAltitude(route.node(i))
		if kind == altitudeNotRequired {
			return planNone, 0, false, 0
		}
		if kind == altitudeDesired {
			targetIndex, targetPos, found = i, pos, true
			break
		}
	}
	if !found {
		return planNone, 0, false, 0
	}
	targetAltitude := math.Length(targetPos[2])
	currentAltitude := math.Length(obj.Position[2])

	// Segment the path by nodes that configure airspeed or position.
	type pathSegment struct {
		start, end math.Vec2
		airspeed   math.Speed
	}
	var segments []pathSegment
	segSpeed := math.Speed(math.Length2f(math.Horizontal2f(obj.Airborne.Airspeed)))
	segStart := math.Horizontal2f(obj.Position)
	for i := 0; i <= targetIndex; i++ {
		node := route.node(i)
		if speed, ok := w.nodeConfiguresAirspeed(node); ok {
			segSpeed = speed
		}
		if pos, ok := w.nodeConfiguresPosition(node); ok {
			segments = append(segments, pathSegment{start: segStart, end: pos, airspeed: segSpeed})
			segStart = pos
		}
	}

	if obj.NavLimits == nil {
		obj.logOnce(w.lg, "plan-limits", "%s: cannot plan altitude without limits", obj.Callsign)
		if targetIndex == 0 {
			return planImmediate, targetAltitude, false, 0
		}
		return planNone, 0, false, 0
	}

	var stdRate math.Speed
	if targetAltitude > currentAltitude {
		stdRate = obj.NavLimits.StdClimb.VertRate
	} else {
		stdRate = obj.NavLimits.StdDescent.VertRate
	}
	if stdRate == 0 {
		return planImmediate, targetAltitude, false, 0
	}

	// Walk the segments backwards from the target: for each one, the
	// altitude the object must hold at the segment start to reach the
	// end at the previous iteration's altitude at standard rate.
	segmentAltitude := targetAltitude
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		length := math.Length(math.Distance2f(seg.start, seg.end))
		duration, ok := length.DivSpeed(seg.airspeed)
		if !ok {
			continue
		}
		newAltitude := segmentAltitude - stdRate.DistanceIn(duration)

		// Assume a more or less constant vertical:horizontal ratio.
		denom := float32(segmentAltitude - newAltitude)
		if denom == 0 {
			continue
		}
		ratio := float32(currentAltitude-newAltitude) / denom
		if ratio >= 0 {
			// This is the segment where the altitude change begins.
			if i != 0 {
				// Not yet at the trigger segment; wait for a replan
				// after the route shifts.
				return planNone, 0, false, 0
			}
			distance := math.Length(float32(length) * ratio)
			if distance < altitudeChangeTriggerWindow {
				return planImmediate, targetAltitude, false, 0
			}
			return planDelayed, targetAltitude, false, distance - altitudeChangeTriggerWindow
		}

		// The trigger point is before this segment.
		segmentAltitude = newAltitude
	}

	// Already past the expected trigger point: expedite.
	return planImmediate, targetAltitude, true, 0
}

///////////////////////////////////////////////////////////////////////////
// triggers (Action set)

type flyOverTrigger struct {
	waypoint aviation.WaypointID
	distance math.Length
}

type flyByCompletionKind int8

const (
	flyByHeading flyByCompletionKind = iota
	flyByDistance
)

type headingConfigKind int8

const (
	headingToWaypoint headingConfigKind = iota
	headingToPosition
	headingFixed
)

type headingConfig struct {
	kind     headingConfigKind
	waypoint aviation.WaypointID
	position math.Vec2
	heading  math.Heading
}

type flyByCompletion struct {
	kind     flyByCompletionKind
	heading  headingConfig
	distance math.Length
}

type flyByTrigger struct {
	waypoint   aviation.WaypointID
	completion flyByCompletion
}

type timeTrigger struct {
	at time.Duration
}

type distanceTrigger struct {
	remaining math.Length
	lastPos   math.Vec2
}

// action fires route triggers after physics has integrated, so a
// waypoint reached during the tick produces NextNode by end-of-tick.
// The takeoff rotation check also lives here: it observes the speed the
// roll reached this tick.
func (w *World) action(dt time.Duration) {
	for _, id := range w.objectOrder {
		obj := w.objects[id]
		if obj == nil {
			continue
		}

		if obj.OnGround != nil && obj.OnGround.TargetSpeed.Kind == taxi.SpeedTakeoffRoll &&
			obj.NavLimits != nil {
			gs := math.Speed(math.Length2f(math.Horizontal2f(obj.GroundSpeed)))
			if gs >= obj.NavLimits.TakeoffSpeed {
				w.SetAirborne(obj, obj.GroundSpeed)
				obj.VelocityTarget.VertRate = obj.NavLimits.StdClimb.VertRate
			}
		}

		if trigger := obj.flyOverTrigger; trigger != nil {
			if wp := w.waypoints[trigger.waypoint]; wp == nil {
				obj.logOnce(w.lg, "trigger-waypoint", "%s: trigger references unknown waypoint",
					obj.Callsign)
			} else if math.Distance2f(math.Horizontal2f(obj.Position), math.Horizontal2f(wp.Position)) <=
				float32(trigger.distance) {
				obj.flyOverTrigger = nil
				w.NextNode(obj)
			}
		}

		if trigger := obj.flyByTrigger; trigger != nil {
			if w.flyByTriggerFires(obj, trigger) {
				obj.flyByTrigger = nil
				w.NextNode(obj)
			}
		}

		if trigger := obj.timeTrigger; trigger != nil && w.clock.Now() >= trigger.at {
			w.runCurrentNode(obj)
		}

		if trigger := obj.distanceTrigger; trigger != nil {
			pos := math.Horizontal2f(obj.Position)
			trigger.remaining -= math.Length(math.Distance2f(trigger.lastPos, pos))
			trigger.lastPos = pos
			if trigger.remaining <= 0 {
				obj.distanceTrigger = nil
				w.runCurrentNode(obj)
			}
		}
	}
}

func (w *World) flyByTriggerFires(obj *Object, trigger *flyByTrigger) bool {
	wp := w.waypoints[trigger.waypoint]
	if wp == nil {
		obj.logOnce(w.lg, "trigger-waypoint", "%s: trigger references unknown waypoint", obj.Callsign)
		return false
	}
	target := math.Horizontal2f(wp.Position)
	pos := math.Horizontal2f(obj.Position)

	switch trigger.completion.kind {
	case flyByDistance:
		return math.Distance2f(pos, target) <= float32(trigger.completion.distance)

	case flyByHeading:
		var nextHeading math.Heading
		switch cfg := trigger.completion.heading; cfg.kind {
		case headingToPosition:
			nextHeading = math.HeadingFromVec2(math.Sub2f(cfg.position, target))
		case headingToWaypoint:
			next := w.waypoints[cfg.waypoint]
			if next == nil {
				obj.logOnce(w.lg, "trigger-next-waypoint",
					"%s: trigger references unknown next waypoint", obj.Callsign)
				return false
			}
			nextHeading = math.HeadingFromVec2(math.Sub2f(math.Horizontal2f(next.Position), target))
		case headingFixed:
			nextHeading = cfg.heading
		}

		if obj.NavLimits == nil || obj.NavLimits.MaxYawSpeed == 0 {
			return false
		}
		currentHeading := math.HeadingFromVec2(math.Sub2f(target, pos))
		gs := math.Speed(math.Length2f(math.Horizontal2f(obj.GroundSpeed)))
		turnRadius := gs.DivAngularSpeed(obj.NavLimits.MaxYawSpeed)
		halfTurn := currentHeading.ClosestDelta(nextHeading).Abs() / 2
		turnDistance := math.Length(float32(turnRadius) * halfTurn.Tan())

		return math.Distance2f(pos, target) <= float32(turnDistance)
	}
	return false
}
