// sim/sim_test.go

package sim

import (
	"testing"
	"time"

	"github.com/tracon-sim/tracon/aviation"
	"github.com/tracon-sim/tracon/log"
	"github.com/tracon-sim/tracon/math"
	"github.com/tracon-sim/tracon/nav"
	"github.com/tracon-sim/tracon/taxi"
	"github.com/tracon-sim/tracon/wx"
)

func wxWithFog() *wx.Model {
	return wx.MakeModel([]wx.Region{{
		Min:           math.Vec2{-5, -5},
		Max:           math.Vec2{5, 5},
		Visibility:    math.LengthFromNm(0.1),
		HasVisibility: true,
	}})
}

func newTestWorld() *World {
	return NewWorld(1, log.NewDiscard())
}

// addPlane creates an airborne object flying straight and level.
func addPlane(w *World, callsign string, position math.Vec3, headingDeg, iasKts float32) *Object {
	obj := w.CreateObject(callsign, position)
	limits := aviation.SampleNavLimits()
	obj.NavLimits = &limits
	taxiLimits := aviation.SampleTaxiLimits()
	obj.TaxiLimits = &taxiLimits

	heading := math.HeadingFromDegrees(headingDeg)
	ias := math.SpeedFromKnots(iasKts)
	w.SetAirborne(obj, math.WithVertical3f(math.Scale2f(heading.Vec2(), float32(ias)), 0))
	return obj
}

func TestClockPauseIdempotence(t *testing.T) {
	w := newTestWorld()
	obj := addPlane(w, "TST1", math.Vec3{0, 0, float32(math.LengthFromFeet(5000))}, 90, 200)

	for i := 0; i < 10; i++ {
		w.Advance(time.Second)
	}
	before := obj.Position
	beforeSpeed := obj.GroundSpeed

	w.Clock().SetPaused(true)
	for i := 0; i < 25; i++ {
		w.Advance(time.Second)
	}
	w.Clock().SetPaused(false)
	for i := 0; i < 5; i++ {
		w.Advance(0)
	}

	if obj.Position != before {
		t.Errorf("position changed while paused: %v != %v", obj.Position, before)
	}
	if obj.GroundSpeed != beforeSpeed {
		t.Errorf("ground speed changed while paused")
	}
}

func TestReconcileRunsWhilePaused(t *testing.T) {
	w := newTestWorld()
	obj := addPlane(w, "TST1", math.Vec3{0, 0, 1}, 45, 200)
	w.Clock().SetPaused(true)
	w.Advance(time.Second)

	if got := obj.Rotation.Heading.Degrees(); math.Abs(got-45) > 0.5 {
		t.Errorf("rotation not reconciled while paused: heading %f", got)
	}
}

func TestInstructionTransmitDelay(t *testing.T) {
	w := newTestWorld()
	obj := addPlane(w, "TST1", math.Vec3{0, 0, 1}, 90, 200)

	w.SendInstructionAfter(obj.ID, SetHeading{Target: nav.YawHeadingTarget(math.HeadingFromDegrees(270))},
		3*time.Second, nil)

	w.Advance(time.Second) // t=1
	w.Advance(time.Second) // t=2
	if obj.VelocityTarget.Yaw.Heading == math.HeadingFromDegrees(270) {
		t.Fatal("instruction applied before its transmit delay")
	}
	w.Advance(time.Second) // t=3: due
	if got := obj.VelocityTarget.Yaw.Heading.Degrees(); math.Abs(got-(-90)) > 0.01 {
		t.Fatalf("yaw target = %f degrees, expected 270 applied at t=3", got)
	}

	if len(w.Messages()) != 1 {
		t.Errorf("expected one live outgoing message, have %d", len(w.Messages()))
	}
}

// With B depending on A and both eligible in the same tick, the state
// after the tick equals applying A then B.
func TestInstructionDependencyOrder(t *testing.T) {
	w := newTestWorld()
	obj := addPlane(w, "TST1", math.Vec3{0, 0, 1}, 90, 200)

	// A becomes eligible at t=2; B is eligible from t=1 but depends on A.
	a := w.SendInstructionAfter(obj.ID, SetSpeed{Target: math.SpeedFromKnots(220)}, 2*time.Second, nil)
	w.SendInstructionAfter(obj.ID, SetSpeed{Target: math.SpeedFromKnots(250)}, time.Second,
		[]InstructionID{a})

	w.Advance(time.Second) // t=1: B blocked by live A
	if got := obj.VelocityTarget.HorizSpeed.Knots(); math.Abs(got-200) > 1 {
		t.Fatalf("no instruction should have applied yet; speed %f", got)
	}

	w.Advance(time.Second) // t=2: A applies, then B in the same tick
	if got := obj.VelocityTarget.HorizSpeed.Knots(); math.Abs(got-250) > 0.1 {
		t.Fatalf("speed %f kt, expected B's 250 applied after A", got)
	}
	if w.Stats.InstructionsDispatched != 2 {
		t.Errorf("dispatched %d instructions, expected 2", w.Stats.InstructionsDispatched)
	}
}

func TestSetHeadingClearsPursuitTargets(t *testing.T) {
	w := newTestWorld()
	obj := addPlane(w, "TST1", math.Vec3{0, 0, 1}, 90, 200)
	wp := w.CreateWaypoint(aviation.Waypoint{Name: "FIXAA", Position: math.Vec3{10, 10, 0}})

	w.SendInstruction(obj.ID, SetWaypoint{Waypoint: wp})
	w.Advance(time.Second)
	if obj.TargetWaypoint == nil {
		t.Fatal("waypoint target not installed")
	}

	w.SendInstruction(obj.ID, SetHeading{Target: nav.YawHeadingTarget(math.HeadingFromDegrees(0))})
	w.Advance(time.Second)
	if obj.TargetWaypoint != nil || obj.TargetGroundDirection != nil || obj.TargetAlignment != nil ||
		obj.TargetGlide != nil {
		t.Error("heading instruction must clear pursuit-style targets")
	}
}

// S4: fly-by turn anticipation. W1 at the origin, W2 at (10, 10); the
// object approaches W1 from the south. The trigger must fire within
// r*tan(22.5 degrees) of W1, within 5%.
func TestFlyByTriggerDistance(t *testing.T) {
	w := newTestWorld()
	obj := addPlane(w, "TST1", math.Vec3{0, -5, float32(math.LengthFromFeet(8000))}, 0, 250)

	w1 := w.CreateWaypoint(aviation.Waypoint{Name: "WUN", Position: math.Vec3{0, 0, 0}})
	w2 := w.CreateWaypoint(aviation.Waypoint{Name: "TOO", Position: math.Vec3{10, 10, 0}})

	w.PushRouteNode(obj, Node{Kind: NodeDirectWaypoint, Waypoint: w1, Proximity: FlyBy,
		Distance: math.LengthFromNm(0.5)})
	w.PushRouteNode(obj, Node{Kind: NodeDirectWaypoint, Waypoint: w2, Proximity: FlyBy,
		Distance: math.LengthFromNm(0.5)})

	dt := 200 * time.Millisecond
	var fireDistance float32 = -1
	for i := 0; i < 3000; i++ {
		w.Advance(dt)
		if obj.TargetWaypoint != nil && obj.TargetWaypoint.Waypoint == w2 {
			fireDistance = math.Distance2f(math.Horizontal2f(obj.Position), math.Vec2{0, 0})
			break
		}
	}
	if fireDistance < 0 {
		t.Fatal("fly-by trigger never fired")
	}

	gs := math.Speed(math.Length2f(math.Horizontal2f(obj.GroundSpeed)))
	radius := gs.DivAngularSpeed(obj.NavLimits.MaxYawSpeed)
	want := float32(radius) * math.AngleFromDegrees(22.5).Tan()

	if math.Abs(fireDistance-want)/want > 0.05 {
		t.Errorf("fired at %f nm from W1, expected about %f", fireDistance, want)
	}
}

func TestFlyOverTrigger(t *testing.T) {
	w := newTestWorld()
	obj := addPlane(w, "TST1", math.Vec3{0, -3, float32(math.LengthFromFeet(8000))}, 0, 250)
	wp := w.CreateWaypoint(aviation.Waypoint{Name: "WUN", Position: math.Vec3{0, 0, 0}})

	w.PushRouteNode(obj, Node{Kind: NodeDirectWaypoint, Waypoint: wp, Proximity: FlyOver,
		Distance: math.LengthFromNm(0.5)})

	events := w.Events.Subscribe()
	completed := false
	for i := 0; i < 120 && !completed; i++ {
		w.Advance(time.Second)
		for _, ev := range events.Get() {
			if ev.Type == RouteCompletedEvent && ev.Object == obj.ID {
				completed = true
			}
		}
	}
	if !completed {
		t.Fatal("fly-over route never completed")
	}
	d := math.Distance2f(math.Horizontal2f(obj.Position), math.Vec2{0, 0})
	if d > 0.6 {
		t.Errorf("route completed %f nm from the waypoint, expected within about 0.5", d)
	}
}

// S5-style altitude pre-planning: descending 8000 ft to a waypoint 40 nm
// ahead at 240 kt and 1500 fpm requires starting at about 21.3 nm out;
// the planner must schedule a distance trigger rather than descend now,
// and the object must arrive within 500 ft of the target.
func TestRouteAltitudePlanning(t *testing.T) {
	w := newTestWorld()
	start := math.LengthFromFeet(12000)
	obj := addPlane(w, "TST1", math.Vec3{0, 0, float32(start)}, 0, 240)

	target := math.LengthFromFeet(4000)
	wp := w.CreateWaypoint(aviation.Waypoint{Name: "XRAY", Position: math.Vec3{0, 40, 0}})
	w.PushRouteNode(obj, Node{Kind: NodeSetAirspeed, Speed: math.SpeedFromKnots(240)})
	w.PushRouteNode(obj, Node{Kind: NodeDirectWaypoint, Waypoint: wp, Proximity: FlyOver,
		Distance: math.LengthFromNm(0.5), Altitude: &target})

	if obj.TargetAltitude != nil && obj.TargetAltitude.Altitude == target {
		t.Fatal("altitude commanded immediately; expected a delayed trigger")
	}
	if obj.distanceTrigger == nil {
		t.Fatal("no distance trigger scheduled")
	}
	// Descent takes 8000 ft / 1500 fpm = 320 s = 21.3 nm at 240 kt; the
	// trigger sits one window (1 nm) before that point.
	wantRemaining := float32(40 - 21.33 - 1)
	if got := float32(obj.distanceTrigger.remaining); math.Abs(got-wantRemaining) > 0.5 {
		t.Fatalf("distance trigger at %f nm, expected about %f", got, wantRemaining)
	}

	var triggeredAt float32 = -1
	for i := 0; i < 700; i++ {
		w.Advance(time.Second)
		if triggeredAt < 0 && obj.TargetAltitude != nil && obj.TargetAltitude.Altitude == target {
			triggeredAt = math.Distance2f(math.Horizontal2f(obj.Position), math.Vec2{0, 40})
			if obj.TargetAltitude.Expedite {
				t.Error("planned descent should not expedite")
			}
		}
		if math.Distance2f(math.Horizontal2f(obj.Position), math.Vec2{0, 40}) < 0.7 {
			break
		}
	}
	if triggeredAt < 0 {
		t.Fatal("altitude change never commanded")
	}
	if math.Abs(triggeredAt-22.3) > 2 {
		t.Errorf("descent commanded %f nm out, expected about 22.3", triggeredAt)
	}
	if errFt := math.Abs(math.Length(obj.Position[2]).Feet() - 4000); errFt > 500 {
		t.Errorf("altitude at the waypoint off by %f ft, expected within 500", errFt)
	}
}

func TestStartSetAltitudeNode(t *testing.T) {
	w := newTestWorld()
	obj := addPlane(w, "TST1", math.Vec3{0, 0, float32(math.LengthFromFeet(5000))}, 0, 200)

	target := math.LengthFromFeet(7000)
	w.PushRouteNode(obj, Node{Kind: NodeStartSetAltitude, TargetAltitude: &target, Expedite: true})

	if obj.TargetAltitude == nil || obj.TargetAltitude.Altitude != target || !obj.TargetAltitude.Expedite {
		t.Fatalf("altitude target not installed: %+v", obj.TargetAltitude)
	}
	if obj.Route.Current != nil {
		t.Error("node with no error bound must complete immediately")
	}
}

func runwayWorld(t *testing.T) (*World, *Object, aviation.WaypointID) {
	t.Helper()
	w := newTestWorld()

	ad := w.CreateAerodrome("TST", "Test Field", 0)
	e1 := w.CreateEndpoint(ad, math.Vec2{0, 0})
	e2 := w.CreateEndpoint(ad, math.Vec2{0, float32(math.LengthFromMeters(-2500))})

	rwy := w.CreateWaypoint(aviation.Waypoint{Name: "18", Position: math.Vec3{0, 0, 0}})
	loc := w.CreateWaypoint(aviation.Waypoint{Name: "18-LOC", Position: math.Vec3{0, 10, 0}})

	seg := w.CreateSegment(aviation.Segment{
		ID:       aviation.AerodromeOwned[aviation.SegmentID]{Aerodrome: ad},
		Alpha:    e1,
		Beta:     e2,
		Width:    math.LengthFromMeters(45),
		MaxSpeed: math.SpeedFromKnots(30),
		Label:    aviation.RunwayPairLabel(rwy, 0),
	})

	runway := &aviation.Runway{
		LandingLength:     math.Vec2{0, float32(math.LengthFromMeters(-2500))},
		GlideAngle:        math.AngleFromDegrees(3),
		Width:             math.LengthFromMeters(45),
		LocalizerWaypoint: loc,
		MaxVisualDistance: math.LengthFromNm(10),
		GoAroundPreset:    "goaround-18",
		Segment:           seg,
		SegmentDirection:  aviation.AlphaToBeta,
	}
	w.waypoints[rwy].Runway = runway

	w.RegisterRoutePreset(RoutePreset{
		ID:    "goaround-18",
		Title: "Go around runway 18",
		Nodes: []Node{{Kind: NodeStartSetAltitude, TargetAltitude: altPtr(math.LengthFromFeet(3000))}},
	})

	// Short final: 0.9 nm north of the threshold, tracking south.
	obj := addPlane(w, "TST1", math.Vec3{0, 0.9, float32(math.LengthFromFeet(300))}, 180, 140)
	return w, obj, rwy
}

func altPtr(l math.Length) *math.Length { return &l }

func TestAlignRunwayNode(t *testing.T) {
	w, obj, rwy := runwayWorld(t)
	obj.TargetAltitude = &nav.TargetAltitude{Altitude: math.LengthFromFeet(3000)}
	obj.TargetWaypoint = &nav.TargetWaypoint{Waypoint: rwy}

	w.PushRouteNode(obj, Node{Kind: NodeAlignRunway, Runway: rwy})

	if obj.TargetAlignment == nil || obj.TargetGlide == nil {
		t.Fatal("alignment and glide targets not installed")
	}
	if obj.TargetWaypoint != nil || obj.TargetAltitude != nil {
		t.Error("align node must replace waypoint/altitude targets")
	}
	if obj.TargetGlide.GlideAngle >= 0 {
		t.Error("glide angle should be negative for a descent")
	}
	if obj.TargetAlignment.ActivationRange != alignRunwayActivationRange {
		t.Errorf("activation range %f", obj.TargetAlignment.ActivationRange.Nm())
	}
}

func TestVisualLandingLands(t *testing.T) {
	w, obj, rwy := runwayWorld(t)
	events := w.Events.Subscribe()

	w.PushRouteNode(obj, Node{Kind: NodeVisualLanding, Runway: rwy})
	w.Advance(time.Second)

	if obj.Airborne != nil || obj.OnGround == nil {
		t.Fatal("object did not land")
	}
	if obj.OnGround.Segment != w.waypoints[rwy].Runway.Segment {
		t.Errorf("landed on segment %d", obj.OnGround.Segment)
	}
	reached := false
	for _, ev := range events.Get() {
		if ev.Type == DestinationReachedEvent && ev.Object == obj.ID {
			reached = true
		}
	}
	if !reached {
		t.Error("no DestinationReached event")
	}
	if w.Stats.Landings != 1 {
		t.Errorf("landings stat %d", w.Stats.Landings)
	}
}

func TestVisualLandingGoesAround(t *testing.T) {
	w, obj, rwy := runwayWorld(t)
	// Fog bank over the field: visibility below the decision distance.
	w.WX = wxWithFog()

	events := w.Events.Subscribe()
	w.PushRouteNode(obj, Node{Kind: NodeVisualLanding, Runway: rwy})
	w.Advance(time.Second)

	if obj.Airborne == nil {
		t.Fatal("object should not have landed in fog")
	}
	if obj.Route == nil || obj.Route.PresetID != "goaround-18" {
		t.Fatalf("route not replaced with the go-around preset: %+v", obj.Route)
	}
	goAround := false
	for _, ev := range events.Get() {
		if ev.Type == GoAroundEvent && ev.Object == obj.ID {
			goAround = true
		}
	}
	if !goAround {
		t.Error("no GoAround event")
	}
	if obj.TargetAltitude == nil || obj.TargetAltitude.Altitude != math.LengthFromFeet(3000) {
		t.Error("go-around preset altitude not applied")
	}
}

func TestSpawnerPeriodic(t *testing.T) {
	w := newTestWorld()
	w.ConfigureSpawner(SpawnTrigger{Kind: SpawnPeriodic, Interval: 10 * time.Second},
		[]SpawnSet{{
			Weight:         1,
			CallsignPrefix: "TST",
			NavLimits:      aviation.SampleNavLimits(),
			TaxiLimits:     aviation.SampleTaxiLimits(),
			Location: SpawnLocation{
				Kind:     SpawnAirborne,
				Position: math.Vec3{0, 0, float32(math.LengthFromFeet(10000))},
				Heading:  math.HeadingFromDegrees(90),
				IAS:      math.SpeedFromKnots(250),
			},
		}})

	for i := 0; i < 35; i++ {
		w.Advance(time.Second)
	}
	if n := w.NumObjects(); n < 3 {
		t.Errorf("spawned %d objects in 35 s at a 10 s interval, expected at least 3", n)
	}
	if w.Stats.Spawned != w.NumObjects() {
		t.Errorf("stats.Spawned %d != %d live objects", w.Stats.Spawned, w.NumObjects())
	}
}

func TestTakeoffRotation(t *testing.T) {
	w, _, rwy := runwayWorld(t)
	runway := w.waypoints[rwy].Runway

	obj := w.CreateObject("TST2", math.Vec3{0, 0, 0})
	limits := aviation.SampleNavLimits()
	obj.NavLimits = &limits
	taxiLimits := aviation.SampleTaxiLimits()
	obj.TaxiLimits = &taxiLimits
	w.SetOnGround(obj, runway.Segment, runway.SegmentDirection, taxi.ExactSpeed(0))
	obj.TaxiTarget = &taxi.Target{Action: taxi.TargetAction{Kind: taxi.ActionTakeoff, Runway: rwy}}

	rotated := -1
	for i := 0; i < 120; i++ {
		w.Advance(time.Second)
		if obj.Airborne != nil {
			rotated = i
			break
		}
	}
	if rotated < 0 {
		t.Fatal("object never rotated")
	}
	if obj.OnGround != nil {
		t.Error("OnGround must be removed at rotation")
	}
	ias := math.Speed(math.Length2f(math.Horizontal2f(obj.Airborne.Airspeed))).Knots()
	if ias < obj.NavLimits.TakeoffSpeed.Knots()-1 {
		t.Errorf("rotated at %f kt, below takeoff speed", ias)
	}
	if obj.VelocityTarget == nil || obj.VelocityTarget.VertRate <= 0 {
		t.Error("no initial climb commanded")
	}
}

func TestConflictDetection(t *testing.T) {
	w := newTestWorld()
	addPlane(w, "TST1", math.Vec3{0, 0, float32(math.LengthFromFeet(10000))}, 0, 200)
	addPlane(w, "TST2", math.Vec3{1, 0, float32(math.LengthFromFeet(10100))}, 0, 200)

	events := w.Events.Subscribe()
	w.Advance(time.Second)

	found := false
	for _, ev := range events.Get() {
		if ev.Type == ConflictDetectedEvent {
			found = true
		}
	}
	if !found {
		t.Fatal("no conflict detected at 1 nm / 100 ft separation")
	}
	if w.Stats.Conflicts != 1 {
		t.Errorf("conflicts stat %d", w.Stats.Conflicts)
	}

	// The same pair does not re-post while the conflict persists.
	w.Advance(time.Second)
	for _, ev := range events.Get() {
		if ev.Type == ConflictDetectedEvent {
			t.Error("conflict re-posted while persisting")
		}
	}
}
