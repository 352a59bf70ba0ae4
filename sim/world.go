// sim/world.go

// Package sim owns the entity substrate, the virtual clock, and the
// staged tick pipeline that advances the simulation:
//
//	Communicate -> Navigate -> Aviate -> Action -> ReconcileForRead ->
//	Spawn -> observers
//
// Physics-advancing stages early-exit while the clock is paused;
// ReconcileForRead still runs so that display-facing derived state stays
// consistent.
package sim

import (
	"log/slog"
	"time"

	"github.com/tracon-sim/tracon/aviation"
	"github.com/tracon-sim/tracon/log"
	"github.com/tracon-sim/tracon/math"
	"github.com/tracon-sim/tracon/nav"
	"github.com/tracon-sim/tracon/rand"
	"github.com/tracon-sim/tracon/taxi"
	"github.com/tracon-sim/tracon/util"
	"github.com/tracon-sim/tracon/wx"
)

type ObjectID int32

// Airborne holds flight state present iff the object is in flight;
// mutually exclusive with OnGround.
type Airborne struct {
	// Airspeed is the 3-D airspeed vector, nm/s.
	Airspeed math.Vec3
	// PressureAltitude as sensed, OAT in Celsius, LocalPressure in hPa.
	PressureAltitude math.Length
	OAT              float32
	LocalPressure    float32
}

// Rotation is derived display state reconciled at the end of each tick.
type Rotation struct {
	Pitch   math.Angle
	Heading math.Heading
}

// Object is a simulated subject. Behavior is composed by attaching and
// removing the optional component pointers; queries test for their
// presence. Cross-entity references are ids, resolved defensively with a
// logged miss.
type Object struct {
	ID       ObjectID
	Callsign string

	Position    math.Vec3 // nm, nm, nm elevation
	GroundSpeed math.Vec3 // nm/s

	NavLimits  *aviation.NavLimits
	TaxiLimits *aviation.TaxiLimits

	Airborne   *Airborne
	OnGround   *taxi.OnGround
	TaxiStatus *taxi.Status

	Control        *nav.Control
	VelocityTarget *nav.VelocityTarget

	TargetAltitude        *nav.TargetAltitude
	TargetGlide           *nav.TargetGlide
	TargetGlideStatus     *nav.TargetGlideStatus
	TargetGroundDirection *nav.TargetGroundDirection
	TargetWaypoint        *nav.TargetWaypoint
	TargetAlignment       *nav.TargetAlignment

	TaxiTarget *taxi.Target

	Route *Route

	flyOverTrigger  *flyOverTrigger
	flyByTrigger    *flyByTrigger
	timeTrigger     *timeTrigger
	distanceTrigger *distanceTrigger

	Rotation Rotation

	// One-shot log guards so dangling references and missing limits are
	// reported once per offending entity.
	loggedOnce map[string]bool
}

func (o *Object) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("id", int(o.ID)),
		slog.String("callsign", o.Callsign),
		slog.Any("position", o.Position))
}

// logOnce logs msg at error level the first time key is seen on this
// object.
func (o *Object) logOnce(lg *log.Logger, key, msg string, args ...any) {
	if o.loggedOnce == nil {
		o.loggedOnce = make(map[string]bool)
	}
	if !o.loggedOnce[key] {
		o.loggedOnce[key] = true
		lg.Errorf(msg, args...)
	}
}

// Config carries the tunables the core exposes.
type Config struct {
	PIDGains nav.PIDGains
	// InstructionDelay is the default transmission delay applied to
	// instructions that do not specify one.
	InstructionDelay time.Duration
	// MessageDuration keeps dispatched instructions visible as messages.
	MessageDuration time.Duration
	// Separation minima for the conflict scan.
	LateralSeparation  math.Length
	VerticalSeparation math.Length
}

func DefaultConfig() Config {
	return Config{
		PIDGains:           nav.DefaultPIDGains(),
		InstructionDelay:   0,
		MessageDuration:    5 * time.Second,
		LateralSeparation:  math.LengthFromNm(3),
		VerticalSeparation: math.LengthFromFeet(1000),
	}
}

// Stats is the process-wide score/stats record; only the tick loop
// mutates it.
type Stats struct {
	Spawned                int
	Conflicts              int
	RoutesCompleted        int
	InstructionsDispatched int
	Landings               int
	GoArounds              int
}

// World owns all simulation state. The zero value is not usable; create
// with NewWorld.
type World struct {
	Config Config

	lg     *log.Logger
	Events *EventStream
	Rand   *rand.Rand
	WX     *wx.Model
	Stats  Stats

	clock Clock

	objects      map[ObjectID]*Object
	objectOrder  []ObjectID
	nextObjectID ObjectID

	waypoints      map[aviation.WaypointID]*aviation.Waypoint
	nextWaypointID aviation.WaypointID

	segments       map[aviation.SegmentID]*aviation.Segment
	nextSegmentID  aviation.SegmentID
	endpoints      map[aviation.EndpointID]*aviation.Endpoint
	nextEndpointID aviation.EndpointID

	aerodromes      map[aviation.AerodromeID]*aviation.Aerodrome
	nextAerodromeID aviation.AerodromeID

	routePresets map[string]*RoutePreset

	instructions      []*Instruction
	nextInstructionID InstructionID
	messages          []Message

	spawner *Spawner

	// Terrain elevation query; objects never go below it. Defaults to
	// sea level everywhere.
	Terrain func(math.Vec2) math.Length

	conflictPairs map[[2]ObjectID]bool
}

func NewWorld(seed uint64, lg *log.Logger) *World {
	w := &World{
		Config:        DefaultConfig(),
		lg:            lg,
		Rand:          rand.Make(seed),
		WX:            wx.MakeModel(nil),
		objects:       make(map[ObjectID]*Object),
		waypoints:     make(map[aviation.WaypointID]*aviation.Waypoint),
		segments:      make(map[aviation.SegmentID]*aviation.Segment),
		endpoints:     make(map[aviation.EndpointID]*aviation.Endpoint),
		aerodromes:    make(map[aviation.AerodromeID]*aviation.Aerodrome),
		routePresets:  make(map[string]*RoutePreset),
		Terrain:       func(math.Vec2) math.Length { return 0 },
		conflictPairs: make(map[[2]ObjectID]bool),
	}
	w.Events = NewEventStream(lg)
	return w
}

func (w *World) Clock() *Clock { return &w.clock }

///////////////////////////////////////////////////////////////////////////
// entity creation and lookup

func (w *World) CreateWaypoint(wp aviation.Waypoint) aviation.WaypointID {
	w.nextWaypointID++
	id := w.nextWaypointID
	stored := wp
	w.waypoints[id] = &stored
	return id
}

func (w *World) Waypoint(id aviation.WaypointID) *aviation.Waypoint { return w.waypoints[id] }

func (w *World) CreateEndpoint(aerodrome aviation.AerodromeID, position math.Vec2) aviation.EndpointID {
	w.nextEndpointID++
	id := w.nextEndpointID
	w.endpoints[id] = &aviation.Endpoint{
		ID:       aviation.AerodromeOwned[aviation.EndpointID]{ID: id, Aerodrome: aerodrome},
		Position: position,
	}
	if a := w.aerodromes[aerodrome]; a != nil {
		a.Endpoints = append(a.Endpoints, id)
	}
	w.Events.Post(Event{Type: EndpointChangedEvent, Endpoint: id})
	return id
}

func (w *World) Endpoint(id aviation.EndpointID) *aviation.Endpoint { return w.endpoints[id] }

// CreateSegment registers a segment and back-references it from both of
// its endpoints' adjacency lists.
func (w *World) CreateSegment(seg aviation.Segment) aviation.SegmentID {
	w.nextSegmentID++
	id := w.nextSegmentID
	seg.ID.ID = id
	stored := seg
	w.segments[id] = &stored

	for _, ep := range []aviation.EndpointID{seg.Alpha, seg.Beta} {
		if endpoint := w.endpoints[ep]; endpoint != nil {
			endpoint.Adjacency = append(endpoint.Adjacency, id)
		} else {
			w.lg.Errorf("segment %d references unknown endpoint %d", id, ep)
		}
	}
	if a := w.aerodromes[seg.ID.Aerodrome]; a != nil {
		a.Segments = append(a.Segments, id)
	}
	w.Events.Post(Event{Type: SegmentChangedEvent, Segment: id})
	return id
}

func (w *World) Segment(id aviation.SegmentID) *aviation.Segment { return w.segments[id] }

func (w *World) CreateAerodrome(code, name string, elevation math.Length) aviation.AerodromeID {
	w.nextAerodromeID++
	id := w.nextAerodromeID
	w.aerodromes[id] = &aviation.Aerodrome{ID: id, Code: code, Name: name, Elevation: elevation}
	return id
}

func (w *World) Aerodrome(id aviation.AerodromeID) *aviation.Aerodrome { return w.aerodromes[id] }

// SegmentsWithLabel returns the ids of all segments carrying a label
// equal to the given one (runway pairs compare order-insensitively).
func (w *World) SegmentsWithLabel(label aviation.SegmentLabel) []aviation.SegmentID {
	var out []aviation.SegmentID
	for _, id := range util.SortedMapKeys(w.segments) {
		if w.segments[id].Label.Equal(label) {
			out = append(out, id)
		}
	}
	return out
}

// CreateObject spawns a bare object with the minimum required
// components; callers compose the rest.
func (w *World) CreateObject(callsign string, position math.Vec3) *Object {
	w.nextObjectID++
	obj := &Object{
		ID:       w.nextObjectID,
		Callsign: callsign,
		Position: position,
	}
	w.objects[obj.ID] = obj
	w.objectOrder = append(w.objectOrder, obj.ID)
	w.Stats.Spawned++
	w.Events.Post(Event{Type: ObjectSpawnedEvent, Object: obj.ID})
	return obj
}

func (w *World) Object(id ObjectID) *Object { return w.objects[id] }

func (w *World) DestroyObject(id ObjectID) {
	if _, ok := w.objects[id]; !ok {
		return
	}
	delete(w.objects, id)
	w.objectOrder = util.FilterSliceInPlace(w.objectOrder, func(o ObjectID) bool { return o != id })
}

// NumObjects returns the live object count.
func (w *World) NumObjects() int { return len(w.objects) }

// SetAirborne attaches the Airborne component (and the control plumbing
// a piloted plane needs), removing any ground state.
func (w *World) SetAirborne(obj *Object, airspeed math.Vec3) {
	obj.OnGround = nil
	obj.TaxiStatus = nil
	obj.TaxiTarget = nil

	heading := math.HeadingFromVec2(math.Horizontal2f(airspeed))
	obj.Airborne = &Airborne{Airspeed: airspeed}
	if obj.Control == nil {
		control := nav.Stabilized(heading)
		obj.Control = &control
	}
	if obj.VelocityTarget == nil {
		obj.VelocityTarget = &nav.VelocityTarget{
			Yaw:        nav.YawHeadingTarget(heading),
			HorizSpeed: math.Speed(math.Length2f(math.Horizontal2f(airspeed))),
		}
	}
	obj.GroundSpeed = airspeed
}

// SetOnGround attaches the OnGround component and removes Airborne;
// downstream airborne-only targets become inert and are cleared here as
// their owner.
func (w *World) SetOnGround(obj *Object, segment aviation.SegmentID, dir aviation.SegmentDirection,
	targetSpeed taxi.TargetSpeed) {
	obj.Airborne = nil
	obj.Control = nil
	obj.VelocityTarget = nil
	obj.TargetAltitude = nil
	obj.TargetGlide = nil
	obj.TargetGlideStatus = nil
	obj.TargetGroundDirection = nil
	obj.TargetWaypoint = nil
	obj.TargetAlignment = nil

	obj.OnGround = &taxi.OnGround{Segment: segment, Direction: dir, TargetSpeed: targetSpeed}
	if obj.TaxiStatus == nil {
		heading := math.HeadingFromVec2(math.Horizontal2f(obj.GroundSpeed))
		if seg := w.segments[segment]; seg != nil {
			from, to := seg.ByDirection(dir)
			if fp, tp := w.endpoints[from], w.endpoints[to]; fp != nil && tp != nil {
				heading = math.HeadingFromVec2(math.Sub2f(tp.Position, fp.Position))
			}
		}
		obj.TaxiStatus = &taxi.Status{Heading: heading}
	}
	if seg := w.segments[segment]; seg != nil {
		obj.Position[2] = float32(seg.Elevation)
	}
	w.Events.Post(Event{Type: SegmentChangedEvent, Object: obj.ID, Segment: segment})
}

///////////////////////////////////////////////////////////////////////////
// tick pipeline

// Advance runs one simulation tick of the given virtual-time delta.
// When the clock is paused or dt is zero, only representational
// reconciliation runs; physical state is untouched.
func (w *World) Advance(dt time.Duration) {
	active := !w.clock.paused && dt > 0
	if active {
		w.clock.advance(dt)
		w.communicate()
		w.navigate(dt)
		w.aviate(dt)
		w.action(dt)
	}

	w.reconcileForRead()

	if active {
		w.spawn()
		w.observe()
	}
}

// navigate updates nav targets. Within this set the pursuit-style
// controllers that write the ground-direction target run before the
// ground-heading controller that consumes it.
func (w *World) navigate(dt time.Duration) {
	for _, id := range w.objectOrder {
		obj := w.objects[id]
		if obj == nil {
			continue
		}

		if obj.OnGround != nil && obj.TaxiStatus != nil {
			if obj.TaxiLimits == nil {
				obj.logOnce(w.lg, "taxi-limits", "%s: no taxi limits; skipping ground control", obj.Callsign)
				continue
			}
			changed := taxi.UpdateTargetPath(w, math.Horizontal2f(obj.Position), obj.GroundSpeed,
				obj.TaxiLimits, obj.OnGround, obj.TaxiStatus, obj.TaxiTarget, w.lg)
			if changed {
				var res *taxi.Resolution
				if obj.TaxiTarget != nil {
					res = obj.TaxiTarget.Resolution
				}
				w.Events.Post(Event{Type: TargetResolutionEvent, Object: obj.ID, Resolution: res})
			}
			continue
		}

		if obj.Airborne == nil || obj.VelocityTarget == nil {
			continue
		}

		if obj.TargetAltitude != nil {
			nav.UpdateAltitude(obj.TargetAltitude, math.Length(obj.Position[2]), obj.VelocityTarget)
		}
		// Glide overrides altitude by running afterward.
		if obj.TargetGlide != nil {
			if wp := w.waypoints[obj.TargetGlide.Waypoint]; wp != nil {
				if obj.TargetGlideStatus == nil {
					obj.TargetGlideStatus = &nav.TargetGlideStatus{}
				}
				nav.UpdateGlide(obj.TargetGlide, obj.TargetGlideStatus, obj.VelocityTarget,
					obj.Position, wp.Position, obj.GroundSpeed)
			} else {
				obj.logOnce(w.lg, "glide-waypoint", "%s: glide references unknown waypoint %d",
					obj.Callsign, obj.TargetGlide.Waypoint)
			}
		}

		if obj.TargetWaypoint != nil {
			if wp := w.waypoints[obj.TargetWaypoint.Waypoint]; wp != nil {
				if obj.TargetGroundDirection == nil {
					obj.TargetGroundDirection = nav.NewTargetGroundDirection()
				}
				nav.UpdateWaypointPursuit(obj.TargetGroundDirection,
					math.Horizontal2f(obj.Position), math.Horizontal2f(wp.Position))
			} else {
				obj.logOnce(w.lg, "target-waypoint", "%s: target references unknown waypoint %d",
					obj.Callsign, obj.TargetWaypoint.Waypoint)
			}
		}

		if obj.TargetAlignment != nil {
			start := w.waypoints[obj.TargetAlignment.Start]
			end := w.waypoints[obj.TargetAlignment.End]
			if start == nil || end == nil {
				obj.logOnce(w.lg, "alignment-waypoint", "%s: alignment references unknown waypoints",
					obj.Callsign)
			} else {
				if obj.TargetGroundDirection == nil {
					obj.TargetGroundDirection = nav.NewTargetGroundDirection()
				}
				gs := math.Speed(math.Length2f(math.Horizontal2f(obj.GroundSpeed)))
				nav.UpdateAlignment(obj.TargetGroundDirection, obj.TargetAlignment,
					math.Horizontal2f(obj.Position), gs,
					math.Horizontal2f(start.Position), math.Horizontal2f(end.Position))
			}
		}

		if obj.TargetGroundDirection != nil {
			nav.UpdateGroundDirection(dt, obj.TargetGroundDirection, w.Config.PIDGains,
				math.HeadingFromVec2(math.Horizontal2f(obj.GroundSpeed)),
				math.HeadingFromVec2(math.Horizontal2f(obj.Airborne.Airspeed)),
				obj.VelocityTarget)
		}
	}
}

// aviate integrates physics. Objects are independent here, so the set
// fans out across workers; no events are posted from this stage.
func (w *World) aviate(dt time.Duration) {
	util.ParallelFor(len(w.objectOrder), func(i int) {
		obj := w.objects[w.objectOrder[i]]
		if obj == nil {
			return
		}

		switch {
		case obj.Airborne != nil && obj.VelocityTarget != nil && obj.Control != nil:
			if obj.NavLimits == nil {
				obj.logOnce(w.lg, "nav-limits", "%s: no nav limits; skipping physics", obj.Callsign)
				return
			}
			nav.UpdateControl(dt, obj.VelocityTarget, obj.Control, obj.NavLimits, &obj.Airborne.Airspeed)

			sample := w.WX.Lookup(math.Horizontal2f(obj.Position), math.Length(obj.Position[2]))
			wind := math.WithVertical3f(sample.Wind, 0)
			obj.GroundSpeed = math.Add3f(obj.Airborne.Airspeed, wind)
			w.integrate(obj, dt)

		case obj.OnGround != nil && obj.TaxiStatus != nil && obj.TaxiLimits != nil:
			seg := w.segments[obj.OnGround.Segment]
			if seg == nil {
				obj.logOnce(w.lg, "ground-segment", "%s: on dangling segment %d",
					obj.Callsign, obj.OnGround.Segment)
				return
			}
			fromID, toID := seg.ByDirection(obj.OnGround.Direction)
			from, to := w.endpoints[fromID], w.endpoints[toID]
			if from == nil || to == nil {
				obj.logOnce(w.lg, "ground-endpoints", "%s: segment %d has dangling endpoints",
					obj.Callsign, obj.OnGround.Segment)
				return
			}
			taxi.MaintainDir(dt, math.Horizontal2f(obj.Position), &obj.GroundSpeed,
				obj.OnGround, obj.TaxiStatus, obj.TaxiLimits, from.Position, to.Position, w.lg)
			w.integrate(obj, dt)
			obj.Position[2] = float32(seg.Elevation)
		}
	})
}

// integrate advances the position by the ground velocity, clamped to
// terrain.
func (w *World) integrate(obj *Object, dt time.Duration) {
	step := math.Scale3f(obj.GroundSpeed, float32(dt.Seconds()))
	obj.Position = math.Add3f(obj.Position, step)

	if floor := w.Terrain(math.Horizontal2f(obj.Position)); math.Length(obj.Position[2]) < floor {
		obj.Position[2] = float32(floor)
		if obj.GroundSpeed[2] < 0 {
			obj.GroundSpeed[2] = 0
		}
	}
}

// reconcileForRead derives rotation and display-only fields; it runs
// even while paused.
func (w *World) reconcileForRead() {
	for _, id := range w.objectOrder {
		obj := w.objects[id]
		if obj == nil {
			continue
		}
		switch {
		case obj.Airborne != nil && obj.Control != nil:
			horiz := math.Length2f(math.Horizontal2f(obj.GroundSpeed))
			obj.Rotation = Rotation{
				Pitch:   math.Angle(math.Atan2(obj.GroundSpeed[2], horiz)),
				Heading: obj.Control.Heading,
			}
		case obj.TaxiStatus != nil:
			obj.Rotation = Rotation{Heading: obj.TaxiStatus.Heading}
		}
	}
}

// observe runs end-of-tick readers: the pairwise conflict scan feeding
// events and stats.
func (w *World) observe() {
	lateralSq := w.Config.LateralSeparation.Squared()
	for i := 0; i < len(w.objectOrder); i++ {
		a := w.objects[w.objectOrder[i]]
		if a == nil || a.Airborne == nil {
			continue
		}
		for j := i + 1; j < len(w.objectOrder); j++ {
			b := w.objects[w.objectOrder[j]]
			if b == nil || b.Airborne == nil {
				continue
			}

			vert := math.Abs(a.Position[2] - b.Position[2])
			horizSq := math.DistanceSquared2f(math.Horizontal2f(a.Position), math.Horizontal2f(b.Position))
			inConflict := math.LengthSquared(horizSq) < lateralSq &&
				math.Length(vert) < w.Config.VerticalSeparation

			pair := [2]ObjectID{a.ID, b.ID}
			if inConflict && !w.conflictPairs[pair] {
				w.conflictPairs[pair] = true
				w.Stats.Conflicts++
				w.Events.Post(Event{Type: ConflictDetectedEvent, Object: a.ID, OtherObject: b.ID})
			} else if !inConflict {
				delete(w.conflictPairs, pair)
			}
		}
	}
}
