// sim/spawn.go

package sim

import (
	"fmt"
	"time"

	"github.com/tracon-sim/tracon/aviation"
	"github.com/tracon-sim/tracon/math"
	"github.com/tracon-sim/tracon/rand"
	"github.com/tracon-sim/tracon/taxi"
)

// SpawnTriggerKind selects when the spawner runs.
type SpawnTriggerKind int8

const (
	SpawnDisabled SpawnTriggerKind = iota
	// SpawnPeriodic spawns every Interval of virtual time.
	SpawnPeriodic
	// SpawnObjectCount keeps the live object population at Threshold.
	SpawnObjectCount
)

type SpawnTrigger struct {
	Kind      SpawnTriggerKind
	Interval  time.Duration
	Threshold int
}

// SpawnLocationKind selects where a spawned object starts.
type SpawnLocationKind int8

const (
	// SpawnAirborne places the object in flight.
	SpawnAirborne SpawnLocationKind = iota
	// SpawnOnSegment places the object at rest on a ground segment.
	SpawnOnSegment
)

type SpawnLocation struct {
	Kind SpawnLocationKind

	// SpawnAirborne
	Position math.Vec3
	Heading  math.Heading
	IAS      math.Speed

	// SpawnOnSegment
	Segment   aviation.SegmentID
	Direction aviation.SegmentDirection
}

// SpawnSet is one weighted option of the spawner: a callsign prefix, an
// object type (its limits), a start location, and a route preset.
type SpawnSet struct {
	Weight         int
	CallsignPrefix string
	NavLimits      aviation.NavLimits
	TaxiLimits     aviation.TaxiLimits
	Location       SpawnLocation
	RoutePreset    string
}

// Spawner owns the spawn sets, the trigger, and its private random
// stream; it is the only writer of spawn state.
type Spawner struct {
	Trigger SpawnTrigger
	Sets    []SpawnSet

	rand      *rand.Rand
	lastSpawn time.Duration
	serial    int
}

// ConfigureSpawner installs the spawner; a trigger of kind SpawnDisabled
// never spawns.
func (w *World) ConfigureSpawner(trigger SpawnTrigger, sets []SpawnSet) {
	w.spawner = &Spawner{
		Trigger: trigger,
		Sets:    sets,
		rand:    w.Rand.Split(),
	}
}

// spawn runs in its own late system set so that newly created objects
// first act on the following tick.
func (w *World) spawn() {
	s := w.spawner
	if s == nil {
		return
	}

	need := false
	switch s.Trigger.Kind {
	case SpawnPeriodic:
		need = s.Trigger.Interval > 0 && w.clock.Now()-s.lastSpawn >= s.Trigger.Interval
	case SpawnObjectCount:
		need = len(w.objects) < s.Trigger.Threshold
	}
	if !need {
		return
	}

	set, ok := rand.SampleWeighted(s.rand, s.Sets, func(set SpawnSet) int { return set.Weight })
	if !ok {
		return
	}
	if w.spawnFromSet(set) {
		s.lastSpawn = w.clock.Now()
	}
}

func (w *World) spawnFromSet(set SpawnSet) bool {
	w.spawner.serial++
	callsign := fmt.Sprintf("%s%d", set.CallsignPrefix, 100+w.spawner.serial)

	var obj *Object
	switch set.Location.Kind {
	case SpawnAirborne:
		obj = w.CreateObject(callsign, set.Location.Position)
		limits := set.NavLimits
		obj.NavLimits = &limits
		taxiLimits := set.TaxiLimits
		obj.TaxiLimits = &taxiLimits
		airspeed := math.WithVertical3f(
			math.Scale2f(set.Location.Heading.Vec2(), float32(set.Location.IAS)), 0)
		w.SetAirborne(obj, airspeed)

	case SpawnOnSegment:
		seg := w.segments[set.Location.Segment]
		if seg == nil {
			w.lg.Errorf("spawn set references unknown segment %d", set.Location.Segment)
			return false
		}
		fromID, _ := seg.ByDirection(set.Location.Direction)
		from := w.endpoints[fromID]
		if from == nil {
			w.lg.Errorf("spawn segment %d has a dangling endpoint", set.Location.Segment)
			return false
		}
		obj = w.CreateObject(callsign,
			math.WithVertical3f(from.Position, float32(seg.Elevation)))
		limits := set.NavLimits
		obj.NavLimits = &limits
		taxiLimits := set.TaxiLimits
		obj.TaxiLimits = &taxiLimits
		w.SetOnGround(obj, set.Location.Segment, set.Location.Direction, taxi.ExactSpeed(0))
	}

	if set.RoutePreset != "" {
		if preset := w.routePresets[set.RoutePreset]; preset != nil {
			w.replaceNodes(obj, preset)
		} else {
			w.lg.Errorf("spawn set references unknown route preset %q", set.RoutePreset)
		}
	}
	return true
}
