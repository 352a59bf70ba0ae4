// sim/instr.go

package sim

import (
	"fmt"
	"time"

	"github.com/tracon-sim/tracon/aviation"
	"github.com/tracon-sim/tracon/math"
	"github.com/tracon-sim/tracon/nav"
	"github.com/tracon-sim/tracon/util"
)

type InstructionID int32

// InstructionBody mutates the recipient when the instruction is
// dispatched, and renders the outgoing transmission text.
type InstructionBody interface {
	Apply(w *World, obj *Object)
	Message(w *World, obj *Object) string
}

// Instruction is a pending controller instruction. It dispatches once
// the virtual clock passes Delay and no dependency is still pending;
// dependency order guarantees that if A and B target the same object and
// B depends on A, B never applies before A.
type Instruction struct {
	ID        InstructionID
	Recipient ObjectID
	Body      InstructionBody
	// Delay is the earliest virtual time the instruction may apply.
	Delay      time.Duration
	DependsOn  []InstructionID
	dispatched bool
}

// Message is the expiring display record left behind by a dispatched
// instruction.
type Message struct {
	Source  string
	Content string
	Created time.Duration
	Expiry  time.Duration
}

// SendInstruction enqueues an instruction for the given object with the
// configured default transmission delay.
func (w *World) SendInstruction(recipient ObjectID, body InstructionBody) InstructionID {
	return w.SendInstructionAfter(recipient, body, w.Config.InstructionDelay, nil)
}

// SendInstructionAfter enqueues an instruction with an explicit delay
// and dependency list.
func (w *World) SendInstructionAfter(recipient ObjectID, body InstructionBody,
	delay time.Duration, deps []InstructionID) InstructionID {
	w.nextInstructionID++
	instr := &Instruction{
		ID:        w.nextInstructionID,
		Recipient: recipient,
		Body:      body,
		Delay:     w.clock.Now() + delay,
		DependsOn: deps,
	}
	w.instructions = append(w.instructions, instr)
	return instr.ID
}

// communicate dispatches due instructions. It iterates to a fixed point
// so that a dependency chain that becomes eligible in the same tick
// applies in dependency order within that tick.
func (w *World) communicate() {
	pendingByID := make(map[InstructionID]*Instruction, len(w.instructions))
	for _, instr := range w.instructions {
		pendingByID[instr.ID] = instr
	}

	for {
		progress := false
		for _, instr := range w.instructions {
			if instr.dispatched || w.clock.Now() < instr.Delay {
				continue
			}

			blocked := false
			for _, dep := range instr.DependsOn {
				if d, ok := pendingByID[dep]; ok && !d.dispatched {
					blocked = true
					break
				}
			}
			if blocked {
				continue
			}

			instr.dispatched = true
			progress = true
			obj := w.objects[instr.Recipient]
			if obj == nil {
				w.lg.Warnf("instruction %d: recipient %d no longer exists", instr.ID, instr.Recipient)
				continue
			}
			instr.Body.Apply(w, obj)
			w.Stats.InstructionsDispatched++
			w.messages = append(w.messages, Message{
				Source:  "ATC",
				Content: instr.Body.Message(w, obj),
				Created: w.clock.Now(),
				Expiry:  w.clock.Now() + w.Config.MessageDuration,
			})
			w.Events.Post(Event{Type: InstructionDispatchedEvent, Object: obj.ID, Instruction: instr.ID})
		}
		if !progress {
			break
		}
	}

	w.instructions = util.FilterSliceInPlace(w.instructions,
		func(i *Instruction) bool { return !i.dispatched })
	w.messages = util.FilterSliceInPlace(w.messages,
		func(m Message) bool { return m.Expiry > w.clock.Now() })
}

// Messages returns the live outgoing transmissions.
func (w *World) Messages() []Message { return w.messages }

///////////////////////////////////////////////////////////////////////////
// instruction bodies

// SetHeading assigns a yaw target, canceling route following and any
// pursuit-style targets.
type SetHeading struct {
	Target nav.YawTarget
}

func (s SetHeading) Apply(w *World, obj *Object) {
	if obj.Route != nil {
		w.setRouteStandby(obj)
	}
	obj.TargetWaypoint = nil
	obj.TargetGroundDirection = nil
	obj.TargetAlignment = nil
	obj.TargetGlide = nil
	obj.TargetGlideStatus = nil

	if obj.VelocityTarget == nil {
		obj.logOnce(w.lg, "instr-velocity-target", "%s: heading instruction without velocity target",
			obj.Callsign)
		return
	}
	obj.VelocityTarget.Yaw = s.Target
}

func (s SetHeading) Message(w *World, obj *Object) string {
	switch s.Target.Kind {
	case nav.YawHeading:
		return fmt.Sprintf("Fly heading %03.0f degrees", s.Target.Heading.CompassDegrees())
	case nav.YawTurnHeading:
		if s.Target.RemainingCrosses == 0 {
			return fmt.Sprintf("Turn %s to heading %03.0f degrees",
				s.Target.Direction, s.Target.Heading.CompassDegrees())
		}
		return fmt.Sprintf("Turn %s through %d full circles, then stop at heading %03.0f degrees",
			s.Target.Direction, s.Target.RemainingCrosses, s.Target.Heading.CompassDegrees())
	default:
		return fmt.Sprintf("Turn at %.1f degrees per second", s.Target.Rate.DegsPerSec())
	}
}

// SetWaypoint directs the object to a waypoint.
type SetWaypoint struct {
	Waypoint aviation.WaypointID
}

func (s SetWaypoint) Apply(w *World, obj *Object) {
	if obj.Route != nil {
		w.setRouteStandby(obj)
	}
	obj.TargetAlignment = nil
	obj.TargetGlide = nil
	obj.TargetGlideStatus = nil
	obj.TargetWaypoint = &nav.TargetWaypoint{Waypoint: s.Waypoint}
	if obj.TargetGroundDirection == nil {
		obj.TargetGroundDirection = nav.NewTargetGroundDirection()
	}
}

func (s SetWaypoint) Message(w *World, obj *Object) string {
	name := "unknown"
	if wp := w.waypoints[s.Waypoint]; wp != nil {
		name = wp.Name
	}
	return "Proceed direct to " + name
}

// SetSpeed assigns a target indicated airspeed.
type SetSpeed struct {
	Target math.Speed
}

func (s SetSpeed) Apply(w *World, obj *Object) {
	if obj.VelocityTarget == nil {
		obj.logOnce(w.lg, "instr-velocity-target", "%s: speed instruction without velocity target",
			obj.Callsign)
		return
	}
	obj.VelocityTarget.HorizSpeed = s.Target
}

func (s SetSpeed) Message(w *World, obj *Object) string {
	if obj.Airborne != nil {
		current := math.Speed(math.Length2f(math.Horizontal2f(obj.Airborne.Airspeed)))
		switch {
		case current > s.Target:
			return fmt.Sprintf("Reduce speed to %.0f knots", s.Target.Knots())
		case current < s.Target:
			return fmt.Sprintf("Increase speed to %.0f knots", s.Target.Knots())
		default:
			return fmt.Sprintf("Maintain speed %.0f knots", s.Target.Knots())
		}
	}
	return fmt.Sprintf("Change speed to %.0f knots", s.Target.Knots())
}

// SetAltitude assigns a target altitude.
type SetAltitude struct {
	Target nav.TargetAltitude
}

func (s SetAltitude) Apply(w *World, obj *Object) {
	target := s.Target
	obj.TargetAltitude = &target
}

func (s SetAltitude) Message(w *World, obj *Object) string {
	current := math.Length(obj.Position[2])
	switch {
	case current > s.Target.Altitude:
		return fmt.Sprintf("Descend to %.0f feet", s.Target.Altitude.Feet())
	case current < s.Target.Altitude:
		return fmt.Sprintf("Climb to %.0f feet", s.Target.Altitude.Feet())
	default:
		return fmt.Sprintf("Maintain %.0f feet", s.Target.Altitude.Feet())
	}
}

// ClearRoute cancels the current route clearance.
type ClearRoute struct{}

func (ClearRoute) Apply(w *World, obj *Object) {
	w.clearAllNodes(obj)
	if obj.Route != nil {
		obj.Route.PresetID = ""
	}
}

func (ClearRoute) Message(w *World, obj *Object) string {
	return "Cancel clearance for current route"
}

// SelectRoute replaces the route with a preset.
type SelectRoute struct {
	Preset string
}

func (s SelectRoute) Apply(w *World, obj *Object) {
	preset := w.routePresets[s.Preset]
	if preset == nil {
		obj.logOnce(w.lg, "instr-preset-"+s.Preset, "%s: unknown route preset %q", obj.Callsign, s.Preset)
		return
	}
	w.replaceNodes(obj, preset)
}

func (s SelectRoute) Message(w *World, obj *Object) string {
	if preset := w.routePresets[s.Preset]; preset != nil {
		return "Follow " + preset.Title
	}
	return "Follow " + s.Preset
}

// AppendSegment extends the taxi path with a labeled ground segment.
type AppendSegment struct {
	ClearExisting bool
	Label         aviation.SegmentLabel
	Stop          TaxiStopMode
}

func (s AppendSegment) Apply(w *World, obj *Object) {
	if s.ClearExisting {
		w.clearAllNodes(obj)
	}
	if obj.Route == nil {
		obj.Route = &Route{}
	}
	// The previously-final taxi node no longer stops at its end.
	if last := obj.Route.last(); last != nil && last.Kind == NodeTaxi {
		last.Stop = TaxiStopExhaust
	}
	obj.Route.Push(Node{Kind: NodeTaxi, Label: s.Label, Stop: s.Stop})
	w.runCurrentNode(obj)
}

func (s AppendSegment) Message(w *World, obj *Object) string {
	msg := fmt.Sprintf("Taxi via %s", s.Label)
	if s.ClearExisting {
		return "Cancel current path, " + msg
	}
	return msg
}
