// aviation/aviation.go

package aviation

import (
	"errors"
	"log/slog"
	"time"

	"github.com/tracon-sim/tracon/math"
)

// Errors surfaced by lookups in this package and by scenario loading.
var (
	ErrUnknownAerodrome   = errors.New("unknown aerodrome")
	ErrUnknownRunway      = errors.New("unknown runway")
	ErrUnknownWaypoint    = errors.New("unknown waypoint")
	ErrUnknownSegment     = errors.New("unknown segment")
	ErrUnknownRoutePreset = errors.New("unknown route preset")
	ErrUnknownObjectType  = errors.New("unknown object type")
	ErrNonFiniteValue     = errors.New("non-finite value")
)

// Entity id spaces. Zero is never a valid id so that the zero value of a
// reference reads as unset.
type (
	WaypointID  int32
	SegmentID   int32
	EndpointID  int32
	AerodromeID int32
)

// Waypoint is a named fix. Runway waypoints additionally carry a Runway.
type Waypoint struct {
	Name     string
	Position math.Vec3 // nm, nm, nm elevation
	// Display hint for the client; the core carries it opaquely.
	DisplayKind string
	Runway      *Runway
}

func (w *Waypoint) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", w.Name),
		slog.Any("position", w.Position))
}

// Runway augments a waypoint placed at the runway threshold.
type Runway struct {
	// LandingLength points from the threshold along the landing
	// direction, with magnitude equal to the usable landing distance.
	LandingLength math.Vec2
	// GlideAngle is the angle of depression of the glidepath, positive.
	GlideAngle math.Angle
	Width      math.Length
	// DisplayStart/DisplayEnd span the paved surface for display.
	DisplayStart math.Vec2
	DisplayEnd   math.Vec2
	// LocalizerWaypoint sits on the approach axis at maximum visual
	// distance from the threshold.
	LocalizerWaypoint WaypointID
	// MaxVisualDistance bounds visual acquisition of the runway.
	MaxVisualDistance math.Length
	// Paired backward runway sharing the strip.
	Backward WaypointID
	// GoAroundPreset names the route preset flown on a missed approach.
	GoAroundPreset string
	// Segment is the ground segment of the runway strip, traversed in
	// SegmentDirection when landing on this runway.
	Segment          SegmentID
	SegmentDirection SegmentDirection
}

// LandingHeading returns the course flown when landing on this runway.
func (r *Runway) LandingHeading() math.Heading {
	return math.HeadingFromVec2(r.LandingLength)
}

// Aerodrome owns a ground network of segments and endpoints.
type Aerodrome struct {
	ID        AerodromeID
	Code      string
	Name      string
	Elevation math.Length
	Segments  []SegmentID
	Endpoints []EndpointID
}

// ClimbProfile gives the achievable vertical rate together with the
// horizontal acceleration envelope available at that rate.
type ClimbProfile struct {
	VertRate math.Speed
	// Accel is the maximum achievable horizontal acceleration (thrust
	// minus losses) at VertRate; Decel is the most negative achievable.
	Accel math.Accel
	Decel math.Accel
}

// NavLimits is the airborne performance envelope of an object type.
type NavLimits struct {
	MinHorizSpeed math.Speed
	MaxYawSpeed   math.AngularSpeed
	MaxYawAccel   math.AngularAccel
	MaxVertAccel  math.Accel

	// Ordered climb profiles; ExpDescent.VertRate <= StdDescent.VertRate
	// <= 0 <= StdClimb.VertRate <= ExpClimb.VertRate.
	ExpDescent ClimbProfile
	StdDescent ClimbProfile
	Level      ClimbProfile
	StdClimb   ClimbProfile
	ExpClimb   ClimbProfile

	// AccelChangeRate limits throttle-driven jerk.
	AccelChangeRate math.AccelRate
	// DragCoef scales v^2 drag deceleration, in 1/nm.
	DragCoef float32

	TakeoffSpeed math.Speed
	// Short final configuration: at ShortFinalDist from the threshold
	// the object slows to ShortFinalSpeed.
	ShortFinalDist  math.Length
	ShortFinalSpeed math.Speed
}

// Accel interpolates the achievable horizontal acceleration at the given
// vertical rate between the bracketing climb profiles.
func (l *NavLimits) Accel(vertRate math.Speed) math.Accel {
	return l.interpProfiles(vertRate, func(p ClimbProfile) math.Accel { return p.Accel })
}

// Decel is the deceleration counterpart of Accel.
func (l *NavLimits) Decel(vertRate math.Speed) math.Accel {
	return l.interpProfiles(vertRate, func(p ClimbProfile) math.Accel { return p.Decel })
}

func (l *NavLimits) interpProfiles(vertRate math.Speed, get func(ClimbProfile) math.Accel) math.Accel {
	profiles := [5]ClimbProfile{l.ExpDescent, l.StdDescent, l.Level, l.StdClimb, l.ExpClimb}
	if vertRate <= profiles[0].VertRate {
		return get(profiles[0])
	}
	for i := 1; i < len(profiles); i++ {
		if vertRate <= profiles[i].VertRate {
			lo, hi := profiles[i-1], profiles[i]
			span := float32(hi.VertRate - lo.VertRate)
			if span == 0 {
				return get(hi)
			}
			t := float32(vertRate-lo.VertRate) / span
			return math.Accel(math.Lerp(t, float32(get(lo)), float32(get(hi))))
		}
	}
	return get(profiles[4])
}

// TaxiLimits is the ground performance envelope of an object type.
type TaxiLimits struct {
	// BaseBraking is the deceleration available from wheel brakes.
	BaseBraking math.Accel
	// Accel is the driving acceleration.
	Accel math.Accel
	// MaxSpeed caps forward taxi speed; MinSpeed is the most negative
	// (pushback) speed.
	MaxSpeed math.Speed
	MinSpeed math.Speed
	// TurnRate caps the body yaw rate.
	TurnRate math.AngularSpeed
	// Width and HalfLength describe the body footprint.
	Width      math.Length
	HalfLength math.Length
}

// SampleNavLimits is a mid-size jet envelope used by tests and as the
// fallback for object types that do not override performance.
func SampleNavLimits() NavLimits {
	return NavLimits{
		MinHorizSpeed: math.SpeedFromKnots(120),
		MaxYawSpeed:   math.AngularSpeedFromDegsPerSec(3),
		MaxYawAccel:   math.AngularAccelFromDegsPerSec2(1),
		MaxVertAccel:  math.SpeedFromFpm(1000).Div(time.Second),
		ExpDescent:    ClimbProfile{VertRate: math.SpeedFromFpm(-3000), Accel: math.SpeedFromKnots(3).Div(time.Second), Decel: math.SpeedFromKnots(-5).Div(time.Second)},
		StdDescent:    ClimbProfile{VertRate: math.SpeedFromFpm(-1500), Accel: math.SpeedFromKnots(4).Div(time.Second), Decel: math.SpeedFromKnots(-4).Div(time.Second)},
		Level:         ClimbProfile{VertRate: 0, Accel: math.SpeedFromKnots(5).Div(time.Second), Decel: math.SpeedFromKnots(-3).Div(time.Second)},
		StdClimb:      ClimbProfile{VertRate: math.SpeedFromFpm(2000), Accel: math.SpeedFromKnots(3).Div(time.Second), Decel: math.SpeedFromKnots(-2).Div(time.Second)},
		ExpClimb:      ClimbProfile{VertRate: math.SpeedFromFpm(3000), Accel: math.SpeedFromKnots(2).Div(time.Second), Decel: math.SpeedFromKnots(-2).Div(time.Second)},

		AccelChangeRate: math.AccelRate(math.SpeedFromKnots(3).Div(time.Second)),
		DragCoef:        0.2,
		TakeoffSpeed:    math.SpeedFromKnots(140),
		ShortFinalDist:  math.LengthFromNm(4),
		ShortFinalSpeed: math.SpeedFromKnots(140),
	}
}

// SampleTaxiLimits matches SampleNavLimits for ground movement.
func SampleTaxiLimits() TaxiLimits {
	return TaxiLimits{
		BaseBraking: math.SpeedFromKnots(10).Div(time.Second),
		Accel:       math.SpeedFromKnots(5).Div(time.Second),
		MaxSpeed:    math.SpeedFromKnots(35),
		MinSpeed:    math.SpeedFromKnots(-5),
		TurnRate:    math.AngularSpeedFromDegsPerSec(8),
		Width:       math.LengthFromMeters(36),
		HalfLength:  math.LengthFromMeters(20),
	}
}
