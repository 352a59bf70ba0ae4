// math/heading.go

package math

import gomath "math"

// Heading is an absolute bearing in radians, measured clockwise from
// north, normalized to (-pi, pi]. An Angle is a relative rotation;
// Heading +/- Angle stays a Heading, Heading - Heading is an Angle.
type Heading float32

const headingTwoPi = 2 * gomath.Pi

// NormalizeHeading maps any radian value into (-pi, pi].
func NormalizeHeading(h float32) Heading {
	// Wrap against pi as float32 holds it, so that a float32 180 degrees
	// stays at +pi.
	pi := float64(float32(gomath.Pi))
	r := gomath.Mod(float64(h), headingTwoPi)
	if r > pi {
		r -= headingTwoPi
	} else if r <= -pi {
		r += headingTwoPi
	}
	out := Heading(r)
	if out <= -gomath.Pi {
		// Rounding to float32 can land on -pi, outside the range.
		out = gomath.Pi
	}
	return out
}

func HeadingFromDegrees(deg float32) Heading { return NormalizeHeading(Radians(deg)) }

func (h Heading) Degrees() float32 { return Degrees(float32(h)) }

// CompassDegrees returns the heading in [0, 360) for display.
func (h Heading) CompassDegrees() float32 {
	d := Degrees(float32(h))
	if d < 0 {
		d += 360
	}
	return d
}

// HeadingFromVec2 returns the bearing of v in the {x east, y north}
// plane. The zero vector maps to north.
func HeadingFromVec2(v Vec2) Heading {
	if v[0] == 0 && v[1] == 0 {
		return 0
	}
	return NormalizeHeading(Atan2(v[0], v[1]))
}

// Vec2 returns the unit vector pointing along h.
func (h Heading) Vec2() Vec2 { return Vec2{Sin(float32(h)), Cos(float32(h))} }

func (h Heading) Add(a Angle) Heading { return NormalizeHeading(float32(h) + float32(a)) }

func (h Heading) Opposite() Heading { return NormalizeHeading(float32(h) + gomath.Pi) }

// ClosestDelta returns the signed angle of the shorter turn from h to
// `to`; positive means clockwise. The result is in (-pi, pi].
func (h Heading) ClosestDelta(to Heading) Angle {
	return Angle(NormalizeHeading(float32(to) - float32(h)))
}

type TurnDirection int

const (
	TurnClockwise TurnDirection = iota
	TurnCounterClockwise
)

func (d TurnDirection) String() string {
	if d == TurnClockwise {
		return "right"
	}
	return "left"
}

// Distance returns the non-negative angle swept turning from h to `to`
// in direction d, in [0, 2pi).
func (h Heading) Distance(to Heading, d TurnDirection) Angle {
	delta := float64(to) - float64(h)
	delta = gomath.Mod(delta, headingTwoPi)
	if delta < 0 {
		delta += headingTwoPi
	}
	if d == TurnCounterClockwise && delta != 0 {
		delta = headingTwoPi - delta
	}
	return Angle(delta)
}

// IsBetween reports whether h lies on the arc swept from `from` to `to`,
// where the sweep direction is the sign of the shortest rotation from
// `from` to `to`. Endpoints are included.
func (h Heading) IsBetween(from, to Heading) bool {
	d := float32(from.ClosestDelta(to))
	x := float32(from.ClosestDelta(h))
	if d >= 0 {
		return x >= 0 && x <= d
	}
	return x <= 0 && x >= d
}

// RestrictedTurn turns h toward `desired` by at most maxTurn (which must
// be non-negative) along the shorter direction.
func (h Heading) RestrictedTurn(desired Heading, maxTurn Angle) Heading {
	delta := h.ClosestDelta(desired)
	turn := Clamp(float32(delta), -float32(maxTurn), float32(maxTurn))
	return h.Add(Angle(turn))
}
