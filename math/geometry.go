// math/geometry.go

package math

// PointLineClosest returns the point on the infinite line through a and
// b closest to p. Coincident a and b degenerate to a itself.
func PointLineClosest(p, a, b Vec2) Vec2 {
	ab := Sub2f(b, a)
	denom := LengthSquared2f(ab)
	if denom == 0 {
		return a
	}
	t := Dot2f(Sub2f(p, a), ab) / denom
	return Add2f(a, Scale2f(ab, t))
}

// PointSegmentClosest is PointLineClosest restricted to the segment ab.
func PointSegmentClosest(p, a, b Vec2) Vec2 {
	ab := Sub2f(b, a)
	denom := LengthSquared2f(ab)
	if denom == 0 {
		return a
	}
	t := Clamp(Dot2f(Sub2f(p, a), ab)/denom, 0, 1)
	return Add2f(a, Scale2f(ab, t))
}

// SignedPointLineDistance returns the perpendicular distance from p to
// the line through a and b; the sign flips across the line.
func SignedPointLineDistance(p, a, b Vec2) float32 {
	ab := Sub2f(b, a)
	l := Length2f(ab)
	if l == 0 {
		return Distance2f(p, a)
	}
	return (ab[0]*(a[1]-p[1]) - ab[1]*(a[0]-p[0])) / l
}

func PointLineDistance(p, a, b Vec2) float32 {
	return Abs(SignedPointLineDistance(p, a, b))
}

// LineCircleIntersect intersects the segment ab with the circle of the
// given squared radius around center. On intersection it returns the two
// lerp parameters lo <= hi along ab, clamped to [0, 1].
func LineCircleIntersect(center Vec2, radiusSq float32, a, b Vec2) (lo, hi float32, ok bool) {
	d := Sub2f(b, a)
	f := Sub2f(a, center)

	qa := LengthSquared2f(d)
	if qa == 0 {
		return 0, 0, false
	}
	qb := 2 * Dot2f(f, d)
	qc := LengthSquared2f(f) - radiusSq

	disc := qb*qb - 4*qa*qc
	if disc < 0 {
		return 0, 0, false
	}
	sq := Sqrt(disc)
	lo = (-qb - sq) / (2 * qa)
	hi = (-qb + sq) / (2 * qa)
	if hi < 0 || lo > 1 {
		return 0, 0, false
	}
	return Clamp(lo, 0, 1), Clamp(hi, 0, 1), true
}
