// math/heading_test.go

package math

import (
	gomath "math"
	"testing"
)

func TestNormalizeHeading(t *testing.T) {
	h := [][2]float32{{90, 90}, {360, 0}, {-10, -10}, {190, -170}, {-190, 170}, {540, 180}}
	for _, pair := range h {
		got := NormalizeHeading(Radians(pair[0])).Degrees()
		if Abs(got-pair[1]) > 1e-4 {
			t.Errorf("normalize heading error: %f -> %f, expected %f", pair[0], got, pair[1])
		}
	}
}

func TestNormalizeHeadingQuotient(t *testing.T) {
	// h and h+2pi must normalize identically.
	for _, deg := range []float32{0, 1, 45, 90, 179, 180, -1, -90, -179} {
		a := NormalizeHeading(Radians(deg))
		b := NormalizeHeading(Radians(deg) + 2*gomath.Pi)
		if Abs(float32(a)-float32(b)) > 1e-5 {
			t.Errorf("heading %f: %f != %f after +2pi", deg, a, b)
		}
		if float32(a) <= -gomath.Pi || float32(a) > gomath.Pi+1e-6 {
			t.Errorf("heading %f normalized out of range: %f", deg, a)
		}
	}
}

func TestClosestDelta(t *testing.T) {
	type hd struct{ from, to, d float32 }
	for _, h := range []hd{
		{10, 90, 80}, {350, 12, 22}, {340, 120, 140}, {-90, 80, 170},
		{40, 181, 141}, {90, 270, 180},
	} {
		got := HeadingFromDegrees(h.from).ClosestDelta(HeadingFromDegrees(h.to)).Degrees()
		if Abs(Abs(got)-h.d) > 1e-3 {
			t.Errorf("ClosestDelta(%f, %f) -> %f, expected magnitude %f", h.from, h.to, got, h.d)
		}
	}
	// Signs: clockwise positive.
	if d := HeadingFromDegrees(10).ClosestDelta(HeadingFromDegrees(90)); d < 0 {
		t.Errorf("expected clockwise delta, got %f", d.Degrees())
	}
	if d := HeadingFromDegrees(10).ClosestDelta(HeadingFromDegrees(350)); d > 0 {
		t.Errorf("expected counterclockwise delta, got %f", d.Degrees())
	}
}

func TestHeadingDistance(t *testing.T) {
	tests := []struct {
		from, to float32
		dir      TurnDirection
		expected float32
	}{
		{10, 90, TurnClockwise, 80},
		{10, 90, TurnCounterClockwise, 280},
		{350, 20, TurnClockwise, 30},
		{350, 20, TurnCounterClockwise, 330},
		{45, 45, TurnClockwise, 0},
	}
	for _, tt := range tests {
		got := HeadingFromDegrees(tt.from).Distance(HeadingFromDegrees(tt.to), tt.dir).Degrees()
		if Abs(got-tt.expected) > 1e-3 {
			t.Errorf("Distance(%f, %f, %v) = %f, expected %f", tt.from, tt.to, tt.dir, got, tt.expected)
		}
	}
}

func TestIsBetween(t *testing.T) {
	tests := []struct {
		h, from, to float32
		expected    bool
	}{
		{45, 0, 90, true},
		{0, 0, 90, true},
		{90, 0, 90, true},
		{100, 0, 90, false},
		{-10, 0, 90, false},
		{0, 350, 20, true},
		{350, 340, 10, true},
		{100, 350, 20, false},
		{-45, 0, -90, true},
		{45, 0, -90, false},
	}
	for _, tt := range tests {
		got := HeadingFromDegrees(tt.h).IsBetween(HeadingFromDegrees(tt.from), HeadingFromDegrees(tt.to))
		if got != tt.expected {
			t.Errorf("IsBetween(%f, %f, %f) = %v, expected %v", tt.h, tt.from, tt.to, got, tt.expected)
		}
	}
}

func TestOppositeHeading(t *testing.T) {
	h := [][2]float32{{90, -90}, {1, -179}, {-170, 10}, {180, 0}}
	for _, pair := range h {
		got := HeadingFromDegrees(pair[0]).Opposite().Degrees()
		if Abs(got-pair[1]) > 1e-3 {
			t.Errorf("opposite heading error: %f -> %f, expected %f", pair[0], got, pair[1])
		}
	}
}

func TestHeadingVector(t *testing.T) {
	tests := []struct {
		name    string
		heading float32
		v       Vec2
	}{
		{"north", 0, Vec2{0, 1}},
		{"east", 90, Vec2{1, 0}},
		{"south", 180, Vec2{0, -1}},
		{"west", 270, Vec2{-1, 0}},
		{"northeast", 45, Vec2{0.7071, 0.7071}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := HeadingFromDegrees(tt.heading).Vec2()
			if Abs(v[0]-tt.v[0]) > 1e-3 || Abs(v[1]-tt.v[1]) > 1e-3 {
				t.Errorf("HeadingFromDegrees(%f).Vec2() = %v, expected %v", tt.heading, v, tt.v)
			}
			back := HeadingFromVec2(v)
			if Abs(float32(back.ClosestDelta(HeadingFromDegrees(tt.heading)))) > 1e-3 {
				t.Errorf("round trip through Vec2 failed for %f: got %f", tt.heading, back.Degrees())
			}
		})
	}
}

func TestRestrictedTurn(t *testing.T) {
	h := HeadingFromDegrees(0)
	got := h.RestrictedTurn(HeadingFromDegrees(90), AngleFromDegrees(10))
	if Abs(got.Degrees()-10) > 1e-3 {
		t.Errorf("restricted turn gave %f, expected 10", got.Degrees())
	}
	got = h.RestrictedTurn(HeadingFromDegrees(5), AngleFromDegrees(10))
	if Abs(got.Degrees()-5) > 1e-3 {
		t.Errorf("restricted turn gave %f, expected 5", got.Degrees())
	}
	got = h.RestrictedTurn(HeadingFromDegrees(-90), AngleFromDegrees(10))
	if Abs(got.Degrees()+10) > 1e-3 {
		t.Errorf("restricted turn gave %f, expected -10", got.Degrees())
	}
}
