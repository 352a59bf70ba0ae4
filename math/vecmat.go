// math/vecmat.go

package math

// Various useful functions for arithmetic with 2D/3D points and vectors
// in canonical units. Names are brief in order to avoid clutter when
// they're used.

type Vec2 = [2]float32
type Vec3 = [3]float32

// a+b
func Add2f(a, b Vec2) Vec2 { return Vec2{a[0] + b[0], a[1] + b[1]} }

// a-b
func Sub2f(a, b Vec2) Vec2 { return Vec2{a[0] - b[0], a[1] - b[1]} }

// a*s
func Scale2f(a Vec2, s float32) Vec2 { return Vec2{s * a[0], s * a[1]} }

func Dot2f(a, b Vec2) float32 { return a[0]*b[0] + a[1]*b[1] }

// Linearly interpolate x of the way between a and b.
func Lerp2f(x float32, a, b Vec2) Vec2 {
	return Vec2{(1 - x) * a[0] + x*b[0], (1 - x) * a[1] + x*b[1]}
}

func Length2f(v Vec2) float32 { return Sqrt(v[0]*v[0] + v[1]*v[1]) }

func LengthSquared2f(v Vec2) float32 { return v[0]*v[0] + v[1]*v[1] }

func Distance2f(a, b Vec2) float32 { return Length2f(Sub2f(a, b)) }

func DistanceSquared2f(a, b Vec2) float32 { return LengthSquared2f(Sub2f(a, b)) }

// Normalizes the given vector; the zero vector stays zero.
func Normalize2f(a Vec2) Vec2 {
	l := Length2f(a)
	if l == 0 {
		return Vec2{}
	}
	return Scale2f(a, 1/l)
}

// ProjectOnto2f returns the signed length of the projection of v onto
// the unit vector dir.
func ProjectOnto2f(v, dir Vec2) float32 { return Dot2f(v, dir) }

func Add3f(a, b Vec3) Vec3 { return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }

func Sub3f(a, b Vec3) Vec3 { return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }

func Scale3f(a Vec3, s float32) Vec3 { return Vec3{s * a[0], s * a[1], s * a[2]} }

func Length3f(v Vec3) float32 { return Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2]) }

// Horizontal2f drops the vertical component.
func Horizontal2f(v Vec3) Vec2 { return Vec2{v[0], v[1]} }

// WithVertical3f pairs a horizontal vector with a vertical component.
func WithVertical3f(h Vec2, z float32) Vec3 { return Vec3{h[0], h[1], z} }
