// wx/wx.go

package wx

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tracon-sim/tracon/math"
)

// Region is an axis-aligned box with field values that apply inside it.
// Queries are pointwise; the core only consumes the sampled values and
// never generates weather itself.
type Region struct {
	// Min and Max bound the region horizontally, in nm.
	Min, Max math.Vec2
	// AltFloor and AltCeil bound it vertically; zero values mean
	// unbounded.
	AltFloor, AltCeil math.Length

	// Wind over the region, nm/s.
	Wind math.Vec2
	// Visibility within the region.
	Visibility math.Length
	// HasVisibility distinguishes "clear region" from "wind-only".
	HasVisibility bool
}

func (r *Region) contains(p math.Vec2, alt math.Length) bool {
	if p[0] < r.Min[0] || p[0] > r.Max[0] || p[1] < r.Min[1] || p[1] > r.Max[1] {
		return false
	}
	if r.AltCeil != 0 && (alt < r.AltFloor || alt > r.AltCeil) {
		return false
	}
	return true
}

// Sample is the weather state at a queried point.
type Sample struct {
	Wind       math.Vec2
	Visibility math.Length
}

// DefaultVisibility applies where no region declares one.
var DefaultVisibility = math.LengthFromNm(10)

// Model answers pointwise wind and visibility queries against the
// scenario's regions. Lookups are cached per quantized cell since the
// per-object queries cluster heavily.
type Model struct {
	regions []Region
	cache   *lru.Cache[cellKey, Sample]
}

type cellKey struct {
	x, y, alt int32
}

// Cell size for cache quantization, in nm.
const cacheCell = 0.25

func MakeModel(regions []Region) *Model {
	cache, _ := lru.New[cellKey, Sample](4096)
	return &Model{regions: regions, cache: cache}
}

// Lookup samples the model at the given horizontal position and
// altitude.
func (m *Model) Lookup(p math.Vec2, alt math.Length) Sample {
	key := cellKey{
		x:   int32(p[0] / cacheCell),
		y:   int32(p[1] / cacheCell),
		alt: int32(alt.Feet() / 1000),
	}
	if s, ok := m.cache.Get(key); ok {
		return s
	}

	s := Sample{Visibility: DefaultVisibility}
	for i := range m.regions {
		r := &m.regions[i]
		if !r.contains(p, alt) {
			continue
		}
		s.Wind = math.Add2f(s.Wind, r.Wind)
		if r.HasVisibility && r.Visibility < s.Visibility {
			s.Visibility = r.Visibility
		}
	}

	m.cache.Add(key, s)
	return s
}
