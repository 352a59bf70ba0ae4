// aviation/ground.go

package aviation

import (
	"fmt"

	"github.com/tracon-sim/tracon/math"
)

// Segment is a stretch of taxiable pavement between two endpoints. The
// graph is cyclic by design: endpoints carry adjacency lists of segment
// ids and segments carry endpoint ids.
type Segment struct {
	ID AerodromeOwned[SegmentID]
	// Alpha and Beta are the endpoint ids. For runway pairs, Alpha is
	// the side closer to the forward runway start; for aprons, Alpha is
	// the apron position.
	Alpha     EndpointID
	Beta      EndpointID
	Width     math.Length
	MaxSpeed  math.Speed
	Elevation math.Length
	Label     SegmentLabel
}

// AerodromeOwned tags an id with the aerodrome owning the entity.
type AerodromeOwned[ID ~int32] struct {
	ID        ID
	Aerodrome AerodromeID
}

type SegmentDirection int8

const (
	AlphaToBeta SegmentDirection = iota
	BetaToAlpha
)

func (d SegmentDirection) Reverse() SegmentDirection {
	if d == AlphaToBeta {
		return BetaToAlpha
	}
	return AlphaToBeta
}

func (d SegmentDirection) String() string {
	if d == AlphaToBeta {
		return "alpha-to-beta"
	}
	return "beta-to-alpha"
}

// OtherEndpoint returns the endpoint that is not equal to `not`, or
// false if `not` is not exactly one of the two endpoints.
func (s *Segment) OtherEndpoint(not EndpointID) (EndpointID, bool) {
	if s.Alpha == not && s.Beta != not {
		return s.Beta, true
	}
	if s.Alpha != not && s.Beta == not {
		return s.Alpha, true
	}
	return 0, false
}

// DirectionFrom returns the direction of travel starting at `from`.
func (s *Segment) DirectionFrom(from EndpointID) (SegmentDirection, bool) {
	if s.Alpha == from {
		return AlphaToBeta, true
	}
	if s.Beta == from {
		return BetaToAlpha, true
	}
	return 0, false
}

// ByDirection returns (from, to) endpoints for travel in d.
func (s *Segment) ByDirection(d SegmentDirection) (EndpointID, EndpointID) {
	if d == AlphaToBeta {
		return s.Alpha, s.Beta
	}
	return s.Beta, s.Alpha
}

// Endpoint is an intersection between segments.
type Endpoint struct {
	ID        AerodromeOwned[EndpointID]
	Position  math.Vec2
	Adjacency []SegmentID
}

// SegmentLabelKind discriminates SegmentLabel.
type SegmentLabelKind int8

const (
	LabelTaxiway SegmentLabelKind = iota
	LabelRunwayPair
	LabelApron
)

// SegmentLabel identifies a segment; multiple segments may share one
// label. RunwayPair labels compare and hash order-insensitively.
type SegmentLabel struct {
	Kind SegmentLabelKind
	// Name for taxiways and aprons.
	Name string
	// Runways for runway pairs: [forward, backward].
	Runways [2]WaypointID
}

func TaxiwayLabel(name string) SegmentLabel { return SegmentLabel{Kind: LabelTaxiway, Name: name} }
func ApronLabel(name string) SegmentLabel   { return SegmentLabel{Kind: LabelApron, Name: name} }
func RunwayPairLabel(fwd, back WaypointID) SegmentLabel {
	return SegmentLabel{Kind: LabelRunwayPair, Runways: [2]WaypointID{fwd, back}}
}

func (l SegmentLabel) IsRunway() bool  { return l.Kind == LabelRunwayPair }
func (l SegmentLabel) IsTaxiway() bool { return l.Kind == LabelTaxiway }
func (l SegmentLabel) IsApron() bool   { return l.Kind == LabelApron }

// Equal compares labels, treating RunwayPair([a, b]) and
// RunwayPair([b, a]) as the same label.
func (l SegmentLabel) Equal(o SegmentLabel) bool {
	if l.Kind != o.Kind {
		return false
	}
	if l.Kind == LabelRunwayPair {
		return l.Runways == o.Runways ||
			(l.Runways[0] == o.Runways[1] && l.Runways[1] == o.Runways[0])
	}
	return l.Name == o.Name
}

// Canonical returns a representative usable as a map key; the runway
// pair is ordered so that equal labels collapse to one key.
func (l SegmentLabel) Canonical() SegmentLabel {
	if l.Kind == LabelRunwayPair && l.Runways[1] < l.Runways[0] {
		l.Runways[0], l.Runways[1] = l.Runways[1], l.Runways[0]
	}
	return l
}

func (l SegmentLabel) String() string {
	switch l.Kind {
	case LabelTaxiway:
		return "taxiway " + l.Name
	case LabelApron:
		return "apron " + l.Name
	default:
		return fmt.Sprintf("runway pair %d/%d", l.Runways[0], l.Runways[1])
	}
}
