// scenario/scenario_test.go

package scenario

import (
	"bytes"
	"errors"
	gomath "math"
	"testing"
	"time"

	"github.com/tracon-sim/tracon/aviation"
	"github.com/tracon-sim/tracon/log"
	"github.com/tracon-sim/tracon/math"
)

func sampleType() ObjectTypeDef {
	return ObjectTypeDef{
		Name:            "jet",
		MinIASKts:       120,
		MaxYawDegPerSec: 3,
		MaxYawAccelDeg:  1,
		MaxVertAccelFpm: 1000,
		Profiles: [5]ClimbProfileDef{
			{VertRateFpm: -3000, AccelKts: 3, DecelKts: -5},
			{VertRateFpm: -1500, AccelKts: 4, DecelKts: -4},
			{VertRateFpm: 0, AccelKts: 5, DecelKts: -3},
			{VertRateFpm: 2000, AccelKts: 3, DecelKts: -2},
			{VertRateFpm: 3000, AccelKts: 2, DecelKts: -2},
		},
		AccelChangeKts: 3,
		DragCoef:       0.2,
		TakeoffKts:     140,
		ShortFinalNm:   4,
		ShortFinalKts:  140,
		TaxiBrakingKts: 10,
		TaxiAccelKts:   5,
		TaxiMaxKts:     35,
		TaxiMinKts:     -5,
		TurnDegPerSec:  8,
		WidthMeters:    36,
		HalfLengthM:    20,
	}
}

func sampleBundle() *Bundle {
	alt := float32(8000)
	return &Bundle{
		Meta: Metadata{Name: "test", Seed: 7},
		Environment: Environment{
			Winds: []RegionDef{{
				Min: [2]float32{-50, -50}, Max: [2]float32{50, 50},
				CeilFeet: 45000, WindDirDeg: 270, WindKnots: 10,
			}},
		},
		Aerodromes: []AerodromeDef{{
			Code: "TST", Name: "Test Field", ElevationFeet: 0,
			RunwayPairs: []RunwayPairDef{{
				ForwardName: "18", BackwardName: "36",
				Threshold:  [2]float32{0, 0},
				HeadingDeg: 180, LengthMeters: 2800, WidthMeters: 45,
				GlideAngleDeg: 3, MaxVisualDistNm: 10,
				GoAroundPreset: "ga18",
			}},
			Taxiways: []TaxiwayDef{{
				Name: "A", WidthMeters: 30,
				Points: [][2]float32{{0.1, 0}, {0.1, -1.5}, {0, -1.5}},
			}},
			Aprons: []ApronDef{
				{Name: "S2", Position: [2]float32{0.15, -0.5}, ForwardHeadingDeg: 90, WidthMeters: 40},
				{Name: "S1", Position: [2]float32{0.15, -0.4}, ForwardHeadingDeg: 90, WidthMeters: 40},
			},
		}},
		Waypoints: []WaypointDef{
			{Name: "ALPHA", Position: [2]float32{5, 20}},
			{Name: "BRAVO", Position: [2]float32{-5, 12}},
		},
		ObjectTypes: []ObjectTypeDef{sampleType()},
		RoutePresets: []RoutePresetDef{
			{
				ID: "arrival", Title: "Arrival via ALPHA",
				Nodes: []NodeDef{
					{Kind: "direct", Waypoint: "ALPHA", DistanceNm: 0.5, AltFeet: &alt},
					{Kind: "align", Runway: RunwayRef{Aerodrome: "TST", Runway: "18"}},
					{Kind: "short_final", Runway: RunwayRef{Aerodrome: "TST", Runway: "18"}},
					{Kind: "land", Runway: RunwayRef{Aerodrome: "TST", Runway: "18"}},
				},
			},
			{
				ID: "ga18", Title: "Go around 18",
				Nodes: []NodeDef{{Kind: "altitude", AltFeet: &alt}},
			},
		},
		SpawnTrigger: SpawnTriggerDef{Kind: "periodic", IntervalSeconds: 120},
		SpawnSets: []SpawnSetDef{{
			Weight: 1, CallsignPrefix: "TCN", Type: "jet",
			Location: SpawnLoc{
				Kind: "airborne", Position: [3]float32{5, 30, 10000},
				HeadingDeg: 190, IASKts: 250,
			},
			RoutePreset: "arrival",
		}},
		Initial: []InitialObject{{
			Callsign: "TCN101", Type: "jet",
			Location: SpawnLoc{
				Kind: "airborne", Position: [3]float32{3, 25, 12000},
				HeadingDeg: 200, IASKts: 260,
			},
			RoutePreset: "arrival",
		}},
	}
}

func TestBundleRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := Save(&buf, sampleBundle()); err != nil {
		t.Fatal(err)
	}
	got, err := Load(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Meta.Name != "test" || len(got.Aerodromes) != 1 || len(got.RoutePresets) != 2 {
		t.Errorf("round trip mangled the bundle: %+v", got.Meta)
	}
	if got.RoutePresets[0].Nodes[0].AltFeet == nil || *got.RoutePresets[0].Nodes[0].AltFeet != 8000 {
		t.Error("optional altitude lost in round trip")
	}
}

func TestBuildResolvesReferences(t *testing.T) {
	sc, err := Build(sampleBundle(), log.NewDiscard())
	if err != nil {
		t.Fatal(err)
	}

	pair, err := sc.FindRunway("TST", "18")
	if err != nil {
		t.Fatal(err)
	}
	fwd := sc.World.Waypoint(pair.Forward)
	if fwd == nil || fwd.Runway == nil {
		t.Fatal("forward runway waypoint missing")
	}
	if fwd.Runway.Backward != pair.Backward {
		t.Error("backward runway not linked")
	}
	if pair.Direction != aviation.AlphaToBeta {
		t.Errorf("forward runway direction %v", pair.Direction)
	}

	// The reciprocal lookup flips direction and roles.
	rpair, err := sc.FindRunway("TST", "36")
	if err != nil {
		t.Fatal(err)
	}
	if rpair.Direction != aviation.BetaToAlpha || rpair.Forward != pair.Backward {
		t.Error("reciprocal runway lookup inconsistent")
	}
	if rpair.Segment != pair.Segment {
		t.Error("runway pair should share one segment")
	}

	// Localizer waypoint sits max-visual-distance up the approach.
	loc := sc.World.Waypoint(fwd.Runway.LocalizerWaypoint)
	if loc == nil {
		t.Fatal("localizer waypoint missing")
	}
	d := math.Distance2f(math.Horizontal2f(loc.Position), math.Horizontal2f(fwd.Position))
	if math.Abs(d-10) > 0.01 {
		t.Errorf("localizer at %f nm from threshold, expected 10", d)
	}

	if len(sc.Taxiways["TST/A"]) != 2 {
		t.Errorf("taxiway A should have 2 segments, has %d", len(sc.Taxiways["TST/A"]))
	}

	// Initial object placed and flying.
	if sc.World.NumObjects() != 1 {
		t.Fatalf("expected 1 initial object, have %d", sc.World.NumObjects())
	}

	// Simulate a tick: the queued SelectRoute instruction applies and
	// the route installs its first target.
	sc.World.Advance(time.Second)
	obj := sc.World.Object(1)
	if obj == nil || obj.Route == nil || obj.Route.PresetID != "arrival" {
		t.Error("initial object did not receive its route preset")
	}
	if obj.TargetWaypoint == nil {
		t.Error("route did not install the first waypoint target")
	}
}

func TestBuildRejectsUnknownReferences(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Bundle)
		want   error
	}{
		{"waypoint", func(b *Bundle) { b.RoutePresets[0].Nodes[0].Waypoint = "NOPE" }, aviation.ErrUnknownWaypoint},
		{"runway", func(b *Bundle) { b.RoutePresets[0].Nodes[1].Runway.Runway = "27" }, aviation.ErrUnknownRunway},
		{"object type", func(b *Bundle) { b.SpawnSets[0].Type = "prop" }, aviation.ErrUnknownObjectType},
		{"route preset", func(b *Bundle) { b.SpawnSets[0].RoutePreset = "nope" }, aviation.ErrUnknownRoutePreset},
		{"goaround preset", func(b *Bundle) { b.Aerodromes[0].RunwayPairs[0].GoAroundPreset = "nope" }, aviation.ErrUnknownRoutePreset},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bundle := sampleBundle()
			tc.mutate(bundle)
			_, err := Build(bundle, log.NewDiscard())
			if err == nil {
				t.Fatal("expected load to abort")
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("error %v, expected %v", err, tc.want)
			}
		})
	}
}

func TestBuildRejectsNonFinite(t *testing.T) {
	bundle := sampleBundle()
	bundle.Waypoints[0].Position[0] = float32(gomath.NaN())
	if _, err := Build(bundle, log.NewDiscard()); !errors.Is(err, aviation.ErrNonFiniteValue) {
		t.Errorf("expected non-finite rejection, got %v", err)
	}

	bundle = sampleBundle()
	inf := float32(gomath.Inf(1))
	bundle.ObjectTypes[0].DragCoef = inf
	if _, err := Build(bundle, log.NewDiscard()); !errors.Is(err, aviation.ErrNonFiniteValue) {
		t.Errorf("expected non-finite rejection, got %v", err)
	}
}

func TestRunwayPairLabelSharedSegment(t *testing.T) {
	sc, err := Build(sampleBundle(), log.NewDiscard())
	if err != nil {
		t.Fatal(err)
	}
	pair, _ := sc.FindRunway("TST", "18")
	seg := sc.World.Segment(pair.Segment)
	if seg == nil {
		t.Fatal("runway segment missing")
	}
	if !seg.Label.Equal(aviation.RunwayPairLabel(pair.Backward, pair.Forward)) {
		t.Error("runway pair label must compare order-insensitively")
	}
}
