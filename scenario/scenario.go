// scenario/scenario.go

// Package scenario defines the self-describing scenario bundle and
// builds a sim.World from it. The bundle is msgpack inside a zstd
// container; all textual references are resolved at load time and
// unknown references abort the load.
package scenario

import (
	"fmt"
	"sort"
	"time"

	"github.com/tracon-sim/tracon/aviation"
	"github.com/tracon-sim/tracon/log"
	"github.com/tracon-sim/tracon/math"
	"github.com/tracon-sim/tracon/sim"
	"github.com/tracon-sim/tracon/taxi"
	"github.com/tracon-sim/tracon/wx"
)

// Bundle is the on-disk scenario schema. Positions are nm, elevations
// and altitudes feet, speeds knots, angles degrees, distances in the
// unit named by the field.
type Bundle struct {
	Meta         Metadata         `msgpack:"meta"`
	Environment  Environment      `msgpack:"environment"`
	Aerodromes   []AerodromeDef   `msgpack:"aerodromes"`
	Waypoints    []WaypointDef    `msgpack:"waypoints"`
	ObjectTypes  []ObjectTypeDef  `msgpack:"object_types"`
	RoutePresets []RoutePresetDef `msgpack:"route_presets"`
	SpawnTrigger SpawnTriggerDef  `msgpack:"spawn_trigger"`
	SpawnSets    []SpawnSetDef    `msgpack:"spawn_sets"`
	Initial      []InitialObject  `msgpack:"initial_objects"`
}

type Metadata struct {
	Name        string `msgpack:"name"`
	Description string `msgpack:"description"`
	Seed        uint64 `msgpack:"seed"`
}

type Environment struct {
	Winds     []RegionDef  `msgpack:"winds"`
	Weather   []RegionDef  `msgpack:"weather"`
	Heightmap HeightmapDef `msgpack:"heightmap"`
}

type RegionDef struct {
	Min          [2]float32 `msgpack:"min"`
	Max          [2]float32 `msgpack:"max"`
	FloorFeet    float32    `msgpack:"floor_feet"`
	CeilFeet     float32    `msgpack:"ceil_feet"`
	WindDirDeg   float32    `msgpack:"wind_dir_deg"`
	WindKnots    float32    `msgpack:"wind_knots"`
	VisibilityNm float32    `msgpack:"visibility_nm"`
}

// HeightmapDef is a row-major grid of terrain elevations in feet.
type HeightmapDef struct {
	Origin   [2]float32 `msgpack:"origin"`
	CellNm   float32    `msgpack:"cell_nm"`
	Cols     int        `msgpack:"cols"`
	DataFeet []float32  `msgpack:"data_feet"`
}

type AerodromeDef struct {
	Code          string          `msgpack:"code"`
	Name          string          `msgpack:"name"`
	ElevationFeet float32         `msgpack:"elevation_feet"`
	RunwayPairs   []RunwayPairDef `msgpack:"runway_pairs"`
	Taxiways      []TaxiwayDef    `msgpack:"taxiways"`
	Aprons        []ApronDef      `msgpack:"aprons"`
	TaxiSpeedKts  float32         `msgpack:"taxi_speed_kts"`
	ApronSpeedKts float32         `msgpack:"apron_speed_kts"`
}

type RunwayPairDef struct {
	// ForwardName lands in HeadingDeg; BackwardName is the reciprocal.
	ForwardName  string  `msgpack:"forward_name"`
	BackwardName string  `msgpack:"backward_name"`
	// Threshold is the forward runway's touchdown end.
	Threshold         [2]float32 `msgpack:"threshold"`
	HeadingDeg        float32    `msgpack:"heading_deg"`
	LengthMeters      float32    `msgpack:"length_meters"`
	WidthMeters       float32    `msgpack:"width_meters"`
	DisplacementM     float32    `msgpack:"displacement_meters"`
	StopwayM          float32    `msgpack:"stopway_meters"`
	GlideAngleDeg     float32    `msgpack:"glide_angle_deg"`
	MaxVisualDistNm   float32    `msgpack:"max_visual_dist_nm"`
	ILS               bool       `msgpack:"ils"`
	GoAroundPreset    string     `msgpack:"goaround_preset"`
	MaxRunwaySpeedKts float32    `msgpack:"max_speed_kts"`
}

type TaxiwayDef struct {
	Name        string       `msgpack:"name"`
	WidthMeters float32      `msgpack:"width_meters"`
	// Points is the centerline polyline.
	Points [][2]float32 `msgpack:"points"`
}

type ApronDef struct {
	Name              string     `msgpack:"name"`
	Position          [2]float32 `msgpack:"position"`
	ForwardHeadingDeg float32    `msgpack:"forward_heading_deg"`
	WidthMeters       float32    `msgpack:"width_meters"`
}

type ObjectTypeDef struct {
	Name string `msgpack:"name"`

	MinIASKts       float32 `msgpack:"min_ias_kts"`
	MaxYawDegPerSec float32 `msgpack:"max_yaw_deg_per_sec"`
	MaxYawAccelDeg  float32 `msgpack:"max_yaw_accel_deg_per_sec2"`
	MaxVertAccelFpm float32 `msgpack:"max_vert_accel_fpm_per_sec"`

	Profiles       [5]ClimbProfileDef `msgpack:"profiles"`
	AccelChangeKts float32            `msgpack:"accel_change_kts_per_sec2"`
	DragCoef       float32            `msgpack:"drag_coef"`
	TakeoffKts     float32            `msgpack:"takeoff_kts"`
	ShortFinalNm   float32            `msgpack:"short_final_nm"`
	ShortFinalKts  float32            `msgpack:"short_final_kts"`

	TaxiBrakingKts float32 `msgpack:"taxi_braking_kts_per_sec"`
	TaxiAccelKts   float32 `msgpack:"taxi_accel_kts_per_sec"`
	TaxiMaxKts     float32 `msgpack:"taxi_max_kts"`
	TaxiMinKts     float32 `msgpack:"taxi_min_kts"`
	TurnDegPerSec  float32 `msgpack:"turn_deg_per_sec"`
	WidthMeters    float32 `msgpack:"width_meters"`
	HalfLengthM    float32 `msgpack:"half_length_meters"`
}

// ClimbProfileDef orders exp-descent, std-descent, level, std-climb,
// exp-climb.
type ClimbProfileDef struct {
	VertRateFpm float32 `msgpack:"vert_rate_fpm"`
	AccelKts    float32 `msgpack:"accel_kts_per_sec"`
	DecelKts    float32 `msgpack:"decel_kts_per_sec"`
}

type RoutePresetDef struct {
	ID    string    `msgpack:"id"`
	Title string    `msgpack:"title"`
	Nodes []NodeDef `msgpack:"nodes"`
}

type NodeDef struct {
	Kind string `msgpack:"kind"` // direct, airspeed, altitude, align, short_final, land, taxi

	Waypoint   string   `msgpack:"waypoint"`
	DistanceNm float32  `msgpack:"distance_nm"`
	FlyOver    bool     `msgpack:"fly_over"`
	AltFeet    *float32 `msgpack:"alt_feet"`

	SpeedKts    float32  `msgpack:"speed_kts"`
	SpeedErrKts *float32 `msgpack:"speed_err_kts"`
	AltErrFeet  *float32 `msgpack:"alt_err_feet"`
	Expedite    bool     `msgpack:"expedite"`

	Runway RunwayRef `msgpack:"runway"`

	Taxiway   string `msgpack:"taxiway"`
	HoldShort bool   `msgpack:"hold_short"`
}

type RunwayRef struct {
	Aerodrome string `msgpack:"aerodrome"`
	Runway    string `msgpack:"runway"`
}

type SpawnTriggerDef struct {
	Kind            string  `msgpack:"kind"` // disabled, periodic, object_count
	IntervalSeconds float32 `msgpack:"interval_seconds"`
	Threshold       int     `msgpack:"threshold"`
}

type SpawnSetDef struct {
	Weight         int        `msgpack:"weight"`
	CallsignPrefix string     `msgpack:"callsign_prefix"`
	Type           string     `msgpack:"type"`
	Location       SpawnLoc   `msgpack:"location"`
	RoutePreset    string     `msgpack:"route_preset"`
}

type SpawnLoc struct {
	Kind       string     `msgpack:"kind"` // airborne, segment
	Position   [3]float32 `msgpack:"position"` // nm, nm, feet
	HeadingDeg float32    `msgpack:"heading_deg"`
	IASKts     float32    `msgpack:"ias_kts"`
	Aerodrome  string     `msgpack:"aerodrome"`
	Taxiway    string     `msgpack:"taxiway"`
}

type InitialObject struct {
	Callsign    string   `msgpack:"callsign"`
	Type        string   `msgpack:"type"`
	Location    SpawnLoc `msgpack:"location"`
	RoutePreset string   `msgpack:"route_preset"`
}

///////////////////////////////////////////////////////////////////////////
// world construction

// RunwayPair is the result of a runway lookup: the forward runway, its
// paired backward runway, and the direction of the shared segment when
// traversed in the forward runway's landing direction.
type RunwayPair struct {
	Forward   aviation.WaypointID
	Backward  aviation.WaypointID
	Segment   aviation.SegmentID
	Direction aviation.SegmentDirection
}

// Scenario is a built world plus the name-to-id resolution tables.
type Scenario struct {
	World *sim.World

	Waypoints map[string]aviation.WaypointID
	// Runways keys are "CODE/NAME".
	Runways    map[string]RunwayPair
	Aerodromes map[string]aviation.AerodromeID
	// Taxiways keys are "CODE/NAME"; values are the polyline's segments.
	Taxiways map[string][]aviation.SegmentID
	Types    map[string]ObjectTypeDef
}

// FindRunway resolves (aerodrome code, runway name) to the forward
// runway, the paired backward runway, and the segment direction.
func (s *Scenario) FindRunway(code, name string) (RunwayPair, error) {
	pair, ok := s.Runways[code+"/"+name]
	if !ok {
		return RunwayPair{}, fmt.Errorf("%w: %s at %s", aviation.ErrUnknownRunway, name, code)
	}
	return pair, nil
}

// Build validates the bundle, resolves every reference, and constructs
// the world. Any unknown reference or non-finite value aborts with a
// descriptive error.
func Build(bundle *Bundle, lg *log.Logger) (*Scenario, error) {
	if err := checkBundleFinite(bundle); err != nil {
		return nil, err
	}

	w := sim.NewWorld(bundle.Meta.Seed, lg)
	sc := &Scenario{
		World:      w,
		Waypoints:  make(map[string]aviation.WaypointID),
		Runways:    make(map[string]RunwayPair),
		Aerodromes: make(map[string]aviation.AerodromeID),
		Taxiways:   make(map[string][]aviation.SegmentID),
		Types:      make(map[string]ObjectTypeDef),
	}

	w.WX = wx.MakeModel(buildRegions(&bundle.Environment))
	if terrain := buildTerrain(&bundle.Environment.Heightmap); terrain != nil {
		w.Terrain = terrain
	}

	for _, wpDef := range bundle.Waypoints {
		if _, dup := sc.Waypoints[wpDef.Name]; dup {
			return nil, fmt.Errorf("duplicate waypoint %q", wpDef.Name)
		}
		sc.Waypoints[wpDef.Name] = w.CreateWaypoint(aviation.Waypoint{
			Name: wpDef.Name,
			Position: math.Vec3{wpDef.Position[0], wpDef.Position[1],
				float32(math.LengthFromFeet(wpDef.ElevationFeet))},
			DisplayKind: wpDef.Display,
		})
	}

	for i := range bundle.Aerodromes {
		if err := buildAerodrome(sc, &bundle.Aerodromes[i]); err != nil {
			return nil, err
		}
	}

	for _, typ := range bundle.ObjectTypes {
		sc.Types[typ.Name] = typ
	}

	for _, presetDef := range bundle.RoutePresets {
		nodes, err := buildNodes(sc, presetDef.Nodes)
		if err != nil {
			return nil, fmt.Errorf("route preset %q: %w", presetDef.ID, err)
		}
		w.RegisterRoutePreset(sim.RoutePreset{ID: presetDef.ID, Title: presetDef.Title, Nodes: nodes})
	}
	// Go-around presets are forward references from runways; verify them
	// now that all presets are registered.
	for key, pair := range sc.Runways {
		rwy := w.Waypoint(pair.Forward).Runway
		if rwy.GoAroundPreset != "" && w.RoutePreset(rwy.GoAroundPreset) == nil {
			return nil, fmt.Errorf("%w: goaround %q for runway %s",
				aviation.ErrUnknownRoutePreset, rwy.GoAroundPreset, key)
		}
	}

	trigger, err := buildSpawnTrigger(&bundle.SpawnTrigger)
	if err != nil {
		return nil, err
	}
	var sets []sim.SpawnSet
	for i := range bundle.SpawnSets {
		set, err := buildSpawnSet(sc, &bundle.SpawnSets[i])
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	if trigger.Kind != sim.SpawnDisabled || len(sets) > 0 {
		w.ConfigureSpawner(trigger, sets)
	}

	for i := range bundle.Initial {
		if err := placeInitialObject(sc, &bundle.Initial[i]); err != nil {
			return nil, err
		}
	}

	return sc, nil
}

type WaypointDef struct {
	Name          string     `msgpack:"name"`
	Position      [2]float32 `msgpack:"position"`
	ElevationFeet float32    `msgpack:"elevation_feet"`
	Display       string     `msgpack:"display"`
}

func buildRegions(env *Environment) []wx.Region {
	var regions []wx.Region
	for _, r := range env.Winds {
		heading := math.HeadingFromDegrees(r.WindDirDeg)
		// Wind blows FROM the named direction.
		vec := math.Scale2f(heading.Opposite().Vec2(), float32(math.SpeedFromKnots(r.WindKnots)))
		regions = append(regions, wx.Region{
			Min: r.Min, Max: r.Max,
			AltFloor: math.LengthFromFeet(r.FloorFeet),
			AltCeil:  math.LengthFromFeet(r.CeilFeet),
			Wind:     vec,
		})
	}
	for _, r := range env.Weather {
		regions = append(regions, wx.Region{
			Min: r.Min, Max: r.Max,
			AltFloor:      math.LengthFromFeet(r.FloorFeet),
			AltCeil:       math.LengthFromFeet(r.CeilFeet),
			Visibility:    math.LengthFromNm(r.VisibilityNm),
			HasVisibility: true,
		})
	}
	return regions
}

func buildTerrain(hm *HeightmapDef) func(math.Vec2) math.Length {
	if hm.Cols <= 0 || len(hm.DataFeet) == 0 || hm.CellNm <= 0 {
		return nil
	}
	rows := len(hm.DataFeet) / hm.Cols
	origin, cell, cols, data := hm.Origin, hm.CellNm, hm.Cols, hm.DataFeet
	return func(p math.Vec2) math.Length {
		col := int((p[0] - origin[0]) / cell)
		row := int((p[1] - origin[1]) / cell)
		if col < 0 || col >= cols || row < 0 || row >= rows {
			return 0
		}
		return math.LengthFromFeet(data[row*cols+col])
	}
}

func buildAerodrome(sc *Scenario, def *AerodromeDef) error {
	w := sc.World
	if _, dup := sc.Aerodromes[def.Code]; dup {
		return fmt.Errorf("duplicate aerodrome %q", def.Code)
	}
	elevation := math.LengthFromFeet(def.ElevationFeet)
	adID := w.CreateAerodrome(def.Code, def.Name, elevation)
	sc.Aerodromes[def.Code] = adID

	taxiSpeed := math.SpeedFromKnots(def.TaxiSpeedKts)
	if taxiSpeed == 0 {
		taxiSpeed = math.SpeedFromKnots(25)
	}
	apronSpeed := math.SpeedFromKnots(def.ApronSpeedKts)
	if apronSpeed == 0 {
		apronSpeed = math.SpeedFromKnots(10)
	}

	for i := range def.RunwayPairs {
		if err := buildRunwayPair(sc, def.Code, adID, elevation, &def.RunwayPairs[i]); err != nil {
			return err
		}
	}

	// Taxiways: one segment per polyline edge, all sharing the label.
	taxiwayEndpoints := make(map[string][]aviation.EndpointID)
	for _, twy := range def.Taxiways {
		if len(twy.Points) < 2 {
			return fmt.Errorf("taxiway %s/%s has fewer than two points", def.Code, twy.Name)
		}
		var eps []aviation.EndpointID
		for _, p := range twy.Points {
			eps = append(eps, w.CreateEndpoint(adID, math.Vec2{p[0], p[1]}))
		}
		var segs []aviation.SegmentID
		for i := 0; i+1 < len(eps); i++ {
			segs = append(segs, w.CreateSegment(aviation.Segment{
				ID:        aviation.AerodromeOwned[aviation.SegmentID]{Aerodrome: adID},
				Alpha:     eps[i],
				Beta:      eps[i+1],
				Width:     math.LengthFromMeters(twy.WidthMeters),
				MaxSpeed:  taxiSpeed,
				Elevation: elevation,
				Label:     aviation.TaxiwayLabel(twy.Name),
			}))
		}
		sc.Taxiways[def.Code+"/"+twy.Name] = segs
		taxiwayEndpoints[twy.Name] = eps
	}

	// Aprons connect their stand position to the nearest taxiway
	// endpoint. Sorted by (forward heading, name) so that aprons sharing
	// a heading still load deterministically.
	aprons := append([]ApronDef(nil), def.Aprons...)
	sort.SliceStable(aprons, func(i, j int) bool {
		if aprons[i].ForwardHeadingDeg != aprons[j].ForwardHeadingDeg {
			return aprons[i].ForwardHeadingDeg < aprons[j].ForwardHeadingDeg
		}
		return aprons[i].Name < aprons[j].Name
	})
	for _, apron := range aprons {
		pos := math.Vec2{apron.Position[0], apron.Position[1]}
		nearest, ok := nearestEndpoint(w, taxiwayEndpoints, pos)
		if !ok {
			return fmt.Errorf("apron %s/%s has no taxiway to connect to", def.Code, apron.Name)
		}
		alpha := w.CreateEndpoint(adID, pos)
		w.CreateSegment(aviation.Segment{
			ID:        aviation.AerodromeOwned[aviation.SegmentID]{Aerodrome: adID},
			Alpha:     alpha,
			Beta:      nearest,
			Width:     math.LengthFromMeters(apron.WidthMeters),
			MaxSpeed:  apronSpeed,
			Elevation: elevation,
			Label:     aviation.ApronLabel(apron.Name),
		})
	}

	return nil
}

func nearestEndpoint(w *sim.World, byTaxiway map[string][]aviation.EndpointID,
	pos math.Vec2) (aviation.EndpointID, bool) {
	best := aviation.EndpointID(0)
	bestDist := float32(gomaxDist)
	for _, eps := range byTaxiway {
		for _, id := range eps {
			if ep := w.Endpoint(id); ep != nil {
				if d := math.DistanceSquared2f(ep.Position, pos); d < bestDist {
					best, bestDist = id, d
				}
			}
		}
	}
	return best, best != 0
}

const gomaxDist = 1e30

func buildRunwayPair(sc *Scenario, code string, adID aviation.AerodromeID,
	elevation math.Length, def *RunwayPairDef) error {
	w := sc.World

	heading := math.HeadingFromDegrees(def.HeadingDeg)
	dir := heading.Vec2()
	length := math.LengthFromMeters(def.LengthMeters)
	fwdThreshold := math.Vec2{def.Threshold[0], def.Threshold[1]}
	backThreshold := math.Add2f(fwdThreshold, math.Scale2f(dir, float32(length)))

	maxVisual := math.LengthFromNm(def.MaxVisualDistNm)
	if maxVisual == 0 {
		maxVisual = math.LengthFromNm(10)
	}
	glide := math.AngleFromDegrees(def.GlideAngleDeg)
	if glide == 0 {
		glide = math.AngleFromDegrees(3)
	}
	width := math.LengthFromMeters(def.WidthMeters)
	displacement := math.LengthFromMeters(def.DisplacementM)

	maxSpeed := math.SpeedFromKnots(def.MaxRunwaySpeedKts)
	if maxSpeed == 0 {
		maxSpeed = math.SpeedFromKnots(140)
	}

	elevF := float32(elevation)
	fwdID := w.CreateWaypoint(aviation.Waypoint{
		Name:     def.ForwardName,
		Position: math.WithVertical3f(fwdThreshold, elevF),
	})
	backID := w.CreateWaypoint(aviation.Waypoint{
		Name:     def.BackwardName,
		Position: math.WithVertical3f(backThreshold, elevF),
	})

	// Localizer waypoints sit at maximum visual distance out on each
	// approach axis.
	fwdLoc := w.CreateWaypoint(aviation.Waypoint{
		Name: def.ForwardName + "-LOC",
		Position: math.WithVertical3f(
			math.Add2f(fwdThreshold, math.Scale2f(dir, -float32(maxVisual))), elevF),
	})
	backLoc := w.CreateWaypoint(aviation.Waypoint{
		Name: def.BackwardName + "-LOC",
		Position: math.WithVertical3f(
			math.Add2f(backThreshold, math.Scale2f(dir, float32(maxVisual))), elevF),
	})

	alpha := w.CreateEndpoint(adID, fwdThreshold)
	beta := w.CreateEndpoint(adID, backThreshold)
	segID := w.CreateSegment(aviation.Segment{
		ID:        aviation.AerodromeOwned[aviation.SegmentID]{Aerodrome: adID},
		Alpha:     alpha,
		Beta:      beta,
		Width:     width,
		MaxSpeed:  maxSpeed,
		Elevation: elevation,
		Label:     aviation.RunwayPairLabel(fwdID, backID),
	})

	usable := float32(length - displacement)
	w.Waypoint(fwdID).Runway = &aviation.Runway{
		LandingLength:     math.Scale2f(dir, usable),
		GlideAngle:        glide,
		Width:             width,
		DisplayStart:      fwdThreshold,
		DisplayEnd:        backThreshold,
		LocalizerWaypoint: fwdLoc,
		MaxVisualDistance: maxVisual,
		Backward:          backID,
		GoAroundPreset:    def.GoAroundPreset,
		Segment:           segID,
		SegmentDirection:  aviation.AlphaToBeta,
	}
	w.Waypoint(backID).Runway = &aviation.Runway{
		LandingLength:     math.Scale2f(dir, -usable),
		GlideAngle:        glide,
		Width:             width,
		DisplayStart:      backThreshold,
		DisplayEnd:        fwdThreshold,
		LocalizerWaypoint: backLoc,
		MaxVisualDistance: maxVisual,
		Backward:          fwdID,
		GoAroundPreset:    def.GoAroundPreset,
		Segment:           segID,
		SegmentDirection:  aviation.BetaToAlpha,
	}

	sc.Runways[code+"/"+def.ForwardName] = RunwayPair{
		Forward: fwdID, Backward: backID, Segment: segID, Direction: aviation.AlphaToBeta,
	}
	sc.Runways[code+"/"+def.BackwardName] = RunwayPair{
		Forward: backID, Backward: fwdID, Segment: segID, Direction: aviation.BetaToAlpha,
	}
	return nil
}

func buildNodes(sc *Scenario, defs []NodeDef) ([]sim.Node, error) {
	var nodes []sim.Node
	for _, def := range defs {
		switch def.Kind {
		case "direct":
			wp, ok := sc.Waypoints[def.Waypoint]
			if !ok {
				return nil, fmt.Errorf("%w: %q", aviation.ErrUnknownWaypoint, def.Waypoint)
			}
			node := sim.Node{
				Kind:     sim.NodeDirectWaypoint,
				Waypoint: wp,
				Distance: math.LengthFromNm(def.DistanceNm),
			}
			if def.FlyOver {
				node.Proximity = sim.FlyOver
			}
			if def.AltFeet != nil {
				alt := math.LengthFromFeet(*def.AltFeet)
				node.Altitude = &alt
			}
			nodes = append(nodes, node)

		case "airspeed":
			node := sim.Node{Kind: sim.NodeSetAirspeed, Speed: math.SpeedFromKnots(def.SpeedKts)}
			if def.SpeedErrKts != nil {
				e := math.SpeedFromKnots(*def.SpeedErrKts)
				node.SpeedError = &e
			}
			nodes = append(nodes, node)

		case "altitude":
			if def.AltFeet == nil {
				return nil, fmt.Errorf("altitude node without alt_feet")
			}
			alt := math.LengthFromFeet(*def.AltFeet)
			node := sim.Node{Kind: sim.NodeStartSetAltitude, TargetAltitude: &alt, Expedite: def.Expedite}
			if def.AltErrFeet != nil {
				e := math.LengthFromFeet(*def.AltErrFeet)
				node.AltitudeError = &e
			}
			nodes = append(nodes, node)

		case "align", "short_final", "land":
			pair, err := sc.FindRunway(def.Runway.Aerodrome, def.Runway.Runway)
			if err != nil {
				return nil, err
			}
			kind := map[string]sim.NodeKind{
				"align": sim.NodeAlignRunway, "short_final": sim.NodeShortFinal,
				"land": sim.NodeVisualLanding,
			}[def.Kind]
			nodes = append(nodes, sim.Node{Kind: kind, Runway: pair.Forward, Expedite: def.Expedite})

		case "taxi":
			node := sim.Node{Kind: sim.NodeTaxi, Label: aviation.TaxiwayLabel(def.Taxiway)}
			if !def.HoldShort {
				node.Stop = sim.TaxiStopExhaust
			}
			nodes = append(nodes, node)

		default:
			return nil, fmt.Errorf("unknown route node kind %q", def.Kind)
		}
	}
	return nodes, nil
}

func buildSpawnTrigger(def *SpawnTriggerDef) (sim.SpawnTrigger, error) {
	switch def.Kind {
	case "", "disabled":
		return sim.SpawnTrigger{Kind: sim.SpawnDisabled}, nil
	case "periodic":
		return sim.SpawnTrigger{
			Kind:     sim.SpawnPeriodic,
			Interval: time.Duration(def.IntervalSeconds * float32(time.Second)),
		}, nil
	case "object_count":
		return sim.SpawnTrigger{Kind: sim.SpawnObjectCount, Threshold: def.Threshold}, nil
	default:
		return sim.SpawnTrigger{}, fmt.Errorf("unknown spawn trigger kind %q", def.Kind)
	}
}

func buildLimits(def *ObjectTypeDef) (aviation.NavLimits, aviation.TaxiLimits) {
	p := func(d ClimbProfileDef) aviation.ClimbProfile {
		return aviation.ClimbProfile{
			VertRate: math.SpeedFromFpm(d.VertRateFpm),
			Accel:    math.SpeedFromKnots(d.AccelKts).Div(time.Second),
			Decel:    math.SpeedFromKnots(d.DecelKts).Div(time.Second),
		}
	}
	navLimits := aviation.NavLimits{
		MinHorizSpeed:   math.SpeedFromKnots(def.MinIASKts),
		MaxYawSpeed:     math.AngularSpeedFromDegsPerSec(def.MaxYawDegPerSec),
		MaxYawAccel:     math.AngularAccelFromDegsPerSec2(def.MaxYawAccelDeg),
		MaxVertAccel:    math.SpeedFromFpm(def.MaxVertAccelFpm).Div(time.Second),
		ExpDescent:      p(def.Profiles[0]),
		StdDescent:      p(def.Profiles[1]),
		Level:           p(def.Profiles[2]),
		StdClimb:        p(def.Profiles[3]),
		ExpClimb:        p(def.Profiles[4]),
		AccelChangeRate: math.AccelRate(math.SpeedFromKnots(def.AccelChangeKts).Div(time.Second)),
		DragCoef:        def.DragCoef,
		TakeoffSpeed:    math.SpeedFromKnots(def.TakeoffKts),
		ShortFinalDist:  math.LengthFromNm(def.ShortFinalNm),
		ShortFinalSpeed: math.SpeedFromKnots(def.ShortFinalKts),
	}
	taxiLimits := aviation.TaxiLimits{
		BaseBraking: math.SpeedFromKnots(def.TaxiBrakingKts).Div(time.Second),
		Accel:       math.SpeedFromKnots(def.TaxiAccelKts).Div(time.Second),
		MaxSpeed:    math.SpeedFromKnots(def.TaxiMaxKts),
		MinSpeed:    math.SpeedFromKnots(def.TaxiMinKts),
		TurnRate:    math.AngularSpeedFromDegsPerSec(def.TurnDegPerSec),
		Width:       math.LengthFromMeters(def.WidthMeters),
		HalfLength:  math.LengthFromMeters(def.HalfLengthM),
	}
	return navLimits, taxiLimits
}

func resolveSpawnLoc(sc *Scenario, loc *SpawnLoc) (sim.SpawnLocation, error) {
	switch loc.Kind {
	case "airborne":
		return sim.SpawnLocation{
			Kind: sim.SpawnAirborne,
			Position: math.Vec3{loc.Position[0], loc.Position[1],
				float32(math.LengthFromFeet(loc.Position[2]))},
			Heading: math.HeadingFromDegrees(loc.HeadingDeg),
			IAS:     math.SpeedFromKnots(loc.IASKts),
		}, nil
	case "segment":
		segs, ok := sc.Taxiways[loc.Aerodrome+"/"+loc.Taxiway]
		if !ok || len(segs) == 0 {
			return sim.SpawnLocation{}, fmt.Errorf("%w: %s at %s",
				aviation.ErrUnknownSegment, loc.Taxiway, loc.Aerodrome)
		}
		return sim.SpawnLocation{
			Kind:      sim.SpawnOnSegment,
			Segment:   segs[0],
			Direction: aviation.AlphaToBeta,
		}, nil
	default:
		return sim.SpawnLocation{}, fmt.Errorf("unknown spawn location kind %q", loc.Kind)
	}
}

func buildSpawnSet(sc *Scenario, def *SpawnSetDef) (sim.SpawnSet, error) {
	typ, ok := sc.Types[def.Type]
	if !ok {
		return sim.SpawnSet{}, fmt.Errorf("%w: %q", aviation.ErrUnknownObjectType, def.Type)
	}
	if def.RoutePreset != "" && sc.World.RoutePreset(def.RoutePreset) == nil {
		return sim.SpawnSet{}, fmt.Errorf("%w: %q", aviation.ErrUnknownRoutePreset, def.RoutePreset)
	}
	loc, err := resolveSpawnLoc(sc, &def.Location)
	if err != nil {
		return sim.SpawnSet{}, err
	}
	navLimits, taxiLimits := buildLimits(&typ)
	return sim.SpawnSet{
		Weight:         def.Weight,
		CallsignPrefix: def.CallsignPrefix,
		NavLimits:      navLimits,
		TaxiLimits:     taxiLimits,
		Location:       loc,
		RoutePreset:    def.RoutePreset,
	}, nil
}

func placeInitialObject(sc *Scenario, def *InitialObject) error {
	w := sc.World
	typ, ok := sc.Types[def.Type]
	if !ok {
		return fmt.Errorf("%w: %q for %s", aviation.ErrUnknownObjectType, def.Type, def.Callsign)
	}
	if def.RoutePreset != "" && w.RoutePreset(def.RoutePreset) == nil {
		return fmt.Errorf("%w: %q for %s", aviation.ErrUnknownRoutePreset, def.RoutePreset, def.Callsign)
	}
	loc, err := resolveSpawnLoc(sc, &def.Location)
	if err != nil {
		return err
	}
	navLimits, taxiLimits := buildLimits(&typ)

	switch loc.Kind {
	case sim.SpawnAirborne:
		obj := w.CreateObject(def.Callsign, loc.Position)
		obj.NavLimits = &navLimits
		obj.TaxiLimits = &taxiLimits
		w.SetAirborne(obj, math.WithVertical3f(
			math.Scale2f(loc.Heading.Vec2(), float32(loc.IAS)), 0))
		if def.RoutePreset != "" {
			w.SendInstruction(obj.ID, sim.SelectRoute{Preset: def.RoutePreset})
		}
	case sim.SpawnOnSegment:
		seg := w.Segment(loc.Segment)
		fromID, _ := seg.ByDirection(loc.Direction)
		from := w.Endpoint(fromID)
		obj := w.CreateObject(def.Callsign,
			math.WithVertical3f(from.Position, float32(seg.Elevation)))
		obj.NavLimits = &navLimits
		obj.TaxiLimits = &taxiLimits
		w.SetOnGround(obj, loc.Segment, loc.Direction, taxi.ExactSpeed(0))
		if def.RoutePreset != "" {
			w.SendInstruction(obj.ID, sim.SelectRoute{Preset: def.RoutePreset})
		}
	}
	return nil
}
