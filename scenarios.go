package main

import (
	"fmt"
	"sort"
	"sync"

	"github.com/example/dual_signal_sim/core"
)

// Scenario is a named, self-contained network description offered to
// callers: descriptive metadata for the catalog plus the immutable topology
// a run is built from.
type Scenario struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Code        string        `json:"code" yaml:"code"`
	Complexity  string        `json:"complexity" yaml:"complexity"`
	Agents      string        `json:"agents" yaml:"agents"`
	Description string        `json:"description" yaml:"description"`
	Badge       string        `json:"badge" yaml:"badge"`
	Features    []string      `json:"features" yaml:"features"`
	Topology    core.Topology `json:"-" yaml:"topology"`
}

// fourWay builds a standard four-approach intersection: straight and left
// lanes per arm, four phases (NS, NS-left, EW, EW-left), and the four-action
// space exposed to policies.
func fourWay(id string) core.Intersection {
	lane := func(arm string) string { return fmt.Sprintf("%s_%s", id, arm) }
	return core.Intersection{
		ID:         id,
		PhaseCount: 4,
		LanePhase: map[string]int{
			lane("N"):  0,
			lane("S"):  0,
			lane("NL"): 1,
			lane("SL"): 1,
			lane("E"):  2,
			lane("W"):  2,
			lane("EL"): 3,
			lane("WL"): 3,
		},
		ActionMap: []int{0, 1, 2, 3},
	}
}

// singleLaneRoutes emits one route per controlled lane of the intersections.
func singleLaneRoutes(intersections ...core.Intersection) []core.Route {
	var routes []core.Route
	for _, in := range intersections {
		for _, lane := range in.Lanes() {
			routes = append(routes, core.Route{
				ID:    "route_" + lane,
				Lanes: []string{lane},
			})
		}
	}
	return routes
}

// Custom scenarios registered at startup (scenario files) live alongside
// the built-in catalog and are selectable by id like any other entry.
var (
	customMu        sync.RWMutex
	customScenarios = map[string]Scenario{}
)

// RegisterScenario adds a custom scenario to the catalog under its id.
// Shadowing a built-in id is rejected; re-registering a custom id replaces
// the previous entry.
func RegisterScenario(s Scenario) error {
	if s.ID == "" {
		return &InvalidScenarioError{ScenarioID: s.ID, Reason: "missing scenario id"}
	}
	for _, b := range builtinScenarios() {
		if b.ID == s.ID {
			return &InvalidScenarioError{ScenarioID: s.ID, Reason: "shadows a built-in scenario"}
		}
	}
	customMu.Lock()
	defer customMu.Unlock()
	customScenarios[s.ID] = s
	return nil
}

// GetScenarios returns the catalog: built-in scenarios followed by the
// registered custom ones in id order.
func GetScenarios() []Scenario {
	scenarios := builtinScenarios()

	customMu.RLock()
	defer customMu.RUnlock()
	ids := make([]string, 0, len(customScenarios))
	for id := range customScenarios {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		scenarios = append(scenarios, customScenarios[id])
	}
	return scenarios
}

func builtinScenarios() []Scenario {
	single := fourWay("tl_center")

	gridIDs := []string{"grid_nw", "grid_ne", "grid_sw", "grid_se"}
	grid := make([]core.Intersection, len(gridIDs))
	for i, id := range gridIDs {
		grid[i] = fourWay(id)
	}
	gridRoutes := singleLaneRoutes(grid...)
	// A couple of multi-junction trips exercise cross-intersection routing.
	gridRoutes = append(gridRoutes,
		core.Route{ID: "route_cross_west_east", Lanes: []string{"grid_nw_E", "grid_ne_E"}},
		core.Route{ID: "route_cross_north_south", Lanes: []string{"grid_nw_S", "grid_sw_S"}},
	)

	hospital := fourWay("hosmat_junction")
	service := fourWay("hebbal_service")

	return []Scenario{
		{
			ID:          "single",
			Name:        "JUST ONE INTERSECTION",
			Code:        "SCENARIO_001",
			Complexity:  "LOW",
			Agents:      "01",
			Description: "Peak-hour management for a single high-density four-way intersection. Ideal for testing baseline heuristic measures.",
			Badge:       "CRITICAL",
			Features:    []string{"Deploy Logic Immediately", "Single Junction Analysis", "High-Density Traffic"},
			Topology: core.Topology{
				Intersections: []core.Intersection{single},
				Routes:        singleLaneRoutes(single),
			},
		},
		{
			ID:          "grid",
			Name:        "FOUR-JUNCTION GRID",
			Code:        "SCENARIO_012",
			Complexity:  "HIGH",
			Agents:      "04",
			Description: "Grid network simulation. Orchestrate traffic across multiple junctions with synchronized adaptive agents.",
			Badge:       "HIGH LOAD",
			Features:    []string{"Network Coordination", "Multi-Junction Optimization", "Cross-Junction Routes"},
			Topology: core.Topology{
				Intersections: grid,
				Routes:        gridRoutes,
			},
		},
		{
			ID:          "hospital_junction",
			Name:        "HOSPITAL ZONE JUNCTION",
			Code:        "SCENARIO_BLR_002",
			Complexity:  "HIGH",
			Agents:      "01",
			Description: "Hospital-adjacent junction with a specific focus on ambulance priority and mixed vehicle dynamics.",
			Badge:       "REAL WORLD",
			Features:    []string{"Ambulance Priority", "Hospital Zone Logic", "Mixed Vehicle Types"},
			Topology: core.Topology{
				Intersections: []core.Intersection{hospital},
				Routes:        singleLaneRoutes(hospital),
			},
		},
		{
			ID:          "service_road",
			Name:        "SERVICE ROAD JUNCTION",
			Code:        "SCENARIO_BLR_004",
			Complexity:  "HIGH",
			Agents:      "01",
			Description: "Service road junction under brutal congestion with heavy bus and truck flow.",
			Badge:       "HEAVY FLOW",
			Features:    []string{"Lane Discipline Issues", "Heavy Bus/Truck Flow", "Sustained Saturation"},
			Topology: core.Topology{
				Intersections: []core.Intersection{service},
				Routes:        singleLaneRoutes(service),
			},
		},
	}
}

// ScenarioByID looks a scenario up in the catalog, built-in or registered.
func ScenarioByID(id string) (Scenario, bool) {
	for _, s := range builtinScenarios() {
		if s.ID == id {
			return s, true
		}
	}
	customMu.RLock()
	defer customMu.RUnlock()
	s, ok := customScenarios[id]
	return s, ok
}
