package core

import (
	"fmt"
	"sort"
)

// Intersection is the static description of one controlled junction: the
// physical phases it exposes, which phase grants each approach lane
// right-of-way, and the discrete action space offered to decision policies.
type Intersection struct {
	ID         string         `json:"id" yaml:"id"`
	PhaseCount int            `json:"phaseCount" yaml:"phases"`
	LanePhase  map[string]int `json:"lanePhase" yaml:"lane_phase"`   // lane id -> green phase
	ActionMap  []int          `json:"actionMap" yaml:"action_phase"` // action index -> phase index
}

// PhaseForLane returns the phase granting the lane right-of-way.
func (in Intersection) PhaseForLane(laneID string) (int, bool) {
	phase, ok := in.LanePhase[laneID]
	return phase, ok
}

// PhaseForAction maps a policy action index onto a physical phase. Actions
// outside the table fall back to phase 0, mirroring how an out-of-range model
// output must never crash the controller.
func (in Intersection) PhaseForAction(action int) int {
	if action < 0 || action >= len(in.ActionMap) {
		return 0
	}
	return in.ActionMap[action]
}

// Lanes returns the controlled lane ids in deterministic order.
func (in Intersection) Lanes() []string {
	lanes := make([]string, 0, len(in.LanePhase))
	for lane := range in.LanePhase {
		lanes = append(lanes, lane)
	}
	sort.Strings(lanes)
	return lanes
}

// Route is an ordered trip through the network, expressed as the approach
// lanes it traverses.
type Route struct {
	ID    string   `json:"id" yaml:"id"`
	Lanes []string `json:"lanes" yaml:"lanes"`
}

// Topology is the immutable static description of an intersection network.
// Loaded once per run; never mutated afterwards.
type Topology struct {
	Intersections []Intersection `json:"intersections" yaml:"intersections"`
	Routes        []Route        `json:"routes" yaml:"routes"`
	LaneLength    float64        `json:"laneLength" yaml:"lane_length"` // uniform approach length, distance units
}

// IntersectionIDs returns all intersection ids in declaration order.
func (t Topology) IntersectionIDs() []string {
	ids := make([]string, len(t.Intersections))
	for i, in := range t.Intersections {
		ids[i] = in.ID
	}
	return ids
}

// Intersection looks up an intersection by id.
func (t Topology) Intersection(id string) (Intersection, bool) {
	for _, in := range t.Intersections {
		if in.ID == id {
			return in, true
		}
	}
	return Intersection{}, false
}

// Validate checks internal consistency: every intersection needs at least one
// phase, one controlled lane, a non-empty action map, and every lane-phase and
// action-phase entry must reference a phase that exists. Routes must traverse
// known lanes.
func (t Topology) Validate() error {
	if len(t.Intersections) == 0 {
		return fmt.Errorf("topology has no intersections")
	}
	known := make(map[string]bool)
	for _, in := range t.Intersections {
		if in.ID == "" {
			return fmt.Errorf("intersection with empty id")
		}
		if in.PhaseCount <= 0 {
			return fmt.Errorf("intersection %s: phase count must be positive", in.ID)
		}
		if len(in.LanePhase) == 0 {
			return fmt.Errorf("intersection %s: no controlled lanes", in.ID)
		}
		if len(in.ActionMap) == 0 {
			return fmt.Errorf("intersection %s: empty action map", in.ID)
		}
		for lane, phase := range in.LanePhase {
			if phase < 0 || phase >= in.PhaseCount {
				return fmt.Errorf("intersection %s: lane %s maps to unknown phase %d", in.ID, lane, phase)
			}
			known[lane] = true
		}
		for action, phase := range in.ActionMap {
			if phase < 0 || phase >= in.PhaseCount {
				return fmt.Errorf("intersection %s: action %d maps to unknown phase %d", in.ID, action, phase)
			}
		}
	}
	if len(t.Routes) == 0 {
		return fmt.Errorf("topology has no routes")
	}
	for _, r := range t.Routes {
		if len(r.Lanes) == 0 {
			return fmt.Errorf("route %s has no lanes", r.ID)
		}
		for _, lane := range r.Lanes {
			if !known[lane] {
				return fmt.Errorf("route %s references unknown lane %s", r.ID, lane)
			}
		}
	}
	return nil
}
