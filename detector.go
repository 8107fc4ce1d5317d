package main

import (
	"github.com/example/dual_signal_sim/core"
)

// DefaultDetectionRadius is the distance within which a priority vehicle
// triggers preemption, in distance units from the stop line.
const DefaultDetectionRadius = 100.0

// EmergencyDetector scans lane observations for priority-class vehicles and
// derives the phase each one requires from the static lane->phase map.
type EmergencyDetector struct {
	intersection core.Intersection
	radius       float64

	// Lanes whose missing phase mapping has already been reported. A broken
	// mapping is a topology defect; repeating the error every step would
	// drown the decision log.
	warnedLanes map[string]bool
}

// NewEmergencyDetector creates a detector for one intersection. A radius of 0
// selects DefaultDetectionRadius.
func NewEmergencyDetector(intersection core.Intersection, radius float64) *EmergencyDetector {
	if radius <= 0 {
		radius = DefaultDetectionRadius
	}
	return &EmergencyDetector{
		intersection: intersection,
		radius:       radius,
		warnedLanes:  make(map[string]bool),
	}
}

// Detect returns the nearest priority vehicle within the detection radius,
// or nil when none is in range. A priority vehicle on a lane with no phase
// mapping yields a PhaseMappingError exactly once per lane; the lane is
// skipped afterwards so the rest of the intersection keeps working.
func (d *EmergencyDetector) Detect(step int, obs core.Observation) (*core.EmergencyEvent, error) {
	var nearest *core.EmergencyEvent
	for _, lane := range obs.Lanes {
		for _, v := range lane.Vehicles {
			if v.Class != core.VehicleClassEmergency {
				continue
			}
			phase, ok := d.intersection.PhaseForLane(lane.LaneID)
			if !ok {
				if d.warnedLanes[lane.LaneID] {
					continue
				}
				d.warnedLanes[lane.LaneID] = true
				return nil, &PhaseMappingError{
					IntersectionID: d.intersection.ID,
					LaneID:         lane.LaneID,
				}
			}
			if v.DistanceToStop > d.radius {
				continue
			}
			if nearest == nil || v.DistanceToStop < nearest.Distance {
				nearest = &core.EmergencyEvent{
					VehicleID:      v.ID,
					LaneID:         lane.LaneID,
					Distance:       v.DistanceToStop,
					RequiredPhase:  phase,
					DetectedAtStep: step,
				}
			}
		}
	}
	return nearest, nil
}
