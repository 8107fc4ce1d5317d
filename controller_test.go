package main

import (
	"context"
	"errors"
	"testing"

	"github.com/example/dual_signal_sim/core"
	"github.com/example/dual_signal_sim/policy"
)

func testIntersection() core.Intersection {
	return core.Intersection{
		ID:         "J1",
		PhaseCount: 4,
		LanePhase: map[string]int{
			"N": 0, "S": 0,
			"NL": 1,
			"E":  2, "W": 2,
			"EL": 3,
		},
		ActionMap: []int{0, 1, 2, 3},
	}
}

func fixedActionPolicy(action int) policy.DecisionPolicy {
	return policy.DecisionFunc(func(ctx context.Context, obs core.Observation) (int, error) {
		return action, nil
	})
}

func emptyObs(step int) core.Observation {
	return core.Observation{IntersectionID: "J1", Step: step}
}

func obsWithVehicle(step int, lane string, v core.Vehicle) core.Observation {
	return core.Observation{
		IntersectionID: "J1",
		Step:           step,
		Lanes: []core.LaneObservation{
			{LaneID: lane, QueueLength: 1, Vehicles: []core.Vehicle{v}},
		},
	}
}

func countRecords(log *DecisionLog, kind RecordKind) int {
	count := 0
	for _, rec := range log.Recent(0) {
		if rec.Kind == kind {
			count++
		}
	}
	return count
}

func TestControllerHoldsPhaseWhenDecisionMatches(t *testing.T) {
	log := NewDecisionLog()
	ctrl := NewTrafficSignalController("adaptive", testIntersection(), fixedActionPolicy(0), log, ControllerConfig{})

	for step := 1; step <= 50; step++ {
		cmd := ctrl.Update(step, emptyObs(step))
		if cmd != 0 {
			t.Fatalf("step %d: expected phase 0, got %d", step, cmd)
		}
	}
	if ctrl.Mode() != ModeNormal {
		t.Fatalf("expected NORMAL mode, got %s", ctrl.Mode())
	}
	if got := countRecords(log, RecordDecision); got != 5 {
		t.Fatalf("expected 5 decisions over 50 steps, got %d", got)
	}
}

func TestControllerYellowPrecedesPhaseChange(t *testing.T) {
	log := NewDecisionLog()
	ctrl := NewTrafficSignalController("adaptive", testIntersection(), fixedActionPolicy(2), log, ControllerConfig{})

	for step := 1; step <= 9; step++ {
		if cmd := ctrl.Update(step, emptyObs(step)); cmd != 0 {
			t.Fatalf("step %d: expected phase 0 before first decision, got %d", step, cmd)
		}
	}

	// Decision fires at step 10 and starts the clearance interval.
	for step := 10; step <= 13; step++ {
		if cmd := ctrl.Update(step, emptyObs(step)); cmd != core.PhaseClearance {
			t.Fatalf("step %d: expected clearance, got %d", step, cmd)
		}
	}
	if ctrl.Mode() != ModeYellowTransition {
		t.Fatalf("expected YELLOW_TRANSITION, got %s", ctrl.Mode())
	}

	if cmd := ctrl.Update(14, emptyObs(14)); cmd != 2 {
		t.Fatalf("step 14: expected phase 2 after yellow, got %d", cmd)
	}
	if ctrl.CurrentPhase() != 2 || ctrl.Mode() != ModeNormal {
		t.Fatalf("expected phase 2 NORMAL, got phase %d mode %s", ctrl.CurrentPhase(), ctrl.Mode())
	}

	// Decision cadence restarts after the transition; the policy keeps asking
	// for phase 2 so no further yellow appears.
	for step := 15; step <= 40; step++ {
		if cmd := ctrl.Update(step, emptyObs(step)); cmd != 2 {
			t.Fatalf("step %d: expected steady phase 2, got %d", step, cmd)
		}
	}
}

func TestControllerEmergencySequence(t *testing.T) {
	log := NewDecisionLog()
	ctrl := NewTrafficSignalController("adaptive", testIntersection(), fixedActionPolicy(0), log, ControllerConfig{})

	for step := 1; step <= 24; step++ {
		ctrl.Update(step, emptyObs(step))
	}

	ambulance := core.Vehicle{ID: "emergency_24", Class: core.VehicleClassEmergency, DistanceToStop: 50}

	// Detection: the controller enters the shortened clearance immediately.
	if cmd := ctrl.Update(25, obsWithVehicle(25, "E", ambulance)); cmd != core.PhaseClearance {
		t.Fatalf("step 25: expected clearance on detection, got %d", cmd)
	}
	if ctrl.Mode() != ModeEmergencyYellow || !ctrl.EmergencyActive() {
		t.Fatalf("expected EMERGENCY_YELLOW with active session, got %s", ctrl.Mode())
	}

	// One step later the required phase is granted.
	if cmd := ctrl.Update(26, obsWithVehicle(26, "E", ambulance)); cmd != 2 {
		t.Fatalf("step 26: expected phase 2, got %d", cmd)
	}
	if ctrl.Mode() != ModeEmergencyGreen {
		t.Fatalf("expected EMERGENCY_GREEN, got %s", ctrl.Mode())
	}

	// Phase holds while the vehicle is still observed.
	for step := 27; step <= 30; step++ {
		if cmd := ctrl.Update(step, obsWithVehicle(step, "E", ambulance)); cmd != 2 {
			t.Fatalf("step %d: expected held phase 2, got %d", step, cmd)
		}
	}

	// Vehicle clears; the controller resolves back to normal operation.
	if cmd := ctrl.Update(31, emptyObs(31)); cmd != 2 {
		t.Fatalf("step 31: expected phase 2 after resolution, got %d", cmd)
	}
	if ctrl.Mode() != ModeNormal || ctrl.EmergencyActive() {
		t.Fatalf("expected NORMAL with no active session, got %s", ctrl.Mode())
	}
	if ctrl.PreemptionCount() != 1 {
		t.Fatalf("expected exactly 1 preemption, got %d", ctrl.PreemptionCount())
	}
	if got := countRecords(log, RecordDetection); got != 1 {
		t.Fatalf("expected 1 detection record, got %d", got)
	}
	if got := countRecords(log, RecordPreemptionStart); got != 1 {
		t.Fatalf("expected 1 preemption_start record, got %d", got)
	}
	if got := countRecords(log, RecordPreemptionEnd); got != 1 {
		t.Fatalf("expected 1 preemption_end record, got %d", got)
	}
}

func TestControllerEmergencySamePhaseNoPreemption(t *testing.T) {
	log := NewDecisionLog()
	ctrl := NewTrafficSignalController("adaptive", testIntersection(), fixedActionPolicy(0), log, ControllerConfig{})

	ambulance := core.Vehicle{ID: "emergency_1", Class: core.VehicleClassEmergency, DistanceToStop: 30}
	for step := 1; step <= 5; step++ {
		if cmd := ctrl.Update(step, obsWithVehicle(step, "N", ambulance)); cmd != 0 {
			t.Fatalf("step %d: expected phase 0, got %d", step, cmd)
		}
	}
	if ctrl.Mode() != ModeNormal || ctrl.PreemptionCount() != 0 {
		t.Fatalf("vehicle already served must not preempt: mode %s count %d", ctrl.Mode(), ctrl.PreemptionCount())
	}
}

func TestControllerEmergencyOutOfRangeIgnored(t *testing.T) {
	log := NewDecisionLog()
	ctrl := NewTrafficSignalController("adaptive", testIntersection(), fixedActionPolicy(0), log, ControllerConfig{DetectionRadius: 100})

	far := core.Vehicle{ID: "emergency_far", Class: core.VehicleClassEmergency, DistanceToStop: 250}
	ctrl.Update(1, obsWithVehicle(1, "E", far))
	if ctrl.Mode() != ModeNormal {
		t.Fatalf("out-of-range vehicle must not preempt, got %s", ctrl.Mode())
	}
}

func TestControllerEmergencyTimeout(t *testing.T) {
	log := NewDecisionLog()
	cfg := ControllerConfig{EmergencyTimeout: 5}
	ctrl := NewTrafficSignalController("adaptive", testIntersection(), fixedActionPolicy(0), log, cfg)

	stuck := core.Vehicle{ID: "emergency_stuck", Class: core.VehicleClassEmergency, DistanceToStop: 10}
	// Step 1 enters EMERGENCY_YELLOW, step 2 grants the phase, the timeout
	// window then runs out with the vehicle never clearing.
	for step := 1; step <= 7; step++ {
		ctrl.Update(step, obsWithVehicle(step, "E", stuck))
	}
	if ctrl.Mode() != ModeNormal {
		t.Fatalf("expected fail-safe return to NORMAL, got %s", ctrl.Mode())
	}
	if ctrl.PreemptionCount() != 1 {
		t.Fatalf("expected 1 preemption, got %d", ctrl.PreemptionCount())
	}
	if got := countRecords(log, RecordError); got != 1 {
		t.Fatalf("expected 1 recovered timeout error, got %d", got)
	}
}

func TestControllerNoSecondPreemptionAfterTimeout(t *testing.T) {
	log := NewDecisionLog()
	cfg := ControllerConfig{EmergencyTimeout: 5}
	ctrl := NewTrafficSignalController("adaptive", testIntersection(), fixedActionPolicy(0), log, cfg)

	stuck := core.Vehicle{ID: "emergency_stuck", Class: core.VehicleClassEmergency, DistanceToStop: 10}
	// The session times out at step 7 with the vehicle still in range. The
	// next decision then moves the phase away from the one the vehicle
	// needs, which must not restart the session for the same vehicle.
	for step := 1; step <= 30; step++ {
		ctrl.Update(step, obsWithVehicle(step, "E", stuck))
	}
	if ctrl.Mode() != ModeNormal {
		t.Fatalf("expected NORMAL, got %s", ctrl.Mode())
	}
	if ctrl.PreemptionCount() != 1 {
		t.Fatalf("expected exactly 1 preemption for one vehicle, got %d", ctrl.PreemptionCount())
	}
	if got := countRecords(log, RecordPreemptionStart); got != 1 {
		t.Fatalf("expected 1 preemption_start record, got %d", got)
	}
	// The decision cadence resumed and moved the phase off the emergency one.
	if cmd := ctrl.Update(31, emptyObs(31)); cmd != 0 {
		t.Fatalf("expected phase 0 after resumed decisions, got %d", cmd)
	}
}

func TestControllerPolicyErrorHoldsPhase(t *testing.T) {
	log := NewDecisionLog()
	failing := policy.DecisionFunc(func(ctx context.Context, obs core.Observation) (int, error) {
		return 0, errors.New("model unavailable")
	})
	ctrl := NewTrafficSignalController("adaptive", testIntersection(), failing, log, ControllerConfig{})

	for step := 1; step <= 10; step++ {
		if cmd := ctrl.Update(step, emptyObs(step)); cmd != 0 {
			t.Fatalf("step %d: expected held phase 0, got %d", step, cmd)
		}
	}
	if ctrl.Mode() != ModeNormal {
		t.Fatalf("expected NORMAL after recovered policy error, got %s", ctrl.Mode())
	}
	if got := countRecords(log, RecordError); got != 1 {
		t.Fatalf("expected 1 error record, got %d", got)
	}
	if got := countRecords(log, RecordDecision); got != 0 {
		t.Fatalf("expected no decision record on failure, got %d", got)
	}
}

func TestControllerEmergencyOverridesYellowTransition(t *testing.T) {
	log := NewDecisionLog()
	ctrl := NewTrafficSignalController("adaptive", testIntersection(), fixedActionPolicy(2), log, ControllerConfig{})

	for step := 1; step <= 10; step++ {
		ctrl.Update(step, emptyObs(step))
	}
	if ctrl.Mode() != ModeYellowTransition {
		t.Fatalf("expected YELLOW_TRANSITION at step 10, got %s", ctrl.Mode())
	}

	ambulance := core.Vehicle{ID: "emergency_11", Class: core.VehicleClassEmergency, DistanceToStop: 20}
	ctrl.Update(11, obsWithVehicle(11, "EL", ambulance))
	if ctrl.Mode() != ModeEmergencyYellow {
		t.Fatalf("emergency must override pending transition, got %s", ctrl.Mode())
	}
	if cmd := ctrl.Update(12, obsWithVehicle(12, "EL", ambulance)); cmd != 3 {
		t.Fatalf("step 12: expected emergency phase 3, got %d", cmd)
	}
}

func TestControllerUnmappedLaneReportedOnce(t *testing.T) {
	log := NewDecisionLog()
	ctrl := NewTrafficSignalController("adaptive", testIntersection(), fixedActionPolicy(0), log, ControllerConfig{})

	ghost := core.Vehicle{ID: "emergency_x", Class: core.VehicleClassEmergency, DistanceToStop: 10}
	for step := 1; step <= 3; step++ {
		if cmd := ctrl.Update(step, obsWithVehicle(step, "UNKNOWN", ghost)); cmd != 0 {
			t.Fatalf("step %d: expected phase 0, got %d", step, cmd)
		}
	}
	if got := countRecords(log, RecordError); got != 1 {
		t.Fatalf("expected mapping error reported once, got %d", got)
	}
	if ctrl.Mode() != ModeNormal {
		t.Fatalf("expected NORMAL, got %s", ctrl.Mode())
	}
}

func TestControllerReset(t *testing.T) {
	log := NewDecisionLog()
	ctrl := NewTrafficSignalController("adaptive", testIntersection(), fixedActionPolicy(2), log, ControllerConfig{})

	ambulance := core.Vehicle{ID: "emergency_1", Class: core.VehicleClassEmergency, DistanceToStop: 10}
	ctrl.Update(1, obsWithVehicle(1, "E", ambulance))
	ctrl.Update(2, obsWithVehicle(2, "E", ambulance))
	ctrl.Update(3, emptyObs(3))

	ctrl.Reset()
	if ctrl.Mode() != ModeNormal || ctrl.CurrentPhase() != 0 || ctrl.PreemptionCount() != 0 || ctrl.EmergencyActive() {
		t.Fatalf("reset did not restore initial state: mode=%s phase=%d count=%d",
			ctrl.Mode(), ctrl.CurrentPhase(), ctrl.PreemptionCount())
	}
}
