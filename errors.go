package main

import (
	"errors"
	"fmt"
)

// ErrorCode classifies run failures by severity and origin.
type ErrorCode int

const (
	// ErrCodeInvalidScenario rejects bad initialization input before any twin exists.
	ErrCodeInvalidScenario ErrorCode = iota
	// ErrCodeConnection means a simulator connection is unusable; fatal to the affected twin.
	ErrCodeConnection
	// ErrCodePhaseMapping marks a topology inconsistency; recovered per controller.
	ErrCodePhaseMapping
	// ErrCodeEmergencyTimeout means a tracked priority vehicle never cleared; recovered.
	ErrCodeEmergencyTimeout
	// ErrCodeStepDesync means the twins' step counts diverged; fatal to the run.
	ErrCodeStepDesync
	// ErrCodeSpawnConflict marks a duplicate spawn attempt at the same boundary; recovered.
	ErrCodeSpawnConflict
)

// InvalidScenarioError reports an unknown or malformed scenario at initialize time.
type InvalidScenarioError struct {
	ScenarioID string
	Reason     string
}

func (e *InvalidScenarioError) Error() string {
	return fmt.Sprintf("invalid scenario %q: %s", e.ScenarioID, e.Reason)
}

// ConnectionError reports an unusable simulator connection.
type ConnectionError struct {
	Twin string
	Op   string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("twin %s: connection %s failed: %v", e.Twin, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// PhaseMappingError reports a controlled lane with no phase mapping.
type PhaseMappingError struct {
	IntersectionID string
	LaneID         string
}

func (e *PhaseMappingError) Error() string {
	return fmt.Sprintf("intersection %s: no phase mapping for lane %s", e.IntersectionID, e.LaneID)
}

// EmergencyTimeoutError reports a preempted vehicle that never cleared the
// intersection within the fail-safe window.
type EmergencyTimeoutError struct {
	IntersectionID string
	VehicleID      string
	HeldSteps      int
}

func (e *EmergencyTimeoutError) Error() string {
	return fmt.Sprintf("intersection %s: emergency hold for vehicle %s timed out after %d steps",
		e.IntersectionID, e.VehicleID, e.HeldSteps)
}

// StepDesyncError reports diverged step counters between the two twins.
// Metrics comparison is only meaningful step-aligned, so this is fatal.
type StepDesyncError struct {
	AdaptiveStep int
	BaselineStep int
}

func (e *StepDesyncError) Error() string {
	return fmt.Sprintf("twins out of lockstep: adaptive at step %d, baseline at step %d",
		e.AdaptiveStep, e.BaselineStep)
}

// SpawnConflictError reports a second spawn attempt at an interval boundary
// already served. The duplicate is ignored.
type SpawnConflictError struct {
	Step int
}

func (e *SpawnConflictError) Error() string {
	return fmt.Sprintf("priority vehicle already spawned at step %d", e.Step)
}

// IsFatal reports whether the error must terminate the run rather than being
// recovered at the controller boundary.
func IsFatal(err error) bool {
	var desync *StepDesyncError
	var conn *ConnectionError
	return errors.As(err, &desync) || errors.As(err, &conn)
}
