package main

import (
	"sort"

	"github.com/example/dual_signal_sim/core"
	"github.com/example/dual_signal_sim/policy"
)

// SimulatorConnection is the contract this core consumes from the external
// microscopic motion simulator. Calls may block on a process or network
// boundary; implementations report failures as plain errors and the caller
// classifies them. A closed connection must fail all subsequent calls.
type SimulatorConnection interface {
	// ApplyPhase submits a phase command for one intersection.
	// core.PhaseClearance commands the all-clearance (yellow) aspect.
	ApplyPhase(intersectionID string, phase int) error
	// Advance moves the simulation forward one discrete tick.
	Advance() error
	// Observe returns the current per-lane readings for one intersection.
	Observe(intersectionID string) (core.Observation, error)
	// SpawnVehicle injects a vehicle of the given class onto a route and
	// returns its id. Ids are deterministic for a given seed and step.
	SpawnVehicle(class core.VehicleClass, routeID string) (string, error)
	// ArrivedCount reports vehicles that completed their route during the
	// most recent Advance.
	ArrivedCount() int
	// Close releases the connection. Closing twice is an error.
	Close() error
}

// TwinStepMetrics is the per-step reading for one twin, summed across its
// controllers before averaging at the aggregator.
type TwinStepMetrics struct {
	Step           int     `json:"step"`
	AvgWaitingTime float64 `json:"avgWaitingTime"`
	AvgQueueLength float64 `json:"avgQueueLength"`
	Throughput     int     `json:"throughput"`
}

// SimulationTwin is one simulator connection plus the controllers attached to
// it. Two twins share step semantics but never controller state.
type SimulationTwin struct {
	name        string
	conn        SimulatorConnection
	controllers map[string]*TrafficSignalController
	order       []string
	stepCount   int
}

// NewSimulationTwin builds a twin with one controller per intersection, each
// bound to its own policy instance from the factory.
func NewSimulationTwin(name string, conn SimulatorConnection, topo core.Topology, factory policy.Factory, log *DecisionLog, cfg ControllerConfig) *SimulationTwin {
	controllers := make(map[string]*TrafficSignalController, len(topo.Intersections))
	order := make([]string, 0, len(topo.Intersections))
	for _, in := range topo.Intersections {
		controllers[in.ID] = NewTrafficSignalController(name, in, factory(in), log, cfg)
		order = append(order, in.ID)
	}
	sort.Strings(order)
	return &SimulationTwin{
		name:        name,
		conn:        conn,
		controllers: controllers,
		order:       order,
	}
}

// UpdateControllers runs the per-controller update for every intersection and
// submits the resulting phase commands. Controller-level failures were
// already recovered inside Update; errors surfacing here are connection
// failures and are fatal to the twin.
func (t *SimulationTwin) UpdateControllers(step int) (TwinStepMetrics, error) {
	var waitSum, queueSum float64
	for _, id := range t.order {
		ctrl := t.controllers[id]
		obs, err := t.conn.Observe(id)
		if err != nil {
			return TwinStepMetrics{}, &ConnectionError{Twin: t.name, Op: "observe", Err: err}
		}
		cmd := ctrl.Update(step, obs)
		if err := t.conn.ApplyPhase(id, cmd); err != nil {
			return TwinStepMetrics{}, &ConnectionError{Twin: t.name, Op: "applyPhase", Err: err}
		}
		waitSum += obs.AvgWaitingTime()
		queueSum += float64(obs.TotalQueue())
	}
	n := float64(len(t.order))
	if n == 0 {
		n = 1
	}
	return TwinStepMetrics{
		Step:           step,
		AvgWaitingTime: waitSum / n,
		AvgQueueLength: queueSum / n,
	}, nil
}

// Tick advances the twin's simulator by one discrete unit and increments the
// twin's step counter only on success.
func (t *SimulationTwin) Tick() error {
	if err := t.conn.Advance(); err != nil {
		return &ConnectionError{Twin: t.name, Op: "advance", Err: err}
	}
	t.stepCount++
	return nil
}

// Spawn injects a priority vehicle onto the given route.
func (t *SimulationTwin) Spawn(class core.VehicleClass, routeID string) (string, error) {
	id, err := t.conn.SpawnVehicle(class, routeID)
	if err != nil {
		return "", &ConnectionError{Twin: t.name, Op: "spawnVehicle", Err: err}
	}
	return id, nil
}

// Arrived reports vehicles that completed routes during the last tick.
func (t *SimulationTwin) Arrived() int { return t.conn.ArrivedCount() }

// StepCount returns how many ticks have completed.
func (t *SimulationTwin) StepCount() int { return t.stepCount }

// Name returns the twin label ("adaptive" or "baseline").
func (t *SimulationTwin) Name() string { return t.name }

// Controller returns the controller for an intersection id, or nil.
func (t *SimulationTwin) Controller(id string) *TrafficSignalController {
	return t.controllers[id]
}

// Snapshots returns per-intersection state in stable order for the live frame.
func (t *SimulationTwin) Snapshots() []IntersectionState {
	out := make([]IntersectionState, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.controllers[id].Snapshot())
	}
	return out
}

// Close releases the twin's simulator connection.
func (t *SimulationTwin) Close() error {
	if err := t.conn.Close(); err != nil {
		return &ConnectionError{Twin: t.name, Op: "close", Err: err}
	}
	return nil
}
