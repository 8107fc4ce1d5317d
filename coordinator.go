package main

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/example/dual_signal_sim/core"
	"github.com/example/dual_signal_sim/hooks"
	"github.com/example/dual_signal_sim/stream"
)

// DefaultEmergencyInterval is the spacing of synchronized priority-vehicle
// injections, in steps.
const DefaultEmergencyInterval = 120

// StepFrame is the per-step broadcast assembled after both twins complete a
// step. Exactly one frame is published per completed step.
type StepFrame struct {
	Step     int                 `json:"step"`
	Adaptive []IntersectionState `json:"adaptive"`
	Baseline []IntersectionState `json:"baseline"`
	Metrics  MetricsSnapshot     `json:"metrics"`
}

// DualRunCoordinator owns exactly two twins sharing topology and seed and
// advances them in lockstep: all controller updates for a step complete
// before either simulator tick is issued, and both ticks complete before
// metrics are recorded. The coordinator's goroutine is the only writer of
// twin and controller state.
type DualRunCoordinator struct {
	adaptive *SimulationTwin
	baseline *SimulationTwin

	rng               *rand.Rand // route selection for synchronized spawns
	routeIDs          []string
	emergencyInterval int

	// spawnedSteps guards the interval boundaries already served, making the
	// spawn check idempotent if Step is re-entered for the same index.
	spawnedSteps map[int]bool

	metrics   *MetricsAggregator
	log       *DecisionLog
	publisher *stream.Publisher[StepFrame]
	broker    *hooks.Broker
	stepIndex int
}

// NewDualRunCoordinator wires two twins to shared metrics, log, and frame
// publisher. An emergencyInterval of 0 selects the default; negative disables
// spawning.
func NewDualRunCoordinator(adaptive, baseline *SimulationTwin, topo core.Topology, seed int64, emergencyInterval int, metrics *MetricsAggregator, log *DecisionLog, publisher *stream.Publisher[StepFrame], broker *hooks.Broker) *DualRunCoordinator {
	if emergencyInterval == 0 {
		emergencyInterval = DefaultEmergencyInterval
	}
	routeIDs := make([]string, 0, len(topo.Routes))
	for _, r := range topo.Routes {
		routeIDs = append(routeIDs, r.ID)
	}
	sort.Strings(routeIDs)
	return &DualRunCoordinator{
		adaptive:          adaptive,
		baseline:          baseline,
		rng:               rand.New(rand.NewSource(seed)),
		routeIDs:          routeIDs,
		emergencyInterval: emergencyInterval,
		spawnedSteps:      make(map[int]bool),
		metrics:           metrics,
		log:               log,
		publisher:         publisher,
		broker:            broker,
	}
}

// Step advances both twins by exactly one discrete unit and returns the
// combined metrics snapshot. Fatal errors (connection loss, desync) leave the
// run unusable; everything else was already recovered at the controller
// boundary.
func (c *DualRunCoordinator) Step() (MetricsSnapshot, error) {
	step := c.stepIndex

	if c.emergencyInterval > 0 && step >= c.emergencyInterval && step%c.emergencyInterval == 0 {
		if err := c.spawnPriorityVehicle(step); err != nil {
			var conflict *SpawnConflictError
			if errors.As(err, &conflict) {
				GetLogger().Warnf("step %d: %v", step, err)
			} else if IsFatal(err) {
				return MetricsSnapshot{}, err
			} else {
				GetLogger().Warnf("step %d: spawn failed: %v", step, err)
			}
		}
	}

	adaptiveMetrics, err := c.adaptive.UpdateControllers(step)
	if err != nil {
		return MetricsSnapshot{}, err
	}
	baselineMetrics, err := c.baseline.UpdateControllers(step)
	if err != nil {
		return MetricsSnapshot{}, err
	}

	if err := c.adaptive.Tick(); err != nil {
		return MetricsSnapshot{}, err
	}
	if err := c.baseline.Tick(); err != nil {
		return MetricsSnapshot{}, err
	}
	if c.adaptive.StepCount() != c.baseline.StepCount() {
		return MetricsSnapshot{}, &StepDesyncError{
			AdaptiveStep: c.adaptive.StepCount(),
			BaselineStep: c.baseline.StepCount(),
		}
	}

	adaptiveMetrics.Throughput = c.adaptive.Arrived()
	baselineMetrics.Throughput = c.baseline.Arrived()
	snapshot := c.metrics.Record(adaptiveMetrics, baselineMetrics)
	c.stepIndex++

	c.publisher.Publish(StepFrame{
		Step:     step,
		Adaptive: c.adaptive.Snapshots(),
		Baseline: c.baseline.Snapshots(),
		Metrics:  snapshot,
	})
	if err := c.broker.FireStepCompleted(&hooks.StepContext{Step: step}); err != nil {
		GetLogger().Warnf("step %d: hook: %v", step, err)
	}
	return snapshot, nil
}

// spawnPriorityVehicle injects one priority vehicle into both twins on the
// same route at the same step. A second attempt for a step already served is
// reported as a SpawnConflictError and ignored by the caller.
func (c *DualRunCoordinator) spawnPriorityVehicle(step int) error {
	if c.spawnedSteps[step] {
		return &SpawnConflictError{Step: step}
	}
	c.spawnedSteps[step] = true
	if len(c.routeIDs) == 0 {
		return fmt.Errorf("no routes available for priority vehicle")
	}
	routeID := c.routeIDs[c.rng.Intn(len(c.routeIDs))]

	vehicleID, errA := c.adaptive.Spawn(core.VehicleClassEmergency, routeID)
	_, errB := c.baseline.Spawn(core.VehicleClassEmergency, routeID)
	if errA != nil || errB != nil {
		// One-sided spawn failure skews the comparison for this encounter but
		// does not stop the run; the original drives on the same way.
		err := errors.Join(errA, errB)
		GetLogger().Warnf("step %d: priority spawn incomplete: %v", step, err)
		return err
	}

	GetLogger().Infof("step %d: priority vehicle %s on route %s (next in %d steps)",
		step, vehicleID, routeID, c.emergencyInterval)
	c.log.Append(DecisionRecord{
		Step:      step,
		Kind:      RecordSpawn,
		VehicleID: vehicleID,
		Detail:    fmt.Sprintf("route %s", routeID),
	})
	if err := c.broker.FireSpawn(&hooks.SpawnContext{Step: step, VehicleID: vehicleID, RouteID: routeID}); err != nil {
		GetLogger().Warnf("step %d: hook: %v", step, err)
	}
	return nil
}

// StepIndex returns the number of completed steps.
func (c *DualRunCoordinator) StepIndex() int { return c.stepIndex }

// Adaptive returns the adaptive twin.
func (c *DualRunCoordinator) Adaptive() *SimulationTwin { return c.adaptive }

// Baseline returns the baseline twin.
func (c *DualRunCoordinator) Baseline() *SimulationTwin { return c.baseline }

// Close tears both twins down best-effort: a failure on one side never
// prevents the other side's teardown. Errors are aggregated.
func (c *DualRunCoordinator) Close() error {
	return errors.Join(c.adaptive.Close(), c.baseline.Close())
}
