package main

import (
	"context"
	"fmt"
	"time"

	"github.com/example/dual_signal_sim/core"
	"github.com/example/dual_signal_sim/hooks"
	"github.com/example/dual_signal_sim/policy"
)

// ControllerMode is the state of the per-intersection signal state machine.
type ControllerMode int

const (
	// ModeNormal runs the policy-driven decision cadence.
	ModeNormal ControllerMode = iota
	// ModeYellowTransition is the clearance interval before a normal phase change.
	ModeYellowTransition
	// ModeEmergencyYellow is the shortened clearance before an emergency phase change.
	ModeEmergencyYellow
	// ModeEmergencyGreen holds the phase required by a tracked priority vehicle.
	ModeEmergencyGreen
)

func (m ControllerMode) String() string {
	switch m {
	case ModeNormal:
		return "NORMAL"
	case ModeYellowTransition:
		return "YELLOW_TRANSITION"
	case ModeEmergencyYellow:
		return "EMERGENCY_YELLOW"
	case ModeEmergencyGreen:
		return "EMERGENCY_GREEN"
	default:
		return fmt.Sprintf("ControllerMode(%d)", int(m))
	}
}

// Default signal timing, in steps.
const (
	DefaultYellowDuration          = 4
	DefaultEmergencyYellowDuration = 1
	DefaultDecisionInterval        = 10
	DefaultEmergencyTimeout        = 180
	DefaultPolicyTimeout           = 2 * time.Second
)

// ControllerConfig carries the per-controller timing parameters.
type ControllerConfig struct {
	DecisionInterval        int
	YellowDuration          int
	EmergencyYellowDuration int
	// EmergencyTimeout is the fail-safe bound on EMERGENCY_GREEN: if the
	// tracked vehicle never clears, the controller returns to NORMAL after
	// this many steps.
	EmergencyTimeout int
	DetectionRadius  float64
	PolicyTimeout    time.Duration
	// Broker receives preemption lifecycle events; nil disables hooks.
	Broker *hooks.Broker
}

func (c ControllerConfig) withDefaults() ControllerConfig {
	if c.DecisionInterval <= 0 {
		c.DecisionInterval = DefaultDecisionInterval
	}
	if c.YellowDuration <= 0 {
		c.YellowDuration = DefaultYellowDuration
	}
	if c.EmergencyYellowDuration <= 0 {
		c.EmergencyYellowDuration = DefaultEmergencyYellowDuration
	}
	if c.EmergencyTimeout <= 0 {
		c.EmergencyTimeout = DefaultEmergencyTimeout
	}
	if c.DetectionRadius <= 0 {
		c.DetectionRadius = DefaultDetectionRadius
	}
	if c.PolicyTimeout <= 0 {
		c.PolicyTimeout = DefaultPolicyTimeout
	}
	return c
}

// TrafficSignalController owns one intersection's phase, timers, and
// emergency preemption session. It merges the decision policy's output and
// the emergency detector's output into a single phase command per step; the
// emergency path always runs first, and normal decisions are gated on
// ModeNormal, so the two paths can never race on currentPhase.
type TrafficSignalController struct {
	id           string
	twin         string
	intersection core.Intersection
	policy       policy.DecisionPolicy
	detector     *EmergencyDetector
	log          *DecisionLog
	cfg          ControllerConfig

	mode                  ControllerMode
	currentPhase          int
	pendingPhase          int
	phaseTimer            int
	decisionIntervalTimer int
	activeEmergency       *core.EmergencyEvent
	preemptionCount       int
	notifiedVehicles      map[string]bool
	servedVehicles        map[string]bool

	// latest observation aggregates, kept for frame snapshots
	lastQueueLength int
	lastLaneLoads   map[string]int
}

// NewTrafficSignalController constructs a controller with every field
// initialized; no state is created lazily.
func NewTrafficSignalController(twin string, intersection core.Intersection, pol policy.DecisionPolicy, log *DecisionLog, cfg ControllerConfig) *TrafficSignalController {
	cfg = cfg.withDefaults()
	return &TrafficSignalController{
		id:               intersection.ID,
		twin:             twin,
		intersection:     intersection,
		policy:           pol,
		detector:         NewEmergencyDetector(intersection, cfg.DetectionRadius),
		log:              log,
		cfg:              cfg,
		mode:             ModeNormal,
		currentPhase:     0,
		notifiedVehicles: make(map[string]bool),
		servedVehicles:   make(map[string]bool),
		lastLaneLoads:    make(map[string]int),
	}
}

// Update advances the state machine by one step and returns the phase command
// to submit to the simulator. Detector and policy failures are recovered
// here: the controller holds its previous phase for the step and the error is
// surfaced only through the decision log.
func (c *TrafficSignalController) Update(step int, obs core.Observation) int {
	c.lastQueueLength = obs.TotalQueue()
	c.lastLaneLoads = obs.LaneQueues()

	// Emergency check always runs first and overrides normal flow.
	event, err := c.detector.Detect(step, obs)
	if err != nil {
		c.recordError(step, err)
		event = nil
	}
	if event != nil && !c.notifiedVehicles[event.VehicleID] {
		c.notifiedVehicles[event.VehicleID] = true
		c.log.Append(DecisionRecord{
			Step:           step,
			Twin:           c.twin,
			IntersectionID: c.id,
			Kind:           RecordDetection,
			Phase:          event.RequiredPhase,
			VehicleID:      event.VehicleID,
			Detail:         fmt.Sprintf("priority vehicle at %.0f on lane %s", event.Distance, event.LaneID),
		})
	}

	switch c.mode {
	case ModeEmergencyYellow:
		c.phaseTimer++
		if c.phaseTimer >= c.cfg.EmergencyYellowDuration {
			c.currentPhase = c.activeEmergency.RequiredPhase
			c.mode = ModeEmergencyGreen
			c.phaseTimer = 0
		}
		return c.command()

	case ModeEmergencyGreen:
		c.phaseTimer++
		if !obs.ContainsVehicle(c.activeEmergency.VehicleID) {
			c.resolvePreemption(step, "vehicle clear")
		} else if c.phaseTimer >= c.cfg.EmergencyTimeout {
			c.recordError(step, &EmergencyTimeoutError{
				IntersectionID: c.id,
				VehicleID:      c.activeEmergency.VehicleID,
				HeldSteps:      c.phaseTimer,
			})
			c.resolvePreemption(step, "fail-safe timeout")
		}
		return c.command()
	}

	// NORMAL or YELLOW_TRANSITION: a detected vehicle requiring a different
	// phase starts the emergency sequence. First detected wins; a vehicle
	// already served by currentPhase is honored without a state change, and
	// a vehicle whose session already resolved (cleared or timed out) never
	// starts a second one.
	if event != nil && c.activeEmergency == nil && event.RequiredPhase != c.currentPhase &&
		!c.servedVehicles[event.VehicleID] {
		c.mode = ModeEmergencyYellow
		c.phaseTimer = 0
		c.activeEmergency = event
		c.log.Append(DecisionRecord{
			Step:           step,
			Twin:           c.twin,
			IntersectionID: c.id,
			Kind:           RecordPreemptionStart,
			Phase:          event.RequiredPhase,
			VehicleID:      event.VehicleID,
		})
		if err := c.cfg.Broker.FirePreemption(&hooks.PreemptionContext{
			Step:           step,
			Twin:           c.twin,
			IntersectionID: c.id,
			VehicleID:      event.VehicleID,
			Phase:          event.RequiredPhase,
			Started:        true,
		}); err != nil {
			c.recordError(step, err)
		}
		return c.command()
	}

	if c.mode == ModeNormal {
		c.decisionIntervalTimer++
		if c.decisionIntervalTimer >= c.cfg.DecisionInterval {
			c.runDecision(step, obs)
		}
		return c.command()
	}

	// Yellow resolution.
	c.phaseTimer++
	if c.phaseTimer >= c.cfg.YellowDuration {
		c.currentPhase = c.pendingPhase
		c.mode = ModeNormal
		c.phaseTimer = 0
		c.decisionIntervalTimer = 0
	}
	return c.command()
}

func (c *TrafficSignalController) runDecision(step int, obs core.Observation) {
	c.decisionIntervalTimer = 0
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PolicyTimeout)
	defer cancel()
	action, err := c.policy.Decide(ctx, obs)
	if err != nil {
		// Hold the current phase for this interval; retry on the next one.
		c.recordError(step, fmt.Errorf("policy %s: %w", c.policy.Name(), err))
		return
	}
	desired := c.intersection.PhaseForAction(action)
	c.log.Append(DecisionRecord{
		Step:           step,
		Twin:           c.twin,
		IntersectionID: c.id,
		Kind:           RecordDecision,
		Action:         action,
		Phase:          desired,
		Detail:         fmt.Sprintf("queue=%d", c.lastQueueLength),
	})
	if desired == c.currentPhase {
		return
	}
	c.mode = ModeYellowTransition
	c.pendingPhase = desired
	c.phaseTimer = 0
}

func (c *TrafficSignalController) resolvePreemption(step int, reason string) {
	vehicleID := c.activeEmergency.VehicleID
	c.servedVehicles[vehicleID] = true
	c.mode = ModeNormal
	c.phaseTimer = 0
	c.decisionIntervalTimer = 0
	c.activeEmergency = nil
	c.preemptionCount++
	c.log.Append(DecisionRecord{
		Step:           step,
		Twin:           c.twin,
		IntersectionID: c.id,
		Kind:           RecordPreemptionEnd,
		Phase:          c.currentPhase,
		VehicleID:      vehicleID,
		Detail:         reason,
	})
	if err := c.cfg.Broker.FirePreemption(&hooks.PreemptionContext{
		Step:           step,
		Twin:           c.twin,
		IntersectionID: c.id,
		VehicleID:      vehicleID,
		Phase:          c.currentPhase,
		Started:        false,
	}); err != nil {
		c.recordError(step, err)
	}
}

func (c *TrafficSignalController) recordError(step int, err error) {
	GetLogger().Warnf("controller %s/%s step %d: %v", c.twin, c.id, step, err)
	c.log.Append(DecisionRecord{
		Step:           step,
		Twin:           c.twin,
		IntersectionID: c.id,
		Kind:           RecordError,
		Detail:         err.Error(),
	})
}

// command translates the current mode into the phase index submitted to the
// simulator. Yellow intervals command the clearance aspect; currentPhase
// itself only ever changes after a completed yellow.
func (c *TrafficSignalController) command() int {
	switch c.mode {
	case ModeYellowTransition, ModeEmergencyYellow:
		return core.PhaseClearance
	default:
		return c.currentPhase
	}
}

// Reset restores the controller to its initial state, clearing phase, timers,
// the preemption counter, and the vehicle bookkeeping sets.
func (c *TrafficSignalController) Reset() {
	c.mode = ModeNormal
	c.currentPhase = 0
	c.pendingPhase = 0
	c.phaseTimer = 0
	c.decisionIntervalTimer = 0
	c.activeEmergency = nil
	c.preemptionCount = 0
	c.notifiedVehicles = make(map[string]bool)
	c.servedVehicles = make(map[string]bool)
	c.lastQueueLength = 0
	c.lastLaneLoads = make(map[string]int)
}

// ID returns the intersection id this controller owns.
func (c *TrafficSignalController) ID() string { return c.id }

// Mode returns the current state machine mode.
func (c *TrafficSignalController) Mode() ControllerMode { return c.mode }

// CurrentPhase returns the physical phase currently granted.
func (c *TrafficSignalController) CurrentPhase() int { return c.currentPhase }

// PreemptionCount returns how many priority-vehicle encounters have resolved.
func (c *TrafficSignalController) PreemptionCount() int { return c.preemptionCount }

// EmergencyActive reports whether a preemption session is in progress.
func (c *TrafficSignalController) EmergencyActive() bool { return c.activeEmergency != nil }

// IntersectionState is the per-intersection slice of the live broadcast frame.
type IntersectionState struct {
	ID              string         `json:"id"`
	CurrentPhase    int            `json:"currentPhase"`
	Mode            string         `json:"mode"`
	PhaseTimer      int            `json:"phaseTimer"`
	QueueLength     int            `json:"queueLength"`
	EmergencyActive bool           `json:"emergencyActive"`
	PreemptionCount int            `json:"preemptionCount"`
	LaneLoads       map[string]int `json:"laneLoads"`
}

// Snapshot captures the controller state for the live frame.
func (c *TrafficSignalController) Snapshot() IntersectionState {
	loads := make(map[string]int, len(c.lastLaneLoads))
	for k, v := range c.lastLaneLoads {
		loads[k] = v
	}
	return IntersectionState{
		ID:              c.id,
		CurrentPhase:    c.currentPhase,
		Mode:            c.mode.String(),
		PhaseTimer:      c.phaseTimer,
		QueueLength:     c.lastQueueLength,
		EmergencyActive: c.activeEmergency != nil,
		PreemptionCount: c.preemptionCount,
		LaneLoads:       loads,
	}
}
