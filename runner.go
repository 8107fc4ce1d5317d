package main

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/example/dual_signal_sim/hooks"
	"github.com/example/dual_signal_sim/policy"
	"github.com/example/dual_signal_sim/stream"
)

// End reasons reported in RunStatus once a run leaves the running state.
const (
	EndReasonCompleted = "completed"
	EndReasonStopped   = "stopped"
	EndReasonError     = "error"
)

// InitParams are the per-run knobs accepted at initialize time. Zero values
// fall back to the process configuration.
type InitParams struct {
	ScenarioID   string `json:"scenario"`
	Seed         int64  `json:"seed"`
	MaxSteps     int    `json:"maxSteps"`
	VehicleCount int    `json:"vehicleCount"`
}

// RunStatus is the externally visible session state. A run that failed
// internally surfaces here as a terminal non-running state with EndReason set,
// never as a crash.
type RunStatus struct {
	SessionID   string `json:"sessionId,omitempty"`
	Scenario    string `json:"scenario,omitempty"`
	Initialized bool   `json:"initialized"`
	Running     bool   `json:"isRunning"`
	StepCount   int    `json:"stepCount"`
	MaxSteps    int    `json:"maxSteps"`
	EndReason   string `json:"endReason,omitempty"`
}

// RunManager owns the lifecycle of one dual run at a time: initialize builds
// the twins, start launches the step loop on its own goroutine, stop requests
// termination at the next step boundary. The frame publisher outlives
// individual runs so stream subscribers survive re-initialization.
type RunManager struct {
	cfg       Config
	publisher *stream.Publisher[StepFrame]

	mu          sync.Mutex
	coord       *DualRunCoordinator
	log         *DecisionLog
	metrics     *MetricsAggregator
	sessionID   string
	scenario    Scenario
	maxSteps    int
	initialized bool
	running     bool
	endReason   string
	done        chan struct{}

	stopRequested atomic.Bool
}

// NewRunManager creates a manager with no active session.
func NewRunManager(cfg Config) *RunManager {
	return &RunManager{
		cfg:       cfg,
		publisher: stream.NewPublisher[StepFrame](stream.DefaultBuffer),
	}
}

// Initialize builds both twins over a fresh pair of simulator instances
// sharing the scenario's topology and the same seed, and returns the
// intersection ids under control. Any prior non-running session is discarded.
func (m *RunManager) Initialize(params InitParams) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil, fmt.Errorf("run %s still in progress; stop it first", m.sessionID)
	}

	if params.ScenarioID == "" {
		params.ScenarioID = m.cfg.Scenario
	}
	if params.Seed == 0 {
		params.Seed = m.cfg.Seed
	}
	if params.MaxSteps == 0 {
		params.MaxSteps = m.cfg.MaxSteps
	}
	if params.VehicleCount == 0 {
		params.VehicleCount = m.cfg.VehicleCount
	}

	scenario, ok := ScenarioByID(params.ScenarioID)
	if !ok {
		return nil, &InvalidScenarioError{ScenarioID: params.ScenarioID, Reason: "unknown scenario id"}
	}
	if params.MaxSteps <= 0 {
		return nil, &InvalidScenarioError{ScenarioID: params.ScenarioID, Reason: fmt.Sprintf("maxSteps must be positive, got %d", params.MaxSteps)}
	}
	if params.VehicleCount < 0 {
		return nil, &InvalidScenarioError{ScenarioID: params.ScenarioID, Reason: fmt.Sprintf("vehicleCount must be non-negative, got %d", params.VehicleCount)}
	}
	if err := scenario.Topology.Validate(); err != nil {
		return nil, &InvalidScenarioError{ScenarioID: params.ScenarioID, Reason: err.Error()}
	}

	adaptiveName := m.cfg.AdaptivePolicy
	if adaptiveName == "" {
		adaptiveName = "adaptive"
	}
	baselineName := m.cfg.BaselinePolicy
	if baselineName == "" {
		baselineName = "fixed"
	}
	adaptivePolicy, err := policy.ForName(adaptiveName)
	if err != nil {
		return nil, &InvalidScenarioError{ScenarioID: params.ScenarioID, Reason: err.Error()}
	}
	baselinePolicy, err := policy.ForName(baselineName)
	if err != nil {
		return nil, &InvalidScenarioError{ScenarioID: params.ScenarioID, Reason: err.Error()}
	}

	registry := hooks.NewRegistry(hooks.NewBroker())
	registerBuiltinPlugins(registry)
	if err := registry.Load(m.cfg.Plugins); err != nil {
		return nil, &InvalidScenarioError{ScenarioID: params.ScenarioID, Reason: err.Error()}
	}
	broker := registry.Broker()

	log := NewDecisionLog()
	metrics := NewMetricsAggregator()

	adaptiveSim := NewMicroSim(scenario.Topology, params.Seed, params.VehicleCount, params.MaxSteps)
	baselineSim := NewMicroSim(scenario.Topology, params.Seed, params.VehicleCount, params.MaxSteps)

	adaptive := NewSimulationTwin("adaptive", adaptiveSim, scenario.Topology,
		adaptivePolicy, log, m.cfg.controllerConfig(m.cfg.AdaptiveInterval, broker))
	baseline := NewSimulationTwin("baseline", baselineSim, scenario.Topology,
		baselinePolicy, log, m.cfg.controllerConfig(m.cfg.BaselineInterval, broker))

	m.coord = NewDualRunCoordinator(adaptive, baseline, scenario.Topology, params.Seed,
		m.cfg.EmergencyInterval, metrics, log, m.publisher, broker)
	m.log = log
	m.metrics = metrics
	m.scenario = scenario
	m.maxSteps = params.MaxSteps
	m.sessionID = uuid.NewString()
	m.initialized = true
	m.running = false
	m.endReason = ""
	m.stopRequested.Store(false)

	ids := scenario.Topology.IntersectionIDs()
	GetLogger().Infof("session %s initialized: scenario=%s seed=%d maxSteps=%d intersections=%d",
		m.sessionID, scenario.ID, params.Seed, params.MaxSteps, len(ids))
	return ids, nil
}

// Start launches the step loop. Starting an already running session is a
// no-op; starting an uninitialized or finished session is an error.
func (m *RunManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return fmt.Errorf("not initialized")
	}
	if m.running {
		return nil
	}
	if m.endReason != "" {
		return fmt.Errorf("session %s already ended (%s); initialize again", m.sessionID, m.endReason)
	}
	m.running = true
	m.done = make(chan struct{})
	go m.runLoop(m.coord, m.maxSteps, m.done)
	GetLogger().Infof("session %s started", m.sessionID)
	return nil
}

// runLoop drives the coordinator until maxSteps, a stop request, or a fatal
// error. All teardown happens here so every exit path closes both
// connections exactly once.
func (m *RunManager) runLoop(coord *DualRunCoordinator, maxSteps int, done chan struct{}) {
	reason := EndReasonCompleted
	for coord.StepIndex() < maxSteps {
		if m.stopRequested.Load() {
			reason = EndReasonStopped
			break
		}
		if _, err := coord.Step(); err != nil {
			GetLogger().Errorf("session %s: step %d failed: %v", m.sessionID, coord.StepIndex(), err)
			m.log.Append(DecisionRecord{
				Step:   coord.StepIndex(),
				Kind:   RecordError,
				Detail: err.Error(),
			})
			reason = EndReasonError
			break
		}
		if m.cfg.StepDelay > 0 {
			time.Sleep(m.cfg.StepDelay)
		}
	}

	if err := coord.Close(); err != nil {
		GetLogger().Warnf("session %s: teardown: %v", m.sessionID, err)
	}

	m.mu.Lock()
	m.running = false
	m.endReason = reason
	m.mu.Unlock()
	close(done)
	GetLogger().Infof("session %s ended after %d steps: %s", m.sessionID, coord.StepIndex(), reason)
}

// Stop requests termination at the next step boundary and waits for the loop
// to drain. Stopping a session that is not running is a no-op.
func (m *RunManager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	done := m.done
	m.mu.Unlock()

	m.stopRequested.Store(true)
	<-done
	return nil
}

// Status reports the current session state.
func (m *RunManager) Status() RunStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := RunStatus{
		SessionID:   m.sessionID,
		Scenario:    m.scenario.ID,
		Initialized: m.initialized,
		Running:     m.running,
		MaxSteps:    m.maxSteps,
		EndReason:   m.endReason,
	}
	if m.coord != nil {
		status.StepCount = m.coord.StepIndex()
	}
	return status
}

// Decisions returns up to limit entries from the run's decision log, most
// recent first. Before initialization the log is empty.
func (m *RunManager) Decisions(limit int) []DecisionRecord {
	m.mu.Lock()
	log := m.log
	m.mu.Unlock()
	if log == nil {
		return []DecisionRecord{}
	}
	return log.Recent(limit)
}

// Comparison returns the adaptive-vs-baseline report for the current session.
func (m *RunManager) Comparison() ComparisonReport {
	m.mu.Lock()
	metrics := m.metrics
	m.mu.Unlock()
	if metrics == nil {
		return ComparisonReport{}
	}
	return metrics.Comparison()
}

// RunResults are the final figures of an ended session: the comparison
// report plus how and when the run finished.
type RunResults struct {
	SessionID string           `json:"sessionId"`
	Scenario  string           `json:"scenario"`
	Steps     int              `json:"steps"`
	EndReason string           `json:"endReason"`
	Report    ComparisonReport `json:"report"`
}

// Results returns the outcome of the last ended run. It reports false while
// a run is still in progress or before any run has finished.
func (m *RunManager) Results() (RunResults, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running || m.endReason == "" {
		return RunResults{}, false
	}
	results := RunResults{
		SessionID: m.sessionID,
		Scenario:  m.scenario.ID,
		EndReason: m.endReason,
	}
	if m.coord != nil {
		results.Steps = m.coord.StepIndex()
	}
	if m.metrics != nil {
		results.Report = m.metrics.Comparison()
	}
	return results, true
}

// Frames exposes the live per-step frame stream.
func (m *RunManager) Frames() *stream.Publisher[StepFrame] {
	return m.publisher
}

// RunToCompletion initializes and drives a run synchronously on the calling
// goroutine. Used by headless mode.
func (m *RunManager) RunToCompletion(params InitParams) (ComparisonReport, error) {
	if _, err := m.Initialize(params); err != nil {
		return ComparisonReport{}, err
	}
	if err := m.Start(); err != nil {
		return ComparisonReport{}, err
	}
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	<-done

	status := m.Status()
	if status.EndReason == EndReasonError {
		return m.Comparison(), fmt.Errorf("run ended with error after %d steps", status.StepCount)
	}
	return m.Comparison(), nil
}
