package main

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/example/dual_signal_sim/core"
)

// Motion model constants, in distance units and steps.
const (
	passengerSpeed  = 13.0
	emergencySpeed  = 22.0
	vehicleHeadway  = 7.5
	laneCrossings   = 2 // max vehicles discharged per lane per green step
	defaultLaneLen  = 500.0
	maxArrivalProb  = 0.5
	haltedEpsilon   = 0.01
	defaultCapacity = 40
)

type microVehicle struct {
	id      string
	class   core.VehicleClass
	route   []string // remaining lanes; route[0] is the current lane
	pos     float64  // distance to the current lane's stop line
	waiting float64
	halted  bool
}

func (v *microVehicle) speed() float64 {
	if v.class == core.VehicleClassEmergency {
		return emergencySpeed
	}
	return passengerSpeed
}

type microLane struct {
	id             string
	intersectionID string
	greenPhase     int
	length         float64
	capacity       int
	vehicles       []*microVehicle // ordered by pos ascending, head first
}

// MicroSim is the built-in microscopic motion simulator. It implements the
// SimulatorConnection contract with a deliberately simple car-following
// model: vehicles advance toward the stop line, halt behind the vehicle
// ahead or at a red signal, and cross on green at a bounded discharge rate.
//
// Determinism: given the same topology, seed, and command sequence timing,
// two instances produce identical arrival sequences, because the only rng
// consumption is one draw per lane per tick regardless of signal state.
type MicroSim struct {
	topo        core.Topology
	rng         *rand.Rand
	step        int
	lanes       map[string]*microLane
	laneOrder   []string
	phases      map[string]int
	routes      map[string]core.Route
	arrivalProb float64
	arrived     int
	carSeq      int
	closed      bool
}

// NewMicroSim builds a simulator for the topology. vehicleCount and maxSteps
// size the background demand: roughly vehicleCount passenger vehicles enter
// the network over maxSteps ticks.
func NewMicroSim(topo core.Topology, seed int64, vehicleCount, maxSteps int) *MicroSim {
	laneLen := topo.LaneLength
	if laneLen <= 0 {
		laneLen = defaultLaneLen
	}
	lanes := make(map[string]*microLane)
	laneOrder := make([]string, 0)
	phases := make(map[string]int, len(topo.Intersections))
	for _, in := range topo.Intersections {
		phases[in.ID] = 0
		for lane, phase := range in.LanePhase {
			lanes[lane] = &microLane{
				id:             lane,
				intersectionID: in.ID,
				greenPhase:     phase,
				length:         laneLen,
				capacity:       defaultCapacity,
			}
			laneOrder = append(laneOrder, lane)
		}
	}
	sort.Strings(laneOrder)

	routes := make(map[string]core.Route, len(topo.Routes))
	for _, r := range topo.Routes {
		routes[r.ID] = r
	}

	prob := 0.0
	if maxSteps > 0 && len(laneOrder) > 0 {
		prob = float64(vehicleCount) / float64(maxSteps*len(laneOrder))
		if prob > maxArrivalProb {
			prob = maxArrivalProb
		}
	}

	return &MicroSim{
		topo:        topo,
		rng:         rand.New(rand.NewSource(seed)),
		lanes:       lanes,
		laneOrder:   laneOrder,
		phases:      phases,
		routes:      routes,
		arrivalProb: prob,
	}
}

// ApplyPhase records the phase command for an intersection.
func (m *MicroSim) ApplyPhase(intersectionID string, phase int) error {
	if m.closed {
		return fmt.Errorf("simulator closed")
	}
	if _, ok := m.phases[intersectionID]; !ok {
		return fmt.Errorf("unknown intersection %s", intersectionID)
	}
	m.phases[intersectionID] = phase
	return nil
}

// Advance moves every vehicle one tick and admits new background demand.
func (m *MicroSim) Advance() error {
	if m.closed {
		return fmt.Errorf("simulator closed")
	}
	m.arrived = 0
	for _, laneID := range m.laneOrder {
		m.advanceLane(m.lanes[laneID])
	}
	m.admitArrivals()
	m.step++
	return nil
}

func (m *MicroSim) advanceLane(lane *microLane) {
	green := m.phases[lane.intersectionID] == lane.greenPhase
	crossed := 0
	remaining := lane.vehicles[:0]
	var prevPos float64
	prevSet := false
	for _, v := range lane.vehicles {
		// Head-of-queue crossing on green, bounded per step.
		if !prevSet && green && crossed < laneCrossings && v.pos <= v.speed() {
			crossed++
			m.departLane(v)
			continue
		}
		floor := 0.0
		if prevSet {
			floor = prevPos + vehicleHeadway
		}
		next := v.pos - v.speed()
		if next < floor {
			next = floor
		}
		v.halted = v.pos-next < haltedEpsilon
		if v.halted {
			v.waiting++
		} else {
			v.waiting = 0
		}
		v.pos = next
		prevPos = v.pos
		prevSet = true
		remaining = append(remaining, v)
	}
	lane.vehicles = remaining
}

// departLane moves a vehicle past the stop line: onto the next lane of its
// route, or out of the network.
func (m *MicroSim) departLane(v *microVehicle) {
	v.route = v.route[1:]
	v.halted = false
	v.waiting = 0
	if len(v.route) == 0 {
		m.arrived++
		return
	}
	next, ok := m.lanes[v.route[0]]
	if !ok {
		m.arrived++
		return
	}
	v.pos = next.length
	next.vehicles = append(next.vehicles, v)
}

// admitArrivals performs exactly one rng draw per lane so that the random
// sequence is identical across twins no matter how their signals differ.
func (m *MicroSim) admitArrivals() {
	for _, laneID := range m.laneOrder {
		draw := m.rng.Float64()
		lane := m.lanes[laneID]
		if draw >= m.arrivalProb || len(lane.vehicles) >= lane.capacity {
			continue
		}
		m.carSeq++
		lane.vehicles = append(lane.vehicles, &microVehicle{
			id:    fmt.Sprintf("car_%d", m.carSeq),
			class: core.VehicleClassPassenger,
			route: []string{laneID},
			pos:   lane.length,
		})
	}
}

// Observe builds the per-lane readings for one intersection.
func (m *MicroSim) Observe(intersectionID string) (core.Observation, error) {
	if m.closed {
		return core.Observation{}, fmt.Errorf("simulator closed")
	}
	in, ok := m.topo.Intersection(intersectionID)
	if !ok {
		return core.Observation{}, fmt.Errorf("unknown intersection %s", intersectionID)
	}
	obs := core.Observation{IntersectionID: intersectionID, Step: m.step}
	for _, laneID := range in.Lanes() {
		lane := m.lanes[laneID]
		lo := core.LaneObservation{LaneID: laneID}
		for _, v := range lane.vehicles {
			lo.Vehicles = append(lo.Vehicles, core.Vehicle{
				ID:             v.id,
				Class:          v.class,
				DistanceToStop: v.pos,
				WaitingTime:    v.waiting,
				Halted:         v.halted,
			})
			if v.halted {
				lo.QueueLength++
			}
		}
		if lane.capacity > 0 {
			lo.Occupancy = float64(len(lane.vehicles)) / float64(lane.capacity)
		}
		obs.Lanes = append(obs.Lanes, lo)
	}
	return obs, nil
}

// SpawnVehicle injects a vehicle at the start of the route's first lane. The
// id is derived from the class and current step, so twins in lockstep assign
// identical ids to synchronized spawns.
func (m *MicroSim) SpawnVehicle(class core.VehicleClass, routeID string) (string, error) {
	if m.closed {
		return "", fmt.Errorf("simulator closed")
	}
	route, ok := m.routes[routeID]
	if !ok {
		return "", fmt.Errorf("unknown route %s", routeID)
	}
	lane, ok := m.lanes[route.Lanes[0]]
	if !ok {
		return "", fmt.Errorf("route %s starts on unknown lane %s", routeID, route.Lanes[0])
	}
	id := fmt.Sprintf("%s_%d", class, m.step)
	routeLanes := make([]string, len(route.Lanes))
	copy(routeLanes, route.Lanes)
	lane.vehicles = append(lane.vehicles, &microVehicle{
		id:    id,
		class: class,
		route: routeLanes,
		pos:   lane.length,
	})
	return id, nil
}

// ArrivedCount reports vehicles that left the network during the last Advance.
func (m *MicroSim) ArrivedCount() int { return m.arrived }

// Close shuts the simulator down; all further calls fail.
func (m *MicroSim) Close() error {
	if m.closed {
		return fmt.Errorf("simulator already closed")
	}
	m.closed = true
	return nil
}
