package core

// VehicleClass represents the class tag carried by a simulated vehicle.
type VehicleClass string

const (
	// VehicleClassPassenger is the default vehicle class.
	VehicleClassPassenger VehicleClass = "passenger"
	// VehicleClassEmergency marks priority vehicles that trigger signal preemption.
	VehicleClassEmergency VehicleClass = "emergency"
)

// PhaseClearance is the phase index commanded during a yellow interval.
// It grants right-of-way to no approach lane.
const PhaseClearance = -1

// Vehicle is a single vehicle observed on a controlled lane.
type Vehicle struct {
	ID             string       `json:"id"`
	Class          VehicleClass `json:"class"`
	DistanceToStop float64      `json:"distanceToStop"` // distance units to the stop line
	WaitingTime    float64      `json:"waitingTime"`    // accumulated steps spent halted
	Halted         bool         `json:"halted"`
}

// LaneObservation is the per-lane reading produced by a simulator connection
// for one step.
type LaneObservation struct {
	LaneID      string    `json:"laneId"`
	Occupancy   float64   `json:"occupancy"` // fraction of lane capacity in use
	QueueLength int       `json:"queueLength"`
	Vehicles    []Vehicle `json:"vehicles"`
}

// Observation bundles all lane readings for one intersection at one step.
type Observation struct {
	IntersectionID string            `json:"intersectionId"`
	Step           int               `json:"step"`
	Lanes          []LaneObservation `json:"lanes"`
}

// TotalQueue returns the summed queue length across all controlled lanes.
func (o Observation) TotalQueue() int {
	total := 0
	for _, lane := range o.Lanes {
		total += lane.QueueLength
	}
	return total
}

// AvgWaitingTime returns the mean accumulated waiting time over all waiting
// vehicles, or 0 when no vehicle is waiting.
func (o Observation) AvgWaitingTime() float64 {
	var sum float64
	count := 0
	for _, lane := range o.Lanes {
		for _, v := range lane.Vehicles {
			if v.WaitingTime > 0 {
				sum += v.WaitingTime
				count++
			}
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// LaneQueues returns the queue length keyed by lane id.
func (o Observation) LaneQueues() map[string]int {
	queues := make(map[string]int, len(o.Lanes))
	for _, lane := range o.Lanes {
		queues[lane.LaneID] = lane.QueueLength
	}
	return queues
}

// ContainsVehicle reports whether the vehicle id is present on any lane.
func (o Observation) ContainsVehicle(vehicleID string) bool {
	for _, lane := range o.Lanes {
		for _, v := range lane.Vehicles {
			if v.ID == vehicleID {
				return true
			}
		}
	}
	return false
}

// EmergencyEvent describes a priority vehicle inside detection range and the
// phase it requires. Created on first detection, discarded once the vehicle
// clears the intersection or leaves the network.
type EmergencyEvent struct {
	VehicleID      string  `json:"vehicleId"`
	LaneID         string  `json:"laneId"`
	Distance       float64 `json:"distanceToIntersection"`
	RequiredPhase  int     `json:"requiredPhase"`
	DetectedAtStep int     `json:"detectedAtStep"`
}
