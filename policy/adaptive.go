package policy

import (
	"context"

	"github.com/example/dual_signal_sim/core"
)

// waitWeight balances accumulated waiting time against raw queue length when
// scoring an approach. Queue length dominates; waiting time breaks congestion
// ties in favor of lanes that have been starved longest.
const waitWeight = 0.1

// Adaptive is the stand-in for the trained decision model: a deterministic
// observation -> action mapping that releases the action whose served lanes
// carry the highest pressure. Consumers treat it as a black box; nothing
// outside this file depends on how the action is chosen.
type Adaptive struct {
	intersection core.Intersection
}

// NewAdaptive creates an adaptive policy bound to one intersection's
// lane->phase geometry.
func NewAdaptive(intersection core.Intersection) *Adaptive {
	return &Adaptive{intersection: intersection}
}

// NewAdaptiveFactory returns a Factory producing one Adaptive per controller.
func NewAdaptiveFactory() Factory {
	return func(intersection core.Intersection) DecisionPolicy {
		return NewAdaptive(intersection)
	}
}

func (p *Adaptive) Name() string { return "adaptive" }

// Decide scores every action by the pressure on the lanes its phase would
// release and returns the argmax. Ties resolve to the lowest action index so
// identical observations always produce identical actions.
func (p *Adaptive) Decide(ctx context.Context, obs core.Observation) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	best := 0
	bestScore := -1.0
	for action := range p.intersection.ActionMap {
		score := p.pressure(p.intersection.ActionMap[action], obs)
		if score > bestScore {
			best = action
			bestScore = score
		}
	}
	return best, nil
}

func (p *Adaptive) pressure(phase int, obs core.Observation) float64 {
	var score float64
	for _, lane := range obs.Lanes {
		if p.intersection.LanePhase[lane.LaneID] != phase {
			continue
		}
		score += float64(lane.QueueLength)
		for _, v := range lane.Vehicles {
			score += waitWeight * v.WaitingTime
		}
	}
	return score
}
