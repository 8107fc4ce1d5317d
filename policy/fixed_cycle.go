package policy

import (
	"context"

	"github.com/example/dual_signal_sim/core"
)

// FixedCycle cycles through the intersection's action space in order,
// advancing one position per decision query. It ignores the observation
// entirely, which is exactly what makes it a fair baseline: the controller's
// decision interval supplies the fixed green duration.
type FixedCycle struct {
	actions int
	cursor  int
}

// NewFixedCycle creates a fixed-cycle policy over the intersection's action space.
func NewFixedCycle(intersection core.Intersection) *FixedCycle {
	return &FixedCycle{actions: len(intersection.ActionMap)}
}

// NewFixedCycleFactory returns a Factory producing one FixedCycle per controller.
func NewFixedCycleFactory() Factory {
	return func(intersection core.Intersection) DecisionPolicy {
		return NewFixedCycle(intersection)
	}
}

func (p *FixedCycle) Name() string { return "fixed" }

// Decide returns the next action in the cycle.
func (p *FixedCycle) Decide(ctx context.Context, _ core.Observation) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if p.actions == 0 {
		return 0, nil
	}
	action := p.cursor
	p.cursor = (p.cursor + 1) % p.actions
	return action, nil
}
