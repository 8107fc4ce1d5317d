// Package policy defines the pluggable decision strategies attached to a
// traffic signal controller: an adaptive pressure-driven policy and a
// fixed-cycle baseline. Policies are opaque observation -> action mappings;
// the controller translates actions into physical phases.
package policy

import (
	"context"

	"github.com/example/dual_signal_sim/core"
)

// DecisionPolicy chooses a discrete action index from a traffic observation.
// Decide is treated as a potentially blocking external call; implementations
// must honor ctx cancellation.
type DecisionPolicy interface {
	Decide(ctx context.Context, obs core.Observation) (int, error)
	Name() string
}

// DecisionFunc adapts a plain function to the DecisionPolicy interface.
type DecisionFunc func(ctx context.Context, obs core.Observation) (int, error)

func (f DecisionFunc) Decide(ctx context.Context, obs core.Observation) (int, error) {
	return f(ctx, obs)
}

func (f DecisionFunc) Name() string { return "func" }

// Factory builds one policy instance per controller. Fixed-cycle policies
// carry per-intersection cursor state, so instances are never shared.
type Factory func(intersection core.Intersection) DecisionPolicy
