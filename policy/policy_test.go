package policy

import (
	"context"
	"testing"

	"github.com/example/dual_signal_sim/core"
)

func crossroads() core.Intersection {
	return core.Intersection{
		ID:         "J1",
		PhaseCount: 2,
		LanePhase: map[string]int{
			"N": 0, "S": 0,
			"E": 1, "W": 1,
		},
		ActionMap: []int{0, 1},
	}
}

func queueObs(queues map[string]int) core.Observation {
	obs := core.Observation{IntersectionID: "J1"}
	for lane, q := range queues {
		lo := core.LaneObservation{LaneID: lane, QueueLength: q}
		for i := 0; i < q; i++ {
			lo.Vehicles = append(lo.Vehicles, core.Vehicle{Halted: true, WaitingTime: 1})
		}
		obs.Lanes = append(obs.Lanes, lo)
	}
	return obs
}

func TestAdaptivePrefersLoadedApproach(t *testing.T) {
	p := NewAdaptive(crossroads())

	action, err := p.Decide(context.Background(), queueObs(map[string]int{"N": 1, "E": 6}))
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if action != 1 {
		t.Fatalf("expected action 1 for loaded east-west, got %d", action)
	}

	action, err = p.Decide(context.Background(), queueObs(map[string]int{"N": 9, "E": 2}))
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if action != 0 {
		t.Fatalf("expected action 0 for loaded north-south, got %d", action)
	}
}

func TestAdaptiveTiesResolveToLowestAction(t *testing.T) {
	p := NewAdaptive(crossroads())
	action, err := p.Decide(context.Background(), queueObs(map[string]int{"N": 3, "E": 3}))
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if action != 0 {
		t.Fatalf("tie must resolve to action 0, got %d", action)
	}
}

func TestAdaptiveWaitingTimeBreaksCongestionTies(t *testing.T) {
	p := NewAdaptive(crossroads())
	obs := core.Observation{
		IntersectionID: "J1",
		Lanes: []core.LaneObservation{
			{LaneID: "N", QueueLength: 3, Vehicles: []core.Vehicle{
				{Halted: true, WaitingTime: 2}, {Halted: true, WaitingTime: 2}, {Halted: true, WaitingTime: 2},
			}},
			{LaneID: "E", QueueLength: 3, Vehicles: []core.Vehicle{
				{Halted: true, WaitingTime: 40}, {Halted: true, WaitingTime: 40}, {Halted: true, WaitingTime: 40},
			}},
		},
	}
	action, err := p.Decide(context.Background(), obs)
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if action != 1 {
		t.Fatalf("starved approach must win, got action %d", action)
	}
}

func TestAdaptiveHonorsContextCancellation(t *testing.T) {
	p := NewAdaptive(crossroads())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Decide(ctx, queueObs(nil)); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestFixedCycleRotation(t *testing.T) {
	p := NewFixedCycle(crossroads())
	want := []int{0, 1, 0, 1, 0}
	for i, expected := range want {
		action, err := p.Decide(context.Background(), core.Observation{})
		if err != nil {
			t.Fatalf("Decide returned error: %v", err)
		}
		if action != expected {
			t.Fatalf("query %d: expected action %d, got %d", i, expected, action)
		}
	}
}

func TestFixedCycleEmptyActionSpace(t *testing.T) {
	p := NewFixedCycle(core.Intersection{ID: "J0"})
	action, err := p.Decide(context.Background(), core.Observation{})
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if action != 0 {
		t.Fatalf("expected fallback action 0, got %d", action)
	}
}

func TestRegistryBuiltins(t *testing.T) {
	for _, name := range []string{"adaptive", "fixed"} {
		factory, err := ForName(name)
		if err != nil {
			t.Fatalf("builtin %s missing: %v", name, err)
		}
		if factory(crossroads()) == nil {
			t.Fatalf("factory %s produced nil policy", name)
		}
	}
	if _, err := ForName("unknown"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	factory := NewAdaptiveFactory()
	if err := r.Register("mine", factory); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if err := r.Register("mine", factory); err == nil {
		t.Fatal("duplicate register must fail")
	}
	names := r.Names()
	if len(names) != 1 || names[0] != "mine" {
		t.Fatalf("expected [mine], got %v", names)
	}
}
