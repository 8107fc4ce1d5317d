// Package hooks lets instrumentation observe run lifecycle events without
// coupling the step loop to its consumers. Hooks run synchronously on the
// step goroutine; a hook error aborts the remaining hooks for that event and
// is reported to the caller, never acted on by the loop itself.
package hooks

import (
	"sync"
)

// StepContext carries information for step-completion hooks.
type StepContext struct {
	Step int
}

// SpawnContext carries information for priority-vehicle spawn hooks.
type SpawnContext struct {
	Step      int
	VehicleID string
	RouteID   string
}

// PreemptionContext carries information for preemption hooks. Started is
// true on entry into the emergency sequence and false on resolution.
type PreemptionContext struct {
	Step           int
	Twin           string
	IntersectionID string
	VehicleID      string
	Phase          int
	Started        bool
}

// StepCompletedHook runs after both twins complete a step.
type StepCompletedHook func(ctx *StepContext) error

// SpawnHook runs after a synchronized priority-vehicle injection.
type SpawnHook func(ctx *SpawnContext) error

// PreemptionHook runs when a preemption session starts or resolves.
type PreemptionHook func(ctx *PreemptionContext) error

// Broker coordinates hook registration and triggering.
type Broker struct {
	mu sync.RWMutex

	stepHooks       []StepCompletedHook
	spawnHooks      []SpawnHook
	preemptionHooks []PreemptionHook
}

// NewBroker creates an empty broker instance.
func NewBroker() *Broker {
	return &Broker{}
}

// RegisterStepCompleted adds a hook executed after each completed step.
func (b *Broker) RegisterStepCompleted(h StepCompletedHook) {
	if b == nil || h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stepHooks = append(b.stepHooks, h)
}

// RegisterSpawn adds a hook executed after each priority-vehicle injection.
func (b *Broker) RegisterSpawn(h SpawnHook) {
	if b == nil || h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.spawnHooks = append(b.spawnHooks, h)
}

// RegisterPreemption adds a hook executed on preemption start and end.
func (b *Broker) RegisterPreemption(h PreemptionHook) {
	if b == nil || h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.preemptionHooks = append(b.preemptionHooks, h)
}

// FireStepCompleted triggers step-completion hooks in registration order.
func (b *Broker) FireStepCompleted(ctx *StepContext) error {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	hooks := b.stepHooks
	b.mu.RUnlock()
	for _, h := range hooks {
		if err := h(ctx); err != nil {
			return err
		}
	}
	return nil
}

// FireSpawn triggers spawn hooks in registration order.
func (b *Broker) FireSpawn(ctx *SpawnContext) error {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	hooks := b.spawnHooks
	b.mu.RUnlock()
	for _, h := range hooks {
		if err := h(ctx); err != nil {
			return err
		}
	}
	return nil
}

// FirePreemption triggers preemption hooks in registration order.
func (b *Broker) FirePreemption(ctx *PreemptionContext) error {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	hooks := b.preemptionHooks
	b.mu.RUnlock()
	for _, h := range hooks {
		if err := h(ctx); err != nil {
			return err
		}
	}
	return nil
}
