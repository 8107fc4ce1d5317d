package main

import (
	"github.com/example/dual_signal_sim/hooks"
)

// progressLogInterval is how often the progress plugin reports, in steps.
const progressLogInterval = 1000

// registerBuiltinPlugins installs the instrumentation plugins selectable via
// the plugins config list.
func registerBuiltinPlugins(r *hooks.Registry) {
	r.Register("progress", hooks.PluginDescriptor{
		Name:        "progress",
		Description: "Logs run progress at fixed step intervals",
	}, func(b *hooks.Broker) error {
		b.RegisterStepCompleted(func(ctx *hooks.StepContext) error {
			if ctx.Step > 0 && ctx.Step%progressLogInterval == 0 {
				GetLogger().Infof("progress: step %d", ctx.Step)
			}
			return nil
		})
		return nil
	})

	r.Register("preemption_trace", hooks.PluginDescriptor{
		Name:        "preemption_trace",
		Description: "Logs every preemption start and resolution",
	}, func(b *hooks.Broker) error {
		b.RegisterPreemption(func(ctx *hooks.PreemptionContext) error {
			if ctx.Started {
				GetLogger().Infof("preemption start: twin=%s intersection=%s vehicle=%s phase=%d step=%d",
					ctx.Twin, ctx.IntersectionID, ctx.VehicleID, ctx.Phase, ctx.Step)
			} else {
				GetLogger().Infof("preemption end: twin=%s intersection=%s vehicle=%s step=%d",
					ctx.Twin, ctx.IntersectionID, ctx.VehicleID, ctx.Step)
			}
			return nil
		})
		return nil
	})

	r.Register("spawn_trace", hooks.PluginDescriptor{
		Name:        "spawn_trace",
		Description: "Logs every synchronized priority-vehicle injection",
	}, func(b *hooks.Broker) error {
		b.RegisterSpawn(func(ctx *hooks.SpawnContext) error {
			GetLogger().Infof("spawn: vehicle=%s route=%s step=%d", ctx.VehicleID, ctx.RouteID, ctx.Step)
			return nil
		})
		return nil
	})
}
