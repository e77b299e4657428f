// The runner drives the simulation loop: headless as fast as possible, or
// paced against wall-clock time for interactive observation.
package engine

import (
	"log/slog"
	"time"
)

// Runner advances a Simulation tick by tick.
type Runner struct {
	Sim      *Simulation
	Interval time.Duration // pacing per tick; 0 = run flat out
	Running  bool

	// OnTick runs after every completed tick — the metrics sink hangs off
	// this callback so the engine itself never persists anything.
	OnTick func(*Simulation)
}

// NewRunner creates a runner over the simulation.
func NewRunner(sim *Simulation) *Runner {
	return &Runner{Sim: sim}
}

// RunTicks advances exactly n ticks.
func (r *Runner) RunTicks(n int) {
	for i := 0; i < n; i++ {
		r.step()
	}
}

// Run loops until Stop is called, pacing by Interval when set. Blocks.
func (r *Runner) Run() {
	r.Running = true
	slog.Info("simulation started", "tick", r.Sim.Tick, "population", r.Sim.Registry.Count())

	for r.Running {
		start := time.Now()
		r.step()
		if r.Interval > 0 {
			if elapsed := time.Since(start); elapsed < r.Interval {
				time.Sleep(r.Interval - elapsed)
			}
		}
		if r.Sim.Registry.Count() == 0 {
			slog.Info("population extinct", "tick", r.Sim.Tick)
			break
		}
	}

	slog.Info("simulation stopped", "tick", r.Sim.Tick)
}

// Stop halts the loop after the current tick.
func (r *Runner) Stop() {
	r.Running = false
}

func (r *Runner) step() {
	r.Sim.Step()
	if r.OnTick != nil {
		r.OnTick(r.Sim)
	}
}
