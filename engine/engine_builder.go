package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-anim/engine/profiler"
	"github.com/Carmen-Shannon/oxy-anim/engine/scene"
	"github.com/Carmen-Shannon/oxy-anim/engine/window"
	"github.com/sirupsen/logrus"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled.Store(enabled)
	}
}

// WithProfiler replaces the default profiler, e.g. to change its reporting interval.
//
// Parameters:
//   - p: the profiler to use
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiler(p *profiler.Profiler) EngineBuilderOption {
	return func(e *engine) {
		e.profiler = p
	}
}

// WithTickRate sets the engine tick rate in ticks per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Duration(float64(time.Second) / fps)
	}
}

// WithFixedStep makes every tick advance by exactly the nominal tick length instead of the
// measured wall-clock delta, so headless runs are reproducible.
//
// Parameters:
//   - fixed: true to use the nominal tick length
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithFixedStep(fixed bool) EngineBuilderOption {
	return func(e *engine) {
		e.fixedStep = fixed
	}
}

// WithMaxTicks stops the engine after n ticks. Zero runs until Quit.
//
// Parameters:
//   - n: the tick limit
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithMaxTicks(n uint64) EngineBuilderOption {
	return func(e *engine) {
		e.maxTicks = n
	}
}

// WithWindow attaches a window whose message loop Run pumps. Closing the window stops the engine.
//
// Parameters:
//   - w: a spawned Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithScene registers a scene at the given key during engine construction.
//
// Parameters:
//   - key: the ordering key (lower progresses first)
//   - s: the Scene to register
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithScene(key int, s scene.Scene) EngineBuilderOption {
	return func(e *engine) {
		e.scenes[key] = s
	}
}

// WithLogger sets the parent logger for the engine.
//
// Parameters:
//   - logger: the logger to derive the engine's component logger from
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLogger(logger logrus.FieldLogger) EngineBuilderOption {
	return func(e *engine) {
		e.logger = logger
	}
}
