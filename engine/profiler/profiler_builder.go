package profiler

import (
	"time"

	"github.com/sirupsen/logrus"
)

// ProfilerBuilderOption is a functional option for configuring a Profiler.
type ProfilerBuilderOption func(*Profiler)

// WithLogger sets the parent logger the profile lines are written to.
//
// Parameters:
//   - logger: the logger to derive the profiler's component logger from
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithLogger(logger logrus.FieldLogger) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.logger = logger
	}
}

// WithInterval sets how often Tick logs. Zero logs on every tick.
//
// Parameters:
//   - interval: the reporting interval
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithInterval(interval time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.updateInterval = max(interval, 0)
	}
}
