package skeleton

import (
	"github.com/sirupsen/logrus"
)

// SkeletonBuilderOption is a functional option for configuring a Skeleton during construction.
type SkeletonBuilderOption func(*skeleton)

// WithLogger sets the logger used for construction warnings and rejected updates.
//
// Parameters:
//   - logger: the logger to use; nil selects the process-wide logrus logger
//
// Returns:
//   - SkeletonBuilderOption: a function that applies the logger option to a skeleton
func WithLogger(logger logrus.FieldLogger) SkeletonBuilderOption {
	return func(s *skeleton) {
		s.logger = logger
	}
}

// WithDebugChecks toggles the duplicate-name diagnostics emitted while building. Enabled by default.
//
// Parameters:
//   - enabled: true to report duplicate bone names
//
// Returns:
//   - SkeletonBuilderOption: a function that applies the option to a skeleton
func WithDebugChecks(enabled bool) SkeletonBuilderOption {
	return func(s *skeleton) {
		s.debugChecks = enabled
	}
}
