package scene

import (
	"github.com/Carmen-Shannon/oxy-anim/engine/game_object"
	"github.com/Carmen-Shannon/oxy-anim/engine/renderer"
	"github.com/sirupsen/logrus"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithActive sets whether the scene is progressed by the engine.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithObjects adds initial objects to the scene, exactly as Add would once the
// scene is constructed. Objects without IDs will be assigned new IDs.
//
// Parameters:
//   - objects: the objects to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithObjects(objects ...game_object.GameObject) SceneBuilderOption {
	return func(s *scene) {
		s.staged = append(s.staged, objects...)
	}
}

// WithComputeWorkers sets the number of worker goroutines used during the parallel
// animation phase of Progress. Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of compute workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithComputeWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		if n < 1 {
			n = 1
		}
		s.computeWorkers = n
	}
}

// WithLogger sets the parent logger for the scene.
//
// Parameters:
//   - logger: the logger to derive the scene's component logger from
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLogger(logger logrus.FieldLogger) SceneBuilderOption {
	return func(s *scene) {
		s.logger = logger
	}
}

// WithRenderer attaches a renderer so that skinning palettes are uploaded every frame.
//
// Parameters:
//   - r: the renderer to attach
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithRenderer(r renderer.Renderer) SceneBuilderOption {
	return func(s *scene) {
		s.r = r
	}
}
