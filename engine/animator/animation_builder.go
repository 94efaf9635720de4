package animator

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"
)

// AnimationBuilderOption is a functional option for configuring an Animation during construction.
type AnimationBuilderOption func(*animation)

// WithLogger sets the logger used for playback diagnostics.
//
// Parameters:
//   - logger: the logger to use; nil selects the process-wide logrus logger
//
// Returns:
//   - AnimationBuilderOption: a function that applies the logger option to an animation
func WithLogger(logger logrus.FieldLogger) AnimationBuilderOption {
	return func(a *animation) {
		a.logger = logger
	}
}

// WithListeners registers event listeners during construction, in the given order.
//
// Parameters:
//   - listeners: the listeners to register
//
// Returns:
//   - AnimationBuilderOption: a function that applies the listeners option to an animation
func WithListeners(listeners ...Listener) AnimationBuilderOption {
	return func(a *animation) {
		for _, l := range listeners {
			a.AddListener(l)
		}
	}
}

// WithFootstepBone selects the root-motion bone during construction.
// Out-of-range indices leave extraction disabled.
//
// Parameters:
//   - bone: the bone index, or -1 to disable extraction
//
// Returns:
//   - AnimationBuilderOption: a function that applies the footstep option to an animation
func WithFootstepBone(bone int32) AnimationBuilderOption {
	return func(a *animation) {
		if bone >= -1 && int(bone) < a.skel.BoneCount() {
			a.footstepBone = bone
		}
	}
}

// WithWorldMatrix sets the initial world transform applied to the skeleton.
//
// Parameters:
//   - m: the world matrix
//
// Returns:
//   - AnimationBuilderOption: a function that applies the world matrix option to an animation
func WithWorldMatrix(m mgl32.Mat4) AnimationBuilderOption {
	return func(a *animation) {
		a.world = m
	}
}
