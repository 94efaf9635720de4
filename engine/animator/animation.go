package animator

import (
	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/clip"
	"github.com/Carmen-Shannon/oxy-anim/engine/skeleton"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ChainCapacity is the number of playback controller slots kept per Animation.
const ChainCapacity = 32

// Listener receives clip events. Listeners run synchronously inside Progress, in registration order.
type Listener func(clipName, eventName string)

// firedEvent is an event queued during a controller update for dispatch to listeners.
type firedEvent struct {
	clipName, eventName string
}

// animation is the implementation of the Animation interface.
type animation struct {
	logger logrus.FieldLogger
	skel   skeleton.Skeleton

	// chain is a fixed arena of controllers addressed by start + count.
	chain        [ChainCapacity]controller
	start, count int

	listeners []Listener
	pending   []firedEvent

	pose         []mgl32.Mat4
	world        mgl32.Mat4
	footstepBone int32
}

// Animation defines the public interface for clip playback and cross-fade blending on one skeleton.
//
// Play pushes a playback controller onto a bounded chain. Progress advances only the newest
// (active) controller and blends its pose against the frozen pose of the previous controller,
// rotation by spherical interpolation and translation/scale linearly, weighted by the active
// controller's blend ramp. The result is applied to the skeleton as a root-space pose.
//
// An Animation is owned by a single entity and must not be used from multiple goroutines at once.
type Animation interface {
	// Play activates a clip. Playing the clip that is already active is a no-op and a negative
	// blend duration is ignored. A zero duration hard-cuts, collapsing the chain to one controller;
	// a positive duration starts a cross-fade from the current pose, overwriting the oldest
	// controller once the chain holds ChainCapacity entries.
	//
	// Parameters:
	//   - c: the clip to play
	//   - blendDuration: the cross-fade length in seconds
	Play(c *clip.Clip, blendDuration float32)

	// Stop halts the active controller, keeping its current pose.
	Stop()

	// Progress advances the active controller and the blend ramp by dt, dispatches fired events
	// to listeners, and updates the skeleton's world and skinning matrices.
	//
	// Parameters:
	//   - dt: elapsed time in seconds; negative values are treated as zero
	Progress(dt float32)

	// IsPlaying reports whether the active controller is still playing.
	//
	// Returns:
	//   - bool: false when nothing is active or a one-shot clip has finished
	IsPlaying() bool

	// AddListener registers an event listener.
	//
	// Parameters:
	//   - l: the listener
	AddListener(l Listener)

	// InterpolateRate returns the active controller's blend weight.
	//
	// Returns:
	//   - float32: 1 when no blend is in progress, otherwise elapsed/duration clamped to 1
	InterpolateRate() float32

	// ChainLength returns the number of controllers currently held in the chain.
	//
	// Returns:
	//   - int: a value in [0, ChainCapacity]
	ChainLength() int

	// ActiveClip returns the clip of the active controller, or nil.
	//
	// Returns:
	//   - *clip.Clip: the active clip
	ActiveClip() *clip.Clip

	// ActiveKeyIndex returns the reference key index of the active controller.
	//
	// Returns:
	//   - int: the key index, or -1 when nothing is active
	ActiveKeyIndex() int

	// Elapsed returns the time since the active clip started or last looped.
	//
	// Returns:
	//   - float32: elapsed seconds
	Elapsed() float32

	// EventInvoked reports whether the active controller has fired the event at the given
	// position of the active clip's event list during the current pass.
	//
	// Parameters:
	//   - i: the event position
	//
	// Returns:
	//   - bool: false for fired-and-rearmed, unfired or out-of-range events
	EventInvoked(i int) bool

	// SetFootstepBone selects the bone whose translation is extracted as root motion.
	//
	// Parameters:
	//   - bone: the bone index, or -1 to disable extraction
	//
	// Returns:
	//   - error: skeleton.ErrInvalidBoneIndex for out-of-range bones; nothing is changed
	SetFootstepBone(bone int32) error

	// FootstepBone returns the configured footstep bone, or -1.
	//
	// Returns:
	//   - int32: the bone index
	FootstepBone() int32

	// FootstepDelta returns the root-space motion of the footstep bone during the last Progress.
	// Only the active controller contributes.
	//
	// Returns:
	//   - mgl32.Vec3: the per-frame delta
	FootstepDelta() mgl32.Vec3

	// FootstepPosition returns the footstep bone's current root-space position in the active clip.
	//
	// Returns:
	//   - mgl32.Vec3: the running position
	FootstepPosition() mgl32.Vec3

	// FootstepAccumulated returns the footstep motion since the active clip started or last looped.
	//
	// Returns:
	//   - mgl32.Vec3: the accumulated translation
	FootstepAccumulated() mgl32.Vec3

	// SetWorldMatrix sets the transform applied to the skeleton on every Progress.
	//
	// Parameters:
	//   - m: the world matrix
	SetWorldMatrix(m mgl32.Mat4)

	// WorldMatrix returns the transform applied to the skeleton.
	//
	// Returns:
	//   - mgl32.Mat4: the world matrix
	WorldMatrix() mgl32.Mat4

	// Pose returns the blended root-space pose produced by the last Progress, one matrix per bone.
	// The slice is owned by the Animation and must not be modified.
	//
	// Returns:
	//   - []mgl32.Mat4: the pose
	Pose() []mgl32.Mat4

	// Skeleton returns the animated skeleton.
	//
	// Returns:
	//   - skeleton.Skeleton: the skeleton
	Skeleton() skeleton.Skeleton
}

var _ Animation = &animation{}

// NewAnimation creates an Animation driving the given skeleton.
// Panics if the skeleton is nil or was not built successfully.
//
// Parameters:
//   - skel: the skeleton to animate (must be initialized)
//   - options: functional options to configure the animation
//
// Returns:
//   - Animation: the new animation
func NewAnimation(skel skeleton.Skeleton, options ...AnimationBuilderOption) Animation {
	if skel == nil || !skel.IsInitialized() {
		panic("animator: NewAnimation requires an initialized Skeleton")
	}

	a := &animation{
		skel:         skel,
		pose:         make([]mgl32.Mat4, skel.BoneCount()),
		world:        mgl32.Ident4(),
		footstepBone: -1,
		pending:      make([]firedEvent, 0, 8),
	}
	for i := range a.pose {
		a.pose[i] = skel.BindLocal(int32(i))
	}
	for _, opt := range options {
		opt(a)
	}
	a.logger = common.ComponentLogger(a.logger, "animator")

	return a
}

// slot returns the controller at a chain position, 0 being the oldest.
func (a *animation) slot(pos int) *controller {
	return &a.chain[(a.start+pos)%ChainCapacity]
}

// active returns the newest controller, or nil for an empty chain.
func (a *animation) active() *controller {
	if a.count == 0 {
		return nil
	}
	return a.slot(a.count - 1)
}

func (a *animation) Play(c *clip.Clip, blendDuration float32) {
	if c == nil || blendDuration < 0 {
		return
	}
	if act := a.active(); act != nil && act.clip == c {
		return
	}
	if c.BoneCount() != a.skel.BoneCount() {
		a.logger.WithFields(logrus.Fields{
			"clip":          c.Name(),
			"clipBones":     c.BoneCount(),
			"skeletonBones": a.skel.BoneCount(),
		}).Warn("clip bone count differs from skeleton")
	}

	if blendDuration == 0 {
		// Hard cut into the slot after the active one so the active controller is never
		// overwritten while it may still be dispatching events.
		a.start = (a.start + max(a.count, 1)) % ChainCapacity
		a.count = 0
	} else if a.count == ChainCapacity {
		a.start = (a.start + 1) % ChainCapacity
		a.count--
	}

	next := a.slot(a.count)
	a.count++
	next.bind(a.skel)
	next.changeClip(c, blendDuration, a.footstepBone)

	a.logger.WithFields(logrus.Fields{
		"clip":  c.Name(),
		"blend": blendDuration,
		"chain": a.count,
	}).Debug("clip activated")
}

func (a *animation) Stop() {
	if act := a.active(); act != nil {
		act.playing = false
	}
}

func (a *animation) Progress(dt float32) {
	if dt < 0 {
		dt = 0
	}

	if act := a.active(); act != nil {
		act.blendElapsed += dt
		a.pending = a.pending[:0]
		act.update(dt, a.queueEvent)
		a.dispatch()
		a.blend()
		a.skel.SetRootSpacePose(a.pose)
	}

	a.skel.Update(a.world)
}

func (a *animation) queueEvent(clipName, eventName string) {
	a.pending = append(a.pending, firedEvent{clipName: clipName, eventName: eventName})
}

// dispatch delivers queued events to every listener in registration order.
// Listeners may call Play; the chain is only inspected again after dispatch.
func (a *animation) dispatch() {
	for _, ev := range a.pending {
		for _, l := range a.listeners {
			l(ev.clipName, ev.eventName)
		}
	}
	a.pending = a.pending[:0]
}

// blend combines the frozen previous controller with the active one into a.pose.
func (a *animation) blend() {
	act := a.active()
	if a.count < 2 {
		copy(a.pose, act.rootSpace)
		return
	}

	prev := a.slot(a.count - 2)
	rate := act.interpolateRate()
	switch {
	case rate <= 0:
		copy(a.pose, prev.rootSpace)
	case rate >= 1:
		copy(a.pose, act.rootSpace)
	default:
		for i := range a.pose {
			a.pose[i] = common.BlendMat4(prev.rootSpace[i], act.rootSpace[i], rate)
		}
	}
}

func (a *animation) IsPlaying() bool {
	act := a.active()
	return act != nil && act.playing
}

func (a *animation) AddListener(l Listener) {
	if l == nil {
		return
	}
	a.listeners = append(a.listeners, l)
}

func (a *animation) InterpolateRate() float32 {
	if act := a.active(); act != nil {
		return act.interpolateRate()
	}
	return 1
}

func (a *animation) ChainLength() int {
	return a.count
}

func (a *animation) ActiveClip() *clip.Clip {
	if act := a.active(); act != nil {
		return act.clip
	}
	return nil
}

func (a *animation) ActiveKeyIndex() int {
	if act := a.active(); act != nil {
		return act.index
	}
	return -1
}

func (a *animation) Elapsed() float32 {
	if act := a.active(); act != nil {
		return act.elapsed
	}
	return 0
}

func (a *animation) EventInvoked(i int) bool {
	act := a.active()
	if act == nil || i < 0 || i >= len(act.invoked) {
		return false
	}
	return act.invoked[i]
}

func (a *animation) SetFootstepBone(bone int32) error {
	if bone < -1 || int(bone) >= a.skel.BoneCount() {
		return errors.Wrapf(skeleton.ErrInvalidBoneIndex, "footstep bone %d of %d", bone, a.skel.BoneCount())
	}
	a.footstepBone = bone
	if act := a.active(); act != nil {
		act.setFootstepBone(bone)
	}
	return nil
}

func (a *animation) FootstepBone() int32 {
	return a.footstepBone
}

func (a *animation) FootstepDelta() mgl32.Vec3 {
	if act := a.active(); act != nil {
		return act.footstepDelta
	}
	return mgl32.Vec3{}
}

func (a *animation) FootstepPosition() mgl32.Vec3 {
	if act := a.active(); act != nil {
		return act.footstepPos
	}
	return mgl32.Vec3{}
}

func (a *animation) FootstepAccumulated() mgl32.Vec3 {
	if act := a.active(); act != nil {
		return act.footstepAccum
	}
	return mgl32.Vec3{}
}

func (a *animation) SetWorldMatrix(m mgl32.Mat4) {
	a.world = m
}

func (a *animation) WorldMatrix() mgl32.Mat4 {
	return a.world
}

func (a *animation) Pose() []mgl32.Mat4 {
	return a.pose
}

func (a *animation) Skeleton() skeleton.Skeleton {
	return a.skel
}
