package animator

import (
	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/clip"
	"github.com/Carmen-Shannon/oxy-anim/engine/skeleton"
	"github.com/go-gl/mathgl/mgl32"
)

// eventSink receives events fired by a controller during update.
type eventSink func(clipName, eventName string)

// controller evaluates one clip against elapsed time.
//
// It is a two-flag state machine: playing/stopped and, through the clip, looping/one-shot.
// Sampling is stepped: each bone takes the keyframe at the current reference index verbatim.
// Sampled local matrices are propagated into hierarchy-root space and the footstep bone's
// translation is removed from every bone so root motion can be applied externally.
type controller struct {
	clip *clip.Clip
	skel skeleton.Skeleton

	// local holds parent-relative matrices, rootSpace the propagated result.
	local     []mgl32.Mat4
	rootSpace []mgl32.Mat4
	invoked   []bool

	index, prevIndex int
	elapsed          float32

	blendElapsed, blendDuration float32

	footstepBone  int32
	footstepPos   mgl32.Vec3
	footstepAccum mgl32.Vec3
	footstepDelta mgl32.Vec3

	playing bool
}

// bind attaches the controller to a skeleton, allocating its per-bone storage once.
// Reused slots keep their storage.
func (c *controller) bind(skel skeleton.Skeleton) {
	c.skel = skel
	n := skel.BoneCount()
	if cap(c.local) < n {
		c.local = make([]mgl32.Mat4, n)
		c.rootSpace = make([]mgl32.Mat4, n)
	}
	c.local = c.local[:n]
	c.rootSpace = c.rootSpace[:n]
}

// changeClip restarts the controller on a new clip and samples its first key so the
// controller always exposes a valid pose.
func (c *controller) changeClip(cl *clip.Clip, blendDuration float32, footstepBone int32) {
	c.clip = cl
	c.index, c.prevIndex = 0, 0
	c.elapsed = 0
	c.blendElapsed = 0
	c.blendDuration = blendDuration
	c.footstepBone = footstepBone
	c.footstepAccum = mgl32.Vec3{}
	c.footstepDelta = mgl32.Vec3{}
	c.playing = true

	n := len(cl.Events())
	if cap(c.invoked) < n {
		c.invoked = make([]bool, n)
	}
	c.invoked = c.invoked[:n]
	c.rearmEvents()

	for i := range c.local {
		c.local[i] = c.skel.BindLocal(int32(i))
	}
	c.evaluate()
	c.footstepPos = c.footstepTranslation()
	c.pinFootstep()
}

// setFootstepBone switches the extracted bone and re-evaluates the current pose against it.
func (c *controller) setFootstepBone(bone int32) {
	c.footstepBone = bone
	c.footstepDelta = mgl32.Vec3{}
	c.footstepAccum = mgl32.Vec3{}
	if c.clip == nil {
		return
	}
	c.evaluate()
	c.footstepPos = c.footstepTranslation()
	c.pinFootstep()
}

// update advances the controller by dt and re-samples its pose.
// Stopped controllers keep their last pose. Negative dt is treated as zero.
func (c *controller) update(dt float32, sink eventSink) {
	c.footstepDelta = mgl32.Vec3{}
	if !c.playing || c.clip == nil {
		return
	}
	if dt < 0 {
		dt = 0
	}

	c.elapsed += dt

	// Strictly after the invoke time: a tick landing exactly on it does not fire.
	c.fireEvents(sink, func(at float32) bool { return c.elapsed > at })

	ref := c.clip.ReferenceTrack()
	last := max(len(ref)-1, 0)

	c.prevIndex = c.index
	for c.index < last && ref[c.index+1].Time <= c.elapsed {
		c.index++
	}
	advanced := c.index != c.prevIndex

	wrapped := false
	if c.index >= last {
		// The pass is complete, so events on the final key fire before the wrap re-arms them.
		c.fireEvents(sink, func(at float32) bool { return c.elapsed >= at })
		if c.clip.Loop() {
			wrapped = true
			c.index = 0
			c.elapsed = 0
			c.footstepAccum = mgl32.Vec3{}
			c.rearmEvents()
		} else {
			c.index = last
			c.playing = false
		}
	}

	c.evaluate()

	if c.hasFootstep() {
		switch {
		case wrapped:
			// Cover the remaining motion up to the last key, then re-base on key 0.
			end := common.Translation(c.rootSpaceAt(c.footstepBone, last))
			c.footstepDelta = end.Sub(c.footstepPos)
			c.footstepPos = c.footstepTranslation()
		case advanced:
			pos := c.footstepTranslation()
			c.footstepDelta = pos.Sub(c.footstepPos)
			c.footstepPos = pos
			c.footstepAccum = c.footstepAccum.Add(c.footstepDelta)
		}
	}

	c.pinFootstep()
}

// evaluate samples the current key for every tracked bone and propagates to root space.
func (c *controller) evaluate() {
	for i := range c.local {
		if track := c.clip.Track(int32(i)); len(track) > 0 {
			c.local[i] = track[min(c.index, len(track)-1)].Transform
		}
	}

	for _, id := range c.skel.TraversalOrder() {
		if parent := c.skel.ParentID(id); parent >= 0 {
			c.rootSpace[id] = c.rootSpace[parent].Mul4(c.local[id])
		} else {
			c.rootSpace[id] = c.local[id]
		}
	}
}

// rootSpaceAt computes a bone's root-space transform at an arbitrary key by walking its ancestors.
func (c *controller) rootSpaceAt(bone int32, key int) mgl32.Mat4 {
	m := c.localAt(bone, key)
	for p := c.skel.ParentID(bone); p >= 0; p = c.skel.ParentID(p) {
		m = c.localAt(p, key).Mul4(m)
	}
	return m
}

func (c *controller) localAt(bone int32, key int) mgl32.Mat4 {
	if track := c.clip.Track(bone); len(track) > 0 {
		return track[min(key, len(track)-1)].Transform
	}
	return c.skel.BindLocal(bone)
}

func (c *controller) hasFootstep() bool {
	return c.footstepBone >= 0 && int(c.footstepBone) < len(c.rootSpace)
}

// footstepTranslation returns the footstep bone's current root-space translation.
func (c *controller) footstepTranslation() mgl32.Vec3 {
	if !c.hasFootstep() {
		return mgl32.Vec3{}
	}
	return common.Translation(c.rootSpace[c.footstepBone])
}

// pinFootstep removes the footstep bone's translation from every root-space matrix.
func (c *controller) pinFootstep() {
	if !c.hasFootstep() {
		return
	}
	t := c.footstepTranslation()
	for i := range c.rootSpace {
		common.SubTranslation(&c.rootSpace[i], t)
	}
}

// fireEvents dispatches every event not yet invoked in this pass whose time is due.
func (c *controller) fireEvents(sink eventSink, due func(at float32) bool) {
	for i, ev := range c.clip.Events() {
		if !c.invoked[i] && due(ev.InvokeTime) {
			c.invoked[i] = true
			if sink != nil {
				sink(c.clip.Name(), ev.Name)
			}
		}
	}
}

func (c *controller) rearmEvents() {
	for i := range c.invoked {
		c.invoked[i] = false
	}
}

// interpolateRate is the linear blend ramp, clamped to 1.
func (c *controller) interpolateRate() float32 {
	if c.blendDuration <= 0 {
		return 1
	}
	return min(1, c.blendElapsed/c.blendDuration)
}
