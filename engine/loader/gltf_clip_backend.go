package loader

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/clip"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
)

// gltfChannel is one decoded animation sampler bound to a bone property.
type gltfChannel struct {
	times  []float32
	values []float32 // len(times) * comps, cubic spline tangents stripped
	comps  int
	step   bool
}

// gltfBoneChannels collects the channels animating a single bone.
type gltfBoneChannels struct {
	node                         uint32
	translation, rotation, scale *gltfChannel
}

// gltfExtractClip converts a glTF animation into raw keyframes for the skeleton built from
// the same skin. Every animated bone is resampled onto the union of all channel timestamps,
// rebased to start at zero, so the tracks share one timeline. Properties a bone has no
// channel for keep the node's rest value.
//
// Parameters:
//   - doc: the decoded document with its buffers loaded
//   - skinIndex: the skin the skeleton was extracted from
//   - animation: the animation name, or empty for the first animation
//
// Returns:
//   - []clip.RawKeyframe: keyframes ordered by bone then time
//   - error: ErrNoAnimation, ErrNoSkin or ErrMalformed
func gltfExtractClip(doc *gltf.Document, skinIndex int, animation string) ([]clip.RawKeyframe, error) {
	anim, err := gltfFindAnimation(doc, animation)
	if err != nil {
		return nil, err
	}
	_, nodeToBone, err := gltfSkinBones(doc, skinIndex)
	if err != nil {
		return nil, err
	}

	bones := make(map[int32]*gltfBoneChannels)
	var timeline []float32
	for i, ch := range anim.Channels {
		if ch.Target.Node == nil || ch.Target.Path == gltf.TRSWeights {
			continue
		}
		bone, ok := nodeToBone[*ch.Target.Node]
		if !ok {
			continue
		}
		if ch.Sampler == nil || int(*ch.Sampler) >= len(anim.Samplers) {
			return nil, errors.Wrapf(ErrMalformed, "animation %q channel %d has no sampler", anim.Name, i)
		}

		decoded, err := gltfDecodeSampler(doc, anim.Samplers[*ch.Sampler], ch.Target.Path)
		if err != nil {
			return nil, errors.Wrapf(err, "animation %q channel %d", anim.Name, i)
		}
		if len(decoded.times) == 0 {
			continue
		}
		timeline = append(timeline, decoded.times...)

		bc := bones[bone]
		if bc == nil {
			bc = &gltfBoneChannels{node: *ch.Target.Node}
			bones[bone] = bc
		}
		switch ch.Target.Path {
		case gltf.TRSTranslation:
			bc.translation = decoded
		case gltf.TRSRotation:
			bc.rotation = decoded
		case gltf.TRSScale:
			bc.scale = decoded
		}
	}
	if len(bones) == 0 {
		return nil, errors.Wrapf(ErrNoAnimation, "animation %q animates no joint of skin %d", anim.Name, skinIndex)
	}

	slices.Sort(timeline)
	timeline = slices.Compact(timeline)
	start := timeline[0]

	order := make([]int32, 0, len(bones))
	for bone := range bones {
		order = append(order, bone)
	}
	slices.Sort(order)

	keys := make([]clip.RawKeyframe, 0, len(order)*len(timeline))
	for _, bone := range order {
		bc := bones[bone]
		rest := common.DecomposeTRS(gltfNodeTransform(doc.Nodes[bc.node]))
		for _, t := range timeline {
			trs := rest
			if bc.translation != nil {
				trs.Translation = gltfSampleVec3(bc.translation, t)
			}
			if bc.rotation != nil {
				trs.Rotation = gltfSampleQuat(bc.rotation, t)
			}
			if bc.scale != nil {
				trs.Scale = gltfSampleVec3(bc.scale, t)
			}
			keys = append(keys, clip.RawKeyframe{
				BoneIndex: bone,
				Time:      t - start,
				Transform: common.Mat4ToAffine(trs.Mat4()),
			})
		}
	}
	return keys, nil
}

func gltfFindAnimation(doc *gltf.Document, name string) (*gltf.Animation, error) {
	if len(doc.Animations) == 0 {
		return nil, errors.Wrap(ErrNoAnimation, "document has no animations")
	}
	if name == "" {
		return doc.Animations[0], nil
	}
	for _, anim := range doc.Animations {
		if anim.Name == name {
			return anim, nil
		}
	}
	return nil, errors.Wrapf(ErrNoAnimation, "no animation %q", name)
}

// gltfDecodeSampler reads a sampler's input and output accessors.
func gltfDecodeSampler(doc *gltf.Document, s *gltf.AnimationSampler, path gltf.TRSProperty) (*gltfChannel, error) {
	if s.Input == nil || s.Output == nil {
		return nil, errors.Wrap(ErrMalformed, "sampler without input or output")
	}
	times, err := gltfReadFloatAccessor(doc, int(*s.Input), gltf.AccessorScalar)
	if err != nil {
		return nil, err
	}

	typ, comps := gltf.AccessorVec3, 3
	if path == gltf.TRSRotation {
		typ, comps = gltf.AccessorVec4, 4
	}
	values, err := gltfReadFloatAccessor(doc, int(*s.Output), typ)
	if err != nil {
		return nil, err
	}

	if s.Interpolation == gltf.InterpolationCubicSpline {
		// Each key stores in-tangent, value, out-tangent; keep the values.
		if len(values) != 3*len(times)*comps {
			return nil, errors.Wrapf(ErrMalformed, "cubic spline sampler has %d values for %d keys", len(values)/comps, len(times))
		}
		kept := make([]float32, 0, len(times)*comps)
		for i := range times {
			kept = append(kept, values[(3*i+1)*comps:(3*i+2)*comps]...)
		}
		values = kept
	}
	if len(values) != len(times)*comps {
		return nil, errors.Wrapf(ErrMalformed, "sampler has %d values for %d keys", len(values)/comps, len(times))
	}
	for i := 1; i < len(times); i++ {
		if times[i] < times[i-1] {
			return nil, errors.Wrapf(ErrMalformed, "sampler input not ascending at key %d", i)
		}
	}

	return &gltfChannel{
		times:  times,
		values: values,
		comps:  comps,
		step:   s.Interpolation == gltf.InterpolationStep,
	}, nil
}

// segment finds the keys around t and the blend factor between them.
// Times outside the channel clamp to its first or last key.
func (c *gltfChannel) segment(t float32) (int, int, float32) {
	last := len(c.times) - 1
	if t <= c.times[0] {
		return 0, 0, 0
	}
	if t >= c.times[last] {
		return last, last, 0
	}
	next, _ := slices.BinarySearch(c.times, t)
	if c.times[next] == t {
		return next, next, 0
	}
	prev := next - 1
	if c.step {
		return prev, prev, 0
	}
	return prev, next, (t - c.times[prev]) / (c.times[next] - c.times[prev])
}

func (c *gltfChannel) at(i int) []float32 {
	return c.values[i*c.comps : (i+1)*c.comps]
}

func gltfSampleVec3(c *gltfChannel, t float32) mgl32.Vec3 {
	a, b, amount := c.segment(t)
	va, vb := c.at(a), c.at(b)
	return common.LerpVec3(mgl32.Vec3{va[0], va[1], va[2]}, mgl32.Vec3{vb[0], vb[1], vb[2]}, amount)
}

func gltfSampleQuat(c *gltfChannel, t float32) mgl32.Quat {
	a, b, amount := c.segment(t)
	va, vb := c.at(a), c.at(b)
	qa := mgl32.Quat{W: va[3], V: mgl32.Vec3{va[0], va[1], va[2]}}
	qb := mgl32.Quat{W: vb[3], V: mgl32.Vec3{vb[0], vb[1], vb[2]}}
	if a == b {
		return qa.Normalize()
	}
	return common.SlerpShortest(qa, qb, amount)
}
