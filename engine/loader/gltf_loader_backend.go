package loader

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/skeleton"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
)

// gltfLoaderBackend reads skeleton definitions from the skins of glTF/GLB documents.
type gltfLoaderBackend struct {
	skin int
}

var _ skeletonBackend = &gltfLoaderBackend{}

// newGLTFLoaderBackend creates a glTF backend that extracts the skin at the given index.
//
// Parameters:
//   - skin: the skin index to extract from each document
//
// Returns:
//   - *gltfLoaderBackend: the loader backend for glTF/GLB files
func newGLTFLoaderBackend(skin int) *gltfLoaderBackend {
	return &gltfLoaderBackend{skin: skin}
}

func (b *gltfLoaderBackend) LoadSkeleton(path string) ([]skeleton.BoneRecord, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, err
	}
	return gltfExtractSkeleton(doc, b.skin)
}

func (b *gltfLoaderBackend) ReadSkeleton(r io.Reader) ([]skeleton.BoneRecord, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, err
	}
	return gltfExtractSkeleton(doc, b.skin)
}

// gltfExtractSkeleton converts one skin of a glTF document into bone records sorted so
// that parents precede children. Bind poses come from the inverse bind matrices when the
// skin has them and from the accumulated node transforms otherwise.
//
// Parameters:
//   - doc: the decoded document
//   - skinIndex: the skin to convert
//
// Returns:
//   - []skeleton.BoneRecord: the bone records in topological order
//   - error: ErrNoSkin or ErrMalformed if the skin cannot be converted
func gltfExtractSkeleton(doc *gltf.Document, skinIndex int) ([]skeleton.BoneRecord, error) {
	records, _, err := gltfSkinBones(doc, skinIndex)
	return records, err
}

// gltfSkinBones converts a skin like gltfExtractSkeleton and also returns the bone index
// each joint node ends up at after sorting, so animation channels can be retargeted.
func gltfSkinBones(doc *gltf.Document, skinIndex int) ([]skeleton.BoneRecord, map[uint32]int32, error) {
	if skinIndex < 0 || skinIndex >= len(doc.Skins) {
		return nil, nil, errors.Wrapf(ErrNoSkin, "skin %d of %d", skinIndex, len(doc.Skins))
	}
	skin := doc.Skins[skinIndex]
	if len(skin.Joints) > skeleton.MaxBones {
		return nil, nil, errors.Wrapf(skeleton.ErrTooManyBones, "skin %d has %d joints", skinIndex, len(skin.Joints))
	}

	var inverseBind []mgl32.Mat4
	if skin.InverseBindMatrices != nil {
		var err error
		inverseBind, err = gltfReadMat4Accessor(doc, int(*skin.InverseBindMatrices))
		if err != nil {
			return nil, nil, errors.Wrap(err, "inverse bind matrices")
		}
	}

	nodeParent := make(map[uint32]uint32, len(doc.Nodes))
	for i, node := range doc.Nodes {
		for _, child := range node.Children {
			nodeParent[child] = uint32(i)
		}
	}

	jointToBone := make(map[uint32]int32, len(skin.Joints))
	for i, joint := range skin.Joints {
		if int(joint) >= len(doc.Nodes) {
			return nil, nil, errors.Wrapf(ErrMalformed, "joint %d references node %d of %d", i, joint, len(doc.Nodes))
		}
		jointToBone[joint] = int32(i)
	}

	records := make([]skeleton.BoneRecord, len(skin.Joints))
	for i, joint := range skin.Joints {
		node := doc.Nodes[joint]
		rec := &records[i]

		rec.Name = node.Name
		if rec.Name == "" {
			rec.Name = fmt.Sprintf("bone_%d", i)
		}

		// Nearest joint ancestor; intermediate non-joint nodes are skipped.
		rec.ParentIndex = -1
		n, ok := nodeParent[joint]
		for depth := 0; ok && depth < len(doc.Nodes); depth++ {
			if parent, isJoint := jointToBone[n]; isJoint {
				rec.ParentIndex = parent
				break
			}
			n, ok = nodeParent[n]
		}

		var bind, invBind mgl32.Mat4
		if i < len(inverseBind) {
			invBind = inverseBind[i]
			bind = invBind.Inv()
		} else {
			bind = gltfGlobalTransform(doc, nodeParent, joint)
			invBind = bind.Inv()
		}
		rec.BindPose = common.Mat4ToAffine(bind)
		rec.InverseBindPose = common.Mat4ToAffine(invBind)
	}

	sorted, newIndex := gltfTopologicalSortBones(records)
	nodeToBone := make(map[uint32]int32, len(skin.Joints))
	for i, joint := range skin.Joints {
		nodeToBone[joint] = newIndex[i]
	}
	return sorted, nodeToBone, nil
}

// gltfNodeTransform returns a node's parent-relative transform. A non-zero matrix takes
// precedence over the TRS properties; zero TRS components fall back to their defaults.
func gltfNodeTransform(node *gltf.Node) mgl32.Mat4 {
	if node.Matrix != ([16]float32{}) && node.Matrix != gltfIdentityMatrix {
		return mgl32.Mat4(node.Matrix)
	}

	trs := common.IdentityTRS()
	trs.Translation = mgl32.Vec3(node.Translation)
	if node.Rotation != ([4]float32{}) {
		trs.Rotation = mgl32.Quat{W: node.Rotation[3], V: mgl32.Vec3{node.Rotation[0], node.Rotation[1], node.Rotation[2]}}
	}
	if node.Scale != ([3]float32{}) {
		trs.Scale = mgl32.Vec3(node.Scale)
	}
	return trs.Mat4()
}

var gltfIdentityMatrix = [16]float32{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

// gltfGlobalTransform accumulates node transforms from the scene root down to the node.
func gltfGlobalTransform(doc *gltf.Document, nodeParent map[uint32]uint32, node uint32) mgl32.Mat4 {
	m := gltfNodeTransform(doc.Nodes[node])
	n, ok := nodeParent[node]
	for depth := 0; ok && depth < len(doc.Nodes); depth++ {
		m = gltfNodeTransform(doc.Nodes[n]).Mul4(m)
		n, ok = nodeParent[n]
	}
	return m
}

// gltfReadMat4Accessor decodes a float MAT4 accessor from the document's loaded buffers.
func gltfReadMat4Accessor(doc *gltf.Document, index int) ([]mgl32.Mat4, error) {
	flat, err := gltfReadFloatAccessor(doc, index, gltf.AccessorMat4)
	if err != nil {
		return nil, err
	}
	out := make([]mgl32.Mat4, len(flat)/16)
	for i := range out {
		copy(out[i][:], flat[i*16:])
	}
	return out, nil
}

// gltfReadFloatAccessor decodes a float accessor of the given type into a flat slice of
// Count * components values.
func gltfReadFloatAccessor(doc *gltf.Document, index int, typ gltf.AccessorType) ([]float32, error) {
	if index < 0 || index >= len(doc.Accessors) {
		return nil, errors.Wrapf(ErrMalformed, "accessor %d of %d", index, len(doc.Accessors))
	}
	acc := doc.Accessors[index]
	if acc.Type != typ || acc.ComponentType != gltf.ComponentFloat {
		return nil, errors.Wrapf(ErrMalformed, "accessor %d is not a float %s", index, typ)
	}
	comps := int(typ.Components())
	if acc.BufferView == nil {
		// Sparse-only or zero-initialised accessor.
		return make([]float32, int(acc.Count)*comps), nil
	}
	if int(*acc.BufferView) >= len(doc.BufferViews) {
		return nil, errors.Wrapf(ErrMalformed, "accessor %d buffer view %d", index, *acc.BufferView)
	}
	view := doc.BufferViews[*acc.BufferView]
	if int(view.Buffer) >= len(doc.Buffers) {
		return nil, errors.Wrapf(ErrMalformed, "buffer view %d buffer %d", *acc.BufferView, view.Buffer)
	}
	data := doc.Buffers[view.Buffer].Data

	elemSize := comps * 4
	stride := int(view.ByteStride)
	if stride == 0 {
		stride = elemSize
	}
	base := int(view.ByteOffset) + int(acc.ByteOffset)

	out := make([]float32, int(acc.Count)*comps)
	for i := 0; i < int(acc.Count); i++ {
		off := base + i*stride
		if off+elemSize > len(data) {
			return nil, errors.Wrapf(ErrMalformed, "accessor %d element %d past end of buffer", index, i)
		}
		for j := 0; j < comps; j++ {
			out[i*comps+j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off+j*4:]))
		}
	}
	return out, nil
}

// gltfTopologicalSortBones reorders bones breadth-first from the roots so that parents
// always come before children, remapping parent indices to the new order.
// newIndex[old] is the position a bone was moved to.
func gltfTopologicalSortBones(bones []skeleton.BoneRecord) ([]skeleton.BoneRecord, []int32) {
	identity := make([]int32, len(bones))
	for i := range identity {
		identity[i] = int32(i)
	}
	if len(bones) == 0 {
		return bones, identity
	}

	children := make(map[int32][]int32)
	queue := make([]int32, 0, len(bones))
	for i, bone := range bones {
		if bone.ParentIndex >= 0 {
			children[bone.ParentIndex] = append(children[bone.ParentIndex], int32(i))
		} else {
			queue = append(queue, int32(i))
		}
	}

	sorted := make([]int32, 0, len(bones))
	for len(queue) > 0 {
		oldIdx := queue[0]
		queue = queue[1:]
		sorted = append(sorted, oldIdx)
		queue = append(queue, children[oldIdx]...)
	}
	if len(sorted) < len(bones) {
		// Unreachable bones form a cycle; leave the order alone so skeleton construction reports it.
		return bones, identity
	}

	oldToNew := make([]int32, len(bones))
	for newIdx, oldIdx := range sorted {
		oldToNew[oldIdx] = int32(newIdx)
	}

	out := make([]skeleton.BoneRecord, len(sorted))
	for newIdx, oldIdx := range sorted {
		bone := bones[oldIdx]
		if bone.ParentIndex >= 0 {
			bone.ParentIndex = oldToNew[bone.ParentIndex]
		}
		out[newIdx] = bone
	}
	return out, oldToNew
}
