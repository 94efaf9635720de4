package skeleton

import (
	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// MaxBones is the largest number of bones a single Skeleton can hold.
const MaxBones = 512

var (
	// ErrTooManyBones is returned when a skeleton definition exceeds MaxBones.
	ErrTooManyBones = errors.New("skeleton: bone count exceeds capacity")
	// ErrInvalidBoneIndex is returned when a bone index is outside the skeleton.
	ErrInvalidBoneIndex = errors.New("skeleton: invalid bone index")
	// ErrInvalidParent is returned when a bone references a parent outside the skeleton or itself.
	ErrInvalidParent = errors.New("skeleton: invalid parent index")
	// ErrCyclicHierarchy is returned when some bones cannot be reached from any root.
	ErrCyclicHierarchy = errors.New("skeleton: hierarchy contains a cycle")
)

// BoneRecord is a single bone as supplied by a skeleton definition provider.
type BoneRecord struct {
	// Name is the bone's identifier used by FindBoneID.
	Name string
	// ParentIndex is the index of the parent record, or -1 for a root.
	ParentIndex int32
	// BindPose is the bone's rest transform in hierarchy-root space.
	BindPose common.Affine
	// InverseBindPose is the inverse of BindPose.
	InverseBindPose common.Affine
}

// Bone is a node of the hierarchy. Children are indices into the owning Skeleton.
type Bone struct {
	ID       int32
	Name     string
	ParentID int32

	BindPose        mgl32.Mat4
	InverseBindPose mgl32.Mat4

	// Local is relative to the parent until an animation pose is applied, after which
	// it holds the bone's hierarchy-root space transform.
	Local mgl32.Mat4
	World mgl32.Mat4

	Children []int32
}
