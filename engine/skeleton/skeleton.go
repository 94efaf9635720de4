package skeleton

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// skeleton is the implementation of the Skeleton interface.
type skeleton struct {
	logger      logrus.FieldLogger
	debugChecks bool

	bones     []Bone
	bindLocal []mgl32.Mat4
	skinning  []mgl32.Mat4

	nameToIndex map[string]int32
	roots       []int32
	order       []int32

	animated    bool
	initialized bool
}

// Skeleton defines the public interface for a bone hierarchy.
//
// A Skeleton owns its bones and a parallel array of skinning matrices. Before any
// animation pose is applied, Update propagates parent-relative local matrices from the
// roots down (bind-pose display). Once SetRootSpacePose has been called, every bone's
// local matrix is already expressed in hierarchy-root space and Update becomes a flat
// per-bone multiply with the world matrix.
//
// A Skeleton must not be mutated from multiple goroutines at once.
type Skeleton interface {
	// IsInitialized reports whether the skeleton was built successfully.
	//
	// Returns:
	//   - bool: true once NewSkeleton has completed without error
	IsInitialized() bool

	// BoneCount returns the number of bones in the hierarchy.
	//
	// Returns:
	//   - int: the bone count
	BoneCount() int

	// Bone returns a copy of the bone at the given index.
	//
	// Parameters:
	//   - id: the bone index
	//
	// Returns:
	//   - Bone: the bone data
	//   - bool: false if the index is out of range
	Bone(id int32) (Bone, bool)

	// FindBoneID resolves a bone name to its index. When several bones share a name
	// the first one wins.
	//
	// Parameters:
	//   - name: the bone name
	//
	// Returns:
	//   - int32: the bone index, or -1 if no bone carries the name
	FindBoneID(name string) int32

	// ParentID returns the parent of the given bone.
	//
	// Parameters:
	//   - id: the bone index
	//
	// Returns:
	//   - int32: the parent index, or -1 for roots and out-of-range indices
	ParentID(id int32) int32

	// Roots returns the indices of all bones without a parent, in definition order.
	//
	// Returns:
	//   - []int32: the root indices (read-only)
	Roots() []int32

	// TraversalOrder returns every bone index ordered so that each bone appears after its parent.
	//
	// Returns:
	//   - []int32: the traversal order (read-only)
	TraversalOrder() []int32

	// BindLocal returns the bind-pose transform of a bone relative to its parent.
	//
	// Parameters:
	//   - id: the bone index
	//
	// Returns:
	//   - mgl32.Mat4: the parent-relative bind transform, or identity for out-of-range indices
	BindLocal(id int32) mgl32.Mat4

	// SetLocalMatrix overwrites the local matrix of a single bone.
	//
	// Parameters:
	//   - id: the bone index
	//   - m: the new local matrix
	//
	// Returns:
	//   - error: ErrInvalidBoneIndex if id is out of range; the skeleton is left untouched
	SetLocalMatrix(id int32, m mgl32.Mat4) error

	// SetRootSpacePose replaces every bone's local matrix with a hierarchy-root space
	// transform and switches the skeleton into animated mode. Extra entries are ignored;
	// missing entries leave the corresponding bones untouched.
	//
	// Parameters:
	//   - pose: one root-space matrix per bone, indexed by bone ID
	SetRootSpacePose(pose []mgl32.Mat4)

	// Animated reports whether an animation pose has been applied since the last Reset.
	//
	// Returns:
	//   - bool: true in animated mode
	Animated() bool

	// Reset restores the bind pose and leaves animated mode.
	Reset()

	// Update recomputes world and skinning matrices for every bone.
	//
	// Parameters:
	//   - world: the entity's world transform
	Update(world mgl32.Mat4)

	// WorldMatrix returns the world matrix computed by the last Update.
	//
	// Parameters:
	//   - id: the bone index
	//
	// Returns:
	//   - mgl32.Mat4: the world matrix, or identity for out-of-range indices
	WorldMatrix(id int32) mgl32.Mat4

	// SkinningMatrices returns one matrix per bone (world * inverse bind pose),
	// valid after Update. The slice is owned by the skeleton and must not be modified.
	//
	// Returns:
	//   - []mgl32.Mat4: the skinning matrices
	SkinningMatrices() []mgl32.Mat4

	// DecomposeWorldTRS splits a bone's world matrix into translation, rotation and scale.
	//
	// Parameters:
	//   - id: the bone index
	//
	// Returns:
	//   - common.TRS: the decomposed world transform
	//   - error: ErrInvalidBoneIndex if id is out of range
	DecomposeWorldTRS(id int32) (common.TRS, error)
}

var _ Skeleton = &skeleton{}

// NewSkeleton builds a bone hierarchy from provider records.
// Each bone's parent-relative local matrix is parentInverseBindPose * bindPose
// (roots use their bind pose directly), and bones are linked into their parent's child list.
// Duplicate names are reported as warnings when debug checks are enabled and do not fail construction.
//
// Parameters:
//   - records: the bone definitions, at most MaxBones
//   - options: functional options to configure the skeleton
//
// Returns:
//   - Skeleton: the built hierarchy
//   - error: ErrTooManyBones, ErrInvalidParent or ErrCyclicHierarchy if the definition is unusable
func NewSkeleton(records []BoneRecord, options ...SkeletonBuilderOption) (Skeleton, error) {
	if len(records) > MaxBones {
		return nil, errors.Wrapf(ErrTooManyBones, "%d bones, limit %d", len(records), MaxBones)
	}

	s := &skeleton{
		debugChecks: true,
		bones:       make([]Bone, len(records)),
		bindLocal:   make([]mgl32.Mat4, len(records)),
		skinning:    make([]mgl32.Mat4, len(records)),
		nameToIndex: make(map[string]int32, len(records)),
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = common.ComponentLogger(s.logger, "skeleton")

	for i, rec := range records {
		id := int32(i)
		if rec.ParentIndex < -1 || rec.ParentIndex >= int32(len(records)) || rec.ParentIndex == id {
			return nil, errors.Wrapf(ErrInvalidParent, "bone %d (%q) references parent %d", i, rec.Name, rec.ParentIndex)
		}

		if _, dup := s.nameToIndex[rec.Name]; dup {
			if s.debugChecks {
				s.logger.WithFields(logrus.Fields{"bone": i, "name": rec.Name}).Warn("duplicate bone name")
			}
		} else {
			s.nameToIndex[rec.Name] = id
		}

		s.bones[i] = Bone{
			ID:              id,
			Name:            rec.Name,
			ParentID:        rec.ParentIndex,
			BindPose:        rec.BindPose.Mat4(),
			InverseBindPose: rec.InverseBindPose.Mat4(),
			World:           mgl32.Ident4(),
		}
		s.skinning[i] = mgl32.Ident4()
	}

	for i := range s.bones {
		b := &s.bones[i]
		if b.ParentID < 0 {
			s.roots = append(s.roots, b.ID)
			s.bindLocal[i] = b.BindPose
			continue
		}
		parent := &s.bones[b.ParentID]
		parent.Children = append(parent.Children, b.ID)
		s.bindLocal[i] = parent.InverseBindPose.Mul4(b.BindPose)
	}

	s.order = s.breadthFirstOrder()
	if len(s.order) != len(s.bones) {
		return nil, errors.Wrapf(ErrCyclicHierarchy, "%d of %d bones unreachable from a root", len(s.bones)-len(s.order), len(s.bones))
	}

	s.Reset()
	s.initialized = true
	return s, nil
}

// breadthFirstOrder walks the hierarchy from the roots, producing a parent-before-child order.
// Bones caught in a cycle are never reached and are therefore missing from the result.
func (s *skeleton) breadthFirstOrder() []int32 {
	order := make([]int32, 0, len(s.bones))
	queue := make([]int32, 0, len(s.bones))
	queue = append(queue, s.roots...)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		queue = append(queue, s.bones[id].Children...)
	}
	return order
}

func (s *skeleton) IsInitialized() bool {
	return s.initialized
}

func (s *skeleton) BoneCount() int {
	return len(s.bones)
}

func (s *skeleton) Bone(id int32) (Bone, bool) {
	if !s.valid(id) {
		return Bone{}, false
	}
	b := s.bones[id]
	b.Children = slices.Clone(b.Children)
	return b, true
}

func (s *skeleton) FindBoneID(name string) int32 {
	if id, ok := s.nameToIndex[name]; ok {
		return id
	}
	return -1
}

func (s *skeleton) ParentID(id int32) int32 {
	if !s.valid(id) {
		return -1
	}
	return s.bones[id].ParentID
}

func (s *skeleton) Roots() []int32 {
	return s.roots
}

func (s *skeleton) TraversalOrder() []int32 {
	return s.order
}

func (s *skeleton) BindLocal(id int32) mgl32.Mat4 {
	if !s.valid(id) {
		return mgl32.Ident4()
	}
	return s.bindLocal[id]
}

func (s *skeleton) SetLocalMatrix(id int32, m mgl32.Mat4) error {
	if !s.valid(id) {
		s.logger.WithField("bone", id).Error("local matrix rejected: bone index out of range")
		return errors.Wrapf(ErrInvalidBoneIndex, "bone %d of %d", id, len(s.bones))
	}
	s.bones[id].Local = m
	return nil
}

func (s *skeleton) SetRootSpacePose(pose []mgl32.Mat4) {
	n := min(len(pose), len(s.bones))
	for i := 0; i < n; i++ {
		s.bones[i].Local = pose[i]
	}
	s.animated = true
}

func (s *skeleton) Animated() bool {
	return s.animated
}

func (s *skeleton) Reset() {
	for i := range s.bones {
		s.bones[i].Local = s.bindLocal[i]
	}
	s.animated = false
}

func (s *skeleton) Update(world mgl32.Mat4) {
	if s.animated {
		for i := range s.bones {
			s.bones[i].World = world.Mul4(s.bones[i].Local)
		}
	} else {
		for _, root := range s.roots {
			s.propagate(root, world)
		}
	}

	for i := range s.bones {
		s.skinning[i] = s.bones[i].World.Mul4(s.bones[i].InverseBindPose)
	}
}

// propagate computes world = parentWorld * local for a bone and recurses into its children.
func (s *skeleton) propagate(id int32, parentWorld mgl32.Mat4) {
	b := &s.bones[id]
	b.World = parentWorld.Mul4(b.Local)
	for _, child := range b.Children {
		s.propagate(child, b.World)
	}
}

func (s *skeleton) WorldMatrix(id int32) mgl32.Mat4 {
	if !s.valid(id) {
		return mgl32.Ident4()
	}
	return s.bones[id].World
}

func (s *skeleton) SkinningMatrices() []mgl32.Mat4 {
	return s.skinning
}

func (s *skeleton) DecomposeWorldTRS(id int32) (common.TRS, error) {
	if !s.valid(id) {
		return common.TRS{}, errors.Wrapf(ErrInvalidBoneIndex, "bone %d of %d", id, len(s.bones))
	}
	return common.DecomposeTRS(s.bones[id].World), nil
}

func (s *skeleton) valid(id int32) bool {
	return id >= 0 && int(id) < len(s.bones)
}
