package skeleton

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-5

// boneAt returns a record whose bind pose places the bone at (x, y, z) in hierarchy-root space.
func boneAt(name string, parent int32, x, y, z float32) BoneRecord {
	return BoneRecord{
		Name:            name,
		ParentIndex:     parent,
		BindPose:        common.TranslationAffine(x, y, z),
		InverseBindPose: common.TranslationAffine(-x, -y, -z),
	}
}

// chain builds root -> spine -> head stacked one unit apart along Y.
func chain(t *testing.T) Skeleton {
	t.Helper()
	s, err := NewSkeleton([]BoneRecord{
		boneAt("root", -1, 0, 0, 0),
		boneAt("spine", 0, 0, 1, 0),
		boneAt("head", 1, 0, 2, 0),
	}, WithLogger(quietLogger()))
	require.NoError(t, err)
	return s
}

func quietLogger() logrus.FieldLogger {
	logger, _ := logtest.NewNullLogger()
	return logger
}

func TestNewSkeleton_LocalFromBindPoses(t *testing.T) {
	t.Parallel()
	s := chain(t)

	require.True(t, s.IsInitialized())
	require.Equal(t, 3, s.BoneCount())

	assert.True(t, s.BindLocal(0).ApproxEqualThreshold(mgl32.Ident4(), eps))
	assert.True(t, s.BindLocal(1).ApproxEqualThreshold(mgl32.Translate3D(0, 1, 0), eps))
	assert.True(t, s.BindLocal(2).ApproxEqualThreshold(mgl32.Translate3D(0, 1, 0), eps))

	root, ok := s.Bone(0)
	require.True(t, ok)
	assert.Equal(t, []int32{1}, root.Children)
	assert.Equal(t, int32(-1), root.ParentID)
	assert.Equal(t, []int32{0}, s.Roots())
}

func TestBone_ChildrenAreCopied(t *testing.T) {
	t.Parallel()
	s := chain(t)

	root, ok := s.Bone(0)
	require.True(t, ok)
	root.Children[0] = 2
	root.Children = append(root.Children, 7)

	again, _ := s.Bone(0)
	assert.Equal(t, []int32{1}, again.Children)
	assert.Equal(t, int32(0), s.ParentID(1))
}

func TestUpdate_BindPoseDisplayPropagatesFromRoots(t *testing.T) {
	t.Parallel()
	s := chain(t)

	s.Update(mgl32.Translate3D(10, 0, 0))

	assert.False(t, s.Animated())
	assert.True(t, s.WorldMatrix(2).ApproxEqualThreshold(mgl32.Translate3D(10, 2, 0), eps))
	for i, m := range s.SkinningMatrices() {
		assert.True(t, m.ApproxEqualThreshold(mgl32.Translate3D(10, 0, 0), eps), "bone %d skinning %v", i, m)
	}
}

func TestUpdate_AnimatedPoseIsFlat(t *testing.T) {
	t.Parallel()
	s := chain(t)

	pose := []mgl32.Mat4{
		mgl32.Ident4(),
		mgl32.Translate3D(0, 1, 0),
		mgl32.Translate3D(1, 2, 0),
	}
	s.SetRootSpacePose(pose)
	s.Update(mgl32.Translate3D(0, 0, 5))

	require.True(t, s.Animated())
	// Root-space matrices are not chained through parents.
	assert.True(t, s.WorldMatrix(2).ApproxEqualThreshold(mgl32.Translate3D(1, 2, 5), eps))
	assert.True(t, s.SkinningMatrices()[2].ApproxEqualThreshold(mgl32.Translate3D(1, 0, 5), eps))

	s.Reset()
	s.Update(mgl32.Ident4())
	assert.False(t, s.Animated())
	assert.True(t, s.WorldMatrix(2).ApproxEqualThreshold(mgl32.Translate3D(0, 2, 0), eps))
}

func TestFindBoneID(t *testing.T) {
	t.Parallel()
	s := chain(t)

	assert.Equal(t, int32(-1), s.FindBoneID("unknown"))
	assert.Equal(t, int32(1), s.FindBoneID("spine"))
	assert.Equal(t, s.FindBoneID("head"), s.FindBoneID("head"))
}

func TestTraversalOrder_ParentsFirst(t *testing.T) {
	t.Parallel()

	// Children listed before their parents, two roots.
	s, err := NewSkeleton([]BoneRecord{
		boneAt("hand", 2, 0, 3, 0),
		boneAt("prop", -1, 5, 0, 0),
		boneAt("arm", 3, 0, 2, 0),
		boneAt("hips", -1, 0, 1, 0),
	}, WithLogger(quietLogger()))
	require.NoError(t, err)

	order := s.TraversalOrder()
	require.Len(t, order, 4)

	position := make(map[int32]int, len(order))
	for i, id := range order {
		position[id] = i
	}
	for _, id := range order {
		if parent := s.ParentID(id); parent >= 0 {
			assert.Less(t, position[parent], position[id], "bone %d visited before parent %d", id, parent)
		}
	}
}

func TestNewSkeleton_Rejections(t *testing.T) {
	t.Parallel()

	tooMany := make([]BoneRecord, MaxBones+1)
	for i := range tooMany {
		tooMany[i] = boneAt(fmt.Sprintf("b%d", i), -1, 0, 0, 0)
	}

	cases := []struct {
		name    string
		records []BoneRecord
		want    error
	}{
		{"too many bones", tooMany, ErrTooManyBones},
		{"parent out of range", []BoneRecord{boneAt("a", 4, 0, 0, 0)}, ErrInvalidParent},
		{"self parent", []BoneRecord{boneAt("a", 0, 0, 0, 0)}, ErrInvalidParent},
		{"cycle", []BoneRecord{
			boneAt("root", -1, 0, 0, 0),
			boneAt("a", 2, 0, 0, 0),
			boneAt("b", 1, 0, 0, 0),
		}, ErrCyclicHierarchy},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := NewSkeleton(tc.records, WithLogger(quietLogger()))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.Nil(t, s)
		})
	}
}

func TestNewSkeleton_MaxBonesAccepted(t *testing.T) {
	t.Parallel()

	records := make([]BoneRecord, MaxBones)
	records[0] = boneAt("root", -1, 0, 0, 0)
	for i := 1; i < MaxBones; i++ {
		records[i] = boneAt(fmt.Sprintf("b%d", i), int32(i-1), 0, float32(i), 0)
	}
	s, err := NewSkeleton(records, WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.Equal(t, MaxBones, s.BoneCount())
}

func TestNewSkeleton_DuplicateNameWarns(t *testing.T) {
	t.Parallel()

	logger, hook := logtest.NewNullLogger()
	s, err := NewSkeleton([]BoneRecord{
		boneAt("root", -1, 0, 0, 0),
		boneAt("twin", 0, 1, 0, 0),
		boneAt("twin", 0, -1, 0, 0),
	}, WithLogger(logger))
	require.NoError(t, err)

	assert.Equal(t, int32(1), s.FindBoneID("twin"))
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "twin", hook.LastEntry().Data["name"])
}

func TestNewSkeleton_DuplicateNameSilentWithoutDebugChecks(t *testing.T) {
	t.Parallel()

	logger, hook := logtest.NewNullLogger()
	_, err := NewSkeleton([]BoneRecord{
		boneAt("twin", -1, 0, 0, 0),
		boneAt("twin", -1, 1, 0, 0),
	}, WithLogger(logger), WithDebugChecks(false))
	require.NoError(t, err)
	assert.Empty(t, hook.AllEntries())
}

func TestSetLocalMatrix(t *testing.T) {
	t.Parallel()
	s := chain(t)

	require.NoError(t, s.SetLocalMatrix(1, mgl32.Translate3D(0, 3, 0)))
	s.Update(mgl32.Ident4())
	assert.True(t, s.WorldMatrix(2).ApproxEqualThreshold(mgl32.Translate3D(0, 4, 0), eps))

	before, _ := s.Bone(2)
	for _, id := range []int32{-1, 3, 600} {
		err := s.SetLocalMatrix(id, mgl32.Translate3D(9, 9, 9))
		assert.True(t, errors.Is(err, ErrInvalidBoneIndex), "id %d", id)
	}
	after, _ := s.Bone(2)
	assert.Equal(t, before, after)
}

func TestDecomposeWorldTRS(t *testing.T) {
	t.Parallel()
	s := chain(t)

	rot := mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1})
	world := mgl32.Translate3D(1, 2, 3).Mul4(rot.Mat4()).Mul4(mgl32.Scale3D(2, 2, 2))
	s.Update(world)

	trs, err := s.DecomposeWorldTRS(0)
	require.NoError(t, err)
	assert.True(t, trs.Translation.ApproxEqualThreshold(mgl32.Vec3{1, 2, 3}, eps))
	assert.True(t, trs.Scale.ApproxEqualThreshold(mgl32.Vec3{2, 2, 2}, 1e-4))
	assert.InDelta(t, 1, float64(abs(trs.Rotation.Dot(rot))), 1e-4)

	_, err = s.DecomposeWorldTRS(7)
	assert.True(t, errors.Is(err, ErrInvalidBoneIndex))
}

func TestNewSkeleton_Empty(t *testing.T) {
	t.Parallel()

	s, err := NewSkeleton(nil, WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.True(t, s.IsInitialized())
	assert.Zero(t, s.BoneCount())
	s.Update(mgl32.Ident4())
	assert.Empty(t, s.SkinningMatrices())
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
