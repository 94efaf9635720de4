package common

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-4

func TestAffineToMat4_RowsBecomeColumns(t *testing.T) {
	t.Parallel()

	a := Affine{
		{1, 2, 3},
		{4, 5, 6},
		{7, 8, 9},
		{10, 11, 12},
	}
	m := AffineToMat4(a)

	assert.Equal(t, mgl32.Vec4{1, 2, 3, 0}, m.Col(0))
	assert.Equal(t, mgl32.Vec4{4, 5, 6, 0}, m.Col(1))
	assert.Equal(t, mgl32.Vec4{7, 8, 9, 0}, m.Col(2))
	assert.Equal(t, mgl32.Vec4{10, 11, 12, 1}, m.Col(3))
	assert.Equal(t, a, Mat4ToAffine(m))
}

func TestAffineToMat4_TranslatesPoints(t *testing.T) {
	t.Parallel()

	m := TranslationAffine(1, 2, 3).Mat4()
	p := m.Mul4x1(mgl32.Vec4{1, 1, 1, 1})
	assert.Equal(t, mgl32.Vec4{2, 3, 4, 1}, p)
}

func TestDecomposeTRS_RoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		trs  TRS
	}{
		{"identity", IdentityTRS()},
		{"translation only", TRS{Translation: mgl32.Vec3{1, -2, 3}, Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}}},
		{"rotation and scale", TRS{
			Translation: mgl32.Vec3{0.5, 0, -4},
			Rotation:    mgl32.QuatRotate(mgl32.DegToRad(70), mgl32.Vec3{0, 1, 0}),
			Scale:       mgl32.Vec3{2, 3, 0.5},
		}},
		{"mirrored", TRS{
			Translation: mgl32.Vec3{},
			Rotation:    mgl32.QuatRotate(mgl32.DegToRad(30), mgl32.Vec3{1, 0, 0}),
			Scale:       mgl32.Vec3{-1, 1, 1},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := ComposeTRS(tc.trs)
			got := DecomposeTRS(m)

			assert.True(t, got.Translation.ApproxEqualThreshold(tc.trs.Translation, eps), "translation %v", got.Translation)
			assert.True(t, got.Scale.ApproxEqualThreshold(tc.trs.Scale, eps), "scale %v", got.Scale)
			assert.True(t, ComposeTRS(got).ApproxEqualThreshold(m, eps), "recomposed matrix differs")
		})
	}
}

func TestBlendMat4_EndpointsAreExactCopies(t *testing.T) {
	t.Parallel()

	a := mgl32.Translate3D(1, 2, 3)
	b := mgl32.HomogRotate3DZ(mgl32.DegToRad(90))

	assert.Equal(t, a, BlendMat4(a, b, 0))
	assert.Equal(t, a, BlendMat4(a, b, -1))
	assert.Equal(t, b, BlendMat4(a, b, 1))
	assert.Equal(t, b, BlendMat4(a, b, 2))
}

func TestBlendMat4_Midpoint(t *testing.T) {
	t.Parallel()

	a := mgl32.Ident4()
	b := mgl32.Translate3D(4, 0, 0).Mul4(mgl32.HomogRotate3DZ(mgl32.DegToRad(90)))

	mid := BlendMat4(a, b, 0.5)
	trs := DecomposeTRS(mid)

	assert.True(t, trs.Translation.ApproxEqualThreshold(mgl32.Vec3{2, 0, 0}, eps))
	want := mgl32.QuatRotate(mgl32.DegToRad(45), mgl32.Vec3{0, 0, 1})
	assert.InDelta(t, 1, abs(trs.Rotation.Dot(want)), eps)
	assert.True(t, trs.Scale.ApproxEqualThreshold(mgl32.Vec3{1, 1, 1}, eps))
}

func TestSlerpShortest_TakesShortArc(t *testing.T) {
	t.Parallel()

	a := mgl32.QuatIdent()
	// Same rotation as identity, opposite hemisphere.
	b := mgl32.Quat{W: -1}

	got := SlerpShortest(a, b, 0.5)
	assert.InDelta(t, 1, abs(got.Dot(a)), eps)
}

func TestSubTranslation(t *testing.T) {
	t.Parallel()

	m := mgl32.Translate3D(5, 6, 7)
	SubTranslation(&m, mgl32.Vec3{1, 2, 3})
	assert.Equal(t, mgl32.Vec3{4, 4, 4}, Translation(m))
}

func TestSliceToBytes(t *testing.T) {
	t.Parallel()

	require.Nil(t, SliceToBytes([]mgl32.Mat4{}))
	mats := []mgl32.Mat4{mgl32.Ident4(), mgl32.Ident4()}
	assert.Len(t, SliceToBytes(mats), 2*64)
}

func TestCoalesce(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "b", Coalesce("", "b", "c"))
	assert.Equal(t, 0, Coalesce(0, 0))
}

func TestSdumpOmitsCapacities(t *testing.T) {
	t.Parallel()

	out := Sdump(make([]int, 1, 8))
	assert.NotContains(t, out, "cap=")
}
