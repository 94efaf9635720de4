package common

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// scaleEpsilon is the smallest axis length treated as non-degenerate during decomposition.
const scaleEpsilon = 1e-4

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// AffineToMat4 converts a row-vector 4x3 affine transform into a column-vector mgl32.Mat4.
// Each affine row becomes a matrix column, so the formula p' = p * A becomes p' = M * p.
//
// Parameters:
//   - a: the affine transform (X axis, Y axis, Z axis, translation)
//
// Returns:
//   - mgl32.Mat4: the column-major matrix
func AffineToMat4(a Affine) mgl32.Mat4 {
	return mgl32.Mat4{
		a[0][0], a[0][1], a[0][2], 0,
		a[1][0], a[1][1], a[1][2], 0,
		a[2][0], a[2][1], a[2][2], 0,
		a[3][0], a[3][1], a[3][2], 1,
	}
}

// Mat4ToAffine converts a column-vector mgl32.Mat4 back into the row-vector 4x3 layout.
// The projective row of the matrix is dropped.
//
// Parameters:
//   - m: the column-major matrix
//
// Returns:
//   - Affine: the affine transform
func Mat4ToAffine(m mgl32.Mat4) Affine {
	return Affine{
		{m[0], m[1], m[2]},
		{m[4], m[5], m[6]},
		{m[8], m[9], m[10]},
		{m[12], m[13], m[14]},
	}
}

// Translation returns the translation column of a transform.
//
// Parameters:
//   - m: the transform
//
// Returns:
//   - mgl32.Vec3: the translation
func Translation(m mgl32.Mat4) mgl32.Vec3 {
	return mgl32.Vec3{m[12], m[13], m[14]}
}

// SubTranslation subtracts t from the translation column of m in place.
//
// Parameters:
//   - m: the transform to modify
//   - t: the translation to remove
func SubTranslation(m *mgl32.Mat4, t mgl32.Vec3) {
	m[12] -= t[0]
	m[13] -= t[1]
	m[14] -= t[2]
}

// DecomposeTRS extracts translation, rotation and scale from an affine transform.
// Scale is the length of each basis axis, the axes are normalized, and the rotation
// is read from the resulting orthonormal basis. A mirrored basis (negative determinant)
// is folded into a negative X scale.
//
// Parameters:
//   - m: the transform to decompose
//
// Returns:
//   - TRS: the decomposed transform
func DecomposeTRS(m mgl32.Mat4) TRS {
	var t TRS
	t.Translation = Translation(m)

	x := mgl32.Vec3{m[0], m[1], m[2]}
	y := mgl32.Vec3{m[4], m[5], m[6]}
	z := mgl32.Vec3{m[8], m[9], m[10]}

	sx, sy, sz := x.Len(), y.Len(), z.Len()
	if m.Mat3().Det() < 0 {
		sx = -sx
	}
	t.Scale = mgl32.Vec3{sx, sy, sz}

	// Avoid division by zero
	if abs(sx) < scaleEpsilon {
		sx = 1
	}
	if sy < scaleEpsilon {
		sy = 1
	}
	if sz < scaleEpsilon {
		sz = 1
	}

	basis := mgl32.Mat4FromCols(
		x.Mul(1/sx).Vec4(0),
		y.Mul(1/sy).Vec4(0),
		z.Mul(1/sz).Vec4(0),
		mgl32.Vec4{0, 0, 0, 1},
	)
	t.Rotation = mgl32.Mat4ToQuat(basis).Normalize()

	return t
}

// ComposeTRS builds a transform from its components as T * R * S.
//
// Parameters:
//   - t: the decomposed transform
//
// Returns:
//   - mgl32.Mat4: the composed matrix
func ComposeTRS(t TRS) mgl32.Mat4 {
	return mgl32.Translate3D(t.Translation[0], t.Translation[1], t.Translation[2]).
		Mul4(t.Rotation.Normalize().Mat4()).
		Mul4(mgl32.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2]))
}

// LerpVec3 linearly interpolates between two vectors.
//
// Parameters:
//   - a: the start vector (amount 0)
//   - b: the end vector (amount 1)
//   - amount: interpolation factor
//
// Returns:
//   - mgl32.Vec3: the interpolated vector
func LerpVec3(a, b mgl32.Vec3, amount float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(amount))
}

// SlerpShortest spherically interpolates between two rotations along the shorter arc.
//
// Parameters:
//   - a: the start rotation (amount 0)
//   - b: the end rotation (amount 1)
//   - amount: interpolation factor
//
// Returns:
//   - mgl32.Quat: the interpolated, normalized rotation
func SlerpShortest(a, b mgl32.Quat, amount float32) mgl32.Quat {
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl32.QuatSlerp(a, b, amount).Normalize()
}

// BlendTRS blends two decomposed transforms: rotation by spherical interpolation,
// translation and scale linearly.
//
// Parameters:
//   - a: the transform at amount 0
//   - b: the transform at amount 1
//   - amount: blend factor in [0, 1]
//
// Returns:
//   - TRS: the blended transform
func BlendTRS(a, b TRS, amount float32) TRS {
	return TRS{
		Translation: LerpVec3(a.Translation, b.Translation, amount),
		Rotation:    SlerpShortest(a.Rotation, b.Rotation, amount),
		Scale:       LerpVec3(a.Scale, b.Scale, amount),
	}
}

// BlendMat4 blends two affine matrices componentwise through their TRS decomposition.
// Amounts at or beyond the ends of [0, 1] return an exact copy of the corresponding input.
//
// Parameters:
//   - a: the matrix at amount 0
//   - b: the matrix at amount 1
//   - amount: blend factor
//
// Returns:
//   - mgl32.Mat4: the blended matrix
func BlendMat4(a, b mgl32.Mat4, amount float32) mgl32.Mat4 {
	if amount <= 0 {
		return a
	}
	if amount >= 1 {
		return b
	}
	return ComposeTRS(BlendTRS(DecomposeTRS(a), DecomposeTRS(b), amount))
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
