// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Affine is an affine transform as delivered by skeleton and clip definition providers.
// It holds four row vectors of three floats: the X axis, the Y axis, the Z axis and the translation,
// laid out for row-vector multiplication (p' = p * M).
type Affine [4][3]float32

// IdentityAffine returns the identity affine transform.
//
// Returns:
//   - Affine: axes set to the unit basis and zero translation
func IdentityAffine() Affine {
	return Affine{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
		{0, 0, 0},
	}
}

// TranslationAffine returns an identity affine transform carrying the given translation.
//
// Parameters:
//   - x, y, z: translation components
//
// Returns:
//   - Affine: the translation transform
func TranslationAffine(x, y, z float32) Affine {
	a := IdentityAffine()
	a[3] = [3]float32{x, y, z}
	return a
}

// Mat4 converts the affine transform into a column-major, column-vector mgl32.Mat4.
//
// Returns:
//   - mgl32.Mat4: the equivalent 4x4 matrix
func (a Affine) Mat4() mgl32.Mat4 {
	return AffineToMat4(a)
}

// TRS is a transform decomposed into translation, rotation and scale.
type TRS struct {
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3
}

// IdentityTRS returns a TRS with zero translation, identity rotation and unit scale.
//
// Returns:
//   - TRS: the identity transform
func IdentityTRS() TRS {
	return TRS{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// Mat4 composes the TRS back into a matrix as T * R * S.
//
// Returns:
//   - mgl32.Mat4: the composed transform
func (t TRS) Mat4() mgl32.Mat4 {
	return ComposeTRS(t)
}
