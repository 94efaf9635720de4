package game_object

import (
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/animator"
	"github.com/Carmen-Shannon/oxy-anim/engine/skeleton"
	"github.com/go-gl/mathgl/mgl32"
)

type gameObject struct {
	id         uint64
	name       string
	enabled    atomic.Bool
	ephemeral  bool
	anim       animator.Animation
	rootMotion bool

	position [3]float32
	rotation [3]float32
	scale    [3]float32
}

// GameObject defines the interface for a scene entity driven by an Animation.
// The object's transform becomes the animation's world matrix on every frame, and
// with root motion enabled the footstep delta extracted by the animation moves the
// object through the world.
type GameObject interface {
	// ID returns the object's unique identifier.
	//
	// Returns:
	//   - uint64: the object ID
	ID() uint64

	// Name returns the object's display name.
	//
	// Returns:
	//   - string: the name, possibly empty
	Name() string

	// Enabled returns whether this object is progressed by its scene.
	//
	// Returns:
	//   - bool: true if enabled
	Enabled() bool

	// Ephemeral returns whether this object is ephemeral.
	// Ephemeral objects are progressed for a single frame and then dropped by the scene.
	//
	// Returns:
	//   - bool: true if ephemeral
	Ephemeral() bool

	// Animation returns the Animation driving this object, or nil if not set.
	//
	// Returns:
	//   - animator.Animation: the animation or nil
	Animation() animator.Animation

	// Skeleton returns the skeleton of the object's animation, or nil.
	//
	// Returns:
	//   - skeleton.Skeleton: the skeleton or nil
	Skeleton() skeleton.Skeleton

	// RootMotion reports whether footstep deltas move the object.
	//
	// Returns:
	//   - bool: true if root motion is applied
	RootMotion() bool

	// Position returns the object's world position.
	//
	// Returns:
	//   - x, y, z: position components
	Position() (x, y, z float32)

	// Rotation returns the object's Euler rotation in radians, applied X then Y then Z.
	//
	// Returns:
	//   - rx, ry, rz: rotation angles
	Rotation() (rx, ry, rz float32)

	// Scale returns the object's scale factors.
	//
	// Returns:
	//   - sx, sy, sz: scale components
	Scale() (sx, sy, sz float32)

	// WorldMatrix composes translation, rotation and scale into the object's world transform.
	//
	// Returns:
	//   - mgl32.Mat4: the world matrix
	WorldMatrix() mgl32.Mat4

	// ApplyRootMotion moves the object by a delta expressed in the object's local space,
	// so that the new world matrix equals the old one times a translation by delta.
	//
	// Parameters:
	//   - delta: the root-space footstep delta
	ApplyRootMotion(delta mgl32.Vec3)

	// SkinningMatrices returns the skinning palette of the object's skeleton, or nil.
	//
	// Returns:
	//   - []mgl32.Mat4: one matrix per bone
	SkinningMatrices() []mgl32.Mat4

	// SetID sets the object's unique identifier.
	//
	// Parameters:
	//   - id: the ID to assign
	SetID(id uint64)

	// SetEnabled sets whether the object is progressed by its scene.
	//
	// Parameters:
	//   - enabled: true to enable
	SetEnabled(enabled bool)

	// SetAnimation assigns the Animation driving this object.
	//
	// Parameters:
	//   - a: the animation
	SetAnimation(a animator.Animation)

	// SetRootMotion sets whether footstep deltas move the object.
	//
	// Parameters:
	//   - enabled: true to apply root motion
	SetRootMotion(enabled bool)

	// SetPosition sets the object's world position.
	//
	// Parameters:
	//   - x, y, z: new position components
	SetPosition(x, y, z float32)

	// SetRotation sets the object's Euler rotation in radians.
	//
	// Parameters:
	//   - rx, ry, rz: new rotation angles
	SetRotation(rx, ry, rz float32)

	// SetScale sets the object's scale factors.
	//
	// Parameters:
	//   - sx, sy, sz: new scale factors
	SetScale(sx, sy, sz float32)
}

var _ GameObject = &gameObject{}

// NewGameObject creates a new GameObject configured with the given options.
// Objects start enabled with unit scale.
//
// Parameters:
//   - options: functional options to configure the object
//
// Returns:
//   - GameObject: the newly created object
func NewGameObject(options ...GameObjectBuilderOption) GameObject {
	obj := &gameObject{
		scale: [3]float32{1, 1, 1},
	}
	obj.enabled.Store(true)
	for _, option := range options {
		option(obj)
	}
	return obj
}

func (g *gameObject) ID() uint64 {
	return g.id
}

func (g *gameObject) Name() string {
	return g.name
}

func (g *gameObject) Enabled() bool {
	return g.enabled.Load()
}

func (g *gameObject) Ephemeral() bool {
	return g.ephemeral
}

func (g *gameObject) Animation() animator.Animation {
	return g.anim
}

func (g *gameObject) Skeleton() skeleton.Skeleton {
	if g.anim == nil {
		return nil
	}
	return g.anim.Skeleton()
}

func (g *gameObject) RootMotion() bool {
	return g.rootMotion
}

func (g *gameObject) Position() (x, y, z float32) {
	return g.position[0], g.position[1], g.position[2]
}

func (g *gameObject) Rotation() (rx, ry, rz float32) {
	return g.rotation[0], g.rotation[1], g.rotation[2]
}

func (g *gameObject) Scale() (sx, sy, sz float32) {
	return g.scale[0], g.scale[1], g.scale[2]
}

func (g *gameObject) WorldMatrix() mgl32.Mat4 {
	return common.TRS{
		Translation: g.position,
		Rotation:    mgl32.AnglesToQuat(g.rotation[0], g.rotation[1], g.rotation[2], mgl32.XYZ),
		Scale:       g.scale,
	}.Mat4()
}

func (g *gameObject) ApplyRootMotion(delta mgl32.Vec3) {
	if delta == (mgl32.Vec3{}) {
		return
	}
	moved := g.WorldMatrix().Mul4x1(delta.Vec4(1))
	g.position = [3]float32{moved[0], moved[1], moved[2]}
}

func (g *gameObject) SkinningMatrices() []mgl32.Mat4 {
	if g.anim == nil {
		return nil
	}
	return g.anim.Skeleton().SkinningMatrices()
}

func (g *gameObject) SetID(id uint64) {
	g.id = id
}

func (g *gameObject) SetEnabled(enabled bool) {
	g.enabled.Store(enabled)
}

func (g *gameObject) SetAnimation(a animator.Animation) {
	g.anim = a
}

func (g *gameObject) SetRootMotion(enabled bool) {
	g.rootMotion = enabled
}

func (g *gameObject) SetPosition(x, y, z float32) {
	g.position = [3]float32{x, y, z}
}

func (g *gameObject) SetRotation(rx, ry, rz float32) {
	g.rotation = [3]float32{rx, ry, rz}
}

func (g *gameObject) SetScale(sx, sy, sz float32) {
	g.scale = [3]float32{sx, sy, sz}
}
