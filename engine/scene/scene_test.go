package scene

import (
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/animator"
	"github.com/Carmen-Shannon/oxy-anim/engine/clip"
	"github.com/Carmen-Shannon/oxy-anim/engine/game_object"
	"github.com/Carmen-Shannon/oxy-anim/engine/renderer"
	"github.com/Carmen-Shannon/oxy-anim/engine/skeleton"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-4

type recordingBackend struct {
	mu       sync.Mutex
	created  int
	released int
	writes   []renderer.BufferWrite
}

func (b *recordingBackend) CreateStorageBuffer(string, uint64) (*wgpu.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created++
	return &wgpu.Buffer{}, nil
}

func (b *recordingBackend) WriteBuffers(writes []renderer.BufferWrite) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes = append(b.writes, writes...)
}

func (b *recordingBackend) ReleaseBuffer(*wgpu.Buffer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released++
}

func (b *recordingBackend) Release() {}

// walker builds an object whose root bone walks one unit along X every quarter second,
// firing a "step" event shortly after each loop starts.
func walker(t *testing.T, options ...game_object.GameObjectBuilderOption) game_object.GameObject {
	t.Helper()
	logger, _ := logtest.NewNullLogger()

	skel, err := skeleton.NewSkeleton([]skeleton.BoneRecord{
		{Name: "root", ParentIndex: -1, BindPose: common.IdentityAffine(), InverseBindPose: common.IdentityAffine()},
		{Name: "foot", ParentIndex: 0, BindPose: common.TranslationAffine(0, 1, 0), InverseBindPose: common.TranslationAffine(0, -1, 0)},
	}, skeleton.WithLogger(logger))
	require.NoError(t, err)

	keys := make([]clip.RawKeyframe, 4)
	for i := range keys {
		keys[i] = clip.RawKeyframe{BoneIndex: 0, Time: float32(i) * 0.25, Transform: common.TranslationAffine(float32(i), 0, 0)}
	}
	c, err := clip.NewClip("walk", 2, keys, []clip.RawEvent{{InvokeTime: 0.1, Name: "step"}}, clip.WithLoop(true))
	require.NoError(t, err)

	anim := animator.NewAnimation(skel, animator.WithLogger(logger), animator.WithFootstepBone(0))
	anim.Play(c, 0)

	return game_object.NewGameObject(append([]game_object.GameObjectBuilderOption{game_object.WithAnimation(anim)}, options...)...)
}

func newTestScene(t *testing.T, options ...SceneBuilderOption) Scene {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	return NewScene("test", append([]SceneBuilderOption{WithLogger(logger), WithComputeWorkers(2)}, options...)...)
}

func TestAdd_AssignsIDs(t *testing.T) {
	t.Parallel()
	s := newTestScene(t)

	a := walker(t, game_object.WithName("a"))
	b := walker(t, game_object.WithName("b"), game_object.WithID(10))
	c := walker(t, game_object.WithName("c"))

	assert.Equal(t, uint64(1), s.Add(a))
	assert.Equal(t, uint64(10), s.Add(b))
	assert.Equal(t, uint64(11), s.Add(c))
	assert.Equal(t, 3, s.Count())

	assert.Same(t, b, s.Get(10))
	assert.Same(t, c, s.Find("c"))
	assert.Nil(t, s.Find("missing"))

	objs := s.Objects()
	require.Len(t, objs, 3)
	assert.Equal(t, []uint64{1, 10, 11}, []uint64{objs[0].ID(), objs[1].ID(), objs[2].ID()})

	s.Remove(10)
	assert.Nil(t, s.Get(10))
	assert.Equal(t, 2, s.Count())

	s.Clear()
	assert.Zero(t, s.Count())
}

func TestAdd_PanicsWithoutAnimation(t *testing.T) {
	t.Parallel()
	s := newTestScene(t)
	assert.Panics(t, func() { s.Add(game_object.NewGameObject()) })
}

func TestWithObjects(t *testing.T) {
	t.Parallel()
	s := newTestScene(t, WithObjects(walker(t), walker(t)), WithActive(true))

	assert.True(t, s.Active())
	assert.Equal(t, 2, s.Count())
	assert.NotNil(t, s.Get(1))
	assert.NotNil(t, s.Get(2))
}

func TestProgress_AppliesRootMotion(t *testing.T) {
	t.Parallel()
	s := newTestScene(t)
	obj := walker(t, game_object.WithRootMotion(true), game_object.WithPosition(0, 0, 5))
	s.Add(obj)

	for range 3 {
		s.Progress(0.25)
	}

	x, y, z := obj.Position()
	assert.InDelta(t, 3, x, eps)
	assert.InDelta(t, 0, y, eps)
	assert.InDelta(t, 5, z, eps)

	// The pinned root follows the object to its new position within the same frame.
	root := obj.Skeleton().WorldMatrix(0)
	assert.True(t, common.Translation(root).ApproxEqualThreshold(mgl32.Vec3{3, 0, 5}, eps), "root %v", root)
	assert.Equal(t, uint64(3), s.Frame())
}

func TestProgress_RootMotionFollowsFacing(t *testing.T) {
	t.Parallel()
	s := newTestScene(t)
	obj := walker(t, game_object.WithRootMotion(true), game_object.WithRotation(0, mgl32.DegToRad(90), 0))
	s.Add(obj)

	s.Progress(0.25)

	// Yawing +90 degrees turns local +X onto world -Z.
	x, _, z := obj.Position()
	assert.InDelta(t, 0, x, eps)
	assert.InDelta(t, -1, z, eps)
}

func TestProgress_WithoutRootMotionStaysPut(t *testing.T) {
	t.Parallel()
	s := newTestScene(t)
	obj := walker(t)
	s.Add(obj)

	s.Progress(0.25)
	s.Progress(0.25)

	x, y, z := obj.Position()
	assert.Equal(t, [3]float32{0, 0, 0}, [3]float32{x, y, z})
	assert.Equal(t, 2, obj.Animation().ActiveKeyIndex())
}

func TestProgress_SkipsDisabled(t *testing.T) {
	t.Parallel()
	s := newTestScene(t)
	on := walker(t)
	off := walker(t, game_object.WithEnabled(false))
	s.Add(on)
	s.Add(off)

	s.Progress(0.25)

	assert.Equal(t, 1, on.Animation().ActiveKeyIndex())
	assert.Equal(t, 0, off.Animation().ActiveKeyIndex())
}

func TestProgress_CountsEvents(t *testing.T) {
	t.Parallel()
	s := newTestScene(t)
	for range 4 {
		s.Add(walker(t))
	}

	s.Progress(0.25)
	assert.Equal(t, uint64(4), s.EventsFired())

	s.Progress(0.25)
	assert.Equal(t, uint64(4), s.EventsFired())
}

func TestProgress_DropsEphemerals(t *testing.T) {
	t.Parallel()
	s := newTestScene(t)
	eph := walker(t, game_object.WithEphemeral(true))
	s.Add(eph)

	assert.Zero(t, s.Count())
	assert.Equal(t, 1, s.CountEphemeral())

	s.Progress(0.25)

	assert.Equal(t, 1, eph.Animation().ActiveKeyIndex())
	assert.Zero(t, s.CountEphemeral())

	s.Progress(0.25)
	assert.Equal(t, 1, eph.Animation().ActiveKeyIndex(), "dropped after one frame")
}

func TestProgress_UploadsSkins(t *testing.T) {
	t.Parallel()
	logger, _ := logtest.NewNullLogger()
	backend := &recordingBackend{}
	r, err := renderer.NewRenderer(renderer.BackendTypeWGPU, renderer.WithBackend(backend), renderer.WithLogger(logger))
	require.NoError(t, err)

	s := newTestScene(t, WithRenderer(r))
	obj := walker(t)
	id := s.Add(obj)
	s.Add(walker(t, game_object.WithEphemeral(true)))
	assert.Equal(t, 2, backend.created)

	s.Progress(0.25)

	require.Len(t, backend.writes, 2)
	assert.Equal(t, 1, backend.released, "ephemeral buffer released after its frame")
	for _, w := range backend.writes {
		assert.Len(t, w.Data, 2*renderer.SkinMatrixSize)
	}
	assert.Equal(t, renderer.MarshalSkin(obj.SkinningMatrices()), findWrite(backend.writes, r, id).Data)

	s.Remove(id)
	assert.Equal(t, 2, backend.released)
	assert.Empty(t, r.SkinBuffers())
}

func TestSetRenderer_CreatesBuffersForExistingObjects(t *testing.T) {
	t.Parallel()
	logger, _ := logtest.NewNullLogger()
	s := newTestScene(t)
	s.Add(walker(t))
	s.Add(walker(t))

	first := &recordingBackend{}
	r1, err := renderer.NewRenderer(renderer.BackendTypeWGPU, renderer.WithBackend(first), renderer.WithLogger(logger))
	require.NoError(t, err)
	s.SetRenderer(r1)
	assert.Equal(t, 2, first.created)

	s.SetRenderer(nil)
	assert.Equal(t, 2, first.released)
	assert.Nil(t, s.Renderer())

	s.Progress(0.25)
	assert.Empty(t, first.writes)
}

func findWrite(writes []renderer.BufferWrite, r renderer.Renderer, id uint64) renderer.BufferWrite {
	for _, w := range writes {
		if w.Buffer == r.SkinBuffer(skinLabel("test", id)) {
			return w
		}
	}
	return renderer.BufferWrite{}
}
