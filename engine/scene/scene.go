package scene

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/game_object"
	"github.com/Carmen-Shannon/oxy-anim/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"
)

// Scene manages a registry of animated GameObjects and advances them together.
// Each frame every enabled object's Animation is progressed in parallel on a worker pool,
// root motion is then applied serially in world space, and, when a Renderer is attached,
// every object's skinning palette is uploaded to its SkinBuffer.
// Scenes can be hot-swapped via the Active flag.
// Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// SetName sets the scene's identifier.
	SetName(name string)

	// Active returns whether this scene is currently progressed by the engine.
	Active() bool

	// SetActive sets whether this scene is progressed by the engine.
	SetActive(active bool)

	// Renderer returns the scene's renderer, or nil when skinning uploads are disabled.
	Renderer() renderer.Renderer

	// SetRenderer replaces the scene's renderer. Skin buffers are created for objects
	// already in the scene and the buffers of the previous renderer are released.
	//
	// Parameters:
	//   - r: the new renderer, or nil to disable uploads
	SetRenderer(r renderer.Renderer)

	// Count returns the number of persisted GameObjects in the scene's registry. Does not include ephemeral objects.
	//
	// Returns:
	//   - int: count of non-ephemeral GameObjects in the registry
	Count() int

	// CountEphemeral returns the number of ephemeral GameObjects waiting for the next frame.
	//
	// Returns:
	//   - int: count of pending ephemeral GameObjects
	CountEphemeral() int

	// Add adds a GameObject to the scene. The object must carry an Animation.
	// Objects without an ID are assigned the next free one. The scene registers a
	// listener on the animation that counts and logs clip events. Ephemeral objects
	// are progressed by the next Progress call and then dropped.
	//
	// Panics if the object has no Animation.
	//
	// Parameters:
	//   - obj: the GameObject to add
	//
	// Returns:
	//   - uint64: the assigned object ID
	Add(obj game_object.GameObject) uint64

	// Get retrieves a non-ephemeral GameObject by its ID.
	// Returns nil if not found.
	//
	// Parameters:
	//   - id: the object's unique ID
	//
	// Returns:
	//   - game_object.GameObject: the object or nil
	Get(id uint64) game_object.GameObject

	// Find retrieves the non-ephemeral GameObject with the lowest ID carrying the given name.
	// Returns nil if not found.
	//
	// Parameters:
	//   - name: the object name
	//
	// Returns:
	//   - game_object.GameObject: the object or nil
	Find(name string) game_object.GameObject

	// Objects returns the registry's objects ordered by ID.
	//
	// Returns:
	//   - []game_object.GameObject: the persisted objects
	Objects() []game_object.GameObject

	// Remove removes a non-ephemeral GameObject from the registry by ID and releases its skin buffer.
	//
	// Parameters:
	//   - id: the object's unique ID
	Remove(id uint64)

	// Clear removes all objects from the scene and releases their skin buffers.
	Clear()

	// Progress advances every enabled object by dt seconds.
	//
	// Parameters:
	//   - dt: elapsed time since the last frame in seconds
	Progress(dt float32)

	// Frame returns the number of completed Progress calls.
	//
	// Returns:
	//   - uint64: the frame counter
	Frame() uint64

	// EventsFired returns the number of clip events delivered across all objects.
	//
	// Returns:
	//   - uint64: the event counter
	EventsFired() uint64
}

// scene is the implementation of the Scene interface.
type scene struct {
	mu *sync.RWMutex

	logger logrus.FieldLogger
	name   string
	active bool
	r      renderer.Renderer

	registry  map[uint64]game_object.GameObject
	ephemeral []game_object.GameObject
	skins     map[game_object.GameObject]renderer.SkinBuffer
	nextID    uint64
	staged    []game_object.GameObject

	frame       atomic.Uint64
	eventsFired atomic.Uint64

	// Pre-allocated slices reused each frame to avoid per-frame allocations.
	progressPool []game_object.GameObject
	writePool    []renderer.BufferWrite

	// computePool manages a bounded set of reusable goroutines for the parallel
	// animation phase of Progress. Workers persist across frames.
	computePool    worker.DynamicWorkerPool
	computeWorkers int
}

// Ensure scene implements Scene interface.
var _ Scene = &scene{}

// NewScene creates a new Scene with the given name.
//
// Parameters:
//   - name: the name of the scene
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:             &sync.RWMutex{},
		name:           name,
		active:         false,
		registry:       make(map[uint64]game_object.GameObject),
		skins:          make(map[game_object.GameObject]renderer.SkinBuffer),
		nextID:         1,
		computeWorkers: max(runtime.NumCPU()-1, 1),
	}

	for _, option := range options {
		option(s)
	}
	s.logger = common.ComponentLogger(s.logger, "scene").WithField("scene", name)

	// Initialize the compute pool after options so WithComputeWorkers can override the default.
	s.computePool = worker.NewDynamicWorkerPool(s.computeWorkers, 256, 1*time.Second)

	// Objects staged by WithObjects are added once the logger and renderer are known.
	staged := s.staged
	s.staged = nil
	for _, obj := range staged {
		s.Add(obj)
	}
	return s
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Renderer() renderer.Renderer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r
}

func (s *scene) SetRenderer(r renderer.Renderer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for obj, buf := range s.skins {
		buf.Release()
		delete(s.skins, obj)
	}
	s.r = r
	for _, obj := range s.registry {
		s.createSkin(obj)
	}
	for _, obj := range s.ephemeral {
		s.createSkin(obj)
	}
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.registry)
}

func (s *scene) CountEphemeral() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ephemeral)
}

func (s *scene) Add(obj game_object.GameObject) uint64 {
	anim := obj.Animation()
	if anim == nil {
		panic("scene: cannot Add a GameObject without an Animation")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if obj.ID() == 0 {
		obj.SetID(s.nextID)
	}
	if obj.ID() >= s.nextID {
		s.nextID = obj.ID() + 1
	}

	entity := common.Coalesce(obj.Name(), fmt.Sprintf("entity-%d", obj.ID()))
	logger := s.logger.WithField("entity", entity)
	anim.AddListener(func(clipName, eventName string) {
		s.eventsFired.Add(1)
		logger.WithFields(logrus.Fields{"clip": clipName, "event": eventName}).Debug("clip event")
	})

	if obj.Ephemeral() {
		s.ephemeral = append(s.ephemeral, obj)
	} else {
		s.registry[obj.ID()] = obj
	}
	s.createSkin(obj)

	return obj.ID()
}

// createSkin allocates a skin buffer for obj when a renderer is attached.
// Caller must hold s.mu write lock.
func (s *scene) createSkin(obj game_object.GameObject) {
	if s.r == nil {
		return
	}
	skel := obj.Skeleton()
	if skel == nil || skel.BoneCount() == 0 {
		return
	}

	buf, err := s.r.CreateSkinBuffer(skinLabel(s.name, obj.ID()), skel.BoneCount())
	if err != nil {
		s.logger.WithError(err).WithField("entity", obj.ID()).Warn("skin buffer unavailable")
		return
	}
	s.skins[obj] = buf
}

func skinLabel(scene string, id uint64) string {
	return fmt.Sprintf("%s/%d", scene, id)
}

// releaseSkin frees the skin buffer of obj, if any. Caller must hold s.mu write lock.
func (s *scene) releaseSkin(obj game_object.GameObject) {
	if buf, ok := s.skins[obj]; ok {
		buf.Release()
		delete(s.skins, obj)
	}
}

func (s *scene) Get(id uint64) game_object.GameObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry[id]
}

func (s *scene) Find(name string) game_object.GameObject {
	for _, obj := range s.Objects() {
		if obj.Name() == name {
			return obj
		}
	}
	return nil
}

func (s *scene) Objects() []game_object.GameObject {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objs := make([]game_object.GameObject, 0, len(s.registry))
	for _, obj := range s.registry {
		objs = append(objs, obj)
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].ID() < objs[j].ID() })
	return objs
}

func (s *scene) Remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, exists := s.registry[id]
	if !exists {
		return
	}
	delete(s.registry, id)
	s.releaseSkin(obj)
}

func (s *scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for obj := range s.skins {
		s.releaseSkin(obj)
	}
	s.registry = make(map[uint64]game_object.GameObject)
	s.ephemeral = nil
}

func (s *scene) Progress(dt float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	objs := s.progressPool[:0]
	for _, obj := range s.registry {
		if obj.Enabled() {
			objs = append(objs, obj)
		}
	}
	for _, obj := range s.ephemeral {
		if obj.Enabled() {
			objs = append(objs, obj)
		}
	}
	s.progressPool = objs

	// Phase 1 (parallel): each Animation is owned by exactly one object, so objects
	// progress independently. A WaitGroup provides the per-frame barrier since
	// pool.Wait() blocks until workers idle-exit.
	var wg sync.WaitGroup
	for i, obj := range objs {
		anim := obj.Animation()
		anim.SetWorldMatrix(obj.WorldMatrix())

		wg.Add(1)
		s.computePool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				anim.Progress(dt)
				return nil, nil
			},
		})
	}
	wg.Wait()

	// Phase 2 (serial): root motion moves the object by the footstep delta in its own
	// space, then the skeleton is re-posed under the new world matrix.
	for _, obj := range objs {
		if !obj.RootMotion() {
			continue
		}
		anim := obj.Animation()
		delta := anim.FootstepDelta()
		if delta == (mgl32.Vec3{}) {
			continue
		}
		obj.ApplyRootMotion(delta)
		world := obj.WorldMatrix()
		anim.SetWorldMatrix(world)
		anim.Skeleton().Update(world)
	}

	// Phase 3: coalesced skin upload, one renderer call per frame.
	if s.r != nil {
		writes := s.writePool[:0]
		for _, obj := range objs {
			buf, ok := s.skins[obj]
			if !ok {
				continue
			}
			writes = append(writes, renderer.BufferWrite{
				Buffer: buf,
				Offset: 0,
				Data:   renderer.MarshalSkin(obj.SkinningMatrices()),
			})
		}
		s.r.WriteBuffers(writes)
		clear(writes)
		s.writePool = writes[:0]
	}

	for _, obj := range s.ephemeral {
		s.releaseSkin(obj)
	}
	clear(s.ephemeral)
	s.ephemeral = s.ephemeral[:0]
	clear(objs)

	s.frame.Add(1)
}

func (s *scene) Frame() uint64 {
	return s.frame.Load()
}

func (s *scene) EventsFired() uint64 {
	return s.eventsFired.Load()
}
