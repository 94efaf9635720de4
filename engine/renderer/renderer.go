package renderer

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	// ErrEmptyPalette is returned when a skin buffer is requested for zero bones.
	ErrEmptyPalette = errors.New("skin buffer needs at least one bone")

	// ErrBufferExists is returned when a skin buffer label is already in use.
	ErrBufferExists = errors.New("skin buffer label already in use")

	// ErrPaletteSize is returned when an upload does not match the buffer's bone count.
	ErrPaletteSize = errors.New("palette length does not match skin buffer")

	// ErrReleased is returned when the renderer or a buffer is used after Release.
	ErrReleased = errors.New("renderer released")
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	logger logrus.FieldLogger

	bufferCache map[string]SkinBuffer

	backendType RendererBackendType
	backend     RendererBackend

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
}

// Renderer uploads skinning palettes to the GPU.
//
// The Renderer owns a cache of SkinBuffers keyed by label, one per animated entity,
// and submits palette writes through its backend. It does not draw; a render pass
// that binds the buffers as read-only storage performs the actual vertex skinning.
type Renderer interface {
	// CreateSkinBuffer allocates a storage buffer large enough for boneCount matrices
	// and caches it under label.
	//
	// Parameters:
	//   - label: the unique cache key and debug label
	//   - boneCount: the palette length
	//
	// Returns:
	//   - SkinBuffer: the created buffer
	//   - error: ErrEmptyPalette, ErrBufferExists, or a backend allocation error
	CreateSkinBuffer(label string, boneCount int) (SkinBuffer, error)

	// SkinBuffer retrieves a cached buffer by label. Returns nil if not found.
	//
	// Parameters:
	//   - label: the cache key
	//
	// Returns:
	//   - SkinBuffer: the buffer or nil
	SkinBuffer(label string) SkinBuffer

	// SkinBuffers returns a snapshot of the buffer cache.
	//
	// Returns:
	//   - map[string]SkinBuffer: all live buffers keyed by label
	SkinBuffers() map[string]SkinBuffer

	// UploadSkin serializes a palette and writes it to the start of buf.
	//
	// Parameters:
	//   - buf: the destination buffer
	//   - mats: the palette, one matrix per bone
	//
	// Returns:
	//   - error: ErrPaletteSize if len(mats) differs from buf.BoneCount()
	UploadSkin(buf SkinBuffer, mats []mgl32.Mat4) error

	// WriteBuffers submits a batch of pre-serialized writes in one backend call.
	//
	// Parameters:
	//   - writes: the writes to submit
	WriteBuffers(writes []BufferWrite)

	// Release frees every cached buffer and then the backend.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer using the specified backend type.
//
// Parameters:
//   - backendType: the backend to create
//   - options: functional options to configure the renderer
//
// Returns:
//   - Renderer: the created renderer
//   - error: an error if no GPU adapter or device could be acquired
func NewRenderer(backendType RendererBackendType, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:          &sync.Mutex{},
		bufferCache: make(map[string]SkinBuffer),
		backendType: backendType,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}
	r.logger = common.ComponentLogger(r.logger, "renderer")

	if r.backend == nil {
		var err error
		switch backendType {
		case BackendTypeWGPU:
			fallthrough
		default:
			r.backend, err = newWGPURendererBackend(r.forceFallbackAdapter)
		}
		if err != nil {
			return nil, err
		}
	}

	r.logger.WithField("fallback", r.forceFallbackAdapter).Debug("renderer ready")
	return r, nil
}

func (r *renderer) CreateSkinBuffer(label string, boneCount int) (SkinBuffer, error) {
	if boneCount <= 0 {
		return nil, errors.Wrapf(ErrEmptyPalette, "buffer %q", label)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.backend == nil {
		return nil, ErrReleased
	}
	if _, exists := r.bufferCache[label]; exists {
		return nil, errors.Wrapf(ErrBufferExists, "buffer %q", label)
	}

	size := uint64(boneCount) * SkinMatrixSize
	gpuBuf, err := r.backend.CreateStorageBuffer(label+" Skin Buffer", size)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create skin buffer %q", label)
	}

	b := &skinBuffer{
		mu:        &sync.Mutex{},
		label:     label,
		boneCount: boneCount,
		buffer:    gpuBuf,
		backend:   r.backend,
	}
	b.onFree = func() { r.forget(label, b) }
	r.bufferCache[label] = b

	r.logger.WithFields(logrus.Fields{"buffer": label, "bytes": size}).Debug("skin buffer created")
	return b, nil
}

// forget drops a released buffer from the cache unless the label was reused.
func (r *renderer) forget(label string, b SkinBuffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bufferCache[label] == b {
		delete(r.bufferCache, label)
	}
}

func (r *renderer) SkinBuffer(label string) SkinBuffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bufferCache[label]
}

func (r *renderer) SkinBuffers() map[string]SkinBuffer {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make(map[string]SkinBuffer, len(r.bufferCache))
	for k, v := range r.bufferCache {
		result[k] = v
	}
	return result
}

func (r *renderer) UploadSkin(buf SkinBuffer, mats []mgl32.Mat4) error {
	if buf == nil || buf.GPUBuffer() == nil {
		return ErrReleased
	}
	if len(mats) != buf.BoneCount() {
		return errors.Wrapf(ErrPaletteSize, "buffer %q holds %d bones, got %d", buf.Label(), buf.BoneCount(), len(mats))
	}
	r.WriteBuffers([]BufferWrite{{Buffer: buf, Offset: 0, Data: MarshalSkin(mats)}})
	return nil
}

func (r *renderer) WriteBuffers(writes []BufferWrite) {
	if len(writes) == 0 {
		return
	}
	r.mu.Lock()
	backend := r.backend
	r.mu.Unlock()
	if backend == nil {
		return
	}
	backend.WriteBuffers(writes)
}

func (r *renderer) Release() {
	r.mu.Lock()
	buffers := make([]SkinBuffer, 0, len(r.bufferCache))
	for _, b := range r.bufferCache {
		buffers = append(buffers, b)
	}
	r.mu.Unlock()

	for _, b := range buffers {
		b.Release()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.backend != nil {
		r.backend.Release()
		r.backend = nil
	}
}
