package renderer

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// SkinMatrixSize is the size in bytes of one mat4x4<f32> in a skinning palette.
const SkinMatrixSize = 64

// skinBuffer is the unexported implementation of SkinBuffer.
type skinBuffer struct {
	mu *sync.Mutex

	// label is a debug label added for convenience.
	label     string
	boneCount int

	// buffer is released through the backend that created it.
	buffer  *wgpu.Buffer
	backend RendererBackend
	onFree  func()
}

// SkinBuffer is a GPU storage buffer holding one entity's skinning palette,
// laid out as boneCount consecutive column-major mat4x4<f32> values.
type SkinBuffer interface {
	// Label returns the debug label for this buffer.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BoneCount returns the number of matrices the buffer holds.
	//
	// Returns:
	//   - int: the palette length
	BoneCount() int

	// Size returns the buffer size in bytes.
	//
	// Returns:
	//   - uint64: boneCount * SkinMatrixSize
	Size() uint64

	// GPUBuffer returns the underlying GPU buffer, or nil once released.
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer or nil
	GPUBuffer() *wgpu.Buffer

	// Release frees the GPU buffer. Releasing twice is a no-op.
	Release()
}

var _ SkinBuffer = &skinBuffer{}

func (b *skinBuffer) Label() string {
	return b.label
}

func (b *skinBuffer) BoneCount() int {
	return b.boneCount
}

func (b *skinBuffer) Size() uint64 {
	return uint64(b.boneCount) * SkinMatrixSize
}

func (b *skinBuffer) GPUBuffer() *wgpu.Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer
}

func (b *skinBuffer) Release() {
	b.mu.Lock()
	buf := b.buffer
	released := b.backend == nil
	b.buffer = nil
	backend := b.backend
	b.backend = nil
	onFree := b.onFree
	b.onFree = nil
	b.mu.Unlock()

	if released {
		return
	}
	backend.ReleaseBuffer(buf)
	if onFree != nil {
		onFree()
	}
}

// BufferWrite describes a single write of CPU data into a SkinBuffer at a byte offset.
type BufferWrite struct {
	Buffer SkinBuffer
	Offset uint64
	Data   []byte
}

// MarshalSkin serializes a skinning palette into little-endian float32 columns suitable for GPU upload.
//
// Parameters:
//   - mats: the palette to serialize
//
// Returns:
//   - []byte: len(mats) * SkinMatrixSize bytes
func MarshalSkin(mats []mgl32.Mat4) []byte {
	buf := make([]byte, len(mats)*SkinMatrixSize)
	for i, m := range mats {
		base := i * SkinMatrixSize
		for j := range 16 {
			binary.LittleEndian.PutUint32(buf[base+j*4:], math.Float32bits(m[j]))
		}
	}
	return buf
}
