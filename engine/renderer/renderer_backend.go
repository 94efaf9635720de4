package renderer

import "github.com/cogentcore/webgpu/wgpu"

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based backend.
	BackendTypeWGPU RendererBackendType = iota
)

// RendererBackend is the buffer-level backend interface for the Renderer.
// Implementations must be safe for concurrent use.
type RendererBackend interface {
	// CreateStorageBuffer allocates a GPU storage buffer that can be written from the CPU.
	//
	// Parameters:
	//   - label: the debug label attached to the buffer
	//   - size: the buffer size in bytes
	//
	// Returns:
	//   - *wgpu.Buffer: the created buffer
	//   - error: an error if allocation fails
	CreateStorageBuffer(label string, size uint64) (*wgpu.Buffer, error)

	// WriteBuffers queues all writes on the device queue.
	//
	// Parameters:
	//   - writes: the writes to submit
	WriteBuffers(writes []BufferWrite)

	// ReleaseBuffer frees a buffer created by CreateStorageBuffer.
	ReleaseBuffer(buf *wgpu.Buffer)

	// Release frees the device, adapter and instance.
	Release()
}
