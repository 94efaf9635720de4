package loader

import (
	"io"

	"github.com/Carmen-Shannon/oxy-anim/engine/clip"
	"github.com/Carmen-Shannon/oxy-anim/engine/skeleton"
)

// skeletonBackend defines the generic interface for reading skeleton definitions from files or streams.
// Concrete implementations (binary .skel, glTF skins) handle format-specific details.
type skeletonBackend interface {
	// LoadSkeleton reads a skeleton definition from the given file path.
	//
	// Parameters:
	//   - path: the file path to load
	//
	// Returns:
	//   - []skeleton.BoneRecord: the bone records, parents before children
	//   - error: error if loading fails
	LoadSkeleton(path string) ([]skeleton.BoneRecord, error)

	// ReadSkeleton reads a skeleton definition from a reader stream.
	//
	// Parameters:
	//   - r: the reader providing the definition
	//
	// Returns:
	//   - []skeleton.BoneRecord: the bone records
	//   - error: error if decoding fails
	ReadSkeleton(r io.Reader) ([]skeleton.BoneRecord, error)
}

// clipBackend defines the generic interface for reading raw clip definitions.
type clipBackend interface {
	// ReadClip decodes raw keyframe and event records from a reader stream.
	//
	// Parameters:
	//   - r: the reader providing the definition
	//
	// Returns:
	//   - []clip.RawKeyframe: the keyframe records in file order
	//   - []clip.RawEvent: the event records in file order
	//   - error: error if decoding fails
	ReadClip(r io.Reader) ([]clip.RawKeyframe, []clip.RawEvent, error)
}
