package loader

import (
	"github.com/Carmen-Shannon/oxy-anim/engine/clip"
	"github.com/Carmen-Shannon/oxy-anim/engine/skeleton"
)

// AnimationSet is a skeleton definition together with the clips authored for it.
// Sets are cached and shared by the Loader; every entity builds its own hierarchy
// with NewSkeleton while reading the same immutable clips.
type AnimationSet struct {
	// Name identifies the set in logs and scene files.
	Name string
	// FootstepBone names the bone used for root-motion extraction, or is empty.
	FootstepBone string
	// DefaultBlend is the cross-fade duration used when a caller does not supply one.
	DefaultBlend float32

	records []skeleton.BoneRecord
	clips   map[string]*clip.Clip
	order   []string
}

// BoneCount returns the number of bones in the set's skeleton definition.
func (s *AnimationSet) BoneCount() int {
	return len(s.records)
}

// BoneRecords returns a copy of the skeleton definition.
func (s *AnimationSet) BoneRecords() []skeleton.BoneRecord {
	out := make([]skeleton.BoneRecord, len(s.records))
	copy(out, s.records)
	return out
}

// NewSkeleton builds a fresh hierarchy from the set's skeleton definition.
//
// Parameters:
//   - options: functional options forwarded to skeleton.NewSkeleton
//
// Returns:
//   - skeleton.Skeleton: an independently owned skeleton
//   - error: error if the definition is rejected
func (s *AnimationSet) NewSkeleton(options ...skeleton.SkeletonBuilderOption) (skeleton.Skeleton, error) {
	return skeleton.NewSkeleton(s.records, options...)
}

// Clip returns the clip registered under the given name, or nil.
func (s *AnimationSet) Clip(name string) *clip.Clip {
	return s.clips[name]
}

// ClipNames returns the clip names in manifest order.
func (s *AnimationSet) ClipNames() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
