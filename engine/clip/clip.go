package clip

import (
	"sort"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// MaxEventNameLength is the longest event name a clip definition may carry.
const MaxEventNameLength = 255

var (
	// ErrInvalidBoneIndex is returned when a keyframe targets a bone outside the skeleton.
	ErrInvalidBoneIndex = errors.New("clip: keyframe bone index out of range")
	// ErrEventNameTooLong is returned when an event name exceeds MaxEventNameLength bytes.
	ErrEventNameTooLong = errors.New("clip: event name too long")
	// ErrTrackMismatch is returned when non-empty bone tracks disagree on key count or key times.
	ErrTrackMismatch = errors.New("clip: bone tracks do not share the reference timeline")
)

// RawKeyframe is a single keyframe record as supplied by a clip definition provider.
type RawKeyframe struct {
	BoneIndex int32
	Time      float32
	Transform common.Affine
}

// RawEvent is a single event record as supplied by a clip definition provider.
type RawEvent struct {
	InvokeTime float32
	Name       string
}

// Keyframe is a sampled bone transform at a point on the clip timeline.
type Keyframe struct {
	Time      float32
	Transform mgl32.Mat4
}

// Event is a named timestamp on the clip timeline.
type Event struct {
	InvokeTime float32
	Name       string
}

// Clip is an immutable set of per-bone keyframe tracks and timeline events.
// All non-empty tracks share the key count and key times of the reference track,
// which drives end-of-clip and loop detection. A Clip may be read concurrently by
// any number of playback controllers.
type Clip struct {
	name      string
	loop      bool
	tracks    [][]Keyframe
	events    []Event
	reference int32
}

// NewClip groups raw keyframes by bone, records the first non-empty track as the
// reference timeline and sorts events by invoke time (stable for equal times).
// Keyframes are expected to be time-ordered per bone already; input order is preserved.
//
// Parameters:
//   - name: the clip name reported to event listeners
//   - boneCount: the number of bones in the target skeleton
//   - keys: the raw keyframe records
//   - events: the raw event records
//   - options: functional options to configure the clip
//
// Returns:
//   - *Clip: the built clip
//   - error: ErrInvalidBoneIndex, ErrEventNameTooLong or ErrTrackMismatch if the definition is unusable
func NewClip(name string, boneCount int, keys []RawKeyframe, events []RawEvent, options ...ClipBuilderOption) (*Clip, error) {
	c := &Clip{
		name:      name,
		tracks:    make([][]Keyframe, boneCount),
		reference: -1,
	}

	for i, k := range keys {
		if k.BoneIndex < 0 || int(k.BoneIndex) >= boneCount {
			return nil, errors.Wrapf(ErrInvalidBoneIndex, "clip %q key %d targets bone %d of %d", name, i, k.BoneIndex, boneCount)
		}
		c.tracks[k.BoneIndex] = append(c.tracks[k.BoneIndex], Keyframe{
			Time:      k.Time,
			Transform: k.Transform.Mat4(),
		})
	}

	c.events = make([]Event, 0, len(events))
	for _, ev := range events {
		c.events = append(c.events, Event{InvokeTime: ev.InvokeTime, Name: ev.Name})
	}

	for _, opt := range options {
		opt(c)
	}

	for _, ev := range c.events {
		if len(ev.Name) > MaxEventNameLength {
			return nil, errors.Wrapf(ErrEventNameTooLong, "clip %q event of %d bytes", name, len(ev.Name))
		}
	}
	sort.SliceStable(c.events, func(i, j int) bool {
		return c.events[i].InvokeTime < c.events[j].InvokeTime
	})

	for bone, track := range c.tracks {
		if len(track) == 0 {
			continue
		}
		if c.reference < 0 {
			c.reference = int32(bone)
			continue
		}
		if err := c.matchesReference(track); err != nil {
			return nil, errors.Wrapf(err, "clip %q bone %d", name, bone)
		}
	}

	return c, nil
}

// matchesReference checks a track against the reference timeline.
func (c *Clip) matchesReference(track []Keyframe) error {
	ref := c.tracks[c.reference]
	if len(track) != len(ref) {
		return errors.Wrapf(ErrTrackMismatch, "%d keys, reference has %d", len(track), len(ref))
	}
	for i := range track {
		if track[i].Time != ref[i].Time {
			return errors.Wrapf(ErrTrackMismatch, "key %d at %g, reference at %g", i, track[i].Time, ref[i].Time)
		}
	}
	return nil
}

// Name returns the clip name.
func (c *Clip) Name() string {
	return c.name
}

// Loop reports whether playback restarts after the last reference key.
func (c *Clip) Loop() bool {
	return c.loop
}

// BoneCount returns the number of bone tracks, empty or not.
func (c *Clip) BoneCount() int {
	return len(c.tracks)
}

// Track returns the keyframes of one bone, or nil if the bone has none.
// The slice is shared and must not be modified.
//
// Parameters:
//   - bone: the bone index
//
// Returns:
//   - []Keyframe: the bone's keyframes in time order
func (c *Clip) Track(bone int32) []Keyframe {
	if bone < 0 || int(bone) >= len(c.tracks) {
		return nil
	}
	return c.tracks[bone]
}

// ReferenceBone returns the bone whose track drives the clip timeline, or -1 for a clip without keys.
func (c *Clip) ReferenceBone() int32 {
	return c.reference
}

// ReferenceTrack returns the keyframes of the reference bone.
func (c *Clip) ReferenceTrack() []Keyframe {
	return c.Track(c.reference)
}

// KeyCount returns the number of keys on the reference timeline.
func (c *Clip) KeyCount() int {
	return len(c.ReferenceTrack())
}

// Duration returns the time of the last reference key.
func (c *Clip) Duration() float32 {
	ref := c.ReferenceTrack()
	if len(ref) == 0 {
		return 0
	}
	return ref[len(ref)-1].Time
}

// Events returns the clip's events ordered by invoke time. The slice must not be modified.
func (c *Clip) Events() []Event {
	return c.events
}
