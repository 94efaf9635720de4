package loader

import (
	"github.com/Carmen-Shannon/oxy-anim/engine/clip"
	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedFormat is returned when no backend handles a file extension.
	ErrUnsupportedFormat = errors.New("loader: unsupported format")
	// ErrMalformed is returned when a definition file is truncated or internally inconsistent.
	ErrMalformed = errors.New("loader: malformed definition")
	// ErrNameTooLong is returned when a bone name does not fit its length prefix.
	ErrNameTooLong = errors.New("loader: name too long")
	// ErrNoSkin is returned when a glTF document has no skin at the requested index.
	ErrNoSkin = errors.New("loader: document has no such skin")
	// ErrNoAnimation is returned when a glTF document has no matching animation for the skin.
	ErrNoAnimation = errors.New("loader: document has no such animation")
	// ErrInvalidManifest is returned when an animation-set manifest is incomplete or inconsistent.
	ErrInvalidManifest = errors.New("loader: invalid animation set manifest")
)

// rawClip is a decoded clip source shared by every clip built from it.
type rawClip struct {
	keys   []clip.RawKeyframe
	events []clip.RawEvent
}

// manifest is the YAML document describing an animation set.
type manifest struct {
	Name         string         `yaml:"name"`
	Skeleton     string         `yaml:"skeleton"`
	FootstepBone string         `yaml:"footstep_bone"`
	DefaultBlend float32        `yaml:"default_blend"`
	Clips        []manifestClip `yaml:"clips"`
}

type manifestClip struct {
	Name   string          `yaml:"name"`
	Path   string          `yaml:"path"`
	Loop   bool            `yaml:"loop"`
	Events []manifestEvent `yaml:"events,omitempty"`
}

type manifestEvent struct {
	Time float32 `yaml:"time"`
	Name string  `yaml:"name"`
}
