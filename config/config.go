package config

import (
	"os"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
)

// ErrInvalidConfig is returned when a scene file decodes but describes an unusable scene.
var ErrInvalidConfig = errors.New("invalid scene config")

// Defaults applied to attributes a scene file leaves out.
const (
	DefaultTickRate  = 60.0
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// hclSceneFile is the top-level structure of a scene file for decoding.
type hclSceneFile struct {
	TickRate       *float64          `hcl:"tick_rate,optional"`
	ComputeWorkers *int              `hcl:"compute_workers,optional"`
	LogLevel       *string           `hcl:"log_level,optional"`
	LogFormat      *string           `hcl:"log_format,optional"`
	Profiling      *bool             `hcl:"profiling,optional"`
	Entities       []*hclEntityBlock `hcl:"entity,block"`
}

// hclEntityBlock is a single `entity "<name>" { ... }` block.
type hclEntityBlock struct {
	Name         string    `hcl:"name,label"`
	AnimationSet string    `hcl:"animation_set"`
	Play         *string   `hcl:"play,optional"`
	Blend        *float64  `hcl:"blend,optional"`
	Position     []float64 `hcl:"position,optional"`
	Rotation     []float64 `hcl:"rotation,optional"`
	RootMotion   *bool     `hcl:"root_motion,optional"`
	FootstepBone *string   `hcl:"footstep_bone,optional"`
}

// Config is a decoded, validated scene file with defaults applied.
type Config struct {
	TickRate       float64
	ComputeWorkers int
	LogLevel       string
	LogFormat      string
	Profiling      bool
	Entities       []Entity
}

// Entity describes one animated object of the scene.
type Entity struct {
	Name string
	// AnimationSet is the manifest path, resolved against the scene file's directory.
	AnimationSet string
	// Play names the clip started on spawn; empty selects the set's first clip.
	Play string
	// Blend overrides the set's default cross-fade for clip switches when non-nil.
	Blend *float32
	// Position is the spawn position.
	Position [3]float32
	// Rotation is the spawn Euler rotation in degrees.
	Rotation   [3]float32
	RootMotion bool
	// FootstepBone overrides the set's footstep bone when non-empty.
	FootstepBone string
}

// Load parses and decodes a scene file.
// The variable assets_dir holds the directory of the file and may be interpolated
// into any attribute, e.g. animation_set = "${assets_dir}/walker.yaml".
//
// Parameters:
//   - path: the scene file path
//
// Returns:
//   - *Config: the decoded config
//   - error: error if the file cannot be read, parsed, decoded or validated
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read scene file %s", path)
	}
	return Parse(src, path)
}

// Parse decodes scene file source. filename is used for diagnostics, and its absolute
// directory is both assets_dir and the base for relative animation set paths.
//
// Parameters:
//   - src: the HCL source
//   - filename: the name the source was read from
//
// Returns:
//   - *Config: the decoded config
//   - error: error if the source cannot be parsed, decoded or validated
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errors.Wrapf(diags, "failed to parse scene file %s", filename)
	}

	dir := filepath.Dir(filename)
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"assets_dir": cty.StringVal(dir),
		},
	}

	var parsed hclSceneFile
	diags = gohcl.DecodeBody(file.Body, evalCtx, &parsed)
	if diags.HasErrors() {
		return nil, errors.Wrapf(diags, "failed to decode scene file %s", filename)
	}

	cfg, err := newConfig(&parsed, dir)
	if err != nil {
		return nil, errors.Wrapf(err, "scene file %s", filename)
	}
	return cfg, nil
}

// newConfig validates a decoded file and applies defaults.
func newConfig(f *hclSceneFile, dir string) (*Config, error) {
	cfg := &Config{
		TickRate:       valueOr(f.TickRate, DefaultTickRate),
		ComputeWorkers: valueOr(f.ComputeWorkers, 0),
		LogLevel:       common.Coalesce(valueOr(f.LogLevel, ""), DefaultLogLevel),
		LogFormat:      common.Coalesce(valueOr(f.LogFormat, ""), DefaultLogFormat),
		Profiling:      valueOr(f.Profiling, false),
		Entities:       make([]Entity, 0, len(f.Entities)),
	}

	if cfg.TickRate <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "tick_rate must be positive, got %g", cfg.TickRate)
	}
	if cfg.ComputeWorkers < 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "compute_workers must not be negative, got %d", cfg.ComputeWorkers)
	}

	seen := make(map[string]bool, len(f.Entities))
	for _, b := range f.Entities {
		if seen[b.Name] {
			return nil, errors.Wrapf(ErrInvalidConfig, "duplicate entity %q", b.Name)
		}
		seen[b.Name] = true

		e, err := newEntity(b, dir)
		if err != nil {
			return nil, errors.Wrapf(err, "entity %q", b.Name)
		}
		cfg.Entities = append(cfg.Entities, e)
	}
	return cfg, nil
}

func newEntity(b *hclEntityBlock, dir string) (Entity, error) {
	e := Entity{
		Name:         b.Name,
		Play:         valueOr(b.Play, ""),
		RootMotion:   valueOr(b.RootMotion, false),
		FootstepBone: valueOr(b.FootstepBone, ""),
	}

	if b.AnimationSet == "" {
		return Entity{}, errors.Wrap(ErrInvalidConfig, "animation_set is empty")
	}
	e.AnimationSet = b.AnimationSet
	if !filepath.IsAbs(e.AnimationSet) {
		e.AnimationSet = filepath.Join(dir, e.AnimationSet)
	}

	if b.Blend != nil {
		if *b.Blend < 0 {
			return Entity{}, errors.Wrapf(ErrInvalidConfig, "blend must not be negative, got %g", *b.Blend)
		}
		blend := float32(*b.Blend)
		e.Blend = &blend
	}

	var err error
	if e.Position, err = vec3("position", b.Position); err != nil {
		return Entity{}, err
	}
	if e.Rotation, err = vec3("rotation", b.Rotation); err != nil {
		return Entity{}, err
	}
	return e, nil
}

// vec3 converts an optional three-element list; a missing list is the zero vector.
func vec3(attr string, v []float64) ([3]float32, error) {
	if v == nil {
		return [3]float32{}, nil
	}
	if len(v) != 3 {
		return [3]float32{}, errors.Wrapf(ErrInvalidConfig, "%s needs 3 components, got %d", attr, len(v))
	}
	return [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}, nil
}

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
