package loader

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/clip"
	"github.com/Carmen-Shannon/oxy-anim/engine/skeleton"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	logger   logrus.FieldLogger
	gltfSkin int

	skeletonCache map[string][]skeleton.BoneRecord
	clipCache     map[string]*rawClip
	setCache      map[string]*AnimationSet

	binary binaryBackend
	gltf   skeletonBackend
}

// Loader defines the public-facing interface for loading and caching animation definitions.
// It abstracts the file format behind backends selected by file extension and keeps
// per-path caches so repeated loads share decoded data. Nothing is cached on failure.
type Loader interface {
	// LoadSkeleton reads a skeleton definition and caches it by path.
	// The backend is selected from the extension (.skel binary, .gltf/.glb skins).
	//
	// Parameters:
	//   - path: the file path to the definition
	//
	// Returns:
	//   - []skeleton.BoneRecord: the bone records, parents before children
	//   - error: error if loading fails
	LoadSkeleton(path string) ([]skeleton.BoneRecord, error)

	// ReadSkeleton reads a skeleton definition from a reader stream and caches it by name.
	//
	// Parameters:
	//   - name: the cache key for the definition
	//   - r: the reader providing the definition
	//   - ext: the format extension, e.g. ".skel" or ".glb"
	//
	// Returns:
	//   - []skeleton.BoneRecord: the bone records
	//   - error: error if decoding fails
	ReadSkeleton(name string, r io.Reader, ext string) ([]skeleton.BoneRecord, error)

	// LoadClip builds a clip from a .clip file or a glTF animation. The decoded source is
	// cached by path and shared by every clip built from it.
	//
	// Parameters:
	//   - path: the clip file, or "file.glb#animation" for a glTF animation on the loader's skin
	//   - name: the clip name reported to event listeners
	//   - boneCount: the bone count of the target skeleton
	//   - options: functional options forwarded to clip.NewClip
	//
	// Returns:
	//   - *clip.Clip: the built clip
	//   - error: error if loading or validation fails
	LoadClip(path, name string, boneCount int, options ...clip.ClipBuilderOption) (*clip.Clip, error)

	// LoadAnimationSet reads a YAML animation-set manifest along with the skeleton and clips
	// it references, resolving relative paths against the manifest's directory. The set is
	// cached by manifest path.
	//
	// Parameters:
	//   - path: the file path to the manifest
	//
	// Returns:
	//   - *AnimationSet: the loaded set
	//   - error: error if any part of the set fails to load
	LoadAnimationSet(path string) (*AnimationSet, error)

	// AnimationSet retrieves a cached set by manifest path. Returns nil if not found.
	//
	// Parameters:
	//   - path: the cache key to look up
	//
	// Returns:
	//   - *AnimationSet: the cached set or nil
	AnimationSet(path string) *AnimationSet

	// AnimationSets returns a snapshot of the set cache.
	//
	// Returns:
	//   - map[string]*AnimationSet: all cached sets keyed by manifest path
	AnimationSets() map[string]*AnimationSet
}

var _ Loader = &loader{}

// NewLoader creates a new Loader with the given options applied.
//
// Parameters:
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new Loader instance
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		mu:            sync.RWMutex{},
		skeletonCache: make(map[string][]skeleton.BoneRecord),
		clipCache:     make(map[string]*rawClip),
		setCache:      make(map[string]*AnimationSet),
	}

	for _, option := range options {
		option(l)
	}
	l.logger = common.ComponentLogger(l.logger, "loader")
	l.gltf = newGLTFLoaderBackend(l.gltfSkin)
	return l
}

func (l *loader) LoadSkeleton(path string) ([]skeleton.BoneRecord, error) {
	l.mu.RLock()
	if cached, ok := l.skeletonCache[path]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	backend, err := l.resolveSkeletonBackend(path)
	if err != nil {
		return nil, err
	}

	records, err := backend.LoadSkeleton(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", path)
	}

	l.mu.Lock()
	l.skeletonCache[path] = records
	l.mu.Unlock()

	l.logger.WithFields(logrus.Fields{"path": path, "bones": len(records)}).Debug("skeleton loaded")
	return records, nil
}

func (l *loader) ReadSkeleton(name string, r io.Reader, ext string) ([]skeleton.BoneRecord, error) {
	l.mu.RLock()
	if cached, ok := l.skeletonCache[name]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	backend, err := l.resolveSkeletonBackend(ext)
	if err != nil {
		return nil, err
	}

	records, err := backend.ReadSkeleton(r)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read skeleton %q", name)
	}

	l.mu.Lock()
	l.skeletonCache[name] = records
	l.mu.Unlock()

	return records, nil
}

func (l *loader) LoadClip(path, name string, boneCount int, options ...clip.ClipBuilderOption) (*clip.Clip, error) {
	raw, err := l.loadRawClip(path)
	if err != nil {
		return nil, err
	}

	c, err := clip.NewClip(name, boneCount, raw.keys, raw.events, options...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build clip %q from %s", name, path)
	}
	return c, nil
}

// loadRawClip decodes a clip source once and caches the raw records by path.
// A glTF path may name its animation after a '#', e.g. "hero.glb#walk".
func (l *loader) loadRawClip(path string) (*rawClip, error) {
	l.mu.RLock()
	if cached, ok := l.clipCache[path]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	file, animation := splitClipPath(path)

	var raw *rawClip
	switch ext := strings.ToLower(filepath.Ext(file)); ext {
	case ".clip":
		f, err := os.Open(file)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load %s", path)
		}
		defer f.Close()

		keys, events, err := l.binary.ReadClip(f)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load %s", path)
		}
		raw = &rawClip{keys: keys, events: events}
	case ".gltf", ".glb":
		doc, err := gltf.Open(file)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load %s", path)
		}
		keys, err := gltfExtractClip(doc, l.gltfSkin, animation)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load %s", path)
		}
		raw = &rawClip{keys: keys}
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "clip format %q", ext)
	}

	l.mu.Lock()
	l.clipCache[path] = raw
	l.mu.Unlock()

	return raw, nil
}

// splitClipPath separates a glTF animation fragment from the file path.
func splitClipPath(path string) (string, string) {
	i := strings.LastIndexByte(path, '#')
	if i < 0 {
		return path, ""
	}
	switch strings.ToLower(filepath.Ext(path[:i])) {
	case ".gltf", ".glb":
		return path[:i], path[i+1:]
	}
	return path, ""
}

func (l *loader) LoadAnimationSet(path string) (*AnimationSet, error) {
	l.mu.RLock()
	if cached, ok := l.setCache[path]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	if ext := strings.ToLower(filepath.Ext(path)); ext != ".yaml" && ext != ".yml" {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "manifest format %q", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", path)
	}
	defer f.Close()

	var m manifest
	if err := yaml.NewDecoder(f).Decode(&m); err != nil {
		return nil, errors.Wrapf(err, "failed to decode manifest %s", path)
	}

	set, err := l.buildAnimationSet(path, &m)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", path)
	}

	l.mu.Lock()
	l.setCache[path] = set
	l.mu.Unlock()

	l.logger.WithFields(logrus.Fields{
		"set":   set.Name,
		"bones": set.BoneCount(),
		"clips": len(set.order),
	}).Info("animation set loaded")
	return set, nil
}

// buildAnimationSet loads everything a manifest references.
func (l *loader) buildAnimationSet(path string, m *manifest) (*AnimationSet, error) {
	if m.Skeleton == "" {
		return nil, errors.Wrap(ErrInvalidManifest, "no skeleton")
	}
	if m.DefaultBlend < 0 {
		return nil, errors.Wrapf(ErrInvalidManifest, "negative default blend %g", m.DefaultBlend)
	}

	dir := filepath.Dir(path)
	records, err := l.LoadSkeleton(resolvePath(dir, m.Skeleton))
	if err != nil {
		return nil, err
	}
	skel, err := skeleton.NewSkeleton(records, skeleton.WithLogger(l.logger))
	if err != nil {
		return nil, errors.Wrapf(err, "skeleton %s", m.Skeleton)
	}
	if m.FootstepBone != "" && skel.FindBoneID(m.FootstepBone) < 0 {
		return nil, errors.Wrapf(ErrInvalidManifest, "footstep bone %q not in skeleton", m.FootstepBone)
	}

	set := &AnimationSet{
		Name:         common.Coalesce(m.Name, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))),
		FootstepBone: m.FootstepBone,
		DefaultBlend: m.DefaultBlend,
		records:      records,
		clips:        make(map[string]*clip.Clip, len(m.Clips)),
		order:        make([]string, 0, len(m.Clips)),
	}

	for i, mc := range m.Clips {
		if mc.Name == "" || mc.Path == "" {
			return nil, errors.Wrapf(ErrInvalidManifest, "clip %d needs a name and a path", i)
		}
		if _, dup := set.clips[mc.Name]; dup {
			return nil, errors.Wrapf(ErrInvalidManifest, "duplicate clip %q", mc.Name)
		}

		events := make([]clip.RawEvent, len(mc.Events))
		for j, ev := range mc.Events {
			events[j] = clip.RawEvent{InvokeTime: ev.Time, Name: ev.Name}
		}

		c, err := l.LoadClip(resolvePath(dir, mc.Path), mc.Name, len(records), clip.WithLoop(mc.Loop), clip.WithEvents(events...))
		if err != nil {
			return nil, err
		}
		set.clips[mc.Name] = c
		set.order = append(set.order, mc.Name)
	}

	return set, nil
}

func (l *loader) AnimationSet(path string) *AnimationSet {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.setCache[path]
}

func (l *loader) AnimationSets() map[string]*AnimationSet {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make(map[string]*AnimationSet, len(l.setCache))
	for k, v := range l.setCache {
		result[k] = v
	}
	return result
}

// resolveSkeletonBackend selects a skeleton backend based on the file extension.
func (l *loader) resolveSkeletonBackend(path string) (skeletonBackend, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".skel":
		return l.binary, nil
	case ".gltf", ".glb":
		return l.gltf, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "skeleton format %q", ext)
	}
}

func resolvePath(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
