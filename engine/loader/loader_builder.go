package loader

import "github.com/sirupsen/logrus"

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithLogger is an option builder that sets the logger used by the Loader.
//
// Parameters:
//   - logger: the logger to use; nil selects the process-wide logrus logger
//
// Returns:
//   - LoaderBuilderOption: a function that applies the logger option to a loader
func WithLogger(logger logrus.FieldLogger) LoaderBuilderOption {
	return func(l *loader) {
		l.logger = logger
	}
}

// WithGLTFSkin selects which skin of a glTF document is read as the skeleton. Defaults to 0.
//
// Parameters:
//   - index: the skin index
//
// Returns:
//   - LoaderBuilderOption: a function that applies the skin option to a loader
func WithGLTFSkin(index int) LoaderBuilderOption {
	return func(l *loader) {
		l.gltfSkin = index
	}
}

// WithAnimationSet is an option builder that pre-populates the set cache.
//
// Parameters:
//   - key: the cache key for the set
//   - set: the set to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the set option to a loader
func WithAnimationSet(key string, set *AnimationSet) LoaderBuilderOption {
	return func(l *loader) {
		l.setCache[key] = set
	}
}
