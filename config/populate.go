package config

import (
	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/animator"
	"github.com/Carmen-Shannon/oxy-anim/engine/game_object"
	"github.com/Carmen-Shannon/oxy-anim/engine/loader"
	"github.com/Carmen-Shannon/oxy-anim/engine/scene"
	"github.com/Carmen-Shannon/oxy-anim/engine/skeleton"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	// ErrUnknownClip is returned when an entity plays a clip its animation set does not define.
	ErrUnknownClip = errors.New("unknown clip")
	// ErrUnknownBone is returned when an entity names a footstep bone its skeleton does not define.
	ErrUnknownBone = errors.New("unknown bone")
)

// Spawned is an entity that Populate added to a scene.
type Spawned struct {
	Entity Entity
	Set    *loader.AnimationSet
	Object game_object.GameObject
}

// Blend returns the cross-fade duration for clip switches, preferring the entity's override.
func (s Spawned) Blend() float32 {
	if s.Entity.Blend != nil {
		return *s.Entity.Blend
	}
	return s.Set.DefaultBlend
}

// Populate loads every entity's animation set through l, builds its skeleton and animation,
// starts its initial clip with a hard cut and adds it to s.
// Nothing is added if any entity fails.
//
// Parameters:
//   - cfg: the decoded scene config
//   - s: the scene to add entities to
//   - l: the loader used to read animation sets
//   - logger: the parent logger for skeletons and animations
//
// Returns:
//   - []Spawned: the added entities in config order
//   - error: error if a set cannot be loaded or an entity references an unknown clip or bone
func Populate(cfg *Config, s scene.Scene, l loader.Loader, logger logrus.FieldLogger) ([]Spawned, error) {
	logger = common.ComponentLogger(logger, "config")

	spawned := make([]Spawned, 0, len(cfg.Entities))
	for _, e := range cfg.Entities {
		sp, err := spawn(e, l, logger)
		if err != nil {
			return nil, errors.Wrapf(err, "entity %q", e.Name)
		}
		spawned = append(spawned, sp)
	}

	for _, sp := range spawned {
		id := s.Add(sp.Object)
		logger.WithFields(logrus.Fields{
			"entity": sp.Entity.Name,
			"id":     id,
			"set":    sp.Set.Name,
			"bones":  sp.Set.BoneCount(),
		}).Info("entity spawned")
	}
	return spawned, nil
}

func spawn(e Entity, l loader.Loader, logger logrus.FieldLogger) (Spawned, error) {
	set, err := l.LoadAnimationSet(e.AnimationSet)
	if err != nil {
		return Spawned{}, err
	}

	skel, err := set.NewSkeleton(skeleton.WithLogger(logger))
	if err != nil {
		return Spawned{}, err
	}

	footstep := int32(-1)
	if name := common.Coalesce(e.FootstepBone, set.FootstepBone); name != "" {
		if footstep = skel.FindBoneID(name); footstep < 0 {
			return Spawned{}, errors.Wrapf(ErrUnknownBone, "footstep bone %q", name)
		}
	}

	clipName := e.Play
	if clipName == "" {
		if names := set.ClipNames(); len(names) > 0 {
			clipName = names[0]
		}
	}
	c := set.Clip(clipName)
	if c == nil {
		return Spawned{}, errors.Wrapf(ErrUnknownClip, "clip %q in set %q", clipName, set.Name)
	}

	anim := animator.NewAnimation(skel,
		animator.WithLogger(logger),
		animator.WithFootstepBone(footstep),
	)
	anim.Play(c, 0)

	obj := game_object.NewGameObject(
		game_object.WithName(e.Name),
		game_object.WithAnimation(anim),
		game_object.WithRootMotion(e.RootMotion),
		game_object.WithPosition(e.Position[0], e.Position[1], e.Position[2]),
		game_object.WithRotation(
			mgl32.DegToRad(e.Rotation[0]),
			mgl32.DegToRad(e.Rotation[1]),
			mgl32.DegToRad(e.Rotation[2]),
		),
	)
	return Spawned{Entity: e, Set: set, Object: obj}, nil
}
