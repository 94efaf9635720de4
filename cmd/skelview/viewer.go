package main

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/config"
	"github.com/Carmen-Shannon/oxy-anim/engine"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"
)

// viewer maps key presses onto playback commands.
// Commands touching an entity are queued and applied from the tick callback.
type viewer struct {
	logger   logrus.FieldLogger
	eng      engine.Engine
	spawned  []config.Spawned
	commands chan func()
	setTitle func(string)

	clip       string
	rootMotion bool
}

func newViewer(eng engine.Engine, spawned []config.Spawned, logger logrus.FieldLogger, setTitle func(string)) *viewer {
	v := &viewer{
		logger:   common.ComponentLogger(logger, "viewer"),
		eng:      eng,
		spawned:  spawned,
		commands: make(chan func(), 16),
		setTitle: setTitle,
	}
	for _, sp := range spawned {
		v.rootMotion = v.rootMotion || sp.Entity.RootMotion
	}
	if len(spawned) > 0 {
		v.clip = common.Coalesce(spawned[0].Entity.Play, first(spawned[0].Set.ClipNames()))
	}
	eng.SetTickCallback(func(float32) { v.apply() })
	v.refreshTitle()
	return v
}

func first(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// handleKey reacts to a key press.
func (v *viewer) handleKey(keyCode uint32) {
	switch {
	case keyCode >= common.Key1 && keyCode <= common.Key9:
		v.playIndex(int(keyCode - common.Key1))
	case keyCode == common.KeySpace:
		v.eng.SetPaused(!v.eng.Paused())
		v.logger.WithField("paused", v.eng.Paused()).Info("playback toggled")
	case keyCode == common.KeyF:
		v.rootMotion = !v.rootMotion
		enabled := v.rootMotion
		v.enqueue(func() {
			for _, sp := range v.spawned {
				sp.Object.SetRootMotion(enabled)
			}
		})
		v.logger.WithField("root_motion", enabled).Info("root motion toggled")
	case keyCode == common.KeyR:
		v.enqueue(func() {
			for _, sp := range v.spawned {
				p, r := sp.Entity.Position, sp.Entity.Rotation
				sp.Object.SetPosition(p[0], p[1], p[2])
				sp.Object.SetRotation(mgl32.DegToRad(r[0]), mgl32.DegToRad(r[1]), mgl32.DegToRad(r[2]))
			}
		})
		v.logger.Info("entities reset")
	default:
		return
	}
	v.refreshTitle()
}

// playIndex cross-fades every entity whose set has an idx-th clip.
func (v *viewer) playIndex(idx int) {
	played := ""
	for _, sp := range v.spawned {
		names := sp.Set.ClipNames()
		if idx >= len(names) {
			continue
		}
		c, blend, anim := sp.Set.Clip(names[idx]), sp.Blend(), sp.Object.Animation()
		v.enqueue(func() { anim.Play(c, blend) })
		played = common.Coalesce(played, names[idx])
	}
	if played == "" {
		return
	}
	v.clip = played
	v.logger.WithField("clip", played).Info("clip switched")
}

// enqueue hands a command to the tick goroutine, dropping it when the queue is full.
func (v *viewer) enqueue(cmd func()) {
	select {
	case v.commands <- cmd:
	default:
		v.logger.Warn("command queue full, dropping input")
	}
}

// apply runs every queued command. Called from the tick callback.
func (v *viewer) apply() {
	for {
		select {
		case cmd := <-v.commands:
			cmd()
		default:
			return
		}
	}
}

func (v *viewer) title() string {
	parts := []string{"Skeleton Viewer", fmt.Sprintf("%d entities", len(v.spawned))}
	if v.clip != "" {
		parts = append(parts, "clip "+v.clip)
	}
	if v.rootMotion {
		parts = append(parts, "root motion")
	}
	if v.eng.Paused() {
		parts = append(parts, "paused")
	}
	return strings.Join(parts, " | ")
}

func (v *viewer) refreshTitle() {
	if v.setTitle != nil {
		v.setTitle(v.title())
	}
}
