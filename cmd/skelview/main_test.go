package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/config"
	"github.com/Carmen-Shannon/oxy-anim/engine"
	"github.com/Carmen-Shannon/oxy-anim/engine/clip"
	"github.com/Carmen-Shannon/oxy-anim/engine/loader"
	"github.com/Carmen-Shannon/oxy-anim/engine/scene"
	"github.com/Carmen-Shannon/oxy-anim/engine/skeleton"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testManifest = `
name: walker
skeleton: walker.skel
footstep_bone: root
default_blend: 0.2
clips:
  - name: walk
    path: walk.clip
    loop: true
  - name: slide
    path: slide.clip
    loop: true
`

const testScene = `
tick_rate = 60
log_level = "error"

entity "hero" {
  animation_set = "walker.yaml"
  root_motion   = true
}
`

func writeClipFile(t *testing.T, path string, step float32) {
	t.Helper()
	var keys []clip.RawKeyframe
	for bone := int32(0); bone < 2; bone++ {
		for i, tm := range []float32{0, 0.5, 1} {
			keys = append(keys, clip.RawKeyframe{BoneIndex: bone, Time: tm, Transform: common.TranslationAffine(step*float32(i), float32(bone), 0)})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, loader.WriteClip(f, keys, []clip.RawEvent{{InvokeTime: 0.25, Name: "step"}}))
}

// writeScene writes a two-bone walker set and a scene referencing it, returning the scene path.
func writeScene(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	f, err := os.Create(filepath.Join(dir, "walker.skel"))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, loader.WriteSkeleton(f, []skeleton.BoneRecord{
		{Name: "root", ParentIndex: -1, BindPose: common.IdentityAffine(), InverseBindPose: common.IdentityAffine()},
		{Name: "hip", ParentIndex: 0, BindPose: common.TranslationAffine(0, 1, 0), InverseBindPose: common.TranslationAffine(0, -1, 0)},
	}))

	writeClipFile(t, filepath.Join(dir, "walk.clip"), 1)
	writeClipFile(t, filepath.Join(dir, "slide.clip"), 2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "walker.yaml"), []byte(testManifest), 0o644))

	path := filepath.Join(dir, "scene.hcl")
	require.NoError(t, os.WriteFile(path, []byte(testScene), 0o644))
	return path
}

func TestRun_HeadlessDumpsBone(t *testing.T) {
	path := writeScene(t)
	var out bytes.Buffer

	err := run(context.Background(), &out, []string{"-headless", "-ticks", "3", "-dump-bone", "hip", path})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "hero/hip:")
	assert.Contains(t, out.String(), "Translation")
}

func TestRun_UnknownDumpBone(t *testing.T) {
	path := writeScene(t)
	var out bytes.Buffer

	err := run(context.Background(), &out, []string{"-headless", "-ticks", "1", "-dump-bone", "tail", path})
	require.NoError(t, err)
	assert.Contains(t, out.String(), `hero: no bone "tail"`)
}

func TestRun_BadScene(t *testing.T) {
	var out bytes.Buffer

	err := run(context.Background(), &out, []string{filepath.Join(t.TempDir(), "missing.hcl")})
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func newTestViewer(t *testing.T) (*viewer, engine.Engine, []config.Spawned, *[]string) {
	t.Helper()
	cfg, err := config.Load(writeScene(t))
	require.NoError(t, err)

	logger, _ := logtest.NewNullLogger()
	s := scene.NewScene("viewer", scene.WithLogger(logger), scene.WithComputeWorkers(1))
	spawned, err := config.Populate(cfg, s, loader.NewLoader(loader.WithLogger(logger)), logger)
	require.NoError(t, err)

	eng := engine.NewEngine(engine.WithLogger(logger), engine.WithScene(0, s))
	var titles []string
	v := newViewer(eng, spawned, logger, func(title string) { titles = append(titles, title) })
	return v, eng, spawned, &titles
}

func TestViewer_KeysQueueUntilTick(t *testing.T) {
	t.Parallel()
	v, eng, spawned, titles := newTestViewer(t)
	hero := spawned[0].Object

	require.NotEmpty(t, *titles)
	assert.Equal(t, "Skeleton Viewer | 1 entities | clip walk | root motion", (*titles)[0])

	v.handleKey(common.KeyF)
	assert.True(t, hero.RootMotion(), "toggle waits for the tick")
	assert.Contains(t, (*titles)[len(*titles)-1], "clip walk")
	assert.NotContains(t, (*titles)[len(*titles)-1], "root motion")

	eng.Step(0)
	assert.False(t, hero.RootMotion())
}

func TestViewer_SwitchClip(t *testing.T) {
	t.Parallel()
	v, eng, spawned, titles := newTestViewer(t)

	v.handleKey(common.Key2)
	assert.Equal(t, "slide", v.clip)
	assert.Contains(t, (*titles)[len(*titles)-1], "clip slide")

	eng.Step(0.1)
	assert.True(t, spawned[0].Object.Animation().IsPlaying())

	// No third clip: nothing changes.
	v.handleKey(common.Key3)
	assert.Equal(t, "slide", v.clip)
}

func TestViewer_PauseAndReset(t *testing.T) {
	t.Parallel()
	v, eng, spawned, titles := newTestViewer(t)
	hero := spawned[0].Object

	eng.Step(0.5)
	x, _, _ := hero.Position()
	require.NotZero(t, x, "root motion moved the entity")

	v.handleKey(common.KeySpace)
	assert.True(t, eng.Paused())
	assert.Contains(t, (*titles)[len(*titles)-1], "paused")

	v.handleKey(common.KeyR)
	eng.Step(0.5)
	x, y, z := hero.Position()
	assert.Equal(t, [3]float32{}, [3]float32{x, y, z})

	v.handleKey(common.KeySpace)
	assert.False(t, eng.Paused())
}
