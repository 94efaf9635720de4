package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/config"
	"github.com/Carmen-Shannon/oxy-anim/engine"
	"github.com/Carmen-Shannon/oxy-anim/engine/loader"
	"github.com/Carmen-Shannon/oxy-anim/engine/renderer"
	"github.com/Carmen-Shannon/oxy-anim/engine/scene"
	"github.com/Carmen-Shannon/oxy-anim/engine/window"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Stdout, os.Args[1:]); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run loads the scene, drives it until the tick limit, the window closing or ctx
// cancellation, and optionally dumps a bone's world transform per entity.
func run(ctx context.Context, out io.Writer, args []string) error {
	opts, shouldExit, err := parseArgs(args, out)
	if err != nil || shouldExit {
		return err
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	if err := common.ConfigureLogger(
		common.Coalesce(opts.LogLevel, cfg.LogLevel),
		common.Coalesce(opts.LogFormat, cfg.LogFormat),
	); err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	logger := logrus.StandardLogger()

	sceneOpts := []scene.SceneBuilderOption{scene.WithLogger(logger)}
	if cfg.ComputeWorkers > 0 {
		sceneOpts = append(sceneOpts, scene.WithComputeWorkers(cfg.ComputeWorkers))
	}
	if opts.GPU {
		r, err := renderer.NewRenderer(renderer.BackendTypeWGPU,
			renderer.WithLogger(logger),
			renderer.WithForceSoftwareRenderer(opts.SoftwareGPU),
		)
		if err != nil {
			logger.WithError(err).Warn("no WebGPU device, skinning palettes stay on the CPU")
		} else {
			defer r.Release()
			sceneOpts = append(sceneOpts, scene.WithRenderer(r))
		}
	}

	name := strings.TrimSuffix(filepath.Base(opts.ConfigPath), filepath.Ext(opts.ConfigPath))
	s := scene.NewScene(name, sceneOpts...)
	defer s.Clear()

	spawned, err := config.Populate(cfg, s, loader.NewLoader(loader.WithLogger(logger)), logger)
	if err != nil {
		return err
	}

	engineOpts := []engine.EngineBuilderOption{
		engine.WithLogger(logger),
		engine.WithTickRate(cfg.TickRate),
		engine.WithProfiling(cfg.Profiling),
		engine.WithMaxTicks(opts.Ticks),
		engine.WithScene(0, s),
	}

	var win window.Window
	if !opts.Headless {
		win, err = window.NewWindow(window.WithTitle("Skeleton Viewer"))
		if err != nil {
			logger.WithError(err).Warn("no window available, running headless")
			win = nil
		}
	}
	if win != nil {
		engineOpts = append(engineOpts, engine.WithWindow(win))
	} else {
		engineOpts = append(engineOpts, engine.WithFixedStep(true))
	}

	eng := engine.NewEngine(engineOpts...)
	if win != nil {
		v := newViewer(eng, spawned, logger, win.SetTitle)
		win.SetKeyDownCallback(v.handleKey)
	}

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if opts.DumpBone != "" {
		dumpBone(out, spawned, opts.DumpBone)
	}
	return nil
}

// dumpBone prints the decomposed world transform of the named bone for every entity.
func dumpBone(out io.Writer, spawned []config.Spawned, bone string) {
	for _, sp := range spawned {
		skel := sp.Object.Skeleton()
		id := skel.FindBoneID(bone)
		if id < 0 {
			fmt.Fprintf(out, "%s: no bone %q\n", sp.Entity.Name, bone)
			continue
		}
		trs, err := skel.DecomposeWorldTRS(id)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", sp.Entity.Name, err)
			continue
		}
		fmt.Fprintf(out, "%s/%s:\n%s", sp.Entity.Name, bone, common.Sdump(trs))
	}
}
