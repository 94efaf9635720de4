package engine

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/profiler"
	"github.com/Carmen-Shannon/oxy-anim/engine/scene"
	"github.com/Carmen-Shannon/oxy-anim/engine/window"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrAlreadyStarted is returned when Run is called on an engine that has already run.
var ErrAlreadyStarted = errors.New("engine already started")

// engine implements the Engine interface.
// Coordinates the tick goroutine with the window message loop.
type engine struct {
	mu sync.RWMutex

	logger logrus.FieldLogger

	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates
	tickRateMu      sync.Mutex         // Serializes writers of tickRateChannel

	started atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window window.Window

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate time.Duration
	fixedStep      bool
	maxTicks       uint64
	ticks          atomic.Uint64
	paused         atomic.Bool

	tickCallback func(deltaTime float32)

	scenes map[int]scene.Scene
}

// Engine is the main entry point for the engine.
// It drives every active scene at a fixed tick rate and, when a window is attached,
// pumps the window's message loop on the calling thread.
type Engine interface {
	// Window returns the attached window, or nil when running headless.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in ticks per second.
	// If the engine is running, the change takes effect immediately.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called after each tick's scenes have progressed.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetPaused freezes playback. Paused ticks progress scenes by zero seconds.
	//
	// Parameters:
	//   - paused: true to pause
	SetPaused(paused bool)

	// Paused reports whether playback is frozen.
	//
	// Returns:
	//   - bool: true if paused
	Paused() bool

	// AddScene registers a scene at the given key.
	// Scenes are progressed in ascending key order.
	//
	// Parameters:
	//   - key: the ordering key (lower progresses first)
	//   - s: the Scene to register
	AddScene(key int, s scene.Scene)

	// RemoveScene removes the scene at the given key.
	//
	// Parameters:
	//   - key: the key of the scene to remove
	RemoveScene(key int)

	// Scene retrieves the scene registered at the given key.
	// Returns nil if no scene exists at that key.
	//
	// Parameters:
	//   - key: the key of the scene to retrieve
	//
	// Returns:
	//   - scene.Scene: the scene at the key, or nil if not found
	Scene(key int) scene.Scene

	// Scenes returns a copy of all registered scenes.
	//
	// Returns:
	//   - map[int]scene.Scene: a copy of the scenes map
	Scenes() map[int]scene.Scene

	// Step runs one tick synchronously: every active scene is progressed by dt (or zero
	// while paused), then the tick callback and the profiler run.
	//
	// Parameters:
	//   - dt: the tick length in seconds
	Step(dt float32)

	// Ticks returns the number of completed ticks.
	//
	// Returns:
	//   - uint64: the tick counter
	Ticks() uint64

	// Run starts the tick goroutine and blocks until the engine quits: Quit is called,
	// the tick limit is reached, the window closes, or ctx is cancelled.
	// With a window attached Run must be called from the thread that created it.
	//
	// Parameters:
	//   - ctx: cancels the run
	//
	// Returns:
	//   - error: ctx.Err() on cancellation, ErrAlreadyStarted on a second call, otherwise nil
	Run(ctx context.Context) error

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
// Options are applied directly to the engine struct via the option-builder pattern.
//
// Parameters:
//   - options: functional options for engine configuration (profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		scenes:          make(map[int]scene.Scene),
		engineTickRate:  time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}
	e.logger = common.ComponentLogger(e.logger, "engine")
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(profiler.WithLogger(e.logger))
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if e.started.Load() {
		// A pending update is replaced by the newest rate. With writers serialized the
		// buffer is empty after the drain, so the second send cannot block.
		e.tickRateMu.Lock()
		defer e.tickRateMu.Unlock()
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			select {
			case e.tickRateChannel <- newRate:
			default:
			}
		}
		return
	}

	e.mu.Lock()
	e.engineTickRate = newRate
	e.mu.Unlock()
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickCallback = callback
}

func (e *engine) SetPaused(paused bool) {
	e.paused.Store(paused)
}

func (e *engine) Paused() bool {
	return e.paused.Load()
}

func (e *engine) AddScene(key int, s scene.Scene) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scenes[key] = s
}

func (e *engine) RemoveScene(key int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.scenes, key)
}

func (e *engine) Scene(key int) scene.Scene {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scenes[key]
}

func (e *engine) Scenes() map[int]scene.Scene {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cp := make(map[int]scene.Scene, len(e.scenes))
	for k, v := range e.scenes {
		cp[k] = v
	}
	return cp
}

// activeScenes returns the active scenes in ascending key order.
func (e *engine) activeScenes() []scene.Scene {
	e.mu.RLock()
	defer e.mu.RUnlock()

	keys := make([]int, 0, len(e.scenes))
	for k := range e.scenes {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	active := make([]scene.Scene, 0, len(keys))
	for _, k := range keys {
		if s := e.scenes[k]; s.Active() {
			active = append(active, s)
		}
	}
	return active
}

func (e *engine) Step(dt float32) {
	if e.paused.Load() {
		dt = 0
	}

	var stats profiler.Stats
	for _, s := range e.activeScenes() {
		stats.Entities += s.Count() + s.CountEphemeral()
		s.Progress(dt)
		stats.EventsFired += s.EventsFired()
	}

	e.mu.RLock()
	callback := e.tickCallback
	e.mu.RUnlock()
	if callback != nil {
		callback(dt)
	}

	if e.profilingEnabled.Load() {
		e.profiler.Tick(stats)
	}
	e.ticks.Add(1)
}

func (e *engine) Ticks() uint64 {
	return e.ticks.Load()
}

func (e *engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	e.mu.RLock()
	rate := e.engineTickRate
	e.mu.RUnlock()
	e.logger.WithFields(logrus.Fields{
		"tick_rate": 1 / rate.Seconds(),
		"max_ticks": e.maxTicks,
		"headless":  e.window == nil,
	}).Info("engine started")

	e.wg.Add(1)
	go e.handleEngine(ctx, rate)

	if e.window != nil {
		// The message loop runs on the calling thread; the window closes itself once the engine quits.
		e.window.SetUpdateCallback(func() {
			select {
			case <-e.quitChannel:
				_ = e.window.Close()
			case <-ctx.Done():
				_ = e.window.Close()
			default:
			}
		})
		e.window.ProcessMessages()
		e.signalQuit()
	}

	select {
	case <-e.quitChannel:
	case <-ctx.Done():
		e.signalQuit()
	}
	e.wg.Wait()

	e.logger.WithField("ticks", e.ticks.Load()).Info("engine stopped")
	return ctx.Err()
}

func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// handleEngine runs the fixed-rate tick loop in its own goroutine.
// Steps the scenes at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed or ctx is cancelled.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleEngine(ctx context.Context, rate time.Duration) {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithField("panic", r).Error("tick goroutine recovered from panic")
			e.signalQuit()
		}
	}()

	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ctx.Done():
			e.signalQuit()
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now
			if e.fixedStep {
				dt = float32(rate.Seconds())
			}

			e.Step(dt)

			if e.maxTicks > 0 && e.ticks.Load() >= e.maxTicks {
				e.signalQuit()
				return
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			rate = newRate
			e.mu.Lock()
			e.engineTickRate = newRate
			e.mu.Unlock()
		}
	}
}
