package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/sirupsen/logrus"
)

// Stats is the per-tick engine state reported alongside runtime statistics.
type Stats struct {
	// Entities is the number of objects progressed this tick.
	Entities int
	// EventsFired is the cumulative number of clip events delivered so far.
	EventsFired uint64
}

// Profiler tracks tick rate, animation throughput and memory statistics.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	logger         logrus.FieldLogger
	tickCount      int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	lastEvents     uint64
}

// NewProfiler creates a new Profiler.
// Update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		tickCount:      0,
		lastTime:       time.Now(),
		updateInterval: time.Second,
		memStats:       runtime.MemStats{},
	}
	for _, option := range options {
		option(p)
	}
	p.logger = common.ComponentLogger(p.logger, "profiler")
	return p
}

// Tick should be called once per engine tick.
// Logs performance statistics when the update interval has elapsed: ticks per second,
// entity count, events per second, heap usage, allocation rate, and GC count/pause times.
//
// Parameters:
//   - stats: the engine state for this tick
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(stats Stats) bool {
	p.tickCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed < p.updateInterval {
		return false
	}
	seconds := max(elapsed.Seconds(), 1e-9)

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocRateMB := float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / seconds

	// PauseNs is a circular buffer of the last 256 GC pauses.
	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	var eventRate float64
	if stats.EventsFired >= p.lastEvents {
		eventRate = float64(stats.EventsFired-p.lastEvents) / seconds
	}

	p.logger.WithFields(logrus.Fields{
		"tps":          float64(p.tickCount) / seconds,
		"entities":     stats.Entities,
		"events":       stats.EventsFired,
		"events_per_s": eventRate,
		"heap_mb":      allocMB,
		"alloc_mb_s":   allocRateMB,
		"gc":           gcCount,
		"gc_last_us":   lastPauseUs,
		"gc_max_us":    maxPauseUs,
		"sys_mb":       sysMB,
	}).Info("profile")

	p.tickCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	p.lastEvents = stats.EventsFired
	return true
}
