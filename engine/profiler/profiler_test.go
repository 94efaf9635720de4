package profiler

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTick_LogsEveryIntervalWithFields(t *testing.T) {
	t.Parallel()
	logger, hook := logtest.NewNullLogger()
	p := NewProfiler(WithLogger(logger), WithInterval(0))

	require.True(t, p.Tick(Stats{Entities: 3, EventsFired: 5}))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "profile", entry.Message)
	assert.Equal(t, "profiler", entry.Data["component"])
	assert.Equal(t, 3, entry.Data["entities"])
	assert.Equal(t, uint64(5), entry.Data["events"])
	for _, key := range []string{"tps", "heap_mb", "alloc_mb_s", "gc", "sys_mb"} {
		assert.Contains(t, entry.Data, key)
	}
}

func TestTick_WaitsForInterval(t *testing.T) {
	t.Parallel()
	logger, hook := logtest.NewNullLogger()
	p := NewProfiler(WithLogger(logger), WithInterval(time.Hour))

	for range 10 {
		assert.False(t, p.Tick(Stats{}))
	}
	assert.Empty(t, hook.AllEntries())
}
